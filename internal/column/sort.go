package column

import "sort"

// stableSortIndices sorts idx in place using less(i, j), which compares
// by the original (pre-sort) positions stored in idx — so this mirrors
// sort.SliceStable without repeated closures over the caller's data.
func stableSortIndices(idx []int, lessOrig func(i, j int) bool) {
	sort.SliceStable(idx, func(a, b int) bool {
		return lessOrig(idx[a], idx[b])
	})
}
