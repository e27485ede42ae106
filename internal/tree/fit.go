package tree

import (
	"math"
	"sort"

	"relfit/internal/loss"
	"relfit/internal/split"
)

// FitParams bounds recursion and controls the candidate search
// (spec.md §4.F steps 1-3).
type FitParams struct {
	MaxDepth      int
	MinNumSamples int
	Lambda        float64 // unused here directly; lives on the loss.Function
	Regularization float64
	GridFactor    float64 // scales the default ceil(sqrt(N)) bin count
	AllowSets     bool    // not read by Fit; every categorical split tests one id
	AllowSetsSize int
}

// Fit grows a Tree over every row of ds against lf (spec.md §4.F).
func Fit(ds *Dataset, lf *loss.Function, params FitParams) *Tree {
	rows := make([]int, ds.NumRows())
	for i := range rows {
		rows[i] = i
	}
	t := &Tree{}
	t.Root = fitNode(t, ds, rows, 0, lf, params)
	return t
}

func lossRowsOf(ds *Dataset, rowIdx []int) []int {
	out := make([]int, len(rowIdx))
	for i, r := range rowIdx {
		out[i] = ds.LossRows[r]
	}
	return out
}

func fitNode(t *Tree, ds *Dataset, rowIdx []int, depth int, lf *loss.Function, params FitParams) NodeID {
	lossRows := lossRowsOf(ds, rowIdx)
	if depth >= params.MaxDepth || len(rowIdx) < params.MinNumSamples {
		intercept := lf.TwoPartitionWeights(lossRows)
		return t.leaf(depth, intercept, fitLeafWeights(ds, rowIdx, lf, intercept))
	}

	best, ok := bestCandidate(ds, rowIdx, lf, params)
	if !ok || best.reduction <= params.Regularization {
		intercept := lf.TwoPartitionWeights(lossRows)
		return t.leaf(depth, intercept, fitLeafWeights(ds, rowIdx, lf, intercept))
	}

	leftID := fitNode(t, ds, best.left, depth+1, lf, params)
	rightID := fitNode(t, ds, best.right, depth+1, lf, params)
	id := t.branch(depth, best.splitDesc, leftID, rightID)
	t.At(id).Gain = best.reduction
	return id
}

// weightEligible names the DataUsed groups a leaf's linear term vector
// ranges over (spec.md §3: "an intercept and a vector of weights whose
// indices correspond to (discrete_output, numerical_output,
// discrete_input, numerical_input, subfeatures)"). time_stamps_diff and
// same_units_* groups are split-search inputs only, never weight terms.
var weightEligible = map[split.DataUsed]bool{
	split.DiscreteOutput:  true,
	split.NumericalOutput: true,
	split.DiscreteInput:   true,
	split.NumericalInput:  true,
	split.Subfeatures:     true,
}

// fitLeafWeights fits one coefficient per eligible numeric column
// reachable from ds (spec.md §4.F transform: intercept + Sigma_k
// w_k*x_k). Columns are solved one at a time, in group/column order,
// each as the closed-form single-variable ridge Newton step against
// the gradient residual left after the intercept and every
// previously-fit column (the same w = -Sigma(g)/(Sigma(h)+lambda) shape
// as loss.TwoPartitionWeights, with x as the per-row loading) — internal/loss's
// own doc comment notes no pack repo performs general linear algebra,
// so columns are solved independently rather than via one joint
// multi-column system.
func fitLeafWeights(ds *Dataset, rowIdx []int, lf *loss.Function, intercept float64) []Weight {
	residual := make([]float64, len(rowIdx))
	for i := range residual {
		residual[i] = intercept
	}

	var weights []Weight
	for gi := range ds.Numeric {
		group := &ds.Numeric[gi]
		if !weightEligible[group.DataUsed] {
			continue
		}
		for col := range group.Names {
			w, ok := fitColumnWeight(ds, group, col, rowIdx, lf, residual)
			if !ok {
				continue
			}
			weights = append(weights, Weight{DataUsed: group.DataUsed, ColumnIndex: col, OtherColumnIndex: -1, Coefficient: w})
		}
	}
	return weights
}

// fitColumnWeight solves w for one column and folds w*x into residual
// so the next column's solve sees this one's effect, ok is false when
// the column carries no usable signal for this leaf (every row NaN, or
// a singular normal equation).
func fitColumnWeight(ds *Dataset, group *NumericGroup, col int, rowIdx []int, lf *loss.Function, residual []float64) (w float64, ok bool) {
	var num, den float64
	for i, r := range rowIdx {
		x := group.Values[r][col]
		if math.IsNaN(x) {
			continue
		}
		row := ds.LossRows[r]
		g := lf.Gradient(row) + lf.Hessian(row)*residual[i]
		num += x * g
		den += x * x * lf.Hessian(row)
	}
	den += lf.Lambda()
	if den == 0 {
		return 0, false
	}
	w = -num / den
	if w == 0 {
		return 0, false
	}
	for i, r := range rowIdx {
		x := group.Values[r][col]
		if !math.IsNaN(x) {
			residual[i] += w * x
		}
	}
	return w, true
}

type candidate struct {
	splitDesc split.Split
	reduction float64
	left      []int
	right     []int
}

// splitGain returns the loss reduction from partitioning rowIdx into
// left/right versus keeping it whole, each side scored at its own
// closed-form optimal weight (spec.md §4.F step 2).
func splitGain(ds *Dataset, left, right []int, lf *loss.Function) float64 {
	lossLeft := lossRowsOf(ds, left)
	lossRight := lossRowsOf(ds, right)
	wLeft := lf.TwoPartitionWeights(lossLeft)
	wRight := lf.TwoPartitionWeights(lossRight)
	gainLeft := lf.Reduction(lossLeft, wLeft)
	gainRight := lf.Reduction(lossRight, wRight)

	whole := append(append([]int(nil), lossLeft...), lossRight...)
	wWhole := lf.TwoPartitionWeights(whole)
	gainWhole := lf.Reduction(whole, wWhole)

	return gainLeft + gainRight - gainWhole
}

func bestCandidate(ds *Dataset, rowIdx []int, lf *loss.Function, params FitParams) (candidate, bool) {
	var best candidate
	found := false

	consider := func(c candidate) {
		if len(c.left) == 0 || len(c.right) == 0 {
			return
		}
		if !found {
			best, found = c, true
			return
		}
		if c.reduction > best.reduction+1e-12 {
			best = c
			return
		}
		if c.reduction >= best.reduction-1e-12 && split.Less(c.splitDesc, best.splitDesc) {
			best = c
		}
	}

	for gi := range ds.Numeric {
		group := &ds.Numeric[gi]
		for col := range group.Names {
			for _, c := range numericThresholdCandidates(ds, group, col, rowIdx, lf, params) {
				consider(c)
			}
			if group.IsNaNVariant != "" {
				if c, ok := numericIsNaNCandidate(ds, group, col, rowIdx, lf); ok {
					consider(c)
				}
			}
		}
	}

	for gi := range ds.Categorical {
		group := &ds.Categorical[gi]
		for col := range group.Names {
			for _, c := range categoricalCandidates(ds, group, col, rowIdx, lf) {
				consider(c)
			}
		}
	}

	return best, found
}

func numBins(n int, gridFactor float64) int {
	if gridFactor <= 0 {
		gridFactor = 1
	}
	b := int(math.Ceil(math.Sqrt(float64(n)) * gridFactor))
	if b < 1 {
		b = 1
	}
	return b
}

func numericThresholdCandidates(ds *Dataset, group *NumericGroup, col int, rowIdx []int, lf *loss.Function, params FitParams) []candidate {
	present := make([]int, 0, len(rowIdx))
	values := make(map[int]float64, len(rowIdx))
	for _, r := range rowIdx {
		v := group.Values[r][col]
		if math.IsNaN(v) {
			continue
		}
		present = append(present, r)
		values[r] = v
	}
	if len(present) < 2 {
		return nil
	}

	distinct := distinctSorted(present, values)
	if len(distinct) < 2 {
		return nil
	}

	bins := numBins(len(present), params.GridFactor)
	thresholds := pickThresholds(distinct, bins)

	out := make([]candidate, 0, len(thresholds))
	for _, threshold := range thresholds {
		s := split.Split{DataUsed: group.DataUsed, ColumnIndex: col, OtherColumnIndex: -1, CriticalValue: threshold, HasCriticalValue: true}
		left, right := make([]int, 0), make([]int, 0)
		for _, r := range present {
			if s.EvaluateNumerical(values[r]) {
				left = append(left, r)
			} else {
				right = append(right, r)
			}
		}
		c := candidate{splitDesc: s, left: left, right: right}
		c.reduction = splitGain(ds, left, right, lf)
		out = append(out, c)
	}
	return out
}

func numericIsNaNCandidate(ds *Dataset, group *NumericGroup, col int, rowIdx []int, lf *loss.Function) (candidate, bool) {
	left, right := make([]int, 0), make([]int, 0)
	for _, r := range rowIdx {
		if math.IsNaN(group.Values[r][col]) {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return candidate{}, false
	}
	s := split.Split{DataUsed: group.IsNaNVariant, ColumnIndex: col, OtherColumnIndex: -1}
	c := candidate{splitDesc: s, left: left, right: right}
	c.reduction = splitGain(ds, left, right, lf)
	return c, true
}

func distinctSorted(rows []int, values map[int]float64) []float64 {
	seen := make(map[float64]struct{}, len(rows))
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		v := values[r]
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// pickThresholds samples up to bins candidate thresholds evenly across
// the sorted distinct values (spec.md §4.F: "bin-and-scan with
// ceil(sqrt(N)) bins, grid factor applied").
func pickThresholds(distinct []float64, bins int) []float64 {
	if bins >= len(distinct)-1 {
		return append([]float64(nil), distinct[1:]...)
	}
	out := make([]float64, 0, bins)
	step := float64(len(distinct)-1) / float64(bins+1)
	for i := 1; i <= bins; i++ {
		idx := int(math.Round(float64(i) * step))
		if idx < 1 {
			idx = 1
		}
		if idx >= len(distinct) {
			idx = len(distinct) - 1
		}
		out = append(out, distinct[idx])
	}
	return dedupeFloats(out)
}

func dedupeFloats(in []float64) []float64 {
	seen := make(map[float64]struct{}, len(in))
	out := make([]float64, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// categoricalCandidates enumerates one candidate split per distinct
// category id present in rowIdx (spec.md §4.F: "per-category binning
// with optional set-union up to allow_sets" — only singleton-category
// binning is implemented; no split over a union of several category
// ids is searched, here or in internal/candidates).
func categoricalCandidates(ds *Dataset, group *CategoricalGroup, col int, rowIdx []int, lf *loss.Function) []candidate {
	byID := map[int64][]int{}
	for _, r := range rowIdx {
		id := group.Values[r][col]
		byID[id] = append(byID[id], r)
	}
	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]candidate, 0, len(ids))
	for _, id := range ids {
		left := byID[id]
		if len(left) == len(rowIdx) {
			continue
		}
		rightSet := make(map[int]struct{}, len(rowIdx)-len(left))
		for _, r := range rowIdx {
			rightSet[r] = struct{}{}
		}
		for _, r := range left {
			delete(rightSet, r)
		}
		right := make([]int, 0, len(rightSet))
		for r := range rightSet {
			right = append(right, r)
		}
		sort.Ints(right)

		s := split.Split{DataUsed: group.DataUsed, ColumnIndex: col, OtherColumnIndex: -1, CategoryIDs: map[int64]struct{}{id: {}}}
		c := candidate{splitDesc: s, left: left, right: right}
		c.reduction = splitGain(ds, left, right, lf)
		out = append(out, c)
	}
	return out
}
