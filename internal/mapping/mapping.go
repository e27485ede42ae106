// Package mapping implements the Mapping Container (spec.md §4.M): for
// every categorical and text column of every peripheral table in a
// Schema tree, build category_id -> target-mean, computed over the
// *output*-side matched population rows reached via a recursive
// find_output_ix composed across however many join levels separate the
// peripheral from the root. Entries backed by fewer than min_df
// matches are dropped.
//
// Grounded on the teacher's internal/core validate* family: Build walks
// the schema tree the same way core.validateAllTables walks a
// []*Table, delegating one self-contained step (here, index
// composition then per-column aggregation) to each node, and
// fmt.Errorf-wraps failures with the node's name the way core's
// validateTable wraps column errors with the table's name.
package mapping

import (
	"math"
	"strconv"

	"relfit/internal/column"
	"relfit/internal/dataframe"
	"relfit/internal/engineerr"
	"relfit/internal/match"
	"relfit/internal/schema"
)

// Table holds one (peripheral table, column) pair's fitted mapping:
// category/text value -> mean of each target over the rows it was
// seen to co-occur with (spec.md §4.M).
type Table[K comparable] struct {
	PeripheralTable string
	ColumnName      string
	NumTargets      int
	MinDF           int

	sums   map[K][]float64
	counts map[K]int
}

func newTable[K comparable](peripheralTable, columnName string, numTargets, minDF int) *Table[K] {
	return &Table[K]{
		PeripheralTable: peripheralTable,
		ColumnName:      columnName,
		NumTargets:      numTargets,
		MinDF:           minDF,
		sums:            make(map[K][]float64),
		counts:          make(map[K]int),
	}
}

func (t *Table[K]) observe(key K, targetValues []float64) {
	sums, ok := t.sums[key]
	if !ok {
		sums = make([]float64, t.NumTargets)
		t.sums[key] = sums
	}
	for i, v := range targetValues {
		sums[i] += v
	}
	t.counts[key]++
}

// Lookup returns the fitted per-target mean for key, or ok=false if
// key was never observed or fell below MinDF (spec.md §4.M: "entries
// with fewer than min_df matches are dropped").
func (t *Table[K]) Lookup(key K) (means []float64, ok bool) {
	count := t.counts[key]
	if count < t.MinDF {
		return nil, false
	}
	sums := t.sums[key]
	means = make([]float64, len(sums))
	for i, s := range sums {
		means[i] = s / float64(count)
	}
	return means, true
}

// Transform applies the fitted mapping to every value in keys, one
// output Column per target, each named columnName__mapping, target N
// (spec.md §4.M). Rows whose key has no surviving entry get NaN.
func (t *Table[K]) Transform(keys []K) ([]*column.Column[float64], []string) {
	out := make([]*column.Column[float64], t.NumTargets)
	names := make([]string, t.NumTargets)
	for target := 0; target < t.NumTargets; target++ {
		values := make([]float64, len(keys))
		for i, k := range keys {
			if means, ok := t.Lookup(k); ok {
				values[i] = means[target]
			} else {
				values[i] = math.NaN()
			}
		}
		name := mappingColumnName(t.ColumnName, target)
		out[target] = column.New(name, values)
		names[target] = name
	}
	return out, names
}

func mappingColumnName(columnName string, target int) string {
	return columnName + "__mapping, target " + strconv.Itoa(target)
}

// Set is every fitted Table reachable from one Schema tree, keyed by
// peripheral table name for retrieval during transform.
type Set struct {
	Categorical map[string][]*Table[int64]
	Text        map[string][]*Table[string]
}

// Build fits a mapping.Set over every peripheral in root (spec.md
// §4.M). targets is the population table's target matrix, one
// []float64 per target column, row-aligned to tables[root.Name].
func Build(root *schema.Placeholder, tables map[string]*dataframe.DataFrame, matches map[*schema.Child][]match.Match, targets [][]float64, minDF int) (*Set, error) {
	resolvers := buildResolvers(root, matches)

	set := &Set{Categorical: map[string][]*Table[int64]{}, Text: map[string][]*Table[string]{}}

	var walkErr error
	root.Walk(func(node *schema.Placeholder, viaEdge *schema.Child) {
		if walkErr != nil || viaEdge == nil {
			return // root carries the targets, not a mapping source
		}
		df, ok := tables[node.Name]
		if !ok {
			walkErr = engineerr.Newf(engineerr.InvalidArgument, "mapping: no table registered for %q", node.Name)
			return
		}
		resolve := resolvers[viaEdge]

		for _, col := range df.CategoricalNames() {
			c, err := df.Categorical(col)
			if err != nil {
				walkErr = err
				return
			}
			set.Categorical[node.Name] = append(set.Categorical[node.Name], fitTable[int64](node.Name, col, c.Raw(), resolve, targets, minDF))
		}
		for _, col := range df.TextNames() {
			c, err := df.Text(col)
			if err != nil {
				walkErr = err
				return
			}
			set.Text[node.Name] = append(set.Text[node.Name], fitTable[string](node.Name, col, c.Raw(), resolve, targets, minDF))
		}
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return set, nil
}

func fitTable[K comparable](peripheralTable, columnName string, values []K, resolve func(int) []int, targets [][]float64, minDF int) *Table[K] {
	t := newTable[K](peripheralTable, columnName, len(targets), minDF)
	for row, key := range values {
		for _, rootRow := range resolve(row) {
			targetValues := make([]float64, len(targets))
			for ti, col := range targets {
				targetValues[ti] = col[rootRow]
			}
			t.observe(key, targetValues)
		}
	}
	return t
}

// buildResolvers computes, for every Child edge in the tree, a
// function mapping a row index in that edge's peripheral table to the
// set of root-table row indices reachable through it (spec.md §4.M
// find_output_ix): composed one join level at a time, starting from
// the identity resolver at the root.
func buildResolvers(root *schema.Placeholder, matches map[*schema.Child][]match.Match) map[*schema.Child]func(int) []int {
	resolvers := make(map[*schema.Child]func(int) []int)

	var walk func(node *schema.Placeholder, parentResolve func(int) []int)
	walk = func(node *schema.Placeholder, parentResolve func(int) []int) {
		for _, child := range node.Children {
			inputToOutputs := buildInputIndex(matches[child])
			resolve := func(peripRow int) []int {
				seen := make(map[int]struct{})
				var out []int
				for _, outputRow := range inputToOutputs[peripRow] {
					for _, rootRow := range parentResolve(outputRow) {
						if _, dup := seen[rootRow]; dup {
							continue
						}
						seen[rootRow] = struct{}{}
						out = append(out, rootRow)
					}
				}
				return out
			}
			resolvers[child] = resolve
			walk(child.Table, resolve)
		}
	}

	identity := func(row int) []int { return []int{row} }
	walk(root, identity)
	return resolvers
}

func buildInputIndex(ms []match.Match) map[int][]int {
	idx := make(map[int][]int, len(ms))
	for _, m := range ms {
		idx[m.IxInput] = append(idx[m.IxInput], m.IxOutput)
	}
	return idx
}
