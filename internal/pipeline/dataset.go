package pipeline

import (
	"relfit/internal/candidates"
	"relfit/internal/dataframe"
	"relfit/internal/engineerr"
	"relfit/internal/match"
	"relfit/internal/schema"
	"relfit/internal/split"
	"relfit/internal/tree"
)

// edgeDataset builds a tree.Dataset over every Match on one schema
// edge: one dataset row per Match, with split groups drawn from both
// sides of the join (spec.md §3 "Split": data_used ranges over
// numerical_input/output, discrete_input/output, categorical_input/
// output, time_stamps_diff). "_input" columns come from the peripheral
// row (ix_input); "_output" columns come from the population row
// (ix_output) — the naming follows spec.md's Match triple, not the
// aggregation's value source.
//
// Grounded on internal/fitter.DatasetBuilder's scoping note: this is
// the concrete implementation the interface exists to decouple from,
// built fresh per Candidate so a subfeature fit can later swap in a
// builder that also emits a Subfeatures column, without fitter ever
// importing dataframe/match itself.
type edgeDataset struct {
	pop, perip *dataframe.DataFrame
	edge       *schema.Child
	matches    []match.Match
}

// BuildDataset implements fitter.DatasetBuilder. The Candidate
// parameter only selects which split groups the tree structure search
// is offered (spec.md §4.F: every group is always offered, regardless
// of which aggregation/value-source produced the candidate), so it is
// unused here; the candidate's Aggregation still reaches prediction —
// tree.Aggregate folds this dataset's per-match tree outputs by
// Candidate.Aggregation in internal/boosting and internal/pipeline,
// downstream of this builder.
func (b *edgeDataset) BuildDataset(_ candidates.Candidate) (*tree.Dataset, error) {
	n := len(b.matches)
	ds := &tree.Dataset{LossRows: make([]int, n)}
	for i, m := range b.matches {
		ds.LossRows[i] = m.IxOutput
	}

	if g, ok, err := numericGroup(b.perip, split.NumericalInput, b.perip.NumericalNames(), func(m match.Match) int { return m.IxInput }, b.matches); err != nil {
		return nil, err
	} else if ok {
		g.IsNaNVariant = split.NumericalInputIsNaN
		ds.Numeric = append(ds.Numeric, *g)
	}
	if g, ok, err := numericGroup(b.pop, split.NumericalOutput, b.pop.NumericalNames(), func(m match.Match) int { return m.IxOutput }, b.matches); err != nil {
		return nil, err
	} else if ok {
		g.IsNaNVariant = split.NumericalOutputIsNaN
		ds.Numeric = append(ds.Numeric, *g)
	}
	if g, ok, err := discreteGroup(b.perip, split.DiscreteInput, b.perip.DiscreteNames(), func(m match.Match) int { return m.IxInput }, b.matches); err != nil {
		return nil, err
	} else if ok {
		g.IsNaNVariant = split.DiscreteInputIsNaN
		ds.Numeric = append(ds.Numeric, *g)
	}
	if g, ok, err := discreteGroup(b.pop, split.DiscreteOutput, b.pop.DiscreteNames(), func(m match.Match) int { return m.IxOutput }, b.matches); err != nil {
		return nil, err
	} else if ok {
		g.IsNaNVariant = split.DiscreteOutputIsNaN
		ds.Numeric = append(ds.Numeric, *g)
	}

	if g, ok, err := categoricalGroup(b.perip, split.CategoricalInput, b.perip.CategoricalNames(), func(m match.Match) int { return m.IxInput }, b.matches); err != nil {
		return nil, err
	} else if ok {
		ds.Categorical = append(ds.Categorical, *g)
	}
	if g, ok, err := categoricalGroup(b.pop, split.CategoricalOutput, b.pop.CategoricalNames(), func(m match.Match) int { return m.IxOutput }, b.matches); err != nil {
		return nil, err
	} else if ok {
		ds.Categorical = append(ds.Categorical, *g)
	}

	tsDiff := make([][]float64, n)
	for i, m := range b.matches {
		tsDiff[i] = []float64{m.TSDiff}
	}
	ds.Numeric = append(ds.Numeric, tree.NumericGroup{
		DataUsed: split.TimeStampsDiff,
		Names:    []string{"ts_diff"},
		Values:   tsDiff,
	})

	return ds, nil
}

func numericGroup(df *dataframe.DataFrame, du split.DataUsed, names []string, rowOf func(match.Match) int, matches []match.Match) (*tree.NumericGroup, bool, error) {
	if len(names) == 0 {
		return nil, false, nil
	}
	cols := make([][]float64, len(names))
	for j, name := range names {
		c, err := df.Numerical(name)
		if err != nil {
			return nil, false, err
		}
		cols[j] = c.Raw()
	}
	values := make([][]float64, len(matches))
	for i, m := range matches {
		row := make([]float64, len(names))
		for j := range names {
			row[j] = cols[j][rowOf(m)]
		}
		values[i] = row
	}
	return &tree.NumericGroup{DataUsed: du, Names: append([]string(nil), names...), Values: values}, true, nil
}

func discreteGroup(df *dataframe.DataFrame, du split.DataUsed, names []string, rowOf func(match.Match) int, matches []match.Match) (*tree.NumericGroup, bool, error) {
	if len(names) == 0 {
		return nil, false, nil
	}
	cols := make([][]int64, len(names))
	for j, name := range names {
		c, err := df.Discrete(name)
		if err != nil {
			return nil, false, err
		}
		cols[j] = c.Raw()
	}
	values := make([][]float64, len(matches))
	for i, m := range matches {
		row := make([]float64, len(names))
		for j := range names {
			row[j] = float64(cols[j][rowOf(m)])
		}
		values[i] = row
	}
	return &tree.NumericGroup{DataUsed: du, Names: append([]string(nil), names...), Values: values}, true, nil
}

func categoricalGroup(df *dataframe.DataFrame, du split.DataUsed, names []string, rowOf func(match.Match) int, matches []match.Match) (*tree.CategoricalGroup, bool, error) {
	if len(names) == 0 {
		return nil, false, nil
	}
	cols := make([][]int64, len(names))
	for j, name := range names {
		c, err := df.Categorical(name)
		if err != nil {
			return nil, false, err
		}
		cols[j] = c.Raw()
	}
	values := make([][]int64, len(matches))
	for i, m := range matches {
		row := make([]int64, len(names))
		for j := range names {
			row[j] = cols[j][rowOf(m)]
		}
		values[i] = row
	}
	return &tree.CategoricalGroup{DataUsed: du, Names: append([]string(nil), names...), Values: values}, true, nil
}

// newEdgeDataset looks up the edge matching peripheralName directly
// under root and wraps it as a fitter.DatasetBuilder.
func newEdgeDataset(root *schema.Placeholder, tables map[string]*dataframe.DataFrame, matches map[*schema.Child][]match.Match, peripheralName string) (*edgeDataset, error) {
	for _, edge := range root.Children {
		if edge.Table.Name != peripheralName {
			continue
		}
		pop, ok := tables[root.Name]
		if !ok {
			return nil, engineerr.Newf(engineerr.InvalidArgument, "pipeline: no table registered for population %q", root.Name)
		}
		perip, ok := tables[peripheralName]
		if !ok {
			return nil, engineerr.Newf(engineerr.InvalidArgument, "pipeline: no table registered for peripheral %q", peripheralName)
		}
		return &edgeDataset{pop: pop, perip: perip, edge: edge, matches: matches[edge]}, nil
	}
	return nil, engineerr.Newf(engineerr.InvalidArgument, "pipeline: population %q has no child peripheral %q", root.Name, peripheralName)
}
