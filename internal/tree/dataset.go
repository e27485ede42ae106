package tree

import "relfit/internal/split"

// NumericGroup is one DataUsed family of real-valued candidate columns
// (numerical_input, numerical_output, discrete_*, same_units_*,
// time_stamps_diff): a name per column index and a dense rows x
// columns value matrix. NaN marks a missing value eligible for the
// `_is_nan` split variant.
type NumericGroup struct {
	DataUsed split.DataUsed
	Names    []string
	Values   [][]float64 // Values[row][col]

	// IsNaNVariant is the DataUsed tag used for this group's missing-value
	// split, or "" when the group has no such variant (e.g. same_units_*).
	IsNaNVariant split.DataUsed
}

// CategoricalGroup is one DataUsed family of category-id columns
// (categorical_input, categorical_output).
type CategoricalGroup struct {
	DataUsed split.DataUsed
	Names    []string
	Values   [][]int64 // Values[row][col]
}

// Dataset is the row-aligned candidate feature matrix a tree fits
// against, plus the mapping from dataset row to the loss.Function row
// whose gradient/hessian that row contributes to. A dataset row is one
// (population row, peripheral row) Match (spec.md §3 "Match").
type Dataset struct {
	LossRows    []int
	Numeric     []NumericGroup
	Categorical []CategoricalGroup
}

// NumRows returns the dataset's row count.
func (d *Dataset) NumRows() int { return len(d.LossRows) }

func (d *Dataset) numericGroup(du split.DataUsed) (*NumericGroup, bool) {
	for i := range d.Numeric {
		if d.Numeric[i].DataUsed == du {
			return &d.Numeric[i], true
		}
	}
	return nil, false
}

func (d *Dataset) categoricalGroup(du split.DataUsed) (*CategoricalGroup, bool) {
	for i := range d.Categorical {
		if d.Categorical[i].DataUsed == du {
			return &d.Categorical[i], true
		}
	}
	return nil, false
}

// TimeStampsDiff returns the per-row time_stamps_diff column (pop.ts -
// perip.ts for each Match row), or nil when the dataset carries no such
// group (e.g. a flat predictor-input dataset, which has no matches to
// time). Callers that fold per-row tree outputs by aggregation kind
// (internal/agg.Kind.Reduce) use this to drive FIRST/LAST/EWMA/TREND/
// TIME_SINCE_*/AVG_TIME_BETWEEN.
func (d *Dataset) TimeStampsDiff() []float64 {
	g, ok := d.numericGroup(split.TimeStampsDiff)
	if !ok {
		return nil
	}
	out := make([]float64, len(g.Values))
	for i, row := range g.Values {
		out[i] = row[0]
	}
	return out
}
