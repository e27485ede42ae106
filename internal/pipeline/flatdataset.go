package pipeline

import (
	"relfit/internal/candidates"
	"relfit/internal/split"
	"relfit/internal/tree"
)

// flatDataset wraps a plain row x named-column matrix (autofeatures
// joined with manual features) as a fitter.DatasetBuilder, for fitting
// the Pipeline's predictor the same way edgeDataset feeds a feature
// learner — one dataset row per population row, LossRows the identity
// permutation.
type flatDataset struct {
	names  []string
	values [][]float64 // values[row][col]
}

func newFlatDataset(names []string, columns [][]float64) *flatDataset {
	nRows := 0
	if len(columns) > 0 {
		nRows = len(columns[0])
	}
	values := make([][]float64, nRows)
	for r := range values {
		row := make([]float64, len(columns))
		for c := range columns {
			row[c] = columns[c][r]
		}
		values[r] = row
	}
	return &flatDataset{names: append([]string(nil), names...), values: values}
}

// BuildDataset implements fitter.DatasetBuilder. Every candidate yields
// the same dataset (the predictor fits over the whole feature table at
// once rather than one candidate/value-source per call).
func (d *flatDataset) BuildDataset(_ candidates.Candidate) (*tree.Dataset, error) {
	lossRows := make([]int, len(d.values))
	for i := range lossRows {
		lossRows[i] = i
	}
	return &tree.Dataset{
		LossRows: lossRows,
		Numeric: []tree.NumericGroup{{
			DataUsed: split.NumericalInput,
			Names:    append([]string(nil), d.names...),
			Values:   d.values,
		}},
	}, nil
}
