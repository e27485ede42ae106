package boosting_test

import (
	"context"
	"testing"

	"relfit/internal/agg"
	"relfit/internal/boosting"
	"relfit/internal/candidates"
	"relfit/internal/fitter"
	"relfit/internal/loss"
	"relfit/internal/split"
	"relfit/internal/tree"

	"github.com/stretchr/testify/require"
)

type fakeBuilder struct {
	features map[string][]float64
}

func (b fakeBuilder) BuildDataset(c candidates.Candidate) (*tree.Dataset, error) {
	values := b.features[c.Source.ColumnName]
	rows := make([][]float64, len(values))
	for i, v := range values {
		rows[i] = []float64{v}
	}
	lossRows := make([]int, len(values))
	for i := range lossRows {
		lossRows[i] = i
	}
	return &tree.Dataset{
		LossRows: lossRows,
		Numeric: []tree.NumericGroup{
			{DataUsed: split.NumericalInput, Names: []string{c.Source.ColumnName}, Values: rows},
		},
	}, nil
}

func TestRunRoundsReducesResidualEachRound(t *testing.T) {
	y := []float64{0, 0, 0, 0, 10, 10, 10, 10}
	yhat0 := make([]float64, len(y))
	lf, err := loss.New(loss.Regression, y, yhat0, 0.01)
	require.NoError(t, err)

	builder := fakeBuilder{features: map[string][]float64{
		"x": {0, 0, 0, 0, 10, 10, 10, 10},
	}}
	cands := []candidates.Candidate{{
		Peripheral:  "events",
		Aggregation: agg.Avg,
		Source:      candidates.ValueSource{DataUsed: split.NumericalInput, ColumnName: "x"},
	}}

	residual := func() float64 {
		var sum float64
		for i := range y {
			d := y[i] - lf.YHat(i)
			sum += d * d
		}
		return sum
	}
	before := residual()

	var ensemble boosting.Ensemble
	err = boosting.RunRounds(context.Background(), &ensemble, 0, cands, builder, lf, boosting.Params{
		MaxRounds: 3,
		Fitter: fitter.Params{
			MaxLengthProbe: 1,
			MaxLength:      1,
			NumTrees:       1,
			Regularization: 1e-9,
			GridFactor:     1,
			MaxWorkers:     1,
		},
	}, nil, nil)
	require.NoError(t, err)

	require.NotEmpty(t, ensemble.Contributions)
	require.Less(t, residual(), before)
}

func TestForPredictorFiltersByIndex(t *testing.T) {
	var e boosting.Ensemble
	e.Add(boosting.Contribution{PredictorIndex: 0})
	e.Add(boosting.Contribution{PredictorIndex: 1})
	e.Add(boosting.Contribution{PredictorIndex: 0})

	require.Len(t, e.ForPredictor(0), 2)
	require.Len(t, e.ForPredictor(1), 1)
	require.Equal(t, 2, e.NumTrees(0))
}

func TestRunRoundsStopsWhenFitterFindsNothingViable(t *testing.T) {
	y := []float64{1, 1, 1, 1}
	yhat0 := make([]float64, len(y))
	lf, err := loss.New(loss.Regression, y, yhat0, 0.01)
	require.NoError(t, err)

	builder := fakeBuilder{features: map[string][]float64{
		"flat": {1, 1, 1, 1},
	}}
	cands := []candidates.Candidate{{
		Peripheral:  "events",
		Aggregation: agg.Avg,
		Source:      candidates.ValueSource{DataUsed: split.NumericalInput, ColumnName: "flat"},
	}}

	calls := 0
	validate := func() float64 {
		calls++
		return 1.0 // never improves
	}

	var ensemble boosting.Ensemble
	err = boosting.RunRounds(context.Background(), &ensemble, 0, cands, builder, lf, boosting.Params{
		MaxRounds:              10,
		EarlyStoppingRounds:    2,
		EarlyStoppingTolerance: 1e-9,
		Fitter: fitter.Params{
			MaxLengthProbe: 1,
			MaxLength:      1,
			NumTrees:       1,
			Regularization: 1e9, // no candidate ever clears this, so the fitter stops the loop itself
			GridFactor:     1,
			MaxWorkers:     1,
		},
	}, validate, nil)
	require.NoError(t, err)
	require.Empty(t, ensemble.Contributions)
	require.Zero(t, calls, "validate should never be reached when the fitter finds nothing viable")
}
