package fitter_test

import (
	"context"
	"testing"

	"relfit/internal/agg"
	"relfit/internal/candidates"
	"relfit/internal/fitter"
	"relfit/internal/loss"
	"relfit/internal/split"
	"relfit/internal/tree"

	"github.com/stretchr/testify/require"
)

// fakeBuilder maps each candidate's ColumnName to one of a fixed set
// of numeric feature vectors, so Fit has something concrete to probe
// and refit without needing the real dataframe/match machinery.
type fakeBuilder struct {
	y        []float64
	features map[string][]float64
}

func (b fakeBuilder) BuildDataset(c candidates.Candidate) (*tree.Dataset, error) {
	values, ok := b.features[c.Source.ColumnName]
	if !ok {
		return nil, errNoSuchColumn(c.Source.ColumnName)
	}
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

type errNoSuchColumn string

func (e errNoSuchColumn) Error() string { return "fitter_test: no such column " + string(e) }

func candidatesOver(names ...string) []candidates.Candidate {
	out := make([]candidates.Candidate, len(names))
	for i, n := range names {
		out[i] = candidates.Candidate{
			Peripheral:  "events",
			Aggregation: agg.Avg,
			Source:      candidates.ValueSource{DataUsed: split.NumericalInput, ColumnName: n},
		}
	}
	return out
}

func TestFitSelectsTopScoringCandidates(t *testing.T) {
	y := []float64{0, 0, 0, 0, 10, 10, 10, 10}
	yhat0 := make([]float64, len(y))
	lf, err := loss.New(loss.Regression, y, yhat0, 0.01)
	require.NoError(t, err)

	builder := fakeBuilder{
		y: y,
		features: map[string][]float64{
			"predictive":   {0, 0, 0, 0, 10, 10, 10, 10},
			"uninformative": {1, 2, 3, 4, 1, 2, 3, 4},
		},
	}

	results, err := fitter.Fit(context.Background(), candidatesOver("predictive", "uninformative"), builder, lf, fitter.Params{
		MaxLengthProbe: 1,
		MaxLength:      2,
		NumTrees:       1,
		Regularization: 1e-6,
		GridFactor:     1,
		MaxWorkers:     2,
	}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "predictive", results[0].Candidate.Source.ColumnName)
	require.Greater(t, len(results[0].Tree.Nodes), 1)
}

func TestFitReturnsNoResultsWhenNothingClearsRegularization(t *testing.T) {
	y := []float64{1, 2, 3, 4, 5, 6}
	yhat0 := make([]float64, len(y))
	lf, err := loss.New(loss.Regression, y, yhat0, 0.01)
	require.NoError(t, err)

	builder := fakeBuilder{
		y: y,
		features: map[string][]float64{
			"flat": {1, 1, 1, 1, 1, 1},
		},
	}

	results, err := fitter.Fit(context.Background(), candidatesOver("flat"), builder, lf, fitter.Params{
		MaxLengthProbe: 1,
		MaxLength:      1,
		NumTrees:       5,
		Regularization: 1e6,
		GridFactor:     1,
		MaxWorkers:     1,
	}, nil)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestFitCapsResultsAtNumTrees(t *testing.T) {
	y := []float64{0, 0, 10, 10}
	yhat0 := make([]float64, len(y))
	lf, err := loss.New(loss.Regression, y, yhat0, 0.01)
	require.NoError(t, err)

	builder := fakeBuilder{
		y: y,
		features: map[string][]float64{
			"a": {0, 0, 10, 10},
			"b": {0, 0, 10, 10},
			"c": {0, 0, 10, 10},
		},
	}

	results, err := fitter.Fit(context.Background(), candidatesOver("a", "b", "c"), builder, lf, fitter.Params{
		MaxLengthProbe: 1,
		MaxLength:      1,
		NumTrees:       2,
		Regularization: 1e-9,
		GridFactor:     1,
		MaxWorkers:     4,
	}, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
}
