package tree_test

import (
	"math"
	"testing"

	"relfit/internal/agg"
	"relfit/internal/loss"
	"relfit/internal/split"
	"relfit/internal/tree"

	"github.com/stretchr/testify/require"
)

func buildDataset(values []float64) *tree.Dataset {
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
			{DataUsed: split.NumericalInput, Names: []string{"x"}, Values: rows, IsNaNVariant: split.NumericalInputIsNaN},
		},
	}
}

func TestFitSeparatesTwoClustersByThreshold(t *testing.T) {
	x := []float64{0, 0, 0, 0, 10, 10, 10, 10}
	y := []float64{0, 0, 0, 0, 10, 10, 10, 10}
	yhat0 := make([]float64, len(y))

	lf, err := loss.New(loss.Regression, y, yhat0, 0.01)
	require.NoError(t, err)

	ds := buildDataset(x)
	tr := tree.Fit(ds, lf, tree.FitParams{MaxDepth: 3, MinNumSamples: 1, Regularization: 1e-6, GridFactor: 1})

	require.Greater(t, len(tr.Nodes), 1, "tree should have split at least once")

	predLow, err := tr.Predict(ds, 0)
	require.NoError(t, err)
	predHigh, err := tr.Predict(ds, 4)
	require.NoError(t, err)
	require.Less(t, predLow, predHigh)
}

func TestFitStopsAtMaxDepthZero(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{0, 1, 2, 3}
	yhat0 := make([]float64, len(y))
	lf, err := loss.New(loss.Regression, y, yhat0, 0.1)
	require.NoError(t, err)

	ds := buildDataset(x)
	tr := tree.Fit(ds, lf, tree.FitParams{MaxDepth: 0, MinNumSamples: 1, Regularization: 0, GridFactor: 1})
	require.Len(t, tr.Nodes, 1)
	require.True(t, tr.Nodes[0].IsLeaf)
}

func TestPredictHandlesNaNViaIsNaNSplit(t *testing.T) {
	x := []float64{math.NaN(), math.NaN(), 1, 2, 3, 4}
	y := []float64{100, 100, 1, 2, 3, 4}
	yhat0 := make([]float64, len(y))
	lf, err := loss.New(loss.Regression, y, yhat0, 0.01)
	require.NoError(t, err)

	ds := buildDataset(x)
	tr := tree.Fit(ds, lf, tree.FitParams{MaxDepth: 2, MinNumSamples: 1, Regularization: 1e-9, GridFactor: 1})

	predNaN, err := tr.Predict(ds, 0)
	require.NoError(t, err)
	predOther, err := tr.Predict(ds, 2)
	require.NoError(t, err)
	require.NotEqual(t, predNaN, predOther)
}

func TestFitPopulatesLeafWeightsWhenColumnCarriesSignal(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}
	y := []float64{2, 4, 6, 8, 10, 12} // y = 2*x, a single leaf's linear term should pick this up
	yhat0 := make([]float64, len(y))
	lf, err := loss.New(loss.Regression, y, yhat0, 1e-6)
	require.NoError(t, err)

	ds := buildDataset(x)
	tr := tree.Fit(ds, lf, tree.FitParams{MaxDepth: 0, MinNumSamples: 1, Regularization: 0, GridFactor: 1})

	require.Len(t, tr.Nodes, 1)
	require.NotEmpty(t, tr.Nodes[0].Weights, "a leaf over a column correlated with the target should fit a non-empty weight vector")
	require.Equal(t, split.NumericalInput, tr.Nodes[0].Weights[0].DataUsed)
	require.Equal(t, -1, tr.Nodes[0].Weights[0].OtherColumnIndex)

	predLow, err := tr.Predict(ds, 0)
	require.NoError(t, err)
	predHigh, err := tr.Predict(ds, 5)
	require.NoError(t, err)
	require.Greater(t, predHigh, predLow, "the fitted weight should make Predict track x")
}

func TestPredictIgnoresNaNWeightInputs(t *testing.T) {
	x := []float64{1, 2, math.NaN(), 4}
	y := []float64{1, 2, 3, 4}
	yhat0 := make([]float64, len(y))
	lf, err := loss.New(loss.Regression, y, yhat0, 1e-6)
	require.NoError(t, err)

	ds := buildDataset(x)
	tr := tree.Fit(ds, lf, tree.FitParams{MaxDepth: 0, MinNumSamples: 1, Regularization: 0, GridFactor: 1})

	_, err = tr.Predict(ds, 2) // row with a NaN weight input must not poison the prediction
	require.NoError(t, err)
}

func TestAggregateFoldsByCandidateAggregation(t *testing.T) {
	x := []float64{3, 5, 5}
	y := []float64{3, 5, 5}
	yhat0 := make([]float64, len(y))
	lf, err := loss.New(loss.Regression, y, yhat0, 1e-6)
	require.NoError(t, err)

	ds := &tree.Dataset{
		LossRows: []int{0, 0, 0}, // every match belongs to population row 0
		Numeric: []tree.NumericGroup{
			{DataUsed: split.NumericalInput, Names: []string{"x"}, Values: [][]float64{{3}, {5}, {5}}},
		},
	}
	tr := tree.Fit(ds, lf, tree.FitParams{MaxDepth: 0, MinNumSamples: 1, Regularization: 0, GridFactor: 1})

	sum, err := tree.Aggregate(ds, tr, agg.Sum, 1)
	require.NoError(t, err)
	count, err := tree.Aggregate(ds, tr, agg.Count, 1)
	require.NoError(t, err)
	require.Equal(t, float64(3), count[0])
	require.NotEqual(t, sum[0], count[0], "SUM and COUNT over the same matches must diverge")
}
