package loss_test

import (
	"math"
	"testing"

	"relfit/internal/loss"

	"github.com/stretchr/testify/require"
)

func TestRegressionGradientHessian(t *testing.T) {
	f, err := loss.New(loss.Regression, []float64{1, 2, 3}, []float64{0, 0, 0}, 0)
	require.NoError(t, err)
	require.Equal(t, -1.0, f.Gradient(0))
	require.Equal(t, 1.0, f.Hessian(0))
}

func TestClassificationGradientHessian(t *testing.T) {
	f, err := loss.New(loss.Classification, []float64{1}, []float64{0}, 0)
	require.NoError(t, err)
	require.InDelta(t, 0.5-1, f.Gradient(0), 1e-9)
	require.InDelta(t, 0.25, f.Hessian(0), 1e-9)
}

func TestTwoPartitionWeightsAndReductionAreNonNegative(t *testing.T) {
	f, err := loss.New(loss.Regression, []float64{5, 5, 5}, []float64{0, 0, 0}, 1)
	require.NoError(t, err)
	rows := []int{0, 1, 2}
	w := f.TwoPartitionWeights(rows)
	require.Greater(t, w, 0.0) // under-predicting positive target nudges weight up
	require.GreaterOrEqual(t, f.Reduction(rows, w), 0.0)
	// Any other weight should reduce loss less than the closed-form optimum.
	require.Greater(t, f.Reduction(rows, w), f.Reduction(rows, w+10))
}

func TestThreePartitionWeightsSymmetricCase(t *testing.T) {
	// yhat - y gives g = -1, 0, +1 across (pre, inside, post) with h=1
	// each and lambda=0: a clean symmetric solve (see package test
	// derivation in review notes).
	f, err := loss.New(loss.Regression, []float64{1, 0, -1}, []float64{0, 0, 0}, 0)
	require.NoError(t, err)
	pre, inside, post := []int{0}, []int{1}, []int{2}

	wIntercept, wGreater, wSmaller, err := f.ThreePartitionWeights(pre, inside, post, false, false)
	require.NoError(t, err)
	require.InDelta(t, 0, wIntercept, 1e-9)
	require.InDelta(t, 1, wGreater, 1e-9)
	require.InDelta(t, -1, wSmaller, 1e-9)
}

func TestThreePartitionAvgFirstNullFallsBackTo2x2(t *testing.T) {
	f, err := loss.New(loss.Regression, []float64{1, 0, -1}, []float64{0, 0, 0}, 0)
	require.NoError(t, err)
	wIntercept, wGreater, wSmaller, err := f.ThreePartitionWeights([]int{0}, []int{1}, []int{2}, true, false)
	require.NoError(t, err)
	require.True(t, math.IsNaN(wGreater))
	require.False(t, math.IsNaN(wIntercept))
	require.False(t, math.IsNaN(wSmaller))
}

func TestCommitRevertRestoresExactState(t *testing.T) {
	f, err := loss.New(loss.Regression, []float64{1, 2}, []float64{0, 0}, 0)
	require.NoError(t, err)
	f.Commit()
	before := f.YHat(0)

	f.ApplyUpdate([]int{0}, 5)
	require.NotEqual(t, before, f.YHat(0))

	f.RevertToCommit()
	require.Equal(t, before, f.YHat(0))
	require.Equal(t, -1.0, f.Gradient(0)) // g recomputed after revert
}

func TestUpdateRateScalesTreeContribution(t *testing.T) {
	f, err := loss.New(loss.Regression, []float64{10, 10}, []float64{0, 0}, 0)
	require.NoError(t, err)
	eta, err := f.UpdateRate([]float64{1, 1})
	require.NoError(t, err)
	require.Greater(t, eta, 0.0)
}

func TestUpdateRateLengthMismatch(t *testing.T) {
	f, err := loss.New(loss.Regression, []float64{10, 10}, []float64{0, 0}, 0)
	require.NoError(t, err)
	_, err = f.UpdateRate([]float64{1})
	require.Error(t, err)
}
