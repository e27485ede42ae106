package metrics_test

import (
	"context"
	"testing"

	"relfit/internal/metrics"

	"github.com/stretchr/testify/require"
)

// spec.md §4.L names three fixed points on the AUC curve: a perfect
// predictor scores 1.0, an inverse predictor scores 0.0, and a constant
// predictor scores 0.5.

func TestAUCPerfectPredictorIsOne(t *testing.T) {
	m, err := metrics.New(metrics.AUCKind)
	require.NoError(t, err)

	yhat := cols(0.9, 0.8, 0.2, 0.1)
	y := cols(1, 1, 0, 0)
	res, err := m.Score(context.Background(), yhat, y, 0)
	require.NoError(t, err)
	require.InDelta(t, 1.0, res.AUC[0], 1e-9)
}

func TestAUCInversePredictorIsZero(t *testing.T) {
	m, err := metrics.New(metrics.AUCKind)
	require.NoError(t, err)

	// every positive ranks below every negative.
	yhat := cols(0.1, 0.2, 0.8, 0.9)
	y := cols(1, 1, 0, 0)
	res, err := m.Score(context.Background(), yhat, y, 0)
	require.NoError(t, err)
	require.InDelta(t, 0.0, res.AUC[0], 1e-9)
}

func TestAUCConstantPredictorIsOneHalf(t *testing.T) {
	m, err := metrics.New(metrics.AUCKind)
	require.NoError(t, err)

	// every row ties at the same prediction value, so there is exactly
	// one non-trivial threshold group spanning the whole dataset.
	yhat := cols(0.5, 0.5, 0.5, 0.5)
	y := cols(1, 0, 1, 0)
	res, err := m.Score(context.Background(), yhat, y, 0)
	require.NoError(t, err)
	require.InDelta(t, 0.5, res.AUC[0], 1e-9)
}

func TestAUCCurvesStartAtOrigin(t *testing.T) {
	m, err := metrics.New(metrics.AUCKind)
	require.NoError(t, err)

	yhat := cols(0.9, 0.1)
	y := cols(1, 0)
	res, err := m.Score(context.Background(), yhat, y, 0)
	require.NoError(t, err)
	require.Equal(t, 0.0, res.TruePositiveRate[0][0])
	require.Equal(t, 0.0, res.FalsePositiveRate[0][0])
}

func TestAUCDownsamplesLongCurves(t *testing.T) {
	m, err := metrics.New(metrics.AUCKind)
	require.NoError(t, err)

	n := 500
	yhat := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		yhat[i] = float64(n - i)
		if i%2 == 0 {
			y[i] = 1
		}
	}
	res, err := m.Score(context.Background(), cols(yhat...), cols(y...), 0)
	require.NoError(t, err)
	require.LessOrEqual(t, len(res.TruePositiveRate[0]), 200)
}
