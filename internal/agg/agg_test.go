package agg_test

import (
	"testing"

	"relfit/internal/agg"

	"github.com/stretchr/testify/require"
)

func TestAllContainsEveryDeclaredConstantOnce(t *testing.T) {
	all := agg.All()
	seen := map[agg.Kind]bool{}
	for _, k := range all {
		require.False(t, seen[k], "duplicate kind %s", k)
		seen[k] = true
		require.NoError(t, k.Validate())
	}
	require.Len(t, all, 42)
}

func TestNeedsTimeStampCoversFirstLastAndEWMA(t *testing.T) {
	require.True(t, agg.First.NeedsTimeStamp())
	require.True(t, agg.Last.NeedsTimeStamp())
	require.True(t, agg.EWMA7d.NeedsTimeStamp())
	require.False(t, agg.Sum.NeedsTimeStamp())
}

func TestMomentAccumulatorFlags(t *testing.T) {
	require.True(t, agg.Stddev.NeedsSum())
	require.True(t, agg.Stddev.NeedsSumSquared())
	require.False(t, agg.Stddev.NeedsSumCubed())
	require.True(t, agg.Skew.NeedsSumCubed())
	require.True(t, agg.Kurtosis.NeedsSumCubed())
}

func TestQuantileValue(t *testing.T) {
	p, ok := agg.Q95.QuantileValue()
	require.True(t, ok)
	require.InDelta(t, 0.95, p, 1e-9)

	_, ok = agg.Sum.QuantileValue()
	require.False(t, ok)
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	require.Error(t, agg.Kind("NOT_A_KIND").Validate())
}

func TestCountDoesNotRequireNumericInput(t *testing.T) {
	require.False(t, agg.Count.RequiresNumericInput())
	require.True(t, agg.Avg.RequiresNumericInput())
}
