package agg_test

import (
	"math"
	"testing"

	"relfit/internal/agg"

	"github.com/stretchr/testify/require"
)

// TestReduceSumOverTimeWindowedMatches pins spec.md §8 scenario 1:
// population of 3 rows matched against a 5-row peripheral, SUM over
// every match with perip.ts <= pop.ts, expects [3, 15, 16].
func TestReduceSumOverTimeWindowedMatches(t *testing.T) {
	// pop row 0 (ts=10): matches x=1 (ts=5), x=2 (ts=8) -> sum 3
	// pop row 1 (ts=20): matches x=1,2,4,8 (ts=5,8,12,18) -> sum 15
	// pop row 2 (ts=15): matches x=16 (ts=9) -> sum 16
	got := []float64{
		agg.Sum.Reduce([]float64{1, 2}, []float64{5, 2}),
		agg.Sum.Reduce([]float64{1, 2, 4, 8}, []float64{15, 12, 8, 2}),
		agg.Sum.Reduce([]float64{16}, []float64{6}),
	}
	require.Equal(t, []float64{3, 15, 16}, got)
}

// TestReduceCountOverEmptyMatchSetIsZero pins spec.md §8 scenario 2.
func TestReduceCountOverEmptyMatchSetIsZero(t *testing.T) {
	require.Equal(t, 0.0, agg.Count.Reduce(nil, nil))
	require.Equal(t, 0.0, agg.Count.Reduce([]float64{}, []float64{}))
}

// TestReduceCountDistinctExcludesMissing pins spec.md §8 scenario 3:
// COUNT DISTINCT over categorical values [A,A,B,C,NULL] returns 3, the
// NULL entry excluded rather than counted as its own distinct value.
// Categorical ids reaching Reduce carry NaN for a missing value, the
// same sentinel tree.Predict and sqlgen already treat as absent.
func TestReduceCountDistinctExcludesMissing(t *testing.T) {
	a, b, c := 1.0, 2.0, 3.0 // interned ids standing in for "A", "B", "C"
	xs := []float64{a, a, b, c, math.NaN()}

	require.Equal(t, 3.0, agg.CountDistinct.Reduce(xs, nil))
}

func TestReduceCountMinusDistinctExcludesMissing(t *testing.T) {
	a, b, c := 1.0, 2.0, 3.0
	xs := []float64{a, a, b, c, math.NaN()}

	// count=4 (NaN dropped), distinct=3 -> 1
	require.Equal(t, 1.0, agg.CountMinusDistinct.Reduce(xs, nil))
}

func TestReduceSumAndCountDivergeOverSameMatches(t *testing.T) {
	xs := []float64{3, 5, 5}
	require.Equal(t, 13.0, agg.Sum.Reduce(xs, nil))
	require.Equal(t, 3.0, agg.Count.Reduce(xs, nil))
	require.NotEqual(t, agg.Sum.Reduce(xs, nil), agg.Count.Reduce(xs, nil))
}

func TestReduceAvgAndMinMax(t *testing.T) {
	xs := []float64{2, 4, 6}
	require.InDelta(t, 4, agg.Avg.Reduce(xs, nil), 1e-9)
	require.Equal(t, 2.0, agg.Min.Reduce(xs, nil))
	require.Equal(t, 6.0, agg.Max.Reduce(xs, nil))
}

// TestReduceFirstLastUseTSDiffNotIterationOrder asserts FIRST/LAST
// derive from tsDiff (largest = oldest = FIRST, smallest = most recent
// = LAST), not from xs's positional order.
func TestReduceFirstLastUseTSDiffNotIterationOrder(t *testing.T) {
	xs := []float64{10, 20, 30}
	tsDiff := []float64{5, 50, 1} // row 1 is oldest, row 2 is most recent
	require.Equal(t, 20.0, agg.First.Reduce(xs, tsDiff))
	require.Equal(t, 30.0, agg.Last.Reduce(xs, tsDiff))
}
