package split_test

import (
	"testing"

	"relfit/internal/split"

	"github.com/stretchr/testify/require"
)

func TestEvaluateNumericalBranchesOnCriticalValue(t *testing.T) {
	s := &split.Split{DataUsed: split.NumericalInput, ColumnIndex: 0, CriticalValue: 10, HasCriticalValue: true}
	require.True(t, s.EvaluateNumerical(10))
	require.True(t, s.EvaluateNumerical(11))
	require.False(t, s.EvaluateNumerical(9.999))
}

func TestEvaluateCategoryMembership(t *testing.T) {
	s := &split.Split{DataUsed: split.CategoricalInput, CategoryIDs: map[int64]struct{}{1: {}, 3: {}}}
	require.True(t, s.EvaluateCategory(1))
	require.False(t, s.EvaluateCategory(2))
}

func TestEvaluateWordsAnyMatch(t *testing.T) {
	s := &split.Split{DataUsed: split.TextInput, WordIDs: map[int64]struct{}{5: {}}}
	require.True(t, s.EvaluateWords([]int64{1, 5}))
	require.False(t, s.EvaluateWords([]int64{1, 2}))
}

func TestLessOrdersByDataUsedRankThenColumn(t *testing.T) {
	a := split.Split{DataUsed: split.NumericalInput, ColumnIndex: 2}
	b := split.Split{DataUsed: split.NumericalInput, ColumnIndex: 1}
	require.True(t, split.Less(b, a))
	require.False(t, split.Less(a, b))

	c := split.Split{DataUsed: split.DiscreteInput, ColumnIndex: 0}
	require.True(t, split.Less(a, c)) // NumericalInput ranks before DiscreteInput
}
