package interagg_test

import (
	"testing"

	"relfit/internal/interagg"

	"github.com/stretchr/testify/require"
)

func TestCellAvgAndVar(t *testing.T) {
	c := interagg.NewCell()
	for _, x := range []float64{2, 4, 6} {
		c.AddRow(x)
	}
	require.Equal(t, 3, c.Count())
	require.InDelta(t, 4, c.Avg(), 1e-9)
	require.InDelta(t, 8.0/3.0, c.Var(), 1e-9)
}

func TestCellReplaceRowIsEquivalentToRemoveThenAdd(t *testing.T) {
	a := interagg.NewCell()
	a.AddRow(1)
	a.AddRow(5)
	a.ReplaceRow(5, 10)

	b := interagg.NewCell()
	b.AddRow(1)
	b.AddRow(10)

	require.Equal(t, b.Count(), a.Count())
	require.InDelta(t, b.Sum(), a.Sum(), 1e-9)
	require.InDelta(t, b.Var(), a.Var(), 1e-9)
}

func TestCellCommitRevert(t *testing.T) {
	c := interagg.NewCell()
	c.AddRow(1)
	c.Commit()
	c.AddRow(100)
	require.Equal(t, 2, c.Count())

	c.Revert()
	require.Equal(t, 1, c.Count())
	require.InDelta(t, 1, c.Sum(), 1e-9)
}

func TestCellSkewnessZeroForUniformValues(t *testing.T) {
	c := interagg.NewCell()
	c.AddRow(5)
	c.AddRow(5)
	c.AddRow(5)
	require.Equal(t, 0.0, c.Skewness())
}

func TestTableUpdateSamplesCallsBatchCallbackOnce(t *testing.T) {
	table := interagg.NewTable()
	calls := 0
	table.UpdateSamples([]interagg.Update{
		{Key: 1, Next: 3},
		{Key: 1, Next: 4},
		{Key: 2, Next: 10},
	}, func() { calls++ })

	require.Equal(t, 1, calls)
	require.Equal(t, 2, table.Cell(1).Count())
	require.InDelta(t, 7, table.Cell(1).Sum(), 1e-9)
	require.Equal(t, 1, table.Cell(2).Count())
}

func TestTableCommitAllRevertAll(t *testing.T) {
	table := interagg.NewTable()
	table.Cell(1).AddRow(5)
	table.CommitAll()
	table.Cell(1).AddRow(50)

	table.RevertAll()
	require.Equal(t, 1, table.Cell(1).Count())
}
