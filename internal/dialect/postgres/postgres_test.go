package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"relfit/internal/agg"
	"relfit/internal/dialect"
	"relfit/internal/dialect/postgres"
)

func TestQuoteIdentifierUsesDoubleQuotes(t *testing.T) {
	g := postgres.New().Generator()
	require.Equal(t, `"my col"`, g.QuoteIdentifier("my col"))
}

func TestAggregationSupportsMedianNatively(t *testing.T) {
	g := postgres.New().Generator()
	sql, err := g.Aggregation(agg.Median, "t.x", "")
	require.NoError(t, err)
	require.Contains(t, sql, "PERCENTILE_CONT(0.5)")
}

func TestMakeTimeStampDiffUsesEpochExtract(t *testing.T) {
	g := postgres.New().Generator()
	sql := g.MakeTimeStampDiff("out.ts", "in.ts", 90, true)
	require.Contains(t, sql, "EXTRACT(EPOCH FROM")
	require.Contains(t, sql, ">= 1.5") // 90 seconds = 1.5 minutes
}

func TestDialectRegistersItself(t *testing.T) {
	d, err := dialect.Get(dialect.PostgreSQL)
	require.NoError(t, err)
	require.Equal(t, dialect.PostgreSQL, d.Name())
}
