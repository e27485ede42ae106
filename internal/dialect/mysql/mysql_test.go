package mysql_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"relfit/internal/agg"
	"relfit/internal/dialect"
	"relfit/internal/dialect/mysql"
)

func TestQuoteIdentifierDoublesBackticks(t *testing.T) {
	g := mysql.New().Generator()
	require.Equal(t, "`my``col`", g.QuoteIdentifier("my`col"))
}

func TestQuoteStringEscapes(t *testing.T) {
	g := mysql.New().Generator()
	require.Equal(t, `'it''s'`, g.QuoteString("it's"))
}

func TestAggregationRendersSumAndCount(t *testing.T) {
	g := mysql.New().Generator()
	sql, err := g.Aggregation(agg.Sum, "t.x", "")
	require.NoError(t, err)
	require.Equal(t, "SUM(t.x)", sql)

	sql, err = g.Aggregation(agg.Count, "t.x", "")
	require.NoError(t, err)
	require.Equal(t, "COUNT(t.x)", sql)
}

func TestAggregationRejectsMedianNatively(t *testing.T) {
	g := mysql.New().Generator()
	_, err := g.Aggregation(agg.Median, "t.x", "")
	require.Error(t, err)
}

func TestMakeTimeStampDiffPicksDayUnitForMultiDayWindow(t *testing.T) {
	g := mysql.New().Generator()
	sql := g.MakeTimeStampDiff("out.ts", "in.ts", 3*86400, true)
	require.Equal(t, "TIMESTAMPDIFF(DAY, in.ts, out.ts) >= 3", sql)
}

func TestMakeJoinsAndTimeStamps(t *testing.T) {
	g := mysql.New().Generator()
	require.Equal(t, "JOIN events ON pop.jk = events.jk", g.MakeJoins("pop", "events", "jk", "jk"))
	require.Equal(t, "events.ts <= pop.ts AND pop.ts < events.upper_ts", g.MakeTimeStamps("pop", "events", "ts", "ts", "upper_ts"))
}

func TestDialectRegistersItself(t *testing.T) {
	d, err := dialect.Get(dialect.MySQL)
	require.NoError(t, err)
	require.Equal(t, dialect.MySQL, d.Name())
}
