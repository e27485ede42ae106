package match_test

import (
	"testing"

	"relfit/internal/column"
	"relfit/internal/dataframe"
	"relfit/internal/encoding"
	"relfit/internal/match"
	"relfit/internal/schema"

	"github.com/stretchr/testify/require"
)

func buildTables(t *testing.T) (*dataframe.DataFrame, *dataframe.DataFrame) {
	t.Helper()
	jkEnc := encoding.New()

	pop := dataframe.New("pop", nil, jkEnc, nil)
	require.NoError(t, pop.AddJoinKey(column.New("jk", []int64{jkEnc.Intern("1"), jkEnc.Intern("2")})))
	require.NoError(t, pop.AddTimeStamp(column.New("ts", []float64{10, 10})))

	perip := dataframe.New("events", nil, jkEnc, nil)
	require.NoError(t, perip.AddJoinKey(column.New("jk", []int64{
		jkEnc.Intern("1"), jkEnc.Intern("1"), jkEnc.Intern("1"), jkEnc.Intern("2"),
	})))
	require.NoError(t, perip.AddTimeStamp(column.New("ts", []float64{5, 10, 15, 3})))
	require.NoError(t, perip.AddTimeStamp(column.New("horizon", []float64{20, 20, 20, 20})))

	return pop, perip
}

func TestCandidatesFiltersFutureAndUnmatchedJoinKey(t *testing.T) {
	pop, perip := buildTables(t)
	edge := &schema.Child{
		PopulationJoinKey:   "jk",
		PeripheralJoinKey:   "jk",
		PopulationTimeStamp: "ts",
		PeripheralTimeStamp: "ts",
	}

	ms, err := match.Candidates(pop, 0, perip, edge)
	require.NoError(t, err)
	// row 2 (ts=15) is strictly after pop ts=10: excluded.
	// row 1 (ts=10) is same ts as pop: excluded by default (allow_lagged_targets=false).
	require.Equal(t, []match.Match{{IxOutput: 0, IxInput: 0, TSDiff: 5}}, ms)
}

func TestCandidatesAllowLaggedTargetsIncludesSameTimestamp(t *testing.T) {
	pop, perip := buildTables(t)
	edge := &schema.Child{
		PopulationJoinKey:   "jk",
		PeripheralJoinKey:   "jk",
		PopulationTimeStamp: "ts",
		PeripheralTimeStamp: "ts",
		AllowLaggedTargets:  true,
	}

	ms, err := match.Candidates(pop, 0, perip, edge)
	require.NoError(t, err)
	require.Equal(t, []match.Match{
		{IxOutput: 0, IxInput: 0, TSDiff: 5},
		{IxOutput: 0, IxInput: 1, TSDiff: 0},
	}, ms)
}

func TestCandidatesUpperTimeStampExcludesAtOrBeforePop(t *testing.T) {
	pop, perip := buildTables(t)
	// Make the upper ts equal to pop's ts for row 0's matches: it must be
	// strictly greater than pop.ts to keep the candidate.
	require.NoError(t, perip.AddTimeStamp(column.New("tight_horizon", []float64{10, 10, 10, 10})))
	edge := &schema.Child{
		PopulationJoinKey:   "jk",
		PeripheralJoinKey:   "jk",
		PopulationTimeStamp: "ts",
		PeripheralTimeStamp: "ts",
		UpperTimeStamp:      "tight_horizon",
	}

	ms, err := match.Candidates(pop, 0, perip, edge)
	require.NoError(t, err)
	require.Empty(t, ms)
}

func TestWithinSchemaCoversEveryPopulationRow(t *testing.T) {
	pop, perip := buildTables(t)
	tables := map[string]*dataframe.DataFrame{"pop": pop, "events": perip}
	root := schema.New("pop")
	edge := root.AddChild("events", schema.Child{
		PopulationJoinKey:   "jk",
		PeripheralJoinKey:   "jk",
		PopulationTimeStamp: "ts",
		PeripheralTimeStamp: "ts",
	})

	result, err := match.WithinSchema(root, tables)
	require.NoError(t, err)
	require.Equal(t, []match.Match{
		{IxOutput: 0, IxInput: 0, TSDiff: 5},
		{IxOutput: 1, IxInput: 3, TSDiff: 7},
	}, result[edge])
}
