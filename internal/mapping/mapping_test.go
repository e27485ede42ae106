package mapping_test

import (
	"math"
	"testing"

	"relfit/internal/column"
	"relfit/internal/dataframe"
	"relfit/internal/encoding"
	"relfit/internal/mapping"
	"relfit/internal/match"
	"relfit/internal/schema"

	"github.com/stretchr/testify/require"
)

// buildOneLevel wires a 3-row population to a 4-row peripheral where
// every events row matches exactly one population row (one jk/ts value
// each, no fan-in), so each observation's target contribution is
// unambiguous: events row 0 resolves to population row 0, rows 1 and 2
// to population row 1, and row 3 to population row 2.
func buildOneLevel(t *testing.T) (*schema.Placeholder, map[string]*dataframe.DataFrame, map[*schema.Child][]match.Match) {
	t.Helper()
	jkEnc := encoding.New()
	catEnc := encoding.New()

	pop := dataframe.New("pop", catEnc, jkEnc, nil)
	require.NoError(t, pop.AddJoinKey(column.New("jk", []int64{jkEnc.Intern("1"), jkEnc.Intern("2"), jkEnc.Intern("3")})))
	require.NoError(t, pop.AddTimeStamp(column.New("ts", []float64{10, 10, 10})))

	events := dataframe.New("events", catEnc, jkEnc, nil)
	require.NoError(t, events.AddJoinKey(column.New("jk", []int64{
		jkEnc.Intern("1"), jkEnc.Intern("2"), jkEnc.Intern("2"), jkEnc.Intern("3"),
	})))
	require.NoError(t, events.AddTimeStamp(column.New("ts", []float64{5, 5, 5, 5})))
	require.NoError(t, events.AddCategorical(column.New("category", []int64{
		catEnc.Intern("A"), catEnc.Intern("B"), catEnc.Intern("B"), catEnc.Intern("C"),
	})))

	tables := map[string]*dataframe.DataFrame{"pop": pop, "events": events}
	root := schema.New("pop")
	edge := root.AddChild("events", schema.Child{
		PopulationJoinKey:   "jk",
		PeripheralJoinKey:   "jk",
		PopulationTimeStamp: "ts",
		PeripheralTimeStamp: "ts",
	})

	matches, err := match.WithinSchema(root, tables)
	require.NoError(t, err)
	// row 0 (jk=1) -> events row 0 (category A).
	// row 1 (jk=2) -> events rows 1,2 (category B twice).
	// row 2 (jk=3) -> events row 3 (category C).
	require.Equal(t, []match.Match{
		{IxOutput: 0, IxInput: 0, TSDiff: 5},
		{IxOutput: 1, IxInput: 1, TSDiff: 5},
		{IxOutput: 1, IxInput: 2, TSDiff: 5},
		{IxOutput: 2, IxInput: 3, TSDiff: 5},
	}, matches[edge])
	return root, tables, matches
}

func TestBuildComputesTargetMeanPerCategory(t *testing.T) {
	root, tables, matches := buildOneLevel(t)
	targets := [][]float64{{100, 200, 300}}

	set, err := mapping.Build(root, tables, matches, targets, 1)
	require.NoError(t, err)

	tablesForEvents := set.Categorical["events"]
	require.Len(t, tablesForEvents, 1)
	tbl := tablesForEvents[0]
	require.Equal(t, "category", tbl.ColumnName)

	events, err := tables["events"].Categorical("category")
	require.NoError(t, err)
	raw := events.Raw()

	// category A seen once, via pop row 0 -> mean 100.
	meansA, ok := tbl.Lookup(raw[0])
	require.True(t, ok)
	require.InDelta(t, 100, meansA[0], 1e-9)

	// category B seen twice, both via pop row 1 (target 200) -> mean still 200.
	meansB, ok := tbl.Lookup(raw[1])
	require.True(t, ok)
	require.InDelta(t, 200, meansB[0], 1e-9)
}

func TestLookupDropsEntriesBelowMinDF(t *testing.T) {
	root, tables, matches := buildOneLevel(t)
	targets := [][]float64{{100, 200, 300}}

	set, err := mapping.Build(root, tables, matches, targets, 2)
	require.NoError(t, err)
	tbl := set.Categorical["events"][0]

	events, err := tables["events"].Categorical("category")
	require.NoError(t, err)
	raw := events.Raw()

	// category B was observed twice -> survives min_df=2.
	meansB, okB := tbl.Lookup(raw[1])
	require.True(t, okB)
	require.InDelta(t, 200, meansB[0], 1e-9)

	// category A and C were each observed once -> dropped at min_df=2.
	_, okA := tbl.Lookup(raw[0])
	require.False(t, okA)
	_, okC := tbl.Lookup(raw[3])
	require.False(t, okC)
}

func TestTransformProducesNamedMappingColumns(t *testing.T) {
	root, tables, matches := buildOneLevel(t)
	targets := [][]float64{{100, 200, 300}}

	set, err := mapping.Build(root, tables, matches, targets, 1)
	require.NoError(t, err)
	tbl := set.Categorical["events"][0]

	events, err := tables["events"].Categorical("category")
	require.NoError(t, err)
	cols, names := tbl.Transform(events.Raw())

	require.Len(t, cols, 1)
	require.Equal(t, []string{"category__mapping, target 0"}, names)
	require.InDelta(t, 100, cols[0].MustAt(0), 1e-9)
	require.InDelta(t, 200, cols[0].MustAt(1), 1e-9)
	require.InDelta(t, 200, cols[0].MustAt(2), 1e-9)
	require.InDelta(t, 300, cols[0].MustAt(3), 1e-9)
}

func TestTransformEmitsNaNForUnseenCategory(t *testing.T) {
	root, tables, matches := buildOneLevel(t)
	targets := [][]float64{{100, 200, 300}}

	set, err := mapping.Build(root, tables, matches, targets, 100) // min_df no candidate clears
	require.NoError(t, err)
	tbl := set.Categorical["events"][0]

	events, err := tables["events"].Categorical("category")
	require.NoError(t, err)
	cols, _ := tbl.Transform(events.Raw())
	require.True(t, math.IsNaN(cols[0].MustAt(0)))
}
