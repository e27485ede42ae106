package server

import (
	"context"
	"encoding/json"
	"testing"

	_ "relfit/internal/dialect/mysql"
	"relfit/internal/engine"
	"relfit/internal/metrics"
	"relfit/internal/schema"

	"github.com/stretchr/testify/require"
)

// withType re-encodes v (any of this package's request structs) as a
// JSON line carrying an additional type_ field, the shape dispatch
// expects on the wire.
func withType(t *testing.T, typ string, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	m["type_"] = typ

	out, err := json.Marshal(m)
	require.NoError(t, err)
	return out
}

func dispatchOK(t *testing.T, s *Server, typ string, v any) any {
	t.Helper()
	resp := s.dispatch(context.Background(), withType(t, typ, v))
	if errStr, ok := resp.(string); ok && len(errStr) > 0 {
		// "Success!" and error responses are both plain strings, so
		// nothing is checked here; each caller asserts on the response
		// it expects.
	}
	return resp
}

func csvColumns() []columnSpecJSON {
	return []columnSpecJSON{
		{Name: "jk", Role: "join_key"},
		{Name: "ts", Role: "time_stamp"},
		{Name: "target", Role: "target"},
	}
}

func eventColumns() []columnSpecJSON {
	return []columnSpecJSON{
		{Name: "jk", Role: "join_key"},
		{Name: "ts", Role: "time_stamp"},
		{Name: "amount", Role: "numerical"},
	}
}

func loadPopAndEvents(t *testing.T, s *Server) {
	t.Helper()

	popCSV := "jk,ts,target\n1,100,1\n2,100,0\n3,100,1\n4,100,0\n5,100,1\n6,100,0\n"
	resp := dispatchOK(t, s, "DataFrame.from_csv", fromCSVReq{Name: "pop", Data: popCSV, Columns: csvColumns()})
	require.Equal(t, "Success!", resp)

	eventsCSV := "jk,ts,amount\n1,50,10\n1,60,20\n2,50,5\n3,40,1\n3,50,2\n3,60,3\n4,50,7\n5,50,8\n6,50,9\n"
	resp = dispatchOK(t, s, "DataFrame.from_csv", fromCSVReq{Name: "events", Data: eventsCSV, Columns: eventColumns()})
	require.Equal(t, "Success!", resp)
}

func popEventsSchema() schema.NodeJSON {
	return schema.NodeJSON{
		Table: "pop",
		Children: []schema.EdgeJSON{
			{
				Table:               schema.NodeJSON{Table: "events"},
				PopulationJoinKey:   "jk",
				PeripheralJoinKey:   "jk",
				PopulationTimeStamp: "ts",
				PeripheralTimeStamp: "ts",
			},
		},
	}
}

const testHyperparams = `
loss = "regression"
lambda = 1

[candidates]
aggregations = ["COUNT", "AVG", "SUM"]

[boosting]
max_rounds = 2

[fitter]
max_length_probe = 1
max_length = 2
num_trees = 2
grid_factor = 1
`

func TestDispatchUnknownCommandType(t *testing.T) {
	s := New(engine.New(), nil)
	resp := s.dispatch(context.Background(), []byte(`{"name_":"x","type_":"NoSuchCommand"}`))
	str, ok := resp.(string)
	require.True(t, ok)
	require.Contains(t, str, "unknown command type")
}

func TestDispatchMalformedJSON(t *testing.T) {
	s := New(engine.New(), nil)
	resp := s.dispatch(context.Background(), []byte(`not json`))
	_, ok := resp.(string)
	require.True(t, ok)
}

func TestFromCSVThenFloatColumnGet(t *testing.T) {
	s := New(engine.New(), nil)
	loadPopAndEvents(t, s)

	resp := dispatchOK(t, s, "FloatColumn.get", columnReq{Name_: "pop", Column: "target"})
	vals, ok := resp.([]float64)
	require.True(t, ok, "expected []float64, got %T", resp)
	require.Equal(t, []float64{1, 0, 1, 0, 1, 0}, vals)
}

func TestFromCSVUnknownColumnErrors(t *testing.T) {
	s := New(engine.New(), nil)
	loadPopAndEvents(t, s)

	resp := dispatchOK(t, s, "FloatColumn.get", columnReq{Name_: "pop", Column: "nope"})
	str, ok := resp.(string)
	require.True(t, ok)
	require.Contains(t, str, "no float-valued column")
}

func TestSetUnitAndSetSubroles(t *testing.T) {
	s := New(engine.New(), nil)
	loadPopAndEvents(t, s)

	resp := dispatchOK(t, s, "FloatColumn.set_unit", setUnitReq{Name_: "events", Column: "amount", Unit: "usd"})
	require.Equal(t, "Success!", resp)

	resp = dispatchOK(t, s, "FloatColumn.set_subroles", setSubrolesReq{Name_: "events", Column: "amount", Subroles: []string{"comparison_only"}})
	require.Equal(t, "Success!", resp)
}

func TestPipelineFitTransformScore(t *testing.T) {
	s := New(engine.New(), nil)
	loadPopAndEvents(t, s)

	fitResp := dispatchOK(t, s, "Pipeline.fit", fitReq{
		Name:        "p1",
		Root:        popEventsSchema(),
		Target:      "target",
		Tables:      []string{"pop", "events"},
		Hyperparams: testHyperparams,
	})
	require.Equal(t, "Success!", fitResp)

	transformResp := dispatchOK(t, s, "Pipeline.transform", transformReq{Name: "p1", Tables: []string{"pop", "events"}})
	yhat, ok := transformResp.([]float64)
	require.True(t, ok, "expected []float64, got %T", transformResp)
	require.Len(t, yhat, 6)

	scoreResp := dispatchOK(t, s, "Pipeline.score", scoreReq{
		Name: "p1", Tables: []string{"pop", "events"}, Target: "target", Metric: "rmse",
	})
	result, ok := scoreResp.(metrics.Result)
	require.True(t, ok, "expected metrics.Result, got %T", scoreResp)
	require.Len(t, result.PerColumn, 1)
}

func TestPipelineToSQLRendersOneStatementPerContribution(t *testing.T) {
	s := New(engine.New(), nil)
	loadPopAndEvents(t, s)

	fitResp := dispatchOK(t, s, "Pipeline.fit", fitReq{
		Name:        "p2",
		Root:        popEventsSchema(),
		Target:      "target",
		Tables:      []string{"pop", "events"},
		Hyperparams: testHyperparams,
	})
	require.Equal(t, "Success!", fitResp)

	resp := dispatchOK(t, s, "Pipeline.to_sql", toSQLReq{Name: "p2", Dialect: "mysql"})
	statements, ok := resp.([]string)
	require.True(t, ok, "expected []string, got %T", resp)
	require.NotEmpty(t, statements)
	for _, stmt := range statements {
		require.NotEmpty(t, stmt)
	}
}

func TestPipelineScoreUnknownPipelineErrors(t *testing.T) {
	s := New(engine.New(), nil)
	resp := dispatchOK(t, s, "Pipeline.score", scoreReq{Name: "missing", Tables: nil, Target: "target", Metric: "rmse"})
	str, ok := resp.(string)
	require.True(t, ok)
	require.Contains(t, str, "no pipeline registered")
}

func TestLaunchHyperoptRecordsTrials(t *testing.T) {
	s := New(engine.New(), nil)
	loadPopAndEvents(t, s)

	launchResp := dispatchOK(t, s, "launch_hyperopt", launchHyperoptReq{
		fitReq: fitReq{
			Name:        "hp1",
			Root:        popEventsSchema(),
			Target:      "target",
			Tables:      []string{"pop", "events"},
			Hyperparams: testHyperparams,
		},
		Trials: 3,
		Seed:   42,
	})
	require.Equal(t, "Success!", launchResp)

	namesResp := dispatchOK(t, s, "get_hyperopt_names", hyperoptNamesReq{Name: "hp1"})
	names, ok := namesResp.([]string)
	require.True(t, ok, "expected []string, got %T", namesResp)
	require.Len(t, names, 3)

	scoresResp := dispatchOK(t, s, "get_hyperopt_scores", hyperoptNamesReq{Name: "hp1"})
	scores, ok := scoresResp.([]float64)
	require.True(t, ok, "expected []float64, got %T", scoresResp)
	require.Len(t, scores, 3)
}

func TestDeployTogglesState(t *testing.T) {
	s := New(engine.New(), nil)
	loadPopAndEvents(t, s)

	fitResp := dispatchOK(t, s, "Pipeline.fit", fitReq{
		Name:        "p3",
		Root:        popEventsSchema(),
		Target:      "target",
		Tables:      []string{"pop", "events"},
		Hyperparams: testHyperparams,
	})
	require.Equal(t, "Success!", fitResp)

	deploy := true
	resp := dispatchOK(t, s, "Pipeline.deploy", deployReq{Name: "p3", Deploy: &deploy})
	require.Equal(t, "Success!", resp)
}
