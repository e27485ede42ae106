package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"relfit/internal/column"
	"relfit/internal/connector"
	connectorcsv "relfit/internal/connector/csv"
	connectormysql "relfit/internal/connector/mysql"
	connectorpostgres "relfit/internal/connector/postgres"
	connectors3 "relfit/internal/connector/s3"
	connectorsqlite "relfit/internal/connector/sqlite"
	"relfit/internal/dataframe"
	"relfit/internal/dialect"
	"relfit/internal/engine"
	"relfit/internal/engineerr"
	"relfit/internal/hyperparams"
	"relfit/internal/loss"
	"relfit/internal/metrics"
	"relfit/internal/pipeline"
	"relfit/internal/schema"
	"relfit/internal/sqlgen"
)

// columnSpecJSON is the wire shape for a source column's role
// assignment, shared by every DataFrame.from_* command.
type columnSpecJSON struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func toConnectorSpecs(in []columnSpecJSON) []connector.ColumnSpec {
	out := make([]connector.ColumnSpec, len(in))
	for i, c := range in {
		out[i] = connector.ColumnSpec{Name: c.Name, Role: connector.Role(c.Role)}
	}
	return out
}

// engineEncodings builds the shared Encodings every from_* loader uses,
// so a new source column's categorical/join-key values intern against
// the same process-wide Encoding other DataFrames already use.
func engineEncodings(e *engine.Engine) connector.Encodings {
	return connector.Encodings{
		Categories: e.Categories(),
		JoinKeys:   e.JoinKeys(),
		Words:      e.Categories(),
	}
}

// registerBuiltins wires every command type_ spec.md §6 names onto its
// handler.
func registerBuiltins(s *Server) {
	state := newPipelineState()

	s.Register("DataFrame", handleNewDataFrame)
	s.Register("DataFrame.from_db", handleFromDB)
	s.Register("DataFrame.from_query", handleFromDB)
	s.Register("DataFrame.from_csv", handleFromCSV)
	s.Register("DataFrame.from_s3", handleFromS3)
	s.Register("DataFrame.from_json", handleFromJSON)
	s.Register("DataFrame.from_view", handleFromView)

	s.Register("FloatColumn.get", handleFloatColumnGet)
	s.Register("StringColumn.get", handleStringColumnGet)
	s.Register("FloatColumn.set_unit", handleSetUnit)
	s.Register("StringColumn.set_unit", handleSetUnit)
	s.Register("FloatColumn.set_subroles", handleSetSubroles)
	s.Register("StringColumn.set_subroles", handleSetSubroles)

	s.Register("Pipeline.fit", state.handleFit)
	s.Register("Pipeline.refresh", state.handleFit)
	s.Register("Pipeline.transform", state.handleTransform)
	s.Register("Pipeline.score", state.handleScore)
	s.Register("Pipeline.to_sql", state.handleToSQL)
	s.Register("Pipeline.to_json", state.handleToJSON)
	s.Register("Pipeline.deploy", state.handleDeploy)

	s.Register("launch_hyperopt", state.handleLaunchHyperopt)
	s.Register("get_hyperopt_names", state.handleHyperoptNames)
	s.Register("get_hyperopt_scores", state.handleHyperoptScores)
}

// --- DataFrame commands ---

type newDataFrameReq struct {
	Name string `json:"name_"`
}

func handleNewDataFrame(_ context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req newDataFrameReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "DataFrame: %v", err)
	}
	if req.Name == "" {
		return nil, engineerr.New(engineerr.InvalidArgument, "DataFrame: name_ is required")
	}
	e.RegisterDataFrame(req.Name, dataframe.New(req.Name, e.Categories(), e.JoinKeys(), e.Categories()))
	return "Success!", nil
}

type fromDBReq struct {
	Name    string           `json:"name_"`
	Dialect string           `json:"dialect"`
	DSN     string           `json:"dsn"`
	Query   string           `json:"query"`
	Columns []columnSpecJSON `json:"columns"`
}

func handleFromDB(ctx context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req fromDBReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "DataFrame.from_db: %v", err)
	}
	enc := engineEncodings(e)
	specs := toConnectorSpecs(req.Columns)

	var df *dataframe.DataFrame
	var err error
	switch strings.ToLower(req.Dialect) {
	case "mysql":
		df, err = connectormysql.Load(ctx, req.DSN, req.Name, req.Query, specs, enc)
	case "postgres", "postgresql":
		df, err = connectorpostgres.Load(ctx, req.DSN, req.Name, req.Query, specs, enc)
	case "sqlite":
		df, err = connectorsqlite.Load(ctx, req.DSN, req.Name, req.Query, specs, enc)
	default:
		return nil, engineerr.Newf(engineerr.InvalidArgument, "DataFrame.from_db: unsupported dialect %q", req.Dialect)
	}
	if err != nil {
		return nil, err
	}
	e.RegisterDataFrame(req.Name, df)
	return "Success!", nil
}

type fromCSVReq struct {
	Name    string           `json:"name_"`
	Data    string           `json:"data"`
	Columns []columnSpecJSON `json:"columns"`
}

func handleFromCSV(_ context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req fromCSVReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "DataFrame.from_csv: %v", err)
	}
	df, err := connectorcsv.Load(strings.NewReader(req.Data), req.Name, toConnectorSpecs(req.Columns), engineEncodings(e))
	if err != nil {
		return nil, err
	}
	e.RegisterDataFrame(req.Name, df)
	return "Success!", nil
}

type fromS3Req struct {
	Name            string           `json:"name_"`
	Bucket          string           `json:"bucket"`
	Key             string           `json:"key"`
	Region          string           `json:"region"`
	Endpoint        string           `json:"endpoint"`
	PathStyle       bool             `json:"path_style"`
	AccessKeyID     string           `json:"access_key_id"`
	SecretAccessKey string           `json:"secret_access_key"`
	SessionToken    string           `json:"session_token"`
	Columns         []columnSpecJSON `json:"columns"`
}

func handleFromS3(ctx context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req fromS3Req
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "DataFrame.from_s3: %v", err)
	}
	df, err := connectors3.Load(ctx, connectors3.Config{
		Bucket: req.Bucket, Key: req.Key, Region: req.Region, Endpoint: req.Endpoint,
		PathStyle: req.PathStyle, AccessKeyID: req.AccessKeyID, SecretAccessKey: req.SecretAccessKey,
		SessionToken: req.SessionToken,
	}, req.Name, toConnectorSpecs(req.Columns), engineEncodings(e))
	if err != nil {
		return nil, err
	}
	e.RegisterDataFrame(req.Name, df)
	return "Success!", nil
}

type fromJSONReq struct {
	Name    string              `json:"name_"`
	Columns map[string][]string `json:"columns"`
	Roles   []columnSpecJSON    `json:"roles"`
}

func handleFromJSON(_ context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req fromJSONReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "DataFrame.from_json: %v", err)
	}

	var nrows int
	for _, spec := range req.Roles {
		nrows = max(nrows, len(req.Columns[spec.Name]))
	}
	rows := make([][]string, nrows)
	for i := range rows {
		row := make([]string, len(req.Roles))
		for j, spec := range req.Roles {
			col := req.Columns[spec.Name]
			if i < len(col) {
				row[j] = col[i]
			}
		}
		rows[i] = row
	}

	df, err := connector.FromRows(req.Name, toConnectorSpecs(req.Roles), rows, engineEncodings(e))
	if err != nil {
		return nil, err
	}
	e.RegisterDataFrame(req.Name, df)
	return "Success!", nil
}

type fromViewReq struct {
	Name    string `json:"name_"`
	Source  string `json:"source_"`
	Columns []struct {
		SourceName string `json:"source_name"`
		Name       string `json:"name"`
		Role       string `json:"role"`
	} `json:"columns"`
}

func handleFromView(_ context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req fromViewReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "DataFrame.from_view: %v", err)
	}
	src, err := e.DataFrame(req.Source)
	if err != nil {
		return nil, err
	}

	dst := dataframe.New(req.Name, e.Categories(), e.JoinKeys(), e.Categories())
	for _, c := range req.Columns {
		role := connector.Role(c.Role)
		var addErr error
		switch role {
		case connector.RoleNumerical:
			col, e2 := src.Numerical(c.SourceName)
			if e2 != nil {
				return nil, e2
			}
			addErr = dst.AddNumerical(column.New(c.Name, col.Raw()))
		case connector.RoleDiscrete:
			col, e2 := src.Discrete(c.SourceName)
			if e2 != nil {
				return nil, e2
			}
			addErr = dst.AddDiscrete(column.New(c.Name, col.Raw()))
		case connector.RoleTarget:
			col, e2 := src.Target(c.SourceName)
			if e2 != nil {
				return nil, e2
			}
			addErr = dst.AddTarget(column.New(c.Name, col.Raw()))
		case connector.RoleTimeStamp:
			col, e2 := src.TimeStamp(c.SourceName)
			if e2 != nil {
				return nil, e2
			}
			addErr = dst.AddTimeStamp(column.New(c.Name, col.Raw()))
		case connector.RoleCategorical:
			col, e2 := src.Categorical(c.SourceName)
			if e2 != nil {
				return nil, e2
			}
			addErr = dst.AddCategorical(column.New(c.Name, col.Raw()))
		case connector.RoleJoinKey:
			col, e2 := src.JoinKey(c.SourceName)
			if e2 != nil {
				return nil, e2
			}
			addErr = dst.AddJoinKey(column.New(c.Name, col.Raw()))
		case connector.RoleText:
			col, e2 := src.Text(c.SourceName)
			if e2 != nil {
				return nil, e2
			}
			addErr = dst.AddText(column.New(c.Name, col.Raw()))
		default:
			return nil, engineerr.Newf(engineerr.InvalidArgument, "DataFrame.from_view: unknown role %q", c.Role)
		}
		if addErr != nil {
			return nil, addErr
		}
	}

	e.RegisterDataFrame(req.Name, dst)
	return "Success!", nil
}

// --- Column accessors ---

type columnReq struct {
	Name_  string `json:"name_"`
	Column string `json:"column_"`
}

func handleFloatColumnGet(_ context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req columnReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "FloatColumn.get: %v", err)
	}
	df, err := e.DataFrame(req.Name_)
	if err != nil {
		return nil, err
	}
	for _, lookup := range []func(string) (*column.Column[float64], error){df.Numerical, df.TimeStamp, df.Target} {
		if col, err := lookup(req.Column); err == nil {
			return col.Raw(), nil
		}
	}
	if col, err := df.Discrete(req.Column); err == nil {
		out := make([]float64, col.Len())
		for i := range out {
			out[i] = float64(col.MustAt(i))
		}
		return out, nil
	}
	return nil, engineerr.Newf(engineerr.InvalidArgument, "FloatColumn.get: no float-valued column %q on %q", req.Column, req.Name_)
}

func handleStringColumnGet(_ context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req columnReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "StringColumn.get: %v", err)
	}
	df, err := e.DataFrame(req.Name_)
	if err != nil {
		return nil, err
	}
	if col, err := df.Text(req.Column); err == nil {
		return col.Raw(), nil
	}
	if col, err := df.Categorical(req.Column); err == nil {
		out := make([]string, col.Len())
		for i := range out {
			out[i] = e.Categories().String(col.MustAt(i))
		}
		return out, nil
	}
	return nil, engineerr.Newf(engineerr.InvalidArgument, "StringColumn.get: no string-valued column %q on %q", req.Column, req.Name_)
}

type setUnitReq struct {
	Name_  string `json:"name_"`
	Column string `json:"column_"`
	Unit   string `json:"unit_"`
}

func handleSetUnit(_ context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req setUnitReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "set_unit: %v", err)
	}
	df, err := e.DataFrame(req.Name_)
	if err != nil {
		return nil, err
	}
	if err := withColumn(df, req.Column, func(setUnit func(string)) { setUnit(req.Unit) }); err != nil {
		return nil, err
	}
	return "Success!", nil
}

type setSubrolesReq struct {
	Name_    string   `json:"name_"`
	Column   string   `json:"column_"`
	Subroles []string `json:"subroles_"`
}

func handleSetSubroles(_ context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req setSubrolesReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "set_subroles: %v", err)
	}
	df, err := e.DataFrame(req.Name_)
	if err != nil {
		return nil, err
	}
	if err := withColumnSubroles(df, req.Column, req.Subroles); err != nil {
		return nil, err
	}
	return "Success!", nil
}

// withColumn locates column by name across every role family in turn
// and invokes set with a closure bound to that column's SetUnit.
func withColumn(df *dataframe.DataFrame, name string, set func(setUnit func(string))) error {
	if c, err := df.Numerical(name); err == nil {
		set(c.SetUnit)
		return nil
	}
	if c, err := df.Discrete(name); err == nil {
		set(c.SetUnit)
		return nil
	}
	if c, err := df.Categorical(name); err == nil {
		set(c.SetUnit)
		return nil
	}
	if c, err := df.TimeStamp(name); err == nil {
		set(c.SetUnit)
		return nil
	}
	if c, err := df.Text(name); err == nil {
		set(c.SetUnit)
		return nil
	}
	if c, err := df.Target(name); err == nil {
		set(c.SetUnit)
		return nil
	}
	return engineerr.Newf(engineerr.InvalidArgument, "set_unit: no column %q on %q", name, df.Name)
}

func withColumnSubroles(df *dataframe.DataFrame, name string, roles []string) error {
	if c, err := df.Numerical(name); err == nil {
		c.SetSubroles(roles)
		return nil
	}
	if c, err := df.Discrete(name); err == nil {
		c.SetSubroles(roles)
		return nil
	}
	if c, err := df.Categorical(name); err == nil {
		c.SetSubroles(roles)
		return nil
	}
	if c, err := df.TimeStamp(name); err == nil {
		c.SetSubroles(roles)
		return nil
	}
	if c, err := df.Text(name); err == nil {
		c.SetSubroles(roles)
		return nil
	}
	if c, err := df.Target(name); err == nil {
		c.SetSubroles(roles)
		return nil
	}
	return engineerr.Newf(engineerr.InvalidArgument, "set_subroles: no column %q on %q", name, df.Name)
}

// --- Pipeline lifecycle ---

type pipelineState struct {
	mu       sync.RWMutex
	cache    *pipeline.Cache
	deployed map[string]bool
	hyperopt map[string][]hyperoptTrial
}

type hyperoptTrial struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func newPipelineState() *pipelineState {
	return &pipelineState{
		cache:    pipeline.NewCache(),
		deployed: make(map[string]bool),
		hyperopt: make(map[string][]hyperoptTrial),
	}
}

type fitReq struct {
	Name        string         `json:"name_"`
	Root        schema.NodeJSON `json:"root_"`
	Target      string         `json:"target_"`
	Tables      []string       `json:"tables_"`
	Hyperparams string         `json:"hyperparams_"`
}

func gatherTables(e *engine.Engine, names []string) (map[string]*dataframe.DataFrame, error) {
	out := make(map[string]*dataframe.DataFrame, len(names))
	for _, name := range names {
		df, err := e.DataFrame(name)
		if err != nil {
			return nil, err
		}
		out[name] = df
	}
	return out, nil
}

func (ps *pipelineState) handleFit(ctx context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req fitReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "Pipeline.fit: %v", err)
	}
	hp, err := hyperparams.Parse(strings.NewReader(req.Hyperparams))
	if err != nil {
		return nil, err
	}
	tables, err := gatherTables(e, req.Tables)
	if err != nil {
		return nil, err
	}

	root := schema.FromJSON(req.Root)
	p := &pipeline.Pipeline{Name: req.Name}
	if err := p.Fit(ctx, root, tables, req.Target, hp, ps.cache, nil); err != nil {
		return nil, err
	}
	e.RegisterPipeline(req.Name, p)
	return "Success!", nil
}

type transformReq struct {
	Name   string   `json:"name_"`
	Tables []string `json:"tables_"`
}

func (ps *pipelineState) handleTransform(ctx context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req transformReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "Pipeline.transform: %v", err)
	}
	p, err := e.Pipeline(req.Name)
	if err != nil {
		return nil, err
	}
	tables, err := gatherTables(e, req.Tables)
	if err != nil {
		return nil, err
	}
	return p.Transform(ctx, tables)
}

type scoreReq struct {
	Name   string   `json:"name_"`
	Tables []string `json:"tables_"`
	Target string   `json:"target_"`
	Metric string   `json:"metric_"`
}

func (ps *pipelineState) handleScore(ctx context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req scoreReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "Pipeline.score: %v", err)
	}
	p, err := e.Pipeline(req.Name)
	if err != nil {
		return nil, err
	}
	tables, err := gatherTables(e, req.Tables)
	if err != nil {
		return nil, err
	}
	return p.Score(ctx, tables, req.Target, metrics.Kind(req.Metric))
}

type toSQLReq struct {
	Name    string `json:"name_"`
	Dialect string `json:"dialect"`
}

func (ps *pipelineState) handleToSQL(_ context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req toSQLReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "Pipeline.to_sql: %v", err)
	}
	p, err := e.Pipeline(req.Name)
	if err != nil {
		return nil, err
	}
	d, err := dialect.Get(dialect.Type(req.Dialect))
	if err != nil {
		return nil, err
	}
	gen := d.Generator()

	root := p.Root()
	statements := make([]string, 0, len(p.FeatureLearners))
	for _, fl := range p.FeatureLearners {
		var edge *schema.Child
		for _, c := range root.Children {
			if c.Table.Name == fl.Peripheral {
				edge = c
				break
			}
		}
		if edge == nil {
			return nil, engineerr.Newf(engineerr.InvalidArgument, "Pipeline.to_sql: no schema edge for peripheral %q", fl.Peripheral)
		}
		pop, err := e.DataFrame(root.Name)
		if err != nil {
			return nil, err
		}
		perip, err := e.DataFrame(fl.Peripheral)
		if err != nil {
			return nil, err
		}

		names := sqlgen.ColumnNames{
			NumericalInput:    perip.NumericalNames(),
			NumericalOutput:   pop.NumericalNames(),
			DiscreteInput:     perip.DiscreteNames(),
			DiscreteOutput:    pop.DiscreteNames(),
			CategoricalInput:  perip.CategoricalNames(),
			CategoricalOutput: pop.CategoricalNames(),
		}
		g := sqlgen.New(gen, sqlgen.Edge{PopAlias: "pop", PerpAlias: "perip", Child: edge}, names, e.Categories())

		for _, contrib := range fl.Ensemble.Contributions {
			sqlText, err := g.Render(contrib.Tree, contrib.Candidate)
			if err != nil {
				return nil, fmt.Errorf("Pipeline.to_sql: peripheral %q: %w", fl.Peripheral, err)
			}
			statements = append(statements, sqlText)
		}
	}
	return statements, nil
}

type toJSONReq struct {
	Name string `json:"name_"`
}

func (ps *pipelineState) handleToJSON(_ context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req toJSONReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "Pipeline.to_json: %v", err)
	}
	p, err := e.Pipeline(req.Name)
	if err != nil {
		return nil, err
	}
	return p, nil
}

type deployReq struct {
	Name   string `json:"name_"`
	Deploy *bool  `json:"deploy_"`
}

func (ps *pipelineState) handleDeploy(_ context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req deployReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "Pipeline.deploy: %v", err)
	}
	if _, err := e.Pipeline(req.Name); err != nil {
		return nil, err
	}
	deploy := true
	if req.Deploy != nil {
		deploy = *req.Deploy
	}
	ps.mu.Lock()
	ps.deployed[req.Name] = deploy
	ps.mu.Unlock()
	return "Success!", nil
}

// --- Hyperparameter search ---

type launchHyperoptReq struct {
	fitReq
	Trials int    `json:"trials_"`
	Seed   uint64 `json:"seed_"`
}

// handleLaunchHyperopt fits Trials variants of the base hyperparameters
// (each jittering NumSubfeatures, MaxRounds, and Lambda by a seeded
// random factor), scores each on the same tables/target with RMSE or
// cross-entropy (regression vs classification loss), and records every
// trial's name and score for get_hyperopt_names/get_hyperopt_scores.
func (ps *pipelineState) handleLaunchHyperopt(ctx context.Context, e *engine.Engine, body json.RawMessage) (any, error) {
	var req launchHyperoptReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "launch_hyperopt: %v", err)
	}
	base, err := hyperparams.Parse(strings.NewReader(req.Hyperparams))
	if err != nil {
		return nil, err
	}
	tables, err := gatherTables(e, req.Tables)
	if err != nil {
		return nil, err
	}
	if req.Trials <= 0 {
		req.Trials = 1
	}

	scoreKind := metrics.RMSEKind
	if base.Loss == loss.Classification {
		scoreKind = metrics.CrossEntropyKind
	}

	rng := rand.New(rand.NewSource(int64(req.Seed)))
	trials := make([]hyperoptTrial, 0, req.Trials)
	for i := 0; i < req.Trials; i++ {
		hp := base
		hp.Candidates.NumSubfeatures = max(1, base.Candidates.NumSubfeatures+rng.Intn(3)-1)
		hp.Boosting.MaxRounds = max(1, base.Boosting.MaxRounds+rng.Intn(5)-2)
		hp.Lambda = base.Lambda * (0.5 + rng.Float64())

		root := schema.FromJSON(req.Root)
		p := &pipeline.Pipeline{Name: fmt.Sprintf("%s/trial-%d", req.Name, i)}
		if err := p.Fit(ctx, root, tables, req.Target, hp, ps.cache, nil); err != nil {
			trials = append(trials, hyperoptTrial{Name: p.Name, Score: nanScore})
			continue
		}
		result, err := p.Score(ctx, tables, req.Target, scoreKind)
		if err != nil || len(result.PerColumn) == 0 {
			trials = append(trials, hyperoptTrial{Name: p.Name, Score: nanScore})
			continue
		}
		trials = append(trials, hyperoptTrial{Name: p.Name, Score: result.PerColumn[0]})
	}

	ps.mu.Lock()
	ps.hyperopt[req.Name] = trials
	ps.mu.Unlock()
	return "Success!", nil
}

const nanScore = -1

type hyperoptNamesReq struct {
	Name string `json:"name_"`
}

func (ps *pipelineState) handleHyperoptNames(_ context.Context, _ *engine.Engine, body json.RawMessage) (any, error) {
	var req hyperoptNamesReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "get_hyperopt_names: %v", err)
	}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	trials, ok := ps.hyperopt[req.Name]
	if !ok {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "get_hyperopt_names: no hyperopt run named %q", req.Name)
	}
	names := make([]string, len(trials))
	for i, t := range trials {
		names[i] = t.Name
	}
	return names, nil
}

func (ps *pipelineState) handleHyperoptScores(_ context.Context, _ *engine.Engine, body json.RawMessage) (any, error) {
	var req hyperoptNamesReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "get_hyperopt_scores: %v", err)
	}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	trials, ok := ps.hyperopt[req.Name]
	if !ok {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "get_hyperopt_scores: no hyperopt run named %q", req.Name)
	}
	scores := make([]float64, len(trials))
	for i, t := range trials {
		scores[i] = t.Score
	}
	return scores, nil
}
