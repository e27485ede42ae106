// Package pipeline implements the Pipeline (spec.md §4.K): orchestrate
// one or more feature learners and a predictor over a schema of joined
// DataFrames. Fit validates the schema, computes a content-hash
// Fingerprint of (schema, data, hyperparameters), fits one boosting
// Ensemble per direct peripheral of the population table (consulting a
// Cache keyed by that Fingerprint before refitting), assembles the
// resulting autofeatures plus any manually selected population columns
// into one feature table, and fits a predictor Ensemble over that
// table. Transform replays every learner and the predictor against new
// data; Score delegates to internal/metrics.
//
// Grounded on the teacher's cmd/smf apply workflow — connect, preflight
// (here: schema.Validate), execute (here: per-peripheral fit loop),
// report (here: Importances) — generalized from a single migration run
// to a fingerprint-gated, cacheable fit.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"relfit/internal/boosting"
	"relfit/internal/candidates"
	"relfit/internal/column"
	"relfit/internal/dataframe"
	"relfit/internal/engineerr"
	"relfit/internal/fitter"
	"relfit/internal/loss"
	"relfit/internal/mapping"
	"relfit/internal/match"
	"relfit/internal/metrics"
	"relfit/internal/sameunits"
	"relfit/internal/schema"
	"relfit/internal/tree"
)

// HyperParams bundles every knob that affects what Fit produces and
// therefore folds into the Fingerprint (spec.md §4.K step 1).
type HyperParams struct {
	Candidates candidates.HyperParams
	Boosting   boosting.Params
	Loss       loss.Task
	Lambda     float64

	// MinDF gates internal/mapping's min_df (spec.md §4.M); zero
	// disables mapping-feature generation entirely.
	MinDF int

	// ManualFeatures names population columns joined into the
	// predictor's input table unchanged (spec.md §4.K step 3: "join
	// with explicitly selected population columns").
	ManualFeatures []string
}

// FeatureLearner is one peripheral's fitted Ensemble (spec.md §4.K:
// "an ordered list of feature learners"), plus each contribution's
// autofeature column evaluated over every population row at fit time
// (spec.md §4.K step 3: "Generate the autofeatures on training data").
type FeatureLearner struct {
	Peripheral string
	Ensemble   *boosting.Ensemble
	Columns    [][]float64 // Columns[j] is Contributions[j]'s eta-scaled value per population row
}

// Pipeline holds the fitted feature learners, the predictor, the
// mapping container, and the importances computed during Fit.
type Pipeline struct {
	Name string

	root *schema.Placeholder

	FeatureLearners []FeatureLearner
	Predictor       *boosting.Ensemble
	predictorNames  []string // autofeature/manual column names, in predictor-input order

	Mapping *mapping.Set

	FeatureImportances map[string]float64
	ColumnImportances  map[string]float64

	Fingerprint Fingerprint
}

// Root returns the schema tree Fit was called with, so a caller
// rendering `Pipeline.to_sql` (spec.md §6) can recover each feature
// learner's join edge without threading it through separately.
func (p *Pipeline) Root() *schema.Placeholder { return p.root }

// Cache is the FE/Pred tracker (spec.md §4.K step 2): a fingerprint ->
// fitted-learner map guarded by a single RWMutex, mirroring spec.md
// §5's process-wide DataFrame/Pipeline maps.
type Cache struct {
	mu       sync.RWMutex
	learners map[Fingerprint][]FeatureLearner
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{learners: map[Fingerprint][]FeatureLearner{}}
}

// getOrFit returns the cached feature learners for fp if present,
// otherwise calls fit and inserts its result (spec.md §4.K step 2:
// "fetch from the cache if fingerprint matches; otherwise fit and
// insert").
func (c *Cache) getOrFit(fp Fingerprint, fit func() ([]FeatureLearner, error)) ([]FeatureLearner, bool, error) {
	c.mu.RLock()
	if fl, ok := c.learners[fp]; ok {
		c.mu.RUnlock()
		return fl, true, nil
	}
	c.mu.RUnlock()

	fl, err := fit()
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	c.learners[fp] = fl
	c.mu.Unlock()
	return fl, false, nil
}

// Fit implements spec.md §4.K's fit sequence over the population
// table's direct peripherals. Nested subtables are not fit: no
// subfeature tree is built for them, here or in internal/fitter.
func (p *Pipeline) Fit(ctx context.Context, root *schema.Placeholder, tables map[string]*dataframe.DataFrame, targetName string, params HyperParams, cache *Cache, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if err := root.Validate(tables); err != nil {
		return err
	}

	popDF, ok := tables[root.Name]
	if !ok {
		return engineerr.Newf(engineerr.InvalidArgument, "pipeline: no table registered for population %q", root.Name)
	}
	targetCol, err := popDF.Target(targetName)
	if err != nil {
		return err
	}
	y := append([]float64(nil), targetCol.Raw()...)

	matches, err := match.WithinSchema(root, tables)
	if err != nil {
		return err
	}

	fp := Compute(root, tables, params)
	p.Fingerprint = fp
	p.root = root

	learners, cached, err := cache.getOrFit(fp, func() ([]FeatureLearner, error) {
		return p.fitFeatureLearners(ctx, root, tables, matches, y, params, log)
	})
	if err != nil {
		return err
	}
	if cached {
		log.Info("pipeline: reused cached feature learners", zap.String("fingerprint", string(fp)))
	}
	p.FeatureLearners = learners

	if params.MinDF > 0 {
		set, err := mapping.Build(root, tables, matches, [][]float64{y}, params.MinDF)
		if err != nil {
			return err
		}
		p.Mapping = set
	}

	names, columns := p.assembleFeatureTable(popDF, params.ManualFeatures)
	p.predictorNames = names

	predictor := &boosting.Ensemble{}
	predictorBuilder := newFlatDataset(names, columns)
	predictorLF, err := loss.New(params.Loss, y, make([]float64, len(y)), params.Lambda)
	if err != nil {
		return err
	}
	if err := boosting.RunRounds(ctx, predictor, 0, []candidates.Candidate{{}}, predictorBuilder, predictorLF, params.Boosting, nil, log); err != nil {
		return err
	}
	p.Predictor = predictor

	p.computeImportances(names)
	return nil
}

func (p *Pipeline) fitFeatureLearners(ctx context.Context, root *schema.Placeholder, tables map[string]*dataframe.DataFrame, matches map[*schema.Child][]match.Match, y []float64, params HyperParams, log *zap.Logger) ([]FeatureLearner, error) {
	popDF := tables[root.Name]
	learners := make([]FeatureLearner, 0, len(root.Children))
	for i, edge := range root.Children {
		peripDF, ok := tables[edge.Table.Name]
		if !ok {
			return nil, engineerr.Newf(engineerr.InvalidArgument, "pipeline: no table registered for peripheral %q", edge.Table.Name)
		}
		shape := peripheralShape(popDF, peripDF, edge)
		cands := candidates.Build(shape, params.Candidates)

		builder, err := newEdgeDataset(root, tables, matches, edge.Table.Name)
		if err != nil {
			return nil, err
		}

		lf, err := loss.New(params.Loss, y, make([]float64, len(y)), params.Lambda)
		if err != nil {
			return nil, err
		}

		ensemble := &boosting.Ensemble{}
		if err := boosting.RunRounds(ctx, ensemble, i, cands, builder, lf, params.Boosting, nil, log); err != nil {
			return nil, err
		}

		columns, err := evaluateContributions(ensemble.Contributions, builder, popDF.NRows())
		if err != nil {
			return nil, err
		}
		learners = append(learners, FeatureLearner{Peripheral: edge.Table.Name, Ensemble: ensemble, Columns: columns})
	}
	return learners, nil
}

// evaluateContributions replays every contribution's tree over builder,
// folds each population row's matches through the candidate's
// aggregation kind (tree.Aggregate — the same fold
// internal/boosting.applyContribution performs while training,
// recomputed here because Fit needs each contribution as its own
// standalone feature rather than summed into one residual), and scales
// by Eta.
func evaluateContributions(contribs []boosting.Contribution, builder fitter.DatasetBuilder, nRows int) ([][]float64, error) {
	columns := make([][]float64, len(contribs))
	for j, c := range contribs {
		data, err := builder.BuildDataset(c.Candidate)
		if err != nil {
			return nil, err
		}
		col, err := tree.Aggregate(data, c.Tree, c.Candidate.Aggregation, nRows)
		if err != nil {
			return nil, err
		}
		for i := range col {
			col[i] *= c.Eta
		}
		columns[j] = col
	}
	return columns, nil
}

// peripheralShape describes peripDF the way internal/candidates needs
// to enumerate candidates over it (spec.md §4.E).
func peripheralShape(popDF, peripDF *dataframe.DataFrame, edge *schema.Child) candidates.PeripheralShape {
	return candidates.PeripheralShape{
		Name:               edge.Table.Name,
		HasTimeStamp:       true, // schema.Validate already requires both time stamps
		HasSubtable:        len(edge.Table.Children) > 0,
		NumericalColumns:   peripDF.NumericalNames(),
		DiscreteColumns:    peripDF.DiscreteNames(),
		CategoricalColumns: peripDF.CategoricalNames(),
		SameUnits:          sameunits.Find(popDF, peripDF),
	}
}

// assembleFeatureTable builds the predictor's input table: one column
// per (feature learner, contribution) pair, evaluated over every
// population row, plus one column per manually selected population
// column (spec.md §4.K step 3).
func (p *Pipeline) assembleFeatureTable(popDF *dataframe.DataFrame, manualFeatures []string) ([]string, [][]float64) {
	var names []string
	var columns [][]float64

	for _, fl := range p.FeatureLearners {
		for j := range fl.Ensemble.Contributions {
			names = append(names, fmt.Sprintf("feature_%s_%d", fl.Peripheral, j))
			columns = append(columns, fl.Columns[j])
		}
	}

	for _, col := range manualFeatures {
		c, err := popDF.Numerical(col)
		if err != nil {
			continue // a missing manual column is silently skipped; schema.Validate already checked join/ts columns
		}
		names = append(names, "manual_"+col)
		columns = append(columns, append([]float64(nil), c.Raw()...))
	}

	return names, columns
}

// computeImportances aggregates each predictor tree's per-column gain
// (spec.md §4.K step 4) into feature importances, then distributes
// each feature's importance onto the source column its originating
// candidate read from (the "column importance").
func (p *Pipeline) computeImportances(names []string) {
	featureGain := map[string]float64{}
	for _, contrib := range p.Predictor.Contributions {
		for key, gain := range contrib.Tree.GainByColumn() {
			idx, ok := parseNumericalInputIndex(key)
			if !ok || idx < 0 || idx >= len(names) {
				continue
			}
			featureGain[names[idx]] += gain
		}
	}
	p.FeatureImportances = featureGain

	columnGain := map[string]float64{}
	candidateOf := map[string]candidates.Candidate{}
	for _, fl := range p.FeatureLearners {
		for j, contrib := range fl.Ensemble.Contributions {
			candidateOf[fmt.Sprintf("feature_%s_%d", fl.Peripheral, j)] = contrib.Candidate
		}
	}
	for name, gain := range featureGain {
		cand, ok := candidateOf[name]
		if !ok {
			columnGain[name] += gain // manual feature: attribute to itself
			continue
		}
		col := cand.Source.ColumnName
		if col == "" {
			col = fmt.Sprintf("%s.%s", cand.Peripheral, cand.Aggregation)
		}
		columnGain[col] += gain
	}
	p.ColumnImportances = columnGain
}

// SortedImportances returns name/value pairs sorted by descending gain,
// for deterministic reporting (spec.md §6 JSON output needs a stable
// order).
func SortedImportances(m map[string]float64) []struct {
	Name  string
	Value float64
} {
	out := make([]struct {
		Name  string
		Value float64
	}, 0, len(m))
	for k, v := range m {
		out = append(out, struct {
			Name  string
			Value float64
		}{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Transform replays every fitted feature learner and the predictor
// against tables, returning one prediction per population row (spec.md
// §4.K: "Transform: replay saved learners in order; route outputs into
// predictors"). tables need not carry a target column.
func (p *Pipeline) Transform(ctx context.Context, tables map[string]*dataframe.DataFrame) ([]float64, error) {
	popDF, ok := tables[p.root.Name]
	if !ok {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "pipeline: no table registered for population %q", p.root.Name)
	}
	matches, err := match.WithinSchema(p.root, tables)
	if err != nil {
		return nil, err
	}

	featureColumns := map[string][]float64{}
	for _, fl := range p.FeatureLearners {
		builder, err := newEdgeDataset(p.root, tables, matches, fl.Peripheral)
		if err != nil {
			return nil, err
		}
		columns, err := evaluateContributions(fl.Ensemble.Contributions, builder, popDF.NRows())
		if err != nil {
			return nil, err
		}
		for j, col := range columns {
			featureColumns[fmt.Sprintf("feature_%s_%d", fl.Peripheral, j)] = col
		}
	}
	for _, name := range p.predictorNames {
		if _, ok := featureColumns[name]; ok {
			continue
		}
		manualCol := name[len("manual_"):]
		c, err := popDF.Numerical(manualCol)
		if err != nil {
			return nil, err
		}
		featureColumns[name] = append([]float64(nil), c.Raw()...)
	}

	names := p.predictorNames
	columns := make([][]float64, len(names))
	for i, name := range names {
		columns[i] = featureColumns[name]
	}
	flat := newFlatDataset(names, columns)

	yhat := make([]float64, popDF.NRows())
	for _, contrib := range p.Predictor.Contributions {
		data, err := flat.BuildDataset(contrib.Candidate)
		if err != nil {
			return nil, err
		}
		col, err := tree.Aggregate(data, contrib.Tree, contrib.Candidate.Aggregation, popDF.NRows())
		if err != nil {
			return nil, err
		}
		for i, d := range col {
			yhat[i] += contrib.Eta * d
		}
	}
	return yhat, nil
}

// parseNumericalInputIndex extracts the column index from a
// GainByColumn key of the form "numerical_input[N]"; any other
// data_used is not a predictor-input feature column and is ignored.
func parseNumericalInputIndex(key string) (int, bool) {
	const prefix = "numerical_input["
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix || key[len(key)-1] != ']' {
		return 0, false
	}
	digits := key[len(prefix) : len(key)-1]
	n := 0
	for _, d := range digits {
		if d < '0' || d > '9' {
			return 0, false
		}
		n = n*10 + int(d-'0')
	}
	return n, true
}

// Score transforms tables and scores the result against targetName
// using the named Metric (spec.md §4.K: "Score: delegate per-target to
// Metrics").
func (p *Pipeline) Score(ctx context.Context, tables map[string]*dataframe.DataFrame, targetName string, kind metrics.Kind) (metrics.Result, error) {
	popDF, ok := tables[p.root.Name]
	if !ok {
		return metrics.Result{}, engineerr.Newf(engineerr.InvalidArgument, "pipeline: no table registered for population %q", p.root.Name)
	}
	yhat, err := p.Transform(ctx, tables)
	if err != nil {
		return metrics.Result{}, err
	}
	targetCol, err := popDF.Target(targetName)
	if err != nil {
		return metrics.Result{}, err
	}
	m, err := metrics.New(kind)
	if err != nil {
		return metrics.Result{}, err
	}
	return m.Score(ctx, []*column.Column[float64]{column.New("yhat", yhat)}, []*column.Column[float64]{targetCol}, 0)
}
