// Package fitter implements the Tree Fitter and Subtree Fitter
// (spec.md §4.I): for one outer boosting round, build the candidate
// list, probe each candidate at shallow depth, keep the top scorers,
// and refit the winners at full depth.
//
// Grounded on the teacher's cmd/smf migrate command control flow
// (read source -> parse -> diff against target -> generate SQL ->
// format output): the same "gather, transform, select, finalize"
// staging, restructured here as build-candidates -> probe -> select ->
// refit. Structured per-round logging follows the teacher's use of
// go.uber.org/zap; parallel probing is internal/reduce's worker pool.
package fitter

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"relfit/internal/candidates"
	"relfit/internal/loss"
	"relfit/internal/reduce"
	"relfit/internal/tree"
)

// DatasetBuilder builds the tree.Dataset for one candidate's value
// source. internal/pipeline supplies the real implementation (it has
// the DataFrames and Matches the fitter does not); decoupling through
// an interface keeps this package free of a dataframe/match import.
type DatasetBuilder interface {
	BuildDataset(c candidates.Candidate) (*tree.Dataset, error)
}

// Params configures one call to Fit (spec.md §4.I).
type Params struct {
	MaxLengthProbe int
	MaxLength      int
	NumTrees       int
	Regularization float64
	Lambda         float64
	GridFactor     float64
	MaxWorkers     int
}

// Result is one winning candidate's refit tree plus the candidate it
// came from, for the boosting loop to score and commit.
type Result struct {
	Candidate candidates.Candidate
	Tree      *tree.Tree
}

// Fit runs the probe-then-refine sequence over cands against lf
// (spec.md §4.I steps 1, 3-5; the loss-function reset of step 6 is the
// caller's: internal/boosting resets lf between rounds). No subtree is
// fit for a candidate that uses subfeatures, here or in
// internal/pipeline.
func Fit(ctx context.Context, cands []candidates.Candidate, ds DatasetBuilder, lf *loss.Function, params Params, log *zap.Logger) ([]Result, error) {
	if log == nil {
		log = zap.NewNop()
	}

	type probed struct {
		cand  candidates.Candidate
		score float64
		ok    bool
	}

	probes := make([]probed, len(cands))
	err := reduce.Run(ctx, len(cands), params.MaxWorkers, func(_ context.Context, i int) error {
		c := cands[i]
		data, err := ds.BuildDataset(c)
		if err != nil {
			probes[i] = probed{cand: c}
			return nil // a candidate that can't be built is simply not viable
		}
		probeTree := tree.Fit(data, lf, tree.FitParams{
			MaxDepth:       params.MaxLengthProbe,
			MinNumSamples:  1,
			Regularization: params.Regularization,
			GridFactor:     params.GridFactor,
		})
		score, ok := scoreTree(data, probeTree, lf)
		probes[i] = probed{cand: c, score: score, ok: ok}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var viable []probed
	for _, p := range probes {
		if p.ok && p.score > params.Regularization {
			viable = append(viable, p)
		}
	}
	sort.SliceStable(viable, func(i, j int) bool { return viable[i].score > viable[j].score })
	if len(viable) > params.NumTrees {
		viable = viable[:params.NumTrees]
	}

	log.Info("tree fitter: probed candidates", zap.Int("total", len(cands)), zap.Int("viable", len(viable)))

	results := make([]Result, 0, len(viable))
	for _, p := range viable {
		data, err := ds.BuildDataset(p.cand)
		if err != nil {
			return nil, err
		}
		depth := params.MaxLength
		if depth < params.MaxLengthProbe {
			depth = params.MaxLengthProbe
		}
		full := tree.Fit(data, lf, tree.FitParams{
			MaxDepth:       depth,
			MinNumSamples:  1,
			Regularization: params.Regularization,
			GridFactor:     params.GridFactor,
		})
		results = append(results, Result{Candidate: p.cand, Tree: full})
	}
	return results, nil
}

// scoreTree sums the per-row loss reduction a fitted tree achieves
// over its own dataset, used to rank probed candidates (spec.md §4.I
// step 3: "Score by the loss value").
func scoreTree(ds *tree.Dataset, t *tree.Tree, lf *loss.Function) (float64, bool) {
	if len(t.Nodes) == 0 {
		return 0, false
	}
	var total float64
	for r := 0; r < ds.NumRows(); r++ {
		delta, err := t.Predict(ds, r)
		if err != nil {
			return 0, false
		}
		lossRow := ds.LossRows[r]
		total += -(lf.Gradient(lossRow)*delta + 0.5*lf.Hessian(lossRow)*delta*delta)
	}
	return total, true
}
