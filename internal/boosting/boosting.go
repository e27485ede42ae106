// Package boosting implements the Ensemble (spec.md §4.J): the outer
// gradient-boosting round loop that repeatedly fits a tree against the
// current gradient/hessian, computes its update rate, and appends it
// to an ordered list of (tree, eta) contributions.
//
// Grounded on the teacher's internal/migration.Migration: an ordered
// list of operations applied in sequence, with dedicated accessors
// that filter the list by a discriminant field. Ensemble keeps that
// shape — Contributions is the ordered list, Contribution mirrors
// Operation, and the per-predictor ForPredictor/NumTrees accessors
// mirror filterByKind — but the
// discriminant is now "which predictor this tree belongs to" rather
// than an operation kind, and each entry carries an Eta instead of a
// SQL string.
package boosting

import (
	"context"

	"go.uber.org/zap"

	"relfit/internal/candidates"
	"relfit/internal/fitter"
	"relfit/internal/loss"
	"relfit/internal/tree"
)

// Contribution is one boosting round's winning tree, scaled by its
// update rate, for one predictor (spec.md §4.J: "each round appends
// eta * tree(x) to yhat").
type Contribution struct {
	PredictorIndex int
	Candidate      candidates.Candidate
	Tree           *tree.Tree
	Eta            float64
}

// Ensemble is the ordered list of contributions produced across every
// boosting round, across every predictor the pipeline is fitting
// jointly (spec.md §4.K allows more than one target).
type Ensemble struct {
	Contributions []Contribution
}

// Add appends c. Ensembles are append-only: a discarded round simply
// never calls Add, the same way a failed migration step never reaches
// Migration.AddStatement.
func (e *Ensemble) Add(c Contribution) {
	e.Contributions = append(e.Contributions, c)
}

// ForPredictor filters the ensemble down to one predictor's
// contributions, in fit order — the boosting equivalent of the
// teacher's filterByKind.
func (e *Ensemble) ForPredictor(predictorIndex int) []Contribution {
	out := make([]Contribution, 0, len(e.Contributions)/2+1)
	for _, c := range e.Contributions {
		if c.PredictorIndex == predictorIndex {
			out = append(out, c)
		}
	}
	return out
}

// NumTrees returns the number of contributions recorded for predictorIndex.
func (e *Ensemble) NumTrees(predictorIndex int) int {
	return len(e.ForPredictor(predictorIndex))
}

// Params configures one RunRounds call (spec.md §4.J).
type Params struct {
	MaxRounds int

	// EarlyStoppingRounds stops the loop once this many consecutive
	// rounds fail to improve ValidationLoss below the best seen so far
	// by more than EarlyStoppingTolerance. Zero disables early stopping.
	EarlyStoppingRounds    int
	EarlyStoppingTolerance float64

	Fitter fitter.Params
}

// ValidationFunc reports the current held-out loss after a round's
// contribution has been applied, for the early-stopping check. nil
// disables early stopping regardless of Params.
type ValidationFunc func() float64

// RunRounds executes the outer boosting loop for one predictor (spec.md
// §4.J steps: recompute g/h is implicit in loss.Function already
// tracking yhat; invoke the Tree Fitter; compute eta; store the tree;
// update yhat; check early stopping).
func RunRounds(ctx context.Context, e *Ensemble, predictorIndex int, cands []candidates.Candidate, ds fitter.DatasetBuilder, lf *loss.Function, params Params, validate ValidationFunc, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	var bestValidation float64
	haveBest := false
	staleRounds := 0

	for round := 0; round < params.MaxRounds; round++ {
		results, err := fitter.Fit(ctx, cands, ds, lf, params.Fitter, log)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			log.Info("boosting: round produced no viable candidate, stopping", zap.Int("round", round))
			break
		}

		for _, r := range results {
			if err := applyContribution(e, predictorIndex, r, ds, lf, log, round); err != nil {
				return err
			}
		}

		if validate == nil || params.EarlyStoppingRounds <= 0 {
			continue
		}
		current := validate()
		if !haveBest || current < bestValidation-params.EarlyStoppingTolerance {
			bestValidation = current
			haveBest = true
			staleRounds = 0
			continue
		}
		staleRounds++
		log.Info("boosting: validation loss did not improve", zap.Int("round", round), zap.Float64("loss", current), zap.Int("stale_rounds", staleRounds))
		if staleRounds >= params.EarlyStoppingRounds {
			log.Info("boosting: early stopping", zap.Int("round", round))
			break
		}
	}
	return nil
}

// applyContribution predicts r.Tree's raw delta over every population
// row, folded across each row's matches by the candidate's aggregation
// kind (zero for rows the candidate's peripheral never matched),
// computes the update rate against lf, scales lf's prediction vector
// by it, and appends the contribution to e (spec.md §4.J: "compute eta
// ... yhat += eta * tree(x)").
func applyContribution(e *Ensemble, predictorIndex int, r fitter.Result, ds fitter.DatasetBuilder, lf *loss.Function, log *zap.Logger, round int) error {
	data, err := ds.BuildDataset(r.Candidate)
	if err != nil {
		return err
	}

	full, err := tree.Aggregate(data, r.Tree, r.Candidate.Aggregation, lf.Len())
	if err != nil {
		return err
	}

	eta, err := lf.UpdateRate(full)
	if err != nil {
		return err
	}

	scaled := make([]float64, len(full))
	for i, d := range full {
		scaled[i] = eta * d
	}
	lf.ApplyUpdateVector(scaled)

	e.Add(Contribution{PredictorIndex: predictorIndex, Candidate: r.Candidate, Tree: r.Tree, Eta: eta})
	log.Info("boosting: added tree", zap.Int("round", round), zap.Float64("eta", eta), zap.Int("num_leaves", r.Tree.NumLeaves()))
	return nil
}
