// Package hyperparams reads a pipeline.HyperParams config from TOML
// (spec.md §6 persisted pipeline layout; the `Pipeline.fit` command
// takes hyperparameters as a JSON/TOML-shaped document from the client
// tier).
//
// Grounded on the teacher's internal/parser/toml: the same
// file-or-reader decode entry points (ParseFile delegating to Parse),
// the same "decode into an intermediate toml-tagged struct, then
// convert/validate into the real domain type" two-step, built on the
// same github.com/BurntSushi/toml dependency.
package hyperparams

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"relfit/internal/agg"
	"relfit/internal/boosting"
	"relfit/internal/candidates"
	"relfit/internal/engineerr"
	"relfit/internal/fitter"
	"relfit/internal/loss"
	"relfit/internal/pipeline"
)

// document is the top-level TOML shape. Table names match spec.md's
// component names so a hand-written config reads as a hyperparameter
// set per component rather than a flat bag of knobs.
type document struct {
	Candidates candidatesTable `toml:"candidates"`
	Boosting   boostingTable   `toml:"boosting"`
	Fitter     fitterTable     `toml:"fitter"`
	Loss       string          `toml:"loss"`
	Lambda     float64         `toml:"lambda"`
	MinDF      int             `toml:"min_df"`

	ManualFeatures []string `toml:"manual_features"`
}

type candidatesTable struct {
	Aggregations      []string `toml:"aggregations"`
	NumSubfeatures    int      `toml:"num_subfeatures"`
	ShareAggregations *float64 `toml:"share_aggregations"`
	RoundRobin        bool     `toml:"round_robin"`
	FeatureIndex      *int     `toml:"feature_index"`
	Seed              uint64   `toml:"seed"`
}

type boostingTable struct {
	MaxRounds              int     `toml:"max_rounds"`
	EarlyStoppingRounds    int     `toml:"early_stopping_rounds"`
	EarlyStoppingTolerance float64 `toml:"early_stopping_tolerance"`
}

type fitterTable struct {
	MaxLengthProbe int     `toml:"max_length_probe"`
	MaxLength      int     `toml:"max_length"`
	NumTrees       int     `toml:"num_trees"`
	Regularization float64 `toml:"regularization"`
	Lambda         float64 `toml:"lambda"`
	GridFactor     float64 `toml:"grid_factor"`
	MaxWorkers     int     `toml:"max_workers"`
}

// ParseFile opens path and parses it as a hyperparameters TOML
// document.
func ParseFile(path string) (pipeline.HyperParams, error) {
	f, err := os.Open(path)
	if err != nil {
		return pipeline.HyperParams{}, fmt.Errorf("hyperparams: open file %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a TOML document from r and converts it into a
// pipeline.HyperParams.
func Parse(r io.Reader) (pipeline.HyperParams, error) {
	var doc document
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return pipeline.HyperParams{}, fmt.Errorf("hyperparams: decode error: %w", err)
	}
	return convert(doc)
}

func convert(doc document) (pipeline.HyperParams, error) {
	lossTask, err := convertLoss(doc.Loss)
	if err != nil {
		return pipeline.HyperParams{}, err
	}

	aggs, err := convertAggregations(doc.Candidates.Aggregations)
	if err != nil {
		return pipeline.HyperParams{}, err
	}

	featureIndex := -1
	if doc.Candidates.FeatureIndex != nil {
		featureIndex = *doc.Candidates.FeatureIndex
	}

	return pipeline.HyperParams{
		Candidates: candidates.HyperParams{
			Aggregations:      aggs,
			NumSubfeatures:    doc.Candidates.NumSubfeatures,
			ShareAggregations: doc.Candidates.ShareAggregations,
			RoundRobin:        doc.Candidates.RoundRobin,
			FeatureIndex:      featureIndex,
			Seed:              doc.Candidates.Seed,
		},
		Boosting: boosting.Params{
			MaxRounds:              doc.Boosting.MaxRounds,
			EarlyStoppingRounds:    doc.Boosting.EarlyStoppingRounds,
			EarlyStoppingTolerance: doc.Boosting.EarlyStoppingTolerance,
			Fitter: fitter.Params{
				MaxLengthProbe: doc.Fitter.MaxLengthProbe,
				MaxLength:      doc.Fitter.MaxLength,
				NumTrees:       doc.Fitter.NumTrees,
				Regularization: doc.Fitter.Regularization,
				Lambda:         doc.Fitter.Lambda,
				GridFactor:     doc.Fitter.GridFactor,
				MaxWorkers:     doc.Fitter.MaxWorkers,
			},
		},
		Loss:           lossTask,
		Lambda:         doc.Lambda,
		MinDF:          doc.MinDF,
		ManualFeatures: append([]string(nil), doc.ManualFeatures...),
	}, nil
}

func convertLoss(raw string) (loss.Task, error) {
	switch raw {
	case "", "regression":
		return loss.Regression, nil
	case "classification":
		return loss.Classification, nil
	default:
		return 0, engineerr.Newf(engineerr.InvalidArgument, "hyperparams: unsupported loss %q; supported: regression, classification", raw)
	}
}

func convertAggregations(raw []string) ([]agg.Kind, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]agg.Kind, len(raw))
	for i, name := range raw {
		kind := agg.Kind(name)
		if err := kind.Validate(); err != nil {
			return nil, fmt.Errorf("hyperparams: aggregations[%d]: %w", i, err)
		}
		out[i] = kind
	}
	return out, nil
}
