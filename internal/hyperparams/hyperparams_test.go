package hyperparams_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"relfit/internal/agg"
	"relfit/internal/hyperparams"
	"relfit/internal/loss"
)

const sample = `
loss = "classification"
lambda = 0.5
min_df = 10
manual_features = ["age", "country"]

[candidates]
aggregations = ["COUNT", "AVG", "SUM"]
num_subfeatures = 2
round_robin = false
seed = 42

[boosting]
max_rounds = 50
early_stopping_rounds = 5
early_stopping_tolerance = 0.001

[fitter]
max_length_probe = 1
max_length = 3
num_trees = 100
regularization = 0.1
lambda = 0.5
grid_factor = 0.5
max_workers = 4
`

func TestParseDecodesEveryComponent(t *testing.T) {
	hp, err := hyperparams.Parse(strings.NewReader(sample))
	require.NoError(t, err)

	require.Equal(t, loss.Classification, hp.Loss)
	require.Equal(t, 0.5, hp.Lambda)
	require.Equal(t, 10, hp.MinDF)
	require.Equal(t, []string{"age", "country"}, hp.ManualFeatures)

	require.Equal(t, []agg.Kind{agg.Count, agg.Avg, agg.Sum}, hp.Candidates.Aggregations)
	require.Equal(t, 2, hp.Candidates.NumSubfeatures)
	require.Equal(t, uint64(42), hp.Candidates.Seed)
	require.Equal(t, -1, hp.Candidates.FeatureIndex)

	require.Equal(t, 50, hp.Boosting.MaxRounds)
	require.Equal(t, 5, hp.Boosting.EarlyStoppingRounds)
	require.Equal(t, 100, hp.Boosting.Fitter.NumTrees)
	require.Equal(t, 0.5, hp.Boosting.Fitter.GridFactor)
}

func TestParseDefaultsLossToRegression(t *testing.T) {
	hp, err := hyperparams.Parse(strings.NewReader(`lambda = 1`))
	require.NoError(t, err)
	require.Equal(t, loss.Regression, hp.Loss)
}

func TestParseRejectsUnknownLoss(t *testing.T) {
	_, err := hyperparams.Parse(strings.NewReader(`loss = "poisson"`))
	require.Error(t, err)
}

func TestParseRejectsUnknownAggregation(t *testing.T) {
	_, err := hyperparams.Parse(strings.NewReader(`
[candidates]
aggregations = ["NOT_A_REAL_AGGREGATION"]
`))
	require.Error(t, err)
}

func TestParseFileMissingPathErrors(t *testing.T) {
	_, err := hyperparams.ParseFile("/nonexistent/path/hyperparams.toml")
	require.Error(t, err)
}

func TestParseFeatureIndexOverride(t *testing.T) {
	hp, err := hyperparams.Parse(strings.NewReader(`
[candidates]
round_robin = true
feature_index = 3
`))
	require.NoError(t, err)
	require.True(t, hp.Candidates.RoundRobin)
	require.Equal(t, 3, hp.Candidates.FeatureIndex)
}
