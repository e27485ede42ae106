// Package metrics implements the scoring Metric family (spec.md §4.L):
// Accuracy, AUC (with lift and precision curves), RMSE, MAE, R², and
// CrossEntropy, each taking row-aligned prediction/target columns and
// producing a named score. RMSE, MAE, R² and CrossEntropy optionally
// reduce their sufficient statistics across workers before computing
// the final scalar, via internal/reduce rather than a hand-rolled
// communicator; Accuracy and AUC ignore workers and score sequentially.
//
// Grounded on the teacher's internal/output.NewFormatter dispatch (a
// Format enum selecting one of a small fixed set of interface
// implementations): metrics.New selects a Metric the same way, and
// CrossEntropy's exact per-row log-loss formula (including the -1
// sentinel on an inf/NaN result) follows original_source's
// metrics::CrossEntropy::score.
package metrics

import (
	"context"
	"math"

	"relfit/internal/column"
	"relfit/internal/engineerr"
	"relfit/internal/reduce"
)

// Kind selects which metric New constructs.
type Kind string

const (
	AccuracyKind     Kind = "accuracy"
	AUCKind          Kind = "auc"
	RMSEKind         Kind = "rmse"
	MAEKind          Kind = "mae"
	RSquaredKind     Kind = "r_squared"
	CrossEntropyKind Kind = "cross_entropy"
)

// Metric scores predictions against targets, both as equal-shaped
// Features (one Column per target). Workers is a hint for how many
// reduce partitions to use; 0 or 1 scores sequentially with no
// reduction.
type Metric interface {
	Score(ctx context.Context, yhat, y []*column.Column[float64], workers int) (Result, error)
}

// Result is the metric's named-tuple-style output (spec.md §4.L:
// "Each exposes score() -> named tuple"); only the fields relevant to
// the concrete Metric are populated.
type Result struct {
	PerColumn []float64 // RMSE/MAE/R2/CrossEntropy: one scalar per target column

	// AUC-specific curves, one entry per target column.
	AUC                []float64
	TruePositiveRate   [][]float64
	FalsePositiveRate  [][]float64
	Lift               [][]float64
	Precision          [][]float64

	// Accuracy-specific.
	BestAccuracy []float64
	Thresholds   [][]float64
	AccuracyAtThreshold [][]float64
}

// New constructs the Metric named by kind (spec.md §4.L enumeration).
func New(kind Kind) (Metric, error) {
	switch kind {
	case AccuracyKind:
		return accuracyMetric{}, nil
	case AUCKind:
		return aucMetric{}, nil
	case RMSEKind:
		return rmseMetric{}, nil
	case MAEKind:
		return maeMetric{}, nil
	case RSquaredKind:
		return rSquaredMetric{}, nil
	case CrossEntropyKind:
		return crossEntropyMetric{}, nil
	default:
		return nil, engineerr.Newf(engineerr.InvalidArgument, "metrics: unsupported kind %q", kind)
	}
}

func checkShapes(yhat, y []*column.Column[float64]) error {
	if len(yhat) != len(y) {
		return engineerr.Newf(engineerr.InvalidArgument, "metrics: %d prediction columns vs %d target columns", len(yhat), len(y))
	}
	for j := range yhat {
		if yhat[j].Len() != y[j].Len() {
			return engineerr.Newf(engineerr.InvalidArgument, "metrics: column %d: %d predictions vs %d targets", j, yhat[j].Len(), y[j].Len())
		}
	}
	return nil
}

// reducePerColumn sums partial[workerIndex] across workers into one
// []float64 sum per column, computing each worker's partial sums
// concurrently through internal/reduce (spec.md §4.L: "accept an
// optional communicator and reduce sufficient statistics across
// workers").
func reducePerColumn(ctx context.Context, nRows, numCols, workers int, partial func(rowStart, rowEnd int) []float64) ([]float64, error) {
	if workers <= 1 || nRows == 0 {
		return partial(0, nRows), nil
	}
	chunk := (nRows + workers - 1) / workers
	identity := make([]float64, numCols)
	return reduce.AllReduce(ctx, workers, workers, identity,
		func(_ context.Context, w int) ([]float64, error) {
			start := w * chunk
			end := start + chunk
			if start > nRows {
				start = nRows
			}
			if end > nRows {
				end = nRows
			}
			return partial(start, end), nil
		},
		func(acc, p []float64) []float64 {
			for i := range acc {
				acc[i] += p[i]
			}
			return acc
		},
	)
}

type rmseMetric struct{}

func (rmseMetric) Score(ctx context.Context, yhat, y []*column.Column[float64], workers int) (Result, error) {
	if err := checkShapes(yhat, y); err != nil {
		return Result{}, err
	}
	nRows := yRows(y)
	sumSq, err := reducePerColumn(ctx, nRows, len(y), workers, func(start, end int) []float64 {
		out := make([]float64, len(y))
		for j := range y {
			for i := start; i < end; i++ {
				d := yhat[j].MustAt(i) - y[j].MustAt(i)
				out[j] += d * d
			}
		}
		return out
	})
	if err != nil {
		return Result{}, err
	}
	out := make([]float64, len(y))
	for j := range out {
		out[j] = math.Sqrt(sumSq[j] / float64(nRows))
	}
	return Result{PerColumn: out}, nil
}

type maeMetric struct{}

func (maeMetric) Score(ctx context.Context, yhat, y []*column.Column[float64], workers int) (Result, error) {
	if err := checkShapes(yhat, y); err != nil {
		return Result{}, err
	}
	nRows := yRows(y)
	sumAbs, err := reducePerColumn(ctx, nRows, len(y), workers, func(start, end int) []float64 {
		out := make([]float64, len(y))
		for j := range y {
			for i := start; i < end; i++ {
				out[j] += math.Abs(yhat[j].MustAt(i) - y[j].MustAt(i))
			}
		}
		return out
	})
	if err != nil {
		return Result{}, err
	}
	out := make([]float64, len(y))
	for j := range out {
		out[j] = sumAbs[j] / float64(nRows)
	}
	return Result{PerColumn: out}, nil
}

type rSquaredMetric struct{}

// Score runs two reduced passes: the first accumulates Sigma(y) per
// column to get the mean, the second accumulates the residual and
// total sum-of-squares against that mean — each pass independently
// parallelizable via internal/reduce.
func (rSquaredMetric) Score(ctx context.Context, yhat, y []*column.Column[float64], workers int) (Result, error) {
	if err := checkShapes(yhat, y); err != nil {
		return Result{}, err
	}
	nRows := yRows(y)
	numCols := len(y)

	sumY, err := reducePerColumn(ctx, nRows, numCols, workers, func(start, end int) []float64 {
		out := make([]float64, numCols)
		for j := range y {
			for i := start; i < end; i++ {
				out[j] += y[j].MustAt(i)
			}
		}
		return out
	})
	if err != nil {
		return Result{}, err
	}
	mean := make([]float64, numCols)
	for j := range mean {
		mean[j] = sumY[j] / float64(nRows)
	}

	// ssRes and ssTot are interleaved 2*numCols-wide so the second pass
	// is also a single reducePerColumn call.
	sumSq, err := reducePerColumn(ctx, nRows, 2*numCols, workers, func(start, end int) []float64 {
		out := make([]float64, 2*numCols)
		for j := range y {
			for i := start; i < end; i++ {
				yi := y[j].MustAt(i)
				pi := yhat[j].MustAt(i)
				out[2*j] += (yi - pi) * (yi - pi)
				out[2*j+1] += (yi - mean[j]) * (yi - mean[j])
			}
		}
		return out
	})
	if err != nil {
		return Result{}, err
	}

	out := make([]float64, numCols)
	for j := range out {
		ssRes, ssTot := sumSq[2*j], sumSq[2*j+1]
		if ssTot == 0 {
			out[j] = 0
			continue
		}
		out[j] = 1 - ssRes/ssTot
	}
	return Result{PerColumn: out}, nil
}

// crossEntropyMetric implements the exact formula from
// original_source's metrics::CrossEntropy::score: per row, -log(yhat)
// when y==1 and -log(1-yhat) when y==0, summed and divided by row
// count; a column whose sum is inf or NaN (predictions hit exactly 0
// or 1) reports -1, the spec's "undefined" sentinel. A target outside
// {0,1} is rejected up front, mirroring the original's runtime_error.
type crossEntropyMetric struct{}

func (crossEntropyMetric) Score(ctx context.Context, yhat, y []*column.Column[float64], workers int) (Result, error) {
	if err := checkShapes(yhat, y); err != nil {
		return Result{}, err
	}
	nRows := yRows(y)

	for j := range y {
		for i := 0; i < nRows; i++ {
			if v := y[j].MustAt(i); v != 0 && v != 1 {
				return Result{}, engineerr.Newf(engineerr.InvalidArgument, "metrics: cross_entropy: target must be 0 or 1, got %v at column %d row %d", v, j, i)
			}
		}
	}

	sums, err := reducePerColumn(ctx, nRows, len(y), workers, func(start, end int) []float64 {
		out := make([]float64, len(y))
		for j := range y {
			for i := start; i < end; i++ {
				pi := yhat[j].MustAt(i)
				if y[j].MustAt(i) == 0 {
					out[j] -= math.Log(1 - pi)
				} else {
					out[j] -= math.Log(pi)
				}
			}
		}
		return out
	})
	if err != nil {
		return Result{}, err
	}

	out := make([]float64, len(y))
	for j := range out {
		v := sums[j] / float64(nRows)
		if math.IsInf(v, 0) || math.IsNaN(v) {
			v = -1
		}
		out[j] = v
	}
	return Result{PerColumn: out}, nil
}

func yRows(y []*column.Column[float64]) int {
	if len(y) == 0 {
		return 0
	}
	return y[0].Len()
}
