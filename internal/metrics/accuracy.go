package metrics

import (
	"context"
	"sort"

	"relfit/internal/column"
)

// accuracyMetric scores each column by sweeping every distinct
// prediction value as a decision threshold and reporting the
// accuracy curve plus its maximum (spec.md §4.L: "curves across
// thresholds; f_accuracy is best observed accuracy").
type accuracyMetric struct{}

func (accuracyMetric) Score(ctx context.Context, yhat, y []*column.Column[float64], workers int) (Result, error) {
	if err := checkShapes(yhat, y); err != nil {
		return Result{}, err
	}
	nRows := yRows(y)

	result := Result{
		BestAccuracy:        make([]float64, len(y)),
		Thresholds:          make([][]float64, len(y)),
		AccuracyAtThreshold: make([][]float64, len(y)),
	}
	for j := range y {
		thresholds, curve := accuracyCurve(yhat[j], y[j], nRows)
		result.Thresholds[j] = thresholds
		result.AccuracyAtThreshold[j] = curve
		best := 0.0
		for _, a := range curve {
			if a > best {
				best = a
			}
		}
		result.BestAccuracy[j] = best
	}
	return result, nil
}

func accuracyCurve(predCol, targetCol *column.Column[float64], nRows int) (thresholds, accuracy []float64) {
	distinct := distinctSortedDesc(predCol, nRows)
	thresholds = make([]float64, len(distinct))
	accuracy = make([]float64, len(distinct))
	for k, threshold := range distinct {
		var correct int
		for i := 0; i < nRows; i++ {
			predicted := 0.0
			if predCol.MustAt(i) >= threshold {
				predicted = 1.0
			}
			if predicted == targetCol.MustAt(i) {
				correct++
			}
		}
		thresholds[k] = threshold
		accuracy[k] = float64(correct) / float64(nRows)
	}
	return thresholds, accuracy
}

func distinctSortedDesc(col *column.Column[float64], nRows int) []float64 {
	seen := make(map[float64]struct{}, nRows)
	out := make([]float64, 0, nRows)
	for i := 0; i < nRows; i++ {
		v := col.MustAt(i)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}
