package metrics

import (
	"context"
	"sort"

	"relfit/internal/column"
)

// aucMetric computes the ROC AUC, lift, and precision curves for a
// binary target (spec.md §4.L): "compresses ties, computes TPR/FPR
// arrays, trapezoidal AUC, downsamples curves to <=200 points; also
// lift and precision", grounded on original_source's AUC.hpp method
// list (make_pairs -> calc_true_positives_uncompressed -> compress ->
// calc_rate/calc_false_positives/calc_lift/calc_precision -> calc_auc
// -> downsample).
type aucMetric struct{}

const maxCurvePoints = 200

func (aucMetric) Score(ctx context.Context, yhat, y []*column.Column[float64], workers int) (Result, error) {
	if err := checkShapes(yhat, y); err != nil {
		return Result{}, err
	}
	nRows := yRows(y)

	result := Result{
		AUC:               make([]float64, len(y)),
		TruePositiveRate:  make([][]float64, len(y)),
		FalsePositiveRate: make([][]float64, len(y)),
		Lift:              make([][]float64, len(y)),
		Precision:         make([][]float64, len(y)),
	}
	for j := range y {
		tpr, fpr, lift, precision, auc := aucCurve(yhat[j], y[j], nRows)
		result.TruePositiveRate[j] = downsample(tpr)
		result.FalsePositiveRate[j] = downsample(fpr)
		result.Lift[j] = downsample(lift)
		result.Precision[j] = downsample(precision)
		result.AUC[j] = auc
	}
	return result, nil
}

type tieGroup struct {
	prediction float64
	count      int
	positives  float64
}

// aucCurve builds the tie-compressed TPR/FPR/lift/precision curves
// (each prefixed with the (0,0)/(0, undefined) origin point) and the
// trapezoidal AUC under TPR-vs-FPR.
func aucCurve(predCol, targetCol *column.Column[float64], nRows int) (tpr, fpr, lift, precision []float64, auc float64) {
	if nRows == 0 {
		return []float64{0, 0}, []float64{0, 0}, []float64{0, 0}, []float64{0, 0}, 0.5
	}

	groups := compressByPrediction(predCol, targetCol, nRows)

	var totalPositives float64
	for _, g := range groups {
		totalPositives += g.positives
	}
	totalNegatives := float64(nRows) - totalPositives

	tpr = append(tpr, 0)
	fpr = append(fpr, 0)
	lift = append(lift, 0)
	precision = append(precision, 0)

	var cumPositives, cumCount float64
	for _, g := range groups {
		cumPositives += g.positives
		cumCount += float64(g.count)

		cumNegatives := cumCount - cumPositives

		t := safeDiv(cumPositives, totalPositives)
		f := safeDiv(cumNegatives, totalNegatives)
		p := safeDiv(cumPositives, cumCount)

		// Lift is precision over the baseline positive rate: how much
		// better targeting everything at or above this threshold does
		// versus targeting at random.
		baseline := safeDiv(totalPositives, float64(nRows))
		l := safeDiv(p, baseline)

		tpr = append(tpr, t)
		fpr = append(fpr, f)
		lift = append(lift, l)
		precision = append(precision, p)
	}

	auc = trapezoidalAUC(fpr, tpr)
	return tpr, fpr, lift, precision, auc
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// compressByPrediction groups rows by identical prediction value,
// sorted from highest prediction to lowest, so curves built by walking
// the groups in order never depend on an arbitrary tie-break among
// equal predictions (spec.md §4.L "compresses ties").
func compressByPrediction(predCol, targetCol *column.Column[float64], nRows int) []tieGroup {
	byPred := make(map[float64]*tieGroup, nRows)
	order := make([]float64, 0, nRows)
	for i := 0; i < nRows; i++ {
		p := predCol.MustAt(i)
		g, ok := byPred[p]
		if !ok {
			g = &tieGroup{prediction: p}
			byPred[p] = g
			order = append(order, p)
		}
		g.count++
		g.positives += targetCol.MustAt(i)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(order)))
	out := make([]tieGroup, len(order))
	for i, p := range order {
		out[i] = *byPred[p]
	}
	return out
}

// trapezoidalAUC integrates y over x, both assumed monotonically
// non-decreasing in the order given.
func trapezoidalAUC(x, y []float64) float64 {
	var area float64
	for i := 1; i < len(x); i++ {
		dx := x[i] - x[i-1]
		area += dx * (y[i] + y[i-1]) / 2
	}
	return area
}

// downsample thins curve to at most maxCurvePoints evenly spaced
// samples, always keeping the first and last point (spec.md §4.L
// "downsamples curves to <=200 points").
func downsample(curve []float64) []float64 {
	if len(curve) <= maxCurvePoints {
		return curve
	}
	out := make([]float64, maxCurvePoints)
	step := float64(len(curve)-1) / float64(maxCurvePoints-1)
	for i := 0; i < maxCurvePoints; i++ {
		idx := int(float64(i) * step)
		if idx >= len(curve) {
			idx = len(curve) - 1
		}
		out[i] = curve[idx]
	}
	return out
}
