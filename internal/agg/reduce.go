package agg

import (
	"math"
	"sort"

	"relfit/internal/interagg"
)

// Reduce folds one population row's per-match leaf predictions xs
// (paired with tsDiff, population_ts - peripheral_ts, parallel to xs)
// into the single value k's SQL aggregation would compute over the
// same matches — internal/dialect.StandardAggregation is the ground
// truth for the kinds it can render; Reduce covers every Kind,
// SQL-renderable or not, so in-process Transform and emitted SQL agree
// (spec.md §8.5). An empty xs (a population row with no matches)
// reduces to 0 for every kind. tsDiff may be nil for kinds whose
// NeedsTimeStamp is false. A NaN entry in xs (this package's sentinel
// for a missing value) is dropped before folding, along with its
// paired tsDiff, so COUNT/COUNT_DISTINCT never count a missing row.
//
// Grounded on internal/interagg.Cell: the running-moments accumulator
// built for Intermediate Aggregation backs every moment-based kind
// here (COUNT/SUM/AVG/STDDEV/VAR/SKEW/KURTOSIS/VARIATION_COEFFICIENT)
// rather than reimplementing the same sums a second time.
func (k Kind) Reduce(xs []float64, tsDiff []float64) float64 {
	xs, tsDiff = dropMissing(xs, tsDiff)
	if len(xs) == 0 {
		return 0
	}
	cell := interagg.NewCell()
	for _, x := range xs {
		cell.AddRow(x)
	}

	switch k {
	case Count:
		return float64(cell.Count())
	case CountDistinct:
		return float64(countDistinct(xs))
	case CountMinusDistinct:
		return float64(cell.Count() - countDistinct(xs))
	case Sum:
		return cell.Sum()
	case Avg:
		return cell.Avg()
	case Min:
		return minOf(xs)
	case Max:
		return maxOf(xs)
	case Median:
		return percentile(sortedCopy(xs), 0.5)
	case Stddev:
		return cell.Stddev()
	case Var:
		return cell.Var()
	case Skew:
		return cell.Skewness()
	case Kurtosis:
		return cell.Kurtosis()
	case First:
		return atExtreme(xs, tsDiff, true)
	case Last:
		return atExtreme(xs, tsDiff, false)
	case Trend:
		return trendOf(xs, tsDiff)
	case TimeSinceFirstMin:
		return timeSinceExtreme(xs, tsDiff, minOf(xs), true)
	case TimeSinceFirstMax:
		return timeSinceExtreme(xs, tsDiff, maxOf(xs), true)
	case TimeSinceLastMin:
		return timeSinceExtreme(xs, tsDiff, minOf(xs), false)
	case TimeSinceLastMax:
		return timeSinceExtreme(xs, tsDiff, maxOf(xs), false)
	case NumMin:
		return float64(countEqual(xs, minOf(xs)))
	case NumMax:
		return float64(countEqual(xs, maxOf(xs)))
	case AvgTimeBetween:
		return avgTimeBetween(tsDiff)
	case CountAboveMean:
		return float64(countAboveBelow(xs, cell.Avg(), true))
	case CountBelowMean:
		return float64(countAboveBelow(xs, cell.Avg(), false))
	case Mode:
		return modeOf(xs)
	case VariationCoeff:
		mean := cell.Avg()
		if mean == 0 {
			return 0
		}
		return cell.Stddev() / mean
	}
	if half, ok := k.EWMAHalfLifeSeconds(); ok {
		return ewmaOf(xs, tsDiff, half)
	}
	if p, ok := k.QuantileValue(); ok {
		return percentile(sortedCopy(xs), p)
	}
	// "" (no aggregation, the predictor's one-match-per-row datasets)
	// and any future unrecognized kind pass through as a sum; every
	// group that reaches Reduce with kind "" has exactly one element,
	// so sum is the identity.
	return cell.Sum()
}

// dropMissing filters out NaN entries (this package's one sentinel for
// a missing value, matching tree.Predict/sqlgen's NULL-safe handling)
// so COUNT/COUNT_DISTINCT/etc. never count a missing row — spec.md §8
// scenario 3: "COUNT DISTINCT on categorical column with values
// [A,A,B,C,NULL] returns 3 (null excluded)".
func dropMissing(xs, tsDiff []float64) ([]float64, []float64) {
	missing := false
	for _, x := range xs {
		if math.IsNaN(x) {
			missing = true
			break
		}
	}
	if !missing {
		return xs, tsDiff
	}
	outX := make([]float64, 0, len(xs))
	var outTS []float64
	if tsDiff != nil {
		outTS = make([]float64, 0, len(tsDiff))
	}
	for i, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		outX = append(outX, x)
		if tsDiff != nil {
			outTS = append(outTS, tsDiff[i])
		}
	}
	return outX, outTS
}

func countDistinct(xs []float64) int {
	seen := make(map[float64]struct{}, len(xs))
	for _, x := range xs {
		seen[x] = struct{}{}
	}
	return len(seen)
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func countEqual(xs []float64, target float64) int {
	n := 0
	for _, x := range xs {
		if x == target {
			n++
		}
	}
	return n
}

func countAboveBelow(xs []float64, mean float64, above bool) int {
	n := 0
	for _, x := range xs {
		if above && x > mean {
			n++
		} else if !above && x < mean {
			n++
		}
	}
	return n
}

func sortedCopy(xs []float64) []float64 {
	out := append([]float64(nil), xs...)
	sort.Float64s(out)
	return out
}

// percentile linearly interpolates the p-quantile (p in [0,1]) of an
// already-sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func modeOf(xs []float64) float64 {
	counts := make(map[float64]int, len(xs))
	order := make([]float64, 0, len(xs))
	for _, x := range xs {
		if counts[x] == 0 {
			order = append(order, x)
		}
		counts[x]++
	}
	best := order[0]
	bestCount := counts[best]
	for _, x := range order[1:] {
		if counts[x] > bestCount {
			best = x
			bestCount = counts[x]
		}
	}
	return best
}

// atExtreme returns the value of the match furthest in the past
// (first=true, largest tsDiff) or closest to the population row
// (first=false, smallest tsDiff). Matches arrive in peripheral-row
// order, not timestamp order (internal/match.Match), so FIRST/LAST
// must scan tsDiff rather than trust xs's order.
func atExtreme(xs, tsDiff []float64, first bool) float64 {
	if len(tsDiff) != len(xs) {
		return 0
	}
	best := 0
	for i := 1; i < len(xs); i++ {
		if first && tsDiff[i] > tsDiff[best] {
			best = i
		} else if !first && tsDiff[i] < tsDiff[best] {
			best = i
		}
	}
	return xs[best]
}

// timeSinceExtreme returns the tsDiff ("time since", in the population
// row's frame) of the match equal to target that is furthest in the
// past (first=true) or most recent (first=false).
func timeSinceExtreme(xs, tsDiff []float64, target float64, first bool) float64 {
	if len(tsDiff) != len(xs) {
		return 0
	}
	found := false
	var best float64
	for i, x := range xs {
		if x != target {
			continue
		}
		if !found {
			best, found = tsDiff[i], true
			continue
		}
		if first && tsDiff[i] > best {
			best = tsDiff[i]
		} else if !first && tsDiff[i] < best {
			best = tsDiff[i]
		}
	}
	if !found {
		return 0
	}
	return best
}

// trendOf returns the OLS slope of xs against elapsed chronological
// time (-tsDiff increases forward in time, since tsDiff itself shrinks
// as a peripheral event approaches the population row's reference
// time).
func trendOf(xs, tsDiff []float64) float64 {
	n := len(xs)
	if n < 2 || len(tsDiff) != n {
		return 0
	}
	var sumT, sumX, sumTT, sumTX float64
	for i := 0; i < n; i++ {
		t := -tsDiff[i]
		sumT += t
		sumX += xs[i]
		sumTT += t * t
		sumTX += t * xs[i]
	}
	nf := float64(n)
	denom := nf*sumTT - sumT*sumT
	if denom == 0 {
		return 0
	}
	return (nf*sumTX - sumT*sumX) / denom
}

// avgTimeBetween returns the average gap between consecutive matches
// in chronological order, or 0 with fewer than two matches.
func avgTimeBetween(tsDiff []float64) float64 {
	n := len(tsDiff)
	if n < 2 {
		return 0
	}
	sorted := append([]float64(nil), tsDiff...)
	sort.Float64s(sorted)
	var total float64
	for i := 1; i < n; i++ {
		total += sorted[i] - sorted[i-1]
	}
	return total / float64(n-1)
}

// ewmaOf weights each match by exp(-ln2 * |tsDiff| / halfLifeSeconds)
// and returns the weighted average.
func ewmaOf(xs, tsDiff []float64, halfLifeSeconds float64) float64 {
	if len(tsDiff) != len(xs) {
		return 0
	}
	var wsum, wxsum float64
	for i, x := range xs {
		w := math.Exp(-math.Ln2 * math.Abs(tsDiff[i]) / halfLifeSeconds)
		wsum += w
		wxsum += w * x
	}
	if wsum == 0 {
		return 0
	}
	return wxsum / wsum
}
