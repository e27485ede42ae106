// Package agg enumerates the engine's aggregation kinds (spec.md §4.E)
// and their dispatch properties, replacing the C++ CRTP/SFINAE
// aggregator hierarchy the original uses (spec.md §9 design note) with
// a plain string enum plus const-like methods.
//
// Grounded on the teacher's internal/core.DataType / internal/dialect.Type
// idiom: a string-backed enum with small query methods instead of a
// type hierarchy, and a package-level slice of "all known values" for
// enumeration (internal/core.normalizeDataTypeRules walks such a list).
package agg

import "fmt"

// Kind names one aggregation function a Candidate Tree Builder
// candidate may apply to a column group (spec.md §4.E).
type Kind string

const (
	Count              Kind = "COUNT"
	CountDistinct      Kind = "COUNT_DISTINCT"
	CountMinusDistinct Kind = "COUNT_MINUS_COUNT_DISTINCT"
	Avg                Kind = "AVG"
	Sum                Kind = "SUM"
	Min                Kind = "MIN"
	Max                Kind = "MAX"
	Median             Kind = "MEDIAN"
	Stddev             Kind = "STDDEV"
	Var                Kind = "VAR"
	Skew               Kind = "SKEW"
	Kurtosis           Kind = "KURTOSIS"
	First              Kind = "FIRST"
	Last               Kind = "LAST"
	EWMA1s             Kind = "EWMA_1S"
	EWMA1m             Kind = "EWMA_1M"
	EWMA1h             Kind = "EWMA_1H"
	EWMA1d             Kind = "EWMA_1D"
	EWMA7d             Kind = "EWMA_7D"
	EWMA30d            Kind = "EWMA_30D"
	EWMA90d            Kind = "EWMA_90D"
	EWMA365d           Kind = "EWMA_365D"
	Trend              Kind = "TREND"
	TimeSinceFirstMin  Kind = "TIME_SINCE_FIRST_MIN"
	TimeSinceFirstMax  Kind = "TIME_SINCE_FIRST_MAX"
	TimeSinceLastMin   Kind = "TIME_SINCE_LAST_MIN"
	TimeSinceLastMax   Kind = "TIME_SINCE_LAST_MAX"
	NumMin             Kind = "NUM_MIN"
	NumMax             Kind = "NUM_MAX"
	Q1                 Kind = "Q1"
	Q5                 Kind = "Q5"
	Q10                Kind = "Q10"
	Q25                Kind = "Q25"
	Q75                Kind = "Q75"
	Q90                Kind = "Q90"
	Q95                Kind = "Q95"
	Q99                Kind = "Q99"
	AvgTimeBetween     Kind = "AVG_TIME_BETWEEN"
	CountAboveMean     Kind = "COUNT_ABOVE_MEAN"
	CountBelowMean     Kind = "COUNT_BELOW_MEAN"
	Mode               Kind = "MODE"
	VariationCoeff     Kind = "VARIATION_COEFFICIENT"
)

// All lists every Kind in a stable, declaration order — used to build
// candidate enumerations deterministically (spec.md §4.E, §5 ordering
// invariant).
func All() []Kind {
	return []Kind{
		Count, CountDistinct, CountMinusDistinct,
		Avg, Sum, Min, Max, Median, Stddev, Var, Skew, Kurtosis,
		First, Last,
		EWMA1s, EWMA1m, EWMA1h, EWMA1d, EWMA7d, EWMA30d, EWMA90d, EWMA365d,
		Trend,
		TimeSinceFirstMin, TimeSinceFirstMax, TimeSinceLastMin, TimeSinceLastMax,
		NumMin, NumMax,
		Q1, Q5, Q10, Q25, Q75, Q90, Q95, Q99,
		AvgTimeBetween, CountAboveMean, CountBelowMean, Mode, VariationCoeff,
	}
}

var quantileValue = map[Kind]float64{
	Q1: 0.01, Q5: 0.05, Q10: 0.10, Q25: 0.25,
	Q75: 0.75, Q90: 0.90, Q95: 0.95, Q99: 0.99,
}

var ewmaHalfLifeSeconds = map[Kind]float64{
	EWMA1s:   1,
	EWMA1m:   60,
	EWMA1h:   3600,
	EWMA1d:   86400,
	EWMA7d:   7 * 86400,
	EWMA30d:  30 * 86400,
	EWMA90d:  90 * 86400,
	EWMA365d: 365 * 86400,
}

// NeedsCount reports whether computing k requires a running row count.
func (k Kind) NeedsCount() bool {
	switch k {
	case Count, CountDistinct, CountMinusDistinct, Avg, Stddev, Var, Skew, Kurtosis,
		AvgTimeBetween, CountAboveMean, CountBelowMean, VariationCoeff:
		return true
	}
	return false
}

// NeedsSum reports whether k requires a running sum of values.
func (k Kind) NeedsSum() bool {
	switch k {
	case Avg, Sum, Stddev, Var, Skew, Kurtosis, VariationCoeff:
		return true
	}
	return false
}

// NeedsSumSquared reports whether k requires a running sum of squares.
func (k Kind) NeedsSumSquared() bool {
	switch k {
	case Stddev, Var, Skew, Kurtosis, VariationCoeff:
		return true
	}
	return false
}

// NeedsSumCubed reports whether k requires third/fourth moment sums
// (SKEW needs the third moment, KURTOSIS the fourth; both are driven
// off the same running-moments accumulator).
func (k Kind) NeedsSumCubed() bool {
	switch k {
	case Skew, Kurtosis:
		return true
	}
	return false
}

// NeedsTimeStamp reports whether k requires a peripheral time-stamp
// column to be defined on the join edge (spec.md §4.E: "FIRST/LAST
// skipped when no peripheral time stamp exists").
func (k Kind) NeedsTimeStamp() bool {
	switch k {
	case First, Last, Trend,
		TimeSinceFirstMin, TimeSinceFirstMax, TimeSinceLastMin, TimeSinceLastMax,
		AvgTimeBetween:
		return true
	}
	if k.IsEWMA() {
		return true
	}
	return false
}

// IsEWMA reports whether k is one of the EWMA{window} kinds.
func (k Kind) IsEWMA() bool {
	_, ok := ewmaHalfLifeSeconds[k]
	return ok
}

// EWMAHalfLifeSeconds returns the half-life, in seconds, of an EWMA
// kind. ok is false for non-EWMA kinds.
func (k Kind) EWMAHalfLifeSeconds() (seconds float64, ok bool) {
	v, ok := ewmaHalfLifeSeconds[k]
	return v, ok
}

// IsQuantile reports whether k is one of the Q{p} kinds.
func (k Kind) IsQuantile() bool {
	_, ok := quantileValue[k]
	return ok
}

// QuantileValue returns the quantile in [0,1] for a Q{p} kind. ok is
// false for non-quantile kinds.
func (k Kind) QuantileValue() (p float64, ok bool) {
	v, ok := quantileValue[k]
	return v, ok
}

// RequiresNumericInput reports whether k only makes sense over
// numerical/discrete value sources (as opposed to COUNT, COUNT_DISTINCT
// and COUNT_MINUS_COUNT_DISTINCT, which apply to any column group
// regardless of value type).
func (k Kind) RequiresNumericInput() bool {
	switch k {
	case Count, CountDistinct, CountMinusDistinct:
		return false
	}
	return true
}

// String implements fmt.Stringer.
func (k Kind) String() string { return string(k) }

// Validate reports an error if k is not a recognized aggregation kind.
func (k Kind) Validate() error {
	for _, v := range All() {
		if v == k {
			return nil
		}
	}
	return fmt.Errorf("agg: unknown aggregation kind %q", string(k))
}
