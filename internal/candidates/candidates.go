// Package candidates implements the Candidate Tree Builder (spec.md
// §4.E): enumerate (peripheral, aggregation, value-source, optional
// subfeature) candidates under the hyperparameters, then narrow the
// list via round-robin selection or a seeded random sample.
//
// Grounded on the teacher's cmd/smf flag-driven option building
// (MigrationOptions assembling a plan from CLI flags): the same
// "gather every applicable combination, then filter by one policy"
// shape, applied to hyperparameter-to-candidate-set construction
// instead of flag-to-migration-step construction. The RNG sampling
// follows internal/reduce's all-reduce broadcast-of-seed idea: every
// worker must draw the same sequence, so the seed is threaded in
// rather than read from process entropy.
package candidates

import (
	"math/rand/v2"
	"sort"

	"relfit/internal/agg"
	"relfit/internal/sameunits"
	"relfit/internal/split"
)

// ValueSource names the column(s) an aggregation reads.
type ValueSource struct {
	DataUsed        split.DataUsed
	ColumnName      string
	OtherColumnName string // non-empty only for same_units_* sources
}

// Candidate is one enumerated (peripheral, aggregation, value source,
// optional subfeature) combination (spec.md §4.E).
type Candidate struct {
	Peripheral   string
	Aggregation  agg.Kind
	Source       ValueSource
	IsSubfeature bool
	FeatureIndex int // position in the pre-filter enumeration, for round_robin
}

// HyperParams configures enumeration and narrowing (spec.md §4.E).
type HyperParams struct {
	Aggregations []agg.Kind

	NumSubfeatures int

	// ShareAggregations, when non-nil, samples max(1, floor(N*share))
	// survivors with a seeded RNG (nil disables sampling; both the
	// source's `< 0` and `== 0` sentinels map to nil — see DESIGN.md).
	ShareAggregations *float64

	RoundRobin   bool
	FeatureIndex int // selects candidate FeatureIndex mod N when RoundRobin; -1 if unset

	Seed uint64
}

// PeripheralShape describes what's available on one peripheral table
// for enumeration purposes.
type PeripheralShape struct {
	Name              string
	HasTimeStamp      bool
	HasSubtable       bool
	NumericalColumns  []string
	DiscreteColumns   []string
	CategoricalColumns []string
	SameUnits         []sameunits.Pair
}

// Build enumerates every candidate for one peripheral under params,
// then applies round_robin or share_aggregations narrowing.
func Build(p PeripheralShape, params HyperParams) []Candidate {
	all := enumerate(p, params)
	for i := range all {
		all[i].FeatureIndex = i
	}
	return narrow(all, params)
}

func enumerate(p PeripheralShape, params HyperParams) []Candidate {
	var out []Candidate

	// COUNT: one per peripheral.
	out = append(out, Candidate{Peripheral: p.Name, Aggregation: agg.Count, Source: ValueSource{DataUsed: split.NotApplicable}})

	// COUNT_DISTINCT / COUNT_MINUS_COUNT_DISTINCT: per categorical and
	// discrete column, plus time-stamp difference.
	for _, col := range sortedCopy(p.CategoricalColumns) {
		out = append(out,
			Candidate{Peripheral: p.Name, Aggregation: agg.CountDistinct, Source: ValueSource{DataUsed: split.CategoricalInput, ColumnName: col}},
			Candidate{Peripheral: p.Name, Aggregation: agg.CountMinusDistinct, Source: ValueSource{DataUsed: split.CategoricalInput, ColumnName: col}},
		)
	}
	for _, col := range sortedCopy(p.DiscreteColumns) {
		out = append(out,
			Candidate{Peripheral: p.Name, Aggregation: agg.CountDistinct, Source: ValueSource{DataUsed: split.DiscreteInput, ColumnName: col}},
			Candidate{Peripheral: p.Name, Aggregation: agg.CountMinusDistinct, Source: ValueSource{DataUsed: split.DiscreteInput, ColumnName: col}},
		)
	}
	if p.HasTimeStamp {
		out = append(out,
			Candidate{Peripheral: p.Name, Aggregation: agg.CountDistinct, Source: ValueSource{DataUsed: split.TimeStampsDiff}},
			Candidate{Peripheral: p.Name, Aggregation: agg.CountMinusDistinct, Source: ValueSource{DataUsed: split.TimeStampsDiff}},
		)
	}

	// Other aggregations over {x_perip_numerical, x_perip_discrete,
	// same_unit_numerical, same_unit_discrete}.
	sources := valueSources(p)
	for _, kind := range requestedOrAll(params.Aggregations) {
		if kind == agg.Count || kind == agg.CountDistinct || kind == agg.CountMinusDistinct {
			continue
		}
		if kind.NeedsTimeStamp() && !p.HasTimeStamp {
			continue
		}
		for _, src := range sources {
			out = append(out, Candidate{Peripheral: p.Name, Aggregation: kind, Source: src})
		}
	}

	// Subfeature aggregations over the first 2*num_subfeatures positions.
	if p.HasSubtable && params.NumSubfeatures > 0 {
		n := 2 * params.NumSubfeatures
		for i := 0; i < n; i++ {
			out = append(out, Candidate{Peripheral: p.Name, Aggregation: agg.Avg, Source: ValueSource{DataUsed: split.Subfeatures, ColumnName: subfeatureName(i)}, IsSubfeature: true})
		}
	}

	return out
}

func subfeatureName(i int) string {
	const letters = "0123456789"
	if i < len(letters) {
		return "subfeature_" + string(letters[i])
	}
	return "subfeature_n"
}

func valueSources(p PeripheralShape) []ValueSource {
	var out []ValueSource
	for _, col := range sortedCopy(p.NumericalColumns) {
		out = append(out, ValueSource{DataUsed: split.NumericalInput, ColumnName: col})
	}
	for _, col := range sortedCopy(p.DiscreteColumns) {
		out = append(out, ValueSource{DataUsed: split.DiscreteInput, ColumnName: col})
	}
	for _, pair := range p.SameUnits {
		out = append(out, ValueSource{
			DataUsed:        sameUnitsDataUsed(pair),
			ColumnName:      pair.PeripheralColumn,
			OtherColumnName: pair.PopulationColumn,
		})
	}
	return out
}

func sameUnitsDataUsed(pair sameunits.Pair) split.DataUsed {
	switch {
	case pair.Role == "discrete" && pair.IsTimeStamp:
		return split.SameUnitsDiscreteTS
	case pair.Role == "discrete":
		return split.SameUnitsDiscrete
	case pair.IsTimeStamp:
		return split.SameUnitsNumericalTS
	default:
		return split.SameUnitsNumerical
	}
}

func requestedOrAll(requested []agg.Kind) []agg.Kind {
	if len(requested) > 0 {
		return requested
	}
	return agg.All()
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// narrow applies round_robin (if enabled) or share_aggregations
// sampling (spec.md §4.E) to all.
func narrow(all []Candidate, params HyperParams) []Candidate {
	n := len(all)
	if n == 0 {
		return all
	}
	if params.RoundRobin && params.FeatureIndex >= 0 {
		return []Candidate{all[params.FeatureIndex%n]}
	}
	if params.ShareAggregations != nil {
		share := *params.ShareAggregations
		if share <= 0 || share > 1 {
			return all
		}
		keep := int(float64(n) * share)
		if keep < 1 {
			keep = 1
		}
		return sampleDeterministic(all, keep, params.Seed)
	}
	return all
}

// sampleDeterministic draws keep candidates without replacement using
// a PCG RNG seeded identically on every worker (spec.md §4.E: "a seeded
// RNG whose draws are synchronized across worker threads via an
// all-reduce broadcast of the seed state" — internal/reduce owns the
// broadcast; this function only needs the agreed-upon seed).
func sampleDeterministic(all []Candidate, keep int, seed uint64) []Candidate {
	rng := rand.New(rand.NewPCG(seed, seed))
	idx := make([]int, len(all))
	for i := range idx {
		idx[i] = i
	}
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	if keep > len(idx) {
		keep = len(idx)
	}
	chosen := idx[:keep]
	sort.Ints(chosen)

	out := make([]Candidate, len(chosen))
	for i, ix := range chosen {
		out[i] = all[ix]
	}
	return out
}
