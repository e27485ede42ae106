// Package sameunits implements the Same-Unit Identifier (spec.md §4.D):
// discover cross-table column pairs sharing an identical, non-empty
// unit string, which become candidates for difference-based split
// conditions (data_used == same_units_*, spec.md §3 "Split").
//
// Grounded on the teacher's internal/diff pairwise-candidate-scoring
// shape (internal/diff/diff_column_rename.go): score every candidate
// pair, keep the ones that clear a bar, emit in a stable order.
package sameunits

import (
	"sort"
	"strings"

	"relfit/internal/dataframe"
)

// comparisonOnlyMarker is the unit substring that excludes a pair from
// aggregation eligibility while keeping it eligible for condition terms.
const comparisonOnlyMarker = "comparison only"

// Pair is one cross-table same-unit column match.
type Pair struct {
	PopulationColumn string
	PeripheralColumn string
	Role             dataframe.Role
	Unit             string

	// ComparisonOnly mirrors the "comparison only" unit substring: the
	// pair may be used in a condition but not as an aggregated feature.
	ComparisonOnly bool

	// IsTimeStamp tags pairs of time-stamp-role columns so the SQL
	// generator renders them with datetime-safe arithmetic
	// (same_units_numerical_ts / same_units_discrete_ts, spec.md §3).
	IsTimeStamp bool
}

// Find enumerates all (population_column, peripheral_column) pairs
// whose roles match and whose unit strings are equal and non-empty.
// Results are sorted by (role, population column, peripheral column)
// for determinism.
func Find(pop, perip *dataframe.DataFrame) []Pair {
	var pairs []Pair

	pairs = append(pairs, matchRole(dataframe.RoleNumerical, namedUnits(pop.NumericalNames(), func(n string) string { c, _ := pop.Numerical(n); return c.Unit() }), namedUnits(perip.NumericalNames(), func(n string) string { c, _ := perip.Numerical(n); return c.Unit() }))...)
	pairs = append(pairs, matchRole(dataframe.RoleDiscrete, namedUnits(pop.DiscreteNames(), func(n string) string { c, _ := pop.Discrete(n); return c.Unit() }), namedUnits(perip.DiscreteNames(), func(n string) string { c, _ := perip.Discrete(n); return c.Unit() }))...)
	pairs = append(pairs, matchRole(dataframe.RoleCategorical, namedUnits(pop.CategoricalNames(), func(n string) string { c, _ := pop.Categorical(n); return c.Unit() }), namedUnits(perip.CategoricalNames(), func(n string) string { c, _ := perip.Categorical(n); return c.Unit() }))...)

	tsPairs := matchRole(dataframe.RoleTimeStamp, namedUnits(pop.TimeStampNames(), func(n string) string { c, _ := pop.TimeStamp(n); return c.Unit() }), namedUnits(perip.TimeStampNames(), func(n string) string { c, _ := perip.TimeStamp(n); return c.Unit() }))
	for i := range tsPairs {
		tsPairs[i].IsTimeStamp = true
	}
	pairs = append(pairs, tsPairs...)

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Role != pairs[j].Role {
			return pairs[i].Role < pairs[j].Role
		}
		if pairs[i].PopulationColumn != pairs[j].PopulationColumn {
			return pairs[i].PopulationColumn < pairs[j].PopulationColumn
		}
		return pairs[i].PeripheralColumn < pairs[j].PeripheralColumn
	})
	return pairs
}

type namedUnit struct {
	name string
	unit string
}

func namedUnits(names []string, unitOf func(string) string) []namedUnit {
	out := make([]namedUnit, 0, len(names))
	for _, n := range names {
		out = append(out, namedUnit{name: n, unit: unitOf(n)})
	}
	return out
}

func matchRole(role dataframe.Role, popCols, peripCols []namedUnit) []Pair {
	var pairs []Pair
	for _, p := range popCols {
		if p.unit == "" {
			continue
		}
		for _, q := range peripCols {
			if q.unit != p.unit {
				continue
			}
			pairs = append(pairs, Pair{
				PopulationColumn: p.name,
				PeripheralColumn: q.name,
				Role:             role,
				Unit:             p.unit,
				ComparisonOnly:   strings.Contains(p.unit, comparisonOnlyMarker),
			})
		}
	}
	return pairs
}
