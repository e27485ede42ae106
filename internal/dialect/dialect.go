// Package dialect provides a unified interface for the SQL fragments
// internal/sqlgen needs to render a fitted tree as a dialect-specific
// query (spec.md §6 "SQL emission"): quote characters, aggregation
// expressions, string-containment predicates, datetime-diff helpers,
// and the join/time-window clauses a feature's FROM/WHERE is built
// from. Concrete dialects register themselves in an init() the same
// way the teacher's migration dialects did, so internal/sqlgen never
// imports a specific dialect package directly.
package dialect

import (
	"fmt"
	"maps"
	"sync"

	"relfit/internal/agg"
)

// Type names a supported SQL dialect.
type Type string

const (
	MySQL      Type = "mysql"
	PostgreSQL Type = "postgresql"
	SQLite     Type = "sqlite"
)

// Generator renders the SQL fragments internal/sqlgen composes into a
// feature's SELECT (spec.md §6's pluggable dialect module contract).
type Generator interface {
	// QuoteChar1/QuoteChar2 quote identifiers and string literals
	// respectively (spec.md: "quotechar1, quotechar2").
	QuoteChar1() string
	QuoteChar2() string
	QuoteIdentifier(name string) string
	QuoteString(value string) string

	// Aggregation renders kind applied to expr, e.g. "SUM(expr)". A
	// non-empty orderExpr renders the aggregations that need ordering
	// (FIRST, LAST, stddev-order-sensitive variants are not order
	// sensitive here, but FIRST/LAST are) against it.
	Aggregation(kind agg.Kind, expr string, orderExpr string) (string, error)

	// StringContains renders a substring predicate over col, optionally
	// negated (spec.md: "string_contains(col, literal, negate)").
	StringContains(col, literal string, negate bool) string

	// MakeTimeStampDiff renders a datetime-difference expression
	// between two already-quoted column/alias references, choosing a
	// unit by magnitude (spec.md: "unit-aware diffs (seconds / minutes
	// / hours / days) are chosen by magnitude"). The result is always a
	// comparison against the diff, for WHERE-clause usage: ">=" when
	// isGreater is true, "<" otherwise.
	MakeTimeStampDiff(outTS, inTS string, seconds float64, isGreater bool) string

	// MakeJoins renders the JOIN clause matching out.outJK = in.inJK.
	MakeJoins(outAlias, inAlias, outJK, inJK string) string

	// MakeTimeStamps renders the WHERE-clause time-window predicate:
	// inTS <= outTS (and, when upperTS is non-empty, outTS < upperTS).
	MakeTimeStamps(outAlias, inAlias, outTS, inTS, upperTS string) string

	// MakeSubfeatureJoins renders the join needed to reach a
	// subfeature's subtable, aliasing it prefix+suffix.
	MakeSubfeatureJoins(prefix, peripheralAlias, alias, suffix string) string
}

// TimeUnit is one of the magnitude-selected datetime-diff units
// (spec.md §4.N: "unit-aware diffs (seconds / minutes / hours / days)
// are chosen by magnitude").
type TimeUnit struct {
	Name          string // dialect-facing unit keyword, e.g. "SECOND"
	SecondsPerUnit float64
}

var (
	UnitSeconds = TimeUnit{"SECOND", 1}
	UnitMinutes = TimeUnit{"MINUTE", 60}
	UnitHours   = TimeUnit{"HOUR", 3600}
	UnitDays    = TimeUnit{"DAY", 86400}
)

// PickTimeUnit chooses the coarsest unit that keeps magnitudeSeconds
// at least 1 in that unit, so small windows render as seconds/minutes
// and multi-day windows render as days rather than five-digit second
// counts.
func PickTimeUnit(magnitudeSeconds float64) TimeUnit {
	abs := magnitudeSeconds
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= UnitDays.SecondsPerUnit:
		return UnitDays
	case abs >= UnitHours.SecondsPerUnit:
		return UnitHours
	case abs >= UnitMinutes.SecondsPerUnit:
		return UnitMinutes
	default:
		return UnitSeconds
	}
}

// PercentileFn renders a single-group percentile expression, e.g.
// Postgres' "PERCENTILE_CONT(p) WITHIN GROUP (ORDER BY expr)". ok is
// false for dialects with no native percentile aggregate (MySQL,
// SQLite), in which case StandardAggregation reports an error instead
// of emitting SQL that would not parse.
type PercentileFn func(p float64, expr string) (sql string, ok bool)

// FirstLastFn renders a FIRST(expr) or LAST(expr) aggregate ordered by
// orderExpr (the peripheral time stamp), e.g. MySQL's
// "SUBSTRING_INDEX(GROUP_CONCAT(expr ORDER BY orderExpr), ',', 1)".
type FirstLastFn func(expr, orderExpr string, last bool) string

// StandardAggregation renders the aggregation kinds that have a direct
// single-SELECT SQL equivalent across MySQL/Postgres/SQLite, given the
// dialect's own STDDEV/VAR/percentile/FIRST-LAST renderers (their
// exact function names and argument order differ per dialect). Kinds
// with no closed-form single-query rendering — EWMA windows, SKEW,
// KURTOSIS, TREND, the TIME_SINCE_* family, NUM_MIN/NUM_MAX,
// AVG_TIME_BETWEEN, COUNT_ABOVE_MEAN/COUNT_BELOW_MEAN, MODE, and
// VARIATION_COEFFICIENT — return an error naming the kind; those stay
// Go-side (internal/tree.Predict, internal/pipeline.Transform) rather
// than pretending to_sql can reproduce them (see DESIGN.md).
func StandardAggregation(kind agg.Kind, expr, orderExpr string, stddevFn, varFn string, percentile PercentileFn, firstLast FirstLastFn) (string, error) {
	switch kind {
	case agg.Count:
		return fmt.Sprintf("COUNT(%s)", expr), nil
	case agg.CountDistinct:
		return fmt.Sprintf("COUNT(DISTINCT %s)", expr), nil
	case agg.CountMinusDistinct:
		return fmt.Sprintf("(COUNT(%s) - COUNT(DISTINCT %s))", expr, expr), nil
	case agg.Sum:
		return fmt.Sprintf("SUM(%s)", expr), nil
	case agg.Avg:
		return fmt.Sprintf("AVG(%s)", expr), nil
	case agg.Min:
		return fmt.Sprintf("MIN(%s)", expr), nil
	case agg.Max:
		return fmt.Sprintf("MAX(%s)", expr), nil
	case agg.Stddev:
		return fmt.Sprintf("%s(%s)", stddevFn, expr), nil
	case agg.Var:
		return fmt.Sprintf("%s(%s)", varFn, expr), nil
	case agg.Median:
		if sql, ok := percentile(0.5, expr); ok {
			return sql, nil
		}
		return "", fmt.Errorf("dialect: aggregation %q has no closed-form SQL rendering in this dialect", string(kind))
	case agg.First:
		return firstLast(expr, orderExpr, false), nil
	case agg.Last:
		return firstLast(expr, orderExpr, true), nil
	}
	if p, ok := kind.QuantileValue(); ok {
		if sql, ok := percentile(p, expr); ok {
			return sql, nil
		}
		return "", fmt.Errorf("dialect: aggregation %q has no closed-form SQL rendering in this dialect", string(kind))
	}
	return "", fmt.Errorf("dialect: aggregation %q has no closed-form SQL rendering", string(kind))
}

// Dialect names and exposes one SQL dialect's Generator.
type Dialect interface {
	Name() Type
	Generator() Generator
}

var (
	registryMu sync.RWMutex
	registry   = map[Type]func() Dialect{}
)

// Register adds a constructor for dialect d. Concrete dialect packages
// call this from an init().
func Register(d Type, ctor func() Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d] = ctor
}

// Get returns a fresh Dialect instance for d.
func Get(d Type) (Dialect, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ctor, ok := registry[d]
	if !ok {
		return nil, fmt.Errorf("dialect %q is not registered", d)
	}
	return ctor(), nil
}

// resetRegistry replaces the registry with the given map. Intended for testing only.
func resetRegistry(r map[Type]func() Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = r
}

// snapshotRegistry returns a shallow copy of the current registry. Intended for testing only.
func snapshotRegistry() map[Type]func() Dialect {
	registryMu.RLock()
	defer registryMu.RUnlock()
	snap := make(map[Type]func() Dialect, len(registry))
	maps.Copy(snap, registry)
	return snap
}
