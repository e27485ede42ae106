// Package postgres implements internal/dialect's Generator for
// PostgreSQL.
//
// Grounded on the teacher's dependency on github.com/lib/pq: rather
// than hand-rolling identifier/literal escaping, this dialect calls
// pq.QuoteIdentifier/pq.QuoteLiteral directly, the same functions
// internal/connector/postgres (built on the same driver) would use to
// build safe DDL.
package postgres

import (
	"fmt"

	"github.com/lib/pq"

	"relfit/internal/agg"
	"relfit/internal/dialect"
)

func init() {
	dialect.Register(dialect.PostgreSQL, func() dialect.Dialect { return New() })
}

// Dialect is the PostgreSQL dialect.Dialect.
type Dialect struct {
	generator *Generator
}

// New returns a PostgreSQL Dialect.
func New() *Dialect { return &Dialect{generator: &Generator{}} }

func (d *Dialect) Name() dialect.Type           { return dialect.PostgreSQL }
func (d *Dialect) Generator() dialect.Generator { return d.generator }

// Generator is a stateless PostgreSQL dialect.Generator.
type Generator struct{}

func (g *Generator) QuoteChar1() string { return `"` }
func (g *Generator) QuoteChar2() string { return "'" }

func (g *Generator) QuoteIdentifier(name string) string { return pq.QuoteIdentifier(name) }
func (g *Generator) QuoteString(value string) string    { return pq.QuoteLiteral(value) }

func (g *Generator) Aggregation(kind agg.Kind, expr, orderExpr string) (string, error) {
	return dialect.StandardAggregation(kind, expr, orderExpr, "STDDEV_SAMP", "VAR_SAMP", percentile, firstLast)
}

func percentile(p float64, expr string) (string, bool) {
	return fmt.Sprintf("PERCENTILE_CONT(%g) WITHIN GROUP (ORDER BY %s)", p, expr), true
}

func firstLast(expr, orderExpr string, last bool) string {
	order := "ASC"
	if last {
		order = "DESC"
	}
	return fmt.Sprintf("(ARRAY_AGG(%s ORDER BY %s %s))[1]", expr, orderExpr, order)
}

func (g *Generator) StringContains(col, literal string, negate bool) string {
	op := "LIKE"
	if negate {
		op = "NOT LIKE"
	}
	return fmt.Sprintf("%s %s '%%' || %s || '%%'", col, op, pq.QuoteLiteral(literal))
}

func (g *Generator) MakeTimeStampDiff(outTS, inTS string, seconds float64, isGreater bool) string {
	unit := dialect.PickTimeUnit(seconds)
	magnitude := seconds / unit.SecondsPerUnit
	diff := fmt.Sprintf("(EXTRACT(EPOCH FROM (%s - %s)) / %g)", outTS, inTS, unit.SecondsPerUnit)
	op := ">="
	if !isGreater {
		op = "<"
	}
	return fmt.Sprintf("%s %s %g", diff, op, magnitude)
}

func (g *Generator) MakeJoins(outAlias, inAlias, outJK, inJK string) string {
	return fmt.Sprintf("JOIN %s ON %s.%s = %s.%s", inAlias, outAlias, outJK, inAlias, inJK)
}

func (g *Generator) MakeTimeStamps(outAlias, inAlias, outTS, inTS, upperTS string) string {
	out := fmt.Sprintf("%s.%s <= %s.%s", inAlias, inTS, outAlias, outTS)
	if upperTS != "" {
		out += fmt.Sprintf(" AND %s.%s < %s.%s", outAlias, outTS, inAlias, upperTS)
	}
	return out
}

func (g *Generator) MakeSubfeatureJoins(prefix, peripheralAlias, alias, suffix string) string {
	return fmt.Sprintf("JOIN %s AS %s%s%s ON %s.id = %s%s%s.parent_id", peripheralAlias, prefix, alias, suffix, peripheralAlias, prefix, alias, suffix)
}
