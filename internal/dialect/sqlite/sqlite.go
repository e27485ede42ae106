// Package sqlite implements internal/dialect's Generator for SQLite.
//
// modernc.org/sqlite (the teacher's/pack's pure-Go SQLite driver) is a
// database/sql driver with no quoting helper package, unlike lib/pq —
// so identifier/string escaping here is hand-rolled per SQLite's own
// quoting rules (double-quoted identifiers, single-quoted strings,
// both escaped by doubling), the same shape as the MySQL dialect's
// manual escaping but with SQLite's quote characters.
package sqlite

import (
	"fmt"
	"strings"

	"relfit/internal/agg"
	"relfit/internal/dialect"
)

func init() {
	dialect.Register(dialect.SQLite, func() dialect.Dialect { return New() })
}

// Dialect is the SQLite dialect.Dialect.
type Dialect struct {
	generator *Generator
}

// New returns a SQLite Dialect.
func New() *Dialect { return &Dialect{generator: &Generator{}} }

func (d *Dialect) Name() dialect.Type           { return dialect.SQLite }
func (d *Dialect) Generator() dialect.Generator { return d.generator }

// Generator is a stateless SQLite dialect.Generator.
type Generator struct{}

func (g *Generator) QuoteChar1() string { return `"` }
func (g *Generator) QuoteChar2() string { return "'" }

func (g *Generator) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(strings.TrimSpace(name), `"`, `""`) + `"`
}

func (g *Generator) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (g *Generator) Aggregation(kind agg.Kind, expr, orderExpr string) (string, error) {
	return dialect.StandardAggregation(kind, expr, orderExpr, "STDDEV_POP", "VAR_POP", percentile, firstLast)
}

// percentile reports ok=false: SQLite has no native percentile
// aggregate either built in or in modernc.org/sqlite's driver surface.
func percentile(p float64, expr string) (string, bool) {
	return "", false
}

func firstLast(expr, orderExpr string, last bool) string {
	order := "ASC"
	if last {
		order = "DESC"
	}
	return fmt.Sprintf("SUBSTR(GROUP_CONCAT(%s, ',' ORDER BY %s %s), 1, INSTR(GROUP_CONCAT(%s, ',' ORDER BY %s %s) || ',', ',') - 1)", expr, orderExpr, order, expr, orderExpr, order)
}

func (g *Generator) StringContains(col, literal string, negate bool) string {
	op := "LIKE"
	if negate {
		op = "NOT LIKE"
	}
	return fmt.Sprintf("%s %s '%%' || %s || '%%'", col, op, g.QuoteString(literal))
}

func (g *Generator) MakeTimeStampDiff(outTS, inTS string, seconds float64, isGreater bool) string {
	unit := dialect.PickTimeUnit(seconds)
	magnitude := seconds / unit.SecondsPerUnit
	diff := fmt.Sprintf("((JULIANDAY(%s) - JULIANDAY(%s)) * 86400.0 / %g)", outTS, inTS, unit.SecondsPerUnit)
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

// SQLite's GROUP_CONCAT note: SQLite's GROUP_CONCAT has no ORDER BY
// clause before 3.44; firstLast assumes a modernc.org/sqlite build new
// enough to accept it (modernc.org/sqlite vendors a recent SQLite
// amalgamation — see DESIGN.md).
