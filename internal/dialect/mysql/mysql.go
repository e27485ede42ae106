// Package mysql implements internal/dialect's Generator for MySQL,
// rendering feature SQL with backtick-quoted identifiers and MySQL's
// TIMESTAMPDIFF/GROUP_CONCAT functions.
//
// Grounded on the teacher's internal/dialect/mysql: the backtick
// doubling in QuoteIdentifier and the single-quote/backslash escaping
// in QuoteString are the teacher's own Generator.QuoteIdentifier/
// QuoteString, carried over unchanged since the escaping rules are
// MySQL wire-protocol facts, not migration-specific.
package mysql

import (
	"fmt"
	"strings"

	"relfit/internal/agg"
	"relfit/internal/dialect"
)

func init() {
	dialect.Register(dialect.MySQL, func() dialect.Dialect { return New() })
}

// Dialect is the MySQL dialect.Dialect.
type Dialect struct {
	generator *Generator
}

// New returns a MySQL Dialect.
func New() *Dialect { return &Dialect{generator: &Generator{}} }

func (d *Dialect) Name() dialect.Type          { return dialect.MySQL }
func (d *Dialect) Generator() dialect.Generator { return d.generator }

// Generator is a stateless MySQL dialect.Generator.
type Generator struct{}

func (g *Generator) QuoteChar1() string { return "`" }
func (g *Generator) QuoteChar2() string { return "'" }

// QuoteIdentifier doubles embedded backticks, MySQL's escaping rule
// for backtick-quoted identifiers.
func (g *Generator) QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "`", "``")
	return "`" + name + "`"
}

// QuoteString escapes a string literal per MySQL's backslash-escape
// convention.
func (g *Generator) QuoteString(value string) string {
	var b strings.Builder
	b.Grow(len(value) + len(value)/10 + 2)
	b.WriteByte('\'')
	for _, r := range value {
		switch r {
		case '\'':
			b.WriteString("''")
		case '\\':
			b.WriteString(`\\`)
		case '\x00':
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func (g *Generator) Aggregation(kind agg.Kind, expr, orderExpr string) (string, error) {
	return dialect.StandardAggregation(kind, expr, orderExpr, "STDDEV_SAMP", "VAR_SAMP", percentile, firstLast)
}

// percentile reports ok=false: MySQL has no native percentile
// aggregate (PERCENTILE_CONT is a Postgres/SQL-standard function MySQL
// never implemented), so Median/Qn candidates cannot render to a
// single MySQL expression.
func percentile(p float64, expr string) (string, bool) {
	return "", false
}

func firstLast(expr, orderExpr string, last bool) string {
	order := "ASC"
	if last {
		order = "DESC"
	}
	return fmt.Sprintf("SUBSTRING_INDEX(GROUP_CONCAT(%s ORDER BY %s %s), ',', 1)", expr, orderExpr, order)
}

func (g *Generator) StringContains(col, literal string, negate bool) string {
	op := "LIKE"
	if negate {
		op = "NOT LIKE"
	}
	return fmt.Sprintf("%s %s CONCAT('%%', %s, '%%')", col, op, g.QuoteString(literal))
}

func (g *Generator) MakeTimeStampDiff(outTS, inTS string, seconds float64, isGreater bool) string {
	unit := dialect.PickTimeUnit(seconds)
	magnitude := seconds / unit.SecondsPerUnit
	diff := fmt.Sprintf("TIMESTAMPDIFF(%s, %s, %s)", unit.Name, inTS, outTS)
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
