// Package sqlgen implements the SQL Generator (spec.md §4.N): renders
// a fitted tree.Tree, paired with the candidates.Candidate it was
// grown from, as a single dialect-specific SQL SELECT that recomputes
// the feature from raw population/peripheral tables.
//
// Grounded on the teacher's dialect.Dialect seam: ask a
// Generator-shaped interface to render each condition and column
// reference, exactly as the teacher's migration generator asks a
// dialect.Dialect to render DDL, so this package never imports a
// specific dialect directly. Also grounded on internal/pipeline/dataset.go's
// edgeDataset, whose column-group naming this package mirrors so a
// Split's (DataUsed, ColumnIndex) resolves to the same column a fitted
// tree actually read during BuildDataset.
package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"relfit/internal/candidates"
	"relfit/internal/dialect"
	"relfit/internal/encoding"
	"relfit/internal/engineerr"
	"relfit/internal/schema"
	"relfit/internal/split"
	"relfit/internal/tree"
)

// Edge names the join this generator renders splits and aggregations
// over: a population alias joined to a peripheral alias via the
// schema.Child that produced the Dataset the tree was fit against.
type Edge struct {
	PopAlias  string
	PerpAlias string
	Child     *schema.Child
}

// ColumnNames mirrors internal/pipeline/dataset.go's per-group Names
// slices: the column name at index i of a DataUsed group is the name a
// Split.ColumnIndex of i refers to. Groups BuildDataset never
// populates for a given edge are left nil, and a Split referencing
// such a group renders an error rather than silently wrong SQL.
type ColumnNames struct {
	NumericalInput    []string
	NumericalOutput   []string
	DiscreteInput     []string
	DiscreteOutput    []string
	CategoricalInput  []string
	CategoricalOutput []string
}

// Generator renders a Candidate's fitted tree.Tree as SQL for one
// Edge, using an injected dialect.Generator for every quoting,
// aggregation, and join/time-window primitive (spec.md §4.N: "Quote
// characters and datetime-diff functions are supplied by an injected
// dialect generator").
type Generator struct {
	Dialect  dialect.Generator
	Edge     Edge
	Names    ColumnNames
	Encoding *encoding.Encoding // decodes CategoryIDs back to literal strings
}

// New constructs a Generator. enc may be nil if the tree is known to
// contain no categorical splits (Render errors instead of panicking if
// that assumption is wrong).
func New(d dialect.Generator, edge Edge, names ColumnNames, enc *encoding.Encoding) *Generator {
	return &Generator{Dialect: d, Edge: edge, Names: names, Encoding: enc}
}

// Render produces one SELECT statement recomputing Candidate c's
// feature from t: a CASE expression built from t's branch splits,
// wrapped in c.Aggregation, grouped by the population join key, joined
// to the peripheral table under the time-stamp window the schema edge
// declares (spec.md §4.N).
func (g *Generator) Render(t *tree.Tree, c candidates.Candidate) (string, error) {
	if len(t.Nodes) == 0 {
		return "", engineerr.New(engineerr.InvalidArgument, "sqlgen: empty tree has no root to render")
	}

	caseExpr, err := g.renderNode(t, t.Root)
	if err != nil {
		return "", err
	}

	aggExpr, err := g.Dialect.Aggregation(c.Aggregation, caseExpr, g.orderExpr())
	if err != nil {
		return "", fmt.Errorf("sqlgen: rendering %s: %w", c.Aggregation, err)
	}

	edge := g.Edge.Child
	join := g.Dialect.MakeJoins(g.Edge.PopAlias, g.Edge.PerpAlias, edge.PopulationJoinKey, edge.PeripheralJoinKey)
	tsCond := g.Dialect.MakeTimeStamps(g.Edge.PopAlias, g.Edge.PerpAlias, edge.PopulationTimeStamp, edge.PeripheralTimeStamp, edge.UpperTimeStamp)

	popJK := g.Dialect.QuoteIdentifier(g.Edge.PopAlias) + "." + g.Dialect.QuoteIdentifier(edge.PopulationJoinKey)
	return fmt.Sprintf(
		"SELECT %s AS feature FROM %s %s WHERE %s GROUP BY %s",
		aggExpr, g.Edge.PopAlias, join, tsCond, popJK,
	), nil
}

// orderExpr names the ordering column FIRST/LAST aggregation
// rendering uses: the peripheral time stamp, if this edge declares
// one, else empty (dialect.StandardAggregation errors on First/Last
// with no order expression).
func (g *Generator) orderExpr() string {
	if g.Edge.Child.PeripheralTimeStamp == "" {
		return ""
	}
	return g.qualify(g.Edge.PerpAlias, g.Edge.Child.PeripheralTimeStamp)
}

func (g *Generator) qualify(alias, column string) string {
	return g.Dialect.QuoteIdentifier(alias) + "." + g.Dialect.QuoteIdentifier(column)
}

// renderNode recursively renders a tree node as a SQL value
// expression: a leaf renders its intercept (plus any linear weights);
// a branch renders a CASE WHEN <condition> THEN <left> ELSE <right>
// END, left being the "greater" branch that tree.Predict takes when the
// split's condition holds.
func (g *Generator) renderNode(t *tree.Tree, id tree.NodeID) (string, error) {
	n := t.At(id)
	if n.IsLeaf {
		return g.renderLeaf(*n)
	}

	cond, err := g.renderCondition(n.Split)
	if err != nil {
		return "", err
	}
	left, err := g.renderNode(t, n.Left)
	if err != nil {
		return "", err
	}
	right, err := g.renderNode(t, n.Right)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CASE WHEN %s THEN %s ELSE %s END", cond, left, right), nil
}

func (g *Generator) renderLeaf(n tree.Node) (string, error) {
	expr := formatFloat(n.Intercept)
	for _, w := range n.Weights {
		colExpr, err := g.columnRef(w.DataUsed, w.ColumnIndex)
		if err != nil {
			return "", err
		}
		colExpr = fmt.Sprintf("COALESCE(%s, 0)", colExpr) // a missing weight input contributes nothing, matching tree.Predict
		term := fmt.Sprintf("(%s * %s)", formatFloat(w.Coefficient), colExpr)
		if w.OtherColumnIndex >= 0 {
			otherExpr, err := g.columnRef(w.DataUsed, w.OtherColumnIndex)
			if err != nil {
				return "", err
			}
			otherExpr = fmt.Sprintf("COALESCE(%s, 0)", otherExpr)
			term = fmt.Sprintf("(%s * (%s - %s))", formatFloat(w.Coefficient), colExpr, otherExpr)
		}
		expr = fmt.Sprintf("(%s + %s)", expr, term)
	}
	return expr, nil
}

func (g *Generator) renderCondition(s split.Split) (string, error) {
	switch s.DataUsed {
	case split.NumericalInputIsNaN, split.NumericalOutputIsNaN, split.DiscreteInputIsNaN, split.DiscreteOutputIsNaN:
		base := stripIsNaN(s.DataUsed)
		colExpr, err := g.columnRef(base, s.ColumnIndex)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s IS NULL", colExpr), nil

	case split.NumericalInput, split.NumericalOutput, split.DiscreteInput, split.DiscreteOutput:
		colExpr, err := g.columnRef(s.DataUsed, s.ColumnIndex)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s >= %s", colExpr, formatFloat(s.CriticalValue)), nil

	case split.TimeStampsDiff:
		return g.Dialect.MakeTimeStampDiff(
			g.qualify(g.Edge.PopAlias, g.Edge.Child.PopulationTimeStamp),
			g.qualify(g.Edge.PerpAlias, g.Edge.Child.PeripheralTimeStamp),
			s.CriticalValue, true,
		), nil

	case split.CategoricalInput, split.CategoricalOutput:
		colExpr, err := g.columnRef(s.DataUsed, s.ColumnIndex)
		if err != nil {
			return "", err
		}
		return g.renderCategoryIn(colExpr, s.CategoryIDs)

	default:
		return "", engineerr.Newf(engineerr.InvalidArgument, "sqlgen: %s splits have no SQL rendering (see DESIGN.md)", s.DataUsed)
	}
}

func (g *Generator) renderCategoryIn(colExpr string, ids map[int64]struct{}) (string, error) {
	if g.Encoding == nil {
		return "", engineerr.New(engineerr.InvalidArgument, "sqlgen: categorical split needs an Encoding to decode category ids")
	}
	literals := make([]string, 0, len(ids))
	for id := range ids {
		literals = append(literals, g.Dialect.QuoteString(g.Encoding.String(id)))
	}
	sort.Strings(literals)
	return fmt.Sprintf("%s IN (%s)", colExpr, strings.Join(literals, ", ")), nil
}

func (g *Generator) columnRef(du split.DataUsed, idx int) (string, error) {
	names, alias, err := g.groupFor(du)
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(names) {
		return "", engineerr.Newf(engineerr.InvalidArgument, "sqlgen: %s column index %d out of range", du, idx)
	}
	return g.qualify(alias, names[idx]), nil
}

func (g *Generator) groupFor(du split.DataUsed) ([]string, string, error) {
	switch du {
	case split.NumericalInput:
		return g.Names.NumericalInput, g.Edge.PerpAlias, nil
	case split.NumericalOutput:
		return g.Names.NumericalOutput, g.Edge.PopAlias, nil
	case split.DiscreteInput:
		return g.Names.DiscreteInput, g.Edge.PerpAlias, nil
	case split.DiscreteOutput:
		return g.Names.DiscreteOutput, g.Edge.PopAlias, nil
	case split.CategoricalInput:
		return g.Names.CategoricalInput, g.Edge.PerpAlias, nil
	case split.CategoricalOutput:
		return g.Names.CategoricalOutput, g.Edge.PopAlias, nil
	default:
		return nil, "", engineerr.Newf(engineerr.InvalidArgument, "sqlgen: no column group for %s", du)
	}
}

func stripIsNaN(du split.DataUsed) split.DataUsed {
	switch du {
	case split.NumericalInputIsNaN:
		return split.NumericalInput
	case split.NumericalOutputIsNaN:
		return split.NumericalOutput
	case split.DiscreteInputIsNaN:
		return split.DiscreteInput
	case split.DiscreteOutputIsNaN:
		return split.DiscreteOutput
	default:
		return du
	}
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
