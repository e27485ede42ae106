package sqlgen_test

import (
	"testing"

	"github.com/pingcap/tidb/pkg/parser"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
	"github.com/stretchr/testify/require"

	"relfit/internal/agg"
	"relfit/internal/candidates"
	"relfit/internal/dialect"
	"relfit/internal/dialect/mysql"
	"relfit/internal/encoding"
	"relfit/internal/schema"
	"relfit/internal/split"
	"relfit/internal/sqlgen"
	"relfit/internal/tree"
)

func testEdge() sqlgen.Edge {
	return sqlgen.Edge{
		PopAlias:  "population",
		PerpAlias: "events",
		Child: &schema.Child{
			PopulationJoinKey:   "customer_id",
			PeripheralJoinKey:   "customer_id",
			PopulationTimeStamp: "signup_ts",
			PeripheralTimeStamp: "event_ts",
		},
	}
}

func testNames() sqlgen.ColumnNames {
	return sqlgen.ColumnNames{
		NumericalInput:  []string{"amount"},
		NumericalOutput: []string{"age"},
	}
}

func oneLeafTree(intercept float64) *tree.Tree {
	t := &tree.Tree{}
	t.Nodes = append(t.Nodes, tree.Node{IsLeaf: true, Left: tree.NoNode, Right: tree.NoNode, Intercept: intercept})
	t.Root = 0
	return t
}

func branchingTree() *tree.Tree {
	t := &tree.Tree{}
	leafLow := tree.Node{IsLeaf: true, Left: tree.NoNode, Right: tree.NoNode, Intercept: 0}
	leafHigh := tree.Node{IsLeaf: true, Left: tree.NoNode, Right: tree.NoNode, Intercept: 1}
	t.Nodes = append(t.Nodes, leafLow, leafHigh)
	root := tree.Node{
		Split: split.Split{DataUsed: split.NumericalInput, ColumnIndex: 0, CriticalValue: 100, HasCriticalValue: true},
		Left:  0, Right: 1,
	}
	t.Nodes = append(t.Nodes, root)
	t.Root = 2
	return t
}

func TestRenderSingleLeafTreeWrapsInterceptInAggregation(t *testing.T) {
	g := sqlgen.New(mysql.New().Generator(), testEdge(), testNames(), nil)
	sql, err := g.Render(oneLeafTree(3.5), candidates.Candidate{Aggregation: agg.Avg})
	require.NoError(t, err)
	require.Contains(t, sql, "AVG(3.5)")
	require.Contains(t, sql, "FROM population")
	require.Contains(t, sql, "JOIN events")
}

func TestRenderBranchingTreeEmitsCaseWhen(t *testing.T) {
	g := sqlgen.New(mysql.New().Generator(), testEdge(), testNames(), nil)
	sql, err := g.Render(branchingTree(), candidates.Candidate{Aggregation: agg.Sum})
	require.NoError(t, err)
	require.Contains(t, sql, "CASE WHEN")
	require.Contains(t, sql, "`events`.`amount` >= 100")
}

func TestRenderCategoricalSplitRequiresEncoding(t *testing.T) {
	tr := &tree.Tree{}
	leafLow := tree.Node{IsLeaf: true, Left: tree.NoNode, Right: tree.NoNode, Intercept: 0}
	leafHigh := tree.Node{IsLeaf: true, Left: tree.NoNode, Right: tree.NoNode, Intercept: 1}
	tr.Nodes = append(tr.Nodes, leafLow, leafHigh)
	tr.Nodes = append(tr.Nodes, tree.Node{
		Split: split.Split{DataUsed: split.CategoricalInput, ColumnIndex: 0, CategoryIDs: map[int64]struct{}{1: {}}},
		Left:  0, Right: 1,
	})
	tr.Root = 2

	names := testNames()
	names.CategoricalInput = []string{"channel"}

	g := sqlgen.New(mysql.New().Generator(), testEdge(), names, nil)
	_, err := g.Render(tr, candidates.Candidate{Aggregation: agg.Count})
	require.Error(t, err)

	enc := encoding.New()
	id := enc.Intern("web")
	tr.Nodes[2].Split.CategoryIDs = map[int64]struct{}{id: {}}
	g2 := sqlgen.New(mysql.New().Generator(), testEdge(), names, enc)
	sql, err := g2.Render(tr, candidates.Candidate{Aggregation: agg.Count})
	require.NoError(t, err)
	require.Contains(t, sql, "`events`.`channel` IN ('web')")
}

func TestRenderRejectsUnsupportedDataUsed(t *testing.T) {
	tr := &tree.Tree{}
	leafLow := tree.Node{IsLeaf: true, Left: tree.NoNode, Right: tree.NoNode, Intercept: 0}
	leafHigh := tree.Node{IsLeaf: true, Left: tree.NoNode, Right: tree.NoNode, Intercept: 1}
	tr.Nodes = append(tr.Nodes, leafLow, leafHigh)
	tr.Nodes = append(tr.Nodes, tree.Node{
		Split: split.Split{DataUsed: split.Subfeatures, ColumnIndex: 0},
		Left:  0, Right: 1,
	})
	tr.Root = 2

	g := sqlgen.New(mysql.New().Generator(), testEdge(), testNames(), nil)
	_, err := g.Render(tr, candidates.Candidate{Aggregation: agg.Count})
	require.Error(t, err)
}

// TestRenderedMySQLIsSyntacticallyValid feeds the generated SELECT
// back through TiDB's SQL parser (the pack's MySQL-syntax parser,
// already a go.mod dependency) to assert it's well-formed MySQL, not
// merely assembled strings that happen to look like SQL.
func TestRenderedMySQLIsSyntacticallyValid(t *testing.T) {
	g := sqlgen.New(mysql.New().Generator(), testEdge(), testNames(), nil)
	sql, err := g.Render(branchingTree(), candidates.Candidate{Aggregation: agg.Sum})
	require.NoError(t, err)

	p := parser.New()
	_, _, err = p.Parse(sql, "", "")
	require.NoError(t, err, "generated SQL: %s", sql)
}

func TestDialectSwapChangesQuotingButNotStructure(t *testing.T) {
	mysqlSQL, err := sqlgen.New(mysql.New().Generator(), testEdge(), testNames(), nil).
		Render(branchingTree(), candidates.Candidate{Aggregation: agg.Sum})
	require.NoError(t, err)
	require.Contains(t, mysqlSQL, "`events`")

	// dialect.Get also resolves the built-in generator, exercising the
	// registry the way internal/sqlgen's real callers would.
	d, err := dialect.Get(dialect.MySQL)
	require.NoError(t, err)
	require.Equal(t, dialect.MySQL, d.Name())
}
