package label

import (
	"testing"

	"github.com/KLIEBHAN/pg-plsql-graphs/internal/log"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/cfg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/graph"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatement(t *testing.T) {
	fn, err := plsql.Parse(`DECLARE
	x int;
	y int;
	r record;
	arr int[];
BEGIN
	x := y + 1;
	RAISE NOTICE 'hi %', x;
	IF x > 1 THEN NULL; END IF;
	WHILE x < 10 LOOP NULL; END LOOP;
	FOR i IN 1..x BY 2 LOOP NULL; END LOOP;
	FOR i IN REVERSE 10..1 LOOP NULL; END LOOP;
	FOR r IN SELECT * FROM t LOOP NULL; END LOOP;
	FOREACH x IN ARRAY arr LOOP NULL; END LOOP;
	SELECT a, b INTO x, y FROM t;
	DELETE FROM t;
	PERFORM pg_sleep(1);
	RETURN x;
	RETURN;
END`)
	require.NoError(t, err)

	want := []string{
		"x := y + 1",
		"RAISE",
		"x > 1",
		"x < 10",
		"FOR i in 1..x by 2",
		"FOR i in 10..1",
		"FOR r IN SELECT * FROM t",
		"FOREACH x IN arr",
		"SELECT a, b FROM t INTO x,y",
		"DELETE FROM t",
		"PERFORM pg_sleep(1)",
		"RETURN x",
		"RETURN",
	}
	require.Len(t, fn.Body, len(want))
	for i, s := range fn.Body {
		assert.Equal(t, want[i], Statement(fn, s), "statement at line %d", s.Line())
	}
	assert.Equal(t, "unknown", Statement(fn, &plsql.OtherStmt{Keyword: "CASE"}))
}

func TestApply(t *testing.T) {
	fn, err := plsql.Parse(`DECLARE v1 int; v2 int;
BEGIN
	v1 := 10;
	IF v1 > 5 THEN v2 := v1; ELSE v2 := 0; END IF;
	WHILE v2 > 0 LOOP v2 := v2 - 1; END LOOP;
	RETURN v2;
END`)
	require.NoError(t, err)
	c := cfg.Build(fn.Body, cfg.WithLogger(log.Discard()))
	g := c.Graph
	// a dependence edge must not take a branch marker
	ifNode := c.NodeFor[fn.Body[1]]
	dep := g.AddEdge(ifNode, c.NodeFor[fn.Body[3]], graph.RWDependence)

	Apply(g, fn)

	labels := map[graph.NodeID]string{}
	for n := range g.Nodes() {
		l, ok := graph.NodeAttr(g, Key, n)
		require.True(t, ok)
		labels[n] = l
	}
	assert.Equal(t, "entry", labels[cfg.Entry])
	assert.Equal(t, "v1 := 10", labels[1])
	assert.Equal(t, "v1 > 5", labels[ifNode])

	edgeLabel := func(from, to graph.NodeID) string {
		for _, e := range g.EdgesBetween(from, to) {
			if e.Kind == graph.Flow {
				l, _ := g.EdgeAttr(e.ID, EdgeAttr)
				return l
			}
		}
		t.Fatalf("no flow edge %d -> %d", from, to)
		return ""
	}

	then, els := c.NodeFor[fn.Body[1].(*plsql.IfStmt).Then[0]], c.NodeFor[fn.Body[1].(*plsql.IfStmt).Else[0]]
	assert.Equal(t, Taken, edgeLabel(ifNode, then))
	assert.Equal(t, FallThrough, edgeLabel(ifNode, els))
	assert.Equal(t, "", edgeLabel(cfg.Entry, 1))

	loop := c.NodeFor[fn.Body[2]]
	body := c.NodeFor[fn.Body[2].(*plsql.WhileStmt).Body[0]]
	assert.Equal(t, Taken, edgeLabel(loop, body))
	assert.Equal(t, FallThrough, edgeLabel(loop, c.NodeFor[fn.Body[3]]))
	assert.Equal(t, "", edgeLabel(body, loop), "back edge")

	l, ok := g.EdgeAttr(dep, EdgeAttr)
	assert.True(t, ok)
	assert.Equal(t, "", l)
}

func TestNode_Unknown(t *testing.T) {
	g := graph.New()
	g.AddNode()
	n := g.AddNode()
	assert.Equal(t, "unknown", Node(g, plsql.NewFunction("f"), n))
}
