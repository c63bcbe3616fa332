package pdg

import (
	"errors"
	"testing"

	"github.com/KLIEBHAN/pg-plsql-graphs/internal/log"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/cfg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/dfg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/graph"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, src string) *PDG {
	t.Helper()
	fn, err := plsql.Parse(src)
	require.NoError(t, err)
	p, err := Build(fn, &plsql.ExecState{}, query.Lexical{}, cfg.WithLogger(log.Discard()))
	require.NoError(t, err)
	return p
}

type dep struct {
	from, to graph.NodeID
	kind     graph.EdgeKind
}

func dependences(g *graph.Graph) []dep {
	var res []dep
	for e := range g.Edges() {
		if e.Kind.IsDependence() {
			res = append(res, dep{e.From, e.To, e.Kind})
		}
	}
	return res
}

func TestDerive_Scenario(t *testing.T) {
	p := analyze(t, `DECLARE v1 int; v2 int;
BEGIN
	v1 := 10;
	IF v1 > 5 THEN v2 := v1; ELSE v2 := 0; END IF;
	RETURN v2;
END`)

	assert.Equal(t, []dep{
		{1, 2, graph.WRDependence},
		{1, 3, graph.WRDependence},
		{3, 5, graph.WRDependence},
		{4, 5, graph.WRDependence},
	}, dependences(p.Graph()))
	assert.Equal(t, Stats{WR: 4}, p.Stats)
	assert.Equal(t, 4, p.Stats.Total())

	vars, ok := p.Graph().EdgeAttr(p.Graph().EdgesBetween(3, 5)[1].ID, VarsAttr)
	require.True(t, ok)
	assert.Equal(t, "v2", vars)
}

func TestDerive_WriteThenRead(t *testing.T) {
	p := analyze(t, "DECLARE x int; y int;\nBEGIN\nx := 1;\ny := x;\nEND")
	g := p.Graph()

	a, b := p.Node(p.Function.Body[0]), p.Node(p.Function.Body[1])
	assert.True(t, g.HasEdge(a, b, graph.WRDependence))
	assert.False(t, g.HasEdge(b, a, graph.WRDependence))
}

func TestDerive_AllKinds(t *testing.T) {
	p := analyze(t, "DECLARE x int; y int;\nBEGIN\nx := y;\ny := 2;\nx := 3;\nEND")
	g := p.Graph()
	n1, n2, n3 := p.Node(p.Function.Body[0]), p.Node(p.Function.Body[1]), p.Node(p.Function.Body[2])

	assert.True(t, g.HasEdge(n1, n2, graph.RWDependence), "x := y before y := 2")
	assert.True(t, g.HasEdge(n1, n3, graph.WWDependence), "two writes of x")
	assert.False(t, g.HasEdge(n2, n3, graph.WWDependence))
	assert.Equal(t, Stats{RW: 1, WW: 1}, p.Stats)
}

func TestDerive_AllKindsOnOnePair(t *testing.T) {
	p := analyze(t, "DECLARE x int;\nBEGIN\nx := x + 1;\nx := x * 2;\nEND")
	g := p.Graph()
	n1, n2 := p.Node(p.Function.Body[0]), p.Node(p.Function.Body[1])

	var kinds []graph.EdgeKind
	for _, e := range g.EdgesBetween(n1, n2) {
		kinds = append(kinds, e.Kind)
		if e.Kind.IsDependence() {
			vars, ok := g.EdgeAttr(e.ID, VarsAttr)
			require.True(t, ok, "%s edge has no vars", e.Kind)
			assert.Equal(t, "x", vars)
		}
	}
	assert.Equal(t, []graph.EdgeKind{graph.Flow, graph.WRDependence, graph.WWDependence, graph.RWDependence}, kinds)
	assert.Equal(t, Stats{WR: 1, RW: 1, WW: 1}, p.Stats)
	assert.Empty(t, g.EdgesBetween(n2, n1), "no edge runs against the flow")
}

func TestDerive_NoSelfEdges(t *testing.T) {
	p := analyze(t, "DECLARE x int;\nBEGIN\nWHILE x < 10 LOOP\nx := x + 1;\nEND LOOP;\nEND")
	for _, d := range dependences(p.Graph()) {
		assert.NotEqual(t, d.from, d.to, "self dependence %v", d)
	}

	// the loop body still depends on itself through the header
	header, body := p.Node(p.Function.Body[0]), p.Node(p.Function.Body[0].(*plsql.WhileStmt).Body[0])
	assert.True(t, p.Graph().HasEdge(body, header, graph.WRDependence))
	assert.True(t, p.Graph().HasEdge(header, body, graph.RWDependence))
}

func TestDerive_OnlyScalarVariables(t *testing.T) {
	p := analyze(t, "DECLARE r record;\nBEGIN\nSELECT * INTO r FROM t;\nPERFORM f(r.id);\nEND")
	assert.Empty(t, dependences(p.Graph()))
}

func TestDerive_RowtypeIsARecord(t *testing.T) {
	p := analyze(t, "DECLARE r accounts%ROWTYPE; n int;\nBEGIN\nSELECT * INTO r FROM accounts;\nn := r.id;\nEND")
	r, ok := p.Function.Lookup("r")
	require.True(t, ok)
	assert.Equal(t, plsql.DatumRec, r.Kind)
	assert.Empty(t, dependences(p.Graph()), "record fields do not take part in dependences")
}

func TestDerive_UsesFlowSnapshot(t *testing.T) {
	fn := plsql.NewFunction("f")
	x := fn.Declare("x", plsql.DatumVar, "int")

	g := graph.New()
	entry := g.AddNode()
	n1, n2 := g.AddNode(), g.AddNode()
	g.AddEdge(entry, n1, graph.Flow)
	g.AddEdge(n1, n2, graph.Flow)
	graph.SetNodeAttr(g, dfg.WritesKey, n1, dfg.NewVarSet(x.ID))
	graph.SetNodeAttr(g, dfg.ReadsKey, n2, dfg.NewVarSet(x.ID))
	// n2 reaching n1 through a non-FLOW edge must not produce n2 → n1
	g.AddEdge(n2, n1, graph.WWDependence)

	stats := Derive(g, fn)
	assert.Equal(t, Stats{WR: 1}, stats)
	assert.True(t, g.HasEdge(n1, n2, graph.WRDependence))
	assert.False(t, g.HasEdge(n2, n1, graph.RWDependence))
}

func TestConflict(t *testing.T) {
	p := analyze(t, "DECLARE x int; y int;\nBEGIN\nx := 1;\ny := x;\nRETURN y;\nEND")
	g := p.Graph()
	a, b, c := p.Function.Body[0], p.Function.Body[1], p.Function.Body[2]

	assert.True(t, Conflict(a, b, g))
	assert.False(t, Conflict(b, a, g), "conflict is directional")
	assert.True(t, SymmetricConflict(b, a, g))
	assert.False(t, Conflict(a, c, g), "c reads only y")
	assert.False(t, SymmetricConflict(a, c, g))

	missing := &plsql.AssignStmt{}
	assert.True(t, Conflict(missing, a, g))
	assert.True(t, Conflict(a, missing, g))
	assert.Equal(t, graph.NoNode, FindNodeForStatement(g, missing))
	assert.Equal(t, p.Node(b), FindNodeForStatement(g, b))
}

func TestConflict_UnsupportedStatement(t *testing.T) {
	p := analyze(t, "DECLARE x int;\nBEGIN\nx := 1;\nLOOP\nx := 2;\nEXIT;\nEND LOOP;\nEND")
	skipped := p.Function.Body[1]
	assert.Equal(t, graph.NoNode, p.Node(skipped))
	assert.True(t, Conflict(p.Function.Body[0], skipped, p.Graph()))
}

func TestBuild_ExtractFailure(t *testing.T) {
	fn, err := plsql.Parse("DECLARE x int;\nBEGIN\nx := $2;\nEND")
	require.NoError(t, err)

	p, err := Build(fn, nil, nil, cfg.WithLogger(log.Discard()))
	assert.Nil(t, p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, query.ErrUnknownParam))
}

func TestInfo(t *testing.T) {
	p := analyze(t, "CREATE FUNCTION f() RETURNS void AS $$\nDECLARE x int; y int;\nBEGIN\nx := 1;\ny := x;\nEND;\n$$ LANGUAGE plpgsql;")
	info := Info(p)

	assert.Equal(t, "f()", info.FunctionName)
	require.Len(t, info.Nodes, 3)
	assert.Equal(t, PDGNode{ID: 0, Label: "entry", Reads: []string{}, Writes: []string{}}, info.Nodes[0])
	assert.Equal(t, []string{"x"}, info.Nodes[2].Reads)
	assert.Equal(t, "y := x", info.Nodes[2].Label)

	var wr []PDGEdge
	for _, e := range info.Edges {
		if e.Kind == graph.WRDependence {
			wr = append(wr, e)
		}
	}
	assert.Equal(t, []PDGEdge{{SourceID: 1, TargetID: 2, Kind: graph.WRDependence, Vars: "x"}}, wr)
}
