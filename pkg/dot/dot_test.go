package dot

import (
	"strings"
	"testing"

	"github.com/KLIEBHAN/pg-plsql-graphs/internal/log"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/cfg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/graph"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/label"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/pdg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenario = `DECLARE v1 int; v2 int;
BEGIN
	v1 := 10;
	IF v1 > 5 THEN v2 := v1; ELSE v2 := 0; END IF;
	RETURN v2;
END`

func build(t *testing.T) *graph.Graph {
	t.Helper()
	fn, err := plsql.Parse(scenario)
	require.NoError(t, err)
	p, err := pdg.Build(fn, nil, nil, cfg.WithLogger(log.Discard()))
	require.NoError(t, err)
	return p.Graph()
}

func TestFlow(t *testing.T) {
	want := `digraph g {
0[label="entry"][shape=box];
0 -> 1 [label=""];
1[label="v1 := 10"][shape=box];
1 -> 2 [label=""];
2[label="v1 > 5"][shape=box];
2 -> 3 [label="1"];
2 -> 4 [label="0"];
3[label="v2 := v1"][shape=box];
3 -> 5 [label=""];
4[label="v2 := 0"][shape=box];
4 -> 5 [label=""];
5[label="RETURN v2"][shape=box];
}`
	assert.Equal(t, want, Flow(build(t)))
}

func TestDependence(t *testing.T) {
	out := Dependence(build(t), false)

	assert.True(t, strings.HasPrefix(out, "digraph g {\nsplines=ortho;\n"))
	assert.True(t, strings.HasSuffix(out, "}"))
	assert.Contains(t, out, "0 -> 1[style=invis];\n")
	assert.Contains(t, out, "4 -> 5[style=invis];\n")
	assert.NotContains(t, out, "5 -> 6[style=invis]")
	assert.Contains(t, out, "2 -> 3[style=dashed][penwidth=0.4];\n")
	assert.Contains(t, out, "1 -> 3 [label=\"v1\"][color=green];\n")
	assert.Contains(t, out, "4 -> 5 [label=\"v2\"][color=green];\n")
	assert.NotContains(t, out, "rank=same")
	assert.NotContains(t, out, "color=red")

	assert.Contains(t, Dependence(build(t), true), "\n{rank=same; 0,1,2,3,4,5;}\n}")
}

func TestDependence_Colors(t *testing.T) {
	g := graph.New()
	a, b := g.AddNode(), g.AddNode()
	g.AddEdge(a, b, graph.RWDependence)
	g.AddEdge(a, b, graph.WWDependence)

	out := Dependence(g, false)
	assert.Contains(t, out, "0 -> 1 [label=\"\"][color=blue];\n")
	assert.Contains(t, out, "0 -> 1 [label=\"\"][color=red];\n")
}

func TestEscape(t *testing.T) {
	g := graph.New()
	n := g.AddNode()
	graph.SetNodeAttr(g, label.Key, n, `name = "x"`+"\n")
	assert.Contains(t, Flow(g), `0[label="name = \"x\"\n"][shape=box];`)
}
