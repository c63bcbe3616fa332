// Package dot renders statement graphs in Graphviz DOT format.
package dot

import (
	"fmt"
	"strings"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/graph"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/label"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/pdg"
)

// Colors of the dependence edge kinds.
var colors = map[graph.EdgeKind]string{
	graph.RWDependence: "blue",
	graph.WRDependence: "green",
	graph.WWDependence: "red",
}

var escaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
)

func escape(s string) string { return escaper.Replace(s) }

func nodeLabel(g *graph.Graph, n graph.NodeID) string {
	return escape(graph.NodeAttrOr(g, label.Key, n, ""))
}

func edgeAttr(g *graph.Graph, e graph.EdgeID, name string) string {
	v, _ := g.EdgeAttr(e, name)
	return escape(v)
}

// Flow renders the FLOW edges of g with boxed nodes and branch labels.
func Flow(g *graph.Graph) string {
	var sb strings.Builder
	sb.WriteString("digraph g {\n")
	for n := range g.Nodes() {
		fmt.Fprintf(&sb, "%d[label=\"%s\"][shape=box];\n", n, nodeLabel(g, n))
		for _, id := range g.OutEdges(n) {
			e := g.Edge(id)
			if e.Kind != graph.Flow {
				continue
			}
			fmt.Fprintf(&sb, "%d -> %d [label=\"%s\"];\n", e.From, e.To, edgeAttr(g, id, label.EdgeAttr))
		}
	}
	sb.WriteString("}")
	return sb.String()
}

// Dependence renders the whole graph: FLOW edges dashed, dependence
// edges colored by kind and labeled with their variables. Nodes are
// chained by invisible edges to keep them in statement order. sameLevel
// puts all nodes on one rank.
func Dependence(g *graph.Graph, sameLevel bool) string {
	var sb strings.Builder
	sb.WriteString("digraph g {\n")
	sb.WriteString("splines=ortho;\n")
	sb.WriteString("nodesep=0.3;\n")
	sb.WriteString("graph[pad=\"0.20,0.20\"];\n")
	sb.WriteString("edge[arrowsize=0.6,penwidth=0.6];\n")
	sb.WriteString("node[fontsize=10];\n")

	nodes := g.AllNodes()
	for i, n := range nodes {
		fmt.Fprintf(&sb, "%d[label=\"%s\"];\n", n, nodeLabel(g, n))
		if i+1 < len(nodes) {
			fmt.Fprintf(&sb, "%d -> %d[style=invis];\n", n, nodes[i+1])
		}
	}

	for _, n := range nodes {
		for _, id := range g.OutEdges(n) {
			e := g.Edge(id)
			if e.Kind == graph.Flow {
				fmt.Fprintf(&sb, "%d -> %d[style=dashed][penwidth=0.4];\n", e.From, e.To)
				continue
			}
			fmt.Fprintf(&sb, "%d -> %d [label=\"%s\"][color=%s];\n",
				e.From, e.To, edgeAttr(g, id, pdg.VarsAttr), colors[e.Kind])
		}
	}

	if sameLevel && len(nodes) > 0 {
		ids := make([]string, len(nodes))
		for i, n := range nodes {
			ids[i] = fmt.Sprint(n)
		}
		fmt.Fprintf(&sb, "\n{rank=same; %s;}\n", strings.Join(ids, ","))
	}
	sb.WriteString("}")
	return sb.String()
}
