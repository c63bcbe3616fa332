// Package graph provides a directed multigraph with dense integer node ids
// and typed node and graph attributes. Control flow and dependence edges
// of an analyzed function live in one Graph, told apart by EdgeKind.
package graph

import (
	"cmp"
	"fmt"
	"iter"
	"slices"

	gograph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/traverse"
)

// NodeID identifies a node. Ids are assigned sequentially from 0.
type NodeID int

// EdgeID identifies an edge. Ids are assigned sequentially from 0.
type EdgeID int

// NoNode is returned by lookups that find nothing.
const NoNode NodeID = -1

// EdgeKind tags an edge.
type EdgeKind string

const (
	Flow         EdgeKind = "FLOW"          // Possible direct execution transition
	WRDependence EdgeKind = "WR-DEPENDENCE" // Earlier write is read later
	RWDependence EdgeKind = "RW-DEPENDENCE" // Earlier read, later write
	WWDependence EdgeKind = "WW-DEPENDENCE" // Two writes in order
)

// DependenceKinds lists the dependence edge kinds.
var DependenceKinds = []EdgeKind{WRDependence, RWDependence, WWDependence}

// IsDependence reports whether k is one of the dependence kinds.
func (k EdgeKind) IsDependence() bool {
	return slices.Contains(DependenceKinds, k)
}

// Edge is a directed edge.
type Edge struct {
	ID   EdgeID   `json:"id"`
	From NodeID   `json:"from"`
	To   NodeID   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// line adapts an Edge to a gonum multigraph line. The line id is the
// edge id, so lines sort in creation order.
type line struct{ e Edge }

func (l line) From() gograph.Node { return multi.Node(l.e.From) }
func (l line) To() gograph.Node   { return multi.Node(l.e.To) }
func (l line) ID() int64          { return int64(l.e.ID) }

func (l line) ReversedLine() gograph.Line {
	r := l.e
	r.From, r.To = l.e.To, l.e.From
	return line{r}
}

// Graph is a directed multigraph. It is not safe for concurrent use.
type Graph struct {
	dg *multi.DirectedGraph
	// edges indexes the lines of dg by id
	edges []Edge

	nodeAttrs  map[any]map[NodeID]any
	graphAttrs map[any]any
	edgeAttrs  map[string]map[EdgeID]string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		dg:         multi.NewDirectedGraph(),
		nodeAttrs:  make(map[any]map[NodeID]any),
		graphAttrs: make(map[any]any),
		edgeAttrs:  make(map[string]map[EdgeID]string),
	}
}

// AddNode appends a node and returns its id.
func (g *Graph) AddNode() NodeID {
	n := NodeID(g.NodeCount())
	g.dg.AddNode(multi.Node(n))
	return n
}

// AddEdge appends an edge. It panics if either endpoint does not exist.
func (g *Graph) AddEdge(from, to NodeID, kind EdgeKind) EdgeID {
	g.mustHave(from)
	g.mustHave(to)
	id := EdgeID(len(g.edges))
	e := Edge{ID: id, From: from, To: to, Kind: kind}
	g.edges = append(g.edges, e)
	g.dg.SetLine(line{e})
	return id
}

// AddLabeledEdge appends an edge and sets its "label" attribute.
func (g *Graph) AddLabeledEdge(from, to NodeID, kind EdgeKind, label string) EdgeID {
	id := g.AddEdge(from, to, kind)
	g.SetEdgeAttr(id, "label", label)
	return id
}

func (g *Graph) mustHave(n NodeID) {
	if !g.HasNode(n) {
		panic(fmt.Sprintf("graph: node %d does not exist", n))
	}
}

// HasNode reports whether n is a node of g.
func (g *Graph) HasNode(n NodeID) bool {
	return n >= 0 && g.dg.Node(int64(n)) != nil
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return g.dg.Nodes().Len() }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Edge returns the edge with the given id.
func (g *Graph) Edge(id EdgeID) Edge { return g.edges[id] }

// outLines returns the edges leaving n in dg in creation order. The
// multigraph keeps its lines in maps, so the order is restored by id.
func outLines(dg *multi.DirectedGraph, n NodeID) []Edge {
	var res []Edge
	to := dg.From(int64(n))
	for to.Next() {
		lines := dg.Lines(int64(n), to.Node().ID())
		for lines.Next() {
			res = append(res, lines.Line().(line).e)
		}
	}
	slices.SortFunc(res, byID)
	return res
}

// inLines returns the edges entering n in dg in creation order.
func inLines(dg *multi.DirectedGraph, n NodeID) []Edge {
	var res []Edge
	from := dg.To(int64(n))
	for from.Next() {
		lines := dg.Lines(from.Node().ID(), int64(n))
		for lines.Next() {
			res = append(res, lines.Line().(line).e)
		}
	}
	slices.SortFunc(res, byID)
	return res
}

func byID(a, b Edge) int { return cmp.Compare(a.ID, b.ID) }

func ids(edges []Edge) []EdgeID {
	res := make([]EdgeID, len(edges))
	for i, e := range edges {
		res[i] = e.ID
	}
	return res
}

// OutEdges returns the ids of edges leaving n in creation order.
func (g *Graph) OutEdges(n NodeID) []EdgeID {
	g.mustHave(n)
	return ids(outLines(g.dg, n))
}

// InEdges returns the ids of edges entering n in creation order.
func (g *Graph) InEdges(n NodeID) []EdgeID {
	g.mustHave(n)
	return ids(inLines(g.dg, n))
}

// Successors returns the targets of edges of the given kinds leaving n,
// with duplicates, in edge creation order. No kinds means all kinds.
func (g *Graph) Successors(n NodeID, kinds ...EdgeKind) []NodeID {
	var res []NodeID
	for _, e := range outLines(g.dg, n) {
		if len(kinds) == 0 || slices.Contains(kinds, e.Kind) {
			res = append(res, e.To)
		}
	}
	return res
}

// Predecessors returns the sources of edges of the given kinds entering n.
func (g *Graph) Predecessors(n NodeID, kinds ...EdgeKind) []NodeID {
	var res []NodeID
	for _, e := range inLines(g.dg, n) {
		if len(kinds) == 0 || slices.Contains(kinds, e.Kind) {
			res = append(res, e.From)
		}
	}
	return res
}

// Nodes yields every node id in ascending order.
func (g *Graph) Nodes() iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		for i := range g.NodeCount() {
			if !yield(NodeID(i)) {
				return
			}
		}
	}
}

// AllNodes returns every node id in ascending order.
func (g *Graph) AllNodes() []NodeID {
	return slices.Collect(g.Nodes())
}

// Edges yields every edge in creation order.
func (g *Graph) Edges() iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		for _, e := range g.edges {
			if !yield(e) {
				return
			}
		}
	}
}

// EdgesBetween returns the edges from one node to another in creation
// order.
func (g *Graph) EdgesBetween(from, to NodeID) []Edge {
	var res []Edge
	lines := g.dg.Lines(int64(from), int64(to))
	for lines.Next() {
		res = append(res, lines.Line().(line).e)
	}
	slices.SortFunc(res, byID)
	return res
}

// HasEdge reports whether an edge of the given kind runs from one node
// to another.
func (g *Graph) HasEdge(from, to NodeID, kind EdgeKind) bool {
	return slices.ContainsFunc(g.EdgesBetween(from, to), func(e Edge) bool { return e.Kind == kind })
}

// DFSReachable returns the nodes reachable from root over all edges:
// root first, the others in ascending id order.
func (g *Graph) DFSReachable(root NodeID) []NodeID {
	g.mustHave(root)
	return reachable(g.dg, root, g.NodeCount(), nil)
}

// DFS is DFSReachable restricted to edges accepted by follow.
func (g *Graph) DFS(root NodeID, follow func(Edge) bool) []NodeID {
	g.mustHave(root)
	return reachable(g.dg, root, g.NodeCount(), func(e gograph.Edge) bool {
		lines := g.dg.Lines(e.From().ID(), e.To().ID())
		for lines.Next() {
			if follow(lines.Line().(line).e) {
				return true
			}
		}
		return false
	})
}

// reachable walks dg depth first from root. The walk order of
// traverse.DepthFirst follows map iteration, so the visited set is
// reported in id order instead.
func reachable(dg traverse.Graph, root NodeID, n int, follow func(gograph.Edge) bool) []NodeID {
	df := traverse.DepthFirst{Traverse: follow}
	df.Walk(dg, multi.Node(root), nil)

	order := []NodeID{root}
	for i := range n {
		if id := NodeID(i); id != root && df.Visited(multi.Node(id)) {
			order = append(order, id)
		}
	}
	return order
}

// SetEdgeAttr sets a string attribute on an edge.
func (g *Graph) SetEdgeAttr(e EdgeID, name, value string) {
	m, ok := g.edgeAttrs[name]
	if !ok {
		m = make(map[EdgeID]string)
		g.edgeAttrs[name] = m
	}
	m[e] = value
}

// EdgeAttr returns a string attribute of an edge and whether it is set.
func (g *Graph) EdgeAttr(e EdgeID, name string) (string, bool) {
	v, ok := g.edgeAttrs[name][e]
	return v, ok
}
