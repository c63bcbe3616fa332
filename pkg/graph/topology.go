package graph

import (
	"slices"

	"gonum.org/v1/gonum/graph/multi"
)

// Topology is a frozen copy of a graph's adjacency. Traversals over it
// are unaffected by edges added to the graph after the snapshot.
type Topology struct {
	dg    *multi.DirectedGraph
	nodes int
}

// Snapshot copies the nodes and the edges accepted by keep.
func (g *Graph) Snapshot(keep func(Edge) bool) *Topology {
	t := &Topology{dg: multi.NewDirectedGraph(), nodes: g.NodeCount()}
	for n := range g.Nodes() {
		t.dg.AddNode(multi.Node(n))
	}
	for _, e := range g.edges {
		if keep(e) {
			t.dg.SetLine(line{e})
		}
	}
	return t
}

// OfKind returns a filter accepting edges of the given kinds.
func OfKind(kinds ...EdgeKind) func(Edge) bool {
	return func(e Edge) bool {
		return slices.Contains(kinds, e.Kind)
	}
}

// Successors returns the snapshot successors of n in edge creation order.
func (t *Topology) Successors(n NodeID) []NodeID {
	var res []NodeID
	for _, e := range outLines(t.dg, n) {
		res = append(res, e.To)
	}
	return res
}

// Reachable returns the nodes reachable from root, root first, the
// others in ascending id order.
func (t *Topology) Reachable(root NodeID) []NodeID {
	return reachable(t.dg, root, t.nodes, nil)
}
