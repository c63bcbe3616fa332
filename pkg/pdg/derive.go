// Package pdg turns an annotated control flow graph into a program
// dependence graph by deriving WR, RW and WW dependence edges, and
// answers conflict and slicing queries over the result.
package pdg

import (
	"strings"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/cfg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/dfg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/graph"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
)

// VarsAttr is the edge attribute holding the comma separated variables
// a dependence edge was derived from.
const VarsAttr = "vars"

// Stats counts the dependence edges added by Derive.
type Stats struct {
	WR int `json:"wr" msgpack:"wr"`
	RW int `json:"rw" msgpack:"rw"`
	WW int `json:"ww" msgpack:"ww"`
}

// Total returns the number of dependence edges.
func (s Stats) Total() int { return s.WR + s.RW + s.WW }

func (s *Stats) add(k graph.EdgeKind) {
	switch k {
	case graph.WRDependence:
		s.WR++
	case graph.RWDependence:
		s.RW++
	case graph.WWDependence:
		s.WW++
	}
}

// Derive adds a dependence edge n → m for every node m reachable from n
// over FLOW edges whose variables overlap n's: WR when n writes what m
// reads, WW when both write, RW when n reads what m writes. Only scalar
// variables count. Reachability is computed on the FLOW edges as they
// were before the first dependence edge was added, so the result does
// not depend on node order.
func Derive(g *graph.Graph, fn *plsql.Function) Stats {
	var stats Stats
	flow := g.Snapshot(graph.OfKind(graph.Flow))
	scalar := fn.IsVar

	for n := range g.Nodes() {
		if n == cfg.Entry {
			continue
		}
		reads := dfg.Reads(g, n).Filter(scalar)
		writes := dfg.Writes(g, n).Filter(scalar)
		if reads.Empty() && writes.Empty() {
			continue
		}

		for _, m := range flow.Reachable(n) {
			if m == n {
				continue
			}
			mReads := dfg.Reads(g, m).Filter(scalar)
			mWrites := dfg.Writes(g, m).Filter(scalar)

			link := func(kind graph.EdgeKind, shared dfg.VarSet) {
				if shared.Empty() {
					return
				}
				id := g.AddEdge(n, m, kind)
				g.SetEdgeAttr(id, VarsAttr, strings.Join(shared.Names(fn), ","))
				stats.add(kind)
			}
			link(graph.WRDependence, writes.Intersect(mReads))
			link(graph.WWDependence, writes.Intersect(mWrites))
			link(graph.RWDependence, reads.Intersect(mWrites))
		}
	}
	return stats
}

// FindNodeForStatement returns the node bound to s, or graph.NoNode.
func FindNodeForStatement(g *graph.Graph, s plsql.Stmt) graph.NodeID {
	for n := range g.Nodes() {
		if got, ok := graph.NodeAttr(g, cfg.StmtKey, n); ok && got == s {
			return n
		}
	}
	return graph.NoNode
}

// Conflict reports whether a dependence edge leads from a's node to
// b's. Only that direction is checked. A statement missing from the
// graph is assumed to conflict.
func Conflict(a, b plsql.Stmt, g *graph.Graph) bool {
	na, nb := FindNodeForStatement(g, a), FindNodeForStatement(g, b)
	if na == graph.NoNode || nb == graph.NoNode {
		return true
	}
	for _, id := range g.OutEdges(na) {
		if e := g.Edge(id); e.To == nb && e.Kind.IsDependence() {
			return true
		}
	}
	return false
}

// SymmetricConflict reports a conflict in either direction.
func SymmetricConflict(a, b plsql.Stmt, g *graph.Graph) bool {
	return Conflict(a, b, g) || Conflict(b, a, g)
}
