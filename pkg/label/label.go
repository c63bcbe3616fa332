// Package label derives display labels for the nodes and edges of a
// statement graph.
package label

import (
	"fmt"
	"strings"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/cfg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/graph"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
)

// Key holds the node label.
var Key = graph.NewNodeKey[string]("label")

// EdgeAttr is the edge attribute holding the branch marker.
const EdgeAttr = "label"

// Branch markers on the first two FLOW edges leaving a branching node.
const (
	Taken       = "1"
	FallThrough = "0"
)

// Apply labels every node of g and every edge leaving it.
func Apply(g *graph.Graph, fn *plsql.Function) {
	for n := range g.Nodes() {
		graph.SetNodeAttr(g, Key, n, Node(g, fn, n))

		out := g.OutEdges(n)
		for _, id := range out {
			g.SetEdgeAttr(id, EdgeAttr, "")
		}
		if !branches(g, n) {
			continue
		}
		var flow []graph.EdgeID
		for _, id := range out {
			if g.Edge(id).Kind == graph.Flow {
				flow = append(flow, id)
			}
		}
		if len(flow) > 0 {
			g.SetEdgeAttr(flow[0], EdgeAttr, Taken)
		}
		if len(flow) > 1 {
			g.SetEdgeAttr(flow[1], EdgeAttr, FallThrough)
		}
	}
}

func branches(g *graph.Graph, n graph.NodeID) bool {
	s, ok := graph.NodeAttr(g, cfg.StmtKey, n)
	if !ok {
		return false
	}
	switch s.(type) {
	case *plsql.IfStmt, *plsql.WhileStmt, *plsql.ForRangeStmt, *plsql.ForQueryStmt, *plsql.ForEachStmt:
		return true
	}
	return false
}

// Node returns the label of node n.
func Node(g *graph.Graph, fn *plsql.Function, n graph.NodeID) string {
	if n == cfg.Entry {
		return "entry"
	}
	s, ok := graph.NodeAttr(g, cfg.StmtKey, n)
	if !ok {
		return "unknown"
	}
	return Statement(fn, s)
}

// Statement returns the label of a single statement.
func Statement(fn *plsql.Function, s plsql.Stmt) string {
	switch st := s.(type) {
	case *plsql.AssignStmt:
		return fmt.Sprintf("%s := %s", fn.DatumName(st.Target), st.Expr.Text())
	case *plsql.RaiseStmt:
		return "RAISE"
	case *plsql.IfStmt:
		return st.Cond.Text()
	case *plsql.WhileStmt:
		return st.Cond.Text()
	case *plsql.ForRangeStmt:
		l := fmt.Sprintf("FOR %s in %s..%s", fn.DatumName(st.Var), st.Lower.Text(), st.Upper.Text())
		if st.Step != nil {
			l += " by " + st.Step.Text()
		}
		return l
	case *plsql.ForQueryStmt:
		return fmt.Sprintf("FOR %s IN %s", fn.DatumName(st.Target), st.Query.Query)
	case *plsql.ForEachStmt:
		return fmt.Sprintf("FOREACH %s IN %s", fn.DatumName(st.Var), st.Source.Text())
	case *plsql.ReturnStmt:
		if st.Expr == nil {
			return "RETURN"
		}
		return strings.TrimSpace("RETURN " + st.Expr.Text())
	case *plsql.ExecSQLStmt:
		if st.Target == plsql.NoDatum {
			return st.SQL.Query
		}
		return fmt.Sprintf("%s INTO %s", st.SQL.Query, fn.DatumName(st.Target))
	case *plsql.PerformStmt:
		return "PERFORM " + st.Expr.Text()
	default:
		return "unknown"
	}
}
