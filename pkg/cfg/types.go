// Package cfg builds control flow graphs of PL/pgSQL function bodies.
// Every supported statement becomes one node; node 0 is the synthetic
// entry node.
package cfg

import (
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/graph"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
)

// StmtKey is the node attribute holding the statement of a node. The
// entry node has none.
var StmtKey = graph.NewNodeKey[plsql.Stmt]("statement")

// Entry is the id of the synthetic entry node.
const Entry graph.NodeID = 0

// CFG is a built control flow graph.
type CFG struct {
	Graph       *graph.Graph
	NodeFor     map[plsql.Stmt]graph.NodeID
	BackEdges   []graph.EdgeID
	Unsupported []plsql.Stmt
}

// Statement returns the statement of node n.
func (c *CFG) Statement(n graph.NodeID) (plsql.Stmt, bool) {
	return graph.NodeAttr(c.Graph, StmtKey, n)
}

// EdgeType classifies a FLOW edge for display.
type EdgeType string

const (
	EdgeTypeFlow     EdgeType = "flow"      // Forward transition
	EdgeTypeBackEdge EdgeType = "back_edge" // Loop continuation
)

// CFGNode describes one node.
type CFGNode struct {
	ID   int            `json:"id"`             // Node id
	Kind plsql.StmtKind `json:"kind,omitempty"` // Statement kind, empty for entry
	Line int            `json:"line,omitempty"` // Source line of the statement
}

// CFGEdge describes one FLOW edge.
type CFGEdge struct {
	SourceID int      `json:"source_id"` // Source node
	TargetID int      `json:"target_id"` // Target node
	EdgeType EdgeType `json:"edge_type"` // flow or back_edge
}

// CFGInfo is the serializable summary of a CFG.
type CFGInfo struct {
	FunctionName         string    `json:"function_name"`         // Function signature
	Nodes                []CFGNode `json:"nodes"`                 // Nodes by id
	Edges                []CFGEdge `json:"edges"`                 // FLOW edges in creation order
	ExitNodeIDs          []int     `json:"exit_node_ids"`         // Nodes without successors
	UnsupportedLines     []int     `json:"unsupported_lines"`     // Statements left out of the graph
	CyclomaticComplexity int       `json:"cyclomatic_complexity"` // E - N + 2 over FLOW edges
}
