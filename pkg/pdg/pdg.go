package pdg

import (
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/cfg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/dfg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/graph"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/label"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/query"
)

// PDG is the analyzed graph of one function: its control flow graph
// with read/write sets, dependence edges and labels.
type PDG struct {
	Function *plsql.Function
	CFG      *cfg.CFG
	Stats    Stats
}

// Graph returns the underlying graph.
func (p *PDG) Graph() *graph.Graph { return p.CFG.Graph }

// Node returns the node of s, or graph.NoNode.
func (p *PDG) Node(s plsql.Stmt) graph.NodeID {
	if n, ok := p.CFG.NodeFor[s]; ok {
		return n
	}
	return graph.NoNode
}

// Build runs the full analysis of fn: control flow graph, read/write
// sets, dependence edges and labels. A failing reference lookup aborts
// the analysis and no graph is returned.
func Build(fn *plsql.Function, estate *plsql.ExecState, ex query.Extractor, opts ...cfg.Option) (*PDG, error) {
	c := cfg.Build(fn.Body, opts...)

	if err := dfg.NewAnalyzer(fn, estate, ex).AnnotateAll(c.Graph); err != nil {
		return nil, err
	}
	stats := Derive(c.Graph, fn)
	label.Apply(c.Graph, fn)

	return &PDG{Function: fn, CFG: c, Stats: stats}, nil
}

// PDGNode is the serializable form of a graph node.
type PDGNode struct {
	ID     int            `json:"id"`
	Kind   plsql.StmtKind `json:"kind,omitempty"`
	Line   int            `json:"line,omitempty"`
	Label  string         `json:"label"`
	Reads  []string       `json:"reads,omitempty"`
	Writes []string       `json:"writes,omitempty"`
}

// PDGEdge is the serializable form of a graph edge.
type PDGEdge struct {
	SourceID int            `json:"source_id"`
	TargetID int            `json:"target_id"`
	Kind     graph.EdgeKind `json:"kind"`
	Label    string         `json:"label,omitempty"`
	Vars     string         `json:"vars,omitempty"`
}

// PDGInfo is the complete dependence graph of a function in a form
// suitable for JSON output.
type PDGInfo struct {
	FunctionName string       `json:"function_name"`
	CFG          *cfg.CFGInfo `json:"cfg"`
	Nodes        []PDGNode    `json:"nodes"`
	Edges        []PDGEdge    `json:"edges"`
	Stats        Stats        `json:"stats"`
}

// Info converts p for output.
func Info(p *PDG) *PDGInfo {
	g := p.Graph()
	info := &PDGInfo{
		FunctionName: p.Function.Signature,
		CFG:          cfg.Info(p.CFG, p.Function.Signature),
		Stats:        p.Stats,
	}
	for n := range g.Nodes() {
		node := PDGNode{
			ID:     int(n),
			Label:  graph.NodeAttrOr(g, label.Key, n, ""),
			Reads:  dfg.Reads(g, n).Names(p.Function),
			Writes: dfg.Writes(g, n).Names(p.Function),
		}
		if s, ok := p.CFG.Statement(n); ok {
			node.Kind = s.Kind()
			node.Line = s.Line()
		}
		info.Nodes = append(info.Nodes, node)
	}
	for e := range g.Edges() {
		l, _ := g.EdgeAttr(e.ID, label.EdgeAttr)
		v, _ := g.EdgeAttr(e.ID, VarsAttr)
		info.Edges = append(info.Edges, PDGEdge{
			SourceID: int(e.From),
			TargetID: int(e.To),
			Kind:     e.Kind,
			Label:    l,
			Vars:     v,
		})
	}
	return info
}
