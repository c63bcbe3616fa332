package cfg

import (
	"slices"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/graph"
)

// Info summarizes c for display and JSON output.
func Info(c *CFG, functionName string) *CFGInfo {
	g := c.Graph
	info := &CFGInfo{
		FunctionName:     functionName,
		Nodes:            make([]CFGNode, 0, g.NodeCount()),
		Edges:            make([]CFGEdge, 0),
		ExitNodeIDs:      make([]int, 0),
		UnsupportedLines: make([]int, 0, len(c.Unsupported)),
	}

	for n := range g.Nodes() {
		node := CFGNode{ID: int(n)}
		if s, ok := c.Statement(n); ok {
			node.Kind = s.Kind()
			node.Line = s.Line()
		}
		info.Nodes = append(info.Nodes, node)
		if len(g.Successors(n, graph.Flow)) == 0 {
			info.ExitNodeIDs = append(info.ExitNodeIDs, int(n))
		}
	}

	flowEdges := 0
	for e := range g.Edges() {
		if e.Kind != graph.Flow {
			continue
		}
		flowEdges++
		typ := EdgeTypeFlow
		if slices.Contains(c.BackEdges, e.ID) {
			typ = EdgeTypeBackEdge
		}
		info.Edges = append(info.Edges, CFGEdge{SourceID: int(e.From), TargetID: int(e.To), EdgeType: typ})
	}

	for _, s := range c.Unsupported {
		info.UnsupportedLines = append(info.UnsupportedLines, s.Line())
	}

	info.CyclomaticComplexity = flowEdges - g.NodeCount() + 2
	if info.CyclomaticComplexity < 1 {
		info.CyclomaticComplexity = 1
	}
	return info
}
