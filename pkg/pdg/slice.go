package pdg

import (
	"container/list"
	"slices"
	"sort"
	"strings"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/graph"
)

// DependencyInfo contains the flow and dependence edges touching a line.
type DependencyInfo struct {
	FlowIn  []graph.Edge // FLOW edges into the line
	FlowOut []graph.Edge // FLOW edges leaving the line
	DataIn  []graph.Edge // Dependence edges into the line
	DataOut []graph.Edge // Dependence edges leaving the line
}

// nodesAtLine returns the nodes whose statement starts on line.
func nodesAtLine(p *PDG, line int) []graph.NodeID {
	var ids []graph.NodeID
	for n := range p.Graph().Nodes() {
		if s, ok := p.CFG.Statement(n); ok && s.Line() == line {
			ids = append(ids, n)
		}
	}
	return ids
}

// lineNumbers returns the sorted unique statement lines of nodes.
func lineNumbers(p *PDG, nodes []graph.NodeID) []int {
	seen := make(map[int]struct{})
	for _, n := range nodes {
		if s, ok := p.CFG.Statement(n); ok {
			seen[s.Line()] = struct{}{}
		}
	}
	lines := make([]int, 0, len(seen))
	for l := range seen {
		lines = append(lines, l)
	}
	sort.Ints(lines)
	return lines
}

// carries reports whether dependence edge e was derived from variable.
func carries(g *graph.Graph, e graph.Edge, variable string) bool {
	vars, _ := g.EdgeAttr(e.ID, VarsAttr)
	return slices.Contains(strings.Split(vars, ","), variable)
}

// slice walks dependence edges breadth first from the nodes at line,
// against edge direction when backward is set.
func slice(p *PDG, line int, variable string, backward bool) []int {
	if p == nil {
		return nil
	}
	g := p.Graph()
	start := nodesAtLine(p, line)
	if len(start) == 0 {
		return nil
	}

	visited := make(map[graph.NodeID]bool)
	queue := list.New()
	for _, n := range start {
		queue.PushBack(n)
		visited[n] = true
	}

	var result []graph.NodeID
	for queue.Len() > 0 {
		cur := queue.Remove(queue.Front()).(graph.NodeID)
		result = append(result, cur)

		edges := g.OutEdges(cur)
		if backward {
			edges = g.InEdges(cur)
		}
		for _, id := range edges {
			e := g.Edge(id)
			if !e.Kind.IsDependence() {
				continue
			}
			if variable != "" && !carries(g, e, variable) {
				continue
			}
			next := e.To
			if backward {
				next = e.From
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			queue.PushBack(next)
		}
	}
	return lineNumbers(p, result)
}

// BackwardSlice returns the lines whose statements the statement at
// line transitively depends on, line included. A non-empty variable
// restricts the walk to edges derived from that variable.
func BackwardSlice(p *PDG, line int, variable string) []int {
	return slice(p, line, variable, true)
}

// ForwardSlice returns the lines whose statements transitively depend
// on the statement at line, line included.
func ForwardSlice(p *PDG, line int, variable string) []int {
	return slice(p, line, variable, false)
}

// Dependencies returns the edges touching the statements at line,
// split by direction and kind.
func Dependencies(p *PDG, line int) DependencyInfo {
	var info DependencyInfo
	if p == nil {
		return info
	}
	g := p.Graph()
	for _, n := range nodesAtLine(p, line) {
		for _, id := range g.InEdges(n) {
			e := g.Edge(id)
			if e.Kind.IsDependence() {
				info.DataIn = append(info.DataIn, e)
			} else {
				info.FlowIn = append(info.FlowIn, e)
			}
		}
		for _, id := range g.OutEdges(n) {
			e := g.Edge(id)
			if e.Kind.IsDependence() {
				info.DataOut = append(info.DataOut, e)
			} else {
				info.FlowOut = append(info.FlowOut, e)
			}
		}
	}
	return info
}

// Variables returns the sorted names of all variables that carry a
// dependence edge.
func Variables(p *PDG) []string {
	if p == nil {
		return nil
	}
	g := p.Graph()
	set := make(map[string]bool)
	for e := range g.Edges() {
		if !e.Kind.IsDependence() {
			continue
		}
		vars, _ := g.EdgeAttr(e.ID, VarsAttr)
		for _, v := range strings.Split(vars, ",") {
			if v != "" {
				set[v] = true
			}
		}
	}
	names := make([]string, 0, len(set))
	for v := range set {
		names = append(names, v)
	}
	sort.Strings(names)
	return names
}
