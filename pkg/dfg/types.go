// Package dfg computes the variables each statement of a CFG reads and
// writes, which is the data flow input for dependence derivation.
package dfg

import (
	"slices"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/graph"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
)

// Node attributes set by the analyzer. A node without them has not been
// annotated yet, which is different from an empty set.
var (
	ReadsKey  = graph.NewNodeKey[VarSet]("reads")
	WritesKey = graph.NewNodeKey[VarSet]("writes")
)

// VarSet is a sorted set of datum ids.
type VarSet []plsql.DatumID

// NewVarSet returns the set of the given ids.
func NewVarSet(ids ...plsql.DatumID) VarSet {
	if len(ids) == 0 {
		return nil
	}
	s := slices.Clone(ids)
	slices.Sort(s)
	return VarSet(slices.Compact(s))
}

// Contains reports whether id is in the set.
func (s VarSet) Contains(id plsql.DatumID) bool {
	_, ok := slices.BinarySearch(s, id)
	return ok
}

// Empty reports whether the set has no members.
func (s VarSet) Empty() bool { return len(s) == 0 }

// Union returns s ∪ o.
func (s VarSet) Union(o VarSet) VarSet {
	if len(o) == 0 {
		return s
	}
	if len(s) == 0 {
		return o
	}
	return NewVarSet(append(slices.Clone(s), o...)...)
}

// Intersect returns s ∩ o.
func (s VarSet) Intersect(o VarSet) VarSet {
	var res VarSet
	i, j := 0, 0
	for i < len(s) && j < len(o) {
		switch {
		case s[i] < o[j]:
			i++
		case s[i] > o[j]:
			j++
		default:
			res = append(res, s[i])
			i++
			j++
		}
	}
	return res
}

// Filter returns the members accepted by keep.
func (s VarSet) Filter(keep func(plsql.DatumID) bool) VarSet {
	var res VarSet
	for _, id := range s {
		if keep(id) {
			res = append(res, id)
		}
	}
	return res
}

// Names returns the datum names of the members, in id order.
func (s VarSet) Names(fn *plsql.Function) []string {
	names := make([]string, 0, len(s))
	for _, id := range s {
		names = append(names, fn.DatumName(id))
	}
	return names
}

// Reads returns the read set stored on node n.
func Reads(g *graph.Graph, n graph.NodeID) VarSet {
	return graph.NodeAttrOr(g, ReadsKey, n, nil)
}

// Writes returns the write set stored on node n.
func Writes(g *graph.Graph, n graph.NodeID) VarSet {
	return graph.NodeAttrOr(g, WritesKey, n, nil)
}
