package graph

// NodeKey names a node attribute holding values of type T. Keys with the
// same name but different T are distinct attributes.
type NodeKey[T any] struct {
	name string
}

// NewNodeKey returns a node attribute key.
func NewNodeKey[T any](name string) NodeKey[T] {
	return NodeKey[T]{name: name}
}

// Name returns the attribute name.
func (k NodeKey[T]) Name() string { return k.name }

// GraphKey names a graph attribute holding a value of type T.
type GraphKey[T any] struct {
	name string
}

// NewGraphKey returns a graph attribute key.
func NewGraphKey[T any](name string) GraphKey[T] {
	return GraphKey[T]{name: name}
}

// Name returns the attribute name.
func (k GraphKey[T]) Name() string { return k.name }

// SetNodeAttr stores v under k on node n.
func SetNodeAttr[T any](g *Graph, k NodeKey[T], n NodeID, v T) {
	g.mustHave(n)
	m, ok := g.nodeAttrs[k]
	if !ok {
		m = make(map[NodeID]any)
		g.nodeAttrs[k] = m
	}
	m[n] = v
}

// NodeAttr returns the value stored under k on node n. The boolean is
// false when the attribute was never set, so a stored zero value is
// distinguishable from an unset one.
func NodeAttr[T any](g *Graph, k NodeKey[T], n NodeID) (T, bool) {
	v, ok := g.nodeAttrs[k][n]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// NodeAttrOr returns the value stored under k on node n, or def.
func NodeAttrOr[T any](g *Graph, k NodeKey[T], n NodeID, def T) T {
	if v, ok := NodeAttr(g, k, n); ok {
		return v
	}
	return def
}

// SetGraphAttr stores v under k on the graph.
func SetGraphAttr[T any](g *Graph, k GraphKey[T], v T) {
	g.graphAttrs[k] = v
}

// GraphAttr returns the graph value stored under k.
func GraphAttr[T any](g *Graph, k GraphKey[T]) (T, bool) {
	v, ok := g.graphAttrs[k]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}
