package cfg

import (
	"slices"

	"github.com/KLIEBHAN/pg-plsql-graphs/internal/log"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/graph"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
)

// Option configures Build.
type Option func(*builder)

// WithLogger sets the logger that receives unsupported-statement warnings.
func WithLogger(l log.Logger) Option {
	return func(b *builder) { b.logger = l }
}

// WithUnsupportedHook registers a callback for every skipped statement.
func WithUnsupportedHook(fn func(plsql.Stmt)) Option {
	return func(b *builder) { b.onUnsupported = fn }
}

// parentSet is the set of current predecessor nodes. It keeps insertion
// order so that edges are created deterministically.
type parentSet []graph.NodeID

func single(n graph.NodeID) parentSet { return parentSet{n} }

func (p parentSet) union(o parentSet) parentSet {
	res := slices.Clone(p)
	for _, n := range o {
		if !slices.Contains(res, n) {
			res = append(res, n)
		}
	}
	return res
}

type builder struct {
	cfg           *CFG
	logger        log.Logger
	onUnsupported func(plsql.Stmt)
}

// Build translates a statement list into a control flow graph.
// Unsupported statements are logged and left out of the graph together
// with everything nested inside them.
func Build(body []plsql.Stmt, opts ...Option) *CFG {
	b := &builder{
		cfg: &CFG{
			Graph:   graph.New(),
			NodeFor: make(map[plsql.Stmt]graph.NodeID),
		},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	entry := b.cfg.Graph.AddNode()
	b.processList(body, single(entry))
	return b.cfg
}

func (b *builder) processList(stmts []plsql.Stmt, parents parentSet) parentSet {
	for _, s := range stmts {
		parents = b.processStmt(s, parents)
	}
	return parents
}

func supported(s plsql.Stmt) bool {
	switch s.(type) {
	case *plsql.AssignStmt, *plsql.IfStmt, *plsql.WhileStmt, *plsql.ForRangeStmt,
		*plsql.ForQueryStmt, *plsql.ForEachStmt, *plsql.RaiseStmt, *plsql.ReturnStmt,
		*plsql.ExecSQLStmt, *plsql.PerformStmt:
		return true
	default:
		return false
	}
}

func (b *builder) processStmt(s plsql.Stmt, parents parentSet) parentSet {
	if !supported(s) {
		keyword := string(s.Kind())
		if o, ok := s.(*plsql.OtherStmt); ok {
			keyword = o.Keyword
		}
		b.logger.Warn("unsupported statement", "kind", keyword, "line", s.Line())
		b.cfg.Unsupported = append(b.cfg.Unsupported, s)
		if b.onUnsupported != nil {
			b.onUnsupported(s)
		}
		return parents
	}

	g := b.cfg.Graph
	n := g.AddNode()
	graph.SetNodeAttr(g, StmtKey, n, s)
	b.cfg.NodeFor[s] = n
	for _, p := range parents {
		g.AddEdge(p, n, graph.Flow)
	}

	switch st := s.(type) {
	case *plsql.IfStmt:
		afterThen := b.processList(st.Then, single(n))
		afterElse := b.processList(st.Else, single(n))
		return afterThen.union(afterElse)
	case *plsql.WhileStmt:
		return b.loop(n, st.Body)
	case *plsql.ForRangeStmt:
		return b.loop(n, st.Body)
	case *plsql.ForQueryStmt:
		return b.loop(n, st.Body)
	case *plsql.ForEachStmt:
		return b.loop(n, st.Body)
	case *plsql.ReturnStmt:
		return nil
	default:
		return single(n)
	}
}

// loop builds the body below the header and links every node the body
// can end in back to the header. The header is the only predecessor of
// whatever follows the loop. An empty body leaves a self loop on the
// header.
func (b *builder) loop(header graph.NodeID, body []plsql.Stmt) parentSet {
	exits := b.processList(body, single(header))
	for _, p := range exits {
		id := b.cfg.Graph.AddEdge(p, header, graph.Flow)
		b.cfg.BackEdges = append(b.cfg.BackEdges, id)
	}
	return single(header)
}
