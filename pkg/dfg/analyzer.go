package dfg

import (
	"fmt"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/cfg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/graph"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/query"
)

// ExtractError reports an embedded query whose references could not be
// resolved. It aborts the analysis of the whole function.
type ExtractError struct {
	Line  int
	Query string
	Err   error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("line %d: resolving references of %q: %v", e.Line, e.Query, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Analyzer computes read and write sets for the statements of one
// function.
type Analyzer struct {
	fn        *plsql.Function
	estate    *plsql.ExecState
	extractor query.Extractor
}

// NewAnalyzer returns an analyzer for fn. A nil extractor means the
// lexical one.
func NewAnalyzer(fn *plsql.Function, estate *plsql.ExecState, ex query.Extractor) *Analyzer {
	if ex == nil {
		ex = query.Lexical{}
	}
	return &Analyzer{fn: fn, estate: estate, extractor: ex}
}

func (a *Analyzer) refs(exprs ...*plsql.Expr) (VarSet, error) {
	var res VarSet
	for _, e := range exprs {
		if e == nil {
			continue
		}
		ids, err := a.extractor.Extract(e, a.fn, a.estate)
		if err != nil {
			return nil, &ExtractError{Line: e.Line, Query: e.Query, Err: err}
		}
		res = res.Union(NewVarSet(ids...))
	}
	return res, nil
}

// target expands an INTO target into the variables it assigns.
func (a *Analyzer) target(id plsql.DatumID) VarSet {
	d, ok := a.fn.Datum(id)
	if !ok {
		return nil
	}
	if d.Kind == plsql.DatumRow {
		return NewVarSet(d.Fields...)
	}
	return NewVarSet(id)
}

// ReadsWrites returns the variables s may read and the variables it may
// assign.
func (a *Analyzer) ReadsWrites(s plsql.Stmt) (reads, writes VarSet, err error) {
	switch st := s.(type) {
	case *plsql.AssignStmt:
		reads, err = a.refs(st.Expr)
		writes = NewVarSet(st.Target)
	case *plsql.IfStmt:
		reads, err = a.refs(st.Cond)
	case *plsql.WhileStmt:
		reads, err = a.refs(st.Cond)
	case *plsql.ForRangeStmt:
		reads, err = a.refs(st.Lower, st.Upper, st.Step)
		if a.fn.IsVar(st.Var) {
			writes = NewVarSet(st.Var)
		}
	case *plsql.ForQueryStmt:
		// the loop target is not modeled as a write
		reads, err = a.refs(st.Query)
	case *plsql.ForEachStmt:
		reads, err = a.refs(st.Source)
		writes = NewVarSet(st.Var)
	case *plsql.ReturnStmt:
		reads, err = a.refs(st.Expr)
	case *plsql.ExecSQLStmt:
		reads, err = a.refs(st.SQL)
		if st.Target != plsql.NoDatum {
			writes = a.target(st.Target)
		}
	case *plsql.PerformStmt:
		reads, err = a.refs(st.Expr)
	case *plsql.RaiseStmt:
	default:
		return nil, nil, fmt.Errorf("line %d: no read/write rule for %s statement", s.Line(), s.Kind())
	}
	if err != nil {
		return nil, nil, err
	}
	return reads, writes, nil
}

// Annotate stores the read and write sets of node n's statement on the
// node. The entry node has no statement and is left alone.
func (a *Analyzer) Annotate(g *graph.Graph, n graph.NodeID) error {
	s, ok := graph.NodeAttr(g, cfg.StmtKey, n)
	if !ok {
		return nil
	}
	reads, writes, err := a.ReadsWrites(s)
	if err != nil {
		return err
	}
	graph.SetNodeAttr(g, ReadsKey, n, reads)
	graph.SetNodeAttr(g, WritesKey, n, writes)
	return nil
}

// AnnotateAll annotates every non-entry node of g. The first failure
// aborts the pass.
func (a *Analyzer) AnnotateAll(g *graph.Graph) error {
	for n := range g.Nodes() {
		if n == cfg.Entry {
			continue
		}
		if err := a.Annotate(g, n); err != nil {
			return err
		}
	}
	return nil
}
