// Package plsql defines the statement model of PL/pgSQL function bodies and
// a parser that produces it from CREATE FUNCTION source.
package plsql

import (
	"fmt"
	"hash/fnv"
	"iter"
	"strings"
)

// DatumID is an index into a function's datum table.
type DatumID int

// NoDatum marks an absent datum reference.
const NoDatum DatumID = -1

// DatumKind is the storage class of a datum.
type DatumKind string

const (
	DatumVar DatumKind = "var" // scalar variable
	DatumRow DatumKind = "row" // fixed list of variables, e.g. an INTO target list
	DatumRec DatumKind = "rec" // record or %ROWTYPE variable
)

// Datum is a declared storage slot of a function.
type Datum struct {
	ID       DatumID   `json:"id"`               // Index in Function.Datums
	Name     string    `json:"name"`             // Declared name, lower-cased unless quoted
	Kind     DatumKind `json:"kind"`             // Storage class
	Type     string    `json:"type,omitempty"`   // Declared type text
	Fields   []DatumID `json:"fields,omitempty"` // Member variables of a row
	Constant bool      `json:"constant,omitempty"`
}

// Expr is an embedded query. Plain expressions are stored the way the
// PL/pgSQL compiler stores them, as "SELECT <expr>".
type Expr struct {
	Query string `json:"query"`
	Line  int    `json:"line"`
}

// Text returns the expression without the SELECT prefix added for
// plain expressions.
func (e *Expr) Text() string {
	if e == nil {
		return ""
	}
	return strings.TrimPrefix(e.Query, exprPrefix)
}

const exprPrefix = "SELECT "

func newExpr(text string, line int) *Expr {
	return &Expr{Query: exprPrefix + text, Line: line}
}

// StmtKind names a statement variant.
type StmtKind string

const (
	KindAssign   StmtKind = "assign"
	KindIf       StmtKind = "if"
	KindWhile    StmtKind = "while"
	KindForRange StmtKind = "fori"
	KindForQuery StmtKind = "fors"
	KindForEach  StmtKind = "foreach"
	KindRaise    StmtKind = "raise"
	KindReturn   StmtKind = "return"
	KindExecSQL  StmtKind = "execsql"
	KindPerform  StmtKind = "perform"
	KindOther    StmtKind = "other"
)

// Stmt is a statement of a function body. The set of implementations is
// closed; consumers switch on the concrete type.
type Stmt interface {
	Line() int
	Kind() StmtKind
	stmt()
}

type base struct {
	LineNo int `json:"line"`
}

func (b base) Line() int { return b.LineNo }
func (base) stmt()       {}

// AssignStmt is "target := expr".
type AssignStmt struct {
	base
	Target DatumID `json:"target"`
	Expr   *Expr   `json:"expr"`
}

// IfStmt is an IF with optional ELSE. ELSIF chains are nested IfStmts
// in Else.
type IfStmt struct {
	base
	Cond *Expr `json:"cond"`
	Then []Stmt
	Else []Stmt
}

// WhileStmt is "WHILE cond LOOP ... END LOOP".
type WhileStmt struct {
	base
	Label string `json:"label,omitempty"`
	Cond  *Expr  `json:"cond"`
	Body  []Stmt
}

// ForRangeStmt is the integer FOR loop.
type ForRangeStmt struct {
	base
	Label   string  `json:"label,omitempty"`
	Var     DatumID `json:"var"`
	Lower   *Expr   `json:"lower"`
	Upper   *Expr   `json:"upper"`
	Step    *Expr   `json:"step,omitempty"`
	Reverse bool    `json:"reverse,omitempty"`
	Body    []Stmt
}

// ForQueryStmt loops over the rows of a query.
type ForQueryStmt struct {
	base
	Label  string  `json:"label,omitempty"`
	Target DatumID `json:"target"`
	Query  *Expr   `json:"query"`
	Body   []Stmt
}

// ForEachStmt is "FOREACH v [SLICE n] IN ARRAY expr".
type ForEachStmt struct {
	base
	Label  string  `json:"label,omitempty"`
	Var    DatumID `json:"var"`
	Slice  int     `json:"slice,omitempty"`
	Source *Expr   `json:"source"`
	Body   []Stmt
}

// RaiseStmt reports a message or error.
type RaiseStmt struct {
	base
	Level   string  `json:"level"`
	Message string  `json:"message,omitempty"`
	Params  []*Expr `json:"params,omitempty"`
}

// ReturnStmt is "RETURN [expr]".
type ReturnStmt struct {
	base
	Expr *Expr `json:"expr,omitempty"`
}

// ExecSQLStmt is an embedded SQL statement. The INTO clause is removed
// from the query text and kept as Target.
type ExecSQLStmt struct {
	base
	SQL    *Expr   `json:"sql"`
	Target DatumID `json:"target"`           // NoDatum without INTO
	Strict bool    `json:"strict,omitempty"` // INTO STRICT
	Mod    bool    `json:"mod,omitempty"`    // INSERT, UPDATE, DELETE or MERGE
}

// PerformStmt evaluates a query and discards the result.
type PerformStmt struct {
	base
	Expr *Expr `json:"expr"`
}

// OtherStmt is any statement the analysis does not model: bare LOOP,
// EXIT, CASE, NULL, nested blocks, cursor operations and so on.
type OtherStmt struct {
	base
	Keyword string `json:"keyword"`
	Body    []Stmt
}

func (*AssignStmt) Kind() StmtKind   { return KindAssign }
func (*IfStmt) Kind() StmtKind       { return KindIf }
func (*WhileStmt) Kind() StmtKind    { return KindWhile }
func (*ForRangeStmt) Kind() StmtKind { return KindForRange }
func (*ForQueryStmt) Kind() StmtKind { return KindForQuery }
func (*ForEachStmt) Kind() StmtKind  { return KindForEach }
func (*RaiseStmt) Kind() StmtKind    { return KindRaise }
func (*ReturnStmt) Kind() StmtKind   { return KindReturn }
func (*ExecSQLStmt) Kind() StmtKind  { return KindExecSQL }
func (*PerformStmt) Kind() StmtKind  { return KindPerform }
func (*OtherStmt) Kind() StmtKind    { return KindOther }

// Children returns the nested statement lists of s.
func Children(s Stmt) [][]Stmt {
	switch st := s.(type) {
	case *IfStmt:
		return [][]Stmt{st.Then, st.Else}
	case *WhileStmt:
		return [][]Stmt{st.Body}
	case *ForRangeStmt:
		return [][]Stmt{st.Body}
	case *ForQueryStmt:
		return [][]Stmt{st.Body}
	case *ForEachStmt:
		return [][]Stmt{st.Body}
	case *OtherStmt:
		return [][]Stmt{st.Body}
	default:
		return nil
	}
}

// Handler is an EXCEPTION clause of the top-level block.
type Handler struct {
	Line       int
	Conditions []string
	Body       []Stmt
}

// ExecState identifies the call an analysis runs for.
type ExecState struct {
	UserID     uint32 `json:"user_id"`
	DatabaseID uint32 `json:"database_id"`
}

// Function is a parsed PL/pgSQL function.
type Function struct {
	Name      string    `json:"name"`
	Signature string    `json:"signature"`
	OID       uint32    `json:"oid"`
	Args      []DatumID `json:"args"`
	Datums    []*Datum  `json:"datums"`
	Body      []Stmt    `json:"-"`
	Handlers  []Handler `json:"-"`
	Source    string    `json:"-"`

	names map[string]DatumID
}

// NewFunction creates an empty function with the given name and
// argument type list.
func NewFunction(name string, argTypes ...string) *Function {
	sig := fmt.Sprintf("%s(%s)", name, strings.Join(argTypes, ", "))
	return &Function{
		Name:      name,
		Signature: sig,
		OID:       signatureOID(sig),
		names:     make(map[string]DatumID),
	}
}

func signatureOID(sig string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(sig)))
	return h.Sum32()
}

// Declare adds a datum and binds name to it. An empty name adds an
// anonymous datum.
func (f *Function) Declare(name string, kind DatumKind, typ string) *Datum {
	d := &Datum{ID: DatumID(len(f.Datums)), Name: name, Kind: kind, Type: typ}
	f.Datums = append(f.Datums, d)
	if name != "" {
		f.Bind(name, d.ID)
	}
	return d
}

// Bind makes name refer to an existing datum.
func (f *Function) Bind(name string, id DatumID) {
	if f.names == nil {
		f.names = make(map[string]DatumID)
	}
	f.names[name] = id
}

// Lookup resolves a name in the function namespace.
func (f *Function) Lookup(name string) (*Datum, bool) {
	id, ok := f.names[name]
	if !ok {
		return nil, false
	}
	return f.Datums[id], true
}

// Datum returns the datum with the given id.
func (f *Function) Datum(id DatumID) (*Datum, bool) {
	if id < 0 || int(id) >= len(f.Datums) {
		return nil, false
	}
	return f.Datums[id], true
}

// DatumName returns the display name of a datum. Anonymous rows print
// as their member list.
func (f *Function) DatumName(id DatumID) string {
	d, ok := f.Datum(id)
	if !ok {
		return "?"
	}
	if d.Name != "" {
		return d.Name
	}
	names := make([]string, len(d.Fields))
	for i, fid := range d.Fields {
		names[i] = f.DatumName(fid)
	}
	return strings.Join(names, ",")
}

// IsVar reports whether id names a scalar variable.
func (f *Function) IsVar(id DatumID) bool {
	d, ok := f.Datum(id)
	return ok && d.Kind == DatumVar
}

// Statements yields every statement of the body in preorder.
func (f *Function) Statements() iter.Seq[Stmt] {
	return func(yield func(Stmt) bool) {
		if !walk(f.Body, yield) {
			return
		}
		for _, h := range f.Handlers {
			if !walk(h.Body, yield) {
				return
			}
		}
	}
}

func walk(stmts []Stmt, yield func(Stmt) bool) bool {
	for _, s := range stmts {
		if !yield(s) {
			return false
		}
		for _, child := range Children(s) {
			if !walk(child, yield) {
				return false
			}
		}
	}
	return true
}

// StatementAt returns the first statement, in preorder, that starts on
// the given line.
func (f *Function) StatementAt(line int) (Stmt, bool) {
	for s := range f.Statements() {
		if s.Line() == line {
			return s, true
		}
	}
	return nil, false
}

// SyntaxError is a parse failure at a source line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}
