package plsql

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse parses either a CREATE FUNCTION ... LANGUAGE plpgsql statement or
// a bare [DECLARE ...] BEGIN ... END block, which is named "inline".
func Parse(src string) (*Function, error) {
	toks, err := Tokenize(src, 1)
	if err != nil {
		return nil, err
	}
	if toks[0].Is("CREATE") {
		return parseCreate(src, toks)
	}

	fn := NewFunction("inline")
	fn.Declare("found", DatumVar, "boolean")
	p := &parser{src: src, toks: toks, fn: fn}
	if err := p.parseTopBlock(); err != nil {
		return nil, err
	}
	fn.Source = src
	return fn, nil
}

// multi-word type names that must not be mistaken for an argument name
var typeWords = map[string]bool{
	"double": true, "character": true, "bit": true, "national": true,
	"timestamp": true, "time": true, "interval": true,
}

// statement keywords compiled as embedded SQL
var sqlKeywords = map[string]bool{
	"select": true, "insert": true, "update": true, "delete": true,
	"with": true, "merge": true, "create": true, "drop": true,
	"alter": true, "truncate": true, "lock": true, "values": true,
	"grant": true, "revoke": true, "analyze": true, "vacuum": true,
	"notify": true, "listen": true, "refresh": true, "reindex": true,
}

// statements that are recognized but not modeled
var otherKeywords = map[string]bool{
	"exit": true, "continue": true, "null": true, "open": true,
	"fetch": true, "move": true, "close": true, "get": true,
	"execute": true, "commit": true, "rollback": true, "call": true,
	"assert": true,
}

var raiseLevels = map[string]bool{
	"debug": true, "log": true, "info": true, "notice": true,
	"warning": true, "exception": true,
}

type parser struct {
	src  string
	toks []Token
	pos  int
	fn   *Function
}

func parseCreate(src string, toks []Token) (*Function, error) {
	h := &parser{src: src, toks: toks}
	h.next() // CREATE
	if h.peek().Is("OR") {
		h.next()
		if err := h.expect("REPLACE"); err != nil {
			return nil, err
		}
	}
	if t := h.peek(); !t.Is("FUNCTION") && !t.Is("PROCEDURE") {
		return nil, h.unexpected()
	}
	h.next()

	name, err := h.qualifiedName()
	if err != nil {
		return nil, err
	}
	if err := h.expectOp("("); err != nil {
		return nil, err
	}
	args, err := h.parseArgs()
	if err != nil {
		return nil, err
	}

	var body *Token
	lang := ""
	for h.peek().Kind != TokenEOF && !h.peek().IsOp(";") {
		t := h.next()
		switch {
		case t.Is("AS"):
			b := h.next()
			if b.Kind != TokenDollarString && b.Kind != TokenString {
				return nil, &SyntaxError{Line: b.Line, Msg: "function body must be a string literal"}
			}
			body = &b
		case t.Is("LANGUAGE"):
			l := h.next()
			lang = l.Name()
			if l.Kind == TokenString {
				lang = unquote(l.Text)
			}
			lang = strings.ToLower(lang)
		}
	}
	if lang != "" && lang != "plpgsql" {
		return nil, &SyntaxError{Line: toks[0].Line, Msg: fmt.Sprintf("unsupported language %q", lang)}
	}
	if body == nil {
		return nil, &SyntaxError{Line: toks[0].Line, Msg: "missing function body"}
	}

	types := make([]string, len(args))
	for i, a := range args {
		types[i] = a.typ
	}
	fn := NewFunction(name, types...)
	for i, a := range args {
		argName := a.name
		if argName == "" {
			argName = "$" + strconv.Itoa(i+1)
		}
		d := fn.Declare(argName, kindForType(a.typ), a.typ)
		fn.Bind("$"+strconv.Itoa(i+1), d.ID)
		fn.Args = append(fn.Args, d.ID)
	}
	fn.Declare("found", DatumVar, "boolean")

	text := unquote(body.Text)
	if body.Kind == TokenDollarString {
		text = DollarBody(body.Text)
	}
	btoks, err := Tokenize(text, body.Line)
	if err != nil {
		return nil, err
	}
	p := &parser{src: text, toks: btoks, fn: fn}
	if err := p.parseTopBlock(); err != nil {
		return nil, err
	}
	fn.Source = src
	return fn, nil
}

type argDecl struct {
	name string
	typ  string
}

// parseArgs reads the argument list up to and including the closing paren.
func (p *parser) parseArgs() ([]argDecl, error) {
	var args []argDecl
	if p.peek().IsOp(")") {
		p.next()
		return nil, nil
	}
	for {
		from, to, err := p.scanUntil(func(t Token) bool { return t.IsOp(",") || t.IsOp(")") })
		if err != nil {
			return nil, err
		}
		group := p.toks[from:to]
		if len(group) > 0 {
			switch strings.ToLower(group[0].Text) {
			case "in", "out", "inout", "variadic":
				if group[0].Kind == TokenIdent && len(group) > 1 {
					group = group[1:]
				}
			}
		}
		for i, t := range group {
			if t.Is("DEFAULT") || t.IsOp("=") {
				group = group[:i]
				break
			}
		}
		if len(group) == 0 {
			return nil, p.unexpected()
		}
		var a argDecl
		if len(group) > 1 && (group[0].Kind == TokenIdent || group[0].Kind == TokenQuotedIdent) &&
			!typeWords[strings.ToLower(group[0].Text)] && group[1].Kind == TokenIdent {
			a.name = group[0].Name()
			group = group[1:]
		}
		a.typ = strings.ToLower(p.src[group[0].Start:group[len(group)-1].End])
		args = append(args, a)

		if p.next().IsOp(")") {
			return args, nil
		}
	}
}

func kindForType(typ string) DatumKind {
	t := strings.ToLower(strings.TrimSpace(typ))
	if t == "record" || strings.HasSuffix(t, "%rowtype") {
		return DatumRec
	}
	return DatumVar
}

func (p *parser) peek() Token {
	return p.toks[p.pos]
}

func (p *parser) next() Token {
	t := p.toks[p.pos]
	if t.Kind != TokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) unexpected() error {
	t := p.peek()
	if t.Kind == TokenEOF {
		return &SyntaxError{Line: t.Line, Msg: "unexpected end of function body"}
	}
	return &SyntaxError{Line: t.Line, Msg: fmt.Sprintf("syntax error at or near %q", t.Text)}
}

func (p *parser) expect(keyword string) error {
	if !p.peek().Is(keyword) {
		return p.unexpected()
	}
	p.next()
	return nil
}

func (p *parser) expectOp(op string) error {
	if !p.peek().IsOp(op) {
		return p.unexpected()
	}
	p.next()
	return nil
}

func (p *parser) qualifiedName() (string, error) {
	t := p.next()
	if t.Kind != TokenIdent && t.Kind != TokenQuotedIdent {
		return "", &SyntaxError{Line: t.Line, Msg: fmt.Sprintf("expected name, got %q", t.Text)}
	}
	name := t.Name()
	for p.peek().IsOp(".") {
		p.next()
		part := p.next()
		if part.Kind != TokenIdent && part.Kind != TokenQuotedIdent {
			return "", &SyntaxError{Line: part.Line, Msg: fmt.Sprintf("expected name, got %q", part.Text)}
		}
		name += "." + part.Name()
	}
	return name, nil
}

// scanUntil advances to the first token at nesting depth zero for which
// stop returns true and returns the token index range it skipped. The
// stop token itself is not consumed. Parentheses, brackets and CASE ...
// END expressions nest.
func (p *parser) scanUntil(stop func(Token) bool) (int, int, error) {
	from := p.pos
	depth, cases := 0, 0
	for {
		t := p.peek()
		if t.Kind == TokenEOF {
			return 0, 0, p.unexpected()
		}
		if depth == 0 && cases == 0 && stop(t) {
			return from, p.pos, nil
		}
		switch {
		case t.IsOp("(") || t.IsOp("["):
			depth++
		case t.IsOp(")") || t.IsOp("]"):
			if depth == 0 {
				return 0, 0, p.unexpected()
			}
			depth--
		case t.Is("CASE"):
			cases++
		case t.Is("END") && cases > 0:
			cases--
		case t.IsOp(";") && depth == 0:
			return 0, 0, p.unexpected()
		}
		p.next()
	}
}

func (p *parser) text(from, to int) string {
	if from >= to {
		return ""
	}
	return strings.TrimSpace(p.src[p.toks[from].Start:p.toks[to-1].End])
}

func isKeyword(words ...string) func(Token) bool {
	return func(t Token) bool {
		for _, w := range words {
			if t.Is(w) {
				return true
			}
		}
		return false
	}
}

func isOp(op string) func(Token) bool {
	return func(t Token) bool { return t.IsOp(op) }
}

// expr reads an expression up to a stop token.
func (p *parser) expr(stop func(Token) bool, what string) (*Expr, error) {
	line := p.peek().Line
	from, to, err := p.scanUntil(stop)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, &SyntaxError{Line: line, Msg: "missing " + what}
	}
	return newExpr(p.text(from, to), line), nil
}

func (p *parser) parseTopBlock() error {
	if p.peek().IsOp("<<") {
		if _, err := p.parseLabel(); err != nil {
			return err
		}
	}
	if p.peek().Is("DECLARE") {
		p.next()
		if err := p.parseDeclarations(); err != nil {
			return err
		}
	}
	if err := p.expect("BEGIN"); err != nil {
		return err
	}
	body, err := p.parseStmts("EXCEPTION", "END")
	if err != nil {
		return err
	}
	p.fn.Body = body
	if p.peek().Is("EXCEPTION") {
		p.next()
		handlers, err := p.parseHandlers()
		if err != nil {
			return err
		}
		p.fn.Handlers = handlers
	}
	if err := p.expect("END"); err != nil {
		return err
	}
	if t := p.peek(); t.Kind == TokenIdent {
		p.next()
	}
	if p.peek().IsOp(";") {
		p.next()
	}
	if p.peek().Kind != TokenEOF {
		return p.unexpected()
	}
	return nil
}

func (p *parser) parseLabel() (string, error) {
	p.next() // <<
	t := p.next()
	if t.Kind != TokenIdent {
		return "", &SyntaxError{Line: t.Line, Msg: "expected label name"}
	}
	if err := p.expectOp(">>"); err != nil {
		return "", err
	}
	return t.Name(), nil
}

func (p *parser) parseDeclarations() error {
	for !p.peek().Is("BEGIN") {
		nameTok := p.next()
		if nameTok.Kind != TokenIdent && nameTok.Kind != TokenQuotedIdent {
			return &SyntaxError{Line: nameTok.Line, Msg: fmt.Sprintf("syntax error at or near %q", nameTok.Text)}
		}
		name := nameTok.Name()

		switch t := p.peek(); {
		case t.Is("ALIAS"):
			p.next()
			if err := p.expect("FOR"); err != nil {
				return err
			}
			ref := p.next()
			target, ok := p.fn.Lookup(ref.Name())
			if !ok {
				return &SyntaxError{Line: ref.Line, Msg: fmt.Sprintf("variable %q does not exist", ref.Text)}
			}
			p.fn.Bind(name, target.ID)
			if err := p.expectOp(";"); err != nil {
				return err
			}
			continue
		case t.Is("CURSOR") || t.Is("SCROLL") || t.Is("NO"):
			if err := p.skipStatement(); err != nil {
				return err
			}
			p.fn.Declare(name, DatumVar, "refcursor")
			continue
		}

		constant := false
		if p.peek().Is("CONSTANT") {
			p.next()
			constant = true
		}
		from, to, err := p.scanUntil(func(t Token) bool {
			return t.IsOp(";") || t.IsOp(":=") || t.IsOp("=") || t.Is("DEFAULT") || t.Is("NOT") || t.Is("COLLATE")
		})
		if err != nil {
			return err
		}
		if from == to {
			return &SyntaxError{Line: nameTok.Line, Msg: fmt.Sprintf("missing data type for %q", name)}
		}
		typ := strings.ToLower(p.text(from, to))

		if p.peek().Is("COLLATE") {
			p.next()
			p.next()
		}
		if p.peek().Is("NOT") {
			p.next()
			if err := p.expect("NULL"); err != nil {
				return err
			}
		}
		if t := p.peek(); t.IsOp(":=") || t.IsOp("=") || t.Is("DEFAULT") {
			p.next()
			if _, _, err := p.scanUntil(isOp(";")); err != nil {
				return err
			}
		}
		if err := p.expectOp(";"); err != nil {
			return err
		}
		d := p.fn.Declare(name, kindForType(typ), typ)
		d.Constant = constant
	}
	return nil
}

func (p *parser) parseHandlers() ([]Handler, error) {
	var handlers []Handler
	for p.peek().Is("WHEN") {
		line := p.next().Line
		from, to, err := p.scanUntil(isKeyword("THEN"))
		if err != nil {
			return nil, err
		}
		var conds []string
		for i := from; i < to; i++ {
			if !p.toks[i].Is("OR") {
				conds = append(conds, p.toks[i].Name())
			}
		}
		p.next() // THEN
		body, err := p.parseStmts("WHEN", "END")
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, Handler{Line: line, Conditions: conds, Body: body})
	}
	return handlers, nil
}

// parseStmts parses statements until one of the terminating keywords.
func (p *parser) parseStmts(terminators ...string) ([]Stmt, error) {
	stop := isKeyword(terminators...)
	var stmts []Stmt
	for {
		t := p.peek()
		if t.Kind == TokenEOF {
			return nil, p.unexpected()
		}
		if stop(t) {
			return stmts, nil
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
}

func (p *parser) parseStmt() (Stmt, error) {
	label := ""
	if p.peek().IsOp("<<") {
		l, err := p.parseLabel()
		if err != nil {
			return nil, err
		}
		label = l
	}

	t := p.peek()
	kw := strings.ToLower(t.Text)
	if t.Kind != TokenIdent {
		kw = ""
	}
	switch {
	case kw == "if":
		return p.parseIf(false)
	case kw == "while":
		return p.parseWhile(label)
	case kw == "for":
		return p.parseFor(label)
	case kw == "foreach":
		return p.parseForEach(label)
	case kw == "loop":
		body, err := p.parseLoopBody()
		if err != nil {
			return nil, err
		}
		return &OtherStmt{base: base{t.Line}, Keyword: "LOOP", Body: body}, nil
	case kw == "declare" || kw == "begin":
		return p.parseBlock()
	case kw == "case":
		return p.parseCase()
	case kw == "raise":
		return p.parseRaise()
	case kw == "return":
		return p.parseReturn()
	case kw == "perform":
		p.next()
		e, err := p.expr(isOp(";"), "query")
		if err != nil {
			return nil, err
		}
		p.next()
		return &PerformStmt{base: base{t.Line}, Expr: e}, nil
	case sqlKeywords[kw]:
		return p.parseExecSQL()
	case otherKeywords[kw]:
		if err := p.skipStatement(); err != nil {
			return nil, err
		}
		return &OtherStmt{base: base{t.Line}, Keyword: strings.ToUpper(kw)}, nil
	case t.Kind == TokenIdent || t.Kind == TokenQuotedIdent:
		return p.parseAssign()
	default:
		return nil, p.unexpected()
	}
}

func (p *parser) skipStatement() error {
	depth := 0
	for {
		t := p.next()
		switch {
		case t.Kind == TokenEOF:
			return &SyntaxError{Line: t.Line, Msg: "unexpected end of function body"}
		case t.IsOp("("):
			depth++
		case t.IsOp(")"):
			depth--
		case t.IsOp(";") && depth == 0:
			return nil
		}
	}
}

func (p *parser) parseAssign() (Stmt, error) {
	line := p.peek().Line
	from, to, err := p.scanUntil(func(t Token) bool { return t.IsOp(":=") || t.IsOp("=") })
	if err != nil {
		return nil, err
	}
	target, err := p.resolveTarget(from, to)
	if err != nil {
		return nil, err
	}
	p.next() // := or =
	e, err := p.expr(isOp(";"), "expression")
	if err != nil {
		return nil, err
	}
	p.next()
	if d, _ := p.fn.Datum(target); d.Constant {
		return nil, &SyntaxError{Line: line, Msg: fmt.Sprintf("variable %q is declared CONSTANT", d.Name)}
	}
	return &AssignStmt{base: base{line}, Target: target, Expr: e}, nil
}

// resolveTarget resolves "name", "name.field" or "name[idx]" to the datum
// that receives the assignment.
func (p *parser) resolveTarget(from, to int) (DatumID, error) {
	if from == to {
		return NoDatum, p.unexpected()
	}
	head := p.toks[from]
	if head.Kind != TokenIdent && head.Kind != TokenQuotedIdent {
		return NoDatum, &SyntaxError{Line: head.Line, Msg: fmt.Sprintf("syntax error at or near %q", head.Text)}
	}
	d, ok := p.fn.Lookup(head.Name())
	if !ok {
		return NoDatum, &SyntaxError{Line: head.Line, Msg: fmt.Sprintf("%q is not a known variable", head.Text)}
	}
	return d.ID, nil
}

// resolveTargetList resolves a comma-separated list of targets. A single
// record or row target stands for itself; scalar lists get an anonymous
// row datum.
func (p *parser) resolveTargetList(groups [][2]int, line int) (DatumID, error) {
	ids := make([]DatumID, 0, len(groups))
	for _, g := range groups {
		id, err := p.resolveTarget(g[0], g[1])
		if err != nil {
			return NoDatum, err
		}
		ids = append(ids, id)
	}
	if len(ids) == 1 {
		if d, _ := p.fn.Datum(ids[0]); d.Kind != DatumVar {
			return ids[0], nil
		}
	}
	for _, id := range ids {
		if d, _ := p.fn.Datum(id); d.Kind != DatumVar {
			return NoDatum, &SyntaxError{Line: line, Msg: fmt.Sprintf("record variable %q cannot be part of multiple-item INTO list", d.Name)}
		}
	}
	row := p.fn.Declare("", DatumRow, "")
	row.Fields = ids
	return row.ID, nil
}

func (p *parser) parseIf(nested bool) (Stmt, error) {
	line := p.next().Line // IF, ELSIF or ELSEIF
	cond, err := p.expr(isKeyword("THEN"), "condition")
	if err != nil {
		return nil, err
	}
	p.next() // THEN
	then, err := p.parseStmts("ELSIF", "ELSEIF", "ELSE", "END")
	if err != nil {
		return nil, err
	}
	st := &IfStmt{base: base{line}, Cond: cond, Then: then}

	switch t := p.peek(); {
	case t.Is("ELSIF") || t.Is("ELSEIF"):
		inner, err := p.parseIf(true)
		if err != nil {
			return nil, err
		}
		st.Else = []Stmt{inner}
	case t.Is("ELSE"):
		p.next()
		if st.Else, err = p.parseStmts("END"); err != nil {
			return nil, err
		}
	}
	if nested {
		return st, nil
	}
	if err := p.expect("END"); err != nil {
		return nil, err
	}
	if err := p.expect("IF"); err != nil {
		return nil, err
	}
	if err := p.expectOp(";"); err != nil {
		return nil, err
	}
	return st, nil
}

// parseLoopBody reads LOOP stmts END LOOP [label];
func (p *parser) parseLoopBody() ([]Stmt, error) {
	if err := p.expect("LOOP"); err != nil {
		return nil, err
	}
	body, err := p.parseStmts("END")
	if err != nil {
		return nil, err
	}
	p.next() // END
	if err := p.expect("LOOP"); err != nil {
		return nil, err
	}
	if p.peek().Kind == TokenIdent {
		p.next()
	}
	if err := p.expectOp(";"); err != nil {
		return nil, err
	}
	return body, nil
}

func (p *parser) parseWhile(label string) (Stmt, error) {
	line := p.next().Line
	cond, err := p.expr(isKeyword("LOOP"), "condition")
	if err != nil {
		return nil, err
	}
	body, err := p.parseLoopBody()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{base: base{line}, Label: label, Cond: cond, Body: body}, nil
}

func (p *parser) parseFor(label string) (Stmt, error) {
	line := p.next().Line
	from, to, err := p.scanUntil(isKeyword("IN"))
	if err != nil {
		return nil, err
	}
	p.next() // IN

	if p.peek().Is("EXECUTE") {
		if _, _, err := p.scanUntil(isKeyword("LOOP")); err != nil {
			return nil, err
		}
		body, err := p.parseLoopBody()
		if err != nil {
			return nil, err
		}
		return &OtherStmt{base: base{line}, Keyword: "FOR EXECUTE", Body: body}, nil
	}

	reverse := false
	if p.peek().Is("REVERSE") {
		p.next()
		reverse = true
	}

	if p.rangeAhead() {
		if to-from != 1 {
			return nil, &SyntaxError{Line: line, Msg: "integer FOR loop must have just one target variable"}
		}
		st := &ForRangeStmt{base: base{line}, Label: label, Reverse: reverse}
		st.Var = p.loopVar(p.toks[from])
		if st.Lower, err = p.expr(isOp(".."), "lower bound"); err != nil {
			return nil, err
		}
		p.next()
		if st.Upper, err = p.expr(isKeyword("LOOP", "BY"), "upper bound"); err != nil {
			return nil, err
		}
		if p.peek().Is("BY") {
			p.next()
			if st.Step, err = p.expr(isKeyword("LOOP"), "step"); err != nil {
				return nil, err
			}
		}
		if st.Body, err = p.parseLoopBody(); err != nil {
			return nil, err
		}
		return st, nil
	}

	target, err := p.resolveTargetList(p.splitCommas(from, to), line)
	if err != nil {
		return nil, &SyntaxError{Line: line, Msg: "loop variable of loop over rows must be a record variable or list of scalar variables"}
	}
	qline := p.peek().Line
	qfrom, qto, err := p.scanUntil(isKeyword("LOOP"))
	if err != nil {
		return nil, err
	}
	if qfrom == qto {
		return nil, &SyntaxError{Line: qline, Msg: "missing query"}
	}
	st := &ForQueryStmt{base: base{line}, Label: label, Target: target,
		Query: &Expr{Query: p.text(qfrom, qto), Line: qline}}
	if st.Body, err = p.parseLoopBody(); err != nil {
		return nil, err
	}
	return st, nil
}

// rangeAhead reports whether a ".." appears at depth zero before LOOP.
func (p *parser) rangeAhead() bool {
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		t := p.toks[i]
		switch {
		case t.IsOp("(") || t.IsOp("["):
			depth++
		case t.IsOp(")") || t.IsOp("]"):
			depth--
		case depth == 0 && t.IsOp(".."):
			return true
		case depth == 0 && (t.Is("LOOP") || t.IsOp(";")):
			return false
		}
	}
	return false
}

// loopVar returns the integer loop variable, declaring it when the name
// is not already a scalar variable.
func (p *parser) loopVar(t Token) DatumID {
	if d, ok := p.fn.Lookup(t.Name()); ok && d.Kind == DatumVar {
		return d.ID
	}
	return p.fn.Declare(t.Name(), DatumVar, "integer").ID
}

func (p *parser) splitCommas(from, to int) [][2]int {
	var groups [][2]int
	start := from
	for i := from; i < to; i++ {
		if p.toks[i].IsOp(",") {
			groups = append(groups, [2]int{start, i})
			start = i + 1
		}
	}
	return append(groups, [2]int{start, to})
}

func (p *parser) parseForEach(label string) (Stmt, error) {
	line := p.next().Line
	t := p.next()
	d, ok := p.fn.Lookup(t.Name())
	if !ok {
		return nil, &SyntaxError{Line: t.Line, Msg: fmt.Sprintf("%q is not a known variable", t.Text)}
	}
	st := &ForEachStmt{base: base{line}, Label: label, Var: d.ID}
	if p.peek().Is("SLICE") {
		p.next()
		n, err := strconv.Atoi(p.next().Text)
		if err != nil {
			return nil, &SyntaxError{Line: line, Msg: "SLICE must be an integer constant"}
		}
		st.Slice = n
	}
	if err := p.expect("IN"); err != nil {
		return nil, err
	}
	if err := p.expect("ARRAY"); err != nil {
		return nil, err
	}
	var err error
	if st.Source, err = p.expr(isKeyword("LOOP"), "array expression"); err != nil {
		return nil, err
	}
	if st.Body, err = p.parseLoopBody(); err != nil {
		return nil, err
	}
	return st, nil
}

func (p *parser) parseBlock() (Stmt, error) {
	line := p.peek().Line
	if p.peek().Is("DECLARE") {
		p.next()
		if err := p.parseDeclarations(); err != nil {
			return nil, err
		}
	}
	if err := p.expect("BEGIN"); err != nil {
		return nil, err
	}
	body, err := p.parseStmts("EXCEPTION", "END")
	if err != nil {
		return nil, err
	}
	if p.peek().Is("EXCEPTION") {
		p.next()
		handlers, err := p.parseHandlers()
		if err != nil {
			return nil, err
		}
		for _, h := range handlers {
			body = append(body, h.Body...)
		}
	}
	if err := p.expect("END"); err != nil {
		return nil, err
	}
	if p.peek().Kind == TokenIdent {
		p.next()
	}
	if err := p.expectOp(";"); err != nil {
		return nil, err
	}
	return &OtherStmt{base: base{line}, Keyword: "BLOCK", Body: body}, nil
}

func (p *parser) parseCase() (Stmt, error) {
	line := p.next().Line
	if !p.peek().Is("WHEN") {
		if _, _, err := p.scanUntil(isKeyword("WHEN")); err != nil {
			return nil, err
		}
	}
	var body []Stmt
	for p.peek().Is("WHEN") {
		p.next()
		if _, _, err := p.scanUntil(isKeyword("THEN")); err != nil {
			return nil, err
		}
		p.next()
		stmts, err := p.parseStmts("WHEN", "ELSE", "END")
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	if p.peek().Is("ELSE") {
		p.next()
		stmts, err := p.parseStmts("END")
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	if err := p.expect("END"); err != nil {
		return nil, err
	}
	if err := p.expect("CASE"); err != nil {
		return nil, err
	}
	if err := p.expectOp(";"); err != nil {
		return nil, err
	}
	return &OtherStmt{base: base{line}, Keyword: "CASE", Body: body}, nil
}

func (p *parser) parseRaise() (Stmt, error) {
	line := p.next().Line
	st := &RaiseStmt{base: base{line}, Level: "EXCEPTION"}
	if t := p.peek(); t.Kind == TokenIdent && raiseLevels[strings.ToLower(t.Text)] {
		st.Level = strings.ToUpper(p.next().Text)
	}
	if t := p.peek(); t.Kind == TokenString {
		p.next()
		st.Message = unquote(t.Text)
		for p.peek().IsOp(",") {
			p.next()
			e, err := p.expr(func(t Token) bool { return t.IsOp(",") || t.IsOp(";") || t.Is("USING") }, "parameter")
			if err != nil {
				return nil, err
			}
			st.Params = append(st.Params, e)
		}
	}
	if !p.peek().IsOp(";") {
		if err := p.skipStatement(); err != nil {
			return nil, err
		}
		return st, nil
	}
	p.next()
	return st, nil
}

func (p *parser) parseReturn() (Stmt, error) {
	line := p.next().Line
	if t := p.peek(); t.Is("NEXT") || t.Is("QUERY") {
		if err := p.skipStatement(); err != nil {
			return nil, err
		}
		return &OtherStmt{base: base{line}, Keyword: "RETURN " + strings.ToUpper(t.Text)}, nil
	}
	st := &ReturnStmt{base: base{line}}
	if !p.peek().IsOp(";") {
		e, err := p.expr(isOp(";"), "expression")
		if err != nil {
			return nil, err
		}
		st.Expr = e
	}
	p.next()
	return st, nil
}

func (p *parser) parseExecSQL() (Stmt, error) {
	first := p.peek()
	line := first.Line
	from, to, err := p.scanUntil(isOp(";"))
	if err != nil {
		return nil, err
	}
	p.next()

	st := &ExecSQLStmt{base: base{line}, Target: NoDatum}
	switch strings.ToLower(first.Text) {
	case "insert", "update", "delete", "merge":
		st.Mod = true
	}

	into := -1
	depth := 0
	for i := from; i < to; i++ {
		t := p.toks[i]
		switch {
		case t.IsOp("("):
			depth++
		case t.IsOp(")"):
			depth--
		case depth == 0 && t.Is("INTO") && i > from && !p.toks[i-1].Is("INSERT") && !p.toks[i-1].Is("MERGE"):
			into = i
		}
		if into >= 0 {
			break
		}
	}
	if into < 0 {
		st.SQL = &Expr{Query: p.text(from, to), Line: line}
		return st, nil
	}

	i := into + 1
	if i < to && p.toks[i].Is("STRICT") {
		st.Strict = true
		i++
	}
	var groups [][2]int
	for i < to {
		start := i
		i++
		for i+1 < to && p.toks[i].IsOp(".") {
			i += 2
		}
		groups = append(groups, [2]int{start, i})
		if i < to && p.toks[i].IsOp(",") {
			i++
			continue
		}
		break
	}
	if len(groups) == 0 {
		return nil, &SyntaxError{Line: p.toks[into].Line, Msg: "INTO specified without target"}
	}
	if st.Target, err = p.resolveTargetList(groups, line); err != nil {
		return nil, err
	}

	parts := []string{p.text(from, into), p.text(i, to)}
	query := strings.TrimSpace(strings.Join(parts, " "))
	st.SQL = &Expr{Query: query, Line: line}
	return st, nil
}
