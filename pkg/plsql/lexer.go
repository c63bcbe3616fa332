package plsql

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenEOF         TokenKind = iota
	TokenIdent                 // bare identifier or keyword
	TokenQuotedIdent           // "Quoted" identifier, case preserved
	TokenNumber                // numeric literal
	TokenString                // 'string' or E'string'
	TokenDollarString          // $tag$ ... $tag$
	TokenParam                 // positional parameter $n
	TokenOp                    // punctuation and operators
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "EOF"
	case TokenIdent:
		return "identifier"
	case TokenQuotedIdent:
		return "quoted identifier"
	case TokenNumber:
		return "number"
	case TokenString:
		return "string"
	case TokenDollarString:
		return "dollar string"
	case TokenParam:
		return "parameter"
	case TokenOp:
		return "operator"
	default:
		return "unknown"
	}
}

// Token is a lexical token. Start and End are byte offsets into the
// tokenized source.
type Token struct {
	Kind  TokenKind
	Text  string
	Line  int
	Start int
	End   int
}

// Is reports whether the token is the given keyword, case-insensitively.
func (t Token) Is(keyword string) bool {
	return t.Kind == TokenIdent && strings.EqualFold(t.Text, keyword)
}

// IsOp reports whether the token is the given operator.
func (t Token) IsOp(op string) bool {
	return t.Kind == TokenOp && t.Text == op
}

// Name returns the identifier as the namespace sees it: bare
// identifiers fold to lower case, quoted ones keep their case.
func (t Token) Name() string {
	switch t.Kind {
	case TokenIdent:
		return strings.ToLower(t.Text)
	case TokenQuotedIdent:
		return t.Text[1 : len(t.Text)-1]
	default:
		return t.Text
	}
}

// multi-character operators, longest first
var operators = []string{
	":=", "..", "::", "<>", "<=", ">=", "!=", "||", "<<", ">>", "=>", "->>", "->",
}

type lexer struct {
	src  string
	pos  int
	line int
	toks []Token
}

// Tokenize splits src into tokens. Line numbering starts at firstLine.
// Comments and whitespace are dropped.
func Tokenize(src string, firstLine int) ([]Token, error) {
	l := &lexer{src: src, line: firstLine}
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokenEOF {
			l.toks = append(l.toks, tok)
			return l.toks, nil
		}
		l.toks = append(l.toks, tok)
	}
}

func (l *lexer) errorf(format string, args ...interface{}) error {
	return &SyntaxError{Line: l.line, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peekByte(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

// advance moves past n bytes, counting newlines.
func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
		}
		l.pos++
	}
}

func (l *lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f':
			l.advance(1)
		case c == '-' && l.peekByte(1) == '-':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '/' && l.peekByte(1) == '*':
			start := l.line
			depth := 0
			for {
				if l.pos >= len(l.src) {
					return &SyntaxError{Line: start, Msg: "unterminated comment"}
				}
				if l.src[l.pos] == '/' && l.peekByte(1) == '*' {
					depth++
					l.advance(2)
					continue
				}
				if l.src[l.pos] == '*' && l.peekByte(1) == '/' {
					depth--
					l.advance(2)
					if depth == 0 {
						break
					}
					continue
				}
				l.advance(1)
			}
		default:
			return nil
		}
	}
	return nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (l *lexer) next() (Token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return Token{}, err
	}
	if l.pos >= len(l.src) {
		return Token{Kind: TokenEOF, Line: l.line, Start: l.pos, End: l.pos}, nil
	}

	start, line := l.pos, l.line
	emit := func(kind TokenKind) (Token, error) {
		return Token{Kind: kind, Text: l.src[start:l.pos], Line: line, Start: start, End: l.pos}, nil
	}

	c := l.src[l.pos]
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])

	switch {
	case (c == 'E' || c == 'e') && l.peekByte(1) == '\'':
		l.advance(1)
		if err := l.scanQuoted('\'', true); err != nil {
			return Token{}, err
		}
		return emit(TokenString)
	case isIdentStart(r):
		l.advance(size)
		for l.pos < len(l.src) {
			r, size = utf8.DecodeRuneInString(l.src[l.pos:])
			if !isIdentPart(r) {
				break
			}
			l.advance(size)
		}
		return emit(TokenIdent)
	case c >= '0' && c <= '9':
		l.scanNumber()
		return emit(TokenNumber)
	case c == '.' && l.peekByte(1) >= '0' && l.peekByte(1) <= '9':
		l.scanNumber()
		return emit(TokenNumber)
	case c == '\'':
		if err := l.scanQuoted('\'', false); err != nil {
			return Token{}, err
		}
		return emit(TokenString)
	case c == '"':
		if err := l.scanQuoted('"', false); err != nil {
			return Token{}, err
		}
		return emit(TokenQuotedIdent)
	case c == '$':
		if d := l.peekByte(1); d >= '0' && d <= '9' {
			l.advance(1)
			for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
				l.advance(1)
			}
			return emit(TokenParam)
		}
		if tag, ok := l.dollarTag(); ok {
			l.advance(len(tag))
			end := strings.Index(l.src[l.pos:], tag)
			if end < 0 {
				return Token{}, &SyntaxError{Line: line, Msg: "unterminated dollar-quoted string"}
			}
			l.advance(end + len(tag))
			return emit(TokenDollarString)
		}
	}

	for _, op := range operators {
		if strings.HasPrefix(l.src[l.pos:], op) {
			l.advance(len(op))
			return emit(TokenOp)
		}
	}
	if strings.ContainsRune("()[],;.:+-*/%^<>=!|&~#@?{}", r) {
		l.advance(size)
		return emit(TokenOp)
	}
	return Token{}, l.errorf("unexpected character %q", r)
}

func (l *lexer) scanNumber() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c >= '0' && c <= '9':
			l.advance(1)
		case c == '.' && l.peekByte(1) != '.':
			l.advance(1)
		case (c == 'e' || c == 'E') && (isDigit(l.peekByte(1)) || ((l.peekByte(1) == '-' || l.peekByte(1) == '+') && isDigit(l.peekByte(2)))):
			l.advance(2)
		default:
			return
		}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// scanQuoted consumes a quote-delimited literal starting at the opening
// quote. A doubled quote is an escaped quote; backslash escapes apply
// only to E'' strings.
func (l *lexer) scanQuoted(q byte, backslash bool) error {
	line := l.line
	l.advance(1)
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if backslash && c == '\\' {
			l.advance(2)
			continue
		}
		if c == q {
			if l.peekByte(1) == q {
				l.advance(2)
				continue
			}
			l.advance(1)
			return nil
		}
		l.advance(1)
	}
	return &SyntaxError{Line: line, Msg: "unterminated quoted literal"}
}

// dollarTag returns the opening $tag$ at the current position.
func (l *lexer) dollarTag() (string, bool) {
	i := l.pos + 1
	for i < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[i:])
		if r == '$' {
			return l.src[l.pos : i+1], true
		}
		if !(r == '_' || unicode.IsLetter(r) || (i > l.pos+1 && unicode.IsDigit(r))) {
			return "", false
		}
		i += size
	}
	return "", false
}

// DollarBody strips the $tag$ delimiters from a dollar-quoted literal.
func DollarBody(text string) string {
	end := strings.IndexByte(text[1:], '$') + 2
	return text[end : len(text)-end]
}

// unquote strips quotes from a string literal and collapses doubled quotes.
func unquote(text string) string {
	if strings.HasPrefix(text, "E") || strings.HasPrefix(text, "e") {
		text = text[1:]
	}
	if len(text) < 2 {
		return text
	}
	return strings.ReplaceAll(text[1:len(text)-1], "''", "'")
}
