package query

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/sql"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
)

// TreeSitter finds references in the syntax tree produced by the
// tree-sitter SQL grammar. Queries the grammar cannot parse without
// errors are scanned lexically instead.
type TreeSitter struct {
	lang     *sitter.Language
	fallback Lexical
}

// NewTreeSitter returns a tree-sitter backed extractor.
func NewTreeSitter() *TreeSitter {
	return &TreeSitter{lang: sql.GetLanguage()}
}

// Extract implements Extractor.
func (ts *TreeSitter) Extract(expr *plsql.Expr, fn *plsql.Function, estate *plsql.ExecState) ([]plsql.DatumID, error) {
	if expr == nil {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(ts.lang)
	content := []byte(expr.Query)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", expr.Query, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return ts.fallback.Extract(expr, fn, estate)
	}

	var toks []plsql.Token
	leafTokens(root, content, &toks)
	toks = append(toks, plsql.Token{Kind: plsql.TokenEOF})
	return collect(lexicalRefs(toks), fn)
}

// leafTokens flattens the leaves of the tree into the token shapes the
// reference scanner understands.
func leafTokens(n *sitter.Node, content []byte, toks *[]plsql.Token) {
	if n.ChildCount() == 0 {
		text := n.Content(content)
		tok := plsql.Token{Text: text, Kind: plsql.TokenString}
		switch {
		case n.Type() == "identifier" && strings.HasPrefix(text, `"`):
			tok.Kind = plsql.TokenQuotedIdent
		case n.Type() == "identifier":
			tok.Kind = plsql.TokenIdent
		case n.Type() == "keyword_as":
			tok.Kind = plsql.TokenIdent
			tok.Text = "AS"
		case text == "." || text == "(" || text == "::":
			tok.Kind = plsql.TokenOp
		default:
			if _, ok := paramNumber(text); ok {
				tok.Kind = plsql.TokenParam
			}
		}
		*toks = append(*toks, tok)
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		leafTokens(n.Child(i), content, toks)
	}
}
