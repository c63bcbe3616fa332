package query

import (
	"fmt"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
)

// Lexical finds references by scanning the query tokens. Identifiers
// that name a function, follow a cast or an AS are skipped; string
// literals and comments never match.
type Lexical struct{}

// Extract implements Extractor.
func (Lexical) Extract(expr *plsql.Expr, fn *plsql.Function, _ *plsql.ExecState) ([]plsql.DatumID, error) {
	if expr == nil {
		return nil, nil
	}
	toks, err := plsql.Tokenize(expr.Query, expr.Line)
	if err != nil {
		return nil, fmt.Errorf("tokenizing %q: %w", expr.Query, err)
	}
	return collect(lexicalRefs(toks), fn)
}

func isName(t plsql.Token) bool {
	return t.Kind == plsql.TokenIdent || t.Kind == plsql.TokenQuotedIdent
}

func lexicalRefs(toks []plsql.Token) []ref {
	var refs []ref
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == plsql.TokenParam {
			if n, ok := paramNumber(t.Text); ok {
				refs = append(refs, ref{param: n})
			}
			continue
		}
		if !isName(t) {
			continue
		}
		if i > 0 && (toks[i-1].IsOp("::") || toks[i-1].Is("AS") || toks[i-1].IsOp(".")) {
			continue
		}

		parts := []string{t.Name()}
		j := i + 1
		for j+1 < len(toks) && toks[j].IsOp(".") && isName(toks[j+1]) {
			parts = append(parts, toks[j+1].Name())
			j += 2
		}
		if toks[j].IsOp("(") {
			i = j - 1
			continue
		}
		refs = append(refs, ref{parts: parts})
		i = j - 1
	}
	return refs
}
