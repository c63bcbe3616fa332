// Package query finds the function variables an embedded query refers to.
package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
)

// ErrUnknownParam is returned for a $n reference beyond the argument list.
var ErrUnknownParam = errors.New("there is no parameter")

// Extractor returns the datums referenced inside an embedded query.
type Extractor interface {
	Extract(expr *plsql.Expr, fn *plsql.Function, estate *plsql.ExecState) ([]plsql.DatumID, error)
}

// Name identifies an Extractor implementation in configuration.
type Name string

const (
	NameLexical    Name = "lexical"
	NameTreeSitter Name = "treesitter"
)

// New returns the extractor registered under name.
func New(name Name) (Extractor, error) {
	switch name {
	case NameLexical, "":
		return Lexical{}, nil
	case NameTreeSitter:
		return NewTreeSitter(), nil
	default:
		return nil, fmt.Errorf("unknown extractor %q (must be 'lexical' or 'treesitter')", name)
	}
}

// ref is one candidate reference: an identifier chain like a.b.c or a
// positional parameter.
type ref struct {
	parts []string
	param int // 1-based, 0 when parts is set
}

// resolve maps a reference to a datum. Chains whose head is not a
// variable are column references and resolve to nothing.
func resolve(r ref, fn *plsql.Function) (plsql.DatumID, bool, error) {
	if r.param > 0 {
		if r.param > len(fn.Args) {
			return plsql.NoDatum, false, fmt.Errorf("%w $%d", ErrUnknownParam, r.param)
		}
		return fn.Args[r.param-1], true, nil
	}

	parts := r.parts
	// a variable may be qualified by the function name
	if len(parts) > 1 && strings.EqualFold(parts[0], lastPart(fn.Name)) {
		if _, ok := fn.Lookup(parts[0]); !ok {
			parts = parts[1:]
		}
	}

	d, ok := fn.Lookup(parts[0])
	if !ok {
		return plsql.NoDatum, false, nil
	}
	if d.Kind == plsql.DatumRow && len(parts) > 1 {
		for _, fid := range d.Fields {
			if f, _ := fn.Datum(fid); f != nil && f.Name == parts[1] {
				return fid, true, nil
			}
		}
	}
	return d.ID, true, nil
}

func lastPart(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// collect resolves refs into a deduplicated id list in first-seen order.
func collect(refs []ref, fn *plsql.Function) ([]plsql.DatumID, error) {
	seen := make(map[plsql.DatumID]bool)
	var ids []plsql.DatumID
	for _, r := range refs {
		id, ok, err := resolve(r, fn)
		if err != nil {
			return nil, err
		}
		if ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func paramNumber(text string) (int, bool) {
	if !strings.HasPrefix(text, "$") {
		return 0, false
	}
	n, err := strconv.Atoi(text[1:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
