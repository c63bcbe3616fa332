package dfg

import (
	"errors"
	"testing"

	"github.com/KLIEBHAN/pg-plsql-graphs/internal/log"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/cfg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/graph"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rwSource = `CREATE FUNCTION rw(p int) RETURNS int AS $$
DECLARE
	x int;
	y int;
	r record;
	arr int[];
	e int;
BEGIN
	x := p + 1;
	IF x > y THEN
		RAISE NOTICE 'x is %', x;
	END IF;
	WHILE y < x LOOP
		y := y + 1;
	END LOOP;
	FOR i IN p..x BY y LOOP
		e := i;
	END LOOP;
	FOR r IN SELECT * FROM t WHERE id = x LOOP
		PERFORM log_row(r.id, y);
	END LOOP;
	FOREACH e IN ARRAY arr LOOP
		x := x + e;
	END LOOP;
	SELECT count(*), max(id) INTO x, y FROM t WHERE id > p;
	SELECT * INTO r FROM t;
	UPDATE t SET v = y WHERE id = x;
	RETURN x;
END;
$$ LANGUAGE plpgsql;`

func TestReadsWrites(t *testing.T) {
	fn, err := plsql.Parse(rwSource)
	require.NoError(t, err)
	ids := func(names ...string) VarSet {
		var res []plsql.DatumID
		for _, n := range names {
			d, ok := fn.Lookup(n)
			require.True(t, ok, n)
			res = append(res, d.ID)
		}
		return NewVarSet(res...)
	}

	tests := []struct {
		name   string
		line   int
		reads  VarSet
		writes VarSet
	}{
		{"assign", 9, ids("p"), ids("x")},
		{"if condition", 10, ids("x", "y"), nil},
		{"raise reads nothing", 11, nil, nil},
		{"while condition", 13, ids("x", "y"), nil},
		{"assign in loop", 14, ids("y"), ids("y")},
		{"for range bounds and variable", 16, ids("p", "x", "y"), ids("i")},
		{"for query target is not a write", 19, ids("x"), nil},
		{"perform", 20, ids("r", "y"), nil},
		{"foreach", 22, ids("arr"), ids("e")},
		{"select into list", 25, ids("p"), ids("x", "y")},
		{"select into record", 26, nil, ids("r")},
		{"update without into", 27, ids("x", "y"), nil},
		{"return", 28, ids("x"), nil},
	}

	a := NewAnalyzer(fn, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := fn.StatementAt(tt.line)
			require.True(t, ok, "no statement at line %d", tt.line)
			reads, writes, err := a.ReadsWrites(s)
			require.NoError(t, err)
			assert.Equal(t, tt.reads, reads, "reads")
			assert.Equal(t, tt.writes, writes, "writes")
		})
	}
}

func TestReadsWrites_ForRangeOverNonVar(t *testing.T) {
	fn := plsql.NewFunction("f")
	r := fn.Declare("r", plsql.DatumRec, "record")
	s := &plsql.ForRangeStmt{Var: r.ID, Lower: &plsql.Expr{Query: "SELECT 1"}, Upper: &plsql.Expr{Query: "SELECT 2"}}

	_, writes, err := NewAnalyzer(fn, nil, nil).ReadsWrites(s)
	require.NoError(t, err)
	assert.Empty(t, writes)
}

func TestAnnotateAll(t *testing.T) {
	fn, err := plsql.Parse("DECLARE a int; b int;\nBEGIN\na := 1;\nb := a;\nEND")
	require.NoError(t, err)
	c := cfg.Build(fn.Body, cfg.WithLogger(log.Discard()))

	require.NoError(t, NewAnalyzer(fn, nil, query.Lexical{}).AnnotateAll(c.Graph))

	_, ok := graph.NodeAttr(c.Graph, ReadsKey, cfg.Entry)
	assert.False(t, ok, "entry is not annotated")

	a, _ := fn.Lookup("a")
	b, _ := fn.Lookup("b")
	first, second := c.NodeFor[fn.Body[0]], c.NodeFor[fn.Body[1]]

	reads, ok := graph.NodeAttr(c.Graph, ReadsKey, first)
	require.True(t, ok)
	assert.True(t, reads.Empty(), "annotated with an empty set")
	assert.Equal(t, NewVarSet(a.ID), Writes(c.Graph, first))
	assert.Equal(t, NewVarSet(a.ID), Reads(c.Graph, second))
	assert.Equal(t, NewVarSet(b.ID), Writes(c.Graph, second))
}

func TestAnnotateAll_ExtractError(t *testing.T) {
	fn, err := plsql.Parse("DECLARE a int;\nBEGIN\na := $4;\nEND")
	require.NoError(t, err)
	c := cfg.Build(fn.Body, cfg.WithLogger(log.Discard()))

	err = NewAnalyzer(fn, nil, nil).AnnotateAll(c.Graph)
	require.Error(t, err)

	var xerr *ExtractError
	require.True(t, errors.As(err, &xerr))
	assert.Equal(t, 3, xerr.Line)
	assert.True(t, errors.Is(err, query.ErrUnknownParam))
}

func TestVarSet(t *testing.T) {
	s := NewVarSet(3, 1, 3, 2)
	assert.Equal(t, VarSet{1, 2, 3}, s)
	assert.True(t, s.Contains(2))
	assert.False(t, s.Contains(4))
	assert.Equal(t, VarSet{2, 3}, s.Intersect(NewVarSet(2, 3, 5)))
	assert.Nil(t, s.Intersect(nil))
	assert.Equal(t, VarSet{1, 2, 3, 5}, s.Union(NewVarSet(5, 1)))
	assert.Equal(t, VarSet{1, 3}, s.Filter(func(id plsql.DatumID) bool { return id != 2 }))
	assert.True(t, NewVarSet().Empty())
}
