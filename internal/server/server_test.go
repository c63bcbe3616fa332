package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KLIEBHAN/pg-plsql-graphs/internal/log"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plugin"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/store"
)

const source = `DECLARE v1 int; v2 int;
BEGIN
	v1 := 10;
	IF v1 > 5 THEN v2 := v1; ELSE v2 := 0; END IF;
	RETURN v2;
END`

func setupApp(t *testing.T) *App {
	t.Helper()
	st, err := store.New(store.Options{})
	require.NoError(t, err)
	p := plugin.New(st, plugin.Options{Logger: log.Discard()})
	return NewApp(p, log.Discard())
}

func do(t *testing.T, app *App, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func TestAPI_Analyze(t *testing.T) {
	app := setupApp(t)

	rec := do(t, app, http.MethodPost, "/analyze?user=5&db=2", source)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got GraphSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, uint64(1), got.ID)
	assert.Equal(t, uint32(5), got.Key.UserID)
	assert.Equal(t, uint32(2), got.Key.DatabaseID)
	assert.Equal(t, "inline()", got.Function)
	assert.Equal(t, 4, got.Dependences.WR)
}

func TestAPI_Analyze_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"empty body", "/analyze", "", http.StatusBadRequest},
		{"syntax error", "/analyze", "BEGIN x := ; END", http.StatusBadRequest},
		{"unknown parameter", "/analyze", "DECLARE a int;\nBEGIN\na := $4;\nEND", http.StatusUnprocessableEntity},
		{"invalid user", "/analyze?user=-1", source, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(t)
			rec := do(t, app, http.MethodPost, tt.target, tt.body)
			if rec.Code != tt.want {
				t.Errorf("POST %s: want %d, got %d (%s)", tt.target, tt.want, rec.Code, rec.Body.String())
			}
			assert.Equal(t, 0, app.plugin.Store().Len())
		})
	}
}

func TestAPI_Graphs(t *testing.T) {
	app := setupApp(t)
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/analyze?user=1", source).Code)
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/analyze?user=2", source).Code)

	rec := do(t, app, http.MethodGet, "/graphs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []GraphSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	require.Len(t, all, 2)
	assert.Equal(t, uint64(1), all[0].ID)
	assert.Equal(t, uint64(2), all[1].ID)

	rec = do(t, app, http.MethodGet, "/graphs?user=2", "")
	var mine []GraphSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&mine))
	require.Len(t, mine, 1)
	assert.Equal(t, uint64(2), mine[0].ID)

	rec = do(t, app, http.MethodGet, "/graphs?user=0", "")
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = do(t, app, http.MethodGet, "/graphs/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var e store.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	assert.Equal(t, "inline()", e.Function)
	assert.Contains(t, e.PDG, "splines=ortho;")
}

func TestAPI_DOT(t *testing.T) {
	app := setupApp(t)
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/analyze", source).Code)

	rec := do(t, app, http.MethodGet, "/graphs/1/flow", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/vnd.graphviz; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "digraph g {\n0[label=\"entry\"][shape=box];\n"))

	rec = do(t, app, http.MethodGet, "/graphs/1/pdg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "[color=green];")
}

func TestAPI_NotFound(t *testing.T) {
	tests := []struct {
		target string
		want   int
	}{
		{"/graphs/9", http.StatusNotFound},
		{"/graphs/9/flow", http.StatusNotFound},
		{"/graphs/abc/pdg", http.StatusBadRequest},
		{"/graphs?user=x", http.StatusBadRequest},
	}
	app := setupApp(t)
	for _, tt := range tests {
		rec := do(t, app, http.MethodGet, tt.target, "")
		if rec.Code != tt.want {
			t.Errorf("GET %s: want %d, got %d", tt.target, tt.want, rec.Code)
		}
	}
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	app := setupApp(t)
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/analyze", source).Code)

	rec := do(t, app, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, 1.0, health["tracked"])

	rec = do(t, app, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `plsqlgraph_analyses_total{result="ok"} 1`)
}
