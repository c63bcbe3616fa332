package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/dfg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/pdg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/store"
)

// GraphSummary is one row of GET /graphs.
type GraphSummary struct {
	ID          uint64    `json:"id"`
	Key         store.Key `json:"key"`
	Function    string    `json:"function"`
	Dependences pdg.Stats `json:"dependences"`
	Unsupported int       `json:"unsupported"`
	CreatedAt   time.Time `json:"created_at"`
}

func summarize(e store.Entry) GraphSummary {
	return GraphSummary{
		ID:          e.ID(),
		Key:         e.Key,
		Function:    e.Function,
		Dependences: e.Dependences,
		Unsupported: e.Unsupported,
		CreatedAt:   e.CreatedAt,
	}
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"tracked": a.plugin.Store().Len(),
	})
}

func (a *App) handleList(w http.ResponseWriter, r *http.Request) {
	var entries []store.Entry
	if userStr := r.URL.Query().Get("user"); userStr != "" {
		user, err := strconv.ParseUint(userStr, 10, 32)
		if err != nil {
			http.Error(w, "invalid query parameter user", http.StatusBadRequest)
			return
		}
		entries = a.plugin.Store().ListFor(uint32(user))
	} else {
		entries = a.plugin.Store().List()
	}

	res := make([]GraphSummary, 0, len(entries))
	for _, e := range entries {
		res = append(res, summarize(e))
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *App) entry(w http.ResponseWriter, r *http.Request) (store.Entry, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid graph id", http.StatusBadRequest)
		return store.Entry{}, false
	}
	e, err := a.plugin.Store().Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return store.Entry{}, false
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return store.Entry{}, false
	}
	return e, true
}

func (a *App) handleGet(w http.ResponseWriter, r *http.Request) {
	if e, ok := a.entry(w, r); ok {
		writeJSON(w, http.StatusOK, e)
	}
}

func (a *App) handleFlow(w http.ResponseWriter, r *http.Request) {
	if e, ok := a.entry(w, r); ok {
		writeDOT(w, e.FlowGraph)
	}
}

func (a *App) handlePDG(w http.ResponseWriter, r *http.Request) {
	if e, ok := a.entry(w, r); ok {
		writeDOT(w, e.PDG)
	}
}

// handleAnalyze runs the source in the body as a function call of the
// user and database given by the query parameters.
func (a *App) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	estate := &plsql.ExecState{}
	for param, dst := range map[string]*uint32{"user": &estate.UserID, "db": &estate.DatabaseID} {
		s := r.URL.Query().Get(param)
		if s == "" {
			continue
		}
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			http.Error(w, "invalid query parameter "+param, http.StatusBadRequest)
			return
		}
		*dst = uint32(v)
	}

	src, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSourceBytes))
	if err != nil {
		http.Error(w, "reading body: "+err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if len(src) == 0 {
		http.Error(w, "missing function source", http.StatusBadRequest)
		return
	}

	e, err := a.plugin.CallSource(estate, string(src))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, summarize(e))
}

func statusFor(err error) int {
	var syntax *plsql.SyntaxError
	var extract *dfg.ExtractError
	switch {
	case errors.As(err, &syntax):
		return http.StatusBadRequest
	case errors.As(err, &extract):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrDiagramTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeDOT(w http.ResponseWriter, src string) {
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	_, _ = io.WriteString(w, src)
}
