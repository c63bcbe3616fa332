package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/KLIEBHAN/pg-plsql-graphs/internal/metrics"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/cfg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/pdg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plugin"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/query"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/store"
)

// readFunction parses the function defined in filePath.
func readFunction(filePath string) (*plsql.Function, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, expected a file: %s", filePath)
	}

	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	fn, err := plsql.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}
	return fn, nil
}

// analyzeFile parses filePath and builds its dependence graph.
func analyzeFile(filePath string) (*plsql.Function, *pdg.PDG, error) {
	fn, err := readFunction(filePath)
	if err != nil {
		return nil, nil, err
	}
	ex, err := query.New(appConfig.Extractor)
	if err != nil {
		return nil, nil, err
	}
	p, err := pdg.Build(fn, &plsql.ExecState{}, ex, cfg.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("analyzing %s: %w", filePath, err)
	}
	return fn, p, nil
}

// openStore creates the result table and loads the persisted entries.
func openStore() (*store.Store, error) {
	st, err := store.New(store.Options{
		MaxTracked:  appConfig.MaxTracked,
		MaxDOTBytes: appConfig.MaxDOTBytes,
	})
	if err != nil {
		return nil, err
	}
	if err := st.LoadFile(appConfig.StorePath); err != nil {
		return nil, fmt.Errorf("loading result table: %w", err)
	}
	return st, nil
}

// newPlugin wires a plugin to st with the configured extractor.
func newPlugin(st *store.Store) (*plugin.Plugin, error) {
	ex, err := query.New(appConfig.Extractor)
	if err != nil {
		return nil, err
	}
	return plugin.New(st, plugin.Options{
		Metrics:   metrics.New(),
		Logger:    logger,
		Extractor: ex,
		SameLevel: appConfig.SameLevel,
	}), nil
}

// statementAt resolves a line argument to the statement starting there.
func statementAt(fn *plsql.Function, arg string) (plsql.Stmt, error) {
	line, err := strconv.Atoi(arg)
	if err != nil || line <= 0 {
		return nil, fmt.Errorf("invalid line number: %s", arg)
	}
	s, ok := fn.StatementAt(line)
	if !ok {
		return nil, fmt.Errorf("no statement starts at line %d", line)
	}
	return s, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
