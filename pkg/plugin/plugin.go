// Package plugin runs the analysis when a function is called and records
// the rendered graphs in the result store.
package plugin

import (
	"errors"
	"fmt"
	"time"

	"github.com/KLIEBHAN/pg-plsql-graphs/internal/log"
	"github.com/KLIEBHAN/pg-plsql-graphs/internal/metrics"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/cfg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/dot"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/pdg"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plsql"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/query"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/store"
)

// Options configures a Plugin. Nil fields select defaults.
type Options struct {
	Metrics   *metrics.Metrics
	Logger    log.Logger
	Extractor query.Extractor
	// SameLevel puts all nodes of the dependence graph on one rank.
	SameLevel bool
}

// Plugin holds the collaborators shared by all analyzed calls.
type Plugin struct {
	store     *store.Store
	metrics   *metrics.Metrics
	logger    log.Logger
	extractor query.Extractor
	sameLevel bool
	now       func() time.Time
}

// New creates a plugin writing into st.
func New(st *store.Store, opts Options) *Plugin {
	p := &Plugin{
		store:     st,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		extractor: opts.Extractor,
		sameLevel: opts.SameLevel,
		now:       time.Now,
	}
	if p.metrics == nil {
		p.metrics = metrics.New()
	}
	if p.logger == nil {
		p.logger = log.Default()
	}
	if p.extractor == nil {
		p.extractor = query.Lexical{}
	}
	return p
}

// Store returns the result store.
func (p *Plugin) Store() *store.Store { return p.store }

// Metrics returns the collectors the plugin records into.
func (p *Plugin) Metrics() *metrics.Metrics { return p.metrics }

// FuncBegin is called before fn executes. It builds the dependence
// graph, renders both diagrams and stores them under a fresh id. On
// error nothing is stored.
func (p *Plugin) FuncBegin(estate *plsql.ExecState, fn *plsql.Function) (store.Entry, error) {
	start := p.now()
	entry, err := p.analyze(estate, fn)
	elapsed := p.now().Sub(start)

	switch {
	case errors.Is(err, store.ErrDiagramTooLarge):
		p.metrics.ObserveAnalysis(metrics.ResultTooLarge, elapsed)
		p.logger.Warn("graph not stored", "function", fn.Signature, "error", err)
	case err != nil:
		p.metrics.ObserveAnalysis(metrics.ResultError, elapsed)
		p.logger.Error("analysis failed", "function", fn.Signature, "error", err)
	default:
		p.metrics.ObserveAnalysis(metrics.ResultOK, elapsed)
		p.logger.Debug("graph stored", "function", fn.Signature, "id", entry.ID(), "elapsed", elapsed)
	}
	return entry, err
}

// FuncEnd is called after fn returns.
func (p *Plugin) FuncEnd(*plsql.ExecState, *plsql.Function) {}

// Call runs fn through both hooks the way the host does.
func (p *Plugin) Call(estate *plsql.ExecState, fn *plsql.Function) (store.Entry, error) {
	entry, err := p.FuncBegin(estate, fn)
	p.FuncEnd(estate, fn)
	return entry, err
}

// CallSource parses src and calls the resulting function.
func (p *Plugin) CallSource(estate *plsql.ExecState, src string) (store.Entry, error) {
	fn, err := plsql.Parse(src)
	if err != nil {
		return store.Entry{}, fmt.Errorf("parsing function: %w", err)
	}
	return p.Call(estate, fn)
}

func (p *Plugin) analyze(estate *plsql.ExecState, fn *plsql.Function) (store.Entry, error) {
	if estate == nil {
		estate = &plsql.ExecState{}
	}

	res, err := pdg.Build(fn, estate, p.extractor,
		cfg.WithLogger(p.logger),
		cfg.WithUnsupportedHook(func(s plsql.Stmt) {
			kind := string(s.Kind())
			if o, ok := s.(*plsql.OtherStmt); ok {
				kind = o.Keyword
			}
			p.metrics.ObserveUnsupported(kind)
		}),
	)
	if err != nil {
		return store.Entry{}, fmt.Errorf("analyzing %s: %w", fn.Signature, err)
	}
	p.metrics.ObserveDependences(res.Stats)

	return p.store.Put(store.Entry{
		Key: store.Key{
			UserID:      estate.UserID,
			DatabaseID:  estate.DatabaseID,
			FunctionOID: fn.OID,
		},
		Function:    fn.Signature,
		FlowGraph:   dot.Flow(res.Graph()),
		PDG:         dot.Dependence(res.Graph(), p.sameLevel),
		Dependences: res.Stats,
		Unsupported: len(res.CFG.Unsupported),
	})
}
