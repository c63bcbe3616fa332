// Package metrics exposes Prometheus collectors for the analysis
// pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/pdg"
)

const namespace = "plsqlgraph"

// Analysis results.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultTooLarge = "too_large"
)

// Metrics holds the collectors, registered on their own registry.
type Metrics struct {
	reg *prometheus.Registry

	analyses    *prometheus.CounterVec
	unsupported *prometheus.CounterVec
	dependences *prometheus.CounterVec
	duration    prometheus.Histogram
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analyzed function calls by result",
		}, []string{"result"}),
		unsupported: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unsupported_statements_total",
			Help:      "Statements left out of the graph by kind",
		}, []string{"kind"}),
		dependences: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependence_edges_total",
			Help:      "Derived dependence edges by kind",
		}, []string{"kind"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time to analyze and render one function call",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveAnalysis records one finished analysis.
func (m *Metrics) ObserveAnalysis(result string, elapsed time.Duration) {
	m.analyses.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// ObserveUnsupported counts a statement skipped by the CFG builder.
func (m *Metrics) ObserveUnsupported(kind string) {
	m.unsupported.WithLabelValues(kind).Inc()
}

// ObserveDependences adds the edge counts of one analysis.
func (m *Metrics) ObserveDependences(s pdg.Stats) {
	m.dependences.WithLabelValues("wr").Add(float64(s.WR))
	m.dependences.WithLabelValues("rw").Add(float64(s.RW))
	m.dependences.WithLabelValues("ww").Add(float64(s.WW))
}
