// Package server serves the result table over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/KLIEBHAN/pg-plsql-graphs/internal/log"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/plugin"
)

// maxSourceBytes bounds the request body of POST /analyze.
const maxSourceBytes = 1 << 20

// App holds server dependencies.
type App struct {
	plugin *plugin.Plugin
	logger log.Logger
}

// NewApp creates an App analyzing through p.
func NewApp(p *plugin.Plugin, logger log.Logger) *App {
	if logger == nil {
		logger = log.Default()
	}
	return &App{plugin: p, logger: logger}
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", a.plugin.Metrics().Handler())
	r.Post("/analyze", a.handleAnalyze)

	r.Route("/graphs", func(r chi.Router) {
		r.Get("/", a.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.handleGet)
			r.Get("/flow", a.handleFlow)
			r.Get("/pdg", a.handlePDG)
		})
	})

	return r
}

func (a *App) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "elapsed", time.Since(start))
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (a *App) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
