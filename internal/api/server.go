// Package api provides the HTTP export server for kbexport.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/randalmurphal/kbexport/internal/export"
)

// Server is the kbexport API server.
type Server struct {
	addr   string
	mux    *http.ServeMux
	logger *slog.Logger
	export *ExportServer
}

// Config holds server configuration.
type Config struct {
	Addr        string
	Logger      *slog.Logger
	Collections CollectionLister
	Deps        export.Deps
	Options     export.Options
	// Gatherer backs GET /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
}

// New creates a new API server.
func New(cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		addr:   addr,
		mux:    http.NewServeMux(),
		logger: logger,
		export: NewExportServer(cfg.Collections, cfg.Deps, cfg.Options, logger.With("component", "export-api")),
	}
	s.registerRoutes(cfg.Gatherer)
	return s
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/collections", s.export.HandleListCollections)
	s.mux.HandleFunc("POST /api/export", s.export.HandleExport)

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the server's HTTP handler with CORS and request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.logger, corsHandler(s.mux))
}

// StartContext starts the API server and shuts it down when ctx is done.
func (s *Server) StartContext(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", s.addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, map[string]string{"status": "ok"})
}
