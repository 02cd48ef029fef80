package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"marketresearch/internal/api/health"
	"marketresearch/internal/metrics"
	"marketresearch/pkg/errors"
	"marketresearch/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewRouter mounts the UI, the JSON API, health probes and metrics.
func NewRouter(handlers *Handlers, healthHandler *health.Handler, log *logger.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimw.Recoverer)

	// Health check endpoints (Kubernetes probes)
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/ready", healthHandler.HandleReadiness)
	r.Get("/live", healthHandler.HandleLiveness)

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler())

	// Form UI
	r.Get("/", handlers.HandleIndex)
	r.Post("/analyze", handlers.HandleAnalyzeForm)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analysis", handlers.HandleAnalyzeAPI)
		r.Get("/sources", handlers.HandleSourcesAPI)
	})

	return r
}

// NewServer creates the HTTP server around handler
func NewServer(cfg ServerConfig, handler http.Handler, log *logger.Logger) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = ":8501"
	}

	log.Infof("HTTP server configured on %s", addr)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		log:        log,
	}
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
// Waits for in-flight analyses to complete within timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("✓ HTTP server stopped")
	return nil
}
