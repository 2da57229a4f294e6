// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects handlers, middleware, and
// routes, and owns the listen/shutdown lifecycle. It receives ready-made
// services through Deps and never constructs executors or model clients
// itself, so tests can build a full router around in-memory fakes.
//
// COMPOSITION ROOT:
//
//	main.go creates:  config → executor, llm client → Interpreter, Finder
//	server.New gets:  Deps{Interpreter, Finder, ...} → handlers → routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/codeask/internal/config"
	"github.com/sakif/codeask/internal/handler"
	"github.com/sakif/codeask/internal/metrics"
	"github.com/sakif/codeask/internal/middleware"
)

// Deps are the services the routes are served by.
type Deps struct {
	Interpreter handler.CodeRunner
	Finder      handler.TimestampFinder
	// ExecutorName is reported by /healthz: "docker", "local" or "" when
	// no backend could be started.
	ExecutorName    string
	ModelConfigured bool
	// Metrics may be nil, which disables /metrics and the in-flight gauge.
	Metrics *metrics.Metrics
}

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config config.ServerConfig
	deps   Deps
	logger *slog.Logger

	addr        string
	metricsPath string
}

// New creates a new Server with its routes mounted.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg.Server,
		deps:   deps,
		logger: logger,
		addr:   cfg.Address(),
	}
	if cfg.Metrics.Enabled && deps.Metrics != nil {
		s.metricsPath = cfg.Metrics.Path
	}

	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST /code-interpreter → run Python, locate failing lines
// POST /ask              → first timestamp of a topic in a video
// GET  /healthz          → liveness + active backends
// GET  /metrics          → Prometheus exposition (when enabled)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. CORS: answers preflight requests before anything else runs
// 4. InFlight: counts concurrently served requests
// 5. Logger: logs each request with timing info
// 6. Recover: catches panics and returns a JSON 500 (inside Logger, so the 500 is logged)
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	if s.deps.Metrics != nil {
		s.router.Use(s.deps.Metrics.InFlight)
	}
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Recover(s.logger))

	interpreterHandler := handler.NewInterpreterHandler(s.deps.Interpreter, s.config.MaxRequestBody, s.logger)
	askHandler := handler.NewAskHandler(s.deps.Finder, s.config.MaxRequestBody, s.logger)
	healthHandler := handler.NewHealthHandler(s.deps.ExecutorName, s.deps.ModelConfigured)

	s.router.Post("/code-interpreter", interpreterHandler.HandleCodeInterpreter)
	s.router.Post("/ask", askHandler.HandleAsk)
	s.router.Get("/healthz", healthHandler.HandleHealth)

	if s.metricsPath != "" {
		s.router.Handle(s.metricsPath, s.deps.Metrics.Handler())
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled, SIGINT
// or SIGTERM arrives, or the listener fails.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (shutdown_timeout)
// An /ask in progress is given the chance to clean up its temp files and
// uploaded media before the process exits.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("executor", s.deps.ExecutorName),
			slog.Bool("model", s.deps.ModelConfigured),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
