// Package server provides the HTTP API for Lectio.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/psalterlabs/lectio/internal/config"
	"github.com/psalterlabs/lectio/internal/llm"
	"github.com/psalterlabs/lectio/internal/metrics"
	"github.com/psalterlabs/lectio/internal/storage"
	"github.com/psalterlabs/lectio/internal/study"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Server is the HTTP server for the Lectio API.
type Server struct {
	engine  *study.Engine
	storage storage.Store
	status  llm.StatusChecker
	config  *config.Config
	logger  *zap.Logger
	limiter *ipRateLimiter
	server  *http.Server
}

// NewServer creates a server with the given dependencies. status may be nil
// when no generation backend is configured; the status endpoint then omits
// model availability.
func NewServer(
	engine *study.Engine,
	store storage.Store,
	status llm.StatusChecker,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:  engine,
		storage: store,
		status:  status,
		config:  cfg,
		logger:  logger,
		limiter: newIPRateLimiter(rate.Limit(cfg.Server.RatePerSecond), cfg.Server.RateBurst),
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(3 * time.Minute))
	r.Use(middleware.Compress(5))
	r.Use(countRequests)

	r.Post("/api/v1/sources/{id}/ingest", s.handleIngest)
	r.Post("/api/v1/search", s.handleSearch)

	r.Group(func(r chi.Router) {
		// Generation hits the model backend; rate-limit it per client IP.
		r.Use(s.limitGeneration)
		r.Post("/api/v1/commentary/generate", s.handleGenerate)
		r.Post("/api/v1/ask", s.handleAsk)
	})

	r.Get("/api/v1/commentary/latest", s.handleLatest)
	r.Get("/api/v1/commentary/versions", s.handleVersions)
	r.Post("/api/v1/commentary/feedback", s.handleFeedback)
	r.Get("/api/v1/commentary/conflicts", s.handleConflicts)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Handler builds the router without binding a listener. Used in tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/api/v1/sources/{id}/ingest", s.handleIngest)
	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/commentary/generate", s.handleGenerate)
	r.Post("/api/v1/ask", s.handleAsk)
	r.Get("/api/v1/commentary/latest", s.handleLatest)
	r.Get("/api/v1/commentary/versions", s.handleVersions)
	r.Post("/api/v1/commentary/feedback", s.handleFeedback)
	r.Get("/api/v1/commentary/conflicts", s.handleConflicts)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}
