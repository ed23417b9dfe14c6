// Package server provides the HTTP query API over the extraction cache.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/tameru/internal/config"
	"github.com/hyperjump/tameru/internal/query"
	"github.com/hyperjump/tameru/internal/registry"
)

// Server is the HTTP server for the tameru query API. It only reads the
// cache; extraction happens through the CLI or the watcher.
type Server struct {
	engine   *query.Engine
	registry *registry.Registry
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. The registry may
// be nil, in which case the cache listing endpoint returns 501.
func NewServer(
	engine *query.Engine,
	reg *registry.Registry,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:   engine,
		registry: reg,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/caches", s.handleListCaches)
	r.Get("/api/v1/caches/{key}/summary", s.handleSummary)
	r.Get("/api/v1/caches/{key}/heading", s.handleHeading)
	r.Get("/api/v1/caches/{key}/unit", s.handleUnit)
	r.Post("/api/v1/search", s.handleSearch)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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
