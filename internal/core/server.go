// Package core provides the HTTP chassis for the reminder trigger and the
// dashboard endpoints. It creates a chi router and enforces cross-cutting
// concerns (panic recovery, request IDs, logging, the cron secret, response
// compression) before requests reach the handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"garasiku/internal/config"
)

// RouteRegistrar mounts a handler group onto a router. Handler packages
// provide these so core does not import them.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the dependencies of the HTTP surface.
type Server struct {
	Config *config.Config
	Logger *slog.Logger

	// HealthProbes are checked by GET /health.
	HealthProbes []HealthProbe

	// APIRouteRegistrars mount under /api (the trigger path schedulers call).
	APIRouteRegistrars []RouteRegistrar
	// V1RouteRegistrars mount under /v1.
	V1RouteRegistrars []RouteRegistrar

	// Closers are released on Shutdown, e.g. the database pool.
	Closers []func()

	router *chi.Mux
}

// NewServer validates its inputs and prepares an empty router. Call
// MountRoutes after registering handlers.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the router wrapped in gzip response compression.
func (s *Server) Handler() http.Handler {
	return gzhttp.GzipHandler(s.router)
}

// Router returns the underlying chi.Mux for tests and route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases resources owned by the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")
	for i := len(s.Closers) - 1; i >= 0; i-- {
		s.Closers[i]()
	}
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
