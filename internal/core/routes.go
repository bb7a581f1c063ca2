package core

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// defaultRequestTimeout applies when the config leaves REQUEST_TIMEOUT unset.
const defaultRequestTimeout = 60 * time.Second

var defaultRedactedHeaders = []string{"Authorization", "Cookie"}

// MountRoutes registers the global middleware and every route group.
//
// Middleware order:
//  1. Recoverer       - outermost, catches every panic.
//  2. ContextTimeout  - bounds the whole request, including a job run.
//  3. RequestID       - correlation ID for logs.
//  4. SecurityHeaders
//  5. RequestLogger   - redacts Authorization.
//
// The cron secret guards /api and /v1; /health stays public.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))

	s.router.Get("/health", s.HandleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(CronSecretMiddleware(s.Config.Server.CronSecret))
		r.Route("/api", func(r chi.Router) {
			for _, register := range s.APIRouteRegistrars {
				register(r)
			}
		})
		r.Route("/v1", func(r chi.Router) {
			for _, register := range s.V1RouteRegistrars {
				register(r)
			}
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, r, http.StatusNotFound, map[string]string{"message": "Not Found"})
	})
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}
