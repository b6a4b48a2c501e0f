// Package server exposes the companion gateway over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lumo-games/companion-gateway/internal/dialogue"
	"github.com/lumo-games/companion-gateway/internal/emotion"
)

// HealthChecker reports whether a downstream dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) bool
}

// Server routes companion requests to the emotion and dialogue services.
type Server struct {
	Router *chi.Mux
	Port   int

	emotion  *emotion.Service
	dialogue *dialogue.Service
	memory   HealthChecker // nil when no memory service is configured
	logger   *slog.Logger

	httpServer *http.Server
}

// New builds the router with the full middleware chain and all routes
// registered. memory may be nil.
func New(port int, timeout time.Duration, logger *slog.Logger, es *emotion.Service, ds *dialogue.Service, memory HealthChecker) *Server {
	s := &Server{
		Port:     port,
		emotion:  es,
		dialogue: ds,
		memory:   memory,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logging(logger))
	r.Use(Timeout(timeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "companion-gateway")
	})

	r.Post("/v1/emotion", s.handleEmotion)
	r.Post("/v1/dialogue", s.handleDialogue)
	r.Get("/v1/status", s.handleStatus)
	r.Post("/v1/cache/clear", s.handleCacheClear)
	r.Get("/healthz", s.handleHealthz)

	s.Router = r
	return s
}

// Start blocks serving HTTP until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.Port),
		Handler: s.Router,
	}
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
