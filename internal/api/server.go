// Package api provides the HTTP read surface of the alert engine. It exposes
// per-garden alert and status lookups, a manual sweep trigger, and the
// health and metrics endpoints. All mutation of alert state happens inside
// the sweep engine; the API only reads and triggers.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gardenkeep/internal/config"
	"gardenkeep/internal/types"
)

// GardenStore is the garden lookup surface the API depends on.
type GardenStore interface {
	Get(ctx context.Context, id string) (*types.Garden, error)
}

// AlertStore lists the notifications backing a garden's active alerts.
type AlertStore interface {
	ListAlertsForGarden(ctx context.Context, gardenID string, since time.Time) ([]*types.Notification, error)
}

// SweepTrigger requests an immediate sweep. Returns false when a sweep is
// already in flight.
type SweepTrigger interface {
	TriggerAsync(ctx context.Context) bool
}

// HealthProbe is a subsystem check run by the health endpoint.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// ServerConfig holds the dependencies for creating a Server. Registry and
// Probes must be supplied here rather than assigned afterwards: routes are
// mounted during construction, so a registry attached later would never get
// its /metrics endpoint.
type ServerConfig struct {
	Config  *config.Config
	Gardens GardenStore
	Alerts  AlertStore
	Sweeps  SweepTrigger
	Logger  *slog.Logger
	Clock   types.Clock

	Registry *prometheus.Registry
	Probes   []HealthProbe
}

// Server wires the router, stores, and middleware for the read API.
type Server struct {
	Config   *config.Config
	Gardens  GardenStore
	Alerts   AlertStore
	Sweeps   SweepTrigger
	Logger   *slog.Logger
	Clock    types.Clock
	Registry *prometheus.Registry
	Probes   []HealthProbe

	router *chi.Mux
}

// NewServer constructs the server and mounts its routes. It fails fast on
// missing dependencies so misconfiguration surfaces at startup, not on the
// first request.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if cfg.Gardens == nil || cfg.Alerts == nil {
		return nil, fmt.Errorf("stores must not be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}

	s := &Server{
		Config:   cfg.Config,
		Gardens:  cfg.Gardens,
		Alerts:   cfg.Alerts,
		Sweeps:   cfg.Sweeps,
		Logger:   cfg.Logger,
		Clock:    clock,
		Registry: cfg.Registry,
		Probes:   cfg.Probes,
		router:   chi.NewRouter(),
	}
	s.mountRoutes()
	return s, nil
}

// Handler returns the http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// mountRoutes registers the global middleware chain and all endpoints.
// Middleware order matters: Recoverer outermost, then timeout, request ID,
// and logging.
func (s *Server) mountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.Config.Server.RequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/gardens/{gardenID}/alerts", s.HandleGardenAlerts)
		r.Get("/gardens/{gardenID}/status", s.HandleGardenStatus)
		r.Post("/sweeps", s.HandleTriggerSweep)
	})

	s.router.Get("/health", s.HandleHealth)
	if s.Registry != nil {
		s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	}
}
