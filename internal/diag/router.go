package diag

import (
	"log/slog"
	"net/http"

	"github.com/classicwire/classicd/internal/config"
)

// Router wires the diagnostics endpoints: health/readiness/stats and,
// when enabled, the live trace websocket.
type Router struct {
	cfg    *config.DiagConfig
	health *HealthHandler
	hub    *Hub
	logger *slog.Logger
}

func NewRouter(cfg *config.DiagConfig, source StatsSource, logger *slog.Logger) *Router {
	r := &Router{
		cfg:    cfg,
		health: NewHealthHandler(source),
		logger: logger,
	}
	if cfg.Trace.Enabled {
		r.hub = NewHub(logger, cfg.Trace.BufferSize)
	}
	return r
}

// Hub exposes the trace hub so the caller can hand it to the dispatcher
// as a dispatch.WorldHook. Nil when tracing is disabled.
func (r *Router) Hub() *Hub { return r.hub }

func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", r.health)
	mux.Handle("/health", r.health)
	mux.Handle("/readyz", r.health)
	mux.Handle("/ready", r.health)
	mux.Handle("/stats", r.health)
	if r.hub != nil {
		mux.Handle(r.cfg.Trace.Path, r.hub)
	}
	return CoreMiddleware(r.logger)(mux)
}
