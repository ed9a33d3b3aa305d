// Package httptransport assembles the public HTTP surface: shared
// middleware, operational endpoints and the registration routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weict/pkg/platform/httputil"
	metadata "weict/pkg/platform/middleware/metadata"
	request "weict/pkg/platform/middleware/request"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouteMounter registers one set of routes on the router.
type RouteMounter interface {
	Register(r chi.Router, middlewares ...func(http.Handler) http.Handler)
}

// RouterConfig collects what NewRouter needs.
type RouterConfig struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
	// TrustedProxies may set X-Forwarded-For; nil trusts only the peer.
	TrustedProxies metadata.TrustedProxies
	// Health is pinged by GET /healthz. Nil reports healthy.
	Health Pinger
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Routes are mounted with RouteMiddleware applied.
	Routes          []RouteMounter
	RouteMiddleware []func(http.Handler) http.Handler
}

// NewRouter wires shared middleware and mounts every route.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata(cfg.TrustedProxies))
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.Recovery(cfg.Logger))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthz", healthHandler(cfg.Health))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, route := range cfg.Routes {
		route.Register(r, cfg.RouteMiddleware...)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found"})
	})
	return r
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
