package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"weict/internal/platform/config"
	"weict/internal/platform/email"
	"weict/internal/platform/httpserver"
	"weict/internal/platform/metrics"
	"weict/internal/platform/postgres"
	"weict/internal/platform/ratelimit"
	"weict/internal/platform/redis"
	"weict/internal/registration/handler"
	"weict/internal/registration/service"
	"weict/internal/registration/store"
	httptransport "weict/internal/transport/http"
	"weict/pkg/platform/middleware/metadata"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the registration API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return serve(cmd.Context(), rt)
		},
	}
}

func serve(ctx context.Context, rt *runtimeState) error {
	cfg, log := rt.cfg, rt.logger

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	registrations, closeStore, err := openStore(startCtx, rt)
	if err != nil {
		return err
	}
	defer closeStore()

	trusted, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	sender, err := email.New(cfg.Email, log)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	metrics.RegisterStoredGauge(prometheus.DefaultRegisterer, registrations)
	svc := service.New(registrations, sender,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithFrom(cfg.Email.From),
	)

	var routeMiddleware []func(http.Handler) http.Handler
	if cfg.RateLimitEnabled() {
		rdb, err := redis.New(startCtx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		limiter := ratelimit.NewFallbackLimiter(
			ratelimit.NewRedisLimiter(rdb.Client, cfg.RateLimit.PerMinute),
			ratelimit.NewMemoryLimiter(cfg.RateLimit.PerMinute),
			log,
		)
		routeMiddleware = append(routeMiddleware, ratelimit.NewMiddleware(limiter, log, m).Handler)
		log.Info("rate limiting enabled", "per_minute", cfg.RateLimit.PerMinute)
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:          log,
		RequestTimeout:  cfg.RequestTimeout,
		TrustedProxies:  trusted,
		Health:          registrations,
		Gatherer:        prometheus.DefaultGatherer,
		Routes:          registrationRoutes(cfg.Routes, svc, rt),
		RouteMiddleware: routeMiddleware,
	})
	srv := httpserver.New(cfg.Addr, router, cfg.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting weict registration service",
			"addr", cfg.Addr,
			"email_provider", sender.Provider(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// registrationStore is what serve needs from either store backend.
type registrationStore interface {
	service.Store
	Ping(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// openStore opens Postgres, or an in-memory store when no DATABASE_URL is
// set. The in-memory store loses every row on exit.
func openStore(ctx context.Context, rt *runtimeState) (registrationStore, func(), error) {
	cfg, log := rt.cfg, rt.logger

	var (
		st      registrationStore
		closeFn = func() {}
	)
	if cfg.InMemory() {
		log.Warn("DATABASE_URL not set, registrations are kept in memory only")
		st = store.NewInMemory()
	} else {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		st = store.NewPostgres(db)
		closeFn = func() { _ = db.Close() }
	}

	if cfg.Database.MigrateOnStart {
		if err := st.EnsureSchema(ctx); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	return st, closeFn, nil
}

// registrationRoutes builds a handler per enabled route policy.
func registrationRoutes(cfg config.RoutesConfig, svc *service.Service, rt *runtimeState) []httptransport.RouteMounter {
	var policies []handler.Policy
	if cfg.OpenEnabled {
		policies = append(policies, handler.OpenPolicy(cfg.OpenOrigin))
	}
	if cfg.PagesEnabled {
		policies = append(policies, handler.PagesPolicy(cfg.PagesOrigin))
	}

	routes := make([]httptransport.RouteMounter, 0, len(policies))
	for _, p := range policies {
		routes = append(routes, handler.New(svc, p, rt.logger))
		rt.logger.Info("registration route mounted", "route", p.Name, "path", p.Path)
	}
	return routes
}
