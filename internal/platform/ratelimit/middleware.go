package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"weict/internal/platform/metrics"
	dErrors "weict/pkg/domain-errors"
	"weict/pkg/platform/httputil"
	"weict/pkg/requestcontext"
)

// Middleware rejects clients that exceed the limiter's budget. Limiter
// failures let the request through.
type Middleware struct {
	limiter Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewMiddleware wraps limiter for use on registration routes. m may be nil.
func NewMiddleware(limiter Limiter, logger *slog.Logger, m *metrics.Metrics) *Middleware {
	return &Middleware{
		limiter: limiter,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Handler applies the limit keyed by client IP.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)

		result, err := m.limiter.Allow(ctx, ip)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to check rate limit",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)

		if !result.Allowed {
			route := requestcontext.Route(ctx)
			m.metrics.IncRegistration(route, metrics.OutcomeRateLimited)
			m.logger.WarnContext(ctx, "registration rate limited",
				"request_id", requestcontext.RequestID(ctx),
				"route", route,
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(result, m.now())))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many registration attempts, try again later"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func addRateLimitHeaders(w http.ResponseWriter, result Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if result.Degraded {
		w.Header().Set("X-RateLimit-Status", "degraded")
	}
}

func retryAfterSeconds(result Result, now time.Time) int {
	secs := int(result.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}
