package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weict/internal/platform/metrics"
	metadata "weict/pkg/platform/middleware/metadata"
	"weict/pkg/requestcontext"
	httptestutil "weict/pkg/testutil"
)

type stubLimiter struct {
	result Result
	err    error
	keys   []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (Result, error) {
	s.keys = append(s.keys, key)
	return s.result, s.err
}

func newTestMiddleware(limiter Limiter, m *metrics.Metrics) *Middleware {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	mw := NewMiddleware(limiter, logger, m)
	mw.now = func() time.Time { return time.Unix(1000, 0) }
	return mw
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func postFrom(t *testing.T, ip string) *http.Request {
	req := httptestutil.NewRequest(t, http.MethodPost, "/api/register")
	ctx := requestcontext.WithClientMetadata(req.Context(), ip, "test-agent")
	ctx = requestcontext.WithRoute(ctx, "open")
	return req.WithContext(ctx)
}

func TestMiddleware_Allowed(t *testing.T) {
	limiter := &stubLimiter{result: Result{Allowed: true, Limit: 5, Remaining: 4, ResetAt: time.Unix(1060, 0)}}
	mw := newTestMiddleware(limiter, nil)

	rr := httptestutil.DoRequest(mw.Handler(okHandler()), postFrom(t, "203.0.113.7"))

	httptestutil.AssertStatusOK(t, rr)
	assert.Equal(t, []string{"203.0.113.7"}, limiter.keys)
	assert.Equal(t, "5", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rr.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1060", rr.Header().Get("X-RateLimit-Reset"))
}

func TestMiddleware_Exceeded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	limiter := &stubLimiter{result: Result{Allowed: false, Limit: 5, Remaining: 0, ResetAt: time.Unix(1030, 0)}}
	mw := newTestMiddleware(limiter, m)

	rr := httptestutil.DoRequest(mw.Handler(okHandler()), postFrom(t, "203.0.113.7"))

	httptestutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "rate_limited")
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "30", rr.Header().Get("Retry-After"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues("open", metrics.OutcomeRateLimited)))
}

func TestMiddleware_LimiterErrorFailsOpen(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis: connection refused")}
	mw := newTestMiddleware(limiter, nil)

	rr := httptestutil.DoRequest(mw.Handler(okHandler()), postFrom(t, "203.0.113.7"))

	httptestutil.AssertStatusOK(t, rr)
	assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
}

func TestMiddleware_OnlyCountsPost(t *testing.T) {
	limiter := &stubLimiter{result: Result{Allowed: false}}
	mw := newTestMiddleware(limiter, nil)

	for _, method := range []string{http.MethodOptions, http.MethodGet} {
		rr := httptestutil.DoRequest(mw.Handler(okHandler()), httptestutil.NewRequest(t, method, "/api/register"))
		httptestutil.AssertStatusOK(t, rr)
	}
	require.Empty(t, limiter.keys)
}

func TestRetryAfterSeconds(t *testing.T) {
	now := time.Unix(1000, 0)
	assert.Equal(t, 1, retryAfterSeconds(Result{ResetAt: now}, now))
	assert.Equal(t, 1, retryAfterSeconds(Result{ResetAt: now.Add(-time.Second)}, now))
	assert.Equal(t, 59, retryAfterSeconds(Result{ResetAt: now.Add(59 * time.Second)}, now))
}

func TestMiddleware_DegradedHeader(t *testing.T) {
	limiter := &stubLimiter{result: Result{Allowed: true, Limit: 5, Remaining: 4, Degraded: true}}
	mw := newTestMiddleware(limiter, nil)

	rr := httptestutil.DoRequest(mw.Handler(okHandler()), postFrom(t, "203.0.113.7"))

	httptestutil.AssertStatusOK(t, rr)
	assert.Equal(t, "degraded", rr.Header().Get("X-RateLimit-Status"))
}

func TestMiddleware_ForwardedForDoesNotEvadeLimit(t *testing.T) {
	limiter := NewMemoryLimiter(2)
	limiter.now = func() time.Time { return time.Unix(1000, 0) }
	limited := metadata.ClientMetadata(nil)(newTestMiddleware(limiter, nil).Handler(okHandler()))

	var accepted int
	for i := 0; i < 20; i++ {
		req := httptestutil.NewRequest(t, http.MethodPost, "/api/register")
		req.RemoteAddr = "203.0.113.7:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))

		rr := httptestutil.DoRequest(limited, req)
		if rr.Code == http.StatusOK {
			accepted++
		}
	}

	assert.Equal(t, 2, accepted)
}
