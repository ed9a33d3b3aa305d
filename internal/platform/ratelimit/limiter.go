// Package ratelimit caps registration submissions per client IP with a
// fixed one-minute window kept in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is the length of one counting window.
const Window = time.Minute

const keyPrefix = "weict:ratelimit:"

// Result is the outcome of a single Allow check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// Degraded is set when the result came from the in-process fallback.
	Degraded bool
}

// Limiter decides whether a key may perform another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter counts requests per key in fixed windows. Counters expire with
// their window so Redis never accumulates stale keys.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int
	now    func() time.Time
}

// Option configures a RedisLimiter.
type Option func(*RedisLimiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *RedisLimiter) {
		l.now = now
	}
}

// NewRedisLimiter allows limit requests per key per Window.
func NewRedisLimiter(client redis.Cmdable, limit int, opts ...Option) *RedisLimiter {
	l := &RedisLimiter{
		client: client,
		limit:  limit,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	windowStart := l.now().Truncate(Window)
	resetAt := windowStart.Add(Window)
	redisKey := keyPrefix + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireAt(ctx, redisKey, resetAt.Add(time.Second))
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("increment rate limit counter: %w", err)
	}

	count := int(incr.Val())
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
