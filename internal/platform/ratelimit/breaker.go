package ratelimit

import (
	"context"
	"log/slog"
	"sync"
)

// Breaker thresholds for FallbackLimiter.
const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 3
)

// circuitBreaker tracks consecutive primary limiter errors. It opens after
// failureThreshold errors and closes after successThreshold consecutive
// successes while open.
type circuitBreaker struct {
	mu               sync.Mutex
	open             bool
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
}

// recordFailure reports whether the circuit is open and whether this failure
// opened it.
func (c *circuitBreaker) recordFailure() (open, opened bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount++
	c.successCount = 0
	if c.open {
		return true, false
	}
	if c.failureCount >= c.failureThreshold {
		c.open = true
		return true, true
	}
	return false, false
}

// recordSuccess reports whether the circuit is closed and whether this
// success closed it.
func (c *circuitBreaker) recordSuccess() (closed, reclosed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		c.failureCount = 0
		return true, false
	}
	c.successCount++
	if c.successCount >= c.successThreshold {
		c.open = false
		c.failureCount = 0
		c.successCount = 0
		return true, true
	}
	return false, false
}

// FallbackLimiter consults the primary limiter and switches to the fallback
// while the primary keeps failing. Results served by the fallback are marked
// Degraded.
type FallbackLimiter struct {
	primary  Limiter
	fallback Limiter
	breaker  *circuitBreaker
	logger   *slog.Logger
}

// NewFallbackLimiter wraps primary with an in-process fallback.
func NewFallbackLimiter(primary, fallback Limiter, logger *slog.Logger) *FallbackLimiter {
	return &FallbackLimiter{
		primary:  primary,
		fallback: fallback,
		breaker: &circuitBreaker{
			failureThreshold: defaultFailureThreshold,
			successThreshold: defaultSuccessThreshold,
		},
		logger: logger,
	}
}

func (l *FallbackLimiter) Allow(ctx context.Context, key string) (Result, error) {
	res, err := l.primary.Allow(ctx, key)
	if err != nil {
		open, opened := l.breaker.recordFailure()
		if opened {
			l.logger.WarnContext(ctx, "rate limit circuit opened, using in-memory fallback", "error", err)
		}
		if !open {
			return Result{}, err
		}
		return l.fromFallback(ctx, key)
	}

	closed, reclosed := l.breaker.recordSuccess()
	if reclosed {
		l.logger.InfoContext(ctx, "rate limit circuit closed")
	}
	if !closed {
		return l.fromFallback(ctx, key)
	}
	return res, nil
}

func (l *FallbackLimiter) fromFallback(ctx context.Context, key string) (Result, error) {
	res, err := l.fallback.Allow(ctx, key)
	res.Degraded = true
	return res, err
}
