package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a single-process fixed-window limiter. It stands in for
// Redis while the circuit to Redis is open.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	now     func() time.Time
	windows map[string]*window
}

type window struct {
	start time.Time
	count int
}

// NewMemoryLimiter allows limit requests per key per Window.
func NewMemoryLimiter(limit int) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := l.now().Truncate(Window)
	l.prune(start)

	w, ok := l.windows[key]
	if !ok {
		w = &window{start: start}
		l.windows[key] = w
	}
	w.count++

	remaining := l.limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   w.count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   start.Add(Window),
	}, nil
}

// prune drops windows older than current. Caller holds mu.
func (l *MemoryLimiter) prune(current time.Time) {
	for key, w := range l.windows {
		if w.start.Before(current) {
			delete(l.windows, key)
		}
	}
}
