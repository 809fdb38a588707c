package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryLimiter is a fixed-window in-process limiter used when no Redis
// instance is configured. Counters are per key and reset when their window
// elapses.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// NewMemoryLimiter creates an in-memory limiter.
func NewMemoryLimiter(limit int, period time.Duration) (*MemoryLimiter, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be greater than 0")
	}
	if period <= 0 {
		return nil, errors.New("period must be greater than 0")
	}
	return &MemoryLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}, nil
}

// Allow checks if a request should be allowed for the given key.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(m.period)}
		m.windows[key] = w
	}

	allowed := w.count < m.limit
	if allowed {
		w.count++
	}

	remaining := m.limit - w.count
	if remaining < 0 {
		remaining = 0
	}

	return &Info{
		Limit:     m.limit,
		Remaining: remaining,
		ResetAt:   w.resetAt,
		Allowed:   allowed,
	}, nil
}

// Reset removes the window for the given key.
func (m *MemoryLimiter) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.windows, key)
	return nil
}
