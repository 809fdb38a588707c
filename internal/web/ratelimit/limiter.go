// Package ratelimit provides request rate limiting for the HTTP surface.
// A Redis-backed sliding window limiter is used when Redis is configured,
// with an in-memory limiter as the single-process fallback.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	// Allow checks if a request should be allowed for the given key.
	Allow(ctx context.Context, key string) (*Info, error)
}

// Info describes the limiter state after an Allow call.
type Info struct {
	// Limit is the maximum number of requests allowed in the window.
	Limit int
	// Remaining is the number of requests remaining in the current window.
	Remaining int
	// ResetAt is when the rate limit window resets.
	ResetAt time.Time
	// Allowed indicates whether the request should be allowed.
	Allowed bool
}
