package repository

import (
	"context"
	"time"
)

// CounterStore abstracts the fixed-window attempt counters behind the rate
// limiter. Implementations: Redis (shared across instances) or in-memory
// (single-instance deployments). The in-memory store does not serialize
// counts across instances; multi-instance deployments must configure the
// Redis backend.
type CounterStore interface {
	// Incr atomically increments the counter for key within the current
	// fixed window and returns the new count plus the window's reset time.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}
