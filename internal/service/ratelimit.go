package service

import (
	"context"
	"time"

	"loyalty/scanhub/internal/repository"
)

// Decision reports the outcome of one rate-limit check.
type Decision struct {
	Allowed bool
	// Remaining attempts in the current window, zero when denied.
	Remaining int64
	ResetAt   time.Time
}

// RateLimiter maintains per-key attempt counters over a fixed window. The
// counter store is injected: in-process for a single instance, Redis when
// counters must be shared across instances.
type RateLimiter struct {
	store     repository.CounterStore
	window    time.Duration
	threshold int64
}

func NewRateLimiter(store repository.CounterStore, window time.Duration, threshold int) *RateLimiter {
	return &RateLimiter{
		store:     store,
		window:    window,
		threshold: int64(threshold),
	}
}

// Allow atomically counts an attempt for key and decides whether it may
// proceed. A threshold of zero or less disables limiting.
func (l *RateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l.threshold <= 0 {
		return Decision{Allowed: true}, nil
	}

	count, resetAt, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return Decision{}, classifyStoreErr(err)
	}

	remaining := l.threshold - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= l.threshold,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
