package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"loyalty/scanhub/internal/repository"
)

type failingCounterStore struct{ err error }

func (s failingCounterStore) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, s.err
}

func TestRateLimiterAllowsUpToThreshold(t *testing.T) {
	limiter := NewRateLimiter(repository.NewMemoryCounterStore(), time.Minute, 3)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		decision, err := limiter.Allow(ctx, "k")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("attempt %d denied, want allowed", i)
		}
		if want := int64(3 - i); decision.Remaining != want {
			t.Errorf("attempt %d remaining = %d, want %d", i, decision.Remaining, want)
		}
	}

	decision, err := limiter.Allow(ctx, "k")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if decision.Allowed {
		t.Error("attempt 4 allowed, want denied")
	}
	if decision.Remaining != 0 {
		t.Errorf("denied remaining = %d, want 0", decision.Remaining)
	}
	if decision.ResetAt.Before(time.Now()) {
		t.Errorf("ResetAt %v is in the past", decision.ResetAt)
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(repository.NewMemoryCounterStore(), time.Minute, 1)
	ctx := context.Background()

	limiter.Allow(ctx, "a")
	if decision, _ := limiter.Allow(ctx, "a"); decision.Allowed {
		t.Error("second attempt on hot key allowed")
	}
	if decision, _ := limiter.Allow(ctx, "b"); !decision.Allowed {
		t.Error("first attempt on cold key denied")
	}
}

func TestRateLimiterZeroThresholdDisables(t *testing.T) {
	limiter := NewRateLimiter(failingCounterStore{err: errors.New("unreachable")}, time.Minute, 0)

	// With limiting disabled the store must not even be consulted.
	decision, err := limiter.Allow(context.Background(), "k")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !decision.Allowed {
		t.Error("disabled limiter denied an attempt")
	}
}

func TestRateLimiterClassifiesStoreFailure(t *testing.T) {
	limiter := NewRateLimiter(failingCounterStore{err: errors.New("connection refused")}, time.Minute, 5)

	_, err := limiter.Allow(context.Background(), "k")
	if !IsTransient(err) {
		t.Errorf("store failure classified as %v, want transient", err)
	}
}
