package service

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy retries a unit of work on transient store errors only.
// Validation, security, and business-logic failures are never retried.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Jitter, when positive, adds a random delay in [0, Jitter) per attempt.
	Jitter time.Duration
}

// DefaultRetryPolicy matches the transaction discipline used for rotation
// and scan recording: three attempts, fixed backoff.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: 100 * time.Millisecond}

// Do runs fn, retrying on transient errors up to the attempt cap. The last
// error is returned when attempts are exhausted. Cancellation of ctx stops
// the loop between attempts.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			delay := p.Delay
			if p.Jitter > 0 {
				delay += time.Duration(rand.Int63n(int64(p.Jitter)))
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}
	}
	return err
}
