package ingest

import (
	"context"
	"time"
)

// RetryPolicy retries transient failures with exponential backoff:
// BaseDelay, 2×BaseDelay, 4×BaseDelay, … up to MaxAttempts total
// attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetry matches the processing defaults: three attempts, one
// minute base delay.
var DefaultRetry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Minute}

// Do runs fn until it succeeds, returns a non-transient error, or the
// attempt cap is exhausted. The final transient error is returned
// as-is so callers can still identify it.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.BaseDelay

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		if err = fn(); err == nil || !IsTransient(err) {
			return err
		}
	}
	return err
}
