package ingest

import (
	"errors"
	"fmt"
)

// ErrTransient marks infrastructure failures (network, timeout, rate
// limit, open breaker) that are worth retrying with backoff. Errors
// without this mark are final for the current attempt.
var ErrTransient = errors.New("transient infrastructure failure")

// Transient wraps an error as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsTransient reports whether an error is marked retryable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
