package ingest

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while a breaker is cooling down. It is
// transient: callers fall into the normal retry path instead of
// hanging on a dead dependency.
var ErrCircuitOpen = errors.New("circuit open")

// Breaker is a consecutive-failure circuit breaker guarding one
// external dependency. After threshold consecutive failures it opens
// and short-circuits calls until the cooldown elapses.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	now      func() time.Time
}

// NewBreaker returns a closed breaker.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Call runs fn through the breaker. While open it fails fast with
// ErrCircuitOpen wrapped as transient. Any fn error counts toward the
// threshold; success closes the breaker again.
func (b *Breaker) Call(fn func() error) error {
	b.mu.Lock()
	if b.failures >= b.threshold {
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return Transient(ErrCircuitOpen)
		}
		// Half-open: let one call through.
		b.failures = b.threshold - 1
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.failures >= b.threshold {
			b.openedAt = b.now()
		}
		return err
	}
	b.failures = 0
	return nil
}

// Open reports whether the breaker is currently short-circuiting.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold && b.now().Sub(b.openedAt) < b.cooldown
}
