package syncer

import (
	"sync"
	"time"
)

// Backoff stretches the wait between runs after consecutive failures.
// Each failure doubles the wait up to max; a success resets it to base.
type Backoff struct {
	base time.Duration
	max  time.Duration

	mu       sync.Mutex
	failures int
	current  time.Duration
}

// NewBackoff creates a backoff starting at base.
func NewBackoff(base, max time.Duration) *Backoff {
	if max < base {
		max = base
	}
	return &Backoff{base: base, max: max, current: base}
}

// Success records a successful run and returns the next wait.
func (b *Backoff) Success() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.current = b.base
	return b.current
}

// Failure records a failed run and returns the next wait.
func (b *Backoff) Failure() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	next := b.current * 2
	if next > b.max || next <= 0 {
		next = b.max
	}
	b.current = next
	return b.current
}

// Failures returns the number of consecutive failures.
func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
