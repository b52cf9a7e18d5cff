package resolver

import (
	"sync"
	"time"
)

// CircuitBreaker tracks consecutive failures for one provider and rejects
// calls while open. The half-open phase is simplified: once the reset timeout
// has elapsed, the next Allow closes the breaker and clears the counter, so a
// single call probes the provider and its outcome sets the new state.
type CircuitBreaker struct {
	mu           sync.Mutex
	failures     int
	open         bool
	openedAt     time.Time
	threshold    int
	resetTimeout time.Duration

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker that trips after threshold
// consecutive failures and re-closes after resetTimeout.
func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// Allow reports whether a call may proceed. When the breaker is open and the
// reset timeout has not elapsed it returns ErrCircuitOpen without any
// network I/O.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	if b.now().Sub(b.openedAt) >= b.resetTimeout {
		b.open = false
		b.failures = 0
		return nil
	}
	return ErrCircuitOpen
}

// RecordSuccess decays the failure counter by one instead of zeroing it, so
// an intermittently flaky provider does not regain full trust from a single
// success.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures > 0 {
		b.failures--
	}
}

// RecordFailure increments the counter and trips the breaker at the
// threshold.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold && !b.open {
		b.open = true
		b.openedAt = b.now()
	}
}

// Snapshot returns the current open state and consecutive-failure count.
func (b *CircuitBreaker) Snapshot() (open bool, failures int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open && b.now().Sub(b.openedAt) >= b.resetTimeout {
		// Reported as closed; the next Allow will formally reset it.
		return false, b.failures
	}
	return b.open, b.failures
}
