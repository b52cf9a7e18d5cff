package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeClockBreaker(threshold int, reset time.Duration) (*CircuitBreaker, *time.Time) {
	b := NewCircuitBreaker(threshold, reset)
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return current }
	return b, &current
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	b, _ := fakeClockBreaker(5, time.Minute)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		require.NoError(t, b.Allow(), "breaker must stay closed below the threshold")
	}
	b.RecordFailure()

	err := b.Allow()
	assert.ErrorIs(t, err, ErrCircuitOpen)

	open, failures := b.Snapshot()
	assert.True(t, open)
	assert.Equal(t, 5, failures)
}

func TestBreakerResetAllowsSingleProbe(t *testing.T) {
	b, current := fakeClockBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	// Before the timeout the breaker still rejects.
	*current = current.Add(59 * time.Second)
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	// After the timeout the next check closes it and clears the counter.
	*current = current.Add(2 * time.Second)
	require.NoError(t, b.Allow())

	open, failures := b.Snapshot()
	assert.False(t, open)
	assert.Equal(t, 0, failures)
}

func TestBreakerSuccessDecaysCounter(t *testing.T) {
	b, _ := fakeClockBreaker(5, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	_, failures := b.Snapshot()
	assert.Equal(t, 2, failures, "one success decays the counter by one, it does not reset it")

	// Two more failures reach the threshold again despite the success.
	b.RecordFailure()
	b.RecordFailure()
	b.RecordFailure()
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreakerSuccessAtZeroStaysZero(t *testing.T) {
	b, _ := fakeClockBreaker(5, time.Minute)
	b.RecordSuccess()
	_, failures := b.Snapshot()
	assert.Equal(t, 0, failures)
}
