package resolver

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	retry "github.com/avast/retry-go/v4"
)

// RetryPolicy classifies provider errors and retries transient ones with
// exponential backoff and jitter.
type RetryPolicy struct {
	MaxAttempts uint
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is 3 attempts total (initial + 2 retries), base delay
// 1s, capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// IsRetryable reports whether an error is transient: no response at all
// (network/timeout), or HTTP 429, 502, 503 or any other 5xx. Everything else
// is terminal and propagates immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode == 0 {
			return true
		}
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	// Errors without a status are transport-level failures.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do runs op, retrying transient failures per the policy. The last error is
// returned once attempts are exhausted.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	return retry.Do(
		op,
		retry.Context(ctx),
		retry.Attempts(p.MaxAttempts),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			delay := p.BaseDelay << n
			if delay > p.MaxDelay || delay <= 0 {
				delay = p.MaxDelay
			}
			// Up to 30% jitter to avoid synchronized retry storms.
			jitter := time.Duration(rand.Int63n(int64(delay)/10*3 + 1))
			return delay + jitter
		}),
	)
}
