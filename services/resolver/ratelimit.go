package resolver

import (
	"context"
	"sync"
	"time"
)

// BucketConfig sets a provider's token bucket: Capacity tokens per Window.
type BucketConfig struct {
	Capacity int
	Window   time.Duration
}

type tokenBucket struct {
	capacity   int
	window     time.Duration
	tokens     int
	lastRefill time.Time
}

// RateLimiter is per-provider token-bucket admission control. Acquire never
// rejects, it only delays. Refill is computed lazily from elapsed wall-clock
// time at acquire time; there is no background timer.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter with one bucket per configured provider.
func NewRateLimiter(configs map[string]BucketConfig) *RateLimiter {
	l := &RateLimiter{
		buckets: make(map[string]*tokenBucket, len(configs)),
		now:     time.Now,
		sleep:   sleepContext,
	}
	now := time.Now()
	for id, cfg := range configs {
		l.buckets[id] = &tokenBucket{
			capacity:   cfg.Capacity,
			window:     cfg.Window,
			tokens:     cfg.Capacity,
			lastRefill: now,
		}
	}
	return l
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Acquire blocks until a token is available for the provider, then consumes
// one. An unknown provider is admitted immediately. There is no upper bound
// on the total wait; the caller's context is the only way out.
func (l *RateLimiter) Acquire(ctx context.Context, providerID string) error {
	for {
		wait, ok := l.tryAcquire(providerID)
		if ok {
			return nil
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// tryAcquire consumes a token if one is available, otherwise returns how long
// to wait before the bucket refills.
func (l *RateLimiter) tryAcquire(providerID string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[providerID]
	if !ok {
		return 0, true
	}

	now := l.now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed >= b.window {
		// A full window (or more) has passed: reset to capacity rather than
		// accumulating tokens across windows.
		b.tokens = b.capacity
		b.lastRefill = now
		elapsed = 0
	}

	if b.tokens > 0 {
		b.tokens--
		return 0, true
	}
	return b.window - elapsed, false
}

// Tokens reports how many tokens the provider currently has without
// consuming any, accounting for lazy refill.
func (l *RateLimiter) Tokens(providerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[providerID]
	if !ok {
		return 0
	}
	if l.now().Sub(b.lastRefill) >= b.window {
		return b.capacity
	}
	return b.tokens
}
