package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qgenlab/qgen/internal/model"
)

// Limiter enforces a minimum delay between calls sharing the same key
// (normally the provider name).
type Limiter struct {
	mu       sync.Mutex
	next     map[string]time.Time // key -> earliest start of the next call
	minDelay func(key string) time.Duration
}

// NewLimiter creates a limiter with the same minDelay for every key.
func NewLimiter(minDelay time.Duration) *Limiter {
	return NewLimiterFunc(func(string) time.Duration { return minDelay })
}

// NewLimiterFunc creates a limiter whose delay is looked up per key.
func NewLimiterFunc(minDelay func(key string) time.Duration) *Limiter {
	return &Limiter{
		next:     make(map[string]time.Time),
		minDelay: minDelay,
	}
}

// Wait blocks until the caller's slot for key arrives. Slots are reserved
// under the lock, so concurrent callers are spaced out rather than released
// together. Returns an error if the context is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	l.mu.Lock()
	now := time.Now()
	start := now
	if next, ok := l.next[key]; ok && next.After(now) {
		start = next
	}
	l.next[key] = start.Add(l.minDelay(key))
	l.mu.Unlock()

	wait := start.Sub(now)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", key, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// RateLimitedProvider is a decorator that waits on a shared Limiter before
// delegating to the wrapped Provider.
type RateLimitedProvider struct {
	inner   model.Provider
	limiter *Limiter
	key     string
}

// NewRateLimitedProvider wraps a Provider with rate limiting.
// All providers targeting the same backend should share the same limiter.
func NewRateLimitedProvider(inner model.Provider, limiter *Limiter, key string) *RateLimitedProvider {
	return &RateLimitedProvider{
		inner:   inner,
		limiter: limiter,
		key:     key,
	}
}

// Complete waits for the limiter, then delegates to the wrapped provider.
func (p *RateLimitedProvider) Complete(ctx context.Context, prompt string) (model.Completion, error) {
	if err := p.limiter.Wait(ctx, p.key); err != nil {
		return model.Completion{}, err
	}
	return p.inner.Complete(ctx, prompt)
}
