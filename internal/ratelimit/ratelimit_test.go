package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/qgenlab/qgen/internal/model"
)

func TestWait_SameKey_EnforcesMinDelay(t *testing.T) {
	limiter := NewLimiter(100 * time.Millisecond)
	ctx := context.Background()

	// First call should return immediately.
	if err := limiter.Wait(ctx, "openai"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "openai"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	elapsed := time.Since(start)

	// Should have waited at least ~100ms (allow 80ms for timer jitter).
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWait_DifferentKeys_NoCrossBlocking(t *testing.T) {
	limiter := NewLimiter(200 * time.Millisecond)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "openai"); err != nil {
		t.Fatalf("openai wait: %v", err)
	}

	// Immediately call for mistral, should NOT block.
	start := time.Now()
	if err := limiter.Wait(ctx, "mistral"); err != nil {
		t.Fatalf("mistral wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected mistral wait to be near-instant, got %v", elapsed)
	}
}

func TestWait_PerKeyDelay(t *testing.T) {
	limiter := NewLimiterFunc(func(key string) time.Duration {
		if key == "slow" {
			return 150 * time.Millisecond
		}
		return 0
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		start := time.Now()
		if err := limiter.Wait(ctx, "fast"); err != nil {
			t.Fatal(err)
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Errorf("zero-delay key blocked for %v", elapsed)
		}
	}

	_ = limiter.Wait(ctx, "slow")
	start := time.Now()
	_ = limiter.Wait(ctx, "slow")
	if elapsed := time.Since(start); elapsed < 120*time.Millisecond {
		t.Errorf("expected >= 120ms wait for slow key, got %v", elapsed)
	}
}

func TestWait_ConcurrentCallersAreSpaced(t *testing.T) {
	limiter := NewLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Wait(ctx, "openai"); err != nil {
				t.Errorf("wait: %v", err)
			}
		}()
	}
	wg.Wait()

	// Four callers need three gaps.
	if elapsed := time.Since(start); elapsed < 130*time.Millisecond {
		t.Errorf("expected >= 130ms for 4 spaced callers, got %v", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(5 * time.Second) // long delay

	// First call to seed the slot.
	if err := limiter.Wait(context.Background(), "openai"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx, "openai"); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

type recordingProvider struct {
	called bool
}

func (p *recordingProvider) Complete(_ context.Context, _ string) (model.Completion, error) {
	p.called = true
	return model.Completion{Text: "{}"}, nil
}

func TestRateLimitedProvider_WaitsBeforeDelegating(t *testing.T) {
	limiter := NewLimiter(100 * time.Millisecond)
	inner := &recordingProvider{}
	provider := NewRateLimitedProvider(inner, limiter, "openai")
	ctx := context.Background()

	if _, err := provider.Complete(ctx, "x"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if !inner.called {
		t.Fatal("inner provider was not called on first call")
	}

	inner.called = false

	start := time.Now()
	if _, err := provider.Complete(ctx, "x"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	elapsed := time.Since(start)

	if !inner.called {
		t.Fatal("inner provider was not called on second call")
	}
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait on second call, got %v", elapsed)
	}
}
