package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/qgenlab/qgen/internal/model"
)

// RetryProvider is a decorator that retries transient provider failures with
// exponential backoff and jitter.
type RetryProvider struct {
	inner      model.Provider
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewRetryProvider wraps a Provider with retry logic.
// maxRetries is the number of additional attempts after the first failure.
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
func NewRetryProvider(inner model.Provider, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *RetryProvider {
	return &RetryProvider{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// Complete calls the wrapped provider, retrying on transient errors.
func (p *RetryProvider) Complete(ctx context.Context, prompt string) (model.Completion, error) {
	c, err := p.inner.Complete(ctx, prompt)
	if err == nil {
		return c, nil
	}

	if !isRetryable(err) {
		return model.Completion{}, err
	}

	lastErr := err
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		delay := p.backoffDelay(attempt, lastErr)

		p.logger.Warn("retrying after transient error",
			"attempt", attempt,
			"max_retries", p.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return model.Completion{}, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		c, err = p.inner.Complete(ctx, prompt)
		if err == nil {
			return c, nil
		}

		if !isRetryable(err) {
			return model.Completion{}, err
		}
		lastErr = err
	}

	return model.Completion{}, fmt.Errorf("giving up after %d retries: %w", p.maxRetries, lastErr)
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func (p *RetryProvider) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	delay := p.baseDelay << (attempt - 1)

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation, never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}

	// Non-HTTP errors (network, DNS, etc.) are retryable.
	return true
}
