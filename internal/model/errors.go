package model

import (
	"fmt"
	"time"
)

// HTTPError wraps a provider HTTP status code so retry logic can inspect it.
type HTTPError struct {
	Provider   string
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Provider, e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the status is worth another attempt (429 or 5xx).
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
