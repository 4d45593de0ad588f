package scclient

import (
	"fmt"
	"time"
)

// TransientError wraps connectivity failures, timeouts and 5xx responses.
// The client retries these internally; one surfacing to a caller means the
// retry budget is exhausted.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient network error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// AuthError is returned on 401/403. It is never retried.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected by remote api (status %d)", e.StatusCode)
}

// RateLimitError is returned when a 429 outlasts the retry budget.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by remote api (retry after %s)", e.RetryAfter)
}
