package fetch

import (
	"fmt"
	"time"
)

// StatusError is a non-2xx response from a dataset source.
type StatusError struct {
	URL        string
	StatusCode int
	Message    string
	RequestID  string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("download %s: status=%d", e.URL, e.StatusCode)
	if e.RequestID != "" {
		msg += " request_id=" + e.RequestID
	}
	if e.Message != "" {
		msg += " message=" + e.Message
	}
	return msg
}

// AuthError indicates rejected credentials (401/403).
type AuthError struct{ *StatusError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (check kaggle_username/kaggle_key): %s", e.StatusError.Error())
}

// RateLimitError indicates a 429 that outlived the retry budget.
type RateLimitError struct {
	*StatusError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.StatusError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.StatusError.Error())
}

// NotFoundError indicates the dataset does not exist at the source.
type NotFoundError struct{ *StatusError }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dataset not found: %s", e.StatusError.Error())
}

// Unwrap exposes the underlying StatusError to errors.As.
func (e *AuthError) Unwrap() error      { return e.StatusError }
func (e *RateLimitError) Unwrap() error { return e.StatusError }
func (e *NotFoundError) Unwrap() error  { return e.StatusError }
