package retry

import "errors"

var (
	// ErrMaxAttempts is returned when every attempt failed. It wraps the
	// last underlying error.
	ErrMaxAttempts = errors.New("retry: max attempts reached")

	// ErrNonRetryable is returned when the error's kind is excluded from
	// the policy's retryable set. It wraps the underlying error.
	ErrNonRetryable = errors.New("retry: error kind is not retryable")
)
