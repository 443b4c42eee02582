package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context ends during a fetch or backoff.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrResourceUnavailable marks every terminal fetch failure. Callers treat
	// it as "resource unavailable" and degrade instead of failing hard.
	ErrResourceUnavailable = errors.New("resource unavailable")
)

// UpstreamError is a non-2xx answer from the catalog API.
type UpstreamError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient, ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// A request that cannot be built fails the same way every time.
		return false
	}
}

// classify maps an attempt error onto an ErrorClass. Anything that is not an
// UpstreamError happened below HTTP and counts as a network error.
func classify(err error) ErrorClass {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.ErrorClass
	}
	return ErrorClassNetwork
}
