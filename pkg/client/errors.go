package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled while
	// the client is waiting (backoff, cooldown or key capacity).
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 403 and 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents HTTP 429 or a rate limit reported in the
	// response body.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassForbidden represents HTTP 403, a rejected key.
	ErrorClassForbidden ErrorClass = "forbidden"

	// ErrorClassSuspended represents a response body reporting a suspended
	// account.
	ErrorClassSuspended ErrorClass = "suspended"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassAPI represents any other error reported in the response body,
	// or a body that cannot be decoded.
	ErrorClassAPI ErrorClass = "api"
)

// APIError represents an API-Football error with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api-football %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("api-football %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRateLimitError reports whether err was caused by server-side throttling.
func IsRateLimitError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorClass == ErrorClassRateLimit
}

// ClassOf returns the error class of err, or "" when err is not an APIError.
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}

// shouldRetry determines if an error should be retried with backoff based on
// its classification. Throttling and key failures are handled by Execute.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer:
		// 5xx server errors should be retried
		return true
	case ErrorClassNetwork:
		// Network errors should be retried
		return true
	default:
		return false
	}
}

// classifyStatus categorizes an HTTP error status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status == http.StatusForbidden:
		return ErrorClassForbidden
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// classifyMessages categorizes the errors member of a response body.
func classifyMessages(msgs Messages) ErrorClass {
	text := strings.ToLower(msgs.String())
	switch {
	case strings.Contains(text, "suspended"):
		return ErrorClassSuspended
	case strings.Contains(text, "ratelimit"),
		strings.Contains(text, "rate limit"),
		strings.Contains(text, "too many requests"):
		return ErrorClassRateLimit
	default:
		return ErrorClassAPI
	}
}

// disableReason is the reason recorded when a key is disabled for class.
func disableReason(class ErrorClass) string {
	if class == ErrorClassSuspended {
		return "account suspended"
	}
	return "HTTP 403 Forbidden"
}
