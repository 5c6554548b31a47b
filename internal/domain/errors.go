package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that an external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrNetwork indicates a transport-level failure talking to a provider.
	ErrNetwork = errors.New("network error")

	// ErrNoValidSources indicates that none of the requested sources is registered.
	ErrNoValidSources = errors.New("no valid sources specified")

	// ErrNoProviders indicates that the registry holds no providers at all.
	ErrNoProviders = errors.New("no providers registered")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns ErrInvalidInput so validation failures map to bad requests.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// Is reports server-side failures as ErrServiceUnavailable.
func (e *ExternalAPIError) Is(target error) bool {
	return target == ErrServiceUnavailable && e.StatusCode >= http.StatusInternalServerError
}

// NetworkError wraps a transport failure (DNS, connection reset, timeout)
// encountered while calling a provider.
type NetworkError struct {
	Source string
	Cause  error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s network error: %v", e.Source, e.Cause)
}

// Unwrap returns the underlying transport error.
func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// Is matches ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// OrchestrationError is the only fatal error surfaced by the orchestrator.
// It carries the query or identifier and the sources that were considered.
type OrchestrationError struct {
	Op        string
	Target    string
	Attempted []string
	Err       error
}

// Error implements the error interface.
func (e *OrchestrationError) Error() string {
	if len(e.Attempted) == 0 {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("%s %q (sources: %s): %v", e.Op, e.Target, strings.Join(e.Attempted, ","), e.Err)
}

// Unwrap returns the underlying sentinel error.
func (e *OrchestrationError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying: network failures, rate
// limiting and server-side errors. A bare context error never is; a
// NetworkError is transient even when its cause is a client-side timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetwork) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServiceUnavailable) {
		return true
	}
	var apiErr *ExternalAPIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewNetworkError creates a new NetworkError.
func NewNetworkError(source string, cause error) *NetworkError {
	return &NetworkError{
		Source: source,
		Cause:  cause,
	}
}

// NewOrchestrationError creates a new OrchestrationError.
func NewOrchestrationError(op, target string, attempted []string, err error) *OrchestrationError {
	return &OrchestrationError{
		Op:        op,
		Target:    target,
		Attempted: attempted,
		Err:       err,
	}
}
