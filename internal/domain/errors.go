// Package domain provides the wire types and canonical error taxonomy for the gateway.
package domain

import (
	"fmt"
	"net/http"
	"time"
)

// Kind categorizes a gateway failure.
type Kind string

const (
	// KindValidation indicates malformed or out-of-range caller input.
	KindValidation Kind = "validation_error"

	// KindRateLimited indicates the per-client request window was exceeded.
	KindRateLimited Kind = "rate_limited"

	// KindConnection indicates the backend was unreachable after exhausting retries.
	KindConnection Kind = "connection_error"

	// KindBackend indicates the backend returned an explicit error status.
	KindBackend Kind = "backend_error"

	// KindAuth indicates a missing or invalid API key.
	KindAuth Kind = "authentication_error"

	// KindNotFound indicates a requested resource does not exist.
	KindNotFound Kind = "not_found"

	// KindClient indicates an unexpected local failure.
	KindClient Kind = "client_error"
)

// Error is the classified failure record produced at a failure site and
// rendered by the translator as the external envelope.
type Error struct {
	// Kind is the failure category.
	Kind Kind

	// Message is the human-readable description.
	Message string

	// StatusCode, when non-zero, overrides the kind's default HTTP status.
	// For Backend errors it carries the upstream status verbatim.
	StatusCode int

	// UpstreamBody is the raw upstream response body, if any.
	UpstreamBody string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind == KindBackend && e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// HTTPStatusCode returns the external status for this error.
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindConnection:
		return http.StatusServiceUnavailable
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WithStatus sets a specific HTTP status code.
func (e *Error) WithStatus(code int) *Error {
	e.StatusCode = code
	return e
}

// WithUpstreamBody attaches the raw upstream response body.
func (e *Error) WithUpstreamBody(body string) *Error {
	e.UpstreamBody = body
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// ErrRateLimited creates a rate limit error.
func ErrRateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Message: message}
}

// ErrConnection creates a connection error.
func ErrConnection(message string) *Error {
	return &Error{Kind: KindConnection, Message: message}
}

// ErrBackend creates a backend error carrying the upstream status.
func ErrBackend(status int, message string) *Error {
	return &Error{Kind: KindBackend, Message: message, StatusCode: status}
}

// ErrAuth creates an authentication error.
func ErrAuth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// ErrNotFound creates a not-found error.
func ErrNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// ErrClient creates a client (unexpected local) error.
func ErrClient(message string) *Error {
	return &Error{Kind: KindClient, Message: message}
}

// AsError classifies err as a *Error, wrapping unclassified failures as KindClient.
func AsError(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return ErrClient(err.Error())
}

// Envelope is the uniform error payload returned to callers.
// Every envelope carries the correlation id of the request that produced it.
type Envelope struct {
	Error      string    `json:"error"`
	Detail     string    `json:"detail"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	StatusCode int       `json:"status_code"`
}
