package client

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of gateway failures.
type ErrorClass string

const (
	// ErrorClassInvalidInput is a request the gateway refuses before any
	// network call.
	ErrorClassInvalidInput ErrorClass = "invalid_input"

	// ErrorClassRateLimited is an upstream 429. Soft: next credential.
	ErrorClassRateLimited ErrorClass = "rate_limited"

	// ErrorClassTimeout is a per-attempt timeout. Soft: next credential.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassUpstreamRejected is any other non-200 status. Hard: no
	// further credentials are tried.
	ErrorClassUpstreamRejected ErrorClass = "upstream_rejected"

	// ErrorClassUpstreamUnreachable is a transport failure. Soft: next
	// credential.
	ErrorClassUpstreamUnreachable ErrorClass = "upstream_unreachable"

	// ErrorClassCredentialsExhausted means every credential soft-failed.
	ErrorClassCredentialsExhausted ErrorClass = "credentials_exhausted"
)

// DefaultExhaustedMessage is reported when every credential failed without
// a recorded soft-failure message.
const DefaultExhaustedMessage = "all API keys failed"

// Common errors returned by the client.
var (
	// ErrNoCredentials is returned by New when no API key is configured.
	ErrNoCredentials = errors.New("at least one API key is required")
)

// FetchError is a classified gateway failure.
type FetchError struct {
	Class ErrorClass

	// StatusCode is the upstream HTTP status, 0 when no response was read.
	StatusCode int

	// Message is the short summary returned to callers as "error".
	Message string

	// Details carries the upstream body for rejected requests.
	Details string

	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("upstream %s", e.Class)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsSoft reports whether the failure moves rotation to the next credential.
func (e *FetchError) IsSoft() bool {
	return isSoft(e.Class)
}

func isSoft(class ErrorClass) bool {
	switch class {
	case ErrorClassRateLimited, ErrorClassTimeout, ErrorClassUpstreamUnreachable:
		return true
	default:
		return false
	}
}

// ClassOf returns the class of err if it is (or wraps) a *FetchError.
func ClassOf(err error) (ErrorClass, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class, true
	}
	return "", false
}
