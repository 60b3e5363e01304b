package model

import (
	"errors"
	"fmt"
)

// The closed error taxonomy for a comparison run. The boundary maps
// ValidationError to a client error and the other two to a server error.

// AuthError means a marketplace token could not be obtained or refreshed.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamError means a call to the identity provider, catalog or pricing
// endpoint failed: non-2xx status, malformed body, or timeout. Body holds
// a snippet of the upstream response for diagnostics.
type UpstreamError struct {
	Status  int
	Body    string
	Timeout bool
	Err     error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Timeout:
		return "upstream: request timed out"
	case e.Status != 0:
		return fmt.Sprintf("upstream: status %d: %s", e.Status, Snippet(e.Body, 200))
	case e.Err != nil:
		return fmt.Sprintf("upstream: %v", e.Err)
	}
	return "upstream: request failed"
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ValidationError means required input was missing or malformed. It aborts
// a run before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsAuth reports whether err is (or wraps) an AuthError.
func IsAuth(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

// IsUpstream reports whether err is (or wraps) an UpstreamError.
func IsUpstream(err error) bool {
	var e *UpstreamError
	return errors.As(err, &e)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// Snippet truncates s for inclusion in error text and logs.
func Snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
