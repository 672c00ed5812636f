package llm

import (
	"errors"
	"fmt"
)

// Sentinel errors backends use to classify provider-side failures.
var (
	// ErrRateLimited indicates the provider returned a rate-limit response.
	ErrRateLimited = errors.New("backend rate limited")

	// ErrInvalidResponse indicates the provider answered with a payload the
	// backend could not use.
	ErrInvalidResponse = errors.New("backend returned invalid response")
)

// ErrorKind is the closed set of gateway failure classes surfaced to the
// orchestrator.
type ErrorKind string

// ErrorKind constants.
const (
	KindUnavailable     ErrorKind = "unavailable"
	KindTimeout         ErrorKind = "timeout"
	KindRateLimited     ErrorKind = "rate_limited"
	KindInvalidResponse ErrorKind = "invalid_response"
)

// BackendError is the structured failure value returned by Gateway.Invoke.
// It is always data handed back to the caller, never a panic path.
type BackendError struct {
	Backend string
	Kind    ErrorKind
	Err     error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("backend %s: %s", e.Backend, e.Kind)
	}
	return fmt.Sprintf("backend %s: %s: %v", e.Backend, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is checks.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// AsBackendError unwraps err into a *BackendError when possible.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
