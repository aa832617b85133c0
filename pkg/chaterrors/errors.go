// Package chaterrors defines the error taxonomy of spec §7: the semantic
// error kinds the registry, resolver, and fan-out engine can produce, along
// with helpers to classify and unwrap them. Names are semantic, not type
// names, following the teacher's pkg/provider/errors convention of sentinel
// errors for simple cases and small structs for errors carrying context.
package chaterrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy entries that carry no extra structured
// context beyond their message.
var (
	// ErrRegistryUnavailable: all load attempts and the static fallback
	// failed. Surfaced to callers as a terminal state with a retry
	// affordance; does not clear a previously loaded registry.
	ErrRegistryUnavailable = errors.New("registry unavailable")

	// ErrModelNotFound: a request referenced an identifier absent from the
	// registry.
	ErrModelNotFound = errors.New("model not found")

	// ErrEndpointNotConfigured: a self-hosted model is known to the
	// registry but has no configured base URL. Kept distinct from
	// ErrModelNotFound per the Open Question decision in SPEC_FULL.md §10.
	ErrEndpointNotConfigured = errors.New("endpoint not configured for model")

	// ErrAuthRequired: a gateway-class model was requested in a
	// non-singleton context without a gateway token configured.
	ErrAuthRequired = errors.New("gateway token required")

	// ErrNoBody: the upstream response had no readable stream body.
	ErrNoBody = errors.New("no response body")

	// ErrCancelled is not a true error condition per spec §7 ("not an
	// error; no event emitted, worker exits silently") but is exposed so
	// callers of lower-level helpers can distinguish cancellation from
	// genuine failure with errors.Is.
	ErrCancelled = errors.New("cancelled")
)

// UpstreamHTTPError represents a non-2xx response from an upstream chat
// request. It carries the status code and a bounded body snippet.
type UpstreamHTTPError struct {
	ModelID    string
	StatusCode int
	Body       string
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("upstream http error for %s: status %d: %s", e.ModelID, e.StatusCode, e.Body)
}

// NewUpstreamHTTPError constructs an UpstreamHTTPError.
func NewUpstreamHTTPError(modelID string, statusCode int, body string) *UpstreamHTTPError {
	return &UpstreamHTTPError{ModelID: modelID, StatusCode: statusCode, Body: body}
}

// IsUpstreamHTTPError reports whether err is (or wraps) an UpstreamHTTPError.
func IsUpstreamHTTPError(err error) bool {
	var e *UpstreamHTTPError
	return errors.As(err, &e)
}

// UpstreamTransportError represents a connection failure, an unexpectedly
// closed body, or a terminal decode failure mid-stream.
type UpstreamTransportError struct {
	ModelID string
	Cause   error
}

func (e *UpstreamTransportError) Error() string {
	return fmt.Sprintf("upstream transport error for %s: %v", e.ModelID, e.Cause)
}

func (e *UpstreamTransportError) Unwrap() error { return e.Cause }

// NewUpstreamTransportError constructs an UpstreamTransportError.
func NewUpstreamTransportError(modelID string, cause error) *UpstreamTransportError {
	return &UpstreamTransportError{ModelID: modelID, Cause: cause}
}

// IsUpstreamTransportError reports whether err is (or wraps) an
// UpstreamTransportError.
func IsUpstreamTransportError(err error) bool {
	var e *UpstreamTransportError
	return errors.As(err, &e)
}
