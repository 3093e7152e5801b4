package inkwell

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrSessionBusy indicates a new request was submitted while a session
	// for the same slot or workflow is still in flight.
	ErrSessionBusy = errors.New("inkwell: session already in flight")

	// ErrSessionCancelled indicates the session was cancelled by its caller.
	// Cancellation is a distinct terminal outcome, not a failure.
	ErrSessionCancelled = errors.New("inkwell: session cancelled")

	// ErrBackendUnavailable indicates the backend is down or unreachable.
	ErrBackendUnavailable = errors.New("inkwell: backend unavailable")

	// ErrNotFound indicates the requested notebook, document, connection or
	// attempt does not exist.
	ErrNotFound = errors.New("inkwell: not found")

	// ErrInvalidTransition indicates a state machine operation that is not
	// legal from the current phase (e.g. submitting an answer while the
	// attempt is still on the landing screen).
	ErrInvalidTransition = errors.New("inkwell: invalid state transition")
)

// StreamError represents a terminal application-level error delivered on the
// stream itself (an explicit error payload from the server).
type StreamError struct {
	Message string // Error message, surfaced verbatim
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("inkwell: stream error: %s", e.Message)
}

// APIError represents a non-success response from one of the backend's
// request/response endpoints, or from the pre-stream handshake of a
// streaming endpoint.
type APIError struct {
	StatusCode int    // HTTP status code
	Message    string // Server message if parseable, HTTP status text otherwise
	Endpoint   string // Request path, for context
	Err        error  // Wrapped sentinel error, if one applies
}

func (e *APIError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("inkwell: %s (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("inkwell: backend error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsCancelled checks whether an error represents caller-initiated
// cancellation rather than a failure.
func IsCancelled(err error) bool {
	return err != nil && errors.Is(err, ErrSessionCancelled)
}

// IsNotFound checks whether an error represents a missing resource.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsBusy checks whether an error represents a rejected concurrent
// submission.
func IsBusy(err error) bool {
	return err != nil && errors.Is(err, ErrSessionBusy)
}
