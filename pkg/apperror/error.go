// Package apperror defines the application error type and the shared
// error kinds surfaced by the mapping and benchmarking core.
package apperror

import "fmt"

// Error represents an application error with a stable code.
type Error struct {
	Code     string
	Message  string
	Internal error
	Details  map[string]any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error
func (e *Error) Unwrap() error {
	return e.Internal
}

// Is matches errors by code, so wrapped copies of a sentinel still
// satisfy errors.Is against the sentinel itself.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithInternal returns a copy of the error with an internal error attached
func (e *Error) WithInternal(err error) *Error {
	return &Error{
		Code:     e.Code,
		Message:  e.Message,
		Internal: err,
		Details:  e.Details,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		Code:     e.Code,
		Message:  message,
		Internal: e.Internal,
		Details:  e.Details,
	}
}

// WithDetails returns a copy of the error with details attached
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{
		Code:     e.Code,
		Message:  e.Message,
		Internal: e.Internal,
		Details:  details,
	}
}

// New creates a new application error
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Common error definitions
var (
	// ErrWriteFailed: a bulk-write strategy could not complete its full input.
	ErrWriteFailed = New("write_failed", "Bulk write did not complete")

	// ErrMappingSource: the spatial proximity collaborator failed or returned
	// malformed data; no write is attempted.
	ErrMappingSource = New("mapping_source_unavailable", "Spatial segment source unavailable")

	// ErrBenchAction: a benchmarked action returned an error, aborting the run.
	ErrBenchAction = New("benchmark_action_failed", "Benchmarked action failed")

	// ErrInvalidInput: caller passed an argument the store rejects outright,
	// e.g. an unknown course id.
	ErrInvalidInput = New("invalid_input", "Invalid input")

	// Generic resource errors
	ErrNotFound = New("not_found", "Resource not found")
	ErrDatabase = New("database_error", "Database operation failed")
)

// NewNotFound creates a not found error for a resource type and ID
func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}
