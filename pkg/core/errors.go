package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrNoSources is returned when fusion is requested with an empty collector.
	ErrNoSources = errors.New("no sources to fuse")
	// ErrAlreadyInProgress is returned when a fusion call is already in flight.
	ErrAlreadyInProgress = errors.New("fusion already in progress")
	ErrValidation        = errors.New("validation failed")
	ErrTransport         = errors.New("transport failure")
	// ErrChannelUnavailable marks a missing desktop-interop channel. It is logged, never surfaced.
	ErrChannelUnavailable = errors.New("interop channel unavailable")
	ErrUnknownWorkflow    = errors.New("unknown workflow")
	ErrMonitorClosed      = errors.New("workflow monitor closed")
)

// NoSourcesError and AlreadyInProgressError are the names used by callers that
// classify fusion rejections.
var (
	NoSourcesError         = ErrNoSources
	AlreadyInProgressError = ErrAlreadyInProgress
)

// ValidationError describes a payload that failed boundary validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid payload: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransportError is a non-2xx answer from a backend endpoint.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

func (e *TransportError) Unwrap() error { return ErrTransport }
