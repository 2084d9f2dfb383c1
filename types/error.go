package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Pool error codes
const (
	ErrPoolExhausted     ErrorCode = "POOL_EXHAUSTED"
	ErrPoolClosed        ErrorCode = "POOL_CLOSED"
	ErrResourceUnhealthy ErrorCode = "RESOURCE_UNHEALTHY"
)

// Handoff error codes
const (
	ErrUnknownHandoffTarget ErrorCode = "UNKNOWN_HANDOFF_TARGET"
	ErrDuplicateTrigger     ErrorCode = "DUPLICATE_TRIGGER"
)

// Session error codes
const (
	ErrReasoningFailure   ErrorCode = "REASONING_FAILURE"
	ErrTransportClosed    ErrorCode = "TRANSPORT_CLOSED"
	ErrPersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"
	ErrInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrTurnInFlight       ErrorCode = "TURN_IN_FLIGHT"
)

// Configuration error codes
const (
	ErrInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Session   string    `json:"session,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithSession tags the error with the session it occurred in.
func (e *Error) WithSession(sessionID string) *Error {
	e.Session = sessionID
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error, or "" if it does not
// carry one.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
