// Package errors provides structured error types for indra.
// Errors carry a Kind used to separate hard configuration failures from
// soft, recoverable failures of optional integrations such as git.
package errors

import (
	"errors"
	"fmt"
)

// Kind represents the category of an error.
type Kind uint8

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown Kind = iota
	// KindConfig indicates a configuration error.
	KindConfig
	// KindGit indicates a git query error.
	KindGit
	// KindValidation indicates a validation error.
	KindValidation
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindIO indicates a file I/O error.
	KindIO
	// KindState indicates a precondition on build state was not met.
	KindState
	// KindInternal indicates an internal error.
	KindInternal
)

// String returns a human-readable string for the error kind.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration"
	case KindGit:
		return "git"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindIO:
		return "io"
	case KindState:
		return "state"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the standard error type for indra.
type Error struct {
	// Kind is the category of the error.
	Kind Kind
	// Op is the operation being performed when the error occurred.
	Op string
	// Message is a human-readable error message.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches this error.
// A target without Op matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Op == t.Op
}

// New creates a new Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, kind Kind, op string, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// GetKind returns the Kind of an error.
// If the error is not an *Error, it returns KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind checks if an error is of a specific kind.
func IsKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// Config creates a configuration error.
func Config(op, message string) *Error {
	return &Error{Kind: KindConfig, Op: op, Message: message}
}

// ConfigWrap wraps an error as a configuration error.
func ConfigWrap(err error, op, message string) *Error {
	return Wrap(err, KindConfig, op, message)
}

// GitWrap wraps an error as a git error. Callers treat git errors as soft
// and degrade to an absent result.
func GitWrap(err error, op, message string) *Error {
	return Wrap(err, KindGit, op, message)
}

// Validation creates a validation error.
func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// NotFound creates a not found error.
func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// IOWrap wraps an error as an I/O error.
func IOWrap(err error, op, message string) *Error {
	return Wrap(err, KindIO, op, message)
}

// State creates a build state error.
func State(op, message string) *Error {
	return &Error{Kind: KindState, Op: op, Message: message}
}
