// Package errors provides the structured error type shared across memctx
// components. Every error a component returns across its own package
// boundary is a *Error carrying one of the seven Kinds below, so callers
// (the MCP tool layer in particular) can map failures to a protocol error
// code without string-matching messages.
package errors

import (
	"fmt"

	stderrors "errors"
)

// Kind classifies an error for handling and external mapping. Kind is
// orthogonal to the message: two errors with different messages can share
// a Kind, and callers should switch on Kind, never on Message.
type Kind string

const (
	// Validation means the caller supplied bad input; retrying with the
	// same arguments will never succeed.
	Validation Kind = "validation"
	// NotFound means the referenced memory, rule, entity, or project does
	// not exist.
	NotFound Kind = "not_found"
	// Conflict means the operation collides with existing state (e.g. a
	// duplicate pin, a concurrent archive of an already-archived memory).
	Conflict Kind = "conflict"
	// DependencyUnavailable means an external collaborator (embedding
	// provider, filesystem, MCP transport) could not be reached.
	DependencyUnavailable Kind = "dependency_unavailable"
	// Timeout means an operation exceeded its deadline.
	Timeout Kind = "timeout"
	// Transient means the operation failed in a way that may succeed if
	// retried unchanged (lock contention, a busy database).
	Transient Kind = "transient"
	// Fatal means the process is in a state it cannot recover from
	// (corrupt index, unreadable schema) and should not keep serving.
	Fatal Kind = "fatal"
)

// Error is the structured error type returned across memctx package
// boundaries.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "memory.Recall".
	Op string
	// Message is a human-readable description, safe to surface to a tool
	// caller.
	Message string
	// Suggestion is an optional actionable hint for the caller.
	Suggestion string
	// Details carries structured context (entity IDs, file paths).
	Details map[string]string
	// Cause is the wrapped underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is to match on Kind alone when the target is a bare
// *Error with only Kind set.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return true
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion attaches an actionable suggestion and returns the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// New builds an Error of the given Kind for operation op.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an Error of the given Kind wrapping an underlying cause. If
// err is nil, Wrap returns a nil *Error; returned through an `error`
// interface, that nil pointer compares non-nil.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: err.Error(), Cause: err}
}

// NotFoundf builds a NotFound error with a formatted message.
func NotFoundf(op, format string, args ...any) *Error {
	return New(NotFound, op, fmt.Sprintf(format, args...))
}

// Validationf builds a Validation error with a formatted message.
func Validationf(op, format string, args ...any) *Error {
	return New(Validation, op, fmt.Sprintf(format, args...))
}

// GetKind extracts the Kind from err, or "" if err is not a *Error.
func GetKind(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether retrying the same call without modification
// could plausibly succeed (Transient, Timeout, DependencyUnavailable).
func IsRetryable(err error) bool {
	switch GetKind(err) {
	case Transient, Timeout, DependencyUnavailable:
		return true
	default:
		return false
	}
}

// IsFatal reports whether err is a Fatal-kind error.
func IsFatal(err error) bool {
	return GetKind(err) == Fatal
}
