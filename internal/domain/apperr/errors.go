// Package apperr defines the typed errors raised by the validation core.
// Callers map the Kind to a transport status; the core never retries.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the calling layer
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindNotFound            Kind = "not_found"
	KindInvalidState        Kind = "invalid_state"
	KindConcurrencyConflict Kind = "concurrency_conflict"
	KindPermission          Kind = "permission_denied"
	KindInternal            Kind = "internal_error"
)

// Error is a classified error with an optional cause
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrConcurrencyConflict = &Error{Kind: KindConcurrencyConflict}
	ErrPermission          = &Error{Kind: KindPermission}
)

// Validation reports malformed input
func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing request, threshold, rule or template
func NotFound(resource, id string) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

// InvalidState reports an operation on a request that can no longer accept it
func InvalidState(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// ConcurrencyConflict reports a lost optimistic write
func ConcurrencyConflict(resource, id string) error {
	return &Error{
		Kind:    KindConcurrencyConflict,
		Message: fmt.Sprintf("%s %s was modified concurrently, reload and retry", resource, id),
	}
}

// Permission reports an actor not allowed to perform the operation
func Permission(format string, args ...interface{}) error {
	return &Error{Kind: KindPermission, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsInvalidState reports whether err is an invalid-state error
func IsInvalidState(err error) bool { return KindOf(err) == KindInvalidState }

// IsConcurrencyConflict reports whether err is an optimistic-write collision
func IsConcurrencyConflict(err error) bool { return KindOf(err) == KindConcurrencyConflict }

// IsPermission reports whether err is a permission error
func IsPermission(err error) bool { return KindOf(err) == KindPermission }
