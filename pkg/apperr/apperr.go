// Package apperr defines the error taxonomy shared by the debate core and its HTTP surface.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and for HTTP status mapping.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindConflict           Kind = "CONFLICT"
	KindValidation         Kind = "VALIDATION"
	KindRateLimited        Kind = "RATE_LIMITED"
	KindScoringUnavailable Kind = "SCORING_UNAVAILABLE"
	KindInternal           Kind = "INTERNAL"
)

// Error is a classified error. Reason is safe to show to clients.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error with the same kind and reason, so package sentinels
// keep working after Wrap attaches a cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

// New returns an unwrapped error of the given kind.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap attaches a cause to a sentinel, keeping its kind and reason.
func Wrap(sentinel *Error, err error) *Error {
	return &Error{Kind: sentinel.Kind, Reason: sentinel.Reason, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the client-safe reason of err, or a generic message for unclassified errors.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return "internal error"
}
