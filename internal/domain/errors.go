package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can decide whether to retry.
type ErrorKind string

const (
	// KindValidation covers malformed input. Never retried.
	KindValidation ErrorKind = "validation"
	// KindInvalidTransition is an illegal lifecycle move. Never retried.
	KindInvalidTransition ErrorKind = "invalid_transition"
	// KindConflict means a concurrent compare-and-set was lost. Safe to retry once.
	KindConflict ErrorKind = "conflict"
	KindNotFound ErrorKind = "not_found"
	// KindTransientStore means persistence was unavailable. Retried with backoff by the caller.
	KindTransientStore ErrorKind = "transient_store"
)

// Error is the structured error returned across the service boundary.
type Error struct {
	Kind    ErrorKind
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

// Is matches another *Error by kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Kind sentinels for errors.Is checks.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrTransientStore    = &Error{Kind: KindTransientStore}
)

func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransitionf(format string, args ...any) error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// TransientStore wraps an underlying persistence failure.
func TransientStore(message string, err error) error {
	return &Error{Kind: KindTransientStore, Message: message, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
