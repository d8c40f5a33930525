// Package apperr defines the error kinds the API distinguishes when mapping to HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Wrap them (or use New) so callers can test with errors.Is.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")
	// ErrUpstream marks a failure of an external collaborator (SMTP, LRS) that the caller must see.
	ErrUpstream = errors.New("upstream failure")
)

// Error carries a user-facing message for one of the sentinel kinds.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error { return e.Kind }

// New returns an Error of the given kind.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with formatting.
func Newf(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns an ErrNotFound with the entity name in the message.
func NotFound(entity string) error {
	return &Error{Kind: ErrNotFound, Message: entity + " not found"}
}

// Forbidden returns an ErrForbidden with msg.
func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

// Conflict returns an ErrConflict with msg.
func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

// Invalid returns an ErrInvalid with msg.
func Invalid(msg string) error {
	return &Error{Kind: ErrInvalid, Message: msg}
}

// Message returns the user-facing message of err, or fallback when err is not an *Error.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return fallback
}
