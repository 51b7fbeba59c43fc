// Package apperr defines the failure kinds surfaced by the chat core.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrInvalidInput      = errors.New("invalid input")
)

// Error carries a client-safe message next to its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NotFound(msg string) error          { return &Error{Kind: ErrNotFound, Message: msg} }
func Forbidden(msg string) error         { return &Error{Kind: ErrForbidden, Message: msg} }
func Conflict(msg string) error          { return &Error{Kind: ErrConflict, Message: msg} }
func ResourceExhausted(msg string) error { return &Error{Kind: ErrResourceExhausted, Message: msg} }
func InvalidInput(msg string) error      { return &Error{Kind: ErrInvalidInput, Message: msg} }

// Message returns the client-safe message of a classified error, or fallback
// for anything else.
func Message(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return fallback
}

// IsClassified reports whether err belongs to one of the known kinds.
func IsClassified(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr)
}
