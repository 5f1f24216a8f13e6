package service

import (
	"errors"
)

// Error kinds. Every failure returned by this package wraps exactly one of
// them, so callers can branch with errors.Is.
var (
	ErrValidation      = errors.New("validation")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrAuthentication  = errors.New("authentication")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUpload          = errors.New("upload")
	ErrInternal        = errors.New("internal")
	ErrTooManyAttempts = errors.New("too many attempts")
)

// Error pairs a kind with a message that is safe to show clients. Err keeps
// the underlying cause for logs and is never shown.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Message returns the client safe message carried by err, or a generic one
// for errors that did not come from this package.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}

func newError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func validationError(msg string) error     { return newError(ErrValidation, msg, nil) }
func conflictError(msg string) error       { return newError(ErrConflict, msg, nil) }
func notFoundError(msg string) error       { return newError(ErrNotFound, msg, nil) }
func authenticationError(msg string) error { return newError(ErrAuthentication, msg, nil) }

func unauthorizedError(msg string, cause error) error {
	return newError(ErrUnauthorized, msg, cause)
}

func uploadError(msg string, cause error) error {
	return newError(ErrUpload, msg, cause)
}

func internalError(msg string, cause error) error {
	return newError(ErrInternal, msg, cause)
}
