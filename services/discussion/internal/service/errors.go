package service

import (
	"errors"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrInternal   = errors.New("internal error")
)

// Error is returned by every Service operation that fails.
type Error struct {
	Kind    error
	Message string
	// Fields lists the missing or invalid input fields for ErrValidation.
	Fields []string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		msg += ": " + strings.Join(e.Fields, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func validationError(message string, fields ...string) *Error {
	return &Error{Kind: ErrValidation, Message: message, Fields: fields}
}

func notFound(message string) *Error {
	return &Error{Kind: ErrNotFound, Message: message}
}

func forbidden(message string) *Error {
	return &Error{Kind: ErrForbidden, Message: message}
}

func internal(err error) *Error {
	return &Error{Kind: ErrInternal, Message: "internal error", Err: err}
}
