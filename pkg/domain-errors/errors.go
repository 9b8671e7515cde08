// Package domainerrors defines coded errors shared across bounded contexts.
// Services return them, handlers map them onto HTTP statuses, and tests
// assert on codes instead of message text.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code identifies a class of failure independent of transport.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal_error"

	// Occurrence lifecycle violations.
	CodeAlreadySubmitted Code = "already_submitted"
	CodeNotSubmitted     Code = "not_submitted"
	// CodeNotApplicable marks a period the definition produces no
	// occurrence for (outside the validity window, or inactive).
	CodeNotApplicable Code = "not_applicable"
	// CodeInvalidRecurrence marks recurrence parameters that are out of
	// range for their cadence.
	CodeInvalidRecurrence Code = "invalid_recurrence_parameters"
)

// Error is a coded domain error. The code is stable API; the message is for
// humans and may change.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded error that preserves the underlying cause for
// errors.Is/As chains.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// Is is a readable alias for HasCode at call sites.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from an error chain. Unknown errors map to
// CodeInternal.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// httpStatus maps codes to HTTP statuses. Lifecycle conflicts are 409;
// semantically invalid but well-formed requests are 422.
var httpStatus = map[Code]int{
	CodeBadRequest:        http.StatusBadRequest,
	CodeInvalidInput:      http.StatusBadRequest,
	CodeNotFound:          http.StatusNotFound,
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeForbidden:         http.StatusForbidden,
	CodeConflict:          http.StatusConflict,
	CodeAlreadySubmitted:  http.StatusConflict,
	CodeNotSubmitted:      http.StatusConflict,
	CodeNotApplicable:     http.StatusUnprocessableEntity,
	CodeInvalidRecurrence: http.StatusUnprocessableEntity,
	CodeInternal:          http.StatusInternalServerError,
}

// ToHTTPStatus maps an error to the status a handler should write.
func ToHTTPStatus(err error) int {
	if status, ok := httpStatus[CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
