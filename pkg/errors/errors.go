package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed client error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
	// Details carries structured payloads such as per-row import failures.
	Details interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code, so errors.Is(err, ErrSessionExpired) works on clones.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Error codes.
const (
	CodeAuthentication = "AUTHENTICATION_FAILED"
	CodeSessionExpired = "SESSION_EXPIRED"
	CodeHTTP           = "HTTP_ERROR"
	CodeImportPartial  = "IMPORT_PARTIAL_FAILURE"
	CodeParse          = "PARSE_ERROR"
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeInternal       = "INTERNAL_ERROR"
)

// Predefined errors for common scenarios.
var (
	ErrAuthentication = New(CodeAuthentication, http.StatusUnauthorized, "invalid username or password")
	ErrSessionExpired = New(CodeSessionExpired, http.StatusUnauthorized, "session expired, please log in again")
	ErrImportPartial  = New(CodeImportPartial, http.StatusOK, "import finished with row errors")
	ErrParse          = New(CodeParse, http.StatusBadRequest, "failed to parse input file")
	ErrValidation     = New(CodeValidation, http.StatusBadRequest, "validation failed")
	ErrNotFound       = New(CodeNotFound, http.StatusNotFound, "resource not found")
	ErrUnauthorized   = New(CodeUnauthorized, http.StatusUnauthorized, "unauthorized")
	ErrInternal       = New(CodeInternal, http.StatusInternalServerError, "internal server error")
)

// HTTP builds the error returned for any non-2xx response.
func HTTP(status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Code: CodeHTTP, Status: status, Message: message}
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return 0
	}
	return e.Status
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
