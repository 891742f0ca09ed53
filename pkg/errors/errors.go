package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
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

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Roster errors.
var (
	ErrDuplicateRoll     = New("DUPLICATE_ROLL", http.StatusConflict, "roll number already exists")
	ErrDuplicateUsername = New("DUPLICATE_USERNAME", http.StatusConflict, "username already exists")
)

// Scan errors, ordered as the validation pipeline reports them.
var (
	ErrTokenNotFound      = New("TOKEN_NOT_FOUND", http.StatusNotFound, "qr token not found")
	ErrTokenMismatch      = New("TOKEN_MISMATCH", http.StatusUnauthorized, "qr token secret does not match")
	ErrTokenInactive      = New("TOKEN_INACTIVE", http.StatusGone, "qr token has been superseded")
	ErrTokenExpired       = New("TOKEN_EXPIRED", http.StatusGone, "qr token has expired")
	ErrStudentNotEligible = New("STUDENT_NOT_ELIGIBLE", http.StatusUnprocessableEntity, "student is not eligible for this session")
	ErrAlreadyMarked      = New("ALREADY_MARKED", http.StatusConflict, "attendance already marked")
)

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
