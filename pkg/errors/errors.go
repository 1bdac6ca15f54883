package errors

import (
	stderrors "errors"
	"net/http"
)

// Kind classifies an AppError independently of its transport status.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindRateLimit      Kind = "rate_limit"
	KindStore          Kind = "store"
)

// AppError is a custom error type that includes an HTTP status code.
// Message is always safe to show to a client; Err is kept for logs only.
type AppError struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code int, kind Kind, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// Common errors
var (
	ErrInvalidRequest = NewAppError(http.StatusBadRequest, KindValidation, "Invalid request parameters")
	ErrUnauthorized   = NewAppError(http.StatusUnauthorized, KindAuthentication, "Unauthorized access")
	ErrForbidden      = NewAppError(http.StatusForbidden, KindAuthorization, "Access denied")
	ErrNotFound       = NewAppError(http.StatusNotFound, KindNotFound, "Resource not found")
	ErrInternalServer = NewAppError(http.StatusInternalServerError, KindStore, "Internal server error")
	ErrRateLimit      = NewAppError(http.StatusTooManyRequests, KindRateLimit, "Rate limit exceeded")
)

func BadRequest(msg string) *AppError {
	return NewAppError(http.StatusBadRequest, KindValidation, msg)
}

func NotFound(msg string) *AppError {
	return NewAppError(http.StatusNotFound, KindNotFound, msg)
}

func Unauthorized(msg string) *AppError {
	return NewAppError(http.StatusUnauthorized, KindAuthentication, msg)
}

func Forbidden(msg string) *AppError {
	return NewAppError(http.StatusForbidden, KindAuthorization, msg)
}

func Conflict(msg string) *AppError {
	return NewAppError(http.StatusConflict, KindConflict, msg)
}

// Internal wraps a store or infrastructure failure behind a generic message.
func Internal(err error) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Kind:    KindStore,
		Message: ErrInternalServer.Message,
		Err:     err,
	}
}

// As extracts an *AppError from err. Anything else becomes a generic
// internal error that keeps err as its cause.
func As(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// Is reports whether err is an AppError of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Kind == kind
}
