package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeAuthRequired      = "AUTH_REQUIRED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeBadRequest        = "BAD_REQUEST"
	CodeValidation        = "VALIDATION_ERROR"
	CodeConflict          = "CONFLICT"
	CodeNetwork           = "NETWORK_ERROR"
	CodeServer            = "SERVER_ERROR"
	CodeMalformedResponse = "MALFORMED_RESPONSE"
	CodeInternal          = "INTERNAL_ERROR"
	CodeTooManyRequests   = "TOO_MANY_REQUESTS"
	CodeUnsupportedMedia  = "UNSUPPORTED_MEDIA_TYPE"
)

// GenericMessage is shown when the backend gives no usable message.
const GenericMessage = "Something went wrong. Please try again."

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// AuthRequired means no session token is present; no request was made.
func AuthRequired() *AppError {
	return &AppError{
		Code:    CodeAuthRequired,
		Message: "Please sign in to continue",
		Status:  http.StatusUnauthorized,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

// Validation is a client-side check that failed before any network call.
func Validation(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Status:  http.StatusConflict,
	}
}

// Network wraps a transport failure (DNS, refused connection, timeout).
func Network(err error) *AppError {
	return &AppError{
		Code:    CodeNetwork,
		Message: "Unable to reach the server. Check your connection and try again.",
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

// Server carries a non-2xx backend response. An empty message falls back
// to GenericMessage.
func Server(status int, message string) *AppError {
	if message == "" {
		message = GenericMessage
	}
	return &AppError{
		Code:    CodeServer,
		Message: message,
		Status:  status,
	}
}

func MalformedResponse(err error) *AppError {
	return &AppError{
		Code:    CodeMalformedResponse,
		Message: "The server returned an unexpected response",
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func TooManyRequests(message string) *AppError {
	return &AppError{
		Code:    CodeTooManyRequests,
		Message: message,
		Status:  http.StatusTooManyRequests,
	}
}

func UnsupportedMediaType(contentType string) *AppError {
	return &AppError{
		Code:    CodeUnsupportedMedia,
		Message: fmt.Sprintf("Content type %q is not accepted", contentType),
		Status:  http.StatusUnsupportedMediaType,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsAuth reports whether err is one of the authentication or
// authorization failures.
func IsAuth(err error) bool {
	return Is(err, CodeAuthRequired) || Is(err, CodeUnauthorized) || Is(err, CodeForbidden)
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return GenericMessage
}

// As is errors.As, so callers need a single errors import.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
