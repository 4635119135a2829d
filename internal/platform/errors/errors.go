// Package errors defines the structured error returned by the admin API:
// a category that picks the HTTP status, a message safe to show clients,
// an optional cause kept for logs, and extra context fields.
package errors

import (
	"errors"
	"net/http"
)

// ErrorType is sent to clients as "type".
type ErrorType string

const (
	TypeValidation     ErrorType = "validation"
	TypeUnauthorized   ErrorType = "unauthorized"
	TypeNotFound       ErrorType = "not_found"
	TypeConflict       ErrorType = "conflict"
	TypePartialReorder ErrorType = "partial_reorder" // swap applied in part; the client must re-read
	TypeRateLimited    ErrorType = "rate_limited"
	TypeUnavailable    ErrorType = "unavailable" // the store is down; retrying may help
	TypeInternal       ErrorType = "internal"
)

var statusByType = map[ErrorType]int{
	TypeValidation:     http.StatusBadRequest,
	TypeUnauthorized:   http.StatusUnauthorized,
	TypeNotFound:       http.StatusNotFound,
	TypeConflict:       http.StatusConflict,
	TypePartialReorder: http.StatusConflict,
	TypeRateLimited:    http.StatusTooManyRequests,
	TypeUnavailable:    http.StatusServiceUnavailable,
	TypeInternal:       http.StatusInternalServerError,
}

type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	msg := string(e.Type) + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus maps the type to a status code. Unknown types are 500.
func (e *Error) HTTPStatus() int {
	if status, ok := statusByType[e.Type]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WithContext attaches a field that is both logged and sent to the client.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func New(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: make(map[string]any)}
}

func ValidationError(message string) *Error   { return New(TypeValidation, message, nil) }
func UnauthorizedError(message string) *Error { return New(TypeUnauthorized, message, nil) }
func NotFoundError(message string) *Error     { return New(TypeNotFound, message, nil) }
func ConflictError(message string) *Error     { return New(TypeConflict, message, nil) }
func RateLimitedError(message string) *Error  { return New(TypeRateLimited, message, nil) }

func PartialReorderError(message string, cause error) *Error {
	return New(TypePartialReorder, message, cause)
}

func UnavailableError(message string, cause error) *Error {
	return New(TypeUnavailable, message, cause)
}

func InternalError(message string, cause error) *Error {
	return New(TypeInternal, message, cause)
}

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Type: e.Type, Context: e.Context}
}

// AsStructuredError finds an *Error in err's chain, or hides err behind a
// generic internal error. It returns nil for nil.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}
	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}
	return InternalError("internal server error", err)
}
