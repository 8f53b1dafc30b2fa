// Package errors defines the error envelope returned by the JSON API.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrorCode is a stable, machine-readable error identifier
type ErrorCode string

const (
	Validation      ErrorCode = "VALIDATION"
	BadRequest      ErrorCode = "BAD_REQUEST"
	Unauthenticated ErrorCode = "UNAUTHENTICATED"
	WrongPassword   ErrorCode = "WRONG_PASSWORD"
	EmailNotFound   ErrorCode = "EMAIL_NOT_REGISTERED"
	EmailInUse      ErrorCode = "EMAIL_IN_USE"
	UsernameTaken   ErrorCode = "USERNAME_TAKEN"
	NotFound        ErrorCode = "NOT_FOUND"
	UnsupportedSort ErrorCode = "UNSUPPORTED_SORT"
	RateLimit       ErrorCode = "RATE_LIMIT"
	RemoteTimeout   ErrorCode = "REMOTE_TIMEOUT"
	RemoteFailure   ErrorCode = "REMOTE_FAILURE"
	Internal        ErrorCode = "INTERNAL"
)

// Error is the API error body
type Error struct {
	Code          ErrorCode `json:"code"`
	Message       string    `json:"message"`
	Field         string    `json:"field,omitempty"`
	CorrelationID string    `json:"correlationId"`
	HTTPStatus    int       `json:"-"`
}

// New creates an Error with a fresh correlation id
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: uuid.New().String(),
		HTTPStatus:    StatusFor(code),
	}
}

// WithField attaches the offending input field
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StatusFor maps error codes to HTTP status codes
func StatusFor(code ErrorCode) int {
	switch code {
	case Validation, BadRequest, UnsupportedSort:
		return http.StatusBadRequest
	case Unauthenticated, WrongPassword:
		return http.StatusUnauthorized
	case EmailNotFound, NotFound:
		return http.StatusNotFound
	case EmailInUse, UsernameTaken:
		return http.StatusConflict
	case RateLimit:
		return http.StatusTooManyRequests
	case RemoteTimeout:
		return http.StatusGatewayTimeout
	case RemoteFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Write sends e as {"error": {...}} with its HTTP status
func Write(w http.ResponseWriter, e *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]*Error{"error": e})
}
