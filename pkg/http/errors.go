package http

import (
	"fmt"
	"net/http"
)

// AppError is an error a handler can return directly; AppErrorResponse maps
// it onto the wire envelope using the embedded status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithError attaches the cause for logging; it is not serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// WithParam attaches a machine-readable detail to the serialized error.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

func statusError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// BadRequestError builds a 400 error.
func BadRequestError(message string) *AppError {
	return statusError(http.StatusBadRequest, "ERR_BAD_REQUEST", message)
}

// BadRequestErrorf builds a 400 error from a format string.
func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

// NotFoundError builds a 404 error.
func NotFoundError(message string) *AppError {
	return statusError(http.StatusNotFound, "ERR_NOT_FOUND", message)
}

// UnavailableError builds a 503 error for unreachable collaborators.
func UnavailableError(message string) *AppError {
	return statusError(http.StatusServiceUnavailable, "ERR_UNAVAILABLE", message)
}

// InternalError builds a 500 error.
func InternalError(message string) *AppError {
	return statusError(http.StatusInternalServerError, "ERR_INTERNAL", message)
}
