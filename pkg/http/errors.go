package http

import (
	"fmt"
	"net/http"
)

// AppError is an error a handler can hand straight to AppErrorResponse.
// Err is logged but never serialized.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Field: field, Message: message, Status: status}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = map[string]interface{}{}
	}
	e.Params[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func errorf(code string, status int, format string, a []interface{}) *AppError {
	return NewAppError(code, "", fmt.Sprintf(format, a...), status)
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return errorf("ERR_NOT_FOUND", http.StatusNotFound, format, a)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return errorf("ERR_BAD_REQUEST", http.StatusBadRequest, format, a)
}

func InternalErrorf(format string, a ...interface{}) *AppError {
	return errorf("ERR_INTERNAL", http.StatusInternalServerError, format, a)
}
