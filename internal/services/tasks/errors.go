package tasks

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a service failure
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeForbidden       Code = "FORBIDDEN"
	CodeInternal        Code = "INTERNAL"
)

// Error is returned by every Service method that fails
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalidArgument(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func notFound(id int64) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("task %d not found", id)}
}

func forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

func internal(message string, err error) *Error {
	return &Error{Code: CodeInternal, Message: message, Err: err}
}

// CodeOf extracts the Code of err, or CodeInternal for foreign errors
func CodeOf(err error) Code {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Code
	}
	return CodeInternal
}

// StatusCode maps err to the HTTP status it should produce
func StatusCode(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-safe message of err
func Message(err error) string {
	var serr *Error
	if errors.As(err, &serr) && serr.Code != CodeInternal {
		return serr.Message
	}
	return "Internal server error"
}
