package httperror

import (
	"fmt"
	"net/http"
)

type Error struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(status int, code, message string, details any) *Error {
	return &Error{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func NoContent(code, message string, details any) *Error {
	return New(http.StatusNoContent, code, message, details)
}

func BadRequest(code, message string, details any) *Error {
	return New(http.StatusBadRequest, code, message, details)
}

func Unauthorized(code, message string, details any) *Error {
	return New(http.StatusUnauthorized, code, message, details)
}

func Forbidden(code, message string, details any) *Error {
	return New(http.StatusForbidden, code, message, details)
}

func NotFound(code, message string, details any) *Error {
	return New(http.StatusNotFound, code, message, details)
}

func Conflict(code, message string, details any) *Error {
	return New(http.StatusConflict, code, message, details)
}

func InternalServerError(code, message string, details any) *Error {
	return New(http.StatusInternalServerError, code, message, details)
}
