// Package apperr defines the error taxonomy shared by all services.
// Every business error carries the HTTP status it maps to, so handlers
// translate errors uniformly instead of inspecting messages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a business error with an associated HTTP status code.
type Error struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an Error with an explicit status code.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// NotFound marks a referenced entity as absent or not owned by the caller.
func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, fmt.Sprintf(format, args...))
}

// BadRequest marks invalid input or a forbidden state transition.
func BadRequest(format string, args ...any) *Error {
	return New(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// Conflict marks a uniqueness violation, e.g. a duplicate invoice period.
func Conflict(format string, args ...any) *Error {
	return New(http.StatusConflict, fmt.Sprintf(format, args...))
}

// Internal marks a data-integrity fault that must not be swallowed.
func Internal(format string, args ...any) *Error {
	return New(http.StatusInternalServerError, fmt.Sprintf(format, args...))
}

// StatusOf returns the HTTP status for err, defaulting to 500 for
// errors outside the taxonomy.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// HasStatus reports whether err belongs to the taxonomy with the given
// status code.
func HasStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == status
}
