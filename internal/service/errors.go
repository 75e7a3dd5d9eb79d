package service

import "errors"

// Error represents a domain error with a stable code and a client-facing message.
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface
func (e Error) Error() string {
	return e.Message
}

// NewError creates a new error
func NewError(code, message string) Error {
	return Error{Code: code, Message: message}
}

var (
	ErrInvalidCategory    = NewError("invalid_category", "Invalid number type")
	ErrCircuitBreakerOpen = NewError("circuit_breaker_open", "circuit breaker is open")
)

// AsError extracts a domain Error from err, if any.
func AsError(err error) (Error, bool) {
	var e Error
	if errors.As(err, &e) {
		return e, true
	}
	return Error{}, false
}
