package authz

import (
	"fmt"
	"net/http"
)

// Error is an authorization failure with the HTTP status it maps to.
// Challenge, when set, is sent as the WWW-Authenticate header.
type Error struct {
	Status    int
	Message   string
	Challenge string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func malformed(msg string, err error) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg, Err: err}
}

func unauthorized(scheme Scheme, msg string, err error) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: msg, Challenge: scheme.Challenge(), Err: err}
}
