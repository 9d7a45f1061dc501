package client

import (
	"errors"
	"fmt"
)

// NetworkErrorMessage is shown for every transport failure.
const NetworkErrorMessage = "Network error. Please try again."

// ValidationError is a local input error caught before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RejectedError means the server answered and refused the request.
// Message is the server's reason and is shown verbatim.
type RejectedError struct {
	Op         string
	Message    string
	StatusCode int
}

func (e *RejectedError) Error() string {
	return e.Message
}

// TransportError means the server could not be reached or the connection
// broke before a response was read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SessionError means an authenticated call was refused because there is no
// valid session. Callers route back to login instead of showing it inline.
type SessionError struct {
	Op      string
	Message string
}

func (e *SessionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: session expired: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: session expired", e.Op)
}

// StatusError is a non-2xx response without a server-provided reason.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: HTTP %d", e.Op, e.StatusCode)
	}

	return fmt.Sprintf("%s failed: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// UserMessage returns the text an operator should see for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		validation *ValidationError
		rejected   *RejectedError
		transport  *TransportError
		session    *SessionError
	)

	switch {
	case errors.As(err, &validation):
		return validation.Message
	case errors.As(err, &rejected):
		return rejected.Message
	case errors.As(err, &transport):
		return NetworkErrorMessage
	case errors.As(err, &session):
		return "Authentication required"
	default:
		return err.Error()
	}
}
