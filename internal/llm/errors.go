package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind is the machine-readable code of a provider failure. The string
// values are part of the event and HTTP error contract.
type ErrorKind string

const (
	InvalidConfig        ErrorKind = "INVALID_CONFIG"
	ConnectionFailed     ErrorKind = "CONNECTION_FAILED"
	AuthenticationFailed ErrorKind = "AUTH_FAILED"
	Timeout              ErrorKind = "TIMEOUT"
	DecodeError          ErrorKind = "DECODE_ERROR"
	Cancelled            ErrorKind = "CANCELLED"
	ModelNotFound        ErrorKind = "MODEL_NOT_FOUND"
	APIError             ErrorKind = "API_ERROR"
)

// Error is a classified provider failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError creates an *Error wrapping cause (which may be nil).
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so callers can test with
// errors.Is(err, &llm.Error{Kind: llm.Timeout}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the ErrorKind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusKind maps a non-success upstream HTTP status to an ErrorKind.
func StatusKind(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return AuthenticationFailed
	case http.StatusNotFound:
		return ModelNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return Timeout
	default:
		return APIError
	}
}

// Classify maps an arbitrary error to an *Error. Existing *Error values are
// returned unchanged; context errors become Cancelled or Timeout; network
// failures become ConnectionFailed (Timeout when the network reports one).
// Anything else is an APIError.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, context.Canceled):
		return NewError(Cancelled, "request cancelled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(Timeout, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewError(Timeout, "request timed out", err)
		}
		return NewError(ConnectionFailed, "connection failed", err)
	}
	return NewError(APIError, err.Error(), err)
}
