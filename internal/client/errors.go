package client

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a call failed
type ErrorKind string

const (
	// KindTransport covers connection failures and timeouts.
	KindTransport ErrorKind = "transport"
	// KindBackend means the server answered with status "error".
	KindBackend ErrorKind = "backend"
	// KindProtocol means the response could not be decoded.
	KindProtocol ErrorKind = "protocol"
)

// APIError is returned by every Client method. Message is suitable for
// showing to the cashier as is.
type APIError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

func transportError(err error, timedOut bool) *APIError {
	msg := "Could not reach the server"
	if timedOut {
		msg = "The server did not respond in time"
	}
	return &APIError{Kind: KindTransport, Message: msg, Err: err}
}

func protocolError(status int, err error) *APIError {
	return &APIError{
		Kind:       KindProtocol,
		Message:    fmt.Sprintf("Unexpected response from server (HTTP %d)", status),
		StatusCode: status,
		Err:        err,
	}
}
