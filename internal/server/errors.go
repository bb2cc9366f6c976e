package server

import (
	"errors"
	"fmt"
)

// ErrServiceClosed is returned by Serve and Run once the service has shut down.
var ErrServiceClosed = errors.New("server: service closed")

// StatusError asks the server to answer with an ErrorReply carrying Code
// while keeping the connection open.
type StatusError struct {
	Code uint16
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("server: status %#04x", e.Code)
	}
	return fmt.Sprintf("server: status %#04x: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Status wraps err so the client receives an ErrorReply with code.
func Status(code uint16, err error) error {
	return &StatusError{Code: code, Err: err}
}

// PanicError carries a recovered handler panic. It closes the connection.
type PanicError struct {
	Route string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("server: handler %s panicked: %v", e.Route, e.Value)
}
