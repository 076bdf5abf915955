package appserver

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("codex app-server session is closed")

	// ErrProcessExited is the cause attached to requests that were still
	// pending when the child went away.
	ErrProcessExited = errors.New("codex app-server exited")
)

// RPCError is an error member returned in a response.
type RPCError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ProcessError reports spawn, write and exit failures of the child.
type ProcessError struct {
	Message string
	Cause   error
}

func (e *ProcessError) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// ProtocolError reports a line that could not be parsed or a response that is
// missing required fields.
type ProtocolError struct {
	Message string
	Line    string
	Cause   error
}

func (e *ProtocolError) Error() string {
	return e.Message
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}
