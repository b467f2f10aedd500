package mcp

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
)

// Error wraps a transport or protocol failure with the server it came
// from.
type Error struct {
	Server    string
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mcp[%s] %s: %s: %v", e.Server, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("mcp[%s] %s: %s", e.Server, e.Operation, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(server, operation, message string, err error) *Error {
	return &Error{Server: server, Operation: operation, Message: message, Err: err}
}

// ErrConnectionFailed is returned once the reconnect budget is spent.
var ErrConnectionFailed = errors.New("connection failed after reconnect attempts")

// ErrClosed is returned for calls against a supervisor that was shut
// down.
var ErrClosed = errors.New("session closed")

// isConnectionClosed reports whether err means the stdio session is gone
// and a reconnect is warranted. Anything else (tool errors, timeouts,
// bad params) must propagate unchanged.
func isConnectionClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	// Process-exit and pipe errors that only surface as strings.
	msg := err.Error()
	for _, marker := range []string{
		"broken pipe",
		"file already closed",
		"process exited",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
