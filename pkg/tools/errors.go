package tools

import (
	"errors"
	"fmt"
)

// ErrUnknownTool is wrapped by registry operations on absent names.
var ErrUnknownTool = errors.New("unknown tool")

// ErrToolDisabled is wrapped when a disabled tool is called.
var ErrToolDisabled = errors.New("tool is disabled")

// Error wraps a tool failure with the tool it came from.
type Error struct {
	Tool    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool %s: %s: %v", e.Tool, e.Message, e.Err)
	}
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(tool, message string, err error) *Error {
	return &Error{Tool: tool, Message: message, Err: err}
}
