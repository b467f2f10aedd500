package llms

import "fmt"

// Error is the structured error for LLM provider failures. StatusCode is
// zero for transport-level failures.
type Error struct {
	Provider   string
	Operation  string
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm %s: %s failed with status %d: %s", e.Provider, e.Operation, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("llm %s: %s failed: %s: %v", e.Provider, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("llm %s: %s failed: %s", e.Provider, e.Operation, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a transport-level provider error.
func NewError(provider, operation, message string, err error) *Error {
	return &Error{Provider: provider, Operation: operation, Message: message, Err: err}
}

// NewStatusError builds a provider error carrying the upstream HTTP status.
func NewStatusError(provider, operation string, status int, body string) *Error {
	return &Error{Provider: provider, Operation: operation, Message: body, StatusCode: status}
}
