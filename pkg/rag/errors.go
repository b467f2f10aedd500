package rag

import "fmt"

// Kind classifies a retrieval failure.
type Kind string

const (
	// KindNetwork is a connection-level failure reaching a source.
	KindNetwork Kind = "network"
	// KindRemote is an HTTP >= 400 from a source.
	KindRemote Kind = "remote"
	// KindParse is a malformed source response.
	KindParse Kind = "parse"
	// KindValidation is an input-guardrail rejection.
	KindValidation Kind = "validation"
)

// Error is a classified retrieval failure.
type Error struct {
	Kind       Kind
	Source     string
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	prefix := fmt.Sprintf("rag %s error", e.Kind)
	if e.Source != "" {
		prefix += " from " + e.Source
	}
	if e.StatusCode != 0 {
		prefix += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, source, message string, err error) *Error {
	return &Error{Kind: kind, Source: source, Message: message, Err: err}
}
