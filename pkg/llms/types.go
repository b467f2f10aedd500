// Package llms defines the provider-neutral chat model and the LLM
// providers (OpenAI-compatible, Anthropic, Gemini, Ollama). Providers
// normalize their wire formats into one message and stream-chunk shape;
// everything above this package is provider-agnostic.
package llms

import "encoding/json"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one conversation entry. Assistant messages may carry
// ToolCalls; tool messages carry the ToolCallID they answer plus the tool
// Name.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a structured request from the model to invoke a named
// function. Arguments holds the raw JSON text exactly as streamed.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Complete reports whether the call can be dispatched: the name is known
// and the arguments are either absent or a valid JSON object.
func (tc ToolCall) Complete() bool {
	if tc.Name == "" {
		return false
	}
	if tc.Arguments == "" {
		return true
	}
	var obj map[string]any
	return json.Unmarshal([]byte(tc.Arguments), &obj) == nil
}

// ToolDefinition describes one callable function in the provider-neutral
// "functions" shape. Providers translate outward (e.g. OpenAI "tools").
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Tool-choice values for Request.ToolChoice.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceNone = "none"
)

// Request is one completion request.
type Request struct {
	Messages []Message
	Tools    []ToolDefinition

	// ToolChoice controls tool use: empty or ToolChoiceAuto lets the
	// model decide, ToolChoiceNone forbids tool calls (used by the
	// orchestrator's no-tools fallback).
	ToolChoice string
}

// Response is a completed non-streaming generation.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	Tokens    int
}

// Stream chunk types.
const (
	ChunkText          = "text"
	ChunkToolCallDelta = "tool_call_delta"
	ChunkDone          = "done"
	ChunkError         = "error"
)

// ToolCallDelta is one raw tool-call fragment as it arrived on the wire.
// Providers do no assembly beyond shape translation: fragments with empty
// IDs and split arguments are passed through for the consumer to merge.
type ToolCallDelta struct {
	ID        string
	Name      string
	Arguments string
}

// StreamChunk is one unit of a streaming generation.
type StreamChunk struct {
	Type   string
	Text   string
	Delta  *ToolCallDelta
	Tokens int
	Err    error
}
