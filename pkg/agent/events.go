// Package agent implements the chat surface: message preparation, the
// streaming tool-calling orchestrator, and title generation.
package agent

import (
	"github.com/LiuHarry1/travel-agent-sub000/pkg/tools"
)

// Event types emitted on a chat stream.
const (
	EventChunk         = "chunk"
	EventToolCallStart = "tool_call_start"
	EventToolCallEnd   = "tool_call_end"
	EventToolCallError = "tool_call_error"
	EventDone          = "done"
	EventError         = "error"
)

// Event is one unit of a chat stream, serialized verbatim as an SSE
// data payload.
type Event struct {
	Type       string         `json:"type"`
	Content    string         `json:"content,omitempty"`
	Tool       string         `json:"tool,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Input      map[string]any `json:"input,omitempty"`
	Result     string         `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// fromToolEvent translates an executor lifecycle event onto the stream.
func fromToolEvent(ev tools.Event) Event {
	return Event{
		Type:       string(ev.Type),
		Tool:       ev.Tool,
		ToolCallID: ev.ToolCallID,
		Input:      ev.Input,
		Result:     ev.Result,
		Error:      ev.Error,
	}
}

// File is one uploaded attachment.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Request is one inbound chat turn.
type Request struct {
	SessionID string  `json:"session_id,omitempty"`
	Message   string  `json:"message,omitempty"`
	Messages  []InMsg `json:"messages,omitempty"`
	Files     []File  `json:"files,omitempty"`
}

// InMsg is a history entry as clients send it.
type InMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
