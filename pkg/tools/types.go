// Package tools unifies in-process functions and remote tool servers
// under one name-to-callable registry, and executes batches of tool
// calls on behalf of the chat orchestrator.
package tools

import (
	"context"
)

// KnowledgeSearchToolName is the RAG retrieval tool. The result
// formatter renders its hits as citable chunks.
const KnowledgeSearchToolName = "knowledge_search"

// CallContext carries per-call conversation state to handlers that
// asked for it.
type CallContext struct {
	// ConversationHistory is the filtered user/assistant history of the
	// current request. Only handlers registered with WantsHistory see
	// it.
	ConversationHistory []HistoryMessage
}

// HistoryMessage is the minimal view of a conversation message a tool
// handler may inspect.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Handler executes a tool. The returned value feeds the result
// formatter: strings pass through verbatim, maps and slices get
// shape-based framing.
type Handler func(ctx context.Context, args map[string]any, callCtx *CallContext) (any, error)

// Definition describes one callable tool.
type Definition struct {
	Name        string
	Description string

	// Parameters is a JSON-schema object describing the arguments.
	Parameters map[string]any

	Handler Handler

	// WantsHistory opts the handler into receiving conversation
	// history through CallContext.
	WantsHistory bool

	// Source names where the tool came from (local, stdio:<server>,
	// http:<server>).
	Source string

	// Config is free-form per-tool configuration, persisted alongside
	// the enabled set.
	Config map[string]any
}
