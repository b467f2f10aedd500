package agent

import (
	"github.com/google/uuid"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/llms"
)

// toolCallAssembler accretes streamed tool-call fragments into whole
// calls. Providers disagree on fragment shape: OpenAI streams indexed
// tool_calls with stable ids, the legacy function_call shape has no id
// at all, and some providers split arguments across id-less fragments.
type toolCallAssembler struct {
	order  []string
	byID   map[string]*llms.ToolCall
	lastID string
}

func newToolCallAssembler() *toolCallAssembler {
	return &toolCallAssembler{byID: make(map[string]*llms.ToolCall)}
}

// Add merges one fragment. Fragments without an id continue the most
// recent call; a first fragment without an id gets a synthetic one.
func (a *toolCallAssembler) Add(delta *llms.ToolCallDelta) {
	id := delta.ID
	if id == "" {
		if a.lastID == "" {
			id = uuid.NewString()
		} else {
			id = a.lastID
		}
	}

	call, ok := a.byID[id]
	if !ok {
		call = &llms.ToolCall{ID: id}
		a.byID[id] = call
		a.order = append(a.order, id)
	}
	if delta.Name != "" {
		call.Name += delta.Name
	}
	call.Arguments += delta.Arguments
	a.lastID = id
}

// Empty reports whether no fragments arrived.
func (a *toolCallAssembler) Empty() bool {
	return len(a.order) == 0
}

// Calls produces the dispatchable tool calls. If no entry is complete
// but named entries exist, fragments are re-merged by name, which
// repairs providers that scatter one call's arguments across id-less
// entries. The second return is false when nothing dispatchable could
// be assembled.
func (a *toolCallAssembler) Calls() ([]llms.ToolCall, bool) {
	var complete []llms.ToolCall
	for _, id := range a.order {
		if call := a.byID[id]; call.Complete() {
			complete = append(complete, *call)
		}
	}
	if len(complete) > 0 {
		return complete, true
	}

	// Merge pass: concatenate arguments per name in observed order.
	merged := make(map[string]*llms.ToolCall)
	var names []string
	for _, id := range a.order {
		call := a.byID[id]
		name := call.Name
		if name == "" {
			if a.lastNamed(names) == "" {
				continue
			}
			name = a.lastNamed(names)
		}
		entry, ok := merged[name]
		if !ok {
			entry = &llms.ToolCall{ID: call.ID, Name: name}
			merged[name] = entry
			names = append(names, name)
		}
		entry.Arguments += call.Arguments
	}

	for _, name := range names {
		if call := merged[name]; call.Complete() {
			complete = append(complete, *call)
		}
	}
	return complete, len(complete) > 0
}

func (a *toolCallAssembler) lastNamed(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[len(names)-1]
}
