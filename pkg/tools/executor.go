package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/llms"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/observability"
)

// EventType identifies a tool lifecycle event.
type EventType string

const (
	EventToolCallStart EventType = "tool_call_start"
	EventToolCallEnd   EventType = "tool_call_end"
	EventToolCallError EventType = "tool_call_error"
)

// Event is one tool lifecycle notification, forwarded by the
// orchestrator to the client stream.
type Event struct {
	Type       EventType      `json:"type"`
	Tool       string         `json:"tool"`
	ToolCallID string         `json:"tool_call_id"`
	Input      map[string]any `json:"input,omitempty"`
	Result     string         `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// EventSink receives lifecycle events as they happen. Events from
// concurrent calls may interleave; tool messages never do.
type EventSink func(Event)

// Executor runs batches of tool calls against the registry.
type Executor struct {
	registry    *Registry
	maxParallel int
	logger      *slog.Logger
}

func NewExecutor(registry *Registry, maxParallel int) *Executor {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Executor{
		registry:    registry,
		maxParallel: maxParallel,
		logger:      slog.Default().With("component", "tools"),
	}
}

// ExecuteBatch runs the calls, independent ones concurrently, and
// returns one tool message per call in the original call order so the
// assistant.tool_calls[i] to tool[i] pairing survives. Failures become
// "Error: ..." tool messages rather than aborting the batch; the LLM
// sees every outcome.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []llms.ToolCall, history []HistoryMessage, sink EventSink) []llms.Message {
	if sink == nil {
		sink = func(Event) {}
	}

	results := make([]string, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallel)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.executeOne(gctx, call, history, sink)
			return nil
		})
	}
	_ = g.Wait()

	messages := make([]llms.Message, len(calls))
	for i, call := range calls {
		messages[i] = llms.Message{
			Role:       llms.RoleTool,
			Content:    results[i],
			ToolCallID: call.ID,
			Name:       call.Name,
		}
	}
	return messages
}

func (e *Executor) executeOne(ctx context.Context, call llms.ToolCall, history []HistoryMessage, sink EventSink) string {
	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			sink(Event{
				Type:       EventToolCallError,
				Tool:       call.Name,
				ToolCallID: call.ID,
				Error:      "invalid arguments: " + err.Error(),
			})
			return "Error: tool arguments were not valid JSON: " + err.Error()
		}
	}

	sink(Event{
		Type:       EventToolCallStart,
		Tool:       call.Name,
		ToolCallID: call.ID,
		Input:      args,
	})

	start := time.Now()
	result, err := e.registry.Call(ctx, call.Name, args, &CallContext{ConversationHistory: history})
	duration := time.Since(start)
	observability.GetGlobalMetrics().RecordToolExecution(ctx, call.Name, duration, err)

	if err != nil {
		e.logger.Warn("Tool execution failed", "tool", call.Name, "error", err)
		sink(Event{
			Type:       EventToolCallError,
			Tool:       call.Name,
			ToolCallID: call.ID,
			Error:      err.Error(),
		})
		return "Error: " + err.Error()
	}

	formatted := FormatResult(call.Name, result)
	sink(Event{
		Type:       EventToolCallEnd,
		Tool:       call.Name,
		ToolCallID: call.ID,
		Result:     formatted,
	})
	return formatted
}
