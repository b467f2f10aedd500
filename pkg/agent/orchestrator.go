package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/llms"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/observability"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/tools"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/utils"
)

const (
	apologyMessage = "I'm sorry, I wasn't able to put together an answer for that. Could you rephrase your question?"
	llmDownMessage = "I'm sorry, I'm having trouble reaching the language model right now. Please try again in a moment."
)

// Orchestrator runs streaming chat turns: iterative LLM completions
// with tool dispatch between them, surfaced as an event stream.
type Orchestrator struct {
	cfg      config.AgentConfig
	registry *tools.Registry
	executor *tools.Executor
	prompt   *PromptTemplate
	proc     *processor
	logger   *slog.Logger

	mu            sync.RWMutex
	provider      llms.Provider
	titleProvider llms.Provider
}

// NewOrchestrator wires a chat orchestrator. titleProvider may equal
// provider.
func NewOrchestrator(cfg config.AgentConfig, provider, titleProvider llms.Provider, registry *tools.Registry, executor *tools.Executor, prompt *PromptTemplate) *Orchestrator {
	if titleProvider == nil {
		titleProvider = provider
	}

	// Token trimming is best-effort; unknown models fall back inside
	// the counter, and a counter failure just disables the budget.
	var counter *utils.TokenCounter
	if cfg.MaxHistoryTokens > 0 && provider != nil {
		counter, _ = utils.NewTokenCounter(provider.ModelName())
	}

	return &Orchestrator{
		cfg:           cfg,
		registry:      registry,
		executor:      executor,
		prompt:        prompt,
		proc:          newProcessor(cfg, counter),
		logger:        slog.Default().With("component", "agent"),
		provider:      provider,
		titleProvider: titleProvider,
	}
}

// Provider returns the active chat provider.
func (o *Orchestrator) Provider() llms.Provider {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.provider
}

// SetProvider swaps the chat provider; in-flight turns keep the one
// they started with.
func (o *Orchestrator) SetProvider(provider llms.Provider) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.provider = provider
}

// Registry exposes the function registry for the admin surface.
func (o *Orchestrator) Registry() *tools.Registry { return o.registry }

// Prompt exposes the system-prompt template for the admin surface.
func (o *Orchestrator) Prompt() *PromptTemplate { return o.prompt }

// Stream runs one chat turn. The returned channel closes after a
// terminal done or error event; cancelling ctx stops the turn at the
// next suspension point.
func (o *Orchestrator) Stream(ctx context.Context, req *Request) (<-chan Event, error) {
	conversation, err := o.proc.Prepare(req)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, o.cfg.StreamBuffer)
	go func() {
		defer close(events)
		o.run(ctx, events, conversation)
	}()
	return events, nil
}

func (o *Orchestrator) run(ctx context.Context, events chan<- Event, conversation []llms.Message) {
	start := time.Now()
	iterations := 0
	var turnErr error
	defer func() {
		observability.GetGlobalMetrics().RecordChatTurn(ctx, time.Since(start), iterations, turnErr)
	}()

	emit := func(ev Event) bool {
		select {
		case events <- ev:
			observability.GetGlobalMetrics().RecordStreamEvent(ctx, ev.Type)
			return true
		case <-ctx.Done():
			return false
		}
	}

	provider := o.Provider()
	if provider == nil {
		turnErr = fmt.Errorf("no llm provider configured")
		emit(Event{Type: EventError, Content: "No language model is configured."})
		return
	}

	defs := o.registry.DefinitionsForLLM()
	system := o.prompt.Render(toolLines(defs))
	messages := append([]llms.Message{{Role: llms.RoleSystem, Content: system}}, conversation...)
	history := toHistory(conversation)

	var toolMessages []string
	finalText := ""
	assembleFailures := 0
	noTools := false

	for iteration := 1; iteration <= o.cfg.MaxToolIterations; iteration++ {
		iterations = iteration

		llmReq := llms.Request{Messages: messages}
		if noTools {
			llmReq.ToolChoice = llms.ToolChoiceNone
		} else if len(defs) > 0 {
			llmReq.Tools = defs
		}

		llmStart := time.Now()
		stream, err := provider.GenerateStreaming(ctx, llmReq)
		if err != nil {
			observability.GetGlobalMetrics().RecordLLMCall(ctx, provider.ModelName(), time.Since(llmStart), 0, 0, err)
			o.logger.Error("Failed to open LLM stream", "error", err)
			turnErr = err
			emit(Event{Type: EventChunk, Content: llmDownMessage})
			emit(Event{Type: EventDone})
			return
		}

		accumulated := ""
		assembler := newToolCallAssembler()
		var streamErr error
		tokens := 0

		for chunk := range stream {
			switch chunk.Type {
			case llms.ChunkText:
				if chunk.Text == "" {
					continue
				}
				// After the first tool-call fragment, text deltas are
				// prefaces the model will restate post-tool; drop them.
				if !assembler.Empty() {
					continue
				}
				accumulated += chunk.Text
				if !emit(Event{Type: EventChunk, Content: chunk.Text}) {
					return
				}
			case llms.ChunkToolCallDelta:
				if chunk.Delta != nil {
					assembler.Add(chunk.Delta)
				}
			case llms.ChunkError:
				streamErr = chunk.Err
			case llms.ChunkDone:
				tokens = chunk.Tokens
			}
		}
		observability.GetGlobalMetrics().RecordLLMCall(ctx, provider.ModelName(), time.Since(llmStart), 0, tokens, streamErr)

		if streamErr != nil {
			o.logger.Error("LLM stream aborted", "iteration", iteration, "error", streamErr)
			turnErr = streamErr
			if accumulated == "" {
				emit(Event{Type: EventChunk, Content: llmDownMessage})
			}
			emit(Event{Type: EventDone})
			return
		}

		if !assembler.Empty() {
			calls, ok := assembler.Calls()
			if !ok {
				assembleFailures++
				o.logger.Warn("Tool-call assembly failed", "iteration", iteration)
				if !emit(Event{Type: EventToolCallError, Error: "tool call arguments could not be assembled"}) {
					return
				}
				if assembleFailures >= 2 {
					break
				}
				noTools = true
				continue
			}

			messages = append(messages, llms.Message{
				Role:      llms.RoleAssistant,
				Content:   accumulated,
				ToolCalls: calls,
			})
			results := o.executor.ExecuteBatch(ctx, calls, history, func(ev tools.Event) {
				emit(fromToolEvent(ev))
			})
			messages = append(messages, results...)
			for _, m := range results {
				toolMessages = append(toolMessages, m.Content)
			}
			continue
		}

		if accumulated != "" {
			finalText = accumulated
			if iteration > 1 {
				full := tools.SuggestContact(accumulated, toolMessages, iteration, o.cfg.ContactName)
				if suffix := strings.TrimPrefix(full, accumulated); suffix != "" {
					if !emit(Event{Type: EventChunk, Content: suffix}) {
						return
					}
				}
			}
			break
		}

		// Empty completion: retry once with tools stripped, then give
		// up gracefully.
		if !noTools {
			noTools = true
			continue
		}
		break
	}

	if finalText == "" && ctx.Err() == nil {
		emit(Event{Type: EventChunk, Content: apologyMessage})
	}
	emit(Event{Type: EventDone})
}

// GenerateTitle produces a 3-6 word conversation title.
func (o *Orchestrator) GenerateTitle(ctx context.Context, messages []InMsg) (string, error) {
	o.mu.RLock()
	provider := o.titleProvider
	o.mu.RUnlock()
	if provider == nil {
		return "", fmt.Errorf("no llm provider configured")
	}

	var sb strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.TitleTimeout)
	defer cancel()

	resp, err := provider.Generate(ctx, llms.Request{
		Messages: []llms.Message{
			{Role: llms.RoleSystem, Content: "Generate a concise 3-6 word title for the conversation. Respond with only the title, no quotes."},
			{Role: llms.RoleUser, Content: sb.String()},
		},
		ToolChoice: llms.ToolChoiceNone,
	})
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(resp.Text), `"`))
	if title == "" {
		title = "New Conversation"
	}
	return title, nil
}

func toolLines(defs []llms.ToolDefinition) []string {
	lines := make([]string, len(defs))
	for i, d := range defs {
		lines[i] = fmt.Sprintf("- %s: %s", d.Name, d.Description)
	}
	return lines
}

func toHistory(conversation []llms.Message) []tools.HistoryMessage {
	history := make([]tools.HistoryMessage, 0, len(conversation))
	for _, m := range conversation {
		history = append(history, tools.HistoryMessage{Role: m.Role, Content: m.Content})
	}
	return history
}
