package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/httpclient"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider speaks the Anthropic messages API.
type AnthropicProvider struct {
	config     *config.LLMProviderConfig
	httpClient *httpclient.Client
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// tool_use fields.
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result fields.
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
	Usage   *anthropicUsage  `json:"usage"`
	Error   *anthropicError  `json:"error"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicStreamEvent struct {
	Type         string          `json:"type"`
	Index        int             `json:"index"`
	ContentBlock *anthropicBlock `json:"content_block"`
	Delta        *anthropicDelta `json:"delta"`
	Usage        *anthropicUsage `json:"usage"`
	Error        *anthropicError `json:"error"`
}

type anthropicDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	PartialJSON string `json:"partial_json"`
}

func NewAnthropicProviderFromConfig(cfg *config.LLMProviderConfig) (*AnthropicProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("anthropic config cannot be nil")
	}
	return &AnthropicProvider{
		config:     cfg,
		httpClient: newHTTPClient(cfg, httpclient.ParseAnthropicHeaders),
	}, nil
}

func (p *AnthropicProvider) ModelName() string { return p.config.Model }

func (p *AnthropicProvider) Close() error { return nil }

// buildRequest translates neutral messages into the Anthropic shape:
// system content moves to the top-level field, assistant tool calls become
// tool_use blocks, and tool messages become user-borne tool_result blocks.
func (p *AnthropicProvider) buildRequest(req Request, stream bool) anthropicRequest {
	out := anthropicRequest{
		Model:       p.config.Model,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
		Stream:      stream,
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			if out.System != "" {
				out.System += "\n\n"
			}
			out.System += msg.Content

		case RoleAssistant:
			blocks := []anthropicBlock{}
			if msg.Content != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				input := map[string]any{}
				if tc.Arguments != "" {
					_ = json.Unmarshal([]byte(tc.Arguments), &input)
				}
				blocks = append(blocks, anthropicBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: input,
				})
			}
			if len(blocks) > 0 {
				out.Messages = append(out.Messages, anthropicMessage{Role: "assistant", Content: blocks})
			}

		case RoleTool:
			out.Messages = append(out.Messages, anthropicMessage{
				Role: "user",
				Content: []anthropicBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})

		default:
			out.Messages = append(out.Messages, anthropicMessage{
				Role:    "user",
				Content: []anthropicBlock{{Type: "text", Text: msg.Content}},
			})
		}
	}

	// Anthropic has no "none" tool choice; omitting tools is equivalent.
	if req.ToolChoice != ToolChoiceNone {
		for _, tool := range req.Tools {
			out.Tools = append(out.Tools, anthropicTool{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: tool.Parameters,
			})
		}
	}

	return out
}

func (p *AnthropicProvider) post(ctx context.Context, body anthropicRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, NewError("anthropic", "marshal request", "encoding failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, NewError("anthropic", "build request", "invalid request", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.httpClient.Do(req)
	if resp != nil && resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, NewStatusError("anthropic", "messages", resp.StatusCode, string(body))
	}
	if err != nil {
		return nil, NewError("anthropic", "messages", "request failed", err)
	}
	return resp, nil
}

// Generate performs one non-streaming completion.
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := p.post(ctx, p.buildRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, NewError("anthropic", "messages", "failed to parse response", err)
	}
	if parsed.Error != nil {
		return nil, NewError("anthropic", "messages", parsed.Error.Message, nil)
	}

	out := &Response{}
	for _, block := range parsed.Content {
		switch block.Type {
		case "text":
			out.Text += block.Text
		case "tool_use":
			args := ""
			if len(block.Input) > 0 {
				if raw, err := json.Marshal(block.Input); err == nil {
					args = string(raw)
				}
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}
	if parsed.Usage != nil {
		out.Tokens = parsed.Usage.InputTokens + parsed.Usage.OutputTokens
	}
	return out, nil
}

// GenerateStreaming opens a streaming completion.
func (p *AnthropicProvider) GenerateStreaming(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	resp, err := p.post(ctx, p.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		if err := p.decodeStream(ctx, resp.Body, ch); err != nil {
			ch <- StreamChunk{Type: ChunkError, Err: err}
		}
	}()
	return ch, nil
}

func (p *AnthropicProvider) decodeStream(ctx context.Context, body io.Reader, ch chan<- StreamChunk) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	totalTokens := 0

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if line == "" || len(line) < 6 || line[:6] != "data: " {
			continue
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(line[6:]), &event); err != nil {
			continue
		}

		switch event.Type {
		case "error":
			if event.Error != nil {
				return NewError("anthropic", "stream", event.Error.Message, nil)
			}

		case "content_block_start":
			if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
				// The id and name arrive once here; argument JSON
				// follows as id-less input_json_delta fragments.
				ch <- StreamChunk{Type: ChunkToolCallDelta, Delta: &ToolCallDelta{
					ID:   event.ContentBlock.ID,
					Name: event.ContentBlock.Name,
				}}
			}

		case "content_block_delta":
			if event.Delta == nil {
				continue
			}
			if event.Delta.Text != "" {
				ch <- StreamChunk{Type: ChunkText, Text: event.Delta.Text}
			}
			if event.Delta.Type == "input_json_delta" && event.Delta.PartialJSON != "" {
				ch <- StreamChunk{Type: ChunkToolCallDelta, Delta: &ToolCallDelta{
					Arguments: event.Delta.PartialJSON,
				}}
			}

		case "message_delta":
			if event.Usage != nil {
				totalTokens = event.Usage.OutputTokens
			}

		case "message_stop":
			ch <- StreamChunk{Type: ChunkDone, Tokens: totalTokens}
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return NewError("anthropic", "stream read", "stream aborted", err)
	}

	ch <- StreamChunk{Type: ChunkDone, Tokens: totalTokens}
	return nil
}
