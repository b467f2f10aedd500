package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/httpclient"
)

// OllamaProvider speaks the native Ollama /api/chat NDJSON protocol.
type OllamaProvider struct {
	config     *config.LLMProviderConfig
	httpClient *httpclient.Client
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []openAITool    `json:"tools,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaFunction `json:"function"`
}

type ollamaFunction struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ollamaResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error"`
}

func NewOllamaProviderFromConfig(cfg *config.LLMProviderConfig) (*OllamaProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ollama config cannot be nil")
	}
	return &OllamaProvider{
		config:     cfg,
		httpClient: newHTTPClient(cfg, nil),
	}, nil
}

func (p *OllamaProvider) ModelName() string { return p.config.Model }

func (p *OllamaProvider) Close() error { return nil }

func (p *OllamaProvider) buildRequest(req Request, stream bool) ollamaRequest {
	out := ollamaRequest{
		Model:  p.config.Model,
		Stream: stream,
		Options: &ollamaOptions{
			Temperature: p.config.Temperature,
			NumPredict:  p.config.MaxTokens,
		},
	}

	for _, msg := range req.Messages {
		om := ollamaMessage{Role: msg.Role, Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			args := map[string]any{}
			if tc.Arguments != "" {
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
			}
			om.ToolCalls = append(om.ToolCalls, ollamaToolCall{
				Function: ollamaFunction{Name: tc.Name, Arguments: args},
			})
		}
		out.Messages = append(out.Messages, om)
	}

	// Ollama reuses the OpenAI tools shape; "none" is expressed by
	// omitting them.
	if req.ToolChoice != ToolChoiceNone {
		for _, tool := range req.Tools {
			out.Tools = append(out.Tools, openAITool{
				Type: "function",
				Function: openAIToolFunction{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.Parameters,
				},
			})
		}
	}

	return out
}

func (p *OllamaProvider) post(ctx context.Context, body ollamaRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, NewError("ollama", "marshal request", "encoding failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, NewError("ollama", "build request", "invalid request", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if resp != nil && resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, NewStatusError("ollama", "chat", resp.StatusCode, string(body))
	}
	if err != nil {
		return nil, NewError("ollama", "chat", "request failed", err)
	}
	return resp, nil
}

// Generate performs one non-streaming completion.
func (p *OllamaProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := p.post(ctx, p.buildRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, NewError("ollama", "chat", "failed to parse response", err)
	}
	if parsed.Error != "" {
		return nil, NewError("ollama", "chat", parsed.Error, nil)
	}

	out := &Response{
		Text:   parsed.Message.Content,
		Tokens: parsed.PromptEvalCount + parsed.EvalCount,
	}
	for _, tc := range parsed.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, toolCallFromOllama(tc))
	}
	return out, nil
}

// GenerateStreaming opens a streaming completion.
func (p *OllamaProvider) GenerateStreaming(ctx context.Context, req Request) (<-chan StreamChunk, error) {
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

func (p *OllamaProvider) decodeStream(ctx context.Context, body io.Reader, ch chan<- StreamChunk) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	totalTokens := 0

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ollamaResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			return NewError("ollama", "stream", chunk.Error, nil)
		}

		if chunk.Message.Content != "" {
			ch <- StreamChunk{Type: ChunkText, Text: chunk.Message.Content}
		}
		for _, tc := range chunk.Message.ToolCalls {
			// Ollama emits whole calls with object arguments; one
			// delta carries everything.
			call := toolCallFromOllama(tc)
			ch <- StreamChunk{Type: ChunkToolCallDelta, Delta: &ToolCallDelta{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: call.Arguments,
			}}
		}

		if chunk.Done {
			totalTokens = chunk.PromptEvalCount + chunk.EvalCount
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return NewError("ollama", "stream read", "stream aborted", err)
	}

	ch <- StreamChunk{Type: ChunkDone, Tokens: totalTokens}
	return nil
}

func toolCallFromOllama(tc ollamaToolCall) ToolCall {
	args := ""
	if len(tc.Function.Arguments) > 0 {
		if encoded, err := json.Marshal(tc.Function.Arguments); err == nil {
			args = string(encoded)
		}
	}
	return ToolCall{
		ID:        "call_" + uuid.NewString(),
		Name:      tc.Function.Name,
		Arguments: args,
	}
}
