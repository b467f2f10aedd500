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

// GeminiProvider speaks the Gemini REST API (generateContent and
// streamGenerateContent with SSE framing).
type GeminiProvider struct {
	config     *config.LLMProviderConfig
	httpClient *httpclient.Client
}

type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Tools             []geminiToolSet  `json:"tools,omitempty"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// geminiPart is a loose map: text, functionCall, or functionResponse.
type geminiPart map[string]any

type geminiToolSet struct {
	FunctionDeclarations []geminiFunctionDecl `json:"functionDeclarations"`
}

type geminiFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiGenConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata"`
	Error         *geminiAPIError   `json:"error"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsage struct {
	TotalTokenCount int `json:"totalTokenCount"`
}

type geminiAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func NewGeminiProviderFromConfig(cfg *config.LLMProviderConfig) (*GeminiProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gemini config cannot be nil")
	}
	return &GeminiProvider{
		config:     cfg,
		httpClient: newHTTPClient(cfg, httpclient.ParseGeminiHeaders),
	}, nil
}

func (p *GeminiProvider) ModelName() string { return p.config.Model }

func (p *GeminiProvider) Close() error { return nil }

func (p *GeminiProvider) buildRequest(req Request) geminiRequest {
	out := geminiRequest{
		GenerationConfig: &geminiGenConfig{
			Temperature:     p.config.Temperature,
			MaxOutputTokens: p.config.MaxTokens,
		},
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			out.SystemInstruction = &geminiContent{
				Parts: []geminiPart{{"text": msg.Content}},
			}

		case RoleAssistant:
			var parts []geminiPart
			if msg.Content != "" {
				parts = append(parts, geminiPart{"text": msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args := map[string]any{}
				if tc.Arguments != "" {
					_ = json.Unmarshal([]byte(tc.Arguments), &args)
				}
				parts = append(parts, geminiPart{
					"functionCall": map[string]any{
						"name": tc.Name,
						"args": args,
					},
				})
			}
			if len(parts) > 0 {
				out.Contents = append(out.Contents, geminiContent{Role: "model", Parts: parts})
			}

		case RoleTool:
			out.Contents = append(out.Contents, geminiContent{
				Role: "user",
				Parts: []geminiPart{{
					"functionResponse": map[string]any{
						"name":     msg.Name,
						"response": map[string]any{"content": msg.Content},
					},
				}},
			})

		default:
			out.Contents = append(out.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{"text": msg.Content}},
			})
		}
	}

	// Gemini has no "none" tool choice; omitting declarations disables
	// function calling.
	if req.ToolChoice != ToolChoiceNone && len(req.Tools) > 0 {
		set := geminiToolSet{}
		for _, tool := range req.Tools {
			set.FunctionDeclarations = append(set.FunctionDeclarations, geminiFunctionDecl{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			})
		}
		out.Tools = []geminiToolSet{set}
	}

	return out
}

func (p *GeminiProvider) post(ctx context.Context, body geminiRequest, stream bool) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, NewError("gemini", "marshal request", "encoding failed", err)
	}

	method := "generateContent"
	suffix := ""
	if stream {
		method = "streamGenerateContent"
		suffix = "&alt=sse"
	}
	url := fmt.Sprintf("%s/models/%s:%s?key=%s%s", p.config.BaseURL, p.config.Model, method, p.config.APIKey, suffix)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, NewError("gemini", "build request", "invalid request", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if resp != nil && resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, NewStatusError("gemini", "generate content", resp.StatusCode, string(body))
	}
	if err != nil {
		return nil, NewError("gemini", "generate content", "request failed", err)
	}
	return resp, nil
}

// Generate performs one non-streaming completion.
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := p.post(ctx, p.buildRequest(req), false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, NewError("gemini", "generate content", "failed to parse response", err)
	}
	if parsed.Error != nil {
		return nil, NewError("gemini", "generate content", parsed.Error.Message, nil)
	}
	if len(parsed.Candidates) == 0 {
		return nil, NewError("gemini", "generate content", "response contained no candidates", nil)
	}

	out := &Response{}
	for _, part := range parsed.Candidates[0].Content.Parts {
		if text, ok := part["text"].(string); ok {
			out.Text += text
		}
		if call := functionCallFromPart(part); call != nil {
			out.ToolCalls = append(out.ToolCalls, *call)
		}
	}
	if parsed.UsageMetadata != nil {
		out.Tokens = parsed.UsageMetadata.TotalTokenCount
	}
	return out, nil
}

// GenerateStreaming opens a streaming completion.
func (p *GeminiProvider) GenerateStreaming(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	resp, err := p.post(ctx, p.buildRequest(req), true)
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

func (p *GeminiProvider) decodeStream(ctx context.Context, body io.Reader, ch chan<- StreamChunk) error {
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
		if len(line) < 6 || line[:6] != "data: " {
			continue
		}

		var chunk geminiResponse
		if err := json.Unmarshal([]byte(line[6:]), &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return NewError("gemini", "stream", chunk.Error.Message, nil)
		}
		if chunk.UsageMetadata != nil {
			totalTokens = chunk.UsageMetadata.TotalTokenCount
		}
		if len(chunk.Candidates) == 0 {
			continue
		}

		for _, part := range chunk.Candidates[0].Content.Parts {
			if text, ok := part["text"].(string); ok && text != "" {
				ch <- StreamChunk{Type: ChunkText, Text: text}
			}
			if call := functionCallFromPart(part); call != nil {
				// Gemini delivers function calls whole, not as
				// fragments; one delta carries the full arguments.
				ch <- StreamChunk{Type: ChunkToolCallDelta, Delta: &ToolCallDelta{
					ID:        call.ID,
					Name:      call.Name,
					Arguments: call.Arguments,
				}}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return NewError("gemini", "stream read", "stream aborted", err)
	}

	ch <- StreamChunk{Type: ChunkDone, Tokens: totalTokens}
	return nil
}

// functionCallFromPart extracts a tool call from a functionCall part,
// synthesizing an id since Gemini does not supply one.
func functionCallFromPart(part geminiPart) *ToolCall {
	fc, ok := part["functionCall"].(map[string]any)
	if !ok {
		return nil
	}
	name, _ := fc["name"].(string)
	if name == "" {
		return nil
	}
	args := ""
	if rawArgs, ok := fc["args"]; ok {
		if encoded, err := json.Marshal(rawArgs); err == nil {
			args = string(encoded)
		}
	}
	return &ToolCall{
		ID:        "call_" + uuid.NewString(),
		Name:      name,
		Arguments: args,
	}
}
