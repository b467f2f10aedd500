package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// HTTPSource connects to a remote MCP server over streamable HTTP and
// exposes its tools through the registry.
type HTTPSource struct {
	name   string
	client *mcpclient.Client
	logger *slog.Logger
}

// NewHTTPSource connects, performs the MCP handshake, and returns the
// source. Close releases the connection.
func NewHTTPSource(ctx context.Context, name string, cfg config.HTTPServerConfig) (*HTTPSource, error) {
	opts := []transport.StreamableHTTPCOption{}
	if len(cfg.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, transport.WithHTTPTimeout(cfg.Timeout))
	}

	client, err := mcpclient.NewStreamableHttpClient(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client for %q: %w", name, err)
	}

	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client for %q: %w", name, err)
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = "2024-11-05"
	initReq.Params.ClientInfo = mcpgo.Implementation{
		Name:    "travel-agent",
		Version: "1.0.0",
	}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize MCP server %q: %w", name, err)
	}

	return &HTTPSource{
		name:   name,
		client: client,
		logger: slog.Default().With("component", "tools", "mcp_http", name),
	}, nil
}

// RegisterTools lists the server's tools and registers a handler for
// each.
func (s *HTTPSource) RegisterTools(ctx context.Context, reg *Registry) error {
	listResp, err := s.client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list tools from %q: %w", s.name, err)
	}

	for _, tool := range listResp.Tools {
		def := &Definition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertInputSchema(tool.InputSchema),
			Source:      "http:" + s.name,
			Handler:     s.handlerFor(tool.Name),
		}
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("failed to register tool %q from %q: %w", tool.Name, s.name, err)
		}
	}

	s.logger.Info("Registered remote tools", "count", len(listResp.Tools))
	return nil
}

func (s *HTTPSource) handlerFor(toolName string) Handler {
	return func(ctx context.Context, args map[string]any, _ *CallContext) (any, error) {
		req := mcpgo.CallToolRequest{}
		req.Params.Name = toolName
		req.Params.Arguments = args

		resp, err := s.client.CallTool(ctx, req)
		if err != nil {
			return nil, newError(toolName, "remote call failed", err)
		}

		var texts []string
		for _, content := range resp.Content {
			if text, ok := content.(mcpgo.TextContent); ok {
				texts = append(texts, text.Text)
			}
		}
		combined := strings.Join(texts, "")

		if resp.IsError {
			return nil, newError(toolName, combined, nil)
		}
		return parseResultText(combined), nil
	}
}

func (s *HTTPSource) Close() error {
	return s.client.Close()
}

// convertInputSchema maps the mcp-go schema struct to the plain map
// shape the LLM providers expect.
func convertInputSchema(schema mcpgo.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var out map[string]any
	if json.Unmarshal(data, &out) != nil || len(out) == 0 {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return out
}
