package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/mcp"
)

// RegisterStdioTools exposes every tool advertised by the stdio tool
// servers through the registry. The manager must already be started.
// Result text that parses as JSON is passed to the formatter as
// structured data so the shape-based framing rules apply.
func RegisterStdioTools(reg *Registry, manager *mcp.Manager) error {
	for _, tool := range manager.ListTools() {
		def := &Definition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  schemaFromRaw(tool.InputSchema),
			Source:      "stdio",
			Handler: func(ctx context.Context, args map[string]any, _ *CallContext) (any, error) {
				text, err := manager.CallTool(ctx, tool.Name, args)
				if err != nil {
					return nil, err
				}
				return parseResultText(text), nil
			},
		}
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("failed to register stdio tool %q: %w", tool.Name, err)
		}
	}
	return nil
}

// schemaFromRaw decodes a server-provided JSON schema, falling back to
// an accept-anything object on absence or parse failure.
func schemaFromRaw(raw json.RawMessage) map[string]any {
	if len(raw) > 0 {
		var schema map[string]any
		if json.Unmarshal(raw, &schema) == nil && len(schema) > 0 {
			return schema
		}
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// parseResultText interprets tool output: JSON objects and arrays
// become structured results, everything else stays verbatim text.
func parseResultText(text string) any {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var parsed any
		if json.Unmarshal([]byte(trimmed), &parsed) == nil {
			return parsed
		}
	}
	return text
}
