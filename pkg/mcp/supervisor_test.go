package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// TestHelperProcess is re-executed as a subprocess by the supervisor
// tests and acts as a framed JSON-RPC tool server on stdin/stdout. It
// is not a test on its own.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("MCP_TEST_SERVER") != "1" {
		t.Skip("helper process only")
	}

	reader := newFrameReader(os.Stdin)
	writer := newFrameWriter(os.Stdout)

	respond := func(id *int64, result any) {
		payload, _ := json.Marshal(map[string]any{
			"jsonrpc": "2.0",
			"id":      id,
			"result":  result,
		})
		_ = writer.WriteFrame(payload)
	}

	for {
		payload, err := reader.ReadFrame()
		if err != nil {
			os.Exit(0)
		}

		var req rawRequest
		if json.Unmarshal(payload, &req) != nil {
			continue
		}

		switch req.Method {
		case "initialize":
			respond(req.ID, map[string]any{
				"protocolVersion": protocolVersion,
				"serverInfo":      map[string]any{"name": "helper", "version": "0.0.1"},
			})
		case "notifications/initialized":
		case "ping":
			respond(req.ID, map[string]any{})
		case "tools/list":
			respond(req.ID, map[string]any{
				"tools": []map[string]any{
					{"name": "echo", "description": "echoes input"},
					{"name": "die", "description": "kills the server"},
				},
			})
		case "tools/call":
			var params callToolParams
			_ = json.Unmarshal(req.Params, &params)
			switch params.Name {
			case "die":
				os.Exit(1)
			default:
				respond(req.ID, map[string]any{
					"content": []map[string]any{
						{"type": "text", "text": params.Arguments["message"]},
					},
				})
			}
		}
	}
}

func helperServerConfig() config.StdioServerConfig {
	return config.StdioServerConfig{
		Command:              os.Args[0],
		Args:                 []string{"-test.run=TestHelperProcess"},
		Env:                  map[string]string{"MCP_TEST_SERVER": "1"},
		CallTimeout:          10 * time.Second,
		MaxReconnectAttempts: 3,
		ReconnectDelay:       20 * time.Millisecond,
	}
}

func TestSupervisorConnectAndCall(t *testing.T) {
	sup := NewSupervisor("helper", helperServerConfig())
	defer sup.Close()

	ctx := context.Background()
	require.NoError(t, sup.Connect(ctx))

	tools := sup.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "echo", tools[0].Name)

	text, err := sup.CallTool(ctx, "echo", map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", text)

	assert.True(t, sup.HealthCheck(ctx))
}

func TestSupervisorReconnectAfterServerDeath(t *testing.T) {
	sup := NewSupervisor("helper", helperServerConfig())
	defer sup.Close()

	ctx := context.Background()
	require.NoError(t, sup.Connect(ctx))

	// The server exits mid-call; every retry kills the fresh server
	// again, so the reconnect budget runs out.
	_, err := sup.CallTool(ctx, "die", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)

	// The next call re-enters the connect path and succeeds. The tool
	// list comes from the first connect's cache.
	text, err := sup.CallTool(ctx, "echo", map[string]any{"message": "back"})
	require.NoError(t, err)
	assert.Equal(t, "back", text)
	assert.Len(t, sup.Tools(), 2)
}

func TestSupervisorCloseIdempotent(t *testing.T) {
	sup := NewSupervisor("helper", helperServerConfig())
	require.NoError(t, sup.Connect(context.Background()))

	require.NoError(t, sup.Close())
	require.NoError(t, sup.Close())

	_, err := sup.CallTool(context.Background(), "echo", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSupervisorStartFailure(t *testing.T) {
	cfg := helperServerConfig()
	cfg.Command = "/nonexistent/tool-server"
	cfg.MaxReconnectAttempts = 1
	sup := NewSupervisor("missing", cfg)
	defer sup.Close()

	err := sup.Connect(context.Background())
	require.Error(t, err)
}

func TestSupervisorRejectsShellMetacharacters(t *testing.T) {
	cfg := helperServerConfig()
	cfg.Command = "sh -c 'echo hi'"
	sup := NewSupervisor("bad", cfg)
	defer sup.Close()

	err := sup.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shell metacharacters")
}

func TestManagerRoutesAndAggregates(t *testing.T) {
	mgr := NewManager(map[string]config.StdioServerConfig{
		"helper": helperServerConfig(),
	})
	defer func() { _ = mgr.Shutdown() }()

	ctx := context.Background()
	require.NoError(t, mgr.Start(ctx))

	tools := mgr.ListTools()
	require.Len(t, tools, 2)
	assert.Equal(t, "die", tools[0].Name)
	assert.Equal(t, "echo", tools[1].Name)

	text, err := mgr.CallTool(ctx, "echo", map[string]any{"message": "routed"})
	require.NoError(t, err)
	assert.Equal(t, "routed", text)

	_, err = mgr.CallTool(ctx, "unknown", nil)
	require.Error(t, err)

	health := mgr.HealthCheck(ctx)
	assert.True(t, health["helper"])
}

func TestIsConnectionClosedClassification(t *testing.T) {
	assert.False(t, isConnectionClosed(nil))
	assert.False(t, isConnectionClosed(errors.New("tool exploded")))
	assert.True(t, isConnectionClosed(errors.New("write |1: broken pipe")))
	assert.True(t, isConnectionClosed(os.ErrClosed))
}
