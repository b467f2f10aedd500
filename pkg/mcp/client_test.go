package mcp

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers framed JSON-RPC requests from a pipe pair.
type fakeServer struct {
	reader *frameReader
	writer *frameWriter
}

type rawRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

func newClientServerPair(t *testing.T, handle func(*fakeServer, rawRequest)) *Client {
	t.Helper()

	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()

	srv := &fakeServer{
		reader: newFrameReader(serverIn),
		writer: newFrameWriter(serverOut),
	}
	go func() {
		for {
			payload, err := srv.reader.ReadFrame()
			if err != nil {
				return
			}
			var req rawRequest
			if json.Unmarshal(payload, &req) != nil {
				continue
			}
			handle(srv, req)
		}
	}()

	client := NewClient(clientOut, clientIn)
	t.Cleanup(func() {
		client.Close()
		clientOut.Close()
		serverOut.Close()
	})
	return client
}

func (s *fakeServer) respond(id *int64, result any) {
	payload, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
	_ = s.writer.WriteFrame(payload)
}

func (s *fakeServer) respondError(id *int64, code int, message string) {
	payload, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   map[string]any{"code": code, "message": message},
	})
	_ = s.writer.WriteFrame(payload)
}

func echoToolHandler(srv *fakeServer, req rawRequest) {
	switch req.Method {
	case "initialize":
		srv.respond(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]any{"name": "fake", "version": "0.1.0"},
		})
	case "notifications/initialized":
		// notification, no reply
	case "tools/list":
		srv.respond(req.ID, map[string]any{
			"tools": []map[string]any{
				{"name": "echo", "description": "echoes input"},
			},
		})
	case "tools/call":
		var params callToolParams
		_ = json.Unmarshal(req.Params, &params)
		if params.Name == "boom" {
			srv.respond(req.ID, map[string]any{
				"content": []map[string]any{{"type": "text", "text": "it broke"}},
				"isError": true,
			})
			return
		}
		srv.respond(req.ID, map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": params.Arguments["message"]},
			},
		})
	case "ping":
		srv.respond(req.ID, map[string]any{})
	default:
		srv.respondError(req.ID, -32601, "method not found")
	}
}

func TestClientHandshakeAndListTools(t *testing.T) {
	client := newClientServerPair(t, echoToolHandler)
	ctx := context.Background()

	require.NoError(t, client.Initialize(ctx))

	tools, err := client.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
}

func TestClientCallTool(t *testing.T) {
	client := newClientServerPair(t, echoToolHandler)

	text, err := client.CallTool(context.Background(), "echo", map[string]any{"message": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestClientCallToolIsError(t *testing.T) {
	client := newClientServerPair(t, echoToolHandler)

	_, err := client.CallTool(context.Background(), "boom", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "it broke")
}

func TestClientRPCError(t *testing.T) {
	client := newClientServerPair(t, echoToolHandler)

	_, err := client.Call(context.Background(), "nope", nil)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)
}

func TestClientCallTimeout(t *testing.T) {
	client := newClientServerPair(t, func(srv *fakeServer, req rawRequest) {
		// Never respond.
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Call(ctx, "slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientClosedStreamFailsPendingCalls(t *testing.T) {
	client := newClientServerPair(t, func(srv *fakeServer, req rawRequest) {
		// Never respond.
	})

	done := make(chan error, 1)
	go func() {
		_, err := client.Call(context.Background(), "hangs", nil)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	client.Close()

	select {
	case err := <-done:
		assert.True(t, isConnectionClosed(err), "expected connection-closed classification, got %v", err)
	case <-time.After(time.Second):
		t.Fatal("pending call did not unblock on close")
	}
}
