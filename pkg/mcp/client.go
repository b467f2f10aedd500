package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

const protocolVersion = "2024-11-05"

// Tool is a tool descriptor as reported by a server's tools/list.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type initializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

type listToolsResult struct {
	Tools []Tool `json:"tools"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callToolResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// Client speaks length-prefixed JSON-RPC 2.0 over a pair of byte
// streams. It correlates responses by id; server notifications are
// ignored. The client owns neither stream; the transport closes them.
type Client struct {
	writer *frameWriter
	reader *frameReader

	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan *response
	closed  bool
	done    chan struct{}
}

// NewClient wires a client over the given streams and starts the read
// loop.
func NewClient(w io.Writer, r io.Reader) *Client {
	c := &Client{
		writer:  newFrameWriter(w),
		reader:  newFrameReader(r),
		pending: make(map[int64]chan *response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer c.failPending()

	for {
		payload, err := c.reader.ReadFrame()
		if err != nil {
			return
		}

		var resp response
		if err := json.Unmarshal(payload, &resp); err != nil || resp.ID == nil {
			// Notification or garbage; nothing to correlate.
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[*resp.ID]
		if ok {
			delete(c.pending, *resp.ID)
		}
		c.mu.Unlock()

		if ok {
			ch <- &resp
		}
	}
}

// failPending closes the client and unblocks every in-flight call.
func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// Close unblocks in-flight calls. Idempotent.
func (c *Client) Close() {
	c.failPending()
}

// Call sends a request and waits for the matching response. The
// context bounds the wait; a closed session surfaces as io.ErrClosedPipe
// so callers can classify it as a connection loss.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	respChan := make(chan *response, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, io.ErrClosedPipe
	}
	c.pending[id] = respChan
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	payload, err := json.Marshal(request{JSONRPC: "2.0", ID: &id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", method, err)
	}
	if err := c.writer.WriteFrame(payload); err != nil {
		return nil, err
	}

	select {
	case resp, ok := <-respChan:
		if !ok {
			return nil, io.ErrClosedPipe
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, io.ErrClosedPipe
	}
}

// Notify sends a notification; no response is expected.
func (c *Client) Notify(method string, params any) error {
	payload, err := json.Marshal(request{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to marshal %s notification: %w", method, err)
	}
	return c.writer.WriteFrame(payload)
}

// Initialize performs the protocol handshake.
func (c *Client) Initialize(ctx context.Context) error {
	result, err := c.Call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "travel-agent",
			"version": "1.0.0",
		},
	})
	if err != nil {
		return err
	}

	var init initializeResult
	if err := json.Unmarshal(result, &init); err != nil {
		return fmt.Errorf("failed to parse initialize result: %w", err)
	}

	return c.Notify("notifications/initialized", nil)
}

// ListTools fetches the server's tool descriptors.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	result, err := c.Call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}

	var list listToolsResult
	if err := json.Unmarshal(result, &list); err != nil {
		return nil, fmt.Errorf("failed to parse tools/list result: %w", err)
	}
	return list.Tools, nil
}

// CallTool invokes a tool and returns the concatenated text content.
// A result flagged isError comes back as an error carrying that text.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	result, err := c.Call(ctx, "tools/call", callToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}

	var call callToolResult
	if err := json.Unmarshal(result, &call); err != nil {
		return "", fmt.Errorf("failed to parse tools/call result: %w", err)
	}

	var sb strings.Builder
	for _, block := range call.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	if call.IsError {
		return "", fmt.Errorf("tool %s failed: %s", name, sb.String())
	}
	return sb.String(), nil
}

// Ping checks liveness using the protocol ping request.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Call(ctx, "ping", nil)
	return err
}
