package mcp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// Supervisor owns one stdio tool-server session: connect, handshake,
// timed calls, bounded reconnection, shutdown. All state transitions
// happen under one lock; the wire call itself runs outside the lock so
// concurrent calls can pipeline over the session.
type Supervisor struct {
	name   string
	cfg    config.StdioServerConfig
	logger *slog.Logger

	mu        sync.Mutex
	transport *transport
	client    *Client
	connected bool
	closed    bool

	// tools is fetched on the first successful connect and reused
	// across reconnects.
	tools       []Tool
	toolsCached bool
}

func NewSupervisor(name string, cfg config.StdioServerConfig) *Supervisor {
	cfg.SetDefaults()
	return &Supervisor{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "mcp", "server", name),
	}
}

// Connect establishes the session and, on first connect, fetches the
// tool list.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.ensureConnectedLocked(ctx)
	return err
}

// ensureConnectedLocked returns a live client, establishing the session
// if needed. Caller holds s.mu.
func (s *Supervisor) ensureConnectedLocked(ctx context.Context) (*Client, error) {
	if s.closed {
		return nil, newError(s.name, "connect", "supervisor closed", ErrClosed)
	}
	if s.connected {
		return s.client, nil
	}

	transport, err := startTransport(s.name, s.cfg, s.logger)
	if err != nil {
		return nil, newError(s.name, "connect", "failed to start tool server", err)
	}

	client := NewClient(transport.stdin, transport.stdout)

	handshakeCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	if err := client.Initialize(handshakeCtx); err != nil {
		client.Close()
		transport.Close()
		return nil, newError(s.name, "connect", "handshake failed", err)
	}

	if !s.toolsCached {
		tools, err := client.ListTools(handshakeCtx)
		if err != nil {
			client.Close()
			transport.Close()
			return nil, newError(s.name, "connect", "failed to list tools", err)
		}
		s.tools = tools
		s.toolsCached = true
		s.logger.Info("Connected to tool server", "tools", len(tools))
	} else {
		s.logger.Info("Reconnected to tool server")
	}

	s.transport = transport
	s.client = client
	s.connected = true

	// Flip to disconnected the moment the subprocess dies so the next
	// call re-enters the connect path.
	go func() {
		<-transport.Exited()
		client.Close()
		s.mu.Lock()
		if s.transport == transport {
			s.connected = false
		}
		s.mu.Unlock()
	}()

	return client, nil
}

// markDisconnected tears down the current session. A later call will
// reconnect.
func (s *Supervisor) markDisconnected() {
	s.mu.Lock()
	transport, client := s.transport, s.client
	s.transport, s.client = nil, nil
	s.connected = false
	s.mu.Unlock()

	if client != nil {
		client.Close()
	}
	if transport != nil {
		transport.Close()
	}
}

// CallTool runs one tool call with the configured wall-clock timeout.
// A timeout does not poison the session. Connection-closed errors tear
// the session down and retry up to MaxReconnectAttempts with a short
// delay; past the cap the call fails with ErrConnectionFailed. Other
// errors propagate unchanged.
func (s *Supervisor) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	for attempt := 0; ; attempt++ {
		s.mu.Lock()
		client, err := s.ensureConnectedLocked(ctx)
		s.mu.Unlock()
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return "", err
			}
			if isConnectionClosed(err) || attempt > 0 {
				if attempt >= s.cfg.MaxReconnectAttempts {
					return "", newError(s.name, "tools/call", "reconnect budget exhausted", ErrConnectionFailed)
				}
				time.Sleep(s.cfg.ReconnectDelay)
				continue
			}
			return "", err
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		result, err := client.CallTool(callCtx, name, args)
		cancel()

		switch {
		case err == nil:
			return result, nil
		case callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
			return "", newError(s.name, "tools/call", "call timed out", context.DeadlineExceeded)
		case isConnectionClosed(err):
			s.logger.Warn("Tool server connection lost", "tool", name, "error", err)
			s.markDisconnected()
			if attempt >= s.cfg.MaxReconnectAttempts {
				return "", newError(s.name, "tools/call", "reconnect budget exhausted", ErrConnectionFailed)
			}
			time.Sleep(s.cfg.ReconnectDelay)
		default:
			return "", err
		}
	}
}

// Tools returns the cached tool descriptors from the first connect.
func (s *Supervisor) Tools() []Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tools
}

// HealthCheck pings the session; false means the session is down or
// unresponsive.
func (s *Supervisor) HealthCheck(ctx context.Context) bool {
	s.mu.Lock()
	client := s.client
	connected := s.connected
	s.mu.Unlock()

	if !connected {
		return false
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return client.Ping(pingCtx) == nil
}

// Close shuts the session down. Idempotent; teardown errors are
// swallowed.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	transport, client := s.transport, s.client
	s.transport, s.client = nil, nil
	s.connected = false
	s.mu.Unlock()

	if client != nil {
		client.Close()
	}
	if transport != nil {
		transport.Close()
	}
	return nil
}
