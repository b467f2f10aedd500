package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// Manager owns one supervisor per configured stdio tool server and
// routes tool calls by tool name.
type Manager struct {
	supervisors map[string]*Supervisor
	logger      *slog.Logger

	mu      sync.RWMutex
	routing map[string]*Supervisor
}

func NewManager(servers map[string]config.StdioServerConfig) *Manager {
	m := &Manager{
		supervisors: make(map[string]*Supervisor, len(servers)),
		routing:     make(map[string]*Supervisor),
		logger:      slog.Default().With("component", "mcp"),
	}
	for name, cfg := range servers {
		m.supervisors[name] = NewSupervisor(name, cfg)
	}
	return m
}

// Start connects every supervisor concurrently. A server that fails to
// come up fails the whole start; partial startups are torn down by the
// caller via Shutdown.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for name, sup := range m.supervisors {
		g.Go(func() error {
			if err := sup.Connect(ctx); err != nil {
				return fmt.Errorf("tool server %q: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for name, sup := range m.supervisors {
		for _, tool := range sup.Tools() {
			if existing, ok := m.routing[tool.Name]; ok {
				m.logger.Warn("Duplicate tool name across servers",
					"tool", tool.Name, "server", name, "kept", existing.name)
				continue
			}
			m.routing[tool.Name] = sup
		}
	}
	return nil
}

// ListTools aggregates the cached descriptors of all servers, sorted by
// name for stable output.
func (m *Manager) ListTools() []Tool {
	var tools []Tool
	for _, sup := range m.supervisors {
		tools = append(tools, sup.Tools()...)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// CallTool routes the call to the server that advertised the tool.
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	m.mu.RLock()
	sup, ok := m.routing[name]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no tool server provides %q", name)
	}
	return sup.CallTool(ctx, name, args)
}

// HealthCheck reports per-server liveness.
func (m *Manager) HealthCheck(ctx context.Context) map[string]bool {
	health := make(map[string]bool, len(m.supervisors))
	for name, sup := range m.supervisors {
		health[name] = sup.HealthCheck(ctx)
	}
	return health
}

// Shutdown closes every supervisor. Idempotent.
func (m *Manager) Shutdown() error {
	var firstErr error
	for name, sup := range m.supervisors {
		if err := sup.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close tool server %q: %w", name, err)
		}
	}
	return firstErr
}
