package config

import (
	"fmt"
	"time"
)

// ToolsConfig configures the function registry, the executor, and the tool
// sources (built-in, stdio servers, MCP-over-HTTP servers).
type ToolsConfig struct {
	// StatePath persists the enabled set and per-function config as YAML.
	// Empty disables persistence.
	StatePath string `yaml:"state_path,omitempty"`

	// MaxParallel bounds concurrent tool executions within one batch.
	MaxParallel int `yaml:"max_parallel,omitempty"`

	// Local configures the built-in tools.
	Local LocalToolsConfig `yaml:"local,omitempty"`

	// Stdio maps server name to a stdio tool-server definition.
	Stdio map[string]StdioServerConfig `yaml:"stdio,omitempty"`

	// HTTP maps server name to an MCP-over-HTTP endpoint.
	HTTP map[string]HTTPServerConfig `yaml:"http,omitempty"`
}

// LocalToolsConfig configures the built-in tools.
type LocalToolsConfig struct {
	// FAQPath points at the YAML FAQ document for faq_search. Empty
	// disables the tool.
	FAQPath string `yaml:"faq_path,omitempty"`

	// KnowledgeSearch enables the knowledge_search tool backed by the RAG
	// pipeline. Requires rag to be configured.
	KnowledgeSearch *bool `yaml:"knowledge_search,omitempty"`

	// CurrentTime enables the current_time tool.
	CurrentTime *bool `yaml:"current_time,omitempty"`
}

// StdioServerConfig defines one out-of-process tool server spoken to over
// length-prefixed JSON-RPC on stdin/stdout.
type StdioServerConfig struct {
	// Command is the executable to spawn. No shell interpretation; see
	// Args for arguments.
	Command string `yaml:"command"`

	// Args passed to the command.
	Args []string `yaml:"args,omitempty"`

	// Env adds variables on top of the inherited environment.
	Env map[string]string `yaml:"env,omitempty"`

	// WorkDir sets the working directory. Empty inherits.
	WorkDir string `yaml:"work_dir,omitempty"`

	// CallTimeout bounds a single tools/call round trip.
	CallTimeout time.Duration `yaml:"call_timeout,omitempty"`

	// MaxReconnectAttempts bounds reconnects after a connection loss.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts,omitempty"`

	// ReconnectDelay between reconnect attempts.
	ReconnectDelay time.Duration `yaml:"reconnect_delay,omitempty"`
}

// HTTPServerConfig defines one remote MCP server reachable over streamable
// HTTP.
type HTTPServerConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout time.Duration     `yaml:"timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *ToolsConfig) SetDefaults() {
	if c.MaxParallel == 0 {
		c.MaxParallel = 4
	}
	if c.Local.KnowledgeSearch == nil {
		c.Local.KnowledgeSearch = BoolPtr(true)
	}
	if c.Local.CurrentTime == nil {
		c.Local.CurrentTime = BoolPtr(true)
	}
	for name, srv := range c.Stdio {
		srv.SetDefaults()
		c.Stdio[name] = srv
	}
	for name, srv := range c.HTTP {
		if srv.Timeout == 0 {
			srv.Timeout = 30 * time.Second
		}
		c.HTTP[name] = srv
	}
}

// SetDefaults applies default values.
func (c *StdioServerConfig) SetDefaults() {
	if c.CallTimeout == 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 3
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 500 * time.Millisecond
	}
}

// Validate checks the tools configuration.
func (c *ToolsConfig) Validate() error {
	if c.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be at least 1")
	}
	for name, srv := range c.Stdio {
		if srv.Command == "" {
			return fmt.Errorf("stdio.%s: command is required", name)
		}
		if srv.MaxReconnectAttempts < 0 {
			return fmt.Errorf("stdio.%s: max_reconnect_attempts must be non-negative", name)
		}
	}
	for name, srv := range c.HTTP {
		if srv.URL == "" {
			return fmt.Errorf("http.%s: url is required", name)
		}
	}
	return nil
}
