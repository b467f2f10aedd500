package config

import (
	"fmt"
	"time"
)

// ServerConfig configures the HTTP listener shared by the chat and
// retrieval services.
type ServerConfig struct {
	// Host to bind. Default "0.0.0.0".
	Host string `yaml:"host,omitempty"`

	// Port to listen on. Default 8080 (chat) unless overridden; the
	// retrieval command overrides with its own flag default.
	Port int `yaml:"port,omitempty"`

	// ReadTimeout bounds request header+body reads.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty"`

	// IdleTimeout bounds keep-alive idle connections.
	IdleTimeout time.Duration `yaml:"idle_timeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`

	// AllowedOrigins for CORS. Empty means same-origin only.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// SetDefaults applies default values.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	// No WriteTimeout: SSE streams stay open for the life of a chat turn.
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", c.Port)
	}
	return nil
}

// Address returns the host:port listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default "info".
	Level string `yaml:"level,omitempty"`

	// Format is one of simple, verbose, text. Default "simple".
	Format string `yaml:"format,omitempty"`

	// File is an optional log file path; empty logs to stderr.
	File string `yaml:"file,omitempty"`
}

// SetDefaults applies default values.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Validate checks the logging configuration.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid level %q (valid: debug, info, warn, error)", c.Level)
	}
	switch c.Format {
	case "", "simple", "verbose", "text":
	default:
		return fmt.Errorf("invalid format %q (valid: simple, verbose, text)", c.Format)
	}
	return nil
}
