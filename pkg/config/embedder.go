package config

import (
	"fmt"
	"time"
)

// EmbedderType identifies the embedding-provider family.
type EmbedderType string

const (
	EmbedderOpenAI EmbedderType = "openai"
	EmbedderOllama EmbedderType = "ollama"
)

// EmbedderConfig configures one named query embedder. Retrieval pipelines
// reference entries by name and may override the model per pipeline.
type EmbedderConfig struct {
	// Type selects the family (openai for any OpenAI-compatible endpoint,
	// ollama for a local Ollama server).
	Type EmbedderType `yaml:"type,omitempty"`

	// BaseURL of the embedding endpoint.
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKey for authentication. Optional for local endpoints.
	APIKey string `yaml:"api_key,omitempty"`

	// Model is the default embedding model.
	Model string `yaml:"model,omitempty"`

	// Dimension of produced vectors. Informational; stores that need it
	// read it from here.
	Dimension int `yaml:"dimension,omitempty"`

	// Timeout per embed request.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// MaxRetries for transient HTTP failures.
	MaxRetries int `yaml:"max_retries,omitempty"`
}

// SetDefaults applies default values.
func (c *EmbedderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = EmbedderOpenAI
	}
	if c.BaseURL == "" {
		switch c.Type {
		case EmbedderOpenAI:
			c.BaseURL = "https://api.openai.com/v1"
		case EmbedderOllama:
			c.BaseURL = "http://localhost:11434"
		}
	}
	if c.Model == "" {
		switch c.Type {
		case EmbedderOpenAI:
			c.Model = "text-embedding-3-small"
		case EmbedderOllama:
			c.Model = "nomic-embed-text"
		}
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Validate checks the embedder configuration.
func (c *EmbedderConfig) Validate() error {
	switch c.Type {
	case EmbedderOpenAI, EmbedderOllama:
	default:
		return fmt.Errorf("invalid type %q (valid: openai, ollama)", c.Type)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Dimension < 0 {
		return fmt.Errorf("dimension must be non-negative")
	}
	return nil
}
