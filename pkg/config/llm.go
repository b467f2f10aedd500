package config

import (
	"fmt"
	"os"
	"time"
)

// LLMProviderType identifies the LLM provider family.
type LLMProviderType string

const (
	LLMProviderOpenAI    LLMProviderType = "openai"
	LLMProviderAnthropic LLMProviderType = "anthropic"
	LLMProviderGemini    LLMProviderType = "gemini"
	LLMProviderOllama    LLMProviderType = "ollama"
)

// LLMProviderConfig configures one named LLM provider. Providers live in a
// map under the top-level "llms" key; the agent, query rewriter, and LLM
// filter reference them by name.
type LLMProviderConfig struct {
	// Type selects the provider family (openai, anthropic, gemini, ollama).
	Type LLMProviderType `yaml:"type,omitempty"`

	// Model name, e.g. "gpt-4o" or "claude-sonnet-4-20250514".
	Model string `yaml:"model,omitempty"`

	// APIKey for authentication. Supports ${VAR} and env:VAR interpolation.
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL overrides the default API endpoint. Required for ollama and
	// OpenAI-compatible gateways.
	BaseURL string `yaml:"base_url,omitempty"`

	// Temperature for generation.
	Temperature *float64 `yaml:"temperature,omitempty"`

	// MaxTokens limits response length.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// Timeout for a single request, streaming included.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// MaxRetries for transient HTTP failures.
	MaxRetries int `yaml:"max_retries,omitempty"`
}

// SetDefaults applies default values.
func (c *LLMProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = LLMProviderOpenAI
	}

	if c.Model == "" {
		switch c.Type {
		case LLMProviderOpenAI:
			c.Model = "gpt-4o"
		case LLMProviderAnthropic:
			c.Model = "claude-sonnet-4-20250514"
		case LLMProviderGemini:
			c.Model = "gemini-2.0-flash"
		case LLMProviderOllama:
			c.Model = "llama3.2"
		}
	}

	if c.APIKey == "" {
		c.APIKey = apiKeyFromEnv(c.Type)
	}

	if c.BaseURL == "" {
		switch c.Type {
		case LLMProviderOpenAI:
			c.BaseURL = "https://api.openai.com/v1"
		case LLMProviderAnthropic:
			c.BaseURL = "https://api.anthropic.com"
		case LLMProviderGemini:
			c.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
		case LLMProviderOllama:
			c.BaseURL = "http://localhost:11434"
		}
	}

	if c.Temperature == nil {
		temp := 0.7
		c.Temperature = &temp
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Validate checks the provider configuration.
func (c *LLMProviderConfig) Validate() error {
	switch c.Type {
	case LLMProviderOpenAI, LLMProviderAnthropic, LLMProviderGemini, LLMProviderOllama:
	default:
		return fmt.Errorf("invalid type %q (valid: openai, anthropic, gemini, ollama)", c.Type)
	}

	if c.Model == "" {
		return fmt.Errorf("model is required")
	}

	// Ollama and local OpenAI-compatible gateways run without keys.
	if c.APIKey == "" && c.Type != LLMProviderOllama && !isLocalURL(c.BaseURL) {
		return fmt.Errorf("api_key is required for provider type %q", c.Type)
	}

	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", *c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}

	return nil
}

func apiKeyFromEnv(t LLMProviderType) string {
	switch t {
	case LLMProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case LLMProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case LLMProviderGemini:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return ""
	}
}

func isLocalURL(u string) bool {
	for _, prefix := range []string{"http://localhost", "http://127.0.0.1", "http://[::1]", "http://0.0.0.0"} {
		if len(u) >= len(prefix) && u[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
