package llms

import (
	"context"
	"fmt"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/registry"
)

// Provider is the narrow interface the orchestrator, query rewriter, and
// LLM filter consume.
type Provider interface {
	// Generate performs one non-streaming completion.
	Generate(ctx context.Context, req Request) (*Response, error)

	// GenerateStreaming opens a streaming completion. The channel closes
	// after a done or error chunk.
	GenerateStreaming(ctx context.Context, req Request) (<-chan StreamChunk, error)

	// ModelName reports the configured model.
	ModelName() string

	Close() error
}

// Registry holds the configured providers by name.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

// NewProviderFromConfig builds a provider without registering it. The
// admin surface uses this for live provider/model switches.
func NewProviderFromConfig(cfg *config.LLMProviderConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("provider config cannot be nil")
	}
	switch cfg.Type {
	case config.LLMProviderOpenAI:
		return NewOpenAIProviderFromConfig(cfg)
	case config.LLMProviderAnthropic:
		return NewAnthropicProviderFromConfig(cfg)
	case config.LLMProviderGemini:
		return NewGeminiProviderFromConfig(cfg)
	case config.LLMProviderOllama:
		return NewOllamaProviderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM type %q (supported: openai, anthropic, gemini, ollama)", cfg.Type)
	}
}

// CreateFromConfig builds a provider from config and registers it under
// name.
func (r *Registry) CreateFromConfig(name string, cfg *config.LLMProviderConfig) (Provider, error) {
	if name == "" {
		return nil, fmt.Errorf("provider name cannot be empty")
	}

	provider, err := NewProviderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider %q: %w", name, err)
	}

	if err := r.Register(name, provider); err != nil {
		return nil, fmt.Errorf("failed to register LLM provider: %w", err)
	}
	return provider, nil
}

// GetProvider returns the named provider or an error.
func (r *Registry) GetProvider(name string) (Provider, error) {
	provider, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("llm provider %q not found", name)
	}
	return provider, nil
}

// Close closes every registered provider.
func (r *Registry) Close() error {
	var firstErr error
	for _, provider := range r.List() {
		if err := provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
