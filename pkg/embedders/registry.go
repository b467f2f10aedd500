// Package embedders provides the query embedders the retrieval service
// fans out across: an OpenAI-compatible HTTP embedder and an Ollama
// embedder, behind one interface.
package embedders

import (
	"context"
	"fmt"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/registry"
)

// Embedder turns text into a vector. A non-empty model overrides the
// configured default, letting one endpoint serve several pipeline models.
type Embedder interface {
	Embed(ctx context.Context, text, model string) ([]float32, error)
	DefaultModel() string
	Dimension() int
	Close() error
}

// Registry holds the configured embedders by name.
type Registry struct {
	*registry.BaseRegistry[Embedder]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Embedder]()}
}

// CreateFromConfig builds an embedder from config and registers it under
// name.
func (r *Registry) CreateFromConfig(name string, cfg *config.EmbedderConfig) (Embedder, error) {
	if name == "" {
		return nil, fmt.Errorf("embedder name cannot be empty")
	}
	if cfg == nil {
		return nil, fmt.Errorf("embedder config cannot be nil")
	}

	var embedder Embedder
	var err error
	switch cfg.Type {
	case config.EmbedderOpenAI:
		embedder, err = NewOpenAIEmbedderFromConfig(cfg)
	case config.EmbedderOllama:
		embedder, err = NewOllamaEmbedderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedder type %q (supported: openai, ollama)", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder %q: %w", name, err)
	}

	if err := r.Register(name, embedder); err != nil {
		return nil, fmt.Errorf("failed to register embedder: %w", err)
	}
	return embedder, nil
}

// GetEmbedder returns the named embedder or an error.
func (r *Registry) GetEmbedder(name string) (Embedder, error) {
	embedder, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("embedder %q not found", name)
	}
	return embedder, nil
}

// Close closes every registered embedder.
func (r *Registry) Close() error {
	var firstErr error
	for _, embedder := range r.List() {
		if err := embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
