// Package databases provides vector-store providers behind a single
// narrow search contract. The retrieval pipeline only ever needs
// "search this collection with this vector, give me the top hits", so
// the Provider interface stays deliberately small; ingestion lives in a
// separate service and is out of scope here.
package databases

import (
	"context"
	"fmt"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/registry"
)

// SearchResult is one hit from a vector search. Distance is the raw
// metric the store reported, normalized so that smaller means more
// similar. Providers that report cosine similarity convert it to
// 1 - similarity before returning.
type SearchResult struct {
	ID       string
	Text     string
	Distance float64
	Metadata map[string]any
}

// Provider is the narrow search contract the retrieval core consumes.
type Provider interface {
	// Search returns the top matches for vector in collection, ordered
	// by ascending distance.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]SearchResult, error)

	// Close releases network connections or flushes persistence.
	Close() error
}

// NewProviderFromConfig builds a provider for the configured store type.
func NewProviderFromConfig(cfg *config.DatabaseConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is nil")
	}

	switch cfg.Type {
	case config.VectorDBMilvus:
		return NewMilvusProvider(cfg)
	case config.VectorDBQdrant:
		return NewQdrantProvider(cfg)
	case config.VectorDBChromem:
		return NewChromemProvider(cfg)
	case config.VectorDBPinecone:
		return NewPineconeProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// Registry holds named database providers.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Provider](),
	}
}

// CreateFromConfig builds a provider from config and registers it under
// name.
func (r *Registry) CreateFromConfig(name string, cfg *config.DatabaseConfig) (Provider, error) {
	provider, err := NewProviderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database %q: %w", name, err)
	}

	if err := r.Register(name, provider); err != nil {
		_ = provider.Close()
		return nil, err
	}

	return provider, nil
}

// Close closes all registered providers, keeping the first error.
func (r *Registry) Close() error {
	var firstErr error
	for _, name := range r.Names() {
		if provider, ok := r.Get(name); ok {
			if err := provider.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("failed to close database %q: %w", name, err)
			}
		}
	}
	r.Clear()
	return firstErr
}
