package databases

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// ChromemProvider is an embedded, pure-Go vector store. It keeps
// everything in process memory (optionally persisted to disk), which
// makes it the provider of choice for local development and tests;
// production deployments point at Milvus or Qdrant instead.
type ChromemProvider struct {
	db          *chromem.DB
	persistPath string

	mu          sync.RWMutex
	collections map[string]*chromem.Collection

	embeddingFunc chromem.EmbeddingFunc
}

func NewChromemProvider(cfg *config.DatabaseConfig) (*ChromemProvider, error) {
	var db *chromem.DB
	var err error

	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}
		db, err = chromem.NewPersistentDB(filepath.Join(cfg.Path, "vectors.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector database: %w", err)
		}
		slog.Info("Opened persistent vector database", "path", cfg.Path)
	} else {
		db = chromem.NewDB()
		slog.Debug("Created in-memory vector database")
	}

	// Vectors arrive pre-computed from the embedders package; chromem
	// must never be asked to embed text itself.
	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding function called but vectors are pre-computed")
	}

	return &ChromemProvider{
		db:            db,
		persistPath:   cfg.Path,
		collections:   make(map[string]*chromem.Collection),
		embeddingFunc: identityEmbed,
	}, nil
}

func (p *ChromemProvider) getCollection(name string) (*chromem.Collection, error) {
	p.mu.RLock()
	if col, ok := p.collections[name]; ok {
		p.mu.RUnlock()
		return col, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if col, ok := p.collections[name]; ok {
		return col, nil
	}

	col, err := p.db.GetOrCreateCollection(name, nil, p.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", name, err)
	}

	p.collections[name] = col
	return col, nil
}

// Upsert stores a document with its pre-computed embedding. Not part of
// the Provider contract; used by local seeding and tests.
func (p *ChromemProvider) Upsert(ctx context.Context, collection string, id string, text string, vector []float32, metadata map[string]any) error {
	col, err := p.getCollection(collection)
	if err != nil {
		return err
	}

	strMetadata := make(map[string]string, len(metadata))
	for k, v := range metadata {
		strMetadata[k] = fmt.Sprint(v)
	}

	doc := chromem.Document{
		ID:        id,
		Content:   text,
		Metadata:  strMetadata,
		Embedding: vector,
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	return nil
}

func (p *ChromemProvider) Search(ctx context.Context, collection string, vector []float32, limit int) ([]SearchResult, error) {
	col, err := p.getCollection(collection)
	if err != nil {
		return nil, err
	}

	// chromem refuses queries asking for more results than the
	// collection holds.
	if count := col.Count(); limit > count {
		limit = count
	}
	if limit == 0 {
		return nil, nil
	}

	hits, err := col.QueryEmbedding(ctx, vector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		metadata := make(map[string]any, len(hit.Metadata))
		for k, v := range hit.Metadata {
			metadata[k] = v
		}

		// chromem reports cosine similarity; convert to a distance.
		results = append(results, SearchResult{
			ID:       hit.ID,
			Text:     hit.Content,
			Distance: 1 - float64(hit.Similarity),
			Metadata: metadata,
		})
	}

	return results, nil
}

func (p *ChromemProvider) Close() error {
	return nil
}
