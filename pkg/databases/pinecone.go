package databases

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// PineconeProvider searches a Pinecone index. The collection name maps
// to the Pinecone namespace within the configured index.
type PineconeProvider struct {
	client    *pinecone.Client
	indexHost string
}

func NewPineconeProvider(cfg *config.DatabaseConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for pinecone")
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}

	return &PineconeProvider{
		client:    client,
		indexHost: cfg.IndexHost,
	}, nil
}

func (p *PineconeProvider) Search(ctx context.Context, collection string, vector []float32, limit int) ([]SearchResult, error) {
	indexConn, err := p.client.Index(pinecone.NewIndexConnParams{
		Host:      p.indexHost,
		Namespace: collection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pinecone index: %w", err)
	}
	defer indexConn.Close()

	resp, err := indexConn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(limit),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone query failed: %w", err)
	}

	return convertPineconeMatches(resp.Matches), nil
}

func convertPineconeMatches(matches []*pinecone.ScoredVector) []SearchResult {
	results := make([]SearchResult, 0, len(matches))
	for _, match := range matches {
		if match.Vector == nil {
			continue
		}

		var metadata map[string]any
		if match.Vector.Metadata != nil {
			metadata = match.Vector.Metadata.AsMap()
		} else {
			metadata = make(map[string]any)
		}

		text := ""
		if t, ok := metadata["text"].(string); ok {
			text = t
			delete(metadata, "text")
		}

		// Pinecone reports cosine similarity; convert to a distance.
		results = append(results, SearchResult{
			ID:       match.Vector.Id,
			Text:     text,
			Distance: 1 - float64(match.Score),
			Metadata: metadata,
		})
	}
	return results
}

func (p *PineconeProvider) Close() error {
	return nil
}
