package databases

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// QdrantProvider searches a Qdrant server over its gRPC client.
type QdrantProvider struct {
	client *qdrant.Client
}

func NewQdrantProvider(cfg *config.DatabaseConfig) (*QdrantProvider, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantProvider{client: client}, nil
}

func (p *QdrantProvider) Search(ctx context.Context, collection string, vector []float32, limit int) ([]SearchResult, error) {
	searchResult, err := p.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	return convertQdrantPoints(searchResult.Result), nil
}

func convertQdrantPoints(points []*qdrant.ScoredPoint) []SearchResult {
	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		var id string
		if point.Id != nil {
			switch idType := point.Id.PointIdOptions.(type) {
			case *qdrant.PointId_Uuid:
				id = idType.Uuid
			case *qdrant.PointId_Num:
				id = fmt.Sprintf("%d", idType.Num)
			}
		}

		metadata := make(map[string]any, len(point.Payload))
		for key, value := range point.Payload {
			switch v := value.Kind.(type) {
			case *qdrant.Value_StringValue:
				metadata[key] = v.StringValue
			case *qdrant.Value_IntegerValue:
				metadata[key] = v.IntegerValue
			case *qdrant.Value_DoubleValue:
				metadata[key] = v.DoubleValue
			case *qdrant.Value_BoolValue:
				metadata[key] = v.BoolValue
			default:
				metadata[key] = value
			}
		}

		text := ""
		if t, ok := metadata["text"].(string); ok {
			text = t
			delete(metadata, "text")
		}

		// Qdrant reports cosine similarity; the pipeline expects a
		// distance where smaller is better.
		results = append(results, SearchResult{
			ID:       id,
			Text:     text,
			Distance: 1 - float64(point.Score),
			Metadata: metadata,
		})
	}
	return results
}

func (p *QdrantProvider) Close() error {
	return p.client.Close()
}
