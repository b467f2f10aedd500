package databases

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/httpclient"
)

// MilvusProvider talks to Milvus over its v2 RESTful API. Only the
// search endpoint is wired; ingestion happens out of process.
type MilvusProvider struct {
	baseURL    string
	database   string
	apiKey     string
	httpClient *httpclient.Client
}

func NewMilvusProvider(cfg *config.DatabaseConfig) (*MilvusProvider, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required for milvus")
	}

	return &MilvusProvider{
		baseURL:  cfg.BaseURL(),
		database: cfg.Database,
		apiKey:   cfg.APIKey,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		),
	}, nil
}

type milvusSearchRequest struct {
	DBName         string      `json:"dbName,omitempty"`
	CollectionName string      `json:"collectionName"`
	Data           [][]float32 `json:"data"`
	AnnsField      string      `json:"annsField"`
	Limit          int         `json:"limit"`
	OutputFields   []string    `json:"outputFields"`
}

type milvusSearchResponse struct {
	Code    int              `json:"code"`
	Message string           `json:"message,omitempty"`
	Data    []map[string]any `json:"data"`
}

func (p *MilvusProvider) Search(ctx context.Context, collection string, vector []float32, limit int) ([]SearchResult, error) {
	reqBody := milvusSearchRequest{
		DBName:         p.database,
		CollectionName: collection,
		Data:           [][]float32{vector},
		AnnsField:      "vector",
		Limit:          limit,
		OutputFields:   []string{"id", "text"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	url := p.baseURL + "/v2/vectordb/entities/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("milvus search failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var searchResp milvusSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode milvus response: %w", err)
	}
	if searchResp.Code != 0 {
		return nil, fmt.Errorf("milvus search failed: code %d: %s", searchResp.Code, searchResp.Message)
	}

	return convertMilvusHits(searchResp.Data), nil
}

// convertMilvusHits maps raw hit objects to SearchResults. Hits without
// an id are logged and dropped; a missing distance defaults to 0.
func convertMilvusHits(hits []map[string]any) []SearchResult {
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		id, ok := hit["id"]
		if !ok || id == nil {
			slog.Warn("Dropping milvus hit without id", "hit", hit)
			continue
		}

		var text string
		if t, ok := hit["text"].(string); ok {
			text = t
		}

		distance := 0.0
		if d, ok := hit["distance"].(float64); ok {
			distance = d
		}

		metadata := make(map[string]any, len(hit))
		for k, v := range hit {
			if k == "id" || k == "text" || k == "distance" {
				continue
			}
			metadata[k] = v
		}

		results = append(results, SearchResult{
			ID:       stringifyID(id),
			Text:     text,
			Distance: distance,
			Metadata: metadata,
		})
	}
	return results
}

func stringifyID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; Milvus ids are integral.
		return fmt.Sprintf("%d", int64(v))
	default:
		return fmt.Sprint(v)
	}
}

func (p *MilvusProvider) Close() error {
	return nil
}
