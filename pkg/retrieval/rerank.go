package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/httpclient"
)

// reranker calls a cross-encoder scoring service. The service receives
// the query and candidate passages and returns indices reordered by
// relevance.
type reranker struct {
	apiURL string
	client *httpclient.Client
}

func newReranker(cfg config.RerankConfig) *reranker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &reranker{
		apiURL: cfg.APIURL,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
		),
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank reorders candidates by cross-encoder relevance and returns at
// most topK of them.
func (r *reranker) Rerank(ctx context.Context, query string, candidates []Hit, topK int) ([]Hit, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Text
	}
	payload, err := json.Marshal(rerankRequest{Query: query, Documents: docs, TopK: topK})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("reranker returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("malformed reranker response: %w", err)
	}

	ordered := make([]Hit, 0, topK)
	for _, entry := range result.Results {
		if entry.Index < 0 || entry.Index >= len(candidates) {
			continue
		}
		hit := candidates[entry.Index]
		hit.Score = entry.Score
		ordered = append(ordered, hit)
		if len(ordered) == topK {
			break
		}
	}
	return ordered, nil
}
