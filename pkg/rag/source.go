package rag

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

// HTTPSource adapts one retrieval-service endpoint. It performs no
// retries; retry policy belongs to the strategy layer.
type HTTPSource struct {
	name     string
	url      string
	pipeline string
	client   *httpclient.Client
}

func NewHTTPSource(cfg config.RAGSourceConfig) *HTTPSource {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{
		name:     cfg.Name,
		url:      cfg.URL,
		pipeline: cfg.Pipeline,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithRetryStrategy(func(int) httpclient.RetryStrategy {
				return httpclient.NoRetry
			}),
		),
	}
}

func (s *HTTPSource) Name() string {
	return s.name
}

func (s *HTTPSource) Identifier() string {
	return s.name + "|" + s.url + "|" + s.pipeline
}

type searchRequest struct {
	Query        string `json:"query"`
	PipelineName string `json:"pipeline_name"`
	TopK         int    `json:"top_k,omitempty"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

func (s *HTTPSource) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	payload, err := json.Marshal(searchRequest{Query: query, PipelineName: s.pipeline, TopK: topK})
	if err != nil {
		return nil, newError(KindParse, s.name, "failed to marshal search request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/api/search", bytes.NewReader(payload))
	if err != nil {
		return nil, newError(KindNetwork, s.name, "failed to create search request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, newError(KindNetwork, s.name, "search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &Error{
			Kind:       KindRemote,
			Source:     s.name,
			Message:    fmt.Sprintf("search returned %q", bytes.TrimSpace(body)),
			StatusCode: resp.StatusCode,
		}
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, newError(KindParse, s.name, "malformed search response", err)
	}
	return result.Results, nil
}
