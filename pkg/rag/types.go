// Package rag implements the client-side retrieval pipeline: query
// guardrails, rewriting, pluggable search strategies over retrieval
// sources, caching, and result processing.
package rag

import "context"

// Result is one retrieved chunk. Score is the source's distance metric
// (smaller is more relevant); nil when the source reported none.
// Equality for deduplication uses ChunkID only.
type Result struct {
	ChunkID  int64          `json:"chunk_id"`
	Text     string         `json:"text"`
	Score    *float64       `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Response is the pipeline's output. Error is set (with empty Results)
// when a step failed and fallback-on-error degraded it.
type Response struct {
	Query     string   `json:"query"`
	Results   []Result `json:"results"`
	Error     string   `json:"error,omitempty"`
	Source    string   `json:"source"`
	Sensitive bool     `json:"sensitive,omitempty"`
	CacheHit  bool     `json:"-"`
}

// Source is a retrieval endpoint a strategy can search.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Identifier is the canonical cache-key form: name, URL, and
	// pipeline joined so identical URLs with different pipelines stay
	// distinct.
	Identifier() string

	// Search returns up to topK results for the query.
	Search(ctx context.Context, query string, topK int) ([]Result, error)
}

// HistoryTurn is the slice of conversation state strategies may use
// for query expansion.
type HistoryTurn struct {
	Role    string
	Content string
}

// Strategy turns a query into results using one or more sources.
type Strategy interface {
	Name() string
	Retrieve(ctx context.Context, query string, history []HistoryTurn) ([]Result, error)
}
