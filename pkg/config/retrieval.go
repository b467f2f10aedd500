package config

import (
	"fmt"
	"time"
)

// RetrievalConfig configures the retrieval service: named pipelines, each a
// bundle of embedding models, a vector store, and optional rerank and LLM
// filter stages.
type RetrievalConfig struct {
	Pipelines map[string]PipelineConfig `yaml:"pipelines,omitempty"`
}

// PipelineConfig describes one retrieval pipeline.
type PipelineConfig struct {
	// Database names the databases entry holding the vectors.
	Database string `yaml:"database"`

	// DefaultCollection is used by models that do not pin their own.
	DefaultCollection string `yaml:"default_collection,omitempty"`

	// Models lists the embedding models fanned out per query. Each pins
	// to exactly one collection, defaulting to DefaultCollection.
	Models []EmbeddingModelConfig `yaml:"embedding_models"`

	// Rerank enables the cross-encoder stage when APIURL is set.
	Rerank RerankConfig `yaml:"rerank,omitempty"`

	// LLMFilter enables the LLM selection stage when BaseURL or Model is
	// set.
	LLMFilter LLMFilterConfig `yaml:"llm_filter,omitempty"`

	// Retrieval groups the per-stage result counts.
	Retrieval RetrievalParams `yaml:"retrieval,omitempty"`

	// ChunkSizes groups the per-stage candidate-list sizes.
	ChunkSizes ChunkSizes `yaml:"chunk_sizes,omitempty"`
}

// EmbeddingModelConfig pins one embedding model to a collection.
type EmbeddingModelConfig struct {
	// Provider names the embedders entry.
	Provider string `yaml:"provider"`

	// Model overrides the embedder's default model. Optional.
	Model string `yaml:"model,omitempty"`

	// Collection overrides the pipeline default. Optional.
	Collection string `yaml:"collection,omitempty"`
}

// RerankConfig configures the HTTP cross-encoder.
type RerankConfig struct {
	// APIURL of the reranker. Empty disables the stage.
	APIURL  string        `yaml:"api_url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// LLMFilterConfig configures the LLM relevance filter.
type LLMFilterConfig struct {
	// BaseURL of an OpenAI-compatible endpoint. Either BaseURL or Model
	// being set enables the stage.
	BaseURL string        `yaml:"base_url,omitempty"`
	Model   string        `yaml:"model,omitempty"`
	APIKey  string        `yaml:"api_key,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// RetrievalParams are the per-stage result counts.
type RetrievalParams struct {
	// TopKPerModel caps hits per embedding model.
	TopKPerModel int `yaml:"top_k_per_model,omitempty"`

	// RerankTopK caps the reranked list.
	RerankTopK int `yaml:"rerank_top_k,omitempty"`

	// FinalTopK caps the surfaced list.
	FinalTopK int `yaml:"final_top_k,omitempty"`
}

// ChunkSizes are the per-stage candidate-list sizes.
type ChunkSizes struct {
	// InitialSearch caps the vector-store limit per model.
	InitialSearch int `yaml:"initial_search,omitempty"`

	// RerankInput caps candidates submitted to the reranker.
	RerankInput int `yaml:"rerank_input,omitempty"`

	// LLMFilterInput caps candidates submitted to the LLM filter.
	LLMFilterInput int `yaml:"llm_filter_input,omitempty"`
}

// SetDefaults applies default values.
func (c *RetrievalConfig) SetDefaults() {
	for name, p := range c.Pipelines {
		p.SetDefaults()
		c.Pipelines[name] = p
	}
}

// SetDefaults applies default values.
func (p *PipelineConfig) SetDefaults() {
	if p.Retrieval.TopKPerModel == 0 {
		p.Retrieval.TopKPerModel = 10
	}
	if p.Retrieval.RerankTopK == 0 {
		p.Retrieval.RerankTopK = 10
	}
	if p.Retrieval.FinalTopK == 0 {
		p.Retrieval.FinalTopK = 5
	}
	if p.ChunkSizes.InitialSearch == 0 {
		p.ChunkSizes.InitialSearch = 20
	}
	if p.ChunkSizes.RerankInput == 0 {
		p.ChunkSizes.RerankInput = 20
	}
	if p.ChunkSizes.LLMFilterInput == 0 {
		p.ChunkSizes.LLMFilterInput = 10
	}
	if p.Rerank.APIURL != "" && p.Rerank.Timeout == 0 {
		p.Rerank.Timeout = 30 * time.Second
	}
	if p.LLMFilter.Enabled() && p.LLMFilter.Timeout == 0 {
		p.LLMFilter.Timeout = 30 * time.Second
	}
}

// Enabled reports whether the LLM filter stage runs.
func (c *LLMFilterConfig) Enabled() bool {
	return c.BaseURL != "" || c.Model != ""
}

// Enabled reports whether the rerank stage runs.
func (c *RerankConfig) Enabled() bool {
	return c.APIURL != ""
}

// Validate checks the retrieval configuration.
func (c *RetrievalConfig) Validate() error {
	for name, p := range c.Pipelines {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("pipelines.%s: %w", name, err)
		}
	}
	return nil
}

// Validate checks one pipeline, including the stage-size invariants.
func (p *PipelineConfig) Validate() error {
	if p.Database == "" {
		return fmt.Errorf("database is required")
	}
	if len(p.Models) == 0 {
		return fmt.Errorf("at least one embedding model is required")
	}
	for i, m := range p.Models {
		if m.Provider == "" {
			return fmt.Errorf("embedding_models[%d]: provider is required", i)
		}
		if m.Collection == "" && p.DefaultCollection == "" {
			return fmt.Errorf("embedding_models[%d]: collection is required when no default_collection is set", i)
		}
	}

	maxCandidates := p.ChunkSizes.InitialSearch * len(p.Models)
	if p.Retrieval.RerankTopK > maxCandidates {
		return fmt.Errorf("rerank_top_k (%d) must not exceed initial_search × models (%d)", p.Retrieval.RerankTopK, maxCandidates)
	}
	if p.Retrieval.FinalTopK > p.Retrieval.RerankTopK {
		return fmt.Errorf("final_top_k (%d) must not exceed rerank_top_k (%d)", p.Retrieval.FinalTopK, p.Retrieval.RerankTopK)
	}

	return nil
}
