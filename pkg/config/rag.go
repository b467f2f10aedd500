package config

import (
	"fmt"
	"time"
)

// RAG strategy names.
const (
	StrategySingleRound = "single_round"
	StrategyMultiRound  = "multi_round"
	StrategyParallel    = "parallel"
)

// RAGConfig configures the client-side retrieval pipeline the chat tools
// call into.
type RAGConfig struct {
	// Enabled turns the pipeline on. Off means knowledge_search reports
	// no knowledge base.
	Enabled bool `yaml:"enabled,omitempty"`

	// Sources lists the retrieval endpoints. Strategies currently use the
	// first; the list form reserves multi-source fusion.
	Sources []RAGSourceConfig `yaml:"sources,omitempty"`

	// Strategy is one of single_round, multi_round, parallel.
	Strategy string `yaml:"strategy,omitempty"`

	// TopK caps results requested from a source per search.
	TopK int `yaml:"top_k,omitempty"`

	MultiRound MultiRoundConfig `yaml:"multi_round,omitempty"`
	Parallel   ParallelConfig   `yaml:"parallel,omitempty"`
	Rewriter   RewriterConfig   `yaml:"rewriter,omitempty"`
	Cache      RAGCacheConfig   `yaml:"cache,omitempty"`
	Guardrails GuardrailsConfig `yaml:"guardrails,omitempty"`
	Processor  ProcessorConfig  `yaml:"processor,omitempty"`

	// FallbackOnError degrades step failures to logged partial results
	// instead of surfacing an error.
	FallbackOnError bool `yaml:"fallback_on_error,omitempty"`
}

// RAGSourceConfig identifies one retrieval-service endpoint.
type RAGSourceConfig struct {
	// Name identifies the source in logs and cache keys.
	Name string `yaml:"name"`

	// URL is the retrieval service base URL.
	URL string `yaml:"url"`

	// Pipeline names the retrieval-service pipeline to query.
	Pipeline string `yaml:"pipeline"`

	// TopK per-source override; 0 inherits the pipeline TopK.
	TopK int `yaml:"top_k,omitempty"`

	// Timeout per search request.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// MultiRoundConfig tunes the multi-round strategy.
type MultiRoundConfig struct {
	// MaxRounds caps search rounds.
	MaxRounds int `yaml:"max_rounds,omitempty"`

	// MinResults is the cumulative-count stopping threshold.
	MinResults int `yaml:"min_results,omitempty"`

	// MinScore, when set, stops once MinResults results score at or below
	// it (distance metric; smaller is better).
	MinScore *float64 `yaml:"min_score,omitempty"`
}

// ParallelConfig tunes the parallel strategy.
type ParallelConfig struct {
	// NumVariants caps generated query variants.
	NumVariants int `yaml:"num_variants,omitempty"`
}

// RewriterConfig tunes LLM query rewriting.
type RewriterConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// LLM names the llms entry used for rewriting.
	LLM string `yaml:"llm,omitempty"`

	// MaxHistory bounds how many trailing history messages feed the
	// rewrite prompt.
	MaxHistory int `yaml:"max_history,omitempty"`
}

// RAGCacheConfig tunes the query-result cache.
type RAGCacheConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// TTL before an entry expires.
	TTL time.Duration `yaml:"ttl,omitempty"`

	// MaxEntries before least-recently-used eviction.
	MaxEntries int `yaml:"max_entries,omitempty"`
}

// GuardrailsConfig groups input and output guardrails.
type GuardrailsConfig struct {
	Input  InputGuardrailConfig  `yaml:"input,omitempty"`
	Output OutputGuardrailConfig `yaml:"output,omitempty"`
}

// InputGuardrailConfig screens queries before retrieval.
type InputGuardrailConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// MaxQueryLength rejects longer queries.
	MaxQueryLength int `yaml:"max_query_length,omitempty"`

	// BlockedPatterns reject the query outright (regular expressions).
	BlockedPatterns []string `yaml:"blocked_patterns,omitempty"`

	// SensitivePatterns tag the query; tagged queries proceed but the
	// response notes the sensitivity.
	SensitivePatterns []string `yaml:"sensitive_patterns,omitempty"`
}

// OutputGuardrailConfig screens results after retrieval.
type OutputGuardrailConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// FilterSensitiveInfo redacts text matching SensitivePatterns.
	FilterSensitiveInfo bool `yaml:"filter_sensitive_info,omitempty"`

	// SensitivePatterns to redact (regular expressions).
	SensitivePatterns []string `yaml:"sensitive_patterns,omitempty"`

	// ValidateRelevance drops results scoring above MaxDistance.
	ValidateRelevance bool `yaml:"validate_relevance,omitempty"`

	// MaxDistance is the relevance floor (distance metric).
	MaxDistance float64 `yaml:"max_distance,omitempty"`
}

// ProcessorConfig tunes post-strategy result processing.
type ProcessorConfig struct {
	// MergeKeepBestScore keeps the smallest-distance instance when a
	// chunk reappears across sub-queries.
	MergeKeepBestScore bool `yaml:"merge_keep_best_score,omitempty"`

	// MaxResults truncates the final list.
	MaxResults int `yaml:"max_results,omitempty"`
}

// SetDefaults applies default values.
func (c *RAGConfig) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategySingleRound
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.MultiRound.MaxRounds == 0 {
		c.MultiRound.MaxRounds = 3
	}
	if c.MultiRound.MinResults == 0 {
		c.MultiRound.MinResults = 3
	}
	if c.Parallel.NumVariants == 0 {
		c.Parallel.NumVariants = 3
	}
	if c.Rewriter.MaxHistory == 0 {
		c.Rewriter.MaxHistory = 5
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 256
	}
	if c.Guardrails.Input.MaxQueryLength == 0 {
		c.Guardrails.Input.MaxQueryLength = 1000
	}
	if c.Guardrails.Output.MaxDistance == 0 {
		c.Guardrails.Output.MaxDistance = 1.5
	}
	if c.Processor.MaxResults == 0 {
		c.Processor.MaxResults = 10
	}
	for i := range c.Sources {
		if c.Sources[i].Timeout == 0 {
			c.Sources[i].Timeout = 30 * time.Second
		}
		if c.Sources[i].TopK == 0 {
			c.Sources[i].TopK = c.TopK
		}
	}
}

// Validate checks the RAG configuration.
func (c *RAGConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch c.Strategy {
	case StrategySingleRound, StrategyMultiRound, StrategyParallel:
	default:
		return fmt.Errorf("invalid strategy %q (valid: single_round, multi_round, parallel)", c.Strategy)
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required when rag is enabled")
	}
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if src.URL == "" {
			return fmt.Errorf("sources[%d]: url is required", i)
		}
		if src.Pipeline == "" {
			return fmt.Errorf("sources[%d]: pipeline is required", i)
		}
	}

	if c.MultiRound.MaxRounds < 1 {
		return fmt.Errorf("multi_round.max_rounds must be at least 1")
	}
	if c.Parallel.NumVariants < 1 {
		return fmt.Errorf("parallel.num_variants must be at least 1")
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache.max_entries must be at least 1")
	}

	return nil
}
