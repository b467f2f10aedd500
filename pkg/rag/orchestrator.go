package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/llms"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/observability"
)

// Orchestrator runs the full retrieval pipeline: input guardrail, cache
// lookup, query rewriting, the configured strategy, result processing,
// and the output guardrail.
type Orchestrator struct {
	cfg      *config.RAGConfig
	strategy Strategy
	sources  []Source
	rewriter *Rewriter
	cache    *queryCache
	input    *inputGuardrail
	output   *outputGuardrail
	proc     *processor
	logger   *slog.Logger
}

// NewOrchestrator wires the pipeline from config. rewriterLLM may be nil
// when the rewriter is disabled or its provider is not configured.
func NewOrchestrator(cfg *config.RAGConfig, rewriterLLM llms.Provider) (*Orchestrator, error) {
	if cfg == nil {
		return nil, newError(KindValidation, "rag_system", "config cannot be nil", nil)
	}
	if len(cfg.Sources) == 0 {
		return nil, newError(KindValidation, "rag_system", "at least one source is required", nil)
	}

	sources := make([]Source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		sources = append(sources, NewHTTPSource(sc))
	}

	o := &Orchestrator{
		cfg:     cfg,
		sources: sources,
		proc:    newProcessor(cfg.Processor),
		logger:  slog.Default().With("component", "rag"),
	}

	switch cfg.Strategy {
	case config.StrategySingleRound, "":
		o.strategy = NewSingleRoundStrategy(sources, cfg)
	case config.StrategyMultiRound:
		o.strategy = NewMultiRoundStrategy(sources, cfg)
	case config.StrategyParallel:
		o.strategy = NewParallelStrategy(sources, cfg)
	default:
		return nil, newError(KindValidation, "rag_system",
			fmt.Sprintf("unknown strategy: %s", cfg.Strategy), nil)
	}

	if cfg.Rewriter.Enabled && rewriterLLM != nil {
		o.rewriter = NewRewriter(rewriterLLM, cfg.Rewriter)
	}
	if cfg.Cache.Enabled {
		o.cache = newQueryCache(cfg.Cache.TTL, cfg.Cache.MaxEntries)
	}
	if cfg.Guardrails.Input.Enabled {
		input, err := newInputGuardrail(cfg.Guardrails.Input)
		if err != nil {
			return nil, err
		}
		o.input = input
	}
	if cfg.Guardrails.Output.Enabled {
		output, err := newOutputGuardrail(cfg.Guardrails.Output)
		if err != nil {
			return nil, err
		}
		o.output = output
	}
	return o, nil
}

// StrategyName reports the active strategy.
func (o *Orchestrator) StrategyName() string { return o.strategy.Name() }

// Retrieve runs the pipeline for one query. With FallbackOnError set,
// failures degrade to an empty response carrying the error text instead
// of a hard error.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, history []HistoryTurn) (*Response, error) {
	start := time.Now()
	resp, err := o.retrieve(ctx, query, history)
	observability.GetGlobalMetrics().RecordRAGQuery(ctx, o.strategy.Name(),
		time.Since(start), resp != nil && resp.CacheHit, err)

	if err != nil && o.cfg.FallbackOnError {
		o.logger.Warn("Retrieval failed, returning empty results", "query", query, "error", err)
		return &Response{
			Query:   query,
			Results: []Result{},
			Error:   err.Error(),
			Source:  "rag_system",
		}, nil
	}
	return resp, err
}

func (o *Orchestrator) retrieve(ctx context.Context, query string, history []HistoryTurn) (*Response, error) {
	sensitive := false
	if o.input != nil {
		var err error
		sensitive, err = o.input.Check(query)
		if err != nil {
			return nil, err
		}
	}

	var key string
	if o.cache != nil {
		key = cacheKey(query, o.strategy.Name(), o.sources)
		if results, ok := o.cache.Get(key); ok {
			o.logger.Debug("Cache hit", "query", query)
			return &Response{
				Query:     query,
				Results:   results,
				Source:    "rag_system",
				Sensitive: sensitive,
				CacheHit:  true,
			}, nil
		}
	}

	searchQuery := query
	if o.rewriter != nil {
		searchQuery = o.rewriter.Rewrite(ctx, query, history)
	}

	results, err := o.strategy.Retrieve(ctx, searchQuery, history)
	if err != nil {
		return nil, err
	}

	results = o.proc.Process(results)
	if o.output != nil {
		results = o.output.Apply(results)
	}
	if results == nil {
		results = []Result{}
	}

	if o.cache != nil {
		o.cache.Set(key, results)
	}
	return &Response{
		Query:     query,
		Results:   results,
		Source:    "rag_system",
		Sensitive: sensitive,
	}, nil
}
