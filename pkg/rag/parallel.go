package rag

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// ParallelStrategy searches several query variants concurrently and
// merges the results. Variant failures are logged and dropped; the
// strategy only fails when every variant does.
type ParallelStrategy struct {
	sources     []Source
	topK        int
	numVariants int
	logger      *slog.Logger
}

func NewParallelStrategy(sources []Source, cfg *config.RAGConfig) *ParallelStrategy {
	return &ParallelStrategy{
		sources:     sources,
		topK:        cfg.TopK,
		numVariants: cfg.Parallel.NumVariants,
		logger:      slog.Default().With("component", "rag", "strategy", config.StrategyParallel),
	}
}

func (s *ParallelStrategy) Name() string {
	return config.StrategyParallel
}

func (s *ParallelStrategy) Retrieve(ctx context.Context, query string, history []HistoryTurn) ([]Result, error) {
	if len(s.sources) == 0 {
		return nil, newError(KindValidation, "", "no sources configured", nil)
	}
	source := s.sources[0]

	variants := s.buildVariants(query, history)

	var mu sync.Mutex
	var merged []Result
	var lastErr error
	failures := 0

	g, gctx := errgroup.WithContext(ctx)
	for _, variant := range variants {
		g.Go(func() error {
			results, err := source.Search(gctx, variant, s.topK)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("Variant search failed", "variant", variant, "error", err)
				failures++
				lastErr = err
				return nil
			}
			merged = append(merged, results...)
			return nil
		})
	}
	_ = g.Wait()

	if failures == len(variants) {
		return nil, lastErr
	}
	return dedupKeepBest(merged), nil
}

// buildVariants combines the base query with key terms from recent
// user turns. The base query is always variant zero; duplicates are
// dropped.
func (s *ParallelStrategy) buildVariants(query string, history []HistoryTurn) []string {
	variants := []string{query}
	seen := map[string]bool{strings.ToLower(query): true}

	for _, msg := range recentUserMessages(history, 5) {
		if len(variants) >= s.numVariants {
			break
		}
		terms := firstWords(msg, 5)
		if terms == "" {
			continue
		}
		variant := query + " " + terms
		if seen[strings.ToLower(variant)] {
			continue
		}
		seen[strings.ToLower(variant)] = true
		variants = append(variants, variant)
	}
	return variants
}
