package rag

import (
	"sort"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// processor merges, orders, and truncates the strategy's raw results
// into the final list handed to the caller.
type processor struct {
	mergeKeepBestScore bool
	maxResults         int
}

func newProcessor(cfg config.ProcessorConfig) *processor {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	return &processor{
		mergeKeepBestScore: cfg.MergeKeepBestScore,
		maxResults:         maxResults,
	}
}

func (p *processor) Process(results []Result) []Result {
	if p.mergeKeepBestScore {
		results = dedupKeepBest(results)
	} else {
		results = dedupKeepFirst(results)
	}

	// Ascending distance, scored before unscored; equal keys keep
	// arrival order.
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Score, results[j].Score
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})

	if len(results) > p.maxResults {
		results = results[:p.maxResults]
	}
	return results
}
