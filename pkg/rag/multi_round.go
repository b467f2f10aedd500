package rag

import (
	"context"
	"log/slog"
	"strings"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// MultiRoundStrategy searches iteratively, refining the query between
// rounds based on what the previous round found.
type MultiRoundStrategy struct {
	sources []Source
	topK    int
	cfg     config.MultiRoundConfig
	logger  *slog.Logger
}

func NewMultiRoundStrategy(sources []Source, cfg *config.RAGConfig) *MultiRoundStrategy {
	return &MultiRoundStrategy{
		sources: sources,
		topK:    cfg.TopK,
		cfg:     cfg.MultiRound,
		logger:  slog.Default().With("component", "rag", "strategy", config.StrategyMultiRound),
	}
}

func (s *MultiRoundStrategy) Name() string {
	return config.StrategyMultiRound
}

func (s *MultiRoundStrategy) Retrieve(ctx context.Context, query string, history []HistoryTurn) ([]Result, error) {
	if len(s.sources) == 0 {
		return nil, newError(KindValidation, "", "no sources configured", nil)
	}
	source := s.sources[0]

	var cumulative []Result
	currentQuery := query

	for round := 1; round <= s.cfg.MaxRounds; round++ {
		results, err := source.Search(ctx, currentQuery, s.topK)
		if err != nil {
			if round == 1 {
				return nil, err
			}
			// Later rounds only add recall; keep what earlier rounds
			// found.
			s.logger.Warn("Search round failed", "round", round, "error", err)
			break
		}

		for i := range results {
			if results[i].Metadata == nil {
				results[i].Metadata = make(map[string]any, 1)
			}
			results[i].Metadata["round"] = round
		}
		cumulative = dedupKeepFirst(append(cumulative, results...))

		if s.enough(cumulative) {
			break
		}

		refined := s.refineQuery(currentQuery, results, history)
		if refined == currentQuery {
			break
		}
		s.logger.Debug("Refined query", "round", round, "query", refined)
		currentQuery = refined
	}

	return cumulative, nil
}

// enough applies the stopping thresholds: cumulative count, and
// optionally a minimum number of results at or below the score
// threshold.
func (s *MultiRoundStrategy) enough(results []Result) bool {
	if len(results) < s.cfg.MinResults {
		return false
	}
	if s.cfg.MinScore == nil {
		return true
	}

	good := 0
	for _, r := range results {
		if r.Score != nil && *r.Score <= *s.cfg.MinScore {
			good++
		}
	}
	return good >= s.cfg.MinResults
}

// refineQuery picks the next round's query from the previous round's
// outcome: nothing found expands with recent user context, weak scores
// refine with top-document terms, anything else passes through
// unchanged (which terminates the loop).
func (s *MultiRoundStrategy) refineQuery(query string, lastRound []Result, history []HistoryTurn) string {
	if len(lastRound) == 0 {
		extra := recentUserMessages(history, 3)
		if len(extra) == 0 {
			return query
		}
		return query + " " + strings.Join(extra, " ")
	}

	avg, min := scoreStats(lastRound)
	if avg > 0.5 && min > 0.3 {
		var terms []string
		for i, r := range lastRound {
			if i == 3 {
				break
			}
			terms = append(terms, firstWords(r.Text, 5))
		}
		return query + " " + strings.Join(terms, " ")
	}

	return query
}

func scoreStats(results []Result) (avg, min float64) {
	min = -1
	var sum float64
	scored := 0
	for _, r := range results {
		if r.Score == nil {
			continue
		}
		sum += *r.Score
		scored++
		if min < 0 || *r.Score < min {
			min = *r.Score
		}
	}
	if scored == 0 {
		return 0, 0
	}
	if min < 0 {
		min = 0
	}
	return sum / float64(scored), min
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// recentUserMessages returns up to n trailing user turns, oldest
// first.
func recentUserMessages(history []HistoryTurn, n int) []string {
	var out []string
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		if history[i].Role == "user" && history[i].Content != "" {
			out = append(out, history[i].Content)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
