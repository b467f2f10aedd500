package rag

import (
	"context"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// SingleRoundStrategy issues one search against the first source and
// passes the results through.
type SingleRoundStrategy struct {
	sources []Source
	topK    int
}

func NewSingleRoundStrategy(sources []Source, cfg *config.RAGConfig) *SingleRoundStrategy {
	return &SingleRoundStrategy{sources: sources, topK: cfg.TopK}
}

func (s *SingleRoundStrategy) Name() string {
	return config.StrategySingleRound
}

func (s *SingleRoundStrategy) Retrieve(ctx context.Context, query string, _ []HistoryTurn) ([]Result, error) {
	if len(s.sources) == 0 {
		return nil, newError(KindValidation, "", "no sources configured", nil)
	}
	results, err := s.sources[0].Search(ctx, query, s.topK)
	if err != nil {
		return nil, err
	}
	return dedupKeepFirst(results), nil
}
