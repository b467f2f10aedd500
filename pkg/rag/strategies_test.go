package rag

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// stubSource replays canned responses keyed by call order, recording
// every query it sees.
type stubSource struct {
	mu        sync.Mutex
	responses []stubResponse
	queries   []string
}

type stubResponse struct {
	results []Result
	err     error
}

func (s *stubSource) Name() string       { return "stub" }
func (s *stubSource) Identifier() string { return "stub|stub|stub" }

func (s *stubSource) Search(_ context.Context, query string, _ int) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if len(s.responses) == 0 {
		return nil, nil
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp.results, resp.err
}

func score(v float64) *float64 { return &v }

func ragConfig(strategy string) *config.RAGConfig {
	cfg := &config.RAGConfig{
		Enabled:  true,
		Strategy: strategy,
		Sources:  []config.RAGSourceConfig{{Name: "stub", URL: "http://stub"}},
	}
	cfg.SetDefaults()
	return cfg
}

func TestSingleRoundDedupes(t *testing.T) {
	src := &stubSource{responses: []stubResponse{{results: []Result{
		{ChunkID: 1, Text: "a"}, {ChunkID: 1, Text: "dup"}, {ChunkID: 2, Text: "b"},
	}}}}
	s := NewSingleRoundStrategy([]Source{src}, ragConfig(config.StrategySingleRound))

	results, err := s.Retrieve(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, []string{"q"}, src.queries)
}

func TestMultiRoundStopsWhenEnough(t *testing.T) {
	src := &stubSource{responses: []stubResponse{{results: []Result{
		{ChunkID: 1, Score: score(0.1)},
		{ChunkID: 2, Score: score(0.2)},
		{ChunkID: 3, Score: score(0.2)},
	}}}}
	s := NewMultiRoundStrategy([]Source{src}, ragConfig(config.StrategyMultiRound))

	results, err := s.Retrieve(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Len(t, src.queries, 1)
	// Results are tagged with the round that found them.
	assert.Equal(t, 1, results[0].Metadata["round"])
}

func TestMultiRoundExpandsOnEmptyRound(t *testing.T) {
	src := &stubSource{responses: []stubResponse{
		{results: nil},
		{results: []Result{
			{ChunkID: 1, Score: score(0.1)},
			{ChunkID: 2, Score: score(0.1)},
			{ChunkID: 3, Score: score(0.1)},
		}},
	}}
	history := []HistoryTurn{
		{Role: "user", Content: "I am flying to Osaka"},
		{Role: "assistant", Content: "Great choice."},
	}
	s := NewMultiRoundStrategy([]Source{src}, ragConfig(config.StrategyMultiRound))

	results, err := s.Retrieve(context.Background(), "luggage limit", history)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	require.Len(t, src.queries, 2)
	assert.Equal(t, "luggage limit", src.queries[0])
	assert.Equal(t, "luggage limit I am flying to Osaka", src.queries[1])
	assert.Equal(t, 2, results[0].Metadata["round"])
}

func TestMultiRoundRefinesOnWeakScores(t *testing.T) {
	src := &stubSource{responses: []stubResponse{
		{results: []Result{{ChunkID: 1, Text: "cancellation policy for package tours abroad", Score: score(0.8)}}},
		{results: []Result{
			{ChunkID: 2, Score: score(0.1)},
			{ChunkID: 3, Score: score(0.1)},
			{ChunkID: 4, Score: score(0.1)},
		}},
	}}
	s := NewMultiRoundStrategy([]Source{src}, ragConfig(config.StrategyMultiRound))

	results, err := s.Retrieve(context.Background(), "refund", nil)
	require.NoError(t, err)

	require.Len(t, src.queries, 2)
	assert.Equal(t, "refund cancellation policy for package tours", src.queries[1])
	// Weak round-1 result is kept alongside round-2 finds.
	assert.Len(t, results, 4)
}

func TestMultiRoundFirstRoundErrorIsFatal(t *testing.T) {
	src := &stubSource{responses: []stubResponse{{err: errors.New("backend down")}}}
	s := NewMultiRoundStrategy([]Source{src}, ragConfig(config.StrategyMultiRound))

	_, err := s.Retrieve(context.Background(), "q", nil)
	require.Error(t, err)
}

func TestMultiRoundLaterErrorKeepsEarlierResults(t *testing.T) {
	src := &stubSource{responses: []stubResponse{
		{results: []Result{{ChunkID: 1, Text: "weak match about city passes", Score: score(0.9)}}},
		{err: errors.New("backend down")},
	}}
	s := NewMultiRoundStrategy([]Source{src}, ragConfig(config.StrategyMultiRound))

	results, err := s.Retrieve(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestParallelBuildsVariantsAndMerges(t *testing.T) {
	src := &stubSource{responses: []stubResponse{{results: []Result{
		{ChunkID: 1, Score: score(0.4)},
	}}}}
	history := []HistoryTurn{
		{Role: "user", Content: "planning a trip to Lisbon in May"},
		{Role: "user", Content: "with two kids"},
	}
	s := NewParallelStrategy([]Source{src}, ragConfig(config.StrategyParallel))

	results, err := s.Retrieve(context.Background(), "hotel suggestions", history)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Len(t, src.queries, 3)
	assert.Contains(t, src.queries, "hotel suggestions")
	assert.Contains(t, src.queries, "hotel suggestions with two kids")
	assert.Contains(t, src.queries, "hotel suggestions planning a trip to Lisbon")
}

func TestParallelToleratesPartialFailure(t *testing.T) {
	calls := 0
	src := &failingFirstSource{fail: &calls}
	history := []HistoryTurn{{Role: "user", Content: "boat tours"}}
	s := NewParallelStrategy([]Source{src}, ragConfig(config.StrategyParallel))

	results, err := s.Retrieve(context.Background(), "q", history)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestParallelAllVariantsFail(t *testing.T) {
	src := &stubSource{responses: []stubResponse{{err: errors.New("backend down")}}}
	s := NewParallelStrategy([]Source{src}, ragConfig(config.StrategyParallel))

	_, err := s.Retrieve(context.Background(), "q", nil)
	require.EqualError(t, err, "backend down")
}

// failingFirstSource errors on its first call and succeeds after.
type failingFirstSource struct {
	mu   sync.Mutex
	fail *int
}

func (s *failingFirstSource) Name() string       { return "flaky" }
func (s *failingFirstSource) Identifier() string { return "flaky|flaky|flaky" }

func (s *failingFirstSource) Search(context.Context, string, int) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.fail++
	if *s.fail == 1 {
		return nil, errors.New("transient")
	}
	return []Result{{ChunkID: 7, Text: "ok"}}, nil
}
