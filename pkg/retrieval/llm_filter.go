package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/llms"
)

const filterPrompt = `You are selecting reference passages for a travel-assistant answer.

Question: %s

Passages:
%s

Select up to %d passage ids that are directly relevant to the question. Respond with only a JSON array of the selected ids, most relevant first, e.g. [3, 1]. Respond with [] if none are relevant.`

// llmFilter culls candidates with an OpenAI-compatible chat model. A
// failed or unparseable selection falls back to truncation; the filter
// never aborts the pipeline.
type llmFilter struct {
	provider llms.Provider
	logger   *slog.Logger
}

func newLLMFilter(cfg config.LLMFilterConfig) (*llmFilter, error) {
	provider, err := llms.NewOpenAIProviderFromConfig(&config.LLMProviderConfig{
		Type:    config.LLMProviderOpenAI,
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &llmFilter{
		provider: provider,
		logger:   slog.Default().With("component", "retrieval"),
	}, nil
}

// Filter returns up to topK candidates the model judged relevant, in
// the model's preference order.
func (f *llmFilter) Filter(ctx context.Context, query string, candidates []Hit, topK int) []Hit {
	if len(candidates) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&sb, "[%d] %s\n", c.ChunkID, c.Text)
	}

	resp, err := f.provider.Generate(ctx, llms.Request{
		Messages: []llms.Message{
			{Role: llms.RoleUser, Content: fmt.Sprintf(filterPrompt, query, sb.String(), topK)},
		},
	})
	if err != nil {
		f.logger.Warn("LLM filter failed, keeping top candidates", "error", err)
		return truncate(candidates, topK)
	}

	ids, ok := parseIDList(resp.Text)
	if !ok {
		f.logger.Warn("LLM filter returned unparseable selection", "output", resp.Text)
		return truncate(candidates, topK)
	}

	byID := make(map[int64]Hit, len(candidates))
	for _, c := range candidates {
		byID[c.ChunkID] = c
	}
	out := make([]Hit, 0, topK)
	seen := make(map[int64]bool, topK)
	for _, id := range ids {
		hit, known := byID[id]
		if !known || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, hit)
		if len(out) == topK {
			break
		}
	}
	return out
}

func (f *llmFilter) Close() error { return f.provider.Close() }

// parseIDList extracts a JSON integer array from model output,
// tolerating surrounding prose and code fences.
func parseIDList(text string) ([]int64, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	var ids []int64
	if err := json.Unmarshal([]byte(text[start:end+1]), &ids); err != nil {
		return nil, false
	}
	return ids, true
}

func truncate(hits []Hit, n int) []Hit {
	if len(hits) > n {
		return hits[:n]
	}
	return hits
}
