package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/llms"
)

const rewritePrompt = `Given the conversation below, rewrite the user's latest question as a standalone search query optimized for a travel knowledge base. Resolve pronouns and references from the conversation. Respond with only the rewritten query.

Conversation:
%s

Latest question: %s`

// Rewriter asks an LLM to turn a context-dependent question into a
// standalone search query. Every failure mode falls back to the
// original query; rewriting never blocks retrieval.
type Rewriter struct {
	provider   llms.Provider
	maxHistory int
	logger     *slog.Logger
}

func NewRewriter(provider llms.Provider, cfg config.RewriterConfig) *Rewriter {
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 || maxHistory > 5 {
		maxHistory = 5
	}
	return &Rewriter{
		provider:   provider,
		maxHistory: maxHistory,
		logger:     slog.Default().With("component", "rag"),
	}
}

// Rewrite returns the optimized query, or the original when history is
// empty, the model fails, or the output is degenerate.
func (r *Rewriter) Rewrite(ctx context.Context, query string, history []HistoryTurn) string {
	if r.provider == nil || len(history) == 0 {
		return query
	}

	turns := history
	if len(turns) > r.maxHistory {
		turns = turns[len(turns)-r.maxHistory:]
	}
	var sb strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Content)
	}

	resp, err := r.provider.Generate(ctx, llms.Request{
		Messages: []llms.Message{
			{Role: llms.RoleUser, Content: fmt.Sprintf(rewritePrompt, sb.String(), query)},
		},
	})
	if err != nil {
		r.logger.Warn("Query rewrite failed, using original", "error", err)
		return query
	}

	rewritten := strings.TrimSpace(strings.Trim(strings.TrimSpace(resp.Text), `"`))
	if len(rewritten) < 2 {
		return query
	}
	r.logger.Debug("Rewrote query", "original", query, "rewritten", rewritten)
	return rewritten
}
