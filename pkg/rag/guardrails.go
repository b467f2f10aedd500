package rag

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// inputGuardrail screens queries before retrieval: length, blocked
// patterns, and sensitive-content tagging.
type inputGuardrail struct {
	maxQueryLength int
	blocked        []*regexp.Regexp
	sensitive      []*regexp.Regexp
	logger         *slog.Logger
}

func newInputGuardrail(cfg config.InputGuardrailConfig) (*inputGuardrail, error) {
	blocked, err := compilePatterns(cfg.BlockedPatterns)
	if err != nil {
		return nil, newError(KindValidation, "guardrails", "invalid blocked pattern", err)
	}
	sensitive, err := compilePatterns(cfg.SensitivePatterns)
	if err != nil {
		return nil, newError(KindValidation, "guardrails", "invalid sensitive pattern", err)
	}
	maxLen := cfg.MaxQueryLength
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &inputGuardrail{
		maxQueryLength: maxLen,
		blocked:        blocked,
		sensitive:      sensitive,
		logger:         slog.Default().With("component", "rag"),
	}, nil
}

// Check rejects the query outright or reports it as sensitive. Sensitive
// queries proceed; the flag is surfaced on the response for the caller.
func (g *inputGuardrail) Check(query string) (sensitive bool, err error) {
	if len(query) > g.maxQueryLength {
		return false, newError(KindValidation, "guardrails",
			"query exceeds maximum length", nil)
	}
	for _, re := range g.blocked {
		if re.MatchString(query) {
			g.logger.Warn("Query blocked by guardrail", "pattern", re.String())
			return false, newError(KindValidation, "guardrails",
				"query matches blocked pattern", nil)
		}
	}
	for _, re := range g.sensitive {
		if re.MatchString(query) {
			return true, nil
		}
	}
	return false, nil
}

// outputGuardrail filters retrieved results: relevance cutoff and
// sensitive-text redaction.
type outputGuardrail struct {
	filterSensitive   bool
	sensitive         []*regexp.Regexp
	validateRelevance bool
	maxDistance       float64
	logger            *slog.Logger
}

func newOutputGuardrail(cfg config.OutputGuardrailConfig) (*outputGuardrail, error) {
	sensitive, err := compilePatterns(cfg.SensitivePatterns)
	if err != nil {
		return nil, newError(KindValidation, "guardrails", "invalid sensitive pattern", err)
	}
	maxDistance := cfg.MaxDistance
	if maxDistance <= 0 {
		maxDistance = 1.5
	}
	return &outputGuardrail{
		filterSensitive:   cfg.FilterSensitiveInfo,
		sensitive:         sensitive,
		validateRelevance: cfg.ValidateRelevance,
		maxDistance:       maxDistance,
		logger:            slog.Default().With("component", "rag"),
	}, nil
}

// Apply drops irrelevant results and redacts sensitive spans in place.
func (g *outputGuardrail) Apply(results []Result) []Result {
	out := results[:0]
	for _, r := range results {
		if g.validateRelevance && r.Score != nil && *r.Score > g.maxDistance {
			continue
		}
		if g.filterSensitive {
			for _, re := range g.sensitive {
				r.Text = re.ReplaceAllString(r.Text, "[REDACTED]")
			}
		}
		out = append(out, r)
	}
	if dropped := len(results) - len(out); dropped > 0 {
		g.logger.Debug("Output guardrail dropped results", "dropped", dropped)
	}
	return out
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
