package tools

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// RetrievedChunk is one knowledge-base passage surfaced to the LLM.
type RetrievedChunk struct {
	ChunkID int64  `json:"chunk_id"`
	Text    string `json:"text"`
}

// KnowledgeRetriever is the seam to the RAG pipeline. Implemented by
// an adapter over the rag orchestrator; kept narrow so tools never
// depend on retrieval internals. History feeds the query rewriter and
// the expansion strategies.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, query string, history []HistoryMessage) ([]RetrievedChunk, error)
}

type faqSearchArgs struct {
	Query string `json:"query" jsonschema:"required,description=The customer question to look up in the FAQ"`
}

type knowledgeSearchArgs struct {
	Query string `json:"query" jsonschema:"required,description=The question to search the travel knowledge base for"`
}

type currentTimeArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA timezone name such as Asia/Shanghai; defaults to UTC"`
}

// faqEntry is one question/answer pair in the FAQ document.
type faqEntry struct {
	Question string   `yaml:"question"`
	Answer   string   `yaml:"answer"`
	Keywords []string `yaml:"keywords,omitempty"`
}

type faqDocument struct {
	Entries []faqEntry `yaml:"faqs"`
}

// RegisterLocalTools registers the built-in tools selected by config.
func RegisterLocalTools(reg *Registry, cfg config.LocalToolsConfig, retriever KnowledgeRetriever) error {
	if cfg.FAQPath != "" {
		if err := registerFAQSearch(reg, cfg.FAQPath); err != nil {
			return err
		}
	}

	if cfg.KnowledgeSearch != nil && *cfg.KnowledgeSearch && retriever != nil {
		if err := registerKnowledgeSearch(reg, retriever); err != nil {
			return err
		}
	}

	if cfg.CurrentTime != nil && *cfg.CurrentTime {
		if err := registerCurrentTime(reg); err != nil {
			return err
		}
	}

	return nil
}

func registerFAQSearch(reg *Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read FAQ document: %w", err)
	}

	var doc faqDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse FAQ document: %w", err)
	}

	return reg.Register(&Definition{
		Name:        "faq_search",
		Description: "Searches the travel agency FAQ for an answer to a common customer question (booking changes, refunds, baggage, check-in).",
		Parameters:  mustSchemaFor[faqSearchArgs](),
		Source:      "local",
		Handler: func(ctx context.Context, args map[string]any, _ *CallContext) (any, error) {
			parsed, err := decodeArgs[faqSearchArgs](args)
			if err != nil {
				return nil, err
			}
			return searchFAQ(doc.Entries, parsed.Query), nil
		},
	})
}

// searchFAQ scores entries by keyword overlap with the query and
// returns the answer/found shape the result formatter frames.
func searchFAQ(entries []faqEntry, query string) map[string]any {
	queryWords := tokenize(query)
	if len(queryWords) == 0 {
		return map[string]any{
			"answer":  nil,
			"found":   false,
			"message": "the question was empty; no relevant information was found.",
		}
	}

	type scored struct {
		entry faqEntry
		score int
	}
	var candidates []scored
	for _, entry := range entries {
		terms := make(map[string]bool)
		for w := range tokenize(entry.Question) {
			terms[w] = true
		}
		for _, kw := range entry.Keywords {
			for w := range tokenize(kw) {
				terms[w] = true
			}
		}

		score := 0
		for word := range queryWords {
			if terms[word] {
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{entry: entry, score: score})
		}
	}

	if len(candidates) == 0 {
		return map[string]any{
			"answer":  nil,
			"found":   false,
			"message": "no relevant information was found in the FAQ.",
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	best := candidates[0]
	return map[string]any{
		"answer": best.entry.Answer,
		"found":  true,
	}
}

func tokenize(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) > 1 {
			words[w] = true
		}
	}
	return words
}

func registerKnowledgeSearch(reg *Registry, retriever KnowledgeRetriever) error {
	return reg.Register(&Definition{
		Name:         KnowledgeSearchToolName,
		Description:  "Searches the travel knowledge base for destination guides, visa rules, and product details. Use this for anything not covered by the FAQ.",
		Parameters:   mustSchemaFor[knowledgeSearchArgs](),
		Source:       "local",
		WantsHistory: true,
		Handler: func(ctx context.Context, args map[string]any, callCtx *CallContext) (any, error) {
			parsed, err := decodeArgs[knowledgeSearchArgs](args)
			if err != nil {
				return nil, err
			}

			var history []HistoryMessage
			if callCtx != nil {
				history = callCtx.ConversationHistory
			}
			chunks, err := retriever.Retrieve(ctx, parsed.Query, history)
			if err != nil {
				return nil, newError(KnowledgeSearchToolName, "retrieval failed", err)
			}

			results := make([]map[string]any, 0, len(chunks))
			for _, chunk := range chunks {
				results = append(results, map[string]any{
					"chunk_id": chunk.ChunkID,
					"text":     chunk.Text,
				})
			}
			return map[string]any{"results": results}, nil
		},
	})
}

func registerCurrentTime(reg *Registry) error {
	return reg.Register(&Definition{
		Name:        "current_time",
		Description: "Returns the current date and time, optionally in a specific timezone.",
		Parameters:  mustSchemaFor[currentTimeArgs](),
		Source:      "local",
		Handler: func(ctx context.Context, args map[string]any, _ *CallContext) (any, error) {
			parsed, err := decodeArgs[currentTimeArgs](args)
			if err != nil {
				return nil, err
			}

			loc := time.UTC
			if parsed.Timezone != "" {
				loc, err = time.LoadLocation(parsed.Timezone)
				if err != nil {
					return nil, newError("current_time", "unknown timezone "+parsed.Timezone, err)
				}
			}
			return time.Now().In(loc).Format("2006-01-02 15:04:05 MST"), nil
		},
	})
}
