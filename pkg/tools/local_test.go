package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

const testFAQ = `faqs:
  - question: How do I change my booking?
    answer: Bookings can be changed up to 24 hours before departure through your account page.
    keywords: [booking, change, modify]
  - question: What is the baggage allowance?
    answer: Economy tickets include one 23kg checked bag.
    keywords: [baggage, luggage, allowance]
  - question: Do you offer travel insurance?
    answer: Comprehensive travel insurance can be added during checkout.
`

func writeFAQ(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testFAQ), 0o644))
	return path
}

type stubRetriever struct {
	chunks  []RetrievedChunk
	err     error
	query   string
	history []HistoryMessage
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, history []HistoryMessage) ([]RetrievedChunk, error) {
	s.query = query
	s.history = history
	return s.chunks, s.err
}

func localConfig(faqPath string) config.LocalToolsConfig {
	return config.LocalToolsConfig{
		FAQPath:         faqPath,
		KnowledgeSearch: config.BoolPtr(true),
		CurrentTime:     config.BoolPtr(true),
	}
}

func TestRegisterLocalTools(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterLocalTools(reg, localConfig(writeFAQ(t)), &stubRetriever{}))

	assert.Equal(t, []string{"current_time", "faq_search", "knowledge_search"}, reg.Names())
}

func TestFAQSearchMatch(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterLocalTools(reg, localConfig(writeFAQ(t)), nil))

	result, err := reg.Call(context.Background(), "faq_search",
		map[string]any{"query": "can I change my booking?"}, nil)
	require.NoError(t, err)

	obj := result.(map[string]any)
	assert.Equal(t, true, obj["found"])
	assert.Contains(t, obj["answer"], "24 hours before departure")
}

func TestFAQSearchMatchesQuestionWordsAndKeywords(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterLocalTools(reg, localConfig(writeFAQ(t)), nil))

	// "luggage" only appears in the entry's keyword list.
	result, err := reg.Call(context.Background(), "faq_search",
		map[string]any{"query": "what about my luggage?"}, nil)
	require.NoError(t, err)
	obj := result.(map[string]any)
	assert.Equal(t, true, obj["found"])
	assert.Contains(t, obj["answer"], "23kg")

	// The insurance entry has no keywords; the match comes from the
	// question's own words.
	result, err = reg.Call(context.Background(), "faq_search",
		map[string]any{"query": "do you have travel insurance?"}, nil)
	require.NoError(t, err)
	obj = result.(map[string]any)
	assert.Equal(t, true, obj["found"])
	assert.Contains(t, obj["answer"], "during checkout")
}

func TestFAQSearchNoMatch(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterLocalTools(reg, localConfig(writeFAQ(t)), nil))

	result, err := reg.Call(context.Background(), "faq_search",
		map[string]any{"query": "quantum mechanics"}, nil)
	require.NoError(t, err)

	obj := result.(map[string]any)
	assert.Equal(t, false, obj["found"])
	assert.Nil(t, obj["answer"])
	assert.Contains(t, obj["message"], "no relevant information")
}

func TestKnowledgeSearchTool(t *testing.T) {
	retriever := &stubRetriever{chunks: []RetrievedChunk{
		{ChunkID: 7, Text: "Japan visa waiver covers 90 days."},
	}}

	reg := NewRegistry()
	cfg := config.LocalToolsConfig{KnowledgeSearch: config.BoolPtr(true)}
	require.NoError(t, RegisterLocalTools(reg, cfg, retriever))

	def, ok := reg.Get(KnowledgeSearchToolName)
	require.True(t, ok)
	assert.True(t, def.WantsHistory)

	callCtx := &CallContext{ConversationHistory: []HistoryMessage{
		{Role: "user", Content: "I am planning a trip to Japan"},
		{Role: "assistant", Content: "Happy to help with that."},
	}}
	result, err := reg.Call(context.Background(), KnowledgeSearchToolName,
		map[string]any{"query": "japan visa"}, callCtx)
	require.NoError(t, err)
	assert.Equal(t, "japan visa", retriever.query)

	require.Len(t, retriever.history, 2)
	assert.Equal(t, "I am planning a trip to Japan", retriever.history[0].Content)

	obj := result.(map[string]any)
	results := obj["results"].([]map[string]any)
	require.Len(t, results, 1)
	assert.Equal(t, int64(7), results[0]["chunk_id"])
}

func TestCurrentTimeTool(t *testing.T) {
	reg := NewRegistry()
	cfg := config.LocalToolsConfig{CurrentTime: config.BoolPtr(true)}
	require.NoError(t, RegisterLocalTools(reg, cfg, nil))

	result, err := reg.Call(context.Background(), "current_time",
		map[string]any{"timezone": "UTC"}, nil)
	require.NoError(t, err)
	assert.Contains(t, result.(string), "UTC")

	_, err = reg.Call(context.Background(), "current_time",
		map[string]any{"timezone": "Mars/Olympus"}, nil)
	require.Error(t, err)
}

func TestFAQSchemaShape(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterLocalTools(reg, localConfig(writeFAQ(t)), nil))

	def, ok := reg.Get("faq_search")
	require.True(t, ok)
	assert.Equal(t, "object", def.Parameters["type"])

	props := def.Parameters["properties"].(map[string]any)
	_, hasQuery := props["query"]
	assert.True(t, hasQuery)

	required, _ := def.Parameters["required"].([]any)
	assert.Contains(t, required, "query")
}
