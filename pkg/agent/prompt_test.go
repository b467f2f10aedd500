package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesPlaceholder(t *testing.T) {
	p := &PromptTemplate{template: "You help travelers.\n\n{tools}"}
	out := p.Render([]string{"- faq_search: Search the FAQ.", "- current_time: Clock."})
	assert.Equal(t, "You help travelers.\n\n- faq_search: Search the FAQ.\n- current_time: Clock.", out)
}

func TestRenderAppendsWithoutPlaceholder(t *testing.T) {
	p := &PromptTemplate{template: "You help travelers."}
	out := p.Render([]string{"- faq_search: Search the FAQ."})
	assert.Equal(t, "You help travelers.\n\nAvailable Tools:\n- faq_search: Search the FAQ.", out)
}

func TestRenderNoTools(t *testing.T) {
	p := &PromptTemplate{template: "You help travelers.\n\n{tools}"}
	assert.Equal(t, "You help travelers.", p.Render(nil))

	p = &PromptTemplate{template: "You help travelers."}
	assert.Equal(t, "You help travelers.", p.Render(nil))
}

func TestPromptLoadAndSetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("original {tools}"), 0o644))

	p, err := NewPromptTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "original {tools}", p.Template())

	require.NoError(t, p.Set("updated {tools}"))
	assert.Equal(t, "updated {tools}", p.Template())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "updated {tools}", string(data))
}

func TestPromptMissingFile(t *testing.T) {
	_, err := NewPromptTemplate(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}

func TestPromptDefaultWithoutPath(t *testing.T) {
	p, err := NewPromptTemplate("")
	require.NoError(t, err)
	assert.Contains(t, p.Template(), "{tools}")
}
