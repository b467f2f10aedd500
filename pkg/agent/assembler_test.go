package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/llms"
)

func TestAssemblerAccretesByID(t *testing.T) {
	a := newToolCallAssembler()
	a.Add(&llms.ToolCallDelta{ID: "c1", Name: "faq_search"})
	a.Add(&llms.ToolCallDelta{ID: "c1", Arguments: `{"query":`})
	a.Add(&llms.ToolCallDelta{ID: "c1", Arguments: `"visa"}`})

	calls, ok := a.Calls()
	require.True(t, ok)
	require.Len(t, calls, 1)
	assert.Equal(t, "c1", calls[0].ID)
	assert.Equal(t, "faq_search", calls[0].Name)
	assert.Equal(t, `{"query":"visa"}`, calls[0].Arguments)
}

func TestAssemblerEmptyIDContinuesLastCall(t *testing.T) {
	a := newToolCallAssembler()
	a.Add(&llms.ToolCallDelta{ID: "c1", Name: "faq_search", Arguments: `{"query":`})
	a.Add(&llms.ToolCallDelta{Arguments: `"visa"}`})

	calls, ok := a.Calls()
	require.True(t, ok)
	require.Len(t, calls, 1)
	assert.Equal(t, `{"query":"visa"}`, calls[0].Arguments)
}

func TestAssemblerMultipleCalls(t *testing.T) {
	a := newToolCallAssembler()
	a.Add(&llms.ToolCallDelta{ID: "c1", Name: "faq_search", Arguments: `{"query":"visa"}`})
	a.Add(&llms.ToolCallDelta{ID: "c2", Name: "current_time", Arguments: `{}`})

	calls, ok := a.Calls()
	require.True(t, ok)
	require.Len(t, calls, 2)
	assert.Equal(t, "faq_search", calls[0].Name)
	assert.Equal(t, "current_time", calls[1].Name)
}

func TestAssemblerMergeByNameFallback(t *testing.T) {
	// Fragments carry distinct ids but split one call's arguments, so
	// no single entry is complete; the merge pass repairs it.
	a := newToolCallAssembler()
	a.Add(&llms.ToolCallDelta{ID: "f1", Name: "faq_search", Arguments: `{"query":`})
	a.Add(&llms.ToolCallDelta{ID: "f2", Name: "faq_search", Arguments: `"visa"}`})

	calls, ok := a.Calls()
	require.True(t, ok)
	require.Len(t, calls, 1)
	assert.Equal(t, "faq_search", calls[0].Name)
	assert.Equal(t, `{"query":"visa"}`, calls[0].Arguments)
}

func TestAssemblerSyntheticIDForLegacyShape(t *testing.T) {
	// Legacy function_call fragments have no id at all.
	a := newToolCallAssembler()
	a.Add(&llms.ToolCallDelta{Name: "faq_search"})
	a.Add(&llms.ToolCallDelta{Arguments: `{"query":"visa"}`})

	calls, ok := a.Calls()
	require.True(t, ok)
	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].ID)
}

func TestAssemblerUnrepairable(t *testing.T) {
	a := newToolCallAssembler()
	a.Add(&llms.ToolCallDelta{ID: "c1", Name: "faq_search", Arguments: `{"query":`})

	_, ok := a.Calls()
	assert.False(t, ok)
	assert.False(t, a.Empty())
}
