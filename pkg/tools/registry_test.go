package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticTool(name string, result any) *Definition {
	return &Definition{
		Name:        name,
		Description: name + " tool",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		Handler: func(ctx context.Context, args map[string]any, callCtx *CallContext) (any, error) {
			return result, nil
		},
	}
}

func TestRegistryRegisterAndCall(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(staticTool("greet", "hello")))

	result, err := reg.Call(context.Background(), "greet", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}

func TestRegistryRejectsMissingHandler(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(&Definition{Name: "broken"})
	require.Error(t, err)
}

func TestRegistryDisableHidesAndBlocks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(staticTool("a", 1)))
	require.NoError(t, reg.Register(staticTool("b", 2)))

	require.NoError(t, reg.Disable("a"))

	_, err := reg.Call(context.Background(), "a", nil, nil)
	assert.ErrorIs(t, err, ErrToolDisabled)

	defs := reg.DefinitionsForLLM()
	require.Len(t, defs, 1)
	assert.Equal(t, "b", defs[0].Name)

	require.NoError(t, reg.Enable("a"))
	assert.Len(t, reg.DefinitionsForLLM(), 2)
}

func TestRegistryEnableUnknownTool(t *testing.T) {
	reg := NewRegistry()
	assert.ErrorIs(t, reg.Enable("ghost"), ErrUnknownTool)
	assert.ErrorIs(t, reg.Disable("ghost"), ErrUnknownTool)
}

func TestRegistryCallUnknownTool(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Call(context.Background(), "ghost", nil, nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistryHistoryGating(t *testing.T) {
	reg := NewRegistry()

	var seen *CallContext
	require.NoError(t, reg.Register(&Definition{
		Name: "nosy",
		Handler: func(ctx context.Context, args map[string]any, callCtx *CallContext) (any, error) {
			seen = callCtx
			return "", nil
		},
	}))
	require.NoError(t, reg.Register(&Definition{
		Name:         "historian",
		WantsHistory: true,
		Handler: func(ctx context.Context, args map[string]any, callCtx *CallContext) (any, error) {
			seen = callCtx
			return "", nil
		},
	}))

	callCtx := &CallContext{ConversationHistory: []HistoryMessage{{Role: "user", Content: "hi"}}}

	_, err := reg.Call(context.Background(), "nosy", nil, callCtx)
	require.NoError(t, err)
	assert.Nil(t, seen, "handler without WantsHistory must not see history")

	_, err = reg.Call(context.Background(), "historian", nil, callCtx)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "hi", seen.ConversationHistory[0].Content)
}

func TestRegistryStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "tools.yaml")

	reg := NewRegistry()
	require.NoError(t, reg.Register(staticTool("a", 1)))
	require.NoError(t, reg.Register(staticTool("b", 2)))
	require.NoError(t, reg.Disable("b"))

	def, _ := reg.Get("a")
	def.Config = map[string]any{"limit": 5}

	require.NoError(t, reg.SaveState(path))

	fresh := NewRegistry()
	require.NoError(t, fresh.Register(staticTool("a", 1)))
	require.NoError(t, fresh.Register(staticTool("b", 2)))
	require.NoError(t, fresh.LoadState(path))

	assert.True(t, fresh.Enabled("a"))
	assert.False(t, fresh.Enabled("b"))

	freshDef, _ := fresh.Get("a")
	assert.Equal(t, 5, freshDef.Config["limit"])
}

func TestRegistryLoadStateMissingFile(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.LoadState(filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestRegistryLoadStateRemembersUnregistered(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled:\n  - later\n"), 0o644))

	reg := NewRegistry()
	require.NoError(t, reg.LoadState(path))
	require.NoError(t, reg.Register(staticTool("later", "ok")))

	assert.True(t, reg.Enabled("later"))
}
