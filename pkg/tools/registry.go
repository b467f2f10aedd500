package tools

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/llms"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/registry"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/utils"
)

// Registry maps tool names to definitions and owns the enabled set.
// Disabled tools are invisible to the LLM and uncallable.
type Registry struct {
	defs *registry.BaseRegistry[*Definition]

	mu      sync.RWMutex
	enabled map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		defs:    registry.NewBaseRegistry[*Definition](),
		enabled: make(map[string]bool),
	}
}

// Register inserts or overwrites a definition. New tools start enabled
// unless a previously loaded state disabled them.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("tool definition requires a name")
	}
	if def.Handler == nil {
		return newError(def.Name, "definition has no handler", nil)
	}

	r.defs.Set(def.Name, def)

	r.mu.Lock()
	if _, known := r.enabled[def.Name]; !known {
		r.enabled[def.Name] = true
	}
	r.mu.Unlock()
	return nil
}

// Enable marks a tool callable. Unknown names error.
func (r *Registry) Enable(name string) error {
	return r.setEnabled(name, true)
}

// Disable hides a tool from the LLM and blocks calls. Unknown names
// error.
func (r *Registry) Disable(name string) error {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) error {
	if _, ok := r.defs.Get(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	r.mu.Lock()
	r.enabled[name] = enabled
	r.mu.Unlock()
	return nil
}

// Enabled reports whether a registered tool is enabled.
func (r *Registry) Enabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[name]
}

// Get returns a definition by name.
func (r *Registry) Get(name string) (*Definition, bool) {
	return r.defs.Get(name)
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	names := r.defs.Names()
	sort.Strings(names)
	return names
}

// Call dispatches an enabled tool. Handlers registered with
// WantsHistory receive the call context; others get nil so they cannot
// depend on it by accident.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any, callCtx *CallContext) (any, error) {
	def, ok := r.defs.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if !r.Enabled(name) {
		return nil, fmt.Errorf("%w: %s", ErrToolDisabled, name)
	}

	if !def.WantsHistory {
		callCtx = nil
	}
	return def.Handler(ctx, args, callCtx)
}

// DefinitionsForLLM projects the enabled tools into the provider-facing
// shape, sorted by name for stable prompts.
func (r *Registry) DefinitionsForLLM() []llms.ToolDefinition {
	var out []llms.ToolDefinition
	for _, name := range r.Names() {
		if !r.Enabled(name) {
			continue
		}
		def, _ := r.defs.Get(name)
		out = append(out, llms.ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}
	return out
}

// registryState is the persisted slice of registry state: which tools
// are enabled and their free-form config. Handler code never persists.
type registryState struct {
	Enabled []string                  `yaml:"enabled"`
	Config  map[string]map[string]any `yaml:"config,omitempty"`
}

// SaveState writes the enabled set and per-tool config as YAML via an
// atomic rename.
func (r *Registry) SaveState(path string) error {
	state := registryState{Config: make(map[string]map[string]any)}
	for _, name := range r.Names() {
		if r.Enabled(name) {
			state.Enabled = append(state.Enabled, name)
		}
		if def, ok := r.defs.Get(name); ok && len(def.Config) > 0 {
			state.Config[name] = def.Config
		}
	}

	data, err := yaml.Marshal(&state)
	if err != nil {
		return fmt.Errorf("failed to marshal tool state: %w", err)
	}
	if err := utils.AtomicWriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write tool state: %w", err)
	}
	return nil
}

// LoadState applies a previously saved state. Registered tools absent
// from the enabled list are disabled; names in the file that are not
// registered yet are remembered so a later Register honors them.
func (r *Registry) LoadState(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read tool state: %w", err)
	}

	var state registryState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse tool state: %w", err)
	}

	enabledSet := make(map[string]bool, len(state.Enabled))
	for _, name := range state.Enabled {
		enabledSet[name] = true
	}

	r.mu.Lock()
	for name := range r.enabled {
		r.enabled[name] = enabledSet[name]
		delete(enabledSet, name)
	}
	for name := range enabledSet {
		r.enabled[name] = true
	}
	r.mu.Unlock()

	for name, cfg := range state.Config {
		if def, ok := r.defs.Get(name); ok {
			def.Config = cfg
		}
	}
	return nil
}
