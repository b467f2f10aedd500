package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/agent"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/llms"
)

// knownModels are the switchable models per provider family, beyond
// whatever the config pins.
var knownModels = map[config.LLMProviderType][]string{
	config.LLMProviderOpenAI:    {"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini"},
	config.LLMProviderAnthropic: {"claude-sonnet-4-20250514", "claude-3-5-haiku-20241022"},
	config.LLMProviderGemini:    {"gemini-2.0-flash", "gemini-1.5-pro"},
	config.LLMProviderOllama:    {"llama3.2", "qwen2.5"},
}

// AdminHandler serves runtime configuration: live provider/model
// switching, the function registry, and the system prompt.
type AdminHandler struct {
	orchestrator *agent.Orchestrator
	llmConfigs   map[string]config.LLMProviderConfig
	statePath    string
	logger       *slog.Logger

	mu       sync.RWMutex
	provider string
	model    string
}

// NewAdminHandler wires the admin surface. activeProvider names the
// llms entry the orchestrator started with.
func NewAdminHandler(orchestrator *agent.Orchestrator, llmConfigs map[string]config.LLMProviderConfig, activeProvider, statePath string) *AdminHandler {
	model := ""
	if cfg, ok := llmConfigs[activeProvider]; ok {
		model = cfg.Model
	}
	return &AdminHandler{
		orchestrator: orchestrator,
		llmConfigs:   llmConfigs,
		statePath:    statePath,
		logger:       slog.Default().With("component", "server"),
		provider:     activeProvider,
		model:        model,
	}
}

// Mount registers the admin routes.
func (h *AdminHandler) Mount(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/config", h.handleGetConfig)
		r.Post("/config", h.handleSetConfig)
		r.Get("/providers", h.handleProviders)
		r.Get("/models", h.handleModels)
		r.Get("/function-calls", h.handleGetFunctions)
		r.Post("/function-calls", h.handleSetFunction)
		r.Get("/system-prompt", h.handleGetPrompt)
		r.Put("/system-prompt", h.handleSetPrompt)
	})
}

func (h *AdminHandler) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]string{
		"provider": h.provider,
		"model":    h.model,
	})
}

func (h *AdminHandler) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
		Model    string `json:"model,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, ok := h.llmConfigs[req.Provider]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}
	if req.Model != "" {
		cfg.Model = req.Model
	}

	provider, err := llms.NewProviderFromConfig(&cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.orchestrator.SetProvider(provider)

	h.mu.Lock()
	h.provider = req.Provider
	h.model = cfg.Model
	h.mu.Unlock()

	h.logger.Info("Switched chat model", "provider", req.Provider, "model", cfg.Model)
	writeJSON(w, http.StatusOK, map[string]string{"provider": req.Provider, "model": cfg.Model})
}

func (h *AdminHandler) handleProviders(w http.ResponseWriter, _ *http.Request) {
	type providerInfo struct {
		Name  string `json:"name"`
		Type  string `json:"type"`
		Model string `json:"model"`
	}
	out := make([]providerInfo, 0, len(h.llmConfigs))
	for name, cfg := range h.llmConfigs {
		out = append(out, providerInfo{Name: name, Type: string(cfg.Type), Model: cfg.Model})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

func (h *AdminHandler) handleModels(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("provider")
	cfg, ok := h.llmConfigs[name]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	models := []string{}
	seen := map[string]bool{}
	if cfg.Model != "" {
		models = append(models, cfg.Model)
		seen[cfg.Model] = true
	}
	for _, m := range knownModels[cfg.Type] {
		if !seen[m] {
			models = append(models, m)
			seen[m] = true
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider": name, "models": models})
}

func (h *AdminHandler) handleGetFunctions(w http.ResponseWriter, _ *http.Request) {
	registry := h.orchestrator.Registry()

	type functionInfo struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Enabled     bool           `json:"enabled"`
		Source      string         `json:"source,omitempty"`
		Config      map[string]any `json:"config,omitempty"`
	}
	var out []functionInfo
	for _, name := range registry.Names() {
		def, ok := registry.Get(name)
		if !ok {
			continue
		}
		out = append(out, functionInfo{
			Name:        name,
			Description: def.Description,
			Enabled:     registry.Enabled(name),
			Source:      def.Source,
			Config:      def.Config,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"functions": out})
}

func (h *AdminHandler) handleSetFunction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string         `json:"name"`
		Enabled *bool          `json:"enabled,omitempty"`
		Config  map[string]any `json:"config,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	registry := h.orchestrator.Registry()

	def, ok := registry.Get(req.Name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown function")
		return
	}

	if req.Enabled != nil {
		var err error
		if *req.Enabled {
			err = registry.Enable(req.Name)
		} else {
			err = registry.Disable(req.Name)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Config != nil {
		def.Config = req.Config
	}

	if h.statePath != "" {
		if err := registry.SaveState(h.statePath); err != nil {
			h.logger.Error("Failed to persist function state", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    req.Name,
		"enabled": registry.Enabled(req.Name),
	})
}

func (h *AdminHandler) handleGetPrompt(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"template": h.orchestrator.Prompt().Template(),
	})
}

func (h *AdminHandler) handleSetPrompt(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var req struct {
		Template string `json:"template"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Template == "" {
		writeError(w, http.StatusBadRequest, "template is required")
		return
	}
	if err := h.orchestrator.Prompt().Set(req.Template); err != nil {
		h.logger.Error("Failed to persist system prompt", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to persist prompt")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"template": req.Template})
}
