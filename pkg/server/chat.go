package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/agent"
)

// ChatHandler serves the conversational endpoints.
type ChatHandler struct {
	orchestrator *agent.Orchestrator
	logger       *slog.Logger
}

func NewChatHandler(orchestrator *agent.Orchestrator) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
		logger:       slog.Default().With("component", "server"),
	}
}

// Mount registers the chat routes.
func (h *ChatHandler) Mount(r chi.Router) {
	r.Post("/agent/message/stream", h.handleStream)
	r.Post("/agent/generate-title", h.handleGenerateTitle)
}

func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	var req agent.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, err := h.orchestrator.Stream(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("Failed to marshal stream event", "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// Client went away; the orchestrator stops via context.
			return
		}
		flusher.Flush()
	}
}

func (h *ChatHandler) handleGenerateTitle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []agent.InMsg `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}

	title, err := h.orchestrator.GenerateTitle(r.Context(), req.Messages)
	if err != nil {
		h.logger.Error("Title generation failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to generate title")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": title})
}
