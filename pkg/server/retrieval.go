package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/retrieval"
)

// RetrievalHandler serves the retrieval-service search endpoint.
type RetrievalHandler struct {
	service *retrieval.Service
	logger  *slog.Logger
}

func NewRetrievalHandler(service *retrieval.Service) *RetrievalHandler {
	return &RetrievalHandler{
		service: service,
		logger:  slog.Default().With("component", "server"),
	}
}

// Mount registers the retrieval routes.
func (h *RetrievalHandler) Mount(r chi.Router) {
	r.Post("/api/search", h.handleSearch)
	r.Get("/api/pipelines", h.handlePipelines)
}

type searchRequest struct {
	Query        string `json:"query"`
	PipelineName string `json:"pipeline_name"`
	TopK         int    `json:"top_k,omitempty"`
	Debug        bool   `json:"debug,omitempty"`
}

func (h *RetrievalHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.PipelineName == "" {
		writeError(w, http.StatusBadRequest, "pipeline_name is required")
		return
	}

	pipeline, err := h.service.Pipeline(req.PipelineName)
	if err != nil {
		var notFound *retrieval.ErrPipelineNotFound
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.Debug {
		chunks, debug, err := pipeline.SearchDebug(r.Context(), req.Query, req.TopK)
		if err != nil {
			h.logger.Error("Search failed", "pipeline", req.PipelineName, "error", err)
			writeError(w, http.StatusBadGateway, "search failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": chunks, "debug": debug})
		return
	}

	chunks, err := pipeline.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		h.logger.Error("Search failed", "pipeline", req.PipelineName, "error", err)
		writeError(w, http.StatusBadGateway, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": chunks})
}

func (h *RetrievalHandler) handlePipelines(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"pipelines": h.service.Names()})
}
