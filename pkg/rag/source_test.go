package rag

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

func TestHTTPSourceSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/search", r.URL.Path)

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "visa rules", req.Query)
		assert.Equal(t, "travel_docs", req.PipelineName)
		assert.Equal(t, 5, req.TopK)

		score := 0.3
		json.NewEncoder(w).Encode(searchResponse{Results: []Result{
			{ChunkID: 42, Text: "Schengen visas allow 90 days.", Score: &score},
		}})
	}))
	defer server.Close()

	src := NewHTTPSource(config.RAGSourceConfig{
		Name: "docs", URL: server.URL, Pipeline: "travel_docs",
	})
	results, err := src.Search(context.Background(), "visa rules", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(42), results[0].ChunkID)
	assert.Equal(t, 0.3, *results[0].Score)
}

func TestHTTPSourceRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pipeline not found", http.StatusNotFound)
	}))
	defer server.Close()

	src := NewHTTPSource(config.RAGSourceConfig{Name: "docs", URL: server.URL})
	_, err := src.Search(context.Background(), "q", 5)
	require.Error(t, err)

	var ragErr *Error
	require.True(t, errors.As(err, &ragErr))
	assert.Equal(t, KindRemote, ragErr.Kind)
	assert.Equal(t, http.StatusNotFound, ragErr.StatusCode)
	assert.Contains(t, ragErr.Message, "pipeline not found")
}

func TestHTTPSourceParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	src := NewHTTPSource(config.RAGSourceConfig{Name: "docs", URL: server.URL})
	_, err := src.Search(context.Background(), "q", 5)

	var ragErr *Error
	require.True(t, errors.As(err, &ragErr))
	assert.Equal(t, KindParse, ragErr.Kind)
}

func TestHTTPSourceNetworkError(t *testing.T) {
	// Nothing listens here.
	src := NewHTTPSource(config.RAGSourceConfig{Name: "docs", URL: "http://127.0.0.1:1"})
	_, err := src.Search(context.Background(), "q", 5)

	var ragErr *Error
	require.True(t, errors.As(err, &ragErr))
	assert.Equal(t, KindNetwork, ragErr.Kind)
	assert.Equal(t, "docs", ragErr.Source)
}

func TestHTTPSourceIdentifier(t *testing.T) {
	src := NewHTTPSource(config.RAGSourceConfig{Name: "docs", URL: "http://svc", Pipeline: "p"})
	assert.Equal(t, "docs|http://svc|p", src.Identifier())
}
