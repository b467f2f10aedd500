package embedders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

func openAITestConfig(baseURL string) *config.EmbedderConfig {
	cfg := &config.EmbedderConfig{
		Type:    config.EmbedderOpenAI,
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "text-embedding-3-small",
		Timeout: 5 * time.Second,
	}
	cfg.SetDefaults()
	cfg.BaseURL = baseURL
	return cfg
}

func TestOpenAIEmbedBatchOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "text-embedding-3-small" {
			t.Errorf("model = %q", req.Model)
		}
		// Answer out of order; the client must restore input order.
		fmt.Fprint(w, `{"data":[{"index":1,"embedding":[2.0]},{"index":0,"embedding":[1.0]}]}`)
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedderFromConfig(openAITestConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}

	vectors, err := e.EmbedBatch(context.Background(), []string{"first", "second"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if vectors[0][0] != 1.0 || vectors[1][0] != 2.0 {
		t.Errorf("vectors out of order: %v", vectors)
	}
}

func TestOpenAIEmbedModelOverride(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[0.5]}]}`)
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedderFromConfig(openAITestConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "text", "text-embedding-3-large"); err != nil {
		t.Fatal(err)
	}
	if gotModel != "text-embedding-3-large" {
		t.Errorf("model override not honored, got %q", gotModel)
	}
}

func TestOpenAIEmbedErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad input"}}`)
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedderFromConfig(openAITestConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "text", ""); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestRegistryFactory(t *testing.T) {
	reg := NewRegistry()
	cfg := openAITestConfig("http://localhost:0")

	if _, err := reg.CreateFromConfig("primary", cfg); err != nil {
		t.Fatalf("CreateFromConfig: %v", err)
	}
	if _, err := reg.GetEmbedder("primary"); err != nil {
		t.Fatalf("GetEmbedder: %v", err)
	}
	if _, err := reg.GetEmbedder("missing"); err == nil {
		t.Fatal("expected error for missing embedder")
	}

	bad := &config.EmbedderConfig{Type: "word2vec"}
	if _, err := reg.CreateFromConfig("bad", bad); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
