package main

import (
	"context"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// loadConfig reads the config file, or falls back to a zero-config
// local setup (Ollama on localhost) when no path is given.
func loadConfig(ctx context.Context, path string) (*config.Config, *config.Loader, error) {
	if path != "" {
		return config.LoadFile(ctx, path)
	}
	return zeroConfig(), nil, nil
}

func zeroConfig() *config.Config {
	cfg := &config.Config{
		LLMs: map[string]config.LLMProviderConfig{
			"main": {Type: config.LLMProviderOllama},
		},
	}
	cfg.Agent.LLM = "main"
	cfg.SetDefaults()
	return cfg
}
