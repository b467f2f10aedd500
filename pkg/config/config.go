// Package config defines the typed configuration tree for the travel-agent
// services and the loader that reads it from YAML with environment-variable
// interpolation. Every section implements SetDefaults and Validate; the
// loader calls both after decoding.
package config

import (
	"fmt"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/observability"
)

// Config is the root of the configuration tree shared by the chat service
// and the retrieval service. Sections a deployment does not use may be left
// empty; Validate only checks what is configured.
type Config struct {
	Server        ServerConfig                 `yaml:"server,omitempty"`
	Logging       LoggingConfig                `yaml:"logging,omitempty"`
	Observability observability.Config         `yaml:"observability,omitempty"`
	LLMs          map[string]LLMProviderConfig `yaml:"llms,omitempty"`
	Agent         AgentConfig                  `yaml:"agent,omitempty"`
	Tools         ToolsConfig                  `yaml:"tools,omitempty"`
	RAG           RAGConfig                    `yaml:"rag,omitempty"`
	Retrieval     RetrievalConfig              `yaml:"retrieval,omitempty"`
	Databases     map[string]DatabaseConfig    `yaml:"databases,omitempty"`
	Embedders     map[string]EmbedderConfig    `yaml:"embedders,omitempty"`
}

// SetDefaults applies defaults across all sections.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Logging.SetDefaults()
	c.Observability.SetDefaults()

	for name, llm := range c.LLMs {
		llm.SetDefaults()
		c.LLMs[name] = llm
	}

	c.Agent.SetDefaults()
	c.Tools.SetDefaults()
	c.RAG.SetDefaults()
	c.Retrieval.SetDefaults()

	for name, db := range c.Databases {
		db.SetDefaults()
		c.Databases[name] = db
	}
	for name, emb := range c.Embedders {
		emb.SetDefaults()
		c.Embedders[name] = emb
	}
}

// Validate checks all configured sections and cross-section references.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}

	for name, llm := range c.LLMs {
		if err := llm.Validate(); err != nil {
			return fmt.Errorf("llms.%s: %w", name, err)
		}
	}

	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if c.Agent.LLM != "" {
		if _, ok := c.LLMs[c.Agent.LLM]; !ok {
			return fmt.Errorf("agent: llm %q is not defined under llms", c.Agent.LLM)
		}
	}

	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools: %w", err)
	}

	if err := c.RAG.Validate(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if c.RAG.Rewriter.Enabled && c.RAG.Rewriter.LLM != "" {
		if _, ok := c.LLMs[c.RAG.Rewriter.LLM]; !ok {
			return fmt.Errorf("rag.rewriter: llm %q is not defined under llms", c.RAG.Rewriter.LLM)
		}
	}

	if err := c.Retrieval.Validate(); err != nil {
		return fmt.Errorf("retrieval: %w", err)
	}
	for pname, pipeline := range c.Retrieval.Pipelines {
		if pipeline.Database != "" {
			if _, ok := c.Databases[pipeline.Database]; !ok {
				return fmt.Errorf("retrieval.pipelines.%s: database %q is not defined under databases", pname, pipeline.Database)
			}
		}
		for i, model := range pipeline.Models {
			if _, ok := c.Embedders[model.Provider]; !ok {
				return fmt.Errorf("retrieval.pipelines.%s.models[%d]: embedder %q is not defined under embedders", pname, i, model.Provider)
			}
		}
	}

	for name, db := range c.Databases {
		if err := db.Validate(); err != nil {
			return fmt.Errorf("databases.%s: %w", name, err)
		}
	}
	for name, emb := range c.Embedders {
		if err := emb.Validate(); err != nil {
			return fmt.Errorf("embedders.%s: %w", name, err)
		}
	}

	return nil
}

// BoolPtr returns a pointer to b. Used for tri-state config fields where
// absent and false differ.
func BoolPtr(b bool) *bool {
	return &b
}

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 {
	return &f
}
