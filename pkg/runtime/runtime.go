// Package runtime assembles the service from config: every registry,
// the RAG and retrieval pipelines, the tool sources, and the chat
// orchestrator, with teardown in reverse build order.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/agent"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/databases"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/embedders"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/llms"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/mcp"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/observability"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/rag"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/retrieval"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/tools"
)

// Runtime owns every built component. Fields are nil when the config
// does not call for them.
type Runtime struct {
	Config        *config.Config
	Observability *observability.Manager
	LLMs          *llms.Registry
	Embedders     *embedders.Registry
	Databases     *databases.Registry
	Retrieval     *retrieval.Service
	RAG           *rag.Orchestrator
	MCP           *mcp.Manager
	Tools         *tools.Registry
	Agent         *agent.Orchestrator

	httpSources []*tools.HTTPSource
	prompt      *agent.PromptTemplate
	logger      *slog.Logger
}

// New builds the runtime bottom-up. A failure mid-build tears down
// whatever was already started.
func New(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	r := &Runtime{
		Config: cfg,
		logger: slog.Default().With("component", "runtime"),
	}
	if err := r.build(ctx); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Runtime) build(ctx context.Context) error {
	cfg := r.Config

	r.Observability = observability.NewManager(cfg.Observability)
	if err := r.Observability.Initialize(ctx); err != nil {
		return fmt.Errorf("observability: %w", err)
	}

	r.LLMs = llms.NewRegistry()
	for name, llmCfg := range cfg.LLMs {
		if _, err := r.LLMs.CreateFromConfig(name, &llmCfg); err != nil {
			return err
		}
	}

	r.Embedders = embedders.NewRegistry()
	for name, embCfg := range cfg.Embedders {
		if _, err := r.Embedders.CreateFromConfig(name, &embCfg); err != nil {
			return err
		}
	}

	r.Databases = databases.NewRegistry()
	for name, dbCfg := range cfg.Databases {
		if _, err := r.Databases.CreateFromConfig(name, &dbCfg); err != nil {
			return err
		}
	}

	if len(cfg.Retrieval.Pipelines) > 0 {
		service, err := retrieval.NewServiceFromConfig(&cfg.Retrieval, r.Embedders, r.Databases)
		if err != nil {
			return err
		}
		r.Retrieval = service
	}

	if cfg.RAG.Enabled {
		var rewriterLLM llms.Provider
		if cfg.RAG.Rewriter.Enabled && cfg.RAG.Rewriter.LLM != "" {
			provider, err := r.LLMs.GetProvider(cfg.RAG.Rewriter.LLM)
			if err != nil {
				return fmt.Errorf("rag rewriter: %w", err)
			}
			rewriterLLM = provider
		}
		orchestrator, err := rag.NewOrchestrator(&cfg.RAG, rewriterLLM)
		if err != nil {
			return err
		}
		r.RAG = orchestrator
	}

	if err := r.buildTools(ctx); err != nil {
		return err
	}

	if cfg.Agent.LLM != "" {
		if err := r.buildAgent(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) buildTools(ctx context.Context) error {
	cfg := r.Config
	r.Tools = tools.NewRegistry()

	var retriever tools.KnowledgeRetriever
	if r.RAG != nil {
		retriever = &ragRetriever{orchestrator: r.RAG}
	}
	if err := tools.RegisterLocalTools(r.Tools, cfg.Tools.Local, retriever); err != nil {
		return err
	}

	if len(cfg.Tools.Stdio) > 0 {
		r.MCP = mcp.NewManager(cfg.Tools.Stdio)
		if err := r.MCP.Start(ctx); err != nil {
			return fmt.Errorf("mcp servers: %w", err)
		}
		if err := tools.RegisterStdioTools(r.Tools, r.MCP); err != nil {
			return err
		}
	}

	for name, httpCfg := range cfg.Tools.HTTP {
		source, err := tools.NewHTTPSource(ctx, name, httpCfg)
		if err != nil {
			return fmt.Errorf("http tool server %q: %w", name, err)
		}
		r.httpSources = append(r.httpSources, source)
		if err := source.RegisterTools(ctx, r.Tools); err != nil {
			return fmt.Errorf("http tool server %q: %w", name, err)
		}
	}

	if cfg.Tools.StatePath != "" {
		if _, err := os.Stat(cfg.Tools.StatePath); err == nil {
			if err := r.Tools.LoadState(cfg.Tools.StatePath); err != nil {
				r.logger.Warn("Failed to load function state", "path", cfg.Tools.StatePath, "error", err)
			}
		}
	}
	return nil
}

func (r *Runtime) buildAgent() error {
	cfg := r.Config

	provider, err := r.LLMs.GetProvider(cfg.Agent.LLM)
	if err != nil {
		return fmt.Errorf("agent llm: %w", err)
	}
	titleProvider := provider
	if cfg.Agent.TitleLLM != "" && cfg.Agent.TitleLLM != cfg.Agent.LLM {
		titleProvider, err = r.LLMs.GetProvider(cfg.Agent.TitleLLM)
		if err != nil {
			return fmt.Errorf("title llm: %w", err)
		}
	}

	prompt, err := agent.NewPromptTemplate(cfg.Agent.SystemPromptPath)
	if err != nil {
		return err
	}
	if err := prompt.Watch(); err != nil {
		r.logger.Warn("System prompt watch failed", "error", err)
	}
	r.prompt = prompt

	executor := tools.NewExecutor(r.Tools, cfg.Tools.MaxParallel)
	r.Agent = agent.NewOrchestrator(cfg.Agent, provider, titleProvider, r.Tools, executor, prompt)
	return nil
}

// Close tears everything down in reverse build order. Safe on a
// partially built runtime.
func (r *Runtime) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if r.prompt != nil {
		keep(r.prompt.Close())
	}
	for _, source := range r.httpSources {
		keep(source.Close())
	}
	if r.MCP != nil {
		keep(r.MCP.Shutdown())
	}
	if r.Retrieval != nil {
		keep(r.Retrieval.Close())
	}
	if r.Databases != nil {
		keep(r.Databases.Close())
	}
	if r.Embedders != nil {
		keep(r.Embedders.Close())
	}
	if r.LLMs != nil {
		keep(r.LLMs.Close())
	}
	if r.Observability != nil {
		keep(r.Observability.Shutdown(context.Background()))
	}
	return firstErr
}

// ragRetriever adapts the RAG orchestrator to the knowledge-search
// tool's narrow seam, carrying conversation history through to the
// rewriter and expansion strategies.
type ragRetriever struct {
	orchestrator *rag.Orchestrator
}

func (a *ragRetriever) Retrieve(ctx context.Context, query string, history []tools.HistoryMessage) ([]tools.RetrievedChunk, error) {
	turns := make([]rag.HistoryTurn, 0, len(history))
	for _, m := range history {
		turns = append(turns, rag.HistoryTurn{Role: m.Role, Content: m.Content})
	}
	resp, err := a.orchestrator.Retrieve(ctx, query, turns)
	if err != nil {
		return nil, err
	}
	chunks := make([]tools.RetrievedChunk, 0, len(resp.Results))
	for _, result := range resp.Results {
		chunks = append(chunks, tools.RetrievedChunk{ChunkID: result.ChunkID, Text: result.Text})
	}
	return chunks, nil
}
