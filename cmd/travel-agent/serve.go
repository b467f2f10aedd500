package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/llms"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/runtime"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/server"
)

// ServeCmd starts the chat service.
type ServeCmd struct {
	Port  int  `help:"Port to listen on (overrides config)."`
	Watch bool `help:"Watch config file for changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}
	defer rt.Close()
	if rt.Agent == nil {
		return fmt.Errorf("serve requires agent.llm to be configured")
	}

	if c.Watch && loader != nil {
		go func() {
			if err := loader.Watch(ctx, func(next *config.Config) {
				applyConfigChange(rt, next)
			}); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	router := server.NewRouter(cfg.Server)
	server.NewChatHandler(rt.Agent).Mount(router)
	server.NewAdminHandler(rt.Agent, cfg.LLMs, cfg.Agent.LLM, cfg.Tools.StatePath).Mount(router)
	if rt.Retrieval != nil {
		server.NewRetrievalHandler(rt.Retrieval).Mount(router)
	}

	srv := server.New(cfg.Server, router)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	fmt.Printf("\nTravel agent ready on http://%s\n", cfg.Server.Address())
	fmt.Printf("   Chat:    POST http://%s/agent/message/stream\n", cfg.Server.Address())
	fmt.Printf("   Admin:   http://%s/admin/config\n", cfg.Server.Address())
	if rt.Retrieval != nil {
		fmt.Printf("   Search:  POST http://%s/api/search\n", cfg.Server.Address())
	}
	fmt.Printf("   Health:  http://%s/health\n", cfg.Server.Address())
	fmt.Printf("   Metrics: http://%s%s\n", cfg.Server.Address(), rt.Observability.MetricsEndpoint())
	fmt.Println("\nPress Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("Shutting down...")
	return srv.Shutdown(context.Background())
}

// applyConfigChange applies the hot-reloadable subset of a changed
// config: the chat model. Everything else needs a restart.
func applyConfigChange(rt *runtime.Runtime, next *config.Config) {
	llmCfg, ok := next.LLMs[next.Agent.LLM]
	if !ok {
		slog.Warn("Config change ignored: agent llm not defined", "llm", next.Agent.LLM)
		return
	}
	current := rt.Agent.Provider()
	if current != nil && current.ModelName() == llmCfg.Model {
		return
	}
	provider, err := llms.NewProviderFromConfig(&llmCfg)
	if err != nil {
		slog.Error("Config change rejected", "error", err)
		return
	}
	rt.Agent.SetProvider(provider)
	slog.Info("Chat model switched", "llm", next.Agent.LLM, "model", llmCfg.Model)
}
