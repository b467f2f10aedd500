package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/runtime"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/server"
)

// RetrievalCmd starts the retrieval service on its own.
type RetrievalCmd struct {
	Port int `help:"Port to listen on (overrides config)."`
}

func (c *RetrievalCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cli.Config == "" {
		return fmt.Errorf("retrieval requires --config")
	}
	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	defer loader.Close()
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}
	defer rt.Close()
	if rt.Retrieval == nil {
		return fmt.Errorf("retrieval requires at least one pipeline under retrieval.pipelines")
	}

	router := server.NewRouter(cfg.Server)
	server.NewRetrievalHandler(rt.Retrieval).Mount(router)

	srv := server.New(cfg.Server, router)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	fmt.Printf("\nRetrieval service ready on http://%s\n", cfg.Server.Address())
	fmt.Printf("   Search:    POST http://%s/api/search\n", cfg.Server.Address())
	fmt.Printf("   Pipelines: GET  http://%s/api/pipelines\n", cfg.Server.Address())
	fmt.Println("\nPress Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("Shutting down...")
	return srv.Shutdown(context.Background())
}
