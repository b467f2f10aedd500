package main

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// ValidateCmd checks a configuration file.
type ValidateCmd struct {
	Config string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH"`

	PrintConfig bool `short:"p" name:"print-config" help:"Print the expanded configuration (defaults applied, env vars resolved)."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, loader, err := config.LoadFile(context.Background(), c.Config)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	defer loader.Close()

	fmt.Printf("%s: configuration valid\n", c.Config)
	if c.PrintConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
	return nil
}
