package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/agent"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/runtime"
)

// ChatCmd runs an interactive chat session against the local
// orchestrator, no server in between. Ctrl+C exits; the stdin loop is
// the lifecycle.
type ChatCmd struct{}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("chat requires an interactive terminal; pipe input through the HTTP API instead")
	}

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}
	defer rt.Close()
	if rt.Agent == nil {
		return fmt.Errorf("chat requires agent.llm to be configured")
	}

	fmt.Println("\nChatting with the travel agent. Commands:")
	fmt.Println("  /quit or /exit - end the session")
	fmt.Println("  /clear         - clear conversation history")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	var history []agent.InMsg

	for {
		fmt.Print("You: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			switch input {
			case "/quit", "/exit":
				fmt.Println("Bye.")
				return nil
			case "/clear":
				history = nil
				fmt.Println("Conversation history cleared.")
				continue
			default:
				fmt.Printf("Unknown command: %s\n", input)
				continue
			}
		}

		reply, err := c.turn(ctx, rt, history, input)
		if err != nil {
			fmt.Printf("Error: %v\n\n", err)
			continue
		}
		history = append(history,
			agent.InMsg{Role: "user", Content: input},
			agent.InMsg{Role: "assistant", Content: reply},
		)
	}
}

func (c *ChatCmd) turn(ctx context.Context, rt *runtime.Runtime, history []agent.InMsg, input string) (string, error) {
	events, err := rt.Agent.Stream(ctx, &agent.Request{Message: input, Messages: history})
	if err != nil {
		return "", err
	}

	fmt.Print("\nAgent: ")
	var reply strings.Builder
	for ev := range events {
		switch ev.Type {
		case agent.EventChunk:
			fmt.Print(ev.Content)
			reply.WriteString(ev.Content)
		case agent.EventToolCallStart:
			fmt.Printf("\n  [calling %s]\n", ev.Tool)
		case agent.EventToolCallError:
			fmt.Printf("\n  [%s failed: %s]\n", ev.Tool, ev.Error)
		case agent.EventError:
			fmt.Printf("\n  [error: %s]\n", ev.Error)
		}
	}
	fmt.Print("\n\n")
	return reply.String(), nil
}
