package mcp

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

// shellMetacharacters are rejected in command strings. Commands run
// without a shell, so their presence means the config was written for
// shell expansion that will never happen.
const shellMetacharacters = "|&;<>()$`\\\"'"

// transport owns one tool-server subprocess and its stdio pipes.
type transport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	logger *slog.Logger

	// exited is closed by the wait goroutine when the process dies.
	exited  chan struct{}
	exitErr error

	closeOnce sync.Once
}

// startTransport spawns the configured command and wires its pipes. The
// child inherits our environment plus the configured extras; when a
// working directory is set it is also exported as PYTHONPATH so
// Python-based servers resolve local modules.
func startTransport(name string, cfg config.StdioServerConfig, logger *slog.Logger) (*transport, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command is required")
	}
	if strings.ContainsAny(cfg.Command, shellMetacharacters) {
		return nil, fmt.Errorf("command %q contains shell metacharacters", cfg.Command)
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if cfg.WorkDir != "" {
		cmd.Dir = cfg.WorkDir
		cmd.Env = append(cmd.Env, "PYTHONPATH="+cfg.WorkDir)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Command, err)
	}

	t := &transport{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		logger: logger.With("server", name, "pid", cmd.Process.Pid),
		exited: make(chan struct{}),
	}

	go t.drainStderr(stderr)
	go func() {
		t.exitErr = cmd.Wait()
		close(t.exited)
	}()

	t.logger.Debug("Started tool server", "command", cfg.Command)
	return t, nil
}

func (t *transport) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			t.logger.Debug("Tool server stderr", "message", line)
		}
	}
}

// Exited is closed once the subprocess has died.
func (t *transport) Exited() <-chan struct{} {
	return t.exited
}

// Close tears the subprocess down: stdin first so well-behaved servers
// exit on EOF, then a kill for the rest. Idempotent; teardown errors
// are swallowed.
func (t *transport) Close() {
	t.closeOnce.Do(func() {
		_ = t.stdin.Close()
		select {
		case <-t.exited:
		default:
			_ = t.cmd.Process.Kill()
			<-t.exited
		}
		_ = t.stdout.Close()
	})
}
