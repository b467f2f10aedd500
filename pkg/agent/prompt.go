package agent

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/utils"
)

const defaultPrompt = `You are a helpful travel assistant. Answer questions about trips, bookings, and travel logistics. Use the available tools when they can ground your answer; never fabricate facts a tool could verify.

{tools}`

// PromptTemplate is the system-prompt template. It substitutes the
// {tools} placeholder with the enabled-tool list at render time and
// hot-reloads when the backing file changes.
type PromptTemplate struct {
	mu       sync.RWMutex
	path     string
	template string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

// NewPromptTemplate loads the template from path, or uses the built-in
// default when path is empty.
func NewPromptTemplate(path string) (*PromptTemplate, error) {
	p := &PromptTemplate{
		path:     path,
		template: defaultPrompt,
		logger:   slog.Default().With("component", "agent"),
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read system prompt: %w", err)
		}
		p.template = string(data)
	}
	return p, nil
}

// Watch reloads the template whenever the backing file changes. Editors
// that replace the file (rename-over) re-arm the watch on the parent
// directory.
func (p *PromptTemplate) Watch() error {
	if p.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return err
	}
	p.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(p.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				data, err := os.ReadFile(p.path)
				if err != nil {
					p.logger.Warn("Failed to reload system prompt", "error", err)
					continue
				}
				p.mu.Lock()
				p.template = string(data)
				p.mu.Unlock()
				p.logger.Info("System prompt reloaded", "path", p.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Warn("Prompt watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Close stops the watcher.
func (p *PromptTemplate) Close() error {
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

// Template returns the raw template text.
func (p *PromptTemplate) Template() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.template
}

// Set replaces the template and persists it to the backing file when
// one is configured.
func (p *PromptTemplate) Set(template string) error {
	p.mu.Lock()
	p.template = template
	p.mu.Unlock()
	if p.path != "" {
		return utils.AtomicWriteFile(p.path, []byte(template), 0o644)
	}
	return nil
}

// Render substitutes the {tools} placeholder with a bullet list of the
// given tool name/description pairs. A template without the placeholder
// gets the list appended under an "Available Tools:" heading. No tools
// removes the placeholder.
func (p *PromptTemplate) Render(toolLines []string) string {
	template := p.Template()

	list := ""
	if len(toolLines) > 0 {
		list = strings.Join(toolLines, "\n")
	}

	if strings.Contains(template, "{tools}") {
		return strings.TrimSpace(strings.ReplaceAll(template, "{tools}", list))
	}
	if list == "" {
		return strings.TrimSpace(template)
	}
	return strings.TrimSpace(template) + "\n\nAvailable Tools:\n" + list
}
