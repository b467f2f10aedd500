package config

import (
	"fmt"
	"time"
)

// AgentConfig configures the streaming chat orchestrator and the message
// processor.
type AgentConfig struct {
	// LLM names the llms entry used for chat turns.
	LLM string `yaml:"llm,omitempty"`

	// TitleLLM optionally names a separate llms entry for title
	// generation. Defaults to LLM.
	TitleLLM string `yaml:"title_llm,omitempty"`

	// SystemPromptPath is a template file; the {tools} placeholder is
	// replaced by the enabled-tool list. Watched for changes.
	SystemPromptPath string `yaml:"system_prompt_path,omitempty"`

	// MaxToolIterations caps LLM/tool round trips per chat turn.
	MaxToolIterations int `yaml:"max_tool_iterations,omitempty"`

	// MaxConversationTurns caps history length by message count. A leading
	// system message survives trimming.
	MaxConversationTurns int `yaml:"max_conversation_turns,omitempty"`

	// MaxHistoryTokens further trims history to a token budget. 0 disables
	// token trimming.
	MaxHistoryTokens int `yaml:"max_history_tokens,omitempty"`

	// MaxFileBytes caps a single uploaded file payload.
	MaxFileBytes int `yaml:"max_file_bytes,omitempty"`

	// MaxTotalFileBytes caps the combined uploaded payload per request.
	MaxTotalFileBytes int `yaml:"max_total_file_bytes,omitempty"`

	// ContactName is suggested when tools find nothing useful.
	ContactName string `yaml:"contact_name,omitempty"`

	// StreamBuffer sizes the per-request event channel.
	StreamBuffer int `yaml:"stream_buffer,omitempty"`

	// TitleTimeout bounds the title-generation completion.
	TitleTimeout time.Duration `yaml:"title_timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *AgentConfig) SetDefaults() {
	if c.MaxToolIterations == 0 {
		c.MaxToolIterations = 4
	}
	if c.MaxConversationTurns == 0 {
		c.MaxConversationTurns = 20
	}
	if c.MaxFileBytes == 0 {
		c.MaxFileBytes = 256 * 1024
	}
	if c.MaxTotalFileBytes == 0 {
		c.MaxTotalFileBytes = 1024 * 1024
	}
	if c.ContactName == "" {
		c.ContactName = "Harry"
	}
	if c.StreamBuffer == 0 {
		c.StreamBuffer = 64
	}
	if c.TitleTimeout == 0 {
		c.TitleTimeout = 15 * time.Second
	}
	if c.TitleLLM == "" {
		c.TitleLLM = c.LLM
	}
}

// Validate checks the agent configuration.
func (c *AgentConfig) Validate() error {
	if c.MaxToolIterations < 1 {
		return fmt.Errorf("max_tool_iterations must be at least 1")
	}
	if c.MaxConversationTurns < 1 {
		return fmt.Errorf("max_conversation_turns must be at least 1")
	}
	if c.MaxHistoryTokens < 0 {
		return fmt.Errorf("max_history_tokens must be non-negative")
	}
	if c.MaxFileBytes < 0 || c.MaxTotalFileBytes < 0 {
		return fmt.Errorf("file size limits must be non-negative")
	}
	return nil
}
