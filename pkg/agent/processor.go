package agent

import (
	"fmt"
	"strings"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/llms"
	"github.com/LiuHarry1/travel-agent-sub000/pkg/utils"
)

// processor turns an inbound request into the conversation the
// orchestrator feeds to the LLM: file block, history filtering, turn
// cap, and the optional token budget.
type processor struct {
	cfg     config.AgentConfig
	counter *utils.TokenCounter
}

func newProcessor(cfg config.AgentConfig, counter *utils.TokenCounter) *processor {
	return &processor{cfg: cfg, counter: counter}
}

// Prepare builds the user-visible conversation for one turn. The
// returned slice never contains tool messages or tool_calls; those only
// exist within an iteration.
func (p *processor) Prepare(req *Request) ([]llms.Message, error) {
	userText := req.Message
	if block, err := p.fileBlock(req.Files); err != nil {
		return nil, err
	} else if block != "" {
		userText = strings.TrimSpace(block + "\n\n" + userText)
	}

	var messages []llms.Message
	for _, m := range req.Messages {
		if m.Role != llms.RoleUser && m.Role != llms.RoleAssistant {
			continue
		}
		messages = append(messages, llms.Message{Role: m.Role, Content: m.Content})
	}
	if userText != "" {
		messages = append(messages, llms.Message{Role: llms.RoleUser, Content: userText})
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("request carries no message")
	}

	messages = p.trimTurns(messages)
	if p.cfg.MaxHistoryTokens > 0 && p.counter != nil {
		messages = p.trimTokens(messages)
	}
	return messages, nil
}

// fileBlock concatenates uploads into one tagged text block, enforcing
// the per-file and aggregate size caps.
func (p *processor) fileBlock(files []File) (string, error) {
	if len(files) == 0 {
		return "", nil
	}

	total := 0
	var sb strings.Builder
	for _, f := range files {
		if len(f.Content) > p.cfg.MaxFileBytes {
			return "", fmt.Errorf("file %q exceeds the %d byte limit", f.Name, p.cfg.MaxFileBytes)
		}
		total += len(f.Content)
		if total > p.cfg.MaxTotalFileBytes {
			return "", fmt.Errorf("uploaded files exceed the %d byte combined limit", p.cfg.MaxTotalFileBytes)
		}
		fmt.Fprintf(&sb, "[File: %s]\n%s\n\n", f.Name, f.Content)
	}
	return strings.TrimSpace(sb.String()), nil
}

// trimTurns keeps the last MaxConversationTurns messages. A leading
// system message survives the cut.
func (p *processor) trimTurns(messages []llms.Message) []llms.Message {
	max := p.cfg.MaxConversationTurns
	if len(messages) <= max {
		return messages
	}

	var system *llms.Message
	if messages[0].Role == llms.RoleSystem {
		system = &messages[0]
		messages = messages[1:]
	}
	if len(messages) > max {
		messages = messages[len(messages)-max:]
	}
	if system != nil {
		return append([]llms.Message{*system}, messages...)
	}
	return messages
}

// trimTokens drops oldest messages until the conversation fits the
// token budget. The newest message always survives.
func (p *processor) trimTokens(messages []llms.Message) []llms.Message {
	counted := make([]utils.Message, len(messages))
	for i, m := range messages {
		counted[i] = utils.Message{Role: m.Role, Content: m.Content}
	}

	fitted := p.counter.FitWithinLimit(counted, p.cfg.MaxHistoryTokens)
	if len(fitted) == 0 {
		return messages[len(messages)-1:]
	}
	return messages[len(messages)-len(fitted):]
}
