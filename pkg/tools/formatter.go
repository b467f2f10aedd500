package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	strictGroundingInstruction = "The following is the complete tool answer. You MUST answer strictly based on it; do not add, invent, or guess information that is not present."

	notFoundFraming = "Tool result: %s Do not fabricate an answer; consider trying another tool."

	defaultNotFoundMessage = "no relevant information was found."
)

// notFoundMarkers are the phrases the no-information heuristic looks
// for in prior tool messages.
var notFoundMarkers = []string{
	"no relevant information",
	"not found",
	"no results",
	"nothing matched",
}

// FormatResult turns a raw tool result into LLM-facing text with
// explicit framing, so the model knows whether the tool found an
// answer. The rules are shape-based, not tool-specific, except that
// the knowledge-search tool's hits render as citable chunks.
func FormatResult(toolName string, result any) string {
	switch v := result.(type) {
	case nil:
		return fmt.Sprintf(notFoundFraming, defaultNotFoundMessage)
	case string:
		return v
	case map[string]any:
		return formatObject(toolName, v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

func formatObject(toolName string, obj map[string]any) string {
	answer, hasAnswer := obj["answer"]
	found, hasFound := obj["found"]

	if hasAnswer || hasFound {
		notFound := (hasFound && found == false) || (hasAnswer && answer == nil)
		if notFound {
			message := defaultNotFoundMessage
			if m, ok := obj["message"].(string); ok && m != "" {
				message = m
			}
			return fmt.Sprintf(notFoundFraming, message)
		}
		return fmt.Sprintf("%s\n\n%v", strictGroundingInstruction, answer)
	}

	if results, ok := obj["results"]; ok {
		return formatResults(toolName, results)
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Sprint(obj)
	}
	return string(data)
}

func formatResults(toolName string, results any) string {
	list, ok := results.([]any)
	if !ok {
		if typed, isTyped := results.([]map[string]any); isTyped {
			list = make([]any, len(typed))
			for i, item := range typed {
				list[i] = item
			}
		}
	}

	if len(list) == 0 {
		return fmt.Sprintf(notFoundFraming, defaultNotFoundMessage)
	}

	if toolName == KnowledgeSearchToolName {
		var sb strings.Builder
		sb.WriteString(strictGroundingInstruction)
		sb.WriteString("\nCite the chunk id of every passage you rely on.\n")
		for _, item := range list {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			sb.WriteString(fmt.Sprintf("\n[chunk %s] %v", chunkIDString(entry["chunk_id"]), entry["text"]))
		}
		return sb.String()
	}

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Sprint(list)
	}
	return strictGroundingInstruction + "\n" + string(data)
}

func chunkIDString(id any) string {
	if f, ok := id.(float64); ok {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(id)
}

// ContainsNotFoundMarker reports whether a tool message carries any
// explicit not-found phrasing.
func ContainsNotFoundMarker(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range notFoundMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// SuggestContact implements the "tools were used but nothing was
// found" heuristic: when a prior tool message carries a not-found
// marker and the drafted answer does not already mention the fallback
// contact, a single suggestion sentence is appended. Only applies on
// iterations past the first.
func SuggestContact(answer string, toolMessages []string, iteration int, contact string) string {
	if iteration <= 1 || contact == "" {
		return answer
	}
	if strings.Contains(strings.ToLower(answer), strings.ToLower(contact)) {
		return answer
	}

	for _, msg := range toolMessages {
		if ContainsNotFoundMarker(msg) {
			suggestion := fmt.Sprintf("If you need further help with this, please contact %s.", contact)
			if answer == "" {
				return suggestion
			}
			return answer + "\n\n" + suggestion
		}
	}
	return answer
}
