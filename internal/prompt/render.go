package prompt

import (
	"encoding/json"
	"strings"

	"codexbridge/internal/types"
)

const (
	placeholderPrompt    = "User:\n[empty prompt]"
	unserializablePrompt = "User:\n[empty prompt: failed to serialize prompt]"
)

// Render flattens messages into labelled blocks separated by blank lines.
// When nothing renders, fallback decides the result; "" means the generation
// must be skipped.
func Render(messages []Message, fallback types.EmptyPromptFallback) string {
	blocks := make([]string, 0, len(messages))
	for _, message := range messages {
		text := extractText(message.Content)
		if text == "" {
			continue
		}
		blocks = append(blocks, label(message.Role)+":\n"+text)
	}
	if rendered := strings.TrimSpace(strings.Join(blocks, "\n\n")); rendered != "" {
		return rendered
	}

	switch fallback {
	case types.EmptyPromptJSON:
		data, err := json.MarshalIndent(messages, "", "  ")
		if err != nil {
			return unserializablePrompt
		}
		return string(data)
	case types.EmptyPromptError, types.EmptyPromptSkip:
		return ""
	default:
		return placeholderPrompt
	}
}

func label(role Role) string {
	switch role {
	case RoleSystem:
		return "System"
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return "Tool"
	}
}
