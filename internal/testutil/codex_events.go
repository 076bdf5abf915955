package testutil

import "encoding/json"

// Notification builds a protocol notification line.
func Notification(method string, params map[string]any) map[string]any {
	return map[string]any{"method": method, "params": params}
}

func AgentDelta(threadID, turnID, delta string) map[string]any {
	return Notification("item/agentMessage/delta", map[string]any{
		"threadId": threadID,
		"turnId":   turnID,
		"itemId":   "item-msg",
		"delta":    delta,
	})
}

func ReasoningDelta(threadID, turnID, delta string) map[string]any {
	return Notification("item/reasoning/textDelta", map[string]any{
		"threadId": threadID,
		"turnId":   turnID,
		"itemId":   "item-reasoning",
		"delta":    delta,
	})
}

func AgentMessageCompleted(threadID, turnID, text string) map[string]any {
	return Notification("item/completed", map[string]any{
		"threadId": threadID,
		"turnId":   turnID,
		"item":     map[string]any{"type": "agentMessage", "id": "item-msg", "text": text},
	})
}

func ReasoningCompleted(threadID, turnID string, content ...string) map[string]any {
	return Notification("item/completed", map[string]any{
		"threadId": threadID,
		"turnId":   turnID,
		"item":     map[string]any{"type": "reasoning", "id": "item-reasoning", "content": content},
	})
}

func TokenUsage(threadID, turnID string, input, cached, output, reasoning int64) map[string]any {
	return Notification("thread/tokenUsage/updated", map[string]any{
		"threadId": threadID,
		"turnId":   turnID,
		"tokenUsage": map[string]any{
			"last": map[string]any{
				"inputTokens":           input,
				"cachedInputTokens":     cached,
				"outputTokens":          output,
				"reasoningOutputTokens": reasoning,
			},
		},
	})
}

func TurnCompleted(threadID, turnID string) map[string]any {
	return Notification("turn/completed", map[string]any{
		"threadId": threadID,
		"turnId":   turnID,
		"turn":     map[string]any{"id": turnID, "status": "completed"},
	})
}

func ErrorEvent(threadID, turnID, message string) map[string]any {
	params := map[string]any{"threadId": threadID, "turnId": turnID}
	if message != "" {
		params["message"] = message
	}
	return Notification("error", params)
}

func ServerRequest(id int, method string, params map[string]any) map[string]any {
	return map[string]any{"id": id, "method": method, "params": params}
}

func decodeParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
