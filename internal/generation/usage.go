package generation

import (
	"encoding/json"

	"codexbridge/internal/types"
)

type tokenUsagePayload struct {
	Last *struct {
		InputTokens           *int64 `json:"inputTokens"`
		CachedInputTokens     *int64 `json:"cachedInputTokens"`
		OutputTokens          *int64 `json:"outputTokens"`
		ReasoningOutputTokens *int64 `json:"reasoningOutputTokens"`
	} `json:"last"`
}

// mapTokenUsage converts thread/tokenUsage/updated params.tokenUsage. Only the
// last-turn breakdown is used; without it every count is unknown.
func mapTokenUsage(raw json.RawMessage) types.Usage {
	if len(raw) == 0 {
		return types.DefaultUsage()
	}
	var payload tokenUsagePayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Last == nil {
		return types.DefaultUsage()
	}
	last := payload.Last
	return types.Usage{
		InputTokens: types.InputTokens{
			Total:     last.InputTokens,
			CacheRead: last.CachedInputTokens,
		},
		OutputTokens: types.OutputTokens{
			Total:     last.OutputTokens,
			Text:      last.OutputTokens,
			Reasoning: last.ReasoningOutputTokens,
		},
		Raw: append(json.RawMessage{}, raw...),
	}
}
