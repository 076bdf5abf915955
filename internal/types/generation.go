package types

import "encoding/json"

// InputTokens and OutputTokens use pointers so "unknown" stays distinct from 0.
type InputTokens struct {
	Total      *int64 `json:"total,omitempty"`
	NoCache    *int64 `json:"noCache,omitempty"`
	CacheRead  *int64 `json:"cacheRead,omitempty"`
	CacheWrite *int64 `json:"cacheWrite,omitempty"`
}

type OutputTokens struct {
	Total     *int64 `json:"total,omitempty"`
	Text      *int64 `json:"text,omitempty"`
	Reasoning *int64 `json:"reasoning,omitempty"`
}

// Usage is a point-in-time token snapshot. A newer snapshot replaces an older
// one wholesale.
type Usage struct {
	InputTokens  InputTokens     `json:"inputTokens"`
	OutputTokens OutputTokens    `json:"outputTokens"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// DefaultUsage reports every count as unknown.
func DefaultUsage() Usage {
	return Usage{}
}

const (
	FinishStop  = "stop"
	FinishError = "error"
	FinishOther = "other"
)

const (
	FinishRawEmptyPrompt    = "empty-prompt"
	FinishRawTurnCompleted  = "turn/completed"
	FinishRawError          = "error"
	FinishRawAppServerError = "app-server-error"
)

type FinishReason struct {
	Unified string `json:"unified"`
	Raw     string `json:"raw,omitempty"`
}

type Warning struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func OtherWarning(message string) Warning {
	return Warning{Type: "other", Message: message}
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the single-shot rendering of one generation.
type Result struct {
	Content      []ContentBlock `json:"content"`
	FinishReason FinishReason   `json:"finishReason"`
	Usage        Usage          `json:"usage"`
	Warnings     []Warning      `json:"warnings"`
}

// Text returns the concatenated text blocks.
func (r Result) Text() string {
	if len(r.Content) == 1 {
		return r.Content[0].Text
	}
	var out string
	for _, block := range r.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out
}

type PartType string

const (
	PartStreamStart    PartType = "stream-start"
	PartTextStart      PartType = "text-start"
	PartTextDelta      PartType = "text-delta"
	PartTextEnd        PartType = "text-end"
	PartReasoningStart PartType = "reasoning-start"
	PartReasoningDelta PartType = "reasoning-delta"
	PartReasoningEnd   PartType = "reasoning-end"
	PartError          PartType = "error"
	PartFinish         PartType = "finish"
)

const (
	TextBlockID      = "text-1"
	ReasoningBlockID = "reasoning-1"
)

// StreamPart is one framing event of an incremental generation.
type StreamPart struct {
	Type         PartType      `json:"type"`
	ID           string        `json:"id,omitempty"`
	Delta        string        `json:"delta,omitempty"`
	Warnings     []Warning     `json:"warnings,omitempty"`
	Usage        *Usage        `json:"usage,omitempty"`
	FinishReason *FinishReason `json:"finishReason,omitempty"`
	Err          error         `json:"-"`
}

func (p StreamPart) MarshalJSON() ([]byte, error) {
	type alias StreamPart
	out := struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias: alias(p)}
	if p.Err != nil {
		out.Error = p.Err.Error()
	}
	return json.Marshal(out)
}
