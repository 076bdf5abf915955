package generation

import (
	"encoding/json"
	"os"
	"strings"

	"codexbridge/internal/types"
)

type threadStartParams struct {
	Model                 *string        `json:"model"`
	ModelProvider         *string        `json:"modelProvider"`
	Cwd                   *string        `json:"cwd"`
	ApprovalPolicy        *string        `json:"approvalPolicy"`
	Sandbox               *string        `json:"sandbox"`
	Config                map[string]any `json:"config"`
	BaseInstructions      *string        `json:"baseInstructions"`
	DeveloperInstructions *string        `json:"developerInstructions"`
	ExperimentalRawEvents bool           `json:"experimentalRawEvents"`
}

type turnInput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type turnStartParams struct {
	ThreadID       string      `json:"threadId"`
	Input          []turnInput `json:"input"`
	Cwd            *string     `json:"cwd"`
	ApprovalPolicy *string     `json:"approvalPolicy"`
	SandboxPolicy  any         `json:"sandboxPolicy"`
	Model          *string     `json:"model"`
	Effort         *string     `json:"effort"`
	Summary        *string     `json:"summary"`
}

type turnInterruptParams struct {
	ThreadID string `json:"threadId"`
	TurnID   string `json:"turnId"`
}

// turnSpec is everything one generation needs besides the session.
type turnSpec struct {
	prompt  string
	modelID string
	options types.ProviderOptions
}

func (s turnSpec) model() *string {
	if s.options.ModelOverride != "" {
		return nullable(s.options.ModelOverride)
	}
	return nullable(s.modelID)
}

// nullable maps "" to JSON null.
func nullable(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func newThreadStartParams(spec turnSpec) threadStartParams {
	opts := spec.options
	cwd := opts.Cwd
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}
	return threadStartParams{
		Model:                 spec.model(),
		ModelProvider:         nullable(opts.ModelProvider),
		Cwd:                   nullable(cwd),
		ApprovalPolicy:        nullable(string(opts.ApprovalPolicy)),
		Sandbox:               nullable(string(opts.SandboxMode)),
		Config:                opts.Config,
		BaseInstructions:      nullable(opts.BaseInstructions),
		DeveloperInstructions: nullable(opts.DeveloperInstructions),
		ExperimentalRawEvents: opts.ExperimentalRawEvents,
	}
}

func newTurnStartParams(threadID string, spec turnSpec) turnStartParams {
	opts := spec.options
	return turnStartParams{
		ThreadID:       threadID,
		Input:          []turnInput{{Type: "text", Text: spec.prompt}},
		Cwd:            nullable(opts.Cwd),
		ApprovalPolicy: nullable(string(opts.ApprovalPolicy)),
		Model:          spec.model(),
		Effort:         nullable(string(opts.ReasoningEffort)),
		Summary:        nullable(string(opts.ReasoningSummary)),
	}
}

// parseThreadID accepts {"thread":{"id":...}} and {"threadId":...}.
func parseThreadID(raw json.RawMessage) string {
	var result struct {
		Thread *struct {
			ID string `json:"id"`
		} `json:"thread"`
		ThreadID string `json:"threadId"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &result) != nil {
		return ""
	}
	if result.Thread != nil && result.Thread.ID != "" {
		return result.Thread.ID
	}
	return result.ThreadID
}

// parseTurnID accepts {"turn":{"id":...}} and {"turnId":...}.
func parseTurnID(raw json.RawMessage) string {
	var result struct {
		Turn *struct {
			ID string `json:"id"`
		} `json:"turn"`
		TurnID string `json:"turnId"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &result) != nil {
		return ""
	}
	if result.Turn != nil && result.Turn.ID != "" {
		return result.Turn.ID
	}
	return result.TurnID
}
