package types

import (
	"fmt"
	"strings"
)

type EmptyPromptFallback string

const (
	EmptyPromptPlaceholder EmptyPromptFallback = "placeholder"
	EmptyPromptJSON        EmptyPromptFallback = "json"
	EmptyPromptError       EmptyPromptFallback = "error"
	EmptyPromptSkip        EmptyPromptFallback = "skip"
)

type ApprovalPolicy string

const (
	ApprovalUntrusted ApprovalPolicy = "untrusted"
	ApprovalOnFailure ApprovalPolicy = "on-failure"
	ApprovalOnRequest ApprovalPolicy = "on-request"
	ApprovalNever     ApprovalPolicy = "never"
)

// ApprovalDecision answers the current item/*/requestApproval requests.
type ApprovalDecision string

const (
	DecisionAccept                        ApprovalDecision = "accept"
	DecisionDecline                       ApprovalDecision = "decline"
	DecisionCancel                        ApprovalDecision = "cancel"
	DecisionAcceptForSession              ApprovalDecision = "acceptForSession"
	DecisionAcceptWithExecpolicyAmendment ApprovalDecision = "acceptWithExecpolicyAmendment"
)

// LegacyApprovalDecision answers execCommandApproval and applyPatchApproval.
type LegacyApprovalDecision string

const (
	LegacyApproved           LegacyApprovalDecision = "approved"
	LegacyApprovedForSession LegacyApprovalDecision = "approved_for_session"
	LegacyDenied             LegacyApprovalDecision = "denied"
	LegacyAbort              LegacyApprovalDecision = "abort"
)

type SandboxMode string

const (
	SandboxReadOnly         SandboxMode = "read-only"
	SandboxWorkspaceWrite   SandboxMode = "workspace-write"
	SandboxDangerFullAccess SandboxMode = "danger-full-access"
)

type ReasoningEffort string

const (
	EffortNone    ReasoningEffort = "none"
	EffortMinimal ReasoningEffort = "minimal"
	EffortLow     ReasoningEffort = "low"
	EffortMedium  ReasoningEffort = "medium"
	EffortHigh    ReasoningEffort = "high"
	EffortXHigh   ReasoningEffort = "xhigh"
)

type ReasoningSummary string

const (
	SummaryAuto     ReasoningSummary = "auto"
	SummaryConcise  ReasoningSummary = "concise"
	SummaryDetailed ReasoningSummary = "detailed"
	SummaryNone     ReasoningSummary = "none"
)

// ProviderOptions configure one provider instance: how the app-server child is
// launched and how every generation through it is parameterised.
type ProviderOptions struct {
	Name                   string                 `toml:"name,omitempty" json:"name,omitempty"`
	CodexPath              string                 `toml:"codex_path,omitempty" json:"codexPath,omitempty"`
	Args                   []string               `toml:"args,omitempty" json:"args,omitempty"`
	Env                    map[string]string      `toml:"env,omitempty" json:"env,omitempty"`
	IncludeReasoning       bool                   `toml:"include_reasoning" json:"includeReasoning,omitempty"`
	EmptyPromptFallback    EmptyPromptFallback    `toml:"empty_prompt_fallback,omitempty" json:"emptyPromptFallback,omitempty"`
	ApprovalPolicy         ApprovalPolicy         `toml:"approval_policy,omitempty" json:"approvalPolicy,omitempty"`
	ApprovalDecision       ApprovalDecision       `toml:"approval_decision,omitempty" json:"approvalDecision,omitempty"`
	LegacyApprovalDecision LegacyApprovalDecision `toml:"legacy_approval_decision,omitempty" json:"legacyApprovalDecision,omitempty"`
	SandboxMode            SandboxMode            `toml:"sandbox_mode,omitempty" json:"sandboxMode,omitempty"`
	Cwd                    string                 `toml:"cwd,omitempty" json:"cwd,omitempty"`
	ModelOverride          string                 `toml:"model_override,omitempty" json:"modelOverride,omitempty"`
	ReasoningEffort        ReasoningEffort        `toml:"reasoning_effort,omitempty" json:"reasoningEffort,omitempty"`
	ReasoningSummary       ReasoningSummary       `toml:"reasoning_summary,omitempty" json:"reasoningSummary,omitempty"`
	ModelProvider          string                 `toml:"model_provider,omitempty" json:"modelProvider,omitempty"`
	Config                 map[string]any         `toml:"config,omitempty" json:"config,omitempty"`
	BaseInstructions       string                 `toml:"base_instructions,omitempty" json:"baseInstructions,omitempty"`
	DeveloperInstructions  string                 `toml:"developer_instructions,omitempty" json:"developerInstructions,omitempty"`
	ExperimentalRawEvents  bool                   `toml:"experimental_raw_events" json:"experimentalRawEvents,omitempty"`
}

func NormalizeEmptyPromptFallback(raw EmptyPromptFallback) (EmptyPromptFallback, bool) {
	return normalizeEnum(raw, EmptyPromptPlaceholder, EmptyPromptJSON, EmptyPromptError, EmptyPromptSkip)
}

func NormalizeApprovalPolicy(raw ApprovalPolicy) (ApprovalPolicy, bool) {
	value := ApprovalPolicy(strings.ReplaceAll(strings.TrimSpace(string(raw)), "_", "-"))
	return normalizeEnum(value, ApprovalUntrusted, ApprovalOnFailure, ApprovalOnRequest, ApprovalNever)
}

func NormalizeApprovalDecision(raw ApprovalDecision) (ApprovalDecision, bool) {
	return normalizeEnum(raw, DecisionAccept, DecisionDecline, DecisionCancel, DecisionAcceptForSession, DecisionAcceptWithExecpolicyAmendment)
}

func NormalizeLegacyApprovalDecision(raw LegacyApprovalDecision) (LegacyApprovalDecision, bool) {
	return normalizeEnum(raw, LegacyApproved, LegacyApprovedForSession, LegacyDenied, LegacyAbort)
}

func NormalizeSandboxMode(raw SandboxMode) (SandboxMode, bool) {
	value := SandboxMode(strings.ReplaceAll(strings.TrimSpace(string(raw)), "_", "-"))
	return normalizeEnum(value, SandboxReadOnly, SandboxWorkspaceWrite, SandboxDangerFullAccess)
}

func NormalizeReasoningEffort(raw ReasoningEffort) (ReasoningEffort, bool) {
	return normalizeEnum(raw, EffortNone, EffortMinimal, EffortLow, EffortMedium, EffortHigh, EffortXHigh)
}

func NormalizeReasoningSummary(raw ReasoningSummary) (ReasoningSummary, bool) {
	return normalizeEnum(raw, SummaryAuto, SummaryConcise, SummaryDetailed, SummaryNone)
}

// normalizeEnum matches raw case-insensitively against allowed and returns the
// canonical spelling. The empty value is valid and means "unset".
func normalizeEnum[T ~string](raw T, allowed ...T) (T, bool) {
	value := strings.TrimSpace(string(raw))
	if value == "" {
		return "", true
	}
	for _, candidate := range allowed {
		if strings.EqualFold(value, string(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// Normalize returns a copy with trimmed strings and canonical enum spellings,
// or an error naming the first invalid field.
func (o ProviderOptions) Normalize() (ProviderOptions, error) {
	out := CloneProviderOptions(o)
	out.Name = strings.TrimSpace(out.Name)
	out.CodexPath = strings.TrimSpace(out.CodexPath)
	out.Cwd = strings.TrimSpace(out.Cwd)
	out.ModelOverride = strings.TrimSpace(out.ModelOverride)
	out.ModelProvider = strings.TrimSpace(out.ModelProvider)

	var ok bool
	if out.EmptyPromptFallback, ok = NormalizeEmptyPromptFallback(o.EmptyPromptFallback); !ok {
		return ProviderOptions{}, invalidOption("empty_prompt_fallback", string(o.EmptyPromptFallback))
	}
	if out.ApprovalPolicy, ok = NormalizeApprovalPolicy(o.ApprovalPolicy); !ok {
		return ProviderOptions{}, invalidOption("approval_policy", string(o.ApprovalPolicy))
	}
	if out.ApprovalDecision, ok = NormalizeApprovalDecision(o.ApprovalDecision); !ok {
		return ProviderOptions{}, invalidOption("approval_decision", string(o.ApprovalDecision))
	}
	if out.LegacyApprovalDecision, ok = NormalizeLegacyApprovalDecision(o.LegacyApprovalDecision); !ok {
		return ProviderOptions{}, invalidOption("legacy_approval_decision", string(o.LegacyApprovalDecision))
	}
	if out.SandboxMode, ok = NormalizeSandboxMode(o.SandboxMode); !ok {
		return ProviderOptions{}, invalidOption("sandbox_mode", string(o.SandboxMode))
	}
	if out.ReasoningEffort, ok = NormalizeReasoningEffort(o.ReasoningEffort); !ok {
		return ProviderOptions{}, invalidOption("reasoning_effort", string(o.ReasoningEffort))
	}
	if out.ReasoningSummary, ok = NormalizeReasoningSummary(o.ReasoningSummary); !ok {
		return ProviderOptions{}, invalidOption("reasoning_summary", string(o.ReasoningSummary))
	}
	return out, nil
}

func invalidOption(field, value string) error {
	return fmt.Errorf("invalid %s: %q", field, value)
}

func CloneProviderOptions(in ProviderOptions) ProviderOptions {
	out := in
	if in.Args != nil {
		out.Args = append([]string{}, in.Args...)
	}
	if in.Env != nil {
		out.Env = make(map[string]string, len(in.Env))
		for key, value := range in.Env {
			out.Env[key] = value
		}
	}
	if in.Config != nil {
		out.Config = make(map[string]any, len(in.Config))
		for key, value := range in.Config {
			out.Config[key] = value
		}
	}
	return out
}

// MergeProviderOptions overlays the non-zero fields of patch onto base.
// Boolean flags can only be switched on by a patch.
func MergeProviderOptions(base ProviderOptions, patch ProviderOptions) ProviderOptions {
	out := CloneProviderOptions(base)
	setString := func(dst *string, value string) {
		if v := strings.TrimSpace(value); v != "" {
			*dst = v
		}
	}
	setString(&out.Name, patch.Name)
	setString(&out.CodexPath, patch.CodexPath)
	setString(&out.Cwd, patch.Cwd)
	setString(&out.ModelOverride, patch.ModelOverride)
	setString(&out.ModelProvider, patch.ModelProvider)
	setString(&out.BaseInstructions, patch.BaseInstructions)
	setString(&out.DeveloperInstructions, patch.DeveloperInstructions)
	if len(patch.Args) > 0 {
		out.Args = append([]string{}, patch.Args...)
	}
	if len(patch.Env) > 0 {
		if out.Env == nil {
			out.Env = map[string]string{}
		}
		for key, value := range patch.Env {
			out.Env[key] = value
		}
	}
	if len(patch.Config) > 0 {
		if out.Config == nil {
			out.Config = map[string]any{}
		}
		for key, value := range patch.Config {
			out.Config[key] = value
		}
	}
	if patch.IncludeReasoning {
		out.IncludeReasoning = true
	}
	if patch.ExperimentalRawEvents {
		out.ExperimentalRawEvents = true
	}
	if patch.EmptyPromptFallback != "" {
		out.EmptyPromptFallback = patch.EmptyPromptFallback
	}
	if patch.ApprovalPolicy != "" {
		out.ApprovalPolicy = patch.ApprovalPolicy
	}
	if patch.ApprovalDecision != "" {
		out.ApprovalDecision = patch.ApprovalDecision
	}
	if patch.LegacyApprovalDecision != "" {
		out.LegacyApprovalDecision = patch.LegacyApprovalDecision
	}
	if patch.SandboxMode != "" {
		out.SandboxMode = patch.SandboxMode
	}
	if patch.ReasoningEffort != "" {
		out.ReasoningEffort = patch.ReasoningEffort
	}
	if patch.ReasoningSummary != "" {
		out.ReasoningSummary = patch.ReasoningSummary
	}
	return out
}
