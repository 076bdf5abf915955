package generation

import (
	"encoding/json"
	"os"
	"reflect"
	"testing"

	"codexbridge/internal/types"
)

func decodeObject(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestThreadStartParamsSendNullForUnsetValues(t *testing.T) {
	got := decodeObject(t, newThreadStartParams(turnSpec{modelID: "gpt-5.1-codex", options: types.ProviderOptions{Cwd: "/work"}}))
	want := map[string]any{
		"model":                 "gpt-5.1-codex",
		"modelProvider":         nil,
		"cwd":                   "/work",
		"approvalPolicy":        nil,
		"sandbox":               nil,
		"config":                nil,
		"baseInstructions":      nil,
		"developerInstructions": nil,
		"experimentalRawEvents": false,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected thread/start params\n got: %#v\nwant: %#v", got, want)
	}
}

func TestThreadStartParamsDefaultCwdToWorkingDirectory(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	params := newThreadStartParams(turnSpec{})
	if params.Cwd == nil || *params.Cwd != wd {
		t.Fatalf("expected cwd %q, got %v", wd, params.Cwd)
	}
	if params.Model != nil {
		t.Fatalf("expected null model without a model id")
	}
}

func TestThreadStartParamsCarryOptions(t *testing.T) {
	spec := turnSpec{
		modelID: "gpt-5.1-codex",
		options: types.ProviderOptions{
			ModelOverride:         "o4-mini",
			ModelProvider:         "openai",
			ApprovalPolicy:        types.ApprovalOnRequest,
			SandboxMode:           types.SandboxWorkspaceWrite,
			Config:                map[string]any{"features.web_search": true},
			BaseInstructions:      "be brief",
			DeveloperInstructions: "no tables",
			ExperimentalRawEvents: true,
		},
	}
	got := decodeObject(t, newThreadStartParams(spec))
	checks := map[string]any{
		"model":                 "o4-mini",
		"modelProvider":         "openai",
		"approvalPolicy":        "on-request",
		"sandbox":               "workspace-write",
		"config":                map[string]any{"features.web_search": true},
		"baseInstructions":      "be brief",
		"developerInstructions": "no tables",
		"experimentalRawEvents": true,
	}
	for key, want := range checks {
		if !reflect.DeepEqual(got[key], want) {
			t.Fatalf("%s: got %#v want %#v", key, got[key], want)
		}
	}
}

func TestTurnStartParams(t *testing.T) {
	spec := turnSpec{
		prompt:  "User:\nhello",
		modelID: "gpt-5.1-codex",
		options: types.ProviderOptions{
			ReasoningEffort:  types.EffortHigh,
			ReasoningSummary: types.SummaryConcise,
		},
	}
	got := decodeObject(t, newTurnStartParams("t1", spec))
	want := map[string]any{
		"threadId":       "t1",
		"input":          []any{map[string]any{"type": "text", "text": "User:\nhello"}},
		"cwd":            nil,
		"approvalPolicy": nil,
		"sandboxPolicy":  nil,
		"model":          "gpt-5.1-codex",
		"effort":         "high",
		"summary":        "concise",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected turn/start params\n got: %#v\nwant: %#v", got, want)
	}
}

func TestParseThreadAndTurnIDs(t *testing.T) {
	tests := []struct {
		raw    string
		thread string
		turn   string
	}{
		{raw: `{"thread":{"id":"t1"},"turn":{"id":"r1"}}`, thread: "t1", turn: "r1"},
		{raw: `{"threadId":"t2","turnId":"r2"}`, thread: "t2", turn: "r2"},
		{raw: `{"thread":{},"threadId":"t3","turn":{"id":""},"turnId":"r3"}`, thread: "t3", turn: "r3"},
		{raw: `{}`},
		{raw: `null`},
		{raw: ``},
		{raw: `[1]`},
	}
	for _, tt := range tests {
		if got := parseThreadID(json.RawMessage(tt.raw)); got != tt.thread {
			t.Fatalf("parseThreadID(%s) = %q, want %q", tt.raw, got, tt.thread)
		}
		if got := parseTurnID(json.RawMessage(tt.raw)); got != tt.turn {
			t.Fatalf("parseTurnID(%s) = %q, want %q", tt.raw, got, tt.turn)
		}
	}
}
