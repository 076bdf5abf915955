package app

import (
	"errors"
	"strings"
	"testing"

	xansi "github.com/charmbracelet/x/ansi"

	"codexbridge/internal/prompt"
	"codexbridge/internal/types"
)

func finishedStream(t *testing.T, parts ...types.StreamPart) *StreamController {
	t.Helper()
	ch := make(chan types.StreamPart, len(parts))
	for _, part := range parts {
		ch <- part
	}
	close(ch)
	stream := NewStreamController(len(parts) + 1)
	stream.Start(ch, nil)
	if _, closed := stream.ConsumeTick(); !closed {
		t.Fatalf("expected stream to drain in one tick")
	}
	return stream
}

func TestTranscriptMessagesSkipStreamingAndEmptyAnswers(t *testing.T) {
	tr := &Transcript{}
	tr.AddUser("first")
	tr.BeginAssistant()
	tr.FinishAssistant(finishedStream(t,
		types.StreamPart{Type: types.PartTextDelta, Delta: "answer"},
		types.StreamPart{Type: types.PartFinish, FinishReason: &types.FinishReason{Unified: types.FinishStop}},
	))
	tr.AddUser("second")
	tr.BeginAssistant()
	tr.FinishAssistant(finishedStream(t,
		types.StreamPart{Type: types.PartError, Err: errors.New("failed")},
	))
	tr.AddUser("third")
	tr.BeginAssistant()
	tr.UpdateAssistant("partial", "")

	got := tr.Messages()
	want := []struct {
		role prompt.Role
		text string
	}{
		{prompt.RoleUser, "first"},
		{prompt.RoleAssistant, "answer"},
		{prompt.RoleUser, "second"},
		{prompt.RoleUser, "third"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %#v", len(want), got)
	}
	for i, w := range want {
		if got[i].Role != w.role {
			t.Fatalf("message %d: expected role %q, got %q", i, w.role, got[i].Role)
		}
		if text := messageText(got[i]); text != w.text {
			t.Fatalf("message %d: expected text %q, got %q", i, w.text, text)
		}
	}
	if tr.Len() != 6 {
		t.Fatalf("expected 6 entries, got %d", tr.Len())
	}
}

func messageText(message prompt.Message) string {
	var b strings.Builder
	for _, part := range message.Content {
		b.WriteString(part.Text)
	}
	return b.String()
}

func TestTranscriptLastAnswerIgnoresStreamingEntry(t *testing.T) {
	tr := &Transcript{}
	if tr.LastAnswer() != "" {
		t.Fatalf("expected no answer on empty transcript")
	}
	tr.AddUser("q")
	tr.BeginAssistant()
	tr.FinishAssistant(finishedStream(t, types.StreamPart{Type: types.PartTextDelta, Delta: "done"}))
	tr.AddUser("q2")
	tr.BeginAssistant()
	tr.UpdateAssistant("in progress", "")

	if got := tr.LastAnswer(); got != "done" {
		t.Fatalf("expected last finished answer, got %q", got)
	}
}

func TestTranscriptUpdateWithoutActiveEntryIsIgnored(t *testing.T) {
	tr := &Transcript{}
	tr.AddUser("q")
	tr.UpdateAssistant("stray", "")
	tr.FinishAssistant(finishedStream(t, types.StreamPart{Type: types.PartTextDelta, Delta: "stray"}))
	if tr.Len() != 1 || tr.LastAnswer() != "" {
		t.Fatalf("expected user entry only, got len=%d answer=%q", tr.Len(), tr.LastAnswer())
	}
}

func TestTranscriptRenderShowsRolesErrorsAndMeta(t *testing.T) {
	tr := &Transcript{}
	if !strings.Contains(tr.Render(60), "Type a prompt") {
		t.Fatalf("expected empty-state hint")
	}
	tr.AddUser("hello \x1b[31mthere")
	tr.BeginAssistant()
	tr.FinishAssistant(finishedStream(t,
		types.StreamPart{Type: types.PartReasoningDelta, Delta: "pondering"},
		types.StreamPart{Type: types.PartError, Err: errors.New("app-server exited")},
		types.StreamPart{Type: types.PartFinish, FinishReason: &types.FinishReason{Unified: types.FinishError, Raw: types.FinishRawAppServerError}},
	))

	plain := xansi.Strip(tr.Render(60))
	for _, want := range []string{"You", "hello there", "Codex", "pondering", "app-server exited", "error (app-server-error)"} {
		if !strings.Contains(plain, want) {
			t.Fatalf("expected %q in render:\n%s", want, plain)
		}
	}
}

func TestTranscriptRenderStreamingPlaceholder(t *testing.T) {
	tr := &Transcript{}
	tr.AddUser("q")
	tr.BeginAssistant()
	if plain := xansi.Strip(tr.Render(40)); !strings.Contains(plain, "…") {
		t.Fatalf("expected placeholder while waiting for output:\n%s", plain)
	}
}

func TestFormatUsage(t *testing.T) {
	tests := []struct {
		name  string
		usage types.Usage
		want  string
	}{
		{name: "unknown", usage: types.DefaultUsage(), want: ""},
		{
			name: "totals",
			usage: types.Usage{
				InputTokens:  types.InputTokens{Total: int64Ptr(12)},
				OutputTokens: types.OutputTokens{Total: int64Ptr(5)},
			},
			want: "12 in, 5 out",
		},
		{
			name: "cached and reasoning",
			usage: types.Usage{
				InputTokens:  types.InputTokens{Total: int64Ptr(100), CacheRead: int64Ptr(40)},
				OutputTokens: types.OutputTokens{Total: int64Ptr(30), Reasoning: int64Ptr(10)},
			},
			want: "100 in (40 cached), 30 out (10 reasoning)",
		},
		{
			name:  "zero cache omitted",
			usage: types.Usage{InputTokens: types.InputTokens{Total: int64Ptr(7), CacheRead: int64Ptr(0)}},
			want:  "7 in",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatUsage(tc.usage); got != tc.want {
				t.Fatalf("FormatUsage = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatMetaIncludesInterrupt(t *testing.T) {
	finish := &types.FinishReason{Unified: types.FinishStop, Raw: types.FinishRawTurnCompleted}
	usage := &types.Usage{OutputTokens: types.OutputTokens{Total: int64Ptr(2)}}
	got := formatMeta(finish, usage, true)
	want := "stop (turn/completed) · interrupted · 2 out"
	if got != want {
		t.Fatalf("formatMeta = %q, want %q", got, want)
	}
}
