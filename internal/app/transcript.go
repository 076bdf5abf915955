package app

import (
	"fmt"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"

	"codexbridge/internal/prompt"
	"codexbridge/internal/types"
)

type entryRole int

const (
	entryUser entryRole = iota
	entryAssistant
)

type transcriptEntry struct {
	role      entryRole
	text      string
	reasoning string
	err       string
	meta      string
	streaming bool
}

// Transcript is the chat history shown in the viewport and replayed as the
// prompt of the next generation.
type Transcript struct {
	entries []transcriptEntry
}

func (t *Transcript) AddUser(text string) {
	t.entries = append(t.entries, transcriptEntry{role: entryUser, text: blockSanitizer.Sanitize(text)})
}

// BeginAssistant opens the entry the active stream writes into.
func (t *Transcript) BeginAssistant() {
	t.entries = append(t.entries, transcriptEntry{role: entryAssistant, streaming: true})
}

func (t *Transcript) active() *transcriptEntry {
	if len(t.entries) == 0 {
		return nil
	}
	last := &t.entries[len(t.entries)-1]
	if last.role != entryAssistant || !last.streaming {
		return nil
	}
	return last
}

func (t *Transcript) UpdateAssistant(text, reasoning string) {
	if entry := t.active(); entry != nil {
		entry.text = text
		entry.reasoning = reasoning
	}
}

func (t *Transcript) FinishAssistant(stream *StreamController) {
	entry := t.active()
	if entry == nil {
		return
	}
	entry.streaming = false
	entry.text = stream.Text()
	entry.reasoning = stream.Reasoning()
	if err := stream.Err(); err != nil {
		entry.err = err.Error()
	}
	finish, usage := stream.Finish()
	entry.meta = formatMeta(finish, usage, stream.Interrupted())
}

// LastAnswer returns the newest finished assistant text.
func (t *Transcript) LastAnswer() string {
	for i := len(t.entries) - 1; i >= 0; i-- {
		entry := t.entries[i]
		if entry.role == entryAssistant && !entry.streaming && entry.text != "" {
			return entry.text
		}
	}
	return ""
}

// Messages is the conversation so far as prompt messages. Failed or empty
// answers are left out.
func (t *Transcript) Messages() []prompt.Message {
	out := make([]prompt.Message, 0, len(t.entries))
	for _, entry := range t.entries {
		switch entry.role {
		case entryUser:
			out = append(out, prompt.Text(prompt.RoleUser, entry.text))
		case entryAssistant:
			if entry.streaming || entry.text == "" {
				continue
			}
			out = append(out, prompt.Text(prompt.RoleAssistant, entry.text))
		}
	}
	return out
}

func (t *Transcript) Len() int {
	return len(t.entries)
}

func (t *Transcript) Render(width int) string {
	if len(t.entries) == 0 {
		return helpStyle.Render("Type a prompt and press enter.")
	}
	inner := width - bubbleFrameWidth()
	if inner < 10 {
		inner = 10
	}
	blocks := make([]string, 0, len(t.entries))
	for _, entry := range t.entries {
		blocks = append(blocks, renderEntry(entry, inner))
	}
	return strings.Join(blocks, "\n\n")
}

func renderEntry(entry transcriptEntry, width int) string {
	var parts []string
	switch entry.role {
	case entryUser:
		parts = append(parts, userLabelStyle.Render("You"))
		parts = append(parts, userBubbleStyle.Render(renderMarkdown(escapeMarkdown(entry.text), width, true)))
	case entryAssistant:
		parts = append(parts, agentLabelStyle.Render("Codex"))
		if entry.reasoning != "" {
			parts = append(parts, reasoningBubbleStyle.Render(xansi.Wrap(blockSanitizer.Sanitize(entry.reasoning), width, "")))
		}
		switch {
		case entry.streaming:
			body := blockSanitizer.Sanitize(entry.text)
			if body == "" {
				body = "…"
			}
			parts = append(parts, agentBubbleStyle.Render(xansi.Wrap(body, width, "")))
		case entry.text != "":
			parts = append(parts, agentBubbleStyle.Render(renderMarkdown(blockSanitizer.Sanitize(entry.text), width, true)))
		}
		if entry.err != "" {
			parts = append(parts, errorBubbleStyle.Render(xansi.Wrap(blockSanitizer.Sanitize(entry.err), width, "")))
		}
		if entry.meta != "" {
			parts = append(parts, chatMetaStyle.Render(entry.meta))
		}
	}
	return strings.Join(parts, "\n")
}

func formatMeta(finish *types.FinishReason, usage *types.Usage, interrupted bool) string {
	var fields []string
	if finish != nil {
		reason := finish.Unified
		if finish.Raw != "" {
			reason += " (" + finish.Raw + ")"
		}
		fields = append(fields, reason)
	}
	if interrupted {
		fields = append(fields, "interrupted")
	}
	if usage != nil {
		if tokens := FormatUsage(*usage); tokens != "" {
			fields = append(fields, tokens)
		}
	}
	return strings.Join(fields, " · ")
}

// FormatUsage summarises the known token counts, or "" when none are known.
func FormatUsage(usage types.Usage) string {
	var fields []string
	if usage.InputTokens.Total != nil {
		in := fmt.Sprintf("%d in", *usage.InputTokens.Total)
		if usage.InputTokens.CacheRead != nil && *usage.InputTokens.CacheRead > 0 {
			in += fmt.Sprintf(" (%d cached)", *usage.InputTokens.CacheRead)
		}
		fields = append(fields, in)
	}
	if usage.OutputTokens.Total != nil {
		out := fmt.Sprintf("%d out", *usage.OutputTokens.Total)
		if usage.OutputTokens.Reasoning != nil && *usage.OutputTokens.Reasoning > 0 {
			out += fmt.Sprintf(" (%d reasoning)", *usage.OutputTokens.Reasoning)
		}
		fields = append(fields, out)
	}
	return strings.Join(fields, ", ")
}
