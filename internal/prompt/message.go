// Package prompt turns chat-style messages into the single text input sent
// with turn/start.
package prompt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

const (
	PartText       = "text"
	PartReasoning  = "reasoning"
	PartToolCall   = "tool-call"
	PartToolResult = "tool-result"
	PartImage      = "image"
	PartFile       = "file"
)

// Part is one content element of a message.
type Part struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ToolName  string          `json:"toolName,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Filename  string          `json:"filename,omitempty"`
	MediaType string          `json:"mediaType,omitempty"`
}

// Message is one prompt message. Content decodes from a plain string, a
// single part object or an array of parts.
type Message struct {
	Role    Role   `json:"role"`
	Content []Part `json:"content"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	content, err := decodeContent(raw.Content)
	if err != nil {
		return fmt.Errorf("message %q content: %w", raw.Role, err)
	}
	m.Role = raw.Role
	m.Content = content
	return nil
}

func decodeContent(raw json.RawMessage) ([]Part, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, err
		}
		return []Part{{Type: PartText, Text: text}}, nil
	case '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil {
			return nil, err
		}
		out := make([]Part, 0, len(parts))
		for _, item := range parts {
			var part Part
			if json.Unmarshal(item, &part) != nil {
				// Non-object entries carry no text.
				continue
			}
			out = append(out, part)
		}
		return out, nil
	case '{':
		var single struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, err
		}
		if single.Text == "" {
			return nil, nil
		}
		return []Part{{Type: PartText, Text: single.Text}}, nil
	default:
		return nil, errors.New("unsupported content shape")
	}
}

// Text builds a message with one text part.
func Text(role Role, text string) Message {
	return Message{Role: role, Content: []Part{{Type: PartText, Text: text}}}
}

// UserText is the common single-message prompt.
func UserText(text string) []Message {
	return []Message{Text(RoleUser, text)}
}

// ParseMessages decodes a prompt file: a JSON array of messages, a single
// message object, or a JSON string taken as one user message.
func ParseMessages(data []byte) ([]Message, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	switch data[0] {
	case '[':
		var messages []Message
		if err := json.Unmarshal(data, &messages); err != nil {
			return nil, err
		}
		return messages, nil
	case '{':
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			return nil, err
		}
		return []Message{message}, nil
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return nil, err
		}
		return UserText(text), nil
	default:
		return nil, errors.New("prompt must be a JSON array of messages, a message object or a string")
	}
}

func (p Part) render() (string, bool) {
	switch p.Type {
	case PartText, PartReasoning:
		return p.Text, p.Text != ""
	case PartToolResult:
		return compactJSON(p.Output), true
	case PartToolCall:
		if len(p.Input) == 0 {
			return "[tool:" + p.ToolName + "]", true
		}
		return "[tool:" + p.ToolName + "] " + compactJSON(p.Input), true
	case PartImage:
		return "[image]", true
	case PartFile:
		if p.Filename != "" {
			return "[file " + p.Filename + "]", true
		}
		return "[file]", true
	default:
		return p.Text, p.Text != ""
	}
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return buf.String()
}

// extractText joins the renderable parts of content with newlines.
func extractText(content []Part) string {
	parts := make([]string, 0, len(content))
	for _, part := range content {
		if text, ok := part.render(); ok {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
