package generation

import (
	"encoding/json"
	"strings"

	"codexbridge/internal/appserver"
	"codexbridge/internal/types"
)

const (
	methodAgentDelta     = "item/agentMessage/delta"
	methodReasoningDelta = "item/reasoning/textDelta"
	methodItemCompleted  = "item/completed"
	methodTokenUsage     = "thread/tokenUsage/updated"
	methodTurnCompleted  = "turn/completed"
	methodError          = "error"
)

type EventKind int

const (
	EventUnrecognized EventKind = iota
	EventAgentDelta
	EventReasoningDelta
	EventItemCompleted
	EventTokenUsage
	EventTurnCompleted
	EventError
	EventParseError
	EventProcessClosed
)

func (k EventKind) String() string {
	switch k {
	case EventAgentDelta:
		return "agent_delta"
	case EventReasoningDelta:
		return "reasoning_delta"
	case EventItemCompleted:
		return "item_completed"
	case EventTokenUsage:
		return "token_usage"
	case EventTurnCompleted:
		return "turn_completed"
	case EventError:
		return "error"
	case EventParseError:
		return "parse_error"
	case EventProcessClosed:
		return "process_closed"
	default:
		return "unrecognized"
	}
}

const (
	itemAgentMessage = "agentMessage"
	itemReasoning    = "reasoning"
)

// Item is the completed item carried by item/completed.
type Item struct {
	Type    string
	Text    string
	Content []string
}

// Event is a session message decoded into what the turn controller acts on.
type Event struct {
	Kind     EventKind
	Method   string
	ThreadID string
	TurnID   string
	Delta    string
	Item     Item
	Usage    types.Usage
	Message  string
	Err      error
}

// sessionScoped events concern every generation regardless of thread.
func (e Event) sessionScoped() bool {
	return e.Kind == EventParseError || e.Kind == EventProcessClosed
}

type eventParams struct {
	ThreadID   string          `json:"threadId"`
	TurnID     string          `json:"turnId"`
	Delta      string          `json:"delta"`
	Message    string          `json:"message"`
	Item       *itemParams     `json:"item"`
	TokenUsage json.RawMessage `json:"tokenUsage"`
	Turn       *struct {
		ID string `json:"id"`
	} `json:"turn"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type itemParams struct {
	Type    string            `json:"type"`
	Text    string            `json:"text"`
	Content []json.RawMessage `json:"content"`
}

// classify maps a session message onto an Event. Messages whose params do not
// decode keep their method but lose thread scope, so no generation acts on
// them.
func classify(msg appserver.Message) Event {
	switch msg.Kind {
	case appserver.KindParseError:
		return Event{Kind: EventParseError, Err: msg.Err}
	case appserver.KindProcessClosed:
		return Event{Kind: EventProcessClosed, Err: msg.Err}
	case appserver.KindRequest:
		return Event{Kind: EventUnrecognized, Method: msg.Method}
	}

	event := Event{Method: msg.Method}
	var params eventParams
	if len(msg.Params) == 0 || json.Unmarshal(msg.Params, &params) != nil {
		return event
	}
	event.ThreadID = params.ThreadID
	event.TurnID = params.TurnID
	if event.TurnID == "" && strings.HasPrefix(msg.Method, "turn/") && params.Turn != nil {
		event.TurnID = params.Turn.ID
	}

	switch msg.Method {
	case methodAgentDelta:
		event.Kind = EventAgentDelta
		event.Delta = params.Delta
	case methodReasoningDelta:
		event.Kind = EventReasoningDelta
		event.Delta = params.Delta
	case methodItemCompleted:
		event.Kind = EventItemCompleted
		if params.Item != nil {
			event.Item = Item{
				Type:    params.Item.Type,
				Text:    params.Item.Text,
				Content: contentLines(params.Item.Content),
			}
		}
	case methodTokenUsage:
		event.Kind = EventTokenUsage
		event.Usage = mapTokenUsage(params.TokenUsage)
	case methodTurnCompleted:
		event.Kind = EventTurnCompleted
	case methodError:
		event.Kind = EventError
		event.Message = params.Message
		if event.Message == "" && params.Error != nil {
			event.Message = params.Error.Message
		}
	default:
		event.Kind = EventUnrecognized
	}
	return event
}

// contentLines accepts reasoning content as plain strings or as {text} parts.
func contentLines(raw []json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	lines := make([]string, 0, len(raw))
	for _, entry := range raw {
		var text string
		if json.Unmarshal(entry, &text) == nil {
			lines = append(lines, text)
			continue
		}
		var part struct {
			Text string `json:"text"`
		}
		if json.Unmarshal(entry, &part) == nil && part.Text != "" {
			lines = append(lines, part.Text)
		}
	}
	return lines
}
