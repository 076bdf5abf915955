package testutil

import (
	"sync"
)

// RawLine is written verbatim followed by a newline, for malformed output.
type RawLine string

func sendEvent(conn *FakeConn, event any) {
	if raw, ok := event.(RawLine); ok {
		conn.SendRaw(string(raw) + "\n")
		return
	}
	conn.Send(event)
}

// Turn scripts one turn/start exchange.
type Turn struct {
	// TurnID is returned in the turn/start response unless OmitTurnID is set.
	TurnID     string
	OmitTurnID bool
	// Early is written before the turn/start response, Events after it.
	Early  []any
	Events []any
	// RejectWith answers turn/start with an error member instead.
	RejectWith string
	// ExitStderr, when set, terminates the child after Events.
	ExitStderr string
	// Hold leaves the turn open; the script finishes it only when a
	// turn/interrupt arrives.
	Hold bool
}

// CodexScript answers the handshake and thread/start, then plays Turns in
// order, one per turn/start. The last turn repeats once the list runs out.
type CodexScript struct {
	ThreadID string
	// OmitThreadID makes thread/start return no thread id.
	OmitThreadID bool
	Turns        []Turn

	mu        sync.Mutex
	next      int
	held      map[string]bool
	initCount int
}

func (s *CodexScript) Handler() Handler {
	return s.handle
}

// Initializations returns how many initialize requests were answered.
func (s *CodexScript) Initializations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initCount
}

func (s *CodexScript) threadID() string {
	if s.ThreadID == "" {
		return "thr-1"
	}
	return s.ThreadID
}

func (s *CodexScript) nextTurn() Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Turns) == 0 {
		return Turn{TurnID: "turn-1", Events: []any{TurnCompleted(s.threadID(), "turn-1")}}
	}
	idx := s.next
	if idx >= len(s.Turns) {
		idx = len(s.Turns) - 1
	}
	s.next++
	return s.Turns[idx]
}

func (s *CodexScript) handle(conn *FakeConn, msg FakeMessage) {
	if !msg.IsRequest() {
		return
	}
	switch msg.Method {
	case "initialize":
		s.mu.Lock()
		s.initCount++
		s.mu.Unlock()
		conn.Reply(msg, map[string]any{"userAgent": "fake-codex/0.0.0"})
	case "thread/start":
		if s.OmitThreadID {
			conn.Reply(msg, map[string]any{"thread": map[string]any{}})
			return
		}
		conn.Reply(msg, map[string]any{"thread": map[string]any{"id": s.threadID()}})
	case "turn/start":
		turn := s.nextTurn()
		for _, event := range turn.Early {
			sendEvent(conn, event)
		}
		if turn.RejectWith != "" {
			conn.ReplyError(msg, -32000, turn.RejectWith)
			return
		}
		if turn.OmitTurnID {
			conn.Reply(msg, map[string]any{})
		} else {
			conn.Reply(msg, map[string]any{"turn": map[string]any{"id": turn.TurnID, "status": "inProgress"}})
		}
		for _, event := range turn.Events {
			sendEvent(conn, event)
		}
		if turn.Hold {
			s.mu.Lock()
			if s.held == nil {
				s.held = map[string]bool{}
			}
			s.held[turn.TurnID] = true
			s.mu.Unlock()
		}
		if turn.ExitStderr != "" {
			conn.Exit(turn.ExitStderr, nil)
		}
	case "turn/interrupt":
		conn.Reply(msg, map[string]any{})
		var params struct {
			ThreadID string `json:"threadId"`
			TurnID   string `json:"turnId"`
		}
		_ = decodeParams(msg.Params, &params)
		s.mu.Lock()
		held := s.held[params.TurnID]
		delete(s.held, params.TurnID)
		s.mu.Unlock()
		if held {
			conn.Send(Notification("turn/completed", map[string]any{
				"threadId": params.ThreadID,
				"turn":     map[string]any{"id": params.TurnID, "status": "interrupted"},
			}))
		}
	default:
		conn.ReplyError(msg, -32601, "method not found: "+msg.Method)
	}
}
