package generation

import (
	"context"
	"encoding/json"
	"strings"

	"codexbridge/internal/appserver"
	"codexbridge/internal/logging"
	"codexbridge/internal/types"
)

// turnSink receives the accumulation steps of one turn in order.
type turnSink interface {
	text(delta string)
	reasoning(delta string)
	usage(usage types.Usage)
}

type turnStartResult struct {
	raw json.RawMessage
	err error
}

// runTurn drives one generation over session: thread/start, turn/start, then
// the turn's events until turn/completed (nil) or a failure. Cancelling ctx
// only sends turn/interrupt; the turn still has to finish on its own.
func runTurn(ctx context.Context, session *appserver.Session, spec turnSpec, sink turnSink, logger logging.Logger) error {
	rpcCtx := context.WithoutCancel(ctx)
	if err := session.Initialize(rpcCtx); err != nil {
		return err
	}
	raw, err := session.Request(rpcCtx, "thread/start", newThreadStartParams(spec))
	if err != nil {
		return err
	}
	threadID := parseThreadID(raw)
	if threadID == "" {
		return ErrMissingThreadID
	}
	logger = logger.With(logging.F("thread_id", threadID))

	// Subscribe before turn/start: turn events can race its response.
	events, detach := session.Subscribe()
	defer detach()

	started := make(chan turnStartResult, 1)
	go func() {
		raw, err := session.Request(rpcCtx, "turn/start", newTurnStartParams(threadID, spec))
		started <- turnStartResult{raw: raw, err: err}
	}()

	turn := &turnState{
		threadID:         threadID,
		includeReasoning: spec.options.IncludeReasoning,
		sink:             sink,
	}
	cancelled := ctx.Done()
	wantInterrupt := false
	interrupted := false
	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return appserver.ErrSessionClosed
			}
			event := classify(msg)
			if event.sessionScoped() {
				if event.Err != nil {
					return event.Err
				}
				return &TurnError{ThreadID: threadID, TurnID: turn.turnID}
			}
			if event.ThreadID != threadID {
				continue
			}
			if done, err := turn.observe(event); done {
				logTurnEnd(logger, turn, err)
				return err
			}
		case res := <-started:
			started = nil
			if res.err != nil {
				return res.err
			}
			if turn.turnID == "" {
				turnID := parseTurnID(res.raw)
				if turnID == "" {
					return ErrMissingTurnID
				}
				if done, err := turn.adopt(turnID); done {
					logTurnEnd(logger, turn, err)
					return err
				}
			}
		case <-cancelled:
			cancelled = nil
			wantInterrupt = true
		}
		if wantInterrupt && !interrupted && turn.turnID != "" {
			interrupted = true
			go interruptTurn(rpcCtx, session, threadID, turn.turnID, logger)
		}
	}
}

func interruptTurn(ctx context.Context, session *appserver.Session, threadID, turnID string, logger logging.Logger) {
	logger.Info("turn_interrupt", logging.F("turn_id", turnID))
	if _, err := session.Request(ctx, "turn/interrupt", turnInterruptParams{ThreadID: threadID, TurnID: turnID}); err != nil {
		logger.Debug("turn_interrupt_failed", logging.F("turn_id", turnID), logging.F("error", err))
	}
}

func logTurnEnd(logger logging.Logger, turn *turnState, err error) {
	if err != nil {
		logger.Warn("turn_failed", logging.F("turn_id", turn.turnID), logging.F("error", err))
		return
	}
	logger.Debug("turn_completed", logging.F("turn_id", turn.turnID))
}

// turnState applies events of one thread. Events seen before the turn id is
// known are held back and replayed once it is.
type turnState struct {
	threadID         string
	turnID           string
	includeReasoning bool
	sawText          bool
	sawReasoning     bool
	buffered         []Event
	sink             turnSink
}

func (t *turnState) observe(event Event) (bool, error) {
	if t.turnID == "" {
		if event.TurnID == "" {
			t.buffered = append(t.buffered, event)
			return false, nil
		}
		if done, err := t.adopt(event.TurnID); done {
			return true, err
		}
	}
	if event.TurnID != "" && event.TurnID != t.turnID {
		return false, nil
	}
	return t.apply(event)
}

// adopt fixes the turn id and replays the held-back events for it, in arrival
// order, exactly once.
func (t *turnState) adopt(turnID string) (bool, error) {
	t.turnID = turnID
	buffered := t.buffered
	t.buffered = nil
	for _, event := range buffered {
		if event.TurnID != "" && event.TurnID != turnID {
			continue
		}
		if done, err := t.apply(event); done {
			return true, err
		}
	}
	return false, nil
}

// apply reports done once the turn reached a terminal event.
func (t *turnState) apply(event Event) (bool, error) {
	switch event.Kind {
	case EventAgentDelta:
		t.sawText = true
		t.sink.text(event.Delta)
	case EventReasoningDelta:
		if !t.includeReasoning {
			return false, nil
		}
		t.sawReasoning = true
		t.sink.reasoning(event.Delta)
	case EventItemCompleted:
		switch event.Item.Type {
		case itemAgentMessage:
			if event.Item.Text != "" && !t.sawText {
				t.sink.text(event.Item.Text)
			}
		case itemReasoning:
			if t.includeReasoning && len(event.Item.Content) > 0 && !t.sawReasoning {
				t.sink.reasoning(strings.Join(event.Item.Content, "\n"))
			}
		}
	case EventTokenUsage:
		t.sink.usage(event.Usage)
	case EventTurnCompleted:
		return true, nil
	case EventError:
		return true, &TurnError{ThreadID: t.threadID, TurnID: t.turnID, Message: event.Message}
	}
	return false, nil
}
