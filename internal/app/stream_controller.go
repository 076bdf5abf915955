package app

import (
	"strings"

	"codexbridge/internal/types"
)

// StreamController drains one generation's stream parts, at most
// maxPartsPerTick per UI tick.
type StreamController struct {
	parts           <-chan types.StreamPart
	cancel          func()
	maxPartsPerTick int
	text            strings.Builder
	reasoning       strings.Builder
	warnings        []types.Warning
	err             error
	finish          *types.FinishReason
	usage           *types.Usage
	cancelRequested bool
}

func NewStreamController(maxPartsPerTick int) *StreamController {
	return &StreamController{maxPartsPerTick: maxPartsPerTick}
}

func (s *StreamController) Start(parts <-chan types.StreamPart, cancel func()) {
	s.Reset()
	s.parts = parts
	s.cancel = cancel
}

func (s *StreamController) Reset() {
	if s.cancel != nil {
		s.cancel()
	}
	s.parts = nil
	s.cancel = nil
	s.text.Reset()
	s.reasoning.Reset()
	s.warnings = nil
	s.err = nil
	s.finish = nil
	s.usage = nil
	s.cancelRequested = false
}

func (s *StreamController) Active() bool {
	return s.parts != nil
}

// Interrupt cancels the generation's context once. The stream keeps
// draining until the turn settles.
func (s *StreamController) Interrupt() bool {
	if s.parts == nil || s.cancelRequested {
		return false
	}
	s.cancelRequested = true
	if s.cancel != nil {
		s.cancel()
	}
	return true
}

func (s *StreamController) ConsumeTick() (changed bool, closed bool) {
	if s.parts == nil {
		return false, false
	}
	for i := 0; i < s.maxPartsPerTick; i++ {
		select {
		case part, ok := <-s.parts:
			if !ok {
				s.parts = nil
				if s.cancel != nil {
					s.cancel()
				}
				s.cancel = nil
				return true, true
			}
			if s.apply(part) {
				changed = true
			}
		default:
			return changed, false
		}
	}
	return changed, false
}

func (s *StreamController) apply(part types.StreamPart) bool {
	switch part.Type {
	case types.PartStreamStart:
		s.warnings = append(s.warnings, part.Warnings...)
		return len(part.Warnings) > 0
	case types.PartTextDelta:
		s.text.WriteString(part.Delta)
		return part.Delta != ""
	case types.PartReasoningDelta:
		s.reasoning.WriteString(part.Delta)
		return part.Delta != ""
	case types.PartError:
		s.err = part.Err
		return true
	case types.PartFinish:
		s.finish = part.FinishReason
		s.usage = part.Usage
		return true
	}
	return false
}

func (s *StreamController) Text() string {
	return s.text.String()
}

func (s *StreamController) Reasoning() string {
	return s.reasoning.String()
}

func (s *StreamController) Warnings() []types.Warning {
	return s.warnings
}

func (s *StreamController) Err() error {
	return s.err
}

func (s *StreamController) Finish() (*types.FinishReason, *types.Usage) {
	return s.finish, s.usage
}

func (s *StreamController) Interrupted() bool {
	return s.cancelRequested
}
