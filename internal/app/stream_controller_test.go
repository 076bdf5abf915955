package app

import (
	"errors"
	"testing"

	"codexbridge/internal/types"
)

func int64Ptr(v int64) *int64 { return &v }

func TestStreamControllerConsumeTickAccumulatesAndCloses(t *testing.T) {
	stream := NewStreamController(10)
	ch := make(chan types.StreamPart, 8)
	stream.Start(ch, nil)

	ch <- types.StreamPart{Type: types.PartStreamStart}
	ch <- types.StreamPart{Type: types.PartTextStart, ID: types.TextBlockID}
	ch <- types.StreamPart{Type: types.PartTextDelta, ID: types.TextBlockID, Delta: "hello"}

	changed, closed := stream.ConsumeTick()
	if closed {
		t.Fatalf("expected open stream")
	}
	if !changed {
		t.Fatalf("expected changed=true on delta consumption")
	}
	if stream.Text() != "hello" {
		t.Fatalf("unexpected text after first tick: %q", stream.Text())
	}

	changed, closed = stream.ConsumeTick()
	if changed || closed {
		t.Fatalf("expected idle tick, got changed=%v closed=%v", changed, closed)
	}

	usage := types.Usage{OutputTokens: types.OutputTokens{Total: int64Ptr(3)}}
	ch <- types.StreamPart{Type: types.PartTextDelta, ID: types.TextBlockID, Delta: " world"}
	ch <- types.StreamPart{Type: types.PartTextEnd, ID: types.TextBlockID}
	ch <- types.StreamPart{Type: types.PartFinish, FinishReason: &types.FinishReason{Unified: types.FinishStop, Raw: types.FinishRawTurnCompleted}, Usage: &usage}
	close(ch)

	_, closed = stream.ConsumeTick()
	if !closed {
		t.Fatalf("expected closed=true when channel is closed")
	}
	if stream.Active() {
		t.Fatalf("expected controller to be inactive after close")
	}
	if stream.Text() != "hello world" {
		t.Fatalf("unexpected final text %q", stream.Text())
	}
	finish, gotUsage := stream.Finish()
	if finish == nil || finish.Unified != types.FinishStop {
		t.Fatalf("unexpected finish %#v", finish)
	}
	if gotUsage == nil || *gotUsage.OutputTokens.Total != 3 {
		t.Fatalf("unexpected usage %#v", gotUsage)
	}
}

func TestStreamControllerLimitsPartsPerTick(t *testing.T) {
	stream := NewStreamController(2)
	ch := make(chan types.StreamPart, 4)
	stream.Start(ch, nil)
	for _, delta := range []string{"a", "b", "c"} {
		ch <- types.StreamPart{Type: types.PartTextDelta, Delta: delta}
	}

	stream.ConsumeTick()
	if stream.Text() != "ab" {
		t.Fatalf("expected two parts per tick, got %q", stream.Text())
	}
	stream.ConsumeTick()
	if stream.Text() != "abc" {
		t.Fatalf("expected remaining part on next tick, got %q", stream.Text())
	}
}

func TestStreamControllerCollectsReasoningWarningsAndErrors(t *testing.T) {
	stream := NewStreamController(10)
	ch := make(chan types.StreamPart, 8)
	stream.Start(ch, nil)
	failure := errors.New("boom")
	ch <- types.StreamPart{Type: types.PartStreamStart, Warnings: []types.Warning{types.OtherWarning("ignored option")}}
	ch <- types.StreamPart{Type: types.PartReasoningDelta, Delta: "thinking"}
	ch <- types.StreamPart{Type: types.PartError, Err: failure}
	ch <- types.StreamPart{Type: types.PartFinish, FinishReason: &types.FinishReason{Unified: types.FinishError, Raw: types.FinishRawError}}
	close(ch)

	if _, closed := stream.ConsumeTick(); !closed {
		t.Fatalf("expected closed stream")
	}
	if stream.Reasoning() != "thinking" {
		t.Fatalf("unexpected reasoning %q", stream.Reasoning())
	}
	if !errors.Is(stream.Err(), failure) {
		t.Fatalf("unexpected error %v", stream.Err())
	}
	if len(stream.Warnings()) != 1 || stream.Warnings()[0].Message != "ignored option" {
		t.Fatalf("unexpected warnings %#v", stream.Warnings())
	}
}

func TestStreamControllerInterruptCancelsOnce(t *testing.T) {
	stream := NewStreamController(10)
	ch := make(chan types.StreamPart)
	cancels := 0
	stream.Start(ch, func() { cancels++ })

	if !stream.Interrupt() {
		t.Fatalf("expected first interrupt to be accepted")
	}
	if stream.Interrupt() {
		t.Fatalf("expected second interrupt to be ignored")
	}
	if cancels != 1 {
		t.Fatalf("expected one cancel, got %d", cancels)
	}
	if !stream.Interrupted() || !stream.Active() {
		t.Fatalf("expected interrupted stream to keep draining")
	}
}

func TestStreamControllerInterruptWithoutStream(t *testing.T) {
	stream := NewStreamController(10)
	if stream.Interrupt() {
		t.Fatalf("expected interrupt without a stream to be ignored")
	}
	if changed, closed := stream.ConsumeTick(); changed || closed {
		t.Fatalf("expected idle controller")
	}
}

func TestStreamControllerStartResetsPreviousState(t *testing.T) {
	stream := NewStreamController(10)
	first := make(chan types.StreamPart, 1)
	cancelled := false
	stream.Start(first, func() { cancelled = true })
	first <- types.StreamPart{Type: types.PartTextDelta, Delta: "old"}
	stream.ConsumeTick()
	stream.Interrupt()

	stream.Start(make(chan types.StreamPart), nil)
	if !cancelled {
		t.Fatalf("expected previous generation to be cancelled")
	}
	if stream.Text() != "" || stream.Interrupted() {
		t.Fatalf("expected fresh state, got text=%q interrupted=%v", stream.Text(), stream.Interrupted())
	}
}
