package generation

import (
	"context"
	"strings"
	"time"

	"codexbridge/internal/appserver"
	"codexbridge/internal/logging"
	"codexbridge/internal/mailbox"
	"codexbridge/internal/prompt"
	"codexbridge/internal/types"
)

// Model generates text for one model id through its provider's session. Every
// generation of every Model of a provider shares one queue, so at most one
// turn is active per child.
type Model struct {
	provider string
	modelID  string
	options  types.ProviderOptions
	session  *appserver.Session
	queue    *Queue
	logger   logging.Logger
}

func (m *Model) Provider() string {
	return m.provider
}

func (m *Model) ModelID() string {
	return m.modelID
}

func (m *Model) Options() types.ProviderOptions {
	return types.CloneProviderOptions(m.options)
}

// WithOptions returns a Model sharing this one's session and queue with
// different per-generation options. Launch settings (path, args, env,
// approval decisions) stay those of the provider.
func (m *Model) WithOptions(opts types.ProviderOptions) (*Model, error) {
	normalized, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	clone := *m
	clone.options = normalized
	return &clone, nil
}

func (m *Model) spec(text string) turnSpec {
	return turnSpec{prompt: text, modelID: m.modelID, options: m.options}
}

func (m *Model) generationLogger(mode string) logging.Logger {
	return m.logger.With(
		logging.F("generation_id", logging.NewRequestID()),
		logging.F("model", m.modelID),
		logging.F("mode", mode),
	)
}

// Generate runs one generation to completion. Failures never surface as an
// error: they become a warning and an error finish reason, next to whatever
// text and usage had accumulated.
func (m *Model) Generate(ctx context.Context, messages []prompt.Message) types.Result {
	text := prompt.Render(messages, m.options.EmptyPromptFallback)
	result := types.Result{
		FinishReason: types.FinishReason{Unified: types.FinishOther},
		Usage:        types.DefaultUsage(),
		Warnings:     []types.Warning{},
	}
	if text == "" {
		result.Content = []types.ContentBlock{{Type: "text", Text: ""}}
		result.FinishReason = types.FinishReason{Unified: types.FinishOther, Raw: types.FinishRawEmptyPrompt}
		result.Warnings = append(result.Warnings, types.OtherWarning(emptyPromptWarning))
		return result
	}

	logger := m.generationLogger("generate")
	started := time.Now()
	acc := &resultSink{usageSnapshot: types.DefaultUsage()}
	err := m.run(ctx, text, acc, logger)

	result.Content = []types.ContentBlock{{Type: "text", Text: acc.buf.String()}}
	result.Usage = acc.usageSnapshot
	if err != nil {
		result.Warnings = append(result.Warnings, types.OtherWarning(errorMessage(err)))
		result.FinishReason = types.FinishReason{Unified: types.FinishError, Raw: types.FinishRawAppServerError}
	} else {
		result.FinishReason = types.FinishReason{Unified: types.FinishStop, Raw: types.FinishRawTurnCompleted}
	}
	logGenerationEnd(logger, result.FinishReason, started, err)
	return result
}

// Stream runs one generation and returns its framing parts. The channel is
// closed after exactly one finish part.
func (m *Model) Stream(ctx context.Context, messages []prompt.Message) <-chan types.StreamPart {
	out := mailbox.New[types.StreamPart]()
	text := prompt.Render(messages, m.options.EmptyPromptFallback)

	warnings := []types.Warning{}
	if text == "" {
		warnings = append(warnings, types.OtherWarning(emptyPromptWarning))
	}
	out.Put(types.StreamPart{Type: types.PartStreamStart, Warnings: warnings})
	if text == "" {
		usage := types.DefaultUsage()
		out.Put(types.StreamPart{
			Type:         types.PartFinish,
			Usage:        &usage,
			FinishReason: &types.FinishReason{Unified: types.FinishOther, Raw: types.FinishRawEmptyPrompt},
		})
		out.Finish()
		return out.Out()
	}

	logger := m.generationLogger("stream")
	sink := &streamSink{out: out, usageSnapshot: types.DefaultUsage()}
	go func() {
		started := time.Now()
		err := m.run(ctx, text, sink, logger)
		finish := sink.settle(err)
		logGenerationEnd(logger, finish, started, err)
		out.Finish()
	}()
	return out.Out()
}

// run waits for the queue slot, then drives the turn.
func (m *Model) run(ctx context.Context, text string, sink turnSink, logger logging.Logger) error {
	if waiting := m.queue.Waiting(); waiting > 0 {
		logger.Debug("generation_queued", logging.F("ahead", waiting))
	}
	done, err := Submit(m.queue, func() error {
		logger.Info("generation_start")
		return runTurn(ctx, m.session, m.spec(text), sink, logger)
	})
	if err != nil {
		return err
	}
	return <-done
}

func logGenerationEnd(logger logging.Logger, finish types.FinishReason, started time.Time, err error) {
	fields := []logging.Field{
		logging.F("finish", finish.Unified),
		logging.F("finish_raw", finish.Raw),
		logging.F("duration_ms", time.Since(started).Milliseconds()),
	}
	if err != nil {
		logger.Warn("generation_failed", append(fields, logging.F("error", err))...)
		return
	}
	logger.Info("generation_finish", fields...)
}

type resultSink struct {
	buf           strings.Builder
	usageSnapshot types.Usage
}

func (s *resultSink) text(delta string)       { s.buf.WriteString(delta) }
func (s *resultSink) reasoning(delta string)  { s.buf.WriteString(delta) }
func (s *resultSink) usage(usage types.Usage) { s.usageSnapshot = usage }

type streamSink struct {
	out              *mailbox.Mailbox[types.StreamPart]
	textStarted      bool
	reasoningStarted bool
	usageSnapshot    types.Usage
}

func (s *streamSink) text(delta string) {
	if !s.textStarted {
		s.textStarted = true
		s.out.Put(types.StreamPart{Type: types.PartTextStart, ID: types.TextBlockID})
	}
	s.out.Put(types.StreamPart{Type: types.PartTextDelta, ID: types.TextBlockID, Delta: delta})
}

func (s *streamSink) reasoning(delta string) {
	if !s.reasoningStarted {
		s.reasoningStarted = true
		s.out.Put(types.StreamPart{Type: types.PartReasoningStart, ID: types.ReasoningBlockID})
	}
	s.out.Put(types.StreamPart{Type: types.PartReasoningDelta, ID: types.ReasoningBlockID, Delta: delta})
}

func (s *streamSink) usage(usage types.Usage) {
	s.usageSnapshot = usage
}

// settle closes open blocks, reports a failure and emits the single finish
// part. It returns the finish reason it emitted.
func (s *streamSink) settle(err error) types.FinishReason {
	if s.reasoningStarted {
		s.out.Put(types.StreamPart{Type: types.PartReasoningEnd, ID: types.ReasoningBlockID})
	}
	if s.textStarted {
		s.out.Put(types.StreamPart{Type: types.PartTextEnd, ID: types.TextBlockID})
	}
	finish := types.FinishReason{Unified: types.FinishStop, Raw: types.FinishRawTurnCompleted}
	if err != nil {
		s.out.Put(types.StreamPart{Type: types.PartError, Err: err})
		finish = types.FinishReason{Unified: types.FinishError, Raw: types.FinishRawAppServerError}
	}
	usage := s.usageSnapshot
	s.out.Put(types.StreamPart{Type: types.PartFinish, Usage: &usage, FinishReason: &finish})
	return finish
}
