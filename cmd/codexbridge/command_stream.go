package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"codexbridge/internal/app"
	"codexbridge/internal/types"
)

var (
	streamReasoningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Faint(true)
	streamMetaStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type StreamCommand struct {
	wiring commandWiring
}

func NewStreamCommand(wiring commandWiring) *StreamCommand {
	return &StreamCommand{wiring: wiring}
}

func (c *StreamCommand) Run(args []string) error {
	return runCommand(c.Command(), c.wiring, args)
}

func (c *StreamCommand) Command() *cobra.Command {
	var settings settingsFlags
	var gen generationFlags
	var events, showUsage bool
	cmd := &cobra.Command{
		Use:   "stream [prompt...]",
		Short: "Stream a generation as it is produced",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := settings.load()
			if err != nil {
				return err
			}
			gen.apply(cmd, &cfg)
			messages, err := readPrompt(args, gen.promptFile, c.wiring.stdin)
			if err != nil {
				return err
			}
			sess, err := openSession(cfg, c.wiring, newLogger(c.wiring.stderr, cfg))
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx, cancel := commandContext(cmd, c.wiring)
			defer cancel()
			parts := sess.model.Stream(ctx, messages)
			if events {
				return writeStreamEvents(c.wiring.stdout, parts)
			}
			return writeStreamText(c.wiring.stdout, c.wiring.stderr, parts, showUsage)
		},
	}
	settings.register(cmd)
	gen.register(cmd)
	cmd.Flags().BoolVar(&events, "events", false, "print every stream part as a JSON line")
	cmd.Flags().BoolVar(&showUsage, "usage", false, "print token usage to stderr when done")
	return cmd
}

// writeStreamEvents prints each part as one JSON line and drains the stream
// even when a write fails.
func writeStreamEvents(out io.Writer, parts <-chan types.StreamPart) error {
	encoder := json.NewEncoder(out)
	var writeErr, streamErr error
	for part := range parts {
		if part.Type == types.PartError && part.Err != nil {
			streamErr = part.Err
		}
		if writeErr != nil {
			continue
		}
		writeErr = encoder.Encode(part)
	}
	if writeErr != nil {
		return writeErr
	}
	return streamErr
}

// writeStreamText prints text deltas to out and reasoning deltas to errOut.
func writeStreamText(out, errOut io.Writer, parts <-chan types.StreamPart, showUsage bool) error {
	var streamErr error
	var finish *types.FinishReason
	var usage *types.Usage
	wroteText := false
	wroteReasoning := false
	for part := range parts {
		switch part.Type {
		case types.PartTextDelta:
			if part.Delta != "" {
				if wroteReasoning && !wroteText {
					fmt.Fprintln(errOut)
				}
				wroteText = true
				fmt.Fprint(out, part.Delta)
			}
		case types.PartReasoningDelta:
			if part.Delta != "" {
				wroteReasoning = true
				fmt.Fprint(errOut, streamReasoningStyle.Render(part.Delta))
			}
		case types.PartStreamStart:
			for _, warning := range part.Warnings {
				fmt.Fprintf(errOut, "warning: %s\n", warning.Message)
			}
		case types.PartError:
			streamErr = part.Err
			if streamErr == nil {
				streamErr = errors.New("generation failed")
			}
		case types.PartFinish:
			finish = part.FinishReason
			usage = part.Usage
		}
	}
	if wroteText {
		fmt.Fprintln(out)
	}
	if showUsage && finish != nil {
		line := finish.Unified
		if usage != nil {
			if tokens := app.FormatUsage(*usage); tokens != "" {
				line += " · " + tokens
			}
		}
		fmt.Fprintln(errOut, streamMetaStyle.Render(line))
	}
	return streamErr
}
