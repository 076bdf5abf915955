package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"codexbridge/internal/app"
	"codexbridge/internal/logging"
	"codexbridge/internal/types"
)

const defaultRenderWidth = 100

type GenerateCommand struct {
	wiring commandWiring
}

func NewGenerateCommand(wiring commandWiring) *GenerateCommand {
	return &GenerateCommand{wiring: wiring}
}

func (c *GenerateCommand) Run(args []string) error {
	return runCommand(c.Command(), c.wiring, args)
}

func (c *GenerateCommand) Command() *cobra.Command {
	var settings settingsFlags
	var gen generationFlags
	var asJSON, render, copyAnswer bool
	var width int
	cmd := &cobra.Command{
		Use:   "generate [prompt...]",
		Short: "Run one generation and print the answer",
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
			logger := newLogger(c.wiring.stderr, cfg)
			sess, err := openSession(cfg, c.wiring, logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx, cancel := commandContext(cmd, c.wiring)
			defer cancel()
			result := sess.model.Generate(ctx, messages)

			if asJSON {
				encoder := json.NewEncoder(c.wiring.stdout)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(result); err != nil {
					return err
				}
			} else {
				text := result.Text()
				if render {
					text = app.RenderMarkdown(text, width)
				}
				if text != "" {
					fmt.Fprintln(c.wiring.stdout, text)
				}
				if result.FinishReason.Unified != types.FinishError {
					for _, warning := range result.Warnings {
						fmt.Fprintf(c.wiring.stderr, "warning: %s\n", warning.Message)
					}
				}
			}
			if copyAnswer {
				c.copyAnswer(logger, result.Text())
			}
			return resultError(result)
		},
	}
	settings.register(cmd)
	gen.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVar(&render, "render", false, "render the answer as terminal markdown")
	cmd.Flags().IntVar(&width, "width", defaultRenderWidth, "wrap width for --render")
	cmd.Flags().BoolVar(&copyAnswer, "copy", false, "copy the answer to the clipboard")
	return cmd
}

func (c *GenerateCommand) copyAnswer(logger logging.Logger, text string) {
	if text == "" || c.wiring.copyText == nil {
		return
	}
	method, err := c.wiring.copyText(text)
	if err != nil {
		fmt.Fprintf(c.wiring.stderr, "copy failed: %v\n", err)
		return
	}
	logger.Debug("answer_copied", logging.F("method", method.String()))
}

// resultError turns an error finish into a command failure so the exit code
// reflects it.
func resultError(result types.Result) error {
	if result.FinishReason.Unified != types.FinishError {
		return nil
	}
	messages := make([]string, 0, len(result.Warnings))
	for _, warning := range result.Warnings {
		messages = append(messages, warning.Message)
	}
	if len(messages) == 0 {
		return errors.New("generation failed")
	}
	return fmt.Errorf("generation failed: %s", strings.Join(messages, "; "))
}
