package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"codexbridge/internal/app"
	"codexbridge/internal/appserver"
	"codexbridge/internal/config"
)

type commandRunner interface {
	Command() *cobra.Command
	Run(args []string) error
}

type commandWiring struct {
	stdout        io.Writer
	stderr        io.Writer
	stdin         io.Reader
	spawner       appserver.Spawner
	runChat       func(opts app.Options) error
	copyText      func(text string) (app.ClipboardMethod, error)
	openChatLog   func() (io.WriteCloser, error)
	signalContext func(parent context.Context) (context.Context, context.CancelFunc)
	version       string
}

func defaultCommandWiring(stdout, stderr io.Writer) commandWiring {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return commandWiring{
		stdout:        stdout,
		stderr:        stderr,
		stdin:         os.Stdin,
		runChat:       app.Run,
		copyText:      app.CopyText,
		openChatLog:   openChatLog,
		signalContext: interruptContext,
		version:       buildVersion(),
	}
}

var commandOrder = []string{"generate", "stream", "chat", "config", "approvals", "providers"}

func buildCommands(wiring commandWiring) map[string]commandRunner {
	return map[string]commandRunner{
		"generate":  NewGenerateCommand(wiring),
		"stream":    NewStreamCommand(wiring),
		"chat":      NewChatCommand(wiring),
		"config":    NewConfigCommand(wiring),
		"approvals": NewApprovalsCommand(wiring),
		"providers": NewProvidersCommand(wiring),
	}
}

// runCommand executes a single subcommand with args, outside the root tree.
func runCommand(cmd *cobra.Command, wiring commandWiring, args []string) error {
	cmd.SetArgs(args)
	cmd.SetOut(wiring.stdout)
	cmd.SetErr(wiring.stderr)
	cmd.SetIn(wiring.stdin)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.Execute()
}

// interruptContext cancels on SIGINT. Cancelling a generation sends
// turn/interrupt and waits for the turn to settle.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}

// openChatLog redirects logging while the chat UI owns the terminal.
func openChatLog() (io.WriteCloser, error) {
	dataDir, err := config.DataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dataDir, "chat.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}
