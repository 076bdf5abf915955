package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand(wiring commandWiring) *cobra.Command {
	root := &cobra.Command{
		Use:   "codexbridge",
		Short: "Generate text through a local codex app-server",
		Long: `codexbridge drives a local "codex app-server" child over stdio and exposes
it as a language model: single-shot generation, incremental streaming and an
interactive chat.

Examples:
  codexbridge generate "explain this repository"
  echo "hi" | codexbridge stream --events
  codexbridge generate --prompt-file messages.json --render
  codexbridge chat
  codexbridge approvals --limit 20`,
		Version:       wiring.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(wiring.stdout)
	root.SetErr(wiring.stderr)
	root.SetIn(wiring.stdin)
	commands := buildCommands(wiring)
	for _, name := range commandOrder {
		root.AddCommand(commands[name].Command())
	}
	return root
}

func main() {
	wiring := defaultCommandWiring(os.Stdout, os.Stderr)
	root := newRootCommand(wiring)
	if err := root.Execute(); err != nil {
		label := "codexbridge"
		if cmd, _, findErr := root.Find(os.Args[1:]); findErr == nil && cmd != root {
			label = cmd.Name()
		}
		fmt.Fprintf(wiring.stderr, "%s error: %v\n", label, err)
		os.Exit(1)
	}
}
