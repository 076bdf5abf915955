package main

import (
	"io"

	"github.com/spf13/cobra"

	"codexbridge/internal/app"
	"codexbridge/internal/config"
	"codexbridge/internal/generation"
	"codexbridge/internal/logging"
)

type ChatCommand struct {
	wiring commandWiring
}

func NewChatCommand(wiring commandWiring) *ChatCommand {
	return &ChatCommand{wiring: wiring}
}

func (c *ChatCommand) Run(args []string) error {
	return runCommand(c.Command(), c.wiring, args)
}

func (c *ChatCommand) Command() *cobra.Command {
	var settings settingsFlags
	var gen generationFlags
	var watch bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with codex in a terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := settings.load()
			if err != nil {
				return err
			}
			gen.apply(cmd, &cfg)

			logOut := io.Writer(io.Discard)
			if c.wiring.openChatLog != nil {
				if file, err := c.wiring.openChatLog(); err == nil {
					defer file.Close()
					logOut = file
				}
			}
			logger := newLogger(logOut, cfg)
			sess, err := openSession(cfg, c.wiring, logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			opts := app.Options{
				Generator:   sess.model,
				Reconfigure: reconfigureFor(sess.provider, gen, cmd),
				Title:       "codexbridge " + c.wiring.version,
				Logger:      logger,
			}
			if watch {
				watcher, err := config.WatchCoreConfig(path, logger)
				if err != nil {
					logger.Warn("config_watch_failed", logging.F("path", path), logging.F("error", err))
				} else {
					defer watcher.Close()
					opts.Reloads = watcher.Updates()
				}
			}
			return c.wiring.runChat(opts)
		},
	}
	settings.register(cmd)
	gen.register(cmd)
	cmd.Flags().BoolVar(&watch, "watch", true, "reload per-generation options when the config file changes")
	return cmd
}

// reconfigureFor builds a model on the running provider from a reloaded
// config. Command-line overrides keep precedence over the file.
func reconfigureFor(provider *generation.Provider, gen generationFlags, cmd *cobra.Command) app.Reconfigure {
	return func(next config.CoreConfig) (app.Generator, error) {
		gen.apply(cmd, &next)
		if err := next.Validate(); err != nil {
			return nil, err
		}
		opts, err := next.ProviderOptions()
		if err != nil {
			return nil, err
		}
		model, err := provider.LanguageModel(next.ModelID()).WithOptions(opts)
		if err != nil {
			return nil, err
		}
		return model, nil
	}
}
