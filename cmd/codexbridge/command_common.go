package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"codexbridge/internal/appserver"
	"codexbridge/internal/config"
	"codexbridge/internal/generation"
	"codexbridge/internal/logging"
	"codexbridge/internal/prompt"
	"codexbridge/internal/providers"
	"codexbridge/internal/store"
	"codexbridge/internal/types"
)

const version = "dev"

// settingsFlags are shared by every command that reads the config file.
type settingsFlags struct {
	configPath string
	logLevel   string
}

func (f *settingsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "config file (default ~/.codexbridge/config.toml)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func (f settingsFlags) resolvePath() (string, error) {
	if path := strings.TrimSpace(f.configPath); path != "" {
		return path, nil
	}
	return config.CoreConfigPath()
}

func (f settingsFlags) load() (config.CoreConfig, string, error) {
	path, err := f.resolvePath()
	if err != nil {
		return config.CoreConfig{}, "", err
	}
	cfg, err := config.LoadCoreConfigFromPath(path)
	if err != nil {
		return config.CoreConfig{}, "", fmt.Errorf("load config %s: %w", path, err)
	}
	if level := strings.TrimSpace(f.logLevel); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, path, nil
}

// generationFlags override per-generation provider options.
type generationFlags struct {
	model            string
	cwd              string
	effort           string
	includeReasoning bool
	promptFile       string
}

func (f *generationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.model, "model", "", "model id (overrides [model] id)")
	cmd.Flags().StringVar(&f.cwd, "cwd", "", "working directory for the codex thread")
	cmd.Flags().StringVar(&f.effort, "effort", "", "reasoning effort: none, minimal, low, medium, high, xhigh")
	cmd.Flags().BoolVar(&f.includeReasoning, "reasoning", false, "include reasoning output")
	cmd.Flags().StringVar(&f.promptFile, "prompt-file", "", "JSON message list to use as the prompt ('-' for stdin)")
}

func (f generationFlags) apply(cmd *cobra.Command, cfg *config.CoreConfig) {
	if model := strings.TrimSpace(f.model); model != "" {
		cfg.Model.ID = model
	}
	if cwd := strings.TrimSpace(f.cwd); cwd != "" {
		cfg.Provider.Cwd = cwd
	}
	if effort := strings.TrimSpace(f.effort); effort != "" {
		cfg.Provider.ReasoningEffort = types.ReasoningEffort(effort)
	}
	if cmd.Flags().Changed("reasoning") {
		cfg.Provider.IncludeReasoning = f.includeReasoning
	}
}

// session bundles a provider with the resources it was built from.
type session struct {
	provider  *generation.Provider
	model     *generation.Model
	approvals *store.BoltApprovalLog
}

func (s *session) Close() error {
	err := s.provider.Close()
	if s.approvals != nil {
		err = errors.Join(err, s.approvals.Close())
	}
	return err
}

func openSession(cfg config.CoreConfig, wiring commandWiring, logger logging.Logger) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := cfg.ProviderOptions()
	if err != nil {
		return nil, err
	}
	def, ok := providers.Lookup(opts.Name)
	if !ok {
		def = providers.Default()
	}
	if command, err := providers.ResolveCommand(def, opts.CodexPath); err != nil {
		logger.Warn("codex_command_unresolved", logging.F("provider", def.Name), logging.F("error", err))
	} else {
		opts.CodexPath = command
	}

	options := []generation.ProviderOption{
		generation.WithLogger(logger),
		generation.WithClientInfo(appserver.ClientInfo{
			Name:    appserver.DefaultClientInfo.Name,
			Title:   appserver.DefaultClientInfo.Title,
			Version: wiring.version,
		}),
	}
	if wiring.spawner != nil {
		options = append(options, generation.WithSpawner(wiring.spawner))
	}
	out := &session{}
	dbPath, err := cfg.ApprovalsDBPath()
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		approvals, err := store.NewBoltApprovalLog(dbPath, logger)
		if err != nil {
			return nil, fmt.Errorf("open approval log: %w", err)
		}
		out.approvals = approvals
		options = append(options, generation.WithApprovalObserver(approvals))
	}
	provider, err := generation.NewProvider(opts, options...)
	if err != nil {
		if out.approvals != nil {
			_ = out.approvals.Close()
		}
		return nil, err
	}
	out.provider = provider
	out.model = provider.LanguageModel(cfg.ModelID())
	return out, nil
}

func newLogger(out io.Writer, cfg config.CoreConfig) logging.Logger {
	return logging.New(out, logging.ParseLevel(cfg.LogLevel()))
}

// readPrompt takes the prompt from --prompt-file, the positional args, or
// stdin, in that order.
func readPrompt(args []string, promptFile string, stdin io.Reader) ([]prompt.Message, error) {
	if path := strings.TrimSpace(promptFile); path != "" {
		var data []byte
		var err error
		if path == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("read prompt file: %w", err)
		}
		return prompt.ParseMessages(data)
	}
	if len(args) > 0 {
		return prompt.UserText(strings.Join(args, " ")), nil
	}
	if stdin == nil {
		return prompt.UserText(""), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return prompt.UserText(strings.TrimRight(string(data), "\r\n")), nil
}

func commandContext(cmd *cobra.Command, wiring commandWiring) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if wiring.signalContext == nil {
		return context.WithCancel(ctx)
	}
	return wiring.signalContext(ctx)
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		var revision string
		var modified string
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				revision = setting.Value
			case "vcs.modified":
				modified = setting.Value
			}
		}
		if revision != "" {
			if modified == "true" {
				return revision + "-dirty"
			}
			return revision
		}
	}

	exe, err := os.Executable()
	if err == nil {
		file, err := os.Open(exe)
		if err == nil {
			defer file.Close()
			hasher := sha256.New()
			if _, err := io.Copy(hasher, file); err == nil {
				sum := hasher.Sum(nil)
				return fmt.Sprintf("bin-%x", sum[:6])
			}
		}
	}

	return version
}
