package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"codexbridge/internal/config"
	"codexbridge/internal/types"
)

const (
	configFormatJSON = "json"
	configFormatTOML = "toml"
)

type configOutput struct {
	ConfigPath string                `json:"config_path,omitempty" toml:"config_path,omitempty"`
	Model      effectiveModelConfig  `json:"model" toml:"model"`
	Logging    effectiveLogConfig    `json:"logging" toml:"logging"`
	Store      effectiveStoreConfig  `json:"store" toml:"store"`
	Provider   types.ProviderOptions `json:"provider" toml:"provider"`
}

type effectiveModelConfig struct {
	ID string `json:"id" toml:"id"`
}

type effectiveLogConfig struct {
	Level string `json:"level" toml:"level"`
}

type effectiveStoreConfig struct {
	ApprovalsDB string `json:"approvals_db,omitempty" toml:"approvals_db,omitempty"`
}

type ConfigCommand struct {
	wiring commandWiring
}

func NewConfigCommand(wiring commandWiring) *ConfigCommand {
	return &ConfigCommand{wiring: wiring}
}

func (c *ConfigCommand) Run(args []string) error {
	return runCommand(c.Command(), c.wiring, args)
}

func (c *ConfigCommand) Command() *cobra.Command {
	var settings settingsFlags
	var defaults, pathOnly bool
	var format string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolvedFormat, err := resolveConfigFormat(format)
			if err != nil {
				return err
			}
			path, err := settings.resolvePath()
			if err != nil {
				return err
			}
			if pathOnly {
				fmt.Fprintln(c.wiring.stdout, path)
				return nil
			}
			cfg := config.DefaultCoreConfig()
			if !defaults {
				cfg, _, err = settings.load()
				if err != nil {
					return err
				}
			}
			payload, err := buildConfigOutput(cfg, path)
			if err != nil {
				return err
			}
			return writeConfigOutput(c.wiring.stdout, resolvedFormat, payload)
		},
	}
	settings.register(cmd)
	cmd.Flags().BoolVar(&defaults, "default", false, "print default config values")
	cmd.Flags().BoolVar(&pathOnly, "path", false, "print only the config file path")
	cmd.Flags().StringVar(&format, "format", configFormatTOML, "output format: toml|json")
	return cmd
}

func buildConfigOutput(cfg config.CoreConfig, path string) (configOutput, error) {
	provider, err := cfg.ProviderOptions()
	if err != nil {
		return configOutput{}, err
	}
	approvalsDB, err := cfg.ApprovalsDBPath()
	if err != nil {
		return configOutput{}, err
	}
	return configOutput{
		ConfigPath: path,
		Model:      effectiveModelConfig{ID: cfg.ModelID()},
		Logging:    effectiveLogConfig{Level: cfg.LogLevel()},
		Store:      effectiveStoreConfig{ApprovalsDB: approvalsDB},
		Provider:   provider,
	}, nil
}

func writeConfigOutput(out io.Writer, format string, payload any) error {
	switch format {
	case configFormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	case configFormatTOML:
		data, err := toml.Marshal(payload)
		if err != nil {
			return err
		}
		if len(data) == 0 || data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		_, err = out.Write(data)
		return err
	default:
		return errors.New("unsupported format")
	}
}

func resolveConfigFormat(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", configFormatTOML:
		return configFormatTOML, nil
	case configFormatJSON:
		return configFormatJSON, nil
	default:
		return "", errors.New("invalid format: must be toml or json")
	}
}
