package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"codexbridge/internal/types"
)

const (
	defaultModelID  = "gpt-5.1-codex"
	defaultLogLevel = "info"

	EnvCodexPath      = "CODEXBRIDGE_CODEX_PATH"
	EnvApprovalPolicy = "CODEXBRIDGE_APPROVAL_POLICY"
	EnvSandboxMode    = "CODEXBRIDGE_SANDBOX_MODE"
	EnvLogLevel       = "CODEXBRIDGE_LOG_LEVEL"
)

type CoreConfig struct {
	Model    CoreModelConfig       `toml:"model"`
	Provider types.ProviderOptions `toml:"provider"`
	Logging  CoreLoggingConfig     `toml:"logging"`
	Store    CoreStoreConfig       `toml:"store"`
}

type CoreModelConfig struct {
	ID string `toml:"id"`
}

type CoreLoggingConfig struct {
	Level string `toml:"level"`
}

type CoreStoreConfig struct {
	// ApprovalsDB enables the approval audit log. Relative paths resolve
	// against the data dir; "default" selects approvals.db there.
	ApprovalsDB string `toml:"approvals_db,omitempty"`
}

func DefaultCoreConfig() CoreConfig {
	return CoreConfig{
		Model: CoreModelConfig{
			ID: defaultModelID,
		},
		Logging: CoreLoggingConfig{
			Level: defaultLogLevel,
		},
		Provider: types.ProviderOptions{
			EmptyPromptFallback:    types.EmptyPromptPlaceholder,
			ApprovalDecision:       types.DecisionAccept,
			LegacyApprovalDecision: types.LegacyApproved,
		},
	}
}

// LoadCoreConfig reads the config file (missing or empty means defaults) and
// applies environment overrides.
func LoadCoreConfig() (CoreConfig, error) {
	path, err := CoreConfigPath()
	if err != nil {
		return CoreConfig{}, err
	}
	return LoadCoreConfigFromPath(path)
}

func LoadCoreConfigFromPath(path string) (CoreConfig, error) {
	cfg := DefaultCoreConfig()
	if err := readTOML(path, &cfg); err != nil {
		return CoreConfig{}, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *CoreConfig) applyEnv() {
	if value := strings.TrimSpace(os.Getenv(EnvCodexPath)); value != "" {
		c.Provider.CodexPath = value
	}
	if value := strings.TrimSpace(os.Getenv(EnvApprovalPolicy)); value != "" {
		c.Provider.ApprovalPolicy = types.ApprovalPolicy(value)
	}
	if value := strings.TrimSpace(os.Getenv(EnvSandboxMode)); value != "" {
		c.Provider.SandboxMode = types.SandboxMode(value)
	}
	if value := strings.TrimSpace(os.Getenv(EnvLogLevel)); value != "" {
		c.Logging.Level = value
	}
}

func (c CoreConfig) ModelID() string {
	id := strings.TrimSpace(c.Model.ID)
	if id == "" {
		return defaultModelID
	}
	return id
}

func (c CoreConfig) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return defaultLogLevel
	}
	return level
}

// ProviderOptions returns the validated provider section.
func (c CoreConfig) ProviderOptions() (types.ProviderOptions, error) {
	return c.Provider.Normalize()
}

// ApprovalsDBPath returns the audit log path, or "" when auditing is off.
func (c CoreConfig) ApprovalsDBPath() (string, error) {
	path := strings.TrimSpace(c.Store.ApprovalsDB)
	switch path {
	case "":
		return "", nil
	case "default":
		return DefaultApprovalsDBPath()
	}
	return resolveConfigPath(path)
}

// Validate reports the first configuration error.
func (c CoreConfig) Validate() error {
	if _, err := c.ProviderOptions(); err != nil {
		return err
	}
	if _, err := c.ApprovalsDBPath(); err != nil {
		return err
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c CoreConfig) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

func resolveConfigPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is required")
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, path), nil
}
