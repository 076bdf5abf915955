package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	appDirName = ".codexbridge"

	// EnvConfigPath points at an alternative config file.
	EnvConfigPath = "CODEXBRIDGE_CONFIG"
)

// DataDir returns the base data directory for codexbridge.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

// CoreConfigPath returns the config file path, honouring CODEXBRIDGE_CONFIG.
func CoreConfigPath() (string, error) {
	if override := strings.TrimSpace(os.Getenv(EnvConfigPath)); override != "" {
		return resolveConfigPath(override)
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "config.toml"), nil
}

// DefaultApprovalsDBPath is where the approval audit log lives unless the
// config names another file.
func DefaultApprovalsDBPath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "approvals.db"), nil
}
