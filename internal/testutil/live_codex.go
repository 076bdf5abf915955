package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"codexbridge/internal/config"
)

// EnvLiveCodex enables tests that talk to a real codex binary.
const EnvLiveCodex = "CODEXBRIDGE_LIVE_CODEX"

// LiveCodexCommand returns the codex executable for live integration tests,
// or "" when they should be skipped.
// Lookup order:
// 1) CODEXBRIDGE_LIVE_CODEX (a path, or "1" to search PATH)
// 2) ~/.codexbridge/live-codex (raw path)
func LiveCodexCommand() string {
	if value := strings.TrimSpace(os.Getenv(EnvLiveCodex)); value != "" {
		if value == "1" || strings.EqualFold(value, "true") {
			path, err := exec.LookPath("codex")
			if err != nil {
				return ""
			}
			return path
		}
		return value
	}
	return readLiveCodexFile()
}

func readLiveCodexFile() string {
	dataDir, err := config.DataDir()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(dataDir, "live-codex"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
