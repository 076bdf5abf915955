package config

import (
	"path/filepath"
	"testing"
)

func TestPaths(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	t.Setenv("HOME", home)
	t.Setenv(EnvConfigPath, "")

	dataDir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir: %v", err)
	}
	if want := filepath.Join(home, ".codexbridge"); dataDir != want {
		t.Fatalf("unexpected data dir: got=%q want=%q", dataDir, want)
	}

	configPath, err := CoreConfigPath()
	if err != nil {
		t.Fatalf("CoreConfigPath: %v", err)
	}
	if want := filepath.Join(home, ".codexbridge", "config.toml"); configPath != want {
		t.Fatalf("unexpected config path: got=%q want=%q", configPath, want)
	}

	dbPath, err := DefaultApprovalsDBPath()
	if err != nil {
		t.Fatalf("DefaultApprovalsDBPath: %v", err)
	}
	if want := filepath.Join(home, ".codexbridge", "approvals.db"); dbPath != want {
		t.Fatalf("unexpected approvals path: got=%q want=%q", dbPath, want)
	}
}

func TestCoreConfigPathOverride(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	t.Setenv("HOME", home)

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "absolute", value: "/etc/codexbridge.toml", want: "/etc/codexbridge.toml"},
		{name: "home", value: "~/cfg/bridge.toml", want: filepath.Join(home, "cfg", "bridge.toml")},
		{name: "relative", value: "alt.toml", want: filepath.Join(home, ".codexbridge", "alt.toml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigPath, tt.value)
			got, err := CoreConfigPath()
			if err != nil {
				t.Fatalf("CoreConfigPath: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got=%q want=%q", got, tt.want)
			}
		})
	}
}
