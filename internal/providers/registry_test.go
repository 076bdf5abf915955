package providers

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestProviderRegistryDefinitions(t *testing.T) {
	tests := []struct {
		name         string
		runtime      Runtime
		candidates   []string
		env          string
		capabilities Capabilities
	}{
		{
			name:       "codex",
			runtime:    RuntimeAppServer,
			candidates: []string{"codex"},
			env:        "CODEXBRIDGE_CODEX_PATH",
			capabilities: Capabilities{
				SupportsApprovals: true,
				SupportsInterrupt: true,
				SupportsReasoning: true,
				ReportsUsage:      true,
			},
		},
		{
			name:    "custom",
			runtime: RuntimeCustom,
			capabilities: Capabilities{
				SupportsApprovals: true,
				SupportsInterrupt: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, ok := Lookup(tt.name)
			if !ok {
				t.Fatalf("expected provider %q to be registered", tt.name)
			}
			if def.Runtime != tt.runtime {
				t.Fatalf("expected runtime %q, got %q", tt.runtime, def.Runtime)
			}
			if !reflect.DeepEqual(def.CommandCandidates, tt.candidates) {
				t.Fatalf("expected candidates %#v, got %#v", tt.candidates, def.CommandCandidates)
			}
			if def.CommandEnv != tt.env {
				t.Fatalf("expected command env %q, got %q", tt.env, def.CommandEnv)
			}
			if def.Capabilities != tt.capabilities {
				t.Fatalf("expected capabilities %#v, got %#v", tt.capabilities, def.Capabilities)
			}
		})
	}
}

func TestProviderRegistryNormalizeAndLookup(t *testing.T) {
	def, ok := Lookup("  CODEX ")
	if !ok || def.Name != "codex" {
		t.Fatalf("expected normalized lookup to find codex, got %+v", def)
	}
	if Default().Name != DefaultName {
		t.Fatalf("unexpected default definition %+v", Default())
	}
	if _, ok := Lookup("unknown-provider"); ok {
		t.Fatalf("expected unknown provider lookup to fail")
	}
	if caps := CapabilitiesFor("unknown-provider"); caps != (Capabilities{}) {
		t.Fatalf("expected empty capabilities for unknown provider, got %#v", caps)
	}
}

func TestProviderRegistryAllReturnsClones(t *testing.T) {
	defs := All()
	defs[0].Name = "changed"
	defs[0].CommandCandidates[0] = "changed-cmd"

	original := Default()
	if original.Name != "codex" || original.CommandCandidates[0] != "codex" {
		t.Fatalf("registry should not be mutated by All() clone edits, got %+v", original)
	}
}

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestResolveCommand(t *testing.T) {
	dir := t.TempDir()
	codexPath := writeExecutable(t, dir, "codex")
	altPath := writeExecutable(t, dir, "codex-nightly")
	t.Setenv("PATH", dir)
	t.Setenv("CODEXBRIDGE_CODEX_PATH", "")

	got, err := ResolveCommand(Default(), "")
	if err != nil || got != codexPath {
		t.Fatalf("expected %q from PATH, got %q (%v)", codexPath, got, err)
	}

	t.Setenv("CODEXBRIDGE_CODEX_PATH", "codex-nightly")
	got, err = ResolveCommand(Default(), "")
	if err != nil || got != altPath {
		t.Fatalf("expected env override %q, got %q (%v)", altPath, got, err)
	}

	got, err = ResolveCommand(Default(), codexPath)
	if err != nil || got != codexPath {
		t.Fatalf("expected configured path to win, got %q (%v)", got, err)
	}
}

func TestResolveCommandErrors(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("CODEXBRIDGE_CODEX_PATH", "")

	if _, err := ResolveCommand(Default(), ""); err == nil || !strings.Contains(err.Error(), "command not found: codex") {
		t.Fatalf("expected command not found, got %v", err)
	}
	custom, _ := Lookup("custom")
	if _, err := ResolveCommand(custom, ""); err == nil || !strings.Contains(err.Error(), "requires codex_path") {
		t.Fatalf("expected custom provider error, got %v", err)
	}
	if _, err := ResolveCommand(Definition{Name: "empty"}, ""); err == nil || err.Error() != "provider command is not configured" {
		t.Fatalf("expected unconfigured error, got %v", err)
	}
}
