package providers

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

type Capabilities struct {
	SupportsApprovals bool
	SupportsInterrupt bool
	SupportsReasoning bool
	ReportsUsage      bool
}

type Runtime string

const (
	RuntimeAppServer Runtime = "app_server"
	RuntimeCustom    Runtime = "custom"
)

// Definition describes a command that speaks the codex app-server protocol.
type Definition struct {
	Name              string
	Label             string
	Runtime           Runtime
	CommandCandidates []string
	// CommandEnv names an environment variable that overrides the candidates.
	CommandEnv   string
	Capabilities Capabilities
}

const DefaultName = "codex"

var registry = []Definition{
	{
		Name:              "codex",
		Label:             "codex app-server",
		Runtime:           RuntimeAppServer,
		CommandCandidates: []string{"codex"},
		CommandEnv:        "CODEXBRIDGE_CODEX_PATH",
		Capabilities: Capabilities{
			SupportsApprovals: true,
			SupportsInterrupt: true,
			SupportsReasoning: true,
			ReportsUsage:      true,
		},
	},
	{
		Name:    "custom",
		Label:   "custom app-server command",
		Runtime: RuntimeCustom,
		Capabilities: Capabilities{
			SupportsApprovals: true,
			SupportsInterrupt: true,
		},
	},
}

var registryByName = buildByName(registry)

func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func All() []Definition {
	out := make([]Definition, 0, len(registry))
	for _, def := range registry {
		out = append(out, cloneDefinition(def))
	}
	return out
}

func Lookup(name string) (Definition, bool) {
	key := Normalize(name)
	def, ok := registryByName[key]
	if !ok {
		return Definition{}, false
	}
	return cloneDefinition(def), true
}

// Default is the definition used when nothing else is configured.
func Default() Definition {
	def, _ := Lookup(DefaultName)
	return def
}

func CapabilitiesFor(name string) Capabilities {
	def, ok := Lookup(name)
	if !ok {
		return Capabilities{}
	}
	return def.Capabilities
}

// ResolveCommand picks the command to launch for def. An explicit configured
// path wins, then the definition's environment override, then the first
// candidate found on PATH.
func ResolveCommand(def Definition, configured string) (string, error) {
	if configured = strings.TrimSpace(configured); configured != "" {
		return lookupCommand(configured)
	}
	if def.Runtime == RuntimeCustom {
		return "", errors.New("custom provider requires codex_path")
	}
	if env := strings.TrimSpace(def.CommandEnv); env != "" {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			return lookupCommand(value)
		}
	}
	var valid []string
	for _, candidate := range def.CommandCandidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		valid = append(valid, candidate)
		if cmd, err := lookupCommand(candidate); err == nil {
			return cmd, nil
		}
	}
	if len(valid) == 0 {
		return "", errors.New("provider command is not configured")
	}
	return "", fmt.Errorf("command not found: %s", strings.Join(valid, " or "))
}

func lookupCommand(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("command not found: %s", name)
	}
	return path, nil
}

func buildByName(defs []Definition) map[string]Definition {
	out := make(map[string]Definition, len(defs))
	for _, def := range defs {
		name := Normalize(def.Name)
		if name == "" {
			continue
		}
		out[name] = cloneDefinition(def)
	}
	return out
}

func cloneDefinition(def Definition) Definition {
	copy := def
	if def.CommandCandidates != nil {
		copy.CommandCandidates = append([]string{}, def.CommandCandidates...)
	}
	return copy
}
