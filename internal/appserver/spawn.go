package appserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
)

// CommandSpec is how the child process is started. Args are appended after
// the app-server subcommand.
type CommandSpec struct {
	Path string
	Args []string
	Env  map[string]string
}

const subcommand = "app-server"

func (c CommandSpec) args() []string {
	return append([]string{subcommand}, c.Args...)
}

func (c CommandSpec) path() string {
	if strings.TrimSpace(c.Path) == "" {
		return "codex"
	}
	return c.Path
}

// Conn is a running child as seen by the session.
type Conn struct {
	Stdin  io.WriteCloser
	Stdout io.Reader
	Stderr io.Reader
	// Wait blocks until the child exits. A nil error means a clean exit.
	Wait func() error
	Kill func() error
}

// Spawner starts a child for spec. Tests substitute an in-memory one.
type Spawner func(ctx context.Context, spec CommandSpec) (*Conn, error)

// ExecSpawner starts spec as an OS process with the parent environment
// overlaid by spec.Env.
func ExecSpawner(_ context.Context, spec CommandSpec) (*Conn, error) {
	cmd := exec.Command(spec.path(), spec.args()...)
	if len(spec.Env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), spec.Env)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &Conn{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		Wait:   cmd.Wait,
		Kill: func() error {
			if cmd.Process == nil {
				return nil
			}
			return cmd.Process.Kill()
		},
	}, nil
}

func mergeEnv(base []string, overlay map[string]string) []string {
	out := make([]string, 0, len(base)+len(overlay))
	for _, entry := range base {
		key, _, _ := strings.Cut(entry, "=")
		if _, ok := overlay[key]; ok {
			continue
		}
		out = append(out, entry)
	}
	keys := make([]string, 0, len(overlay))
	for key := range overlay {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		out = append(out, key+"="+overlay[key])
	}
	return out
}

// describeExit renders the wait error the way the child went away.
func describeExit(err error) string {
	code := "unknown"
	signal := "no signal"
	if err == nil {
		code = "0"
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			signal = status.Signal().String()
		} else if c := exitErr.ExitCode(); c >= 0 {
			code = fmt.Sprintf("%d", c)
		}
	}
	return fmt.Sprintf("codex app-server exited with code %s (%s)", code, signal)
}
