package generation

import (
	"context"
	"testing"
	"time"

	"codexbridge/internal/prompt"
	"codexbridge/internal/testutil"
	"codexbridge/internal/types"
)

func TestLiveCodexGenerate(t *testing.T) {
	command := testutil.LiveCodexCommand()
	if command == "" {
		t.Skipf("set %s to run against a real codex binary", testutil.EnvLiveCodex)
	}
	provider, err := NewProvider(types.ProviderOptions{
		CodexPath:   command,
		SandboxMode: types.SandboxReadOnly,
		Cwd:         t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	defer provider.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	result := provider.LanguageModel("").Generate(ctx, prompt.UserText("Reply with the single word: pong"))
	if result.FinishReason.Unified != types.FinishStop {
		t.Fatalf("expected stop, got %#v (warnings %#v)", result.FinishReason, result.Warnings)
	}
	if result.Text() == "" {
		t.Fatalf("expected answer text")
	}
}
