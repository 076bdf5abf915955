package generation

import "errors"

const (
	defaultErrorMessage = "codex app-server error"
	emptyPromptWarning  = "Empty prompt; skipping codex app-server."
)

var (
	ErrMissingThreadID = errors.New("codex app-server did not return a thread id")
	ErrMissingTurnID   = errors.New("codex app-server did not return a turn id")

	// ErrUnsupportedModelType is returned for model kinds the app-server
	// cannot serve.
	ErrUnsupportedModelType = errors.New("unsupported model type")
)

// TurnError is an error notification the app-server sent for the active turn.
type TurnError struct {
	ThreadID string
	TurnID   string
	Message  string
}

func (e *TurnError) Error() string {
	if e.Message == "" {
		return defaultErrorMessage
	}
	return e.Message
}

// errorMessage is the text reported to callers for a failed generation.
func errorMessage(err error) string {
	if err == nil {
		return defaultErrorMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return defaultErrorMessage
}
