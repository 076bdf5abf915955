package appserver

import (
	"encoding/json"
	"time"

	"codexbridge/internal/types"
)

const (
	MethodCommandExecutionApproval = "item/commandExecution/requestApproval"
	MethodFileChangeApproval       = "item/fileChange/requestApproval"
	MethodLegacyExecApproval       = "execCommandApproval"
	MethodLegacyPatchApproval      = "applyPatchApproval"
)

// ApprovalResponder answers the app-server's approval requests from static
// configuration. The zero value accepts everything.
type ApprovalResponder struct {
	Decision       types.ApprovalDecision
	LegacyDecision types.LegacyApprovalDecision
}

// Respond returns the response payload for method, or ok=false when the method
// is not an approval request.
func (r ApprovalResponder) Respond(method string, params json.RawMessage) (result map[string]any, ok bool) {
	switch method {
	case MethodCommandExecutionApproval, MethodFileChangeApproval:
		return map[string]any{"decision": r.currentDecision(params)}, true
	case MethodLegacyExecApproval, MethodLegacyPatchApproval:
		return map[string]any{"decision": r.legacyDecision()}, true
	default:
		return nil, false
	}
}

func (r ApprovalResponder) currentDecision(params json.RawMessage) any {
	decision := r.Decision
	if decision == "" {
		decision = types.DecisionAccept
	}
	if decision != types.DecisionAcceptWithExecpolicyAmendment {
		return string(decision)
	}
	amendment := []any{}
	var payload struct {
		Proposed json.RawMessage `json:"proposedExecpolicyAmendment"`
	}
	if len(params) > 0 && json.Unmarshal(params, &payload) == nil && len(payload.Proposed) > 0 {
		var list []any
		if json.Unmarshal(payload.Proposed, &list) == nil && list != nil {
			amendment = list
		}
	}
	return map[string]any{
		"acceptWithExecpolicyAmendment": map[string]any{
			"execpolicy_amendment": amendment,
		},
	}
}

func (r ApprovalResponder) legacyDecision() string {
	if r.LegacyDecision == "" {
		return string(types.LegacyApproved)
	}
	return string(r.LegacyDecision)
}

// ApprovalRecord describes one approval request answered by the session.
type ApprovalRecord struct {
	RequestID  string          `json:"request_id"`
	Method     string          `json:"method"`
	ThreadID   string          `json:"thread_id,omitempty"`
	TurnID     string          `json:"turn_id,omitempty"`
	Decision   json.RawMessage `json:"decision"`
	Params     json.RawMessage `json:"params,omitempty"`
	AnsweredAt time.Time       `json:"answered_at"`
}

// ApprovalObserver is told about every answered approval request. It is
// called from the session's read loop and must return quickly.
type ApprovalObserver interface {
	ObserveApproval(record ApprovalRecord)
}

func newApprovalRecord(msg wireMessage, result map[string]any, now time.Time) ApprovalRecord {
	record := ApprovalRecord{
		RequestID:  string(msg.ID),
		Method:     msg.Method,
		Params:     msg.Params,
		AnsweredAt: now.UTC(),
	}
	if data, err := json.Marshal(result["decision"]); err == nil {
		record.Decision = data
	}
	var scope struct {
		ThreadID       string `json:"threadId"`
		TurnID         string `json:"turnId"`
		ConversationID string `json:"conversationId"`
	}
	if len(msg.Params) > 0 && json.Unmarshal(msg.Params, &scope) == nil {
		record.ThreadID = scope.ThreadID
		if record.ThreadID == "" {
			record.ThreadID = scope.ConversationID
		}
		record.TurnID = scope.TurnID
	}
	return record
}
