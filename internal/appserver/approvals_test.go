package appserver

import (
	"encoding/json"
	"testing"
	"time"

	"codexbridge/internal/types"
)

func TestApprovalResponderDecisions(t *testing.T) {
	tests := []struct {
		name      string
		responder ApprovalResponder
		method    string
		params    string
		want      string
		handled   bool
	}{
		{name: "default command", method: MethodCommandExecutionApproval, want: `{"decision":"accept"}`, handled: true},
		{name: "default file change", method: MethodFileChangeApproval, want: `{"decision":"accept"}`, handled: true},
		{name: "decline", responder: ApprovalResponder{Decision: types.DecisionDecline}, method: MethodCommandExecutionApproval, want: `{"decision":"decline"}`, handled: true},
		{name: "session", responder: ApprovalResponder{Decision: types.DecisionAcceptForSession}, method: MethodFileChangeApproval, want: `{"decision":"acceptForSession"}`, handled: true},
		{
			name:      "amendment echoes proposal",
			responder: ApprovalResponder{Decision: types.DecisionAcceptWithExecpolicyAmendment},
			method:    MethodCommandExecutionApproval,
			params:    `{"proposedExecpolicyAmendment":["git","status"]}`,
			want:      `{"decision":{"acceptWithExecpolicyAmendment":{"execpolicy_amendment":["git","status"]}}}`,
			handled:   true,
		},
		{
			name:      "amendment defaults to empty list",
			responder: ApprovalResponder{Decision: types.DecisionAcceptWithExecpolicyAmendment},
			method:    MethodCommandExecutionApproval,
			params:    `{"proposedExecpolicyAmendment":"not-a-list"}`,
			want:      `{"decision":{"acceptWithExecpolicyAmendment":{"execpolicy_amendment":[]}}}`,
			handled:   true,
		},
		{name: "legacy default exec", method: MethodLegacyExecApproval, want: `{"decision":"approved"}`, handled: true},
		{name: "legacy default patch", method: MethodLegacyPatchApproval, want: `{"decision":"approved"}`, handled: true},
		{name: "legacy denied", responder: ApprovalResponder{LegacyDecision: types.LegacyDenied}, method: MethodLegacyExecApproval, want: `{"decision":"denied"}`, handled: true},
		{name: "legacy ignores current decision", responder: ApprovalResponder{Decision: types.DecisionDecline}, method: MethodLegacyPatchApproval, want: `{"decision":"approved"}`, handled: true},
		{name: "unknown", method: "item/tool/requestUserInput", handled: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var params json.RawMessage
			if tt.params != "" {
				params = json.RawMessage(tt.params)
			}
			result, handled := tt.responder.Respond(tt.method, params)
			if handled != tt.handled {
				t.Fatalf("handled=%v want %v", handled, tt.handled)
			}
			if !handled {
				return
			}
			data, err := json.Marshal(result)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Fatalf("got %s want %s", data, tt.want)
			}
		})
	}
}

func TestNewApprovalRecordScope(t *testing.T) {
	msg := wireMessage{
		ID:     json.RawMessage(`5`),
		Method: MethodCommandExecutionApproval,
		Params: json.RawMessage(`{"threadId":"thr-1","turnId":"turn-2","command":"ls"}`),
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	record := newApprovalRecord(msg, map[string]any{"decision": "accept"}, at)
	if record.RequestID != "5" || record.ThreadID != "thr-1" || record.TurnID != "turn-2" {
		t.Fatalf("unexpected record: %#v", record)
	}
	if string(record.Decision) != `"accept"` {
		t.Fatalf("unexpected decision: %s", record.Decision)
	}
	if !record.AnsweredAt.Equal(at) || record.AnsweredAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", record.AnsweredAt)
	}

	legacy := wireMessage{ID: json.RawMessage(`6`), Method: MethodLegacyExecApproval, Params: json.RawMessage(`{"conversationId":"conv-9"}`)}
	record = newApprovalRecord(legacy, map[string]any{"decision": "approved"}, at)
	if record.ThreadID != "conv-9" {
		t.Fatalf("expected conversation id as thread, got %q", record.ThreadID)
	}
}
