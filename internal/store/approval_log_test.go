package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"codexbridge/internal/appserver"
)

func openTestLog(t *testing.T) (*BoltApprovalLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "approvals.db")
	log, err := NewBoltApprovalLog(path, nil)
	if err != nil {
		t.Fatalf("NewBoltApprovalLog: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log, path
}

func approval(id, method, thread string, at time.Time) appserver.ApprovalRecord {
	return appserver.ApprovalRecord{
		RequestID:  id,
		Method:     method,
		ThreadID:   thread,
		TurnID:     "r1",
		Decision:   json.RawMessage(`"accept"`),
		Params:     json.RawMessage(`{"command":"ls"}`),
		AnsweredAt: at,
	}
}

func TestApprovalLogAppendAndListInOrder(t *testing.T) {
	log, _ := openTestLog(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"3", "1", "2"} {
		if err := log.Append(ctx, approval(id, appserver.MethodCommandExecutionApproval, "t1", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	records, err := log.List(ctx, ApprovalQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"3", "1", "2"} {
		if records[i].RequestID != want {
			t.Fatalf("expected arrival order, got %+v", records)
		}
	}
	if string(records[0].Decision) != `"accept"` || !records[0].AnsweredAt.Equal(base) {
		t.Fatalf("record fields not preserved: %+v", records[0])
	}
}

func TestApprovalLogQuery(t *testing.T) {
	log, _ := openTestLog(t)
	ctx := context.Background()
	now := time.Now().UTC()
	entries := []appserver.ApprovalRecord{
		approval("1", appserver.MethodCommandExecutionApproval, "t1", now),
		approval("2", appserver.MethodFileChangeApproval, "t1", now),
		approval("3", appserver.MethodLegacyExecApproval, "t2", now),
		approval("4", appserver.MethodCommandExecutionApproval, "t1", now),
	}
	for _, entry := range entries {
		if err := log.Append(ctx, entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	tests := []struct {
		name  string
		query ApprovalQuery
		want  []string
	}{
		{name: "thread", query: ApprovalQuery{ThreadID: "t1"}, want: []string{"1", "2", "4"}},
		{name: "method", query: ApprovalQuery{Method: appserver.MethodCommandExecutionApproval}, want: []string{"1", "4"}},
		{name: "limit keeps newest", query: ApprovalQuery{Limit: 2}, want: []string{"3", "4"}},
		{name: "no match", query: ApprovalQuery{ThreadID: "t9"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := log.List(ctx, tt.query)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(records) != len(tt.want) {
				t.Fatalf("expected %v, got %+v", tt.want, records)
			}
			for i, id := range tt.want {
				if records[i].RequestID != id {
					t.Fatalf("expected %v, got %+v", tt.want, records)
				}
			}
		})
	}
}

func TestApprovalLogRejectsRecordWithoutMethod(t *testing.T) {
	log, _ := openTestLog(t)
	if err := log.Append(context.Background(), appserver.ApprovalRecord{RequestID: "1"}); err == nil {
		t.Fatalf("expected error for record without method")
	}
}

func TestApprovalLogStampsMissingTime(t *testing.T) {
	log, _ := openTestLog(t)
	ctx := context.Background()
	before := time.Now().UTC().Add(-time.Second)
	if err := log.Append(ctx, appserver.ApprovalRecord{RequestID: "1", Method: appserver.MethodLegacyPatchApproval}); err != nil {
		t.Fatalf("append: %v", err)
	}
	records, _ := log.List(ctx, ApprovalQuery{})
	if len(records) != 1 || records[0].AnsweredAt.Before(before) {
		t.Fatalf("expected answered_at to be stamped, got %+v", records)
	}
}

func TestApprovalLogObserverPersists(t *testing.T) {
	log, _ := openTestLog(t)
	var observer appserver.ApprovalObserver = log
	observer.ObserveApproval(approval("7", appserver.MethodFileChangeApproval, "t1", time.Now().UTC()))
	observer.ObserveApproval(appserver.ApprovalRecord{RequestID: "8"})

	records, err := log.List(context.Background(), ApprovalQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].RequestID != "7" {
		t.Fatalf("expected only the valid record, got %+v", records)
	}
}

func TestApprovalLogPrune(t *testing.T) {
	log, _ := openTestLog(t)
	ctx := context.Background()
	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{cutoff.Add(-48 * time.Hour), cutoff.Add(-time.Minute), cutoff, cutoff.Add(time.Hour)} {
		if err := log.Append(ctx, approval(string(rune('a'+i)), appserver.MethodLegacyExecApproval, "t1", at)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	removed, err := log.Prune(ctx, cutoff)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 pruned, got %d", removed)
	}
	records, _ := log.List(ctx, ApprovalQuery{})
	if len(records) != 2 || records[0].RequestID != "c" || records[1].RequestID != "d" {
		t.Fatalf("unexpected survivors %+v", records)
	}
}

func TestApprovalLogPersistsAcrossReopen(t *testing.T) {
	log, path := openTestLog(t)
	ctx := context.Background()
	if err := log.Append(ctx, approval("1", appserver.MethodCommandExecutionApproval, "t1", time.Now().UTC())); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	reopened, err := NewBoltApprovalLog(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.Append(ctx, approval("2", appserver.MethodCommandExecutionApproval, "t1", time.Now().UTC())); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	records, _ := reopened.List(ctx, ApprovalQuery{})
	if len(records) != 2 || records[0].RequestID != "1" || records[1].RequestID != "2" {
		t.Fatalf("unexpected records after reopen %+v", records)
	}
}

func TestApprovalLogSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approvals.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		return meta.Put(keySchema, sequenceKey(99))
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = db.Close()

	if _, err := NewBoltApprovalLog(path, nil); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestNewBoltApprovalLogRequiresPath(t *testing.T) {
	if _, err := NewBoltApprovalLog("  ", nil); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
