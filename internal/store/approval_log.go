package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"codexbridge/internal/appserver"
	"codexbridge/internal/logging"
)

var (
	bucketApprovals = []byte("approvals")
	bucketMeta      = []byte("meta")
	keySchema       = []byte("schema_version")
)

const approvalSchemaVersion = 1

var ErrSchemaMismatch = errors.New("approval log schema version mismatch")

// ApprovalQuery narrows List. Zero values match everything; Limit keeps the
// newest entries.
type ApprovalQuery struct {
	ThreadID string
	Method   string
	Limit    int
}

type ApprovalLog interface {
	Append(ctx context.Context, record appserver.ApprovalRecord) error
	List(ctx context.Context, query ApprovalQuery) ([]appserver.ApprovalRecord, error)
	Prune(ctx context.Context, before time.Time) (int, error)
	Close() error
}

// BoltApprovalLog persists answered approval requests in arrival order. It
// doubles as the session's ApprovalObserver.
type BoltApprovalLog struct {
	db     *bolt.DB
	mu     sync.Mutex
	logger logging.Logger
}

var _ appserver.ApprovalObserver = (*BoltApprovalLog)(nil)

func NewBoltApprovalLog(path string, logger logging.Logger) (*BoltApprovalLog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("approval log db path is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := initApprovalSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltApprovalLog{db: db, logger: logger}, nil
}

func initApprovalSchema(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketApprovals); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		raw := meta.Get(keySchema)
		if len(raw) == 0 {
			return meta.Put(keySchema, sequenceKey(approvalSchemaVersion))
		}
		if len(raw) != 8 || binary.BigEndian.Uint64(raw) != approvalSchemaVersion {
			return ErrSchemaMismatch
		}
		return nil
	})
}

// ObserveApproval runs on the session's read loop, so failures are logged
// rather than returned.
func (l *BoltApprovalLog) ObserveApproval(record appserver.ApprovalRecord) {
	if err := l.Append(context.Background(), record); err != nil {
		l.logger.Warn("approval_log_append_failed",
			logging.F("method", record.Method),
			logging.F("request_id", record.RequestID),
			logging.F("error", err),
		)
	}
}

func (l *BoltApprovalLog) Append(ctx context.Context, record appserver.ApprovalRecord) error {
	if strings.TrimSpace(record.Method) == "" {
		return errors.New("approval record requires method")
	}
	if record.AnsweredAt.IsZero() {
		record.AnsweredAt = time.Now().UTC()
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketApprovals)
		if b == nil {
			return errors.New("approvals bucket missing")
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(sequenceKey(seq), raw)
	})
}

// List returns matching records oldest first.
func (l *BoltApprovalLog) List(ctx context.Context, query ApprovalQuery) ([]appserver.ApprovalRecord, error) {
	out := make([]appserver.ApprovalRecord, 0)
	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketApprovals)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var record appserver.ApprovalRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			if query.ThreadID != "" && record.ThreadID != query.ThreadID {
				return nil
			}
			if query.Method != "" && record.Method != query.Method {
				return nil
			}
			out = append(out, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[len(out)-query.Limit:]
	}
	return out, nil
}

// Prune deletes records answered before the cutoff and reports how many.
func (l *BoltApprovalLog) Prune(ctx context.Context, before time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	err := l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketApprovals)
		if b == nil {
			return nil
		}
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			var record appserver.ApprovalRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			if record.AnsweredAt.Before(before) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, key := range stale {
			if err := b.Delete(key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (l *BoltApprovalLog) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
