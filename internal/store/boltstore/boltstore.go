// Package boltstore keeps conversation memory in a single bbolt file.
// Each user owns a nested bucket under "conversations" and "summaries"; values are
// the same JSON documents the file backend writes.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store"
)

var (
	conversationsBucket = []byte("conversations")
	summariesBucket     = []byte("summaries")
)

// Store is a store.Store backed by bbolt.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the bolt file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{conversationsBucket, summariesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// WithClock replaces the time source; used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// userBucket returns the nested bucket of userID, creating it when create is set.
// It returns nil when the bucket does not exist and create is false.
func userBucket(tx *bolt.Tx, root []byte, userID string, create bool) (*bolt.Bucket, error) {
	parent := tx.Bucket(root)
	if parent == nil {
		return nil, fmt.Errorf("bucket %s missing", root)
	}
	if create {
		return parent.CreateBucketIfNotExists([]byte(userID))
	}
	return parent.Bucket([]byte(userID)), nil
}

func get(b *bolt.Bucket, key, recordKey string, v interface{}) (bool, error) {
	if b == nil {
		return false, nil
	}
	raw := b.Get([]byte(key))
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, model.NewCorruptionError(recordKey, err)
	}
	return true, nil
}

func put(b *bolt.Bucket, key string, v interface{}) error {
	enc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), enc)
}

func getConversation(b *bolt.Bucket, userID, conversationID string) (model.ConversationRecord, bool, error) {
	var rec model.ConversationRecord
	key := store.RecordKey(userID, conversationID)
	found, err := get(b, conversationID, key, &rec)
	if err != nil {
		return rec, false, err
	}
	if err := store.CheckTurns(key, rec.Turns); err != nil {
		return rec, false, err
	}
	return rec, found, nil
}

func getSummary(b *bolt.Bucket, userID, conversationID string) (model.SummaryRecord, bool, error) {
	var rec model.SummaryRecord
	found, err := get(b, conversationID, store.RecordKey(userID, conversationID), &rec)
	rec.UserID, rec.ConversationID = userID, conversationID
	return rec, found, err
}

func (s *Store) SaveTurn(ctx context.Context, userID, conversationID, content string, role model.Role) (model.Turn, error) {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return model.Turn{}, err
	}
	var turn model.Turn
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, conversationsBucket, userID, true)
		if err != nil {
			return err
		}
		rec, _, err := getConversation(b, userID, conversationID)
		if err != nil {
			return err
		}
		turn = rec.Append(model.Turn{
			ID:        uuid.NewString(),
			Role:      role,
			Content:   content,
			Timestamp: store.Timestamp(s.now()),
		})
		return put(b, conversationID, &rec)
	})
	if err != nil {
		return model.Turn{}, fmt.Errorf("save turn: %w", err)
	}
	return turn, nil
}

func (s *Store) GetHistory(ctx context.Context, userID, conversationID string, limit int) ([]model.Turn, error) {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return nil, err
	}
	var turns []model.Turn
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, conversationsBucket, userID, false)
		if err != nil {
			return err
		}
		rec, _, err := getConversation(b, userID, conversationID)
		if err != nil {
			return err
		}
		turns = rec.Tail(limit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return turns, nil
}

func (s *Store) SaveSummary(ctx context.Context, userID, conversationID, summary string) error {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, summariesBucket, userID, true)
		if err != nil {
			return err
		}
		rec, _, err := getSummary(b, userID, conversationID)
		if err != nil {
			return err
		}
		now := store.Timestamp(s.now())
		rec.Summary, rec.CreatedAt, rec.UpdatedAt = summary, now, now
		return put(b, conversationID, &rec)
	})
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

func (s *Store) GetSummary(ctx context.Context, userID, conversationID string) (string, bool, error) {
	st, err := s.GetState(ctx, userID, conversationID)
	if err != nil || !st.HasSummary() {
		return "", false, err
	}
	return st.Summary, true, nil
}

func (s *Store) GetState(ctx context.Context, userID, conversationID string) (model.ConversationState, error) {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return model.ConversationState{}, err
	}
	var st model.ConversationState
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, summariesBucket, userID, false)
		if err != nil {
			return err
		}
		rec, _, err := getSummary(b, userID, conversationID)
		st = rec.State()
		return err
	})
	return st, err
}

func (s *Store) UpdateState(ctx context.Context, userID, conversationID string, patch model.StatePatch) (model.ConversationState, error) {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return model.ConversationState{}, err
	}
	var out model.ConversationState
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, summariesBucket, userID, true)
		if err != nil {
			return err
		}
		rec, found, err := getSummary(b, userID, conversationID)
		if err != nil {
			return err
		}
		now := store.Timestamp(s.now())
		if !found {
			rec.CreatedAt = now
		}
		out = patch.Apply(rec.State(), now)
		rec.Summary, rec.ConsolidationCount, rec.UpdatedAt = out.Summary, out.ConsolidationCount, out.UpdatedAt
		return put(b, conversationID, &rec)
	})
	if err != nil {
		return model.ConversationState{}, fmt.Errorf("update state: %w", err)
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context, userID, conversationID string) error {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, root := range [][]byte{conversationsBucket, summariesBucket} {
			b, err := userBucket(tx, root, userID, false)
			if err != nil {
				return err
			}
			if b == nil {
				continue
			}
			if err := b.Delete([]byte(conversationID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.ConversationInfo, error) {
	if err := store.ValidateUser(userID); err != nil {
		return nil, err
	}
	out := []model.ConversationInfo{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := userBucket(tx, conversationsBucket, userID, false)
		if err != nil || b == nil {
			return err
		}
		// keys iterate in byte order
		return b.ForEach(func(k, v []byte) error {
			var rec model.ConversationRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return model.NewCorruptionError(store.RecordKey(userID, string(k)), err)
			}
			out = append(out, model.ConversationInfo{
				ConversationID: string(k),
				TurnCount:      len(rec.Turns),
				LastUpdated:    rec.Metadata.LastUpdated,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HealthPing verifies a read transaction can be opened.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error { return nil })
}

func (s *Store) Close() error { return s.db.Close() }
