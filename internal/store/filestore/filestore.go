// Package filestore persists conversation memory as JSON documents on the local filesystem.
//
// Layout under the root directory:
//
//	conversations/{user}/{conversation}.json   turn log + metadata
//	summaries/{user}/{conversation}.json       summary and consolidation state
//
// Every write goes to a temporary file in the target directory followed by a rename,
// so readers see either the previous or the next version of a record.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store"
)

const (
	conversationsDir = "conversations"
	summariesDir     = "summaries"
	recordExt        = ".json"
)

// Store is a store.Store backed by JSON files.
type Store struct {
	root string
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open creates the directory layout under root if needed.
func Open(root string) (*Store, error) {
	for _, d := range []string{conversationsDir, summariesDir} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", d, err)
		}
	}
	return &Store{root: root, now: time.Now}, nil
}

// WithClock replaces the time source; used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) conversationPath(userID, conversationID string) string {
	return filepath.Join(s.root, conversationsDir, userID, conversationID+recordExt)
}

func (s *Store) summaryPath(userID, conversationID string) string {
	return filepath.Join(s.root, summariesDir, userID, conversationID+recordExt)
}

func (s *Store) SaveTurn(ctx context.Context, userID, conversationID, content string, role model.Role) (model.Turn, error) {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return model.Turn{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.Turn{}, err
	}
	path := s.conversationPath(userID, conversationID)
	rec, _, err := loadConversation(path, store.RecordKey(userID, conversationID))
	if err != nil {
		return model.Turn{}, err
	}
	turn := rec.Append(model.Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: store.Timestamp(s.now()),
	})
	if err := writeJSON(path, &rec); err != nil {
		return model.Turn{}, fmt.Errorf("save turn: %w", err)
	}
	return turn, nil
}

func (s *Store) GetHistory(ctx context.Context, userID, conversationID string, limit int) ([]model.Turn, error) {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return nil, err
	}
	rec, _, err := loadConversation(s.conversationPath(userID, conversationID), store.RecordKey(userID, conversationID))
	if err != nil {
		return nil, err
	}
	return rec.Tail(limit), nil
}

func (s *Store) SaveSummary(ctx context.Context, userID, conversationID, summary string) error {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return err
	}
	path := s.summaryPath(userID, conversationID)
	rec, _, err := s.loadSummary(path, userID, conversationID)
	if err != nil {
		return err
	}
	now := store.Timestamp(s.now())
	rec.Summary = summary
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if err := writeJSON(path, &rec); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

func (s *Store) GetSummary(ctx context.Context, userID, conversationID string) (string, bool, error) {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return "", false, err
	}
	rec, found, err := s.loadSummary(s.summaryPath(userID, conversationID), userID, conversationID)
	if err != nil || !found || rec.Summary == "" {
		return "", false, err
	}
	return rec.Summary, true, nil
}

func (s *Store) GetState(ctx context.Context, userID, conversationID string) (model.ConversationState, error) {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return model.ConversationState{}, err
	}
	rec, _, err := s.loadSummary(s.summaryPath(userID, conversationID), userID, conversationID)
	if err != nil {
		return model.ConversationState{}, err
	}
	return rec.State(), nil
}

func (s *Store) UpdateState(ctx context.Context, userID, conversationID string, patch model.StatePatch) (model.ConversationState, error) {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return model.ConversationState{}, err
	}
	path := s.summaryPath(userID, conversationID)
	rec, found, err := s.loadSummary(path, userID, conversationID)
	if err != nil {
		return model.ConversationState{}, err
	}
	now := store.Timestamp(s.now())
	if !found {
		rec.CreatedAt = now
	}
	st := patch.Apply(rec.State(), now)
	rec.Summary, rec.ConsolidationCount, rec.UpdatedAt = st.Summary, st.ConsolidationCount, st.UpdatedAt
	if err := writeJSON(path, &rec); err != nil {
		return model.ConversationState{}, fmt.Errorf("update state: %w", err)
	}
	return st, nil
}

func (s *Store) Clear(ctx context.Context, userID, conversationID string) error {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return err
	}
	for _, p := range []string{s.conversationPath(userID, conversationID), s.summaryPath(userID, conversationID)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("clear %s: %w", store.RecordKey(userID, conversationID), err)
		}
	}
	return nil
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.ConversationInfo, error) {
	if err := store.ValidateUser(userID); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, conversationsDir, userID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.ConversationInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]model.ConversationInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
			continue
		}
		convID := strings.TrimSuffix(name, recordExt)
		rec, found, err := loadConversation(filepath.Join(dir, name), store.RecordKey(userID, convID))
		if err != nil {
			return nil, err
		}
		if !found {
			continue // removed concurrently
		}
		out = append(out, model.ConversationInfo{
			ConversationID: convID,
			TurnCount:      len(rec.Turns),
			LastUpdated:    rec.Metadata.LastUpdated,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out, nil
}

// HealthPing checks the root directory is still reachable.
func (s *Store) HealthPing(ctx context.Context) error {
	_, err := os.Stat(filepath.Join(s.root, conversationsDir))
	return err
}

func (s *Store) Close() error { return nil }

func (s *Store) loadSummary(path, userID, conversationID string) (model.SummaryRecord, bool, error) {
	var rec model.SummaryRecord
	found, err := readJSON(path, store.RecordKey(userID, conversationID), &rec)
	if err != nil {
		return model.SummaryRecord{}, false, err
	}
	rec.UserID, rec.ConversationID = userID, conversationID
	return rec, found, nil
}

func loadConversation(path, key string) (model.ConversationRecord, bool, error) {
	var rec model.ConversationRecord
	found, err := readJSON(path, key, &rec)
	if err != nil {
		return rec, false, err
	}
	if err := store.CheckTurns(key, rec.Turns); err != nil {
		return rec, false, err
	}
	return rec, found, nil
}

// readJSON decodes path into v. A missing file leaves v untouched and reports found=false.
func readJSON(path, key string, v interface{}) (bool, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, model.NewCorruptionError(key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, model.NewCorruptionError(key, err)
	}
	return true, nil
}

func writeJSON(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*"+recordExt)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
