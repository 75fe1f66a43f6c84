package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store/storetest"
)

func makeSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("sqlite new: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, makeSQLiteStore)
}

func TestSQLiteStore_UnknownRoleIsCorruption(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("sqlite new: %v", err)
	}
	defer s.Close()

	if _, err := s.SaveTurn(ctx, "u1", "c1", "hello", model.RoleUser); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}
	if _, err := s.DB().ExecContext(ctx, `UPDATE Turns SET Role = 'robot' WHERE UserId = 'u1'`); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if _, err := s.GetHistory(ctx, "u1", "c1", 0); !model.IsStorageCorruption(err) {
		t.Fatalf("err = %v, want storage corruption", err)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memory.db")
	s, err := New(ctx, path)
	if err != nil {
		t.Fatalf("sqlite new: %v", err)
	}
	if _, err := s.SaveTurn(ctx, "u1", "c1", "remember me", model.RoleUser); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}
	_ = s.Close()

	s, err = New(ctx, path)
	if err != nil {
		t.Fatalf("sqlite reopen: %v", err)
	}
	defer s.Close()
	h, err := s.GetHistory(ctx, "u1", "c1", 0)
	if err != nil || len(h) != 1 || h[0].Content != "remember me" {
		t.Fatalf("history after reopen = %+v err=%v", h, err)
	}
}

func TestSQLiteStore_ClosedDatabaseIsNotCorruption(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("sqlite new: %v", err)
	}
	if err := s.SaveSummary(ctx, "u1", "c1", "a summary"); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}
	_ = s.Close()

	if _, err := s.GetState(ctx, "u1", "c1"); err == nil || model.IsStorageCorruption(err) {
		t.Fatalf("GetState on closed db: err = %v, want non-corruption error", err)
	}
	if _, _, err := s.GetSummary(ctx, "u1", "c1"); err == nil || model.IsStorageCorruption(err) {
		t.Fatalf("GetSummary on closed db: err = %v, want non-corruption error", err)
	}
	two := 2
	if _, err := s.UpdateState(ctx, "u1", "c1", model.StatePatch{ConsolidationCount: &two}); err == nil || model.IsStorageCorruption(err) {
		t.Fatalf("UpdateState on closed db: err = %v, want non-corruption error", err)
	}
}

func TestSQLiteStore_MalformedStateIsCorruption(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("sqlite new: %v", err)
	}
	defer s.Close()

	if err := s.SaveSummary(ctx, "u1", "c1", "a summary"); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}
	if _, err := s.DB().ExecContext(ctx, `UPDATE ConversationStates SET ConsolidationCount = 'many' WHERE UserId = 'u1'`); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if _, err := s.GetState(ctx, "u1", "c1"); !model.IsStorageCorruption(err) {
		t.Fatalf("err = %v, want storage corruption", err)
	}
}
