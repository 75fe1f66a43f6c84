package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store/storetest"
)

func makeBoltStore(t *testing.T) store.Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "memory.bolt"))
	if err != nil {
		t.Fatalf("bolt open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltStore_Compliance(t *testing.T) {
	storetest.Run(t, makeBoltStore)
}

func TestBoltStore_CorruptRecord(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "memory.bolt"))
	if err != nil {
		t.Fatalf("bolt open: %v", err)
	}
	defer s.Close()

	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(conversationsBucket).CreateBucketIfNotExists([]byte("u1"))
		if err != nil {
			return err
		}
		return b.Put([]byte("c1"), []byte("{not json"))
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	ctx := context.Background()
	if _, err := s.GetHistory(ctx, "u1", "c1", 0); !model.IsStorageCorruption(err) {
		t.Fatalf("GetHistory err = %v, want storage corruption", err)
	}
	if _, err := s.ListConversations(ctx, "u1"); !model.IsStorageCorruption(err) {
		t.Fatalf("ListConversations err = %v, want storage corruption", err)
	}
}
