package store

import (
	"context"
	"testing"

	"github.com/walletmind/walletmind/session"
)

func TestInMemoryStoreRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	record := session.NewRecord("sess1")
	record.Turns = append(record.Turns, session.Turn{Query: "balance", Kind: "answer"})

	if err := s.Save(ctx, record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Load(ctx, "sess1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ID != "sess1" || len(loaded.Turns) != 1 {
		t.Errorf("unexpected record: %+v", loaded)
	}

	// the store must hold its own copy
	record.Turns[0].Query = "mutated"
	reloaded, _ := s.Load(ctx, "sess1")
	if reloaded.Turns[0].Query != "balance" {
		t.Error("store shares memory with the caller")
	}

	exists, err := s.Exists(ctx, "sess1")
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v; want true", exists, err)
	}

	ids, err := s.List(ctx)
	if err != nil || len(ids) != 1 {
		t.Errorf("List = %v, %v; want one id", ids, err)
	}

	count, err := s.Count(ctx)
	if err != nil || count != 1 {
		t.Errorf("Count = %d, %v; want 1", count, err)
	}

	if err := s.Delete(ctx, "sess1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Load(ctx, "sess1"); err == nil {
		t.Error("expected error loading deleted session")
	}
	if err := s.Delete(ctx, "sess1"); err == nil {
		t.Error("expected error deleting missing session")
	}
}

func TestInMemoryStoreRejectsNil(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.Save(context.Background(), nil); err == nil {
		t.Error("expected error saving nil record")
	}
	if err := s.Save(context.Background(), &session.Record{}); err == nil {
		t.Error("expected error saving record without id")
	}
}

func TestInMemoryStoreClear(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_ = s.Save(ctx, session.NewRecord("a"))
	_ = s.Save(ctx, session.NewRecord("b"))

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	count, _ := s.Count(ctx)
	if count != 0 {
		t.Errorf("expected empty store, got %d", count)
	}
}
