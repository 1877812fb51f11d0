package state

import (
	"errors"
	"testing"
	"time"
)

func TestStore_OpenCreatesDocument(t *testing.T) {
	s := NewStore()
	defer s.Close()

	snap, err := s.Open("doc1", "<p>Hi</p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.DocID != "doc1" {
		t.Errorf("expected doc1, got %s", snap.DocID)
	}
	if snap.Version != 1 {
		t.Errorf("expected version 1, got %d", snap.Version)
	}
	if snap.Source != "<p>Hi</p>" {
		t.Errorf("unexpected source: %s", snap.Source)
	}
}

func TestStore_OpenExistingKeepsCurrent(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Open("doc1", "<p>One</p>")
	s.Update("doc1", "<p>Two</p>")

	snap, err := s.Open("doc1", "<p>Other</p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != 2 {
		t.Errorf("expected version 2, got %d", snap.Version)
	}
	if snap.Source != "<p>Two</p>" {
		t.Errorf("expected current source, got %s", snap.Source)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := NewStore()
	defer s.Close()

	if _, err := s.Get("nope"); !errors.Is(err, ErrDocNotFound) {
		t.Errorf("expected ErrDocNotFound, got %v", err)
	}
}

func TestStore_UpdateBumpsVersion(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Open("doc1", "<p>One</p>")
	snap, err := s.Update("doc1", "<p>Two</p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != 2 {
		t.Errorf("expected version 2, got %d", snap.Version)
	}
	if snap.Source != "<p>Two</p>" {
		t.Errorf("unexpected source: %s", snap.Source)
	}

	history, err := s.History("doc1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if history[0].Version != 1 || history[0].Source != "<p>One</p>" {
		t.Errorf("unexpected history entry: %+v", history[0])
	}
}

func TestStore_UpdateIdenticalIsNoOp(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Open("doc1", "<p>Same</p>")
	snap, err := s.Update("doc1", "<p>Same</p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != 1 {
		t.Errorf("expected version to stay 1, got %d", snap.Version)
	}

	history, _ := s.History("doc1")
	if len(history) != 0 {
		t.Errorf("expected empty history, got %d entries", len(history))
	}
}

func TestStore_Undo(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Open("doc1", "v1")
	s.Update("doc1", "v2")
	s.Update("doc1", "v3")

	snap, err := s.Undo("doc1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != 2 || snap.Source != "v2" {
		t.Errorf("expected version 2 source v2, got %d %q", snap.Version, snap.Source)
	}

	snap, err = s.Undo("doc1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != 1 || snap.Source != "v1" {
		t.Errorf("expected version 1 source v1, got %d %q", snap.Version, snap.Source)
	}

	if _, err := s.Undo("doc1"); !errors.Is(err, ErrNoHistory) {
		t.Errorf("expected ErrNoHistory, got %v", err)
	}
}

func TestStore_UpdateAfterUndo(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Open("doc1", "v1")
	s.Update("doc1", "v2")
	s.Undo("doc1")

	snap, err := s.Update("doc1", "v2b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != 2 || snap.Source != "v2b" {
		t.Errorf("expected version 2 source v2b, got %d %q", snap.Version, snap.Source)
	}
}

func TestStore_HistoryBounded(t *testing.T) {
	s := NewStore(WithHistoryDepth(2))
	defer s.Close()

	s.Open("doc1", "v1")
	s.Update("doc1", "v2")
	s.Update("doc1", "v3")
	s.Update("doc1", "v4")

	history, err := s.History("doc1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Source != "v2" || history[1].Source != "v3" {
		t.Errorf("expected oldest entries dropped, got %q %q", history[0].Source, history[1].Source)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	base := time.Now()
	current := base
	Now = func() time.Time { return current }
	defer func() { Now = time.Now }()

	s := NewStore(WithTTL(time.Minute))
	defer s.Close()

	s.Open("doc1", "v1")

	current = base.Add(2 * time.Minute)
	if _, err := s.Get("doc1"); !errors.Is(err, ErrDocNotFound) {
		t.Errorf("expected ErrDocNotFound after expiry, got %v", err)
	}
	if err := s.Touch("doc1"); !errors.Is(err, ErrDocNotFound) {
		t.Errorf("expected ErrDocNotFound on touch, got %v", err)
	}
}

func TestStore_TouchKeepsAlive(t *testing.T) {
	base := time.Now()
	current := base
	Now = func() time.Time { return current }
	defer func() { Now = time.Now }()

	s := NewStore(WithTTL(time.Minute))
	defer s.Close()

	s.Open("doc1", "v1")

	current = base.Add(45 * time.Second)
	if err := s.Touch("doc1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	current = base.Add(90 * time.Second)
	if _, err := s.Get("doc1"); err != nil {
		t.Errorf("expected touched document to survive, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Open("doc1", "v1")
	if err := s.Delete("doc1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Get("doc1"); !errors.Is(err, ErrDocNotFound) {
		t.Errorf("expected ErrDocNotFound, got %v", err)
	}
	if err := s.Delete("absent"); err != nil {
		t.Errorf("expected deleting absent doc to succeed, got %v", err)
	}
}

func TestStore_Docs(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Open("doc1", "a")
	s.Open("doc2", "b")

	ids := s.Docs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["doc1"] || !seen["doc2"] {
		t.Errorf("missing doc IDs: %v", ids)
	}
	if s.Len() != 2 {
		t.Errorf("expected len 2, got %d", s.Len())
	}
}

func TestStore_Close(t *testing.T) {
	s := NewStore(WithTTL(time.Minute))
	s.Open("doc1", "v1")

	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("expected second close to succeed, got %v", err)
	}

	if _, err := s.Open("doc2", "x"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed on open, got %v", err)
	}
	if _, err := s.Get("doc1"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed on get, got %v", err)
	}
	if _, err := s.Update("doc1", "y"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed on update, got %v", err)
	}
	if _, err := s.Undo("doc1"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed on undo, got %v", err)
	}
	if err := s.Delete("doc1"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed on delete, got %v", err)
	}
	if ids := s.Docs(); ids != nil {
		t.Errorf("expected nil docs after close, got %v", ids)
	}
}
