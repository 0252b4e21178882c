package sessionstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/auth-platform/file-upload/internal/domain"
)

func newTestSession(id string) *domain.Session {
	now := time.Now()
	return &domain.Session{
		SessionID:    id,
		FileName:     "data.json",
		DeclaredSize: 2048,
		DeclaredType: "application/json",
		ChunkSize:    1024,
		TotalChunks:  2,
		Status:       domain.StatusInit,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
	}
}

func TestMemoryStore_InsertConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Insert(ctx, newTestSession("s1")); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	err := store.Insert(ctx, newTestSession("s1"))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second Insert err = %v, want ErrConflict", err)
	}
}

func TestMemoryStore_LoadNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Load(context.Background(), "missing")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("Load(missing) err = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryStore_LoadReturnsACopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Insert(ctx, newTestSession("s1"))

	sess, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sess.FileName = "mutated.json"

	sess2, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sess2.FileName == "mutated.json" {
		t.Fatal("Load must return an independent copy, mutation leaked into the store")
	}
}

func TestMemoryStore_UpdateStatusEnforcesStateMachine(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Insert(ctx, newTestSession("s1"))

	if err := store.UpdateStatus(ctx, "s1", domain.StatusCompleted, ""); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("INIT->COMPLETED err = %v, want ErrIllegalTransition", err)
	}

	if err := store.UpdateStatus(ctx, "s1", domain.StatusUploading, ""); err != nil {
		t.Fatalf("INIT->UPLOADING: %v", err)
	}

	if err := store.UpdateStatus(ctx, "s1", domain.StatusAssembling, ""); err != nil {
		t.Fatalf("UPLOADING->ASSEMBLING: %v", err)
	}
	if err := store.UpdateStatus(ctx, "s1", domain.StatusCompleted, "final/s1/data.json"); err != nil {
		t.Fatalf("ASSEMBLING->COMPLETED: %v", err)
	}

	sess, _ := store.Load(ctx, "s1")
	if sess.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", sess.Status)
	}
	if sess.FinalPath != "final/s1/data.json" {
		t.Fatalf("FinalPath = %q, want set on COMPLETED", sess.FinalPath)
	}
}

func TestMemoryStore_UpdateStatusNotFound(t *testing.T) {
	store := NewMemoryStore()
	err := store.UpdateStatus(context.Background(), "missing", domain.StatusUploading, "")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryStore_ListExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	expired := newTestSession("expired")
	expired.ExpiresAt = now.Add(-time.Minute)
	store.Insert(ctx, expired)

	fresh := newTestSession("fresh")
	fresh.ExpiresAt = now.Add(time.Hour)
	store.Insert(ctx, fresh)

	terminalExpired := newTestSession("terminal")
	terminalExpired.ExpiresAt = now.Add(-time.Minute)
	terminalExpired.Status = domain.StatusCompleted
	store.Insert(ctx, terminalExpired)

	got, err := store.ListExpired(ctx, now)
	if err != nil {
		t.Fatalf("ListExpired: %v", err)
	}
	if len(got) != 1 || got[0].SessionID != "expired" {
		t.Fatalf("ListExpired = %v, want only [expired]", got)
	}
}

var _ Store = (*MemoryStore)(nil)
