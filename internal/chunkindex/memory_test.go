package chunkindex

import (
	"context"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/auth-platform/file-upload/internal/domain"
)

func TestMemoryIndex_RememberIsWriteOnce(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	first := domain.ChunkRecord{SessionID: "s1", Index: 0, Size: 10, StoredAt: time.Now(), StorageKey: "k1"}
	got, outcome, err := idx.Remember(ctx, "s1", 0, first)
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if outcome != NewlyStored {
		t.Fatalf("first Remember outcome = %v, want NewlyStored", outcome)
	}
	if got.StorageKey != "k1" {
		t.Fatalf("got.StorageKey = %q, want k1", got.StorageKey)
	}

	second := domain.ChunkRecord{SessionID: "s1", Index: 0, Size: 999, StoredAt: time.Now(), StorageKey: "k2"}
	got2, outcome2, err := idx.Remember(ctx, "s1", 0, second)
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if outcome2 != AlreadyPresent {
		t.Fatalf("second Remember outcome = %v, want AlreadyPresent", outcome2)
	}
	if got2.StorageKey != "k1" {
		t.Fatalf("second Remember returned %q, want the original k1 (write-once)", got2.StorageKey)
	}
}

// Property: under concurrent Remember calls for the same key, exactly one
// call wins (NewlyStored) and every record subsequently served for that
// key is the winner's record (§4.2's "sole idempotency primitive").
func TestProperty_RememberHasExactlyOneWinner(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 20).Draw(t, "concurrency")
		idx := NewMemoryIndex()
		ctx := context.Background()

		records := make([]domain.ChunkRecord, n)
		for i := 0; i < n; i++ {
			records[i] = domain.ChunkRecord{
				SessionID:  "sess",
				Index:      0,
				Size:       int64(i),
				StoredAt:   time.Now(),
				StorageKey: rapid.StringMatching(`[a-z]{4}`).Draw(t, "key"),
			}
		}

		var wg sync.WaitGroup
		outcomes := make([]Outcome, n)
		keys := make([]string, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				got, outcome, err := idx.Remember(ctx, "sess", 0, records[i])
				if err != nil {
					t.Errorf("Remember: %v", err)
					return
				}
				outcomes[i] = outcome
				keys[i] = got.StorageKey
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, o := range outcomes {
			if o == NewlyStored {
				winners++
			}
		}
		if winners != 1 {
			t.Fatalf("expected exactly one NewlyStored winner, got %d", winners)
		}

		final, ok, err := idx.Lookup(ctx, "sess", 0)
		if err != nil || !ok {
			t.Fatalf("Lookup after concurrent Remember: ok=%v err=%v", ok, err)
		}
		for _, k := range keys {
			if k != final.StorageKey {
				t.Fatalf("caller observed key %q, final record has %q — not all callers saw the winner", k, final.StorageKey)
			}
		}
	})
}

func TestMemoryIndex_IndicesSortedAndForgetRemoves(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	for _, i := range []int{3, 1, 2, 0} {
		if _, _, err := idx.Remember(ctx, "s", i, domain.ChunkRecord{SessionID: "s", Index: i, StoredAt: time.Now()}); err != nil {
			t.Fatalf("Remember(%d): %v", i, err)
		}
	}

	got, err := idx.Indices(ctx, "s")
	if err != nil {
		t.Fatalf("Indices: %v", err)
	}
	want := []int{0, 1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("Indices = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Indices = %v, want %v", got, want)
		}
	}

	if err := idx.Forget(ctx, "s", 1); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if _, ok, _ := idx.Lookup(ctx, "s", 1); ok {
		t.Fatal("expected index 1 to be gone after Forget")
	}
	if _, ok, _ := idx.Lookup(ctx, "s", 0); !ok {
		t.Fatal("Forget must not remove unrelated indices")
	}

	if err := idx.ForgetAll(ctx, "s"); err != nil {
		t.Fatalf("ForgetAll: %v", err)
	}
	remaining, err := idx.Indices(ctx, "s")
	if err != nil {
		t.Fatalf("Indices after ForgetAll: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no indices after ForgetAll, got %v", remaining)
	}
}

func TestMemoryIndex_LookupMissing(t *testing.T) {
	idx := NewMemoryIndex()
	if _, ok, err := idx.Lookup(context.Background(), "nope", 0); ok || err != nil {
		t.Fatalf("Lookup on empty index: ok=%v err=%v", ok, err)
	}
}
