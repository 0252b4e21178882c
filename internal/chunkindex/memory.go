package chunkindex

import (
	"context"
	"sync"
	"time"

	"github.com/auth-platform/file-upload/internal/domain"
)

// MemoryIndex is an in-process Chunk Index. Its Remember is the one place
// in this codebase with a real mutex guarding mutation — not because the
// Chunk Service coordinates through it, but because *something* has to
// implement the conditional-write primitive the rest of the system treats
// as opaque and atomic. Entries expire a fixed 7 days after their
// StoredAt, independent of the owning session's expires_at. Lookup and
// Indices skip expired entries but do not delete them; only Forget and
// ForgetAll remove entries.
type MemoryIndex struct {
	mu       sync.Mutex
	sessions map[string]map[int]entry
}

type entry struct {
	record    domain.ChunkRecord
	expiresAt time.Time
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{sessions: make(map[string]map[int]entry)}
}

// Remember is the conditional write described in §4.2: this call and any
// number of concurrent identical calls resolve to exactly one
// NewlyStored and the rest AlreadyPresent.
func (m *MemoryIndex) Remember(ctx context.Context, sessionID string, index int, record domain.ChunkRecord) (domain.ChunkRecord, Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.sessions[sessionID]
	if !ok {
		bucket = make(map[int]entry)
		m.sessions[sessionID] = bucket
	}

	if e, exists := bucket[index]; exists {
		return e.record, AlreadyPresent, nil
	}

	bucket[index] = entry{record: record, expiresAt: record.StoredAt.Add(ttlFor(record))}
	return record, NewlyStored, nil
}

// ttlFor returns the same fixed TTL for every record; it does not look at
// the owning session's expires_at, and the memory index does not actively
// sweep. Callers supply StoredAt and rely on ForgetAll/session expiry sweep for
// real cleanup, so a generous TTL here only guards against unbounded
// growth of abandoned sessions that were never swept.
func ttlFor(domain.ChunkRecord) time.Duration {
	return 7 * 24 * time.Hour
}

func (m *MemoryIndex) Lookup(ctx context.Context, sessionID string, index int) (domain.ChunkRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.sessions[sessionID]
	if !ok {
		return domain.ChunkRecord{}, false, nil
	}
	e, ok := bucket[index]
	if !ok || time.Now().After(e.expiresAt) {
		return domain.ChunkRecord{}, false, nil
	}
	return e.record, true, nil
}

func (m *MemoryIndex) Indices(ctx context.Context, sessionID string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	set := make(map[int]struct{}, len(bucket))
	now := time.Now()
	for idx, e := range bucket {
		if now.After(e.expiresAt) {
			continue
		}
		set[idx] = struct{}{}
	}
	return sortedIndices(set), nil
}

func (m *MemoryIndex) Forget(ctx context.Context, sessionID string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(bucket, index)
	return nil
}

func (m *MemoryIndex) ForgetAll(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
