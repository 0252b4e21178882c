// Package chunkindex implements the Chunk Index (§4.2): a fast key/value
// layer recording ChunkRecords, whose sole idempotency primitive is an
// atomic conditional write.
package chunkindex

import (
	"context"
	"sort"

	"github.com/auth-platform/file-upload/internal/domain"
)

// Outcome is the result of a remember() call.
type Outcome int

const (
	// AlreadyPresent means a record for (sessionID, index) already
	// existed; the returned record is the one that was already stored.
	AlreadyPresent Outcome = iota
	// NewlyStored means this call's record won the race and is now
	// authoritative.
	NewlyStored
)

// Index is the Chunk Index contract. It must be safe for concurrent use
// and its Remember must be atomic against concurrent callers for the same
// (sessionID, index) — this is the system's sole idempotency guarantee
// (§5: "exactly one winner").
type Index interface {
	// Remember attempts to store record at (sessionID, index). If a
	// record is already present it is returned unchanged with
	// AlreadyPresent; otherwise record is stored and returned with
	// NewlyStored.
	Remember(ctx context.Context, sessionID string, index int, record domain.ChunkRecord) (domain.ChunkRecord, Outcome, error)

	// Lookup returns the record for (sessionID, index), or ok=false.
	Lookup(ctx context.Context, sessionID string, index int) (domain.ChunkRecord, bool, error)

	// Indices returns the sorted list of accepted indices for a session.
	Indices(ctx context.Context, sessionID string) ([]int, error)

	// Forget removes a single (sessionID, index) record, used to roll back
	// a reservation whose object-store write failed.
	Forget(ctx context.Context, sessionID string, index int) error

	// ForgetAll removes every record for a session.
	ForgetAll(ctx context.Context, sessionID string) error
}

var (
	_ Index = (*MemoryIndex)(nil)
	_ Index = (*RemoteIndex)(nil)
)

// sortedIndices is a small shared helper used by every Index
// implementation to answer Indices() from an unordered index set.
func sortedIndices(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
