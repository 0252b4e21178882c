// Package domain holds the core entities of the upload pipeline: sessions,
// chunk records, and the status machine that governs them.
package domain

import "time"

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusInit       Status = "INIT"
	StatusUploading  Status = "UPLOADING"
	StatusAssembling Status = "ASSEMBLING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// IsTerminal reports whether no further transition is legal.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// transitions enumerates the only legal status edges.
var transitions = map[Status]map[Status]bool{
	StatusInit:       {StatusUploading: true, StatusFailed: true},
	StatusUploading:  {StatusAssembling: true, StatusFailed: true},
	StatusAssembling: {StatusCompleted: true, StatusFailed: true, StatusAssembling: true},
}

// CanTransition reports whether from -> to is a legal edge. A status
// transitioning to itself is only legal for ASSEMBLING (a cancelled
// assemble retrying re-enters the state it is already in).
func CanTransition(from, to Status) bool {
	if from == to {
		return from == StatusAssembling
	}
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// Session is the top-level entity, one per upload.
type Session struct {
	SessionID      string
	OwnerID        string
	FileName       string
	DeclaredSize   int64
	DeclaredType   string
	ExpectedDigest string // "<algo>:<hex>", optional
	ChunkSize      int64
	TotalChunks    int
	Status         Status
	FinalPath      string
	Metadata       map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      time.Time
}

// IsExpired reports whether the session's expiry has passed as of now.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// ChunkSize and TotalChunks fully determine the expected size of every
// chunk index; LastChunkSize returns the size of the final chunk, which
// may be shorter than ChunkSize.
func (s *Session) LastChunkSize() int64 {
	return s.DeclaredSize - int64(s.TotalChunks-1)*s.ChunkSize
}

// ExpectedChunkSize returns the size payload at index must have.
func (s *Session) ExpectedChunkSize(index int) int64 {
	if index == s.TotalChunks-1 {
		return s.LastChunkSize()
	}
	return s.ChunkSize
}

// TotalChunksFor computes ceil(declaredSize / chunkSize).
func TotalChunksFor(declaredSize, chunkSize int64) int {
	if chunkSize <= 0 {
		return 0
	}
	n := declaredSize / chunkSize
	if declaredSize%chunkSize != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	return int(n)
}

// ChunkRecord is one accepted chunk, keyed by (SessionID, Index).
type ChunkRecord struct {
	SessionID  string
	Index      int
	Size       int64
	StoredAt   time.Time
	StorageKey string
}

// StatusReport is the answer to a status query (§4.5 status()).
type StatusReport struct {
	Session  *Session
	Uploaded int
	Missing  []int
}
