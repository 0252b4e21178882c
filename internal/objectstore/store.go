// Package objectstore implements the Object Store Adapter: a narrow,
// content-agnostic key->bytes interface over durable object storage, with
// a filesystem-backed fallback for local development.
package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/auth-platform/file-upload/internal/security"
)

// Store is the Object Store Adapter contract (§4.1).
type Store interface {
	// Put stores bytes at key. Overwrites are permitted and atomic from
	// the reader's perspective.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the bytes stored at key, or a NotFound domain error.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, key string) error

	// PutStream consumes r and stores it at key, for the assembled final
	// object.
	PutStream(ctx context.Context, key string, r io.Reader) error

	// GetStream returns a reader over the bytes stored at key, for callers
	// that must consume a potentially large object (up to MaxFileSize)
	// without buffering it whole — the Validator's post-assembly
	// verification (§4.6) is the reason this exists. The caller must
	// Close the returned reader.
	GetStream(ctx context.Context, key string) (io.ReadCloser, error)
}

// TempChunkKey returns the storage key for one temporary chunk, in the
// exact layout of SPEC_FULL §6: temp-chunks/{session_id}/chunk_{index}.
func TempChunkKey(sessionID string, index int) string {
	return fmt.Sprintf("temp-chunks/%s/chunk_%d", sessionID, index)
}

// TempChunkPrefix returns the prefix under which all of a session's
// temporary chunks live. No component rebuilds the Chunk Index from a
// listing under this prefix.
func TempChunkPrefix(sessionID string) string {
	return fmt.Sprintf("temp-chunks/%s/", sessionID)
}

// FinalKey returns the storage key for the assembled final object:
// final/{session_id}/{session_id}_{fileName}. fileName is run through
// SanitizePath so a file name carrying stray slashes can't relocate the
// object outside its session's prefix.
func FinalKey(sessionID, fileName string) string {
	return fmt.Sprintf("final/%s/%s_%s", sessionID, sessionID, security.SanitizePath(fileName))
}

// Lister is an optional capability for object stores that can enumerate
// keys under a prefix; FilesystemStore and S3Store implement it. The
// Chunk Index does not read from it, so a cold index is not reconstructed
// from the Object Store.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}
