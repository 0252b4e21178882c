// Package chunkservice implements the Chunk Service (§4.4): idempotent
// chunk ingestion, ordered reassembly, and best-effort cleanup. It is the
// hard core of the system — the only place the conditional-reservation
// race is resolved.
package chunkservice

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/auth-platform/file-upload/internal/chunkindex"
	"github.com/auth-platform/file-upload/internal/domain"
	"github.com/auth-platform/file-upload/internal/objectstore"
	"github.com/auth-platform/file-upload/internal/observability"
	"github.com/auth-platform/file-upload/internal/sessionstore"
)

// Transitioner is the narrow slice of the Upload Service that the Chunk
// Service needs: requesting the INIT→UPLOADING bump on first accepted
// chunk. Kept as an interface to avoid an import cycle with uploadservice,
// which depends on Service for assemble/cleanup.
type Transitioner interface {
	RequestUploading(ctx context.Context, sessionID string) error
}

// Outcome is the result of StoreChunk.
type Outcome int

const (
	Stored Outcome = iota
	AlreadyPresent
)

// Service implements §4.4 over a Session Store, Chunk Index, and Object
// Store.
type Service struct {
	sessions    sessionstore.Store
	index       chunkindex.Index
	store       objectstore.Store
	transitions Transitioner
	log         *observability.Logger
}

// New wires the Chunk Service. transitions may be nil during tests that
// don't exercise the INIT→UPLOADING bump.
func New(sessions sessionstore.Store, index chunkindex.Index, store objectstore.Store, transitions Transitioner, log *observability.Logger) *Service {
	return &Service{sessions: sessions, index: index, store: store, transitions: transitions, log: log}
}

// StoreChunk implements §4.4's store_chunk.
func (s *Service) StoreChunk(ctx context.Context, sessionID string, index int, payload []byte) (Outcome, int64, error) {
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return 0, 0, err
	}
	if sess.Status.IsTerminal() {
		return 0, 0, domain.ErrSessionTerminal
	}
	if sess.IsExpired(time.Now()) {
		return 0, 0, domain.ErrSessionExpired
	}

	if index < 0 || index >= sess.TotalChunks {
		return 0, 0, domain.ErrBadIndex
	}

	expected := sess.ExpectedChunkSize(index)
	if int64(len(payload)) != expected {
		return 0, 0, domain.ErrBadChunkSize
	}

	key := objectstore.TempChunkKey(sessionID, index)
	record := domain.ChunkRecord{
		SessionID:  sessionID,
		Index:      index,
		Size:       int64(len(payload)),
		StoredAt:   time.Now(),
		StorageKey: key,
	}

	stored, outcome, err := s.index.Remember(ctx, sessionID, index, record)
	if err != nil {
		return 0, 0, domain.New(domain.KindStorage, "chunk index unavailable", err)
	}
	if outcome == chunkindex.AlreadyPresent {
		return AlreadyPresent, stored.Size, nil
	}

	if err := s.store.Put(ctx, key, payload); err != nil {
		// Roll back the reservation so the caller can safely retry.
		if forgetErr := s.index.Forget(ctx, sessionID, index); forgetErr != nil && s.log != nil {
			s.log.WithComponent("chunkservice").Warn("rollback failed: " + forgetErr.Error())
		}
		return 0, 0, domain.New(domain.KindStorage, "chunk write failed", err)
	}

	if sess.Status == domain.StatusInit && s.transitions != nil {
		if err := s.transitions.RequestUploading(ctx, sessionID); err != nil {
			if s.log != nil {
				s.log.WithComponent("chunkservice").Warn("uploading transition failed: " + err.Error())
			}
		}
	}

	return Stored, int64(len(payload)), nil
}

// Missing implements §4.4's missing: the sorted gap set.
func (s *Service) Missing(ctx context.Context, sessionID string) ([]int, error) {
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	present, err := s.index.Indices(ctx, sessionID)
	if err != nil {
		return nil, domain.New(domain.KindStorage, "chunk index unavailable", err)
	}
	have := make(map[int]struct{}, len(present))
	for _, i := range present {
		have[i] = struct{}{}
	}
	var missing []int
	for i := 0; i < sess.TotalChunks; i++ {
		if _, ok := have[i]; !ok {
			missing = append(missing, i)
		}
	}
	sort.Ints(missing)
	return missing, nil
}

// Assemble implements §4.4's assemble.
func (s *Service) Assemble(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return "", err
	}

	missing, err := s.Missing(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(missing) > 0 {
		details := map[string]any{"missingChunks": missing}
		return "", domain.New(domain.KindMissingChunks, "chunks missing", nil).WithDetails(details)
	}

	finalKey := objectstore.FinalKey(sessionID, sess.FileName)

	pr, pw := io.Pipe()
	writeErrCh := make(chan error, 1)
	go func() {
		writeErrCh <- s.store.PutStream(ctx, finalKey, pr)
	}()

	var copyErr error
	for i := 0; i < sess.TotalChunks; i++ {
		rec, ok, lookupErr := s.index.Lookup(ctx, sessionID, i)
		if lookupErr != nil || !ok {
			copyErr = domain.New(domain.KindStorage, "chunk record missing during assembly", lookupErr)
			break
		}
		data, getErr := s.store.Get(ctx, rec.StorageKey)
		if getErr != nil {
			copyErr = domain.New(domain.KindStorage, "chunk read failed during assembly", getErr)
			break
		}
		if _, writeErr := pw.Write(data); writeErr != nil {
			copyErr = domain.New(domain.KindStorage, "assembly write failed", writeErr)
			break
		}
	}

	if copyErr != nil {
		_ = pw.CloseWithError(copyErr)
		<-writeErrCh
		_ = s.store.Delete(ctx, finalKey)
		return "", copyErr
	}

	_ = pw.Close()
	if err := <-writeErrCh; err != nil {
		_ = s.store.Delete(ctx, finalKey)
		return "", domain.New(domain.KindStorage, "assembly failed", err)
	}

	return finalKey, nil
}

// Cleanup implements §4.4's cleanup. Best-effort: every error is logged,
// never returned.
func (s *Service) Cleanup(ctx context.Context, sessionID string) {
	indices, err := s.index.Indices(ctx, sessionID)
	if err != nil && s.log != nil {
		s.log.WithComponent("chunkservice").Warn("cleanup: list indices failed: " + err.Error())
	}
	for _, i := range indices {
		key := objectstore.TempChunkKey(sessionID, i)
		if err := s.store.Delete(ctx, key); err != nil && s.log != nil {
			s.log.WithComponent("chunkservice").Warn("cleanup: delete chunk failed: " + err.Error())
		}
	}
	if err := s.index.ForgetAll(ctx, sessionID); err != nil && s.log != nil {
		s.log.WithComponent("chunkservice").Warn("cleanup: forget_all failed: " + err.Error())
	}
}
