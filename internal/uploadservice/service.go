// Package uploadservice implements the Upload Service (§4.5): session
// creation, the state machine, expiry, and orchestration of completion.
package uploadservice

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/auth-platform/file-upload/internal/aihook"
	"github.com/auth-platform/file-upload/internal/chunkservice"
	"github.com/auth-platform/file-upload/internal/domain"
	"github.com/auth-platform/file-upload/internal/observability"
	"github.com/auth-platform/file-upload/internal/security"
	"github.com/auth-platform/file-upload/internal/sessionstore"
	"github.com/auth-platform/file-upload/internal/validator"
)

// SessionCache is a volatile, best-effort cache over Session Store rows,
// keyed by session_id. The store remains the source of truth; a miss or
// cache error always falls back to it.
type SessionCache interface {
	Get(ctx context.Context, sessionID string) (*domain.Session, bool)
	Set(ctx context.Context, sessionID string, s *domain.Session)
	Invalidate(ctx context.Context, sessionID string)
}

// Config bounds session creation.
type Config struct {
	ChunkSize     int64
	MaxFileSize   int64
	SessionExpiry time.Duration
}

// Service implements §4.5.
type Service struct {
	sessions sessionstore.Store
	cache    SessionCache
	chunks   *chunkservice.Service
	validate *validator.Validator
	hooks    *aihook.Hook
	cfg      Config
	log      *observability.Logger
}

// New wires the Upload Service. Status and Complete call into chunks, so
// it must be non-nil. The Chunk Service in turn needs a Transitioner back
// to this service for the INIT→UPLOADING bump; cmd/server/main.go breaks
// that construction cycle by building the Chunk Service first with a
// late-bound transitionerRef.
func New(sessions sessionstore.Store, cache SessionCache, chunks *chunkservice.Service, validate *validator.Validator, hooks *aihook.Hook, cfg Config, log *observability.Logger) *Service {
	return &Service{sessions: sessions, cache: cache, chunks: chunks, validate: validate, hooks: hooks, cfg: cfg, log: log}
}

// InitRequest is the input to Initialize.
type InitRequest struct {
	OwnerID        string
	FileName       string
	DeclaredSize   int64
	DeclaredType   string
	ExpectedDigest string
	Metadata       map[string]string
}

// InitResult is Initialize's output.
type InitResult struct {
	SessionID   string
	ChunkSize   int64
	TotalChunks int
	ExpiresAt   time.Time
}

// Initialize implements §4.5's initialize.
func (s *Service) Initialize(ctx context.Context, req InitRequest) (*InitResult, error) {
	fileName := security.SanitizeFilename(req.FileName)
	if err := s.validate.Gate(req.DeclaredType, fileName, req.DeclaredSize); err != nil {
		return nil, err
	}

	now := time.Now()
	totalChunks := domain.TotalChunksFor(req.DeclaredSize, s.cfg.ChunkSize)

	sess := &domain.Session{
		SessionID:      uuid.New().String(),
		OwnerID:        req.OwnerID,
		FileName:       fileName,
		DeclaredSize:   req.DeclaredSize,
		DeclaredType:   req.DeclaredType,
		ExpectedDigest: req.ExpectedDigest,
		ChunkSize:      s.cfg.ChunkSize,
		TotalChunks:    totalChunks,
		Status:         domain.StatusInit,
		Metadata:       req.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.cfg.SessionExpiry),
	}

	if err := s.sessions.Insert(ctx, sess); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, sess.SessionID, sess)
	}

	return &InitResult{
		SessionID:   sess.SessionID,
		ChunkSize:   sess.ChunkSize,
		TotalChunks: sess.TotalChunks,
		ExpiresAt:   sess.ExpiresAt,
	}, nil
}

// Status implements §4.5's status: one Chunk Index read per call, per
// SPEC_FULL.md's decision on the duplicate-index-read ambiguity.
func (s *Service) Status(ctx context.Context, sessionID string) (*domain.StatusReport, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	missing, err := s.chunks.Missing(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	uploaded := sess.TotalChunks - len(missing)

	return &domain.StatusReport{
		Session:  sess,
		Uploaded: uploaded,
		Missing:  missing,
	}, nil
}

// load answers a session lookup from cache first, falling back to the
// Session Store and repopulating the cache on a miss.
func (s *Service) load(ctx context.Context, sessionID string) (*domain.Session, error) {
	if s.cache != nil {
		if sess, ok := s.cache.Get(ctx, sessionID); ok {
			return sess, nil
		}
	}
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsExpired(time.Now()) && !sess.Status.IsTerminal() {
		return nil, domain.ErrSessionExpired
	}
	if s.cache != nil {
		s.cache.Set(ctx, sessionID, sess)
	}
	return sess, nil
}

// Transition implements §4.5's transition: delegates to the Session
// Store with state-machine validation, then unconditionally invalidates
// the cache entry — including when driven by sweep_expired.
func (s *Service) Transition(ctx context.Context, sessionID string, newStatus domain.Status, finalPath string) error {
	err := s.sessions.UpdateStatus(ctx, sessionID, newStatus, finalPath)
	if s.cache != nil {
		s.cache.Invalidate(ctx, sessionID)
	}
	return err
}

// RequestUploading implements the Chunk Service's Transitioner: the
// INIT→UPLOADING bump on the first accepted chunk, a no-op if already in
// UPLOADING.
func (s *Service) RequestUploading(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status == domain.StatusUploading {
		return nil
	}
	return s.Transition(ctx, sessionID, domain.StatusUploading, "")
}

// Complete implements §4.5's complete.
func (s *Service) Complete(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != domain.StatusUploading {
		return nil, domain.ErrIllegalTransition
	}

	// Decision #4 (SPEC_FULL.md §9): check for gaps before transitioning,
	// so a gapped completion attempt leaves the session in UPLOADING
	// instead of requiring an ASSEMBLING→UPLOADING edge the state machine
	// doesn't have.
	missing, err := s.chunks.Missing(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		details := map[string]any{"missingChunks": missing}
		return nil, domain.New(domain.KindMissingChunks, "chunks missing", nil).WithDetails(details)
	}

	if err := s.Transition(ctx, sessionID, domain.StatusAssembling, ""); err != nil {
		return nil, err
	}

	finalPath, err := s.chunks.Assemble(ctx, sessionID)
	if err != nil {
		_ = s.Transition(ctx, sessionID, domain.StatusFailed, "")
		return nil, err
	}

	if err := s.validate.VerifyAssembled(ctx, finalPath, sess.ExpectedDigest, sess.FileName); err != nil {
		_ = s.Transition(ctx, sessionID, domain.StatusFailed, "")
		return nil, err
	}

	if err := s.Transition(ctx, sessionID, domain.StatusCompleted, finalPath); err != nil {
		return nil, err
	}

	if s.hooks != nil {
		s.hooks.Submit(ctx, sess, finalPath)
	}

	go s.chunks.Cleanup(context.Background(), sessionID)

	sess.Status = domain.StatusCompleted
	sess.FinalPath = finalPath
	return sess, nil
}

// SweepExpired implements §4.5's sweep_expired.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) {
	expired, err := s.sessions.ListExpired(ctx, now)
	if err != nil {
		if s.log != nil {
			s.log.WithComponent("uploadservice").Warn("sweep: list expired failed: " + err.Error())
		}
		return
	}
	for _, sess := range expired {
		s.chunks.Cleanup(ctx, sess.SessionID)
		if err := s.Transition(ctx, sess.SessionID, domain.StatusFailed, ""); err != nil {
			if s.log != nil {
				s.log.WithComponent("uploadservice").Warn("sweep: transition failed for " + sess.SessionID + ": " + err.Error())
			}
		}
	}
}
