package uploadservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/auth-platform/file-upload/internal/chunkindex"
	"github.com/auth-platform/file-upload/internal/chunkservice"
	"github.com/auth-platform/file-upload/internal/domain"
	"github.com/auth-platform/file-upload/internal/objectstore"
	"github.com/auth-platform/file-upload/internal/sessioncache"
	"github.com/auth-platform/file-upload/internal/sessionstore"
	"github.com/auth-platform/file-upload/internal/validator"
)

func testConfig() Config {
	return Config{ChunkSize: 10, MaxFileSize: 1 << 20, SessionExpiry: time.Hour}
}

func testValidator(store objectstore.Store) *validator.Validator {
	return validator.New(validator.Config{
		AllowedTypes:      []string{"application/json"},
		AllowedExtensions: []string{"json"},
		MaxFileSize:       1 << 20,
		DigestAlgorithm:   "sha256",
	}, store, nil)
}

// newHarness wires a full Service with real (in-memory/filesystem) backing
// implementations, breaking the chunkservice<->uploadservice constructor
// cycle in the opposite order to cmd/server/main.go: construct the Upload
// Service first with no Chunk Service, then the Chunk Service with it as
// the Transitioner, then set svc.chunks directly. The Validator
// shares the same object store as the Chunk Service, since VerifyAssembled
// reads the assembled object back to check its digest and structure.
func newHarness(t *testing.T) (*Service, *sessionstore.MemoryStore) {
	t.Helper()
	sessions := sessionstore.NewMemoryStore()
	cache := sessioncache.NewMemoryCache(time.Minute)
	index := chunkindex.NewMemoryIndex()
	store, err := objectstore.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}

	svc := New(sessions, cache, nil, testValidator(store), nil, testConfig(), nil)
	chunks := chunkservice.New(sessions, index, store, svc, nil)
	svc.chunks = chunks
	return svc, sessions
}

func TestInitialize_CreatesSessionAndComputesChunkCount(t *testing.T) {
	svc, sessions := newHarness(t)
	ctx := context.Background()

	res, err := svc.Initialize(ctx, InitRequest{
		OwnerID:      "owner-1",
		FileName:     "data.json",
		DeclaredSize: 25,
		DeclaredType: "application/json",
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if res.ChunkSize != 10 || res.TotalChunks != 3 {
		t.Fatalf("got ChunkSize=%d TotalChunks=%d, want 10/3", res.ChunkSize, res.TotalChunks)
	}

	sess, err := sessions.Load(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("Load after Initialize: %v", err)
	}
	if sess.Status != domain.StatusInit {
		t.Fatalf("new session status = %v, want INIT", sess.Status)
	}
}

func TestInitialize_RejectsInvalidType(t *testing.T) {
	svc, _ := newHarness(t)
	_, err := svc.Initialize(context.Background(), InitRequest{
		FileName: "data.exe", DeclaredSize: 10, DeclaredType: "application/x-executable",
	})
	var derr *domain.Error
	if !errors.As(err, &derr) || derr.Kind != domain.KindValidation {
		t.Fatalf("Initialize(bad type): err = %v, want KindValidation", err)
	}
}

func TestInitialize_SanitizesFileName(t *testing.T) {
	svc, sessions := newHarness(t)
	ctx := context.Background()

	res, err := svc.Initialize(ctx, InitRequest{
		FileName: "../../etc/passwd.json", DeclaredSize: 10, DeclaredType: "application/json",
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	sess, _ := sessions.Load(ctx, res.SessionID)
	if sess.FileName == "../../etc/passwd.json" {
		t.Fatal("expected FileName to be sanitized before storage")
	}
}

func TestStatus_ReportsUploadedAndMissing(t *testing.T) {
	svc, _ := newHarness(t)
	ctx := context.Background()

	res, err := svc.Initialize(ctx, InitRequest{FileName: "data.json", DeclaredSize: 25, DeclaredType: "application/json"})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, _, err := svc.chunks.StoreChunk(ctx, res.SessionID, 0, make([]byte, 10)); err != nil {
		t.Fatalf("StoreChunk: %v", err)
	}

	report, err := svc.Status(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if report.Uploaded != 1 {
		t.Fatalf("Uploaded = %d, want 1", report.Uploaded)
	}
	if len(report.Missing) != 2 || report.Missing[0] != 1 || report.Missing[1] != 2 {
		t.Fatalf("Missing = %v, want [1 2]", report.Missing)
	}
}

func TestStatus_ExpiredNonTerminalSessionReturnsExpiredError(t *testing.T) {
	svc, sessions := newHarness(t)
	ctx := context.Background()

	now := time.Now()
	sess := &domain.Session{
		SessionID: "s1", FileName: "f.json", DeclaredSize: 10, ChunkSize: 10, TotalChunks: 1,
		Status: domain.StatusUploading, CreatedAt: now.Add(-2 * time.Hour), UpdatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	sessions.Insert(ctx, sess)

	_, err := svc.Status(ctx, "s1")
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("Status(expired, non-terminal): err = %v, want ErrSessionExpired", err)
	}
}

func TestRequestUploading_FirstCallBumpsFromInit(t *testing.T) {
	svc, sessions := newHarness(t)
	ctx := context.Background()

	res, err := svc.Initialize(ctx, InitRequest{FileName: "data.json", DeclaredSize: 10, DeclaredType: "application/json"})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := svc.RequestUploading(ctx, res.SessionID); err != nil {
		t.Fatalf("RequestUploading: %v", err)
	}
	sess, _ := sessions.Load(ctx, res.SessionID)
	if sess.Status != domain.StatusUploading {
		t.Fatalf("status = %v, want UPLOADING", sess.Status)
	}
}

func TestRequestUploading_AlreadyUploadingIsNoOp(t *testing.T) {
	svc, sessions := newHarness(t)
	ctx := context.Background()
	res, _ := svc.Initialize(ctx, InitRequest{FileName: "data.json", DeclaredSize: 10, DeclaredType: "application/json"})
	svc.RequestUploading(ctx, res.SessionID)

	if err := svc.RequestUploading(ctx, res.SessionID); err != nil {
		t.Fatalf("second RequestUploading: %v", err)
	}
	sess, _ := sessions.Load(ctx, res.SessionID)
	if sess.Status != domain.StatusUploading {
		t.Fatalf("status = %v, want still UPLOADING", sess.Status)
	}
}

func TestComplete_RejectsWhenChunksMissing(t *testing.T) {
	svc, _ := newHarness(t)
	ctx := context.Background()
	res, _ := svc.Initialize(ctx, InitRequest{FileName: "data.json", DeclaredSize: 25, DeclaredType: "application/json"})
	svc.chunks.StoreChunk(ctx, res.SessionID, 0, make([]byte, 10))
	svc.RequestUploading(ctx, res.SessionID)

	_, err := svc.Complete(ctx, res.SessionID)
	var derr *domain.Error
	if !errors.As(err, &derr) || derr.Kind != domain.KindMissingChunks {
		t.Fatalf("Complete with gaps: err = %v, want KindMissingChunks", err)
	}
}

func TestComplete_RejectsWrongStatus(t *testing.T) {
	svc, _ := newHarness(t)
	ctx := context.Background()
	res, _ := svc.Initialize(ctx, InitRequest{FileName: "data.json", DeclaredSize: 10, DeclaredType: "application/json"})

	_, err := svc.Complete(ctx, res.SessionID)
	if !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("Complete from INIT: err = %v, want ErrIllegalTransition", err)
	}
}

func TestComplete_AssemblesVerifiesAndTransitionsToCompleted(t *testing.T) {
	svc, sessions := newHarness(t)
	ctx := context.Background()

	res, err := svc.Initialize(ctx, InitRequest{
		OwnerID: "o1", FileName: "data.json", DeclaredSize: 7, DeclaredType: "application/json",
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	payload := []byte(`{"a":1}`)
	if _, _, err := svc.chunks.StoreChunk(ctx, res.SessionID, 0, payload); err != nil {
		t.Fatalf("StoreChunk: %v", err)
	}

	sess, err := svc.Complete(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if sess.Status != domain.StatusCompleted {
		t.Fatalf("Complete returned status %v, want COMPLETED", sess.Status)
	}
	if sess.FinalPath == "" {
		t.Fatal("expected a non-empty FinalPath")
	}

	stored, err := sessions.Load(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("Load after Complete: %v", err)
	}
	if stored.Status != domain.StatusCompleted || stored.FinalPath == "" {
		t.Fatalf("stored session = %+v, want COMPLETED with a FinalPath", stored)
	}
}

func TestComplete_DigestMismatchFailsSession(t *testing.T) {
	svc, sessions := newHarness(t)
	ctx := context.Background()

	res, err := svc.Initialize(ctx, InitRequest{
		FileName: "data.json", DeclaredSize: 7, DeclaredType: "application/json",
		ExpectedDigest: "sha256:0000000000000000000000000000000000000000000000000000000000000000",
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	svc.chunks.StoreChunk(ctx, res.SessionID, 0, []byte(`{"a":1}`))

	_, err = svc.Complete(ctx, res.SessionID)
	var derr *domain.Error
	if !errors.As(err, &derr) || derr.Kind != domain.KindDigestMismatch {
		t.Fatalf("Complete with wrong digest: err = %v, want KindDigestMismatch", err)
	}

	sess, loadErr := sessions.Load(ctx, res.SessionID)
	if loadErr != nil {
		t.Fatalf("Load: %v", loadErr)
	}
	if sess.Status != domain.StatusFailed {
		t.Fatalf("session status after digest mismatch = %v, want FAILED", sess.Status)
	}
}

func TestSweepExpired_FailsExpiredNonTerminalSessions(t *testing.T) {
	svc, sessions := newHarness(t)
	ctx := context.Background()

	now := time.Now()
	expired := &domain.Session{
		SessionID: "old", FileName: "f.json", DeclaredSize: 10, ChunkSize: 10, TotalChunks: 1,
		Status: domain.StatusUploading, CreatedAt: now.Add(-2 * time.Hour), UpdatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	sessions.Insert(ctx, expired)

	svc.SweepExpired(ctx, now)

	sess, err := sessions.Load(ctx, "old")
	if err != nil {
		t.Fatalf("Load after sweep: %v", err)
	}
	if sess.Status != domain.StatusFailed {
		t.Fatalf("status after sweep = %v, want FAILED", sess.Status)
	}
}

func TestSweepExpired_LeavesUnexpiredSessionsAlone(t *testing.T) {
	svc, sessions := newHarness(t)
	ctx := context.Background()
	res, _ := svc.Initialize(ctx, InitRequest{FileName: "data.json", DeclaredSize: 10, DeclaredType: "application/json"})

	svc.SweepExpired(ctx, time.Now())

	sess, err := sessions.Load(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sess.Status != domain.StatusInit {
		t.Fatalf("status after sweep = %v, want unchanged INIT", sess.Status)
	}
}
