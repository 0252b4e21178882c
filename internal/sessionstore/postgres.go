package sessionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/auth-platform/file-upload/internal/domain"
)

// PostgresStore implements Store on top of sqlx + lib/pq, grounded on the
// teacher's metadata repository: the same ExecContext/GetContext/
// SelectContext shape, the same pq.Error code 23505 duplicate-key check
// repurposed as Insert's Conflict path.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an already-open *sqlx.DB.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type sessionRow struct {
	SessionID      string         `db:"session_id"`
	OwnerID        sql.NullString `db:"owner_id"`
	FileName       string         `db:"file_name"`
	DeclaredSize   int64          `db:"declared_size"`
	DeclaredType   string         `db:"declared_type"`
	ExpectedDigest sql.NullString `db:"expected_digest"`
	ChunkSize      int64          `db:"chunk_size"`
	TotalChunks    int            `db:"total_chunks"`
	Status         string         `db:"status"`
	FinalPath      sql.NullString `db:"final_path"`
	Metadata       []byte         `db:"metadata"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	ExpiresAt      time.Time      `db:"expires_at"`
}

func (r *sessionRow) toDomain() *domain.Session {
	s := &domain.Session{
		SessionID:    r.SessionID,
		FileName:     r.FileName,
		DeclaredSize: r.DeclaredSize,
		DeclaredType: r.DeclaredType,
		ChunkSize:    r.ChunkSize,
		TotalChunks:  r.TotalChunks,
		Status:       domain.Status(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		ExpiresAt:    r.ExpiresAt,
	}
	if r.OwnerID.Valid {
		s.OwnerID = r.OwnerID.String
	}
	if r.ExpectedDigest.Valid {
		s.ExpectedDigest = r.ExpectedDigest.String
	}
	if r.FinalPath.Valid {
		s.FinalPath = r.FinalPath.String
	}
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &s.Metadata)
	}
	return s
}

const selectColumns = `session_id, owner_id, file_name, declared_size, declared_type,
	expected_digest, chunk_size, total_chunks, status, final_path,
	metadata, created_at, updated_at, expires_at`

func (p *PostgresStore) Insert(ctx context.Context, s *domain.Session) error {
	metadata, err := json.Marshal(s.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}

	query := `INSERT INTO upload_sessions (
		session_id, owner_id, file_name, declared_size, declared_type,
		expected_digest, chunk_size, total_chunks, status, final_path,
		metadata, created_at, updated_at, expires_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	var ownerID, expectedDigest, finalPath sql.NullString
	if s.OwnerID != "" {
		ownerID = sql.NullString{String: s.OwnerID, Valid: true}
	}
	if s.ExpectedDigest != "" {
		expectedDigest = sql.NullString{String: s.ExpectedDigest, Valid: true}
	}
	if s.FinalPath != "" {
		finalPath = sql.NullString{String: s.FinalPath, Valid: true}
	}

	_, err = p.db.ExecContext(ctx, query,
		s.SessionID, ownerID, s.FileName, s.DeclaredSize, s.DeclaredType,
		expectedDigest, s.ChunkSize, s.TotalChunks, string(s.Status), finalPath,
		metadata, s.CreatedAt, s.UpdatedAt, s.ExpiresAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domain.New(domain.KindConflict, "session already exists", err)
		}
		return domain.New(domain.KindStorage, "insert session failed", err)
	}
	return nil
}

func (p *PostgresStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `SELECT ` + selectColumns + ` FROM upload_sessions WHERE session_id = $1`

	var row sessionRow
	if err := p.db.GetContext(ctx, &row, query, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSessionNotFound
		}
		return nil, domain.New(domain.KindStorage, "load session failed", err)
	}
	return row.toDomain(), nil
}

// UpdateStatus is atomic: it reads current status and writes the new one
// inside a transaction, refusing the write (and rolling back) if the
// transition is illegal. updated_at is always refreshed in the same
// statement per the Session Store contract.
func (p *PostgresStore) UpdateStatus(ctx context.Context, sessionID string, newStatus domain.Status, finalPath string) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.New(domain.KindStorage, "begin tx", err)
	}
	defer tx.Rollback()

	var current string
	if err := tx.GetContext(ctx, &current, `SELECT status FROM upload_sessions WHERE session_id = $1 FOR UPDATE`, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrSessionNotFound
		}
		return domain.New(domain.KindStorage, "load status failed", err)
	}

	if !domain.CanTransition(domain.Status(current), newStatus) {
		return domain.ErrIllegalTransition
	}

	var finalPathArg sql.NullString
	if newStatus == domain.StatusCompleted && finalPath != "" {
		finalPathArg = sql.NullString{String: finalPath, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE upload_sessions SET status = $2, final_path = COALESCE($3, final_path), updated_at = NOW() WHERE session_id = $1`,
		sessionID, string(newStatus), finalPathArg,
	)
	if err != nil {
		return domain.New(domain.KindStorage, "update status failed", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.New(domain.KindStorage, "commit failed", err)
	}
	return nil
}

func (p *PostgresStore) ListExpired(ctx context.Context, now time.Time) ([]*domain.Session, error) {
	query := `SELECT ` + selectColumns + ` FROM upload_sessions
		WHERE expires_at < $1 AND status NOT IN ($2, $3)
		ORDER BY expires_at ASC
		LIMIT 500`

	var rows []sessionRow
	err := p.db.SelectContext(ctx, &rows, query, now, string(domain.StatusCompleted), string(domain.StatusFailed))
	if err != nil {
		return nil, domain.New(domain.KindStorage, "list expired failed", err)
	}

	sessions := make([]*domain.Session, len(rows))
	for i, r := range rows {
		sessions[i] = r.toDomain()
	}
	return sessions, nil
}

var _ Store = (*PostgresStore)(nil)
