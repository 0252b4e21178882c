// Package sessionstore implements the Session Store (§4.3): the durable
// record of upload sessions, source of truth for status queries and the
// state machine.
package sessionstore

import (
	"context"
	"time"

	"github.com/auth-platform/file-upload/internal/domain"
)

// Store is the Session Store contract.
type Store interface {
	// Insert fails with a Conflict domain error if SessionID already
	// exists.
	Insert(ctx context.Context, s *domain.Session) error

	// Load returns the session, or a NotFound domain error.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// UpdateStatus atomically transitions sessionID to newStatus,
	// refusing transitions that violate domain.CanTransition. finalPath
	// is only written when newStatus is StatusCompleted.
	UpdateStatus(ctx context.Context, sessionID string, newStatus domain.Status, finalPath string) error

	// ListExpired returns sessions with ExpiresAt < now and non-terminal
	// status.
	ListExpired(ctx context.Context, now time.Time) ([]*domain.Session, error)
}
