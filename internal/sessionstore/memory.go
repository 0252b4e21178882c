package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/auth-platform/file-upload/internal/domain"
)

// MemoryStore is an in-process Store used by tests and by the
// filesystem-fallback deployment mode. It applies the same conflict and
// transition rules as PostgresStore.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session)}
}

func (m *MemoryStore) Insert(ctx context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.SessionID]; exists {
		return domain.ErrConflict
	}
	cp := *s
	m.sessions[s.SessionID] = &cp
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, sessionID string, newStatus domain.Status, finalPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if !domain.CanTransition(s.Status, newStatus) {
		return domain.ErrIllegalTransition
	}
	s.Status = newStatus
	if newStatus == domain.StatusCompleted && finalPath != "" {
		s.FinalPath = finalPath
	}
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ListExpired(ctx context.Context, now time.Time) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Session
	for _, s := range m.sessions {
		if s.Status.IsTerminal() {
			continue
		}
		if now.After(s.ExpiresAt) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
