package sessioncache

import (
	"context"
	"sync"
	"time"

	"github.com/auth-platform/file-upload/internal/domain"
)

type memoryEntry struct {
	session   *domain.Session
	expiresAt time.Time
}

// MemoryCache is an in-process SessionCache for tests and single-instance
// deployments that don't have a Redis endpoint.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

// NewMemoryCache constructs a MemoryCache with the given entry TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), ttl: ttl}
}

// Get implements uploadservice.SessionCache.
func (c *MemoryCache) Get(ctx context.Context, sessionID string) (*domain.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[sessionID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.session, true
}

// Set implements uploadservice.SessionCache.
func (c *MemoryCache) Set(ctx context.Context, sessionID string, s *domain.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = memoryEntry{session: s, expiresAt: time.Now().Add(c.ttl)}
}

// Invalidate implements uploadservice.SessionCache.
func (c *MemoryCache) Invalidate(ctx context.Context, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}
