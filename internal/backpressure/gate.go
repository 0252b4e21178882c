// Package backpressure implements §5's bounded connection pools: an
// admission gate per backing store that fails fast with a Backpressure
// domain error instead of queuing requests indefinitely.
package backpressure

import (
	"context"

	"github.com/auth-platform/file-upload/internal/domain"
	"github.com/auth-platform/file-upload/internal/observability"
)

// Gate bounds concurrent access to one backing store. It is a semaphore,
// not a rate limiter — repurposed from the teacher's sliding-window
// limiter (internal/service/ratelimit/limiter.go) to the simpler
// bounded-pool admission model §5 actually calls for: acquire-or-fail,
// not count-requests-per-window.
type Gate struct {
	name    string
	slot    chan struct{}
	metrics *observability.Metrics
}

// New returns a Gate admitting at most capacity concurrent holders.
// metrics may be nil in tests.
func New(name string, capacity int, metrics *observability.Metrics) *Gate {
	if capacity <= 0 {
		capacity = 1
	}
	return &Gate{name: name, slot: make(chan struct{}, capacity), metrics: metrics}
}

// Release is returned by Acquire; callers must call it exactly once.
type Release func()

// Acquire blocks until a slot is free or ctx is done. A context deadline
// exceeded while waiting is surfaced as BACKPRESSURE, not the bare
// context error, so callers don't need to translate it themselves.
func (g *Gate) Acquire(ctx context.Context) (Release, error) {
	select {
	case g.slot <- struct{}{}:
		return func() { <-g.slot }, nil
	case <-ctx.Done():
		if g.metrics != nil {
			g.metrics.RecordBackpressure(g.name)
		}
		return nil, domain.New(domain.KindBackpressure, g.name+" connection pool exhausted", ctx.Err())
	}
}

// InUse reports the current number of held slots, for health/metrics.
func (g *Gate) InUse() int {
	return len(g.slot)
}

// Capacity reports the configured slot count.
func (g *Gate) Capacity() int {
	return cap(g.slot)
}
