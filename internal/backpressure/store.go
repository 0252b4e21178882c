package backpressure

import (
	"context"
	"io"

	"github.com/auth-platform/file-upload/internal/objectstore"
)

// GatedStore wraps an objectstore.Store so every call is admitted through
// a Gate first, implementing §5's bounded connection pool for the one
// backing store every upload touches on the hot path.
type GatedStore struct {
	store objectstore.Store
	gate  *Gate
}

// NewGatedStore wraps store so every call is admitted through gate.
func NewGatedStore(store objectstore.Store, gate *Gate) *GatedStore {
	return &GatedStore{store: store, gate: gate}
}

func (g *GatedStore) Put(ctx context.Context, key string, data []byte) error {
	release, err := g.gate.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return g.store.Put(ctx, key, data)
}

func (g *GatedStore) Get(ctx context.Context, key string) ([]byte, error) {
	release, err := g.gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return g.store.Get(ctx, key)
}

func (g *GatedStore) Delete(ctx context.Context, key string) error {
	release, err := g.gate.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return g.store.Delete(ctx, key)
}

func (g *GatedStore) PutStream(ctx context.Context, key string, r io.Reader) error {
	release, err := g.gate.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return g.store.PutStream(ctx, key, r)
}

// GetStream holds the gate slot for the lifetime of the returned reader,
// not just the call that opens it — release only happens when the
// caller Closes it, so a slow consumer of a large assembled object still
// counts against §5's bounded pool for as long as it's reading.
func (g *GatedStore) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	release, err := g.gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	rc, err := g.store.GetStream(ctx, key)
	if err != nil {
		release()
		return nil, err
	}
	return &gatedReadCloser{ReadCloser: rc, release: release}, nil
}

// gatedReadCloser releases its gate slot exactly once, on Close.
type gatedReadCloser struct {
	io.ReadCloser
	release func()
}

func (g *gatedReadCloser) Close() error {
	err := g.ReadCloser.Close()
	g.release()
	return err
}

var _ objectstore.Store = (*GatedStore)(nil)
