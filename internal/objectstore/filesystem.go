package objectstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/auth-platform/file-upload/internal/domain"
)

// FilesystemStore is the §9 "local-dev fallback" adapter: identical
// contract to Store, backed by a directory tree instead of S3. Selecting
// it is a configuration toggle (object_store.driver = "filesystem"), never
// a runtime fallback on S3 errors.
type FilesystemStore struct {
	root string
	mu   sync.Mutex
}

// NewFilesystemStore creates a store rooted at dir, creating it if needed.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.New(domain.KindStorage, "create store root", err)
	}
	return &FilesystemStore{root: dir}, nil
}

func (f *FilesystemStore) path(key string) string {
	return filepath.Join(f.root, filepath.FromSlash(key))
}

func (f *FilesystemStore) Put(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return domain.New(domain.KindStorage, "mkdir", err)
	}
	// Write to a temp file then rename, so concurrent readers never see a
	// partial write.
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return domain.New(domain.KindStorage, "write", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return domain.New(domain.KindStorage, "rename", err)
	}
	return nil
}

func (f *FilesystemStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.New(domain.KindNotFound, "object not found", err)
		}
		return nil, domain.New(domain.KindStorage, "read", err)
	}
	return data, nil
}

func (f *FilesystemStore) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.New(domain.KindNotFound, "object not found", err)
		}
		return nil, domain.New(domain.KindStorage, "open", err)
	}
	return file, nil
}

func (f *FilesystemStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return domain.New(domain.KindStorage, "delete", err)
	}
	return nil
}

func (f *FilesystemStore) PutStream(ctx context.Context, key string, r io.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return domain.New(domain.KindStorage, "mkdir", err)
	}
	tmp := p + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return domain.New(domain.KindStorage, "create", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(tmp)
		return domain.New(domain.KindStorage, "write stream", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return domain.New(domain.KindStorage, "close", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return domain.New(domain.KindStorage, "rename", err)
	}
	return nil
}

// Ping checks that the store root is still a writable directory, for
// health.StorageChecker.
func (f *FilesystemStore) Ping(ctx context.Context) error {
	info, err := os.Stat(f.root)
	if err != nil {
		return domain.New(domain.KindStorage, "store root unreachable", err)
	}
	if !info.IsDir() {
		return domain.New(domain.KindStorage, "store root is not a directory", nil)
	}
	return nil
}

// List enumerates keys under prefix (Lister).
func (f *FilesystemStore) List(ctx context.Context, prefix string) ([]string, error) {
	dir := f.path(prefix)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domain.New(domain.KindStorage, "list", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(prefix, "/")+"/"+e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}
