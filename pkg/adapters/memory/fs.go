package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/bale/pkg/domain"
)

// FS implements ports.FileSystem in memory.
// Safe for concurrent use.
type FS struct {
	mu    sync.RWMutex
	files map[string][]byte

	// failWrite, when set, is consulted before every write.
	failWrite func(path string) error
}

// FSOption configures an FS.
type FSOption func(*FS)

// WithWriteFault makes WriteFile fail whenever fn returns an error.
func WithWriteFault(fn func(path string) error) FSOption {
	return func(fs *FS) {
		fs.failWrite = fn
	}
}

// NewFS creates a filesystem seeded with files (path -> content).
func NewFS(files map[string]string, opts ...FSOption) *FS {
	fs := &FS{files: make(map[string][]byte, len(files))}
	for p, content := range files {
		fs.files[path.Clean(p)] = []byte(content)
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// ReadFile returns a copy of the stored content.
func (fs *FS) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, ok := fs.files[path.Clean(p)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, p)
	}
	return append([]byte(nil), data...), nil
}

// Exists reports whether p is a stored file. Directories are implicit and
// never exist as files.
func (fs *FS) Exists(p string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, ok := fs.files[path.Clean(p)]
	return ok
}

// WriteFile stores a copy of data under p.
func (fs *FS) WriteFile(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if fs.failWrite != nil {
		if err := fs.failWrite(p); err != nil {
			return err
		}
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path.Clean(p)] = append([]byte(nil), data...)
	return nil
}

// Rename moves from over to. The write fault is not consulted.
func (fs *FS) Rename(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, ok := fs.files[path.Clean(from)]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, from)
	}
	delete(fs.files, path.Clean(from))
	fs.files[path.Clean(to)] = data
	return nil
}

// Remove deletes p. Missing files are ignored.
func (fs *FS) Remove(ctx context.Context, p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.files, path.Clean(p))
	return nil
}

// List returns the stored paths below dir, sorted.
func (fs *FS) List(dir string) []string {
	dir = strings.TrimSuffix(path.Clean(dir), "/") + "/"
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var out []string
	for p := range fs.files {
		if strings.HasPrefix(p, dir) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
