// Package osfs implements ports.FileSystem on the local disk.
package osfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/bale/pkg/domain"
)

// ErrOutsideRoot is returned for paths that escape the configured root.
var ErrOutsideRoot = errors.New("path outside project root")

// FS implements ports.FileSystem for everything below Root.
type FS struct {
	Root string
}

// New creates an FS rooted at root, which is made absolute.
func New(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
	}
	return &FS{Root: abs}, nil
}

func (fs *FS) native(p string) (string, error) {
	native := filepath.Clean(filepath.FromSlash(p))
	rel, err := filepath.Rel(fs.Root, native)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return native, nil
}

// ReadFile reads p from disk.
func (fs *FS) ReadFile(ctx context.Context, p string) ([]byte, error) {
	native, err := fs.native(p)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(native)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, p)
		}
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// Exists reports whether p is a regular file.
func (fs *FS) Exists(p string) bool {
	native, err := fs.native(p)
	if err != nil {
		return false
	}
	info, err := os.Stat(native)
	return err == nil && info.Mode().IsRegular()
}

// WriteFile replaces p atomically.
// It writes to a temporary file in the same directory, syncs it, and then
// renames it over the destination.
func (fs *FS) WriteFile(ctx context.Context, p string, data []byte) error {
	dest, err := fs.native(p)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure output directory: %w", err)
	}

	// same directory, so the rename stays on one filesystem
	tmpFile, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(dest)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}

	if err := replace(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", p, err)
	}
	return nil
}

// Rename moves from over to, creating the destination directory.
func (fs *FS) Rename(ctx context.Context, from, to string) error {
	src, err := fs.native(from)
	if err != nil {
		return err
	}
	dest, err := fs.native(to)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, from)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to ensure output directory: %w", err)
	}
	if err := replace(src, dest); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", from, to, err)
	}
	return nil
}

// Remove deletes p. A missing file is not an error.
func (fs *FS) Remove(ctx context.Context, p string) error {
	native, err := fs.native(p)
	if err != nil {
		return err
	}
	if err := os.Remove(native); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", p, err)
	}
	return nil
}

func replace(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}
	// Windows refuses to rename over an existing file.
	if _, statErr := os.Stat(dest); statErr == nil {
		if rmErr := os.Remove(dest); rmErr != nil {
			return rmErr
		}
		return os.Rename(src, dest)
	}
	return err
}

// Abs converts a path relative to the root into the slash form used as a
// module id.
func (fs *FS) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.ToSlash(filepath.Clean(rel))
	}
	return filepath.ToSlash(filepath.Join(fs.Root, rel))
}
