package ports

import "context"

// FileSystem is the only way the core reaches files.
// Paths are absolute and slash separated.
type FileSystem interface {
	// ReadFile returns the content of path.
	// Returns an error wrapping domain.ErrNotFound if the file does not exist.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether path names a regular file.
	Exists(path string) bool

	// WriteFile replaces path with data. Readers never observe a partial file.
	WriteFile(ctx context.Context, path string, data []byte) error

	// Rename moves the file at from over to, replacing to atomically.
	// Returns an error wrapping domain.ErrNotFound if from does not exist.
	Rename(ctx context.Context, from, to string) error

	// Remove deletes path. A missing file is not an error.
	Remove(ctx context.Context, path string) error
}
