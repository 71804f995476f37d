package ports

import "context"

// TransformCache stores transformed module sources by cache key.
type TransformCache interface {
	// Get returns the cached bytes for key.
	// Returns an error wrapping domain.ErrNotFound on a miss.
	Get(ctx context.Context, key string) ([]byte, error)

	Put(ctx context.Context, key string, data []byte) error

	Delete(ctx context.Context, key string) error
}
