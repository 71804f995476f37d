package ports

import "context"

// Watchable delivers paths of changed files until ctx is done.
type Watchable interface {
	Watch(ctx context.Context) (<-chan string, error)
}
