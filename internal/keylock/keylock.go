// Package keylock provides mutual exclusion per key.
package keylock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/bale/internal/logging"
	"github.com/aretw0/bale/pkg/ports"
)

// entry holds the mutex of one key and how many callers want it.
type entry struct {
	mu   sync.Mutex
	refs int
}

// Map hands out one mutex per key and forgets it when nobody holds or
// waits for it, so the map stays as small as the set of busy keys.
type Map struct {
	mu      sync.Mutex
	entries map[string]*entry

	locker ports.DistributedLocker
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Map.
type Option func(*Map)

// WithLocker also takes a distributed lock per key after the local one.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(m *Map) {
		m.locker = locker
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Map) {
		m.logger = logger
	}
}

// New creates an empty Map.
func New(opts ...Option) *Map {
	m := &Map{
		entries: make(map[string]*entry),
		ttl:     30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Map) acquire(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *Map) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(m.entries, key)
	}
}

// WithLock runs fn while holding the lock for key.
func (m *Map) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	e := m.acquire(key)
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.ttl)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// the lock still expires via its TTL
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock", "key", key, "err", err)
			}
		}()
	}

	return fn(ctx)
}

// Len returns the number of keys currently held or awaited.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
