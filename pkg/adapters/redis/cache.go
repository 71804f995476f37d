// Package redis provides the Redis backed transform cache and build lock.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/bale/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "bale:"

// Cache implements ports.TransformCache using Redis.
//
// Entries are plain strings under prefix+"transform:"+key. Every key is also
// recorded in an index set so Purge can drop a whole project cache.
type Cache struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Cache)

// WithTTL sets the expiration of cache entries. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix, typically one per project.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// New creates a cache with its own client.
func New(address, password string, db int, opts ...Option) *Cache {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a cache on an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Client exposes the underlying client so a Locker can share it.
func (c *Cache) Client() *backend.Client { return c.client }

func (c *Cache) key(k string) string {
	return c.prefix + "transform:" + k
}

func (c *Cache) indexKey() string {
	return c.prefix + "transform-index"
}

// Get returns the cached bytes or domain.ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("%w: cache key %s", domain.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return val, nil
}

// Put stores data and indexes the key in one pipeline.
func (c *Cache) Put(ctx context.Context, key string, data []byte) error {
	pipe := c.client.Pipeline()
	pipe.Set(ctx, c.key(key), data, c.ttl)
	pipe.SAdd(ctx, c.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Delete removes one entry.
func (c *Cache) Delete(ctx context.Context, key string) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, c.key(key))
	pipe.SRem(ctx, c.indexKey(), key)
	_, err := pipe.Exec(ctx)
	return err
}

// Purge removes every entry recorded under the prefix and returns how many
// keys were indexed.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	keys, err := c.client.SMembers(ctx, c.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list cache keys: %w", err)
	}
	pipe := c.client.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, c.key(k))
	}
	pipe.Del(ctx, c.indexKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return len(keys), nil
}

// Close closes the redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
