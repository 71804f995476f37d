package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/bale/pkg/adapters/redis"
	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func TestRedisCache_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunTransformCacheContract(t, redis.NewFromClient(client))
}

func TestRedisLocker_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunLockerContract(t, redis.NewLocker(client, "test:"))
}

func TestRedisCache_TTL(t *testing.T) {
	mr, client := newClient(t)
	cache := redis.NewFromClient(client, redis.WithTTL(time.Second), redis.WithPrefix("proj:"))
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "k", []byte("v")))
	assert.True(t, mr.Exists("proj:transform:k"))

	mr.FastForward(2 * time.Second)

	_, err := cache.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedisCache_Purge(t *testing.T) {
	mr, client := newClient(t)
	cache := redis.NewFromClient(client)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "a", []byte("1")))
	require.NoError(t, cache.Put(ctx, "b", []byte("2")))

	n, err := cache.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, mr.Exists("bale:transform:a"))
	assert.False(t, mr.Exists("bale:transform-index"))
}

func TestRedisLocker_UnlockKeepsForeignToken(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "build", time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:build"))

	// lock expired and was taken by someone else
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("test:lock:build", "other"))

	require.NoError(t, unlock(ctx))
	got, err := mr.Get("test:lock:build")
	require.NoError(t, err)
	assert.Equal(t, "other", got)
}
