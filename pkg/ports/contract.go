package ports

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/bale/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunFileSystemContract verifies a FileSystem implementation.
// root must be an absolute directory the implementation can write below.
func RunFileSystemContract(t *testing.T, fs FileSystem, root string) {
	ctx := context.Background()
	file := path.Join(root, "contract", "nested", "a.js")

	t.Run("Write and Read", func(t *testing.T) {
		require.NoError(t, fs.WriteFile(ctx, file, []byte("export default 1;")))
		assert.True(t, fs.Exists(file))

		data, err := fs.ReadFile(ctx, file)
		require.NoError(t, err)
		assert.Equal(t, "export default 1;", string(data))
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, fs.WriteFile(ctx, file, []byte("v2")))
		data, err := fs.ReadFile(ctx, file)
		require.NoError(t, err)
		assert.Equal(t, "v2", string(data))
	})

	t.Run("Directories are not files", func(t *testing.T) {
		assert.False(t, fs.Exists(path.Join(root, "contract", "nested")))
	})

	t.Run("Rename replaces", func(t *testing.T) {
		staged := path.Join(root, "contract", "nested", ".staged-a.js")
		require.NoError(t, fs.WriteFile(ctx, staged, []byte("v3")))
		require.NoError(t, fs.Rename(ctx, staged, file))

		data, err := fs.ReadFile(ctx, file)
		require.NoError(t, err)
		assert.Equal(t, "v3", string(data))
		assert.False(t, fs.Exists(staged))

		err = fs.Rename(ctx, staged, file)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Remove", func(t *testing.T) {
		gone := path.Join(root, "contract", "gone.js")
		require.NoError(t, fs.WriteFile(ctx, gone, []byte("x")))
		require.NoError(t, fs.Remove(ctx, gone))
		assert.False(t, fs.Exists(gone))
		assert.NoError(t, fs.Remove(ctx, gone), "missing files are ignored")
	})

	t.Run("Missing file", func(t *testing.T) {
		missing := path.Join(root, "contract", "missing.js")
		assert.False(t, fs.Exists(missing))
		_, err := fs.ReadFile(ctx, missing)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

// RunTransformCacheContract verifies a TransformCache implementation.
func RunTransformCacheContract(t *testing.T, cache TransformCache) {
	ctx := context.Background()
	key := "contract-" + time.Now().Format("20060102150405.000000")

	t.Run("Miss", func(t *testing.T) {
		_, err := cache.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Put and Get", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, key, []byte("var a = 1;")))
		data, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "var a = 1;", string(data))
	})

	t.Run("Empty output is a hit", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, key+"-empty", []byte{}))
		data, err := cache.Get(ctx, key+"-empty")
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, cache.Delete(ctx, key))
		_, err := cache.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

// RunLockerContract verifies that a DistributedLocker excludes concurrent holders.
func RunLockerContract(t *testing.T, locker DistributedLocker) {
	ctx := context.Background()
	key := "contract-lock-" + time.Now().Format("20060102150405.000000")

	t.Run("Mutual exclusion", func(t *testing.T) {
		var (
			mu      sync.Mutex
			holders int
			maxSeen int
			wg      sync.WaitGroup
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := locker.Lock(ctx, key, 5*time.Second)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				holders++
				if holders > maxSeen {
					maxSeen = holders
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				holders--
				mu.Unlock()
				assert.NoError(t, unlock(ctx))
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, maxSeen)
	})

	t.Run("Cancelled wait", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, 5*time.Second)
		require.NoError(t, err)
		defer func() { _ = unlock(ctx) }()

		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(cctx, key, 5*time.Second)
		assert.Error(t, err)
	})
}
