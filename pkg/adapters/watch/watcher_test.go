package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/bale/pkg/adapters/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_Ignored(t *testing.T) {
	w := watch.New("/proj", watch.WithIgnore("dist/**"))

	assert.True(t, w.Ignored("/proj/node_modules/lib/index.js"))
	assert.True(t, w.Ignored("/proj/node_modules"))
	assert.True(t, w.Ignored("/proj/dist/main.js"))
	assert.True(t, w.Ignored("/proj/src/.tmp-main.js-123"))
	assert.False(t, w.Ignored("/proj/src/app.js"))
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0755))
	file := filepath.Join(src, "app.js")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := watch.New(dir, watch.WithDebounce(50*time.Millisecond))
	changes, err := w.Watch(ctx)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(file, []byte{byte('a' + i)}, 0644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case p := <-changes:
		assert.Equal(t, filepath.ToSlash(file), p)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}

	// a burst is reported once
	select {
	case p := <-changes:
		t.Fatalf("unexpected second event for %s", p)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-changes
		return !open
	}, time.Second, 10*time.Millisecond)
}
