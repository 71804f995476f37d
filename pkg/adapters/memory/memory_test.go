package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/bale/pkg/adapters/memory"
	"github.com/aretw0/bale/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestFS_Contract(t *testing.T) {
	ports.RunFileSystemContract(t, memory.NewFS(nil), "/work")
}

func TestCache_Contract(t *testing.T) {
	ports.RunTransformCacheContract(t, memory.NewCache())
}

func TestFS_WriteFault(t *testing.T) {
	boom := errors.New("disk full")
	fs := memory.NewFS(nil, memory.WithWriteFault(func(p string) error {
		if p == "/dist/main.js" {
			return boom
		}
		return nil
	}))

	ctx := context.Background()
	assert.ErrorIs(t, fs.WriteFile(ctx, "/dist/main.js", []byte("x")), boom)
	assert.NoError(t, fs.WriteFile(ctx, "/dist/other.js", []byte("y")))
	assert.Equal(t, []string{"/dist/other.js"}, fs.List("/dist"))
}

func TestFS_ReadReturnsCopy(t *testing.T) {
	fs := memory.NewFS(map[string]string{"/a.js": "abc"})
	data, err := fs.ReadFile(context.Background(), "/a.js")
	assert.NoError(t, err)
	data[0] = 'z'

	again, _ := fs.ReadFile(context.Background(), "/a.js")
	assert.Equal(t, "abc", string(again))
}
