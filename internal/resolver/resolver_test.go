package resolver_test

import (
	"testing"

	"github.com/aretw0/bale/internal/resolver"
	"github.com/aretw0/bale/pkg/adapters/memory"
	"github.com/aretw0/bale/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(opts ...resolver.Option) *resolver.Resolver {
	fs := memory.NewFS(map[string]string{
		"/p/src/app.js":                     "",
		"/p/src/util.js":                    "",
		"/p/src/util/index.js":              "",
		"/p/src/data.json":                  "",
		"/p/src/lib/index.json":             "",
		"/p/images/1.jpeg":                  "",
		"/p/node_modules/left-pad/index.js": "",
		"/p/shared/colors.js":               "",
	})
	return resolver.New(fs, "/p", opts...)
}

func TestResolve_Fallbacks(t *testing.T) {
	r := newResolver()
	from := domain.ModuleID("/p/src/app.js")

	cases := map[string]domain.ModuleID{
		"./util":             "/p/src/util.js", // file + ext wins over dir/index
		"./data.json":        "/p/src/data.json",
		"./data":             "/p/src/data.json",
		"./lib":              "/p/src/lib/index.json",
		"../images/1.jpeg":   "/p/images/1.jpeg",
		"/p/src/util.js":     "/p/src/util.js",
		"left-pad":           "/p/node_modules/left-pad/index.js",
		"../images/1.jpeg?v": "/p/images/1.jpeg?v",
	}
	for spec, want := range cases {
		got, err := r.Resolve(spec, from)
		if assert.NoError(t, err, spec) {
			assert.Equal(t, want, got, spec)
		}
	}
}

func TestResolve_EntryFromRoot(t *testing.T) {
	got, err := newResolver().Resolve("./src/app", "")
	require.NoError(t, err)
	assert.Equal(t, domain.ModuleID("/p/src/app.js"), got)
}

func TestResolve_Alias(t *testing.T) {
	r := newResolver(resolver.WithAlias(map[string]string{"@shared": "shared"}))
	got, err := r.Resolve("@shared/colors", "/p/src/app.js")
	require.NoError(t, err)
	assert.Equal(t, domain.ModuleID("/p/shared/colors.js"), got)
}

func TestResolve_Error(t *testing.T) {
	_, err := newResolver().Resolve("./missing", "/p/src/app.js")

	var re *domain.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "./missing", re.Specifier)
	assert.Equal(t, domain.ModuleID("/p/src/app.js"), re.Importer)
	assert.Equal(t, []string{
		"/p/src/missing",
		"/p/src/missing.js",
		"/p/src/missing.json",
		"/p/src/missing/index.js",
		"/p/src/missing/index.json",
	}, re.Tried)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolve_Deterministic(t *testing.T) {
	r := newResolver()
	first, err := r.Resolve("./util", "/p/src/app.js")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.Resolve("./util", "/p/src/app.js")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
