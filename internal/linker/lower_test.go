package linker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowerModule_DefaultImportAndExport(t *testing.T) {
	out, err := lowerModule([]byte("import a from \"./a\";\nexport default a;\n"))
	require.NoError(t, err)
	assert.Equal(t,
		"exports.__esModule = true;\n"+
			"var __bale_m1 = require(\"./a\"), a = __bale.interop(__bale_m1)[\"default\"];\n"+
			"exports[\"default\"] = a;\n",
		out)
}

func TestLowerModule_Forms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "named and namespace imports",
			src:  "import d, { x as y, default as z } from './m';\nimport * as ns from './n';",
			want: []string{
				`var __bale_m1 = require("./m"), d = __bale.interop(__bale_m1)["default"], y = __bale_m1["x"], z = __bale.interop(__bale_m1)["default"];`,
				`var ns = require("./n");`,
			},
		},
		{
			name: "side effect and dynamic",
			src:  "import './polyfill';\nconst later = import('./lazy');",
			want: []string{
				`require("./polyfill");`,
				`const later = Promise.resolve().then(function () { return __bale.interop(require("./lazy")); });`,
			},
		},
		{
			name: "exported declarations",
			src:  "export const a = 1, b = f(2, 3);\nexport function g() {}\nexport class C {}\n",
			want: []string{
				`__bale.def(exports, "a", function () { return a; });`,
				`__bale.def(exports, "b", function () { return b; });`,
				`__bale.def(exports, "g", function () { return g; });`,
				`__bale.def(exports, "C", function () { return C; });`,
				"const a = 1, b = f(2, 3);\nfunction g() {}\nclass C {}\n",
			},
		},
		{
			name: "named default function",
			src:  "export default function main() { return 1; }",
			want: []string{
				`__bale.def(exports, "default", function () { return main; });`,
				"function main() { return 1; }",
			},
		},
		{
			name: "export list",
			src:  "const a = 1;\nexport { a as b, a };\n",
			want: []string{
				`__bale.def(exports, "b", function () { return a; });`,
				`__bale.def(exports, "a", function () { return a; });`,
			},
		},
		{
			name: "re-exports",
			src:  "export * from './c';\nexport * as d from './d';\nexport { e as f, default as g } from './e';",
			want: []string{
				`__bale.star(exports, require("./c"));`,
				`var __bale_m1 = require("./d"); __bale.def(exports, "d", function () { return __bale_m1; });`,
				`var __bale_m2 = require("./e"); __bale.def(exports, "f", function () { return __bale_m2["e"]; }); __bale.def(exports, "g", function () { return __bale.interop(__bale_m2)["default"]; });`,
			},
		},
		{
			name: "require is left to the wrapper",
			src:  "const fs = require('./fs');",
			want: []string{"const fs = require('./fs');"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := lowerModule([]byte(tt.src))
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			assert.NotContains(t, out, "export ")
			assert.NotContains(t, out, "import ")
		})
	}
}

func TestLowerModule_PlainScriptIsUntouched(t *testing.T) {
	src := "var x = 1;\nmodule.exports = x;\n"
	out, err := lowerModule([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestDeclarators_Destructuring(t *testing.T) {
	out, err := lowerModule([]byte("export let { a, b: c, ...d } = obj, [e, , f] = arr;\nfoo();"))
	require.NoError(t, err)
	for _, name := range []string{"a", "c", "d", "e", "f"} {
		assert.Contains(t, out, `__bale.def(exports, "`+name+`"`)
	}
	for _, name := range []string{"b", "obj", "arr", "foo"} {
		assert.NotContains(t, out, `__bale.def(exports, "`+name+`"`)
	}
}

func TestDeclarators_StopAtNewline(t *testing.T) {
	out, err := lowerModule([]byte("export const a = 1\nlet b = 2\n"))
	require.NoError(t, err)
	assert.Contains(t, out, `__bale.def(exports, "a"`)
	assert.NotContains(t, out, `__bale.def(exports, "b"`)
}

func TestDefines(t *testing.T) {
	d := newDefineTable(map[string]string{
		"process.env.NODE_ENV": `"production"`,
		"DEBUG":                "false",
	})

	out, err := d.apply(`if (process.env.NODE_ENV !== "production") { log(x.process.env.NODE_ENV, { DEBUG: 1 }, DEBUG ? 1 : 2); }`)
	require.NoError(t, err)
	assert.Equal(t, `if ("production" !== "production") { log(x.process.env.NODE_ENV, { DEBUG: 1 }, false ? 1 : 2); }`, out)

	out, err = d.apply(`process.env.NODE_ENV = "test"; var s = "process.env.NODE_ENV";`)
	require.NoError(t, err)
	assert.Equal(t, `process.env.NODE_ENV = "test"; var s = "process.env.NODE_ENV";`, out, "assignment targets and strings are kept")

	out, err = d.apply(`process.env.NODE_ENV.length`)
	require.NoError(t, err)
	assert.Equal(t, `"production".length`, out)
}
