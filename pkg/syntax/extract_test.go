package syntax_test

import (
	"testing"

	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_ImportForms(t *testing.T) {
	src := []byte(`import def, { a as b } from './a';
import * as ns from "./b"
import './side.css';
export { x } from './c';
export * from './d';
const lazy = import('./e');
var legacy = require("./f.json");
export const local = 1;
`)
	imports, tree, err := syntax.NewExtractor().Extract(src, domain.LangJS)
	require.NoError(t, err)
	require.NotNil(t, tree)

	assert.Equal(t, []domain.Import{
		{Specifier: "./a", Kind: domain.ImportStatic},
		{Specifier: "./b", Kind: domain.ImportStatic},
		{Specifier: "./side.css", Kind: domain.ImportSideEffect},
		{Specifier: "./c", Kind: domain.ImportReexport},
		{Specifier: "./d", Kind: domain.ImportReexport},
		{Specifier: "./e", Kind: domain.ImportDynamic},
		{Specifier: "./f.json", Kind: domain.ImportRequire},
	}, imports)
}

func TestExtract_IgnoresCommentsAndStrings(t *testing.T) {
	src := []byte(`// import 'commented';
/* import x from "./block"; */
// import image from '../images/1.jpeg'
const s = "import y from './str'";
const tpl = ` + "`require('./tpl') ${ require('./inner') }`" + `;
obj.require('./member');
import.meta.url;
import real from './real';
`)
	imports, _, err := syntax.NewExtractor().Extract(src, domain.LangJS)
	require.NoError(t, err)

	specs := make([]string, 0, len(imports))
	for _, imp := range imports {
		specs = append(specs, imp.Specifier)
	}
	assert.Equal(t, []string{"./inner", "./real"}, specs, "substitutions are code, template text is not")
}

func TestExtract_OptionalMarker(t *testing.T) {
	src := []byte(`import a from /* @optional */ './maybe';
// @optional
import './polyfill';
import b from './required';
`)
	imports, _, err := syntax.NewExtractor().Extract(src, domain.LangJS)
	require.NoError(t, err)
	require.Len(t, imports, 3)
	assert.True(t, imports[0].Optional)
	assert.True(t, imports[1].Optional)
	assert.False(t, imports[2].Optional)
}

func TestExtract_NonJS(t *testing.T) {
	imports, tree, err := syntax.NewExtractor().Extract([]byte(`{"import": "./x"}`), domain.LangJSON)
	require.NoError(t, err)
	assert.Nil(t, imports)
	assert.Nil(t, tree)
}

func TestTokenize_Lossless(t *testing.T) {
	src := "let re = /[/]+\\//g; a = b / c;\nconst t = `x${ {y: '}'} }z`; // tail"
	tree, err := syntax.Parse([]byte(src), domain.LangJS)
	require.NoError(t, err)
	assert.Equal(t, src, string(tree.Bytes()))

	var kinds []syntax.Kind
	for _, tok := range tree.Tokens {
		if !tok.Trivia() {
			kinds = append(kinds, tok.Kind)
		}
	}
	assert.Contains(t, kinds, syntax.Regex)
	assert.Contains(t, kinds, syntax.Template)
}

func TestTokenize_RegexOrDivision(t *testing.T) {
	src := `if (ok) {
  run();
}
/ab+c/.test(s) && go();
function f() {}
/x/g.exec(s);
const o = {a: 1} / 2;
const t = ` + "`${ /y/.source }`" + `;
n = i++ / 2;
`
	tree, err := syntax.Parse([]byte(src), domain.LangJS)
	require.NoError(t, err)
	assert.Equal(t, src, string(tree.Bytes()))

	var regexes, divisions []string
	for _, tok := range tree.Tokens {
		switch {
		case tok.Kind == syntax.Regex:
			regexes = append(regexes, tok.Text)
		case tok.Is("/"):
			divisions = append(divisions, tok.Text)
		}
	}
	assert.Equal(t, []string{"/ab+c/", "/x/g", "/y/"}, regexes)
	assert.Len(t, divisions, 2, "object literal and postfix increment are followed by a division")
}

func TestTokenize_Errors(t *testing.T) {
	_, err := syntax.Tokenize([]byte(`const s = "unterminated`))
	var se *syntax.SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 10, se.Offset)

	_, err = syntax.Tokenize([]byte(`/* open`))
	assert.Error(t, err)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"a\"b\\c\n"`, syntax.Quote("a\"b\\c\n"))
}
