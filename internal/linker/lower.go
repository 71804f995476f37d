package linker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/syntax"
)

type edit struct {
	start, end int // token range [start, end)
	text       string
}

// lowering rewrites ES module syntax into calls on the wrapper's require,
// exports and __bale helpers.
type lowering struct {
	t        *syntax.Tree
	edits    []edit
	covered  []bool
	prologue []string
	esm      bool
	tmp      int
}

// lowerModule returns the body of a JS module's wrapper function.
func lowerModule(src []byte) (string, error) {
	tree, err := syntax.Parse(src, domain.LangJS)
	if err != nil {
		return "", err
	}
	l := &lowering{t: tree, covered: make([]bool, len(tree.Tokens))}

	for _, s := range syntax.Sites(tree) {
		spec := syntax.Quote(s.Import.Specifier)
		switch s.Import.Kind {
		case domain.ImportStatic:
			if err := l.importDecl(s, spec); err != nil {
				return "", err
			}
		case domain.ImportSideEffect:
			l.esm = true
			l.replace(s.Start, s.End, "require("+spec+");")
		case domain.ImportDynamic:
			l.replace(s.Start, s.End, "Promise.resolve().then(function () { return __bale.interop(require("+spec+")); })")
		case domain.ImportReexport:
			if err := l.reexport(s, spec); err != nil {
				return "", err
			}
		}
	}

	for i := tree.Next(-1); i >= 0; i = tree.Next(i) {
		if l.covered[i] || !tree.Tokens[i].Is("export") || tree.MemberAccess(i) {
			continue
		}
		if err := l.exportDecl(i); err != nil {
			return "", err
		}
	}

	return l.print(), nil
}

func (l *lowering) replace(start, end int, text string) {
	l.edits = append(l.edits, edit{start: start, end: end, text: text})
	for i := start; i < end && i < len(l.covered); i++ {
		l.covered[i] = true
	}
}

func (l *lowering) temp() string {
	l.tmp++
	return fmt.Sprintf("__bale_m%d", l.tmp)
}

func (l *lowering) define(name, getter string) {
	l.prologue = append(l.prologue,
		"__bale.def(exports, "+syntax.Quote(name)+", function () { return "+getter+"; });")
}

func (l *lowering) print() string {
	sort.Slice(l.edits, func(i, j int) bool { return l.edits[i].start < l.edits[j].start })

	var b strings.Builder
	if l.esm {
		b.WriteString("exports.__esModule = true;\n")
	}
	for _, line := range l.prologue {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	next := 0
	for i := 0; i < len(l.t.Tokens); {
		if next < len(l.edits) && l.edits[next].start == i {
			b.WriteString(l.edits[next].text)
			i = l.edits[next].end
			next++
			continue
		}
		b.WriteString(l.t.Tokens[i].Text)
		i++
	}
	return b.String()
}

// binding is one name of an import or export list: imported as local.
type binding struct {
	name  string
	local string
}

// bindingList reads "{ a, b as c, default as d }" starting at the brace.
// It returns the bindings and the index of the closing brace.
func (l *lowering) bindingList(open int) ([]binding, int, error) {
	t := l.t
	closing := t.Match(open)
	if closing < 0 {
		return nil, 0, fmt.Errorf("unclosed binding list at offset %d", t.Tokens[open].Offset)
	}
	var out []binding
	for j := t.Next(open); j >= 0 && j < closing; j = t.Next(j) {
		tok := t.Tokens[j]
		if tok.Is(",") {
			continue
		}
		name := tok.Text
		if tok.Kind == syntax.String {
			name = tok.Unquote()
		}
		b := binding{name: name, local: name}
		if k := t.Next(j); t.At(k).Is("as") {
			j = t.Next(k)
			b.local = t.At(j).Text
			if t.At(j).Kind == syntax.String {
				b.local = t.At(j).Unquote()
			}
		}
		out = append(out, b)
	}
	return out, closing, nil
}

// importDecl lowers import default, namespace and named imports.
func (l *lowering) importDecl(s syntax.Site, spec string) error {
	t := l.t
	l.esm = true

	var (
		def, ns string
		named   []binding
	)
	for j := t.Next(s.Start); j >= 0 && j < s.Spec; j = t.Next(j) {
		tok := t.Tokens[j]
		switch {
		case tok.Is("from") || tok.Is(","):
		case tok.Is("*"):
			j = t.Next(t.Next(j)) // skip "as"
			ns = t.At(j).Text
		case tok.Is("{"):
			list, closing, err := l.bindingList(j)
			if err != nil {
				return err
			}
			named = list
			j = closing
		case tok.Kind == syntax.Ident:
			def = tok.Text
		}
	}

	req := "require(" + spec + ")"
	if def == "" && len(named) == 0 {
		if ns == "" {
			l.replace(s.Start, s.End, req+";")
		} else {
			l.replace(s.Start, s.End, "var "+ns+" = "+req+";")
		}
		return nil
	}

	m := l.temp()
	parts := []string{m + " = " + req}
	if def != "" {
		parts = append(parts, def+" = __bale.interop("+m+")[\"default\"]")
	}
	if ns != "" {
		parts = append(parts, ns+" = "+m)
	}
	for _, b := range named {
		if b.name == "default" {
			parts = append(parts, b.local+" = __bale.interop("+m+")[\"default\"]")
			continue
		}
		parts = append(parts, b.local+" = "+m+"["+syntax.Quote(b.name)+"]")
	}
	l.replace(s.Start, s.End, "var "+strings.Join(parts, ", ")+";")
	return nil
}

// reexport lowers export * / export * as ns / export { ... } from.
func (l *lowering) reexport(s syntax.Site, spec string) error {
	t := l.t
	l.esm = true
	req := "require(" + spec + ")"
	n := t.Next(s.Start)

	if t.At(n).Is("*") {
		if as := t.Next(n); t.At(as).Is("as") {
			m := l.temp()
			name := t.At(t.Next(as)).Text
			l.replace(s.Start, s.End, "var "+m+" = "+req+"; __bale.def(exports, "+syntax.Quote(name)+", function () { return "+m+"; });")
			return nil
		}
		l.replace(s.Start, s.End, "__bale.star(exports, "+req+");")
		return nil
	}

	list, _, err := l.bindingList(n)
	if err != nil {
		return err
	}
	m := l.temp()
	var b strings.Builder
	b.WriteString("var " + m + " = " + req + ";")
	for _, bd := range list {
		getter := m + "[" + syntax.Quote(bd.name) + "]"
		if bd.name == "default" {
			getter = "__bale.interop(" + m + ")[\"default\"]"
		}
		b.WriteString(" __bale.def(exports, " + syntax.Quote(bd.local) + ", function () { return " + getter + "; });")
	}
	l.replace(s.Start, s.End, b.String())
	return nil
}

// exportDecl lowers an export keyword at i that has no from clause.
func (l *lowering) exportDecl(i int) error {
	t := l.t
	l.esm = true
	n := t.Next(i)
	next := t.At(n)

	switch {
	case next.Is("default"):
		k := t.Next(n)
		if name := declaredName(t, k); name != "" {
			l.replace(i, k, "")
			l.define("default", name)
			return nil
		}
		l.replace(i, k, "exports[\"default\"] = ")

	case next.Is("const") || next.Is("let") || next.Is("var"):
		l.replace(i, n, "")
		for _, name := range declarators(t, n) {
			l.define(name, name)
		}

	case next.Is("function") || next.Is("class") || next.Is("async"):
		name := declaredName(t, n)
		if name == "" {
			return fmt.Errorf("exported declaration without a name at offset %d", t.Tokens[i].Offset)
		}
		l.replace(i, n, "")
		l.define(name, name)

	case next.Is("{"):
		list, closing, err := l.bindingList(n)
		if err != nil {
			return err
		}
		end := closing + 1
		if semi := t.Next(closing); t.At(semi).Is(";") {
			end = semi + 1
		}
		l.replace(i, end, "")
		for _, b := range list {
			l.define(b.local, b.name)
		}

	default:
		return fmt.Errorf("unsupported export form %q at offset %d", next.Text, t.Tokens[i].Offset)
	}
	return nil
}

// declaredName returns the name of a function or class declaration at k,
// or "" for anonymous ones.
func declaredName(t *syntax.Tree, k int) string {
	if t.At(k).Is("async") {
		k = t.Next(k)
	}
	switch {
	case t.At(k).Is("function"):
		k = t.Next(k)
		if t.At(k).Is("*") {
			k = t.Next(k)
		}
	case t.At(k).Is("class"):
		k = t.Next(k)
	default:
		return ""
	}
	if tok := t.At(k); tok.Kind == syntax.Ident && tok.Text != "extends" {
		return tok.Text
	}
	return ""
}

// declarators lists the names bound by the var/let/const declaration whose
// keyword is at kw, including names inside destructuring patterns.
func declarators(t *syntax.Tree, kw int) []string {
	var names []string
	depth := 0
	binding := true
	prev := kw
	for j := t.Next(kw); j >= 0; prev, j = j, t.Next(j) {
		tok := t.Tokens[j]
		if depth == 0 && j != t.Next(kw) && endsStatement(t, prev, j) {
			break
		}
		switch {
		case tok.Is("(") || tok.Is("[") || tok.Is("{"):
			depth++
			continue
		case tok.Is(")") || tok.Is("]") || tok.Is("}"):
			depth--
			continue
		case tok.Is(",") && depth == 0:
			binding = true
			continue
		case tok.Is("="):
			if depth == 0 {
				binding = false
			}
			continue
		}
		if !binding || tok.Kind != syntax.Ident {
			continue
		}
		after := t.At(t.Next(j))
		if depth == 0 || after.Is(",") || after.Is("}") || after.Is("]") || after.Is("=") {
			names = append(names, tok.Text)
		}
	}
	return names
}

// endsStatement reports whether token j starts a new statement after prev.
func endsStatement(t *syntax.Tree, prev, j int) bool {
	if t.Tokens[j].Is(";") {
		return true
	}
	p := t.Tokens[prev]
	if p.Is(",") || p.Is("=") || p.Kind == syntax.Punct && p.Text != ")" && p.Text != "]" && p.Text != "}" {
		return false
	}
	for k := prev + 1; k < j; k++ {
		if strings.Contains(t.Tokens[k].Text, "\n") {
			return !t.Tokens[j].Is(",") && !t.Tokens[j].Is(".") && !t.Tokens[j].Is("=")
		}
	}
	return false
}
