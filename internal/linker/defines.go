package linker

import (
	"sort"
	"strings"

	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/syntax"
)

// defineTable holds compile-time replacements keyed by dotted path
// ("process.env.NODE_ENV"). Values are JS source text.
type defineTable struct {
	paths  map[string]string
	maxLen int
}

func newDefineTable(defines map[string]string) *defineTable {
	d := &defineTable{paths: make(map[string]string, len(defines))}
	for k, v := range defines {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		d.paths[k] = v
		if n := strings.Count(k, ".") + 1; n > d.maxLen {
			d.maxLen = n
		}
	}
	return d
}

// apply substitutes every free occurrence of a defined path in code.
// Property names (a.NODE_ENV), object keys and assignment targets are left alone.
func (d *defineTable) apply(code string) (string, error) {
	if len(d.paths) == 0 {
		return code, nil
	}
	t, err := syntax.Parse([]byte(code), domain.LangJS)
	if err != nil {
		return "", err
	}

	type hit struct {
		start, end int
		value      string
	}
	var hits []hit
	for i := t.Next(-1); i >= 0; i = t.Next(i) {
		if t.Tokens[i].Kind != syntax.Ident || t.MemberAccess(i) {
			continue
		}
		end, value, ok := d.match(t, i)
		if !ok {
			continue
		}
		after := t.At(t.Next(end))
		if after.Is("=") {
			continue
		}
		if after.Is(":") && end == i {
			if p := t.At(t.Prev(i)); p.Is("{") || p.Is(",") {
				continue
			}
		}
		hits = append(hits, hit{start: i, end: end, value: value})
		i = end
	}
	if len(hits) == 0 {
		return code, nil
	}
	sort.Slice(hits, func(a, b int) bool { return hits[a].start < hits[b].start })

	var b strings.Builder
	next := 0
	for i := 0; i < len(t.Tokens); i++ {
		if next < len(hits) && hits[next].start == i {
			b.WriteString(hits[next].value)
			i = hits[next].end
			next++
			continue
		}
		b.WriteString(t.Tokens[i].Text)
	}
	return b.String(), nil
}

// match finds the longest defined path starting at token i and returns the
// index of its last token.
func (d *defineTable) match(t *syntax.Tree, i int) (int, string, bool) {
	parts := []string{t.Tokens[i].Text}
	ends := []int{i}
	j := i
	for len(parts) < d.maxLen {
		dot := t.Next(j)
		if !t.At(dot).Is(".") {
			break
		}
		name := t.Next(dot)
		if t.At(name).Kind != syntax.Ident {
			break
		}
		parts = append(parts, t.Tokens[name].Text)
		ends = append(ends, name)
		j = name
	}
	for n := len(parts); n > 0; n-- {
		if v, ok := d.paths[strings.Join(parts[:n], ".")]; ok {
			return ends[n-1], v, true
		}
	}
	return 0, "", false
}
