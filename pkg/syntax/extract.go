package syntax

import (
	"strings"

	"github.com/aretw0/bale/pkg/domain"
)

// OptionalMarker flags an import whose failed resolution is not an error.
const OptionalMarker = "@optional"

// Site locates one import in a Tree.
//
// Start is the token index of the keyword (import, export or require), Spec
// the index of the specifier string and End the index one past the statement,
// including a trailing semicolon when there is one.
type Site struct {
	Import domain.Import
	Start  int
	Spec   int
	End    int
}

// Extractor is the default ports.SyntaxExtractor.
type Extractor struct{}

// NewExtractor returns the token based extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Extract lists the imports of a module in source order and returns an
// editable tree. JSON and unknown languages have no imports and no tree.
func (e *Extractor) Extract(source []byte, lang string) ([]domain.Import, *Tree, error) {
	if lang != domain.LangJS {
		return nil, nil, nil
	}
	tree, err := Parse(source, lang)
	if err != nil {
		return nil, nil, err
	}
	sites := Sites(tree)
	imports := make([]domain.Import, len(sites))
	for i, s := range sites {
		imports[i] = s.Import
	}
	return imports, tree, nil
}

// Sites finds every import, require and re-export in the tree.
func Sites(t *Tree) []Site {
	var sites []Site
	for i := t.Next(-1); i >= 0; i = t.Next(i) {
		tok := t.Tokens[i]
		if tok.Kind != Ident || t.MemberAccess(i) {
			continue
		}
		var (
			site Site
			ok   bool
		)
		switch tok.Text {
		case "import":
			site, ok = importSite(t, i)
		case "export":
			site, ok = reexportSite(t, i)
		case "require":
			site, ok = callSite(t, i, domain.ImportRequire)
		}
		if !ok {
			continue
		}
		site.Import.Optional = optional(t, site.Start, site.Spec)
		sites = append(sites, site)
		i = site.End - 1
	}
	return sites
}

func importSite(t *Tree, i int) (Site, bool) {
	n := t.Next(i)
	switch next := t.At(n); {
	case next.Is("("):
		return callSite(t, i, domain.ImportDynamic)
	case next.Is("."):
		return Site{}, false // import.meta
	case next.Kind == String:
		return statement(t, i, n, domain.ImportSideEffect), true
	}
	for j := n; j >= 0; j = t.Next(j) {
		tok := t.Tokens[j]
		if tok.Is(";") || tok.Kind == String {
			return Site{}, false
		}
		if tok.Is("{") {
			if j = t.Match(j); j < 0 {
				return Site{}, false
			}
			continue
		}
		if tok.Is("from") {
			if s := t.Next(j); t.At(s).Kind == String {
				return statement(t, i, s, domain.ImportStatic), true
			}
			return Site{}, false
		}
	}
	return Site{}, false
}

func reexportSite(t *Tree, i int) (Site, bool) {
	n := t.Next(i)
	j := n
	switch next := t.At(n); {
	case next.Is("*"):
		j = t.Next(n)
		if t.At(j).Is("as") {
			j = t.Next(t.Next(j))
		}
	case next.Is("{"):
		if j = t.Match(n); j < 0 {
			return Site{}, false
		}
		j = t.Next(j)
	default:
		return Site{}, false
	}
	if !t.At(j).Is("from") {
		return Site{}, false
	}
	s := t.Next(j)
	if t.At(s).Kind != String {
		return Site{}, false
	}
	return statement(t, i, s, domain.ImportReexport), true
}

// callSite matches keyword("literal").
func callSite(t *Tree, i int, kind domain.ImportKind) (Site, bool) {
	open := t.Next(i)
	spec := t.Next(open)
	closing := t.Next(spec)
	if !t.At(open).Is("(") || t.At(spec).Kind != String || !t.At(closing).Is(")") {
		return Site{}, false
	}
	return Site{
		Import: domain.Import{Specifier: t.Tokens[spec].Unquote(), Kind: kind},
		Start:  i,
		Spec:   spec,
		End:    closing + 1,
	}, true
}

func statement(t *Tree, start, spec int, kind domain.ImportKind) Site {
	end := spec + 1
	if semi := t.Next(spec); t.At(semi).Is(";") {
		end = semi + 1
	}
	return Site{
		Import: domain.Import{Specifier: t.Tokens[spec].Unquote(), Kind: kind},
		Start:  start,
		Spec:   spec,
		End:    end,
	}
}

// optional looks for the marker in comments right before the statement or
// anywhere between its keyword and its specifier.
func optional(t *Tree, start, spec int) bool {
	for j := start - 1; j >= 0 && t.Tokens[j].Trivia(); j-- {
		if t.Tokens[j].Kind == Comment && strings.Contains(t.Tokens[j].Text, OptionalMarker) {
			return true
		}
	}
	for j := start; j < spec; j++ {
		if t.Tokens[j].Kind == Comment && strings.Contains(t.Tokens[j].Text, OptionalMarker) {
			return true
		}
	}
	return false
}
