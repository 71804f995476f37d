package ports

import (
	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/syntax"
)

// SyntaxExtractor parses a module source for the graph builder and plugins.
type SyntaxExtractor interface {
	// Extract returns the imports in source-declaration order and an editable
	// tree. The tree is nil for languages without syntax (JSON).
	Extract(source []byte, lang string) ([]domain.Import, *syntax.Tree, error)
}
