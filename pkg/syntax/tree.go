package syntax

import "bytes"

// Tree is the editable representation of one module handed to plugins.
type Tree struct {
	Lang   string
	Tokens []Token
}

// Parse tokenizes src into a Tree.
func Parse(src []byte, lang string) (*Tree, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	return &Tree{Lang: lang, Tokens: toks}, nil
}

// Bytes prints the tree back to source.
func (t *Tree) Bytes() []byte {
	var buf bytes.Buffer
	for _, tok := range t.Tokens {
		buf.WriteString(tok.Text)
	}
	return buf.Bytes()
}

// Clone returns a deep copy that can be edited independently.
func (t *Tree) Clone() *Tree {
	return &Tree{Lang: t.Lang, Tokens: append([]Token(nil), t.Tokens...)}
}

// Next returns the index of the first non-trivia token after i, or -1.
func (t *Tree) Next(i int) int {
	for j := i + 1; j < len(t.Tokens); j++ {
		if !t.Tokens[j].Trivia() {
			return j
		}
	}
	return -1
}

// Prev returns the index of the last non-trivia token before i, or -1.
func (t *Tree) Prev(i int) int {
	for j := i - 1; j >= 0; j-- {
		if !t.Tokens[j].Trivia() {
			return j
		}
	}
	return -1
}

// At returns the token at i, or the zero Token when i is out of range.
func (t *Tree) At(i int) Token {
	if i < 0 || i >= len(t.Tokens) {
		return Token{}
	}
	return t.Tokens[i]
}

// Match returns the index of the bracket closing the one at i, or -1.
func (t *Tree) Match(i int) int {
	open := t.Tokens[i].Text
	var closing string
	switch open {
	case "(":
		closing = ")"
	case "[":
		closing = "]"
	case "{":
		closing = "}"
	default:
		return -1
	}
	depth := 0
	for j := i; j < len(t.Tokens); j++ {
		tok := t.Tokens[j]
		if tok.Kind != Punct {
			continue
		}
		switch tok.Text {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// MemberAccess reports whether the token at i follows a '.' or '?.',
// as in obj.require or obj?.import.
func (t *Tree) MemberAccess(i int) bool {
	p := t.At(t.Prev(i))
	return p.Is(".") || p.Is("?.")
}
