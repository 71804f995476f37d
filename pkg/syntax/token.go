package syntax

import "strings"

// Kind classifies a token.
type Kind int

const (
	Space    Kind = iota // whitespace and line terminators
	Comment              // line or block comment
	Ident                // identifiers and keywords
	String               // single or double quoted string literal
	Template             // template literal piece; substitution code is lexed as usual
	Number               // numeric literal
	Regex                // regular expression literal
	Punct                // operators and punctuation
)

func (k Kind) String() string {
	switch k {
	case Space:
		return "space"
	case Comment:
		return "comment"
	case Ident:
		return "ident"
	case String:
		return "string"
	case Template:
		return "template"
	case Number:
		return "number"
	case Regex:
		return "regex"
	case Punct:
		return "punct"
	}
	return "unknown"
}

// Token is one lexeme with its byte offset in the original source.
type Token struct {
	Kind   Kind
	Text   string
	Offset int
}

// Trivia reports whether the token carries no syntax (space or comment).
func (t Token) Trivia() bool { return t.Kind == Space || t.Kind == Comment }

// Is reports whether the token is the identifier or punctuator s.
func (t Token) Is(s string) bool {
	return (t.Kind == Ident || t.Kind == Punct) && t.Text == s
}

// Unquote returns the value of a String token without its quotes.
// Escapes other than \' \" and \\ are kept verbatim.
func (t Token) Unquote() string {
	if t.Kind != String || len(t.Text) < 2 {
		return t.Text
	}
	body := t.Text[1 : len(t.Text)-1]
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			switch n := body[i+1]; n {
			case '\'', '"', '\\':
				b.WriteByte(n)
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Quote renders s as a double quoted JS string literal.
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\u2028':
			b.WriteString(`\u2028`)
		case '\u2029':
			b.WriteString(`\u2029`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
