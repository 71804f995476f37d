package syntax

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// keywords after which a '/' starts a regular expression rather than a division.
var regexAfter = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// keywords after which a '{' opens an object literal rather than a block.
var objectAfter = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"yield": true, "await": true,
}

// SyntaxError reports a lexing failure at a byte offset.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Msg)
}

// Tokenize splits JavaScript source into tokens. Concatenating the token
// texts gives back src byte for byte.
func Tokenize(src []byte) ([]Token, error) {
	// the input appends a NUL terminator, so it gets its own buffer
	buf := make([]byte, len(src), len(src)+1)
	copy(buf, src)

	l := &lexer{js: js.NewLexer(parse.NewInputBytes(buf)), last: -1}
	for {
		tt, text := l.js.Next()
		if tt == js.ErrorToken {
			if err := l.js.Err(); !errors.Is(err, io.EOF) {
				return nil, l.fail(err)
			}
			return l.tokens, nil
		}
		if (tt == js.DivToken || tt == js.DivEqToken) && l.regexAllowed() {
			if tt, text = l.js.RegExp(); tt == js.ErrorToken {
				return nil, l.fail(l.js.Err())
			}
		}
		l.emit(tt, text)
	}
}

type lexer struct {
	js     *js.Lexer
	tokens []Token
	offset int
	// index of the last non-trivia token, -1 when none
	last int
	// one entry per open '{', true when it opened a block
	blocks []bool
	// the last non-trivia token is a '}' that closed a block
	closedBlock bool
}

func (l *lexer) emit(tt js.TokenType, text []byte) {
	tok := Token{Kind: kindOf(tt), Text: string(text), Offset: l.offset}
	l.offset += len(text)
	if tok.Trivia() {
		l.tokens = append(l.tokens, tok)
		return
	}

	closed := false
	switch tt {
	case js.OpenBraceToken:
		l.blocks = append(l.blocks, l.blockFollows())
	case js.CloseBraceToken:
		if n := len(l.blocks); n > 0 {
			closed = l.blocks[n-1]
			l.blocks = l.blocks[:n-1]
		}
	}
	l.closedBlock = closed
	l.tokens = append(l.tokens, tok)
	l.last = len(l.tokens) - 1
}

func (l *lexer) fail(err error) error {
	msg := "unexpected input"
	var perr *parse.Error
	switch {
	case errors.As(err, &perr):
		msg = perr.Message
	case err != nil:
		msg = err.Error()
	}
	return &SyntaxError{Offset: l.offset, Msg: msg}
}

// blockFollows reports whether a '{' at the current position opens a block.
// An expression-position '{' is an object literal.
func (l *lexer) blockFollows() bool {
	if l.last < 0 {
		return true
	}
	prev := l.tokens[l.last]
	switch prev.Kind {
	case Punct:
		switch prev.Text {
		case ";", "{", "}", ")", "=>":
			return true
		}
	case Ident:
		return !objectAfter[prev.Text]
	}
	return false
}

func (l *lexer) regexAllowed() bool {
	if l.last < 0 {
		return true
	}
	prev := l.tokens[l.last]
	switch prev.Kind {
	case Ident:
		return regexAfter[prev.Text]
	case Template:
		return strings.HasSuffix(prev.Text, "${")
	case Punct:
		switch prev.Text {
		case ")", "]", "++", "--":
			return false
		case "}":
			return l.closedBlock
		}
		return true
	}
	return false
}

func kindOf(tt js.TokenType) Kind {
	switch tt {
	case js.WhitespaceToken, js.LineTerminatorToken:
		return Space
	case js.CommentToken, js.CommentLineTerminatorToken:
		return Comment
	case js.StringToken:
		return String
	case js.TemplateToken, js.TemplateStartToken, js.TemplateMiddleToken, js.TemplateEndToken:
		return Template
	case js.RegExpToken:
		return Regex
	case js.PrivateIdentifierToken:
		return Ident
	}
	switch {
	case js.IsNumeric(tt):
		return Number
	case js.IsIdentifierName(tt):
		return Ident
	}
	return Punct
}
