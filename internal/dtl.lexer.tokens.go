package internal

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType identifies the four token kinds the lexer produces.
type TokenType int

// Token type constants
const (
	TokenText TokenType = iota
	TokenVar
	TokenBlock
	TokenComment
)

// Token type names for debugging
const (
	TokenTypeNameText    = "Text"
	TokenTypeNameVar     = "Var"
	TokenTypeNameBlock   = "Block"
	TokenTypeNameComment = "Comment"
)

// String returns the string representation of the token type
func (t TokenType) String() string {
	switch t {
	case TokenVar:
		return TokenTypeNameVar
	case TokenBlock:
		return TokenTypeNameBlock
	case TokenComment:
		return TokenTypeNameComment
	default:
		return TokenTypeNameText
	}
}

// Span is a half-open byte range into the template source.
type Span struct {
	Start int
	End   int
}

// Token is one lexical unit of template source.
// Position is nil unless the lexer was asked to track positions.
type Token struct {
	Type     TokenType
	Contents string
	Position *Span
	Line     int
}

// String returns a human-readable representation of the token
func (t Token) String() string {
	contents := t.Contents
	if len(contents) > 20 {
		contents = contents[:20] + "..."
	}
	return fmt.Sprintf("<%s token: %q>", t.Type, strings.ReplaceAll(contents, "\n", ""))
}

// Command returns the first word of a block token, or "" when empty.
func (t Token) Command() string {
	fields := strings.Fields(t.Contents)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// SplitContents splits the token contents on whitespace, keeping quoted
// strings and _("...") translation literals together.
func (t Token) SplitContents() []string {
	bits := SmartSplit(t.Contents)
	split := make([]string, 0, len(bits))
	for i := 0; i < len(bits); i++ {
		bit := bits[i]
		if strings.HasPrefix(bit, `_("`) || strings.HasPrefix(bit, `_('`) {
			sentinel := bit[2:3] + TranslateClose
			parts := []string{bit}
			for !strings.HasSuffix(bit, sentinel) && i+1 < len(bits) {
				i++
				bit = bits[i]
				parts = append(parts, bit)
			}
			bit = strings.Join(parts, " ")
		}
		split = append(split, bit)
	}
	return split
}

// SmartSplit splits text on whitespace outside of quoted strings.
// Quotes are kept; backslash escapes inside quotes are honoured.
func SmartSplit(text string) []string {
	var bits []string
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		start := i
		for i < len(text) {
			r, size = utf8.DecodeRuneInString(text[i:])
			if unicode.IsSpace(r) {
				break
			}
			if r == '"' || r == '\'' {
				if end := closingQuote(text, i); end >= 0 {
					i = end + 1
					continue
				}
			}
			i += size
		}
		bits = append(bits, text[start:i])
	}
	return bits
}

// closingQuote returns the index of the quote closing the one at open, or -1.
func closingQuote(s string, open int) int {
	q := s[open]
	for j := open + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j
		}
	}
	return -1
}
