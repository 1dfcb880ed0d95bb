package internal

import "strings"

// SafeString is text that must not be escaped again on output.
type SafeString string

// String returns the underlying text
func (s SafeString) String() string { return string(s) }

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// Escape HTML-escapes the string form of v, even if it is already safe.
func Escape(v any) SafeString {
	return SafeString(htmlEscaper.Replace(ToString(v)))
}

// ConditionalEscape escapes v unless it is already marked safe.
func ConditionalEscape(v any) SafeString {
	if s, ok := v.(SafeString); ok {
		return s
	}
	return Escape(v)
}

// MarkSafe marks the string form of v as safe for output.
func MarkSafe(v any) SafeString {
	if s, ok := v.(SafeString); ok {
		return s
	}
	return SafeString(ToString(v))
}

// IsSafe reports whether v has been marked safe.
func IsSafe(v any) bool {
	_, ok := v.(SafeString)
	return ok
}
