package internal

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Builtin filter names
const (
	FilterNameAdd           = "add"
	FilterNameAddSlashes    = "addslashes"
	FilterNameCapFirst      = "capfirst"
	FilterNameCut           = "cut"
	FilterNameDate          = "date"
	FilterNameTime          = "time"
	FilterNameDefault       = "default"
	FilterNameDefaultIfNone = "default_if_none"
	FilterNameDivisibleBy   = "divisibleby"
	FilterNameEscape        = "escape"
	FilterNameForceEscape   = "force_escape"
	FilterNameFirst         = "first"
	FilterNameLast          = "last"
	FilterNameFloatFormat   = "floatformat"
	FilterNameJoin          = "join"
	FilterNameLength        = "length"
	FilterNameLinebreaksBR  = "linebreaksbr"
	FilterNameLower         = "lower"
	FilterNameUpper         = "upper"
	FilterNameTitle         = "title"
	FilterNameMakeList      = "make_list"
	FilterNamePluralize     = "pluralize"
	FilterNameSafe          = "safe"
	FilterNameSlice         = "slice"
	FilterNameSlugify       = "slugify"
	FilterNameStringFormat  = "stringformat"
	FilterNameStripTags     = "striptags"
	FilterNameTruncateChars = "truncatechars"
	FilterNameTruncateWords = "truncatewords"
	FilterNameURLEncode     = "urlencode"
	FilterNameWordCount     = "wordcount"
	FilterNameYesNo         = "yesno"
	FilterNameMarkdown      = "markdown"
)

// Filter defaults and markers
const (
	defaultPluralSuffix  = "s"
	defaultYesNo         = "yes,no,maybe"
	defaultFloatFormat   = "-1"
	defaultURLSafe       = "/"
	truncationMarker     = "…"
	floatFormatGrouping  = 'g'
	floatFormatUnlocal   = 'u'
	urlAlwaysSafe        = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_.-~"
	upperHex             = "0123456789ABCDEF"
	ErrMsgDivisionByZero = "integer division or modulo by zero"
)

var (
	titleApostrophe   = regexp.MustCompile(`([a-z])'([A-Z])`)
	titleDigitUpper   = regexp.MustCompile(`\d([A-Z])`)
	slugInvalidChars  = regexp.MustCompile(`[^\w\s-]`)
	slugSeparators    = regexp.MustCompile(`[-\s]+`)
	stringFormatSpec  = regexp.MustCompile(`^[-+ #0]*\d*(?:\.\d+)?[diouxXeEfFgGcrs]$`)
	markdownConverter = goldmark.New()
)

func newDefaultFilters() *Library {
	lib := NewLibrary(nil)
	registerStringFilters(lib)
	registerNumberFilters(lib)
	registerListFilters(lib)
	registerDateFilters(lib)
	registerLogicFilters(lib)
	return lib
}

// registerStringFilters registers text manipulation filters
func registerStringFilters(lib *Library) {
	// addslashes(value string) string
	lib.MustRegisterFilter(FilterNameAddSlashes, func(value string) string {
		return strings.NewReplacer(`\`, `\\`, `"`, `\"`, `'`, `\'`).Replace(value)
	}, FilterIsSafe())

	// capfirst(value string) string
	lib.MustRegisterFilter(FilterNameCapFirst, capitalize, FilterIsSafe())

	// cut(value, arg) removes every occurrence of arg
	lib.MustRegisterFilter(FilterNameCut, func(value any, arg string) any {
		out := strings.ReplaceAll(ToString(value), arg, "")
		if IsSafe(value) && arg != ";" {
			return SafeString(out)
		}
		return out
	})

	// escape(value) escapes unless already safe
	lib.MustRegisterFilter(FilterNameEscape, func(value any) SafeString {
		return ConditionalEscape(value)
	}, FilterIsSafe())

	// force_escape(value) escapes unconditionally
	lib.MustRegisterFilter(FilterNameForceEscape, func(value any) SafeString {
		return Escape(value)
	}, FilterIsSafe())

	// linebreaksbr(value) turns newlines into <br>
	lib.MustRegisterFilter(FilterNameLinebreaksBR, func(value any, autoescape bool) SafeString {
		s := normalizeNewlines(ToString(value))
		if autoescape && !IsSafe(value) {
			s = string(Escape(s))
		}
		return SafeString(strings.ReplaceAll(s, "\n", "<br>"))
	}, FilterIsSafe(), FilterNeedsAutoescape())

	lib.MustRegisterFilter(FilterNameLower, strings.ToLower, FilterIsSafe())
	lib.MustRegisterFilter(FilterNameUpper, strings.ToUpper)
	lib.MustRegisterFilter(FilterNameTitle, title, FilterIsSafe())

	// safe(value) marks value as not needing escaping
	lib.MustRegisterFilter(FilterNameSafe, func(value any) SafeString {
		return MarkSafe(value)
	}, FilterIsSafe())

	lib.MustRegisterFilter(FilterNameSlugify, slugify, FilterIsSafe())
	lib.MustRegisterFilter(FilterNameStringFormat, stringFormat, FilterIsSafe())
	lib.MustRegisterFilter(FilterNameStripTags, stripTags, FilterIsSafe())

	// truncatechars(value string, length) string
	lib.MustRegisterFilter(FilterNameTruncateChars, func(value string, arg any) string {
		length, err := ToInt(arg)
		if err != nil {
			return value
		}
		return truncateChars(value, length)
	}, FilterIsSafe())

	// truncatewords(value string, length) string
	lib.MustRegisterFilter(FilterNameTruncateWords, func(value string, arg any) string {
		length, err := ToInt(arg)
		if err != nil {
			return value
		}
		return truncateWords(value, length)
	}, FilterIsSafe())

	lib.MustRegisterFilter(FilterNameURLEncode, urlEncode, FilterDefaults(nil))

	// wordcount(value string) int
	lib.MustRegisterFilter(FilterNameWordCount, func(value string) int {
		return len(strings.Fields(value))
	})

	// markdown(value string) renders CommonMark; raw HTML in the source is omitted
	lib.MustRegisterFilter(FilterNameMarkdown, func(value string) (SafeString, error) {
		var buf bytes.Buffer
		if err := markdownConverter.Convert([]byte(value), &buf); err != nil {
			return "", err
		}
		return SafeString(buf.String()), nil
	})
}

// registerNumberFilters registers arithmetic and number formatting filters
func registerNumberFilters(lib *Library) {
	lib.MustRegisterFilter(FilterNameAdd, add)

	// divisibleby(value, arg) bool
	lib.MustRegisterFilter(FilterNameDivisibleBy, func(value, arg any) (bool, error) {
		v, err := ToInt(value)
		if err != nil {
			return false, err
		}
		d, err := ToInt(arg)
		if err != nil {
			return false, err
		}
		if d == 0 {
			return false, errors.New(ErrMsgDivisionByZero)
		}
		return v%d == 0, nil
	})

	lib.MustRegisterFilter(FilterNameFloatFormat, floatFormat, FilterIsSafe(), FilterDefaults(defaultFloatFormat))

	// pluralize(value, arg) returns the singular or plural suffix
	lib.MustRegisterFilter(FilterNamePluralize, pluralize, FilterDefaults(defaultPluralSuffix))
}

// registerListFilters registers sequence filters
func registerListFilters(lib *Library) {
	// first(value) returns the first item, or ""
	lib.MustRegisterFilter(FilterNameFirst, func(value any) (any, error) {
		items, err := Iterate(value)
		if err != nil || len(items) == 0 {
			return "", err
		}
		return items[0], nil
	})

	// last(value) returns the last item, or ""
	lib.MustRegisterFilter(FilterNameLast, func(value any) (any, error) {
		items, err := Iterate(value)
		if err != nil || len(items) == 0 {
			return "", err
		}
		return items[len(items)-1], nil
	})

	lib.MustRegisterFilter(FilterNameJoin, join, FilterIsSafe(), FilterNeedsAutoescape())

	// length(value) int, 0 for values without a length
	lib.MustRegisterFilter(FilterNameLength, func(value any) int {
		n, _ := Length(value)
		return n
	})

	// make_list(value) splits the string form of value into characters
	lib.MustRegisterFilter(FilterNameMakeList, func(value any) []any {
		return stringChars(ToString(value))
	})

	lib.MustRegisterFilter(FilterNameSlice, sliceFilter, FilterIsSafe())
}

// registerDateFilters registers time formatting filters
func registerDateFilters(lib *Library) {
	// date(value time.Time, format string) string
	lib.MustRegisterFilter(FilterNameDate, func(value any, format string) string {
		t, ok := asTime(value)
		if !ok {
			return ""
		}
		return DateFormat(t, namedDateFormat(format))
	}, FilterExpectsLocaltime(), FilterDefaults(""))

	// time(value time.Time, format string) string
	lib.MustRegisterFilter(FilterNameTime, func(value any, format string) string {
		t, ok := asTime(value)
		if !ok {
			return ""
		}
		if format == "" {
			format = DefaultTimeFormat
		}
		return DateFormat(t, namedDateFormat(format))
	}, FilterExpectsLocaltime(), FilterDefaults(""))
}

// registerLogicFilters registers filters choosing between values
func registerLogicFilters(lib *Library) {
	// default(value, arg) returns arg when value is falsy
	lib.MustRegisterFilter(FilterNameDefault, func(value, arg any) any {
		if IsTruthy(value) {
			return value
		}
		return arg
	})

	// default_if_none(value, arg) returns arg when value is None
	lib.MustRegisterFilter(FilterNameDefaultIfNone, func(value, arg any) any {
		if value == nil {
			return arg
		}
		return value
	})

	lib.MustRegisterFilter(FilterNameYesNo, yesNo, FilterDefaults(defaultYesNo))
}

func asTime(value any) (time.Time, bool) {
	switch t := value.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	}
	return time.Time{}, false
}

func normalizeNewlines(s string) string {
	return strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(s)
}

// title capitalises each word, keeping letters after an apostrophe or a
// digit lower case.
func title(value string) string {
	t := cases.Title(language.Und).String(value)
	t = titleApostrophe.ReplaceAllStringFunc(t, strings.ToLower)
	return titleDigitUpper.ReplaceAllStringFunc(t, strings.ToLower)
}

// slugify folds value to ASCII, drops everything but word characters,
// spaces and hyphens, and joins the words with hyphens.
func slugify(value string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	ascii, _, err := transform.String(fold, value)
	if err != nil {
		ascii = value
	}
	ascii = slugInvalidChars.ReplaceAllString(strings.ToLower(ascii), "")
	return strings.Trim(slugSeparators.ReplaceAllString(ascii, "-"), "-_")
}

// stringFormat applies a printf-style conversion such as "03d" or ".2f".
// Values that do not fit the conversion format as "".
func stringFormat(value any, arg string) string {
	if !stringFormatSpec.MatchString(arg) {
		return ""
	}
	verb := arg[len(arg)-1]
	flags := arg[:len(arg)-1]
	switch verb {
	case 'd', 'i', 'u', 'o', 'x', 'X', 'c':
		n, ok := toNumber(value)
		if b, isBool := value.(bool); isBool {
			n, ok = 0, true
			if b {
				n = 1
			}
		}
		if !ok {
			return ""
		}
		if verb == 'i' || verb == 'u' {
			verb = 'd'
		}
		return fmt.Sprintf("%"+flags+string(verb), int64(n))
	case 'e', 'E', 'f', 'F', 'g', 'G':
		n, ok := toNumber(value)
		if !ok {
			return ""
		}
		if verb == 'F' {
			verb = 'f'
		}
		return fmt.Sprintf("%"+flags+string(verb), n)
	case 'r':
		if s, ok := stringValue(value); ok {
			return fmt.Sprintf("%"+flags+"s", "'"+s+"'")
		}
	}
	return fmt.Sprintf("%"+flags+"s", ToString(value))
}

// stripTags drops markup and comments, keeping text and entities as written.
func stripTags(value string) string {
	z := html.NewTokenizer(strings.NewReader(value))
	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			sb.Write(z.Raw())
		}
	}
}

// truncateChars shortens value to length characters including the
// trailing ellipsis. Combining marks do not count.
func truncateChars(value string, length int) string {
	if length <= 0 {
		return ""
	}
	text := norm.NFC.String(value)
	truncateLen := length - utf8.RuneCountInString(truncationMarker)
	count := 0
	end := -1
	for i, r := range text {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		count++
		if end < 0 && count > truncateLen {
			end = i
		}
		if count > length {
			return text[:max(end, 0)] + truncationMarker
		}
	}
	return text
}

// truncateWords keeps the first length words, normalising whitespace.
func truncateWords(value string, length int) string {
	if length <= 0 {
		return ""
	}
	words := strings.Fields(value)
	if len(words) <= length {
		return strings.Join(words, " ")
	}
	text := strings.Join(words[:length], " ")
	marker := " " + truncationMarker
	if strings.HasSuffix(text, marker) {
		return text
	}
	return text + marker
}

// urlEncode percent-encodes value as UTF-8, leaving unreserved characters
// and those in safe untouched. A nil safe means "/".
func urlEncode(value string, safe any) string {
	keep := defaultURLSafe
	if safe != nil {
		keep = ToString(safe)
	}
	var sb strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c < utf8.RuneSelf && (strings.IndexByte(urlAlwaysSafe, c) >= 0 || strings.IndexByte(keep, c) >= 0) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(upperHex[c>>4])
		sb.WriteByte(upperHex[c&0x0f])
	}
	return sb.String()
}

// add sums integers, or concatenates strings and sequences. Anything else
// gives "".
func add(value, arg any) any {
	a, errA := ToInt(value)
	b, errB := ToInt(arg)
	if errA == nil && errB == nil {
		return a + b
	}
	sa, okA := stringValue(value)
	sb, okB := stringValue(arg)
	if okA && okB {
		if IsSafe(value) && IsSafe(arg) {
			return SafeString(sa + sb)
		}
		return sa + sb
	}
	if isSequence(value) && isSequence(arg) {
		left, _ := Iterate(value)
		right, _ := Iterate(arg)
		return append(append([]any{}, left...), right...)
	}
	if fa, ok := toNumber(value); ok {
		if fb, ok := toNumber(arg); ok {
			return fa + fb
		}
	}
	return ""
}

func isSequence(v any) bool {
	if _, ok := stringValue(v); ok || v == nil {
		return false
	}
	_, ok := Length(v)
	if !ok {
		return false
	}
	_, isMap := mapLike(v)
	return !isMap
}

// floatFormat rounds text to arg decimal places, half away from zero.
// A negative arg shows decimals only when the value is not whole; a
// trailing "g" groups thousands.
func floatFormat(text any, arg string) any {
	grouping := false
	for len(arg) > 0 && (arg[len(arg)-1] == floatFormatGrouping || arg[len(arg)-1] == floatFormatUnlocal) {
		grouping = grouping || arg[len(arg)-1] == floatFormatGrouping
		arg = arg[:len(arg)-1]
	}
	if arg == "" {
		arg = defaultFloatFormat
	}

	input := strings.TrimSpace(ToString(text))
	d, ok := new(big.Rat).SetString(input)
	if !ok {
		f, err := ToFloat(text)
		if err != nil {
			return ""
		}
		if d, ok = new(big.Rat).SetString(formatFloat(f)); !ok {
			return ""
		}
	}
	p, err := strconv.Atoi(arg)
	if err != nil {
		return input
	}

	places := p
	if d.IsInt() && p <= 0 {
		places = 0
	} else if places < 0 {
		places = -places
	}
	out := d.FloatString(places)
	if strings.HasPrefix(out, "-") && strings.Trim(out, "-0.") == "" {
		out = out[1:]
	}
	if grouping {
		if f, err := strconv.ParseFloat(out, FloatBitSize64); err == nil {
			out = message.NewPrinter(language.English).Sprint(number.Decimal(f, number.Scale(places)))
		}
	}
	return SafeString(out)
}

// pluralize picks the suffix from "plural" or "singular,plural". Numbers
// are compared with 1; other values use their length.
func pluralize(value any, arg string) string {
	if !strings.Contains(arg, ",") {
		arg = "," + arg
	}
	bits := strings.Split(arg, ",")
	if len(bits) > 2 {
		return ""
	}
	singular, plural := bits[0], bits[1]
	if s, ok := stringValue(value); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), FloatBitSize64)
		if err != nil {
			return ""
		}
		if f == 1 {
			return singular
		}
		return plural
	}
	if f, ok := toNumber(value); ok {
		if f == 1 {
			return singular
		}
		return plural
	}
	if n, ok := Length(value); ok {
		if n == 1 {
			return singular
		}
		return plural
	}
	return ""
}

// join concatenates the items of value with arg, escaping both when
// autoescape is on. Non-sequences are returned unchanged.
func join(value, arg any, autoescape bool) any {
	items, err := Iterate(value)
	if err != nil || isMapValue(value) {
		return value
	}
	parts := make([]string, len(items))
	sep := ToString(arg)
	if autoescape {
		sep = string(ConditionalEscape(arg))
	}
	for i, item := range items {
		if autoescape {
			parts[i] = string(ConditionalEscape(item))
		} else {
			parts[i] = ToString(item)
		}
	}
	return SafeString(strings.Join(parts, sep))
}

func isMapValue(v any) bool {
	_, ok := mapLike(v)
	return ok
}

// sliceFilter applies a "start:stop:step" slice to strings and sequences.
// Malformed slices return value unchanged.
func sliceFilter(value any, arg string) any {
	bits := strings.Split(arg, ":")
	if len(bits) > 3 {
		return value
	}
	bounds := make([]*int, 3)
	for i, b := range bits {
		if b == "" {
			continue
		}
		n, err := strconv.Atoi(b)
		if err != nil {
			return value
		}
		bounds[i] = &n
	}
	if len(bits) == 1 {
		bounds[0], bounds[1] = nil, bounds[0]
	}
	if bounds[2] != nil && *bounds[2] == 0 {
		return value
	}

	if s, ok := stringValue(value); ok {
		chars := []rune(s)
		var sb strings.Builder
		for _, i := range sliceIndices(len(chars), bounds[0], bounds[1], bounds[2]) {
			sb.WriteRune(chars[i])
		}
		if IsSafe(value) {
			return SafeString(sb.String())
		}
		return sb.String()
	}
	if isMapValue(value) {
		return value
	}
	items, err := Iterate(value)
	if err != nil {
		return value
	}
	idx := sliceIndices(len(items), bounds[0], bounds[1], bounds[2])
	out := make([]any, len(idx))
	for j, i := range idx {
		out[j] = items[i]
	}
	return out
}

// sliceIndices lists the indexes a slice with the given optional bounds
// selects from a sequence of length items. Negative bounds count from the
// end and out-of-range bounds are clamped.
func sliceIndices(length int, start, stop, step *int) []int {
	st := 1
	if step != nil {
		st = *step
	}
	adjust := func(p *int, def int) int {
		if p == nil {
			return def
		}
		v := *p
		if v < 0 {
			v += length
			if v < 0 {
				if st < 0 {
					return -1
				}
				return 0
			}
			return v
		}
		if v >= length {
			if st < 0 {
				return length - 1
			}
			return length
		}
		return v
	}
	var from, to int
	if st > 0 {
		from, to = adjust(start, 0), adjust(stop, length)
	} else {
		from, to = adjust(start, length-1), adjust(stop, -1)
	}
	var idx []int
	for i := from; (st > 0 && i < to) || (st < 0 && i > to); i += st {
		idx = append(idx, i)
	}
	return idx
}

// yesNo maps true, false and None to the words of arg. With only two
// words None maps to the second.
func yesNo(value any, arg string) any {
	bits := strings.Split(arg, ",")
	if len(bits) < 2 {
		return value
	}
	yes, no, maybe := bits[0], bits[1], bits[1]
	if len(bits) == 3 {
		maybe = bits[2]
	}
	switch {
	case value == nil:
		return maybe
	case IsTruthy(value):
		return yes
	}
	return no
}
