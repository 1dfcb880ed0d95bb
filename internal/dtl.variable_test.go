package internal

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testUser struct {
	FirstName string
	Email     string `dtl:"mail"`
	age       int
}

func (u testUser) Greeting() string { return "hi " + u.FirstName }

type lookupMap struct{}

func (lookupMap) TemplateLookup(key string) (any, bool) {
	if key == "answer" {
		return 42, true
	}
	return nil, false
}

func TestNewVariable_Literals(t *testing.T) {
	tests := []struct {
		raw       string
		literal   any
		translate bool
	}{
		{raw: "42", literal: 42},
		{raw: "-3", literal: -3},
		{raw: "1.5", literal: 1.5},
		{raw: "2e3", literal: 2000.0},
		{raw: `"hello"`, literal: SafeString("hello")},
		{raw: `'it\'s'`, literal: SafeString("it's")},
		{raw: `"a\\b"`, literal: SafeString(`a\b`)},
		{raw: `_("hello")`, literal: SafeString("hello"), translate: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := NewVariable(tt.raw)
			require.NoError(t, err)
			lit, ok := v.Literal()
			require.True(t, ok)
			assert.Equal(t, tt.literal, lit)
			assert.Equal(t, tt.translate, v.Translate())
			assert.Nil(t, v.Lookups())
			assert.Equal(t, tt.raw, v.String())
		})
	}
}

func TestNewVariable_Lookups(t *testing.T) {
	v, err := NewVariable("user.profile.0")
	require.NoError(t, err)
	_, ok := v.Literal()
	assert.False(t, ok)
	assert.Equal(t, []string{"user", "profile", "0"}, v.Lookups())

	// A trailing dot is not a float.
	v, err = NewVariable("1.")
	require.NoError(t, err)
	_, ok = v.Literal()
	assert.False(t, ok)
}

func TestNewVariable_Underscore(t *testing.T) {
	for _, raw := range []string{"_private", "user._secret"} {
		t.Run(raw, func(t *testing.T) {
			_, err := NewVariable(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSyntax))
			assert.True(t, errors.Is(err, ErrTemplateSyntax))
		})
	}
}

func TestVariable_Resolve(t *testing.T) {
	values := map[string]any{
		"a":       map[string]any{"b": map[string]any{"c": 5}},
		"user":    testUser{FirstName: "Ada", Email: "ada@example.com", age: 36},
		"userPtr": &testUser{FirstName: "Grace"},
		"items":   []string{"x", "y", "z"},
		"word":    "héllo",
		"fn":      func() string { return "called" },
		"fnErr":   func() (string, error) { return "ok", nil },
		"custom":  lookupMap{},
		"ints":    map[int]string{1: "one"},
		"nested":  map[string]any{"list": []any{map[string]any{"k": "v"}}},
	}
	tests := []struct {
		raw      string
		expected any
	}{
		{"a.b.c", 5},
		{"user.FirstName", "Ada"},
		{"user.first_name", "Ada"},
		{"user.firstName", "Ada"},
		{"user.mail", "ada@example.com"},
		{"user.greeting", "hi Ada"},
		{"userPtr.first_name", "Grace"},
		{"items.1", "y"},
		{"word.1", "é"},
		{"fn", "called"},
		{"fnErr", "ok"},
		{"custom.answer", 42},
		{"ints.1", "one"},
		{"nested.list.0.k", "v"},
		{"True", true},
		{"None", nil},
	}
	ctx := NewContext(values)
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := NewVariable(tt.raw)
			require.NoError(t, err)
			got, err := v.Resolve(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestVariable_Resolve_Missing(t *testing.T) {
	ctx := NewContext(map[string]any{
		"a":    map[string]any{"b": map[string]any{}},
		"user": testUser{age: 3},
	})
	for _, raw := range []string{"missing", "a.b.c", "a.x.c", "user.age", "user.Nope"} {
		t.Run(raw, func(t *testing.T) {
			v, err := NewVariable(raw)
			require.NoError(t, err)
			_, err = v.Resolve(ctx)
			require.Error(t, err)
			assert.True(t, IsLookupFailure(err))

			var lookupErr *LookupError
			require.True(t, errors.As(err, &lookupErr))
			assert.Equal(t, raw, lookupErr.Var)
		})
	}
}

func TestVariable_Resolve_CallFlags(t *testing.T) {
	calls := 0
	mutate := func() string {
		calls++
		return "mutated"
	}
	ctx := NewContext(map[string]any{
		"raw":     MarkDoNotCall(mutate),
		"danger":  MarkAltersData(mutate),
		"needArg": func(s string) string { return s },
		"fails":   func() (string, error) { return "", errors.New("boom") },
	})

	v, _ := NewVariable("raw")
	got, err := v.Resolve(ctx)
	require.NoError(t, err)
	_, isFlagged := got.(DoNotCall)
	assert.True(t, isFlagged)

	v, _ = NewVariable("danger")
	got, err = v.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	v, _ = NewVariable("needArg")
	got, err = v.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	v, _ = NewVariable("fails")
	_, err = v.Resolve(ctx)
	require.EqualError(t, err, "boom")

	assert.Zero(t, calls)
}

func testParser(libs ...*Library) *Parser {
	return NewParser(nil, nil, append(slices.Clone(DefaultBuiltins()), libs...), nil, nil)
}

func TestFilterExpression_Compile(t *testing.T) {
	tests := []struct {
		token   string
		isVar   bool
		filters []string
	}{
		{token: "name", isVar: true},
		{token: "name|lower", isVar: true, filters: []string{"lower"}},
		{token: `name|default:"x"|upper`, isVar: true, filters: []string{"default", "upper"}},
		{token: `"text"|upper`, filters: []string{"upper"}},
		{token: `_("text")|lower`, filters: []string{"lower"}},
		{token: "3|add:x.y", isVar: true, filters: []string{"add"}},
		{token: "name | lower", isVar: true, filters: []string{"lower"}},
		{token: "-1.5|floatformat", isVar: true, filters: []string{"floatformat"}},
	}
	p := testParser()
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			fe, err := p.CompileFilter(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.isVar, fe.IsVar())
			assert.Equal(t, tt.token, fe.String())
			if tt.filters == nil {
				assert.Empty(t, fe.FilterNames())
			} else {
				assert.Equal(t, tt.filters, fe.FilterNames())
			}
		})
	}
}

func TestFilterExpression_CompileErrors(t *testing.T) {
	tests := []struct {
		token string
		kind  error
	}{
		{token: "x|nosuch", kind: ErrInvalidFilter},
		{token: `x|upper:"a"`, kind: ErrArgumentCount},
		{token: "x|add", kind: ErrArgumentCount},
		{token: "x y", kind: ErrInvalidSyntax},
		{token: "x|", kind: ErrInvalidSyntax},
		{token: "|upper", kind: ErrInvalidSyntax},
		{token: "_x|upper", kind: ErrInvalidSyntax},
		{token: `x|default:_y`, kind: ErrInvalidSyntax},
	}
	p := testParser()
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			_, err := p.CompileFilter(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			assert.True(t, errors.Is(err, ErrTemplateSyntax))
		})
	}
}

func TestFilterExpression_UnknownFilterSuggestions(t *testing.T) {
	_, err := testParser().CompileFilter("x|lowr")
	require.Error(t, err)

	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Contains(t, te.Suggestions, "lower")
}

func TestFilterExpression_ChainOrder(t *testing.T) {
	fe, err := testParser().CompileFilter(`x|add:"1"|add:"2"`)
	require.NoError(t, err)
	got, err := fe.Resolve(NewContext(map[string]any{"x": 3}))
	require.NoError(t, err)
	assert.Equal(t, 6, got)

	lib := NewLibrary(nil)
	lib.MustRegisterFilter("wrap", func(v, pair string) string { return pair[:1] + v + pair[1:] })
	fe, err = testParser(lib).CompileFilter(`x|wrap:"[]"|wrap:"()"`)
	require.NoError(t, err)
	got, err = fe.Resolve(NewContext(map[string]any{"x": "v"}))
	require.NoError(t, err)
	assert.Equal(t, "([v])", got)
}

func TestFilterExpression_ArgumentSafety(t *testing.T) {
	var seen []bool
	lib := NewLibrary(nil)
	lib.MustRegisterFilter("probe", func(v, arg any) any {
		seen = append(seen, IsSafe(arg))
		return v
	})
	fe, err := testParser(lib).CompileFilter(`x|probe:"<b>"|probe:y`)
	require.NoError(t, err)

	_, err = fe.Resolve(NewContext(map[string]any{"x": 1, "y": "<i>"}))
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, seen)
}

func TestFilterExpression_IsSafePropagation(t *testing.T) {
	fe, err := testParser().CompileFilter("s|lower")
	require.NoError(t, err)

	got, err := fe.Resolve(NewContext(map[string]any{"s": SafeString("<B>")}))
	require.NoError(t, err)
	assert.Equal(t, SafeString("<b>"), got)

	got, err = fe.Resolve(NewContext(map[string]any{"s": "<B>"}))
	require.NoError(t, err)
	assert.Equal(t, "<b>", got)
}

func TestFilterExpression_ResolveModes(t *testing.T) {
	p := testParser()
	ctx := NewContext(map[string]any{"a": map[string]any{"b": map[string]any{}}})

	fe, err := p.CompileFilter("a.b.c")
	require.NoError(t, err)

	got, err := fe.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = fe.ResolveStrict(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVariableDoesNotExist))

	fe, err = p.CompileFilter(`a.b.c|default_if_none:"none"`)
	require.NoError(t, err)
	got, err = fe.ResolveIgnoreFailures(ctx)
	require.NoError(t, err)
	assert.Equal(t, SafeString("none"), got)

	fe, err = p.CompileFilter(`missing|default:"fallback"`)
	require.NoError(t, err)
	got, err = fe.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, SafeString("fallback"), got)
}

func TestFilterExpression_StringIfInvalid(t *testing.T) {
	tests := []struct {
		name     string
		invalid  string
		source   string
		expected string
	}{
		{name: "plain placeholder", invalid: "INVALID", source: "[{{ nope }}]", expected: "[INVALID]"},
		{name: "placeholder with name", invalid: "<%s>", source: "[{{ a.b }}]", expected: "[&lt;a.b&gt;]"},
		{name: "filters skipped", invalid: "X", source: "[{{ nope|lower }}]", expected: "[X]"},
		{name: "empty placeholder runs filters", invalid: "", source: `[{{ nope|default:"d" }}]`, expected: "[d]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(nil, func(c *EngineConfig) { c.StringIfInvalid = tt.invalid })
			out, err := renderSource(e, tt.source, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestFilterExpression_Strict(t *testing.T) {
	e := newTestEngine(nil, func(c *EngineConfig) { c.StrictVariables = true })

	_, err := renderSource(e, "{{ a.b.c }}", map[string]any{"a": map[string]any{"b": map[string]any{}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVariableDoesNotExist))

	out, err := renderSource(e, "{{ a.b.c }}", map[string]any{"a": map[string]any{"b": map[string]any{"c": 5}}})
	require.NoError(t, err)
	assert.Equal(t, "5", out)
}

// Rendering {{ expr }} matches resolving expr directly and converting it.
func TestFilterExpression_RenderConsistency(t *testing.T) {
	values := map[string]any{
		"name":  "<Ada>",
		"safe":  SafeString("<b>ok</b>"),
		"n":     7,
		"items": []any{"a", "b"},
	}
	exprs := []string{
		"name", "name|upper", "safe", "safe|lower", "n|add:3",
		`items|join:", "`, `"<lit>"`, "missing", "items|length",
	}
	p := testParser()
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			fe, err := p.CompileFilter(expr)
			require.NoError(t, err)
			ctx := NewContext(values)
			val, err := fe.Resolve(ctx)
			require.NoError(t, err)

			rendered := mustRender(t, "{{ "+expr+" }}", values)
			assert.Equal(t, RenderValueInContext(val, ctx), rendered)
		})
	}
}
