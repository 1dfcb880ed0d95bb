package internal

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIfTag(t *testing.T) {
	values := map[string]any{
		"yes":   true,
		"no":    false,
		"zero":  0,
		"n":     5,
		"s":     "cat",
		"items": []int{1, 2},
		"empty": []string{},
		"ptr":   &testUser{},
	}
	runRenderCases(t, newTestEngine(nil), []renderCase{
		{name: "true", source: "{% if yes %}y{% endif %}", values: values, expected: "y"},
		{name: "false", source: "{% if no %}y{% endif %}", values: values, expected: ""},
		{name: "zero is false", source: "{% if zero %}y{% else %}n{% endif %}", values: values, expected: "n"},
		{name: "empty list", source: "{% if empty %}y{% else %}n{% endif %}", values: values, expected: "n"},
		{name: "missing", source: "{% if nope %}y{% else %}n{% endif %}", values: values, expected: "n"},
		{name: "elif", source: "{% if no %}a{% elif zero %}b{% elif n %}c{% else %}d{% endif %}", values: values, expected: "c"},
		{name: "else", source: "{% if no %}a{% elif zero %}b{% else %}d{% endif %}", values: values, expected: "d"},
		{name: "and binds tighter", source: "{% if no or yes and no %}y{% else %}n{% endif %}", values: values, expected: "n"},
		{name: "or", source: "{% if no or yes %}y{% endif %}", values: values, expected: "y"},
		{name: "not", source: "{% if not no %}y{% endif %}", values: values, expected: "y"},
		{name: "not not", source: "{% if not not yes %}y{% endif %}", values: values, expected: "y"},
		{name: "greater", source: "{% if n > 3 %}y{% endif %}", values: values, expected: "y"},
		{name: "less equal", source: "{% if n <= 4 %}y{% else %}n{% endif %}", values: values, expected: "n"},
		{name: "equal", source: "{% if n == 5 %}y{% endif %}", values: values, expected: "y"},
		{name: "string equal", source: "{% if s == 'cat' %}y{% endif %}", values: values, expected: "y"},
		{name: "not equal", source: "{% if s != 'dog' %}y{% endif %}", values: values, expected: "y"},
		{name: "substring", source: "{% if 'a' in s %}y{% endif %}", values: values, expected: "y"},
		{name: "not in", source: "{% if 3 not in items %}y{% endif %}", values: values, expected: "y"},
		{name: "in list", source: "{% if 2 in items %}y{% endif %}", values: values, expected: "y"},
		{name: "is None", source: "{% if nope is None %}y{% endif %}", values: values, expected: "y"},
		{name: "is not None", source: "{% if ptr is not None %}y{% endif %}", values: values, expected: "y"},
		{name: "is True", source: "{% if yes is True %}y{% endif %}", values: values, expected: "y"},
		{name: "filtered operand", source: "{% if items|length >= 2 %}y{% endif %}", values: values, expected: "y"},
		{name: "incomparable", source: "{% if s > n %}y{% else %}n{% endif %}", values: values, expected: "n"},
		{name: "in missing", source: "{% if 1 in nope %}y{% else %}n{% endif %}", values: values, expected: "n"},
	})
}

func TestIfTag_Errors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		message string
	}{
		{name: "no condition", source: "{% if %}{% endif %}", message: "Unexpected end"},
		{name: "unused word", source: "{% if a b %}{% endif %}", message: "Unused 'b'"},
		{name: "operator first", source: "{% if and %}{% endif %}", message: "Not expecting 'and'"},
		{name: "dangling operator", source: "{% if a == %}{% endif %}", message: "Unexpected end"},
	}
	e := newTestEngine(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := compileErr(t, e, tt.source)
			assert.True(t, errors.Is(te, ErrTemplateSyntax))
			assert.Contains(t, te.Error(), tt.message)
		})
	}

	te := compileErr(t, e, "{% if a %}{% else %}{% else %}{% endif %}")
	assert.True(t, errors.Is(te, ErrUnknownTag))
}

func TestIfTag_RenderErrors(t *testing.T) {
	errBoom := errors.New("boom")
	lib := NewLibrary(nil)
	lib.MustRegisterFilter("boom", func(v any) (any, error) { return nil, errBoom })
	e := newTestEngine(nil, func(c *EngineConfig) { c.Builtins = append(c.Builtins, lib) })

	for _, source := range []string{
		"{% if x|boom %}y{% endif %}",
		"{% if not x|boom %}y{% endif %}",
		"{% if a and x|boom %}y{% endif %}",
		"{% if x|boom == 1 %}y{% endif %}",
		"{% if b %}{% elif x|boom %}y{% endif %}",
	} {
		_, err := renderSource(e, source, map[string]any{"a": true, "x": 1})
		require.Error(t, err, source)
		assert.True(t, errors.Is(err, errBoom), source)
	}

	out, err := renderSource(e, "{% if missing.x %}y{% else %}n{% endif %}|{% if x|default:nope %}y{% else %}n{% endif %}", nil)
	require.NoError(t, err)
	assert.Equal(t, "n|n", out)

	out, err = renderSource(e, "{% if a or x|boom %}y{% endif %}", map[string]any{"a": true})
	require.NoError(t, err)
	assert.Equal(t, "y", out)
}

func TestForTag(t *testing.T) {
	values := map[string]any{
		"items":  []string{"a", "b", "c"},
		"pairs":  [][]any{{"x", 1}, {"y", 2}},
		"m":      map[string]int{"b": 2, "a": 1},
		"empty":  []int{},
		"word":   "hé",
		"nested": [][]int{{1, 2}, {3}},
	}
	runRenderCases(t, newTestEngine(nil), []renderCase{
		{name: "basic", source: "{% for i in items %}{{ i }}{% endfor %}", values: values, expected: "abc"},
		{name: "reversed", source: "{% for i in items reversed %}{{ i }}{% endfor %}", values: values, expected: "cba"},
		{
			name:     "counters",
			source:   "{% for i in items %}{{ forloop.counter }}{{ forloop.counter0 }}{{ forloop.revcounter }}{{ forloop.revcounter0 }} {% endfor %}",
			values:   values,
			expected: "1032 2121 3210 ",
		},
		{
			name:     "first and last",
			source:   "{% for i in items %}{% if forloop.first %}[{% endif %}{{ i }}{% if forloop.last %}]{% else %},{% endif %}{% endfor %}",
			values:   values,
			expected: "[a,b,c]",
		},
		{name: "unpack", source: "{% for k, v in pairs %}{{ k }}={{ v }};{% endfor %}", values: values, expected: "x=1;y=2;"},
		{name: "unpack spacing", source: "{% for k , v in pairs %}{{ k }}{% endfor %}", values: values, expected: "xy"},
		{name: "map keys sorted", source: "{% for k in m %}{{ k }}{% endfor %}", values: values, expected: "ab"},
		{name: "map items", source: "{% for k, v in m.items %}{{ k }}{{ v }}{% endfor %}", values: values, expected: "a1b2"},
		{name: "empty clause", source: "{% for i in empty %}x{% empty %}none{% endfor %}", values: values, expected: "none"},
		{name: "missing sequence", source: "{% for i in nope %}x{% empty %}none{% endfor %}", values: values, expected: "none"},
		{name: "string", source: "{% for c in word %}<{{ c }}>{% endfor %}", values: values, expected: "<h><é>"},
		{
			name:     "parentloop",
			source:   "{% for row in nested %}{% for c in row %}{{ forloop.parentloop.counter }}.{{ forloop.counter }} {% endfor %}{% endfor %}",
			values:   values,
			expected: "1.1 1.2 2.1 ",
		},
		{name: "loop var scoped", source: "{% for i in items %}{% endfor %}[{{ i }}]", values: values, expected: "[]"},
	})
}

func TestForTag_Errors(t *testing.T) {
	e := newTestEngine(nil)
	for _, source := range []string{
		"{% for x %}{% endfor %}",
		"{% for x on y %}{% endfor %}",
		"{% for x| in y %}{% endfor %}",
		"{% for x in y %}",
	} {
		t.Run(source, func(t *testing.T) {
			te := compileErr(t, e, source)
			assert.True(t, errors.Is(te, ErrTemplateSyntax))
		})
	}

	_, err := renderSource(e, "{% for a, b in items %}{% endfor %}", map[string]any{"items": [][]int{{1, 2, 3}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Need 2 values to unpack")

	_, err = renderSource(e, "{% for a in n %}{% endfor %}", map[string]any{"n": 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not iterable")
}

func TestCycleTag(t *testing.T) {
	values := map[string]any{"items": []int{1, 2, 3}, "odd": "o", "even": "e"}
	runRenderCases(t, newTestEngine(nil), []renderCase{
		{name: "literals", source: "{% for i in items %}{% cycle 'a' 'b' %}{% endfor %}", values: values, expected: "aba"},
		{name: "variables", source: "{% for i in items %}{% cycle odd even %}{% endfor %}", values: values, expected: "oeo"},
		{
			name:     "named silent",
			source:   "{% for i in items %}{% cycle 'a' 'b' as c silent %}{{ c }}{% endfor %}",
			values:   values,
			expected: "aba",
		},
		{name: "reference by name", source: "{% cycle 'x' 'y' as v %}{% cycle v %}{% cycle v %}", values: values, expected: "xyx"},
		{
			name:     "resetcycle",
			source:   "{% for i in items %}{% cycle 'a' 'b' 'c' %}{% if forloop.counter == 2 %}{% resetcycle %}{% endif %}{% endfor %}",
			values:   values,
			expected: "aba",
		},
		{
			name:     "named resetcycle",
			source:   "{% for i in items %}{% cycle 'a' 'b' as c %}{% resetcycle c %}{% endfor %}",
			values:   values,
			expected: "aaa",
		},
	})
}

func TestCycleTag_Errors(t *testing.T) {
	e := newTestEngine(nil)
	for _, source := range []string{
		"{% cycle %}",
		"{% cycle undefined %}",
		"{% cycle 'a' 'b' as c loud %}",
		"{% resetcycle %}",
		"{% cycle 'a' 'b' as c %}{% resetcycle d %}",
	} {
		t.Run(source, func(t *testing.T) {
			te := compileErr(t, e, source)
			assert.True(t, errors.Is(te, ErrTemplateSyntax))
		})
	}
}

func TestWithTag(t *testing.T) {
	values := map[string]any{"user": map[string]any{"name": "Ada"}, "a": "outer"}
	runRenderCases(t, newTestEngine(nil), []renderCase{
		{name: "kwargs", source: "{% with a=1 b='x' %}{{ a }}{{ b }}{% endwith %}{{ a }}", values: values, expected: "1xouter"},
		{name: "legacy", source: "{% with user.name as n %}{{ n }}{% endwith %}", values: values, expected: "Ada"},
		{name: "legacy and", source: "{% with 1 as x and 2 as y %}{{ x }}{{ y }}{% endwith %}", values: values, expected: "12"},
		{name: "filtered", source: "{% with n=user.name|upper %}{{ n }}{% endwith %}", values: values, expected: "ADA"},
	})

	e := newTestEngine(nil)
	for _, source := range []string{"{% with %}{% endwith %}", "{% with a=1 junk %}{% endwith %}", "{% with a=1 %}"} {
		te := compileErr(t, e, source)
		assert.True(t, errors.Is(te, ErrTemplateSyntax), source)
	}
}

func TestFirstOfTag(t *testing.T) {
	values := map[string]any{"empty": "", "zero": 0, "html": "<b>", "name": "Ada"}
	runRenderCases(t, newTestEngine(nil), []renderCase{
		{name: "first truthy", source: "{% firstof empty zero name %}", values: values, expected: "Ada"},
		{name: "literal fallback", source: `{% firstof empty "<i>" %}`, values: values, expected: "<i>"},
		{name: "escaped", source: "{% firstof empty html %}", values: values, expected: "&lt;b&gt;"},
		{name: "none", source: "{% firstof empty nope %}", values: values, expected: ""},
		{name: "as var", source: "{% firstof empty html as v %}[{{ v }}]", values: values, expected: "[&lt;b&gt;]"},
	})

	te := compileErr(t, newTestEngine(nil), "{% firstof %}")
	assert.True(t, errors.Is(te, ErrTemplateSyntax))
}

func TestFilterTag(t *testing.T) {
	runRenderCases(t, newTestEngine(nil), []renderCase{
		{name: "upper", source: "{% filter upper %}hi {{ name }}{% endfilter %}", values: map[string]any{"name": "ada"}, expected: "HI ADA"},
		{name: "chain", source: "{% filter lower|capfirst %}HELLO World{% endfilter %}", expected: "Hello world"},
	})

	e := newTestEngine(nil)
	for _, source := range []string{
		"{% filter escape %}x{% endfilter %}",
		"{% filter lower|safe %}x{% endfilter %}",
		"{% filter %}x{% endfilter %}",
		"{% filter nosuch %}x{% endfilter %}",
	} {
		te := compileErr(t, e, source)
		assert.True(t, errors.Is(te, ErrTemplateSyntax), source)
	}
}

func TestSimpleBlockTags(t *testing.T) {
	values := map[string]any{"s": "<b>", "x": 1}
	runRenderCases(t, newTestEngine(nil), []renderCase{
		{name: "spaceless", source: "{% spaceless %}  <p>\n  <a>x</a> </p> {% endspaceless %}", expected: "<p><a>x</a></p>"},
		{name: "spaceless keeps text spaces", source: "{% spaceless %}<b> a b </b>{% endspaceless %}", expected: "<b> a b </b>"},
		{name: "templatetag", source: "{% templatetag openblock %} {% templatetag closevariable %} {% templatetag opencomment %}", expected: "{% }} {#"},
		{name: "verbatim", source: "{% verbatim %}{{ x }}{% if %}{% endverbatim %}", values: values, expected: "{{ x }}{% if %}"},
		{name: "named verbatim", source: "{% verbatim v %}{% endverbatim %}{% endverbatim v %}", expected: "{% endverbatim %}"},
		{name: "comment", source: "a{% comment %}{{ x }}{% if %}{% endcomment %}b", values: values, expected: "ab"},
		{name: "comment note", source: "a{% comment 'why' %}gone{% endcomment %}b", expected: "ab"},
		{name: "autoescape off", source: "{% autoescape off %}{{ s }}{% endautoescape %}{{ s }}", values: values, expected: "<b>&lt;b&gt;"},
		{name: "autoescape on", source: "{% autoescape on %}{{ s }}{% endautoescape %}", values: values, expected: "&lt;b&gt;"},
		{name: "safe filter", source: "{{ s|safe }}", values: values, expected: "<b>"},
	})

	e := newTestEngine(nil)
	for _, source := range []string{
		"{% autoescape maybe %}{% endautoescape %}",
		"{% autoescape %}{% endautoescape %}",
		"{% templatetag nothing %}",
		"{% templatetag %}",
		"{% comment %}never closed",
		"{% spaceless %}",
	} {
		te := compileErr(t, e, source)
		assert.True(t, errors.Is(te, ErrTemplateSyntax), source)
	}
}

func TestCSRFTokenTag(t *testing.T) {
	runRenderCases(t, newTestEngine(nil), []renderCase{
		{
			name:     "token",
			source:   "{% csrf_token %}",
			values:   map[string]any{"csrf_token": `a"b`},
			expected: `<input type="hidden" name="csrfmiddlewaretoken" value="a&quot;b">`,
		},
		{name: "missing", source: "{% csrf_token %}", expected: ""},
		{name: "not provided", source: "{% csrf_token %}", values: map[string]any{"csrf_token": "NOTPROVIDED"}, expected: ""},
	})
}

func TestNowTag(t *testing.T) {
	year := strconv.Itoa(time.Now().Year())
	out := mustRender(t, `{% now "Y" %}`, nil)
	// A render straddling New Year may see the next year.
	assert.Contains(t, []string{year, strconv.Itoa(time.Now().Year())}, out)

	out = mustRender(t, `{% now "Y" as y %}[{{ y }}]`, nil)
	assert.Len(t, out, 6)

	te := compileErr(t, newTestEngine(nil), "{% now %}")
	assert.True(t, errors.Is(te, ErrTemplateSyntax))
}

func TestLoadTag(t *testing.T) {
	lib := NewLibrary(nil)
	lib.MustRegisterFilter("shout", func(s string) string { return s + "!" })
	lib.MustRegisterTag("hello", func(*Parser, Token) (Node, error) { return &TextNode{Text: "hello"}, nil })
	e := newTestEngine(nil, func(c *EngineConfig) { c.Libraries = map[string]*Library{"extra": lib} })

	runRenderCases(t, e, []renderCase{
		{name: "whole library", source: "{% load extra %}{{ 'x'|shout }} {% hello %}", expected: "x! hello"},
		{name: "subset", source: "{% load shout from extra %}{{ 'x'|shout }}", expected: "x!"},
		{name: "humanize always available", source: "{% load humanize %}{{ 1000|intcomma }}", expected: "1,000"},
		{name: "several", source: "{% load extra humanize %}{{ 2|ordinal|shout }}", expected: "2nd!"},
	})

	te := compileErr(t, e, "{% load shout from extra %}{% hello %}")
	assert.True(t, errors.Is(te, ErrUnknownTag))

	te = compileErr(t, e, "{% load extr %}")
	assert.True(t, errors.Is(te, ErrTemplateSyntax))
	assert.Contains(t, te.Suggestions, "extra")

	te = compileErr(t, e, "{% load nope from extra %}")
	assert.True(t, errors.Is(te, ErrTemplateSyntax))

	te = compileErr(t, e, "{{ 'x'|shout }}")
	assert.True(t, errors.Is(te, ErrInvalidFilter))
}

func TestLocalizeTag(t *testing.T) {
	values := map[string]any{"n": 1234567, "f": 1234.5}
	e := newTestEngine(nil, func(c *EngineConfig) { c.UseL10n = true })
	runRenderCases(t, e, []renderCase{
		{name: "engine default", source: "{{ n }}", values: values, expected: "1,234,567"},
		{name: "off", source: "{% localize off %}{{ n }}{% endlocalize %}|{{ n }}", values: values, expected: "1234567|1,234,567"},
		{name: "float", source: "{{ f }}", values: values, expected: "1,234.5"},
	})

	runRenderCases(t, newTestEngine(nil), []renderCase{
		{name: "on", source: "{% localize %}{{ n }}{% endlocalize %}", values: values, expected: "1,234,567"},
		{name: "disabled by default", source: "{{ n }}", values: values, expected: "1234567"},
	})

	te := compileErr(t, e, "{% localize on off %}{% endlocalize %}")
	assert.True(t, errors.Is(te, ErrTemplateSyntax))
}
