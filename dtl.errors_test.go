package dtl

import (
	"errors"
	"testing"

	"github.com/itsatony/go-cuserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapError_Nil(t *testing.T) {
	assert.NoError(t, wrapError(nil, "x"))
}

func TestWrapError_Passthrough(t *testing.T) {
	original := NewTemplateExistsError("a")
	assert.Same(t, original, wrapError(original, "b"))
}

func TestCompileErrors_Metadata(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		kind     error
		code     string
		line     string
		token    string
		kindName string
	}{
		{
			name:     "unclosed block",
			source:   "line one\n{% if x %}\nnever closed",
			kind:     ErrUnclosedTag,
			code:     ErrCodeSyntax,
			line:     "2",
			token:    "if x",
			kindName: "unclosed tag",
		},
		{
			name:     "unknown tag",
			source:   "{% frobnicate %}",
			kind:     ErrUnknownTag,
			code:     ErrCodeSyntax,
			line:     "1",
			token:    "frobnicate",
			kindName: "unknown tag",
		},
		{
			name:     "invalid filter",
			source:   "\n\n{{ x|nosuchfilter }}",
			kind:     ErrInvalidFilter,
			code:     ErrCodeSyntax,
			line:     "3",
			token:    "x|nosuchfilter",
			kindName: "invalid filter",
		},
		{
			name:     "empty variable",
			source:   "{{ }}",
			kind:     ErrEmptyExpression,
			code:     ErrCodeSyntax,
			line:     "1",
			kindName: "empty expression",
		},
	}

	engine := MustNew()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.FromString(tt.source)
			require.Error(t, err)

			assert.True(t, errors.Is(err, tt.kind))
			assert.True(t, errors.Is(err, ErrTemplateSyntax))
			assert.True(t, IsSyntaxError(err))

			var customErr *cuserr.CustomError
			require.True(t, errors.As(err, &customErr))
			assert.Contains(t, err.Error(), ErrMsgSyntax)

			line, ok := customErr.GetMetadata(MetaKeyLine)
			require.True(t, ok)
			assert.Equal(t, tt.line, line)

			kind, ok := customErr.GetMetadata(MetaKeyKind)
			require.True(t, ok)
			assert.Equal(t, tt.kindName, kind)

			if tt.token != "" {
				token, ok := customErr.GetMetadata(MetaKeyToken)
				require.True(t, ok)
				assert.Equal(t, tt.token, token)
			}
		})
	}
}

func TestUnknownFilter_Suggestions(t *testing.T) {
	_, err := MustNew().FromString("{{ name|uppr }}")
	require.Error(t, err)

	var customErr *cuserr.CustomError
	require.True(t, errors.As(err, &customErr))
	suggestions, ok := customErr.GetMetadata(MetaKeySuggestions)
	require.True(t, ok)
	assert.Contains(t, suggestions, "upper")
}

func TestNotFoundError_Metadata(t *testing.T) {
	_, err := MustNew().GetTemplate("missing.html")
	require.Error(t, err)

	assert.True(t, IsNotFound(err))
	assert.True(t, errors.Is(err, ErrTemplateNotFound))

	var customErr *cuserr.CustomError
	require.True(t, errors.As(err, &customErr))
	name, ok := customErr.GetMetadata(MetaKeyTemplate)
	require.True(t, ok)
	assert.Equal(t, "missing.html", name)
	assert.Contains(t, err.Error(), ErrMsgNotFound)
}

func TestRenderError_Metadata(t *testing.T) {
	engine := MustNew()
	engine.MustRegisterTemplate("loop", `{% include "loop" %}`)

	_, err := engine.RenderToString("loop", nil)
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrRecursionLimit))
	var customErr *cuserr.CustomError
	require.True(t, errors.As(err, &customErr))
	assert.Contains(t, err.Error(), ErrMsgRender)
	name, ok := customErr.GetMetadata(MetaKeyTemplate)
	require.True(t, ok)
	assert.Equal(t, "loop", name)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"syntax", ErrUnclosedTag, ErrCodeSyntax},
		{"not found", ErrTemplateNotFound, ErrCodeNotFound},
		{"library", ErrInvalidTemplateLibrary, ErrCodeLibrary},
		{"config", ErrInvalidConfig, ErrCodeConfig},
		{"other", errors.New("boom"), ErrCodeRender},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := classify(tt.err)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestLibraryRegistry(t *testing.T) {
	lib := NewLibrary(nil)
	lib.MustRegisterFilter("shout", func(s string) string { return s + "!" })

	require.NoError(t, RegisterLibrary("test-shout", lib))
	err := RegisterLibrary("test-shout", lib)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrMsgLibraryExists)

	err = RegisterLibrary("test-nil", nil)
	require.Error(t, err)
	var customErr *cuserr.CustomError
	require.True(t, errors.As(err, &customErr))
	name, ok := customErr.GetMetadata(MetaKeyLibrary)
	require.True(t, ok)
	assert.Equal(t, "test-nil", name)

	got, ok := LookupLibrary("test-shout")
	require.True(t, ok)
	assert.Same(t, lib, got)
	assert.Contains(t, RegisteredLibraries(), HumanizeLibraryName)
	assert.Contains(t, RegisteredLibraries(), "test-shout")
}
