package internal

import (
	"errors"
	"io/fs"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapLoader(t *testing.T) {
	source := map[string]string{"a": "A"}
	m := NewMapLoader(source)
	source["a"] = "changed"

	src, origin, err := m.GetSource("a")
	require.NoError(t, err)
	assert.Equal(t, "A", src)
	assert.Equal(t, &Origin{Name: "a", TemplateName: "a", Loader: LoaderNameMap}, origin)

	m.Set("b", "B")
	assert.True(t, m.Has("b"))
	assert.Equal(t, []string{"a", "b"}, m.Names())
	assert.Equal(t, 2, m.Len())

	assert.True(t, m.Delete("b"))
	assert.False(t, m.Delete("b"))
	_, _, err = m.GetSource("b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

func TestFSLoader(t *testing.T) {
	fsys := fstest.MapFS{
		"pages/index.html": {Data: []byte("{% include 'parts/nav.html' %}|{{ title }}")},
		"parts/nav.html":   {Data: []byte("nav")},
	}
	l := NewFSLoader(fsys)

	src, origin, err := l.GetSource("/parts/nav.html")
	require.NoError(t, err)
	assert.Equal(t, "nav", src)
	assert.Equal(t, "parts/nav.html", origin.Name)
	assert.Equal(t, LoaderNameFS, origin.Loader)

	for _, name := range []string{"missing.html", "../etc/passwd", "pages"} {
		_, _, err := l.GetSource(name)
		require.Error(t, err, name)
	}
	_, _, err = l.GetSource("../etc/passwd")
	assert.True(t, errors.Is(err, ErrTemplateNotFound))

	e := newTestEngine(nil, func(c *EngineConfig) { c.Loader = l })
	out, err := e.RenderToString("pages/index.html", map[string]any{"title": "Home"})
	require.NoError(t, err)
	assert.Equal(t, "nav|Home", out)
}

type failingLoader struct{}

func (failingLoader) GetSource(string) (string, *Origin, error) {
	return "", nil, fs.ErrPermission
}

func TestChainLoader(t *testing.T) {
	first := NewMapLoader(map[string]string{"a": "first"})
	second := NewMapLoader(map[string]string{"a": "second", "b": "second"})
	chain := ChainLoader{first, second}

	src, _, err := chain.GetSource("a")
	require.NoError(t, err)
	assert.Equal(t, "first", src)

	src, _, err = chain.GetSource("b")
	require.NoError(t, err)
	assert.Equal(t, "second", src)

	_, _, err = chain.GetSource("c")
	assert.True(t, errors.Is(err, ErrTemplateNotFound))

	_, _, err = ChainLoader{failingLoader{}, second}.GetSource("b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrPermission))
}

func TestEngine_GetTemplateCache(t *testing.T) {
	loader := NewMapLoader(map[string]string{"a": "one"})
	e := newTestEngine(nil, func(c *EngineConfig) { c.Loader = loader })

	first, err := e.GetTemplate("a")
	require.NoError(t, err)
	assert.Equal(t, "a", first.Name)
	assert.Equal(t, LoaderNameMap, first.Origin.Loader)
	assert.Same(t, e, first.Engine())

	loader.Set("a", "two")
	second, err := e.GetTemplate("a")
	require.NoError(t, err)
	assert.Same(t, first, second)

	e.Forget("a")
	third, err := e.GetTemplate("a")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, "two", third.Source)

	loader.Set("a", "three")
	e.ResetCache()
	out, err := e.RenderToString("a", nil)
	require.NoError(t, err)
	assert.Equal(t, "three", out)
}

func TestEngine_NoCache(t *testing.T) {
	e := newTestEngine(map[string]string{"a": "x"}, func(c *EngineConfig) { c.CacheTemplates = false })
	first, err := e.GetTemplate("a")
	require.NoError(t, err)
	second, err := e.GetTemplate("a")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestEngine_GetTemplateErrors(t *testing.T) {
	e := newTestEngine(map[string]string{"bad": "{% if x %}"})

	_, err := e.GetTemplate("")
	assert.True(t, errors.Is(err, ErrTemplateNotFound))

	_, err = e.GetTemplate("missing")
	assert.True(t, errors.Is(err, ErrTemplateNotFound))

	_, err = e.GetTemplate("bad")
	assert.True(t, errors.Is(err, ErrUnclosedTag))

	noLoader := newTestEngine(nil, func(c *EngineConfig) { c.Loader = nil })
	_, err = noLoader.GetTemplate("a")
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

func TestEngine_SelectTemplate(t *testing.T) {
	e := newTestEngine(map[string]string{"b": "B", "bad": "{% nope %}"})

	tmpl, err := e.SelectTemplate([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", tmpl.Name)

	_, err = e.SelectTemplate(nil)
	assert.True(t, errors.Is(err, ErrTemplateNotFound))

	_, err = e.SelectTemplate([]string{"x", "y"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
	assert.Contains(t, err.Error(), "x, y")

	_, err = e.SelectTemplate([]string{"bad", "b"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTag))
}

func TestEngine_Defaults(t *testing.T) {
	e := NewEngine(EngineConfig{})
	assert.Equal(t, DefaultMaxDepth, e.MaxDepth())
	assert.NotNil(t, e.Logger())
	assert.NotNil(t, e.Localizer())
	assert.Contains(t, e.Libraries(), HumanizeLibraryName)
	assert.False(t, e.Autoescape())
	assert.NotEmpty(t, e.Builtins())

	cfg := DefaultEngineConfig()
	assert.True(t, cfg.Autoescape)
	assert.True(t, cfg.CacheTemplates)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
}

func TestEngine_ConcurrentGetTemplate(t *testing.T) {
	e := newTestEngine(map[string]string{"a": "{{ x }}"})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.RenderToString("a", map[string]any{"x": "<>"})
			assert.NoError(t, err)
			assert.Equal(t, "&lt;&gt;", out)
		}()
	}
	wg.Wait()
}
