package internal

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_Shadowing(t *testing.T) {
	ctx := NewContext(nil)
	ctx.Push(map[string]any{"x": 1})
	ctx.Push(map[string]any{"x": 2})

	v, ok := ctx.Get("x")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, err := ctx.Pop()
	require.NoError(t, err)
	assert.Equal(t, 1, ctx.GetOr("x", nil))

	_, err = ctx.Pop()
	require.NoError(t, err)
	_, err = ctx.Pop()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContextPop))
	assert.Equal(t, 1, ctx.Depth())
}

func TestContext_ScopeClose(t *testing.T) {
	ctx := NewContext(map[string]any{"a": 1})
	depth := ctx.Depth()

	scope := ctx.Push(map[string]any{"a": 2}, map[string]any{"b": 3})
	assert.Equal(t, depth+2, ctx.Depth())
	assert.Equal(t, 2, ctx.GetOr("a", nil))

	scope.Close()
	scope.Close()
	assert.Equal(t, depth, ctx.Depth())
	assert.Equal(t, 1, ctx.GetOr("a", nil))
	assert.False(t, ctx.Has("b"))

	var nilScope *Scope
	assert.NotPanics(t, nilScope.Close)
}

func TestContext_PushCopiesFrames(t *testing.T) {
	frame := map[string]any{"a": 1}
	ctx := NewContext(frame)
	ctx.Set("a", 2)
	assert.Equal(t, 1, frame["a"])
	assert.Equal(t, 2, ctx.GetOr("a", nil))
}

func TestContext_SetUpward(t *testing.T) {
	ctx := NewContext(map[string]any{"counter": 1})
	scope := ctx.Push()
	ctx.SetUpward("counter", 2)
	ctx.SetUpward("fresh", "top")
	scope.Close()

	assert.Equal(t, 2, ctx.GetOr("counter", nil))
	assert.False(t, ctx.Has("fresh"))
}

func TestContext_Accessors(t *testing.T) {
	ctx := NewContext(map[string]any{"a": 1})

	assert.True(t, ctx.Has("True"))
	assert.Equal(t, "d", ctx.GetOr("missing", "d"))
	assert.Equal(t, 1, ctx.SetDefault("a", 9))
	assert.Equal(t, 5, ctx.SetDefault("b", 5))
	assert.Equal(t, 5, ctx.GetOr("b", nil))

	assert.True(t, ctx.Delete("b"))
	assert.False(t, ctx.Delete("b"))
	assert.False(t, ctx.Delete("True"))

	assert.Equal(t, []string{"False", "None", "True", "a"}, ctx.Keys())
	flat := ctx.Flatten()
	assert.Equal(t, 1, flat["a"])
	assert.Nil(t, flat["None"])
}

func TestContext_Equal(t *testing.T) {
	a := NewContext(map[string]any{"x": 1})
	b := NewContext(nil)
	b.Push(map[string]any{"x": 1})

	assert.True(t, a.Equal(b))
	b.Set("y", 2)
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
}

func TestContext_New(t *testing.T) {
	ctx := NewContext(map[string]any{"a": 1})
	ctx.Autoescape = false
	ctx.RenderContext().Set("k", "v")

	dup := ctx.New(map[string]any{"b": 2})
	assert.False(t, dup.Has("a"))
	assert.True(t, dup.Has("b"))
	assert.True(t, dup.Has("None"))
	assert.False(t, dup.Autoescape)

	got, ok := dup.RenderContext().Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	dup.Set("c", 3)
	assert.False(t, ctx.Has("c"))
}

func TestContext_BindTemplate(t *testing.T) {
	e := newTestEngine(nil)
	tmpl, err := e.FromString("x")
	require.NoError(t, err)

	ctx := NewContext(nil)
	scope, err := ctx.BindTemplate(tmpl)
	require.NoError(t, err)
	assert.Same(t, tmpl, ctx.Template())

	_, err = ctx.BindTemplate(tmpl)
	require.Error(t, err)

	scope.Close()
	assert.Nil(t, ctx.Template())
	assert.Empty(t, ctx.TemplateName)
}

func TestRequestContext_Processors(t *testing.T) {
	type request struct{ user string }
	engineProc := func(r any) map[string]any {
		return map[string]any{"user": r.(request).user, "site": "engine"}
	}
	ctxProc := func(any) map[string]any { return map[string]any{"site": "context"} }

	e := newTestEngine(nil, func(c *EngineConfig) {
		c.ContextProcessors = []ContextProcessor{engineProc}
	})
	tmpl, err := e.FromString("{{ user }}@{{ site }}:{{ title }}")
	require.NoError(t, err)

	ctx := NewRequestContext(request{user: "ada"}, map[string]any{"title": "home"}, ctxProc)
	out, err := tmpl.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada@context:home", out)

	// Processor output is dropped once the template unbinds.
	assert.False(t, ctx.Has("user"))

	ctx = NewRequestContext(request{user: "bob"}, map[string]any{"user": "override"})
	out, err = tmpl.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, "override@engine:", out)
}

func TestRenderContext_Isolation(t *testing.T) {
	rc := NewRenderContext()
	rc.Set("a", 1)

	scope := rc.Push()
	assert.False(t, rc.Has("a"))
	rc.Set("a", 2)
	v, _ := rc.Get("a")
	assert.Equal(t, 2, v)
	scope.Close()

	v, _ = rc.Get("a")
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, rc.Root()["a"])
}

func TestRenderContext_PushState(t *testing.T) {
	e := newTestEngine(nil, func(c *EngineConfig) { c.MaxDepth = 2 })
	tmpl, err := e.FromString("x")
	require.NoError(t, err)

	rc := NewRenderContext()
	first, err := rc.PushState(tmpl, true)
	require.NoError(t, err)
	assert.Same(t, tmpl, rc.Template())
	assert.Equal(t, 1, rc.Depth())

	second, err := rc.PushState(tmpl, false)
	require.NoError(t, err)
	assert.Equal(t, 2, rc.Depth())

	_, err = rc.PushState(tmpl, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRecursionLimit))

	second.Close()
	first.Close()
	assert.Equal(t, 0, rc.Depth())
	assert.Nil(t, rc.Template())
}

func TestContext_StackRestoredOnError(t *testing.T) {
	e := newTestEngine(nil, func(c *EngineConfig) { c.StrictVariables = true })
	tmpl, err := e.FromString("{% with a=1 %}{% for i in items %}{{ nope }}{% endfor %}{% endwith %}")
	require.NoError(t, err)

	ctx := NewContext(map[string]any{"items": []int{1, 2}})
	depth := ctx.Depth()
	_, err = tmpl.Render(ctx)
	require.Error(t, err)
	assert.Equal(t, depth, ctx.Depth())
	assert.Nil(t, ctx.Template())
	assert.Equal(t, 0, ctx.RenderContext().Depth())
}

func TestTemplate_ConcurrentRenders(t *testing.T) {
	tmpl, err := newTestEngine(nil).FromString(
		"{% for i in items %}{% cycle 'a' 'b' %}{{ name }}{% endfor %}")
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	results := make([]string, workers)
	errs := make([]error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ctx := NewContext(map[string]any{
				"name":  fmt.Sprintf("n%d", w),
				"items": []int{1, 2, 3},
			})
			results[w], errs[w] = tmpl.Render(ctx)
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		require.NoError(t, errs[w])
		n := fmt.Sprintf("n%d", w)
		assert.Equal(t, "a"+n+"b"+n+"a"+n, results[w])
	}
}
