package internal

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Scope releases what a Push or PushState acquired. Close is idempotent
// and safe to defer.
type Scope struct {
	release func()
	closed  bool
}

// Close restores the state captured when the scope was opened
func (s *Scope) Close() {
	if s == nil || s.closed {
		return
	}
	s.closed = true
	if s.release != nil {
		s.release()
	}
}

// ContextProcessor contributes variables to a request context when it is
// bound to a template.
type ContextProcessor func(request any) map[string]any

func builtinsFrame() map[string]any {
	return map[string]any{BuiltinTrue: true, BuiltinFalse: false, BuiltinNone: nil}
}

// Context is the stack of variable frames a template renders against.
// A Context belongs to one render at a time.
type Context struct {
	dicts []map[string]any

	// Autoescape turns HTML escaping of variable output on or off.
	Autoescape bool
	// UseL10n and UseTZ override the engine settings when non-nil.
	UseL10n *bool
	UseTZ   *bool
	// TemplateName is the name of the template currently bound.
	TemplateName string

	renderContext *RenderContext
	template      *Template

	request         any
	processors      []ContextProcessor
	processorsIndex int
}

// NewContext creates a context with the builtins frame and, when values is
// non-nil, a frame holding values. Autoescaping is on.
func NewContext(values map[string]any) *Context {
	c := &Context{
		Autoescape:      true,
		renderContext:   NewRenderContext(),
		processorsIndex: -1,
	}
	c.resetDicts(values)
	return c
}

// NewRequestContext creates a context whose processors run against request
// each time it is bound to a template. Processor output sits below values,
// so values win on conflicts.
func NewRequestContext(request any, values map[string]any, processors ...ContextProcessor) *Context {
	c := NewContext(nil)
	c.request = request
	c.processors = processors
	c.processorsIndex = len(c.dicts)
	c.dicts = append(c.dicts, map[string]any{})
	if values != nil {
		c.dicts = append(c.dicts, copyFrame(values))
	}
	return c
}

func (c *Context) resetDicts(values map[string]any) {
	c.dicts = []map[string]any{builtinsFrame()}
	if values != nil {
		c.dicts = append(c.dicts, copyFrame(values))
	}
}

func copyFrame(m map[string]any) map[string]any {
	frame := make(map[string]any, len(m))
	for k, v := range m {
		frame[k] = v
	}
	return frame
}

// Push appends one frame per mapping, or a single empty frame. Closing the
// returned scope pops exactly those frames.
func (c *Context) Push(frames ...map[string]any) *Scope {
	depth := len(c.dicts)
	if len(frames) == 0 {
		c.dicts = append(c.dicts, map[string]any{})
	}
	for _, f := range frames {
		c.dicts = append(c.dicts, copyFrame(f))
	}
	return &Scope{release: func() {
		if len(c.dicts) > depth {
			c.dicts = c.dicts[:depth]
		}
	}}
}

// Update pushes values as a new frame.
func (c *Context) Update(values map[string]any) *Scope {
	return c.Push(values)
}

// Pop removes and returns the top frame. The builtins frame cannot be popped.
func (c *Context) Pop() (map[string]any, error) {
	if len(c.dicts) == 1 {
		return nil, NewError(ErrContextPop, ErrMsgContextPop)
	}
	top := c.dicts[len(c.dicts)-1]
	c.dicts = c.dicts[:len(c.dicts)-1]
	return top, nil
}

// Depth returns the number of frames, including the builtins frame.
func (c *Context) Depth() int { return len(c.dicts) }

// Set binds key in the top frame.
func (c *Context) Set(key string, value any) {
	c.dicts[len(c.dicts)-1][key] = value
}

// SetUpward overwrites key in the nearest frame that defines it, or sets
// it in the top frame.
func (c *Context) SetUpward(key string, value any) {
	for i := len(c.dicts) - 1; i >= 0; i-- {
		if _, ok := c.dicts[i][key]; ok {
			c.dicts[i][key] = value
			return
		}
	}
	c.Set(key, value)
}

// Get looks key up from the newest frame to the oldest.
func (c *Context) Get(key string) (any, bool) {
	for i := len(c.dicts) - 1; i >= 0; i-- {
		if v, ok := c.dicts[i][key]; ok {
			return v, true
		}
	}
	return nil, false
}

// GetOr returns the value for key or otherwise.
func (c *Context) GetOr(key string, otherwise any) any {
	if v, ok := c.Get(key); ok {
		return v
	}
	return otherwise
}

// Has reports whether any frame defines key.
func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes key from the top frame. It reports whether key was there.
func (c *Context) Delete(key string) bool {
	top := c.dicts[len(c.dicts)-1]
	if _, ok := top[key]; !ok {
		return false
	}
	delete(top, key)
	return true
}

// SetDefault returns the value for key, binding it to def first if unset.
func (c *Context) SetDefault(key string, def any) any {
	if v, ok := c.Get(key); ok {
		return v
	}
	c.Set(key, def)
	return def
}

// Flatten merges all frames into one map; newer frames win.
func (c *Context) Flatten() map[string]any {
	flat := make(map[string]any)
	for _, d := range c.dicts {
		for k, v := range d {
			flat[k] = v
		}
	}
	return flat
}

// Keys returns every bound name, sorted.
func (c *Context) Keys() []string {
	flat := c.Flatten()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal compares the flattened contents of two contexts.
func (c *Context) Equal(other *Context) bool {
	if other == nil {
		return false
	}
	a, b := c.Flatten(), other.Flatten()
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || !compareEqual(v, ov) {
			return false
		}
	}
	return true
}

// New returns an independent context with the same flags, template binding
// and render state, holding only the builtins and values.
func (c *Context) New(values map[string]any) *Context {
	dup := *c
	dup.renderContext = c.renderContext.copy()
	dup.processors = nil
	dup.processorsIndex = -1
	dup.resetDicts(values)
	return &dup
}

// RenderContext returns the node-private render state
func (c *Context) RenderContext() *RenderContext { return c.renderContext }

// Template returns the bound template, or nil.
func (c *Context) Template() *Template { return c.template }

// BindTemplate binds t for the duration of the returned scope and runs
// request processors.
func (c *Context) BindTemplate(t *Template) (*Scope, error) {
	if c.template != nil {
		return nil, fmt.Errorf(ErrFmtContextBound, c.template.Name)
	}
	c.template = t
	c.TemplateName = t.Name
	if c.processorsIndex >= 0 && c.processorsIndex < len(c.dicts) {
		updates := map[string]any{}
		procs := append(append([]ContextProcessor{}, t.engine.ContextProcessors()...), c.processors...)
		for _, p := range procs {
			for k, v := range p(c.request) {
				updates[k] = v
			}
		}
		c.dicts[c.processorsIndex] = updates
	}
	return &Scope{release: func() {
		c.template = nil
		c.TemplateName = ""
		if c.processorsIndex >= 0 && c.processorsIndex < len(c.dicts) {
			c.dicts[c.processorsIndex] = map[string]any{}
		}
	}}, nil
}

func (c *Context) engine() *Engine {
	if c.template != nil && c.template.engine != nil {
		return c.template.engine
	}
	return fallbackEngine()
}

func (c *Context) localizer() Localizer { return c.engine().Localizer() }

func (c *Context) logger() *zap.Logger { return c.engine().Logger() }

func (c *Context) useL10n() bool {
	if c.UseL10n != nil {
		return *c.UseL10n
	}
	return c.engine().UseL10n()
}

func (c *Context) useTZ() bool {
	if c.UseTZ != nil {
		return *c.UseTZ
	}
	return c.engine().UseTZ()
}

func (c *Context) templateNameOrUnknown() string {
	if c.TemplateName != "" {
		return c.TemplateName
	}
	return "unknown"
}

// RenderContext is per-render storage private to nodes. Reads and writes
// only see the top frame, so state does not leak between templates.
type RenderContext struct {
	dicts    []map[any]any
	template *Template
	depth    int
}

// NewRenderContext creates a render context with one empty frame
func NewRenderContext() *RenderContext {
	return &RenderContext{dicts: []map[any]any{{}}}
}

func (r *RenderContext) copy() *RenderContext {
	dup := *r
	dup.dicts = append([]map[any]any(nil), r.dicts...)
	return &dup
}

func (r *RenderContext) top() map[any]any { return r.dicts[len(r.dicts)-1] }

// Get reads key from the top frame
func (r *RenderContext) Get(key any) (any, bool) {
	v, ok := r.top()[key]
	return v, ok
}

// Set writes key in the top frame
func (r *RenderContext) Set(key, value any) { r.top()[key] = value }

// Has reports whether the top frame holds key
func (r *RenderContext) Has(key any) bool {
	_, ok := r.top()[key]
	return ok
}

// Root returns the bottom frame, shared by every template of the render.
func (r *RenderContext) Root() map[any]any { return r.dicts[0] }

// Push adds an empty frame until the scope is closed
func (r *RenderContext) Push() *Scope {
	depth := len(r.dicts)
	r.dicts = append(r.dicts, map[any]any{})
	return &Scope{release: func() {
		if len(r.dicts) > depth {
			r.dicts = r.dicts[:depth]
		}
	}}
}

// Template returns the template currently rendering
func (r *RenderContext) Template() *Template { return r.template }

// Depth returns how many templates are nested in the current render.
func (r *RenderContext) Depth() int { return r.depth }

// PushState records t as the rendering template and, when isolated, gives
// it a fresh frame. It fails once nesting exceeds the engine's max depth.
func (r *RenderContext) PushState(t *Template, isolated bool) (*Scope, error) {
	eng := fallbackEngine()
	name := ""
	if t != nil {
		name = t.Name
		if t.engine != nil {
			eng = t.engine
		}
	}
	if limit := eng.MaxDepth(); r.depth >= limit {
		eng.Logger().Warn(LogMsgRecursionLimit, zap.String(LogFieldTemplate, name), zap.Int(LogFieldDepth, r.depth))
		return nil, Errorf(ErrRecursionLimit, ErrFmtRecursionLimit, limit, name)
	}
	initial := r.template
	r.template = t
	r.depth++
	var frame *Scope
	if isolated {
		frame = r.Push()
	}
	return &Scope{release: func() {
		r.template = initial
		r.depth--
		frame.Close()
	}}, nil
}
