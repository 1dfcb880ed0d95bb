package internal

import (
	"slices"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// TagCompiler turns a block token into a node. It may consume further
// tokens from the parser.
type TagCompiler func(p *Parser, tok Token) (Node, error)

// Library maps names to tag compilers and filters. It is safe for
// concurrent use. A later registration under an existing name replaces
// the earlier one.
type Library struct {
	tags    map[string]TagCompiler
	filters map[string]*Filter
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewLibrary creates an empty library.
func NewLibrary(logger *zap.Logger) *Library {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Library{
		tags:    make(map[string]TagCompiler),
		filters: make(map[string]*Filter),
		logger:  logger,
	}
}

// RegisterTag adds compiler under name.
func (l *Library) RegisterTag(name string, compiler TagCompiler) error {
	if name == "" {
		return NewError(ErrInvalidTemplateLibrary, ErrMsgEmptyName)
	}
	if compiler == nil {
		return NewError(ErrInvalidTemplateLibrary, ErrMsgNilCompiler)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.tags[name]; exists {
		l.logger.Warn(LogMsgTagOverridden, zap.String(LogFieldTag, name))
	}
	l.tags[name] = compiler
	l.logger.Debug(LogMsgTagRegistered, zap.String(LogFieldTag, name))
	return nil
}

// Tag registers compiler under the name of its function.
func (l *Library) Tag(compiler TagCompiler) error {
	return l.RegisterTag(funcName(compiler), compiler)
}

// TagNamed returns a registration func bound to name.
func (l *Library) TagNamed(name string) func(TagCompiler) error {
	return func(compiler TagCompiler) error {
		return l.RegisterTag(name, compiler)
	}
}

// MustRegisterTag is RegisterTag that panics on error.
func (l *Library) MustRegisterTag(name string, compiler TagCompiler) {
	if err := l.RegisterTag(name, compiler); err != nil {
		panic(err)
	}
}

// RegisterFilter wraps fn as a filter named name.
func (l *Library) RegisterFilter(name string, fn any, opts ...FilterOption) error {
	f, err := NewFilter(name, fn, opts...)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.filters[name]; exists {
		l.logger.Warn(LogMsgFilterOverridden, zap.String(LogFieldFilter, name))
	}
	l.filters[name] = f
	l.logger.Debug(LogMsgFilterRegistered, zap.String(LogFieldFilter, name))
	return nil
}

func (l *Library) addFilter(f *Filter) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.filters[f.Name] = f
}

// Filter registers fn under the name of its function.
func (l *Library) Filter(fn any, opts ...FilterOption) error {
	return l.RegisterFilter(funcName(fn), fn, opts...)
}

// FilterNamed returns a registration func bound to name and opts.
func (l *Library) FilterNamed(name string, opts ...FilterOption) func(fn any) error {
	return func(fn any) error {
		return l.RegisterFilter(name, fn, opts...)
	}
}

// MustRegisterFilter is RegisterFilter that panics on error.
func (l *Library) MustRegisterFilter(name string, fn any, opts ...FilterOption) {
	if err := l.RegisterFilter(name, fn, opts...); err != nil {
		panic(err)
	}
}

// LookupTag returns the compiler registered under name.
func (l *Library) LookupTag(name string) (TagCompiler, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.tags[name]
	return c, ok
}

// LookupFilter returns the filter registered under name.
func (l *Library) LookupFilter(name string) (*Filter, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	f, ok := l.filters[name]
	return f, ok
}

// TagNames returns the registered tag names, sorted.
func (l *Library) TagNames() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return sortedKeys(l.tags)
}

// FilterNames returns the registered filter names, sorted.
func (l *Library) FilterNames() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return sortedKeys(l.filters)
}

// mergeInto copies the library's entries into tags and filters.
func (l *Library) mergeInto(tags map[string]TagCompiler, filters map[string]*Filter) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for k, v := range l.tags {
		tags[k] = v
	}
	for k, v := range l.filters {
		filters[k] = v
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TagParams declares the arguments a simple or inclusion tag accepts.
// Defaults apply to the last len(Defaults) entries of Params.
type TagParams struct {
	Params         []string
	Defaults       []any
	Varargs        bool
	Varkw          bool
	KwOnly         []string
	KwOnlyDefaults map[string]any
}

func (tp TagParams) validate(name string) error {
	if len(tp.Defaults) > len(tp.Params) {
		return Errorf(ErrInvalidTemplateLibrary, ErrFmtTagParamsDefaults, name)
	}
	seen := make(map[string]bool, len(tp.Params)+len(tp.KwOnly))
	for _, p := range append(append([]string{}, tp.Params...), tp.KwOnly...) {
		if seen[p] {
			return Errorf(ErrInvalidTemplateLibrary, ErrFmtTagParamsDuplicate, name, p)
		}
		seen[p] = true
	}
	return nil
}

func (tp TagParams) isKnown(param string) bool {
	return slices.Contains(tp.Params, param) || slices.Contains(tp.KwOnly, param)
}

// TagArgs holds the resolved arguments passed to a tag function.
type TagArgs struct {
	Args   []any
	Kwargs map[string]any
	params TagParams
}

// Lookup returns the value bound to the declared parameter name, taken
// from keyword arguments, then positional arguments, then defaults.
func (a TagArgs) Lookup(name string) (any, bool) {
	if v, ok := a.Kwargs[name]; ok {
		return v, true
	}
	for i, p := range a.params.Params {
		if p != name {
			continue
		}
		if i < len(a.Args) {
			return a.Args[i], true
		}
		if d := i - (len(a.params.Params) - len(a.params.Defaults)); d >= 0 {
			return a.params.Defaults[d], true
		}
		return nil, false
	}
	if v, ok := a.params.KwOnlyDefaults[name]; ok {
		return v, true
	}
	return nil, false
}

// Get is Lookup without the presence flag.
func (a TagArgs) Get(name string) any {
	v, _ := a.Lookup(name)
	return v
}

// String returns the named argument as a string, "" when unbound.
func (a TagArgs) String(name string) string {
	v, ok := a.Lookup(name)
	if !ok {
		return ""
	}
	return ToString(v)
}

// Varargs returns the positional arguments beyond the declared params.
func (a TagArgs) Varargs() []any {
	if len(a.Args) <= len(a.params.Params) {
		return nil
	}
	return a.Args[len(a.params.Params):]
}

// ExtraKwargs returns keyword arguments that match no declared param.
func (a TagArgs) ExtraKwargs() map[string]any {
	extra := map[string]any{}
	for k, v := range a.Kwargs {
		if !a.params.isKnown(k) {
			extra[k] = v
		}
	}
	return extra
}

// SimpleTagFunc computes a simple tag's output from its arguments.
type SimpleTagFunc func(ctx *Context, args TagArgs) (any, error)

// InclusionTagFunc computes the variables an inclusion tag renders its
// template with.
type InclusionTagFunc func(ctx *Context, args TagArgs) (map[string]any, error)

// SimpleTag registers a tag that calls fn with resolved arguments. A
// trailing "as name" stores the result instead of printing it.
func (l *Library) SimpleTag(name string, params TagParams, fn SimpleTagFunc) error {
	if err := params.validate(name); err != nil {
		return err
	}
	if fn == nil {
		return NewError(ErrInvalidTemplateLibrary, ErrMsgNilCompiler)
	}
	return l.RegisterTag(name, func(p *Parser, tok Token) (Node, error) {
		bits := tok.SplitContents()[1:]
		target := ""
		if len(bits) >= 2 && bits[len(bits)-2] == KeywordAs {
			target = bits[len(bits)-1]
			bits = bits[:len(bits)-2]
		}
		args, kwargs, err := ParseBits(p, bits, params, name)
		if err != nil {
			return nil, err
		}
		return &SimpleNode{
			tagHelper: tagHelper{params: params, args: args, kwargs: kwargs},
			fn:        fn,
			TargetVar: target,
		}, nil
	})
}

// InclusionTag registers a tag that renders templateName with the
// variables fn returns, in an isolated context.
func (l *Library) InclusionTag(name, templateName string, params TagParams, fn InclusionTagFunc) error {
	if err := params.validate(name); err != nil {
		return err
	}
	if fn == nil {
		return NewError(ErrInvalidTemplateLibrary, ErrMsgNilCompiler)
	}
	if templateName == "" {
		return NewError(ErrInvalidTemplateLibrary, ErrMsgEmptyTemplateName)
	}
	return l.RegisterTag(name, func(p *Parser, tok Token) (Node, error) {
		args, kwargs, err := ParseBits(p, tok.SplitContents()[1:], params, name)
		if err != nil {
			return nil, err
		}
		return &InclusionNode{
			tagHelper:    tagHelper{params: params, args: args, kwargs: kwargs},
			fn:           fn,
			TemplateName: templateName,
		}, nil
	})
}

type tagHelper struct {
	BaseNode
	params TagParams
	args   []*FilterExpression
	kwargs map[string]*FilterExpression
}

func (h *tagHelper) resolveArguments(ctx *Context) (TagArgs, error) {
	out := TagArgs{Args: make([]any, 0, len(h.args)), Kwargs: make(map[string]any, len(h.kwargs)), params: h.params}
	for _, fe := range h.args {
		v, err := fe.Resolve(ctx)
		if err != nil {
			return out, err
		}
		out.Args = append(out.Args, v)
	}
	for k, fe := range h.kwargs {
		v, err := fe.Resolve(ctx)
		if err != nil {
			return out, err
		}
		out.Kwargs[k] = v
	}
	return out, nil
}

// SimpleNode renders a simple tag.
type SimpleNode struct {
	tagHelper
	fn        SimpleTagFunc
	TargetVar string
}

// Render implements Node
func (n *SimpleNode) Render(ctx *Context) (string, error) {
	args, err := n.resolveArguments(ctx)
	if err != nil {
		return "", err
	}
	out, err := n.fn(ctx, args)
	if err != nil {
		return "", err
	}
	if n.TargetVar != "" {
		ctx.Set(n.TargetVar, out)
		return "", nil
	}
	if ctx.Autoescape {
		return string(ConditionalEscape(out)), nil
	}
	return ToString(out), nil
}

// InclusionNode renders an inclusion tag's template.
type InclusionNode struct {
	tagHelper
	fn           InclusionTagFunc
	TemplateName string
}

// Render implements Node
func (n *InclusionNode) Render(ctx *Context) (string, error) {
	args, err := n.resolveArguments(ctx)
	if err != nil {
		return "", err
	}
	values, err := n.fn(ctx, args)
	if err != nil {
		return "", err
	}
	var t *Template
	if cached, ok := ctx.RenderContext().Get(n); ok {
		t = cached.(*Template)
	} else {
		t, err = ctx.engine().GetTemplate(n.TemplateName)
		if err != nil {
			return "", err
		}
		ctx.RenderContext().Set(n, t)
	}
	child := ctx.New(values)
	if token, ok := ctx.Get(ContextKeyCSRFToken); ok && token != nil {
		child.Set(ContextKeyCSRFToken, token)
	}
	return t.Render(child)
}

// ParseBits matches tag arguments against params. Arguments are either
// positional or name=value; positional ones may not follow keywords.
func ParseBits(p *Parser, bits []string, params TagParams, name string) ([]*FilterExpression, map[string]*FilterExpression, error) {
	var args []*FilterExpression
	kwargs := map[string]*FilterExpression{}
	unhandledParams := append([]string{}, params.Params...)
	var unhandledKwargs []string
	for _, kw := range params.KwOnly {
		if _, hasDefault := params.KwOnlyDefaults[kw]; !hasDefault {
			unhandledKwargs = append(unhandledKwargs, kw)
		}
	}

	for _, bit := range bits {
		kwarg, _, err := TokenKwargs([]string{bit}, p, false)
		if err != nil {
			return nil, nil, err
		}
		if len(kwarg) > 0 {
			var param string
			var value *FilterExpression
			for param, value = range kwarg {
			}
			switch {
			case !params.isKnown(param) && !params.Varkw:
				return nil, nil, Errorf(ErrUnexpectedKeyword, ErrFmtUnexpectedKeyword, name, param)
			case kwargs[param] != nil:
				return nil, nil, Errorf(ErrDuplicateKeyword, ErrFmtDuplicateKeyword, name, param)
			}
			kwargs[param] = value
			if i := slices.Index(unhandledParams, param); i >= 0 {
				unhandledParams = append(unhandledParams[:i], unhandledParams[i+1:]...)
			} else if i := slices.Index(unhandledKwargs, param); i >= 0 {
				unhandledKwargs = append(unhandledKwargs[:i], unhandledKwargs[i+1:]...)
			}
			continue
		}
		if len(kwargs) > 0 {
			return nil, nil, Errorf(ErrInvalidSyntax, ErrFmtPositionalAfterKw, name)
		}
		fe, err := p.CompileFilter(bit)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, fe)
		if len(unhandledParams) > 0 {
			unhandledParams = unhandledParams[1:]
		} else if !params.Varargs {
			return nil, nil, Errorf(ErrTooManyArguments, ErrFmtTooManyPositional, name)
		}
	}

	// The last len(Defaults) unhandled params count as supplied.
	if n := len(params.Defaults); n > 0 {
		unhandledParams = unhandledParams[:max(0, len(unhandledParams)-n)]
	}
	if missing := append(unhandledParams, unhandledKwargs...); len(missing) > 0 {
		quoted := make([]string, len(missing))
		for i, m := range missing {
			quoted[i] = "'" + m + "'"
		}
		return nil, nil, Errorf(ErrMissingArgument, ErrFmtMissingArguments, name, strings.Join(quoted, ", "))
	}
	return args, kwargs, nil
}

// TokenKwargs parses leading keyword arguments from bits: name=value
// pairs, or with supportLegacy the "value as name and ..." form. It stops
// at the first bit that does not fit and returns the unconsumed bits.
func TokenKwargs(bits []string, p *Parser, supportLegacy bool) (map[string]*FilterExpression, []string, error) {
	kwargs := map[string]*FilterExpression{}
	if len(bits) == 0 {
		return kwargs, bits, nil
	}
	_, _, kwargFormat := splitKwarg(bits[0])
	if !kwargFormat && (!supportLegacy || len(bits) < 3 || bits[1] != KeywordAs) {
		return kwargs, bits, nil
	}

	for len(bits) > 0 {
		var key, value string
		if kwargFormat {
			k, v, ok := splitKwarg(bits[0])
			if !ok {
				return kwargs, bits, nil
			}
			key, value = k, v
			bits = bits[1:]
		} else {
			if len(bits) < 3 || bits[1] != KeywordAs {
				return kwargs, bits, nil
			}
			key, value = bits[2], bits[0]
			bits = bits[3:]
		}
		fe, err := p.CompileFilter(value)
		if err != nil {
			return nil, nil, err
		}
		kwargs[key] = fe
		if len(bits) > 0 && !kwargFormat {
			if bits[0] != KeywordAnd {
				return kwargs, bits, nil
			}
			bits = bits[1:]
		}
	}
	return kwargs, bits, nil
}

// splitKwarg splits "name=value" where name is a word and value is
// non-empty.
func splitKwarg(bit string) (string, string, bool) {
	i := strings.IndexByte(bit, '=')
	if i <= 0 || i == len(bit)-1 || scanWord(bit, 0) != i {
		return "", "", false
	}
	return bit[:i], bit[i+1:], true
}
