package internal

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FilterOption sets a flag on a filter at registration time.
type FilterOption func(*Filter)

// FilterIsSafe marks a filter whose output stays safe when its input was.
func FilterIsSafe() FilterOption { return func(f *Filter) { f.IsSafe = true } }

// FilterNeedsAutoescape passes the context's autoescape flag as the
// filter function's last (bool) parameter.
func FilterNeedsAutoescape() FilterOption { return func(f *Filter) { f.NeedsAutoescape = true } }

// FilterExpectsLocaltime converts time values into the local zone before
// the filter sees them.
func FilterExpectsLocaltime() FilterOption { return func(f *Filter) { f.ExpectsLocaltime = true } }

// FilterDefaults supplies values for the trailing argument parameters,
// making them optional in templates.
func FilterDefaults(values ...any) FilterOption {
	return func(f *Filter) { f.defaults = values }
}

// Filter is a registered value transform. The function's first parameter
// receives the value; the remaining parameters receive template arguments.
// Arguments are converted to the parameter types.
type Filter struct {
	Name             string
	IsSafe           bool
	NeedsAutoescape  bool
	ExpectsLocaltime bool

	fn       reflect.Value
	params   []reflect.Type
	defaults []any
}

// NewFilter validates fn and builds a filter named name.
func NewFilter(name string, fn any, opts ...FilterOption) (*Filter, error) {
	if name == "" {
		return nil, NewError(ErrInvalidTemplateLibrary, ErrMsgEmptyName)
	}
	if fn == nil {
		return nil, NewError(ErrInvalidTemplateLibrary, ErrMsgNilFilter)
	}
	f := &Filter{Name: name, fn: reflect.ValueOf(fn)}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.validate(); err != nil {
		return nil, Errorf(ErrInvalidTemplateLibrary, ErrFmtFilterSignature, name, err.Error())
	}
	return f, nil
}

func (f *Filter) validate() error {
	if f.fn.Kind() != reflect.Func || f.fn.IsNil() {
		return errors.New(ErrMsgFilterNotFunc)
	}
	ft := f.fn.Type()
	if ft.IsVariadic() {
		return errors.New(ErrMsgFilterVariadic)
	}
	if ft.NumIn() < 1 {
		return errors.New(ErrMsgFilterNoValueParam)
	}
	switch ft.NumOut() {
	case 1:
	case 2:
		if !ft.Out(1).Implements(errorType) {
			return errors.New(ErrMsgFilterReturns)
		}
	default:
		return errors.New(ErrMsgFilterReturns)
	}
	last := ft.NumIn()
	if f.NeedsAutoescape {
		if ft.NumIn() < 2 || ft.In(ft.NumIn()-1).Kind() != reflect.Bool {
			return errors.New(ErrMsgFilterAutoescape)
		}
		last--
	}
	for i := 1; i < last; i++ {
		f.params = append(f.params, ft.In(i))
	}
	if len(f.defaults) > len(f.params) {
		return errors.New(ErrMsgFilterDefaults)
	}
	return nil
}

// MinArgs returns the number of template arguments that must be supplied
func (f *Filter) MinArgs() int { return len(f.params) - len(f.defaults) }

// MaxArgs returns the number of template arguments the filter accepts
func (f *Filter) MaxArgs() int { return len(f.params) }

// CheckArgs validates the number of supplied template arguments.
func (f *Filter) CheckArgs(provided int) error {
	if provided < f.MinArgs() || provided > f.MaxArgs() {
		return Errorf(ErrArgumentCount, ErrFmtFilterArgCount, f.Name, f.MinArgs()+1, provided+1)
	}
	return nil
}

// Call applies the filter to value with the given template arguments.
func (f *Filter) Call(value any, args []any, autoescape bool) (any, error) {
	ft := f.fn.Type()
	in := make([]reflect.Value, 0, ft.NumIn())
	v, err := f.convert(value, ft.In(0))
	if err != nil {
		return nil, err
	}
	in = append(in, v)
	firstDefault := len(f.params) - len(f.defaults)
	for i, pt := range f.params {
		var arg any
		if i < len(args) {
			arg = args[i]
		} else {
			arg = f.defaults[i-firstDefault]
		}
		av, err := f.convert(arg, pt)
		if err != nil {
			return nil, err
		}
		in = append(in, av)
	}
	if f.NeedsAutoescape {
		in = append(in, reflect.ValueOf(autoescape).Convert(ft.In(ft.NumIn()-1)))
	}
	return callResult(f.fn.Call(in))
}

// convert adapts a template value to a filter parameter type.
func (f *Filter) convert(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(ToString(v)).Convert(t), nil
	case reflect.Bool:
		return reflect.ValueOf(IsTruthy(v)).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := ToInt(v)
		if err != nil {
			return reflect.Value{}, fmt.Errorf(ErrFmtCannotConvertArg, f.Name, v, t)
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Float32, reflect.Float64:
		n, err := ToFloat(v)
		if err != nil {
			return reflect.Value{}, fmt.Errorf(ErrFmtCannotConvertArg, f.Name, v, t)
		}
		return reflect.ValueOf(n).Convert(t), nil
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf(ErrFmtCannotConvertArg, f.Name, v, t)
}

// funcName derives a registration name from a function's identifier.
func funcName(fn any) string {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return ""
	}
	rf := runtime.FuncForPC(rv.Pointer())
	if rf == nil {
		return ""
	}
	name := rf.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}

// FilterFinder resolves filter names at compile time. *Parser implements it.
type FilterFinder interface {
	FindFilter(name string) (*Filter, error)
}

// FilterArg is one filter argument. Constant arguments are quoted string
// literals and are passed marked safe.
type FilterArg struct {
	Dynamic bool
	Var     *Variable
}

type appliedFilter struct {
	filter *Filter
	args   []FilterArg
}

// FilterExpression is a variable followed by a chain of filters, as in
// {{ value|lower|default:"none" }}.
type FilterExpression struct {
	token   string
	Var     *Variable
	isVar   bool
	filters []appliedFilter
}

// NewFilterExpression compiles token, looking filters up through finder.
func NewFilterExpression(token string, finder FilterFinder) (*FilterExpression, error) {
	fe := &FilterExpression{token: token}
	upto := 0
	for {
		m, ok := findFilterMatch(token, upto)
		if !ok {
			break
		}
		if m.start != upto {
			return nil, Errorf(ErrInvalidSyntax, ErrFmtParseSomeChars, token[:upto], token[upto:m.start], token[m.start:])
		}
		switch {
		case fe.Var == nil && m.constant != "":
			v, err := NewVariable(m.constant)
			if err != nil {
				return nil, err
			}
			fe.Var = v
		case fe.Var == nil && m.variable != "":
			v, err := NewVariable(m.variable)
			if err != nil {
				return nil, err
			}
			fe.Var = v
			fe.isVar = true
		case fe.Var == nil:
			return nil, Errorf(ErrInvalidSyntax, ErrFmtNoVariableAtStart, token)
		default:
			filter, err := finder.FindFilter(m.name)
			if err != nil {
				return nil, err
			}
			var args []FilterArg
			switch {
			case m.constArg != "":
				v, err := NewVariable(m.constArg)
				if err != nil {
					return nil, err
				}
				args = append(args, FilterArg{Var: v})
			case m.varArg != "":
				v, err := NewVariable(m.varArg)
				if err != nil {
					return nil, err
				}
				args = append(args, FilterArg{Dynamic: true, Var: v})
			}
			if err := filter.CheckArgs(len(args)); err != nil {
				return nil, err
			}
			fe.filters = append(fe.filters, appliedFilter{filter: filter, args: args})
		}
		upto = m.end
	}
	if upto != len(token) {
		return nil, Errorf(ErrInvalidSyntax, ErrFmtParseRemainder, token[upto:], token)
	}
	if fe.Var == nil {
		return nil, Errorf(ErrInvalidSyntax, ErrFmtNoVariableAtStart, token)
	}
	return fe, nil
}

// String returns the source text of the expression
func (fe *FilterExpression) String() string { return fe.token }

// IsVar reports whether the expression starts with a lookup or number
// rather than a quoted constant.
func (fe *FilterExpression) IsVar() bool { return fe.isVar }

// FilterNames returns the applied filter names in order
func (fe *FilterExpression) FilterNames() []string {
	names := make([]string, len(fe.filters))
	for i, af := range fe.filters {
		names[i] = af.filter.Name
	}
	return names
}

type resolveMode int

const (
	resolveDefault resolveMode = iota
	resolveIgnoreFailures
	resolveStrict
)

// Resolve evaluates the expression. A missing variable becomes the
// engine's invalid string, or an error when the engine is strict.
func (fe *FilterExpression) Resolve(ctx *Context) (any, error) {
	if ctx.engine().StrictVariables() {
		return fe.resolve(ctx, resolveStrict)
	}
	return fe.resolve(ctx, resolveDefault)
}

// ResolveIgnoreFailures evaluates the expression with a missing variable
// resolving to nil before filters run.
func (fe *FilterExpression) ResolveIgnoreFailures(ctx *Context) (any, error) {
	return fe.resolve(ctx, resolveIgnoreFailures)
}

// ResolveStrict evaluates the expression and reports a missing variable
// as an error matching ErrVariableDoesNotExist.
func (fe *FilterExpression) ResolveStrict(ctx *Context) (any, error) {
	return fe.resolve(ctx, resolveStrict)
}

func (fe *FilterExpression) resolve(ctx *Context, mode resolveMode) (any, error) {
	return fe.resolveVar(ctx, mode, fe.Var.translate, "")
}

func (fe *FilterExpression) resolveVar(ctx *Context, mode resolveMode, translate bool, messageContext string) (any, error) {
	obj, err := fe.Var.resolve(ctx, translate, messageContext)
	if err != nil {
		if !IsLookupFailure(err) || mode == resolveStrict {
			return nil, err
		}
		if mode == resolveIgnoreFailures {
			obj = nil
		} else {
			invalid := ctx.engine().StringIfInvalid()
			if invalid != "" {
				if strings.Contains(invalid, "%s") {
					return strings.Replace(invalid, "%s", fe.Var.raw, 1), nil
				}
				return invalid, nil
			}
			obj = invalid
		}
	}
	for _, af := range fe.filters {
		args := make([]any, 0, len(af.args))
		for _, a := range af.args {
			if !a.Dynamic {
				lit, err := a.Var.Resolve(ctx)
				if err != nil {
					return nil, err
				}
				args = append(args, MarkSafe(lit))
				continue
			}
			val, err := a.Var.Resolve(ctx)
			if err != nil {
				return nil, err
			}
			args = append(args, val)
		}
		if af.filter.ExpectsLocaltime {
			obj = ctx.localizer().ToLocalTime(obj, ctx.useTZ())
		}
		out, err := af.filter.Call(obj, args, ctx.Autoescape)
		if err != nil {
			return nil, err
		}
		if af.filter.IsSafe && IsSafe(obj) {
			out = MarkSafe(out)
		}
		obj = out
	}
	return obj, nil
}

// filterMatch is one match of the filter-expression grammar.
type filterMatch struct {
	start, end int
	constant   string
	variable   string
	name       string
	constArg   string
	varArg     string
}

// findFilterMatch searches token from position from for the next match.
func findFilterMatch(token string, from int) (filterMatch, bool) {
	for i := from; i < len(token); i++ {
		if m, ok := matchFilterAt(token, i); ok {
			return m, true
		}
	}
	return filterMatch{}, false
}

// matchFilterAt matches at position i. A leading constant or variable is
// only recognised at the start of the token; afterwards only
// "|name[:arg]" segments match.
func matchFilterAt(s string, i int) (filterMatch, bool) {
	if i == 0 {
		if end, ok := matchConstant(s, 0); ok {
			return filterMatch{start: 0, end: end, constant: s[:end]}, true
		}
		if end, ok := matchVarOrNumber(s, 0); ok {
			return filterMatch{start: 0, end: end, variable: s[:end]}, true
		}
	}
	j := skipSpace(s, i)
	if j >= len(s) || s[j] != FilterSeparator {
		return filterMatch{}, false
	}
	j = skipSpace(s, j+1)
	nameEnd := scanWord(s, j)
	if nameEnd == j {
		return filterMatch{}, false
	}
	m := filterMatch{start: i, end: nameEnd, name: s[j:nameEnd]}
	if nameEnd < len(s) && s[nameEnd] == FilterArgumentSeparator {
		k := nameEnd + 1
		if end, ok := matchConstant(s, k); ok {
			m.constArg, m.end = s[k:end], end
		} else if end, ok := matchVarOrNumber(s, k); ok {
			m.varArg, m.end = s[k:end], end
		}
	}
	return m, true
}

// matchConstant matches "..." or '...' optionally wrapped in _( ).
func matchConstant(s string, i int) (int, bool) {
	if strings.HasPrefix(s[i:], TranslateOpen) {
		if end, ok := matchQuoted(s, i+len(TranslateOpen)); ok && strings.HasPrefix(s[end:], TranslateClose) {
			return end + len(TranslateClose), true
		}
		return 0, false
	}
	return matchQuoted(s, i)
}

func matchQuoted(s string, i int) (int, bool) {
	if i >= len(s) || (s[i] != '"' && s[i] != '\'') {
		return 0, false
	}
	end := closingQuote(s, i)
	if end < 0 {
		return 0, false
	}
	return end + 1, true
}

// matchVarOrNumber matches [\w.]+ or a signed number like -1.5e3.
func matchVarOrNumber(s string, i int) (int, bool) {
	j := i
	for j < len(s) {
		r, size := utf8.DecodeRuneInString(s[j:])
		if !isWordRune(r) && r != '.' {
			break
		}
		j += size
	}
	if j > i {
		return j, true
	}
	if j < len(s) && (s[j] == '-' || s[j] == '+' || s[j] == '.') {
		j++
	}
	if j >= len(s) || s[j] < '0' || s[j] > '9' {
		return 0, false
	}
	for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.' || s[j] == 'e') {
		j++
	}
	return j, true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r)
}

func scanWord(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isWordRune(r) {
			break
		}
		i += size
	}
	return i
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}
