package internal

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Variable is a parsed literal or dotted lookup path. Exactly one of
// literal and lookups is set.
type Variable struct {
	raw       string
	literal   any
	lookups   []string
	translate bool
}

// NewVariable parses raw as a number, a quoted string (optionally wrapped
// in _() for translation) or a dotted lookup path.
func NewVariable(raw string) (*Variable, error) {
	v := &Variable{raw: raw}
	if lit, ok := parseNumber(raw); ok {
		v.literal = lit
		return v, nil
	}
	text := raw
	if strings.HasPrefix(text, TranslateOpen) && strings.HasSuffix(text, TranslateClose) {
		v.translate = true
		text = text[len(TranslateOpen) : len(text)-len(TranslateClose)]
	}
	if lit, ok := unescapeStringLiteral(text); ok {
		v.literal = SafeString(lit)
		return v, nil
	}
	if text == "" || strings.HasPrefix(text, "_") || strings.Contains(text, VariableAttributeSeparator+"_") {
		return nil, Errorf(ErrInvalidSyntax, ErrFmtUnderscoreVariable, text)
	}
	v.lookups = strings.Split(text, VariableAttributeSeparator)
	return v, nil
}

// parseNumber accepts decimal integers and floats. A float may not end in
// a bare ".".
func parseNumber(s string) (any, bool) {
	if s == "" || strings.Trim(s, "0123456789+-.eE") != "" {
		return nil, false
	}
	if strings.ContainsAny(s, ".eE") {
		if strings.HasSuffix(s, ".") {
			return nil, false
		}
		f, err := strconv.ParseFloat(s, FloatBitSize64)
		if err != nil {
			return nil, false
		}
		return f, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, false
	}
	return n, true
}

// unescapeStringLiteral strips matching quotes and unescapes \" or \' and \\.
func unescapeStringLiteral(s string) (string, bool) {
	if s == "" || (s[0] != '"' && s[0] != '\'') || s[len(s)-1] != s[0] {
		return "", false
	}
	quote := s[:1]
	if len(s) == 1 {
		return "", true
	}
	inner := s[1 : len(s)-1]
	inner = strings.ReplaceAll(inner, `\`+quote, quote)
	return strings.ReplaceAll(inner, `\\`, `\`), true
}

// String returns the source text of the variable
func (v *Variable) String() string { return v.raw }

// Literal returns the literal value and whether the variable is one.
func (v *Variable) Literal() (any, bool) { return v.literal, v.lookups == nil }

// Lookups returns the dotted path segments, nil for literals.
func (v *Variable) Lookups() []string { return v.lookups }

// Translate reports whether the value is translated at render time.
func (v *Variable) Translate() bool { return v.translate }

// Resolve returns the variable's value in ctx. A failed lookup returns a
// *LookupError matching ErrVariableDoesNotExist.
func (v *Variable) Resolve(ctx *Context) (any, error) {
	return v.resolve(ctx, v.translate, "")
}

func (v *Variable) resolve(ctx *Context, translate bool, messageContext string) (any, error) {
	var value any
	if v.lookups != nil {
		resolved, err := v.resolveLookup(ctx)
		if err != nil {
			return nil, err
		}
		value = resolved
	} else {
		value = v.literal
	}
	if !translate {
		return value, nil
	}
	translated := ctx.localizer().Translate(ToString(value), messageContext)
	if IsSafe(value) {
		return SafeString(translated), nil
	}
	return translated, nil
}

// resolveLookup walks the dotted path. Each segment is tried as a map key,
// then an attribute, then an integer index. Callables are invoked with no
// arguments after each step.
func (v *Variable) resolveLookup(ctx *Context) (any, error) {
	var current any
	for i, bit := range v.lookups {
		var (
			next  any
			found bool
		)
		if i == 0 {
			next, found = ctx.Get(bit)
		} else {
			next, found = lookupSegment(current, bit)
		}
		if !found {
			var container any = ctx
			if i > 0 {
				container = current
			}
			ctx.logger().Debug(LogMsgLookupFailed,
				zap.String(LogFieldVariable, v.raw),
				zap.String(LogFieldSegment, bit),
				zap.String(LogFieldTemplate, ctx.templateNameOrUnknown()))
			return nil, &LookupError{Var: v.raw, Segment: bit, Container: container}
		}
		called, err := callInTemplate(ctx, next)
		if err != nil {
			if isSilentFailure(err) {
				return ctx.engine().StringIfInvalid(), nil
			}
			return nil, err
		}
		current = called
	}
	return current, nil
}

// lookupSegment resolves one path segment against current.
func lookupSegment(current any, bit string) (any, bool) {
	if current == nil {
		return nil, false
	}
	if lk, ok := current.(Lookuper); ok {
		return lk.TemplateLookup(bit)
	}
	rv := reflect.ValueOf(current)
	if v, ok := lookupKey(rv, bit); ok {
		return v, true
	}
	if v, ok := lookupAttribute(rv, bit); ok {
		return v, true
	}
	if n, err := strconv.Atoi(bit); err == nil {
		return lookupIndex(rv, n)
	}
	return nil, false
}

// Lookuper lets a value answer dotted lookups itself.
type Lookuper interface {
	TemplateLookup(key string) (any, bool)
}

func lookupKey(rv reflect.Value, bit string) (any, bool) {
	rv = indirect(rv)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	mv := rv.MapIndex(reflect.ValueOf(bit).Convert(rv.Type().Key()))
	if !mv.IsValid() {
		return nil, false
	}
	return mv.Interface(), true
}

// lookupAttribute finds an exported field or method named bit, its
// capitalised form, or its CamelCase form (first_name -> FirstName).
// Struct fields may also be named with a `dtl:"name"` tag. Maps expose
// items, keys and values.
func lookupAttribute(rv reflect.Value, bit string) (any, bool) {
	if !rv.IsValid() {
		return nil, false
	}
	names := attributeNames(bit)
	for _, name := range names {
		if m := rv.MethodByName(name); m.IsValid() {
			return m.Interface(), true
		}
	}
	base := indirect(rv)
	switch base.Kind() {
	case reflect.Struct:
		if f, ok := fieldByTag(base, bit); ok {
			return f.Interface(), true
		}
		for _, name := range names {
			sf, ok := base.Type().FieldByName(name)
			if !ok || !sf.IsExported() {
				continue
			}
			return base.FieldByIndex(sf.Index).Interface(), true
		}
	case reflect.Map:
		switch bit {
		case "items":
			return mapItems(base), true
		case "keys":
			return sortedMapKeys(base), true
		case "values":
			return mapValues(base), true
		}
	}
	return nil, false
}

func lookupIndex(rv reflect.Value, n int) (any, bool) {
	rv = indirect(rv)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if n < 0 || n >= rv.Len() {
			return nil, false
		}
		return rv.Index(n).Interface(), true
	case reflect.String:
		chars := []rune(rv.String())
		if n < 0 || n >= len(chars) {
			return nil, false
		}
		return string(chars[n]), true
	case reflect.Map:
		key := reflect.ValueOf(n)
		if !key.CanConvert(rv.Type().Key()) {
			return nil, false
		}
		mv := rv.MapIndex(key.Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	}
	return nil, false
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

func fieldByTag(rv reflect.Value, bit string) (reflect.Value, bool) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := strings.Split(sf.Tag.Get("dtl"), ",")[0]
		if tag == bit {
			return rv.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func attributeNames(bit string) []string {
	names := make([]string, 0, 3)
	if r, _ := utf8.DecodeRuneInString(bit); unicode.IsUpper(r) {
		names = append(names, bit)
	}
	names = append(names, capitalize(bit))
	if strings.Contains(bit, "_") {
		parts := strings.Split(bit, "_")
		for i, p := range parts {
			parts[i] = capitalize(p)
		}
		names = append(names, strings.Join(parts, ""))
	}
	return names
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// DoNotCall is implemented by callables that templates must not invoke.
type DoNotCall interface {
	DoNotCallInTemplates() bool
}

// DataAlterer is implemented by callables with side effects. Templates
// see the invalid-string placeholder instead of calling them.
type DataAlterer interface {
	AltersData() bool
}

// flaggedCallable attaches call flags to a plain function value.
type flaggedCallable struct {
	fn         any
	doNotCall  bool
	altersData bool
}

func (f *flaggedCallable) DoNotCallInTemplates() bool { return f.doNotCall }

func (f *flaggedCallable) AltersData() bool { return f.altersData }

// MarkDoNotCall wraps fn so template lookups return it uncalled.
func MarkDoNotCall(fn any) any { return &flaggedCallable{fn: fn, doNotCall: true} }

// MarkAltersData wraps fn so template lookups never call it.
func MarkAltersData(fn any) any { return &flaggedCallable{fn: fn, altersData: true} }

// callInTemplate invokes zero-argument callables. The flags are checked
// before any call is made.
func callInTemplate(ctx *Context, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if dn, ok := value.(DoNotCall); ok && dn.DoNotCallInTemplates() {
		return value, nil
	}
	if da, ok := value.(DataAlterer); ok && da.AltersData() {
		if _, isFunc := unwrapCallable(value); isFunc {
			ctx.logger().Debug(LogMsgAltersDataBlocked, zap.String(LogFieldTemplate, ctx.templateNameOrUnknown()))
			return ctx.engine().StringIfInvalid(), nil
		}
	}
	fn, ok := unwrapCallable(value)
	if !ok {
		return value, nil
	}
	ft := fn.Type()
	if ft.NumIn() > 1 || (ft.NumIn() == 1 && !ft.IsVariadic()) {
		return ctx.engine().StringIfInvalid(), nil
	}
	var out []reflect.Value
	if ft.IsVariadic() {
		out = fn.CallSlice([]reflect.Value{reflect.MakeSlice(ft.In(0), 0, 0)})
	} else {
		out = fn.Call(nil)
	}
	return callResult(out)
}

func unwrapCallable(value any) (reflect.Value, bool) {
	if fc, ok := value.(*flaggedCallable); ok {
		value = fc.fn
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return reflect.Value{}, false
	}
	return rv, true
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// callResult maps a function's return values to (value, error).
func callResult(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type().Implements(errorType) && out[0].Type().Kind() == reflect.Interface {
			if err, _ := out[0].Interface().(error); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return out[0].Interface(), nil
	}
	last := out[len(out)-1]
	if last.Type().Implements(errorType) {
		if err, _ := last.Interface().(error); err != nil {
			return nil, err
		}
	}
	return out[0].Interface(), nil
}

// IsLookupFailure reports whether err is a missing-variable failure.
func IsLookupFailure(err error) bool {
	return errors.Is(err, ErrVariableDoesNotExist)
}
