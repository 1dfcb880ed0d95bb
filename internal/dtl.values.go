package internal

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ToString renders any value the way template output shows it.
// nil renders as "None" and booleans as "True"/"False".
func ToString(v any) string {
	if v == nil {
		return StringValueNone
	}
	switch val := v.(type) {
	case string:
		return val
	case SafeString:
		return string(val)
	case bool:
		if val {
			return StringValueTrue
		}
		return StringValueFalse
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, IntBase10)
	case int32:
		return strconv.FormatInt(int64(val), IntBase10)
	case uint:
		return strconv.FormatUint(uint64(val), IntBase10)
	case uint64:
		return strconv.FormatUint(val, IntBase10)
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case []byte:
		return string(val)
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatFloat prints floats with a trailing ".0" for whole numbers and
// switches to exponent notation for very large or small magnitudes.
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < FloatExpLow || abs >= FloatExpHigh) {
		return strconv.FormatFloat(f, FloatExpFlag, FloatPrecision, FloatBitSize64)
	}
	s := strconv.FormatFloat(f, FloatFormatFlag, FloatPrecision, FloatBitSize64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ToInt converts numbers, booleans and integer strings to int.
// Floats are truncated.
func ToInt(v any) (int, error) {
	switch val := v.(type) {
	case nil:
		return 0, fmt.Errorf("cannot convert None to int")
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.Atoi(strings.TrimSpace(val))
	case SafeString:
		return strconv.Atoi(strings.TrimSpace(string(val)))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return int(rv.Float()), nil
	}
	return 0, fmt.Errorf("cannot convert %T to int", v)
}

// ToFloat converts numbers, booleans and numeric strings to float64.
func ToFloat(v any) (float64, error) {
	switch val := v.(type) {
	case nil:
		return 0, fmt.Errorf("cannot convert None to float")
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(val), FloatBitSize64)
	case SafeString:
		return strconv.ParseFloat(strings.TrimSpace(string(val)), FloatBitSize64)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return 0, fmt.Errorf("cannot convert %T to float", v)
}

// toNumber reports v as float64 when it is a Go numeric type.
func toNumber(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// IsTruthy determines the truthiness of a value
// Truthiness rules:
// - nil -> false
// - bool -> value
// - numbers -> n != 0
// - string/slice/array/map -> len > 0
// - nil pointers and interfaces -> false
// - everything else -> true
func IsTruthy(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return len(val) > 0
	case SafeString:
		return len(val) > 0
	case time.Time:
		return true
	}
	if n, ok := toNumber(v); ok {
		return n != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface, reflect.Func:
		return !rv.IsNil()
	default:
		return true
	}
}

// Length returns the length of strings (in characters), slices, arrays and
// maps. ok is false for values without a length.
func Length(v any) (int, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case string:
		return utf8.RuneCountInString(val), true
	case SafeString:
		return utf8.RuneCountInString(string(val)), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return rv.Len(), true
	}
	return 0, false
}

// Iterate returns the items a for loop visits: elements of slices and
// arrays, sorted keys of maps, and characters of strings.
func Iterate(v any) ([]any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return val, nil
	case string:
		return stringChars(val), nil
	case SafeString:
		return stringChars(string(val)), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return items, nil
	case reflect.Map:
		return sortedMapKeys(rv), nil
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
		return Iterate(rv.Elem().Interface())
	}
	return nil, fmt.Errorf(ErrFmtNotIterable, v)
}

func stringChars(s string) []any {
	items := make([]any, 0, len(s))
	for _, r := range s {
		items = append(items, string(r))
	}
	return items
}

// sortedMapKeys returns the keys of a map ordered by their string form.
func sortedMapKeys(rv reflect.Value) []any {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return compareMapKeys(keys[i].Interface(), keys[j].Interface())
	})
	items := make([]any, len(keys))
	for i, k := range keys {
		items[i] = k.Interface()
	}
	return items
}

func compareMapKeys(a, b any) bool {
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		return an < bn
	}
	return ToString(a) < ToString(b)
}

// mapItems returns [key, value] pairs of a map in key order.
func mapItems(rv reflect.Value) []any {
	keys := sortedMapKeys(rv)
	items := make([]any, len(keys))
	for i, k := range keys {
		items[i] = []any{k, rv.MapIndex(reflect.ValueOf(k)).Interface()}
	}
	return items
}

// mapValues returns the values of a map in key order.
func mapValues(rv reflect.Value) []any {
	keys := sortedMapKeys(rv)
	items := make([]any, len(keys))
	for i, k := range keys {
		items[i] = rv.MapIndex(reflect.ValueOf(k)).Interface()
	}
	return items
}

// compareEqual checks if two values are equal, treating all numeric types
// and both string types as comparable with each other.
func compareEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		return an == bn
	}
	as, aStr := stringValue(a)
	bs, bStr := stringValue(b)
	if aStr && bStr {
		return as == bs
	}
	return reflect.DeepEqual(a, b)
}

// compareLess orders numbers, strings and times.
func compareLess(a, b any) (bool, error) {
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		return an < bn, nil
	}
	as, aStr := stringValue(a)
	bs, bStr := stringValue(b)
	if aStr && bStr {
		return as < bs, nil
	}
	at, aTime := a.(time.Time)
	bt, bTime := b.(time.Time)
	if aTime && bTime {
		return at.Before(bt), nil
	}
	return false, fmt.Errorf("cannot compare %T and %T", a, b)
}

func stringValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case SafeString:
		return string(val), true
	}
	return "", false
}

// mapLike returns the map behind v, following pointers.
func mapLike(v any) (reflect.Value, bool) {
	if v == nil {
		return reflect.Value{}, false
	}
	rv := indirect(reflect.ValueOf(v))
	return rv, rv.Kind() == reflect.Map
}

// contains implements the "in" operator: substring, element or map key.
func contains(container, item any) (bool, error) {
	if s, ok := stringValue(container); ok {
		sub, ok := stringValue(item)
		if !ok {
			return false, fmt.Errorf("'in <string>' requires string as left operand, not %T", item)
		}
		return strings.Contains(s, sub), nil
	}
	if container == nil {
		return false, fmt.Errorf("argument of type 'None' is not iterable")
	}
	rv := reflect.ValueOf(container)
	switch rv.Kind() {
	case reflect.Map:
		for _, k := range rv.MapKeys() {
			if compareEqual(k.Interface(), item) {
				return true, nil
			}
		}
		return false, nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if compareEqual(rv.Index(i).Interface(), item) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf(ErrFmtNotIterable, container)
}

// identical implements the "is" operator.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok || bok {
		return aok && bok && ab == bb
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() == reflect.Ptr && rb.Kind() == reflect.Ptr {
		return ra.Pointer() == rb.Pointer()
	}
	return false
}
