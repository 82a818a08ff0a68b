// Package optflags turns a tagged struct of flags into an argv slice.
//
// It is the static counterpart to the dynamic positional/keyword
// marshaller in the sh package: callers who would rather declare a
// typed options struct (one field per flag) than build a call out of
// sh.Flag(...) values can tag that struct with `flag:"--name"` and get
// flags in declaration order. Unlike the dynamic marshaller, which
// omits only a boolean false, ToArgv skips every zero-valued field
// unless its tag says ",keepzero".
package optflags

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// ToArgv walks s's exported fields in declaration order and emits one
// or more argv tokens per field carrying a `flag:"..."` tag. Embedded
// struct fields are flattened recursively. Zero-valued fields are
// skipped unless the tag carries a ",keepzero" modifier.
//
// Rules per field kind:
//   - bool: the flag alone, no value token. false is always skipped;
//     there's no bare-token way to say "this flag, but false".
//   - slice/array: the flag followed by one value token, once per
//     element.
//   - map[string]string: the flag followed by a single "k=v,k=v" token,
//     keys sorted for determinism.
//   - everything else: the flag followed by fmt.Sprintf("%v", value).
func ToArgv[T any](s T) []string {
	return toArgvReflect(reflect.ValueOf(s))
}

func toArgvReflect(sv reflect.Value) []string {
	if sv.Kind() == reflect.Pointer {
		if sv.IsNil() {
			return nil
		}
		sv = sv.Elem()
	}
	st := sv.Type()

	var ret []string
	for i := range st.NumField() {
		field := st.Field(i)
		fv := sv.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			ret = append(ret, toArgvReflect(fv)...)
			continue
		}
		tag, ok := field.Tag.Lookup("flag")
		if !ok {
			continue
		}
		parts := strings.Split(tag, ",")
		name := parts[0]
		keepZero := len(parts) > 1 && strings.EqualFold(parts[1], "keepzero")

		if !keepZero && fv.IsZero() {
			continue
		}

		switch field.Type.Kind() {
		case reflect.Bool:
			if fv.Bool() {
				ret = append(ret, name)
			}
		case reflect.Array, reflect.Slice:
			for j := 0; j < fv.Len(); j++ {
				ret = append(ret, name, fmt.Sprintf("%v", fv.Index(j)))
			}
		case reflect.Map:
			m, ok := fv.Interface().(map[string]string)
			if !ok {
				ret = append(ret, name, fmt.Sprintf("%v", fv.Interface()))
				continue
			}
			pairs := make([]string, 0, len(m))
			for _, k := range slices.Sorted(maps.Keys(m)) {
				pairs = append(pairs, fmt.Sprintf("%s=%s", k, m[k]))
			}
			ret = append(ret, name, strings.Join(pairs, ","))
		default:
			ret = append(ret, name, fmt.Sprintf("%v", fv.Interface()))
		}
	}
	return ret
}
