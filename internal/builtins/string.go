package builtins

import (
	"strconv"
	"strings"

	"github.com/blade-lang/blade/internal/value"
)

var stringMethods = map[string]Method{
	"length": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return value.Number(float64(r.AsString().RuneLen)), nil
	},
	"to_string": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return r, nil
	},
	"to_number": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		f, err := strconv.ParseFloat(strings.TrimSpace(r.AsString().Chars), 64)
		if err != nil {
			return value.Number(0), nil
		}
		return value.Number(f), nil
	},
	"to_list": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		runes := []rune(r.AsString().Chars)
		elems := make([]value.Value, len(runes))
		for i, ch := range runes {
			elems[i] = vm.NewString(string(ch))
		}
		l := &value.List{Elems: elems}
		vm.Track(&l.Object, 16+len(elems)*8)
		return value.Obj(&l.Object), nil
	},
	"upper": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return vm.NewString(strings.ToUpper(r.AsString().Chars)), nil
	},
	"lower": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return vm.NewString(strings.ToLower(r.AsString().Chars)), nil
	},
	"trim": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return vm.NewString(strings.TrimSpace(r.AsString().Chars)), nil
	},
	"split": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		if len(a) != 1 || !a[0].IsString() {
			return argErr(vm, "split()", "1 string argument")
		}
		parts := strings.Split(r.AsString().Chars, a[0].AsString().Chars)
		elems := make([]value.Value, len(parts))
		for i, p := range parts {
			elems[i] = vm.NewString(p)
		}
		l := &value.List{Elems: elems}
		vm.Track(&l.Object, 16+len(elems)*8)
		return value.Obj(&l.Object), nil
	},
	"replace": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		if len(a) != 2 || !a[0].IsString() || !a[1].IsString() {
			return argErr(vm, "replace()", "2 string arguments")
		}
		return vm.NewString(strings.ReplaceAll(r.AsString().Chars, a[0].AsString().Chars, a[1].AsString().Chars)), nil
	},
	"contains": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		if len(a) != 1 || !a[0].IsString() {
			return argErr(vm, "contains()", "1 string argument")
		}
		return value.Bool(strings.Contains(r.AsString().Chars, a[0].AsString().Chars)), nil
	},
	"index_of": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		if len(a) != 1 || !a[0].IsString() {
			return argErr(vm, "index_of()", "1 string argument")
		}
		return value.Number(float64(strings.Index(r.AsString().Chars, a[0].AsString().Chars))), nil
	},
	"starts_with": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		if len(a) != 1 || !a[0].IsString() {
			return argErr(vm, "starts_with()", "1 string argument")
		}
		return value.Bool(strings.HasPrefix(r.AsString().Chars, a[0].AsString().Chars)), nil
	},
	"ends_with": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		if len(a) != 1 || !a[0].IsString() {
			return argErr(vm, "ends_with()", "1 string argument")
		}
		return value.Bool(strings.HasSuffix(r.AsString().Chars, a[0].AsString().Chars)), nil
	},
	// format substitutes "{}" placeholders left to right with
	// to_string() of each argument, the same minimal templating the
	// original builtin offered.
	"format": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		var b strings.Builder
		src := r.AsString().Chars
		argi := 0
		for i := 0; i < len(src); i++ {
			if src[i] == '{' && i+1 < len(src) && src[i+1] == '}' {
				if argi < len(a) {
					b.WriteString(value.ToString(a[argi]))
					argi++
				}
				i++
				continue
			}
			b.WriteByte(src[i])
		}
		return vm.NewString(b.String()), nil
	},
	"to_bytes": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		b := &value.Bytes{Data: []byte(r.AsString().Chars)}
		vm.Track(&b.Object, 16+len(b.Data))
		return value.Obj(&b.Object), nil
	},
	"@iter": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		i := int(a[0].AsNumber())
		runes := []rune(r.AsString().Chars)
		if i < 0 || i >= len(runes) {
			return value.Empty, nil
		}
		return vm.NewString(string(runes[i])), nil
	},
	"@itern": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return a[0], nil
	},
}
