package builtins

import "github.com/blade-lang/blade/internal/value"

var bytesMethods = map[string]Method{
	"length": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return value.Number(float64(len(r.AsBytes().Data))), nil
	},
	"to_string": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return vm.NewString(string(r.AsBytes().Data)), nil
	},
	"to_list": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		data := r.AsBytes().Data
		elems := make([]value.Value, len(data))
		for i, b := range data {
			elems[i] = value.Number(float64(b))
		}
		l := &value.List{Elems: elems}
		vm.Track(&l.Object, 16+len(elems)*8)
		return value.Obj(&l.Object), nil
	},
	"@iter": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		i := int(a[0].AsNumber())
		if i < 0 || i >= len(r.AsBytes().Data) {
			return value.Empty, nil
		}
		return value.Number(float64(r.AsBytes().Data[i])), nil
	},
	"@itern": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return a[0], nil
	},
}
