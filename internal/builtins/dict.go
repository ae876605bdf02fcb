package builtins

import "github.com/blade-lang/blade/internal/value"

var dictMethods = map[string]Method{
	"length": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return value.Number(float64(len(r.AsDict().Names))), nil
	},
	"to_string": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return vm.NewString(value.ToString(r)), nil
	},
	"keys": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		d := r.AsDict()
		elems := make([]value.Value, len(d.Names))
		copy(elems, d.Names)
		l := &value.List{Elems: elems}
		vm.Track(&l.Object, 16+len(elems)*8)
		return value.Obj(&l.Object), nil
	},
	"values": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		d := r.AsDict()
		elems := make([]value.Value, 0, len(d.Names))
		for _, k := range d.Names {
			v, _ := d.Items.Get(k)
			elems = append(elems, v)
		}
		l := &value.List{Elems: elems}
		vm.Track(&l.Object, 16+len(elems)*8)
		return value.Obj(&l.Object), nil
	},
	"contains": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		if len(a) != 1 {
			return argErr(vm, "contains()", "1 argument")
		}
		_, ok := r.AsDict().Items.Get(a[0])
		return value.Bool(ok), nil
	},
	"get": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		if len(a) < 1 {
			return argErr(vm, "get()", "at least 1 argument")
		}
		if v, ok := r.AsDict().Items.Get(a[0]); ok {
			return v, nil
		}
		if len(a) > 1 {
			return a[1], nil
		}
		return value.Nil, nil
	},
	"remove": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		if len(a) != 1 {
			return argErr(vm, "remove()", "1 argument")
		}
		d := r.AsDict()
		val, ok := d.Items.Get(a[0])
		if !ok {
			return value.Nil, nil
		}
		d.Items.Delete(a[0])
		for i, k := range d.Names {
			if value.Equal(k, a[0]) {
				d.Names = append(d.Names[:i], d.Names[i+1:]...)
				break
			}
		}
		return val, nil
	},
	"clone": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		src := r.AsDict()
		nd := &value.Dict{Items: value.NewTable()}
		for _, k := range src.Names {
			v, _ := src.Items.Get(k)
			nd.Names = append(nd.Names, k)
			nd.Items.Set(k, v)
		}
		vm.Track(&nd.Object, 32+len(nd.Names)*16)
		return value.Obj(&nd.Object), nil
	},
	"@iter": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		i := int(a[0].AsNumber())
		names := r.AsDict().Names
		if i < 0 || i >= len(names) {
			return value.Empty, nil
		}
		return names[i], nil
	},
	"@itern": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		v, _ := r.AsDict().Items.Get(a[0])
		return v, nil
	},
}
