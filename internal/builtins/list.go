package builtins

import (
	"sort"

	"github.com/blade-lang/blade/internal/value"
)

var listMethods = map[string]Method{
	"length": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return value.Number(float64(len(r.AsList().Elems))), nil
	},
	"to_string": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return vm.NewString(value.ToString(r)), nil
	},
	"to_list": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return r, nil
	},
	"append": appendElems,
	"push":   appendElems,
	"pop": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		l := r.AsList()
		if len(l.Elems) == 0 {
			return value.Nil, vm.RaiseError("IndexError", "pop from an empty list")
		}
		last := l.Elems[len(l.Elems)-1]
		l.Elems = l.Elems[:len(l.Elems)-1]
		return last, nil
	},
	"shift": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		l := r.AsList()
		if len(l.Elems) == 0 {
			return value.Nil, vm.RaiseError("IndexError", "shift from an empty list")
		}
		first := l.Elems[0]
		l.Elems = l.Elems[1:]
		return first, nil
	},
	"unshift": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		l := r.AsList()
		l.Elems = append(append([]value.Value{}, a...), l.Elems...)
		return r, nil
	},
	"contains": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		if len(a) != 1 {
			return argErr(vm, "contains()", "1 argument")
		}
		for _, e := range r.AsList().Elems {
			if value.Equal(e, a[0]) {
				return value.True, nil
			}
		}
		return value.False, nil
	},
	"index_of": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		if len(a) != 1 {
			return argErr(vm, "index_of()", "1 argument")
		}
		for i, e := range r.AsList().Elems {
			if value.Equal(e, a[0]) {
				return value.Number(float64(i)), nil
			}
		}
		return value.Number(-1), nil
	},
	"reverse": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		elems := r.AsList().Elems
		for i, j := 0, len(elems)-1; i < j; i, j = i+1, j-1 {
			elems[i], elems[j] = elems[j], elems[i]
		}
		return r, nil
	},
	"sort": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		elems := r.AsList().Elems
		sort.SliceStable(elems, func(i, j int) bool {
			if elems[i].IsNumber() && elems[j].IsNumber() {
				return elems[i].AsNumber() < elems[j].AsNumber()
			}
			return value.ToString(elems[i]) < value.ToString(elems[j])
		})
		return r, nil
	},
	"clone": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		src := r.AsList().Elems
		elems := make([]value.Value, len(src))
		copy(elems, src)
		l := &value.List{Elems: elems}
		vm.Track(&l.Object, 16+len(elems)*8)
		return value.Obj(&l.Object), nil
	},
	"extend": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		if len(a) != 1 || !a[0].IsList() {
			return argErr(vm, "extend()", "1 list argument")
		}
		l := r.AsList()
		l.Elems = append(l.Elems, a[0].AsList().Elems...)
		return r, nil
	},
	// @iter(i) yields the i-th element (the loop variable of a
	// single-variable for-in); @itern echoes it back, an element being
	// its own value.
	"@iter": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		i := int(a[0].AsNumber())
		if i < 0 || i >= len(r.AsList().Elems) {
			return value.Empty, nil
		}
		return r.AsList().Elems[i], nil
	},
	"@itern": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return a[0], nil
	},
}

func appendElems(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
	l := r.AsList()
	l.Elems = append(l.Elems, a...)
	return r, nil
}
