package builtins

import "github.com/blade-lang/blade/internal/value"

func rangeLen(r *value.Range) int64 {
	if r.Upper >= r.Lower {
		return r.Upper - r.Lower
	}
	return r.Lower - r.Upper
}

var rangeMethods = map[string]Method{
	"lower": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return value.Number(float64(r.AsRange().Lower)), nil
	},
	"upper": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return value.Number(float64(r.AsRange().Upper)), nil
	},
	"length": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return value.Number(float64(rangeLen(r.AsRange()))), nil
	},
	// loop reports whether this range iterates downward (upper < lower),
	// the direction @iter/@itern below step in.
	"loop": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		rg := r.AsRange()
		return value.Bool(rg.Upper < rg.Lower), nil
	},
	// range_step(n) materializes every n'th value of the range into a
	// list, in iteration order.
	"range_step": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		if len(a) != 1 || !a[0].IsNumber() {
			return argErr(vm, "range_step()", "1 numeric argument")
		}
		step := int64(a[0].AsNumber())
		if step <= 0 {
			step = 1
		}
		rg := r.AsRange()
		var elems []value.Value
		if rg.Upper >= rg.Lower {
			for v := rg.Lower; v < rg.Upper; v += step {
				elems = append(elems, value.Number(float64(v)))
			}
		} else {
			for v := rg.Lower; v > rg.Upper; v -= step {
				elems = append(elems, value.Number(float64(v)))
			}
		}
		l := &value.List{Elems: elems}
		vm.Track(&l.Object, 16+len(elems)*8)
		return value.Obj(&l.Object), nil
	},
	"to_list": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		rg := r.AsRange()
		n := rangeLen(rg)
		elems := make([]value.Value, 0, n)
		if rg.Upper >= rg.Lower {
			for v := rg.Lower; v < rg.Upper; v++ {
				elems = append(elems, value.Number(float64(v)))
			}
		} else {
			for v := rg.Lower; v > rg.Upper; v-- {
				elems = append(elems, value.Number(float64(v)))
			}
		}
		l := &value.List{Elems: elems}
		vm.Track(&l.Object, 16+len(elems)*8)
		return value.Obj(&l.Object), nil
	},
	// @iter(i) steps from Lower toward Upper (exclusive), one unit per
	// index, downward when Upper < Lower.
	"@iter": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		i := int64(a[0].AsNumber())
		rg := r.AsRange()
		if i < 0 || i >= rangeLen(rg) {
			return value.Empty, nil
		}
		if rg.Upper >= rg.Lower {
			return value.Number(float64(rg.Lower + i)), nil
		}
		return value.Number(float64(rg.Lower - i)), nil
	},
	"@itern": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return a[0], nil
	},
}
