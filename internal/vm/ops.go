package vm

import (
	"fmt"

	bladeerrors "github.com/blade-lang/blade/internal/errors"
	"github.com/blade-lang/blade/internal/value"
)

// binaryAdd implements ADD's overload set: numeric addition, string
// concatenation (right operand stringified if it isn't already a
// string), and list/bytes concatenation.
func (v *VM) binaryAdd() error {
	b := v.peek(0)
	a := v.peek(1)
	switch {
	case a.IsString():
		b = v.pop()
		a = v.pop()
		v.push(v.newString(a.AsString().Chars + value.ToString(b)))
	case a.IsList() && b.IsList():
		b = v.pop()
		a = v.pop()
		elems := make([]value.Value, 0, len(a.AsList().Elems)+len(b.AsList().Elems))
		elems = append(elems, a.AsList().Elems...)
		elems = append(elems, b.AsList().Elems...)
		l := &value.List{Elems: elems}
		v.gc.Track(&l.Object, 16+len(elems)*8)
		v.push(value.Obj(&l.Object))
	case a.IsBytes() && b.IsBytes():
		b = v.pop()
		a = v.pop()
		data := make([]byte, 0, len(a.AsBytes().Data)+len(b.AsBytes().Data))
		data = append(data, a.AsBytes().Data...)
		data = append(data, b.AsBytes().Data...)
		bs := &value.Bytes{Data: data}
		v.gc.Track(&bs.Object, 16+len(data))
		v.push(value.Obj(&bs.Object))
	case a.IsNumber() && b.IsNumber():
		b = v.pop()
		a = v.pop()
		v.push(value.Number(a.AsNumber() + b.AsNumber()))
	default:
		return v.runtimeErr(fmt.Sprintf("unsupported operand types for +: %s and %s", value.TypeName(a), value.TypeName(b)))
	}
	return nil
}

// binaryMul additionally overloads list*n and string*n as repetition,
// on top of plain numeric multiplication.
func (v *VM) binaryMul() error {
	b := v.peek(0)
	a := v.peek(1)
	switch {
	case a.IsList() && b.IsNumber():
		b = v.pop()
		a = v.pop()
		n := int(b.AsNumber())
		src := a.AsList().Elems
		elems := make([]value.Value, 0, len(src)*maxInt(n, 0))
		for i := 0; i < n; i++ {
			elems = append(elems, src...)
		}
		l := &value.List{Elems: elems}
		v.gc.Track(&l.Object, 16+len(elems)*8)
		v.push(value.Obj(&l.Object))
	case a.IsString() && b.IsNumber():
		b = v.pop()
		a = v.pop()
		n := int(b.AsNumber())
		if n < 0 {
			n = 0
		}
		repeated := ""
		for i := 0; i < n; i++ {
			repeated += a.AsString().Chars
		}
		v.push(v.newString(repeated))
	case a.IsNumber() && b.IsNumber():
		b = v.pop()
		a = v.pop()
		v.push(value.Number(a.AsNumber() * b.AsNumber()))
	default:
		return v.runtimeErr(fmt.Sprintf("unsupported operand types for *: %s and %s", value.TypeName(a), value.TypeName(b)))
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// numericBinary backs SUB/DIV/F_DIVIDE/REMINDER/POW: every one of
// these is pure-numeric, unlike ADD/MUL.
func (v *VM) numericBinary(fn func(a, b float64) float64) error {
	b := v.peek(0)
	a := v.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		return v.runtimeErr(fmt.Sprintf("operands must be numbers, got %s and %s", value.TypeName(a), value.TypeName(b)))
	}
	v.pop()
	v.pop()
	v.push(value.Number(fn(a.AsNumber(), b.AsNumber())))
	return nil
}

// intBinary backs the bitwise opcodes, which truncate both operands to
// int64 before operating. Operands are not type-checked: a non-number
// contributes its raw payload (0 for nil and objects, 1 for true)
// rather than introducing a failure mode mid-expression.
func (v *VM) intBinary(fn func(a, b int64) int64) {
	b := v.pop()
	a := v.pop()
	v.push(value.Number(float64(fn(int64(a.AsNumber()), int64(b.AsNumber())))))
}

func (v *VM) comparison(fn func(a, b float64) bool) error {
	b := v.peek(0)
	a := v.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		return v.runtimeErr(fmt.Sprintf("operands must be numbers, got %s and %s", value.TypeName(a), value.TypeName(b)))
	}
	v.pop()
	v.pop()
	v.push(value.Bool(fn(a.AsNumber(), b.AsNumber())))
	return nil
}

// getProperty resolves name.Chars on the value currently on top of the
// stack, replacing it with the resolved value. Instances check their
// own properties before falling back to a bound method off their
// class; classes and modules read their own static/export tables.
func (v *VM) getProperty(name *value.String) error {
	receiver := v.peek(0)
	key := v.internedKey(name)
	switch {
	case receiver.IsInstance():
		inst := receiver.AsInstance()
		if val, ok := inst.Properties.Get(key); ok {
			v.pop()
			v.push(val)
			return nil
		}
		if method, ok := inst.Class.Methods.Get(key); ok {
			v.pop()
			bm := &value.BoundMethod{Receiver: receiver, Method: method}
			v.gc.Track(&bm.Object, 32)
			v.push(value.Obj(&bm.Object))
			return nil
		}
		return v.runtimeErr(fmt.Sprintf("undefined property '%s'", name.Chars))
	case receiver.IsClass():
		cls := receiver.AsClass()
		if val, ok := cls.StaticFields.Get(key); ok {
			v.pop()
			v.push(val)
			return nil
		}
		if val, ok := cls.StaticMethods.Get(key); ok {
			v.pop()
			v.push(val)
			return nil
		}
		return v.runtimeErr(fmt.Sprintf("class %s has no static member '%s'", cls.Name, name.Chars))
	case receiver.IsModule():
		mod := receiver.AsModule()
		val, ok := mod.Values.Get(key)
		if !ok {
			return v.runtimeErr(fmt.Sprintf("module '%s' has no member '%s'", mod.Name, name.Chars))
		}
		v.pop()
		v.push(val)
		return nil
	case receiver.IsDict():
		if val, ok := receiver.AsDict().Items.Get(key); ok {
			v.pop()
			v.push(val)
			return nil
		}
		if bound, ok := v.bindBuiltinMethod(receiver, name.Chars); ok {
			v.pop()
			v.push(bound)
			return nil
		}
		return v.runtimeErr(fmt.Sprintf("dict has no key or method '%s'", name.Chars))
	default:
		if bound, ok := v.bindBuiltinMethod(receiver, name.Chars); ok {
			v.pop()
			v.push(bound)
			return nil
		}
		return v.runtimeErr(fmt.Sprintf("%s has no property '%s'", value.TypeName(receiver), name.Chars))
	}
}

// setProperty assigns the value on top of the stack into name.Chars on
// the value just beneath it, leaving the assigned value on the stack
// (assignment is an expression).
func (v *VM) setProperty(name *value.String) error {
	val := v.peek(0)
	receiver := v.peek(1)
	key := v.internedKey(name)
	switch {
	case receiver.IsInstance():
		receiver.AsInstance().Properties.Set(key, val)
	case receiver.IsClass():
		receiver.AsClass().StaticFields.Set(key, val)
	default:
		return v.runtimeErr(fmt.Sprintf("%s has no settable property '%s'", value.TypeName(receiver), name.Chars))
	}
	v.pop()
	v.pop()
	v.push(val)
	return nil
}

// getIndex implements a[i] for every indexable builtin type. With
// willAssign set (the GET half of a compound index assignment) the
// receiver and index stay on the stack beneath the loaded value so the
// following SET_INDEX can reuse them.
func (v *VM) getIndex(willAssign bool) error {
	var idx, recv value.Value
	if willAssign {
		idx = v.peek(0)
		recv = v.peek(1)
	} else {
		idx = v.pop()
		recv = v.pop()
	}
	switch {
	case recv.IsList():
		elems := recv.AsList().Elems
		i, err := normalizeIndex(idx, len(elems))
		if err != nil {
			return v.indexErr(err.Error())
		}
		v.push(elems[i])
	case recv.IsBytes():
		data := recv.AsBytes().Data
		i, err := normalizeIndex(idx, len(data))
		if err != nil {
			return v.indexErr(err.Error())
		}
		v.push(value.Number(float64(data[i])))
	case recv.IsString():
		runes := []rune(recv.AsString().Chars)
		i, err := normalizeIndex(idx, len(runes))
		if err != nil {
			return v.indexErr(err.Error())
		}
		v.push(v.newString(string(runes[i])))
	case recv.IsDict():
		d := recv.AsDict()
		val, ok := d.Items.Get(idx)
		if !ok {
			return v.keyErr(fmt.Sprintf("key %s not found", value.ToString(idx)))
		}
		v.push(val)
	default:
		return v.runtimeErr(fmt.Sprintf("%s is not indexable", value.TypeName(recv)))
	}
	return nil
}

// getRangedIndex implements the a[lo:hi] slice form; lo/hi may be nil
// on the stack, meaning "from the start"/"to the end".
func (v *VM) getRangedIndex() error {
	hi := v.pop()
	lo := v.pop()
	recv := v.pop()
	switch {
	case recv.IsList():
		elems := recv.AsList().Elems
		start, end, err := normalizeSlice(lo, hi, len(elems))
		if err != nil {
			return v.indexErr(err.Error())
		}
		out := make([]value.Value, end-start)
		copy(out, elems[start:end])
		l := &value.List{Elems: out}
		v.gc.Track(&l.Object, 16+len(out)*8)
		v.push(value.Obj(&l.Object))
	case recv.IsBytes():
		data := recv.AsBytes().Data
		start, end, err := normalizeSlice(lo, hi, len(data))
		if err != nil {
			return v.indexErr(err.Error())
		}
		out := make([]byte, end-start)
		copy(out, data[start:end])
		bs := &value.Bytes{Data: out}
		v.gc.Track(&bs.Object, 16+len(out))
		v.push(value.Obj(&bs.Object))
	case recv.IsString():
		runes := []rune(recv.AsString().Chars)
		start, end, err := normalizeSlice(lo, hi, len(runes))
		if err != nil {
			return v.indexErr(err.Error())
		}
		v.push(v.newString(string(runes[start:end])))
	default:
		return v.runtimeErr(fmt.Sprintf("%s does not support slicing", value.TypeName(recv)))
	}
	return nil
}

// setIndex implements a[i] = val, leaving val on the stack.
func (v *VM) setIndex() error {
	val := v.pop()
	idx := v.pop()
	recv := v.pop()
	switch {
	case recv.IsList():
		elems := recv.AsList().Elems
		i, err := normalizeIndex(idx, len(elems))
		if err != nil {
			return v.indexErr(err.Error())
		}
		elems[i] = val
	case recv.IsBytes():
		data := recv.AsBytes().Data
		i, err := normalizeIndex(idx, len(data))
		if err != nil {
			return v.indexErr(err.Error())
		}
		data[i] = byte(val.AsNumber())
	case recv.IsDict():
		d := recv.AsDict()
		if _, existed := d.Items.Get(idx); !existed {
			d.Names = append(d.Names, idx)
		}
		d.Items.Set(idx, val)
	default:
		return v.runtimeErr(fmt.Sprintf("%s does not support item assignment", value.TypeName(recv)))
	}
	v.push(val)
	return nil
}

func (v *VM) indexErr(msg string) error {
	e := v.runtimeErr(msg).(*bladeerrors.BladeError)
	e.Type = bladeerrors.IndexError
	return e
}

func (v *VM) keyErr(msg string) error {
	e := v.runtimeErr(msg).(*bladeerrors.BladeError)
	e.Type = bladeerrors.KeyError
	return e
}

func normalizeIndex(idx value.Value, length int) (int, error) {
	if !idx.IsNumber() {
		return 0, fmt.Errorf("index must be a number")
	}
	i := int(idx.AsNumber())
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, fmt.Errorf("index %d out of range (length %d)", int(idx.AsNumber()), length)
	}
	return i, nil
}

// normalizeSlice clamps [lo:hi) into [0,length]; a nil endpoint (Blade
// compiles an omitted slice bound to value.Nil) defaults to the start
// or the end respectively.
func normalizeSlice(lo, hi value.Value, length int) (int, int, error) {
	start := 0
	end := length
	if !lo.IsNil() {
		if !lo.IsNumber() {
			return 0, 0, fmt.Errorf("slice bound must be a number")
		}
		start = int(lo.AsNumber())
		if start < 0 {
			start += length
		}
	}
	if !hi.IsNil() {
		if !hi.IsNumber() {
			return 0, 0, fmt.Errorf("slice bound must be a number")
		}
		end = int(hi.AsNumber())
		if end < 0 {
			end += length
		}
	}
	if start < 0 {
		start = 0
	}
	if end > length {
		end = length
	}
	if start > end {
		start = end
	}
	return start, end, nil
}
