package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unsafe"
)

// Kind tags the four primitive shapes a Value may take. Heap objects of
// every variant in object.go share KindObject; their concrete shape is
// read from the Object header's Type field.
type Kind byte

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindEmpty
	KindObject
)

// Value is Blade's tagged-union representation: nil, boolean, an
// IEEE-754 double, or a reference to a heap Object. Every field is
// comparable so Value itself supports ==, which is exactly identity
// comparison for objects and structural comparison for the primitives
// (strings rely on interning to make == correct for them too).
type Value struct {
	kind Kind
	num  float64
	obj  *Object
}

var Nil = Value{kind: KindNil}
var True = Value{kind: KindBool, num: 1}
var False = Value{kind: KindBool, num: 0}
var Empty = Value{kind: KindEmpty}

func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

func Obj(o *Object) Value { return Value{kind: KindObject, obj: o} }

func (v Value) IsNil() bool    { return v.kind == KindNil }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsEmpty() bool  { return v.kind == KindEmpty }
func (v Value) IsObject() bool { return v.kind == KindObject }

func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsBool() bool      { return v.num != 0 }
func (v Value) AsObject() *Object { return v.obj }
func (v Value) ObjType() ObjType  { return v.obj.Type }

func (v Value) Is(t ObjType) bool { return v.kind == KindObject && v.obj.Type == t }

func (v Value) IsString() bool      { return v.Is(ObjString) }
func (v Value) IsList() bool        { return v.Is(ObjList) }
func (v Value) IsDict() bool        { return v.Is(ObjDict) }
func (v Value) IsBytes() bool       { return v.Is(ObjBytes) }
func (v Value) IsRange() bool       { return v.Is(ObjRange) }
func (v Value) IsFile() bool        { return v.Is(ObjFile) }
func (v Value) IsFunction() bool    { return v.Is(ObjFunction) }
func (v Value) IsClosure() bool     { return v.Is(ObjClosure) }
func (v Value) IsClass() bool       { return v.Is(ObjClass) }
func (v Value) IsInstance() bool    { return v.Is(ObjInstance) }
func (v Value) IsBoundMethod() bool { return v.Is(ObjBoundMethod) }
func (v Value) IsNative() bool      { return v.Is(ObjNative) }
func (v Value) IsModule() bool      { return v.Is(ObjModule) }

func (v Value) Callable() bool {
	return v.IsClosure() || v.IsFunction() || v.IsNative() || v.IsClass() || v.IsBoundMethod()
}

// Accessors to concrete object variants. Callers are expected to have
// checked the Is* predicate first.
func (v Value) AsString() *String           { return (*String)(asPtr(v)) }
func (v Value) AsList() *List               { return (*List)(asPtr(v)) }
func (v Value) AsDict() *Dict               { return (*Dict)(asPtr(v)) }
func (v Value) AsBytes() *Bytes             { return (*Bytes)(asPtr(v)) }
func (v Value) AsRange() *Range             { return (*Range)(asPtr(v)) }
func (v Value) AsFile() *File               { return (*File)(asPtr(v)) }
func (v Value) AsFunction() *Function       { return (*Function)(asPtr(v)) }
func (v Value) AsClosure() *Closure         { return (*Closure)(asPtr(v)) }
func (v Value) AsClass() *Class             { return (*Class)(asPtr(v)) }
func (v Value) AsInstance() *Instance       { return (*Instance)(asPtr(v)) }
func (v Value) AsBoundMethod() *BoundMethod { return (*BoundMethod)(asPtr(v)) }
func (v Value) AsNative() *Native           { return (*Native)(asPtr(v)) }
func (v Value) AsModule() *Module           { return (*Module)(asPtr(v)) }
func (v Value) AsUpvalue() *Upvalue         { return (*Upvalue)(asPtr(v)) }
func (v Value) AsSwitch() *SwitchTable      { return (*SwitchTable)(asPtr(v)) }
func (v Value) AsForeign() *Foreign         { return (*Foreign)(asPtr(v)) }

// asPtr re-derives the concrete struct pointer from the Object header
// pointer. Every variant stores its Object as its first field, so the
// two pointers share an address; unsafe.Pointer is the only portable
// way to reinterpret *Object as *String/*List/... in Go.
func asPtr(v Value) unsafe.Pointer {
	return unsafe.Pointer(v.obj)
}

// TypeName returns the script-visible type name used by typeof() and
// error messages.
func TypeName(v Value) string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindEmpty:
		return "empty"
	}
	switch v.ObjType() {
	case ObjString:
		return "string"
	case ObjList:
		return "list"
	case ObjDict:
		return "dict"
	case ObjBytes:
		return "bytes"
	case ObjRange:
		return "range"
	case ObjFile:
		return "file"
	case ObjFunction, ObjClosure, ObjNative, ObjBoundMethod:
		return "function"
	case ObjClass:
		return "class"
	case ObjInstance:
		return v.AsInstance().Class.Name
	case ObjModule:
		return "module"
	case ObjSwitch:
		return "switch"
	case ObjForeign:
		return "ptr"
	}
	return "object"
}

// IsFalsey implements Blade truthiness: nil, false, empty, the number
// zero and an empty string/list/dict/bytes are falsey; everything else,
// including instances, is truthy.
func IsFalsey(v Value) bool {
	switch v.kind {
	case KindNil, KindEmpty:
		return true
	case KindBool:
		return !v.AsBool()
	case KindNumber:
		return v.AsNumber() == 0
	}
	switch {
	case v.IsString():
		return v.AsString().Chars == ""
	case v.IsList():
		return len(v.AsList().Elems) == 0
	case v.IsDict():
		return len(v.AsDict().Names) == 0
	case v.IsBytes():
		return len(v.AsBytes().Data) == 0
	}
	return false
}

// Equal is structural for primitives, identity for every heap object
// except String, which compares by content so an uninterned String
// (a compiler constant, say) matches its interned twin.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil, KindEmpty:
		return true
	case KindBool:
		return a.num == b.num
	case KindNumber:
		return a.num == b.num
	case KindObject:
		if a.obj == b.obj {
			return true
		}
		if a.ObjType() != b.ObjType() {
			return false
		}
		if a.IsString() {
			return a.AsString().Chars == b.AsString().Chars
		}
		return false
	}
	return false
}

// Hash mixes a value into a 32-bit bucket key: strings use their precomputed
// FNV hash, numbers mix the IEEE bit pattern, booleans/nil/empty map to
// fixed constants, and any other heap object hashes to its identity
// (the object pointer).
func Hash(v Value) uint32 {
	switch v.kind {
	case KindNil:
		return 1
	case KindEmpty:
		return 2
	case KindBool:
		if v.AsBool() {
			return 3
		}
		return 4
	case KindNumber:
		return hashNumber(v.num)
	case KindObject:
		if v.IsString() {
			return v.AsString().Hash
		}
		return hashPointer(v.obj)
	}
	return 0
}

func hashNumber(n float64) uint32 {
	bits := math.Float64bits(n)
	bits = (^bits) + (bits << 18)
	bits = bits ^ (bits >> 31)
	bits = bits * 21
	bits = bits ^ (bits >> 11)
	bits = bits + (bits << 6)
	bits = bits ^ (bits >> 22)
	return uint32(bits)
}

func hashPointer(o *Object) uint32 {
	p := uint64(uintptr(unsafe.Pointer(o)))
	p = (p ^ (p >> 33)) * 0xff51afd7ed558ccd
	p = (p ^ (p >> 33)) * 0xc4ceb9fe1a85ec53
	return uint32(p ^ (p >> 33))
}

// FNV1a32 hashes raw string bytes; used both to stamp String objects at
// construction time and by the intern table's find_string lookup.
func FNV1a32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// ToString implements script-level stringification, used by ADD's
// string-concatenation overload, echo, and STRINGIFY.
func ToString(v Value) string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindEmpty:
		return "empty"
	case KindBool:
		return strconv.FormatBool(v.AsBool())
	case KindNumber:
		return formatNumber(v.AsNumber())
	}
	switch v.ObjType() {
	case ObjString:
		return v.AsString().Chars
	case ObjBytes:
		return string(v.AsBytes().Data)
	case ObjList:
		return stringifyList(v.AsList())
	case ObjDict:
		return stringifyDict(v.AsDict())
	case ObjRange:
		r := v.AsRange()
		return fmt.Sprintf("<range %d..%d>", r.Lower, r.Upper)
	case ObjFunction:
		return fmt.Sprintf("<function %s>", v.AsFunction().Name)
	case ObjClosure:
		return fmt.Sprintf("<function %s>", v.AsClosure().Fn.Name)
	case ObjNative:
		return fmt.Sprintf("<function %s>", v.AsNative().Name)
	case ObjBoundMethod:
		return fmt.Sprintf("<bound method %s>", ToString(v.AsBoundMethod().Method))
	case ObjClass:
		return fmt.Sprintf("<class %s>", v.AsClass().Name)
	case ObjInstance:
		return fmt.Sprintf("<instance of %s>", v.AsInstance().Class.Name)
	case ObjModule:
		return fmt.Sprintf("<module %s>", v.AsModule().Name)
	case ObjFile:
		return fmt.Sprintf("<file %s>", v.AsFile().Path)
	case ObjForeign:
		return fmt.Sprintf("<ptr %s>", v.AsForeign().Tag)
	}
	return "<object>"
}

// formatNumber matches the runtime's canonical number format: integral
// values print without a fractional part, everything else uses the
// shortest round-tripping decimal (Go's 'g' formatting), satisfying the
// to_string(to_number(s)) == s round-trip property.
func formatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "Infinity"
	}
	if math.IsInf(n, -1) {
		return "-Infinity"
	}
	if math.IsNaN(n) {
		return "NaN"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func stringifyList(l *List) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range l.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		if e.IsString() {
			b.WriteByte('\'')
			b.WriteString(e.AsString().Chars)
			b.WriteByte('\'')
		} else {
			b.WriteString(ToString(e))
		}
	}
	b.WriteByte(']')
	return b.String()
}

func stringifyDict(d *Dict) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range d.Names {
		if i > 0 {
			b.WriteString(", ")
		}
		val, _ := d.Items.Get(k)
		if k.IsString() {
			b.WriteByte('\'')
			b.WriteString(k.AsString().Chars)
			b.WriteByte('\'')
		} else {
			b.WriteString(ToString(k))
		}
		b.WriteString(": ")
		if val.IsString() {
			b.WriteByte('\'')
			b.WriteString(val.AsString().Chars)
			b.WriteByte('\'')
		} else {
			b.WriteString(ToString(val))
		}
	}
	b.WriteByte('}')
	return b.String()
}
