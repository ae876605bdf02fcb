// Package value implements Blade's tagged-union value representation and
// the heap object graph every value variant points into.
package value

import (
	"os"
)

// ObjType tags the concrete shape of a heap Object.
type ObjType byte

const (
	ObjString ObjType = iota
	ObjList
	ObjDict
	ObjBytes
	ObjRange
	ObjFile
	ObjFunction
	ObjClosure
	ObjUpvalue
	ObjClass
	ObjInstance
	ObjBoundMethod
	ObjNative
	ObjModule
	ObjSwitch
	ObjForeign
)

// Object is the common header every heap-allocated variant embeds. The
// GC's intrusive allocation list threads through Next; Marked is the
// mark-sweep color bit (false = white, true = black once blackened).
// Size is the collector's byte estimate recorded at Track time, paid
// back when sweep frees the object.
type Object struct {
	Type   ObjType
	Marked bool
	Size   int32
	Next   *Object
}

func (o *Object) header() *Object { return o }

// Header is implemented by every concrete object variant so the GC and
// the VM can walk the intrusive list and read the type tag without a
// type switch on the pointer itself.
type Header interface {
	header() *Object
}

// String is interned: two strings with identical bytes share one
// allocation, so string equality reduces to pointer equality.
type String struct {
	Object
	Chars   string
	RuneLen int
	Hash    uint32
}

// List is a growable vector of values.
type List struct {
	Object
	Elems []Value
}

// Dict keeps an insertion-ordered key vector alongside a value-to-value
// table so iteration order is deterministic and deletion stays O(1)
// amortized on both sides.
type Dict struct {
	Object
	Names []Value
	Items *Table
}

// Bytes is a raw byte vector with its own byte-indexed operations,
// distinct from String (which is UTF-8 text).
type Bytes struct {
	Object
	Data []byte
}

// Range is lower..upper (upper exclusive) with a signed step derived
// from the direction of iteration.
type Range struct {
	Object
	Lower int64
	Upper int64
}

// File wraps an OS handle. Std marks stdin/stdout/stderr, which the VM
// never closes even when the wrapping File becomes unreachable.
type File struct {
	Object
	Path   string
	Mode   string
	Handle *os.File
	Open   bool
	Std    bool
}

// Function is the raw, capture-free compiled form of a function body.
// FnKind records which of the function-kind tags (script, function,
// method, initializer, private, static) this Blob belongs to.
type FnKind byte

const (
	FnScript FnKind = iota
	FnFunction
	FnMethod
	FnInitializer
	FnPrivate
	FnStatic
)

type Function struct {
	Object
	Name       string
	Arity      int
	Variadic   bool
	UpvalCount int
	Blob       *Blob
	Module     *Module
	Kind       FnKind
}

// Upvalue is either open (Location points into a live stack slot) or
// closed (Location points at Closed, owned by the upvalue itself).
type Upvalue struct {
	Object
	Location *Value
	Closed   Value
	// StackIndex/NextOpen thread open upvalues on the VM's sorted list; both
	// are VM-owned bookkeeping, not part of the object's observable value.
	StackIndex int
	NextOpen   *Upvalue
	PrevOpen   *Upvalue
}

// Closure pairs a raw Function with the upvalues it captured at
// creation time.
type Closure struct {
	Object
	Fn       *Function
	Upvalues []*Upvalue
}

// Class has a nullable superclass, default field values copied into
// every new Instance, and separate static/instance method tables.
type Class struct {
	Object
	Name          string
	Super         *Class
	Fields        *Table
	StaticFields  *Table
	Methods       *Table
	StaticMethods *Table
	Initializer   Value
}

// Instance holds a reference to its Class plus a properties table seeded
// from the class's field defaults at construction.
type Instance struct {
	Object
	Class      *Class
	Properties *Table
}

// BoundMethod pairs an already-resolved receiver with a closure, as
// produced by reading a method off an instance.
type BoundMethod struct {
	Object
	Receiver Value
	Method   Value
}

// NativeKind distinguishes the three call shapes native functions may
// have: a free function, an instance method, or a "private" (hidden from
// script-level enumeration) native.
type NativeKind byte

const (
	NativeFunctionKind NativeKind = iota
	NativeMethodKind
	NativePrivateKind
)

// NativeFn is the Go function backing a native call. argv is a slice
// view into the VM's argument stack region; native code must not retain
// it past the call.
type NativeFn func(vm NativeVM, argv []Value) (Value, error)

// NativeVM is the sliver of VM behavior natives need without importing
// the vm package (which imports value), breaking the import cycle.
type NativeVM interface {
	GCProtect(v Value)
	ClearProtection()
	NewString(s string) Value
	RaiseError(class, msg string) error
	// Track registers a freshly allocated heap object with the
	// collector; native code that builds its own List/Dict/Bytes/etc.
	// calls this once before returning the value, exactly as the
	// interpreter loop does for the objects it allocates itself.
	Track(o *Object, size int)
}

type Native struct {
	Object
	Name string
	Kind NativeKind
	Fn   NativeFn
}

// Module is a loaded source or native module: its exported globals live
// in Values. Preload/Unload are only populated for native modules.
type Module struct {
	Object
	Name    string
	Path    string
	Values  *Table
	Preload func(NativeVM) error
	Unload  func(NativeVM) error
	File    *File // native modules may stash a foreign handle here
}

// SwitchTable backs a compile-time-literal `using` statement: a
// value-to-jump-offset table plus a default offset. Offsets are stored
// as Number values so lookup shares the content-based equality every
// other value-keyed table uses (a raw Go map keyed on Value would
// compare string keys by pointer, not content).
type SwitchTable struct {
	Object
	Cases   *Table
	Default int
}

// Foreign lets native modules attach an opaque resource (a DB handle, a
// socket) to a Blade value; Destroy runs once during sweep.
type Foreign struct {
	Object
	Tag     string
	Ptr     interface{}
	Destroy func(interface{})
}

func (s *String) header() *Object      { return &s.Object }
func (l *List) header() *Object        { return &l.Object }
func (d *Dict) header() *Object        { return &d.Object }
func (b *Bytes) header() *Object       { return &b.Object }
func (r *Range) header() *Object       { return &r.Object }
func (f *File) header() *Object        { return &f.Object }
func (f *Function) header() *Object    { return &f.Object }
func (u *Upvalue) header() *Object     { return &u.Object }
func (c *Closure) header() *Object     { return &c.Object }
func (c *Class) header() *Object       { return &c.Object }
func (i *Instance) header() *Object    { return &i.Object }
func (b *BoundMethod) header() *Object { return &b.Object }
func (n *Native) header() *Object      { return &n.Object }
func (m *Module) header() *Object      { return &m.Object }
func (s *SwitchTable) header() *Object { return &s.Object }
func (f *Foreign) header() *Object     { return &f.Object }
