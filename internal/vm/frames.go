package vm

import (
	"fmt"

	"github.com/blade-lang/blade/internal/value"
)

// callValue dispatches OpCall/the implicit calls behind OpInvoke: argc
// arguments sit on top of the stack, with the callee itself beneath
// them at depth argc.
func (v *VM) callValue(callee value.Value, argc int) error {
	switch {
	case callee.IsClosure():
		return v.callClosure(callee.AsClosure(), argc)
	case callee.IsFunction():
		return v.callClosure(&value.Closure{Fn: callee.AsFunction()}, argc)
	case callee.IsNative():
		return v.callNative(callee.AsNative(), argc)
	case callee.IsBoundMethod():
		bm := callee.AsBoundMethod()
		if bm.Method.IsNative() {
			return v.callNativeMethod(bm.Method.AsNative(), bm.Receiver, argc)
		}
		v.stack[v.sp-argc-1] = bm.Receiver
		return v.callValue(bm.Method, argc)
	case callee.IsClass():
		return v.instantiate(callee.AsClass(), argc)
	default:
		return v.runtimeErr(fmt.Sprintf("'%s' is not callable", value.TypeName(callee)))
	}
}

func (v *VM) callClosure(cl *value.Closure, argc int) error {
	fn := cl.Fn
	if fn.Variadic {
		if argc < fn.Arity-1 {
			return v.runtimeErr(fmt.Sprintf("%s expects at least %d argument(s), got %d", fn.Name, fn.Arity-1, argc))
		}
		rest := argc - (fn.Arity - 1)
		elems := make([]value.Value, rest)
		copy(elems, v.stack[v.sp-rest:v.sp])
		v.sp -= rest
		l := &value.List{Elems: elems}
		v.gc.Track(&l.Object, 16+rest*8)
		v.push(value.Obj(&l.Object))
	} else if argc > fn.Arity {
		return v.runtimeErr(fmt.Sprintf("%s expects %d argument(s), got %d", fn.Name, fn.Arity, argc))
	} else {
		// Missing trailing arguments arrive as nil, up to the declared
		// arity; parameter defaults compiled into the body replace them.
		for ; argc < fn.Arity; argc++ {
			v.push(value.Nil)
		}
	}
	if len(v.frames) >= maxFrames {
		panic(stackOverflow{})
	}
	slotBase := v.sp - fn.Arity - 1
	v.frames = append(v.frames, frame{closure: cl, slotBase: slotBase})
	return nil
}

func (v *VM) callNative(n *value.Native, argc int) error {
	argv := make([]value.Value, argc)
	copy(argv, v.stack[v.sp-argc:v.sp])
	result, err := n.Fn(v, argv)
	v.gc.ClearProtection()
	v.sp -= argc + 1
	if err != nil {
		return err
	}
	v.push(result)
	return nil
}

// callNativeMethod invokes a native method bound to receiver: the
// receiver is threaded in as argv[0] ahead of the call-site arguments,
// matching the convention internal/natives' class descriptors use for
// their NativeMethodKind entries (GET_PROPERTY binds the Native into a
// BoundMethod exactly like a script-defined method; only the calling
// convention into the Go function differs).
func (v *VM) callNativeMethod(n *value.Native, receiver value.Value, argc int) error {
	argv := make([]value.Value, argc+1)
	argv[0] = receiver
	copy(argv[1:], v.stack[v.sp-argc:v.sp])
	result, err := n.Fn(v, argv)
	v.gc.ClearProtection()
	v.sp -= argc + 1
	if err != nil {
		return err
	}
	v.push(result)
	return nil
}

// instantiate allocates a new Instance, seeds its property table from
// the class's field defaults (and its ancestors', merged in at
// OpInherit time), then runs the initializer if one is defined.
func (v *VM) instantiate(cls *value.Class, argc int) error {
	inst := &value.Instance{Class: cls, Properties: value.NewTable()}
	inst.Properties.AddAll(cls.Fields)
	v.gc.Track(&inst.Object, 48)
	instVal := value.Obj(&inst.Object)
	v.stack[v.sp-argc-1] = instVal
	if cls.Initializer.IsNil() {
		if argc != 0 {
			return v.runtimeErr(fmt.Sprintf("%s takes no arguments", cls.Name))
		}
		return nil
	}
	if cls.Initializer.IsNative() {
		return v.callNativeMethod(cls.Initializer.AsNative(), instVal, argc)
	}
	return v.callValue(cls.Initializer, argc)
}

func (v *VM) invoke(name *value.String, argc int) error {
	receiver := v.peek(argc)
	if receiver.IsInstance() {
		inst := receiver.AsInstance()
		if val, ok := inst.Properties.Get(v.internedKey(name)); ok {
			v.stack[v.sp-argc-1] = val
			return v.callValue(val, argc)
		}
		return v.invokeFromClass(inst.Class, name, argc)
	}
	if receiver.IsDict() {
		// A callable stored under the name wins over the builtin dict
		// method table, matching GET_PROPERTY's items-first order.
		if val, ok := receiver.AsDict().Items.Get(v.internedKey(name)); ok && val.Callable() {
			v.stack[v.sp-argc-1] = val
			return v.callValue(val, argc)
		}
	}
	if receiver.IsModule() {
		mod := receiver.AsModule()
		val, ok := mod.Values.Get(v.internedKey(name))
		if !ok {
			return v.runtimeErr(fmt.Sprintf("module '%s' has no member '%s'", mod.Name, name.Chars))
		}
		v.stack[v.sp-argc-1] = val
		return v.callValue(val, argc)
	}
	if receiver.IsClass() {
		cls := receiver.AsClass()
		if val, ok := cls.StaticMethods.Get(v.internedKey(name)); ok {
			v.stack[v.sp-argc-1] = val
			return v.callValue(val, argc)
		}
		return v.runtimeErr(fmt.Sprintf("class %s has no static method '%s'", cls.Name, name.Chars))
	}
	if result, cerr, ok := v.callBuiltinMethod(receiver, name.Chars, argc); ok {
		v.sp -= argc + 1
		if cerr != nil {
			return cerr
		}
		v.push(result)
		return nil
	}
	return v.runtimeErr(fmt.Sprintf("%s has no method '%s'", value.TypeName(receiver), name.Chars))
}

func (v *VM) invokeFromClass(cls *value.Class, name *value.String, argc int) error {
	method, ok := cls.Methods.Get(v.internedKey(name))
	if !ok {
		return v.runtimeErr(fmt.Sprintf("undefined method '%s'", name.Chars))
	}
	if method.IsNative() {
		return v.callNativeMethod(method.AsNative(), v.peek(argc), argc)
	}
	return v.callValue(method, argc)
}

// captureUpvalue returns the open upvalue for stackIndex, creating one
// if none exists yet. The open list is kept sorted by descending
// StackIndex so a linear scan finds an existing match or the correct
// insertion point.
func (v *VM) captureUpvalue(stackIndex int) *value.Upvalue {
	var prev *value.Upvalue
	cur := v.openUpvalues
	for cur != nil && cur.StackIndex > stackIndex {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.StackIndex == stackIndex {
		return cur
	}
	up := &value.Upvalue{Location: &v.stack[stackIndex], StackIndex: stackIndex}
	v.gc.Track(&up.Object, 24)
	up.NextOpen = cur
	if prev == nil {
		v.openUpvalues = up
	} else {
		prev.NextOpen = up
	}
	return up
}

// closeUpvalues hoists every open upvalue at or above floor into its
// own Closed field, severing its dependency on the (about to be
// invalidated) stack slot.
func (v *VM) closeUpvalues(floor int) {
	for v.openUpvalues != nil && v.openUpvalues.StackIndex >= floor {
		up := v.openUpvalues
		up.Closed = *up.Location
		up.Location = &up.Closed
		v.openUpvalues = up.NextOpen
		up.NextOpen = nil
	}
}
