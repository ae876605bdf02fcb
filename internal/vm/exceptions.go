package vm

import (
	bladeerrors "github.com/blade-lang/blade/internal/errors"
	"github.com/blade-lang/blade/internal/value"
)

// exceptionHierarchy is the builtin class tree every script sees at
// startup, named after internal/errors' ErrorType taxonomy so a native
// failure and a script-level `die SomeError(...)` land in the same
// catch machinery. Order matters: a class must be registered after
// its superclass.
var exceptionHierarchy = []struct {
	name, super string
}{
	{"Exception", ""},
	{"AssertionError", "Exception"},
	{"RuntimeError", "Exception"},
	{"TypeError", "Exception"},
	{"ReferenceError", "Exception"},
	{"ImportError", "Exception"},
	{"IndexError", "Exception"},
	{"KeyError", "Exception"},
	{"ArgumentError", "Exception"},
}

func (v *VM) registerExceptionHierarchy() {
	// Every class in the tree shares one native initializer that stores
	// the constructor argument in the instance's message field, so
	// `die RuntimeError("...")` works without script-level boilerplate.
	init := &value.Native{Name: "Exception", Kind: value.NativeMethodKind, Fn: exceptionInit}
	v.gc.Track(&init.Object, 32)
	initVal := value.Obj(&init.Object)

	for _, def := range exceptionHierarchy {
		cls := &value.Class{
			Name:          def.name,
			Fields:        value.NewTable(),
			StaticFields:  value.NewTable(),
			Methods:       value.NewTable(),
			StaticMethods: value.NewTable(),
			Initializer:   initVal,
		}
		v.gc.Track(&cls.Object, 128)
		if def.super != "" {
			super, _ := v.classByName(def.super)
			cls.Super = super
			cls.Fields.AddAll(super.Fields)
		}
		cls.Fields.Set(v.newString("message"), v.newString(""))
		v.globals.Set(v.newString(def.name), value.Obj(&cls.Object))
	}
}

// exceptionInit is the shared builtin-Exception constructor: argv[0]
// is the fresh instance, argv[1] (optional) the message.
func exceptionInit(vm value.NativeVM, argv []value.Value) (value.Value, error) {
	self := argv[0]
	if len(argv) > 1 {
		msg := argv[1]
		if !msg.IsString() {
			msg = vm.NewString(value.ToString(msg))
		}
		self.AsInstance().Properties.Set(vm.NewString("message"), msg)
	}
	return self, nil
}

func (v *VM) classByName(name string) (*value.Class, bool) {
	val, ok := v.globals.Get(v.newString(name))
	if !ok || !val.IsClass() {
		return nil, false
	}
	return val.AsClass(), true
}

// classByNameValue resolves a catch clause's class name constant with
// the same module-then-process-wide order GET_GLOBAL uses, and without
// assuming the constant was ever run through internedKey: Table
// equality is content-based for strings, so an unlinked compiler
// constant matches the canonical registered class directly.
func (v *VM) classByNameValue(frameIdx int, s *value.String) (*value.Class, bool) {
	key := value.Obj(&s.Object)
	val, ok := v.moduleValues(&v.frames[frameIdx]).Get(key)
	if !ok {
		val, ok = v.globals.Get(key)
	}
	if !ok || !val.IsClass() {
		return nil, false
	}
	return val.AsClass(), true
}

func isSubclassOrSelf(cls, target *value.Class) bool {
	for c := cls; c != nil; c = c.Super {
		if c == target {
			return true
		}
	}
	return false
}

// wrapError turns a Go error (almost always a *bladeerrors.BladeError
// raised by runtimeErr/assertErr or a native function's RaiseError
// call) into a script-visible Exception instance, so try/catch and
// Go-level failures share one representation once they reach
// raiseException.
func (v *VM) wrapError(err error) value.Value {
	className := "Exception"
	msg := err.Error()
	if be, ok := err.(*bladeerrors.BladeError); ok {
		if _, known := v.classByName(string(be.Type)); known {
			className = string(be.Type)
		}
		msg = be.Message
	}
	cls, ok := v.classByName(className)
	if !ok {
		cls, _ = v.classByName("Exception")
	}
	inst := &value.Instance{Class: cls, Properties: value.NewTable()}
	inst.Properties.AddAll(cls.Fields)
	inst.Properties.Set(v.newString("message"), v.newString(msg))
	v.gc.Track(&inst.Object, 48)
	return value.Obj(&inst.Object)
}

// throwErr is the opcode-loop entry point for a Go-level runtime
// failure (undefined global, bad operand type, division edge case,
// ...). handled reports whether some active try/catch claimed it; if
// not, the returned error is what Interpret ultimately propagates.
func (v *VM) throwErr(err error) (handled bool, out error) {
	return v.raiseException(v.wrapError(err))
}

// raiseValue backs OpDie: only an Exception (or subclass) instance may
// be thrown with `die`; any other value is itself a TypeError.
func (v *VM) raiseValue(errVal value.Value) (bool, error) {
	excClass, _ := v.classByName("Exception")
	if !errVal.IsInstance() || !isSubclassOrSelf(errVal.AsInstance().Class, excClass) {
		bad := v.runtimeErr("can only raise instances of Exception or one of its subclasses")
		if be, ok := bad.(*bladeerrors.BladeError); ok {
			be.Type = bladeerrors.TypeError
		}
		return v.raiseException(v.wrapError(bad))
	}
	return v.raiseException(errVal)
}

// raiseException unwinds to the innermost active try handler. A
// handler whose catch clause matches excVal's class resumes at its
// catch address with the exception pushed for the binding local; a
// handler with no catch, or one whose class filter rejects the
// exception, still gets its finally code (the exception parks as
// pending and PUBLISH_TRY resumes unwinding afterwards). No handler at
// all means the exception escapes the script entirely.
func (v *VM) raiseException(excVal value.Value) (bool, error) {
	if len(v.handlers) == 0 {
		return false, v.finalizeException(excVal)
	}
	h := v.handlers[len(v.handlers)-1]
	v.handlers = v.handlers[:len(v.handlers)-1]

	catches := h.hasCatch
	if catches && h.hasClassIdx {
		blob := v.frames[h.frameIndex].closure.Fn.Blob
		nameVal := blob.Constants[h.classNameIdx]
		cls, known := v.classByNameValue(h.frameIndex, nameVal.AsString())
		if known && excVal.IsInstance() && !isSubclassOrSelf(excVal.AsInstance().Class, cls) {
			catches = false
		}
	}

	for len(v.frames)-1 > h.frameIndex {
		top := &v.frames[len(v.frames)-1]
		v.closeUpvalues(top.slotBase)
		v.frames = v.frames[:len(v.frames)-1]
	}
	v.closeUpvalues(h.stackDepth)
	v.sp = h.stackDepth
	fr := &v.frames[h.frameIndex]
	if catches {
		v.push(excVal)
		fr.ip = h.catchIP
	} else {
		v.pending = excVal
		v.hasPending = true
		fr.ip = h.finallyIP
	}
	return true, nil
}

// finalizeException builds the BladeError an unhandled exception
// surfaces as once it escapes every frame, used both by Interpret's
// caller and stashed on the VM for -d/-j diagnostic dumps.
func (v *VM) finalizeException(excVal value.Value) error {
	msg := value.ToString(excVal)
	typ := bladeerrors.RuntimeError
	if excVal.IsInstance() {
		inst := excVal.AsInstance()
		if m, ok := inst.Properties.Get(v.newString("message")); ok {
			msg = value.ToString(m)
		}
		typ = bladeerrors.ErrorType(inst.Class.Name)
	}
	e := bladeerrors.NewRuntimeError(msg, v.scriptPath, 0, 0)
	e.Type = typ
	v.lastError = e
	return e
}
