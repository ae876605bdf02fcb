package vm

import (
	"fmt"
	"math"
	"os"

	"github.com/blade-lang/blade/internal/value"
)

// registerCoreGlobals seeds the Exception hierarchy and the handful of
// free functions every script gets without an import: typeof/to_string
// conversions, the bytes/file constructors, and the is_* type
// predicates. Everything domain-specific (database, sockets, hashing,
// formatting) lives behind `import` in internal/natives instead.
func registerCoreGlobals(v *VM) {
	v.registerExceptionHierarchy()

	core := map[string]value.NativeFn{
		"typeof": func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
			if len(argv) != 1 {
				return value.Nil, nv.RaiseError("ArgumentError", "typeof() expects 1 argument")
			}
			return nv.NewString(value.TypeName(argv[0])), nil
		},
		"to_string": func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
			if len(argv) != 1 {
				return value.Nil, nv.RaiseError("ArgumentError", "to_string() expects 1 argument")
			}
			return nv.NewString(value.ToString(argv[0])), nil
		},
		"to_number": func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
			if len(argv) != 1 {
				return value.Nil, nv.RaiseError("ArgumentError", "to_number() expects 1 argument")
			}
			arg := argv[0]
			if arg.IsNumber() {
				return arg, nil
			}
			if arg.IsString() {
				var f float64
				if _, err := fmt.Sscanf(arg.AsString().Chars, "%g", &f); err == nil {
					return value.Number(f), nil
				}
				return value.Number(math.NaN()), nil
			}
			return value.Number(0), nil
		},
		"bytes": func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
			if len(argv) != 1 {
				return value.Nil, nv.RaiseError("ArgumentError", "bytes() expects 1 argument")
			}
			arg := argv[0]
			var data []byte
			switch {
			case arg.IsNumber():
				data = make([]byte, int(arg.AsNumber()))
			case arg.IsString():
				data = []byte(arg.AsString().Chars)
			case arg.IsList():
				for _, e := range arg.AsList().Elems {
					if !e.IsNumber() {
						return value.Nil, nv.RaiseError("TypeError", "bytes() list elements must be numbers")
					}
					data = append(data, byte(int(e.AsNumber())))
				}
			default:
				return value.Nil, nv.RaiseError("TypeError", "bytes() expects a size, string, or list of numbers")
			}
			b := &value.Bytes{Data: data}
			nv.Track(&b.Object, 16+len(data))
			return value.Obj(&b.Object), nil
		},
		"file": func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
			if len(argv) < 1 || len(argv) > 2 || !argv[0].IsString() {
				return value.Nil, nv.RaiseError("ArgumentError", "file() expects (path [, mode])")
			}
			mode := "r"
			if len(argv) == 2 {
				if !argv[1].IsString() {
					return value.Nil, nv.RaiseError("ArgumentError", "file() mode must be a string")
				}
				mode = argv[1].AsString().Chars
			}
			path := argv[0].AsString().Chars
			flags, err := fileOpenFlags(mode)
			if err != nil {
				return value.Nil, nv.RaiseError("ArgumentError", err.Error())
			}
			handle, err := os.OpenFile(path, flags, 0o644)
			if err != nil {
				return value.Nil, nv.RaiseError("RuntimeError", err.Error())
			}
			f := &value.File{Path: path, Mode: mode, Handle: handle, Open: true}
			nv.Track(&f.Object, 64)
			return value.Obj(&f.Object), nil
		},
		"is_number":   typePredicate(value.Value.IsNumber),
		"is_string":   typePredicate(value.Value.IsString),
		"is_bool":     typePredicate(value.Value.IsBool),
		"is_list":     typePredicate(value.Value.IsList),
		"is_dict":     typePredicate(value.Value.IsDict),
		"is_bytes":    typePredicate(value.Value.IsBytes),
		"is_function": typePredicate(value.Value.Callable),
		"is_instance": typePredicate(value.Value.IsInstance),
		"is_class":    typePredicate(value.Value.IsClass),
		"instance_of": func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
			if len(argv) != 2 || !argv[1].IsClass() {
				return value.Nil, nv.RaiseError("ArgumentError", "instance_of() expects (value, class)")
			}
			if !argv[0].IsInstance() {
				return value.False, nil
			}
			return value.Bool(isSubclassOrSelf(argv[0].AsInstance().Class, argv[1].AsClass())), nil
		},
	}

	for name, fn := range core {
		n := &value.Native{Name: name, Kind: value.NativeFunctionKind, Fn: fn}
		v.gc.Track(&n.Object, 32)
		v.globals.Set(v.newString(name), value.Obj(&n.Object))
	}
}

func fileOpenFlags(mode string) (int, error) {
	switch mode {
	case "r":
		return os.O_RDONLY, nil
	case "w":
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, nil
	case "a":
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, nil
	case "r+", "w+":
		return os.O_RDWR | os.O_CREATE, nil
	case "a+":
		return os.O_RDWR | os.O_CREATE | os.O_APPEND, nil
	}
	return 0, fmt.Errorf("unsupported file mode %q", mode)
}

func typePredicate(pred func(value.Value) bool) value.NativeFn {
	return func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		if len(argv) != 1 {
			return value.Nil, nv.RaiseError("ArgumentError", "expects 1 argument")
		}
		return value.Bool(pred(argv[0])), nil
	}
}
