// Package bytecode defines the opcode set the compiler emits into a
// Blob and the VM's dispatch loop switches over. It intentionally has no
// dependency on the value package: an opcode is just a tag byte.
package bytecode

// Op is one instruction tag in the virtual machine's instruction set.
type Op byte

const (
	// Constants
	OpConstant Op = iota
	OpNil
	OpTrue
	OpFalse
	OpEmpty
	OpOne

	// Arithmetic. OpAdd is overloaded at runtime: string+any
	// stringifies and concatenates, list+list/bytes+bytes append,
	// list*n/string*n repeat.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpFloorDivide
	OpReminder
	OpPow
	OpNegate

	// Bitwise, on integer-truncated operands.
	OpBitAnd
	OpBitOr
	OpBitXor
	OpLShift
	OpRShift
	OpBitNot

	// Comparison
	OpEqual
	OpGreater
	OpLess
	OpNot

	// Stack
	OpPop
	OpPopN
	OpDup
	OpCloseUpvalue

	// Jumps. OpBreakPlaceholder is rewritten to a forward OpJump once
	// the enclosing loop's end is known.
	OpJump
	OpJumpIfFalse
	OpLoop
	OpBreakPlaceholder

	// Variables
	OpDefineGlobal
	OpGetGlobal
	OpSetGlobal
	OpGetLocal
	OpSetLocal
	OpGetUpvalue
	OpSetUpvalue
	OpGetProperty
	OpSetProperty
	OpGetSelfProperty

	// Calls
	OpCall
	OpInvoke
	OpInvokeSelf
	OpSuperInvoke
	OpSuperInvokeSelf
	OpReturn

	// Closures / classes
	OpClosure
	OpClass
	OpMethod
	OpClassProperty
	OpInherit
	OpGetSuper

	// Containers
	OpList
	OpRange
	OpDict
	OpGetIndex
	OpGetRangedIndex
	OpSetIndex

	// Modules
	OpCallImport
	OpNativeModule
	OpSelectImport
	OpSelectNativeImport
	OpImportAll
	OpImportAllNative
	OpEjectImport
	OpEjectNativeImport

	// Exceptions
	OpTry
	OpPopTry
	OpPublishTry
	OpBeginCatch
	OpEndCatch
	OpDie

	// Misc
	OpEcho
	OpStringify
	OpAssert
	OpSwitch
	OpChoice
)

// Names mirrors the constant order above for disassembly (-d flag) and
// trace output (-j flag).
var Names = [...]string{
	"CONSTANT", "NIL", "TRUE", "FALSE", "EMPTY", "ONE",
	"ADD", "SUB", "MUL", "DIV", "F_DIVIDE", "REMINDER", "POW", "NEGATE",
	"AND", "OR", "XOR", "LSHIFT", "RSHIFT", "BIT_NOT",
	"EQUAL", "GREATER", "LESS", "NOT",
	"POP", "POP_N", "DUP", "CLOSE_UP_VALUE",
	"JUMP", "JUMP_IF_FALSE", "LOOP", "BREAK_PL",
	"DEFINE_GLOBAL", "GET_GLOBAL", "SET_GLOBAL", "GET_LOCAL", "SET_LOCAL",
	"GET_UP_VALUE", "SET_UP_VALUE", "GET_PROPERTY", "SET_PROPERTY", "GET_SELF_PROPERTY",
	"CALL", "INVOKE", "INVOKE_SELF", "SUPER_INVOKE", "SUPER_INVOKE_SELF", "RETURN",
	"CLOSURE", "CLASS", "METHOD", "CLASS_PROPERTY", "INHERIT", "GET_SUPER",
	"LIST", "RANGE", "DICT", "GET_INDEX", "GET_RANGED_INDEX", "SET_INDEX",
	"CALL_IMPORT", "NATIVE_MODULE", "SELECT_IMPORT", "SELECT_NATIVE_IMPORT",
	"IMPORT_ALL", "IMPORT_ALL_NATIVE", "EJECT_IMPORT", "EJECT_NATIVE_IMPORT",
	"TRY", "POP_TRY", "PUBLISH_TRY", "BEGIN_CATCH", "END_CATCH", "DIE",
	"ECHO", "STRINGIFY", "ASSERT", "SWITCH", "CHOICE",
}

func (o Op) String() string {
	if int(o) < len(Names) {
		return Names[o]
	}
	return "UNKNOWN"
}
