package value

import (
	"fmt"
	"strings"

	"github.com/blade-lang/blade/internal/bytecode"
)

// Disassemble renders a Blob's instruction stream as human-readable
// text, backing the CLI's -d flag. It decodes every opcode's operand
// width by hand since Blob carries no separate instruction-length
// table.
func (b *Blob) Disassemble(name string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s ==\n", name)
	offset := 0
	for offset < len(b.Code) {
		offset = b.disassembleInstruction(&sb, offset)
	}
	return sb.String()
}

func (b *Blob) disassembleInstruction(sb *strings.Builder, offset int) int {
	op := bytecode.Op(b.Code[offset])
	line := 0
	if offset < len(b.Lines) {
		line = b.Lines[offset]
	}
	fmt.Fprintf(sb, "%04d %4d %-20s", offset, line, op.String())

	switch op {
	case bytecode.OpConstant, bytecode.OpDefineGlobal, bytecode.OpGetGlobal, bytecode.OpSetGlobal,
		bytecode.OpGetProperty, bytecode.OpSetProperty, bytecode.OpGetSelfProperty,
		bytecode.OpClass, bytecode.OpGetSuper, bytecode.OpCallImport, bytecode.OpNativeModule,
		bytecode.OpSelectImport, bytecode.OpSelectNativeImport, bytecode.OpSwitch:
		idx := b.ReadU16(offset + 1)
		fmt.Fprintf(sb, " %4d", idx)
		if int(idx) < len(b.Constants) {
			fmt.Fprintf(sb, " '%s'", ToString(b.Constants[idx]))
		}
		sb.WriteByte('\n')
		return offset + 3

	case bytecode.OpJump, bytecode.OpJumpIfFalse, bytecode.OpLoop, bytecode.OpBreakPlaceholder:
		jump := b.ReadU16(offset + 1)
		fmt.Fprintf(sb, " -> %d\n", jump)
		return offset + 3

	case bytecode.OpGetLocal, bytecode.OpSetLocal, bytecode.OpGetUpvalue, bytecode.OpSetUpvalue,
		bytecode.OpPopN, bytecode.OpGetIndex:
		slot := b.Code[offset+1]
		fmt.Fprintf(sb, " %4d\n", slot)
		return offset + 2

	case bytecode.OpCall:
		argc := b.Code[offset+1]
		fmt.Fprintf(sb, " (%d args)\n", argc)
		return offset + 2

	case bytecode.OpInvoke, bytecode.OpInvokeSelf, bytecode.OpSuperInvoke, bytecode.OpSuperInvokeSelf:
		idx := b.ReadU16(offset + 1)
		argc := b.Code[offset+3]
		name := ""
		if int(idx) < len(b.Constants) {
			name = ToString(b.Constants[idx])
		}
		fmt.Fprintf(sb, " %4d '%s' (%d args)\n", idx, name, argc)
		return offset + 4

	case bytecode.OpMethod, bytecode.OpClassProperty:
		idx := b.ReadU16(offset + 1)
		static := b.Code[offset+3]
		name := ""
		if int(idx) < len(b.Constants) {
			name = ToString(b.Constants[idx])
		}
		fmt.Fprintf(sb, " %4d '%s' static=%d\n", idx, name, static)
		return offset + 4

	case bytecode.OpList, bytecode.OpDict:
		count := b.ReadU16(offset + 1)
		fmt.Fprintf(sb, " %4d\n", count)
		return offset + 3

	case bytecode.OpClosure:
		idx := b.ReadU16(offset + 1)
		sb.WriteString("\n")
		next := offset + 3
		if int(idx) < len(b.Constants) && b.Constants[idx].IsFunction() {
			fn := b.Constants[idx].AsFunction()
			for i := 0; i < fn.UpvalCount; i++ {
				isLocal := b.Code[next]
				index := b.Code[next+1]
				kind := "upvalue"
				if isLocal == 1 {
					kind = "local"
				}
				fmt.Fprintf(sb, "%04d      |                     %s %d\n", next, kind, index)
				next += 2
			}
		}
		return next

	case bytecode.OpTry:
		classIdx := b.ReadU16(offset + 1)
		catchIP := b.ReadU16(offset + 3)
		finallyIP := b.ReadU16(offset + 5)
		hasCatch := b.Code[offset+7]
		fmt.Fprintf(sb, " class=%d catch=%d finally=%d hasCatch=%d\n", classIdx, catchIP, finallyIP, hasCatch)
		return offset + 8

	default:
		sb.WriteByte('\n')
		return offset + 1
	}
}
