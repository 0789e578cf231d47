package ilreader

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable IL listing, one instruction per
// line prefixed with its hex offset, in the style of a ";"-commented
// bytecode dump.
func Disassemble(code []byte) string {
	var sb strings.Builder
	r := New(code)
	for !r.AtEnd() {
		offset := r.Offset()
		inst, err := r.Next()
		if err != nil {
			fmt.Fprintf(&sb, "IL_%04x: ; %s\n", offset, err.Error())
			return sb.String()
		}
		fmt.Fprintf(&sb, "IL_%04x: %s", offset, inst.Opcode.String())
		writeOperand(&sb, inst)
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeOperand(sb *strings.Builder, inst Instruction) {
	info := Lookup(inst.Opcode)
	switch info.Operand {
	case OperandI1:
		fmt.Fprintf(sb, " %d", inst.I1)
	case OperandU1:
		fmt.Fprintf(sb, " %d", inst.U1)
	case OperandI2:
		fmt.Fprintf(sb, " %d", inst.I2)
	case OperandI4:
		fmt.Fprintf(sb, " %d", inst.I4)
	case OperandI8:
		fmt.Fprintf(sb, " %d", inst.I8)
	case OperandR4:
		fmt.Fprintf(sb, " %g", inst.R4)
	case OperandR8:
		fmt.Fprintf(sb, " %g", inst.R8)
	case OperandToken:
		fmt.Fprintf(sb, " 0x%08X", inst.Token)
	case OperandSwitch:
		fmt.Fprintf(sb, " (%d targets)", len(inst.Targets))
	}
}
