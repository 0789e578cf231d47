package ilreader

import (
	"testing"

	"github.com/chazu/cilverify/pkg/diag"
)

func TestDecodeSingleByteOpcode(t *testing.T) {
	code := []byte{byte(LdcI41), byte(Ret)}
	r := New(code)

	inst, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.Opcode != LdcI41 || inst.Length != 1 {
		t.Errorf("got opcode=%v length=%d, want LdcI41/1", inst.Opcode, inst.Length)
	}

	inst2, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst2.Opcode != Ret {
		t.Errorf("got opcode=%v, want Ret", inst2.Opcode)
	}
	if !r.AtEnd() {
		t.Error("expected reader to be at end")
	}
}

func TestDecodeExtendedOpcode(t *testing.T) {
	code := []byte{0xFE, 0x01} // ceq
	r := New(code)
	inst, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.Opcode != CeqOp {
		t.Errorf("got %v, want CeqOp", inst.Opcode)
	}
	if inst.Length != 2 {
		t.Errorf("extended opcode length = %d, want 2", inst.Length)
	}
}

func TestDecodeInlineOperands(t *testing.T) {
	code := []byte{byte(LdcI4), 0x2A, 0x00, 0x00, 0x00} // ldc.i4 42
	r := New(code)
	inst, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.I4 != 42 {
		t.Errorf("I4 = %d, want 42", inst.I4)
	}
	if inst.Length != 5 {
		t.Errorf("length = %d, want 5", inst.Length)
	}
}

func TestDecodeSwitchTable(t *testing.T) {
	code := []byte{
		byte(Switch), 0x02, 0x00, 0x00, 0x00, // 2 targets
		0x10, 0x00, 0x00, 0x00,
		0x20, 0x00, 0x00, 0x00,
	}
	r := New(code)
	inst, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inst.Targets) != 2 || inst.Targets[0] != 0x10 || inst.Targets[1] != 0x20 {
		t.Errorf("Targets = %v, want [16 32]", inst.Targets)
	}
	if inst.Length != 13 {
		t.Errorf("length = %d, want 13", inst.Length)
	}
}

func TestEndOfMethodInsideInstruction(t *testing.T) {
	code := []byte{byte(LdcI4), 0x01, 0x00} // truncated 4-byte operand
	r := New(code)
	_, err := r.Next()
	if err == nil {
		t.Fatal("expected EndOfMethodInsideInstruction error")
	}
	if err.Kind != diag.EndOfMethodInsideInstruction {
		t.Errorf("got %v, want EndOfMethodInsideInstruction", err.Kind)
	}
}

func TestEndOfMethodInsideExtendedOpcode(t *testing.T) {
	code := []byte{0xFE}
	r := New(code)
	_, err := r.Next()
	if err == nil || err.Kind != diag.EndOfMethodInsideInstruction {
		t.Fatalf("got %v, want EndOfMethodInsideInstruction", err)
	}
}

func TestReaderTotality(t *testing.T) {
	// Every opcode in the table should advance by its documented length
	// for a well-formed encoding of that single instruction.
	for op, info := range table {
		width := operandLen(info.Operand)
		if width < 0 {
			continue // switch handled separately above
		}
		opBytes := opcodeBytes(op)
		code := append(append([]byte{}, opBytes...), make([]byte, width)...)
		r := New(code)
		inst, err := r.Next()
		if err != nil {
			t.Errorf("opcode %v: unexpected error %v", op, err)
			continue
		}
		if inst.Length != len(opBytes)+width {
			t.Errorf("opcode %v: length = %d, want %d", op, inst.Length, len(opBytes)+width)
		}
	}
}

func opcodeBytes(op Opcode) []byte {
	if op < 0x100 {
		return []byte{byte(op)}
	}
	return []byte{0xFE, byte(int(op) - 0x100)}
}

func TestDisassemble(t *testing.T) {
	code := []byte{byte(LdcI41), byte(Ret)}
	out := Disassemble(code)
	if out == "" {
		t.Fatal("expected non-empty disassembly")
	}
}
