package ilreader

import (
	"encoding/binary"
	"math"

	"github.com/chazu/cilverify/pkg/diag"
)

// Instruction is one decoded IL instruction: its opcode, starting offset,
// and operand, already widened to the representation the interpreter
// needs (no further byte-level decoding downstream).
type Instruction struct {
	Opcode Opcode
	Offset int    // offset of the opcode byte itself
	Length int    // total instruction length including the opcode byte(s)
	I1     int8   // OperandI1
	U1     uint8  // OperandU1
	I2     int16  // OperandI2
	I4     int32  // OperandI4 (tokens are carried in Token, not here)
	I8     int64  // OperandI8
	R4     float32
	R8     float64
	Token  uint32      // metadata token, valid when Operand == OperandToken
	Targets []int32    // switch jump table (relative offsets), valid when Operand == OperandSwitch
}

// Reader is a cursor over a method body's raw IL bytes.
type Reader struct {
	code []byte
	pos  int
}

// New creates a Reader over code starting at offset 0.
func New(code []byte) *Reader {
	return &Reader{code: code}
}

// Len returns the total IL length in bytes.
func (r *Reader) Len() int { return len(r.code) }

// AtEnd reports whether the cursor has consumed the whole stream.
func (r *Reader) AtEnd() bool { return r.pos >= len(r.code) }

// Offset returns the current cursor position.
func (r *Reader) Offset() int { return r.pos }

// SeekTo repositions the cursor to a known block-start offset.
func (r *Reader) SeekTo(offset int) { r.pos = offset }

// Next decodes the instruction at the current cursor position and
// advances past it. It reports EndOfMethodInsideInstruction if doing so
// would read past the end of the IL.
func (r *Reader) Next() (Instruction, *diag.Error) {
	start := r.pos
	op, derr := r.decodeOpcode()
	if derr != nil {
		return Instruction{}, derr
	}

	inst := Instruction{Opcode: op, Offset: start}
	info := Lookup(op)

	if info.Operand == OperandSwitch {
		count, derr := r.readU4()
		if derr != nil {
			return Instruction{}, derr
		}
		targets := make([]int32, count)
		for i := range targets {
			v, derr := r.readU4()
			if derr != nil {
				return Instruction{}, derr
			}
			targets[i] = int32(v)
		}
		inst.Targets = targets
		inst.Length = r.pos - start
		return inst, nil
	}

	width := operandLen(info.Operand)
	if r.pos+width > len(r.code) {
		return Instruction{}, diag.New(diag.EndOfMethodInsideInstruction, start, op.String())
	}

	switch info.Operand {
	case OperandNone:
	case OperandI1:
		inst.I1 = int8(r.code[r.pos])
		r.pos++
	case OperandU1:
		inst.U1 = r.code[r.pos]
		r.pos++
	case OperandI2:
		inst.I2 = int16(binary.LittleEndian.Uint16(r.code[r.pos:]))
		r.pos += 2
	case OperandI4:
		inst.I4 = int32(binary.LittleEndian.Uint32(r.code[r.pos:]))
		r.pos += 4
	case OperandI8:
		inst.I8 = int64(binary.LittleEndian.Uint64(r.code[r.pos:]))
		r.pos += 8
	case OperandR4:
		bits := binary.LittleEndian.Uint32(r.code[r.pos:])
		inst.R4 = math.Float32frombits(bits)
		r.pos += 4
	case OperandR8:
		bits := binary.LittleEndian.Uint64(r.code[r.pos:])
		inst.R8 = math.Float64frombits(bits)
		r.pos += 8
	case OperandToken:
		inst.Token = binary.LittleEndian.Uint32(r.code[r.pos:])
		r.pos += 4
	}

	inst.Length = r.pos - start
	return inst, nil
}

// decodeOpcode reads either a single byte or, if it is the 0xFE prefix,
// the 0xFE plus a second byte giving 0x100+n.
func (r *Reader) decodeOpcode() (Opcode, *diag.Error) {
	if r.pos >= len(r.code) {
		return 0, diag.New(diag.EndOfMethodInsideInstruction, r.pos, "opcode")
	}
	b := r.code[r.pos]
	if b != 0xFE {
		r.pos++
		return Opcode(b), nil
	}
	if r.pos+1 >= len(r.code) {
		return 0, diag.New(diag.EndOfMethodInsideInstruction, r.pos, "extended opcode")
	}
	ext := r.code[r.pos+1]
	r.pos += 2
	return Opcode(0x100 + int(ext)), nil
}

func (r *Reader) readU4() (uint32, *diag.Error) {
	if r.pos+4 > len(r.code) {
		return 0, diag.New(diag.EndOfMethodInsideInstruction, r.pos, "switch operand")
	}
	v := binary.LittleEndian.Uint32(r.code[r.pos:])
	r.pos += 4
	return v, nil
}

// InstructionLength returns the length of the instruction starting at
// offset, without mutating a shared cursor. The CFG builder does not use
// it; it decodes the stream with Reader.Next.
func InstructionLength(code []byte, offset int) (int, *diag.Error) {
	r := &Reader{code: code, pos: offset}
	inst, err := r.Next()
	if err != nil {
		return 0, err
	}
	return inst.Length, nil
}
