// Package ilreader decodes a CIL method body's byte stream into a
// sequence of opcodes with their inline operands. Single-
// byte opcodes occupy 0x00..0xFF except 0xFE, the two-byte prefix whose
// second byte selects an extended opcode at 0x100+n.
package ilreader

import "fmt"

// Opcode is a decoded CIL instruction, single-byte or two-byte-extended.
type Opcode int

const (
	Nop    Opcode = 0x00
	Break  Opcode = 0x01
	Ldarg0 Opcode = 0x02
	Ldarg1 Opcode = 0x03
	Ldarg2 Opcode = 0x04
	Ldarg3 Opcode = 0x05
	Ldloc0 Opcode = 0x06
	Ldloc1 Opcode = 0x07
	Ldloc2 Opcode = 0x08
	Ldloc3 Opcode = 0x09
	Stloc0 Opcode = 0x0A
	Stloc1 Opcode = 0x0B
	Stloc2 Opcode = 0x0C
	Stloc3 Opcode = 0x0D
	LdargS Opcode = 0x0E
	LdargaS Opcode = 0x0F
	StargS Opcode = 0x10
	LdlocS Opcode = 0x11
	LdlocaS Opcode = 0x12
	StlocS  Opcode = 0x13
	LdnullOp Opcode = 0x14
	LdcI4M1 Opcode = 0x15
	LdcI40  Opcode = 0x16
	LdcI41  Opcode = 0x17
	LdcI42  Opcode = 0x18
	LdcI43  Opcode = 0x19
	LdcI44  Opcode = 0x1A
	LdcI45  Opcode = 0x1B
	LdcI46  Opcode = 0x1C
	LdcI47  Opcode = 0x1D
	LdcI48  Opcode = 0x1E
	LdcI4S  Opcode = 0x1F
	LdcI4   Opcode = 0x20
	LdcI8   Opcode = 0x21
	LdcR4   Opcode = 0x22
	LdcR8   Opcode = 0x23
	Dup     Opcode = 0x25
	Pop     Opcode = 0x26
	Jmp     Opcode = 0x27
	Call    Opcode = 0x28
	Calli   Opcode = 0x29
	Ret     Opcode = 0x2A
	BrS     Opcode = 0x2B
	BrfalseS Opcode = 0x2C
	BrtrueS  Opcode = 0x2D
	BeqS     Opcode = 0x2E
	BgeS     Opcode = 0x2F
	BgtS     Opcode = 0x30
	BleS     Opcode = 0x31
	BltS     Opcode = 0x32
	BneUnS   Opcode = 0x33
	BgeUnS   Opcode = 0x34
	BgtUnS   Opcode = 0x35
	BleUnS   Opcode = 0x36
	BltUnS   Opcode = 0x37
	Br       Opcode = 0x38
	Brfalse  Opcode = 0x39
	Brtrue   Opcode = 0x3A
	Beq      Opcode = 0x3B
	Bge      Opcode = 0x3C
	Bgt      Opcode = 0x3D
	Ble      Opcode = 0x3E
	Blt      Opcode = 0x3F
	BneUn    Opcode = 0x40
	BgeUn    Opcode = 0x41
	BgtUn    Opcode = 0x42
	BleUn    Opcode = 0x43
	BltUn    Opcode = 0x44
	Switch   Opcode = 0x45
	LdindI1  Opcode = 0x46
	LdindU1  Opcode = 0x47
	LdindI2  Opcode = 0x48
	LdindU2  Opcode = 0x49
	LdindI4  Opcode = 0x4A
	LdindU4  Opcode = 0x4B
	LdindI8  Opcode = 0x4C
	LdindI   Opcode = 0x4D
	LdindR4  Opcode = 0x4E
	LdindR8  Opcode = 0x4F
	LdindRef Opcode = 0x50
	StindRef Opcode = 0x51
	StindI1  Opcode = 0x52
	StindI2  Opcode = 0x53
	StindI4  Opcode = 0x54
	StindI8  Opcode = 0x55
	StindR4  Opcode = 0x56
	StindR8  Opcode = 0x57
	Add      Opcode = 0x58
	Sub      Opcode = 0x59
	Mul      Opcode = 0x5A
	Div      Opcode = 0x5B
	DivUn    Opcode = 0x5C
	Rem      Opcode = 0x5D
	RemUn    Opcode = 0x5E
	And      Opcode = 0x5F
	Or       Opcode = 0x60
	Xor      Opcode = 0x61
	Shl      Opcode = 0x62
	Shr      Opcode = 0x63
	ShrUn    Opcode = 0x64
	Neg      Opcode = 0x65
	Not      Opcode = 0x66
	ConvI1   Opcode = 0x67
	ConvI2   Opcode = 0x68
	ConvI4   Opcode = 0x69
	ConvI8   Opcode = 0x6A
	ConvR4   Opcode = 0x6B
	ConvR8   Opcode = 0x6C
	ConvU4   Opcode = 0x6D
	ConvU8   Opcode = 0x6E
	Callvirt Opcode = 0x6F
	Cpobj    Opcode = 0x70
	Ldobj    Opcode = 0x71
	LdstrOp  Opcode = 0x72
	Newobj   Opcode = 0x73
	Castclass Opcode = 0x74
	Isinst    Opcode = 0x75
	ConvRUn   Opcode = 0x76
	Unbox     Opcode = 0x79
	ThrowOp   Opcode = 0x7A
	Ldfld     Opcode = 0x7B
	Ldflda    Opcode = 0x7C
	Stfld     Opcode = 0x7D
	Ldsfld    Opcode = 0x7E
	Ldsflda   Opcode = 0x7F
	Stsfld    Opcode = 0x80
	Stobj     Opcode = 0x81
	ConvOvfI1Un Opcode = 0x82
	ConvOvfI2Un Opcode = 0x83
	ConvOvfI4Un Opcode = 0x84
	ConvOvfI8Un Opcode = 0x85
	ConvOvfU1Un Opcode = 0x86
	ConvOvfU2Un Opcode = 0x87
	ConvOvfU4Un Opcode = 0x88
	ConvOvfU8Un Opcode = 0x89
	ConvOvfIUn  Opcode = 0x8A
	ConvOvfUUn  Opcode = 0x8B
	Box         Opcode = 0x8C
	Newarr      Opcode = 0x8D
	Ldlen       Opcode = 0x8E
	Ldelema     Opcode = 0x8F
	LdelemI1    Opcode = 0x90
	LdelemU1    Opcode = 0x91
	LdelemI2    Opcode = 0x92
	LdelemU2    Opcode = 0x93
	LdelemI4    Opcode = 0x94
	LdelemU4    Opcode = 0x95
	LdelemI8    Opcode = 0x96
	LdelemI     Opcode = 0x97
	LdelemR4    Opcode = 0x98
	LdelemR8    Opcode = 0x99
	LdelemRef   Opcode = 0x9A
	StelemI     Opcode = 0x9B
	StelemI1    Opcode = 0x9C
	StelemI2    Opcode = 0x9D
	StelemI4    Opcode = 0x9E
	StelemI8    Opcode = 0x9F
	StelemR4    Opcode = 0xA0
	StelemR8    Opcode = 0xA1
	StelemRef   Opcode = 0xA2
	LdelemOp    Opcode = 0xA3
	StelemOp    Opcode = 0xA4
	UnboxAny    Opcode = 0xA5
	ConvOvfI1   Opcode = 0xB3
	ConvOvfU1   Opcode = 0xB4
	ConvOvfI2   Opcode = 0xB5
	ConvOvfU2   Opcode = 0xB6
	ConvOvfI4   Opcode = 0xB7
	ConvOvfU4   Opcode = 0xB8
	ConvOvfI8   Opcode = 0xB9
	ConvOvfU8   Opcode = 0xBA
	RefanyvalOp Opcode = 0xC2
	CkfiniteOp  Opcode = 0xC3
	MkrefanyOp  Opcode = 0xC6
	LdtokenOp   Opcode = 0xD0
	ConvU2      Opcode = 0xD1
	ConvU1      Opcode = 0xD2
	ConvI       Opcode = 0xD3
	ConvOvfI    Opcode = 0xD4
	ConvOvfU    Opcode = 0xD5
	AddOvf      Opcode = 0xD6
	AddOvfUn    Opcode = 0xD7
	MulOvf      Opcode = 0xD8
	MulOvfUn    Opcode = 0xD9
	SubOvf      Opcode = 0xDA
	SubOvfUn    Opcode = 0xDB
	EndfinallyOp Opcode = 0xDC
	LeaveOp      Opcode = 0xDD
	LeaveS       Opcode = 0xDE
	StindI       Opcode = 0xDF
	ConvU        Opcode = 0xE0

	// Two-byte extended opcodes (0xFE prefix): encoded as 0x100 + n.
	ArglistOp    Opcode = 0x100 + 0x00
	CeqOp        Opcode = 0x100 + 0x01
	CgtOp        Opcode = 0x100 + 0x02
	CgtUnOp      Opcode = 0x100 + 0x03
	CltOp        Opcode = 0x100 + 0x04
	CltUnOp      Opcode = 0x100 + 0x05
	LdftnOp      Opcode = 0x100 + 0x06
	LdvirtftnOp  Opcode = 0x100 + 0x07
	LdargLong    Opcode = 0x100 + 0x09
	LdargaLong   Opcode = 0x100 + 0x0A
	StargLong    Opcode = 0x100 + 0x0B
	LdlocLong    Opcode = 0x100 + 0x0C
	LdlocaLong   Opcode = 0x100 + 0x0D
	StlocLong    Opcode = 0x100 + 0x0E
	LocallocOp   Opcode = 0x100 + 0x0F
	EndfilterOp  Opcode = 0x100 + 0x11
	UnalignedOp  Opcode = 0x100 + 0x12
	VolatileOp   Opcode = 0x100 + 0x13
	TailOp       Opcode = 0x100 + 0x14
	InitobjOp    Opcode = 0x100 + 0x15
	ConstrainedOp Opcode = 0x100 + 0x16
	CpblkOp      Opcode = 0x100 + 0x17
	InitblkOp    Opcode = 0x100 + 0x18
	NoOp         Opcode = 0x100 + 0x19
	RethrowOp    Opcode = 0x100 + 0x1A
	SizeofOp     Opcode = 0x100 + 0x1C
	RefanytypeOp Opcode = 0x100 + 0x1D
	ReadonlyOp   Opcode = 0x100 + 0x1E
)

// OperandKind describes how an opcode's inline operand bytes are decoded.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandI1          // 1-byte signed
	OperandU1          // 1-byte unsigned (local/arg slot index)
	OperandI2          // 2-byte signed (long-form arg/local index)
	OperandI4          // 4-byte signed (branch offset, i4 constant)
	OperandI8          // 8-byte signed (i8 constant)
	OperandR4          // 4-byte float
	OperandR8          // 8-byte float
	OperandToken       // 4-byte metadata token (type/method/field/string/sig)
	OperandSwitch      // 4-byte count N followed by N 4-byte targets
)

// Info is the static metadata the IL reader and interpreter both consult
// for a given opcode.
type Info struct {
	Name       string
	Operand    OperandKind
	IsPrefix   bool
}

var table = map[Opcode]Info{
	Nop: {"nop", OperandNone, false}, Break: {"break", OperandNone, false},
	Ldarg0: {"ldarg.0", OperandNone, false}, Ldarg1: {"ldarg.1", OperandNone, false},
	Ldarg2: {"ldarg.2", OperandNone, false}, Ldarg3: {"ldarg.3", OperandNone, false},
	Ldloc0: {"ldloc.0", OperandNone, false}, Ldloc1: {"ldloc.1", OperandNone, false},
	Ldloc2: {"ldloc.2", OperandNone, false}, Ldloc3: {"ldloc.3", OperandNone, false},
	Stloc0: {"stloc.0", OperandNone, false}, Stloc1: {"stloc.1", OperandNone, false},
	Stloc2: {"stloc.2", OperandNone, false}, Stloc3: {"stloc.3", OperandNone, false},
	LdargS: {"ldarg.s", OperandU1, false}, LdargaS: {"ldarga.s", OperandU1, false},
	StargS: {"starg.s", OperandU1, false},
	LdlocS: {"ldloc.s", OperandU1, false}, LdlocaS: {"ldloca.s", OperandU1, false},
	StlocS: {"stloc.s", OperandU1, false},
	LdnullOp: {"ldnull", OperandNone, false},
	LdcI4M1: {"ldc.i4.m1", OperandNone, false}, LdcI40: {"ldc.i4.0", OperandNone, false},
	LdcI41: {"ldc.i4.1", OperandNone, false}, LdcI42: {"ldc.i4.2", OperandNone, false},
	LdcI43: {"ldc.i4.3", OperandNone, false}, LdcI44: {"ldc.i4.4", OperandNone, false},
	LdcI45: {"ldc.i4.5", OperandNone, false}, LdcI46: {"ldc.i4.6", OperandNone, false},
	LdcI47: {"ldc.i4.7", OperandNone, false}, LdcI48: {"ldc.i4.8", OperandNone, false},
	LdcI4S: {"ldc.i4.s", OperandI1, false}, LdcI4: {"ldc.i4", OperandI4, false},
	LdcI8: {"ldc.i8", OperandI8, false}, LdcR4: {"ldc.r4", OperandR4, false},
	LdcR8: {"ldc.r8", OperandR8, false},
	Dup: {"dup", OperandNone, false}, Pop: {"pop", OperandNone, false},
	Jmp: {"jmp", OperandToken, false}, Call: {"call", OperandToken, false},
	Calli: {"calli", OperandToken, false}, Ret: {"ret", OperandNone, false},
	BrS: {"br.s", OperandI1, false}, BrfalseS: {"brfalse.s", OperandI1, false},
	BrtrueS: {"brtrue.s", OperandI1, false}, BeqS: {"beq.s", OperandI1, false},
	BgeS: {"bge.s", OperandI1, false}, BgtS: {"bgt.s", OperandI1, false},
	BleS: {"ble.s", OperandI1, false}, BltS: {"blt.s", OperandI1, false},
	BneUnS: {"bne.un.s", OperandI1, false}, BgeUnS: {"bge.un.s", OperandI1, false},
	BgtUnS: {"bgt.un.s", OperandI1, false}, BleUnS: {"ble.un.s", OperandI1, false},
	BltUnS: {"blt.un.s", OperandI1, false},
	Br: {"br", OperandI4, false}, Brfalse: {"brfalse", OperandI4, false},
	Brtrue: {"brtrue", OperandI4, false}, Beq: {"beq", OperandI4, false},
	Bge: {"bge", OperandI4, false}, Bgt: {"bgt", OperandI4, false},
	Ble: {"ble", OperandI4, false}, Blt: {"blt", OperandI4, false},
	BneUn: {"bne.un", OperandI4, false}, BgeUn: {"bge.un", OperandI4, false},
	BgtUn: {"bgt.un", OperandI4, false}, BleUn: {"ble.un", OperandI4, false},
	BltUn: {"blt.un", OperandI4, false},
	Switch: {"switch", OperandSwitch, false},
	LdindI1: {"ldind.i1", OperandNone, false}, LdindU1: {"ldind.u1", OperandNone, false},
	LdindI2: {"ldind.i2", OperandNone, false}, LdindU2: {"ldind.u2", OperandNone, false},
	LdindI4: {"ldind.i4", OperandNone, false}, LdindU4: {"ldind.u4", OperandNone, false},
	LdindI8: {"ldind.i8", OperandNone, false}, LdindI: {"ldind.i", OperandNone, false},
	LdindR4: {"ldind.r4", OperandNone, false}, LdindR8: {"ldind.r8", OperandNone, false},
	LdindRef: {"ldind.ref", OperandNone, false}, StindRef: {"stind.ref", OperandNone, false},
	StindI1: {"stind.i1", OperandNone, false}, StindI2: {"stind.i2", OperandNone, false},
	StindI4: {"stind.i4", OperandNone, false}, StindI8: {"stind.i8", OperandNone, false},
	StindR4: {"stind.r4", OperandNone, false}, StindR8: {"stind.r8", OperandNone, false},
	Add: {"add", OperandNone, false}, Sub: {"sub", OperandNone, false},
	Mul: {"mul", OperandNone, false}, Div: {"div", OperandNone, false},
	DivUn: {"div.un", OperandNone, false}, Rem: {"rem", OperandNone, false},
	RemUn: {"rem.un", OperandNone, false}, And: {"and", OperandNone, false},
	Or: {"or", OperandNone, false}, Xor: {"xor", OperandNone, false},
	Shl: {"shl", OperandNone, false}, Shr: {"shr", OperandNone, false},
	ShrUn: {"shr.un", OperandNone, false}, Neg: {"neg", OperandNone, false},
	Not: {"not", OperandNone, false},
	ConvI1: {"conv.i1", OperandNone, false}, ConvI2: {"conv.i2", OperandNone, false},
	ConvI4: {"conv.i4", OperandNone, false}, ConvI8: {"conv.i8", OperandNone, false},
	ConvR4: {"conv.r4", OperandNone, false}, ConvR8: {"conv.r8", OperandNone, false},
	ConvU4: {"conv.u4", OperandNone, false}, ConvU8: {"conv.u8", OperandNone, false},
	Callvirt: {"callvirt", OperandToken, false}, Cpobj: {"cpobj", OperandToken, false},
	Ldobj: {"ldobj", OperandToken, false}, LdstrOp: {"ldstr", OperandToken, false},
	Newobj: {"newobj", OperandToken, false}, Castclass: {"castclass", OperandToken, false},
	Isinst: {"isinst", OperandToken, false}, ConvRUn: {"conv.r.un", OperandNone, false},
	Unbox: {"unbox", OperandToken, false}, ThrowOp: {"throw", OperandNone, false},
	Ldfld: {"ldfld", OperandToken, false}, Ldflda: {"ldflda", OperandToken, false},
	Stfld: {"stfld", OperandToken, false}, Ldsfld: {"ldsfld", OperandToken, false},
	Ldsflda: {"ldsflda", OperandToken, false}, Stsfld: {"stsfld", OperandToken, false},
	Stobj: {"stobj", OperandToken, false},
	ConvOvfI1Un: {"conv.ovf.i1.un", OperandNone, false}, ConvOvfI2Un: {"conv.ovf.i2.un", OperandNone, false},
	ConvOvfI4Un: {"conv.ovf.i4.un", OperandNone, false}, ConvOvfI8Un: {"conv.ovf.i8.un", OperandNone, false},
	ConvOvfU1Un: {"conv.ovf.u1.un", OperandNone, false}, ConvOvfU2Un: {"conv.ovf.u2.un", OperandNone, false},
	ConvOvfU4Un: {"conv.ovf.u4.un", OperandNone, false}, ConvOvfU8Un: {"conv.ovf.u8.un", OperandNone, false},
	ConvOvfIUn: {"conv.ovf.i.un", OperandNone, false}, ConvOvfUUn: {"conv.ovf.u.un", OperandNone, false},
	Box: {"box", OperandToken, false}, Newarr: {"newarr", OperandToken, false},
	Ldlen: {"ldlen", OperandNone, false}, Ldelema: {"ldelema", OperandToken, false},
	LdelemI1: {"ldelem.i1", OperandNone, false}, LdelemU1: {"ldelem.u1", OperandNone, false},
	LdelemI2: {"ldelem.i2", OperandNone, false}, LdelemU2: {"ldelem.u2", OperandNone, false},
	LdelemI4: {"ldelem.i4", OperandNone, false}, LdelemU4: {"ldelem.u4", OperandNone, false},
	LdelemI8: {"ldelem.i8", OperandNone, false}, LdelemI: {"ldelem.i", OperandNone, false},
	LdelemR4: {"ldelem.r4", OperandNone, false}, LdelemR8: {"ldelem.r8", OperandNone, false},
	LdelemRef: {"ldelem.ref", OperandNone, false},
	StelemI: {"stelem.i", OperandNone, false}, StelemI1: {"stelem.i1", OperandNone, false},
	StelemI2: {"stelem.i2", OperandNone, false}, StelemI4: {"stelem.i4", OperandNone, false},
	StelemI8: {"stelem.i8", OperandNone, false}, StelemR4: {"stelem.r4", OperandNone, false},
	StelemR8: {"stelem.r8", OperandNone, false}, StelemRef: {"stelem.ref", OperandNone, false},
	LdelemOp: {"ldelem", OperandToken, false}, StelemOp: {"stelem", OperandToken, false},
	UnboxAny: {"unbox.any", OperandToken, false},
	ConvOvfI1: {"conv.ovf.i1", OperandNone, false}, ConvOvfU1: {"conv.ovf.u1", OperandNone, false},
	ConvOvfI2: {"conv.ovf.i2", OperandNone, false}, ConvOvfU2: {"conv.ovf.u2", OperandNone, false},
	ConvOvfI4: {"conv.ovf.i4", OperandNone, false}, ConvOvfU4: {"conv.ovf.u4", OperandNone, false},
	ConvOvfI8: {"conv.ovf.i8", OperandNone, false}, ConvOvfU8: {"conv.ovf.u8", OperandNone, false},
	RefanyvalOp: {"refanyval", OperandToken, false}, CkfiniteOp: {"ckfinite", OperandNone, false},
	MkrefanyOp: {"mkrefany", OperandToken, false}, LdtokenOp: {"ldtoken", OperandToken, false},
	ConvU2: {"conv.u2", OperandNone, false}, ConvU1: {"conv.u1", OperandNone, false},
	ConvI: {"conv.i", OperandNone, false}, ConvOvfI: {"conv.ovf.i", OperandNone, false},
	ConvOvfU: {"conv.ovf.u", OperandNone, false},
	AddOvf: {"add.ovf", OperandNone, false}, AddOvfUn: {"add.ovf.un", OperandNone, false},
	MulOvf: {"mul.ovf", OperandNone, false}, MulOvfUn: {"mul.ovf.un", OperandNone, false},
	SubOvf: {"sub.ovf", OperandNone, false}, SubOvfUn: {"sub.ovf.un", OperandNone, false},
	EndfinallyOp: {"endfinally", OperandNone, false},
	LeaveOp: {"leave", OperandI4, false}, LeaveS: {"leave.s", OperandI1, false},
	StindI: {"stind.i", OperandNone, false}, ConvU: {"conv.u", OperandNone, false},

	ArglistOp: {"arglist", OperandNone, false},
	CeqOp: {"ceq", OperandNone, false}, CgtOp: {"cgt", OperandNone, false},
	CgtUnOp: {"cgt.un", OperandNone, false}, CltOp: {"clt", OperandNone, false},
	CltUnOp: {"clt.un", OperandNone, false},
	LdftnOp: {"ldftn", OperandToken, false}, LdvirtftnOp: {"ldvirtftn", OperandToken, false},
	LdargLong: {"ldarg", OperandI2, false}, LdargaLong: {"ldarga", OperandI2, false},
	StargLong: {"starg", OperandI2, false},
	LdlocLong: {"ldloc", OperandI2, false}, LdlocaLong: {"ldloca", OperandI2, false},
	StlocLong: {"stloc", OperandI2, false},
	LocallocOp: {"localloc", OperandNone, false},
	EndfilterOp: {"endfilter", OperandNone, false},
	UnalignedOp: {"unaligned.", OperandU1, true}, VolatileOp: {"volatile.", OperandNone, true},
	TailOp: {"tail.", OperandNone, true}, InitobjOp: {"initobj", OperandToken, false},
	ConstrainedOp: {"constrained.", OperandToken, true},
	CpblkOp: {"cpblk", OperandNone, false}, InitblkOp: {"initblk", OperandNone, false},
	NoOp: {"no.", OperandU1, true}, RethrowOp: {"rethrow", OperandNone, false},
	SizeofOp: {"sizeof", OperandToken, false}, RefanytypeOp: {"refanytype", OperandNone, false},
	ReadonlyOp: {"readonly.", OperandNone, true},
}

// Lookup returns the static Info for op, or a placeholder for an
// unrecognized value.
func Lookup(op Opcode) Info {
	if info, ok := table[op]; ok {
		return info
	}
	return Info{Name: fmt.Sprintf("unknown(0x%03X)", int(op)), Operand: OperandNone}
}

func (op Opcode) String() string { return Lookup(op).Name }

// operandLen returns the fixed byte length of op's inline operand, or -1
// for the variable-length switch table (whose true length depends on
// the decoded case count and must be read dynamically).
func operandLen(kind OperandKind) int {
	switch kind {
	case OperandNone:
		return 0
	case OperandI1, OperandU1:
		return 1
	case OperandI2:
		return 2
	case OperandI4, OperandToken, OperandR4:
		return 4
	case OperandI8, OperandR8:
		return 8
	case OperandSwitch:
		return -1
	default:
		return 0
	}
}
