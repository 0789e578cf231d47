package interp

import (
	"github.com/chazu/cilverify/pkg/diag"
	"github.com/chazu/cilverify/pkg/ilreader"
	"github.com/chazu/cilverify/pkg/oracle"
)

// prefixState holds the one-shot flags a prefix opcode sets for the
// instruction that follows it. consumedThisStep
// is how the block loop in interp.go tells whether the instruction just
// dispatched was itself a prefix (preserve the flags it set) or an
// ordinary opcode (clear whatever was pending, consumed or not).
type prefixState struct {
	unaligned  bool
	unalignedN uint8
	volatile   bool

	hasConstrained bool
	constrained    oracle.TypeID

	readonly bool

	noTypeCheck  bool
	noRangeCheck bool
	noNullCheck  bool

	consumedThisStep bool
}

func (p *prefixState) any() bool {
	return p.unaligned || p.volatile || p.hasConstrained || p.readonly ||
		p.noTypeCheck || p.noRangeCheck || p.noNullCheck
}

// noFlags decodes the no.* prefix's bitmask operand (ECMA-335: bit 0
// typecheck, bit 1 rangecheck, bit 2 nullcheck).
func noFlags(mask uint8) (typeCheck, rangeCheck, nullCheck bool) {
	return mask&0x1 != 0, mask&0x2 != 0, mask&0x4 != 0
}

func isLdindOrStind(op ilreader.Opcode) bool {
	switch op {
	case ilreader.LdindI1, ilreader.LdindU1, ilreader.LdindI2, ilreader.LdindU2,
		ilreader.LdindI4, ilreader.LdindU4, ilreader.LdindI8, ilreader.LdindI,
		ilreader.LdindR4, ilreader.LdindR8, ilreader.LdindRef,
		ilreader.StindRef, ilreader.StindI1, ilreader.StindI2, ilreader.StindI4,
		ilreader.StindI8, ilreader.StindR4, ilreader.StindR8, ilreader.StindI:
		return true
	}
	return false
}

// allowsUnaligned reports whether op may legally be preceded by
// unaligned.: only the pointer-based field and indirect load/store forms
// (ECMA-335 III.2.6).
func allowsUnaligned(op ilreader.Opcode) bool {
	switch op {
	case ilreader.Ldfld, ilreader.Stfld, ilreader.Ldobj, ilreader.Stobj,
		ilreader.CpblkOp, ilreader.InitblkOp:
		return true
	}
	return isLdindOrStind(op)
}

// allowsVolatile reports whether op may legally be preceded by
// volatile.: the same pointer-based accesses as unaligned., plus the
// static field forms (ECMA-335 III.2.7).
func allowsVolatile(op ilreader.Opcode) bool {
	switch op {
	case ilreader.Ldfld, ilreader.Stfld, ilreader.Ldsfld, ilreader.Stsfld,
		ilreader.Ldobj, ilreader.Stobj, ilreader.CpblkOp, ilreader.InitblkOp:
		return true
	}
	return isLdindOrStind(op)
}

// allowsNo reports whether op may legally be preceded by no.
// (ECMA-335 III.2.3): castclass, unbox, and the array element forms.
func allowsNo(op ilreader.Opcode) bool {
	switch op {
	case ilreader.Castclass, ilreader.Unbox, ilreader.Ldelema,
		ilreader.LdelemOp, ilreader.StelemOp,
		ilreader.LdelemI1, ilreader.LdelemU1, ilreader.LdelemI2, ilreader.LdelemU2,
		ilreader.LdelemI4, ilreader.LdelemU4, ilreader.LdelemI8, ilreader.LdelemI,
		ilreader.LdelemR4, ilreader.LdelemR8, ilreader.LdelemRef,
		ilreader.StelemI, ilreader.StelemI1, ilreader.StelemI2, ilreader.StelemI4,
		ilreader.StelemI8, ilreader.StelemR4, ilreader.StelemR8, ilreader.StelemRef:
		return true
	}
	return false
}

// checkPrefixUsage rejects a prefix flag still pending from an earlier
// instruction in this sequence when op is not one of the opcodes that
// prefix is defined to precede.
func (v *verifier) checkPrefixUsage(op ilreader.Opcode, offset int, pfx *prefixState) {
	if pfx.unaligned && !allowsUnaligned(op) {
		v.reporter.Report(diag.New(diag.InvalidPrefix, offset, "unaligned. not valid before", op.String()))
	}
	if pfx.volatile && !allowsVolatile(op) {
		v.reporter.Report(diag.New(diag.InvalidPrefix, offset, "volatile. not valid before", op.String()))
	}
	if pfx.hasConstrained && op != ilreader.Callvirt {
		v.reporter.Report(diag.New(diag.InvalidPrefix, offset, "constrained. only valid on callvirt", op.String()))
	}
	if pfx.readonly && op != ilreader.Ldelema {
		v.reporter.Report(diag.New(diag.InvalidPrefix, offset, "readonly. only valid on ldelema", op.String()))
	}
	if (pfx.noTypeCheck || pfx.noRangeCheck || pfx.noNullCheck) && !allowsNo(op) {
		v.reporter.Report(diag.New(diag.InvalidPrefix, offset, "no. not valid before", op.String()))
	}
}
