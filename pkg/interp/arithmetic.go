package interp

import "github.com/chazu/cilverify/pkg/stackslot"

// arithBinaryResult implements the ECMA-335 III.1.5 operand-compatibility
// table for add/sub/mul/div/rem and their _un/_ovf/_ovf_un variants. The
// verifier only needs the *kind* lattice, not the arithmetic itself: which
// kind pairs are legal, and what kind the result carries.
func arithBinaryResult(isAddOrSub, allowByRef bool, a, b stackslot.Kind) (stackslot.Kind, bool) {
	numeric := func(k stackslot.Kind) bool {
		return k == stackslot.Int32 || k == stackslot.Int64 || k == stackslot.NativeInt || k == stackslot.Float
	}

	if numeric(a) && numeric(b) {
		switch {
		case a == stackslot.Float && b == stackslot.Float:
			return stackslot.Float, true
		case a == stackslot.Float || b == stackslot.Float:
			return stackslot.Unknown, false
		case a == stackslot.Int64 && b == stackslot.Int64:
			return stackslot.Int64, true
		case a == stackslot.Int64 || b == stackslot.Int64:
			return stackslot.Unknown, false
		case a == stackslot.NativeInt || b == stackslot.NativeInt:
			return stackslot.NativeInt, true
		default:
			return stackslot.Int32, true
		}
	}

	if allowByRef && isAddOrSub {
		// int32/nativeint + ByRef -> ByRef (either operand order for add);
		// ByRef - int32/nativeint -> ByRef; ByRef - ByRef -> nativeint.
		if a == stackslot.ByRef && (b == stackslot.Int32 || b == stackslot.NativeInt) {
			return stackslot.ByRef, true
		}
		if b == stackslot.ByRef && (a == stackslot.Int32 || a == stackslot.NativeInt) {
			return stackslot.ByRef, true
		}
		if a == stackslot.ByRef && b == stackslot.ByRef {
			return stackslot.NativeInt, true
		}
	}

	return stackslot.Unknown, false
}

// bitwiseResult implements and/or/xor's compatibility table: integral
// kinds only, same-or-widened result.
func bitwiseResult(a, b stackslot.Kind) (stackslot.Kind, bool) {
	integral := func(k stackslot.Kind) bool {
		return k == stackslot.Int32 || k == stackslot.Int64 || k == stackslot.NativeInt
	}
	if !integral(a) || !integral(b) {
		return stackslot.Unknown, false
	}
	switch {
	case a == stackslot.Int64 && b == stackslot.Int64:
		return stackslot.Int64, true
	case a == stackslot.Int64 || b == stackslot.Int64:
		return stackslot.Unknown, false
	case a == stackslot.NativeInt || b == stackslot.NativeInt:
		return stackslot.NativeInt, true
	default:
		return stackslot.Int32, true
	}
}

// shiftResult implements shl/shr/shr.un: count must be Int32 or NativeInt,
// result kind equals the value kind being shifted.
func shiftResult(value, count stackslot.Kind) (stackslot.Kind, bool) {
	if count != stackslot.Int32 && count != stackslot.NativeInt {
		return stackslot.Unknown, false
	}
	switch value {
	case stackslot.Int32, stackslot.Int64, stackslot.NativeInt:
		return value, true
	default:
		return stackslot.Unknown, false
	}
}
