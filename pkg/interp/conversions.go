package interp

import (
	"github.com/chazu/cilverify/pkg/ilreader"
	"github.com/chazu/cilverify/pkg/stackslot"
)

// convTargetKind maps a conv/conv.ovf/conv.ovf.un opcode to the stack
// kind its destination type produces. conv.* never changes the stack
// kind of anything but a numeric or NativeInt source; the verifier
// checks only the source's kind, not the overflow semantics it denotes.
func convTargetKind(op ilreader.Opcode) (stackslot.Kind, bool) {
	switch op {
	case ilreader.ConvI1, ilreader.ConvI2, ilreader.ConvI4, ilreader.ConvU4,
		ilreader.ConvU1, ilreader.ConvU2,
		ilreader.ConvOvfI1, ilreader.ConvOvfI2, ilreader.ConvOvfI4,
		ilreader.ConvOvfU1, ilreader.ConvOvfU2, ilreader.ConvOvfU4,
		ilreader.ConvOvfI1Un, ilreader.ConvOvfI2Un, ilreader.ConvOvfI4Un,
		ilreader.ConvOvfU1Un, ilreader.ConvOvfU2Un, ilreader.ConvOvfU4Un:
		return stackslot.Int32, true

	case ilreader.ConvI8, ilreader.ConvU8,
		ilreader.ConvOvfI8, ilreader.ConvOvfU8,
		ilreader.ConvOvfI8Un, ilreader.ConvOvfU8Un:
		return stackslot.Int64, true

	case ilreader.ConvR4, ilreader.ConvR8, ilreader.ConvRUn:
		return stackslot.Float, true

	case ilreader.ConvI, ilreader.ConvU,
		ilreader.ConvOvfI, ilreader.ConvOvfU,
		ilreader.ConvOvfIUn, ilreader.ConvOvfUUn:
		return stackslot.NativeInt, true
	}
	return stackslot.Unknown, false
}

// isConvSourceAcceptable reports whether a stack slot's kind is a legal
// conv.* operand: numeric or NativeInt.
func isConvSourceAcceptable(k stackslot.Kind) bool {
	switch k {
	case stackslot.Int32, stackslot.Int64, stackslot.NativeInt, stackslot.Float:
		return true
	default:
		return false
	}
}
