// Package stackslot models a single slot of the verifier's abstract
// evaluation stack: a tagged variant over the ECMA-335 stack-transition
// kinds, with an optional attached type identity and an orthogonal flag
// bitset. Flags are deliberately not folded into the Kind enum: a ByRef
// can independently be read-only and/or have a permanent home, and any
// slot can independently carry the this-pointer flag.
package stackslot

import (
	"fmt"

	"github.com/chazu/cilverify/pkg/oracle"
)

// Kind is the tag of a stack slot's variant.
type Kind int

const (
	Int32 Kind = iota
	Int64
	NativeInt
	Float
	ObjRef
	ByRef
	ValueType
	Unknown
)

func (k Kind) String() string {
	switch k {
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case NativeInt:
		return "NativeInt"
	case Float:
		return "Float"
	case ObjRef:
		return "ObjRef"
	case ByRef:
		return "ByRef"
	case ValueType:
		return "ValueType"
	case Unknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Flags is an orthogonal bitset attached to a slot.
type Flags uint8

const (
	// ReadOnly marks a ByRef produced by the readonly. prefix.
	ReadOnly Flags = 1 << iota
	// PermanentHome marks a ByRef whose storage outlives the current
	// frame (a field, array element, or boxed value).
	PermanentHome
	// ThisPointer marks the slot holding the method's `this` argument.
	ThisPointer
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Slot is one value on the verifier's typed evaluation stack.
type Slot struct {
	Kind Kind

	// Type is the attached type identity, present for ObjRef, ValueType,
	// and the element type of ByRef. Nil for Int32/Int64/NativeInt/Float
	// slots that carry no identity, and for the null object reference
	// (ObjRef with Type == nil).
	Type oracle.TypeID

	// Method is the attached method identity for a NativeInt that is a
	// method pointer (ldftn/ldvirtftn).
	Method oracle.MethodID

	Flags Flags
}

// IsNullRef reports whether s is a null object reference: ObjRef with no
// attached type identity.
func (s Slot) IsNullRef() bool {
	return s.Kind == ObjRef && s.Type == nil
}

// IsMethodPointer reports whether s is a NativeInt carrying a method
// identity (produced by ldftn/ldvirtftn).
func (s Slot) IsMethodPointer() bool {
	return s.Kind == NativeInt && s.Method != nil
}

// Equal compares kind, type identity, method identity, and all flags.
func (s Slot) Equal(o Slot) bool {
	return s.Kind == o.Kind && s.Type == o.Type && s.Method == o.Method && s.Flags == o.Flags
}

func (s Slot) String() string {
	switch {
	case s.IsMethodPointer():
		return fmt.Sprintf("NativeInt(method %v)", s.Method)
	case s.Type != nil:
		return fmt.Sprintf("%s(%v)", s.Kind, s.Type)
	default:
		return s.Kind.String()
	}
}

// FromType constructs the initial stack slot for a raw oracle type.
func FromType(t oracle.TypeID, ts oracle.TypeSystem) Slot {
	switch ts.Kind(t) {
	case oracle.KBool, oracle.KChar,
		oracle.KSByte, oracle.KByte,
		oracle.KInt16, oracle.KUInt16,
		oracle.KInt32, oracle.KUInt32:
		return Slot{Kind: Int32, Type: t}
	case oracle.KInt64, oracle.KUInt64:
		return Slot{Kind: Int64, Type: t}
	case oracle.KSingle, oracle.KDouble:
		return Slot{Kind: Float, Type: t}
	case oracle.KIntPtr, oracle.KUIntPtr, oracle.KPointer, oracle.KFunctionPointer:
		return Slot{Kind: NativeInt, Type: t}
	case oracle.KEnum:
		underlying := FromType(ts.EnumUnderlying(t), ts)
		return Slot{Kind: underlying.Kind, Type: t}
	case oracle.KByRef:
		elem := ts.ElementType(t)
		inner := FromType(elem, ts)
		return Slot{Kind: ByRef, Type: elem, Flags: inner.Flags}
	case oracle.KValueType, oracle.KGenericParameter:
		return Slot{Kind: ValueType, Type: t}
	default:
		return Slot{Kind: ObjRef, Type: t}
	}
}

// NullRef is the null object reference: ObjRef with no type identity.
func NullRef() Slot { return Slot{Kind: ObjRef} }

// ByRefTo builds a ByRef slot to elem with the given flags.
func ByRefTo(elem oracle.TypeID, flags Flags) Slot {
	return Slot{Kind: ByRef, Type: elem, Flags: flags}
}

// MethodPointer builds the NativeInt slot pushed by ldftn/ldvirtftn.
func MethodPointer(m oracle.MethodID) Slot {
	return Slot{Kind: NativeInt, Method: m}
}
