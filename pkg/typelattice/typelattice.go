// Package typelattice implements the ECMA-335 I.8.7 type normal forms
// (reduced, verification, intermediate) and the lattice operations the
// abstract interpreter uses to reconcile stack states at merge points:
// Merge (the join of two stack slots) and the assignability and
// binary-comparability relations. These are pure functions of
// (pair-of-slots) and an oracle.TypeSystem.
package typelattice

import (
	"github.com/chazu/cilverify/pkg/oracle"
	"github.com/chazu/cilverify/pkg/stackslot"
)

// Reduced implements the ECMA-335 reduced-type mapping: unsigned widths
// fold to their signed counterpart of the same size, UIntPtr folds to
// IntPtr, and an enum folds to the reduced form of its underlying type.
// This unsigned-width reduction runs before any Bool/Char handling:
// Verification below calls Reduced first and applies its Bool/Char
// mapping to the reduced result.
func Reduced(t oracle.TypeID, ts oracle.TypeSystem) oracle.TypeID {
	switch ts.Kind(t) {
	case oracle.KByte:
		return ts.WellKnown("SByte")
	case oracle.KUInt16:
		return ts.WellKnown("Int16")
	case oracle.KUInt32:
		return ts.WellKnown("Int32")
	case oracle.KUInt64:
		return ts.WellKnown("Int64")
	case oracle.KUIntPtr:
		return ts.WellKnown("IntPtr")
	case oracle.KEnum:
		return Reduced(ts.EnumUnderlying(t), ts)
	default:
		return t
	}
}

// Verification implements the ECMA-335 verification-type mapping.
// For a by-ref type it returns the element type unchanged: the by-ref
// wrapper is not rebuilt (TypeSystem has no by-ref constructor) and the
// element is not mapped.
func Verification(t oracle.TypeID, ts oracle.TypeSystem) oracle.TypeID {
	if ts.Kind(t) == oracle.KByRef {
		return ts.ElementType(t)
	}
	r := Reduced(t, ts)
	switch ts.Kind(r) {
	case oracle.KBool:
		return ts.WellKnown("SByte")
	case oracle.KChar:
		return ts.WellKnown("Int16")
	default:
		return r
	}
}

// Intermediate implements the ECMA-335 intermediate-type mapping: the
// verification type, widened so the three signed integer widths collapse
// to Int32 and both float widths collapse to Double.
func Intermediate(t oracle.TypeID, ts oracle.TypeSystem) oracle.TypeID {
	v := Verification(t, ts)
	switch ts.Kind(v) {
	case oracle.KSByte, oracle.KInt16, oracle.KInt32:
		return ts.WellKnown("Int32")
	case oracle.KSingle, oracle.KDouble:
		return ts.WellKnown("Double")
	default:
		return v
	}
}

// AssignableTo implements the stack-slot assignability relation used at
// stores, returns, and calls.
func AssignableTo(src, dst stackslot.Slot, ts oracle.TypeSystem) bool {
	switch {
	case dst.Kind == stackslot.ObjRef:
		if src.Kind != stackslot.ObjRef {
			return false
		}
		if src.IsNullRef() {
			return true
		}
		if dst.IsNullRef() {
			return false
		}
		return ts.IsAssignableTo(src.Type, dst.Type)

	case dst.Kind == stackslot.ByRef:
		if src.Kind != stackslot.ByRef {
			return false
		}
		if sameType(src.Type, dst.Type, ts) {
			return true
		}
		return dst.Flags.Has(stackslot.ReadOnly) && sameType(src.Type, dst.Type, ts)

	case dst.Kind == stackslot.Int32:
		return src.Kind == stackslot.Int32 || src.Kind == stackslot.NativeInt

	case dst.Kind == stackslot.NativeInt:
		return src.Kind == stackslot.NativeInt || src.Kind == stackslot.Int32

	case dst.Kind == stackslot.Int64:
		return src.Kind == stackslot.Int64

	case dst.Kind == stackslot.Float:
		return src.Kind == stackslot.Float

	case dst.Kind == stackslot.ValueType:
		if src.Kind != stackslot.ValueType {
			return false
		}
		return sameType(src.Type, dst.Type, ts)

	default:
		return false
	}
}

// AssignableToSizeEquivalent relaxes value-type assignability to compare
// reduced types, used only where the opcode permits it (the cpobj and
// stobj paths).
func AssignableToSizeEquivalent(src, dst stackslot.Slot, ts oracle.TypeSystem) bool {
	if src.Kind == stackslot.ValueType && dst.Kind == stackslot.ValueType {
		return sameType(Reduced(src.Type, ts), Reduced(dst.Type, ts), ts)
	}
	return AssignableTo(src, dst, ts)
}

// BinaryComparable implements the relaxation of assignability used by
// beq/bne.un/ceq/cgt.un/etc.
func BinaryComparable(a, b stackslot.Slot, equalityOnly bool, ts oracle.TypeSystem) bool {
	if AssignableTo(a, b, ts) || AssignableTo(b, a, ts) {
		return true
	}
	if a.Kind == stackslot.ObjRef && b.Kind == stackslot.ObjRef {
		return true // the idiomatic null-compare
	}
	if a.Kind == stackslot.ByRef && b.Kind == stackslot.ByRef {
		return true
	}
	if equalityOnly {
		if a.Kind == stackslot.ByRef && b.Kind == stackslot.NativeInt {
			return true
		}
		if a.Kind == stackslot.NativeInt && b.Kind == stackslot.ByRef {
			return true
		}
	}
	if a.Kind == stackslot.NativeInt && b.Kind == stackslot.Int32 {
		return true
	}
	if a.Kind == stackslot.Int32 && b.Kind == stackslot.NativeInt {
		return true
	}
	return false
}

func sameType(a, b oracle.TypeID, ts oracle.TypeSystem) bool {
	return ts.SameType(a, b)
}

// Merge computes the lattice join of two stack slots for reconciling
// entry stacks at block merge points. It returns the
// merged slot and whether the merge succeeded; a failed merge is a fatal
// verifier error (MergeFailure) at the call site.
func Merge(a, b stackslot.Slot, ts oracle.TypeSystem) (stackslot.Slot, bool) {
	if a.Kind == b.Kind && sameIdentity(a, b) {
		merged := a
		merged.Flags = a.Flags | b.Flags // read-only is sticky (OR)
		return merged, true
	}

	if a.Kind == stackslot.ObjRef && b.Kind == stackslot.ObjRef {
		if a.IsNullRef() {
			return b, true
		}
		if b.IsNullRef() {
			return a, true
		}
		return mergeObjectReferences(a, b, ts)
	}

	return stackslot.Slot{}, false
}

func sameIdentity(a, b stackslot.Slot) bool {
	return a.Type == b.Type && a.Method == b.Method
}

// mergeObjectReferences implements ECMA-335's MergeObjectReferences
// recursive case analysis.
func mergeObjectReferences(a, b stackslot.Slot, ts oracle.TypeSystem) (stackslot.Slot, bool) {
	if ts.SameType(a.Type, b.Type) {
		return a, true
	}

	objectSlot := stackslot.Slot{Kind: stackslot.ObjRef, Type: ts.WellKnown("Object")}
	arrayKindA, arrayKindB := ts.Kind(a.Type) == oracle.KArray, ts.Kind(b.Type) == oracle.KArray

	if arrayKindA && arrayKindB {
		rankA, rankB := ts.ArrayRank(a.Type), ts.ArrayRank(b.Type)
		szA, szB := ts.IsSZArray(a.Type), ts.IsSZArray(b.Type)
		if rankA != rankB || (rankA > 1 && szA != szB) {
			return stackslot.Slot{Kind: stackslot.ObjRef, Type: ts.WellKnown("Array")}, true
		}
		elemA, elemB := ts.ElementType(a.Type), ts.ElementType(b.Type)
		elemSlotA := stackslot.FromType(elemA, ts)
		elemSlotB := stackslot.FromType(elemB, ts)
		if elemSlotA.Kind == stackslot.ObjRef && elemSlotB.Kind == stackslot.ObjRef {
			mergedElem, ok := mergeObjectReferences(elemSlotA, elemSlotB, ts)
			if !ok {
				return stackslot.Slot{Kind: stackslot.ObjRef, Type: ts.WellKnown("Array")}, true
			}
			arrayType := arrayOf(mergedElem.Type, szA && szB, ts)
			return stackslot.Slot{Kind: stackslot.ObjRef, Type: arrayType}, true
		}
		if !ts.SameType(elemA, elemB) {
			return stackslot.Slot{Kind: stackslot.ObjRef, Type: ts.WellKnown("Array")}, true
		}
		return a, true
	}

	if ts.Kind(a.Type) == oracle.KGenericParameter || ts.Kind(b.Type) == oracle.KGenericParameter {
		if ts.Kind(a.Type) == oracle.KGenericParameter && ts.IsAssignableTo(a.Type, b.Type) {
			return b, true
		}
		if ts.Kind(b.Type) == oracle.KGenericParameter && ts.IsAssignableTo(b.Type, a.Type) {
			return a, true
		}
		return objectSlot, true
	}

	ifaceA, ifaceB := ts.Kind(a.Type) == oracle.KInterface, ts.Kind(b.Type) == oracle.KInterface

	if ifaceA && ifaceB {
		if shared := firstSharedInterface(a.Type, []oracle.TypeID{b.Type}, ts); shared != nil {
			return stackslot.Slot{Kind: stackslot.ObjRef, Type: shared}, true
		}
		if shared := firstSharedFromClosures(a.Type, b.Type, ts); shared != nil {
			return stackslot.Slot{Kind: stackslot.ObjRef, Type: shared}, true
		}
		return objectSlot, true
	}

	if ifaceA != ifaceB {
		class, iface := a.Type, b.Type
		if ifaceA {
			class, iface = b.Type, a.Type
		}
		if ts.IsAssignableTo(class, iface) {
			return stackslot.Slot{Kind: stackslot.ObjRef, Type: iface}, true
		}
		if shared := firstSharedFromClosures(class, iface, ts); shared != nil {
			return stackslot.Slot{Kind: stackslot.ObjRef, Type: shared}, true
		}
		return objectSlot, true
	}

	// Class vs class: least common ancestor in the base-type chain.
	return stackslot.Slot{Kind: stackslot.ObjRef, Type: leastCommonAncestor(a.Type, b.Type, ts)}, true
}

// firstSharedInterface scans a's direct interface set against candidates,
// returning the first interface found by scanning A's interface set
// against B rather than the other way around.
func firstSharedInterface(a oracle.TypeID, candidates []oracle.TypeID, ts oracle.TypeSystem) oracle.TypeID {
	for _, i := range ts.Interfaces(a) {
		for _, c := range candidates {
			if ts.SameType(i, c) {
				return i
			}
		}
	}
	return nil
}

func firstSharedFromClosures(a, b oracle.TypeID, ts oracle.TypeSystem) oracle.TypeID {
	closureA := interfaceClosure(a, ts)
	closureB := interfaceClosure(b, ts)
	for _, i := range closureA {
		for _, j := range closureB {
			if ts.SameType(i, j) {
				return i
			}
		}
	}
	return nil
}

func interfaceClosure(t oracle.TypeID, ts oracle.TypeSystem) []oracle.TypeID {
	seen := map[oracle.TypeID]bool{}
	var out []oracle.TypeID
	for cur := t; cur != nil; cur = ts.BaseType(cur) {
		for _, i := range ts.Interfaces(cur) {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
		if ts.Kind(cur) == oracle.KInterface {
			break
		}
	}
	return out
}

func leastCommonAncestor(a, b oracle.TypeID, ts oracle.TypeSystem) oracle.TypeID {
	chainA := baseChain(a, ts)
	chainB := map[oracle.TypeID]bool{}
	for cur := b; cur != nil; cur = ts.BaseType(cur) {
		chainB[cur] = true
	}
	for _, t := range chainA {
		if chainB[t] {
			return t
		}
	}
	return ts.WellKnown("Object")
}

func baseChain(t oracle.TypeID, ts oracle.TypeSystem) []oracle.TypeID {
	var out []oracle.TypeID
	for cur := t; cur != nil; cur = ts.BaseType(cur) {
		out = append(out, cur)
	}
	return out
}

// arrayOf is a placeholder hook for rebuilding "element[]"/"element[,]"
// type identities; a real oracle backend must provide array-type
// construction. The mock oracle used in this module's own tests
// implements it via oracle.MockClass literals directly.
func arrayOf(elem oracle.TypeID, sz bool, ts oracle.TypeSystem) oracle.TypeID {
	if ctor, ok := ts.(interface {
		ArrayOf(elem oracle.TypeID, sz bool) oracle.TypeID
	}); ok {
		return ctor.ArrayOf(elem, sz)
	}
	return ts.WellKnown("Array")
}
