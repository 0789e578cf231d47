package typelattice

import (
	"testing"

	"github.com/chazu/cilverify/pkg/oracle"
	"github.com/chazu/cilverify/pkg/stackslot"
)

func TestReducedMapping(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	tests := []struct {
		from, want string
	}{
		{"Byte", "SByte"},
		{"UInt16", "Int16"},
		{"UInt32", "Int32"},
		{"UInt64", "Int64"},
		{"UIntPtr", "IntPtr"},
		{"Int32", "Int32"}, // identity
	}
	for _, tt := range tests {
		got := Reduced(ts.WellKnown(tt.from), ts)
		if got != ts.WellKnown(tt.want) {
			t.Errorf("Reduced(%s) = %v, want %v", tt.from, got, tt.want)
		}
	}
}

func TestRoundTripNormalForms(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	for _, name := range []string{"Int32", "Int16", "Byte", "Bool", "Char", "Double", "Single"} {
		typ := ts.WellKnown(name)
		r1 := Reduced(typ, ts)
		r2 := Reduced(r1, ts)
		if r1 != r2 {
			t.Errorf("Reduced not idempotent for %s: %v != %v", name, r1, r2)
		}

		v1 := Verification(typ, ts)
		v2 := Verification(v1, ts)
		if v1 != v2 {
			t.Errorf("Verification not idempotent for %s: %v != %v", name, v1, v2)
		}

		i1 := Intermediate(typ, ts)
		i2 := Intermediate(i1, ts)
		if i1 != i2 {
			t.Errorf("Intermediate not idempotent for %s: %v != %v", name, i1, i2)
		}
	}
}

func TestVerificationBoolChar(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	if Verification(ts.WellKnown("Bool"), ts) != ts.WellKnown("SByte") {
		t.Error("Bool should verify to SByte")
	}
	if Verification(ts.WellKnown("Char"), ts) != ts.WellKnown("Int16") {
		t.Error("Char should verify to Int16")
	}
}

func TestIntermediateWidensIntegers(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	for _, name := range []string{"SByte", "Int16", "Int32"} {
		if Intermediate(ts.WellKnown(name), ts) != ts.WellKnown("Int32") {
			t.Errorf("Intermediate(%s) should widen to Int32", name)
		}
	}
	for _, name := range []string{"Single", "Double"} {
		if Intermediate(ts.WellKnown(name), ts) != ts.WellKnown("Double") {
			t.Errorf("Intermediate(%s) should widen to Double", name)
		}
	}
}

func TestMergeNullWithObjRef(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	classA := objClass("A", nil, ts)
	null := stackslot.NullRef()
	ref := stackslot.Slot{Kind: stackslot.ObjRef, Type: classA}

	merged, ok := Merge(null, ref, ts)
	if !ok || merged.Type != classA {
		t.Fatalf("merge(null, A) = %v, %v; want A, true", merged, ok)
	}
	merged2, ok2 := Merge(ref, null, ts)
	if !ok2 || merged2.Type != classA {
		t.Fatalf("merge(A, null) = %v, %v; want A, true", merged2, ok2)
	}
}

func TestMergeToCommonAncestor(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	base := objClass("B", nil, ts)
	a := objClass("A", base, ts)
	c := objClass("C", base, ts)

	slotA := stackslot.Slot{Kind: stackslot.ObjRef, Type: a}
	slotC := stackslot.Slot{Kind: stackslot.ObjRef, Type: c}

	merged, ok := Merge(slotA, slotC, ts)
	if !ok {
		t.Fatal("merge(A, C) should succeed")
	}
	if merged.Type != base {
		t.Errorf("merge(A, C) = %v, want B", merged.Type)
	}
}

func TestMergeClassAndInterface(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	object := ts.WellKnown("Object")
	iface := &oracle.MockClass{Name: "IShape", IsIface: true}
	shape := &oracle.MockClass{Name: "Shape", Super: object.(*oracle.MockClass), IfaceList: []*oracle.MockClass{iface}}

	classSlot := stackslot.Slot{Kind: stackslot.ObjRef, Type: shape}
	ifaceSlot := stackslot.Slot{Kind: stackslot.ObjRef, Type: iface}

	merged, ok := Merge(classSlot, ifaceSlot, ts)
	if !ok || merged.Type != oracle.TypeID(iface) {
		t.Fatalf("merge(Shape, IShape) = %v, %v; want IShape, true", merged, ok)
	}
}

func TestMergeUnrelatedInterfacesFallsBackToObject(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	object := ts.WellKnown("Object")
	i1 := &oracle.MockClass{Name: "IA", IsIface: true}
	i2 := &oracle.MockClass{Name: "IB", IsIface: true}

	merged, ok := Merge(
		stackslot.Slot{Kind: stackslot.ObjRef, Type: i1},
		stackslot.Slot{Kind: stackslot.ObjRef, Type: i2},
		ts,
	)
	if !ok || merged.Type != object {
		t.Fatalf("merge(IA, IB) = %v, %v; want Object, true", merged, ok)
	}
}

func TestAssignableToByRefReadOnly(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	i32 := ts.WellKnown("Int32")
	src := stackslot.ByRefTo(i32, 0)
	dstReadOnly := stackslot.ByRefTo(i32, stackslot.ReadOnly)

	if !AssignableTo(src, dstReadOnly, ts) {
		t.Error("ByRef(Int32) should be assignable to a read-only ByRef(Int32) destination")
	}

	dstPlain := stackslot.ByRefTo(i32, 0)
	if !AssignableTo(src, dstPlain, ts) {
		t.Error("ByRef(Int32) should be assignable to a plain ByRef(Int32) destination")
	}
}

func TestBinaryComparableObjRefNullCompare(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	a := objClass("A", nil, ts)
	b := objClass("B", nil, ts)
	sa := stackslot.Slot{Kind: stackslot.ObjRef, Type: a}
	sb := stackslot.Slot{Kind: stackslot.ObjRef, Type: b}

	if !BinaryComparable(sa, sb, false, ts) {
		t.Error("unrelated ObjRefs should be binary-comparable (idiomatic null-compare)")
	}
}

func TestBinaryComparableNativeIntByRefEqualityOnly(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	byref := stackslot.ByRefTo(ts.WellKnown("Int32"), 0)
	native := stackslot.Slot{Kind: stackslot.NativeInt}

	if BinaryComparable(byref, native, false, ts) {
		t.Error("ByRef vs NativeInt should not be comparable outside equality opcodes")
	}
	if !BinaryComparable(byref, native, true, ts) {
		t.Error("ByRef vs NativeInt should be comparable under equality opcodes")
	}
}

func objClass(name string, super oracle.TypeID, ts oracle.TypeSystem) *oracle.MockClass {
	var s *oracle.MockClass
	if super != nil {
		s = super.(*oracle.MockClass)
	}
	return &oracle.MockClass{Name: name, Super: s}
}
