package interp

import (
	"fmt"
	"testing"

	"github.com/chazu/cilverify/pkg/diag"
	"github.com/chazu/cilverify/pkg/ilreader"
	"github.com/chazu/cilverify/pkg/methodsrc"
	"github.com/chazu/cilverify/pkg/oracle"
	"github.com/chazu/cilverify/pkg/regions"
)

// fakeResolver answers every token with whatever was registered under it;
// tests register tokens explicitly rather than exercising real metadata.
type fakeResolver struct {
	types   map[uint32]oracle.TypeID
	methods map[uint32]oracle.MethodID
	fields  map[uint32]oracle.FieldID
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		types:   map[uint32]oracle.TypeID{},
		methods: map[uint32]oracle.MethodID{},
		fields:  map[uint32]oracle.FieldID{},
	}
}

func (f *fakeResolver) ResolveType(tok uint32) (oracle.TypeID, error) {
	if t, ok := f.types[tok]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("unknown type token %d", tok)
}

func (f *fakeResolver) ResolveMethod(tok uint32) (oracle.MethodID, error) {
	if m, ok := f.methods[tok]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("unknown method token %d", tok)
}

func (f *fakeResolver) ResolveField(tok uint32) (oracle.FieldID, error) {
	if fld, ok := f.fields[tok]; ok {
		return fld, nil
	}
	return nil, fmt.Errorf("unknown field token %d", tok)
}

func staticVoidMethod(ts *oracle.MockTypeSystem) oracle.MethodID {
	m := &oracle.MockMethod{Static: true}
	id := "m-void"
	ts.Methods[id] = m
	return id
}

func bodyOf(method oracle.MethodID, il []byte, regs []regions.Region, locals ...methodsrc.Local) methodsrc.Body {
	return methodsrc.Body{
		Method:   method,
		IL:       il,
		Locals:   locals,
		Regions:  regs,
		MaxStack: 32,
	}
}

func TestVerifyTrivialReturnAccepted(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	m := staticVoidMethod(ts)
	code := []byte{byte(ilreader.Nop), byte(ilreader.Ret)}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf(m, code, nil), rep)
	if rep.Failed() {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
}

func TestVerifyStackUnderflowOnPop(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	m := staticVoidMethod(ts)
	code := []byte{byte(ilreader.Pop), byte(ilreader.Ret)}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf(m, code, nil), rep)
	if !rep.Failed() || rep.First().Kind != diag.StackUnderflow {
		t.Fatalf("got %v, want StackUnderflow", rep.Errors())
	}
}

func TestVerifyKindMismatchOnCompare(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	m := &oracle.MockMethod{Static: true}
	ts.Methods["m"] = m
	// ldc.i4.0 (Int32); ldc.r8 0 (Float); ceq -- not binary-comparable.
	code := []byte{
		byte(ilreader.LdcI40),
		byte(ilreader.LdcR8), 0, 0, 0, 0, 0, 0, 0, 0,
		0xFE, extendedByte(ilreader.CeqOp),
		byte(ilreader.Pop),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf("m", code, nil), rep)
	if !rep.Failed() || rep.First().Kind != diag.StackUnexpected {
		t.Fatalf("got %v, want StackUnexpected", rep.Errors())
	}
}

// extendedByte recovers the second byte of a two-byte 0xFE-prefixed
// opcode encoding from its Opcode value (0x100 plus the second byte).
func extendedByte(op ilreader.Opcode) byte {
	return byte(int(op) - 0x100)
}

func TestVerifyMergeWidensToObjectOnTypeMismatch(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	dog := &oracle.MockClass{Name: "Dog", Super: ts.WellKnowns["Object"].(*oracle.MockClass)}
	cat := &oracle.MockClass{Name: "Cat", Super: ts.WellKnowns["Object"].(*oracle.MockClass)}
	ts.Methods["m"] = &oracle.MockMethod{Static: true, Params: []oracle.TypeID{dog, cat}}
	// ldc.i4.0; brtrue.s over; ldarg.0 (Dog); br.s join; over: ldarg.1 (Cat); join: pop; ret
	code := []byte{
		byte(ilreader.LdcI40),
		byte(ilreader.BrtrueS), 0x03,
		byte(ilreader.Ldarg0),
		byte(ilreader.BrS), 0x01,
		byte(ilreader.Ldarg1),
		byte(ilreader.Pop),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf("m", code, nil), rep)
	if rep.Failed() {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
}

func TestVerifyInvalidBranchTargetIntoMiddleOfInstruction(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	m := staticVoidMethod(ts)
	code := []byte{
		byte(ilreader.BrS), 0x01,
		byte(ilreader.LdcI4), 0, 0, 0, 0,
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf(m, code, nil), rep)
	if !rep.Failed() || rep.First().Kind != diag.InvalidBranchTarget {
		t.Fatalf("got %v, want InvalidBranchTarget", rep.Errors())
	}
}

func TestVerifyLeaveOutOfFinallyRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	m := staticVoidMethod(ts)
	// try { nop; leave end } finally { leave-out-of-finally (illegal); endfinally } ; ret
	code := []byte{
		byte(ilreader.Nop),         // try: offset 0
		byte(ilreader.LeaveS), 0x03, // try: offset 1..3, exits try to offset 6 (Ret)
		byte(ilreader.LeaveS), 0x01, // handler: offset 3..5, illegal leave out of finally
		byte(ilreader.EndfinallyOp), // offset 5
		byte(ilreader.Ret),          // offset 6
	}
	regs := []regions.Region{
		{Kind: regions.Finally, TryOffset: 0, TryLength: 3, HandlerOffset: 3, HandlerLength: 3},
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf(m, code, regs), rep)
	if !rep.Failed() || rep.First().Kind != diag.Leave {
		t.Fatalf("got %v, want Leave", rep.Errors())
	}
}

func TestVerifyReadOnlyByRefStoreRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	intT := ts.WellKnowns["Int32"]
	elemArr := ts.ArrayOf(intT, true)
	m := &oracle.MockMethod{Static: true, Params: []oracle.TypeID{elemArr}}
	ts.Methods["m"] = m
	resolver := newFakeResolver()
	resolver.types[1] = intT
	// ldarg.0 (the array); ldc.i4.0; readonly.; ldelema int32; ldc.i4.0; stind.i4
	code := []byte{
		byte(ilreader.Ldarg0),
		byte(ilreader.LdcI40),
		0xFE, extendedByte(ilreader.ReadonlyOp),
		byte(ilreader.Ldelema), 1, 0, 0, 0,
		byte(ilreader.LdcI40),
		byte(ilreader.StindI4),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, resolver, bodyOf("m", code, nil), rep)
	if !rep.Failed() || rep.First().Kind != diag.StackUnexpected {
		t.Fatalf("got %v, want StackUnexpected for read-only store", rep.Errors())
	}
}

func TestVerifyFilterHandlerSeedsExceptionObject(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	m := staticVoidMethod(ts)
	// try { nop; leave end } filter { pop; ldc.i4.1; endfilter } handler { pop; leave end } ; ret
	code := []byte{
		byte(ilreader.Nop),         // try: offset 0
		byte(ilreader.LeaveS), 0x07, // try: offset 1..3, exits try to offset 10 (Ret)
		byte(ilreader.Pop), byte(ilreader.LdcI41), 0xFE, extendedByte(ilreader.EndfilterOp), // filter: 3..7
		byte(ilreader.Pop), byte(ilreader.LeaveS), 0x00, // handler: 7..10
		byte(ilreader.Ret), // offset 10
	}
	regs := []regions.Region{
		{Kind: regions.Filter, TryOffset: 0, TryLength: 3, FilterOffset: 3, HandlerOffset: 7, HandlerLength: 3},
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf(m, code, regs), rep)
	if rep.Failed() {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
}

func TestVerifyTailCallNotFollowedByRetRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	callee := &oracle.MockMethod{Static: true}
	ts.Methods["callee"] = callee
	m := staticVoidMethod(ts)
	resolver := newFakeResolver()
	resolver.methods[1] = "callee"
	// tail. call callee; nop; ret  -- nop between tail-call and ret is illegal
	code := []byte{
		0xFE, extendedByte(ilreader.TailOp),
		byte(ilreader.Call), 1, 0, 0, 0,
		byte(ilreader.Nop),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, resolver, bodyOf(m, code, nil), rep)
	if !rep.Failed() || rep.First().Kind != diag.TailCallNotFollowedByRet {
		t.Fatalf("got %v, want TailCallNotFollowedByRet", rep.Errors())
	}
}

func TestVerifyBranchIntoTryFromOutsideRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	m := staticVoidMethod(ts)
	// br.s into the middle of the try block from outside it; try { nop; nop } ; ret ; finally { endfinally }
	code := []byte{
		byte(ilreader.BrS), 0x01, // jumps to offset 3, inside the try region (2..4)
		byte(ilreader.Nop), // offset 2: try start
		byte(ilreader.Nop), // offset 3: branch target, mid-try
		byte(ilreader.Ret), // offset 4
		byte(ilreader.EndfinallyOp), // offset 5: finally handler
	}
	regs := []regions.Region{
		{Kind: regions.Finally, TryOffset: 2, TryLength: 2, HandlerOffset: 5, HandlerLength: 1},
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf(m, code, regs), rep)
	if !rep.Failed() || rep.First().Kind != diag.BranchIntoTry {
		t.Fatalf("got %v, want BranchIntoTry", rep.Errors())
	}
}

func TestVerifyFallthroughAtEndOfMethodRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	m := staticVoidMethod(ts)
	code := []byte{byte(ilreader.Nop)} // no terminator, falls off the end
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf(m, code, nil), rep)
	if !rep.Failed() || rep.First().Kind != diag.FallthroughAtEndOfMethod {
		t.Fatalf("got %v, want FallthroughAtEndOfMethod", rep.Errors())
	}
}

func TestVerifyFallthroughIntoHandlerRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	m := staticVoidMethod(ts)
	// try { nop } catch(Object) { pop; leave end } ; ret -- the try falls straight
	// into the handler with no leave; handlers are reached only via dispatch.
	code := []byte{
		byte(ilreader.Nop),          // try: offset 0
		byte(ilreader.Pop),          // handler: offset 1
		byte(ilreader.LeaveS), 0x00, // offset 2..4
		byte(ilreader.Ret),          // offset 4
	}
	regs := []regions.Region{
		{Kind: regions.Catch, TryOffset: 0, TryLength: 1, HandlerOffset: 1, HandlerLength: 3, CaughtType: ts.WellKnowns["Object"]},
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf(m, code, regs), rep)
	if !rep.Failed() || rep.First().Kind != diag.BranchIntoHandler {
		t.Fatalf("got %v, want BranchIntoHandler", rep.Errors())
	}
}

func TestVerifyPrivateMethodCallFromSameTypeAccepted(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	c := &oracle.MockClass{Name: "C", Super: ts.WellKnowns["Object"].(*oracle.MockClass)}
	caller := &oracle.MockMethod{Declaring: c}
	ts.Methods["caller"] = caller
	callee := &oracle.MockMethod{Declaring: c, Visibility: oracle.VPrivate}
	ts.Methods["callee"] = callee
	resolver := newFakeResolver()
	resolver.methods[1] = "callee"
	// ldarg.0 (this); call callee; ret
	code := []byte{
		byte(ilreader.Ldarg0),
		byte(ilreader.Call), 1, 0, 0, 0,
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, resolver, bodyOf("caller", code, nil), rep)
	if rep.Failed() {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
}

func TestVerifyPrivateMethodCallFromDifferentTypeRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	c := &oracle.MockClass{Name: "C", Super: ts.WellKnowns["Object"].(*oracle.MockClass)}
	other := &oracle.MockClass{Name: "Other", Super: ts.WellKnowns["Object"].(*oracle.MockClass)}
	caller := &oracle.MockMethod{Declaring: other}
	ts.Methods["caller"] = caller
	callee := &oracle.MockMethod{Declaring: c, Visibility: oracle.VPrivate}
	ts.Methods["callee"] = callee
	resolver := newFakeResolver()
	resolver.methods[1] = "callee"
	// ldnull (this, so that assignability to C is trivially satisfied); call callee; ret
	code := []byte{
		byte(ilreader.LdnullOp),
		byte(ilreader.Call), 1, 0, 0, 0,
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, resolver, bodyOf("caller", code, nil), rep)
	if !rep.Failed() || rep.First().Kind != diag.MethodAccess {
		t.Fatalf("got %v, want MethodAccess", rep.Errors())
	}
}

func TestVerifyStindAssignabilityMismatchRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	intT := ts.WellKnowns["Int32"]
	m := staticVoidMethod(ts)
	// ldloca.s 0 (local0: Int32); ldnull; stind.i4; ret
	code := []byte{
		byte(ilreader.LdlocaS), 0,
		byte(ilreader.LdnullOp),
		byte(ilreader.StindI4),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf(m, code, nil, methodsrc.Local{Type: intT}), rep)
	if !rep.Failed() || rep.First().Kind != diag.StackUnexpected {
		t.Fatalf("got %v, want StackUnexpected for stind assignability mismatch", rep.Errors())
	}
}

func TestVerifyStelemAssignabilityMismatchRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	intT := ts.WellKnowns["Int32"]
	arrT := ts.ArrayOf(intT, true)
	m := &oracle.MockMethod{Static: true, Params: []oracle.TypeID{arrT}}
	ts.Methods["m"] = m
	// ldarg.0 (array); ldc.i4.0 (index); ldnull (value); stelem.i4; ret
	code := []byte{
		byte(ilreader.Ldarg0),
		byte(ilreader.LdcI40),
		byte(ilreader.LdnullOp),
		byte(ilreader.StelemI4),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf("m", code, nil), rep)
	if !rep.Failed() || rep.First().Kind != diag.StackUnexpected {
		t.Fatalf("got %v, want StackUnexpected for stelem assignability mismatch", rep.Errors())
	}
}

func TestVerifyLdindVerificationMismatchRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	intT := ts.WellKnowns["Int32"]
	m := staticVoidMethod(ts)
	// ldloca.s 0 (local0: Int32); ldind.i8; pop; ret -- the local's verification
	// type (Int32) doesn't match what ldind.i8 reinterprets it as.
	code := []byte{
		byte(ilreader.LdlocaS), 0,
		byte(ilreader.LdindI8),
		byte(ilreader.Pop),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf(m, code, nil, methodsrc.Local{Type: intT}), rep)
	if !rep.Failed() || rep.First().Kind != diag.StackUnexpected {
		t.Fatalf("got %v, want StackUnexpected for ldind verification-type mismatch", rep.Errors())
	}
}

func TestVerifyLdelemVerificationMismatchRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	intT := ts.WellKnowns["Int32"]
	arrT := ts.ArrayOf(intT, true)
	m := &oracle.MockMethod{Static: true, Params: []oracle.TypeID{arrT}}
	ts.Methods["m"] = m
	// ldarg.0 (array of Int32); ldc.i4.0 (index); ldelem.i8; pop; ret
	code := []byte{
		byte(ilreader.Ldarg0),
		byte(ilreader.LdcI40),
		byte(ilreader.LdelemI8),
		byte(ilreader.Pop),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf("m", code, nil), rep)
	if !rep.Failed() || rep.First().Kind != diag.StackUnexpected {
		t.Fatalf("got %v, want StackUnexpected for ldelem verification-type mismatch", rep.Errors())
	}
}

func TestVerifyFieldAccessBeforeBaseConstructorCallRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	c := &oracle.MockClass{Name: "C", Super: ts.WellKnowns["Object"].(*oracle.MockClass)}
	ctor := &oracle.MockMethod{Ctor: true, Declaring: c}
	ts.Methods["ctor"] = ctor
	ts.Fields["f"] = &oracle.MockField{Type: ts.WellKnowns["Int32"], Declaring: c}
	resolver := newFakeResolver()
	resolver.fields[1] = "f"
	// ldarg.0 (this); ldfld f; pop; ret -- this is used before the base
	// constructor call completes.
	code := []byte{
		byte(ilreader.Ldarg0),
		byte(ilreader.Ldfld), 1, 0, 0, 0,
		byte(ilreader.Pop),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, resolver, bodyOf("ctor", code, nil), rep)
	if !rep.Failed() || rep.First().Kind != diag.UninitStack {
		t.Fatalf("got %v, want UninitStack", rep.Errors())
	}
}

func TestVerifyFieldAccessAfterBaseConstructorCallAccepted(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	c := &oracle.MockClass{Name: "C", Super: ts.WellKnowns["Object"].(*oracle.MockClass)}
	baseCtor := &oracle.MockMethod{Ctor: true, Declaring: ts.WellKnowns["Object"], Visibility: oracle.VPublic}
	ts.Methods["base-ctor"] = baseCtor
	ctor := &oracle.MockMethod{Ctor: true, Declaring: c}
	ts.Methods["ctor"] = ctor
	ts.Fields["f"] = &oracle.MockField{Type: ts.WellKnowns["Int32"], Declaring: c}
	resolver := newFakeResolver()
	resolver.methods[1] = "base-ctor"
	resolver.fields[2] = "f"
	// ldarg.0 (this); call base-ctor; ldarg.0; ldfld f; pop; ret
	code := []byte{
		byte(ilreader.Ldarg0),
		byte(ilreader.Call), 1, 0, 0, 0,
		byte(ilreader.Ldarg0),
		byte(ilreader.Ldfld), 2, 0, 0, 0,
		byte(ilreader.Pop),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, resolver, bodyOf("ctor", code, nil), rep)
	if rep.Failed() {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
}

func TestVerifyStaticMethodCallsOwnPrivateStaticHelperAccepted(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	c := &oracle.MockClass{Name: "C", Super: ts.WellKnowns["Object"].(*oracle.MockClass)}
	caller := &oracle.MockMethod{Static: true, Declaring: c}
	ts.Methods["caller"] = caller
	callee := &oracle.MockMethod{Static: true, Declaring: c, Visibility: oracle.VPrivate}
	ts.Methods["callee"] = callee
	resolver := newFakeResolver()
	resolver.methods[1] = "callee"
	// call callee; ret -- a static method calling a private static helper
	// declared on the same type must not be rejected for lack of a `this`.
	code := []byte{
		byte(ilreader.Call), 1, 0, 0, 0,
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, resolver, bodyOf("caller", code, nil), rep)
	if rep.Failed() {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
}

func TestVerifyStaticMethodReadsOwnPrivateFieldAccepted(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	c := &oracle.MockClass{Name: "C", Super: ts.WellKnowns["Object"].(*oracle.MockClass)}
	caller := &oracle.MockMethod{Static: true, Declaring: c, Params: []oracle.TypeID{c}}
	ts.Methods["caller"] = caller
	ts.Fields["f"] = &oracle.MockField{Type: ts.WellKnowns["Int32"], Declaring: c, Visibility: oracle.VPrivate}
	resolver := newFakeResolver()
	resolver.fields[1] = "f"
	// ldarg.0 (a C instance passed in); ldfld f; pop; ret -- a static
	// method reading a private field declared on its own type.
	code := []byte{
		byte(ilreader.Ldarg0),
		byte(ilreader.Ldfld), 1, 0, 0, 0,
		byte(ilreader.Pop),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, resolver, bodyOf("caller", code, nil), rep)
	if rep.Failed() {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
}

func TestVerifyByRefSubtractionAccepted(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	intT := ts.WellKnowns["Int32"]
	m := staticVoidMethod(ts)
	// ldloca.s 0; ldloca.s 0; sub; pop; ret -- ByRef - ByRef -> nativeint,
	// legal pointer-difference arithmetic that `sub` must accept too.
	code := []byte{
		byte(ilreader.LdlocaS), 0,
		byte(ilreader.LdlocaS), 0,
		byte(ilreader.Sub),
		byte(ilreader.Pop),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf(m, code, nil, methodsrc.Local{Type: intT}), rep)
	if rep.Failed() {
		t.Fatalf("unexpected errors: %v", rep.Errors())
	}
}

func TestVerifyBoxUnrelatedValueTypeRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	structA := &oracle.MockClass{Name: "A", IsValue: true}
	structB := &oracle.MockClass{Name: "B", IsValue: true}
	ts.WellKnowns["A"] = structA
	ts.WellKnowns["B"] = structB
	m := &oracle.MockMethod{Static: true, Params: []oracle.TypeID{structA}}
	ts.Methods["m"] = m
	resolver := newFakeResolver()
	resolver.types[1] = structB
	// ldarg.0 (an A); box B; pop; ret -- boxing a value as an unrelated
	// value type must be rejected, not silently accepted because both
	// sides merely share the ValueType kind.
	code := []byte{
		byte(ilreader.Ldarg0),
		byte(ilreader.Box), 1, 0, 0, 0,
		byte(ilreader.Pop),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, resolver, bodyOf("m", code, nil), rep)
	if !rep.Failed() || rep.First().Kind != diag.StackUnexpected {
		t.Fatalf("got %v, want StackUnexpected for box of unrelated value type", rep.Errors())
	}
}

func TestVerifyCallvirtNonVirtualValueTypeMethodRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	intT := ts.WellKnowns["Int32"]
	s := &oracle.MockClass{Name: "S", IsValue: true}
	callee := &oracle.MockMethod{Declaring: s, Visibility: oracle.VPublic}
	ts.Methods["callee"] = callee
	m := staticVoidMethod(ts)
	resolver := newFakeResolver()
	resolver.methods[1] = "callee"
	// ldloca.s 0 (S); callvirt callee; ret -- callvirt on a non-virtual
	// method is only legal on reference types.
	code := []byte{
		byte(ilreader.LdlocaS), 0,
		byte(ilreader.Callvirt), 1, 0, 0, 0,
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, resolver, bodyOf(m, code, nil, methodsrc.Local{Type: s}), rep)
	if !rep.Failed() || rep.First().Kind != diag.Unverifiable {
		t.Fatalf("got %v, want Unverifiable for callvirt on a non-virtual value-type method", rep.Errors())
	}
	_ = intT
}

func TestVerifyReadonlyBeforeNonLdelemaRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	m := staticVoidMethod(ts)
	// readonly.; nop; ret -- readonly. is only ever valid immediately
	// before ldelema.
	code := []byte{
		0xFE, extendedByte(ilreader.ReadonlyOp),
		byte(ilreader.Nop),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf(m, code, nil), rep)
	if !rep.Failed() || rep.First().Kind != diag.InvalidPrefix {
		t.Fatalf("got %v, want InvalidPrefix", rep.Errors())
	}
}

func TestVerifyVolatileBeforeInvalidSuccessorRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	m := staticVoidMethod(ts)
	// volatile.; ldc.i4.0; pop; ret -- volatile. is only valid before an
	// indirect/field load or store, never before a constant push.
	code := []byte{
		0xFE, extendedByte(ilreader.VolatileOp),
		byte(ilreader.LdcI40),
		byte(ilreader.Pop),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf(m, code, nil), rep)
	if !rep.Failed() || rep.First().Kind != diag.InvalidPrefix {
		t.Fatalf("got %v, want InvalidPrefix", rep.Errors())
	}
}

func TestVerifyNoPrefixBeforeInvalidSuccessorRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	m := staticVoidMethod(ts)
	// no. (all flags); nop; ret -- no. is only valid before castclass,
	// unbox, ldelema, or a typed array-element load/store.
	code := []byte{
		0xFE, extendedByte(ilreader.NoOp), 0x07,
		byte(ilreader.Nop),
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, newFakeResolver(), bodyOf(m, code, nil), rep)
	if !rep.Failed() || rep.First().Kind != diag.InvalidPrefix {
		t.Fatalf("got %v, want InvalidPrefix", rep.Errors())
	}
}

func TestVerifyTailCallReturnTypeMismatchRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	m := &oracle.MockMethod{Static: true, Return: ts.WellKnowns["Int64"]}
	ts.Methods["m"] = m
	callee := &oracle.MockMethod{Static: true, Return: ts.WellKnowns["Int32"]}
	ts.Methods["callee"] = callee
	resolver := newFakeResolver()
	resolver.methods[1] = "callee"
	// tail. call callee; ret -- callee returns Int32, the enclosing method
	// returns Int64; a tail call requires matching return types.
	code := []byte{
		0xFE, extendedByte(ilreader.TailOp),
		byte(ilreader.Call), 1, 0, 0, 0,
		byte(ilreader.Ret),
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, resolver, bodyOf("m", code, nil), rep)
	if !rep.Failed() || rep.First().Kind != diag.StackUnexpected {
		t.Fatalf("got %v, want StackUnexpected for tail. call return type mismatch", rep.Errors())
	}
}

func TestVerifyTailCallInsideProtectedRegionRejected(t *testing.T) {
	ts := oracle.NewMockTypeSystem()
	callee := &oracle.MockMethod{Static: true}
	ts.Methods["callee"] = callee
	m := staticVoidMethod(ts)
	resolver := newFakeResolver()
	resolver.methods[1] = "callee"
	// try { tail. call callee; ret } catch(Object) { pop; leave end } ; ret
	code := []byte{
		0xFE, extendedByte(ilreader.TailOp), // try: offset 0..1
		byte(ilreader.Call), 1, 0, 0, 0, // try: offset 2..6
		byte(ilreader.Ret),          // try: offset 7
		byte(ilreader.Pop),          // handler: offset 8
		byte(ilreader.LeaveS), 0x00, // handler: offset 9..10
		byte(ilreader.Ret), // offset 11
	}
	regs := []regions.Region{
		{Kind: regions.Catch, TryOffset: 0, TryLength: 8, HandlerOffset: 8, HandlerLength: 3, CaughtType: ts.WellKnowns["Object"]},
	}
	rep := diag.NewReporter(diag.CollectAll)
	Verify(ts, resolver, bodyOf(m, code, regs), rep)
	if !rep.Failed() || rep.First().Kind != diag.Unverifiable {
		t.Fatalf("got %v, want Unverifiable for tail. call inside a protected region", rep.Errors())
	}
}
