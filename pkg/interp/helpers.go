package interp

import (
	"github.com/chazu/cilverify/pkg/diag"
	"github.com/chazu/cilverify/pkg/ilreader"
	"github.com/chazu/cilverify/pkg/oracle"
	"github.com/chazu/cilverify/pkg/regions"
	"github.com/chazu/cilverify/pkg/stackslot"
	"github.com/chazu/cilverify/pkg/typelattice"
)

func (v *verifier) insideCatchOrFilter(offset int) bool {
	for _, r := range v.body.Regions {
		if r.Kind == regions.Catch && r.HandlerContains(offset) {
			return true
		}
		if r.Kind == regions.Filter && offset >= r.FilterOffset && offset < r.HandlerEnd() {
			return true
		}
	}
	return false
}

func (v *verifier) insideFinallyOrFault(offset int) bool {
	for _, r := range v.body.Regions {
		if (r.Kind == regions.Finally || r.Kind == regions.Fault) && r.HandlerContains(offset) {
			return true
		}
	}
	return false
}

func (v *verifier) inProtectedRegion(offset int) bool {
	for _, r := range v.body.Regions {
		if r.TryContains(offset) || r.HandlerContains(offset) {
			return true
		}
		if r.Kind == regions.Filter && offset >= r.FilterOffset && offset < r.HandlerOffset {
			return true
		}
	}
	return false
}

func (v *verifier) ldind(st evalStack, offset int, op ilreader.Opcode) {
	addr := st.pop()
	if addr.Kind != stackslot.ByRef && addr.Kind != stackslot.NativeInt {
		v.reporter.Report(diag.New(diag.ExpectedByRef, offset, op.String(), addr.Kind))
	}
	var kind stackslot.Kind
	switch op {
	case ilreader.LdindI1, ilreader.LdindU1, ilreader.LdindI2, ilreader.LdindU2, ilreader.LdindI4, ilreader.LdindU4:
		kind = stackslot.Int32
	case ilreader.LdindI8:
		kind = stackslot.Int64
	case ilreader.LdindI:
		kind = stackslot.NativeInt
	case ilreader.LdindR4, ilreader.LdindR8:
		kind = stackslot.Float
	case ilreader.LdindRef:
		kind = stackslot.ObjRef
	}
	if addr.Kind == stackslot.ByRef && addr.Type != nil {
		pointee := stackslot.FromType(typelattice.Verification(addr.Type, v.ts), v.ts)
		if pointee.Kind != kind {
			v.reporter.Report(diag.New(diag.StackUnexpected, offset, op.String(), pointee.Kind, kind))
		}
	}
	st.push(stackslot.Slot{Kind: kind, Type: addr.Type})
}

func (v *verifier) stind(st evalStack, offset int, pfx *prefixState) {
	val := st.pop()
	addr := st.pop()
	if addr.Kind != stackslot.ByRef && addr.Kind != stackslot.NativeInt {
		v.reporter.Report(diag.New(diag.ExpectedByRef, offset, "stind", addr.Kind))
		return
	}
	if addr.Kind == stackslot.ByRef && addr.Flags.Has(stackslot.ReadOnly) && !pfx.readonly {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "stind target is read-only"))
	}
	if addr.Kind == stackslot.ByRef && addr.Type != nil {
		expected := stackslot.FromType(typelattice.Verification(addr.Type, v.ts), v.ts)
		if !typelattice.AssignableTo(val, expected, v.ts) {
			v.reporter.Report(diag.New(diag.StackUnexpected, offset, "stind", val, expected))
		}
	}
}

func (v *verifier) cpobj(st evalStack, offset int, token uint32) {
	t, err := v.resolver.ResolveType(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	src, dst := st.pop(), st.pop()
	if src.Kind != stackslot.ByRef || dst.Kind != stackslot.ByRef {
		v.reporter.Report(diag.New(diag.ExpectedByRef, offset, "cpobj"))
		return
	}
	expected := stackslot.ByRefTo(t, 0)
	if !typelattice.AssignableToSizeEquivalent(src, expected, v.ts) {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "cpobj", src, expected))
	}
}

func (v *verifier) ldobj(st evalStack, offset int, token uint32) {
	t, err := v.resolver.ResolveType(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	addr := st.pop()
	if addr.Kind != stackslot.ByRef {
		v.reporter.Report(diag.New(diag.ExpectedByRef, offset, "ldobj", addr.Kind))
	}
	st.push(stackslot.FromType(t, v.ts))
}

func (v *verifier) stobj(st evalStack, offset int, token uint32) {
	t, err := v.resolver.ResolveType(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	val := st.pop()
	addr := st.pop()
	if addr.Kind != stackslot.ByRef {
		v.reporter.Report(diag.New(diag.ExpectedByRef, offset, "stobj", addr.Kind))
		return
	}
	expected := stackslot.FromType(t, v.ts)
	if !typelattice.AssignableToSizeEquivalent(val, expected, v.ts) {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "stobj", val, expected))
	}
}

func (v *verifier) newobj(st evalStack, offset int, token uint32) {
	m, err := v.resolver.ResolveMethod(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	declaring := v.ts.DeclaringType(m)
	if v.ts.IsInterface(declaring) {
		v.reporter.Report(diag.New(diag.AbstractTypeInstantiation, offset, declaring))
	}
	params := v.ts.Parameters(m)
	v.popArgs(st, offset, params)
	st.push(stackslot.FromType(declaring, v.ts))
}

func (v *verifier) popArgs(st evalStack, offset int, params []oracle.TypeID) {
	for i := len(params) - 1; i >= 0; i-- {
		got := st.pop()
		expected := stackslot.FromType(params[i], v.ts)
		if !typelattice.AssignableTo(got, expected, v.ts) {
			v.reporter.Report(diag.New(diag.ArgumentCountMismatch, offset, i, got, expected))
		}
	}
}

func (v *verifier) call(st evalStack, offset int, token uint32, virt bool, pfx *prefixState, thisInit *bool) {
	m, err := v.resolver.ResolveMethod(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	params := v.ts.Parameters(m)
	v.popArgs(st, offset, params)
	if !v.ts.IsStatic(m) {
		this := st.pop()
		declaring := v.ts.DeclaringType(m)
		if thisInit != nil && !*thisInit && this.Flags.Has(stackslot.ThisPointer) {
			if v.ts.IsConstructor(m) {
				*thisInit = true
			} else {
				v.reporter.Report(diag.New(diag.UninitStack, offset, "use of this before base constructor call"))
			}
		}
		if pfx.hasConstrained {
			// constrained.T callvirt: the this pointer is a ByRef to T,
			// dereferenced as an interface/object call per runtime rule.
			if this.Kind != stackslot.ByRef {
				v.reporter.Report(diag.New(diag.ExpectedByRef, offset, "constrained. this", this.Kind))
			}
		} else if v.ts.IsValueType(declaring) {
			if this.Kind != stackslot.ByRef {
				v.reporter.Report(diag.New(diag.ExpectedByRef, offset, "value-type this", this.Kind))
			}
		} else {
			expected := stackslot.FromType(declaring, v.ts)
			if !typelattice.AssignableTo(this, expected, v.ts) {
				v.reporter.Report(diag.New(diag.StackUnexpected, offset, "this", this, expected))
			}
		}
	}
	vis := v.ts.MethodVisibility(m)
	if vis == oracle.VPrivate && !v.ts.SameType(v.ts.DeclaringType(m), v.declaringType) {
		v.reporter.Report(diag.New(diag.MethodAccess, offset, m))
	}
	if virt && !pfx.hasConstrained && !v.ts.IsVirtual(m) && v.ts.IsValueType(v.ts.DeclaringType(m)) {
		v.reporter.Report(diag.New(diag.Unverifiable, offset, "callvirt on non-virtual value-type method", m))
	}
	ret := v.ts.ReturnType(m)
	if ret != nil {
		st.push(stackslot.FromType(ret, v.ts))
	}
}

func (v *verifier) calli(st evalStack, offset int) {
	fn := st.pop()
	if !fn.IsMethodPointer() && fn.Kind != stackslot.NativeInt {
		v.reporter.Report(diag.New(diag.ExpectedNativeInt, offset, "calli", fn.Kind))
	}
}

func (v *verifier) ret(st evalStack, offset int) {
	if v.returnType != nil {
		got := st.pop()
		expected := stackslot.FromType(v.returnType, v.ts)
		if !typelattice.AssignableTo(got, expected, v.ts) {
			v.reporter.Report(diag.New(diag.StackUnexpected, offset, "ret", got, expected))
		}
	}
	if len(*st.s) != 0 {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "ret requires empty stack", len(*st.s)))
	}
}

func (v *verifier) castOrIsinst(st evalStack, offset int, token uint32, throws bool) {
	t, err := v.resolver.ResolveType(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	a := st.pop()
	if a.Kind != stackslot.ObjRef {
		v.reporter.Report(diag.New(diag.ExpectedObjRef, offset, "castclass/isinst", a.Kind))
	}
	_ = throws
	st.push(stackslot.Slot{Kind: stackslot.ObjRef, Type: t})
}

func (v *verifier) box(st evalStack, offset int, token uint32) {
	t, err := v.resolver.ResolveType(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	val := st.pop()
	expected := stackslot.FromType(t, v.ts)
	if !typelattice.AssignableTo(val, expected, v.ts) {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "box", val, expected))
	}
	st.push(stackslot.Slot{Kind: stackslot.ObjRef, Type: t})
}

func (v *verifier) unbox(st evalStack, offset int, token uint32) {
	t, err := v.resolver.ResolveType(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	a := st.pop()
	if a.Kind != stackslot.ObjRef {
		v.reporter.Report(diag.New(diag.ExpectedObjRef, offset, "unbox", a.Kind))
	}
	st.push(stackslot.ByRefTo(t, stackslot.PermanentHome))
}

func (v *verifier) unboxAny(st evalStack, offset int, token uint32) {
	t, err := v.resolver.ResolveType(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	a := st.pop()
	if a.Kind != stackslot.ObjRef {
		v.reporter.Report(diag.New(diag.ExpectedObjRef, offset, "unbox.any", a.Kind))
	}
	st.push(stackslot.FromType(t, v.ts))
}

func (v *verifier) ldfld(st evalStack, offset int, token uint32, addr bool, thisInit *bool) {
	f, err := v.resolver.ResolveField(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	this := st.pop()
	if this.Kind != stackslot.ObjRef && this.Kind != stackslot.ByRef && this.Kind != stackslot.ValueType {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "ldfld this", this.Kind))
	}
	if thisInit != nil && !*thisInit && this.Flags.Has(stackslot.ThisPointer) {
		v.reporter.Report(diag.New(diag.UninitStack, offset, "field access before base constructor call"))
	}
	if v.ts.FieldVisibility(f) == oracle.VPrivate && !v.ts.SameType(v.ts.FieldDeclaringType(f), v.declaringType) {
		v.reporter.Report(diag.New(diag.FieldAccess, offset, f))
	}
	ft := v.ts.FieldType(f)
	if addr {
		flags := stackslot.Flags(0)
		if this.Kind == stackslot.ObjRef || this.Flags.Has(stackslot.PermanentHome) {
			flags |= stackslot.PermanentHome
		}
		st.push(stackslot.ByRefTo(ft, flags))
	} else {
		st.push(stackslot.FromType(ft, v.ts))
	}
}

func (v *verifier) stfld(st evalStack, offset int, token uint32, thisInit *bool) {
	f, err := v.resolver.ResolveField(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	val := st.pop()
	this := st.pop()
	if this.Kind != stackslot.ObjRef && this.Kind != stackslot.ByRef && this.Kind != stackslot.ValueType {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "stfld this", this.Kind))
	}
	if thisInit != nil && !*thisInit && this.Flags.Has(stackslot.ThisPointer) {
		v.reporter.Report(diag.New(diag.UninitStack, offset, "field access before base constructor call"))
	}
	if v.ts.FieldVisibility(f) == oracle.VPrivate && !v.ts.SameType(v.ts.FieldDeclaringType(f), v.declaringType) {
		v.reporter.Report(diag.New(diag.FieldAccess, offset, f))
	}
	expected := stackslot.FromType(v.ts.FieldType(f), v.ts)
	if !typelattice.AssignableTo(val, expected, v.ts) {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "stfld", val, expected))
	}
}

func (v *verifier) ldsfld(st evalStack, offset int, token uint32, addr bool) {
	f, err := v.resolver.ResolveField(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	if !v.ts.IsStaticField(f) {
		v.reporter.Report(diag.New(diag.FieldAccess, offset, "ldsfld on instance field", f))
	}
	ft := v.ts.FieldType(f)
	if addr {
		st.push(stackslot.ByRefTo(ft, stackslot.PermanentHome))
	} else {
		st.push(stackslot.FromType(ft, v.ts))
	}
}

func (v *verifier) stsfld(st evalStack, offset int, token uint32) {
	f, err := v.resolver.ResolveField(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	val := st.pop()
	expected := stackslot.FromType(v.ts.FieldType(f), v.ts)
	if !typelattice.AssignableTo(val, expected, v.ts) {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "stsfld", val, expected))
	}
}

func (v *verifier) newarr(st evalStack, offset int, token uint32) {
	t, err := v.resolver.ResolveType(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	n := st.pop()
	if n.Kind != stackslot.Int32 && n.Kind != stackslot.NativeInt {
		v.reporter.Report(diag.New(diag.ExpectedIntegerType, offset, "newarr", n.Kind))
	}
	arrayType := t
	if ctor, ok := v.ts.(interface {
		ArrayOf(elem oracle.TypeID, sz bool) oracle.TypeID
	}); ok {
		arrayType = ctor.ArrayOf(t, true)
	}
	st.push(stackslot.Slot{Kind: stackslot.ObjRef, Type: arrayType})
}

func (v *verifier) arrayElemType(offset int, arr stackslot.Slot) oracle.TypeID {
	if arr.Kind != stackslot.ObjRef {
		v.reporter.Report(diag.New(diag.ExpectedObjRef, offset, "array operand", arr.Kind))
		return nil
	}
	if arr.Type == nil {
		return nil
	}
	return v.ts.ElementType(arr.Type)
}

func (v *verifier) ldelema(st evalStack, offset int, token uint32, pfx *prefixState) {
	t, err := v.resolver.ResolveType(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	idx := st.pop()
	arr := st.pop()
	if idx.Kind != stackslot.Int32 && idx.Kind != stackslot.NativeInt {
		v.reporter.Report(diag.New(diag.ExpectedIntegerType, offset, "ldelema index", idx.Kind))
	}
	elem := v.arrayElemType(offset, arr)
	if elem != nil && !v.ts.SameType(elem, t) {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "ldelema element type", elem, t))
	}
	flags := stackslot.PermanentHome
	if pfx.readonly {
		flags |= stackslot.ReadOnly
	}
	st.push(stackslot.ByRefTo(t, flags))
}

func (v *verifier) ldelemTyped(st evalStack, offset int, op ilreader.Opcode) {
	idx := st.pop()
	arr := st.pop()
	if idx.Kind != stackslot.Int32 && idx.Kind != stackslot.NativeInt {
		v.reporter.Report(diag.New(diag.ExpectedIntegerType, offset, "ldelem index", idx.Kind))
	}
	var kind stackslot.Kind
	switch op {
	case ilreader.LdelemI1, ilreader.LdelemU1, ilreader.LdelemI2, ilreader.LdelemU2,
		ilreader.LdelemI4, ilreader.LdelemU4:
		kind = stackslot.Int32
	case ilreader.LdelemI8:
		kind = stackslot.Int64
	case ilreader.LdelemI:
		kind = stackslot.NativeInt
	case ilreader.LdelemR4, ilreader.LdelemR8:
		kind = stackslot.Float
	case ilreader.LdelemRef:
		kind = stackslot.ObjRef
	}
	elem := v.arrayElemType(offset, arr)
	if elem != nil {
		elemSlot := stackslot.FromType(typelattice.Verification(elem, v.ts), v.ts)
		if elemSlot.Kind != kind {
			v.reporter.Report(diag.New(diag.StackUnexpected, offset, op.String(), elemSlot.Kind, kind))
		}
	}
	st.push(stackslot.Slot{Kind: kind, Type: elem})
}

func (v *verifier) ldelemAny(st evalStack, offset int, token uint32) {
	t, err := v.resolver.ResolveType(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	idx := st.pop()
	arr := st.pop()
	if idx.Kind != stackslot.Int32 && idx.Kind != stackslot.NativeInt {
		v.reporter.Report(diag.New(diag.ExpectedIntegerType, offset, "ldelem index", idx.Kind))
	}
	elem := v.arrayElemType(offset, arr)
	if elem != nil && !v.ts.SameType(elem, t) {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "ldelem element type", elem, t))
	}
	st.push(stackslot.FromType(t, v.ts))
}

func (v *verifier) stelemTyped(st evalStack, offset int, op ilreader.Opcode) {
	val := st.pop()
	idx := st.pop()
	arr := st.pop()
	if idx.Kind != stackslot.Int32 && idx.Kind != stackslot.NativeInt {
		v.reporter.Report(diag.New(diag.ExpectedIntegerType, offset, "stelem index", idx.Kind))
	}
	elem := v.arrayElemType(offset, arr)
	if elem != nil {
		expected := stackslot.FromType(typelattice.Verification(elem, v.ts), v.ts)
		if !typelattice.AssignableTo(val, expected, v.ts) {
			v.reporter.Report(diag.New(diag.StackUnexpected, offset, op.String(), val, expected))
		}
	}
}

func (v *verifier) stelemAny(st evalStack, offset int, token uint32) {
	t, err := v.resolver.ResolveType(token)
	if err != nil {
		v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
		return
	}
	val := st.pop()
	idx := st.pop()
	arr := st.pop()
	if idx.Kind != stackslot.Int32 && idx.Kind != stackslot.NativeInt {
		v.reporter.Report(diag.New(diag.ExpectedIntegerType, offset, "stelem index", idx.Kind))
	}
	elem := v.arrayElemType(offset, arr)
	if elem != nil && !v.ts.SameType(elem, t) {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "stelem element type", elem, t))
	}
	expected := stackslot.FromType(t, v.ts)
	if !typelattice.AssignableTo(val, expected, v.ts) {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "stelem value", val, expected))
	}
}
