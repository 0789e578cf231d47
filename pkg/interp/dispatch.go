package interp

import (
	"github.com/chazu/cilverify/pkg/diag"
	"github.com/chazu/cilverify/pkg/ilreader"
	"github.com/chazu/cilverify/pkg/oracle"
	"github.com/chazu/cilverify/pkg/regions"
	"github.com/chazu/cilverify/pkg/stackslot"
	"github.com/chazu/cilverify/pkg/typelattice"
)

// evalStack is a thin, bounds-checked view over the block's working
// stack slice, reporting StackUnderflow/StackOverflow through the shared
// reporter instead of panicking on a Go slice index.
type evalStack struct {
	s      *[]stackslot.Slot
	v      *verifier
	offset int
}

func (k evalStack) push(sl stackslot.Slot) {
	*k.s = append(*k.s, sl)
	limit := k.v.body.MaxStack
	if limit <= 0 {
		limit = 1 << 16
	}
	if len(*k.s) > limit {
		k.v.reporter.Report(diag.New(diag.StackOverflow, k.offset, len(*k.s), limit))
	}
}

func (k evalStack) pop() stackslot.Slot {
	n := len(*k.s)
	if n == 0 {
		k.v.reporter.Report(diag.New(diag.StackUnderflow, k.offset))
		return stackslot.Slot{Kind: stackslot.Unknown}
	}
	top := (*k.s)[n-1]
	*k.s = (*k.s)[:n-1]
	return top
}

func (k evalStack) peek() stackslot.Slot {
	n := len(*k.s)
	if n == 0 {
		k.v.reporter.Report(diag.New(diag.StackUnderflow, k.offset))
		return stackslot.Slot{Kind: stackslot.Unknown}
	}
	return (*k.s)[n-1]
}

func (v *verifier) argType(index int) oracle.TypeID {
	if !v.isStatic {
		if index == 0 {
			return v.thisType
		}
		index--
	}
	if index < 0 || index >= len(v.params) {
		return nil
	}
	return v.params[index]
}

func (v *verifier) argSlot(index int) stackslot.Slot {
	if !v.isStatic && index == 0 {
		if v.thisIsByRef {
			return stackslot.Slot{Kind: stackslot.ByRef, Type: v.thisType, Flags: stackslot.ThisPointer}
		}
		s := stackslot.FromType(v.thisType, v.ts)
		s.Flags |= stackslot.ThisPointer
		return s
	}
	return stackslot.FromType(v.argType(index), v.ts)
}

func (v *verifier) localType(index int) oracle.TypeID {
	if index < 0 || index >= len(v.body.Locals) {
		return nil
	}
	return v.body.Locals[index].Type
}

func (v *verifier) localSlot(index int) stackslot.Slot {
	return stackslot.FromType(v.localType(index), v.ts)
}

// checkBranch validates an explicit (non-fallthrough) branch target
// against the exception-region structural rules.
func (v *verifier) checkBranch(from, target int) {
	regions.ValidateBranchTarget(v.body.Regions, from, target, false, v.reporter)
}

func (v *verifier) dispatch(inst ilreader.Instruction, offset int, stackPtr *[]stackslot.Slot, pfx *prefixState, thisInit *bool) {
	st := evalStack{s: stackPtr, v: v, offset: offset}

	if v.tailPending && inst.Opcode != ilreader.Ret {
		v.reporter.Report(diag.New(diag.TailCallNotFollowedByRet, offset))
		v.tailPending = false
	}

	if !isPrefixOpcode(inst.Opcode) {
		v.checkPrefixUsage(inst.Opcode, offset, pfx)
	}

	switch inst.Opcode {
	case ilreader.Nop, ilreader.Break:

	// --- prefixes: set a one-shot flag, never touch the stack ---
	case ilreader.UnalignedOp:
		if pfx.unaligned {
			v.reporter.Report(diag.New(diag.PrefixConsecutive, offset, "unaligned."))
		}
		pfx.unaligned, pfx.unalignedN, pfx.consumedThisStep = true, inst.U1, true
	case ilreader.VolatileOp:
		if pfx.volatile {
			v.reporter.Report(diag.New(diag.PrefixConsecutive, offset, "volatile."))
		}
		pfx.volatile, pfx.consumedThisStep = true, true
	case ilreader.TailOp:
		pfx.consumedThisStep = true // tail. itself recorded via v.tailArmed below
		v.tailArmed = true
	case ilreader.ConstrainedOp:
		t, err := v.resolver.ResolveType(inst.Token)
		if err != nil {
			v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
			return
		}
		pfx.hasConstrained, pfx.constrained, pfx.consumedThisStep = true, t, true
	case ilreader.ReadonlyOp:
		pfx.readonly, pfx.consumedThisStep = true, true
	case ilreader.NoOp:
		tc, rc, nc := noFlags(inst.U1)
		pfx.noTypeCheck = pfx.noTypeCheck || tc
		pfx.noRangeCheck = pfx.noRangeCheck || rc
		pfx.noNullCheck = pfx.noNullCheck || nc
		pfx.consumedThisStep = true

	// --- constants ---
	case ilreader.LdnullOp:
		st.push(stackslot.NullRef())
	case ilreader.LdcI4M1, ilreader.LdcI40, ilreader.LdcI41, ilreader.LdcI42, ilreader.LdcI43,
		ilreader.LdcI44, ilreader.LdcI45, ilreader.LdcI46, ilreader.LdcI47, ilreader.LdcI48,
		ilreader.LdcI4S, ilreader.LdcI4:
		st.push(stackslot.Slot{Kind: stackslot.Int32, Type: v.ts.WellKnown("Int32")})
	case ilreader.LdcI8:
		st.push(stackslot.Slot{Kind: stackslot.Int64, Type: v.ts.WellKnown("Int64")})
	case ilreader.LdcR4:
		st.push(stackslot.Slot{Kind: stackslot.Float, Type: v.ts.WellKnown("Single")})
	case ilreader.LdcR8:
		st.push(stackslot.Slot{Kind: stackslot.Float, Type: v.ts.WellKnown("Double")})
	case ilreader.LdstrOp:
		st.push(stackslot.Slot{Kind: stackslot.ObjRef, Type: v.ts.WellKnown("String")})

	// --- locals and arguments ---
	case ilreader.Ldarg0:
		st.push(v.argSlot(0))
	case ilreader.Ldarg1:
		st.push(v.argSlot(1))
	case ilreader.Ldarg2:
		st.push(v.argSlot(2))
	case ilreader.Ldarg3:
		st.push(v.argSlot(3))
	case ilreader.LdargS:
		st.push(v.argSlot(int(inst.U1)))
	case ilreader.LdargLong:
		st.push(v.argSlot(int(inst.I2)))
	case ilreader.LdargaS:
		v.pushArgAddr(st, int(inst.U1))
	case ilreader.LdargaLong:
		v.pushArgAddr(st, int(inst.I2))
	case ilreader.StargS:
		v.storeArg(st, offset, int(inst.U1))
	case ilreader.StargLong:
		v.storeArg(st, offset, int(inst.I2))
	case ilreader.Ldloc0:
		st.push(v.localSlot(0))
	case ilreader.Ldloc1:
		st.push(v.localSlot(1))
	case ilreader.Ldloc2:
		st.push(v.localSlot(2))
	case ilreader.Ldloc3:
		st.push(v.localSlot(3))
	case ilreader.LdlocS:
		st.push(v.localSlot(int(inst.U1)))
	case ilreader.LdlocLong:
		st.push(v.localSlot(int(inst.I2)))
	case ilreader.LdlocaS:
		st.push(stackslot.ByRefTo(v.localType(int(inst.U1)), stackslot.PermanentHome))
	case ilreader.LdlocaLong:
		st.push(stackslot.ByRefTo(v.localType(int(inst.I2)), stackslot.PermanentHome))
	case ilreader.Stloc0:
		v.storeLocal(st, offset, 0)
	case ilreader.Stloc1:
		v.storeLocal(st, offset, 1)
	case ilreader.Stloc2:
		v.storeLocal(st, offset, 2)
	case ilreader.Stloc3:
		v.storeLocal(st, offset, 3)
	case ilreader.StlocS:
		v.storeLocal(st, offset, int(inst.U1))
	case ilreader.StlocLong:
		v.storeLocal(st, offset, int(inst.I2))

	case ilreader.Dup:
		st.push(st.peek())
	case ilreader.Pop:
		st.pop()

	// --- arithmetic ---
	case ilreader.Add, ilreader.Sub:
		v.arith(st, offset, true, true)
	case ilreader.AddOvf, ilreader.AddOvfUn, ilreader.SubOvf, ilreader.SubOvfUn,
		ilreader.Mul, ilreader.MulOvf, ilreader.MulOvfUn,
		ilreader.Div, ilreader.DivUn, ilreader.Rem, ilreader.RemUn:
		isAddSub := inst.Opcode == ilreader.AddOvf || inst.Opcode == ilreader.AddOvfUn ||
			inst.Opcode == ilreader.SubOvf || inst.Opcode == ilreader.SubOvfUn
		v.arith(st, offset, isAddSub, false)
	case ilreader.And, ilreader.Or, ilreader.Xor:
		b, a := st.pop(), st.pop()
		res, ok := bitwiseResult(a.Kind, b.Kind)
		if !ok {
			v.reporter.Report(diag.New(diag.StackUnexpected, offset, inst.Opcode.String(), a.Kind, b.Kind))
			return
		}
		st.push(stackslot.Slot{Kind: res})
	case ilreader.Shl, ilreader.Shr, ilreader.ShrUn:
		count, value := st.pop(), st.pop()
		res, ok := shiftResult(value.Kind, count.Kind)
		if !ok {
			v.reporter.Report(diag.New(diag.StackUnexpected, offset, inst.Opcode.String(), value.Kind, count.Kind))
			return
		}
		st.push(stackslot.Slot{Kind: res, Type: value.Type})
	case ilreader.Neg, ilreader.Not:
		a := st.peek()
		if a.Kind != stackslot.Int32 && a.Kind != stackslot.Int64 && a.Kind != stackslot.NativeInt &&
			!(inst.Opcode == ilreader.Neg && a.Kind == stackslot.Float) {
			v.reporter.Report(diag.New(diag.ExpectedNumericType, offset, inst.Opcode.String(), a.Kind))
		}

	// --- comparisons ---
	case ilreader.CeqOp, ilreader.CgtOp, ilreader.CgtUnOp, ilreader.CltOp, ilreader.CltUnOp:
		b, a := st.pop(), st.pop()
		equalityOnly := inst.Opcode == ilreader.CeqOp
		if !typelattice.BinaryComparable(a, b, equalityOnly, v.ts) {
			v.reporter.Report(diag.New(diag.StackUnexpected, offset, inst.Opcode.String(), a.Kind, b.Kind))
		}
		st.push(stackslot.Slot{Kind: stackslot.Int32, Type: v.ts.WellKnown("Int32")})

	// --- conversions ---
	case ilreader.ConvI1, ilreader.ConvI2, ilreader.ConvI4, ilreader.ConvI8,
		ilreader.ConvR4, ilreader.ConvR8, ilreader.ConvU4, ilreader.ConvU8, ilreader.ConvRUn,
		ilreader.ConvOvfI1Un, ilreader.ConvOvfI2Un, ilreader.ConvOvfI4Un, ilreader.ConvOvfI8Un,
		ilreader.ConvOvfU1Un, ilreader.ConvOvfU2Un, ilreader.ConvOvfU4Un, ilreader.ConvOvfU8Un,
		ilreader.ConvOvfIUn, ilreader.ConvOvfUUn,
		ilreader.ConvOvfI1, ilreader.ConvOvfU1, ilreader.ConvOvfI2, ilreader.ConvOvfU2,
		ilreader.ConvOvfI4, ilreader.ConvOvfU4, ilreader.ConvOvfI8, ilreader.ConvOvfU8,
		ilreader.ConvU2, ilreader.ConvU1, ilreader.ConvI, ilreader.ConvOvfI, ilreader.ConvOvfU, ilreader.ConvU:
		a := st.pop()
		if !isConvSourceAcceptable(a.Kind) {
			v.reporter.Report(diag.New(diag.ExpectedNumericType, offset, inst.Opcode.String(), a.Kind))
		}
		target, _ := convTargetKind(inst.Opcode)
		st.push(stackslot.Slot{Kind: target})
	case ilreader.CkfiniteOp:
		a := st.peek()
		if a.Kind != stackslot.Float {
			v.reporter.Report(diag.New(diag.ExpectedNumericType, offset, "ckfinite", a.Kind))
		}

	// --- indirection ---
	case ilreader.LdindI1, ilreader.LdindU1, ilreader.LdindI2, ilreader.LdindU2,
		ilreader.LdindI4, ilreader.LdindU4, ilreader.LdindI8, ilreader.LdindI,
		ilreader.LdindR4, ilreader.LdindR8, ilreader.LdindRef:
		v.ldind(st, offset, inst.Opcode)
	case ilreader.StindRef, ilreader.StindI1, ilreader.StindI2, ilreader.StindI4,
		ilreader.StindI8, ilreader.StindR4, ilreader.StindR8, ilreader.StindI:
		v.stind(st, offset, pfx)
	case ilreader.Cpobj:
		v.cpobj(st, offset, inst.Token)
	case ilreader.Ldobj:
		v.ldobj(st, offset, inst.Token)
	case ilreader.Stobj:
		v.stobj(st, offset, inst.Token)

	// --- object model ---
	case ilreader.Newobj:
		v.newobj(st, offset, inst.Token)
	case ilreader.Call:
		v.call(st, offset, inst.Token, false, pfx, thisInit)
	case ilreader.Callvirt:
		v.call(st, offset, inst.Token, true, pfx, thisInit)
	case ilreader.Calli:
		v.calli(st, offset)
	case ilreader.Jmp:
		if len(*stackPtr) != 0 {
			v.reporter.Report(diag.New(diag.StackUnexpected, offset, "jmp requires empty stack"))
		}
	case ilreader.Ret:
		v.ret(st, offset)
	case ilreader.Castclass:
		v.castOrIsinst(st, offset, inst.Token, true)
	case ilreader.Isinst:
		v.castOrIsinst(st, offset, inst.Token, false)
	case ilreader.Box:
		v.box(st, offset, inst.Token)
	case ilreader.Unbox:
		v.unbox(st, offset, inst.Token)
	case ilreader.UnboxAny:
		v.unboxAny(st, offset, inst.Token)
	case ilreader.InitobjOp:
		a := st.pop()
		if a.Kind != stackslot.ByRef {
			v.reporter.Report(diag.New(diag.ExpectedByRef, offset, "initobj", a.Kind))
		}

	// --- fields ---
	case ilreader.Ldfld:
		v.ldfld(st, offset, inst.Token, false, thisInit)
	case ilreader.Ldflda:
		v.ldfld(st, offset, inst.Token, true, thisInit)
	case ilreader.Stfld:
		v.stfld(st, offset, inst.Token, thisInit)
	case ilreader.Ldsfld:
		v.ldsfld(st, offset, inst.Token, false)
	case ilreader.Ldsflda:
		v.ldsfld(st, offset, inst.Token, true)
	case ilreader.Stsfld:
		v.stsfld(st, offset, inst.Token)

	// --- arrays ---
	case ilreader.Newarr:
		v.newarr(st, offset, inst.Token)
	case ilreader.Ldlen:
		a := st.pop()
		if a.Kind != stackslot.ObjRef {
			v.reporter.Report(diag.New(diag.ExpectedObjRef, offset, "ldlen", a.Kind))
		}
		st.push(stackslot.Slot{Kind: stackslot.NativeInt, Type: v.ts.WellKnown("IntPtr")})
	case ilreader.Ldelema:
		v.ldelema(st, offset, inst.Token, pfx)
	case ilreader.LdelemI1, ilreader.LdelemU1, ilreader.LdelemI2, ilreader.LdelemU2,
		ilreader.LdelemI4, ilreader.LdelemU4, ilreader.LdelemI8, ilreader.LdelemI,
		ilreader.LdelemR4, ilreader.LdelemR8, ilreader.LdelemRef:
		v.ldelemTyped(st, offset, inst.Opcode)
	case ilreader.LdelemOp:
		v.ldelemAny(st, offset, inst.Token)
	case ilreader.StelemI, ilreader.StelemI1, ilreader.StelemI2, ilreader.StelemI4,
		ilreader.StelemI8, ilreader.StelemR4, ilreader.StelemR8, ilreader.StelemRef:
		v.stelemTyped(st, offset, inst.Opcode)
	case ilreader.StelemOp:
		v.stelemAny(st, offset, inst.Token)

	// --- exception control ---
	case ilreader.ThrowOp:
		a := st.pop()
		if a.Kind != stackslot.ObjRef {
			v.reporter.Report(diag.New(diag.ExpectedObjRef, offset, "throw", a.Kind))
		}
		*stackPtr = (*stackPtr)[:0]
	case ilreader.RethrowOp:
		if !v.insideCatchOrFilter(offset) {
			v.reporter.Report(diag.New(diag.Rethrow, offset))
		}
	case ilreader.LeaveOp, ilreader.LeaveS:
		target := offset + inst.Length
		if inst.Opcode == ilreader.LeaveOp {
			target += int(inst.I4)
		} else {
			target += int(inst.I1)
		}
		regions.ValidateLeaveTarget(v.body.Regions, offset, target, v.reporter)
		*stackPtr = (*stackPtr)[:0]
	case ilreader.EndfinallyOp:
		if !v.insideFinallyOrFault(offset) {
			v.reporter.Report(diag.New(diag.EndFinally, offset))
		}
		*stackPtr = (*stackPtr)[:0]
	case ilreader.EndfilterOp:
		a := st.pop()
		if a.Kind != stackslot.Int32 {
			v.reporter.Report(diag.New(diag.EndFilter, offset, a.Kind))
		}

	// --- unconditional/conditional branches ---
	case ilreader.BrS, ilreader.Br:
		target := offset + inst.Length
		if inst.Opcode == ilreader.BrS {
			target += int(inst.I1)
		} else {
			target += int(inst.I4)
		}
		v.checkBranch(offset, target)
	case ilreader.BrfalseS, ilreader.BrtrueS, ilreader.Brfalse, ilreader.Brtrue:
		st.pop()
		v.checkBranch(offset, branchTargetOf(inst))
	case ilreader.BeqS, ilreader.BgeS, ilreader.BgtS, ilreader.BleS, ilreader.BltS,
		ilreader.BneUnS, ilreader.BgeUnS, ilreader.BgtUnS, ilreader.BleUnS, ilreader.BltUnS,
		ilreader.Beq, ilreader.Bge, ilreader.Bgt, ilreader.Ble, ilreader.Blt,
		ilreader.BneUn, ilreader.BgeUn, ilreader.BgtUn, ilreader.BleUn, ilreader.BltUn:
		b, a := st.pop(), st.pop()
		equalityOnly := inst.Opcode == ilreader.BeqS || inst.Opcode == ilreader.Beq ||
			inst.Opcode == ilreader.BneUnS || inst.Opcode == ilreader.BneUn
		if !typelattice.BinaryComparable(a, b, equalityOnly, v.ts) {
			v.reporter.Report(diag.New(diag.StackUnexpected, offset, inst.Opcode.String(), a.Kind, b.Kind))
		}
		v.checkBranch(offset, branchTargetOf(inst))
	case ilreader.Switch:
		a := st.pop()
		if a.Kind != stackslot.Int32 {
			v.reporter.Report(diag.New(diag.ExpectedIntegerType, offset, "switch", a.Kind))
		}
		next := offset + inst.Length
		for _, rel := range inst.Targets {
			v.checkBranch(offset, next+int(rel))
		}

	// --- pointer / runtime ---
	case ilreader.LdftnOp:
		m, err := v.resolver.ResolveMethod(inst.Token)
		if err != nil {
			v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
			return
		}
		st.push(stackslot.MethodPointer(m))
	case ilreader.LdvirtftnOp:
		st.pop() // the instance
		m, err := v.resolver.ResolveMethod(inst.Token)
		if err != nil {
			v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
			return
		}
		st.push(stackslot.MethodPointer(m))
	case ilreader.LocallocOp:
		if v.inProtectedRegion(offset) {
			v.reporter.Report(diag.New(diag.LocallocInProtectedRegion, offset))
		}
		size := st.pop()
		if size.Kind != stackslot.NativeInt && size.Kind != stackslot.Int32 {
			v.reporter.Report(diag.New(diag.ExpectedIntegerType, offset, "localloc", size.Kind))
		}
		if len(*stackPtr) != 0 {
			v.reporter.Report(diag.New(diag.StackUnexpected, offset, "localloc requires otherwise-empty stack"))
		}
		st.push(stackslot.Slot{Kind: stackslot.NativeInt, Type: v.ts.WellKnown("IntPtr")})
	case ilreader.ArglistOp:
		if !v.body.Vararg {
			v.reporter.Report(diag.New(diag.InstructionCannotBeVerified, offset, "arglist outside vararg method"))
		}
		st.push(stackslot.Slot{Kind: stackslot.NativeInt, Type: v.ts.WellKnown("IntPtr")})
	case ilreader.SizeofOp:
		st.push(stackslot.Slot{Kind: stackslot.Int32, Type: v.ts.WellKnown("Int32")})
	case ilreader.LdtokenOp:
		st.push(stackslot.Slot{Kind: stackslot.ObjRef, Type: v.ts.WellKnown("Object")})
	case ilreader.MkrefanyOp:
		a := st.pop()
		if a.Kind != stackslot.ByRef {
			v.reporter.Report(diag.New(diag.ExpectedByRef, offset, "mkrefany", a.Kind))
		}
		st.push(stackslot.Slot{Kind: stackslot.ValueType, Type: v.ts.WellKnown("Object")})
	case ilreader.RefanyvalOp:
		a := st.pop()
		if a.Kind != stackslot.ValueType {
			v.reporter.Report(diag.New(diag.ExpectedValueType, offset, "refanyval", a.Kind))
		}
		t, err := v.resolver.ResolveType(inst.Token)
		if err != nil {
			v.reporter.Report(diag.New(diag.ConservativeReject, offset, err))
			return
		}
		st.push(stackslot.ByRefTo(t, 0))
	case ilreader.RefanytypeOp:
		a := st.pop()
		if a.Kind != stackslot.ValueType {
			v.reporter.Report(diag.New(diag.ExpectedValueType, offset, "refanytype", a.Kind))
		}
		st.push(stackslot.Slot{Kind: stackslot.ObjRef, Type: v.ts.WellKnown("Object")})
	case ilreader.CpblkOp:
		st.pop() // size
		dst, src := st.pop(), st.pop()
		if dst.Kind != stackslot.ByRef && dst.Kind != stackslot.NativeInt {
			v.reporter.Report(diag.New(diag.ExpectedByRef, offset, "cpblk dst", dst.Kind))
		}
		if src.Kind != stackslot.ByRef && src.Kind != stackslot.NativeInt {
			v.reporter.Report(diag.New(diag.ExpectedByRef, offset, "cpblk src", src.Kind))
		}
	case ilreader.InitblkOp:
		st.pop() // size
		st.pop() // value
		dst := st.pop()
		if dst.Kind != stackslot.ByRef && dst.Kind != stackslot.NativeInt {
			v.reporter.Report(diag.New(diag.ExpectedByRef, offset, "initblk dst", dst.Kind))
		}

	default:
		v.reporter.Report(diag.New(diag.InstructionCannotBeVerified, offset, inst.Opcode.String()))
	}

	if inst.Opcode == ilreader.Call || inst.Opcode == ilreader.Callvirt || inst.Opcode == ilreader.Calli {
		if v.tailArmed {
			v.checkTailCallTarget(offset, inst.Opcode, inst.Token)
			v.tailPending = true
			v.tailArmed = false
		}
	} else if !isPrefixOpcode(inst.Opcode) {
		v.tailArmed = false
	}
}

// checkTailCallTarget enforces the two tail. constraints beyond "the next
// instruction is ret": the call cannot be inside a protected region (there
// would be no frame left to run its handlers), and, when the callee can be
// resolved, its return type must match the enclosing method's.
func (v *verifier) checkTailCallTarget(offset int, op ilreader.Opcode, token uint32) {
	if v.inProtectedRegion(offset) {
		v.reporter.Report(diag.New(diag.Unverifiable, offset, "tail. call inside a protected region"))
	}
	if op == ilreader.Calli {
		return
	}
	m, err := v.resolver.ResolveMethod(token)
	if err != nil {
		return
	}
	calleeRet := v.ts.ReturnType(m)
	if !sameOptionalType(calleeRet, v.returnType, v.ts) {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "tail. call return type", calleeRet, v.returnType))
	}
}

func sameOptionalType(a, b oracle.TypeID, ts oracle.TypeSystem) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return ts.SameType(a, b)
}

func isPrefixOpcode(op ilreader.Opcode) bool {
	switch op {
	case ilreader.UnalignedOp, ilreader.VolatileOp, ilreader.TailOp, ilreader.ConstrainedOp,
		ilreader.ReadonlyOp, ilreader.NoOp:
		return true
	}
	return false
}

func branchTargetOf(inst ilreader.Instruction) int {
	info := ilreader.Lookup(inst.Opcode)
	if info.Operand == ilreader.OperandI1 {
		return inst.Offset + inst.Length + int(inst.I1)
	}
	return inst.Offset + inst.Length + int(inst.I4)
}

func (v *verifier) arith(st evalStack, offset int, isAddOrSub, allowByRef bool) {
	b, a := st.pop(), st.pop()
	res, ok := arithBinaryResult(isAddOrSub, allowByRef, a.Kind, b.Kind)
	if !ok {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "arithmetic", a.Kind, b.Kind))
		st.push(stackslot.Slot{Kind: stackslot.Unknown})
		return
	}
	result := stackslot.Slot{Kind: res}
	if res == stackslot.ByRef {
		if a.Kind == stackslot.ByRef {
			result.Type = a.Type
		} else {
			result.Type = b.Type
		}
	}
	st.push(result)
}

func (v *verifier) pushArgAddr(st evalStack, index int) {
	st.push(stackslot.ByRefTo(v.argType(index), stackslot.PermanentHome))
}

func (v *verifier) storeArg(st evalStack, offset int, index int) {
	val := st.pop()
	expected := v.argSlot(index)
	if !typelattice.AssignableTo(val, expected, v.ts) {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "starg", val, expected))
	}
}

func (v *verifier) storeLocal(st evalStack, offset int, index int) {
	val := st.pop()
	expected := v.localSlot(index)
	if !typelattice.AssignableTo(val, expected, v.ts) {
		v.reporter.Report(diag.New(diag.StackUnexpected, offset, "stloc", val, expected))
	}
}
