// Package interp is the abstract interpreter: the worklist dataflow over
// a method's basic blocks that performs the actual type-safety proof. It
// is the largest component, a switch-on-opcode dispatch loop that
// reasons about the types values would have rather than executing them.
package interp

import (
	"github.com/chazu/cilverify/pkg/cfg"
	"github.com/chazu/cilverify/pkg/diag"
	"github.com/chazu/cilverify/pkg/ilreader"
	"github.com/chazu/cilverify/pkg/methodsrc"
	"github.com/chazu/cilverify/pkg/oracle"
	"github.com/chazu/cilverify/pkg/regions"
	"github.com/chazu/cilverify/pkg/stackslot"
	"github.com/chazu/cilverify/pkg/typelattice"
)

// importState tracks a basic block's position in the worklist's
// import/merge state machine.
type importState int

const (
	unmarked importState = iota
	pending
	wasImported
)

type blockEntry struct {
	stack    []stackslot.Slot
	state    importState
	seeded   bool // true for region-anchor/handler entries whose stack is fixed by rule, not by merge
	thisInit bool // true once the base/this-chaining constructor call has completed on every incoming path
}

// verifier is the per-call mutable state the worklist loop shares; it is
// never retained past one Verify call: no caching, no shared mutable
// state across calls.
type verifier struct {
	ts       oracle.TypeSystem
	resolver oracle.TokenResolver
	body     methodsrc.Body
	reporter *diag.Reporter

	cfg     *cfg.CFG
	entries map[int]*blockEntry
	worklist []int

	declaringType oracle.TypeID // the verifying method's own declaring type, set regardless of isStatic
	thisType   oracle.TypeID // non-nil for instance methods
	thisIsByRef bool
	params     []oracle.TypeID
	returnType oracle.TypeID
	isCtor     bool
	isStatic   bool

	// tailArmed is set by a tail. prefix and consumed by the very next
	// call/callvirt/calli; tailPending then carries forward to require
	// that instruction's immediate successor to be ret.
	tailArmed   bool
	tailPending bool
}

// Verify runs the abstract interpreter over one method body and reports
// every verifier error it finds through reporter. The method/declaring-
// type identity plumbing is assumed already resolved into body by the
// caller.
func Verify(ts oracle.TypeSystem, resolver oracle.TokenResolver, body methodsrc.Body, reporter *diag.Reporter) {
	defer diag.Recover()

	for _, r := range body.Regions {
		regions.Validate(r, len(body.IL), reporter)
	}
	regions.ValidateNesting(body.Regions, reporter)

	c := cfg.Build(body.IL, body.Regions, reporter)
	if c == nil {
		return
	}

	v := &verifier{
		ts:       ts,
		resolver: resolver,
		body:     body,
		reporter: reporter,
		cfg:      c,
		entries:  map[int]*blockEntry{},
		isStatic: ts.IsStatic(body.Method),
		isCtor:   ts.IsConstructor(body.Method),
		params:   ts.Parameters(body.Method),
		returnType: ts.ReturnType(body.Method),
	}
	v.declaringType = ts.DeclaringType(body.Method)
	if !v.isStatic {
		v.thisType = v.declaringType
		v.thisIsByRef = ts.IsValueType(v.declaringType)
	}

	thisNeedsInit := v.isCtor && !v.isStatic && !ts.IsValueType(v.thisType)
	v.seedEntry(0, nil, !thisNeedsInit)
	v.seedHandlerEntries()

	for len(v.worklist) > 0 {
		start := v.worklist[0]
		v.worklist = v.worklist[1:]
		e := v.entries[start]
		if e.state != pending {
			continue // duplicate queue entry for a block already processed since it was queued
		}
		e.state = wasImported
		v.processBlock(start)
	}
}

// seedEntry establishes (or merges into) the entry stack recorded for a
// block, scheduling it on the worklist if new or widened. thisInit merges
// with AND semantics: a block's this is initialized only once it is
// initialized on every incoming path.
func (v *verifier) seedEntry(start int, stack []stackslot.Slot, thisInit bool) {
	e, ok := v.entries[start]
	if !ok {
		cp := append([]stackslot.Slot(nil), stack...)
		v.entries[start] = &blockEntry{stack: cp, state: pending, thisInit: thisInit}
		v.worklist = append(v.worklist, start)
		return
	}
	if len(e.stack) != len(stack) {
		v.reporter.Report(diag.New(diag.StackHeightMismatch, start, len(e.stack), len(stack)))
		return
	}
	widened := false
	for i := range stack {
		merged, ok := typelattice.Merge(e.stack[i], stack[i], v.ts)
		if !ok {
			v.reporter.Report(diag.New(diag.MergeFailure, start, i))
			return
		}
		if !merged.Equal(e.stack[i]) {
			e.stack[i] = merged
			widened = true
		}
	}
	if merged := e.thisInit && thisInit; merged != e.thisInit {
		e.thisInit = merged
		widened = true
	}
	if widened && e.state == wasImported {
		e.state = pending
		v.worklist = append(v.worklist, start)
	}
}

// seedHandlerEntries fixes the entry stacks of every protected-region
// anchor to its kind-specific seed, regardless of whatever
// incoming edges a normal dataflow merge might otherwise propose. Handler
// and filter blocks are reached only via exception dispatch, never by
// ordinary control flow, so there is nothing to merge against.
func (v *verifier) seedHandlerEntries() {
	for _, r := range v.body.Regions {
		switch r.Kind {
		case regions.Catch:
			v.fixEntry(r.HandlerOffset, []stackslot.Slot{{Kind: stackslot.ObjRef, Type: r.CaughtType}})
		case regions.Filter:
			excBase := v.ts.WellKnown("Object")
			v.fixEntry(r.FilterOffset, []stackslot.Slot{{Kind: stackslot.ObjRef, Type: excBase}})
			v.fixEntry(r.HandlerOffset, []stackslot.Slot{{Kind: stackslot.ObjRef, Type: excBase}})
		case regions.Finally, regions.Fault:
			v.fixEntry(r.HandlerOffset, nil)
		}
		v.fixEntry(r.TryOffset, nil)
	}
}

// fixEntry seeds a region anchor with thisInit optimistically true: handler
// and filter blocks are reached only via exception dispatch, so whether the
// base constructor call on the guarded path had completed by the time the
// exception was thrown isn't tracked here.
func (v *verifier) fixEntry(start int, stack []stackslot.Slot) {
	cp := append([]stackslot.Slot(nil), stack...)
	v.entries[start] = &blockEntry{stack: cp, state: pending, seeded: true, thisInit: true}
	v.worklist = append(v.worklist, start)
}

func (v *verifier) processBlock(start int) {
	b := v.cfg.BlockAt(start)
	if b == nil {
		return
	}
	entry := v.entries[start]
	stack := append([]stackslot.Slot(nil), entry.stack...)
	thisInit := entry.thisInit

	r := ilreader.New(v.body.IL)
	r.SeekTo(start)
	var pfx prefixState
	var lastOp ilreader.Opcode
	var lastInstOffset int

	for r.Offset() < b.End {
		instOffset := r.Offset()
		inst, err := r.Next()
		if err != nil {
			v.reporter.Report(err)
			return
		}
		lastOp = inst.Opcode
		lastInstOffset = instOffset
		v.dispatch(inst, instOffset, &stack, &pfx, &thisInit)
		if !pfx.consumedThisStep {
			pfx = prefixState{}
		}
		pfx.consumedThisStep = false
	}

	if pfx.any() {
		v.reporter.Report(diag.New(diag.InvalidPrefix, b.End, "prefix not consumed before block end"))
	}

	if len(b.Successors) == 0 && b.End == len(v.body.IL) && !cfg.IsTerminator(lastOp) {
		v.reporter.Report(diag.New(diag.FallthroughAtEndOfMethod, b.End))
		return
	}

	if !cfg.IsTerminator(lastOp) {
		regions.ValidateBranchTarget(v.body.Regions, lastInstOffset, b.End, true, v.reporter)
	}

	for _, succ := range b.Successors {
		v.seedEntry(succ, stack, thisInit)
	}
}
