// Package cfg discovers a method body's basic-block structure in a single
// pre-pass: every instruction boundary that can be a
// branch/fallthrough target becomes a block leader, and each block's
// successor set is computed from its last instruction. The dense
// leader-scan loop mirrors the block-boundary detection used by other
// tree-walking bytecode interpreters that pre-scan JUMPDEST-style markers
// before executing a function body.
package cfg

import (
	"sort"

	"github.com/chazu/cilverify/pkg/diag"
	"github.com/chazu/cilverify/pkg/ilreader"
	"github.com/chazu/cilverify/pkg/regions"
)

// Block is a maximal straight-line instruction run: control enters only
// at Start and leaves only at the last instruction before End.
type Block struct {
	Start int
	End   int // exclusive

	Successors []int // block Start offsets

	TryStart     bool
	FilterStart  bool
	HandlerStart bool
}

// CFG is the discovered block structure of one method body.
type CFG struct {
	Blocks    []*Block
	byStart   map[int]*Block
	order     []int // block starts in ascending order, for iteration
}

// BlockAt returns the block beginning at offset, or nil if offset is not
// a block leader.
func (c *CFG) BlockAt(offset int) *Block { return c.byStart[offset] }

// Order returns block-start offsets in ascending address order, the
// natural pass order for a forward worklist seeded from offset 0.
func (c *CFG) Order() []int { return c.order }

func isConditionalBranch(op ilreader.Opcode) bool {
	switch op {
	case ilreader.BrfalseS, ilreader.BrtrueS, ilreader.BeqS, ilreader.BgeS, ilreader.BgtS,
		ilreader.BleS, ilreader.BltS, ilreader.BneUnS, ilreader.BgeUnS, ilreader.BgtUnS,
		ilreader.BleUnS, ilreader.BltUnS,
		ilreader.Brfalse, ilreader.Brtrue, ilreader.Beq, ilreader.Bge, ilreader.Bgt,
		ilreader.Ble, ilreader.Blt, ilreader.BneUn, ilreader.BgeUn, ilreader.BgtUn,
		ilreader.BleUn, ilreader.BltUn:
		return true
	}
	return false
}

func isUnconditionalBranch(op ilreader.Opcode) bool {
	return op == ilreader.BrS || op == ilreader.Br
}

// IsTerminator reports whether op ends a block without a fallthrough
// successor (a return, an unconditional branch, or something that leaves
// or re-enters exception handling).
func IsTerminator(op ilreader.Opcode) bool {
	switch op {
	case ilreader.Ret, ilreader.ThrowOp, ilreader.RethrowOp, ilreader.Jmp,
		ilreader.BrS, ilreader.Br, ilreader.LeaveOp, ilreader.LeaveS,
		ilreader.EndfinallyOp, ilreader.EndfilterOp:
		return true
	}
	return false
}

func branchTarget(code []byte, inst ilreader.Instruction) (int, bool) {
	info := ilreader.Lookup(inst.Opcode)
	switch info.Operand {
	case ilreader.OperandI1:
		if isConditionalBranch(inst.Opcode) || isUnconditionalBranch(inst.Opcode) {
			return inst.Offset + inst.Length + int(inst.I1), true
		}
	case ilreader.OperandI4:
		if isConditionalBranch(inst.Opcode) || isUnconditionalBranch(inst.Opcode) || inst.Opcode == ilreader.LeaveOp {
			return inst.Offset + inst.Length + int(inst.I4), true
		}
	}
	if inst.Opcode == ilreader.LeaveS {
		return inst.Offset + inst.Length + int(inst.I1), true
	}
	return 0, false
}

// Build performs the single pre-pass: decode every instruction once to
// find leaders, then re-walk to materialize blocks and successor edges.
// It reports InvalidBranchTarget for any branch, switch entry, or region
// anchor that does not land on a decoded instruction boundary.
func Build(code []byte, regionList []regions.Region, reporter *diag.Reporter) *CFG {
	leaders := map[int]bool{0: true}
	boundaries := map[int]bool{}

	r := ilreader.New(code)
	type decoded struct {
		inst ilreader.Instruction
	}
	var insts []decoded
	for !r.AtEnd() {
		inst, err := r.Next()
		if err != nil {
			reporter.Report(err)
			return nil
		}
		boundaries[inst.Offset] = true
		insts = append(insts, decoded{inst})
	}
	boundaries[len(code)] = true // one-past-the-end is a valid fallthrough/leave target

	addLeader := func(offset int) {
		if !boundaries[offset] {
			reporter.Report(diag.New(diag.InvalidBranchTarget, offset))
			return
		}
		leaders[offset] = true
	}

	for _, d := range insts {
		inst := d.inst
		next := inst.Offset + inst.Length
		if target, ok := branchTarget(code, inst); ok {
			addLeader(target)
			if isConditionalBranch(inst.Opcode) {
				addLeader(next)
			}
		}
		if inst.Opcode == ilreader.Switch {
			for _, rel := range inst.Targets {
				addLeader(next + int(rel))
			}
			addLeader(next)
		}
		if IsTerminator(inst.Opcode) && next < len(code) {
			addLeader(next)
		}
	}

	for _, reg := range regionList {
		addLeader(reg.TryOffset)
		addLeader(reg.HandlerOffset)
		if reg.Kind == regions.Filter {
			addLeader(reg.FilterOffset)
		}
	}

	var starts []int
	for s := range leaders {
		if s < len(code) {
			starts = append(starts, s)
		}
	}
	sort.Ints(starts)

	c := &CFG{byStart: map[int]*Block{}, order: starts}
	for i, s := range starts {
		end := len(code)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		b := &Block{Start: s, End: end}
		for _, reg := range regionList {
			if reg.TryOffset == s {
				b.TryStart = true
			}
			if reg.HandlerOffset == s {
				b.HandlerStart = true
			}
			if reg.Kind == regions.Filter && reg.FilterOffset == s {
				b.FilterStart = true
			}
		}
		c.Blocks = append(c.Blocks, b)
		c.byStart[s] = b
	}

	for _, d := range insts {
		inst := d.inst
		b := blockContaining(c, inst.Offset)
		if b == nil || inst.Offset+inst.Length != b.End {
			continue // not the last instruction of its block
		}
		next := inst.Offset + inst.Length
		switch {
		case inst.Opcode == ilreader.Switch:
			for _, rel := range inst.Targets {
				b.Successors = append(b.Successors, next+int(rel))
			}
			b.Successors = append(b.Successors, next)
		case isConditionalBranch(inst.Opcode):
			if target, ok := branchTarget(code, inst); ok {
				b.Successors = append(b.Successors, target)
			}
			b.Successors = append(b.Successors, next)
		case isUnconditionalBranch(inst.Opcode) || inst.Opcode == ilreader.LeaveOp || inst.Opcode == ilreader.LeaveS:
			if target, ok := branchTarget(code, inst); ok {
				b.Successors = append(b.Successors, target)
			}
		case IsTerminator(inst.Opcode):
			// ret/throw/rethrow/jmp/endfinally/endfilter: no fallthrough, no branch target.
		default:
			if next < len(code) {
				b.Successors = append(b.Successors, next)
			}
		}
	}

	return c
}

func blockContaining(c *CFG, offset int) *Block {
	for _, b := range c.Blocks {
		if offset >= b.Start && offset < b.End {
			return b
		}
	}
	return nil
}
