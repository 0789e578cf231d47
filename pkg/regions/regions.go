// Package regions models and structurally validates CIL exception-handling
// regions: try/catch/filter/finally/fault nesting and
// leave/branch-target legality. The entry stacks of handler blocks are
// seeded by pkg/interp (seedHandlerEntries), not here. Where a runtime
// exception-handler stack keyed by class and frame installs and looks up
// handlers during execution, this package proves the regions describing
// them are well-formed before any code runs.
package regions

import (
	"github.com/chazu/cilverify/pkg/diag"
	"github.com/chazu/cilverify/pkg/oracle"
)

// Kind distinguishes the four protected-region shapes ECMA-335 supports.
type Kind int

const (
	Catch Kind = iota
	Filter
	Finally
	Fault
)

func (k Kind) String() string {
	switch k {
	case Catch:
		return "catch"
	case Filter:
		return "filter"
	case Finally:
		return "finally"
	case Fault:
		return "fault"
	default:
		return "unknown"
	}
}

// Region is one exception-handling region, as supplied by the bytecode
// service.
type Region struct {
	Kind          Kind
	TryOffset     int
	TryLength     int
	HandlerOffset int
	HandlerLength int
	FilterOffset  int // valid only when Kind == Filter
	CaughtType    oracle.TypeID // valid only when Kind == Catch
}

func (r Region) TryEnd() int     { return r.TryOffset + r.TryLength }
func (r Region) HandlerEnd() int { return r.HandlerOffset + r.HandlerLength }

// contains reports whether offset falls in [start, start+length).
func contains(start, length, offset int) bool {
	return offset >= start && offset < start+length
}

// TryContains reports whether offset lies within r's protected try range.
func (r Region) TryContains(offset int) bool {
	return contains(r.TryOffset, r.TryLength, offset)
}

// HandlerContains reports whether offset lies within r's handler range.
func (r Region) HandlerContains(offset int) bool {
	return contains(r.HandlerOffset, r.HandlerLength, offset)
}

// Validate checks the structural constraints for a single region
// against the method's IL length: positive length, inside IL,
// try/handler disjoint.
func Validate(r Region, ilLength int, reporter *diag.Reporter) {
	if r.TryLength <= 0 || r.HandlerLength <= 0 {
		reporter.Report(diag.New(diag.RegionMalformed, r.TryOffset, "non-positive region length"))
		return
	}
	if r.TryOffset < 0 || r.TryEnd() > ilLength || r.HandlerOffset < 0 || r.HandlerEnd() > ilLength {
		reporter.Report(diag.New(diag.RegionMalformed, r.TryOffset, "region outside method body"))
		return
	}
	if r.Kind == Filter && (r.FilterOffset < r.HandlerOffset-r.HandlerLength || r.FilterOffset >= r.HandlerOffset) {
		// Filter range is [FilterOffset, HandlerOffset); must precede the handler.
		if r.FilterOffset >= r.HandlerOffset {
			reporter.Report(diag.New(diag.RegionMalformed, r.FilterOffset, "filter offset must precede handler offset"))
		}
	}
	if rangesOverlap(r.TryOffset, r.TryEnd(), r.HandlerOffset, r.HandlerEnd()) {
		reporter.Report(diag.New(diag.RegionMalformed, r.TryOffset, "try and handler ranges must be disjoint"))
	}
}

func rangesOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// nestingRelation describes how two ranges relate: disjoint, or one
// properly contains the other. Any other overlap is not well-nested.
type nestingRelation int

const (
	disjoint nestingRelation = iota
	aContainsB
	bContainsA
	improperOverlap
)

func relate(aStart, aEnd, bStart, bEnd int) nestingRelation {
	if aEnd <= bStart || bEnd <= aStart {
		return disjoint
	}
	if aStart <= bStart && bEnd <= aEnd {
		return aContainsB
	}
	if bStart <= aStart && aEnd <= bEnd {
		return bContainsA
	}
	return improperOverlap
}

// ValidateNesting checks that every pair of regions is properly nested
// with respect to each other.
func ValidateNesting(all []Region, reporter *diag.Reporter) {
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			pairs := [][4]int{
				{a.TryOffset, a.TryEnd(), b.TryOffset, b.TryEnd()},
				{a.HandlerOffset, a.HandlerEnd(), b.HandlerOffset, b.HandlerEnd()},
				{a.TryOffset, a.TryEnd(), b.HandlerOffset, b.HandlerEnd()},
				{a.HandlerOffset, a.HandlerEnd(), b.TryOffset, b.TryEnd()},
			}
			for _, p := range pairs {
				if relate(p[0], p[1], p[2], p[3]) == improperOverlap {
					reporter.Report(diag.New(diag.RegionNotWellNested, a.TryOffset, i, j))
					break
				}
			}
		}
	}
}

// EnclosingTry returns the innermost region whose try range contains
// offset, or nil if offset is not protected by any try.
func EnclosingTry(all []Region, offset int) *Region {
	var best *Region
	for i := range all {
		if all[i].TryContains(offset) {
			if best == nil || all[i].TryLength < best.TryLength {
				best = &all[i]
			}
		}
	}
	return best
}

// EnclosingHandler returns the innermost region whose handler (or filter)
// range contains offset, or nil if none.
func EnclosingHandler(all []Region, offset int) *Region {
	var best *Region
	for i := range all {
		in := all[i].HandlerContains(offset)
		if all[i].Kind == Filter && offset >= all[i].FilterOffset && offset < all[i].HandlerOffset {
			in = true
		}
		if in {
			if best == nil || all[i].HandlerLength < best.HandlerLength {
				best = &all[i]
			}
		}
	}
	return best
}

// ValidateLeaveTarget enforces the leave-target rule: the target of a
// leave from a try must be outside that try; from a handler,
// outside that handler. A leave from inside a finally/fault handler is
// itself reported as Leave (endfinally is required instead).
func ValidateLeaveTarget(all []Region, fromOffset, target int, reporter *diag.Reporter) {
	if h := EnclosingHandler(all, fromOffset); h != nil {
		if h.Kind == Finally || h.Kind == Fault {
			reporter.Report(diag.New(diag.Leave, fromOffset, "leave invalid inside finally/fault"))
			return
		}
		if target >= h.HandlerOffset && target < h.HandlerEnd() {
			reporter.Report(diag.New(diag.Leave, fromOffset, "leave target must exit the enclosing handler"))
		}
		return
	}
	if t := EnclosingTry(all, fromOffset); t != nil {
		if target >= t.TryOffset && target < t.TryEnd() {
			reporter.Report(diag.New(diag.Leave, fromOffset, "leave target must exit the enclosing try"))
		}
	}
}

// ValidateBranchTarget enforces that branching into a try/handler from
// outside is invalid, for ordinary (non-leave) branches.
// fallthroughFromAdjacent is true only for the one carved-out exception:
// fallthrough from an adjacent block outside the try into the try's
// first instruction.
func ValidateBranchTarget(all []Region, fromOffset, target int, fallthroughFromAdjacent bool, reporter *diag.Reporter) {
	for _, r := range all {
		enteringTry := target == r.TryOffset && fallthroughFromAdjacent
		if r.TryContains(target) && !r.TryContains(fromOffset) && !enteringTry {
			reporter.Report(diag.New(diag.BranchIntoTry, fromOffset, target))
		}
		handlerStart := r.HandlerOffset
		if r.Kind == Filter {
			handlerStart = r.FilterOffset
		}
		inHandler := target >= handlerStart && target < r.HandlerEnd()
		if inHandler && !(r.HandlerContains(fromOffset) || (r.Kind == Filter && fromOffset >= r.FilterOffset && fromOffset < r.HandlerOffset)) {
			reporter.Report(diag.New(diag.BranchIntoHandler, fromOffset, target))
		}
	}
}
