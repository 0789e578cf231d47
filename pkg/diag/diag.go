// Package diag defines the closed set of verifier error kinds and the
// reporter that collects or fails fast on them.
package diag

import (
	"fmt"
	"strings"
)

// Kind is one element of the closed verifier-error enumeration mirroring
// ECMA-335's verifier error set.
type Kind int

const (
	// Structural (bytecode reader, block discovery, prefix misuse).
	EndOfMethodInsideInstruction Kind = iota
	InvalidBranchTarget
	InvalidPrefix
	PrefixConsecutive
	FallthroughAtEndOfMethod

	// Stack (underflow, overflow, kind mismatch, merge failure).
	StackUnderflow
	StackOverflow
	StackUnexpected
	UninitStack
	ExpectedNumericType
	ExpectedIntegerType
	ExpectedNativeInt
	ExpectedByRef
	ExpectedObjRef
	ExpectedValueType
	StackHeightMismatch
	MergeFailure

	// Semantic (field/method visibility, abstract instantiation, non-verifiable usage).
	MethodAccess
	FieldAccess
	AbstractTypeInstantiation
	ArgumentCountMismatch
	InstructionCannotBeVerified
	TailCallNotFollowedByRet
	ConservativeReject
	Unverifiable

	// Region (bad try/handler nesting, illegal leave, orphan endfinally/endfilter).
	BranchOutOfTry
	BranchIntoTry
	BranchIntoHandler
	RegionNotWellNested
	RegionMalformed
	Leave
	Rethrow
	EndFilter
	EndFinally
	LocallocInProtectedRegion
)

var names = map[Kind]string{
	EndOfMethodInsideInstruction: "EndOfMethodInsideInstruction",
	InvalidBranchTarget:          "InvalidBranchTarget",
	InvalidPrefix:                "InvalidPrefix",
	PrefixConsecutive:            "PrefixConsecutive",
	FallthroughAtEndOfMethod:     "FallthroughAtEndOfMethod",

	StackUnderflow:       "StackUnderflow",
	StackOverflow:        "StackOverflow",
	StackUnexpected:      "StackUnexpected",
	UninitStack:          "UninitStack",
	ExpectedNumericType:  "ExpectedNumericType",
	ExpectedIntegerType:  "ExpectedIntegerType",
	ExpectedNativeInt:    "ExpectedNativeInt",
	ExpectedByRef:        "ExpectedByRef",
	ExpectedObjRef:       "ExpectedObjRef",
	ExpectedValueType:    "ExpectedValueType",
	StackHeightMismatch:  "StackHeightMismatch",
	MergeFailure:         "MergeFailure",

	MethodAccess:                "MethodAccess",
	FieldAccess:                 "FieldAccess",
	AbstractTypeInstantiation:   "AbstractTypeInstantiation",
	ArgumentCountMismatch:       "ArgumentCountMismatch",
	InstructionCannotBeVerified: "InstructionCannotBeVerified",
	TailCallNotFollowedByRet:    "TailCallNotFollowedByRet",
	ConservativeReject:          "ConservativeReject",
	Unverifiable:                "Unverifiable",

	BranchOutOfTry:            "BranchOutOfTry",
	BranchIntoTry:             "BranchIntoTry",
	BranchIntoHandler:         "BranchIntoHandler",
	RegionNotWellNested:       "RegionNotWellNested",
	RegionMalformed:           "RegionMalformed",
	Leave:                     "Leave",
	Rethrow:                   "Rethrow",
	EndFilter:                 "EndFilter",
	EndFinally:                "EndFinally",
	LocallocInProtectedRegion: "LocallocInProtectedRegion",
}

// String renders the enum name, or a numbered placeholder for an unknown value.
func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a single verifier diagnostic: a kind plus an ordered argument
// list suitable for host-side stringification (offsets, type identities,
// method identities, expected-vs-actual pairs).
type Error struct {
	Kind   Kind
	Offset int // IL offset at which the error was detected, or -1 if not offset-scoped
	Args   []any
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Kind)
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at IL_%04x", e.Offset)
	}
	for _, a := range e.Args {
		fmt.Fprintf(&b, ": %v", a)
	}
	return b.String()
}

// New builds an Error at a given IL offset with ordered arguments.
func New(kind Kind, offset int, args ...any) *Error {
	return &Error{Kind: kind, Offset: offset, Args: args}
}

// Policy selects how a Reporter behaves once the first error is observed.
type Policy int

const (
	// FailFast aborts the worklist at the first reported error. This is
	// the default for the runtime integration.
	FailFast Policy = iota
	// CollectAll records every reported error and keeps the worklist
	// running, used by the diagnostic tool mode.
	CollectAll
)

// abort is panicked internally by Reporter.Report under FailFast so the
// worklist driver can recover it and stop cleanly; it never escapes the
// package boundary as a raw panic to callers of Verify.
type abort struct{ err *Error }

// Reporter collects verifier errors according to its configured Policy.
type Reporter struct {
	policy Policy
	errs   []*Error
}

// NewReporter creates a Reporter with the given policy.
func NewReporter(policy Policy) *Reporter {
	return &Reporter{policy: policy}
}

// Report records err. Under FailFast it panics with an internal abort
// sentinel that Verify recovers; under CollectAll it appends and returns
// normally so the caller's dataflow can continue.
func (r *Reporter) Report(err *Error) {
	r.errs = append(r.errs, err)
	if r.policy == FailFast {
		panic(abort{err})
	}
}

// Errors returns every error recorded so far, in report order.
func (r *Reporter) Errors() []*Error {
	return r.errs
}

// Failed reports whether any error has been recorded.
func (r *Reporter) Failed() bool {
	return len(r.errs) > 0
}

// First returns the first recorded error, or nil if none.
func (r *Reporter) First() *Error {
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[0]
}

// Recover must be deferred around a worklist run driven by a Reporter
// using FailFast. It swallows the internal abort panic (the error that
// caused it stays recorded in the Reporter) and re-panics anything else.
func Recover() {
	if r := recover(); r != nil {
		if _, ok := r.(abort); ok {
			return
		}
		panic(r)
	}
}
