// Package oracle defines the type-system oracle contract the verifier
// consumes. The verifier never inspects metadata directly;
// every reflective question about types, methods, and fields is answered
// through this interface, so offline (disk-based) and online (runtime)
// backends are pluggable without touching the core.
package oracle

// TypeID and MethodID/FieldID are opaque handles supplied by the host.
// The verifier treats them only as comparable identities (map keys,
// equality); it never inspects or constructs them.
type TypeID any
type MethodID any
type FieldID any

// Kind is the set of type categories the oracle can report.
type Kind int

const (
	KBool Kind = iota
	KChar
	KSByte
	KByte
	KInt16
	KUInt16
	KInt32
	KUInt32
	KInt64
	KUInt64
	KIntPtr
	KUIntPtr
	KSingle
	KDouble
	KEnum
	KPointer
	KFunctionPointer
	KByRef
	KArray
	KClass
	KInterface
	KValueType
	KGenericParameter
	KObject
	KString
)

// Visibility mirrors ECMA-335 member accessibility.
type Visibility int

const (
	VPrivate Visibility = iota
	VFamily
	VAssembly
	VFamilyOrAssembly
	VFamilyAndAssembly
	VPublic
)

// TypeSystem answers reflective questions about types, methods, and
// fields. The contract, not an implementation, is what the core
// specifies; MockTypeSystem (mock.go) is a reference/testing
// backend, not the production implementation.
type TypeSystem interface {
	Kind(t TypeID) Kind

	ElementType(t TypeID) TypeID // array element type, or ByRef/pointer pointee
	ArrayRank(t TypeID) int
	IsSZArray(t TypeID) bool
	EnumUnderlying(t TypeID) TypeID

	BaseType(t TypeID) TypeID   // nil for Object and for interfaces
	Interfaces(t TypeID) []TypeID // direct interfaces only
	IsAssignableTo(src, dst TypeID) bool // full transitive assignability

	WellKnown(name string) TypeID // "SByte", "Int16", "Int32", "Int64", "IntPtr", "Object", "Array", ...

	IsValueType(t TypeID) bool
	IsInterface(t TypeID) bool
	SameType(a, b TypeID) bool

	Parameters(m MethodID) []TypeID
	ReturnType(m MethodID) TypeID
	IsStatic(m MethodID) bool
	IsAbstract(m MethodID) bool
	IsVirtual(m MethodID) bool
	IsConstructor(m MethodID) bool
	DeclaringType(m MethodID) TypeID
	MethodVisibility(m MethodID) Visibility

	FieldType(f FieldID) TypeID
	IsStaticField(f FieldID) bool
	FieldDeclaringType(f FieldID) TypeID
	FieldVisibility(f FieldID) Visibility
}

// TokenResolver answers the metadata-token side of the bytecode service:
// turning the raw 4-byte tokens carried inline by
// call/callvirt/newobj/ldfld/ldtoken/... into the oracle identities
// TypeSystem already knows how to reason about. A real backend resolves
// these against an assembly's metadata tables; the verifier only ever
// consumes the interface.
type TokenResolver interface {
	ResolveType(token uint32) (TypeID, error)
	ResolveMethod(token uint32) (MethodID, error)
	ResolveField(token uint32) (FieldID, error)
}
