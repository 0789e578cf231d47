package oracle

// MockClass is the type identity of MockTypeSystem, the minimal reference
// TypeSystem backend used by the verifier's own tests and by end-to-end
// scenario fixtures. It models
// just enough of a class hierarchy (superclass chain, direct interfaces)
// to exercise merge and assignability against a real class hierarchy.
type MockClass struct {
	Name       string
	Super      *MockClass
	IfaceList  []*MockClass // direct interfaces, or implemented interfaces for a class
	IsIface    bool
	IsValue    bool
	ElemOf     *MockClass // non-nil if this MockClass is T[] for ElemOf == T
	SZArray    bool
	Rank       int
}

func (c *MockClass) String() string {
	if c == nil {
		return "<nil>"
	}
	return c.Name
}

// IsSubclassOf walks the superclass chain.
func (c *MockClass) IsSubclassOf(other *MockClass) bool {
	for cur := c; cur != nil; cur = cur.Super {
		if cur == other {
			return true
		}
	}
	return false
}

// allInterfaces returns the transitive closure of interfaces implemented
// by c, including those inherited from superclasses.
func (c *MockClass) allInterfaces() []*MockClass {
	seen := map[*MockClass]bool{}
	var out []*MockClass
	var walk func(*MockClass)
	walk = func(cur *MockClass) {
		if cur == nil {
			return
		}
		for _, i := range cur.IfaceList {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
				walk(i) // interfaces can extend interfaces
			}
		}
		walk(cur.Super)
	}
	walk(c)
	return out
}

// MockTypeSystem is a TypeSystem over *MockClass identities plus the
// handful of primitive well-known types the verifier needs.
type MockTypeSystem struct {
	WellKnowns map[string]TypeID
	Methods    map[MethodID]*MockMethod
	Fields     map[FieldID]*MockField
	primKinds  map[string]Kind
	arrays     map[arrayKey]*MockClass
}

// MockMethod and MockField describe enough member metadata for the
// object-model opcode dispatch rules to run against.
type MockMethod struct {
	Params      []TypeID
	Return      TypeID
	Static      bool
	Abstract    bool
	Virtual     bool
	Ctor        bool
	Declaring   TypeID
	Visibility  Visibility
}

type MockField struct {
	Type       TypeID
	Static     bool
	Declaring  TypeID
	Visibility Visibility
}

func NewMockTypeSystem() *MockTypeSystem {
	ts := &MockTypeSystem{
		WellKnowns: map[string]TypeID{},
		Methods:    map[MethodID]*MockMethod{},
		Fields:     map[FieldID]*MockField{},
	}
	prims := map[string]Kind{
		"SByte": KSByte, "Byte": KByte, "Int16": KInt16, "UInt16": KUInt16,
		"Int32": KInt32, "UInt32": KUInt32, "Int64": KInt64, "UInt64": KUInt64,
		"IntPtr": KIntPtr, "UIntPtr": KUIntPtr, "Single": KSingle, "Double": KDouble,
		"Bool": KBool, "Char": KChar, "String": KString,
	}
	for name := range prims {
		ts.WellKnowns[name] = &MockClass{Name: name}
	}
	ts.WellKnowns["Object"] = &MockClass{Name: "Object"}
	ts.WellKnowns["Array"] = &MockClass{Name: "Array", Super: ts.WellKnowns["Object"].(*MockClass)}
	ts.primKinds = prims
	return ts
}

func (ts *MockTypeSystem) Kind(t TypeID) Kind {
	c, ok := t.(*MockClass)
	if !ok || c == nil {
		return KObject
	}
	if k, ok := ts.primKinds[c.Name]; ok {
		return k
	}
	if c.ElemOf != nil {
		return KArray
	}
	if c.IsIface {
		return KInterface
	}
	if c.IsValue {
		return KValueType
	}
	return KClass
}

func (ts *MockTypeSystem) ElementType(t TypeID) TypeID {
	c, _ := t.(*MockClass)
	if c == nil {
		return nil
	}
	return c.ElemOf
}

func (ts *MockTypeSystem) ArrayRank(t TypeID) int {
	c, _ := t.(*MockClass)
	if c == nil || c.Rank == 0 {
		return 1
	}
	return c.Rank
}

func (ts *MockTypeSystem) IsSZArray(t TypeID) bool {
	c, _ := t.(*MockClass)
	return c != nil && c.SZArray
}

func (ts *MockTypeSystem) EnumUnderlying(t TypeID) TypeID {
	return ts.WellKnowns["Int32"]
}

func (ts *MockTypeSystem) BaseType(t TypeID) TypeID {
	c, _ := t.(*MockClass)
	if c == nil || c.Super == nil {
		return nil
	}
	return c.Super
}

func (ts *MockTypeSystem) Interfaces(t TypeID) []TypeID {
	c, _ := t.(*MockClass)
	if c == nil {
		return nil
	}
	out := make([]TypeID, len(c.IfaceList))
	for i, iface := range c.IfaceList {
		out[i] = iface
	}
	return out
}

func (ts *MockTypeSystem) IsAssignableTo(src, dst TypeID) bool {
	sc, _ := src.(*MockClass)
	dc, _ := dst.(*MockClass)
	if sc == nil || dc == nil {
		return sc == dc
	}
	if sc == dc {
		return true
	}
	if dc.IsIface {
		for _, i := range sc.allInterfaces() {
			if i == dc {
				return true
			}
		}
		return false
	}
	return sc.IsSubclassOf(dc)
}

func (ts *MockTypeSystem) WellKnown(name string) TypeID { return ts.WellKnowns[name] }

func (ts *MockTypeSystem) IsValueType(t TypeID) bool {
	c, _ := t.(*MockClass)
	return c != nil && c.IsValue
}

func (ts *MockTypeSystem) IsInterface(t TypeID) bool {
	c, _ := t.(*MockClass)
	return c != nil && c.IsIface
}

func (ts *MockTypeSystem) SameType(a, b TypeID) bool { return a == b }

func (ts *MockTypeSystem) Parameters(m MethodID) []TypeID {
	if mm, ok := ts.Methods[m]; ok {
		return mm.Params
	}
	return nil
}

func (ts *MockTypeSystem) ReturnType(m MethodID) TypeID {
	if mm, ok := ts.Methods[m]; ok {
		return mm.Return
	}
	return nil
}

func (ts *MockTypeSystem) IsStatic(m MethodID) bool {
	mm, ok := ts.Methods[m]
	return ok && mm.Static
}

func (ts *MockTypeSystem) IsAbstract(m MethodID) bool {
	mm, ok := ts.Methods[m]
	return ok && mm.Abstract
}

func (ts *MockTypeSystem) IsVirtual(m MethodID) bool {
	mm, ok := ts.Methods[m]
	return ok && mm.Virtual
}

func (ts *MockTypeSystem) IsConstructor(m MethodID) bool {
	mm, ok := ts.Methods[m]
	return ok && mm.Ctor
}

func (ts *MockTypeSystem) DeclaringType(m MethodID) TypeID {
	if mm, ok := ts.Methods[m]; ok {
		return mm.Declaring
	}
	return nil
}

func (ts *MockTypeSystem) MethodVisibility(m MethodID) Visibility {
	if mm, ok := ts.Methods[m]; ok {
		return mm.Visibility
	}
	return VPrivate
}

func (ts *MockTypeSystem) FieldType(f FieldID) TypeID {
	if ff, ok := ts.Fields[f]; ok {
		return ff.Type
	}
	return nil
}

func (ts *MockTypeSystem) IsStaticField(f FieldID) bool {
	ff, ok := ts.Fields[f]
	return ok && ff.Static
}

func (ts *MockTypeSystem) FieldDeclaringType(f FieldID) TypeID {
	if ff, ok := ts.Fields[f]; ok {
		return ff.Declaring
	}
	return nil
}

func (ts *MockTypeSystem) FieldVisibility(f FieldID) Visibility {
	if ff, ok := ts.Fields[f]; ok {
		return ff.Visibility
	}
	return VPrivate
}

// ArrayOf constructs (and memoizes) the array type over elem, satisfying
// the optional array-construction hook typelattice.Merge probes for when
// rebuilding a merged array's element type.
func (ts *MockTypeSystem) ArrayOf(elem TypeID, sz bool) TypeID {
	ec, _ := elem.(*MockClass)
	key := arrayKey{ec, sz}
	if ts.arrays == nil {
		ts.arrays = map[arrayKey]*MockClass{}
	}
	if existing, ok := ts.arrays[key]; ok {
		return existing
	}
	rank := 1
	arr := &MockClass{
		Name:    ec.String() + "[]",
		Super:   ts.WellKnowns["Array"].(*MockClass),
		ElemOf:  ec,
		SZArray: sz,
		Rank:    rank,
	}
	ts.arrays[key] = arr
	return arr
}

type arrayKey struct {
	elem *MockClass
	sz   bool
}
