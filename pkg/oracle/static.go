package oracle

import "fmt"

// StaticResolver answers metadata-token lookups from fixed maps, the
// shape a disk-loaded "type universe" file or a test fixture builds
// once up front rather than querying a live assembly reader. It
// satisfies TokenResolver.
type StaticResolver struct {
	Types   map[uint32]TypeID
	Methods map[uint32]MethodID
	Fields  map[uint32]FieldID
}

// NewStaticResolver returns an empty StaticResolver ready for its maps
// to be populated.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		Types:   map[uint32]TypeID{},
		Methods: map[uint32]MethodID{},
		Fields:  map[uint32]FieldID{},
	}
}

func (r *StaticResolver) ResolveType(token uint32) (TypeID, error) {
	if t, ok := r.Types[token]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("oracle: unresolved type token 0x%08x", token)
}

func (r *StaticResolver) ResolveMethod(token uint32) (MethodID, error) {
	if m, ok := r.Methods[token]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("oracle: unresolved method token 0x%08x", token)
}

func (r *StaticResolver) ResolveField(token uint32) (FieldID, error) {
	if f, ok := r.Fields[token]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("oracle: unresolved field token 0x%08x", token)
}
