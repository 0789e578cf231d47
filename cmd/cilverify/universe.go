package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/chazu/cilverify/pkg/oracle"
)

// universeFile is the on-disk shape of a standalone type universe: the
// minimal declaration of classes, methods, and fields a batch run needs
// to resolve the metadata tokens embedded in a CIL envelope, in place of
// a live assembly/metadata reader.
type universeFile struct {
	Types []struct {
		Name      string   `json:"name"`
		Super     string   `json:"super,omitempty"`
		Ifaces    []string `json:"interfaces,omitempty"`
		IsIface   bool     `json:"is_interface,omitempty"`
		IsValue   bool     `json:"is_value_type,omitempty"`
	} `json:"types"`

	Methods []struct {
		Token      uint32   `json:"token"`
		Declaring  string   `json:"declaring"`
		Params     []string `json:"params,omitempty"`
		Return     string   `json:"return,omitempty"`
		Static     bool     `json:"static,omitempty"`
		Abstract   bool     `json:"abstract,omitempty"`
		Virtual    bool     `json:"virtual,omitempty"`
		Ctor       bool     `json:"ctor,omitempty"`
		Visibility string   `json:"visibility,omitempty"`
	} `json:"methods"`

	Fields []struct {
		Token      uint32 `json:"token"`
		Declaring  string `json:"declaring"`
		Type       string `json:"type"`
		Static     bool   `json:"static,omitempty"`
		Visibility string `json:"visibility,omitempty"`
	} `json:"fields"`

	TypeTokens map[string]uint32 `json:"type_tokens,omitempty"`
}

var visibilityNames = map[string]oracle.Visibility{
	"private":             oracle.VPrivate,
	"family":              oracle.VFamily,
	"assembly":            oracle.VAssembly,
	"family-and-assembly": oracle.VFamilyAndAssembly,
	"family-or-assembly":  oracle.VFamilyOrAssembly,
	"public":              oracle.VPublic,
}

// loadUniverse reads a JSON type-universe file and builds the
// MockTypeSystem/StaticResolver pair that ToBody and Verify consume.
func loadUniverse(path string) (*oracle.MockTypeSystem, *oracle.StaticResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading universe file %s: %w", path, err)
	}

	var uf universeFile
	if err := json.Unmarshal(data, &uf); err != nil {
		return nil, nil, fmt.Errorf("parsing universe file %s: %w", path, err)
	}

	ts := oracle.NewMockTypeSystem()
	classes := map[string]*oracle.MockClass{}
	lookup := func(name string) *oracle.MockClass {
		if name == "" {
			return nil
		}
		if c, ok := classes[name]; ok {
			return c
		}
		if wk, ok := ts.WellKnowns[name]; ok {
			c := wk.(*oracle.MockClass)
			classes[name] = c
			return c
		}
		c := &oracle.MockClass{Name: name}
		classes[name] = c
		return c
	}

	// First pass declares every class so forward references resolve.
	for _, t := range uf.Types {
		lookup(t.Name)
	}
	for _, t := range uf.Types {
		c := lookup(t.Name)
		c.Super = lookup(t.Super)
		c.IsIface = t.IsIface
		c.IsValue = t.IsValue
		for _, i := range t.Ifaces {
			c.IfaceList = append(c.IfaceList, lookup(i))
		}
	}

	resolver := oracle.NewStaticResolver()
	for name, tok := range uf.TypeTokens {
		resolver.Types[tok] = lookup(name)
	}

	for _, m := range uf.Methods {
		mm := &oracle.MockMethod{
			Declaring:  lookup(m.Declaring),
			Static:     m.Static,
			Abstract:   m.Abstract,
			Virtual:    m.Virtual,
			Ctor:       m.Ctor,
			Visibility: visibilityNames[m.Visibility],
		}
		if m.Return != "" {
			mm.Return = lookup(m.Return)
		}
		for _, p := range m.Params {
			mm.Params = append(mm.Params, lookup(p))
		}
		ts.Methods[m.Token] = mm
		resolver.Methods[m.Token] = m.Token
	}

	for _, f := range uf.Fields {
		ff := &oracle.MockField{
			Type:       lookup(f.Type),
			Declaring:  lookup(f.Declaring),
			Static:     f.Static,
			Visibility: visibilityNames[f.Visibility],
		}
		ts.Fields[f.Token] = ff
		resolver.Fields[f.Token] = f.Token
	}

	return ts, resolver, nil
}
