package main

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleUniverse = `{
	"types": [
		{"name": "Object"},
		{"name": "Animal", "super": "Object"},
		{"name": "Dog", "super": "Animal"}
	],
	"type_tokens": {
		"Dog": 16777217,
		"Animal": 16777218
	},
	"methods": [
		{"token": 1, "declaring": "Animal", "return": "Object", "virtual": true, "visibility": "public"}
	],
	"fields": [
		{"token": 2, "declaring": "Dog", "type": "Int32", "visibility": "private"}
	]
}`

func writeUniverse(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "universe.json")
	if err := os.WriteFile(path, []byte(sampleUniverse), 0o644); err != nil {
		t.Fatalf("write universe: %v", err)
	}
	return path
}

func TestLoadUniverseBuildsHierarchyAndResolvers(t *testing.T) {
	path := writeUniverse(t, t.TempDir())

	ts, resolver, err := loadUniverse(path)
	if err != nil {
		t.Fatalf("loadUniverse: %v", err)
	}

	dogType, err := resolver.ResolveType(16777217)
	if err != nil {
		t.Fatalf("ResolveType(Dog): %v", err)
	}
	animalType, err := resolver.ResolveType(16777218)
	if err != nil {
		t.Fatalf("ResolveType(Animal): %v", err)
	}
	if !ts.IsAssignableTo(dogType, animalType) {
		t.Fatalf("expected Dog assignable to Animal via super chain")
	}

	m, err := resolver.ResolveMethod(1)
	if err != nil {
		t.Fatalf("ResolveMethod(1): %v", err)
	}
	if !ts.IsVirtual(m) {
		t.Fatalf("expected method 1 to be virtual")
	}

	f, err := resolver.ResolveField(2)
	if err != nil {
		t.Fatalf("ResolveField(2): %v", err)
	}
	if ts.FieldVisibility(f) != 0 {
		t.Fatalf("expected VPrivate (0) visibility, got %v", ts.FieldVisibility(f))
	}
}

func TestLoadUniverseRejectsMissingFile(t *testing.T) {
	if _, _, err := loadUniverse(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing universe file")
	}
}
