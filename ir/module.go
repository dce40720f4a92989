package ir

import (
	"slices"
)

// Module is a compilation unit: the list of functions (graphs) whole-program passes work on.
type Module struct {
	Functions []*Graph
}

// NewModule creates a module with the given functions.
func NewModule(functions ...*Graph) *Module {
	return &Module{Functions: slices.Clone(functions)}
}

// Function returns the function with the given name, or nil.
func (m *Module) Function(name string) *Graph {
	for _, g := range m.Functions {
		if g.name == name {
			return g
		}
	}
	return nil
}

// RemoveFunction removes the function with the given name, and returns whether it was found.
func (m *Module) RemoveFunction(name string) bool {
	idx := slices.IndexFunc(m.Functions, func(g *Graph) bool { return g.name == name })
	if idx < 0 {
		return false
	}
	m.Functions = slices.Delete(m.Functions, idx, idx+1)
	return true
}

// IsStatic returns whether all functions have only static shapes.
func (m *Module) IsStatic() bool {
	for _, g := range m.Functions {
		if !g.IsStatic() {
			return false
		}
	}
	return true
}
