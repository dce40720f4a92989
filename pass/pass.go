// Package pass implements the framework to run transformation and analysis passes over ir graphs, and a set of
// built-in passes.
//
// A pass embeds Base, declares its properties, and implements one of the variants: ModulePass, FunctionPass,
// NodePass or CallGraphPass. A Manager runs the registered passes, in order, over an *ir.Module, sharing one
// State among them.
package pass

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/graphir/ir"
)

// Pass is the common interface of all pass variants. Concrete passes get everything but Name by embedding Base.
type Pass interface {
	// Name identifies the pass in logs, errors and metrics.
	Name() string

	// Properties declared by the pass.
	Properties() PropertyMask

	// State shared by the passes of the Manager the pass was registered with. It's nil before registration.
	State() *State

	// SetState is called by the Manager when the pass is registered.
	SetState(state *State)
}

// ModulePass runs once over the whole module.
type ModulePass interface {
	Pass
	RunOnModule(module *ir.Module) (changed bool, err error)
}

// FunctionPass runs once for each function of the module.
type FunctionPass interface {
	Pass
	RunOnFunction(g *ir.Graph) (changed bool, err error)
}

// NodePass runs on each live node of each function, in topological order. Nodes removed by the pass itself
// while the function is being visited are skipped.
type NodePass interface {
	Pass
	RunOnNode(n *ir.Node) (changed bool, err error)
}

// CallGraphPass runs once for each function, receiving its nodes in topological order.
type CallGraphPass interface {
	Pass
	RunOnCallGraph(nodes []*ir.Node) (changed bool, err error)
}

// Base implements the bookkeeping part of Pass. Embed it in concrete passes.
type Base struct {
	properties PropertyMask
	state      *State
}

// MakeBase returns a Base with the given properties.
func MakeBase(properties ...Property) Base {
	return Base{properties: MakePropertyMask(properties...)}
}

// Properties implements Pass.
func (b *Base) Properties() PropertyMask { return b.properties }

// State implements Pass.
func (b *Base) State() *State { return b.state }

// SetState implements Pass. The state can only be set once: setting a different state panics, since a pass
// can't be shared among managers.
func (b *Base) SetState(state *State) {
	if b.state != nil && b.state != state {
		exceptions.Panicf("pass state already set: a pass instance can only be registered with one Manager")
	}
	b.state = state
}
