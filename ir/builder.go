package ir

import (
	"fmt"
	"slices"
)

// Builder stages new nodes for a Graph: nodes added to a builder are fully validated (their inference rules run),
// and may consume each other's outputs, but they are not part of the graph, and don't show up in any user index,
// until Commit is called.
//
// It is what decomposition rules build into, and what passes use to assemble a replacement subgraph before
// splicing it in. The graph must not be structurally changed while a builder is open.
type Builder struct {
	g         *Graph
	base      NodeID
	version   uint64
	staged    []*Node
	committed bool
}

// NewBuilder returns a new Builder for the graph.
func (g *Graph) NewBuilder() *Builder {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.newBuilder()
}

func (g *Graph) newBuilder() *Builder {
	return &Builder{g: g, base: NodeID(len(g.nodes)), version: g.version}
}

// Graph returns the graph the builder stages nodes for.
func (b *Builder) Graph() *Graph { return b.g }

// Len returns the number of staged nodes.
func (b *Builder) Len() int { return len(b.staged) }

// Staged returns the staged nodes, in creation order.
func (b *Builder) Staged() []*Node { return slices.Clone(b.staged) }

// Node returns a staged node or a node of the graph by id, or nil if not found.
func (b *Builder) Node(id NodeID) *Node {
	return b.resolve(id)
}

func (b *Builder) resolve(id NodeID) *Node {
	if id >= b.base {
		idx := int(id - b.base)
		if idx < len(b.staged) {
			return b.staged[idx]
		}
		return nil
	}
	return b.g.Node(id)
}

// Add stages a new node. See Graph.Add for the validation performed.
func (b *Builder) Add(kind Kind, inputs []Value, attrs Attributes) (*Node, error) {
	b.g.mu.RLock()
	defer b.g.mu.RUnlock()
	return b.add(kind, inputs, attrs)
}

func (b *Builder) add(kind Kind, inputs []Value, attrs Attributes) (*Node, error) {
	b.checkOpen()
	spec, found := LookupKind(kind)
	if !found {
		return nil, Validationf(kind, "", -1, "kind %q is not registered", kind)
	}
	if spec.Arity == VariadicArity {
		if len(inputs) < spec.MinArity {
			return nil, &ValidationError{Kind: kind, Input: -1, Err: ErrArityMismatch,
				Message: fmt.Sprintf("expected at least %d inputs, got %d", spec.MinArity, len(inputs))}
		}
	} else if len(inputs) != spec.Arity {
		return nil, &ValidationError{Kind: kind, Input: -1, Err: ErrArityMismatch,
			Message: fmt.Sprintf("expected %d inputs, got %d", spec.Arity, len(inputs))}
	}
	for i, v := range inputs {
		arg := b.resolve(v.Node)
		if arg == nil {
			return nil, Validationf(kind, "", i, "input references unknown node #%d", v.Node)
		}
		if v.Output < 0 || v.Output >= len(arg.outputs) {
			return nil, Validationf(kind, "", i, "input references output #%d of %s, which has %d outputs",
				v.Output, arg.name, len(arg.outputs))
		}
	}

	id := b.base + NodeID(len(b.staged))
	n := &Node{
		graph:  b.g,
		id:     id,
		name:   nodeName(kind, id),
		kind:   kind,
		spec:   spec,
		inputs: slices.Clone(inputs),
		attrs:  attrs,
	}
	outputs, relevant, err := infer(n, b.resolve)
	if err != nil {
		return nil, err
	}
	n.outputs, n.shapeRelevant = outputs, relevant
	b.staged = append(b.staged, n)
	return n, nil
}

// Commit inserts all staged nodes in the graph, and returns them. The builder can't be used afterward.
func (b *Builder) Commit() []*Node {
	b.g.mu.Lock()
	defer b.g.mu.Unlock()
	return b.commitLocked()
}

func (b *Builder) commitLocked() []*Node {
	b.checkOpen()
	if b.version != b.g.version || NodeID(len(b.g.nodes)) != b.base {
		panicInvariantf(nil, "graph %q changed while a builder was open", b.g.name)
	}
	for _, n := range b.staged {
		b.g.insertLocked(n)
	}
	b.g.version++
	b.committed = true
	return b.staged
}

func (b *Builder) checkOpen() {
	if b.committed {
		panicInvariantf(nil, "builder for graph %q used after Commit", b.g.name)
	}
}
