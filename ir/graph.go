package ir

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Graph is a function: an arena of nodes connected by argument edges, always acyclic.
//
// The graph owns its nodes. Nodes reference their arguments by NodeID (see Value), and each node keeps a derived
// index of its users, which is kept consistent with the argument edges by every graph operation.
//
// Mutation is meant to be sequential (one pass at a time). Whole-graph readers (Nodes, TopologicalSort,
// ComputeHeights, Validate) take a read lock, and every mutation a write lock, so such readers never observe a
// half applied rewrite.
type Graph struct {
	mu      sync.RWMutex
	name    string
	nodes   []*Node
	numLive int

	// version is incremented at every structural change, it's used to detect stale builders.
	version uint64
}

// Adder is implemented by Graph and Builder: anything nodes can be added to.
type Adder interface {
	Add(kind Kind, inputs []Value, attrs Attributes) (*Node, error)
}

// NewGraph creates an empty graph with the given function name.
func NewGraph(name string) *Graph {
	return &Graph{name: name}
}

// Name of the function represented by the graph.
func (g *Graph) Name() string { return g.name }

// Node returns the live node with the given id, or nil if there is no such node (or it has been removed).
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// MustNode is like Node, but it panics with an invariant violation if the node doesn't exist.
func (g *Graph) MustNode(id NodeID) *Node {
	n := g.Node(id)
	if n == nil {
		panicInvariantf(nil, "graph %q has no node #%d", g.name, id)
	}
	return n
}

// NumNodes returns the number of live nodes.
func (g *Graph) NumNodes() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.numLive
}

// Nodes returns the live nodes in insertion (id) order.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.liveNodes()
}

func (g *Graph) liveNodes() []*Node {
	nodes := make([]*Node, 0, g.numLive)
	for _, n := range g.nodes {
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Parameters returns the nodes whose kind is a function input, in insertion order.
func (g *Graph) Parameters() []*Node {
	return g.filter(func(n *Node) bool { return n.spec.Parameter })
}

// Results returns the nodes whose kind is terminal (function results), in insertion order.
func (g *Graph) Results() []*Node {
	return g.filter(func(n *Node) bool { return n.spec.Terminal })
}

// Sinks returns the nodes without users or of a terminal kind, in insertion order.
func (g *Graph) Sinks() []*Node {
	return g.filter(isSink)
}

func isSink(n *Node) bool {
	return n.spec.Terminal || len(n.users) == 0
}

func (g *Graph) filter(fn func(n *Node) bool) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var selected []*Node
	for _, n := range g.nodes {
		if n != nil && fn(n) {
			selected = append(selected, n)
		}
	}
	return selected
}

// IsStatic returns whether every output of every node has a static shape.
func (g *Graph) IsStatic() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, n := range g.nodes {
		if n != nil && !n.IsStatic() {
			return false
		}
	}
	return true
}

// Add creates a new node of the given kind bound to the inputs, runs its inference rule and, if it succeeds,
// inserts it in the graph.
//
// If the inputs or attributes are not valid for the kind, it returns a *ValidationError and the graph is left
// unchanged.
func (g *Graph) Add(kind Kind, inputs []Value, attrs Attributes) (*Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := g.newBuilder()
	n, err := b.add(kind, inputs, attrs)
	if err != nil {
		return nil, err
	}
	b.commitLocked()
	return n, nil
}

// checkLive returns an error if n is not a live node of g.
func (g *Graph) checkLive(n *Node) error {
	if n == nil {
		return errors.New("nil node")
	}
	if n.graph != g {
		return errors.Errorf("node %s belongs to a different graph", n.name)
	}
	if n.removed || g.Node(n.id) != n {
		return errors.Errorf("node %s is not part of graph %q (removed or not committed)", n.name, g.name)
	}
	return nil
}

// insertLocked adds a fully inferred node to the arena and registers it in its arguments' user index.
func (g *Graph) insertLocked(n *Node) {
	if int(n.id) != len(g.nodes) {
		panicInvariantf(n, "node id %d doesn't match the next arena slot %d", n.id, len(g.nodes))
	}
	g.nodes = append(g.nodes, n)
	g.numLive++
	for i, v := range n.inputs {
		g.nodes[v.Node].addUse(Use{User: n.id, Input: i, Output: v.Output})
	}
}

func nodeName(kind Kind, id NodeID) string {
	return fmt.Sprintf("%s_%d", kind, id)
}
