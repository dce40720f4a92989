package ir

import (
	"slices"

	"github.com/gomlx/gomlx/pkg/support/sets"
	"github.com/pkg/errors"
)

// This file implements the structural rewrites used by passes. All of them re-run the inference rules of every
// affected node, and either fully apply or leave the graph exactly as it was.

// SetArgument rebinds input #i of n to the value v, and re-infers n and everything downstream of it.
//
// It panics with an invariant violation if the new edge would close a cycle. If re-inference fails, the edge
// is restored and the *ValidationError is returned.
func (g *Graph) SetArgument(n *Node, i int, v Value) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkLive(n); err != nil {
		return errors.WithMessage(err, "Graph.SetArgument")
	}
	if i < 0 || i >= len(n.inputs) {
		return Validationf(n.kind, n.name, i, "input index out of range, node has %d inputs", len(n.inputs))
	}
	if err := g.checkValue(n.kind, n.name, i, v); err != nil {
		return err
	}
	if g.reaches(n.id, v.Node) {
		panicInvariantf(n, "binding input #%d to %v would create a cycle", i, v)
	}
	previous := n.inputs[i]
	g.rebind(n, i, v)
	if err := g.reinferLocked([]*Node{n}); err != nil {
		g.rebind(n, i, previous)
		return err
	}
	g.version++
	return nil
}

// SetAttributes replaces the attributes of n, and re-infers n and everything downstream of it.
// If re-inference fails, the previous attributes are restored and the *ValidationError is returned.
func (g *Graph) SetAttributes(n *Node, attrs Attributes) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkLive(n); err != nil {
		return errors.WithMessage(err, "Graph.SetAttributes")
	}
	previous := n.attrs
	n.attrs = attrs
	if err := g.reinferLocked([]*Node{n}); err != nil {
		n.attrs = previous
		return err
	}
	g.version++
	return nil
}

// Replace redirects every user of an output of old to the corresponding output of replacement, and removes old
// from the graph once it has no users left. See ReplaceOutputs.
func (g *Graph) Replace(old, replacement *Node) error {
	if old.NumOutputs() != replacement.NumOutputs() {
		panicInvariantf(old, "replacement %s has %d outputs, expected %d",
			replacement.name, replacement.NumOutputs(), old.NumOutputs())
	}
	values := make([]Value, replacement.NumOutputs())
	for i := range values {
		values[i] = replacement.Output(i)
	}
	return g.ReplaceOutputs(old, values)
}

// ReplaceOutputs is the splice operation: every user edge pointing to output #i of old is redirected to
// replacements[i], affected users are re-inferred, and old is removed from the graph if it has no users left.
//
// It is atomic: if any user fails re-inference, all edges are restored and the *ValidationError is returned.
// It panics with an invariant violation if len(replacements) differs from the number of outputs of old, or
// if a redirected edge would close a cycle (a replacement depending on a user of old).
func (g *Graph) ReplaceOutputs(old *Node, replacements []Value) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkLive(old); err != nil {
		return errors.WithMessage(err, "Graph.ReplaceOutputs")
	}
	if len(replacements) != len(old.outputs) {
		panicInvariantf(old, "splice with %d replacement values for %d outputs", len(replacements), len(old.outputs))
	}
	for i, v := range replacements {
		if err := g.checkValue(old.kind, old.name, -1, v); err != nil {
			return errors.WithMessagef(err, "replacement for output #%d", i)
		}
		if v.Node == old.id {
			panicInvariantf(old, "replacement for output #%d is the node itself", i)
		}
	}

	// Users of old that are ancestors of a replacement would be closing a cycle.
	ancestors := g.ancestors(replacements)
	uses := slices.Clone(old.users)
	for _, use := range uses {
		if ancestors.Has(use.User) {
			panicInvariantf(old, "redirecting user %s to the replacement would create a cycle",
				g.nodes[use.User].name)
		}
	}

	affected := make([]*Node, 0, len(uses))
	seen := sets.Make[NodeID]()
	for _, use := range uses {
		user := g.nodes[use.User]
		g.rebind(user, use.Input, replacements[use.Output])
		if !seen.Has(user.id) {
			seen.Insert(user.id)
			affected = append(affected, user)
		}
	}
	if err := g.reinferLocked(affected); err != nil {
		for _, use := range uses {
			g.rebind(g.nodes[use.User], use.Input, Value{Node: old.id, Output: use.Output})
		}
		// Restore the original order of the user index.
		old.users = uses
		return err
	}
	if len(old.users) == 0 {
		g.removeLocked(old)
	}
	g.version++
	return nil
}

// Remove deletes n from the graph. It fails if n still has users.
func (g *Graph) Remove(n *Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkLive(n); err != nil {
		return errors.WithMessage(err, "Graph.Remove")
	}
	if len(n.users) > 0 {
		return Validationf(n.kind, n.name, -1, "cannot remove node with %d users", len(n.users))
	}
	g.removeLocked(n)
	g.version++
	return nil
}

func (g *Graph) removeLocked(n *Node) {
	for i, v := range n.inputs {
		g.nodes[v.Node].removeUse(Use{User: n.id, Input: i, Output: v.Output})
	}
	n.removed = true
	g.nodes[n.id] = nil
	g.numLive--
}

// rebind changes input #i of n to v, keeping the user indices consistent.
func (g *Graph) rebind(n *Node, i int, v Value) {
	previous := n.inputs[i]
	g.nodes[previous.Node].removeUse(Use{User: n.id, Input: i, Output: previous.Output})
	n.inputs[i] = v
	g.nodes[v.Node].addUse(Use{User: n.id, Input: i, Output: v.Output})
}

func (g *Graph) checkValue(kind Kind, name string, input int, v Value) error {
	arg := g.Node(v.Node)
	if arg == nil {
		return Validationf(kind, name, input, "value %v references unknown node", v)
	}
	if v.Output < 0 || v.Output >= len(arg.outputs) {
		return Validationf(kind, name, input, "value %v references output out of range, %s has %d outputs",
			v, arg.name, len(arg.outputs))
	}
	return nil
}

// reaches returns whether target is from (or downstream of it), following user edges.
func (g *Graph) reaches(from, target NodeID) bool {
	if from == target {
		return true
	}
	visited := sets.Make[NodeID]()
	stack := []NodeID{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, use := range g.nodes[id].users {
			if use.User == target {
				return true
			}
			if !visited.Has(use.User) {
				visited.Insert(use.User)
				stack = append(stack, use.User)
			}
		}
	}
	return false
}

// ancestors returns the nodes of the given values, and all nodes they (transitively) depend on.
func (g *Graph) ancestors(values []Value) sets.Set[NodeID] {
	visited := sets.Make[NodeID]()
	stack := make([]NodeID, 0, len(values))
	for _, v := range values {
		if !visited.Has(v.Node) {
			visited.Insert(v.Node)
			stack = append(stack, v.Node)
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, v := range g.nodes[id].inputs {
			if !visited.Has(v.Node) {
				visited.Insert(v.Node)
				stack = append(stack, v.Node)
			}
		}
	}
	return visited
}

// downstream returns roots and every node transitively using them, in topological order.
func (g *Graph) downstream(roots []*Node) []*Node {
	visited := sets.Make[NodeID]()
	var affected []*Node
	stack := make([]*Node, 0, len(roots))
	for _, n := range roots {
		if !visited.Has(n.id) {
			visited.Insert(n.id)
			stack = append(stack, n)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		affected = append(affected, n)
		for _, use := range n.users {
			if !visited.Has(use.User) {
				visited.Insert(use.User)
				stack = append(stack, g.nodes[use.User])
			}
		}
	}
	slices.SortFunc(affected, func(a, b *Node) int { return int(a.id - b.id) })
	sorted, err := sortNodes(affected)
	if err != nil {
		panic(err)
	}
	return sorted
}

// reinferLocked re-runs the inference rules of roots and all their transitive users, in topological order.
// If any fails, all outputs are restored and the error is returned.
func (g *Graph) reinferLocked(roots []*Node) error {
	affected := g.downstream(roots)
	type snapshot struct {
		outputs  []Output
		relevant []bool
	}
	saved := make([]snapshot, len(affected))
	for ii, n := range affected {
		saved[ii] = snapshot{outputs: n.outputs, relevant: n.shapeRelevant}
	}
	for _, n := range affected {
		outputs, relevant, err := infer(n, g.Node)
		if err != nil {
			for jj, m := range affected {
				m.outputs, m.shapeRelevant = saved[jj].outputs, saved[jj].relevant
			}
			return err
		}
		if len(outputs) != len(n.outputs) {
			panicInvariantf(n, "re-inference changed the number of outputs from %d to %d", len(n.outputs), len(outputs))
		}
		n.outputs, n.shapeRelevant = outputs, relevant
	}
	return nil
}
