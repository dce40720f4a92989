package ir

import (
	"fmt"

	"github.com/pkg/errors"
)

// Validate checks the structural invariants of the graph:
//
//   - Every input references a live node and an existing output.
//   - The user index of every node matches the argument edges.
//   - The graph is acyclic.
//   - Every node has the number of outputs of its kind, and re-running its inference rule reproduces its
//     outputs (they are not stale).
//
// It returns an error wrapping an *InvariantError describing the first violation found, or nil.
// A broken invariant is always a bug in a pass or an inference rule.
func (g *Graph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	violation := func(n *Node, format string, args ...any) error {
		return errors.WithStack(&InvariantError{Kind: n.kind, Node: n.name, Message: fmt.Sprintf(format, args...)})
	}

	live := g.liveNodes()
	if len(live) != g.numLive {
		return errors.WithStack(&InvariantError{
			Message: fmt.Sprintf("graph %q counts %d live nodes, found %d", g.name, g.numLive, len(live))})
	}
	for _, n := range live {
		if n.graph != g || n.removed {
			return violation(n, "node in arena doesn't belong to graph %q", g.name)
		}
		if len(n.outputs) != n.spec.numOutputs() {
			return violation(n, "has %d outputs, kind declares %d", len(n.outputs), n.spec.numOutputs())
		}
		for i, v := range n.inputs {
			arg := g.Node(v.Node)
			if arg == nil {
				return violation(n, "input #%d references missing node #%d", i, v.Node)
			}
			if v.Output < 0 || v.Output >= len(arg.outputs) {
				return violation(n, "input #%d references output #%d of %s out of range", i, v.Output, arg.name)
			}
			if countUses(arg.users, Use{User: n.id, Input: i, Output: v.Output}) != 1 {
				return violation(n, "input #%d is not registered exactly once in the user index of %s", i, arg.name)
			}
		}
		for _, use := range n.users {
			user := g.Node(use.User)
			if user == nil || use.Input >= len(user.inputs) ||
				user.inputs[use.Input] != (Value{Node: n.id, Output: use.Output}) {
				return violation(n, "user index entry %+v doesn't match an argument edge", use)
			}
		}
	}

	if _, err := sortNodes(live); err != nil {
		return err
	}

	for _, n := range live {
		outputs, _, err := infer(n, g.Node)
		if err != nil {
			return errors.WithMessagef(violation(n, "no longer passes validation: %v", err), "graph %q", g.name)
		}
		for i, output := range outputs {
			if output.DType != n.outputs[i].DType || !output.Shape.Equal(n.outputs[i].Shape) {
				return violation(n, "output #%d is stale: stored %s %s, inferred %s %s", i,
					dtypeString(n.outputs[i].DType), n.outputs[i].Shape, dtypeString(output.DType), output.Shape)
			}
		}
	}
	return nil
}

func countUses(uses []Use, target Use) int {
	count := 0
	for _, use := range uses {
		if use == target {
			count++
		}
	}
	return count
}
