package ir

import (
	"strings"

	"github.com/pkg/errors"
)

// TopologicalSort returns the live nodes of g ordered so that every node comes after all of its arguments.
//
// The order is deterministic: nodes are seeded in insertion order and users are visited in user-index order, so
// the same graph built the same way always sorts the same way.
//
// A cycle is an invariant violation, and it panics.
func TopologicalSort(g *Graph) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sorted, err := sortNodes(g.liveNodes())
	if err != nil {
		panic(err)
	}
	return sorted
}

// SortNodes sorts a subset of the nodes of a graph in dependency order, considering only the edges between
// nodes of the subset. Ties keep the order of the given slice.
//
// A cycle is an invariant violation, and it panics.
func SortNodes(nodes []*Node) []*Node {
	if len(nodes) == 0 {
		return nil
	}
	g := nodes[0].graph
	g.mu.RLock()
	defer g.mu.RUnlock()
	sorted, err := sortNodes(nodes)
	if err != nil {
		panic(err)
	}
	return sorted
}

// sortNodes implements Kahn's algorithm over the given nodes. It returns an *InvariantError (not panicked) if
// there is a cycle.
func sortNodes(nodes []*Node) ([]*Node, error) {
	inSet := make(map[NodeID]*Node, len(nodes))
	for _, n := range nodes {
		inSet[n.id] = n
	}

	// Count pending argument edges within the set, one per input (a node feeding two inputs counts twice).
	pending := make(map[NodeID]int, len(nodes))
	queue := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		count := 0
		for _, v := range n.inputs {
			if _, found := inSet[v.Node]; found {
				count++
			}
		}
		pending[n.id] = count
		if count == 0 {
			queue = append(queue, n)
		}
	}

	for head := 0; head < len(queue); head++ {
		n := queue[head]
		for _, use := range n.users {
			user, found := inSet[use.User]
			if !found {
				continue
			}
			pending[user.id]--
			if pending[user.id] == 0 {
				queue = append(queue, user)
			}
		}
	}

	if len(queue) != len(nodes) {
		var stuck []string
		for _, n := range nodes {
			if pending[n.id] > 0 {
				stuck = append(stuck, n.name)
			}
		}
		return nil, errors.WithStack(&InvariantError{
			Message: "cycle detected among nodes " + strings.Join(stuck, ", "),
		})
	}
	return queue, nil
}
