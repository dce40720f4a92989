package ir

import (
	"slices"
)

// Heights is the result of the reverse-topological reachability depth analysis of a graph: for every node, and
// every sink reachable from it, the longest distance (in edges) from the node to that sink.
//
// It's a best-effort heuristic used to tell how "far apart" two directly connected nodes are in the overall
// dependency structure. See JumpDistance.
type Heights struct {
	sinks []NodeID
	maps  map[NodeID]map[NodeID]int
}

// ComputeHeights seeds a height of 0 at every sink (a node without users, or of a terminal kind), and then,
// visiting the nodes in reverse topological order, absorbs the height map of each user into the node's map,
// taking for every sink the maximum of the current height and the user's height + 1.
//
// It never changes the graph. The cost is O(nodes × sinks).
func ComputeHeights(g *Graph) *Heights {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sorted, err := sortNodes(g.liveNodes())
	if err != nil {
		panic(err)
	}

	h := &Heights{maps: make(map[NodeID]map[NodeID]int, len(sorted))}
	for _, n := range g.liveNodes() {
		heights := make(map[NodeID]int)
		if isSink(n) {
			heights[n.id] = 0
			h.sinks = append(h.sinks, n.id)
		}
		h.maps[n.id] = heights
	}
	for ii := len(sorted) - 1; ii >= 0; ii-- {
		n := sorted[ii]
		for _, use := range n.users {
			absorbHeights(h.maps[n.id], h.maps[use.User])
		}
	}
	return h
}

func absorbHeights(into, from map[NodeID]int) {
	for sink, height := range from {
		if current, found := into[sink]; !found || height+1 > current {
			into[sink] = height + 1
		}
	}
}

// Sinks returns the ids of the sinks found, in insertion order.
func (h *Heights) Sinks() []NodeID {
	return slices.Clone(h.sinks)
}

// Height returns the recorded height of node with respect to sink, and whether sink is reachable from node.
func (h *Heights) Height(node, sink NodeID) (int, bool) {
	height, found := h.maps[node][sink]
	return height, found
}

// HeightMap returns a copy of the heights of node, indexed by sink.
func (h *Heights) HeightMap(node NodeID) map[NodeID]int {
	heights := make(map[NodeID]int, len(h.maps[node]))
	for sink, height := range h.maps[node] {
		heights[sink] = height
	}
	return heights
}

// JumpDistance returns the maximum, over the sinks reachable from both from and to, of the absolute difference
// between their heights. It is 0 if no sink is reachable from both.
//
// It is meant for an argument node (from) and one of its users (to): a directly connected pair far apart in the
// dependency structure has a large jump distance.
func (h *Heights) JumpDistance(from, to NodeID) int {
	result := 0
	target := h.maps[to]
	for sink, height := range h.maps[from] {
		other, found := target[sink]
		if !found {
			continue
		}
		diff := other - height
		if diff < 0 {
			diff = -diff
		}
		result = max(result, diff)
	}
	return result
}
