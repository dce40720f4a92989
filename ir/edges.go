package ir

// EdgeClass tells consumers (schedulers, graph splitters, renderers) how an argument edge should be treated.
type EdgeClass int

const (
	// EdgeDirect is a regular edge between nodes close in the dependency structure.
	EdgeDirect EdgeClass = iota

	// EdgeCloned is an edge from a leaf node (parameter or constant): consumers can duplicate the source next to
	// each user instead of keeping a long edge.
	EdgeCloned

	// EdgeLongRange is an edge whose jump distance exceeds the configured maximum: it should be treated as a
	// long-range dependency (e.g. a send/receive pair when splitting the graph).
	EdgeLongRange
)

// DefaultMaxJumpDistance is the jump distance above which an edge is classified as EdgeLongRange by default.
const DefaultMaxJumpDistance = 20

// String implements fmt.Stringer.
func (c EdgeClass) String() string {
	switch c {
	case EdgeDirect:
		return "direct"
	case EdgeCloned:
		return "cloned"
	case EdgeLongRange:
		return "long_range"
	default:
		return "invalid"
	}
}

// Edge is one argument edge of a graph, with its jump distance and classification.
type Edge struct {
	Source       Value
	Target       NodeID
	Input        int
	JumpDistance int
	Class        EdgeClass
}

// ClassifyEdges lists every argument edge of g, in topological order of the target nodes, classified using
// heights (as returned by ComputeHeights on the same, unchanged, graph).
//
// Edges from leaf kinds are EdgeCloned, edges with a jump distance larger than maxJumpDistance are
// EdgeLongRange, and everything else is EdgeDirect.
func ClassifyEdges(g *Graph, heights *Heights, maxJumpDistance int) []Edge {
	sorted := TopologicalSort(g)
	var edges []Edge
	for _, n := range sorted {
		for i, v := range n.inputs {
			arg := g.Node(v.Node)
			edge := Edge{
				Source:       v,
				Target:       n.id,
				Input:        i,
				JumpDistance: heights.JumpDistance(v.Node, n.id),
			}
			switch {
			case arg.spec.IsLeaf():
				edge.Class = EdgeCloned
			case edge.JumpDistance > maxJumpDistance:
				edge.Class = EdgeLongRange
			default:
				edge.Class = EdgeDirect
			}
			edges = append(edges, edge)
		}
	}
	return edges
}
