package pass

import (
	"github.com/gomlx/graphir/ir"
)

// EdgeAnalysis is the result of the "edge-classification" pass for one function.
type EdgeAnalysis struct {
	Function string
	Heights  *ir.Heights
	Edges    []ir.Edge

	// NumLongRange counts the edges classified as ir.EdgeLongRange.
	NumLongRange int
}

// LivenessAnalysis is the result of the "liveness" pass for one function.
type LivenessAnalysis struct {
	Function string

	// Order is the execution order used: the topological order of the nodes.
	Order []ir.NodeID

	// LastUse maps each node to the position (in Order) of its last user. Nodes without users die right after
	// they are computed, and results are kept alive until the end (len(Order)).
	LastUse map[ir.NodeID]int

	// PeakBytes is the maximum, over the execution order, of the bytes held by live values.
	PeakBytes int64

	// PeakPosition is the position in Order where PeakBytes is reached.
	PeakPosition int
}
