package pass

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/graphir/ir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LivenessName is the registered name of the Liveness pass.
const LivenessName = "liveness"

func init() {
	RegisterFactory(LivenessName, func(*Config) Pass { return NewLiveness() })
}

// Liveness computes, for each function executed in topological order, the last use of every value and the peak
// number of bytes held by live values. It stores a LivenessAnalysis per function in the State.
//
// It requires static shapes to size the values.
type Liveness struct {
	Base
}

var _ CallGraphPass = (*Liveness)(nil)

// NewLiveness creates the pass.
func NewLiveness() *Liveness {
	return &Liveness{Base: MakeBase(RequireStaticShape)}
}

// Name implements Pass.
func (p *Liveness) Name() string { return LivenessName }

// RunOnCallGraph implements CallGraphPass.
func (p *Liveness) RunOnCallGraph(nodes []*ir.Node) (bool, error) {
	if len(nodes) == 0 {
		return false, nil
	}
	g := nodes[0].Graph()
	analysis := &LivenessAnalysis{
		Function: g.Name(),
		Order:    make([]ir.NodeID, len(nodes)),
		LastUse:  make(map[ir.NodeID]int, len(nodes)),
	}
	position := make(map[ir.NodeID]int, len(nodes))
	for pos, n := range nodes {
		analysis.Order[pos] = n.ID()
		position[n.ID()] = pos
	}

	// Free lists: values whose last use is at each position.
	sizes := make(map[ir.NodeID]int64, len(nodes))
	dying := make([][]ir.NodeID, len(nodes)+1)
	for pos, n := range nodes {
		size, err := valueBytes(n)
		if err != nil {
			return false, err
		}
		sizes[n.ID()] = size
		lastUse := pos
		if n.Spec().Terminal {
			lastUse = len(nodes)
		} else {
			for _, use := range n.Users() {
				lastUse = max(lastUse, position[use.User])
			}
		}
		analysis.LastUse[n.ID()] = lastUse
		dying[lastUse] = append(dying[lastUse], n.ID())
	}

	var live int64
	for pos, n := range nodes {
		live += sizes[n.ID()]
		if live > analysis.PeakBytes {
			analysis.PeakBytes = live
			analysis.PeakPosition = pos
		}
		for _, id := range dying[pos] {
			live -= sizes[id]
		}
	}
	p.State().SetLivenessAnalysis(analysis)
	klog.V(3).InfoS("computed liveness", "function", g.Name(), "peak_bytes", analysis.PeakBytes,
		"peak_node", nodes[analysis.PeakPosition].Name())
	return false, nil
}

// valueBytes returns the total size in bytes of the outputs of n.
func valueBytes(n *ir.Node) (int64, error) {
	var total int64
	for i := range n.NumOutputs() {
		shape, err := n.OutputStaticShape(i)
		if err != nil {
			return 0, errors.Wrapf(ErrStaticShapeRequired, "%v", err)
		}
		if shape.DType == ir.AnyDType {
			return 0, errors.Wrapf(ErrUnsizedValue, "output #%d of %s has element type any", i, n.Name())
		}
		var size int
		err = exceptions.TryCatch[error](func() { size = shape.DType.SizeForDimensions(shape.Dimensions...) })
		if err != nil {
			return 0, errors.Wrapf(ErrUnsizedValue, "output #%d of %s: %v", i, n.Name(), err)
		}
		total += int64(size)
	}
	return total, nil
}
