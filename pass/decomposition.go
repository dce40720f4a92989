package pass

import (
	"slices"

	"github.com/gomlx/graphir/ir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// FusedOpDecompositionName is the registered name of the FusedOpDecomposition pass.
const FusedOpDecompositionName = "fused-op-decomposition"

func init() {
	RegisterFactory(FusedOpDecompositionName, func(*Config) Pass { return NewFusedOpDecomposition() })
}

// FusedOpDecomposition lowers fused nodes: their decomposition is built and committed, and then spliced in
// place of the fused node.
//
// Nodes whose decomposition returns ir.ErrNotDecomposable (typically because they need static shapes) are left
// untouched.
type FusedOpDecomposition struct {
	Base
}

var _ NodePass = (*FusedOpDecomposition)(nil)

// NewFusedOpDecomposition creates the pass.
func NewFusedOpDecomposition() *FusedOpDecomposition {
	return &FusedOpDecomposition{Base: MakeBase(ChangeFunctionState, RegularFusions)}
}

// Name implements Pass.
func (p *FusedOpDecomposition) Name() string { return FusedOpDecompositionName }

// RunOnNode implements NodePass.
func (p *FusedOpDecomposition) RunOnNode(n *ir.Node) (bool, error) {
	spec := n.Spec()
	if !spec.IsFused() {
		return false, nil
	}
	g := n.Graph()
	b := g.NewBuilder()
	outputs, err := spec.Decompose(n, b)
	if err != nil {
		if errors.Is(err, ir.ErrNotDecomposable) {
			klog.V(3).InfoS("fused node not decomposable yet", "node", n.Name(), "reason", err)
			return false, nil
		}
		return false, errors.WithMessagef(err, "decomposing %s", n.Name())
	}
	committed := b.Commit()
	if err := g.ReplaceOutputs(n, outputs); err != nil {
		// Drop the committed decomposition: nodes are removed users first.
		for _, staged := range slices.Backward(committed) {
			if staged.HasUsers() {
				continue
			}
			if removeErr := g.Remove(staged); removeErr != nil {
				klog.Warningf("failed to remove unused node %s of the decomposition of %s: %v",
					staged.Name(), n.Name(), removeErr)
			}
		}
		return false, errors.WithMessagef(err, "splicing the decomposition of %s", n.Name())
	}
	klog.V(3).InfoS("decomposed fused node", "node", n.Name(), "kind", n.Kind(), "new_nodes", len(committed))
	return true, nil
}
