package pass

import (
	"slices"

	"github.com/gomlx/graphir/ir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DeadNodeEliminationName is the registered name of the DeadNodeElimination pass.
const DeadNodeEliminationName = "dead-node-elimination"

func init() {
	RegisterFactory(DeadNodeEliminationName, func(*Config) Pass { return NewDeadNodeElimination() })
}

// DeadNodeElimination removes the nodes whose outputs are not used, except function results and parameters.
type DeadNodeElimination struct {
	Base
}

var _ FunctionPass = (*DeadNodeElimination)(nil)

// NewDeadNodeElimination creates the pass.
func NewDeadNodeElimination() *DeadNodeElimination {
	return &DeadNodeElimination{Base: MakeBase(ChangeFunctionState)}
}

// Name implements Pass.
func (p *DeadNodeElimination) Name() string { return DeadNodeEliminationName }

// RunOnFunction implements FunctionPass. Nodes are visited in reverse topological order, so chains of dead
// nodes are removed in one go.
func (p *DeadNodeElimination) RunOnFunction(g *ir.Graph) (bool, error) {
	var removed int
	for _, n := range slices.Backward(ir.TopologicalSort(g)) {
		spec := n.Spec()
		if spec.Terminal || spec.Parameter || n.HasUsers() {
			continue
		}
		if err := g.Remove(n); err != nil {
			return removed > 0, errors.WithMessagef(err, "removing dead node %s", n.Name())
		}
		removed++
	}
	if removed > 0 {
		klog.V(3).InfoS("removed dead nodes", "function", g.Name(), "count", removed)
	}
	return removed > 0, nil
}
