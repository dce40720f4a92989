package pass

import (
	"github.com/gomlx/graphir/ir"
	"github.com/gomlx/graphir/ops"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ConstantFoldingName is the registered name of the ConstantFolding pass.
const ConstantFoldingName = "constant-folding"

func init() {
	RegisterFactory(ConstantFoldingName, func(config *Config) Pass {
		return NewConstantFolding(config.FoldOnlyShapeRelevant)
	})
}

// ConstantFolding replaces nodes whose kind can be folded (see ir.KindSpec.Fold) by an ops.Constant holding the
// folded value. Users are re-inferred, so output shapes that depend on the folded values become static.
type ConstantFolding struct {
	Base
	onlyShapeRelevant bool
}

var _ NodePass = (*ConstantFolding)(nil)

// NewConstantFolding creates the pass. If onlyShapeRelevant is set, only nodes feeding some user input declared
// as relevant to its shape are folded.
func NewConstantFolding(onlyShapeRelevant bool) *ConstantFolding {
	return &ConstantFolding{Base: MakeBase(ChangeFunctionState), onlyShapeRelevant: onlyShapeRelevant}
}

// Name implements Pass.
func (p *ConstantFolding) Name() string { return ConstantFoldingName }

// RunOnNode implements NodePass.
func (p *ConstantFolding) RunOnNode(n *ir.Node) (bool, error) {
	spec := n.Spec()
	if spec.Fold == nil || spec.Value != nil || n.NumOutputs() != 1 || !n.HasUsers() {
		return false, nil
	}
	if p.onlyShapeRelevant && !feedsShape(n) {
		return false, nil
	}
	value, ok := spec.Fold(n)
	if !ok {
		return false, nil
	}
	g := n.Graph()
	constant, err := ops.Constant(g, value)
	if err != nil {
		return false, errors.WithMessagef(err, "creating constant to fold %s", n.Name())
	}
	if err := g.Replace(n, constant); err != nil {
		if removeErr := g.Remove(constant); removeErr != nil {
			klog.Warningf("failed to remove unused constant %s: %v", constant.Name(), removeErr)
		}
		return false, errors.WithMessagef(err, "replacing %s by its folded value", n.Name())
	}
	klog.V(3).InfoS("folded node", "node", n.Name(), "constant", constant.Name(), "shape", constant.OutputShape(0))
	return true, nil
}

// feedsShape returns whether some user of n declares the input fed by n as relevant to its output shape.
func feedsShape(n *ir.Node) bool {
	g := n.Graph()
	for _, use := range n.Users() {
		if g.Node(use.User).InputRelevantToShape(use.Input) {
			return true
		}
	}
	return false
}
