// Package ops registers the built-in operation kinds of the ir package, and provides typed constructors for them.
//
// Importing the package registers the kinds. Each constructor takes an ir.Adder (an *ir.Graph or an
// *ir.Builder), so the same code builds nodes directly into a graph or stages them for a rewrite:
//
//	g := ir.NewGraph("main")
//	x, _ := ops.Parameter(g, dtypes.Float32, ir.MakePartialShape(2, 1, 3))
//	y, _ := ops.Squeeze(g, x.Value(), 1)
//	_, _ = ops.Result(g, y.Value())
package ops

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/graphir/ir"
)

// Kinds registered by this package.
const (
	KindParameter         ir.Kind = "Parameter"
	KindConstant          ir.Kind = "Constant"
	KindResult            ir.Kind = "Result"
	KindAdd               ir.Kind = "Add"
	KindMultiply          ir.Kind = "Multiply"
	KindConcat            ir.Kind = "Concat"
	KindShapeOf           ir.Kind = "ShapeOf"
	KindReshape           ir.Kind = "Reshape"
	KindSqueeze           ir.Kind = "Squeeze"
	KindUnsqueeze         ir.Kind = "Unsqueeze"
	KindPriorBoxClustered ir.Kind = "PriorBoxClustered"
)

func init() {
	registerLeaves()
	registerBinaryOps()
	registerConcat()
	registerShapeOps()
	registerSqueezeOps()
	registerPriorBoxClustered()
}

// constantInputs returns the constant values fed to every input of n, or false if any of them is not a
// compile-time constant.
func constantInputs(n *ir.Node) ([]*tensors.Tensor, bool) {
	values := make([]*tensors.Tensor, n.NumInputs())
	for i := range values {
		if n.Input(i).Output != 0 {
			return nil, false
		}
		value, ok := n.Argument(i).ConstantValue()
		if !ok {
			return nil, false
		}
		values[i] = value
	}
	return values, true
}

// normalizeAxis converts a negative axis to its positive counterpart for the given rank, and reports whether it
// is within range.
func normalizeAxis(axis, rank int) (int, bool) {
	if axis < 0 {
		axis += rank
	}
	return axis, axis >= 0 && axis < rank
}
