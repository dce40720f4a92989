package ops

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/graphir/internal/tensorutil"
	"github.com/gomlx/graphir/ir"
)

// binaryOp holds the scalar functions used to fold a standard elementwise binary operation.
type binaryOp struct {
	kind    ir.Kind
	intFn   func(a, b int64) int64
	floatFn func(a, b float32) float32
}

var binaryOps = []binaryOp{
	{kind: KindAdd, intFn: func(a, b int64) int64 { return a + b }, floatFn: func(a, b float32) float32 { return a + b }},
	{kind: KindMultiply, intFn: func(a, b int64) int64 { return a * b }, floatFn: func(a, b float32) float32 { return a * b }},
}

func registerBinaryOps() {
	for _, op := range binaryOps {
		ir.RegisterKind(ir.KindSpec{
			Kind:  op.kind,
			Arity: 2,
			Infer: inferElementwise,
			Fold:  op.fold,
		})
	}
}

// inferElementwise requires both operands to have compatible element types and shapes, no implicit broadcasting.
func inferElementwise(ctx *ir.InferContext) error {
	dtype, ok := ir.MergeDTypes(ctx.InputDType(0), ctx.InputDType(1))
	if !ok {
		return ctx.Errorf(1, "element type %s doesn't match %s of the first operand",
			ctx.InputDType(1), ctx.InputDType(0))
	}
	shape, err := ir.MergeShapes(ctx.InputShape(0), ctx.InputShape(1))
	if err != nil {
		return ctx.Errorf(1, "operand shapes are not compatible: %v", err)
	}
	ctx.SetOutput(0, dtype, shape)
	return nil
}

// fold computes the operation when both operands are Int64 or Float32 constants of the same shape.
func (op binaryOp) fold(n *ir.Node) (*tensors.Tensor, bool) {
	values, ok := constantInputs(n)
	if !ok {
		return nil, false
	}
	lhs, rhs := values[0], values[1]
	if !lhs.Shape().Equal(rhs.Shape()) {
		return nil, false
	}
	dims := lhs.Shape().Dimensions
	switch lhs.Shape().DType {
	case dtypes.Int64:
		a, errA := tensorutil.Int64s(lhs)
		b, errB := tensorutil.Int64s(rhs)
		if errA != nil || errB != nil {
			return nil, false
		}
		result := make([]int64, len(a))
		for ii := range a {
			result[ii] = op.intFn(a[ii], b[ii])
		}
		return tensors.FromFlatDataAndDimensions(result, dims...), true
	case dtypes.Float32:
		a, errA := tensorutil.Float32s(lhs)
		b, errB := tensorutil.Float32s(rhs)
		if errA != nil || errB != nil {
			return nil, false
		}
		result := make([]float32, len(a))
		for ii := range a {
			result[ii] = op.floatFn(a[ii], b[ii])
		}
		return tensors.FromFlatDataAndDimensions(result, dims...), true
	default:
		return nil, false
	}
}

// Add adds the elementwise sum of x and y, which must have compatible types and shapes.
func Add(adder ir.Adder, x, y ir.Value) (*ir.Node, error) {
	return adder.Add(KindAdd, []ir.Value{x, y}, nil)
}

// Multiply adds the elementwise product of x and y, which must have compatible types and shapes.
func Multiply(adder ir.Adder, x, y ir.Value) (*ir.Node, error) {
	return adder.Add(KindMultiply, []ir.Value{x, y}, nil)
}
