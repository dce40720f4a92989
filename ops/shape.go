package ops

import (
	"slices"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/graphir/internal/tensorutil"
	"github.com/gomlx/graphir/ir"
)

// ReshapeAttrs holds the target shape of a Reshape. All dimensions must be concrete.
type ReshapeAttrs struct {
	Dims []int
}

func registerShapeOps() {
	ir.RegisterKind(ir.KindSpec{
		Kind:  KindShapeOf,
		Arity: 1,
		Infer: func(ctx *ir.InferContext) error {
			rank, known := ctx.InputShape(0).Rank()
			if !known {
				rank = ir.DynamicDim
			}
			ctx.SetOutput(0, dtypes.Int64, ir.MakePartialShape(rank))
			return nil
		},
		Fold: func(n *ir.Node) (*tensors.Tensor, bool) {
			arg := n.Argument(0)
			shape := arg.OutputShape(n.Input(0).Output)
			if !shape.IsStatic() {
				return nil, false
			}
			return tensorutil.FromDims(shape.Dimensions()), true
		},
	})

	ir.RegisterKind(ir.KindSpec{
		Kind:  KindReshape,
		Arity: 1,
		Infer: inferReshape,
	})
}

func inferReshape(ctx *ir.InferContext) error {
	attrs, ok := ctx.Attributes().(ReshapeAttrs)
	if !ok {
		return ctx.Errorf(-1, "attributes must be ReshapeAttrs, got %T", ctx.Attributes())
	}
	size := 1
	for axis, dim := range attrs.Dims {
		if dim < 0 {
			return ctx.Errorf(-1, "target dimension %d is %d, it must be concrete", axis, dim)
		}
		size *= dim
	}
	input := ctx.InputShape(0)
	if input.IsStatic() {
		inputSize := 1
		for _, dim := range input.Dimensions() {
			inputSize *= dim
		}
		if inputSize != size {
			return ctx.Errorf(0, "cannot reshape %s (%d elements) to %v (%d elements)", input, inputSize, attrs.Dims, size)
		}
	}
	ctx.SetOutput(0, ctx.InputDType(0), ir.MakePartialShape(attrs.Dims...))
	return nil
}

// ShapeOf adds a node returning the shape of x as a rank-1 Int64 tensor.
func ShapeOf(adder ir.Adder, x ir.Value) (*ir.Node, error) {
	return adder.Add(KindShapeOf, []ir.Value{x}, nil)
}

// Reshape adds a node reshaping x to the given (static) dimensions.
func Reshape(adder ir.Adder, x ir.Value, dims ...int) (*ir.Node, error) {
	return adder.Add(KindReshape, []ir.Value{x}, ReshapeAttrs{Dims: slices.Clone(dims)})
}
