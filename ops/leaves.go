package ops

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/graphir/ir"
)

// ParameterAttrs declares the type of a function input.
type ParameterAttrs struct {
	DType dtypes.DType
	Shape ir.PartialShape
}

func registerLeaves() {
	ir.RegisterKind(ir.KindSpec{
		Kind:      KindParameter,
		Arity:     0,
		Parameter: true,
		Infer: func(ctx *ir.InferContext) error {
			attrs, ok := ctx.Attributes().(ParameterAttrs)
			if !ok {
				return ctx.Errorf(-1, "attributes must be ParameterAttrs, got %T", ctx.Attributes())
			}
			ctx.SetOutput(0, attrs.DType, attrs.Shape)
			return nil
		},
	})

	ir.RegisterKind(ir.KindSpec{
		Kind:  KindConstant,
		Arity: 0,
		Infer: func(ctx *ir.InferContext) error {
			t, ok := ctx.Attributes().(*tensors.Tensor)
			if !ok || t == nil {
				return ctx.Errorf(-1, "constant requires a tensor value, got %T", ctx.Attributes())
			}
			ctx.SetOutput(0, t.Shape().DType, ir.FromShape(t.Shape()))
			return nil
		},
		Value: func(n *ir.Node) (*tensors.Tensor, bool) {
			return n.Attributes().(*tensors.Tensor), true
		},
	})

	ir.RegisterKind(ir.KindSpec{
		Kind:     KindResult,
		Arity:    1,
		Terminal: true,
		Infer: func(ctx *ir.InferContext) error {
			ctx.SetOutput(0, ctx.InputDType(0), ctx.InputShape(0))
			return nil
		},
	})
}

// Parameter adds a function input of the given element type and (partial) shape.
func Parameter(adder ir.Adder, dtype dtypes.DType, shape ir.PartialShape) (*ir.Node, error) {
	return adder.Add(KindParameter, nil, ParameterAttrs{DType: dtype, Shape: shape})
}

// Constant adds a node holding the compile-time constant t. The tensor is owned by the node from now on, and must
// not be modified.
func Constant(adder ir.Adder, t *tensors.Tensor) (*ir.Node, error) {
	return adder.Add(KindConstant, nil, t)
}

// Result marks x as a result of the function.
func Result(adder ir.Adder, x ir.Value) (*ir.Node, error) {
	return adder.Add(KindResult, []ir.Value{x}, nil)
}
