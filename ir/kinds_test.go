package ir

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/graphir/internal/tensorutil"
)

// Kinds registered for the tests of this package only: the built-in kinds live in package ops.
const (
	testSource  Kind = "test.Source"
	testConst   Kind = "test.Const"
	testUnary   Kind = "test.Unary"
	testPair    Kind = "test.Pair"
	testShapeTo Kind = "test.ShapeTo"
	testSink    Kind = "test.Sink"
	testFused   Kind = "test.Fused"
)

type sourceAttrs struct {
	dtype dtypes.DType
	shape PartialShape
}

func init() {
	RegisterKind(KindSpec{
		Kind:      testSource,
		Arity:     0,
		Parameter: true,
		Infer: func(ctx *InferContext) error {
			attrs := ctx.Attributes().(sourceAttrs)
			ctx.SetOutput(0, attrs.dtype, attrs.shape)
			return nil
		},
	})
	RegisterKind(KindSpec{
		Kind:  testConst,
		Arity: 0,
		Infer: func(ctx *InferContext) error {
			t := ctx.Attributes().(*tensors.Tensor)
			ctx.SetOutput(0, t.Shape().DType, FromShape(t.Shape()))
			return nil
		},
		Value: func(n *Node) (*tensors.Tensor, bool) {
			return n.Attributes().(*tensors.Tensor), true
		},
	})
	RegisterKind(KindSpec{
		Kind:  testUnary,
		Arity: 1,
		Infer: func(ctx *InferContext) error {
			ctx.SetOutput(0, ctx.InputDType(0), ctx.InputShape(0))
			return nil
		},
	})
	RegisterKind(KindSpec{
		Kind:  testPair,
		Arity: 2,
		Infer: func(ctx *InferContext) error {
			dtype, ok := MergeDTypes(ctx.InputDType(0), ctx.InputDType(1))
			if !ok {
				return ctx.Errorf(1, "element type %s doesn't match %s", ctx.InputDType(1), ctx.InputDType(0))
			}
			shape, err := MergeShapes(ctx.InputShape(0), ctx.InputShape(1))
			if err != nil {
				return ctx.Errorf(1, "%v", err)
			}
			ctx.SetOutput(0, dtype, shape)
			return nil
		},
	})
	// test.ShapeTo outputs a tensor of input #0 dtype shaped by the values of input #1.
	RegisterKind(KindSpec{
		Kind:  testShapeTo,
		Arity: 2,
		Infer: func(ctx *InferContext) error {
			if err := ctx.CheckInputDType(1, dtypes.Int64); err != nil {
				return err
			}
			ctx.SetInputRelevantToShape(1)
			if value, ok := ctx.InputValue(1); ok {
				dims, err := tensorutil.Ints(value)
				if err != nil {
					return ctx.Errorf(1, "%v", err)
				}
				ctx.SetOutput(0, ctx.InputDType(0), MakePartialShape(dims...))
				return nil
			}
			shapeOfShape := ctx.InputShape(1)
			if rank, known := shapeOfShape.Rank(); known && rank == 1 && shapeOfShape.Dim(0) != DynamicDim {
				ctx.SetOutput(0, ctx.InputDType(0), DynamicShapeOfRank(shapeOfShape.Dim(0)))
				return nil
			}
			ctx.SetOutput(0, ctx.InputDType(0), DynamicShape())
			return nil
		},
	})
	RegisterKind(KindSpec{
		Kind:     testSink,
		Arity:    1,
		Terminal: true,
		Infer: func(ctx *InferContext) error {
			ctx.SetOutput(0, ctx.InputDType(0), ctx.InputShape(0))
			return nil
		},
	})
	// test.Fused is a Pair that decomposes into Unary(Pair(x, y)).
	RegisterKind(KindSpec{
		Kind:  testFused,
		Arity: 2,
		Infer: func(ctx *InferContext) error {
			shape, err := MergeShapes(ctx.InputShape(0), ctx.InputShape(1))
			if err != nil {
				return ctx.Errorf(1, "%v", err)
			}
			ctx.SetOutput(0, ctx.InputDType(0), shape)
			return nil
		},
		Decompose: func(n *Node, b *Builder) ([]Value, error) {
			pair, err := b.Add(testPair, n.Inputs(), nil)
			if err != nil {
				return nil, err
			}
			unary, err := b.Add(testUnary, []Value{pair.Value()}, nil)
			if err != nil {
				return nil, err
			}
			return []Value{unary.Value()}, nil
		},
	})
}

func source(g Adder, dtype dtypes.DType, dims ...int) *Node {
	n, err := g.Add(testSource, nil, sourceAttrs{dtype: dtype, shape: MakePartialShape(dims...)})
	if err != nil {
		panic(err)
	}
	return n
}

func mustAdd(g Adder, kind Kind, inputs ...Value) *Node {
	n, err := g.Add(kind, inputs, nil)
	if err != nil {
		panic(err)
	}
	return n
}
