package ops

import (
	"slices"

	"github.com/gomlx/graphir/ir"
	"github.com/pkg/errors"
)

// SqueezeAttrs holds the axes removed by Squeeze (or inserted by Unsqueeze). Negative values count from the end.
type SqueezeAttrs struct {
	Axes []int
}

func registerSqueezeOps() {
	ir.RegisterKind(ir.KindSpec{
		Kind:      KindSqueeze,
		Arity:     1,
		Infer:     func(ctx *ir.InferContext) error { return inferSqueezeFamily(ctx, squeezedShape) },
		Decompose: func(n *ir.Node, b *ir.Builder) ([]ir.Value, error) { return decomposeToReshape(n, b, squeezedShape) },
	})
	ir.RegisterKind(ir.KindSpec{
		Kind:      KindUnsqueeze,
		Arity:     1,
		Infer:     func(ctx *ir.InferContext) error { return inferSqueezeFamily(ctx, unsqueezedShape) },
		Decompose: func(n *ir.Node, b *ir.Builder) ([]ir.Value, error) { return decomposeToReshape(n, b, unsqueezedShape) },
	})
}

// shapeTransform computes the output shape of Squeeze or Unsqueeze from the input shape and the axes.
type shapeTransform func(input ir.PartialShape, axes []int) (ir.PartialShape, error)

func inferSqueezeFamily(ctx *ir.InferContext, transform shapeTransform) error {
	attrs, ok := ctx.Attributes().(SqueezeAttrs)
	if !ok {
		return ctx.Errorf(-1, "attributes must be SqueezeAttrs, got %T", ctx.Attributes())
	}
	shape, err := transform(ctx.InputShape(0), attrs.Axes)
	if err != nil {
		return ctx.Errorf(0, "%v", err)
	}
	ctx.SetOutput(0, ctx.InputDType(0), shape)
	return nil
}

// squeezedShape removes the given unit axes from input. With no axes, every axis of dimension 1 is removed, which
// requires all dimensions to be known to tell the output rank.
func squeezedShape(input ir.PartialShape, axes []int) (ir.PartialShape, error) {
	rank, known := input.Rank()
	if !known {
		return ir.DynamicShape(), nil
	}
	dims := input.Dimensions()
	if len(axes) == 0 {
		if !input.IsStatic() {
			return ir.DynamicShape(), nil
		}
		return ir.MakePartialShape(slices.DeleteFunc(dims, func(dim int) bool { return dim == 1 })...), nil
	}
	remove := make([]bool, rank)
	for _, axis := range axes {
		adjusted, inRange := normalizeAxis(axis, rank)
		if !inRange {
			return ir.PartialShape{}, errors.Errorf("squeeze axis %d out of range for shape %s", axis, input)
		}
		if dims[adjusted] != 1 && dims[adjusted] != ir.DynamicDim {
			return ir.PartialShape{}, errors.Errorf("cannot squeeze axis %d of shape %s: dimension is %d, not 1",
				axis, input, dims[adjusted])
		}
		remove[adjusted] = true
	}
	output := make([]int, 0, rank)
	for axis, dim := range dims {
		if !remove[axis] {
			output = append(output, dim)
		}
	}
	return ir.MakePartialShape(output...), nil
}

// unsqueezedShape inserts unit axes at the given positions of the output.
func unsqueezedShape(input ir.PartialShape, axes []int) (ir.PartialShape, error) {
	if len(axes) == 0 {
		return ir.PartialShape{}, errors.New("unsqueeze requires at least one axis")
	}
	rank, known := input.Rank()
	if !known {
		return ir.DynamicShape(), nil
	}
	outputRank := rank + len(axes)
	insert := make([]bool, outputRank)
	for _, axis := range axes {
		adjusted, inRange := normalizeAxis(axis, outputRank)
		if !inRange {
			return ir.PartialShape{}, errors.Errorf("unsqueeze axis %d out of range for output rank %d", axis, outputRank)
		}
		if insert[adjusted] {
			return ir.PartialShape{}, errors.Errorf("unsqueeze axis %d given more than once", axis)
		}
		insert[adjusted] = true
	}
	dims := input.Dimensions()
	output := make([]int, outputRank)
	next := 0
	for axis := range output {
		if insert[axis] {
			output[axis] = 1
			continue
		}
		output[axis] = dims[next]
		next++
	}
	return ir.MakePartialShape(output...), nil
}

// decomposeToReshape lowers Squeeze and Unsqueeze: the target shape is computed from the current input shape and
// the axes, and the node is replaced by a Reshape to it. It requires the resulting shape to be static.
func decomposeToReshape(n *ir.Node, b *ir.Builder, transform shapeTransform) ([]ir.Value, error) {
	attrs := n.Attributes().(SqueezeAttrs)
	input := n.Input(0)
	inputShape := n.Argument(0).OutputShape(input.Output)
	target, err := transform(inputShape, attrs.Axes)
	if err != nil {
		return nil, err
	}
	if !target.IsStatic() {
		return nil, errors.Wrapf(ir.ErrNotDecomposable, "%s: target shape %s is not static", n.Name(), target)
	}
	reshape, err := Reshape(b, input, target.Dimensions()...)
	if err != nil {
		return nil, err
	}
	return []ir.Value{reshape.Value()}, nil
}

// Squeeze adds a node removing the given axes of x, which must have dimension 1. With no axes, all unit axes are
// removed.
func Squeeze(adder ir.Adder, x ir.Value, axes ...int) (*ir.Node, error) {
	return adder.Add(KindSqueeze, []ir.Value{x}, SqueezeAttrs{Axes: slices.Clone(axes)})
}

// Unsqueeze adds a node inserting unit axes at the given positions (of the output).
func Unsqueeze(adder ir.Adder, x ir.Value, axes ...int) (*ir.Node, error) {
	return adder.Add(KindUnsqueeze, []ir.Value{x}, SqueezeAttrs{Axes: slices.Clone(axes)})
}
