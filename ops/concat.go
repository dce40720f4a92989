package ops

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/graphir/internal/tensorutil"
	"github.com/gomlx/graphir/ir"
)

// ConcatAttrs holds the concatenation axis. Negative values count from the end.
type ConcatAttrs struct {
	Axis int
}

func registerConcat() {
	ir.RegisterKind(ir.KindSpec{
		Kind:     KindConcat,
		Arity:    ir.VariadicArity,
		MinArity: 1,
		Infer:    inferConcat,
		Fold:     foldConcat,
	})
}

func inferConcat(ctx *ir.InferContext) error {
	attrs, ok := ctx.Attributes().(ConcatAttrs)
	if !ok {
		return ctx.Errorf(-1, "attributes must be ConcatAttrs, got %T", ctx.Attributes())
	}

	dtype := ir.AnyDType
	rank := -1
	for i := range ctx.NumInputs() {
		var dtypeOk bool
		dtype, dtypeOk = ir.MergeDTypes(dtype, ctx.InputDType(i))
		if !dtypeOk {
			return ctx.Errorf(i, "element type %s doesn't match the previous inputs (%s)", ctx.InputDType(i), dtype)
		}
		inputRank, known := ctx.InputShape(i).Rank()
		if !known {
			continue
		}
		if rank == -1 {
			rank = inputRank
		} else if inputRank != rank {
			return ctx.Errorf(i, "rank %d doesn't match the rank %d of the previous inputs", inputRank, rank)
		}
	}
	if rank == -1 {
		ctx.SetOutput(0, dtype, ir.DynamicShape())
		return nil
	}
	if rank == 0 {
		return ctx.Errorf(-1, "cannot concatenate scalars")
	}
	axis, inRange := normalizeAxis(attrs.Axis, rank)
	if !inRange {
		return ctx.Errorf(-1, "axis %d out of range for rank %d", attrs.Axis, rank)
	}

	dims := ir.DynamicShapeOfRank(rank).Dimensions()
	axisDim := 0
	for i := range ctx.NumInputs() {
		shape := ctx.InputShape(i)
		if !shape.RankIsStatic() {
			axisDim = ir.DynamicDim
			continue
		}
		for d := range rank {
			dim := shape.Dim(d)
			if d == axis {
				if dim == ir.DynamicDim || axisDim == ir.DynamicDim {
					axisDim = ir.DynamicDim
				} else {
					axisDim += dim
				}
				continue
			}
			if !ir.DimsCompatible(dims[d], dim) {
				return ctx.Errorf(i, "dimension %d is %d, but previous inputs have %d", d, dim, dims[d])
			}
			if dim != ir.DynamicDim {
				dims[d] = dim
			}
		}
	}
	dims[axis] = axisDim
	ctx.SetOutput(0, dtype, ir.MakePartialShape(dims...))
	return nil
}

// foldConcat folds the concatenation of rank-1 Int64 constants, the usual way shape vectors are assembled.
func foldConcat(n *ir.Node) (*tensors.Tensor, bool) {
	values, ok := constantInputs(n)
	if !ok {
		return nil, false
	}
	var result []int64
	for _, value := range values {
		if value.Shape().DType != dtypes.Int64 || value.Shape().Rank() != 1 {
			return nil, false
		}
		flat, err := tensorutil.Int64s(value)
		if err != nil {
			return nil, false
		}
		result = append(result, flat...)
	}
	return tensors.FromFlatDataAndDimensions(result, len(result)), true
}

// Concat adds the concatenation of the inputs along axis. All inputs must have the same rank, and the same
// dimensions except on axis.
func Concat(adder ir.Adder, axis int, inputs ...ir.Value) (*ir.Node, error) {
	return adder.Add(KindConcat, inputs, ConcatAttrs{Axis: axis})
}
