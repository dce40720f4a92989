package ops

import (
	"math"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/graphir/internal/tensorutil"
	"github.com/gomlx/graphir/ir"
)

// PriorBoxClusteredAttrs configures the clustered prior boxes generated for every position of a feature map.
type PriorBoxClusteredAttrs struct {
	// NumPriors is the number of boxes per position. Widths and Heights must have NumPriors entries.
	NumPriors int
	Widths    []float32
	Heights   []float32

	// Clip boxes to [0, 1].
	Clip bool

	StepWidths  float32
	StepHeights float32
	Offset      float32
	Variances   []float32
}

func registerPriorBoxClustered() {
	ir.RegisterKind(ir.KindSpec{
		Kind:  KindPriorBoxClustered,
		Arity: 2,
		Infer: inferPriorBoxClustered,
	})
}

// inferPriorBoxClustered takes the layer (feature map) shape [H, W] as input #0 and the image shape as input #1.
//
// The output holds the prior boxes and their variances: Float32 {2, 4·H·W·NumPriors}. If the layer shape is not a
// compile-time constant, the output is Float32 {?, ?}.
func inferPriorBoxClustered(ctx *ir.InferContext) error {
	attrs, ok := ctx.Attributes().(PriorBoxClusteredAttrs)
	if !ok {
		return ctx.Errorf(-1, "attributes must be PriorBoxClusteredAttrs, got %T", ctx.Attributes())
	}
	if err := ctx.CheckInputDType(0, dtypes.Int64); err != nil {
		return err
	}
	if err := ctx.CheckInputDType(1, dtypes.Int64); err != nil {
		return err
	}
	if !ir.RanksCompatible(ctx.InputShape(0), ctx.InputShape(1)) {
		return ctx.Errorf(1, "image shape rank (shape %s) must match the layer shape rank (shape %s)",
			ctx.InputShape(1), ctx.InputShape(0))
	}
	if len(attrs.Widths) != attrs.NumPriors {
		return ctx.Errorf(-1, "num_priors %d doesn't match the number of widths %d", attrs.NumPriors, len(attrs.Widths))
	}
	if len(attrs.Heights) != attrs.NumPriors {
		return ctx.Errorf(-1, "num_priors %d doesn't match the number of heights %d", attrs.NumPriors, len(attrs.Heights))
	}

	ctx.SetInputRelevantToShape(0)
	if layerShape, isConstant := ctx.InputValue(0); isConstant {
		dims, err := tensorutil.Ints(layerShape)
		if err != nil {
			return ctx.Errorf(0, "%v", err)
		}
		if len(dims) != 2 {
			return ctx.Errorf(0, "layer shape must have 2 elements [height, width], got %v", dims)
		}
		if dims[0] < 0 || dims[1] < 0 {
			return ctx.Errorf(0, "layer shape [height, width] must be non-negative, got %v", dims)
		}
		numValues, ok := checkedProduct(4, dims[0], dims[1], attrs.NumPriors)
		if !ok {
			return ctx.Errorf(0, "layer shape %v with %d priors overflows the output size", dims, attrs.NumPriors)
		}
		ctx.SetOutput(0, dtypes.Float32, ir.MakePartialShape(2, numValues))
		return nil
	}
	ctx.SetOutput(0, dtypes.Float32, ir.DynamicShapeOfRank(2))
	return nil
}

// checkedProduct multiplies non-negative factors, returning false if the result overflows an int.
func checkedProduct(factors ...int) (int, bool) {
	product := 1
	for _, factor := range factors {
		if factor != 0 && product > math.MaxInt/factor {
			return 0, false
		}
		product *= factor
	}
	return product, true
}

// PriorBoxClustered adds a node generating the clustered prior boxes for a feature map of shape layerShape, in an
// image of shape imageShape. Both inputs are Int64 shape vectors.
func PriorBoxClustered(adder ir.Adder, layerShape, imageShape ir.Value, attrs PriorBoxClusteredAttrs) (*ir.Node, error) {
	attrs.Widths = slices.Clone(attrs.Widths)
	attrs.Heights = slices.Clone(attrs.Heights)
	attrs.Variances = slices.Clone(attrs.Variances)
	return adder.Add(KindPriorBoxClustered, []ir.Value{layerShape, imageShape}, attrs)
}
