// Package tensorutil contains conversion utilities between GoMLX tensors and the plain Go values used by
// inference and folding rules.
package tensorutil

import (
	"slices"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Int64s returns the values of an integer tensor (Int64 or Int32) as a flat []int64.
func Int64s(t *tensors.Tensor) ([]int64, error) {
	if t == nil {
		return nil, errors.New("tensor is nil")
	}
	var values []int64
	var err error
	switch dtype := t.Shape().DType; dtype {
	case dtypes.Int64:
		err = tensors.ConstFlatData(t, func(flat []int64) {
			values = slices.Clone(flat)
		})
	case dtypes.Int32:
		err = tensors.ConstFlatData(t, func(flat []int32) {
			values = make([]int64, len(flat))
			for ii, v := range flat {
				values[ii] = int64(v)
			}
		})
	default:
		return nil, errors.Errorf("tensor shaped %s is not an integer tensor", t.Shape())
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "reading tensor shaped %s", t.Shape())
	}
	return values, nil
}

// Ints is like Int64s, but returns []int.
func Ints(t *tensors.Tensor) ([]int, error) {
	values, err := Int64s(t)
	if err != nil {
		return nil, err
	}
	ints := make([]int, len(values))
	for ii, v := range values {
		ints[ii] = int(v)
	}
	return ints, nil
}

// Float32s returns the values of a Float32 tensor as a flat []float32.
func Float32s(t *tensors.Tensor) ([]float32, error) {
	if t == nil {
		return nil, errors.New("tensor is nil")
	}
	if t.Shape().DType != dtypes.Float32 {
		return nil, errors.Errorf("tensor shaped %s is not a float32 tensor", t.Shape())
	}
	var values []float32
	err := tensors.ConstFlatData(t, func(flat []float32) {
		values = slices.Clone(flat)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "reading tensor shaped %s", t.Shape())
	}
	return values, nil
}

// FromDims creates a rank-1 Int64 tensor holding the given dimensions, the representation of shapes as values.
func FromDims(dims []int) *tensors.Tensor {
	values := make([]int64, len(dims))
	for ii, dim := range dims {
		values[ii] = int64(dim)
	}
	return tensors.FromFlatDataAndDimensions(values, len(values))
}
