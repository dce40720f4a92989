package ir

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/pkg/errors"
)

// DynamicDim marks a dimension whose size is not known at graph construction time.
const DynamicDim = -1

// PartialShape describes the shape of a value when some (or all) of it may be unknown at construction time.
//
// It is either fully dynamic (unknown rank), or a list of dimensions where each one is either concrete (>= 0) or
// DynamicDim.
//
// PartialShape is an immutable value: none of its methods change it.
type PartialShape struct {
	dims       []int
	rankStatic bool
}

// DynamicShape returns a PartialShape of unknown rank.
func DynamicShape() PartialShape {
	return PartialShape{}
}

// MakePartialShape returns a PartialShape of known rank. Negative dimensions are taken as DynamicDim.
func MakePartialShape(dims ...int) PartialShape {
	p := PartialShape{dims: make([]int, len(dims)), rankStatic: true}
	for axis, dim := range dims {
		if dim < 0 {
			dim = DynamicDim
		}
		p.dims[axis] = dim
	}
	return p
}

// DynamicShapeOfRank returns a PartialShape of the given rank with all dimensions dynamic.
func DynamicShapeOfRank(rank int) PartialShape {
	dims := make([]int, rank)
	for axis := range dims {
		dims[axis] = DynamicDim
	}
	return PartialShape{dims: dims, rankStatic: true}
}

// FromShape converts a static shape to a PartialShape. The dtype of the shape is ignored.
func FromShape(shape shapes.Shape) PartialShape {
	return MakePartialShape(shape.Dimensions...)
}

// Rank returns the rank of the shape, and whether it is known.
func (p PartialShape) Rank() (rank int, known bool) {
	if !p.rankStatic {
		return 0, false
	}
	return len(p.dims), true
}

// RankIsStatic returns whether the rank is known.
func (p PartialShape) RankIsStatic() bool {
	return p.rankStatic
}

// IsStatic returns whether the rank and all dimensions are known.
func (p PartialShape) IsStatic() bool {
	if !p.rankStatic {
		return false
	}
	for _, dim := range p.dims {
		if dim == DynamicDim {
			return false
		}
	}
	return true
}

// IsDynamic is the opposite of IsStatic.
func (p PartialShape) IsDynamic() bool {
	return !p.IsStatic()
}

// Dim returns the dimension at the given axis, or DynamicDim if it is not known.
// Negative axes are counted from the end. It panics if the rank is not known or the axis is out of range.
func (p PartialShape) Dim(axis int) int {
	if !p.rankStatic {
		exceptions.Panicf("PartialShape.Dim(%d) called on shape of dynamic rank", axis)
	}
	adjusted := axis
	if adjusted < 0 {
		adjusted += len(p.dims)
	}
	if adjusted < 0 || adjusted >= len(p.dims) {
		exceptions.Panicf("PartialShape.Dim(%d) out of range for shape %s", axis, p)
	}
	return p.dims[adjusted]
}

// Dimensions returns a copy of the dimensions, or nil if the rank is not known.
func (p PartialShape) Dimensions() []int {
	if !p.rankStatic {
		return nil
	}
	return slices.Clone(p.dims)
}

// ToShape converts the PartialShape to a static shapes.Shape with the given dtype.
// It fails if the shape is not static.
func (p PartialShape) ToShape(dtype dtypes.DType) (shapes.Shape, error) {
	if !p.IsStatic() {
		return shapes.Shape{}, errors.Errorf("cannot convert dynamic shape %s to a static shape", p)
	}
	return shapes.Make(dtype, p.dims...), nil
}

// Equal returns whether both shapes have the exact same description, including dynamic dimensions.
func (p PartialShape) Equal(other PartialShape) bool {
	if p.rankStatic != other.rankStatic {
		return false
	}
	return slices.Equal(p.dims, other.dims)
}

// Compatible returns whether p and other can describe a common concrete shape: the ranks are compatible and,
// where both dimensions are concrete, they are equal.
func (p PartialShape) Compatible(other PartialShape) bool {
	if !p.rankStatic || !other.rankStatic {
		return true
	}
	if len(p.dims) != len(other.dims) {
		return false
	}
	for axis, dim := range p.dims {
		if !DimsCompatible(dim, other.dims[axis]) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer. Dynamic dimensions are printed as "?", and a shape of dynamic rank as "{...}".
func (p PartialShape) String() string {
	if !p.rankStatic {
		return "{...}"
	}
	parts := make([]string, len(p.dims))
	for axis, dim := range p.dims {
		if dim == DynamicDim {
			parts[axis] = "?"
		} else {
			parts[axis] = strconv.Itoa(dim)
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// DimsCompatible returns whether two dimensions can be equal: either is dynamic or they are the same.
func DimsCompatible(a, b int) bool {
	return a == DynamicDim || b == DynamicDim || a == b
}

// RanksCompatible returns whether the ranks of the two shapes can be equal.
func RanksCompatible(a, b PartialShape) bool {
	if !a.rankStatic || !b.rankStatic {
		return true
	}
	return len(a.dims) == len(b.dims)
}

// MergeShapes combines two compatible partial shapes into the most specific partial shape consistent with both.
// It returns an error if they are not compatible.
func MergeShapes(a, b PartialShape) (PartialShape, error) {
	if !a.rankStatic {
		return b, nil
	}
	if !b.rankStatic {
		return a, nil
	}
	if len(a.dims) != len(b.dims) {
		return PartialShape{}, errors.Errorf("cannot merge shapes %s and %s: ranks %d and %d differ",
			a, b, len(a.dims), len(b.dims))
	}
	merged := make([]int, len(a.dims))
	for axis, dim := range a.dims {
		other := b.dims[axis]
		switch {
		case dim == DynamicDim:
			merged[axis] = other
		case other == DynamicDim || other == dim:
			merged[axis] = dim
		default:
			return PartialShape{}, errors.Errorf("cannot merge shapes %s and %s: dimension %d differs (%d != %d)",
				a, b, axis, dim, other)
		}
	}
	return PartialShape{dims: merged, rankStatic: true}, nil
}

