package ir

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
)

// AnyDType is the element type compatible with every other element type.
// It is used by inference rules that can't (yet) tell the element type of an output.
const AnyDType = dtypes.InvalidDType

// CompatibleDTypes returns whether a and b are the same element type, or either is AnyDType.
func CompatibleDTypes(a, b dtypes.DType) bool {
	return a == b || a == AnyDType || b == AnyDType
}

// MergeDTypes returns the most specific element type consistent with a and b.
// It returns false if they are not compatible.
func MergeDTypes(a, b dtypes.DType) (dtypes.DType, bool) {
	switch {
	case a == b:
		return a, true
	case a == AnyDType:
		return b, true
	case b == AnyDType:
		return a, true
	default:
		return AnyDType, false
	}
}

// dtypeString prints AnyDType as "any", and other dtypes with their usual name.
func dtypeString(dtype dtypes.DType) string {
	if dtype == AnyDType {
		return "any"
	}
	return dtype.String()
}
