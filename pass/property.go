package pass

import (
	"strings"
)

// Property is a capability or requirement declared by a pass, used by the Manager to check the pipeline.
type Property uint32

const (
	// RegularFusions marks passes that create or lower fused operations.
	RegularFusions Property = 1 << (iota + 1)

	// RequireStaticShape marks passes that only work on graphs whose output shapes are all static.
	RequireStaticShape

	// ChangeFunctionState marks passes that may change the graphs they run on. Passes without it are analyses.
	ChangeFunctionState

	// ProvideStaticShape marks passes that guarantee, once they succeed, that all shapes are static.
	ProvideStaticShape

	// IntroduceDynamicShape marks passes that may turn static shapes into dynamic ones.
	IntroduceDynamicShape
)

var propertyNames = []struct {
	property Property
	name     string
}{
	{RegularFusions, "RegularFusions"},
	{RequireStaticShape, "RequireStaticShape"},
	{ChangeFunctionState, "ChangeFunctionState"},
	{ProvideStaticShape, "ProvideStaticShape"},
	{IntroduceDynamicShape, "IntroduceDynamicShape"},
}

// String implements fmt.Stringer.
func (p Property) String() string {
	for _, entry := range propertyNames {
		if entry.property == p {
			return entry.name
		}
	}
	return "InvalidProperty"
}

// PropertyMask is a set of properties.
type PropertyMask uint32

// MakePropertyMask returns the mask with the given properties set.
func MakePropertyMask(properties ...Property) PropertyMask {
	var mask PropertyMask
	for _, p := range properties {
		mask = mask.With(p)
	}
	return mask
}

// Has returns whether p is set in the mask.
func (m PropertyMask) Has(p Property) bool {
	return m&PropertyMask(p) != 0
}

// With returns a copy of the mask with p set.
func (m PropertyMask) With(p Property) PropertyMask {
	return m | PropertyMask(p)
}

// Without returns a copy of the mask with p cleared.
func (m PropertyMask) Without(p Property) PropertyMask {
	return m &^ PropertyMask(p)
}

// String implements fmt.Stringer, e.g. "RequireStaticShape|ChangeFunctionState".
func (m PropertyMask) String() string {
	var parts []string
	for _, entry := range propertyNames {
		if m.Has(entry.property) {
			parts = append(parts, entry.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
