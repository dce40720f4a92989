package ir

import (
	"slices"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Kind is the operation identity of a node, e.g. "Add" or "Squeeze".
type Kind string

// VariadicArity is used in KindSpec.Arity for kinds that take any number of inputs.
const VariadicArity = -1

// Attributes hold the kind-specific parameters of a node (e.g. the axes of a Squeeze).
//
// Attributes are owned by the node and treated as immutable values: to change them use Graph.SetAttributes with
// a new value, so the node is re-inferred.
type Attributes any

// InferFunc is the inference rule of a kind: it validates the inputs and attributes given by ctx and sets the
// dtype and shape of every output with ctx.SetOutput.
//
// It must follow the "constant-if-possible, dynamic-otherwise" policy: if the inputs that determine the output
// shape are compile-time constants (see InferContext.InputValue), compute a static output shape, otherwise emit
// a (partially) dynamic one.
type InferFunc func(ctx *InferContext) error

// DecomposeFunc expands a fused node into an equivalent subgraph of simpler nodes built into b, consuming the
// same inputs as n. It returns the values standing in for n's outputs, in order.
//
// It must not change n or its graph: the new nodes stay staged in b until the caller commits them.
type DecomposeFunc func(n *Node, b *Builder) ([]Value, error)

// ValueFunc returns the compile-time constant value held by node n, if any.
type ValueFunc func(n *Node) (*tensors.Tensor, bool)

// FoldFunc computes the constant value of output 0 of n from its (constant or static) inputs, if possible.
// Used by constant folding passes, it must not change the graph.
type FoldFunc func(n *Node) (*tensors.Tensor, bool)

// KindSpec holds the rules of one operation kind, registered with RegisterKind.
type KindSpec struct {
	Kind Kind

	// Arity is the number of inputs, or VariadicArity.
	Arity int

	// MinArity is the minimum number of inputs for variadic kinds.
	MinArity int

	// NumOutputs is the number of outputs. If 0, it defaults to 1.
	NumOutputs int

	// Infer is the inference rule. Required.
	Infer InferFunc

	// Decompose is set for fused kinds only.
	Decompose DecomposeFunc

	// Value is set for kinds holding a compile-time constant (e.g. "Constant").
	Value ValueFunc

	// Fold is set for kinds that can be folded into a constant when their inputs allow it.
	Fold FoldFunc

	// Terminal marks sink kinds, like function results: they seed the height analysis even if they have users.
	Terminal bool

	// Parameter marks function input kinds. They are never removed as dead code.
	Parameter bool
}

// IsFused returns whether the kind has a decomposition rule.
func (spec *KindSpec) IsFused() bool {
	return spec.Decompose != nil
}

// IsLeaf returns whether nodes of this kind take no inputs (parameters, constants).
func (spec *KindSpec) IsLeaf() bool {
	return spec.Arity == 0
}

func (spec *KindSpec) numOutputs() int {
	if spec.NumOutputs <= 0 {
		return 1
	}
	return spec.NumOutputs
}

var (
	kindsMu sync.RWMutex
	kinds   = make(map[Kind]*KindSpec)
)

// RegisterKind adds the rules of a kind to the global table. Typically called from an init() function.
//
// It panics if the kind is already registered or the KindSpec is incomplete.
func RegisterKind(spec KindSpec) {
	if spec.Kind == "" {
		exceptions.Panicf("ir.RegisterKind: empty kind")
	}
	if spec.Infer == nil {
		exceptions.Panicf("ir.RegisterKind(%q): missing inference rule", spec.Kind)
	}
	if spec.Arity < VariadicArity {
		exceptions.Panicf("ir.RegisterKind(%q): invalid arity %d", spec.Kind, spec.Arity)
	}
	kindsMu.Lock()
	defer kindsMu.Unlock()
	if _, found := kinds[spec.Kind]; found {
		exceptions.Panicf("ir.RegisterKind(%q): kind already registered", spec.Kind)
	}
	kinds[spec.Kind] = &spec
}

// LookupKind returns the rules registered for kind.
func LookupKind(kind Kind) (*KindSpec, bool) {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	spec, found := kinds[kind]
	return spec, found
}

// RegisteredKinds returns the sorted list of registered kinds.
func RegisteredKinds() []Kind {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	list := make([]Kind, 0, len(kinds))
	for kind := range kinds {
		list = append(list, kind)
	}
	slices.Sort(list)
	return list
}

// mustLookupKind is LookupKind that panics with an invariant violation for unknown kinds.
func mustLookupKind(kind Kind) *KindSpec {
	spec, found := LookupKind(kind)
	if !found {
		panicInvariantf(nil, "kind %q is not registered", kind)
	}
	return spec
}
