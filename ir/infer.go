package ir

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// InferContext is given to inference rules (InferFunc): it exposes the inputs and attributes of the node being
// validated, and collects its outputs.
type InferContext struct {
	node     *Node
	resolve  func(NodeID) *Node
	outputs  []Output
	set      []bool
	relevant []bool
}

func newInferContext(n *Node, resolve func(NodeID) *Node) *InferContext {
	return &InferContext{
		node:     n,
		resolve:  resolve,
		outputs:  make([]Output, n.spec.numOutputs()),
		set:      make([]bool, n.spec.numOutputs()),
		relevant: make([]bool, len(n.inputs)),
	}
}

// Kind of the node being inferred.
func (ctx *InferContext) Kind() Kind { return ctx.node.kind }

// Attributes of the node being inferred.
func (ctx *InferContext) Attributes() Attributes { return ctx.node.attrs }

// NumInputs of the node being inferred.
func (ctx *InferContext) NumInputs() int { return len(ctx.node.inputs) }

func (ctx *InferContext) argument(i int) (*Node, Value) {
	v := ctx.node.inputs[i]
	return ctx.resolve(v.Node), v
}

// InputDType returns the element type of input #i.
func (ctx *InferContext) InputDType(i int) dtypes.DType {
	arg, v := ctx.argument(i)
	return arg.outputs[v.Output].DType
}

// InputShape returns the partial shape of input #i.
func (ctx *InferContext) InputShape(i int) PartialShape {
	arg, v := ctx.argument(i)
	return arg.outputs[v.Output].Shape
}

// InputValue returns the compile-time constant fed as input #i, if the argument kind holds one.
func (ctx *InferContext) InputValue(i int) (*tensors.Tensor, bool) {
	arg, v := ctx.argument(i)
	if v.Output != 0 {
		return nil, false
	}
	return arg.ConstantValue()
}

// InputKind returns the kind of the node feeding input #i.
func (ctx *InferContext) InputKind(i int) Kind {
	arg, _ := ctx.argument(i)
	return arg.kind
}

// SetOutput sets the element type and shape of output #i. Every output must be set by the inference rule.
func (ctx *InferContext) SetOutput(i int, dtype dtypes.DType, shape PartialShape) {
	if i < 0 || i >= len(ctx.outputs) {
		panicInvariantf(ctx.node, "inference rule set output #%d, but kind has %d outputs", i, len(ctx.outputs))
	}
	ctx.outputs[i] = Output{DType: dtype, Shape: shape}
	ctx.set[i] = true
}

// SetInputRelevantToShape declares that the value of input #i (not only its type) determines the output shape.
func (ctx *InferContext) SetInputRelevantToShape(i int) {
	ctx.relevant[i] = true
}

// Errorf returns a *ValidationError about input #i (use -1 if it's not about a specific input).
func (ctx *InferContext) Errorf(input int, format string, args ...any) error {
	return &ValidationError{
		Kind:    ctx.node.kind,
		Node:    ctx.node.name,
		Input:   input,
		Message: fmt.Sprintf(format, args...),
	}
}

// CheckInputDType returns a validation error if input #i element type is not compatible with expected.
func (ctx *InferContext) CheckInputDType(i int, expected dtypes.DType) error {
	got := ctx.InputDType(i)
	if !CompatibleDTypes(got, expected) {
		return ctx.Errorf(i, "element type must be compatible with %s, got %s", dtypeString(expected), dtypeString(got))
	}
	return nil
}

// infer runs the inference rule of n. On success, it returns the new outputs and shape-relevance flags without
// storing them in the node.
func infer(n *Node, resolve func(NodeID) *Node) ([]Output, []bool, error) {
	ctx := newInferContext(n, resolve)
	if err := n.spec.Infer(ctx); err != nil {
		return nil, nil, err
	}
	for i, isSet := range ctx.set {
		if !isSet {
			panicInvariantf(n, "inference rule left output #%d unset", i)
		}
	}
	return ctx.outputs, ctx.relevant, nil
}
