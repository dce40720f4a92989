package ir

import (
	"fmt"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// NodeID indexes a node in the arena of its Graph. Ids are never reused within a graph.
type NodeID int

// InvalidNodeID is never assigned to a node.
const InvalidNodeID NodeID = -1

// Value references one output of a node: it's how argument edges are represented.
type Value struct {
	Node   NodeID
	Output int
}

// String implements fmt.Stringer.
func (v Value) String() string {
	return fmt.Sprintf("#%d:%d", v.Node, v.Output)
}

// Use is one entry of the user index of a node output: node User consumes the value as its input #Input.
type Use struct {
	User   NodeID
	Input  int
	Output int
}

// Output holds the inferred type of one node output.
type Output struct {
	DType dtypes.DType
	Shape PartialShape
}

// Node is a typed operation instance in a Graph.
//
// Nodes are created with Graph.Add (or a Builder), and are owned by their graph. Their outputs are always the
// result of the kind inference rule applied to the current inputs and attributes.
type Node struct {
	graph *Graph
	id    NodeID
	name  string
	kind  Kind
	spec  *KindSpec

	inputs  []Value
	outputs []Output
	attrs   Attributes

	// shapeRelevant[i] is set by the inference rule if the value of input i determines the output shape.
	shapeRelevant []bool

	// users is the derived index of nodes consuming any of the outputs of this node.
	users   []Use
	removed bool
}

// ID returns the id of the node in its graph.
func (n *Node) ID() NodeID { return n.id }

// Name returns the unique (within its graph) name of the node, e.g. "Add_3".
func (n *Node) Name() string { return n.name }

// Kind returns the operation kind of the node.
func (n *Node) Kind() Kind { return n.kind }

// Spec returns the registered rules for the node's kind.
func (n *Node) Spec() *KindSpec { return n.spec }

// Graph returns the graph owning the node.
func (n *Node) Graph() *Graph { return n.graph }

// Attributes returns the kind-specific attributes of the node. They must not be modified.
func (n *Node) Attributes() Attributes { return n.attrs }

// IsRemoved returns whether the node has been removed from its graph.
func (n *Node) IsRemoved() bool { return n.removed }

// NumInputs returns the number of inputs (arguments) of the node.
func (n *Node) NumInputs() int { return len(n.inputs) }

// Input returns the value consumed as input #i.
func (n *Node) Input(i int) Value { return n.inputs[i] }

// Inputs returns a copy of the input values.
func (n *Node) Inputs() []Value { return slices.Clone(n.inputs) }

// Argument returns the node producing input #i.
func (n *Node) Argument(i int) *Node {
	return n.graph.Node(n.inputs[i].Node)
}

// Arguments returns the nodes producing each of the inputs, in order. A node feeding more than one input shows
// up more than once.
func (n *Node) Arguments() []*Node {
	args := make([]*Node, len(n.inputs))
	for i := range n.inputs {
		args[i] = n.Argument(i)
	}
	return args
}

// InputRelevantToShape returns whether the value of input #i determines the shape of the outputs.
func (n *Node) InputRelevantToShape(i int) bool {
	return n.shapeRelevant[i]
}

// NumOutputs returns the number of outputs of the node.
func (n *Node) NumOutputs() int { return len(n.outputs) }

// Output returns a reference to output #i, to be used as an input of other nodes.
func (n *Node) Output(i int) Value {
	if i < 0 || i >= len(n.outputs) {
		panicInvariantf(n, "output #%d out of range, node has %d outputs", i, len(n.outputs))
	}
	return Value{Node: n.id, Output: i}
}

// Value is a shortcut to Output(0).
func (n *Node) Value() Value { return n.Output(0) }

// OutputDType returns the element type of output #i.
func (n *Node) OutputDType(i int) dtypes.DType { return n.outputs[i].DType }

// OutputShape returns the partial shape of output #i.
func (n *Node) OutputShape(i int) PartialShape { return n.outputs[i].Shape }

// OutputStaticShape returns output #i as a static shapes.Shape, or an error if it is dynamic.
func (n *Node) OutputStaticShape(i int) (shapes.Shape, error) {
	shape, err := n.outputs[i].Shape.ToShape(n.outputs[i].DType)
	if err != nil {
		return shape, errors.WithMessagef(err, "output #%d of %s", i, n.name)
	}
	return shape, nil
}

// Outputs returns a copy of the inferred outputs.
func (n *Node) Outputs() []Output { return slices.Clone(n.outputs) }

// IsStatic returns whether all outputs have static shapes.
func (n *Node) IsStatic() bool {
	for _, output := range n.outputs {
		if !output.Shape.IsStatic() {
			return false
		}
	}
	return true
}

// Users returns a copy of the user index: every (user, input) pair consuming an output of this node.
func (n *Node) Users() []Use { return slices.Clone(n.users) }

// HasUsers returns whether any node consumes an output of this node.
func (n *Node) HasUsers() bool { return len(n.users) > 0 }

// UserNodes returns the distinct nodes consuming outputs of this node, in user-index order.
func (n *Node) UserNodes() []*Node {
	seen := make(map[NodeID]bool, len(n.users))
	users := make([]*Node, 0, len(n.users))
	for _, use := range n.users {
		if seen[use.User] {
			continue
		}
		seen[use.User] = true
		users = append(users, n.graph.Node(use.User))
	}
	return users
}

// ConstantValue returns the compile-time constant held by the node, if its kind provides one.
func (n *Node) ConstantValue() (*tensors.Tensor, bool) {
	if n.spec.Value == nil {
		return nil, false
	}
	return n.spec.Value(n)
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	if len(n.outputs) == 1 {
		return fmt.Sprintf("%s(%s %s)", n.name, dtypeString(n.outputs[0].DType), n.outputs[0].Shape)
	}
	return fmt.Sprintf("%s(%d outputs)", n.name, len(n.outputs))
}

// addUse and removeUse maintain the user index.
func (n *Node) addUse(use Use) {
	n.users = append(n.users, use)
}

func (n *Node) removeUse(use Use) {
	idx := slices.Index(n.users, use)
	if idx < 0 {
		panicInvariantf(n, "user index has no entry for %v", use)
	}
	n.users = slices.Delete(n.users, idx, idx+1)
}
