package ir

import (
	"fmt"
)

// CopyWithNewArgs creates (in adder, a Graph or a Builder) a new node of the same kind and attributes as n,
// bound to the given arguments.
//
// The number of arguments must be exactly the number of inputs of n, otherwise it fails with a *ValidationError
// wrapping ErrArityMismatch. This is how passes perform non-destructive rewrites: build the replacement, then
// splice it in with Graph.Replace.
func CopyWithNewArgs(adder Adder, n *Node, args []Value) (*Node, error) {
	if len(args) != len(n.inputs) {
		return nil, &ValidationError{
			Kind:    n.kind,
			Node:    n.name,
			Input:   -1,
			Message: fmt.Sprintf("copy with %d new arguments, node has %d inputs", len(args), len(n.inputs)),
			Err:     ErrArityMismatch,
		}
	}
	return adder.Add(n.kind, args, n.attrs)
}
