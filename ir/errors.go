package ir

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrArityMismatch is wrapped by validation errors caused by a wrong number of arguments.
	ErrArityMismatch = errors.New("arity mismatch")

	// ErrNotDecomposable is returned by decomposition rules that can't expand a fused node yet, typically
	// because they need a static input shape. Lowering passes skip such nodes.
	ErrNotDecomposable = errors.New("not decomposable")
)

// ValidationError is returned when a node can't be constructed, duplicated or re-inferred with the given inputs
// and attributes. It only aborts the operation that triggered it: the graph is left as it was.
type ValidationError struct {
	// Kind of the node being validated.
	Kind Kind

	// Node is the name of the node, if it already had one (re-inference), or empty.
	Node string

	// Input is the index of the offending input, or -1 if the failure is not about a specific input.
	Input int

	// Message describes expected vs actual.
	Message string

	// Err is an optional underlying cause (e.g. ErrArityMismatch).
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	where := string(e.Kind)
	if e.Node != "" {
		where = fmt.Sprintf("%s (%s)", where, e.Node)
	}
	if e.Input >= 0 {
		where = fmt.Sprintf("%s, input #%d", where, e.Input)
	}
	return fmt.Sprintf("validation of %s failed: %s", where, e.Message)
}

// Unwrap returns the underlying cause, so errors.Is(err, ErrArityMismatch) works.
func (e *ValidationError) Unwrap() error { return e.Err }

// Validationf creates a new *ValidationError.
func Validationf(kind Kind, node string, input int, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Node: node, Input: input, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err (or any error in its chain) is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InvariantError describes a broken internal invariant: a cycle in the graph, an inference rule that left an
// output unset, a splice with mismatched arity. It is never returned, only panicked: it indicates a bug in a
// pass or in an inference rule.
type InvariantError struct {
	Kind    Kind
	Node    string
	Message string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("invariant violation in %s (%s): %s", e.Kind, e.Node, e.Message)
	}
	if e.Kind != "" {
		return fmt.Sprintf("invariant violation in %s: %s", e.Kind, e.Message)
	}
	return "invariant violation: " + e.Message
}

// panicInvariantf panics with an *InvariantError (with stack) about node n, which can be nil.
func panicInvariantf(n *Node, format string, args ...any) {
	ie := &InvariantError{Message: fmt.Sprintf(format, args...)}
	if n != nil {
		ie.Kind = n.kind
		ie.Node = n.name
	}
	panic(errors.WithStack(ie))
}

// AsInvariantError returns the *InvariantError in the chain of err, typically a recovered panic, or nil.
func AsInvariantError(err error) *InvariantError {
	var ie *InvariantError
	if errors.As(err, &ie) {
		return ie
	}
	return nil
}
