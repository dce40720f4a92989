// Package ir defines a mid-level intermediate representation for numeric computation graphs.
//
//   - Graph: an arena of Node objects, owned by the graph, with argument edges (Value) and a derived user index.
//   - Node: a typed operation instance. Its outputs carry a dtypes.DType and a PartialShape, always the result of
//     running the node's kind inference rule on its current inputs and attributes.
//   - KindSpec: the per-kind rules (inference, decomposition, folding) registered with RegisterKind and dispatched
//     by table lookup.
//   - Builder: a staging area where new nodes are built and validated before being committed to a Graph.
//   - TopologicalSort, ComputeHeights and ClassifyEdges: read-only dependency-order analyses.
//
// Errors come in two flavors: *ValidationError is returned by construction and rewrite operations and only aborts
// that operation; *InvariantError is panicked, and signals a bug in a pass or in an inference rule.
package ir
