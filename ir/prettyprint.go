package ir

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// String implements fmt.Stringer, and pretty prints a summary of the graph, followed by its nodes in
// topological order.
func (g *Graph) String() string {
	var buf bytes.Buffer
	w := func(format string, args ...any) {
		if len(args) == 0 {
			buf.WriteString(format)
		} else {
			buf.WriteString(fmt.Sprintf(format, args...))
		}
	}
	sorted := TopologicalSort(g)
	w("Graph %q:\n", g.name)
	w("\t# nodes:\t%d\n", len(sorted))
	kindsSet := make(map[Kind]int)
	for _, n := range sorted {
		kindsSet[n.kind]++
	}
	w("\tKinds:\t[")
	for ii, kind := range slices.Sorted(maps.Keys(kindsSet)) {
		if ii > 0 {
			w(", ")
		}
		w("%s×%d", kind, kindsSet[kind])
	}
	w("]\n")
	for _, n := range sorted {
		args := make([]string, len(n.inputs))
		for i, v := range n.inputs {
			arg := g.Node(v.Node)
			if v.Output == 0 {
				args[i] = arg.name
			} else {
				args[i] = fmt.Sprintf("%s:%d", arg.name, v.Output)
			}
		}
		outputs := make([]string, len(n.outputs))
		for i, output := range n.outputs {
			outputs[i] = dtypeString(output.DType) + output.Shape.String()
		}
		w("\t%s = %s(%s) -> %s\n", n.name, n.kind, strings.Join(args, ", "), strings.Join(outputs, ", "))
	}
	return buf.String()
}
