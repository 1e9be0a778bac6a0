package export

import (
	"fmt"
	"strings"

	"gepnas/internal/graph"
)

// Dot renders g in Graphviz syntax. Data enters at a synthetic "in" node and
// leaves through "out"; the identity graph is drawn as in -> out.
func Dot(g graph.Graph, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", name)
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  in [shape=plaintext,label=\"input\"];\n")
	b.WriteString("  out [shape=plaintext,label=\"output\"];\n")

	if g.IsEmpty() {
		b.WriteString("  in -> out;\n}\n")
		return b.String()
	}
	for _, n := range g.Nodes {
		fmt.Fprintf(&b, "  n%d [shape=box,label=%q];\n", n.ID, n.Op)
	}
	fmt.Fprintf(&b, "  in -> n%d;\n", g.Input)
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "  n%d -> n%d;\n", e.From, e.To)
	}
	fmt.Fprintf(&b, "  n%d -> out;\n", g.Output)
	b.WriteString("}\n")
	return b.String()
}
