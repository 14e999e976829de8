package explain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// RenderText draws the graph as an indented tree from the root, inputs below
// their consumer. Details print as sorted key=value pairs.
func RenderText(g *Graph) string {
	var sb strings.Builder
	var walk func(id, depth int)
	walk = func(id, depth int) {
		n := g.Nodes[id]
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(n.Label)
		if d := formatDetails(n.Details, " "); d != "" {
			sb.WriteString(" {")
			sb.WriteString(d)
			sb.WriteString("}")
		}
		sb.WriteByte('\n')
		for _, in := range g.Inputs(id) {
			walk(in, depth+1)
		}
	}
	walk(g.Root, 0)
	return sb.String()
}

// RenderDOT renders the graph in Graphviz DOT. Operators are boxes and
// sources ellipses; node order follows IDs.
func RenderDOT(g *Graph) string {
	var sb strings.Builder
	sb.WriteString("digraph plan {\n")
	sb.WriteString("  rankdir=BT;\n")
	for _, n := range g.Nodes {
		shape := "box"
		if n.Kind == Source {
			shape = "ellipse"
		}
		label := n.Label
		if d := formatDetails(n.Details, "\n"); d != "" {
			label += "\n" + d
		}
		fmt.Fprintf(&sb, "  n%d [label=%s, shape=%s];\n", n.ID, strconv.Quote(label), shape)
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&sb, "  n%d -> n%d;\n", e.From, e.To)
	}
	sb.WriteString("}\n")
	return sb.String()
}

func formatDetails(details map[string]string, sep string) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + details[k]
	}
	return strings.Join(parts, sep)
}
