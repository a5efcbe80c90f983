package graph

import (
	"fmt"
	"strings"

	"quantengine/pkg/key"
)

// Describe renders the task tree rooted at k as a human-readable,
// recursively-indented listing: each line names a key and its task's
// label, followed by its inputs at one deeper indent. Cycles are broken
// with a "(see above)" marker rather than recursing forever.
func Describe(g *Graph, k key.Key) string {
	var b strings.Builder
	describeNode(g, &b, k, 0, map[string]bool{})
	return b.String()
}

func describeNode(g *Graph, b *strings.Builder, k key.Key, depth int, onPath map[string]bool) {
	indent := strings.Repeat("  ", depth)
	h := k.Hash()
	if onPath[h] {
		fmt.Fprintf(b, "%s%s (see above)\n", indent, k.String())
		return
	}
	t, ok := g.Get(k)
	if !ok {
		fmt.Fprintf(b, "%s%s <missing>\n", indent, k.String())
		return
	}
	onPath[h] = true
	defer delete(onPath, h)

	switch t.Kind {
	case KindLiteral:
		fmt.Fprintf(b, "%s%s = %s\n", indent, k.String(), t.Literal.String())
	case KindAlias:
		fmt.Fprintf(b, "%s%s -> alias\n", indent, k.String())
		describeNode(g, b, t.Alias, depth+1, onPath)
	case KindKeyList:
		fmt.Fprintf(b, "%s%s = list(%d)\n", indent, k.String(), len(t.Keys))
		for _, dep := range t.Keys {
			describeNode(g, b, dep, depth+1, onPath)
		}
	case KindCall:
		label := t.Label
		if label == "" {
			label = "call"
		}
		fmt.Fprintf(b, "%s%s = %s(...)\n", indent, k.String(), label)
		for _, a := range t.Args {
			describeArg(g, b, a, depth+1, onPath)
		}
	}
}

func describeArg(g *Graph, b *strings.Builder, a Arg, depth int, onPath map[string]bool) {
	indent := strings.Repeat("  ", depth)
	switch {
	case a.Key != nil:
		describeNode(g, b, *a.Key, depth, onPath)
	case a.Nested != nil:
		fmt.Fprintf(b, "%s<nested>\n", indent)
	case a.Literal != nil:
		fmt.Fprintf(b, "%s%s\n", indent, a.Literal.String())
	}
}
