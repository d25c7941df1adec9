package nfa

import (
	"fmt"
	"strings"
)

// Graphviz renders g as a DOT digraph, for visual inspection of a
// compiled protocol's decode automaton.
func Graphviz(g *Graph) string {
	var b strings.Builder
	b.WriteString("digraph irp {\n  rankdir=LR;\n")
	for _, s := range g.States {
		shape := "circle"
		for _, e := range s.Out {
			if e.Action.Kind == Done {
				shape = "doublecircle"
			}
		}
		fmt.Fprintf(&b, "  s%d [shape=%s];\n", s.ID, shape)
	}
	for _, s := range g.States {
		for _, e := range s.Out {
			fmt.Fprintf(&b, "  s%d -> s%d [label=%q];\n", s.ID, e.To.ID, labelFor(e.Action))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func labelFor(a Action) string {
	switch a.Kind {
	case Flash:
		return fmt.Sprintf("flash %dus", a.D)
	case Gap:
		return fmt.Sprintf("gap %dus", a.D)
	case GapRange:
		return fmt.Sprintf("gap %d..%dus", a.DMin, a.DMax)
	case Trailing:
		return fmt.Sprintf("trailing to %dus", a.ExtentUs)
	case AssertEq:
		return "assert " + a.Name
	case Bind:
		if a.Name == "" {
			return "eps"
		}
		return "bind " + a.Name
	case Done:
		return "done"
	default:
		return "?"
	}
}
