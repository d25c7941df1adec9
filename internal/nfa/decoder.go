package nfa

import (
	"github.com/n7dr/irp/internal/ast"
	"github.com/n7dr/irp/internal/eval"
	"github.com/n7dr/irp/internal/vartable"
)

// Event is one timestamped flash or gap fed to a Decoder.
type Event struct {
	Flash bool
	Us    int64
}

type binding struct {
	value int64
	width int
}

// path is one live candidate traversal of the graph.
type path struct {
	state    *State
	bindings map[string]binding
	elapsed  int64
}

func (p path) clone() path {
	nb := make(map[string]binding, len(p.bindings))
	for k, v := range p.bindings {
		nb[k] = v
	}
	return path{state: p.state, bindings: nb, elapsed: p.elapsed}
}

// Tolerance controls how far an observed duration may deviate from
// the expected one and still match.
type Tolerance struct {
	AbsoluteUs  int64
	RelativePct int64
}

func (t Tolerance) matches(observed, expected int64) bool {
	if expected < 0 {
		return false
	}
	diff := observed - expected
	if diff < 0 {
		diff = -diff
	}
	bound := t.AbsoluteUs
	rel := expected * t.RelativePct / 100
	if rel > bound {
		bound = rel
	}
	return diff <= bound
}

// Decoder runs a Graph against a live sequence of Events, accumulating
// parameter bindings along every still-viable path and emitting a
// result map each time a path reaches a Done edge.
type Decoder struct {
	graph *Graph
	tol   Tolerance
	order ast.BitOrder
	live  []path
}

// NewDecoder returns a Decoder positioned at the graph's start state.
func NewDecoder(g *Graph, order ast.BitOrder, tol Tolerance) *Decoder {
	d := &Decoder{graph: g, tol: tol, order: order}
	d.Reset()
	return d
}

// Reset discards all live paths and restarts at the graph's entry
// state — used between frames and whenever a long gap (or an explicit
// out-of-band reset) breaks the signal.
func (d *Decoder) Reset() {
	start := path{state: d.graph.Start, bindings: map[string]binding{}}
	d.live = d.epsilonClose([]path{start}, nil)
}

// Step feeds one observed flash/gap event to every live path, drops
// paths that no longer match anything, and returns any parameter maps
// produced by paths that reached a Done edge on this step.
func (d *Decoder) Step(ev Event) []map[string]int64 {
	var results []map[string]int64
	var next []path

	for _, p := range d.live {
		for _, e := range p.state.Out {
			if !consumesInput(e.Action.Kind) {
				continue
			}
			if isFlashKind(e.Action.Kind) != ev.Flash {
				continue
			}
			expected, ok := d.expectedDuration(e.Action, p)
			if !ok || !d.tol.matches(ev.Us, expected) {
				continue
			}
			np := p.clone()
			if e.Action.ResetElapsed {
				np.elapsed = 0
			}
			np.elapsed += ev.Us
			np.state = e.To
			next = append(next, np)
		}
	}

	d.live = d.epsilonClose(next, &results)
	return results
}

func consumesInput(k ActionKind) bool {
	return k == Flash || k == Gap || k == GapRange || k == Trailing
}

func isFlashKind(k ActionKind) bool { return k == Flash }

// expectedDuration resolves the expected duration of a consuming edge
// against the path's current bindings. For Flash/Gap with a constant
// D, that's just D; for a dynamic identifier-valued edge or a
// Trailing extent, it depends on the path's bindings/elapsed so far.
func (d *Decoder) expectedDuration(a Action, p path) (int64, bool) {
	switch a.Kind {
	case Flash, Gap:
		if a.Expr != nil {
			v, _, err := d.evalIn(a.Expr, p)
			if err != nil {
				return 0, false
			}
			return v, true
		}
		return a.D, true
	case GapRange:
		return (a.DMin + a.DMax) / 2, true
	case Trailing:
		rem := a.ExtentUs - p.elapsed
		if rem <= 0 {
			return 0, false
		}
		return rem, true
	default:
		return 0, false
	}
}

// epsilonClose follows every Bind/AssertEq/Done edge reachable without
// consuming input, merges bindings, validates assertions (dropping
// paths that fail), and appends to results when a Done edge fires.
// A path is left parked at every state it reaches that has an
// outgoing edge consuming input, or no outgoing edge at all; epsilon
// edges leaving such a state are followed as well.
func (d *Decoder) epsilonClose(start []path, results *[]map[string]int64) []path {
	var out []path
	seen := map[*State]bool{}

	var visit func(p path)
	visit = func(p path) {
		progressed := false
		waits := false
		for _, e := range p.state.Out {
			if consumesInput(e.Action.Kind) {
				waits = true
				continue
			}
			progressed = true
			np := p.clone()
			if e.Action.ResetElapsed {
				np.elapsed = 0
			}
			switch e.Action.Kind {
			case Bind:
				if e.Action.Name != "" {
					v, w, err := d.evalIn(e.Action.Expr, np)
					if err != nil {
						continue
					}
					np.bindings[e.Action.Name] = binding{value: v, width: w}
				}
			case AssertEq:
				v, _, err := d.evalIn(e.Action.Expr, np)
				if err != nil {
					continue
				}
				want, ok := np.bindings[e.Action.Name]
				if !ok || v != want.value {
					continue
				}
			case Done:
				if results != nil {
					snap := map[string]int64{}
					for _, ps := range d.graph.Parameters {
						if b, ok := np.bindings[ps.Name]; ok {
							snap[ps.Name] = b.value
						}
					}
					*results = append(*results, snap)
				}
			}
			np.state = e.To
			visit(np)
		}
		if waits || !progressed {
			key := p.state
			if !seen[key] {
				seen[key] = true
			}
			out = append(out, p)
		}
	}

	for _, p := range start {
		visit(p)
	}
	return out
}

func (d *Decoder) evalIn(e *ast.Expr, p path) (int64, int, error) {
	vt := vartable.New()
	for name, b := range p.bindings {
		vt.Set(name, b.value, b.width)
	}
	return eval.Eval(e, vt, d.order)
}
