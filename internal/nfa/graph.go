// Package nfa compiles a parsed IRP stream into a nondeterministic
// state machine that consumes flash/gap durations (with tolerance),
// solves bitfield equations on the fly, and recovers the original
// parameters — and runs that machine against a live sequence of
// flash/gap Events to decode it.
package nfa

import "github.com/n7dr/irp/internal/ast"

// ActionKind enumerates the closed set of edge actions.
type ActionKind int

const (
	Flash ActionKind = iota
	Gap
	GapRange
	Trailing
	AssertEq
	Bind
	Done
)

// Action is the payload carried by one Edge. Only the fields relevant
// to Kind are populated.
type Action struct {
	Kind ActionKind

	// Flash / Gap: exact expected duration in microseconds.
	D int64

	// GapRange: inclusive expected range in microseconds.
	DMin, DMax int64

	// Trailing: target extent in microseconds, measured from the last
	// point this path's elapsed-duration counter was reset.
	ExtentUs int64

	// AssertEq: Expr is evaluated against the path's current bindings
	// and compared for equality against the named accumulator.
	// Bind: Expr is evaluated against the path's current bindings
	// (the inverse solver's $value placeholder has already been
	// replaced by the decoded field's accumulator at build time) and
	// stored under Name. An empty Name
	// with a nil Expr is a structural no-op used to merge branches.
	Expr *ast.Expr
	Name string

	// Done: marks an accept point; Emit is always true when present.
	Emit bool

	// ResetElapsed, when true, resets the traversing path's elapsed
	// counter to zero before this edge's action (if any) is applied —
	// used entering a fresh enclosing stream so Trailing extents
	// measure from the right origin.
	ResetElapsed bool
}

// Edge connects two states and fires Action when traversed.
type Edge struct {
	Action Action
	To     *State
}

// State is a node in the compiled graph.
type State struct {
	ID  int
	Out []*Edge
}

// Graph is the compiled NFA for one protocol. It is immutable after
// Build returns and safe to share across many concurrent Decoders.
type Graph struct {
	Start      *State
	States     []*State
	Parameters []ast.ParameterSpec
}
