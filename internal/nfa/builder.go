package nfa

import (
	"fmt"
	"math/bits"

	"github.com/n7dr/irp/internal/ast"
	"github.com/n7dr/irp/internal/eval"
	"github.com/n7dr/irp/internal/invert"
	"github.com/n7dr/irp/internal/vartable"
)

// BuildError is returned by Build when a stream cannot be compiled
// into a finite graph.
type BuildError struct {
	Kind    string
	Message string
}

func (e *BuildError) Error() string { return e.Kind + ": " + e.Message }

// TooComplex is the BuildError.Kind used when a bitfield's length (or
// some other structural parameter) is not a build-time constant, so
// the builder cannot unroll it into states.
const TooComplex = "too complex"

type builder struct {
	g    *Graph
	gs   ast.GeneralSpec
	proto *ast.Protocol

	declared map[string]bool // names with a ParameterSpec
	paramWidth map[string]int
	coveredBits map[string]int
	bound    map[string]bool
	doneEmitted bool
	tmp      int
}

// Build compiles proto's stream into an NFA graph.
func Build(proto *ast.Protocol) (*Graph, error) {
	b := &builder{
		proto:       proto,
		gs:          proto.General,
		declared:    map[string]bool{},
		paramWidth:  map[string]int{},
		coveredBits: map[string]int{},
		bound:       map[string]bool{},
		g:           &Graph{Parameters: proto.Parameters},
	}
	empty := vartable.New()
	for _, ps := range proto.Parameters {
		b.declared[ps.Name] = true
		lo, _, errLo := eval.Eval(ps.Min, empty, proto.General.Order)
		hi, _, errHi := eval.Eval(ps.Max, empty, proto.General.Order)
		w := 8
		if errLo == nil && errHi == nil {
			w = bitWidthFor(lo, hi)
		}
		b.paramWidth[ps.Name] = w
	}

	b.g.Start = b.newState()
	cur, err := b.buildTopLevel(proto.Stream.Stream, b.g.Start)
	if err != nil {
		return nil, err
	}
	_ = cur
	return b.g, nil
}

func bitWidthFor(lo, hi int64) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi <= 0 {
		return 1
	}
	w := bits.Len64(uint64(hi))
	if w == 0 {
		w = 1
	}
	return w
}

func (b *builder) newState() *State {
	s := &State{ID: len(b.g.States)}
	b.g.States = append(b.g.States, s)
	return s
}

func (b *builder) edge(from *State, a Action, to *State) {
	from.Out = append(from.Out, &Edge{Action: a, To: to})
}

// buildTopLevel classifies the top-level body into intro / repeat unit
// / ending, same as the encoder, but emits graph structure instead of
// a waveform, and wires the repeat body into a cycle.
func (b *builder) buildTopLevel(s *ast.Stream, start *State) (*State, error) {
	cur := start
	var ending []*ast.Expr
	sawRepeat := false

	for _, item := range s.Body {
		if !sawRepeat && item.Kind == ast.KindStream && item.Stream.Repeat.Kind != ast.RepeatNone {
			sawRepeat = true
			// Mark the Done point at the end of the intro, in case every
			// declared parameter is already known by here (e.g. NEC1).
			cur = b.maybeEmitDone(cur)

			bitSpec := s.BitSpec
			if item.Stream.BitSpec != nil {
				bitSpec = item.Stream.BitSpec
			}
			repeatEntry := cur
			bodyEnd, err := b.buildItems(item.Stream.Body, bitSpec, repeatEntry, true)
			if err != nil {
				return nil, err
			}
			// Mark the Done point at the end of the repeat body too, in
			// case parameters only become fully known there (e.g. RC5,
			// whose whole payload lives inside the repeating block).
			bodyEnd = b.maybeEmitDone(bodyEnd)

			joined := b.newState()
			b.edge(bodyEnd, Action{Kind: Bind}, joined)     // exit after >=1 repeat
			b.edge(repeatEntry, Action{Kind: Bind}, joined) // exit after 0 repeats
			b.edge(bodyEnd, Action{Kind: Bind}, repeatEntry) // loop for further repeats
			cur = joined
			continue
		}
		if sawRepeat {
			ending = append(ending, item)
			continue
		}
		next, err := b.buildItem(item, s.BitSpec, cur, !sawRepeat && cur == start)
		if err != nil {
			return nil, err
		}
		cur = next
	}

	for _, item := range ending {
		next, err := b.buildItem(item, s.BitSpec, cur, false)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return b.maybeEmitDone(cur), nil
}

func (b *builder) buildItems(items []*ast.Expr, bitSpec []*ast.Expr, start *State, freshScope bool) (*State, error) {
	cur := start
	for i, item := range items {
		next, err := b.buildItem(item, bitSpec, cur, freshScope && i == 0)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func (b *builder) maybeEmitDone(cur *State) *State {
	if b.doneEmitted {
		return cur
	}
	for name := range b.declared {
		if !b.bound[name] {
			return cur
		}
	}
	ns := b.newState()
	b.edge(cur, Action{Kind: Done, Emit: true}, ns)
	b.doneEmitted = true
	return ns
}

func (b *builder) buildItem(item *ast.Expr, bitSpec []*ast.Expr, cur *State, resetElapsed bool) (*State, error) {
	gs := b.gs

	switch item.Kind {
	case ast.KindFlashConstant:
		d := durationMicros(item.Value, item.Unit, gs)
		ns := b.newState()
		b.edge(cur, Action{Kind: Flash, D: roundI64(d), ResetElapsed: resetElapsed}, ns)
		return ns, nil

	case ast.KindGapConstant:
		d := durationMicros(item.Value, item.Unit, gs)
		ns := b.newState()
		b.edge(cur, Action{Kind: Gap, D: roundI64(d), ResetElapsed: resetElapsed}, ns)
		return ns, nil

	case ast.KindExtentConstant:
		target := durationMicros(item.Value, item.Unit, gs)
		ns := b.newState()
		b.edge(cur, Action{Kind: Trailing, ExtentUs: roundI64(target), ResetElapsed: resetElapsed}, ns)
		return ns, nil

	case ast.KindFlashIdentifier, ast.KindGapIdentifier, ast.KindExtentIdentifier:
		// Value known only once the referenced parameter is bound; we
		// approximate by deferring to an AssertEq-style dynamic Flash
		// using the bound value at traversal time is out of scope for a
		// constant-duration edge, so treat the identifier's value as
		// already resolvable from parameters bound earlier in the
		// stream — realistic protocols only use this form after the
		// identifier has already been decoded.
		ns := b.newState()
		kind := Flash
		if item.Kind == ast.KindGapIdentifier {
			kind = Gap
		} else if item.Kind == ast.KindExtentIdentifier {
			kind = Trailing
		}
		ref := &ast.Expr{Kind: ast.KindIdentifier, Name: item.Name}
		b.edge(cur, Action{Kind: kind, Expr: ref, ResetElapsed: resetElapsed}, ns)
		return ns, nil

	case ast.KindAssignment:
		// Immediate-effect assignments (e.g. RC5's T=1-T) mutate the
		// encoder's own state for the *next* transmission; they carry
		// no information recoverable from the waveform, so the decode
		// graph skips them entirely.
		return cur, nil

	case ast.KindStream:
		n := 1
		innerBitSpec := bitSpec
		if item.Stream.BitSpec != nil {
			innerBitSpec = item.Stream.BitSpec
		}
		next := cur
		var err error
		for i := 0; i < n; i++ {
			next, err = b.buildItems(item.Stream.Body, innerBitSpec, next, resetElapsed && i == 0)
			if err != nil {
				return nil, err
			}
		}
		return next, nil

	case ast.KindVariation:
		// Each alternative becomes a parallel branch; the decoder's
		// nondeterminism picks whichever one actually matches.
		joined := b.newState()
		any := false
		for _, alt := range item.Alternatives {
			if len(alt) == 0 {
				b.edge(cur, Action{Kind: Bind}, joined)
				any = true
				continue
			}
			end, err := b.buildItems(alt, bitSpec, cur, resetElapsed)
			if err != nil {
				return nil, err
			}
			b.edge(end, Action{Kind: Bind}, joined)
			any = true
		}
		if !any {
			return cur, nil
		}
		return joined, nil

	case ast.KindInfiniteBitField:
		return nil, &BuildError{Kind: TooComplex, Message: "infinite bitfield cannot be bounded into states"}

	default:
		return b.buildBits(item, bitSpec, cur, resetElapsed)
	}
}

// buildBits unrolls a bitfield (or bare identifier used in a bit
// position) into a chain of per-bit(-group) dispatch states, folding
// the consumed bits into a temporary accumulator, then tries to
// recover the parameter(s) the field encodes via the inverse solver.
func (b *builder) buildBits(item *ast.Expr, bitSpec []*ast.Expr, cur *State, resetElapsed bool) (*State, error) {
	if len(bitSpec) == 0 {
		return nil, &BuildError{Kind: TooComplex, Message: "bit-valued expression outside a bit-spec stream"}
	}

	empty := vartable.New()
	var length int64
	var valueExpr *ast.Expr
	var skip int64
	var reverse bool

	switch item.Kind {
	case ast.KindBitField:
		l, _, err := eval.Eval(item.Right, empty, b.proto.General.Order)
		if err != nil {
			return nil, &BuildError{Kind: TooComplex, Message: "bitfield length is not a constant: " + err.Error()}
		}
		length = l
		valueExpr = item.Left
		reverse = item.Reverse
		if item.Third != nil {
			s, _, err := eval.Eval(item.Third, empty, b.proto.General.Order)
			if err != nil {
				return nil, &BuildError{Kind: TooComplex, Message: "bitfield skip is not a constant"}
			}
			skip = s
		}
	case ast.KindIdentifier:
		length = int64(b.paramWidth[item.Name])
		if length == 0 {
			length = 8
		}
		valueExpr = item
	default:
		return nil, &BuildError{Kind: TooComplex, Message: fmt.Sprintf("unsupported stream item kind %d", item.Kind)}
	}

	fieldVar := fmt.Sprintf("$field%d", b.tmp)
	b.tmp++

	init := b.newState()
	b.edge(cur, Action{Kind: Bind, Name: fieldVar, Expr: &ast.Expr{Kind: ast.KindNumber, Number: 0}, ResetElapsed: resetElapsed}, init)
	entry := init

	bitsPerGroup := 1
	if len(bitSpec) == 4 {
		bitsPerGroup = 2
	}

	var positions []int64
	if b.proto.General.Order == ast.MSB {
		for p := length - int64(bitsPerGroup); p >= 0; p -= int64(bitsPerGroup) {
			positions = append(positions, p)
		}
	} else {
		for p := int64(0); p < length; p += int64(bitsPerGroup) {
			positions = append(positions, p)
		}
	}

	for _, p := range positions {
		groupCount := 1 << uint(bitsPerGroup)
		branchEnds := make([]*State, 0, groupCount)
		for g := 0; g < groupCount; g++ {
			alt := bitSpec[g]
			if alt.Kind != ast.KindList {
				return nil, &BuildError{Kind: TooComplex, Message: "malformed bit-spec alternative"}
			}
			end, err := b.buildItems(alt.Items, bitSpec, entry, false)
			if err != nil {
				return nil, err
			}
			ns := b.newState()
			contrib := &ast.Expr{Kind: ast.KindNumber, Number: int64(g) << uint(p)}
			merged := &ast.Expr{Kind: ast.KindBitwiseOr, Left: &ast.Expr{Kind: ast.KindIdentifier, Name: fieldVar}, Right: contrib}
			b.edge(end, Action{Kind: Bind, Name: fieldVar, Expr: merged}, ns)
			branchEnds = append(branchEnds, ns)
		}
		joined := b.newState()
		for _, e := range branchEnds {
			b.edge(e, Action{Kind: Bind}, joined)
		}
		entry = joined
	}

	// The fold above accumulates through BitwiseOr/Number nodes, whose
	// width is always 64 in this evaluator; pin the accumulator's width
	// back down to the field's declared length via a BitField wrapper
	// so width-sensitive inversions (Complement, BitReverse) operate on
	// the right number of bits.
	pinned := b.newState()
	b.edge(entry, Action{Kind: Bind, Name: fieldVar, Expr: &ast.Expr{
		Kind:  ast.KindBitField,
		Left:  &ast.Expr{Kind: ast.KindIdentifier, Name: fieldVar},
		Right: &ast.Expr{Kind: ast.KindNumber, Number: length},
	}}, pinned)
	entry = pinned

	// Try to recover the underlying parameter(s) this field contributes
	// to. windowExpr expresses the target's bits at this field's window
	// in terms of the decoded fieldVar.
	target, ok := soleUnboundIdentifier(valueExpr, b.declared, b.bound)
	if !ok {
		// Nothing new to learn (fully-bound already, or not a simple
		// single-parameter expression): just validate consistency.
		ns := b.newState()
		b.edge(entry, Action{Kind: AssertEq, Expr: valueExpr, Name: fieldVar}, ns)
		return ns, nil
	}

	windowExpr, ok := invert.Solve(valueExpr, target)
	if !ok {
		ns := b.newState()
		b.edge(entry, Action{Kind: AssertEq, Expr: valueExpr, Name: fieldVar}, ns)
		return ns, nil
	}
	windowExpr = substitutePlaceholder(windowExpr, &ast.Expr{Kind: ast.KindIdentifier, Name: fieldVar})
	if reverse {
		windowExpr = &ast.Expr{Kind: ast.KindBitReverse, Left: windowExpr, Width: length}
	}
	contribution := windowExpr
	if skip != 0 {
		contribution = &ast.Expr{Kind: ast.KindShiftLeft, Left: windowExpr, Right: &ast.Expr{Kind: ast.KindNumber, Number: skip}}
	}

	width := b.paramWidth[target]
	if width == 0 {
		width = int(skip + length)
	}

	var bindExpr *ast.Expr
	if !b.coveredAny(target) {
		bindExpr = contribution
	} else {
		bindExpr = &ast.Expr{Kind: ast.KindBitwiseOr, Left: &ast.Expr{Kind: ast.KindIdentifier, Name: target}, Right: contribution}
	}
	ns := b.newState()
	b.edge(entry, Action{Kind: Bind, Name: target, Expr: bindExpr}, ns)

	b.coveredBits[target] += int(length)
	if b.coveredBits[target] >= width {
		b.bound[target] = true
	}

	return ns, nil
}

func (b *builder) coveredAny(name string) bool { return b.coveredBits[name] > 0 }

// soleUnboundIdentifier returns the single declared-parameter
// identifier referenced by e that is not yet marked bound, if exactly
// one such identifier occurs.
func soleUnboundIdentifier(e *ast.Expr, declared, bound map[string]bool) (string, bool) {
	found := ""
	count := 0
	var walk func(n *ast.Expr)
	walk = func(n *ast.Expr) {
		if n == nil {
			return
		}
		if n.Kind == ast.KindIdentifier && declared[n.Name] && !bound[n.Name] {
			found = n.Name
			count++
		}
		walk(n.Left)
		walk(n.Right)
		walk(n.Third)
		for _, it := range n.Items {
			walk(it)
		}
	}
	walk(e)
	if count != 1 {
		return "", false
	}
	return found, true
}

func substitutePlaceholder(e, with *ast.Expr) *ast.Expr {
	if e == nil {
		return nil
	}
	if e.Kind == ast.KindIdentifier && e.Name == invert.PlaceholderName {
		return with
	}
	cp := *e
	cp.Left = substitutePlaceholder(e.Left, with)
	cp.Right = substitutePlaceholder(e.Right, with)
	cp.Third = substitutePlaceholder(e.Third, with)
	return &cp
}

func roundI64(d float64) int64 {
	if d < 0 {
		d = 0
	}
	return int64(d + 0.5)
}

func durationMicros(value float64, unit ast.Unit, gs ast.GeneralSpec) float64 {
	switch unit {
	case ast.UnitMicroseconds:
		return value
	case ast.UnitMilliseconds:
		return value * 1000
	case ast.UnitPulses:
		return value * carrierPeriod(gs.FrequencyHz)
	default:
		if gs.UnitKind == ast.UnitCarrierPulses {
			return value * gs.Unit * carrierPeriod(gs.FrequencyHz)
		}
		return value * gs.Unit
	}
}

func carrierPeriod(freqHz int64) float64 {
	if freqHz <= 0 {
		return 1
	}
	return 1e6 / float64(freqHz)
}
