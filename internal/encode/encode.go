// Package encode walks a parsed IRP stream and evaluates it into a
// raw flash/gap Message, honouring carrier, unit, bit-ordering,
// bit-spec dispatch, repeat-marker semantics, extents, and variations.
package encode

import (
	"math"

	"github.com/n7dr/irp/internal/ast"
	"github.com/n7dr/irp/internal/eval"
	"github.com/n7dr/irp/internal/message"
	"github.com/n7dr/irp/internal/vartable"
)

// Encoder encodes a single parsed protocol. It holds no mutable state
// of its own; all per-call state lives in vartable.Table, which the
// caller owns (and which is how memory/toggle parameters like RC5's T
// persist across calls).
type Encoder struct {
	proto *ast.Protocol
}

// New returns an Encoder for proto.
func New(proto *ast.Protocol) *Encoder {
	return &Encoder{proto: proto}
}

// Encode validates vars against the protocol's parameter spec, fills
// in defaults and lazy definitions, and emits one intro, n repeat
// bodies, and (when declared) one ending.
func (enc *Encoder) Encode(vars *vartable.Table, repeats int) (*message.Message, error) {
	order := enc.proto.General.Order

	if err := enc.bindParameters(vars, order); err != nil {
		return nil, err
	}
	for _, def := range enc.proto.Definitions {
		vars.SetLazy(def.Name, def.Left)
	}

	msg := &message.Message{}
	carrier := enc.proto.General.FrequencyHz
	msg.Carrier = &carrier
	msg.DutyCycle = enc.proto.General.DutyCycle

	w := &walker{enc: enc, vars: vars, msg: msg, order: order}
	top := enc.proto.Stream.Stream
	if top.Repeat.Kind != ast.RepeatNone {
		// A repeat marker on the outermost stream makes its whole body
		// the repeat unit.
		top = &ast.Stream{BitSpec: top.BitSpec, Body: []*ast.Expr{enc.proto.Stream}}
	}
	if err := w.walkTopLevel(top, repeats); err != nil {
		return nil, err
	}
	msg.EnsureTrailingGap()
	return msg, nil
}

func (enc *Encoder) bindParameters(vars *vartable.Table, order ast.BitOrder) error {
	for _, ps := range enc.proto.Parameters {
		if vars.Has(ps.Name) {
			continue
		}
		if ps.Default != nil {
			vars.SetLazy(ps.Name, ps.Default)
			continue
		}
		return &Error{Kind: MissingParameter, Name: ps.Name}
	}
	for _, ps := range enc.proto.Parameters {
		v, _, err := eval.Eval(&ast.Expr{Kind: ast.KindIdentifier, Name: ps.Name}, vars, order)
		if err != nil {
			return &Error{Kind: MissingParameter, Name: ps.Name, Message: err.Error()}
		}
		lo, _, err := eval.Eval(ps.Min, vars, order)
		if err != nil {
			return &Error{Kind: OutOfRange, Name: ps.Name, Message: err.Error()}
		}
		hi, _, err := eval.Eval(ps.Max, vars, order)
		if err != nil {
			return &Error{Kind: OutOfRange, Name: ps.Name, Message: err.Error()}
		}
		if v < lo || v > hi {
			return &Error{Kind: OutOfRange, Name: ps.Name, Message: "value out of declared range"}
		}
	}
	return nil
}

// walker carries the per-Encode mutable state: the live vartable, the
// message under construction, and the bit order.
type walker struct {
	enc   *Encoder
	vars  *vartable.Table
	msg   *message.Message
	order ast.BitOrder
}

// walkTopLevel classifies the top-level stream's body into intro items
// (before the first nested repeat-bearing sub-stream), a repeat unit,
// and ending items (after it), then plays each in turn.
func (w *walker) walkTopLevel(s *ast.Stream, repeats int) error {
	cumulative := 0.0
	var ending []*ast.Expr
	sawRepeat := false

	hadIntro := false
	for _, item := range s.Body {
		if !sawRepeat && item.Kind == ast.KindStream && item.Stream.Repeat.Kind != ast.RepeatNone {
			sawRepeat = true
			n := effectiveCount(item.Stream.Repeat, repeats)
			if !hadIntro && item.Stream.Repeat.Kind == ast.RepeatAny && n < 1 {
				// No separate intro precedes this block: it is the
				// whole message, so at least one transmission always
				// happens regardless of the requested repeat count.
				n = 1
			}
			bitSpec := s.BitSpec
			if item.Stream.BitSpec != nil {
				bitSpec = item.Stream.BitSpec
			}
			for i := 0; i < n; i++ {
				c := 0.0
				if err := w.walkItems(item.Stream.Body, bitSpec, 1, &c); err != nil {
					return err
				}
			}
			continue
		}
		pass := 0
		if sawRepeat {
			pass = 2
			ending = append(ending, item)
			continue
		}
		if err := w.walkItem(item, s.BitSpec, pass, &cumulative); err != nil {
			return err
		}
		hadIntro = true
	}

	// Ending items execute once, after all repeats, continuing the
	// outer cumulative duration (they do not see the repeat body's
	// internal timing).
	for _, item := range ending {
		if err := w.walkItem(item, s.BitSpec, 2, &cumulative); err != nil {
			return err
		}
	}
	return nil
}

func effectiveCount(r ast.Repeat, requested int) int {
	switch r.Kind {
	case ast.RepeatAny:
		if requested < 0 {
			return 0
		}
		return requested
	case ast.RepeatOneOrMore:
		if requested < 1 {
			return 1
		}
		return requested
	case ast.RepeatCount:
		return int(r.Count)
	case ast.RepeatCountOrMore:
		if int64(requested) < r.Count {
			return int(r.Count)
		}
		return requested
	default:
		return 0
	}
}

func (w *walker) walkItems(items []*ast.Expr, bitSpec []*ast.Expr, pass int, cumulative *float64) error {
	for _, item := range items {
		if err := w.walkItem(item, bitSpec, pass, cumulative); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) walkItem(item *ast.Expr, bitSpec []*ast.Expr, pass int, cumulative *float64) error {
	gs := w.enc.proto.General

	switch item.Kind {
	case ast.KindFlashConstant:
		d := durationMicros(item.Value, item.Unit, gs)
		w.msg.Append(true, roundU32(d))
		*cumulative += d
		return nil

	case ast.KindGapConstant:
		d := durationMicros(item.Value, item.Unit, gs)
		w.msg.Append(false, roundU32(d))
		*cumulative += d
		return nil

	case ast.KindExtentConstant:
		target := durationMicros(item.Value, item.Unit, gs)
		remainder := target - *cumulative
		if remainder <= 0 {
			return &Error{Kind: ExtentExhausted, Message: "cumulative duration already exceeds extent target"}
		}
		w.msg.Append(false, roundU32(remainder))
		*cumulative = target
		return nil

	case ast.KindFlashIdentifier:
		v, _, err := eval.Eval(&ast.Expr{Kind: ast.KindIdentifier, Name: item.Name}, w.vars, w.order)
		if err != nil {
			return &Error{Kind: MissingParameter, Name: item.Name, Message: err.Error()}
		}
		d := durationMicros(float64(v), ast.UnitBare, gs)
		w.msg.Append(true, roundU32(d))
		*cumulative += d
		return nil

	case ast.KindGapIdentifier:
		v, _, err := eval.Eval(&ast.Expr{Kind: ast.KindIdentifier, Name: item.Name}, w.vars, w.order)
		if err != nil {
			return &Error{Kind: MissingParameter, Name: item.Name, Message: err.Error()}
		}
		d := durationMicros(float64(v), ast.UnitBare, gs)
		w.msg.Append(false, roundU32(d))
		*cumulative += d
		return nil

	case ast.KindExtentIdentifier:
		v, _, err := eval.Eval(&ast.Expr{Kind: ast.KindIdentifier, Name: item.Name}, w.vars, w.order)
		if err != nil {
			return &Error{Kind: MissingParameter, Name: item.Name, Message: err.Error()}
		}
		target := durationMicros(float64(v), ast.UnitBare, gs)
		remainder := target - *cumulative
		if remainder <= 0 {
			return &Error{Kind: ExtentExhausted, Message: "cumulative duration already exceeds extent target"}
		}
		w.msg.Append(false, roundU32(remainder))
		*cumulative = target
		return nil

	case ast.KindAssignment:
		v, width, err := eval.Eval(item.Left, w.vars, w.order)
		if err != nil {
			return &Error{Kind: Unsupported, Message: err.Error()}
		}
		w.vars.Set(item.Name, v, width)
		return nil

	case ast.KindStream:
		n := effectiveCount(item.Stream.Repeat, 0)
		if item.Stream.Repeat.Kind == ast.RepeatNone {
			n = 1
		}
		innerBitSpec := bitSpec
		if item.Stream.BitSpec != nil {
			innerBitSpec = item.Stream.BitSpec
		}
		for i := 0; i < n; i++ {
			c := 0.0
			if err := w.walkItems(item.Stream.Body, innerBitSpec, pass, &c); err != nil {
				return err
			}
		}
		return nil

	case ast.KindVariation:
		chosen, ok := selectVariation(item.Alternatives, pass)
		if !ok {
			return &Error{Kind: UnresolvableVariation, Message: "no alternative for pass"}
		}
		return w.walkItems(chosen, bitSpec, pass, cumulative)

	case ast.KindInfiniteBitField:
		return &Error{Kind: Unsupported, Message: "infinite bitfield outside bit-spec dispatch"}

	default:
		// bitfield or bare identifier used in a bit position
		return w.consumeBits(item, bitSpec, pass, cumulative)
	}
}

// selectVariation resolves alts[pass], falling back to the previous
// non-empty alternative when the requested pass is absent.
func selectVariation(alts [][]*ast.Expr, pass int) ([]*ast.Expr, bool) {
	if pass < len(alts) && len(alts[pass]) > 0 {
		return alts[pass], true
	}
	for i := pass - 1; i >= 0; i-- {
		if i < len(alts) && len(alts[i]) > 0 {
			return alts[i], true
		}
	}
	if pass >= len(alts) && len(alts) > 0 {
		last := alts[len(alts)-1]
		if len(last) > 0 {
			return last, true
		}
	}
	return nil, false
}

// consumeBits emits the bits of a bitfield or bare identifier one (or
// two, for a 4-alternative bit-spec) at a time, dispatching each group
// through the enclosing stream's bit-spec alternatives.
func (w *walker) consumeBits(item *ast.Expr, bitSpec []*ast.Expr, pass int, cumulative *float64) error {
	if len(bitSpec) == 0 {
		return &Error{Kind: Unsupported, Message: "bit-valued expression outside a bit-spec stream"}
	}

	value, length, err := eval.Eval(item, w.vars, w.order)
	if err != nil {
		return &Error{Kind: MissingParameter, Message: err.Error()}
	}
	if item.Kind == ast.KindIdentifier {
		// bare identifier: width comes from its declared binding
		if _, w2, ok := w.vars.Get(item.Name); ok {
			length = w2
		}
	}

	bitsPerGroup := 1
	if len(bitSpec) == 4 {
		bitsPerGroup = 2
	}

	positions := make([]int, 0, length)
	if w.order == ast.MSB {
		for p := length - bitsPerGroup; p >= 0; p -= bitsPerGroup {
			positions = append(positions, p)
		}
	} else {
		for p := 0; p < length; p += bitsPerGroup {
			positions = append(positions, p)
		}
	}

	for _, p := range positions {
		group := uint64(value>>uint(p)) & ((1 << uint(bitsPerGroup)) - 1)
		alt := bitSpec[group]
		if alt.Kind != ast.KindList {
			return &Error{Kind: Unsupported, Message: "malformed bit-spec alternative"}
		}
		if err := w.walkItems(alt.Items, bitSpec, pass, cumulative); err != nil {
			return err
		}
	}
	return nil
}

func roundU32(d float64) uint32 {
	if d < 0 {
		d = 0
	}
	return uint32(math.Round(d))
}

// durationMicros converts a duration atom to microseconds. UnitBare
// defers to the general spec's declared unit (absolute microseconds,
// or pulses of the carrier period); the other tags are absolute on the
// atom itself regardless of the general spec.
func durationMicros(value float64, unit ast.Unit, gs ast.GeneralSpec) float64 {
	switch unit {
	case ast.UnitMicroseconds:
		return value
	case ast.UnitMilliseconds:
		return value * 1000
	case ast.UnitPulses:
		return value * carrierPeriod(gs.FrequencyHz)
	default: // UnitBare
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
