// Package pronto parses and encodes Pronto Hex codes, the 4-digit-hex
// per-word format popularized by Philips Pronto universal remotes.
// Only the long-form (learned) codes are supported.
package pronto

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/n7dr/irp/internal/message"
)

// Kind distinguishes modulated from unmodulated learned codes.
type Kind int

const (
	LearnedModulated Kind = iota
	LearnedUnmodulated
)

const tickUs = 0.241246 // microseconds per unit of the Pronto carrier divisor (word 1)

// Code is a parsed Pronto hex string.
type Code struct {
	Kind      Kind
	Frequency float64 // Hz
	Intro     []float64
	Repeat    []float64
}

// Error reports a malformed Pronto code.
type Error struct{ Msg string }

func (e *Error) Error() string { return "pronto: " + e.Msg }

// Parse decodes a whitespace-separated Pronto hex string.
func Parse(s string) (*Code, error) {
	fields := strings.Fields(s)
	words := make([]uint64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 16, 16)
		if err != nil {
			return nil, &Error{Msg: fmt.Sprintf("word %d (%q) is not 4 hex digits", i, f)}
		}
		words[i] = v
	}
	if len(words) < 4 {
		return nil, &Error{Msg: "too short for a header"}
	}

	var kind Kind
	switch words[0] {
	case 0x0000:
		kind = LearnedModulated
	case 0x0100:
		kind = LearnedUnmodulated
	default:
		return nil, &Error{Msg: fmt.Sprintf("unsupported format word %#04x", words[0])}
	}

	freq := 0.0
	if words[1] != 0 {
		freq = 1e6 / (float64(words[1]) * tickUs)
	}

	introPairs := int(words[2])
	repeatPairs := int(words[3])
	need := 4 + 2*(introPairs+repeatPairs)
	if len(words) != need {
		return nil, &Error{Msg: "word count does not match declared intro/repeat pair counts"}
	}

	// Durations are counted in carrier periods.
	unitUs := tickUs
	if words[1] != 0 {
		unitUs = float64(words[1]) * tickUs
	}
	toDurations := func(ws []uint64) []float64 {
		out := make([]float64, len(ws))
		for i, w := range ws {
			out[i] = float64(w) * unitUs
		}
		return out
	}

	intro := toDurations(words[4 : 4+2*introPairs])
	repeat := toDurations(words[4+2*introPairs : 4+2*introPairs+2*repeatPairs])

	return &Code{Kind: kind, Frequency: freq, Intro: intro, Repeat: repeat}, nil
}

// Encode renders c as a Message, playing the intro once followed by
// repeats copies of the repeat sequence (0 means intro only).
func (c *Code) Encode(repeats int) *message.Message {
	m := &message.Message{}
	carrier := int64(c.Frequency)
	if c.Kind == LearnedUnmodulated {
		carrier = 0
	}
	m.Carrier = &carrier

	appendAll := func(durations []float64) {
		for i, d := range durations {
			m.Append(i%2 == 0, uint32(d+0.5))
		}
	}
	appendAll(c.Intro)
	for i := 0; i < repeats; i++ {
		appendAll(c.Repeat)
	}
	m.EnsureTrailingGap()
	return m
}

// EncodeFromMessage builds a learned Pronto code (modulated, or
// unmodulated when the carrier is 0) from an already-encoded Message
// split into its intro and repeat portions.
func EncodeFromMessage(m *message.Message, introLen int) (*Code, error) {
	if m.Carrier == nil {
		return nil, &Error{Msg: "message has no known carrier"}
	}
	kind := LearnedModulated
	freq := float64(*m.Carrier)
	if *m.Carrier == 0 {
		kind = LearnedUnmodulated
		freq = 38000 // Pronto still needs a nominal tick base
	}
	if introLen > len(m.Raw) {
		introLen = len(m.Raw)
	}
	intro := make([]float64, introLen)
	for i := 0; i < introLen; i++ {
		intro[i] = float64(m.Raw[i])
	}
	rest := make([]float64, len(m.Raw)-introLen)
	for i := introLen; i < len(m.Raw); i++ {
		rest[i-introLen] = float64(m.Raw[i])
	}
	return &Code{Kind: kind, Frequency: freq, Intro: intro, Repeat: rest}, nil
}

// String renders c back into Pronto hex text.
func (c *Code) String() string {
	var b strings.Builder
	format := uint16(0x0000)
	if c.Kind == LearnedUnmodulated {
		format = 0x0100
	}
	period := uint16(0)
	if c.Frequency > 0 {
		period = uint16(1e6/c.Frequency/tickUs + 0.5)
	}
	unitUs := tickUs
	if period > 0 {
		unitUs = float64(period) * tickUs
	}
	fmt.Fprintf(&b, "%04X %04X %04X %04X", format, period, len(c.Intro)/2, len(c.Repeat)/2)
	writeTicks := func(durations []float64) {
		for _, d := range durations {
			ticks := uint16(d/unitUs + 0.5)
			fmt.Fprintf(&b, " %04X", ticks)
		}
	}
	writeTicks(c.Intro)
	writeTicks(c.Repeat)
	return b.String()
}
