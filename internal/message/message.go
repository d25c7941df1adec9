// Package message defines the shared waveform type that the encoder
// produces and every format adapter (Pronto, lirc mode2, raw-IR)
// consumes or produces.
package message

import (
	"strconv"
	"strings"
)

// Message is an encoded (or decoded-from-text) raw infrared waveform.
// Raw[i] for even i is a flash duration in microseconds; for odd i it
// is a gap. The sequence always ends on a gap.
type Message struct {
	// Carrier is the modulation frequency in Hz. nil means unknown,
	// Some(0) means unmodulated (DC).
	Carrier *int64
	// DutyCycle is a percentage in [1,99], nil if unknown.
	DutyCycle *int
	Raw       []uint32
}

// Flashes returns the even-indexed (flash) entries.
func (m *Message) Flashes() []uint32 { return every(m.Raw, 0) }

// Gaps returns the odd-indexed (gap) entries.
func (m *Message) Gaps() []uint32 { return every(m.Raw, 1) }

func every(raw []uint32, offset int) []uint32 {
	var out []uint32
	for i := offset; i < len(raw); i += 2 {
		out = append(out, raw[i])
	}
	return out
}

// String renders the message in raw-IR text form: "+d" for flashes,
// "-d" for gaps, space separated. Carrier/duty cycle are not part of
// this representation.
func (m *Message) String() string {
	parts := make([]string, len(m.Raw))
	for i, d := range m.Raw {
		sign := "+"
		if i%2 == 1 {
			sign = "-"
		}
		parts[i] = sign + strconv.FormatUint(uint64(d), 10)
	}
	return strings.Join(parts, " ")
}

// Append merges d into the sequence, collapsing it into the previous
// entry if doing so would otherwise create two adjacent entries of the
// same polarity — this is the only place the encoder needs to enforce
// the "no two adjacent entries of the same polarity" invariant, since
// every other mutation of Raw goes through Append.
func (m *Message) Append(flash bool, d uint32) {
	wantParity := 0
	if !flash {
		wantParity = 1
	}
	if len(m.Raw) > 0 && (len(m.Raw)-1)%2 == wantParity {
		m.Raw[len(m.Raw)-1] += d
		return
	}
	if len(m.Raw)%2 != wantParity {
		// The sequence expects the opposite polarity next; bridge the
		// gap with a zero-length entry of the missing polarity so the
		// even/odd = flash/gap invariant never breaks.
		m.Raw = append(m.Raw, 0)
	}
	m.Raw = append(m.Raw, d)
}

// EnsureTrailingGap appends a zero-length gap if the sequence
// currently ends on a flash.
func (m *Message) EnsureTrailingGap() {
	if len(m.Raw)%2 == 1 {
		m.Raw = append(m.Raw, 0)
	}
}
