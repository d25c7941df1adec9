// Package mode2 parses the lirc "mode2" pulse/space text format: one
// "pulse N" or "space N" line per flash/gap, with optional "carrier N"
// and "timeout N" lines.
package mode2

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/n7dr/irp/internal/message"
)

// Error reports a malformed mode2 line.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string { return "mode2: line " + strconv.Itoa(e.Line) + ": " + e.Msg }

// Parse reads mode2 text into a Message. "pulse"/"space" lines become
// alternating Raw entries (a leading mismatch against the expected
// flash/gap parity is repaired by inserting a zero-length entry, same
// as message.Append); "carrier" sets Carrier.
func Parse(s string) (*message.Message, error) {
	m := &message.Message{}
	sc := bufio.NewScanner(strings.NewReader(s))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, &Error{Line: lineNo, Msg: "expected \"keyword value\""}
		}
		val, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, &Error{Line: lineNo, Msg: "value is not a number"}
		}
		switch fields[0] {
		case "pulse":
			m.Append(true, uint32(val))
		case "space":
			m.Append(false, uint32(val))
		case "carrier":
			c := val
			m.Carrier = &c
		case "timeout":
			// Informational trailing gap duration; absorbed as a
			// normal gap so it can be consumed by an extent.
			m.Append(false, uint32(val))
		default:
			return nil, &Error{Line: lineNo, Msg: "unknown keyword " + fields[0]}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	m.EnsureTrailingGap()
	return m, nil
}

// Format renders m in mode2 text form.
func Format(m *message.Message) string {
	var b strings.Builder
	if m.Carrier != nil {
		b.WriteString("carrier ")
		b.WriteString(strconv.FormatInt(*m.Carrier, 10))
		b.WriteString("\n")
	}
	for i, d := range m.Raw {
		if i%2 == 0 {
			b.WriteString("pulse ")
		} else {
			b.WriteString("space ")
		}
		b.WriteString(strconv.FormatUint(uint64(d), 10))
		b.WriteString("\n")
	}
	return b.String()
}
