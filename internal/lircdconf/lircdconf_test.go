package lircdconf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/n7dr/irp/internal/lircdconf"
	"github.com/n7dr/irp/internal/parser"
)

func TestIRPNEC1Style(t *testing.T) {
	r := lircdconf.Remote{
		Name:      "nec1_style",
		Frequency: 38000,
		Bit: []lircdconf.Pair{
			{Pulse: 564, Space: 564},
			{Pulse: 564, Space: 1692},
		},
		Header: lircdconf.Pair{Pulse: 9024, Space: 4512},
		Bits:   32,
		Ptrail: 564,
		Gap:    108000,
		Repeat: lircdconf.Pair{Pulse: 9024, Space: 2256},
	}

	irp := r.IRP()
	assert.Contains(t, irp, "{38k,msb}<564,-564|564,-1692>(")
	assert.Contains(t, irp, "9024,-4512,")
	assert.Contains(t, irp, "CODE:32,")
	assert.Contains(t, irp, "^108000,")
	assert.Contains(t, irp, "(9024,-2256,564)*)")
	assert.Contains(t, irp, "[CODE:0..4294967295]")

	_, err := parser.Parse(irp)
	assert.NoError(t, err, "generated IRP must itself parse")
}

func TestIRPNoRepeatUsesPlusForm(t *testing.T) {
	r := lircdconf.Remote{
		Bit: []lircdconf.Pair{
			{Pulse: 400, Space: 400},
			{Pulse: 400, Space: 1200},
		},
		Bits: 12,
	}
	irp := r.IRP()
	assert.True(t, len(irp) > 0)
	assert.Contains(t, irp, ")+")

	_, err := parser.Parse(irp)
	assert.NoError(t, err)
}

func TestIRPSpaceFirst(t *testing.T) {
	r := lircdconf.Remote{
		SpaceFirst: true,
		Bit: []lircdconf.Pair{
			{Pulse: 500, Space: 500},
			{Pulse: 500, Space: 1500},
		},
		Bits: 8,
	}
	irp := r.IRP()
	assert.Contains(t, irp, "<-500,500|-1500,500>")
}
