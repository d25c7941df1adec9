package nfa_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/n7dr/irp/internal/encode"
	"github.com/n7dr/irp/internal/nfa"
	"github.com/n7dr/irp/internal/parser"
	"github.com/n7dr/irp/internal/vartable"
)

func Test_RoundTripNEC1(t *testing.T) {
	proto, err := parser.Parse(nec1)
	require.NoError(t, err)
	graph, err := nfa.Build(proto)
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		d := rapid.Int64Range(0, 255).Draw(t, "D")
		s := rapid.Int64Range(0, 255).Draw(t, "S")
		f := rapid.Int64Range(0, 255).Draw(t, "F")

		vars := vartable.New()
		vars.Set("D", d, 8)
		vars.Set("S", s, 8)
		vars.Set("F", f, 8)

		msg, err := encode.New(proto).Encode(vars, 0)
		require.NoError(t, err)

		dec := nfa.NewDecoder(graph, proto.General.Order, nfa.Tolerance{AbsoluteUs: 50, RelativePct: 5})
		var results []map[string]int64
		for i, dur := range msg.Raw {
			results = append(results, dec.Step(nfa.Event{Flash: i%2 == 0, Us: int64(dur)})...)
		}

		require.NotEmptyf(t, results, "D=%d S=%d F=%d produced no decoded frame", d, s, f)
		got := results[len(results)-1]
		assert.Equal(t, d, got["D"])
		assert.Equal(t, s, got["S"])
		assert.Equal(t, f, got["F"])
	})
}

func Test_RoundTripRC5(t *testing.T) {
	proto, err := parser.Parse(rc5)
	require.NoError(t, err)
	graph, err := nfa.Build(proto)
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		d := rapid.Int64Range(0, 31).Draw(t, "D")
		f := rapid.Int64Range(0, 127).Draw(t, "F")

		vars := vartable.New()
		vars.Set("D", d, 8)
		vars.Set("F", f, 8)

		msg, err := encode.New(proto).Encode(vars, 0)
		require.NoError(t, err)

		dec := nfa.NewDecoder(graph, proto.General.Order, nfa.Tolerance{AbsoluteUs: 50, RelativePct: 5})
		var results []map[string]int64
		for i, dur := range msg.Raw {
			results = append(results, dec.Step(nfa.Event{Flash: i%2 == 0, Us: int64(dur)})...)
		}

		require.NotEmptyf(t, results, "D=%d F=%d produced no decoded frame", d, f)
		got := results[len(results)-1]
		assert.Equal(t, d, got["D"])
		assert.Equal(t, f, got["F"])
	})
}
