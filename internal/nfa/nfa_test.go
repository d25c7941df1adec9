package nfa_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n7dr/irp/internal/encode"
	"github.com/n7dr/irp/internal/nfa"
	"github.com/n7dr/irp/internal/parser"
	"github.com/n7dr/irp/internal/vartable"
)

func decodeAll(t *testing.T, irp string, raw []uint32, tol nfa.Tolerance) []map[string]int64 {
	t.Helper()
	proto, err := parser.Parse(irp)
	require.NoError(t, err)
	graph, err := nfa.Build(proto)
	require.NoError(t, err)

	dec := nfa.NewDecoder(graph, proto.General.Order, tol)
	var results []map[string]int64
	for i, d := range raw {
		results = append(results, dec.Step(nfa.Event{Flash: i%2 == 0, Us: int64(d)})...)
	}
	return results
}

const nec1 = "{38.4k,564}<1,-1|1,-3>(16,-8,D:8,S:8,F:8,~F:8,1,^108m,(16,-4,1,^108m)*)[D:0..255,S:0..255=255-D,F:0..255]"

func TestDecodeNEC1(t *testing.T) {
	proto, err := parser.Parse(nec1)
	require.NoError(t, err)

	vars := vartable.New()
	vars.Set("D", 255, 8)
	vars.Set("S", 52, 8)
	vars.Set("F", 1, 8)
	msg, err := encode.New(proto).Encode(vars, 0)
	require.NoError(t, err)

	results := decodeAll(t, nec1, msg.Raw, nfa.Tolerance{AbsoluteUs: 50, RelativePct: 5})
	require.NotEmpty(t, results, "expected at least one decoded frame")

	got := results[len(results)-1]
	assert.Equal(t, int64(255), got["D"])
	assert.Equal(t, int64(52), got["S"])
	assert.Equal(t, int64(1), got["F"])
}

const rc5 = "{36k,889,msb}<1,-1|-1,1>((1,~F:1:6,T:1,D:5,F:6,^114m)*,T=1-T)[D:0..31,F:0..127,T@:0..1=0]"

func TestDecodeRC5(t *testing.T) {
	proto, err := parser.Parse(rc5)
	require.NoError(t, err)

	vars := vartable.New()
	vars.Set("D", 30, 8)
	vars.Set("F", 1, 8)
	msg, err := encode.New(proto).Encode(vars, 0)
	require.NoError(t, err)

	results := decodeAll(t, rc5, msg.Raw, nfa.Tolerance{AbsoluteUs: 50, RelativePct: 5})
	require.NotEmpty(t, results, "expected at least one decoded frame")

	got := results[len(results)-1]
	assert.Equal(t, int64(30), got["D"])
	assert.Equal(t, int64(1), got["F"])
	assert.Equal(t, int64(0), got["T"], "the first transmission carries the toggle's default 0; T=1-T only affects the next one")
}

func TestToleranceMatching(t *testing.T) {
	tol := nfa.Tolerance{AbsoluteUs: 50, RelativePct: 10}
	assert.True(t, tolFires(tol, 1000, 1040))
	assert.True(t, tolFires(tol, 1000, 960))
	assert.False(t, tolFires(tol, 1000, 1200))
}

// tolFires builds a trivial flash-then-done graph expecting D us, feeds
// one observed event, and reports whether the Done edge fired — the
// only externally visible signal of whether the edge matched.
func tolFires(tol nfa.Tolerance, observed, expected int64) bool {
	end := &nfa.State{ID: 1}
	start := &nfa.State{ID: 0}
	accept := &nfa.State{ID: 2}
	start.Out = append(start.Out, &nfa.Edge{Action: nfa.Action{Kind: nfa.Flash, D: expected}, To: end})
	end.Out = append(end.Out, &nfa.Edge{Action: nfa.Action{Kind: nfa.Done, Emit: true}, To: accept})
	g := &nfa.Graph{Start: start, States: []*nfa.State{start, end, accept}}

	d := nfa.NewDecoder(g, 0, tol)
	results := d.Step(nfa.Event{Flash: true, Us: observed})
	return len(results) > 0
}
