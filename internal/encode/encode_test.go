package encode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n7dr/irp/internal/encode"
	"github.com/n7dr/irp/internal/parser"
	"github.com/n7dr/irp/internal/vartable"
)

const nec1 = "{38.4k,564}<1,-1|1,-3>(16,-8,D:8,S:8,F:8,~F:8,1,^108m,(16,-4,1,^108m)*)[D:0..255,S:0..255=255-D,F:0..255]"

func TestEncodeNEC1Header(t *testing.T) {
	proto, err := parser.Parse(nec1)
	require.NoError(t, err)

	vars := vartable.New()
	vars.Set("D", 255, 8)
	vars.Set("S", 52, 8)
	vars.Set("F", 1, 8)

	msg, err := encode.New(proto).Encode(vars, 0)
	require.NoError(t, err)

	require.NotNil(t, msg.Carrier)
	assert.Equal(t, int64(38400), *msg.Carrier)

	want := []uint32{9024, 4512, 564, 1692, 564, 1692}
	require.GreaterOrEqual(t, len(msg.Raw), len(want))
	assert.Equal(t, want, msg.Raw[:len(want)])
}

func TestEncodeNEC1ComplementField(t *testing.T) {
	proto, err := parser.Parse(nec1)
	require.NoError(t, err)

	vars := vartable.New()
	vars.Set("D", 0, 8)
	vars.Set("S", 0, 8)
	vars.Set("F", 0, 8)

	msg, err := encode.New(proto).Encode(vars, 0)
	require.NoError(t, err)

	// D,S,F all zero means every bit of the first three bytes is a
	// "0" dispatch (1,-1), and ~F being all-ones means every bit of
	// the fourth byte is a "1" dispatch (1,-3).
	assert.Equal(t, uint32(564), msg.Raw[2]) // first bit of D, flash half
	assert.Equal(t, uint32(564), msg.Raw[3]) // first bit of D, gap half

	fourthByteStart := 2 + 2*24 // header + D+S+F (24 bits)
	assert.Equal(t, uint32(564), msg.Raw[fourthByteStart])
	assert.Equal(t, uint32(1692), msg.Raw[fourthByteStart+1])
}

func TestEncodeMissingParameter(t *testing.T) {
	proto, err := parser.Parse(nec1)
	require.NoError(t, err)

	vars := vartable.New()
	vars.Set("D", 1, 8)
	// S has a default (255-D) so it's fine; F is required and absent.

	_, err = encode.New(proto).Encode(vars, 0)
	require.Error(t, err)
	var encErr *encode.Error
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, encode.MissingParameter, encErr.Kind)
}

func TestEncodeOutOfRange(t *testing.T) {
	proto, err := parser.Parse(nec1)
	require.NoError(t, err)

	vars := vartable.New()
	vars.Set("D", 1000, 16)
	vars.Set("F", 1, 8)

	_, err = encode.New(proto).Encode(vars, 0)
	require.Error(t, err)
	var encErr *encode.Error
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, encode.OutOfRange, encErr.Kind)
}

func TestEncodeDefaultSIsComplementOfD(t *testing.T) {
	proto, err := parser.Parse(nec1)
	require.NoError(t, err)

	vars := vartable.New()
	vars.Set("D", 10, 8)
	vars.Set("F", 1, 8)

	_, err = encode.New(proto).Encode(vars, 0)
	require.NoError(t, err)

	v, _, ok := vars.Get("S")
	require.True(t, ok)
	assert.Equal(t, int64(245), v) // 255-10
}

const rc5 = "{36k,889,msb}<1,-1|-1,1>((1,~F:1:6,T:1,D:5,F:6,^114m)*,T=1-T)[D:0..31,F:0..127,T@:0..1=0]"

func TestEncodeRC5TogglePersists(t *testing.T) {
	proto, err := parser.Parse(rc5)
	require.NoError(t, err)

	vars := vartable.New()
	vars.Set("D", 30, 8)
	vars.Set("F", 1, 8)

	enc := encode.New(proto)

	_, err = enc.Encode(vars, 0)
	require.NoError(t, err)
	tv, _, ok := vars.Get("T")
	require.True(t, ok)
	assert.Equal(t, int64(1), tv, "toggle flips from its 0 default")

	_, err = enc.Encode(vars, 0)
	require.NoError(t, err)
	tv2, _, _ := vars.Get("T")
	assert.Equal(t, int64(0), tv2, "toggle flips back on the next call")
}

func TestEncodeExtentExhausted(t *testing.T) {
	// A protocol whose declared extent is shorter than what precedes
	// it must fail rather than emit a negative-length gap.
	proto, err := parser.Parse("{38k,1}<1,-1|1,-3>(1000,^1u)[]")
	require.NoError(t, err)

	_, err = encode.New(proto).Encode(vartable.New(), 0)
	require.Error(t, err)
	var encErr *encode.Error
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, encode.ExtentExhausted, encErr.Kind)
}

func TestEncodeUnmodulatedCarrier(t *testing.T) {
	proto, err := parser.Parse("{0k,100}<1,-1>(1,-1)[]")
	require.NoError(t, err)

	msg, err := encode.New(proto).Encode(vartable.New(), 0)
	require.NoError(t, err)
	require.NotNil(t, msg.Carrier)
	assert.Equal(t, int64(0), *msg.Carrier)
}
