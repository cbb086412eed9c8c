package layout

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutSerializationRoundTrip(t *testing.T) {
	t.Parallel()

	logLinear, err := NewLogLinear(1e-8, 1e-2, -1e6, 1e6)
	require.NoError(t, err)
	logQuadratic, err := NewLogQuadratic(1e-1, 1e-1, -5, 5)
	require.NoError(t, err)
	logOptimal, err := NewLogOptimal(1e-5, 1e-3, -100, 100)
	require.NoError(t, err)
	otel, err := NewOpenTelemetryExponentialBuckets(6)
	require.NoError(t, err)
	custom, err := NewCustom(-2, math.Copysign(0, -1), 0, 4, 5)
	require.NoError(t, err)

	layouts := map[string]Layout{
		"log-linear":    logLinear,
		"log-quadratic": logQuadratic,
		"log-optimal":   logOptimal,
		"otel":          otel,
		"custom":        custom,
	}
	for name, l := range layouts {
		l := l
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			require.NoError(t, Write(l, &buf))
			got, err := Read(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.True(t, Equal(l, got), "round-tripped layout must equal the original")
			assert.Equal(t, l.UnderflowBinIndex(), got.UnderflowBinIndex())
			assert.Equal(t, l.OverflowBinIndex(), got.OverflowBinIndex())
			for _, v := range []float64{-1e5, -1, -1e-9, 0, 1e-9, 1, 1e5} {
				assert.Equal(t, l.MapToBinIndex(v), got.MapToBinIndex(v), "value %g", v)
			}
		})
	}
}

func TestLayoutReadUnknownTag(t *testing.T) {
	t.Parallel()

	_, err := Read(bytes.NewReader([]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x00, 0x00, 0x01}))
	assert.ErrorIs(t, err, ErrUnknownSerialTag)
}

func TestLayoutReadTruncated(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := NewLogQuadratic(1e-1, 1e-1, -5, 5)
	require.NoError(t, err)
	require.NoError(t, Write(l, &buf))
	full := buf.Bytes()
	for cut := 0; cut < len(full); cut++ {
		_, err := Read(bytes.NewReader(full[:cut]))
		assert.Error(t, err, "truncation at %d bytes", cut)
	}
}

func TestLayoutEqualByParameters(t *testing.T) {
	t.Parallel()

	a, err := NewLogQuadratic(1e-1, 1e-1, -5, 5)
	require.NoError(t, err)
	b, err := NewLogQuadratic(1e-1, 1e-1, -5, 5)
	require.NoError(t, err)
	c, err := NewLogQuadratic(1e-1, 1e-2, -5, 5)
	require.NoError(t, err)
	d, err := NewLogLinear(1e-1, 1e-1, -5, 5)
	require.NoError(t, err)

	assert.True(t, Equal(a, b), "separately constructed layouts with equal parameters")
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(a, d), "different kinds never compare equal")

	ca, err := NewCustom(1, 2, 3)
	require.NoError(t, err)
	cb, err := NewCustom(1, 2, 3)
	require.NoError(t, err)
	cc, err := NewCustom(1, 2)
	require.NoError(t, err)
	assert.True(t, Equal(ca, cb))
	assert.False(t, Equal(ca, cc))
}

func TestRegisterReaderRejectsReservedTags(t *testing.T) {
	t.Parallel()

	err := RegisterReader(customSerialTag, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
