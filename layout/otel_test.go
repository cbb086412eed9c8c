package layout

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTelLayoutIsCachedPerPrecision(t *testing.T) {
	t.Parallel()

	a, err := NewOpenTelemetryExponentialBuckets(3)
	require.NoError(t, err)
	b, err := NewOpenTelemetryExponentialBuckets(3)
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := NewOpenTelemetryExponentialBuckets(4)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestOTelLayoutPrecisionBounds(t *testing.T) {
	t.Parallel()

	_, err := NewOpenTelemetryExponentialBuckets(-1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewOpenTelemetryExponentialBuckets(11)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestOTelLayoutBasicMapping(t *testing.T) {
	t.Parallel()

	l, err := NewOpenTelemetryExponentialBuckets(2)
	require.NoError(t, err)

	assert.Equal(t, int32(0), l.MapToBinIndex(0))
	assert.Equal(t, int32(0), l.MapToBinIndex(math.Copysign(0, -1)))
	assert.Equal(t, -l.OverflowBinIndex(), l.UnderflowBinIndex())
	assert.GreaterOrEqual(t, l.MapToBinIndex(math.Inf(1)), l.OverflowBinIndex())
	assert.LessOrEqual(t, l.MapToBinIndex(math.Inf(-1)), l.UnderflowBinIndex())

	// Negative values mirror positive ones by negation.
	for _, v := range []float64{1e-300, 0.25, 1, 3.5, 1e12} {
		assert.Equal(t, -l.MapToBinIndex(v), l.MapToBinIndex(-v), "value %g", v)
	}
}

func TestOTelLayoutBucketRatio(t *testing.T) {
	t.Parallel()

	for _, precision := range []int{0, 1, 2, 5} {
		l, err := NewOpenTelemetryExponentialBuckets(precision)
		require.NoError(t, err)
		limit := math.Exp2(math.Exp2(-float64(precision)))
		for _, v := range []float64{1e-3, 0.7, 1, 2.5, 1e3, 1e9} {
			idx := l.MapToBinIndex(v)
			lower, upper := l.BinLowerBound(idx), l.BinUpperBound(idx)
			require.LessOrEqual(t, lower, v)
			require.GreaterOrEqual(t, upper, v)
			assert.LessOrEqual(t, upper/lower, limit*(1+1e-12),
				"precision %d bucket %d [%g, %g]", precision, idx, lower, upper)
		}
	}
}

func TestOTelLayoutContracts(t *testing.T) {
	t.Parallel()

	for _, precision := range []int{0, 2, 4} {
		l, err := NewOpenTelemetryExponentialBuckets(precision)
		require.NoError(t, err)
		assertIndexContract(t, l)
		assertBoundConsistency(t, l, sampleIndices(l, 200))
	}
}

func TestOTelLayoutSubnormalStretch(t *testing.T) {
	t.Parallel()

	l, err := NewOpenTelemetryExponentialBuckets(3)
	require.NoError(t, err)
	smallest := math.SmallestNonzeroFloat64
	assert.Equal(t, int32(1), l.MapToBinIndex(smallest))
	assert.Equal(t, smallest, l.BinLowerBound(1))
	assert.Equal(t, math.Copysign(0, -1), l.BinLowerBound(0))
	assert.Equal(t, 0.0, l.BinUpperBound(0))
}
