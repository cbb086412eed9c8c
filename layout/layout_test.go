package layout

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynatrace-oss/dynahist-go/internal/algo"
)

// probeValues returns a deterministic set of values covering zeros,
// subnormals, both tails, and seeded random samples.
func probeValues(rng *rand.Rand) []float64 {
	values := []float64{
		math.Inf(-1), -math.MaxFloat64, -1e306, -1e9, -1e6, -1000, -100.5, -1, -1e-3,
		-1e-9, -1e-30, -math.SmallestNonzeroFloat64, math.Copysign(0, -1),
		0, math.SmallestNonzeroFloat64, 1e-30, 1e-9, 1e-3, 1, 100.5, 1000, 1e6, 1e9,
		1e306, math.MaxFloat64, math.Inf(1),
	}
	for i := 0; i < 300; i++ {
		values = append(values, (rng.Float64()-0.5)*2e7)
	}
	for i := 0; i < 100; i++ {
		values = append(values, math.Float64frombits(rng.Uint64()&0x7fefffffffffffff))
		values = append(values, -math.Float64frombits(rng.Uint64()&0x7fefffffffffffff))
	}
	return values
}

func assertIndexContract(t *testing.T, l Layout) {
	t.Helper()
	u, o := l.UnderflowBinIndex(), l.OverflowBinIndex()
	require.Less(t, u, o)

	assert.LessOrEqual(t, l.MapToBinIndex(math.Inf(-1)), u)
	assert.GreaterOrEqual(t, l.MapToBinIndex(math.Inf(1)), o)
	nanIdx := l.MapToBinIndex(math.NaN())
	assert.True(t, nanIdx <= u || nanIdx >= o, "NaN must route to underflow or overflow, got %d", nanIdx)

	rng := rand.New(rand.NewSource(99))
	values := probeValues(rng)
	sort.Slice(values, func(i, j int) bool {
		return algo.MapDoubleToInt64(values[i]) < algo.MapDoubleToInt64(values[j])
	})
	prev := l.MapToBinIndex(values[0])
	for _, v := range values[1:] {
		idx := l.MapToBinIndex(v)
		require.GreaterOrEqual(t, idx, prev, "index mapping must be monotone at %g", v)
		prev = idx
	}
}

// assertBoundConsistency verifies that BinLowerBound is the exact
// smallest value of each probed bucket and BinUpperBound the exact
// largest.
func assertBoundConsistency(t *testing.T, l Layout, indices []int32) {
	t.Helper()
	u, o := l.UnderflowBinIndex(), l.OverflowBinIndex()

	assert.Equal(t, math.Inf(-1), l.BinLowerBound(u))
	assert.Equal(t, math.Inf(1), l.BinUpperBound(o))

	for _, idx := range indices {
		if idx <= u || idx >= o {
			continue
		}
		lower := l.BinLowerBound(idx)
		require.Equal(t, idx, l.MapToBinIndex(lower), "lower bound of bin %d", idx)
		below := algo.MapInt64ToDouble(algo.MapDoubleToInt64(lower) - 1)
		if idx-1 > u {
			require.Equal(t, idx-1, l.MapToBinIndex(below), "predecessor of lower bound of bin %d", idx)
		} else {
			require.LessOrEqual(t, l.MapToBinIndex(below), u)
		}

		upper := l.BinUpperBound(idx)
		require.Equal(t, idx, l.MapToBinIndex(upper), "upper bound of bin %d", idx)
		above := algo.MapInt64ToDouble(algo.MapDoubleToInt64(upper) + 1)
		if idx+1 < o {
			require.Equal(t, idx+1, l.MapToBinIndex(above), "successor of upper bound of bin %d", idx)
		} else {
			require.GreaterOrEqual(t, l.MapToBinIndex(above), o)
		}
	}
}

// sampleIndices picks up to n regular indices spread over the whole
// regular range.
func sampleIndices(l Layout, n int) []int32 {
	u, o := int64(l.UnderflowBinIndex()), int64(l.OverflowBinIndex())
	span := o - u - 1
	if span <= int64(n) {
		out := make([]int32, 0, span)
		for i := u + 1; i < o; i++ {
			out = append(out, int32(i))
		}
		return out
	}
	rng := rand.New(rand.NewSource(4711))
	out := []int32{int32(u + 1), int32(o - 1), 0, 1, -1}
	for len(out) < n {
		out = append(out, int32(u+1+rng.Int63n(span)))
	}
	return out
}

func testedLogLayouts(t *testing.T) map[string]Layout {
	t.Helper()
	logLinear, err := NewLogLinear(1e-8, 1e-2, -1e6, 1e6)
	require.NoError(t, err)
	logQuadratic, err := NewLogQuadratic(1e-8, 1e-2, -1e6, 1e6)
	require.NoError(t, err)
	logOptimal, err := NewLogOptimal(1e-8, 1e-2, -1e6, 1e6)
	require.NoError(t, err)
	small, err := NewLogQuadratic(1e-1, 1e-1, -5, 5)
	require.NoError(t, err)
	return map[string]Layout{
		"log-linear":      logLinear,
		"log-quadratic":   logQuadratic,
		"log-optimal":     logOptimal,
		"small-quadratic": small,
	}
}

func TestLogLayoutContracts(t *testing.T) {
	t.Parallel()

	for name, l := range testedLogLayouts(t) {
		l := l
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assertIndexContract(t, l)
			assertBoundConsistency(t, l, sampleIndices(l, 400))
		})
	}
}

func TestLogLayoutNegationSymmetry(t *testing.T) {
	t.Parallel()

	l, err := NewLogQuadratic(1e-8, 1e-2, -1e6, 1e6)
	require.NoError(t, err)
	for _, v := range []float64{1e-9, 1e-3, 1, 42.5, 1e5, 1e300} {
		assert.Equal(t, ^l.MapToBinIndex(v), l.MapToBinIndex(-v), "value %g", v)
	}
}

func TestLogLayoutRelativeBinWidthGuarantee(t *testing.T) {
	t.Parallel()

	const relLimit = 1e-2
	for name, construct := range map[string]func() (Layout, error){
		"log-linear":    func() (Layout, error) { return NewLogLinear(1e-8, relLimit, -1e6, 1e6) },
		"log-quadratic": func() (Layout, error) { return NewLogQuadratic(1e-8, relLimit, -1e6, 1e6) },
		"log-optimal":   func() (Layout, error) { return NewLogOptimal(1e-8, relLimit, -1e6, 1e6) },
	} {
		construct := construct
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			l, err := construct()
			require.NoError(t, err)
			// Probe buckets across the normal regime: each bucket must
			// satisfy the absolute or the relative width guarantee.
			for _, v := range []float64{1e-6, 1e-3, 0.5, 1, 10, 999.5, 1e5, 9.9e5} {
				idx := l.MapToBinIndex(v)
				lower, upper := l.BinLowerBound(idx), l.BinUpperBound(idx)
				width := upper - lower
				relative := upper/lower - 1
				assert.True(t, width <= 1e-8*(1+1e-9) || relative <= relLimit*(1+1e-9),
					"bin %d of %s spanning [%g, %g] violates both width limits", idx, name, lower, upper)
			}
		})
	}
}

func TestLogLayoutInvalidArguments(t *testing.T) {
	t.Parallel()

	cases := map[string][4]float64{
		"zero relative width":   {1e-8, 0, -1, 1},
		"nan absolute width":    {math.NaN(), 1e-2, -1, 1},
		"tiny absolute width":   {1e-320, 1e-2, -1, 1},
		"inverted range":        {1e-8, 1e-2, 1, -1},
		"nan range bound":       {1e-8, 1e-2, math.NaN(), 1},
		"infinite range bound":  {1e-8, 1e-2, -1, math.Inf(1)},
		"negative relative":     {1e-8, -0.5, -1, 1},
		"excessively wide span": {1e-300, 1e-12, -1e306, 1e306},
	}
	for name, args := range cases {
		args := args
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := NewLogQuadratic(args[0], args[1], args[2], args[3])
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestCustomLayout(t *testing.T) {
	t.Parallel()

	l, err := NewCustom(-2, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, int32(0), l.UnderflowBinIndex())
	assert.Equal(t, int32(3), l.OverflowBinIndex())

	tests := []struct {
		in  float64
		exp int32
	}{
		{math.Inf(-1), 0},
		{-2.5, 0},
		{-2, 1},
		{0, 1},
		{3.999, 1},
		{4, 2},
		{4.5, 2},
		{5, 3},
		{100, 3},
		{math.Inf(1), 3},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.exp, l.MapToBinIndex(tc.in), "value %g", tc.in)
	}

	assertIndexContract(t, l)
	assertBoundConsistency(t, l, []int32{1, 2})
	assert.Equal(t, -2.0, l.BinLowerBound(1))
	assert.Equal(t, 4.0, l.BinLowerBound(2))
	assert.Equal(t, 5.0, l.BinLowerBound(3))
}

func TestCustomLayoutZeroBoundaries(t *testing.T) {
	t.Parallel()

	// -0.0 and +0.0 are distinct boundaries in bit order.
	l, err := NewCustom(math.Copysign(0, -1), 0)
	require.NoError(t, err)
	assert.Equal(t, int32(0), l.MapToBinIndex(-1))
	assert.Equal(t, int32(1), l.MapToBinIndex(math.Copysign(0, -1)))
	assert.Equal(t, int32(2), l.MapToBinIndex(0))
	assert.Equal(t, int32(2), l.MapToBinIndex(1))
}

func TestCustomLayoutInvalidArguments(t *testing.T) {
	t.Parallel()

	_, err := NewCustom()
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewCustom(1, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewCustom(2, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewCustom(1, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSingleBoundaryCustomLayoutHasNoRegularBins(t *testing.T) {
	t.Parallel()

	l, err := NewCustom(1)
	require.NoError(t, err)
	assert.Equal(t, int32(0), l.UnderflowBinIndex())
	assert.Equal(t, int32(1), l.OverflowBinIndex())
	assert.Equal(t, int32(0), l.MapToBinIndex(0.5))
	assert.Equal(t, int32(1), l.MapToBinIndex(1))
}
