package layout

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"sync"

	"github.com/dynatrace-oss/dynahist-go/internal/algo"
)

const maxOTelPrecision = 10

// OpenTelemetryExponentialBuckets reproduces the OpenTelemetry
// exponential bucket boundaries: each power of two is split into 2^p
// sub-buckets whose bounds satisfy upper/lower <= 2^(2^-p) exactly.
// Zero occupies bucket 0, subnormals a contiguous stretch right above
// it, and negative values mirror the positive indices by negation.
type OpenTelemetryExponentialBuckets struct {
	precision     int32
	boundaries    []uint64 // mantissa lower bounds per sub-bucket, boundaries[0] == 0
	overflowIndex int32
}

var (
	otelMu      sync.Mutex
	otelLayouts [maxOTelPrecision + 1]*OpenTelemetryExponentialBuckets

	otelReferenceOnce sync.Once
	otelReference     []uint64 // the precision-10 table all others subsample
)

// NewOpenTelemetryExponentialBuckets returns the layout for the given
// precision in [0, 10]. Layouts are cached per precision; repeated calls
// return the same instance.
func NewOpenTelemetryExponentialBuckets(precision int) (*OpenTelemetryExponentialBuckets, error) {
	if precision < 0 || precision > maxOTelPrecision {
		return nil, fmt.Errorf("%w: precision %d outside [0, %d]", ErrInvalidArgument, precision, maxOTelPrecision)
	}
	otelMu.Lock()
	defer otelMu.Unlock()
	if l := otelLayouts[precision]; l != nil {
		return l, nil
	}
	reference := otelReferenceTable()
	step := 1 << (maxOTelPrecision - precision)
	boundaries := make([]uint64, 1<<precision)
	for i := range boundaries {
		boundaries[i] = reference[i*step]
	}
	l := &OpenTelemetryExponentialBuckets{
		precision:     int32(precision),
		boundaries:    boundaries,
		overflowIndex: 2047<<precision + 1,
	}
	otelLayouts[precision] = l
	return l, nil
}

// otelReferenceTable computes the 1024-entry precision-10 mantissa
// boundary table. Boundary i is the smallest mantissa m satisfying
// (2^52+m)^1024 >= 2^(52*1024+i), evaluated in arbitrary precision;
// coarser precisions subsample it, which is exact because raising both
// sides to a power of two preserves the inequality.
func otelReferenceTable() []uint64 {
	otelReferenceOnce.Do(func() {
		const length = 1 << maxOTelPrecision
		table := make([]uint64, length)
		for i := 1; i < length; i++ {
			rhs := new(big.Int).Lsh(big.NewInt(1), uint(52*length+i))
			pred := func(m int64) bool {
				base := new(big.Int).SetUint64(1<<52 + uint64(m))
				return base.Exp(base, big.NewInt(length), nil).Cmp(rhs) >= 0
			}
			guess := int64(math.Exp2(52+float64(i)/length) - math.Exp2(52))
			table[i] = uint64(algo.FindFirstWithGuess(pred, 0, 1<<52-1, guess))
		}
		otelReference = table
	})
	return otelReference
}

// Precision returns the construction precision.
func (l *OpenTelemetryExponentialBuckets) Precision() int { return int(l.precision) }

func (l *OpenTelemetryExponentialBuckets) UnderflowBinIndex() int32 { return -l.overflowIndex }
func (l *OpenTelemetryExponentialBuckets) OverflowBinIndex() int32  { return l.overflowIndex }

func (l *OpenTelemetryExponentialBuckets) MapToBinIndex(value float64) int32 {
	valueBits := math.Float64bits(value)
	idx := l.mapUnsigned(valueBits & unsignedValueMask)
	if valueBits&(1<<63) != 0 {
		return -idx
	}
	return idx
}

func (l *OpenTelemetryExponentialBuckets) mapUnsigned(unsignedValueBits uint64) int32 {
	if unsignedValueBits == 0 {
		return 0
	}
	exponent := int32(unsignedValueBits >> 52)
	mantissa := unsignedValueBits & mantissaMask
	k := sort.Search(len(l.boundaries), func(i int) bool {
		return l.boundaries[i] > mantissa
	}) - 1
	return exponent<<l.precision + int32(k) + 1
}

func (l *OpenTelemetryExponentialBuckets) BinLowerBound(binIndex int32) float64 {
	if binIndex <= -l.overflowIndex {
		return math.Inf(-1)
	}
	if binIndex > l.overflowIndex {
		binIndex = l.overflowIndex
	}
	switch {
	case binIndex > 0:
		return l.positiveLowerBound(binIndex)
	case binIndex == 0:
		return math.Copysign(0, -1)
	default:
		return -l.positiveUpperBound(-binIndex)
	}
}

func (l *OpenTelemetryExponentialBuckets) BinUpperBound(binIndex int32) float64 {
	if binIndex >= l.overflowIndex {
		return math.Inf(1)
	}
	if binIndex < -l.overflowIndex {
		binIndex = -l.overflowIndex
	}
	if binIndex >= 0 {
		return l.positiveUpperBound(binIndex)
	}
	return -l.positiveLowerBound(-binIndex)
}

// positiveLowerBound reconstructs the exact smallest value of a positive
// bucket from the boundary table; binIndex must be in [1, overflow].
func (l *OpenTelemetryExponentialBuckets) positiveLowerBound(binIndex int32) float64 {
	exponent := uint64(binIndex-1) >> l.precision
	k := (binIndex - 1) & (1<<l.precision - 1)
	bits := exponent<<52 | l.boundaries[k]
	if bits == 0 {
		bits = 1 // bucket 1 starts at the smallest subnormal, not at zero
	}
	return math.Float64frombits(bits)
}

// positiveUpperBound is the predecessor of the next bucket's lower
// bound; binIndex must be in [0, overflow-1].
func (l *OpenTelemetryExponentialBuckets) positiveUpperBound(binIndex int32) float64 {
	return math.Float64frombits(math.Float64bits(l.positiveLowerBound(binIndex+1)) - 1)
}
