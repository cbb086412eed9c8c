package layout

import (
	"fmt"
	"math"

	"github.com/dynatrace-oss/dynahist-go/internal/algo"
)

const minNormalFloat64 = 2.2250738585072014e-308 // 2^-1022

// logCurve is the piece that distinguishes the three logarithmic-ish
// layouts: a monotone stand-in h for log2 over the binary64
// decomposition, its approximate inverse, and the normal-regime factor
// that turns a relative bin width limit into an index scale.
type logCurve interface {
	factorNormal(relativeBinWidthLimit float64) float64
	value(exponent, mantissaPlus1 float64) float64
	inverse(h float64) (exponent, mantissaPlus1 float64)
}

// logLayoutBase implements the shared two-regime index mapping: below
// the unsigned normal limit the index is linear in the magnitude with
// bins of the absolute width limit, above it the index follows the
// curve scaled to meet the relative width limit. Negative values are
// mapped through the bit complement of the mirrored positive index.
type logLayoutBase struct {
	absoluteBinWidthLimit float64
	relativeBinWidthLimit float64
	underflowIndex        int32
	overflowIndex         int32

	factorNormal        float64
	factorSubnormal     float64
	offset              float64
	unsignedNormalLimit uint64
	firstNormalIndex    int32
	curve               logCurve
}

func newLogLayoutBase(absoluteBinWidthLimit, relativeBinWidthLimit float64, curve logCurve) (logLayoutBase, error) {
	var b logLayoutBase
	if math.IsNaN(absoluteBinWidthLimit) || absoluteBinWidthLimit < minNormalFloat64 || absoluteBinWidthLimit > math.MaxFloat64 {
		return b, fmt.Errorf("%w: absolute bin width limit %g out of range", ErrInvalidArgument, absoluteBinWidthLimit)
	}
	if math.IsNaN(relativeBinWidthLimit) || relativeBinWidthLimit <= 0 || relativeBinWidthLimit > math.MaxFloat64 {
		return b, fmt.Errorf("%w: relative bin width limit %g out of range", ErrInvalidArgument, relativeBinWidthLimit)
	}
	b.absoluteBinWidthLimit = absoluteBinWidthLimit
	b.relativeBinWidthLimit = relativeBinWidthLimit
	b.curve = curve
	b.factorNormal = curve.factorNormal(relativeBinWidthLimit)
	b.factorSubnormal = 1 / absoluteBinWidthLimit

	firstNormal := math.Ceil(1 / relativeBinWidthLimit)
	if firstNormal > math.MaxInt32 {
		firstNormal = math.MaxInt32
	}
	b.firstNormalIndex = int32(firstNormal)

	b.unsignedNormalLimit = b.calculateUnsignedNormalLimit()
	b.offset = b.calculateOffset()
	return b, nil
}

// calculateUnsignedNormalLimit finds the smallest positive value bits at
// which the linear regime has already reached the first normal index, by
// refining the analytic approximation with a monotone bit search.
func (b *logLayoutBase) calculateUnsignedNormalLimit() uint64 {
	target := b.firstNormalIndex
	pred := func(x int64) bool {
		v := math.Float64frombits(uint64(x))
		return clampIndex(b.factorSubnormal*v) >= target
	}
	guessValue := float64(target) * b.absoluteBinWidthLimit
	guess := int64(math.Float64bits(guessValue))
	if guessValue > math.MaxFloat64 {
		guess = algo.PositiveInfinityMapped
	}
	return uint64(algo.FindFirstWithGuess(pred, 0, algo.PositiveInfinityMapped, guess))
}

// calculateOffset picks the smallest offset for which the normal-regime
// formula yields exactly the first normal index at the transition value,
// which makes the two regimes join without a gap or an overlap. When the
// linear regime covers the whole finite range, the transition sits at
// infinity and the target index continues past the largest linear index.
func (b *logLayoutBase) calculateOffset() float64 {
	limit := b.unsignedNormalLimit
	target := b.firstNormalIndex
	infBits := math.Float64bits(math.Inf(1))
	if limit >= infBits {
		limit = infBits
		target = clampIndex(b.factorSubnormal * math.MaxFloat64)
		if target < math.MaxInt32 {
			target++
		}
	}
	h := b.curveAt(limit)
	pred := func(x int64) bool {
		o := algo.MapInt64ToDouble(x)
		return clampIndex(b.factorNormal*h+o) >= target
	}
	guess := algo.MapDoubleToInt64(float64(target) - b.factorNormal*h)
	m := algo.FindFirstWithGuess(pred, algo.NegativeInfinityMapped, algo.PositiveInfinityMapped, guess)
	return algo.MapInt64ToDouble(m)
}

func (b *logLayoutBase) curveAt(unsignedValueBits uint64) float64 {
	exponent := float64(unsignedValueBits >> 52)
	mantissaPlus1 := math.Float64frombits(unsignedValueBits&mantissaMask | exponentOneBits)
	return b.curve.value(exponent, mantissaPlus1)
}

// mapToBinIndex implements the sign-complement index mapping shared by
// the log layouts.
func (b *logLayoutBase) mapToBinIndex(value float64) int32 {
	valueBits := math.Float64bits(value)
	unsigned := valueBits & unsignedValueMask
	var idx int32
	if unsigned >= b.unsignedNormalLimit {
		idx = clampIndex(b.factorNormal*b.curveAt(unsigned) + b.offset)
	} else {
		idx = clampIndex(b.factorSubnormal * math.Float64frombits(unsigned))
	}
	if valueBits&(1<<63) != 0 {
		idx = ^idx
	}
	return idx
}

func clampIndex(f float64) int32 {
	f = math.Floor(f)
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	if f <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(f)
}

// binLowerBoundApprox inverts the index mapping analytically. The result
// feeds the exact bit search, so rounding here costs search steps, not
// correctness.
func (b *logLayoutBase) binLowerBoundApprox(binIndex int32) float64 {
	if binIndex >= 0 {
		return b.positiveApprox(binIndex)
	}
	return -b.positiveApprox(^binIndex + 1)
}

func (b *logLayoutBase) positiveApprox(binIndex int32) float64 {
	if binIndex < b.firstNormalIndex {
		return float64(binIndex) * b.absoluteBinWidthLimit
	}
	h := (float64(binIndex) - b.offset) / b.factorNormal
	exponent, mantissaPlus1 := b.curve.inverse(h)
	if exponent < 0 {
		exponent = 0
	}
	if exponent > 2046 {
		exponent = 2046
	}
	if mantissaPlus1 < 1 {
		mantissaPlus1 = 1
	}
	if mantissaPlus1 > 2 {
		mantissaPlus1 = 2
	}
	return math.Ldexp(mantissaPlus1, int(exponent)-1023)
}

// resolveRange derives the underflow and overflow indices from the value
// range and validates that the regular index span fits the int32 index
// space.
func (b *logLayoutBase) resolveRange(valueRangeLowerBound, valueRangeUpperBound float64) error {
	if err := checkRange(valueRangeLowerBound, valueRangeUpperBound); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}
	lowerIndex := b.mapToBinIndex(valueRangeLowerBound)
	upperIndex := b.mapToBinIndex(valueRangeUpperBound)
	if lowerIndex <= math.MinInt32+1 || upperIndex >= math.MaxInt32-1 {
		return fmt.Errorf("%w: value range [%g, %g] exhausts the index space", ErrInvalidArgument, valueRangeLowerBound, valueRangeUpperBound)
	}
	b.underflowIndex = lowerIndex - 1
	b.overflowIndex = upperIndex + 1
	if int64(b.overflowIndex)-int64(b.underflowIndex)-1 > math.MaxInt32 {
		return fmt.Errorf("%w: value range [%g, %g] spans too many bins", ErrInvalidArgument, valueRangeLowerBound, valueRangeUpperBound)
	}
	return nil
}

// setIndices installs deserialized underflow and overflow indices
// directly instead of deriving them from a value range.
func (b *logLayoutBase) setIndices(underflowIndex, overflowIndex int32) error {
	if underflowIndex >= overflowIndex {
		return fmt.Errorf("%w: underflow index %d must be below overflow index %d", ErrInvalidArgument, underflowIndex, overflowIndex)
	}
	if int64(overflowIndex)-int64(underflowIndex)-1 > math.MaxInt32 {
		return fmt.Errorf("%w: index range [%d, %d] spans too many bins", ErrInvalidArgument, underflowIndex, overflowIndex)
	}
	b.underflowIndex = underflowIndex
	b.overflowIndex = overflowIndex
	return nil
}

func (b *logLayoutBase) UnderflowBinIndex() int32 { return b.underflowIndex }
func (b *logLayoutBase) OverflowBinIndex() int32  { return b.overflowIndex }

// AbsoluteBinWidthLimit returns the construction-time absolute width
// guarantee for bins in the linear regime.
func (b *logLayoutBase) AbsoluteBinWidthLimit() float64 { return b.absoluteBinWidthLimit }

// RelativeBinWidthLimit returns the construction-time relative width
// guarantee for bins in the logarithmic regime.
func (b *logLayoutBase) RelativeBinWidthLimit() float64 { return b.relativeBinWidthLimit }
