package layout

import (
	"math"
)

// LogOptimal evaluates the logarithm exactly, so the bucket boundaries
// in the relative regime are truly exponential and the layout needs the
// smallest possible number of bins for a given relative width limit.
// Mapping a value costs one math.Log2 call.
type LogOptimal struct{ logLayoutBase }

// NewLogOptimal creates a layout whose bins are at most
// absoluteBinWidthLimit wide or at most relativeBinWidthLimit wider than
// their lower bound, whichever guarantee is easier to meet, over the
// given value range.
func NewLogOptimal(absoluteBinWidthLimit, relativeBinWidthLimit, valueRangeLowerBound, valueRangeUpperBound float64) (*LogOptimal, error) {
	base, err := newLogLayoutBase(absoluteBinWidthLimit, relativeBinWidthLimit, optimalCurve{})
	if err != nil {
		return nil, err
	}
	if err := base.resolveRange(valueRangeLowerBound, valueRangeUpperBound); err != nil {
		return nil, err
	}
	return &LogOptimal{base}, nil
}

func newLogOptimalFromIndices(absoluteBinWidthLimit, relativeBinWidthLimit float64, underflowIndex, overflowIndex int32) (*LogOptimal, error) {
	base, err := newLogLayoutBase(absoluteBinWidthLimit, relativeBinWidthLimit, optimalCurve{})
	if err != nil {
		return nil, err
	}
	if err := base.setIndices(underflowIndex, overflowIndex); err != nil {
		return nil, err
	}
	return &LogOptimal{base}, nil
}

func (l *LogOptimal) MapToBinIndex(value float64) int32 { return l.mapToBinIndex(value) }

func (l *LogOptimal) BinLowerBound(binIndex int32) float64 {
	return binLowerBound(l, binIndex, l.binLowerBoundApprox)
}

func (l *LogOptimal) BinUpperBound(binIndex int32) float64 {
	return binUpperBound(l, binIndex, l.binLowerBoundApprox)
}

type optimalCurve struct{}

// h(v) = log2(v), so one index step corresponds to exactly log2(1+r).
func (optimalCurve) factorNormal(relativeBinWidthLimit float64) float64 {
	return math.Ln2 / math.Log1p(relativeBinWidthLimit)
}

func (optimalCurve) value(exponent, mantissaPlus1 float64) float64 {
	return math.Log2(mantissaPlus1) + exponent
}

func (optimalCurve) inverse(h float64) (float64, float64) {
	exponent := math.Floor(h)
	return exponent, math.Exp2(h - exponent)
}
