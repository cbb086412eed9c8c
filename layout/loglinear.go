package layout

import (
	"math"
)

// LogLinear is the fastest of the logarithmic layouts: the exponent and
// mantissa of the binary64 magnitude are combined into a piecewise
// linear stand-in for the logarithm, which needs roughly 44% more bins
// than a log-optimal bucketing for the same relative width limit but
// maps values without evaluating any transcendental function.
type LogLinear struct{ logLayoutBase }

// NewLogLinear creates a layout whose bins are at most
// absoluteBinWidthLimit wide or at most relativeBinWidthLimit wider than
// their lower bound, whichever guarantee is easier to meet, over the
// given value range.
func NewLogLinear(absoluteBinWidthLimit, relativeBinWidthLimit, valueRangeLowerBound, valueRangeUpperBound float64) (*LogLinear, error) {
	base, err := newLogLayoutBase(absoluteBinWidthLimit, relativeBinWidthLimit, linearCurve{})
	if err != nil {
		return nil, err
	}
	if err := base.resolveRange(valueRangeLowerBound, valueRangeUpperBound); err != nil {
		return nil, err
	}
	return &LogLinear{base}, nil
}

func newLogLinearFromIndices(absoluteBinWidthLimit, relativeBinWidthLimit float64, underflowIndex, overflowIndex int32) (*LogLinear, error) {
	base, err := newLogLayoutBase(absoluteBinWidthLimit, relativeBinWidthLimit, linearCurve{})
	if err != nil {
		return nil, err
	}
	if err := base.setIndices(underflowIndex, overflowIndex); err != nil {
		return nil, err
	}
	return &LogLinear{base}, nil
}

func (l *LogLinear) MapToBinIndex(value float64) int32 { return l.mapToBinIndex(value) }

func (l *LogLinear) BinLowerBound(binIndex int32) float64 {
	return binLowerBound(l, binIndex, l.binLowerBoundApprox)
}

func (l *LogLinear) BinUpperBound(binIndex int32) float64 {
	return binUpperBound(l, binIndex, l.binLowerBoundApprox)
}

type linearCurve struct{}

// The stand-in h(v) = exponent + mantissaPlus1 grows by at least ln(u/v)
// between any two values v < u, so scaling by 1/log1p(r) keeps the ratio
// of bucket bounds at or below 1+r.
func (linearCurve) factorNormal(relativeBinWidthLimit float64) float64 {
	return 1 / math.Log1p(relativeBinWidthLimit)
}

func (linearCurve) value(exponent, mantissaPlus1 float64) float64 {
	return mantissaPlus1 + exponent
}

func (linearCurve) inverse(h float64) (float64, float64) {
	exponent := math.Floor(h) - 1
	return exponent, h - exponent
}
