package layout

import (
	"math"
)

// LogQuadratic replaces the piecewise linear logarithm stand-in of
// LogLinear with a piecewise quadratic one, which needs about a quarter
// fewer bins for the same relative width limit (roughly 8% more than
// LogOptimal) at the price of a few extra multiplications per mapping.
type LogQuadratic struct{ logLayoutBase }

// NewLogQuadratic creates a layout whose bins are at most
// absoluteBinWidthLimit wide or at most relativeBinWidthLimit wider than
// their lower bound, whichever guarantee is easier to meet, over the
// given value range.
func NewLogQuadratic(absoluteBinWidthLimit, relativeBinWidthLimit, valueRangeLowerBound, valueRangeUpperBound float64) (*LogQuadratic, error) {
	base, err := newLogLayoutBase(absoluteBinWidthLimit, relativeBinWidthLimit, quadraticCurve{})
	if err != nil {
		return nil, err
	}
	if err := base.resolveRange(valueRangeLowerBound, valueRangeUpperBound); err != nil {
		return nil, err
	}
	return &LogQuadratic{base}, nil
}

func newLogQuadraticFromIndices(absoluteBinWidthLimit, relativeBinWidthLimit float64, underflowIndex, overflowIndex int32) (*LogQuadratic, error) {
	base, err := newLogLayoutBase(absoluteBinWidthLimit, relativeBinWidthLimit, quadraticCurve{})
	if err != nil {
		return nil, err
	}
	if err := base.setIndices(underflowIndex, overflowIndex); err != nil {
		return nil, err
	}
	return &LogQuadratic{base}, nil
}

func (l *LogQuadratic) MapToBinIndex(value float64) int32 { return l.mapToBinIndex(value) }

func (l *LogQuadratic) BinLowerBound(binIndex int32) float64 {
	return binLowerBound(l, binIndex, l.binLowerBoundApprox)
}

func (l *LogQuadratic) BinUpperBound(binIndex int32) float64 {
	return binUpperBound(l, binIndex, l.binLowerBoundApprox)
}

type quadraticCurve struct{}

// h(v) = (m-1)(5-m) + 3e with m = mantissaPlus1 grows by at least
// 4·ln(u/v) between values v < u (the derivative m(6-2m) has its minimum
// 4 at both ends of [1,2)), hence the 0.25 in the factor.
func (quadraticCurve) factorNormal(relativeBinWidthLimit float64) float64 {
	return 0.25 / math.Log1p(relativeBinWidthLimit)
}

func (quadraticCurve) value(exponent, mantissaPlus1 float64) float64 {
	return (mantissaPlus1-1)*(5-mantissaPlus1) + 3*exponent
}

func (quadraticCurve) inverse(h float64) (float64, float64) {
	exponent := math.Floor(h / 3)
	q := h - 3*exponent
	d := 4 - q
	if d < 0 {
		d = 0
	}
	return exponent, 3 - math.Sqrt(d)
}
