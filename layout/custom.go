package layout

import (
	"fmt"
	"math"
	"sort"

	"github.com/dynatrace-oss/dynahist-go/internal/algo"
)

// Custom buckets values by a caller-supplied sorted boundary sequence.
// The index of a value is the number of boundaries at or below it, where
// boundaries and values compare in the total IEEE-754 bit order (so
// -0.0 sorts strictly below +0.0). Index 0 is the underflow bucket and
// index len(boundaries) the overflow bucket.
type Custom struct {
	boundaries []float64
	mapped     []int64
}

// NewCustom creates a custom layout over the given strictly increasing
// boundaries. At least one boundary is required; NaN is not a valid
// boundary.
func NewCustom(boundaries ...float64) (*Custom, error) {
	if len(boundaries) == 0 {
		return nil, fmt.Errorf("%w: at least one boundary is required", ErrInvalidArgument)
	}
	mapped := make([]int64, len(boundaries))
	owned := make([]float64, len(boundaries))
	for i, b := range boundaries {
		if math.IsNaN(b) {
			return nil, fmt.Errorf("%w: boundary must not be NaN", ErrInvalidArgument)
		}
		m := algo.MapDoubleToInt64(b)
		if i > 0 && m <= mapped[i-1] {
			return nil, fmt.Errorf("%w: boundaries must be strictly increasing, got %g after %g", ErrInvalidArgument, b, boundaries[i-1])
		}
		mapped[i] = m
		owned[i] = b
	}
	return &Custom{boundaries: owned, mapped: mapped}, nil
}

// Boundaries returns a copy of the construction boundaries.
func (l *Custom) Boundaries() []float64 {
	out := make([]float64, len(l.boundaries))
	copy(out, l.boundaries)
	return out
}

func (l *Custom) UnderflowBinIndex() int32 { return 0 }
func (l *Custom) OverflowBinIndex() int32  { return int32(len(l.boundaries)) }

func (l *Custom) MapToBinIndex(value float64) int32 {
	m := algo.MapDoubleToInt64(value)
	return int32(sort.Search(len(l.mapped), func(i int) bool {
		return l.mapped[i] > m
	}))
}

func (l *Custom) BinLowerBound(binIndex int32) float64 {
	if binIndex <= 0 {
		return math.Inf(-1)
	}
	if binIndex > l.OverflowBinIndex() {
		binIndex = l.OverflowBinIndex()
	}
	return l.boundaries[binIndex-1]
}

func (l *Custom) BinUpperBound(binIndex int32) float64 {
	if binIndex >= l.OverflowBinIndex() {
		return math.Inf(1)
	}
	if binIndex < 0 {
		binIndex = 0
	}
	return algo.MapInt64ToDouble(l.mapped[binIndex] - 1)
}
