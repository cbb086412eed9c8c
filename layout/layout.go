// Package layout defines the mapping between real values and histogram
// bucket indices. A layout is a pure, immutable value: it maps any
// float64 (including NaN and the infinities) to a signed 32-bit bucket
// index, exposes the distinguished underflow and overflow indices, and
// can report the exact smallest and largest float64 mapping into any
// bucket.
package layout

import (
	"errors"
	"math"

	"github.com/dynatrace-oss/dynahist-go/internal/algo"
)

// ErrInvalidArgument is wrapped by all layout constructor failures.
var ErrInvalidArgument = errors.New("layout: invalid argument")

// Layout maps values to bucket indices.
//
// MapToBinIndex must be total over float64 and monotonically
// non-decreasing; NaN maps at or beyond one of the distinguished
// indices. All indices at or below UnderflowBinIndex address the
// underflow bucket, all indices at or above OverflowBinIndex the
// overflow bucket, and UnderflowBinIndex < OverflowBinIndex always
// holds.
type Layout interface {
	MapToBinIndex(value float64) int32

	UnderflowBinIndex() int32
	OverflowBinIndex() int32

	// BinLowerBound returns the smallest value mapping into the given
	// bucket (-Inf for the underflow bucket), BinUpperBound the largest
	// (+Inf for the overflow bucket). Both are defined on all int32.
	BinLowerBound(binIndex int32) float64
	BinUpperBound(binIndex int32) float64
}

const (
	unsignedValueMask = uint64(0x7fffffffffffffff)
	mantissaMask      = uint64(0x000fffffffffffff)
	exponentOneBits   = uint64(0x3ff0000000000000)
)

// lowerBoundFromApprox returns the smallest float64 whose bucket index
// is at least binIndex, refining an analytic approximation by a monotone
// search over the order-mapped bit representation. The approximation
// only affects the search cost, never the result.
func lowerBoundFromApprox(l Layout, binIndex int32, approx float64) float64 {
	guess := algo.MapDoubleToInt64(approx)
	m := algo.FindFirstWithGuess(func(x int64) bool {
		return l.MapToBinIndex(algo.MapInt64ToDouble(x)) >= binIndex
	}, algo.NegativeInfinityMapped, algo.PositiveInfinityMapped, guess)
	return algo.MapInt64ToDouble(m)
}

// binLowerBound implements the Layout contract generically for layouts
// that provide an approximate inverse of their index mapping.
func binLowerBound(l Layout, binIndex int32, approx func(int32) float64) float64 {
	if binIndex <= l.UnderflowBinIndex() {
		return math.Inf(-1)
	}
	if binIndex > l.OverflowBinIndex() {
		binIndex = l.OverflowBinIndex()
	}
	return lowerBoundFromApprox(l, binIndex, approx(binIndex))
}

// binUpperBound returns the largest value mapping into binIndex, i.e.
// the predecessor (in the order-mapped space) of the next bucket's lower
// bound.
func binUpperBound(l Layout, binIndex int32, approx func(int32) float64) float64 {
	if binIndex >= l.OverflowBinIndex() {
		return math.Inf(1)
	}
	if binIndex < l.UnderflowBinIndex() {
		binIndex = l.UnderflowBinIndex()
	}
	next := lowerBoundFromApprox(l, binIndex+1, approx(binIndex+1))
	return algo.MapInt64ToDouble(algo.MapDoubleToInt64(next) - 1)
}

// checkRange validates the user-supplied value range and the derived
// index span shared by the parametrized layouts.
func checkRange(lower, upper float64) error {
	if math.IsNaN(lower) || math.IsNaN(upper) {
		return errors.New("value range bounds must not be NaN")
	}
	if math.IsInf(lower, 0) || math.IsInf(upper, 0) {
		return errors.New("value range bounds must be finite")
	}
	if lower > upper {
		return errors.New("value range lower bound must not exceed upper bound")
	}
	return nil
}
