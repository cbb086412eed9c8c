package dynahist

import (
	"fmt"
	"math"

	"github.com/dynatrace-oss/dynahist-go/layout"
)

const negativeZeroBits = uint64(0x8000000000000000)

// histogramInternals is the package-internal view of a histogram that
// the bin iterator, the estimators, and the serialization codec operate
// on. regularRange bounds the candidate non-empty regular bins;
// nextNonEmptyRegular advances to the nearest non-empty regular bin at
// or beyond the given index in the given direction.
type histogramInternals interface {
	Histogram
	regularCount(binIndex int32) int64
	regularRange() (first, last int32, ok bool)
	nextNonEmptyRegular(from int32, ascending bool) (int32, int64, bool)
}

// histogramCore carries the tallies shared by every histogram kind and
// implements the read-only part of the Histogram contract on top of the
// histogramInternals of the concrete type.
type histogramCore struct {
	self           histogramInternals
	layoutRef      layout.Layout
	totalCount     int64
	underflowCount int64
	overflowCount  int64
	min            float64
	max            float64
}

func newHistogramCore(l layout.Layout) histogramCore {
	return histogramCore{
		layoutRef: l,
		min:       math.Inf(1),
		max:       math.Inf(-1),
	}
}

func (h *histogramCore) Layout() layout.Layout { return h.layoutRef }
func (h *histogramCore) TotalCount() int64     { return h.totalCount }
func (h *histogramCore) UnderflowCount() int64 { return h.underflowCount }
func (h *histogramCore) OverflowCount() int64  { return h.overflowCount }
func (h *histogramCore) Min() float64          { return h.min }
func (h *histogramCore) Max() float64          { return h.max }
func (h *histogramCore) IsEmpty() bool         { return h.totalCount == 0 }

// Count returns the count of the addressed bucket; indices at or below
// the underflow index report the underflow bucket, indices at or above
// the overflow index the overflow bucket.
func (h *histogramCore) Count(binIndex int32) int64 {
	if binIndex <= h.layoutRef.UnderflowBinIndex() {
		return h.underflowCount
	}
	if binIndex >= h.layoutRef.OverflowBinIndex() {
		return h.overflowCount
	}
	return h.self.regularCount(binIndex)
}

// updateMinMax applies the sign-aware rules that keep -0.0 and +0.0
// distinguishable: the raw-bits comparison lets -0.0 displace +0.0 as
// minimum and +0.0 displace -0.0 as maximum even though they compare
// equal numerically.
func (h *histogramCore) updateMinMax(value float64) {
	if value <= h.min && (value < h.min || math.Float64bits(value) == negativeZeroBits) {
		h.min = value
	}
	if value >= h.max && (value > h.max || math.Float64bits(value) == 0) {
		h.max = value
	}
}

func (h *histogramCore) nextNonEmptyRegular(from int32, ascending bool) (int32, int64, bool) {
	first, last, ok := h.self.regularRange()
	if !ok {
		return 0, 0, false
	}
	if ascending {
		for i := max32(from, first); i <= last; i++ {
			if c := h.self.regularCount(i); c > 0 {
				return i, c, true
			}
		}
	} else {
		for i := min32(from, last); i >= first; i-- {
			if c := h.self.regularCount(i); c > 0 {
				return i, c, true
			}
		}
	}
	return 0, 0, false
}

// BinByRank returns an iterator positioned at the bucket holding the
// sample of the given zero-based rank, scanning from whichever end is
// nearer.
func (h *histogramCore) BinByRank(rank int64) (*BinIterator, error) {
	if rank < 0 || rank >= h.totalCount {
		return nil, fmt.Errorf("%w: rank %d outside [0, %d)", ErrInvalidArgument, rank, h.totalCount)
	}
	if rank <= h.totalCount/2 {
		it, err := h.FirstNonEmptyBin()
		if err != nil {
			return nil, err
		}
		for it.LessCount()+it.BinCount() <= rank {
			if err := it.Next(); err != nil {
				return nil, err
			}
		}
		return it, nil
	}
	it, err := h.LastNonEmptyBin()
	if err != nil {
		return nil, err
	}
	for it.LessCount() > rank {
		if err := it.Previous(); err != nil {
			return nil, err
		}
	}
	return it, nil
}

func (h *histogramCore) FirstNonEmptyBin() (*BinIterator, error) {
	return firstNonEmptyBin(h.self)
}

func (h *histogramCore) LastNonEmptyBin() (*BinIterator, error) {
	return lastNonEmptyBin(h.self)
}

func (h *histogramCore) NonEmptyBinsAscending() []Bin {
	return collectBins(h.self, true)
}

func (h *histogramCore) NonEmptyBinsDescending() []Bin {
	return collectBins(h.self, false)
}

func (h *histogramCore) Value(rank int64) (float64, error) {
	return h.ValueWithEstimator(rank, ValueEstimatorUniform)
}

// ValueWithEstimator reconstructs the sample of the given rank. Rank 0
// returns the exact minimum and rank totalCount-1 the exact maximum;
// everything in between is a point inside the containing bucket chosen
// by the estimator.
func (h *histogramCore) ValueWithEstimator(rank int64, estimator ValueEstimator) (float64, error) {
	if rank < 0 || rank >= h.totalCount {
		return 0, fmt.Errorf("%w: rank %d outside [0, %d)", ErrInvalidArgument, rank, h.totalCount)
	}
	if rank == 0 {
		return h.min, nil
	}
	if rank == h.totalCount-1 {
		return h.max, nil
	}
	it, err := h.self.BinByRank(rank)
	if err != nil {
		return 0, err
	}
	lower := it.LowerBound()
	if it.IsFirstNonEmpty() {
		lower = h.min
	}
	upper := it.UpperBound()
	if it.IsLastNonEmpty() {
		upper = h.max
	}
	return estimator.EstimateFromBin(lower, upper, rank-it.LessCount(), it.BinCount()), nil
}

func (h *histogramCore) Quantile(p float64) (float64, error) {
	return h.QuantileWithEstimator(p, DefaultQuantileEstimator, ValueEstimatorUniform)
}

func (h *histogramCore) QuantileWithEstimator(p float64, quantileEstimator QuantileEstimator, valueEstimator ValueEstimator) (float64, error) {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: quantile probability %g outside [0, 1]", ErrInvalidArgument, p)
	}
	v := quantileEstimator.Estimate(p, func(rank int64) float64 {
		value, err := h.ValueWithEstimator(rank, valueEstimator)
		if err != nil {
			return math.NaN()
		}
		return value
	}, h.totalCount)
	return v, nil
}

func (h *histogramCore) PreprocessedCopy() Histogram {
	return newPreprocessed(h.self)
}
