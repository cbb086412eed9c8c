package dynahist

import (
	"fmt"
	"math"

	"github.com/dynatrace-oss/dynahist-go/internal/algo"
	"github.com/dynatrace-oss/dynahist-go/layout"
)

// regularCountsBacking stores the regular bucket counts of a mutable
// histogram. The dynamic backing widens on demand, the static backing
// allocates the full regular range up front.
type regularCountsBacking interface {
	get(binIndex int32) int64
	// increase adds to a counter inside the regular index range, growing
	// the backing as needed; it cannot fail for counts below the total
	// count limit.
	increase(binIndex int32, count int64)
	// increaseSaturating adds without growing, clipping at the capacity
	// of the current counter width. Only the deserialization path uses
	// it, to stay lenient towards streams whose counts exceed the
	// reconstructed mode.
	increaseSaturating(binIndex int32, count int64)
	// ensureRange pre-allocates counters for the index range at a width
	// sufficient for maxValue.
	ensureRange(first, last int32, maxValue uint64)
	allocatedRange() (first, last int32, ok bool)
}

// mutableHistogram is the modifiable histogram aggregate: tallies plus a
// counts backing.
type mutableHistogram struct {
	histogramCore
	counts regularCountsBacking
}

func newMutableHistogram(l layout.Layout, counts regularCountsBacking) *mutableHistogram {
	h := &mutableHistogram{
		histogramCore: newHistogramCore(l),
		counts:        counts,
	}
	h.self = h
	return h
}

func (h *mutableHistogram) regularCount(binIndex int32) int64 {
	return h.counts.get(binIndex)
}

func (h *mutableHistogram) regularRange() (int32, int32, bool) {
	return h.counts.allocatedRange()
}

func (h *mutableHistogram) AddValue(value float64) error {
	return h.AddValueWithCount(value, 1)
}

// AddValueWithCount records value count times. All validation happens
// before any state is touched, so a failed call leaves the histogram
// exactly as it was.
func (h *mutableHistogram) AddValueWithCount(value float64, count int64) error {
	if count < 0 {
		return fmt.Errorf("%w: count must be non-negative, got %d", ErrInvalidArgument, count)
	}
	if math.IsNaN(value) {
		return fmt.Errorf("%w: value must not be NaN", ErrInvalidArgument)
	}
	if count == 0 {
		return nil
	}
	if h.totalCount > math.MaxInt64-count {
		return ErrTotalCountOverflow
	}
	idx := h.layoutRef.MapToBinIndex(value)
	switch {
	case idx <= h.layoutRef.UnderflowBinIndex():
		h.underflowCount += count
	case idx >= h.layoutRef.OverflowBinIndex():
		h.overflowCount += count
	default:
		h.counts.increase(idx, count)
	}
	h.totalCount += count
	h.updateMinMax(value)
	return nil
}

// AddAscendingSequence records values(0) .. values(length-1), where the
// sequence must be monotonically non-decreasing and free of NaN. The
// final element is inserted first to settle the maximum; the rest is
// grouped by bucket with a galloping search, so the cost scales with the
// number of distinct buckets touched rather than with length.
func (h *mutableHistogram) AddAscendingSequence(values func(rank int64) float64, length int64) error {
	if length < 0 {
		return fmt.Errorf("%w: length must be non-negative, got %d", ErrInvalidArgument, length)
	}
	if length == 0 {
		return nil
	}
	if length > math.MaxInt64-h.totalCount {
		return ErrTotalCountOverflow
	}
	if err := h.AddValueWithCount(values(length-1), 1); err != nil {
		return err
	}
	if length == 1 {
		return nil
	}
	idx := int64(0)
	groupSize := int64(1)
	for idx != length-1 {
		v := values(idx)
		binIndex := h.layoutRef.MapToBinIndex(v)
		next := algo.FindFirstWithGuess(func(i int64) bool {
			return i == length-1 || h.layoutRef.MapToBinIndex(values(i)) > binIndex
		}, idx, length-1, idx+groupSize)
		if err := h.AddValueWithCount(v, next-idx); err != nil {
			return err
		}
		groupSize = next - idx
		idx = next
	}
	return nil
}

func (h *mutableHistogram) AddHistogram(other Histogram) error {
	return h.AddHistogramWithEstimator(other, ValueEstimatorUniform)
}

// AddHistogramWithEstimator merges another histogram. Sharing the layout
// allows an exact bucket-wise sum; otherwise the other histogram is
// replayed as an ascending sequence of estimated samples.
func (h *mutableHistogram) AddHistogramWithEstimator(other Histogram, estimator ValueEstimator) error {
	if other.IsEmpty() {
		return nil
	}
	if h.totalCount > math.MaxInt64-other.TotalCount() {
		return ErrTotalCountOverflow
	}
	if layout.Equal(h.layoutRef, other.Layout()) {
		it, err := other.FirstNonEmptyBin()
		if err != nil {
			return err
		}
		for {
			switch {
			case it.IsUnderflow():
				h.underflowCount += it.BinCount()
			case it.IsOverflow():
				h.overflowCount += it.BinCount()
			default:
				h.counts.increase(it.BinIndex(), it.BinCount())
			}
			if it.IsLastNonEmpty() {
				break
			}
			if err := it.Next(); err != nil {
				return err
			}
		}
		h.totalCount += other.TotalCount()
		h.updateMinMax(other.Min())
		h.updateMinMax(other.Max())
		return nil
	}
	pre := other.PreprocessedCopy()
	return h.AddAscendingSequence(func(rank int64) float64 {
		v, err := pre.ValueWithEstimator(rank, estimator)
		if err != nil {
			return math.NaN()
		}
		return v
	}, pre.TotalCount())
}

// dynamicCounts backs a dynamic histogram with the bit-packed
// mode-adaptive counter store.
type dynamicCounts struct {
	store      counterStore
	lowerBound int32 // first regular index
	upperBound int32 // last regular index
}

func newDynamicCounts(l layout.Layout) *dynamicCounts {
	return &dynamicCounts{
		lowerBound: l.UnderflowBinIndex() + 1,
		upperBound: l.OverflowBinIndex() - 1,
	}
}

func (d *dynamicCounts) get(binIndex int32) int64 {
	return int64(d.store.get(binIndex))
}

func (d *dynamicCounts) increase(binIndex int32, count int64) {
	updated := d.store.get(binIndex) + uint64(count)
	required := determineRequiredMode(updated)
	if !d.store.contains(binIndex) || required > d.store.mode {
		d.store.ensure(binIndex, binIndex, required, d.lowerBound, d.upperBound)
	}
	d.store.set(binIndex, updated)
}

func (d *dynamicCounts) increaseSaturating(binIndex int32, count int64) {
	d.store.addSaturating(binIndex, uint64(count))
}

func (d *dynamicCounts) ensureRange(first, last int32, maxValue uint64) {
	d.store.ensure(first, last, determineRequiredMode(maxValue), d.lowerBound, d.upperBound)
}

func (d *dynamicCounts) allocatedRange() (int32, int32, bool) {
	if d.store.numCounters() == 0 {
		return 0, 0, false
	}
	return d.store.minIndex(), d.store.maxIndex(), true
}

// staticCounts backs a static histogram: one 64-bit counter per regular
// bucket, allocated in full at construction so the add path never
// allocates.
type staticCounts struct {
	counts []int64
	offset int32
}

func newStaticCounts(l layout.Layout) *staticCounts {
	span := int64(l.OverflowBinIndex()) - int64(l.UnderflowBinIndex()) - 1
	return &staticCounts{
		counts: make([]int64, span),
		offset: l.UnderflowBinIndex() + 1,
	}
}

func (s *staticCounts) get(binIndex int32) int64 {
	return s.counts[binIndex-s.offset]
}

func (s *staticCounts) increase(binIndex int32, count int64) {
	s.counts[binIndex-s.offset] += count
}

func (s *staticCounts) increaseSaturating(binIndex int32, count int64) {
	c := &s.counts[binIndex-s.offset]
	if *c > math.MaxInt64-count {
		*c = math.MaxInt64
		return
	}
	*c += count
}

func (s *staticCounts) ensureRange(int32, int32, uint64) {}

func (s *staticCounts) allocatedRange() (int32, int32, bool) {
	if len(s.counts) == 0 {
		return 0, 0, false
	}
	return s.offset, s.offset + int32(len(s.counts)) - 1, true
}
