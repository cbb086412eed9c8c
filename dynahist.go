// Package dynahist provides a fast, memory-efficient streaming histogram
// over float64 samples. A histogram is parameterized by a layout (see
// the layout subpackage) that maps values to bucket indices with a
// bounded absolute or relative error; recording a sample is a
// constant-time counter increment, and quantiles, rank lookups, and the
// exact minimum and maximum can be queried at any time.
//
// Histograms come in three kinds: dynamic (bit-packed counters that grow
// in range and width on demand), static (the full bucket range allocated
// up front, allocation-free recording), and preprocessed (an immutable
// snapshot with logarithmic rank lookup). All three share one compact,
// versioned wire format; the layout itself is not part of the stream and
// must be supplied again when reading.
//
// A histogram is not safe for concurrent use; callers own their
// histogram and synchronize externally if they share it.
package dynahist

import (
	"io"
	"math"

	"github.com/dynatrace-oss/dynahist-go/layout"
)

// Histogram records float64 samples into buckets defined by a layout and
// answers order statistics over everything recorded.
type Histogram interface {
	// Layout returns the immutable layout the histogram was created
	// with.
	Layout() layout.Layout

	TotalCount() int64
	UnderflowCount() int64
	OverflowCount() int64
	// Count returns the count of the addressed bucket; out-of-range
	// indices report the underflow or overflow bucket.
	Count(binIndex int32) int64
	// Min and Max are exact over all recorded samples, distinguishing
	// -0.0 from +0.0. An empty histogram reports +Inf and -Inf.
	Min() float64
	Max() float64
	IsEmpty() bool

	// AddValue records a single sample; NaN is rejected.
	AddValue(value float64) error
	// AddValueWithCount records a sample count times; count must be
	// non-negative.
	AddValueWithCount(value float64, count int64) error
	// AddHistogram merges another histogram, exactly when the layouts
	// match and through estimated samples otherwise.
	AddHistogram(other Histogram) error
	AddHistogramWithEstimator(other Histogram, estimator ValueEstimator) error
	// AddAscendingSequence records a non-decreasing sequence of values,
	// with cost proportional to the number of buckets touched.
	AddAscendingSequence(values func(rank int64) float64, length int64) error

	// BinByRank positions an iterator on the bucket holding the sample
	// of the given zero-based rank.
	BinByRank(rank int64) (*BinIterator, error)
	FirstNonEmptyBin() (*BinIterator, error)
	LastNonEmptyBin() (*BinIterator, error)
	NonEmptyBinsAscending() []Bin
	NonEmptyBinsDescending() []Bin

	// Value reconstructs the sample of the given rank; rank 0 yields the
	// exact minimum and rank TotalCount()-1 the exact maximum.
	Value(rank int64) (float64, error)
	ValueWithEstimator(rank int64, estimator ValueEstimator) (float64, error)
	// Quantile evaluates the p-quantile, p in [0, 1].
	Quantile(p float64) (float64, error)
	QuantileWithEstimator(p float64, quantileEstimator QuantileEstimator, valueEstimator ValueEstimator) (float64, error)

	// PreprocessedCopy returns an immutable snapshot with O(log N) rank
	// lookup; copying a preprocessed histogram returns it unchanged.
	PreprocessedCopy() Histogram

	// Write serializes the histogram in the current wire format.
	Write(w io.Writer) error
}

// Equal reports whether two histograms hold the same distribution:
// interchangeable layouts, equal tallies, bit-equal min/max, and equal
// counts in every bucket.
func Equal(a, b Histogram) bool {
	if a == b {
		return true
	}
	if !layout.Equal(a.Layout(), b.Layout()) {
		return false
	}
	if a.TotalCount() != b.TotalCount() ||
		a.UnderflowCount() != b.UnderflowCount() ||
		a.OverflowCount() != b.OverflowCount() {
		return false
	}
	if math.Float64bits(a.Min()) != math.Float64bits(b.Min()) ||
		math.Float64bits(a.Max()) != math.Float64bits(b.Max()) {
		return false
	}
	aBins := a.NonEmptyBinsAscending()
	bBins := b.NonEmptyBinsAscending()
	if len(aBins) != len(bBins) {
		return false
	}
	for i := range aBins {
		if aBins[i].BinIndex != bBins[i].BinIndex || aBins[i].BinCount != bBins[i].BinCount {
			return false
		}
	}
	return true
}

// NewDynamic creates an empty histogram whose counter array grows and
// widens on demand.
func NewDynamic(l layout.Layout) Histogram {
	return newMutableHistogram(l, newDynamicCounts(l))
}

// NewStatic creates an empty histogram with the full regular bucket
// range pre-allocated at 64 bits per counter, so recording never
// allocates.
func NewStatic(l layout.Layout) Histogram {
	return newMutableHistogram(l, newStaticCounts(l))
}

// ReadDynamic deserializes a histogram written by Write into a dynamic
// histogram. The layout must be interchangeable with the one used for
// writing; it is not part of the stream.
func ReadDynamic(l layout.Layout, r io.Reader) (Histogram, error) {
	h := newMutableHistogram(l, newDynamicCounts(l))
	if err := readInto(h, r); err != nil {
		return nil, err
	}
	return h, nil
}

// ReadStatic deserializes a histogram into a static histogram.
func ReadStatic(l layout.Layout, r io.Reader) (Histogram, error) {
	h := newMutableHistogram(l, newStaticCounts(l))
	if err := readInto(h, r); err != nil {
		return nil, err
	}
	return h, nil
}

// ReadPreprocessed deserializes a histogram into an immutable
// preprocessed histogram.
func ReadPreprocessed(l layout.Layout, r io.Reader) (Histogram, error) {
	h, err := ReadDynamic(l, r)
	if err != nil {
		return nil, err
	}
	return h.PreprocessedCopy(), nil
}
