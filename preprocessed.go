package dynahist

import (
	"fmt"
	"sort"
)

// preprocessedHistogram is an immutable snapshot with cumulative counts
// per non-empty regular bucket, which makes rank lookups O(log N) in the
// number of non-empty buckets. All mutating operations fail.
type preprocessedHistogram struct {
	histogramCore
	binIndices []int32
	binCounts  []int64
	cumulative []int64 // inclusive running sum over binCounts
}

func newPreprocessed(src histogramInternals) Histogram {
	if p, ok := src.(*preprocessedHistogram); ok {
		return p
	}
	p := &preprocessedHistogram{
		histogramCore: histogramCore{
			layoutRef:      src.Layout(),
			totalCount:     src.TotalCount(),
			underflowCount: src.UnderflowCount(),
			overflowCount:  src.OverflowCount(),
			min:            src.Min(),
			max:            src.Max(),
		},
	}
	p.self = p
	l := src.Layout()
	running := int64(0)
	idx := l.UnderflowBinIndex() + 1
	for {
		i, c, ok := src.nextNonEmptyRegular(idx, true)
		if !ok {
			break
		}
		running += c
		p.binIndices = append(p.binIndices, i)
		p.binCounts = append(p.binCounts, c)
		p.cumulative = append(p.cumulative, running)
		if i == l.OverflowBinIndex()-1 {
			break
		}
		idx = i + 1
	}
	return p
}

func (p *preprocessedHistogram) regularCount(binIndex int32) int64 {
	k := sort.Search(len(p.binIndices), func(i int) bool {
		return p.binIndices[i] >= binIndex
	})
	if k < len(p.binIndices) && p.binIndices[k] == binIndex {
		return p.binCounts[k]
	}
	return 0
}

func (p *preprocessedHistogram) regularRange() (int32, int32, bool) {
	if len(p.binIndices) == 0 {
		return 0, 0, false
	}
	return p.binIndices[0], p.binIndices[len(p.binIndices)-1], true
}

// nextNonEmptyRegular advances by binary search instead of a linear scan
// over bucket indices.
func (p *preprocessedHistogram) nextNonEmptyRegular(from int32, ascending bool) (int32, int64, bool) {
	if len(p.binIndices) == 0 {
		return 0, 0, false
	}
	if ascending {
		k := sort.Search(len(p.binIndices), func(i int) bool {
			return p.binIndices[i] >= from
		})
		if k == len(p.binIndices) {
			return 0, 0, false
		}
		return p.binIndices[k], p.binCounts[k], true
	}
	k := sort.Search(len(p.binIndices), func(i int) bool {
		return p.binIndices[i] > from
	})
	if k == 0 {
		return 0, 0, false
	}
	return p.binIndices[k-1], p.binCounts[k-1], true
}

// BinByRank locates the bucket by binary search over the cumulative
// counts.
func (p *preprocessedHistogram) BinByRank(rank int64) (*BinIterator, error) {
	if rank < 0 || rank >= p.totalCount {
		return nil, fmt.Errorf("%w: rank %d outside [0, %d)", ErrInvalidArgument, rank, p.totalCount)
	}
	it := &BinIterator{h: p}
	l := p.layoutRef
	switch {
	case rank < p.underflowCount:
		it.binIndex = l.UnderflowBinIndex()
		it.binCount = p.underflowCount
		it.lessCount = 0
	case rank >= p.totalCount-p.overflowCount:
		it.binIndex = l.OverflowBinIndex()
		it.binCount = p.overflowCount
		it.lessCount = p.totalCount - p.overflowCount
	default:
		r := rank - p.underflowCount
		k := sort.Search(len(p.cumulative), func(i int) bool {
			return p.cumulative[i] > r
		})
		it.binIndex = p.binIndices[k]
		it.binCount = p.binCounts[k]
		it.lessCount = p.underflowCount + p.cumulative[k] - p.binCounts[k]
	}
	it.greaterCount = p.totalCount - it.lessCount - it.binCount
	return it, nil
}

// PreprocessedCopy of a preprocessed histogram is the histogram itself.
func (p *preprocessedHistogram) PreprocessedCopy() Histogram { return p }

func (p *preprocessedHistogram) AddValue(float64) error {
	return ErrUnsupportedOperation
}

func (p *preprocessedHistogram) AddValueWithCount(float64, int64) error {
	return ErrUnsupportedOperation
}

func (p *preprocessedHistogram) AddHistogram(Histogram) error {
	return ErrUnsupportedOperation
}

func (p *preprocessedHistogram) AddHistogramWithEstimator(Histogram, ValueEstimator) error {
	return ErrUnsupportedOperation
}

func (p *preprocessedHistogram) AddAscendingSequence(func(int64) float64, int64) error {
	return ErrUnsupportedOperation
}
