package dynahist

import (
	"fmt"
)

// Bin is an immutable snapshot of one non-empty bucket.
type Bin struct {
	BinIndex     int32
	BinCount     int64
	LessCount    int64
	GreaterCount int64
	LowerBound   float64
	UpperBound   float64
	IsUnderflow  bool
	IsOverflow   bool
}

// BinIterator walks the non-empty buckets of a histogram, including the
// underflow and overflow buckets, in index order. It is positioned on a
// bucket at all times; Next and Previous fail beyond the ends.
type BinIterator struct {
	h            histogramInternals
	binIndex     int32
	binCount     int64
	lessCount    int64
	greaterCount int64
}

// BinIndex returns the bucket index; the underflow and overflow buckets
// report the layout's distinguished indices.
func (it *BinIterator) BinIndex() int32 { return it.binIndex }

// BinCount returns the number of samples in the bucket.
func (it *BinIterator) BinCount() int64 { return it.binCount }

// LessCount returns the number of samples in buckets below this one.
func (it *BinIterator) LessCount() int64 { return it.lessCount }

// GreaterCount returns the number of samples in buckets above this one.
func (it *BinIterator) GreaterCount() int64 { return it.greaterCount }

func (it *BinIterator) LowerBound() float64 {
	return it.h.Layout().BinLowerBound(it.binIndex)
}

func (it *BinIterator) UpperBound() float64 {
	return it.h.Layout().BinUpperBound(it.binIndex)
}

func (it *BinIterator) IsUnderflow() bool {
	return it.binIndex <= it.h.Layout().UnderflowBinIndex()
}

func (it *BinIterator) IsOverflow() bool {
	return it.binIndex >= it.h.Layout().OverflowBinIndex()
}

func (it *BinIterator) IsFirstNonEmpty() bool { return it.lessCount == 0 }
func (it *BinIterator) IsLastNonEmpty() bool  { return it.greaterCount == 0 }

// Bin returns a snapshot of the current position.
func (it *BinIterator) Bin() Bin {
	return Bin{
		BinIndex:     it.binIndex,
		BinCount:     it.binCount,
		LessCount:    it.lessCount,
		GreaterCount: it.greaterCount,
		LowerBound:   it.LowerBound(),
		UpperBound:   it.UpperBound(),
		IsUnderflow:  it.IsUnderflow(),
		IsOverflow:   it.IsOverflow(),
	}
}

// Next advances to the next non-empty bucket.
func (it *BinIterator) Next() error {
	if it.greaterCount == 0 {
		return fmt.Errorf("%w: already at the last non-empty bin", ErrInvalidArgument)
	}
	l := it.h.Layout()
	from := it.binIndex + 1
	if it.IsUnderflow() {
		from = l.UnderflowBinIndex() + 1
	}
	it.lessCount += it.binCount
	if !it.IsOverflow() {
		if idx, c, ok := it.h.nextNonEmptyRegular(from, true); ok {
			it.binIndex, it.binCount = idx, c
			it.greaterCount = it.h.TotalCount() - it.lessCount - it.binCount
			return nil
		}
	}
	it.binIndex = l.OverflowBinIndex()
	it.binCount = it.h.OverflowCount()
	it.greaterCount = it.h.TotalCount() - it.lessCount - it.binCount
	return nil
}

// Previous moves back to the previous non-empty bucket.
func (it *BinIterator) Previous() error {
	if it.lessCount == 0 {
		return fmt.Errorf("%w: already at the first non-empty bin", ErrInvalidArgument)
	}
	l := it.h.Layout()
	from := it.binIndex - 1
	if it.IsOverflow() {
		from = l.OverflowBinIndex() - 1
	}
	it.greaterCount += it.binCount
	if !it.IsUnderflow() {
		if idx, c, ok := it.h.nextNonEmptyRegular(from, false); ok {
			it.binIndex, it.binCount = idx, c
			it.lessCount = it.h.TotalCount() - it.greaterCount - it.binCount
			return nil
		}
	}
	it.binIndex = l.UnderflowBinIndex()
	it.binCount = it.h.UnderflowCount()
	it.lessCount = it.h.TotalCount() - it.greaterCount - it.binCount
	return nil
}

func firstNonEmptyBin(h histogramInternals) (*BinIterator, error) {
	if h.IsEmpty() {
		return nil, fmt.Errorf("%w: histogram is empty", ErrInvalidArgument)
	}
	l := h.Layout()
	it := &BinIterator{h: h}
	if c := h.UnderflowCount(); c > 0 {
		it.binIndex, it.binCount = l.UnderflowBinIndex(), c
	} else if idx, c, ok := h.nextNonEmptyRegular(l.UnderflowBinIndex()+1, true); ok {
		it.binIndex, it.binCount = idx, c
	} else {
		it.binIndex, it.binCount = l.OverflowBinIndex(), h.OverflowCount()
	}
	it.greaterCount = h.TotalCount() - it.binCount
	return it, nil
}

func lastNonEmptyBin(h histogramInternals) (*BinIterator, error) {
	if h.IsEmpty() {
		return nil, fmt.Errorf("%w: histogram is empty", ErrInvalidArgument)
	}
	l := h.Layout()
	it := &BinIterator{h: h}
	if c := h.OverflowCount(); c > 0 {
		it.binIndex, it.binCount = l.OverflowBinIndex(), c
	} else if idx, c, ok := h.nextNonEmptyRegular(l.OverflowBinIndex()-1, false); ok {
		it.binIndex, it.binCount = idx, c
	} else {
		it.binIndex, it.binCount = l.UnderflowBinIndex(), h.UnderflowCount()
	}
	it.lessCount = h.TotalCount() - it.binCount
	return it, nil
}

func collectBins(h histogramInternals, ascending bool) []Bin {
	if h.IsEmpty() {
		return nil
	}
	var bins []Bin
	var it *BinIterator
	var err error
	if ascending {
		it, err = firstNonEmptyBin(h)
	} else {
		it, err = lastNonEmptyBin(h)
	}
	if err != nil {
		return nil
	}
	for {
		bins = append(bins, it.Bin())
		if ascending {
			if it.IsLastNonEmpty() {
				return bins
			}
			if err := it.Next(); err != nil {
				return bins
			}
		} else {
			if it.IsFirstNonEmpty() {
				return bins
			}
			if err := it.Previous(); err != nil {
				return bins
			}
		}
	}
}
