package dynahist

import (
	"fmt"
	"io"
	"math"
	"math/bits"

	"github.com/dynatrace-oss/dynahist-go/internal/bitio"
)

// Wire format versions. The version byte leads the stream; Write always
// emits the current version, the readers accept both.
const (
	serialVersionV0 = byte(0x00)
	serialVersionV1 = byte(0x01)
)

// Write emits the histogram in the V1 wire format. The layout is not
// part of the stream; readers must supply an interchangeable layout.
func (h *histogramCore) Write(w io.Writer) error {
	return writeVersioned(h.self, w, serialVersionV1)
}

// writeV0 and writeV1 pin the wire format version; the readers dispatch
// on the leading version byte, so both remain readable.
func writeV0(h Histogram, w io.Writer) error {
	return writeVersioned(h.(histogramInternals), w, serialVersionV0)
}

func writeV1(h Histogram, w io.Writer) error {
	return writeVersioned(h.(histogramInternals), w, serialVersionV1)
}

func writeVersioned(h histogramInternals, w io.Writer, version byte) error {
	bw := bitio.NewWriter(w)
	if err := bw.WriteByte(version); err != nil {
		return err
	}
	switch {
	case h.TotalCount() == 0:
		if err := bw.WriteByte(0x00); err != nil {
			return err
		}
	case h.TotalCount() == 1:
		// Special mode: the min-below-max flag doubles as the marker for
		// the single serialized sample.
		info := byte(0x08)
		if version == serialVersionV1 {
			info = 0x02
		}
		if err := bw.WriteByte(info); err != nil {
			return err
		}
		if err := bw.WriteUint64(math.Float64bits(h.Min())); err != nil {
			return err
		}
	default:
		var err error
		if version == serialVersionV0 {
			err = writeNormalV0(h, bw)
		} else {
			err = writeNormalV1(h, bw)
		}
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// encodeState captures everything the normal-mode encoders need: the
// effective counts with the min and max samples subtracted out (they
// travel as explicit binary64 fields), and the scan statistics over the
// effectively non-empty regular buckets.
type encodeState struct {
	h                histogramInternals
	effUnder         int64
	effOver          int64
	minRegular       int32
	maxRegular       int32
	minRegularOK     bool
	maxRegularOK     bool
	effTotalRegular  int64
	first            int32
	last             int32
	numNonZero       int64
	maxCount         uint64
	maxGapMinusOne   int32
	hasNonZeroBucket bool
}

func newEncodeState(h histogramInternals) *encodeState {
	s := &encodeState{h: h, effUnder: h.UnderflowCount(), effOver: h.OverflowCount()}
	l := h.Layout()
	for _, v := range [2]float64{h.Min(), h.Max()} {
		idx := l.MapToBinIndex(v)
		switch {
		case idx <= l.UnderflowBinIndex():
			s.effUnder--
		case idx >= l.OverflowBinIndex():
			s.effOver--
		default:
			if !s.minRegularOK {
				s.minRegular, s.minRegularOK = idx, true
			} else {
				s.maxRegular, s.maxRegularOK = idx, true
			}
		}
	}
	if first, last, ok := h.regularRange(); ok {
		prev := int32(0)
		for i := first; i <= last; i++ {
			c := s.effectiveCount(i)
			if c <= 0 {
				continue
			}
			if !s.hasNonZeroBucket {
				s.first = i
				s.hasNonZeroBucket = true
			} else if gap := i - prev - 1; gap > s.maxGapMinusOne {
				s.maxGapMinusOne = gap
			}
			prev = i
			s.last = i
			s.numNonZero++
			s.effTotalRegular += c
			if uint64(c) > s.maxCount {
				s.maxCount = uint64(c)
			}
		}
	}
	return s
}

// effectiveCount is the bucket count with the min and max contributions
// removed.
func (s *encodeState) effectiveCount(binIndex int32) int64 {
	c := s.h.regularCount(binIndex)
	if s.minRegularOK && binIndex == s.minRegular {
		c--
	}
	if s.maxRegularOK && binIndex == s.maxRegular {
		c--
	}
	return c
}

func saturate3(v int64) byte {
	if v >= 3 {
		return 3
	}
	return byte(v)
}

func writeNormalV1(h histogramInternals, bw *bitio.Writer) error {
	s := newEncodeState(h)
	minBelowMax := h.Min() < h.Max()
	info := byte(0x01)
	if minBelowMax {
		info |= 0x02
	}
	info |= saturate3(s.effTotalRegular) << 2
	info |= saturate3(s.effUnder) << 4
	info |= saturate3(s.effOver) << 6
	if err := bw.WriteByte(info); err != nil {
		return err
	}
	if err := bw.WriteUint64(math.Float64bits(h.Min())); err != nil {
		return err
	}
	if minBelowMax {
		if err := bw.WriteUint64(math.Float64bits(h.Max())); err != nil {
			return err
		}
	}
	if s.effUnder >= 3 {
		if err := bw.WriteUnsignedVarLong(uint64(s.effUnder - 3)); err != nil {
			return err
		}
	}
	if s.effOver >= 3 {
		if err := bw.WriteUnsignedVarLong(uint64(s.effOver - 3)); err != nil {
			return err
		}
	}
	switch {
	case s.effTotalRegular == 0:
		return nil
	case s.effTotalRegular == 1:
		return bw.WriteSignedVarInt(s.first)
	case s.effTotalRegular == 2:
		if err := bw.WriteSignedVarInt(s.first); err != nil {
			return err
		}
		return bw.WriteSignedVarInt(s.last)
	default:
		return writeCountsV1(s, bw)
	}
}

// writeCountsV1 emits the bit-packed count payload, choosing whichever
// of the dense and sparse encodings needs fewer bits. A sparse payload
// announces itself by writing the last bucket index before the first
// one; the decoder detects the inversion and swaps them back.
func writeCountsV1(s *encodeState, bw *bitio.Writer) error {
	bitsPerCount := uint(64 - bits.LeadingZeros64(s.maxCount))
	bitsForDiff := uint(32 - bits.LeadingZeros32(uint32(s.maxGapMinusOne)))
	denseBits := int64(6) + (int64(s.last)-int64(s.first)+1)*int64(bitsPerCount)
	sparseBits := int64(6+5) + s.numNonZero*int64(bitsPerCount) + (s.numNonZero-1)*int64(bitsForDiff)
	dense := denseBits <= sparseBits || s.first == s.last
	if dense {
		if err := bw.WriteSignedVarInt(s.first); err != nil {
			return err
		}
		if err := bw.WriteSignedVarInt(s.last); err != nil {
			return err
		}
		if err := bw.WriteBits(6, uint64(bitsPerCount)); err != nil {
			return err
		}
		for i := s.first; ; i++ {
			if err := bw.WriteBits(bitsPerCount, uint64(s.effectiveCount(i))); err != nil {
				return err
			}
			if i == s.last {
				return nil
			}
		}
	}
	if err := bw.WriteSignedVarInt(s.last); err != nil {
		return err
	}
	if err := bw.WriteSignedVarInt(s.first); err != nil {
		return err
	}
	if err := bw.WriteBits(6, uint64(bitsPerCount)); err != nil {
		return err
	}
	if err := bw.WriteBits(5, uint64(bitsForDiff)); err != nil {
		return err
	}
	prev := s.first
	if err := bw.WriteBits(bitsPerCount, uint64(s.effectiveCount(s.first))); err != nil {
		return err
	}
	for i := s.first + 1; i <= s.last; i++ {
		c := s.effectiveCount(i)
		if c <= 0 {
			continue
		}
		if err := bw.WriteBits(bitsForDiff, uint64(i-prev-1)); err != nil {
			return err
		}
		if err := bw.WriteBits(bitsPerCount, uint64(c)); err != nil {
			return err
		}
		prev = i
	}
	return nil
}

func writeNormalV0(h histogramInternals, bw *bitio.Writer) error {
	s := newEncodeState(h)
	mode := determineRequiredMode(s.maxCount)
	minBelowMax := h.Min() < h.Max()
	info := mode + 1
	if minBelowMax {
		info |= 0x08
	}
	info |= saturate3(s.effTotalRegular) << 4
	if s.effUnder >= 1 {
		info |= 0x40
	}
	if s.effOver >= 1 {
		info |= 0x80
	}
	if err := bw.WriteByte(info); err != nil {
		return err
	}
	if err := bw.WriteUint64(math.Float64bits(h.Min())); err != nil {
		return err
	}
	if minBelowMax {
		if err := bw.WriteUint64(math.Float64bits(h.Max())); err != nil {
			return err
		}
	}
	if s.effUnder >= 1 {
		if err := bw.WriteUnsignedVarLong(uint64(s.effUnder - 1)); err != nil {
			return err
		}
	}
	if s.effOver >= 1 {
		if err := bw.WriteUnsignedVarLong(uint64(s.effOver - 1)); err != nil {
			return err
		}
	}
	if s.effTotalRegular >= 1 {
		if err := bw.WriteSignedVarInt(s.first); err != nil {
			return err
		}
	}
	if s.effTotalRegular >= 2 {
		if err := bw.WriteSignedVarInt(s.last); err != nil {
			return err
		}
	}
	if s.effTotalRegular >= 3 {
		width := uint(1) << mode
		for i := s.first; ; i++ {
			if err := bw.WriteBits(width, uint64(s.effectiveCount(i))); err != nil {
				return err
			}
			if i == s.last {
				break
			}
		}
	}
	return nil
}

// regularEntry is one decoded (bucket index, effective count) pair.
type regularEntry struct {
	index int32
	count int64
}

func readInto(h *mutableHistogram, r io.Reader) error {
	br := bitio.NewReader(r)
	version, err := br.ReadByte()
	if err != nil {
		return err
	}
	switch version {
	case serialVersionV0:
		return readV0(h, br)
	case serialVersionV1:
		return readV1(h, br)
	default:
		return fmt.Errorf("%w: %#02x", ErrUnknownSerialVersion, version)
	}
}

func readV1(h *mutableHistogram, br *bitio.Reader) error {
	info, err := br.ReadByte()
	if err != nil {
		return err
	}
	if info&0x01 == 0 {
		if info&0x02 == 0 {
			return nil // empty
		}
		b, err := br.ReadUint64()
		if err != nil {
			return err
		}
		return h.AddValueWithCount(math.Float64frombits(b), 1)
	}
	min, max, err := readMinMax(br, info&0x02 != 0)
	if err != nil {
		return err
	}
	effUnder, err := readSaturatedCount(br, info>>4&3, 3)
	if err != nil {
		return err
	}
	effOver, err := readSaturatedCount(br, info>>6&3, 3)
	if err != nil {
		return err
	}
	var entries []regularEntry
	var maxCount uint64
	switch info >> 2 & 3 {
	case 0:
	case 1:
		idx, err := br.ReadSignedVarInt()
		if err != nil {
			return err
		}
		entries, maxCount = []regularEntry{{idx, 1}}, 1
	case 2:
		first, err := br.ReadSignedVarInt()
		if err != nil {
			return err
		}
		last, err := br.ReadSignedVarInt()
		if err != nil {
			return err
		}
		if first > last {
			return fmt.Errorf("%w: descending bin indices %d, %d", ErrInvalidArgument, first, last)
		}
		if first == last {
			entries, maxCount = []regularEntry{{first, 2}}, 2
		} else {
			entries, maxCount = []regularEntry{{first, 1}, {last, 1}}, 1
		}
	case 3:
		entries, maxCount, err = readCountsV1(br)
		if err != nil {
			return err
		}
	}
	return reconstruct(h, min, max, effUnder, effOver, entries, maxCount)
}

func readCountsV1(br *bitio.Reader) ([]regularEntry, uint64, error) {
	a, err := br.ReadSignedVarInt()
	if err != nil {
		return nil, 0, err
	}
	b, err := br.ReadSignedVarInt()
	if err != nil {
		return nil, 0, err
	}
	dense := a <= b
	first, last := a, b
	if !dense {
		first, last = b, a
	}
	bitsPerCount, err := br.ReadBits(6)
	if err != nil {
		return nil, 0, err
	}
	if bitsPerCount == 0 {
		return nil, 0, fmt.Errorf("%w: zero count width", ErrInvalidArgument)
	}
	var entries []regularEntry
	var maxCount uint64
	appendEntry := func(idx int32, c uint64) error {
		if c == 0 {
			return nil
		}
		if c > math.MaxInt64 {
			return ErrTotalCountOverflow
		}
		if c > maxCount {
			maxCount = c
		}
		entries = append(entries, regularEntry{idx, int64(c)})
		return nil
	}
	if dense {
		for i := first; ; i++ {
			c, err := br.ReadBits(uint(bitsPerCount))
			if err != nil {
				return nil, 0, err
			}
			if err := appendEntry(i, c); err != nil {
				return nil, 0, err
			}
			if i == last {
				return entries, maxCount, nil
			}
		}
	}
	bitsForDiff, err := br.ReadBits(5)
	if err != nil {
		return nil, 0, err
	}
	i := first
	c, err := br.ReadBits(uint(bitsPerCount))
	if err != nil {
		return nil, 0, err
	}
	if err := appendEntry(i, c); err != nil {
		return nil, 0, err
	}
	for i < last {
		gap := int64(1)
		if bitsForDiff > 0 {
			g, err := br.ReadBits(uint(bitsForDiff))
			if err != nil {
				return nil, 0, err
			}
			gap = int64(g) + 1
		}
		next := int64(i) + gap
		if next > int64(last) {
			return nil, 0, fmt.Errorf("%w: sparse bin index %d beyond last index %d", ErrInvalidArgument, next, last)
		}
		i = int32(next)
		c, err := br.ReadBits(uint(bitsPerCount))
		if err != nil {
			return nil, 0, err
		}
		if err := appendEntry(i, c); err != nil {
			return nil, 0, err
		}
	}
	return entries, maxCount, nil
}

func readV0(h *mutableHistogram, br *bitio.Reader) error {
	info, err := br.ReadByte()
	if err != nil {
		return err
	}
	if info&0x07 == 0 {
		if info&0x08 == 0 {
			return nil // empty
		}
		b, err := br.ReadUint64()
		if err != nil {
			return err
		}
		return h.AddValueWithCount(math.Float64frombits(b), 1)
	}
	mode := info&0x07 - 1
	min, max, err := readMinMax(br, info&0x08 != 0)
	if err != nil {
		return err
	}
	var effUnder, effOver int64
	if info&0x40 != 0 {
		if effUnder, err = readSaturatedCount(br, 3, 1); err != nil {
			return err
		}
	}
	if info&0x80 != 0 {
		if effOver, err = readSaturatedCount(br, 3, 1); err != nil {
			return err
		}
	}
	var entries []regularEntry
	var maxCount uint64
	switch info >> 4 & 3 {
	case 0:
	case 1:
		idx, err := br.ReadSignedVarInt()
		if err != nil {
			return err
		}
		entries, maxCount = []regularEntry{{idx, 1}}, 1
	case 2:
		first, err := br.ReadSignedVarInt()
		if err != nil {
			return err
		}
		last, err := br.ReadSignedVarInt()
		if err != nil {
			return err
		}
		if first > last {
			return fmt.Errorf("%w: descending bin indices %d, %d", ErrInvalidArgument, first, last)
		}
		if first == last {
			entries, maxCount = []regularEntry{{first, 2}}, 2
		} else {
			entries, maxCount = []regularEntry{{first, 1}, {last, 1}}, 1
		}
	case 3:
		first, err := br.ReadSignedVarInt()
		if err != nil {
			return err
		}
		last, err := br.ReadSignedVarInt()
		if err != nil {
			return err
		}
		if first > last {
			return fmt.Errorf("%w: descending bin indices %d, %d", ErrInvalidArgument, first, last)
		}
		width := uint(1) << mode
		for i := first; ; i++ {
			c, err := br.ReadBits(width)
			if err != nil {
				return err
			}
			if c > 0 {
				if c > math.MaxInt64 {
					return ErrTotalCountOverflow
				}
				if c > maxCount {
					maxCount = c
				}
				entries = append(entries, regularEntry{i, int64(c)})
			}
			if i == last {
				break
			}
		}
	}
	return reconstruct(h, min, max, effUnder, effOver, entries, maxCount)
}

func readMinMax(br *bitio.Reader, minBelowMax bool) (float64, float64, error) {
	b, err := br.ReadUint64()
	if err != nil {
		return 0, 0, err
	}
	min := math.Float64frombits(b)
	max := min
	if minBelowMax {
		b, err := br.ReadUint64()
		if err != nil {
			return 0, 0, err
		}
		max = math.Float64frombits(b)
	}
	if math.IsNaN(min) || math.IsNaN(max) || min > max {
		return 0, 0, fmt.Errorf("%w: invalid serialized min/max pair (%g, %g)", ErrInvalidArgument, min, max)
	}
	return min, max, nil
}

// readSaturatedCount decodes a count whose info-byte code saturates at
// the given threshold: codes below it are literal, the threshold code
// means "threshold plus varint".
func readSaturatedCount(br *bitio.Reader, code byte, threshold int64) (int64, error) {
	if int64(code) < threshold {
		return int64(code), nil
	}
	v, err := br.ReadUnsignedVarLong()
	if err != nil {
		return 0, err
	}
	if v > uint64(math.MaxInt64)-uint64(threshold) {
		return 0, ErrTotalCountOverflow
	}
	return threshold + int64(v), nil
}

// reconstruct rebuilds the histogram state from decoded effective
// counts, then re-adds the min and max samples. The counter range is
// allocated once, clipped to the regular index range, before any counts
// are written; the re-adds go through the lenient saturating increment
// so that streams whose counts exceed the reconstructed counter width
// are still accepted.
func reconstruct(h *mutableHistogram, min, max float64, effUnder, effOver int64, entries []regularEntry, maxCount uint64) error {
	l := h.Layout()
	u, o := l.UnderflowBinIndex(), l.OverflowBinIndex()
	total, err := addNonNegative(effUnder, effOver)
	if err != nil {
		return err
	}
	minIndex := l.MapToBinIndex(min)
	maxIndex := l.MapToBinIndex(max)
	if u+1 <= o-1 {
		lo := clamp32(minIndex, u+1, o-1)
		hi := clamp32(maxIndex, u+1, o-1)
		for _, e := range entries {
			if e.index > u && e.index < o {
				lo = min32(lo, e.index)
				hi = max32(hi, e.index)
			}
		}
		reserve := maxCount
		if reserve <= math.MaxUint64-2 {
			reserve += 2 // room for the min/max re-adds
		}
		h.counts.ensureRange(lo, hi, reserve)
	}
	h.underflowCount = effUnder
	h.overflowCount = effOver
	for _, e := range entries {
		// Indices outside the regular range of the supplied layout are
		// clipped into the underflow or overflow bucket; the stream may
		// have been written under a layout with a wider regular range.
		switch {
		case e.index <= u:
			h.underflowCount += e.count
		case e.index >= o:
			h.overflowCount += e.count
		default:
			h.counts.increase(e.index, e.count)
		}
		if total, err = addNonNegative(total, e.count); err != nil {
			return err
		}
	}
	for _, v := range [2]float64{min, max} {
		idx := l.MapToBinIndex(v)
		switch {
		case idx <= u:
			h.underflowCount++
		case idx >= o:
			h.overflowCount++
		default:
			h.counts.increaseSaturating(idx, 1)
		}
		if total, err = addNonNegative(total, 1); err != nil {
			return err
		}
	}
	h.totalCount = total
	h.min = min
	h.max = max
	return nil
}

func addNonNegative(a, b int64) (int64, error) {
	if a > math.MaxInt64-b {
		return 0, ErrTotalCountOverflow
	}
	return a + b, nil
}

func clamp32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
