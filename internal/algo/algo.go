// Package algo holds the numeric helpers shared by the layout and
// histogram code: an order-preserving mapping between float64 and int64,
// monotone binary searches, and interpolation that is safe around
// infinities.
package algo

import "math"

const (
	complementMask = int64(0x7fffffffffffffff)
	// NegativeInfinityMapped and PositiveInfinityMapped bound the mapped
	// representation of all non-NaN float64 values.
	PositiveInfinityMapped = int64(0x7ff0000000000000)
	NegativeInfinityMapped = -PositiveInfinityMapped - 1
)

// MapDoubleToInt64 maps a float64 to an int64 such that the int64 order
// corresponds to the total order over float64 values in which -0.0 is
// strictly smaller than +0.0 and negative NaN payloads sort below -Inf
// and positive ones above +Inf.
func MapDoubleToInt64(v float64) int64 {
	b := int64(math.Float64bits(v))
	if b < 0 {
		b ^= complementMask
	}
	return b
}

// MapInt64ToDouble is the inverse of MapDoubleToInt64.
func MapInt64ToDouble(l int64) float64 {
	if l < 0 {
		l ^= complementMask
	}
	return math.Float64frombits(uint64(l))
}

// NextDown returns the greatest float64 strictly smaller than v.
func NextDown(v float64) float64 {
	return math.Nextafter(v, math.Inf(-1))
}

// NextUp returns the smallest float64 strictly greater than v.
func NextUp(v float64) float64 {
	return math.Nextafter(v, math.Inf(1))
}

// FindFirst returns the smallest l in [first, last] for which the
// monotone predicate is true. The predicate must be false-then-true over
// the range and true at last. The range may span more than half of the
// int64 domain, so the midpoint is computed in unsigned arithmetic.
func FindFirst(pred func(int64) bool, first, last int64) int64 {
	low, high := first, last
	for low < high {
		mid := int64(uint64(low) + (uint64(high)-uint64(low))/2)
		if pred(mid) {
			high = mid
		} else {
			low = mid + 1
		}
	}
	return low
}

// FindFirstWithGuess behaves like FindFirst but gallops outward from an
// initial guess, so a good guess turns the search cost into the distance
// between guess and result.
func FindFirstWithGuess(pred func(int64) bool, first, last, guess int64) int64 {
	if guess < first {
		guess = first
	}
	if guess > last {
		guess = last
	}
	if pred(guess) {
		// Gallop down for the lowest true value.
		high := guess
		step := uint64(1)
		for high > first {
			low := first
			if uint64(high)-uint64(first) > step {
				low = high - int64(step)
			}
			if !pred(low) {
				return FindFirst(pred, low+1, high)
			}
			high = low
			if step < 1<<62 {
				step <<= 1
			}
		}
		return first
	}
	// Gallop up for the first true value.
	low := guess
	step := uint64(1)
	for low < last {
		high := last
		if uint64(last)-uint64(low) > step {
			high = low + int64(step)
		}
		if pred(high) {
			return FindFirst(pred, low+1, high)
		}
		low = high
		if step < 1<<62 {
			step <<= 1
		}
	}
	return last
}

// Interpolate linearly maps x from [x1, x2] to [y1, y2]. Values of x
// outside the range clamp to the nearer endpoint (so x1 == x2 yields y1
// or y2), and a non-finite interpolation result falls back to the
// midpoint of y1 and y2.
func Interpolate(x, x1, y1, x2, y2 float64) float64 {
	if math.IsNaN(x) || math.IsNaN(x1) || math.IsNaN(x2) {
		return math.NaN()
	}
	if x1 > x2 {
		x1, x2 = x2, x1
		y1, y2 = y2, y1
	}
	if x <= x1 {
		return y1
	}
	if x >= x2 {
		return y2
	}
	r := (x - x1) / (x2 - x1)
	v := y1*(1-r) + y2*r
	if !math.IsNaN(v) {
		return v
	}
	return Midpoint(y1, y2)
}

// Midpoint returns a value between a and b, immune to overflow of a+b
// and defined for infinite endpoints (the midpoint of -Inf and a finite
// value is -Inf, matching the clamping behavior of bin bounds).
func Midpoint(a, b float64) float64 {
	if a > b {
		a, b = b, a
	}
	if math.IsInf(a, -1) {
		return a
	}
	if math.IsInf(b, 1) {
		return b
	}
	m := 0.5*a + 0.5*b
	if math.IsInf(m, 0) {
		return a + 0.5*(b-a)
	}
	return m
}
