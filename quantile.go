package dynahist

import (
	"fmt"
	"math"
)

// QuantileEstimator turns a probability into a value, given ordered
// access to the reconstructed samples.
type QuantileEstimator interface {
	// Estimate evaluates the p-quantile over totalCount samples, reading
	// individual samples through the value function (zero-based rank).
	Estimate(p float64, value func(rank int64) float64, totalCount int64) float64
}

// SciPyQuantileEstimator implements the plug-in quantile family of
// scipy.stats.mstats.mquantiles, parameterized by the plotting positions
// alphap and betap.
type SciPyQuantileEstimator struct {
	alphap float64
	betap  float64
}

// DefaultQuantileEstimator is the SciPy estimator with
// alphap = betap = 0.5, the midpoint plotting position.
var DefaultQuantileEstimator QuantileEstimator = SciPyQuantileEstimator{alphap: 0.5, betap: 0.5}

// NewSciPyQuantileEstimator creates a SciPy-style estimator; both
// plotting positions must lie in [0, 1].
func NewSciPyQuantileEstimator(alphap, betap float64) (SciPyQuantileEstimator, error) {
	if math.IsNaN(alphap) || alphap < 0 || alphap > 1 {
		return SciPyQuantileEstimator{}, fmt.Errorf("%w: alphap %g outside [0, 1]", ErrInvalidArgument, alphap)
	}
	if math.IsNaN(betap) || betap < 0 || betap > 1 {
		return SciPyQuantileEstimator{}, fmt.Errorf("%w: betap %g outside [0, 1]", ErrInvalidArgument, betap)
	}
	return SciPyQuantileEstimator{alphap: alphap, betap: betap}, nil
}

func (e SciPyQuantileEstimator) Estimate(p float64, value func(rank int64) float64, totalCount int64) float64 {
	if totalCount == 0 {
		return math.NaN()
	}
	if totalCount == 1 {
		return value(0)
	}
	// One-based plotting position, clipped so both neighbors exist.
	aleph := float64(totalCount)*p + e.alphap + p*(1-e.alphap-e.betap)
	k := math.Floor(aleph)
	if k < 1 {
		k = 1
	}
	if k > float64(totalCount-1) {
		k = float64(totalCount - 1)
	}
	gamma := aleph - k
	if gamma < 0 {
		gamma = 0
	}
	if gamma > 1 {
		gamma = 1
	}
	rank := int64(k)
	if gamma == 0 {
		return value(rank - 1)
	}
	if gamma == 1 {
		return value(rank)
	}
	return (1-gamma)*value(rank-1) + gamma*value(rank)
}
