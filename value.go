package dynahist

import (
	"github.com/dynatrace-oss/dynahist-go/internal/algo"
)

// ValueEstimator reconstructs a sample value from the bucket that
// contains it. The lower bound of the first non-empty bucket is replaced
// by the histogram's exact minimum and the upper bound of the last one by
// its exact maximum; all other bounds are the layout's. A bound is
// infinite only when the recorded minimum or maximum is.
type ValueEstimator interface {
	// EstimateFromBin returns a value for the sample with the given
	// zero-based rank within a bucket of binCount samples spanning
	// [lowerBound, upperBound].
	EstimateFromBin(lowerBound, upperBound float64, relativeRank, binCount int64) float64
}

var (
	// ValueEstimatorUniform distributes the samples of a bucket evenly
	// over its width. It is the default estimator.
	ValueEstimatorUniform ValueEstimator = uniformValueEstimator{}

	// ValueEstimatorLowerBound returns the bucket's lower bound for all
	// of its samples, giving a conservative lower estimate.
	ValueEstimatorLowerBound ValueEstimator = lowerBoundValueEstimator{}

	// ValueEstimatorUpperBound returns the bucket's upper bound for all
	// of its samples, giving a conservative upper estimate.
	ValueEstimatorUpperBound ValueEstimator = upperBoundValueEstimator{}

	// ValueEstimatorMidPoint returns the bucket midpoint for all of its
	// samples.
	ValueEstimatorMidPoint ValueEstimator = midPointValueEstimator{}
)

type uniformValueEstimator struct{}

func (uniformValueEstimator) EstimateFromBin(lowerBound, upperBound float64, relativeRank, binCount int64) float64 {
	return algo.Interpolate(float64(relativeRank), -0.5, lowerBound, float64(binCount)-0.5, upperBound)
}

type lowerBoundValueEstimator struct{}

func (lowerBoundValueEstimator) EstimateFromBin(lowerBound, _ float64, _, _ int64) float64 {
	return lowerBound
}

type upperBoundValueEstimator struct{}

func (upperBoundValueEstimator) EstimateFromBin(_, upperBound float64, _, _ int64) float64 {
	return upperBound
}

type midPointValueEstimator struct{}

func (midPointValueEstimator) EstimateFromBin(lowerBound, upperBound float64, _, _ int64) float64 {
	return algo.Midpoint(lowerBound, upperBound)
}
