// Package noise reduces channel views to (power, floor) measurements.
//
// Power is a spread statistic and floor a location statistic. All standard
// deviations are population standard deviations (divide by n).
package noise

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// ErrNoSamples is returned when every sample was masked or dropped.
var ErrNoSamples = errors.New("no unflagged samples")

// Stats is a single noise measurement.
type Stats struct {
	Power float64 `json:"power"`
	Floor float64 `json:"floor"`
}

// MeanStd returns the mean and population standard deviation of xs.
func MeanStd(xs []float64) (mean, std float64) {
	mean, variance := stat.PopMeanVariance(xs, nil)
	return mean, math.Sqrt(variance)
}

// Raw measures xs as (std, mean).
func Raw(xs []float64) (Stats, error) {
	if len(xs) == 0 {
		return Stats{}, ErrNoSamples
	}
	mean, std := MeanStd(xs)
	return Stats{Power: std, Floor: mean}, nil
}

// Percentile returns the p-th percentile (p in [0, 100]) of sorted values
// with linear interpolation between closest ranks, matching numpy's default.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	idx := p / 100 * float64(n-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= n {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}

// Median returns the 50th percentile without modifying xs.
func Median(xs []float64) float64 {
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	return Percentile(sorted, 50)
}
