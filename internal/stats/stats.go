// Package stats computes summary statistics over request measurements.
//
// Percentiles use linear interpolation between closest ranks (the numpy
// "linear" method): for sorted values v and percentile p the rank is
// p/100*(n-1). Standard deviation is the sample deviation (n-1 divisor).
// Inputs are never modified.
package stats

import (
	"math"
	"sort"
)

// DefaultPercentiles are the percentiles reported by CalculateLatencyStatistics.
var DefaultPercentiles = []float64{50, 90, 95, 99}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation, or 0 with fewer than two
// values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

// CoefficientOfVariation returns StdDev/Mean as a percentage, or 0 when the
// mean is 0.
func CoefficientOfVariation(values []float64) float64 {
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	return StdDev(values) / mean * 100
}

// Percentile returns the p-th percentile (0-100) of values, or 0 for an
// empty slice.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return percentileSorted(sortedCopy(values), p)
}

// Percentiles returns each requested percentile of values. Every key maps to
// 0 when values is empty.
func Percentiles(values []float64, ps []float64) map[float64]float64 {
	out := make(map[float64]float64, len(ps))
	if len(values) == 0 {
		for _, p := range ps {
			out[p] = 0
		}
		return out
	}

	sorted := sortedCopy(values)
	for _, p := range ps {
		out[p] = percentileSorted(sorted, p)
	}
	return out
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	switch {
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[n-1]
	}

	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func minMax(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
