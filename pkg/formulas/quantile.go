// Package formulas holds small numeric helpers shared by the risk and simulation code.
package formulas

import (
	"math"
	"sort"
)

// SortedCopy returns an ascending copy of values, leaving the input untouched.
func SortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

// QuantileSorted returns the p-quantile of an ascending slice using linear
// interpolation between order statistics (h = (n-1)·p).
//
// Args:
//   - sorted: Samples in ascending order
//   - p: Probability in [0, 1]; values outside are clamped
//
// Returns:
//   - The interpolated quantile, or NaN for an empty slice
func QuantileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}

	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Quantile is QuantileSorted for unsorted input.
func Quantile(values []float64, p float64) float64 {
	return QuantileSorted(SortedCopy(values), p)
}

// TailMean averages the ascending samples at or below threshold.
// ok is false when no sample qualifies.
func TailMean(sorted []float64, threshold float64) (mean float64, ok bool) {
	sum := 0.0
	count := 0
	for _, v := range sorted {
		if v > threshold {
			break
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}
