package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization convention used throughout the engine.
const TradingDaysPerYear = 252.0

// Summary holds the moments and order statistics of a sample.
type Summary struct {
	Mean     float64
	Median   float64
	StdDev   float64
	Min      float64
	Max      float64
	Skewness float64
	Kurtosis float64 // excess kurtosis
}

// Summarize computes a Summary over values. The standard deviation uses the
// N-1 denominator; shape statistics are zero when fewer than three samples
// exist or the sample has (numerically) no dispersion.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := SortedCopy(values)
	s := Summary{
		Mean:   stat.Mean(values, nil),
		Median: QuantileSorted(sorted, 0.5),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}

	if len(values) > 1 {
		s.StdDev = stat.StdDev(values, nil)
	}

	if len(values) > 2 && s.StdDev > 1e-12 {
		s.Skewness = stat.Skew(values, nil)
		s.Kurtosis = stat.ExKurtosis(values, nil)
	}

	return s
}

// AnnualizeReturn scales a mean daily return to an annual figure.
func AnnualizeReturn(daily float64) float64 {
	return daily * TradingDaysPerYear
}

// AnnualizeVolatility scales a daily standard deviation to an annual figure.
func AnnualizeVolatility(daily float64) float64 {
	return daily * math.Sqrt(TradingDaysPerYear)
}

// ProbabilityBelow returns the share of values strictly below threshold.
func ProbabilityBelow(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v < threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

// MaxDrawdown returns the largest peak-to-trough decline of a value path as a
// positive fraction of the peak.
func MaxDrawdown(path []float64) float64 {
	if len(path) == 0 {
		return 0
	}
	peak := path[0]
	worst := 0.0
	for _, v := range path {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
