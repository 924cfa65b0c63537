// Package formulas holds the small statistical helpers shared by the risk engine and the API.
package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (N-1 denominator).
// Fewer than two observations give 0.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// LogReturns converts prices to periodic log returns.
// Returns[i] = ln(Price[i+1] / Price[i])
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns[i-1] = math.Log(prices[i] / prices[i-1])
	}
	return returns
}

// AnnualizeVolatility scales a per-period standard deviation by sqrt(periods).
func AnnualizeVolatility(periodStdDev float64, periodsPerYear float64) float64 {
	if periodsPerYear <= 0 {
		return 0
	}
	return periodStdDev * math.Sqrt(periodsPerYear)
}

// Percentile returns the p-quantile (p in [0, 1]) of already sorted data using
// inclusive linear interpolation between closest ranks: idx = p*(n-1).
//
// gonum's stat.Quantile only offers empirical and R-4 style interpolation, which
// disagree with this definition on small samples.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lower := int(math.Floor(idx))
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	weight := idx - float64(lower)
	return sorted[lower] + weight*(sorted[upper]-sorted[lower])
}

// PercentileOf sorts a copy of data and returns its p-quantile.
func PercentileOf(data []float64, p float64) float64 {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	return Percentile(sorted, p)
}

// TailMean averages the sorted values that are less than or equal to threshold.
// The smallest value always counts so the tail is never empty.
func TailMean(sorted []float64, threshold float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}

	sum := sorted[0]
	count := 1
	for _, v := range sorted[1:] {
		if v > threshold {
			break
		}
		sum += v
		count++
	}
	return sum / float64(count)
}

// MaxDrawdown returns the largest peak-to-trough decline of a value path as a
// positive fraction of the peak (0.25 = 25% drawdown).
func MaxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	peak := values[0]
	maxDD := 0.0
	for _, v := range values[1:] {
		if v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
