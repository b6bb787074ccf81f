// Package formulas provides reusable financial statistics shared by the
// optimization and risk modules.
package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization basis for daily series.
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// AnnualizedVolatility calculates annualized volatility from daily returns
// Formula: Std Dev of Daily Returns × sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// LogReturns converts a price series to log returns.
// Returns[i] = ln(Price[i+1] / Price[i])
//
// Pairs with a non-positive or non-finite price on either side are skipped,
// so the result may be shorter than len(prices)-1 for dirty series.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, curr := prices[i-1], prices[i]
		if prev <= 0 || curr <= 0 || math.IsNaN(prev) || math.IsNaN(curr) || math.IsInf(prev, 0) || math.IsInf(curr, 0) {
			continue
		}
		returns = append(returns, math.Log(curr/prev))
	}

	return returns
}

// Percentile returns the empirical percentile of the data at p in [0, 1].
// A copy of the input is sorted; the input itself is not modified.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// Skewness calculates the sample skewness of the data.
// Returns 0 when the estimator is undefined (constant or short series).
func Skewness(data []float64) float64 {
	if len(data) < 3 {
		return 0
	}

	skew := stat.Skew(data, nil)
	if math.IsNaN(skew) || math.IsInf(skew, 0) {
		return 0
	}
	return skew
}

// Kurtosis calculates the sample excess kurtosis of the data.
// Returns 0 when the estimator is undefined (constant or short series).
func Kurtosis(data []float64) float64 {
	if len(data) < 4 {
		return 0
	}

	kurt := stat.ExKurtosis(data, nil)
	if math.IsNaN(kurt) || math.IsInf(kurt, 0) {
		return 0
	}
	return kurt
}

// CalculateAnnualReturn calculates annualized return from periodic returns.
//
// Formula: ((1+r1)*(1+r2)*...*(1+rN))^(252/N) - 1
//
// Computes the compound annual growth rate from a series of periodic returns
// by first calculating the cumulative return and then annualizing it based on
// the number of trading periods.
//
// Args:
//
//	returns: Daily returns as decimals (e.g., 0.01 = 1%)
//
// Returns:
//
//	Annualized return as decimal (e.g., 0.15 = 15% annual return)
func CalculateAnnualReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}

	cumulative := 1.0
	for _, r := range returns {
		cumulative *= (1 + r)
	}

	numPeriods := float64(len(returns))

	// Very short windows (< 3 days) would annualize to extreme values, so
	// fall back to the simple cumulative return.
	if numPeriods < 3 {
		return cumulative - 1
	}

	if cumulative <= 0 {
		// Total loss or worse; the CAGR power is undefined here.
		return -1.0
	}

	years := numPeriods / TradingDaysPerYear
	return math.Pow(cumulative, 1.0/years) - 1
}
