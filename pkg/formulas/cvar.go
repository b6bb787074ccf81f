package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// CalculateVaR calculates historical Value at Risk at the given confidence
// level. For 95% confidence this is the 5th percentile of the return series.
//
// Args:
//   - returns: Historical returns (negative values are losses)
//   - confidence: Confidence level (e.g., 0.95 for 95%)
//
// Returns:
//   - VaR as a return threshold (usually negative)
func CalculateVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	return Percentile(returns, 1.0-confidence)
}

// CalculateCVaR calculates historical Conditional Value at Risk (expected
// shortfall) at the given confidence level: the mean of all returns at or
// below the VaR threshold.
//
// Args:
//   - returns: Historical returns (negative values are losses)
//   - confidence: Confidence level (e.g., 0.95 for 95%)
//
// Returns:
//   - CVaR value (mean of the loss tail)
func CalculateCVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	if len(returns) == 1 {
		return returns[0]
	}

	threshold := CalculateVaR(returns, confidence)

	var sum float64
	var count int
	for _, r := range returns {
		if r <= threshold {
			sum += r
			count++
		}
	}
	if count == 0 {
		// The threshold is an element of the series, so this only happens
		// with NaN-polluted input.
		return threshold
	}

	return sum / float64(count)
}

// MonteCarloCVaR estimates CVaR by simulating portfolio returns from a normal
// distribution with the given moments. Useful when the historical window is
// too short for a stable tail estimate.
//
// Args:
//   - mean: Expected periodic portfolio return
//   - stdDev: Periodic portfolio volatility (floored internally)
//   - numSimulations: Number of draws (e.g., 10000)
//   - confidence: Confidence level (e.g., 0.95)
//
// Returns:
//   - Simulated CVaR value
func MonteCarloCVaR(mean, stdDev float64, numSimulations int, confidence float64) float64 {
	if numSimulations <= 0 {
		return 0.0
	}

	normal := distuv.Normal{
		Mu:    mean,
		Sigma: math.Max(stdDev, 1e-10),
	}

	simulated := make([]float64, numSimulations)
	for i := range simulated {
		simulated[i] = normal.Rand()
	}

	return CalculateCVaR(simulated, confidence)
}

// MonteCarloPortfolioCVaR estimates CVaR for a weighted portfolio described
// by an expected-return vector and covariance matrix. Portfolio moments are
// computed as w'μ and w'Σw, then fed into a normal simulation.
//
// Symbols must be ordered consistently with the covariance matrix rows.
func MonteCarloPortfolioCVaR(
	covMatrix [][]float64,
	expectedReturns map[string]float64,
	weights map[string]float64,
	symbols []string,
	numSimulations int,
	confidence float64,
) float64 {
	n := len(symbols)
	if n == 0 || len(covMatrix) != n {
		return 0.0
	}

	mu := make([]float64, n)
	w := make([]float64, n)
	for i, symbol := range symbols {
		mu[i] = expectedReturns[symbol]
		w[i] = weights[symbol]
	}

	var portfolioMu float64
	for i := 0; i < n; i++ {
		portfolioMu += w[i] * mu[i]
	}

	var portfolioVariance float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			portfolioVariance += w[i] * w[j] * covMatrix[i][j]
		}
	}

	return MonteCarloCVaR(portfolioMu, math.Sqrt(math.Max(portfolioVariance, 0)), numSimulations, confidence)
}
