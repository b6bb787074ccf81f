package formulas

import (
	"math"
)

// CalculateSharpeRatio calculates the annualized Sharpe ratio.
//
// Sharpe Ratio Formula:
//
//	Sharpe = (Mean Periodic Return - Periodic Risk-free Rate) / Std Dev of Returns
//	Annualized: Sharpe × sqrt(periodsPerYear)
//
// Args:
//
//	returns: Array of periodic returns (daily, monthly, etc.)
//	riskFreeRate: Risk-free rate (annual, as decimal, e.g., 0.02 for 2%)
//	periodsPerYear: Number of periods per year (252 for daily, 12 for monthly)
//
// Returns:
//
//	Sharpe ratio or nil if insufficient data or zero volatility
func CalculateSharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}

	meanReturn := Mean(returns)

	stdDev := StdDev(returns)
	if stdDev == 0 {
		return nil
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)

	sharpe := (meanReturn - periodicRiskFree) / stdDev
	annualized := sharpe * math.Sqrt(float64(periodsPerYear))

	return &annualized
}

// CalculateSortinoRatio calculates the annualized Sortino ratio.
//
// The denominator is the sample standard deviation of the negative returns
// only. Positive-only series have no downside to measure, so nil is returned.
//
// Args:
//
//	returns: Array of periodic returns
//	riskFreeRate: Risk-free rate (annual, as decimal)
//	periodsPerYear: Number of periods per year
//
// Returns:
//
//	Sortino ratio or nil if insufficient data or no downside volatility
func CalculateSortinoRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return nil
	}

	downsideDev := StdDev(downside)
	if downsideDev == 0 {
		return nil
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)

	sortino := (Mean(returns) - periodicRiskFree) / downsideDev
	annualized := sortino * math.Sqrt(float64(periodsPerYear))

	return &annualized
}

// CalculateCalmarRatio calculates the Calmar ratio from periodic returns.
//
// Calmar = Annualized Return / |Max Drawdown|
//
// Returns nil when the series has no drawdown (ratio undefined).
func CalculateCalmarRatio(returns []float64) *float64 {
	if len(returns) < 2 {
		return nil
	}

	maxDD := MaxDrawdownFromReturns(returns)
	if maxDD == 0 {
		return nil
	}

	calmar := CalculateAnnualReturn(returns) / math.Abs(maxDD)
	return &calmar
}
