package formulas

// MaxDrawdownFromReturns calculates the maximum drawdown of the equity curve
// implied by a periodic return series.
//
// The equity curve is the cumulative product of (1 + r). The drawdown at each
// point is (equity - runningPeak) / runningPeak, and the maximum drawdown is
// the minimum (most negative) of those values.
//
// Args:
//
//	returns: Periodic returns as decimals
//
// Returns:
//
//	Maximum drawdown as a non-positive decimal (-0.25 = 25% loss from peak),
//	0 for empty or monotonically rising series
func MaxDrawdownFromReturns(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	equity := 1.0
	peak := 1.0
	maxDrawdown := 0.0

	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			drawdown := (equity - peak) / peak
			if drawdown < maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return maxDrawdown
}
