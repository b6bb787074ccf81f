package optimization

import (
	"github.com/rs/zerolog"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/pkg/formulas"
)

// ReturnEstimator produces per-asset expected-return vectors under the three
// supported policies: historical risk-adjusted, equal-weight market-implied
// and the simplified Black-Litterman posterior.
type ReturnEstimator struct {
	cfg Config
	log zerolog.Logger
}

// NewReturnEstimator creates a new return estimator.
func NewReturnEstimator(cfg Config, log zerolog.Logger) *ReturnEstimator {
	return &ReturnEstimator{
		cfg: cfg,
		log: log.With().Str("component", "returns").Logger(),
	}
}

// ExpectedReturns selects the return policy for the given method. The
// Black-Litterman profile uses the posterior tilt; every other profile uses
// the historical risk-adjusted estimate.
func (re *ReturnEstimator) ExpectedReturns(method Method, series []AssetSeries, cov [][]float64, marketWeights []float64) []float64 {
	if method == MethodBlackLitterman {
		re.log.Debug().
			Float64("market_implied_return", re.MarketImplied(series)).
			Int("assets", len(series)).
			Msg("Seeding Black-Litterman posterior")
		return re.BlackLittermanPosterior(cov, marketWeights)
	}
	return re.HistoricalRiskAdjusted(series)
}

// HistoricalRiskAdjusted estimates each asset's expected return as its
// annualized mean log return divided by its annualized volatility, clipped
// to [ExpectedReturnClipMin, ExpectedReturnClipMax]. The volatility floor
// avoids division by zero on flat series.
func (re *ReturnEstimator) HistoricalRiskAdjusted(series []AssetSeries) []float64 {
	mu := make([]float64, len(series))
	for i, s := range series {
		annualizedReturn := formulas.Mean(s.Returns) * formulas.TradingDaysPerYear
		vol := s.Volatility
		if vol < 1e-8 {
			vol = 1e-8
		}
		mu[i] = clamp(annualizedReturn/vol, ExpectedReturnClipMin, ExpectedReturnClipMax)
	}
	return mu
}

// MarketImplied returns the equal-weight market-implied return: the dot
// product of the equal-weight vector with the historical annualized returns.
// Used only to seed Black-Litterman.
func (re *ReturnEstimator) MarketImplied(series []AssetSeries) float64 {
	if len(series) == 0 {
		return 0
	}

	var implied float64
	w := 1.0 / float64(len(series))
	for _, s := range series {
		implied += w * formulas.Mean(s.Returns) * formulas.TradingDaysPerYear
	}
	return implied
}

// BlackLittermanPosterior computes riskAversion · Σ · w_market. No investor
// views vector is blended in; this is the covariance-weighted market tilt
// variant, not the textbook Bayesian model.
func (re *ReturnEstimator) BlackLittermanPosterior(cov [][]float64, marketWeights []float64) []float64 {
	n := len(cov)
	if n == 0 {
		return []float64{}
	}

	if len(marketWeights) != n {
		if len(marketWeights) != 0 {
			re.log.Warn().
				Int("market_weights", len(marketWeights)).
				Int("assets", n).
				Msg("Market weight vector does not match universe, using equal weights")
		}
		marketWeights = equalWeights(n)
	}

	posterior := make([]float64, n)
	for i := 0; i < n; i++ {
		var tilt float64
		for j := 0; j < n; j++ {
			tilt += cov[i][j] * marketWeights[j]
		}
		posterior[i] = re.cfg.RiskAversion * tilt
	}
	return posterior
}

// equalWeights returns the 1/n vector used as solver seed and as the default
// market-weight vector.
func equalWeights(n int) []float64 {
	w := make([]float64, n)
	if n == 0 {
		return w
	}
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}

// clamp bounds a value to [min, max].
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
