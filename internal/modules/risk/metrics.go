// Package risk computes the downstream risk/performance profile of a
// weighted portfolio: VaR, CVaR, drawdown, the risk-adjusted return ratios
// and the higher moments of the portfolio return distribution.
package risk

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/pkg/formulas"
)

// Metrics is the full risk profile computed from one weight vector and one
// historical return matrix. It is a plain value object; every call produces
// a fresh one.
//
// The benchmark-relative fields (information ratio, Treynor, Jensen's alpha,
// beta) are only meaningful when a benchmark series was supplied. Without
// one they carry neutral defaults: zeros, and beta 1.0.
type Metrics struct {
	VaR95            float64 `json:"var_95"`
	VaR99            float64 `json:"var_99"`
	CVaR95           float64 `json:"cvar_95"`
	CVaR99           float64 `json:"cvar_99"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	CalmarRatio      float64 `json:"calmar_ratio"`
	InformationRatio float64 `json:"information_ratio"`
	TreynorRatio     float64 `json:"treynor_ratio"`
	JensenAlpha      float64 `json:"jensen_alpha"`
	Beta             float64 `json:"beta"`
	Volatility       float64 `json:"volatility"`
	Skewness         float64 `json:"skewness"`
	Kurtosis         float64 `json:"kurtosis"`
	SampleCount      int     `json:"sample_count"`
}

// NeutralMetrics is the degraded profile for portfolios without a usable
// return series: all zeros except the neutral beta.
func NeutralMetrics() Metrics {
	return Metrics{Beta: 1.0}
}

// Calculator computes Metrics. It is stateless beyond its configuration and
// safe for concurrent use.
type Calculator struct {
	riskFreeRate float64
	log          zerolog.Logger
}

// NewCalculator creates a risk metrics calculator. riskFreeRate is annual.
func NewCalculator(riskFreeRate float64, log zerolog.Logger) *Calculator {
	return &Calculator{
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "risk_calculator").Logger(),
	}
}

// Calculate computes the risk profile of the portfolio holding weights over
// the assets whose return series form the rows of returnMatrix. benchmark is
// an optional market return series; pass nil to use the neutral defaults for
// the benchmark-relative fields.
//
// Ragged rows are aligned to the shortest series, keeping the most recent
// observations. A portfolio with no overlapping observations yields
// NeutralMetrics rather than an error.
func (c *Calculator) Calculate(weights []float64, returnMatrix [][]float64, benchmark []float64) (Metrics, error) {
	if len(weights) != len(returnMatrix) {
		return Metrics{}, fmt.Errorf("weights length %d does not match return matrix rows %d", len(weights), len(returnMatrix))
	}
	for _, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return Metrics{}, fmt.Errorf("weights must be finite")
		}
	}

	portfolio := PortfolioReturns(weights, returnMatrix)
	if len(portfolio) == 0 {
		c.log.Warn().Int("assets", len(weights)).Msg("no overlapping return observations, returning neutral metrics")
		return NeutralMetrics(), nil
	}

	m := Metrics{
		VaR95:       formulas.CalculateVaR(portfolio, 0.95),
		VaR99:       formulas.CalculateVaR(portfolio, 0.99),
		CVaR95:      formulas.CalculateCVaR(portfolio, 0.95),
		CVaR99:      formulas.CalculateCVaR(portfolio, 0.99),
		MaxDrawdown: formulas.MaxDrawdownFromReturns(portfolio),
		Volatility:  formulas.AnnualizedVolatility(portfolio),
		Skewness:    formulas.Skewness(portfolio),
		Kurtosis:    formulas.Kurtosis(portfolio),
		Beta:        1.0,
		SampleCount: len(portfolio),
	}

	if sharpe := formulas.CalculateSharpeRatio(portfolio, c.riskFreeRate, formulas.TradingDaysPerYear); sharpe != nil {
		m.SharpeRatio = *sharpe
	}
	if sortino := formulas.CalculateSortinoRatio(portfolio, c.riskFreeRate, formulas.TradingDaysPerYear); sortino != nil {
		m.SortinoRatio = *sortino
	}
	if calmar := formulas.CalculateCalmarRatio(portfolio); calmar != nil {
		m.CalmarRatio = *calmar
	}

	if len(benchmark) >= 2 {
		c.applyBenchmark(&m, portfolio, benchmark)
	}

	return m, nil
}

// applyBenchmark fills the benchmark-relative fields. Both series are
// aligned on their most recent overlapping observations. A flat benchmark
// leaves the neutral defaults in place.
func (c *Calculator) applyBenchmark(m *Metrics, portfolio, benchmark []float64) {
	n := len(portfolio)
	if len(benchmark) < n {
		n = len(benchmark)
	}
	if n < 2 {
		return
	}
	p := portfolio[len(portfolio)-n:]
	b := benchmark[len(benchmark)-n:]

	benchVariance := stat.Variance(b, nil)
	if benchVariance <= 0 || math.IsNaN(benchVariance) {
		c.log.Warn().Msg("benchmark series has no variance, keeping neutral beta")
		return
	}

	beta := stat.Covariance(p, b, nil) / benchVariance
	m.Beta = beta

	periodicRf := c.riskFreeRate / formulas.TradingDaysPerYear
	alphaPeriodic := formulas.Mean(p) - periodicRf - beta*(formulas.Mean(b)-periodicRf)
	m.JensenAlpha = alphaPeriodic * formulas.TradingDaysPerYear

	if beta != 0 {
		m.TreynorRatio = (formulas.CalculateAnnualReturn(p) - c.riskFreeRate) / beta
	}

	active := make([]float64, n)
	for i := range active {
		active[i] = p[i] - b[i]
	}
	if trackingError := formulas.StdDev(active); trackingError > 0 {
		m.InformationRatio = formulas.Mean(active) / trackingError * math.Sqrt(formulas.TradingDaysPerYear)
	}
}

// PortfolioReturns collapses an (asset × time) return matrix into the
// portfolio's periodic return series under the given weights. Rows of
// different lengths are truncated to the shortest one, keeping the tail.
func PortfolioReturns(weights []float64, returnMatrix [][]float64) []float64 {
	if len(returnMatrix) == 0 || len(weights) != len(returnMatrix) {
		return []float64{}
	}

	minLen := -1
	for _, row := range returnMatrix {
		if minLen == -1 || len(row) < minLen {
			minLen = len(row)
		}
	}
	if minLen <= 0 {
		return []float64{}
	}

	portfolio := make([]float64, minLen)
	for i, row := range returnMatrix {
		tail := row[len(row)-minLen:]
		for t, r := range tail {
			portfolio[t] += weights[i] * r
		}
	}
	return portfolio
}
