package optimization

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PostProcessor turns a raw solver solution into a client-facing result:
// it enforces the position bounds, computes portfolio statistics and the
// diversification score, classifies risk, and scores confidence.
type PostProcessor struct {
	cfg Config
	log zerolog.Logger
}

func NewPostProcessor(cfg Config, log zerolog.Logger) *PostProcessor {
	return &PostProcessor{
		cfg: cfg,
		log: log.With().Str("component", "post_processor").Logger(),
	}
}

// Process assembles the final OptimizationResult. assetVols are the
// per-asset annualized volatilities in symbol order, used by the
// diversification score.
func (pp *PostProcessor) Process(method Method, symbols []string, sol Solution, mu []float64, cov [][]float64, assetVols []float64) (*OptimizationResult, error) {
	n := len(symbols)
	if n == 0 {
		return nil, fmt.Errorf("no symbols to post-process")
	}
	if len(sol.Weights) != n || len(mu) != n || len(cov) != n || len(assetVols) != n {
		return nil, fmt.Errorf("post-process dimension mismatch: %d symbols, %d weights, %d returns, %d covariance rows, %d volatilities",
			n, len(sol.Weights), len(mu), len(cov), len(assetVols))
	}

	weights := pp.applyBounds(pp.normalize(sol.Weights))

	expectedReturn := dot(mu, weights)
	variance := quadraticForm(weights, cov)
	volatility := math.Sqrt(math.Max(variance, 0))

	sharpe := 0.0
	if volatility > 0 {
		sharpe = (expectedReturn - pp.cfg.RiskFreeRate) / volatility
	}

	vector, err := newRawWeightVector(symbols, weights)
	if err != nil {
		return nil, fmt.Errorf("building weight vector: %w", err)
	}

	result := &OptimizationResult{
		ID:                   uuid.New().String(),
		Method:               method,
		Weights:              vector,
		ExpectedReturn:       expectedReturn,
		Volatility:           volatility,
		SharpeRatio:          sharpe,
		DiversificationScore: pp.diversificationScore(weights, assetVols, volatility),
		RiskLevel:            ClassifyRisk(volatility),
		Confidence:           pp.confidence(sol.Converged, sol.Iterations),
		Iterations:           sol.Iterations,
		Converged:            sol.Converged,
		Timestamp:            time.Now().UTC(),
	}

	pp.log.Debug().
		Str("method", string(method)).
		Float64("expected_return", expectedReturn).
		Float64("volatility", volatility).
		Float64("sharpe", sharpe).
		Str("risk_level", string(result.RiskLevel)).
		Msg("post-processed optimization result")

	return result, nil
}

// normalize scales weights to sum one, guarding against a vanishing sum.
func (pp *PostProcessor) normalize(weights []float64) []float64 {
	out := make([]float64, len(weights))
	sum := math.Max(vectorSum(weights), 1e-10)
	for i, w := range weights {
		out[i] = w / sum
	}
	return out
}

// applyBounds clamps weights into [MinPositionWeight, MaxPositionWeight] in
// two passes, renormalizing after each: min-clamp, renormalize, max-clamp,
// renormalize. The final renormalization can push weights back above the max
// bound when the bounds are tight relative to the universe size; that
// residual violation is accepted rather than iterated away.
func (pp *PostProcessor) applyBounds(weights []float64) []float64 {
	out := make([]float64, len(weights))
	copy(out, weights)

	for i, w := range out {
		if w < pp.cfg.MinPositionWeight {
			out[i] = pp.cfg.MinPositionWeight
		}
	}
	out = pp.normalize(out)

	clamped := false
	for i, w := range out {
		if w > pp.cfg.MaxPositionWeight {
			out[i] = pp.cfg.MaxPositionWeight
			clamped = true
		}
	}
	out = pp.normalize(out)

	if clamped {
		for _, w := range out {
			if w > pp.cfg.MaxPositionWeight+1e-9 {
				pp.log.Debug().Float64("weight", w).Msg("renormalization left a weight above the max bound")
				break
			}
		}
	}
	return out
}

// diversificationScore blends weight entropy with the risk-reduction ratio:
//
//	score = (entropy / ln(n)) * (weightedAvgVol / portfolioVol)
//
// clamped to [0, 1]. A single-asset portfolio scores zero, as does a
// portfolio whose volatility degenerates to zero.
func (pp *PostProcessor) diversificationScore(weights, assetVols []float64, portfolioVol float64) float64 {
	n := len(weights)
	if n <= 1 || portfolioVol <= 0 {
		return 0
	}

	entropy := 0.0
	for _, w := range weights {
		if w > 0 {
			entropy -= w * math.Log(w)
		}
	}
	entropyRatio := entropy / math.Log(float64(n))

	weightedAvgVol := 0.0
	for i, w := range weights {
		weightedAvgVol += w * assetVols[i]
	}
	if weightedAvgVol <= 0 {
		return 0
	}

	return clamp(entropyRatio*(weightedAvgVol/portfolioVol), 0, 1)
}

// confidence averages a convergence score with an iteration-budget score.
// Converged runs score 1.0, fallback runs 0.5; the iteration score decays
// linearly with budget consumption but never below 0.5.
func (pp *PostProcessor) confidence(converged bool, iterations int) float64 {
	convergenceScore := 0.5
	if converged {
		convergenceScore = 1.0
	}

	maxIter := pp.cfg.MaxIterations
	if maxIter < 1 {
		maxIter = 1
	}
	iterationScore := math.Max(0.5, 1.0-float64(iterations)/float64(maxIter))

	return (convergenceScore + iterationScore) / 2.0
}

// ClassifyRisk maps annualized portfolio volatility onto a coarse label.
func ClassifyRisk(volatility float64) RiskLevel {
	switch {
	case volatility <= 0.10:
		return RiskLow
	case volatility <= 0.20:
		return RiskMedium
	case volatility <= 0.30:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

// annualizedVolatilities extracts per-asset vols from the series set, in
// order.
func annualizedVolatilities(series []AssetSeries) []float64 {
	vols := make([]float64, len(series))
	for i, s := range series {
		vols[i] = s.Volatility
	}
	return vols
}
