package optimization

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Request is one optimization run over a universe of assets with raw price
// history attached.
type Request struct {
	Method       Method        `json:"method"`
	Assets       []AssetRecord `json:"assets"`
	TargetReturn *float64      `json:"target_return,omitempty"`
}

// Service wires the optimization pipeline together: series building,
// covariance estimation (with caching), expected-return estimation, weight
// solving, and post-processing.
//
// Optimize never propagates an internal failure to the caller. Degraded runs
// (no usable assets, a panicking solver) come back as a structurally valid
// neutral result with the Warning field set; a non-nil error means the
// request itself was invalid.
type Service struct {
	cfg     Config
	series  *SeriesBuilder
	cov     *CovarianceEstimator
	returns *ReturnEstimator
	solver  *WeightOptimizer
	post    *PostProcessor
	cache   *CovarianceCache
	log     zerolog.Logger
}

// NewService creates the optimization service. The cache may be nil to
// disable covariance memoization.
func NewService(cfg Config, cache *CovarianceCache, log zerolog.Logger) *Service {
	moduleLog := log.With().Str("module", "optimization").Logger()
	return &Service{
		cfg:     cfg,
		series:  NewSeriesBuilder(moduleLog),
		cov:     NewCovarianceEstimator(cfg, moduleLog),
		returns: NewReturnEstimator(cfg, moduleLog),
		solver:  NewWeightOptimizer(cfg, moduleLog),
		post:    NewPostProcessor(cfg, moduleLog),
		cache:   cache,
		log:     moduleLog,
	}
}

// Config exposes the service configuration to collaborators such as the
// evaluation module.
func (s *Service) Config() Config {
	return s.cfg
}

// Optimize runs the full pipeline for one request.
func (s *Service) Optimize(ctx context.Context, req Request) (result *OptimizationResult, err error) {
	method, parseErr := ParseMethod(string(req.Method))
	if parseErr != nil {
		return nil, parseErr
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("method", string(method)).
				Msg("optimization panicked, substituting neutral result")
			result = NeutralResult(method, fmt.Sprintf("internal error: %v", r))
			err = nil
		}
	}()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	start := time.Now()
	series := s.series.Build(req.Assets)
	if len(series) == 0 {
		s.log.Warn().
			Int("submitted_assets", len(req.Assets)).
			Msg("no assets with sufficient history, returning neutral result")
		return NeutralResult(method, "no assets with sufficient price history"), nil
	}

	symbols := make([]string, len(series))
	for i, sr := range series {
		symbols[i] = sr.Symbol
	}

	cov := s.estimateCovariance(series)
	mu := s.returns.ExpectedReturns(method, series, cov, s.marketWeights(series, req.Assets))

	sol, solveErr := s.solver.Solve(method, mu, cov, SolveOptions{TargetReturn: req.TargetReturn})
	if solveErr != nil {
		s.log.Error().Err(solveErr).Str("method", string(method)).Msg("solver rejected inputs, substituting neutral result")
		return NeutralResult(method, solveErr.Error()), nil
	}

	result, postErr := s.post.Process(method, symbols, sol, mu, cov, annualizedVolatilities(series))
	if postErr != nil {
		s.log.Error().Err(postErr).Str("method", string(method)).Msg("post-processing failed, substituting neutral result")
		return NeutralResult(method, postErr.Error()), nil
	}
	if !sol.Converged {
		result.Warning = "solver did not converge, weights are a best-effort iterate"
	}

	s.log.Info().
		Str("method", string(method)).
		Int("universe", len(series)).
		Float64("sharpe", result.SharpeRatio).
		Float64("volatility", result.Volatility).
		Bool("converged", result.Converged).
		Dur("elapsed", time.Since(start)).
		Msg("optimization complete")

	return result, nil
}

// estimateCovariance consults the cache before re-estimating.
func (s *Service) estimateCovariance(series []AssetSeries) [][]float64 {
	returnMatrix := s.cov.ReturnMatrix(series)
	if s.cache == nil {
		return s.cov.Estimate(returnMatrix)
	}

	key := s.cache.Key(series)
	if cached, ok := s.cache.Get(key); ok {
		s.log.Debug().Str("key", key[:12]).Msg("covariance cache hit")
		return cached
	}

	cov := s.cov.Estimate(returnMatrix)
	s.cache.Put(key, cov)
	return cov
}

// marketWeights derives the market-weight vector used by the
// Black-Litterman posterior: market-cap proportional when every surviving
// asset carries a positive capitalization, equal-weight otherwise.
func (s *Service) marketWeights(series []AssetSeries, records []AssetRecord) []float64 {
	caps := make(map[string]float64, len(records))
	for _, rec := range records {
		if rec.MarketCap > 0 {
			caps[rec.Symbol] = rec.MarketCap
		}
	}

	weights := make([]float64, len(series))
	total := 0.0
	for i, sr := range series {
		mc, ok := caps[sr.Symbol]
		if !ok {
			return equalWeights(len(series))
		}
		weights[i] = mc
		total += mc
	}
	if total <= 0 {
		return equalWeights(len(series))
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}

// NeutralResult is the degraded-but-valid outcome substituted when the
// pipeline cannot produce real weights: empty weight vector, zeroed
// statistics, low risk, zero confidence, not converged. Warning carries the
// reason.
func NeutralResult(method Method, warning string) *OptimizationResult {
	return &OptimizationResult{
		ID:        uuid.New().String(),
		Method:    method,
		Weights:   EmptyWeightVector(),
		RiskLevel: RiskLow,
		Converged: false,
		Warning:   warning,
		Timestamp: time.Now().UTC(),
	}
}
