package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/events"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/evaluation"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/optimization"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/universe"
)

// OptimizationJobConfig carries the parameters of the scheduled run.
type OptimizationJobConfig struct {
	Method       optimization.Method
	LookbackDays int
}

// OptimizationJob runs the full pipeline on a schedule: screen the stored
// universe, load price history for the survivors, optimize, persist the
// result, and compare it against the previous run's Sharpe ratio.
type OptimizationJob struct {
	cfg       OptimizationJobConfig
	history   *universe.HistoryDB
	screener  *universe.Screener
	service   *optimization.Service
	repo      *optimization.ResultRepository
	evaluator *evaluation.Evaluator
	bus       *events.Bus
	log       zerolog.Logger
}

// NewOptimizationJob creates a new optimization job. The bus may be nil.
func NewOptimizationJob(
	cfg OptimizationJobConfig,
	history *universe.HistoryDB,
	screener *universe.Screener,
	service *optimization.Service,
	repo *optimization.ResultRepository,
	evaluator *evaluation.Evaluator,
	bus *events.Bus,
	log zerolog.Logger,
) *OptimizationJob {
	return &OptimizationJob{
		cfg:       cfg,
		history:   history,
		screener:  screener,
		service:   service,
		repo:      repo,
		evaluator: evaluator,
		bus:       bus,
		log:       log.With().Str("job", "optimization").Logger(),
	}
}

// Name returns the job name
func (j *OptimizationJob) Name() string {
	return "optimization"
}

// Run executes one scheduled optimization pass.
func (j *OptimizationJob) Run() error {
	ctx := context.Background()

	j.log.Info().Str("method", string(j.cfg.Method)).Msg("=== Starting scheduled optimization ===")
	start := time.Now()

	candidates, err := j.screenUniverse(ctx)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		j.log.Info().Msg("No symbols passed the screen, skipping optimization run")
		return nil
	}

	records, err := j.history.Records(ctx, candidates, j.cfg.LookbackDays)
	if err != nil {
		return fmt.Errorf("failed to load price records: %w", err)
	}

	// The baseline is the previous run's result; fetch it before saving the
	// new one.
	baseline := j.latestResult()

	result, err := j.service.Optimize(ctx, optimization.Request{
		Method: j.cfg.Method,
		Assets: records,
	})
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	if err := j.repo.Save(result); err != nil {
		return fmt.Errorf("failed to store optimization result: %w", err)
	}

	j.publishResult(result)
	j.evaluateAgainstBaseline(baseline, result)

	j.log.Info().
		Str("result_id", result.ID).
		Int("universe", result.Weights.Len()).
		Float64("sharpe", result.SharpeRatio).
		Bool("converged", result.Converged).
		Float64("elapsed_seconds", time.Since(start).Seconds()).
		Msg("=== Scheduled optimization complete ===")

	return nil
}

// screenUniverse lists every stored symbol and keeps the ones that pass the
// screening criteria.
func (j *OptimizationJob) screenUniverse(ctx context.Context) ([]string, error) {
	symbols, err := j.history.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list universe symbols: %w", err)
	}
	if len(symbols) == 0 {
		j.log.Info().Msg("Universe is empty, nothing to screen")
		return nil, nil
	}

	var passed []string
	for _, info := range symbols {
		prices, err := j.history.DailyPrices(ctx, info.Symbol, j.cfg.LookbackDays)
		if err != nil {
			j.log.Error().Err(err).Str("symbol", info.Symbol).Msg("Failed to load prices for screening")
			continue
		}
		if j.screener.Screen(info.Symbol, prices).Passed {
			passed = append(passed, info.Symbol)
		}
	}

	if j.bus != nil {
		j.bus.Publish("scheduler", &events.UniverseScreenedData{
			Candidates: len(symbols),
			Passed:     len(passed),
		})
	}

	j.log.Info().
		Int("candidates", len(symbols)).
		Int("passed", len(passed)).
		Msg("Universe screened")

	return passed, nil
}

// latestResult returns the most recent stored result, or nil when the store
// is empty or unreadable. A missing baseline never blocks the run.
func (j *OptimizationJob) latestResult() *optimization.OptimizationResult {
	results, err := j.repo.List(1)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to load baseline result")
		return nil
	}
	if len(results) == 0 {
		return nil
	}
	return results[0]
}

func (j *OptimizationJob) evaluateAgainstBaseline(baseline, result *optimization.OptimizationResult) {
	if baseline == nil {
		j.log.Debug().Msg("No stored baseline, skipping sharpe evaluation")
		return
	}

	verdict := j.evaluator.Evaluate(baseline.SharpeRatio, result.SharpeRatio)
	j.log.Info().
		Float64("baseline_sharpe", verdict.BaselineSharpe).
		Float64("optimized_sharpe", verdict.OptimizedSharpe).
		Float64("improvement_ratio", verdict.ImprovementRatio).
		Bool("target_achieved", verdict.TargetAchieved).
		Msg("Sharpe improvement evaluated against previous run")
}

func (j *OptimizationJob) publishResult(result *optimization.OptimizationResult) {
	if j.bus == nil {
		return
	}
	if result.Warning != "" && result.Weights.Len() == 0 {
		j.bus.Publish("scheduler", &events.OptimizationDegradedData{
			ResultID: result.ID,
			Method:   string(result.Method),
			Warning:  result.Warning,
		})
		return
	}
	j.bus.Publish("scheduler", &events.OptimizationCompletedData{
		ResultID:    result.ID,
		Method:      string(result.Method),
		Universe:    result.Weights.Len(),
		SharpeRatio: result.SharpeRatio,
		Converged:   result.Converged,
	})
}
