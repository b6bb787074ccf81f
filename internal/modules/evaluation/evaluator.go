// Package evaluation judges optimization outcomes against a baseline: did
// the optimized portfolio improve the Sharpe ratio by at least the
// configured target fraction.
package evaluation

import (
	"math"

	"github.com/rs/zerolog"
)

// DefaultImprovementTarget is the fraction by which an optimized Sharpe
// ratio must beat the baseline to count as achieved.
const DefaultImprovementTarget = 0.20

// Verdict is the outcome of one baseline-versus-optimized comparison. It is
// advisory: callers report it but never block delivering the optimization
// result.
type Verdict struct {
	BaselineSharpe     float64 `json:"baseline_sharpe"`
	OptimizedSharpe    float64 `json:"optimized_sharpe"`
	ImprovementRatio   float64 `json:"improvement_ratio"`
	Target             float64 `json:"target"`
	TargetAchieved     bool    `json:"target_achieved"`
	BaselineDegenerate bool    `json:"baseline_degenerate"`
}

// Evaluator compares Sharpe ratios. Stateless and safe for concurrent use.
type Evaluator struct {
	target float64
	log    zerolog.Logger
}

// NewEvaluator creates an evaluator with the given improvement target. A
// non-positive target falls back to the default.
func NewEvaluator(target float64, log zerolog.Logger) *Evaluator {
	if target <= 0 || math.IsNaN(target) {
		target = DefaultImprovementTarget
	}
	return &Evaluator{
		target: target,
		log:    log.With().Str("module", "evaluation").Logger(),
	}
}

// Target returns the configured improvement target.
func (e *Evaluator) Target() float64 {
	return e.target
}

// Evaluate compares an optimized Sharpe ratio against a baseline.
//
// The improvement ratio divides by |baseline| so that climbing out of a
// negative baseline counts as improvement rather than flipping sign. A zero
// baseline makes the ratio undefined; it is reported as 0 with the
// degenerate flag set, and the target counts as achieved only when the
// optimized Sharpe is positive.
func (e *Evaluator) Evaluate(baseline, optimized float64) Verdict {
	v := Verdict{
		BaselineSharpe:  baseline,
		OptimizedSharpe: optimized,
		Target:          e.target,
	}

	if baseline == 0 || math.IsNaN(baseline) {
		v.BaselineDegenerate = true
		v.TargetAchieved = optimized > 0
	} else {
		v.ImprovementRatio = (optimized - baseline) / math.Abs(baseline)
		v.TargetAchieved = v.ImprovementRatio >= e.target
	}

	e.log.Debug().
		Float64("baseline", baseline).
		Float64("optimized", optimized).
		Float64("ratio", v.ImprovementRatio).
		Bool("achieved", v.TargetAchieved).
		Msg("sharpe improvement evaluated")

	return v
}
