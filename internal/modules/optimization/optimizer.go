package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"
)

// penaltyWeight scales the soft sum-to-one constraint in the nonlinear
// objectives. Per-asset bounds are enforced by projection inside the
// objective instead of additional penalty terms.
const penaltyWeight = 1000.0

// Solution is the raw solver outcome, before post-processing. Weights are
// aligned with the symbol order of the inputs and are not yet normalized.
type Solution struct {
	Weights    []float64
	Iterations int
	Converged  bool
}

// SolveOptions carries per-call optimization extras.
type SolveOptions struct {
	// TargetReturn adds the mean-variance target-return equality constraint
	// (as a penalty) when set.
	TargetReturn *float64
}

// WeightOptimizer solves the constrained weight problem for one of the
// supported objective profiles. All profiles share the same constraint
// shape: weights sum to one, each weight within the configured bounds.
//
// Non-convergence is not an error: the last iterate (or the equal-weight
// initial guess) is returned with Converged=false and the caller decides
// how much to trust it.
type WeightOptimizer struct {
	cfg Config
	log zerolog.Logger
}

// NewWeightOptimizer creates a new weight optimizer.
func NewWeightOptimizer(cfg Config, log zerolog.Logger) *WeightOptimizer {
	return &WeightOptimizer{
		cfg: cfg,
		log: log.With().Str("component", "optimizer").Logger(),
	}
}

// Solve runs the selected objective profile. For the Black-Litterman profile
// the caller supplies the posterior returns in mu; the objective itself is
// identical to max-Sharpe.
func (wo *WeightOptimizer) Solve(method Method, mu []float64, cov [][]float64, opts SolveOptions) (Solution, error) {
	n := len(cov)
	if n == 0 {
		return Solution{}, fmt.Errorf("cannot optimize an empty universe")
	}
	if len(mu) != n {
		return Solution{}, fmt.Errorf("expected returns length %d does not match universe size %d", len(mu), n)
	}
	for i := range cov {
		if len(cov[i]) != n {
			return Solution{}, fmt.Errorf("covariance matrix is not square: row %d has %d columns", i, len(cov[i]))
		}
	}

	switch method {
	case MethodRiskParity:
		return Solution{Weights: riskParityWeights(cov), Converged: true}, nil
	case MethodHRP:
		return Solution{Weights: hrpWeights(cov), Converged: true}, nil
	case MethodMaxSharpe, MethodBlackLitterman:
		return wo.solveNonlinear(wo.sharpeProblem(mu, cov), n, &optimize.NelderMead{}, &optimize.BFGS{}), nil
	case MethodMeanVariance:
		return wo.solveNonlinear(wo.varianceProblem(mu, cov, opts.TargetReturn), n, &optimize.BFGS{}, &optimize.NelderMead{}), nil
	case MethodEqualRiskContribution:
		return wo.solveNonlinear(wo.ercProblem(cov), n, &optimize.NelderMead{}, &optimize.BFGS{}), nil
	default:
		return Solution{}, fmt.Errorf("unknown optimization method %q", method)
	}
}

// sharpeProblem minimizes -(w'μ - rf)/sqrt(w'Σw) with a soft sum-to-one
// penalty. Zero portfolio volatility yields an infinite objective so the
// solver steers away from that candidate instead of dividing by zero.
func (wo *WeightOptimizer) sharpeProblem(mu []float64, cov [][]float64) optimize.Problem {
	rf := wo.cfg.RiskFreeRate
	min, max := wo.cfg.MinPositionWeight, wo.cfg.MaxPositionWeight

	return optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToBounds(x, min, max)
			variance := quadraticForm(w, cov)
			if variance <= 0 {
				return math.Inf(1)
			}
			vol := math.Sqrt(variance)
			obj := -(dot(mu, w) - rf) / vol

			sum := vectorSum(w)
			return obj + penaltyWeight*(sum-1)*(sum-1)
		},
		Grad: func(grad, x []float64) {
			w := projectToBounds(x, min, max)
			variance := math.Max(quadraticForm(w, cov), 1e-12)
			vol := math.Sqrt(variance)
			excess := dot(mu, w) - rf
			sum := vectorSum(w)

			for i := range grad {
				sigmaW := matrixRowDot(cov, i, w)
				grad[i] = -mu[i]/vol + excess*sigmaW/(variance*vol)
				grad[i] += 2 * penaltyWeight * (sum - 1)
			}
		},
	}
}

// varianceProblem minimizes w'Σw with the sum-to-one penalty and an optional
// target-return penalty, which approximates the w'μ = target equality
// constraint.
func (wo *WeightOptimizer) varianceProblem(mu []float64, cov [][]float64, targetReturn *float64) optimize.Problem {
	min, max := wo.cfg.MinPositionWeight, wo.cfg.MaxPositionWeight

	return optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToBounds(x, min, max)
			obj := quadraticForm(w, cov)

			sum := vectorSum(w)
			obj += penaltyWeight * (sum - 1) * (sum - 1)

			if targetReturn != nil {
				diff := dot(mu, w) - *targetReturn
				obj += penaltyWeight * diff * diff
			}
			return obj
		},
		Grad: func(grad, x []float64) {
			w := projectToBounds(x, min, max)
			sum := vectorSum(w)

			var returnDiff float64
			if targetReturn != nil {
				returnDiff = dot(mu, w) - *targetReturn
			}

			for i := range grad {
				grad[i] = 2 * matrixRowDot(cov, i, w)
				grad[i] += 2 * penaltyWeight * (sum - 1)
				if targetReturn != nil {
					grad[i] += 2 * penaltyWeight * returnDiff * mu[i]
				}
			}
		},
	}
}

// ercProblem equalizes how much each position adds to portfolio risk. The
// objective works on fractional contributions w_i·(Σw)_i / (wᵀΣw), which sum
// to one, and penalizes their squared distance from the uniform share 1/n.
// Fractions keep the objective well scaled regardless of the covariance
// magnitude. The gradient is estimated by central differences; the analytic
// form is not worth its complexity here.
func (wo *WeightOptimizer) ercProblem(cov [][]float64) optimize.Problem {
	min, max := wo.cfg.MinPositionWeight, wo.cfg.MaxPositionWeight

	objective := func(x []float64) float64 {
		w := projectToBounds(x, min, max)
		variance := quadraticForm(w, cov)
		if variance <= 0 {
			return math.Inf(1)
		}

		n := len(w)
		target := 1.0 / float64(n)
		var spread float64
		for i := 0; i < n; i++ {
			fraction := w[i] * matrixRowDot(cov, i, w) / variance
			d := fraction - target
			spread += d * d
		}

		sum := vectorSum(w)
		return spread + penaltyWeight*(sum-1)*(sum-1)
	}

	return optimize.Problem{
		Func: objective,
		Grad: func(grad, x []float64) {
			numericalGradient(objective, x, grad)
		},
	}
}

// solveNonlinear runs the bounded penalty problem from the equal-weight
// initial guess, falling back to a second method when the first does not
// reach an accepted convergence status.
func (wo *WeightOptimizer) solveNonlinear(problem optimize.Problem, n int, primary, fallback optimize.Method) Solution {
	initial := equalWeights(n)
	settings := &optimize.Settings{
		MajorIterations: wo.cfg.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   wo.cfg.Tolerance,
			Iterations: 50,
		},
	}

	best := Solution{Weights: projectToBounds(initial, wo.cfg.MinPositionWeight, wo.cfg.MaxPositionWeight)}

	for attempt, method := range []optimize.Method{primary, fallback} {
		result, err := optimize.Minimize(problem, initial, settings, method)
		if err != nil {
			wo.log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Msg("Solver failed")
			continue
		}

		best.Weights = projectToBounds(result.X, wo.cfg.MinPositionWeight, wo.cfg.MaxPositionWeight)
		best.Iterations += result.Stats.MajorIterations

		if solverConverged(result.Status) {
			best.Converged = true
			return best
		}

		wo.log.Warn().
			Stringer("status", result.Status).
			Int("attempt", attempt+1).
			Int("iterations", result.Stats.MajorIterations).
			Msg("Solver did not converge")
	}

	return best
}

// solverConverged reports whether a solver status counts as success.
func solverConverged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
		return true
	default:
		return false
	}
}

// riskParityWeights is the closed-form inverse-volatility allocation:
// w_i ∝ 1/σ_i, normalized to sum one.
func riskParityWeights(cov [][]float64) []float64 {
	n := len(cov)
	weights := make([]float64, n)

	var sum float64
	for i := 0; i < n; i++ {
		sigma := math.Sqrt(math.Max(cov[i][i], 1e-12))
		weights[i] = 1.0 / sigma
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= math.Max(sum, 1e-10)
	}
	return weights
}

// projectToBounds clamps every coordinate into [min, max].
func projectToBounds(x []float64, min, max float64) []float64 {
	projected := make([]float64, len(x))
	for i, v := range x {
		projected[i] = clamp(v, min, max)
	}
	return projected
}

// numericalGradient fills grad with the central-difference estimate of f at x.
func numericalGradient(f func([]float64) float64, x []float64, grad []float64) {
	const h = 1e-7

	point := make([]float64, len(x))
	copy(point, x)

	for i := range x {
		orig := point[i]
		point[i] = orig + h
		fPlus := f(point)
		point[i] = orig - h
		fMinus := f(point)
		point[i] = orig

		grad[i] = (fPlus - fMinus) / (2 * h)
	}
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func vectorSum(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum
}

// quadraticForm computes w'Σw.
func quadraticForm(w []float64, cov [][]float64) float64 {
	var total float64
	for i := range w {
		total += w[i] * matrixRowDot(cov, i, w)
	}
	return total
}

// matrixRowDot computes (Σw)_i.
func matrixRowDot(cov [][]float64, row int, w []float64) float64 {
	var sum float64
	for j := range w {
		sum += cov[row][j] * w[j]
	}
	return sum
}
