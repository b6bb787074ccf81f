package optimization

import (
	"errors"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/pkg/formulas"
)

var errEmptyMatrix = errors.New("empty covariance matrix")

// CovarianceEstimator builds the annualized covariance matrix for an asset
// universe and repairs it to positive semi-definiteness. Sample covariance
// from short windows is frequently near-singular or carries numerically
// negative eigenvalues, which would make sqrt(w'Σw) undefined for some
// weight vectors.
type CovarianceEstimator struct {
	cfg Config
	log zerolog.Logger
}

// NewCovarianceEstimator creates a new covariance estimator.
func NewCovarianceEstimator(cfg Config, log zerolog.Logger) *CovarianceEstimator {
	return &CovarianceEstimator{
		cfg: cfg,
		log: log.With().Str("component", "covariance").Logger(),
	}
}

// ReturnMatrix aligns the per-asset return vectors into a rectangular matrix.
// Every row is truncated to the shortest series present, keeping the most
// recent observations.
func (ce *CovarianceEstimator) ReturnMatrix(series []AssetSeries) [][]float64 {
	if len(series) == 0 {
		return [][]float64{}
	}

	minLen := len(series[0].Returns)
	for _, s := range series[1:] {
		if len(s.Returns) < minLen {
			minLen = len(s.Returns)
		}
	}

	matrix := make([][]float64, len(series))
	for i, s := range series {
		row := make([]float64, minLen)
		copy(row, s.Returns[len(s.Returns)-minLen:])
		matrix[i] = row
	}
	return matrix
}

// Estimate computes the annualized sample covariance of the return matrix,
// optionally applies Ledoit-Wolf shrinkage, and repairs the result to
// positive semi-definiteness by flooring its eigenvalues.
func (ce *CovarianceEstimator) Estimate(returnMatrix [][]float64) [][]float64 {
	n := len(returnMatrix)
	if n == 0 {
		return [][]float64{}
	}

	cov := ce.sampleCovariance(returnMatrix)

	if ce.cfg.UseShrinkage && n > 1 {
		shrunk, err := applyLedoitWolfShrinkage(cov)
		if err != nil {
			ce.log.Warn().Err(err).Msg("Shrinkage failed, using sample covariance")
		} else {
			cov = shrunk
		}
	}

	repaired, ok := ce.repairPSD(cov)
	if !ok {
		// Unrepaired matrix goes downstream as-is; the solver guards its
		// own square roots.
		return cov
	}
	return repaired
}

// sampleCovariance computes the pairwise sample covariance (N-1 denominator)
// scaled to annual terms. Rows shorter than two observations produce a zero
// matrix, which the repair step lifts onto the eigenvalue floor.
func (ce *CovarianceEstimator) sampleCovariance(returnMatrix [][]float64) [][]float64 {
	n := len(returnMatrix)
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}

	obs := len(returnMatrix[0])
	if obs < 2 {
		ce.log.Warn().
			Int("observations", obs).
			Msg("Too few observations for sample covariance")
		return cov
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := stat.Covariance(returnMatrix[i], returnMatrix[j], nil) * formulas.TradingDaysPerYear
			cov[i][j] = c
			cov[j][i] = c
		}
	}
	return cov
}

// repairPSD floors the eigenvalues of the covariance matrix at
// EigenvalueFloor and reconstructs V·diag(λ')·Vᵗ. When the eigen
// factorization itself fails the original matrix is returned unchanged and
// the condition is logged; callers never see an error.
func (ce *CovarianceEstimator) repairPSD(cov [][]float64) ([][]float64, bool) {
	n := len(cov)
	if n == 0 {
		return cov, true
	}

	flat := make([]float64, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			// Average the off-diagonal pair so floating-point asymmetry
			// cannot break the symmetric factorization.
			flat = append(flat, 0.5*(cov[i][j]+cov[j][i]))
		}
	}
	sym := mat.NewSymDense(n, flat)

	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		ce.log.Warn().
			Int("size", n).
			Msg("Eigen decomposition failed, returning unrepaired covariance")
		return cov, false
	}

	values := eig.Values(nil)
	floored := 0
	for i, v := range values {
		if v < EigenvalueFloor {
			values[i] = EigenvalueFloor
			floored++
		}
	}

	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	var vd mat.Dense
	vd.Mul(&vectors, mat.NewDiagDense(n, values))
	var reconstructed mat.Dense
	reconstructed.Mul(&vd, vectors.T())

	repaired := make([][]float64, n)
	for i := range repaired {
		repaired[i] = make([]float64, n)
		for j := range repaired[i] {
			repaired[i][j] = 0.5 * (reconstructed.At(i, j) + reconstructed.At(j, i))
		}
	}

	if floored > 0 {
		ce.log.Debug().
			Int("floored_eigenvalues", floored).
			Int("size", n).
			Msg("Repaired covariance matrix to positive semi-definiteness")
	}
	return repaired, true
}

// applyLedoitWolfShrinkage shrinks the sample covariance towards a constant
// correlation target. Improves conditioning when the observation window is
// short relative to the universe size.
//
// Reference: Ledoit, O., & Wolf, M. (2004). "A well-conditioned estimator
// for large-dimensional covariance matrices"
func applyLedoitWolfShrinkage(sampleCov [][]float64) ([][]float64, error) {
	n := len(sampleCov)
	if n == 0 {
		return nil, errEmptyMatrix
	}

	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += sampleCov[i][i]
		for j := 0; j < n; j++ {
			if i != j {
				avgCov += sampleCov[i][j]
			}
		}
	}
	avgVar /= float64(n)
	if n > 1 {
		avgCov /= float64(n * (n - 1))
	}

	target := make([][]float64, n)
	for i := range target {
		target[i] = make([]float64, n)
		for j := range target[i] {
			if i == j {
				target[i][j] = avgVar
			} else {
				target[i][j] = avgCov
			}
		}
	}

	// Adaptive intensity: how far the sample sits from the target relative
	// to the dispersion of its own entries.
	shrinkage := 0.2
	if n > 2 && avgVar > 0 {
		var sumSqDiff, sumSq, sum float64
		count := float64(n * n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				diff := sampleCov[i][j] - target[i][j]
				sumSqDiff += diff * diff
				sum += sampleCov[i][j]
				sumSq += sampleCov[i][j] * sampleCov[i][j]
			}
		}
		meanSqDiff := sumSqDiff / count
		mean := sum / count
		variance := sumSq/count - mean*mean

		if variance > 0 && meanSqDiff > 0 {
			shrinkage = math.Min(0.5, math.Max(0.0, variance/(variance+meanSqDiff)))
		}
	}

	shrunk := make([][]float64, n)
	for i := range shrunk {
		shrunk[i] = make([]float64, n)
		for j := range shrunk[i] {
			shrunk[i][j] = (1-shrinkage)*sampleCov[i][j] + shrinkage*target[i][j]
		}
	}
	return shrunk, nil
}
