package optimization

import (
	"fmt"
	"math"
)

// Tunables shared across the optimization pipeline.
const (
	// DefaultRiskAversion scales the Black-Litterman covariance tilt.
	DefaultRiskAversion = 3.0

	// ExpectedReturnClipMin and ExpectedReturnClipMax bound the historical
	// risk-adjusted expected-return estimate. Short windows extrapolate
	// wildly without this.
	ExpectedReturnClipMin = -0.5
	ExpectedReturnClipMax = 0.5

	// EigenvalueFloor is the minimum eigenvalue after covariance repair.
	EigenvalueFloor = 1e-8

	// MinValidPrices is the minimum number of valid closing prices an asset
	// needs to stay in the optimization universe.
	MinValidPrices = 3
)

// Config carries every tunable of the optimization pipeline. It is immutable
// after construction: build it once with DefaultConfig, adjust fields, call
// Validate, and pass it by value.
type Config struct {
	MaxIterations           int     // solver iteration cap
	Tolerance               float64 // solver convergence tolerance
	RiskFreeRate            float64 // annual, as decimal
	MinPositionWeight       float64 // per-asset lower bound
	MaxPositionWeight       float64 // per-asset upper bound
	SharpeImprovementTarget float64 // relative improvement goal vs. baseline
	RiskAversion            float64 // Black-Litterman tilt strength
	UseShrinkage            bool    // Ledoit-Wolf shrinkage before PSD repair
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations:           1000,
		Tolerance:               1e-6,
		RiskFreeRate:            0.02,
		MinPositionWeight:       0.01,
		MaxPositionWeight:       0.20,
		SharpeImprovementTarget: 0.20,
		RiskAversion:            DefaultRiskAversion,
		UseShrinkage:            false,
	}
}

// Validate checks the configuration once at construction time so the
// pipeline never has to re-validate per call.
func (c Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", c.MaxIterations)
	}
	if c.Tolerance <= 0 || math.IsNaN(c.Tolerance) {
		return fmt.Errorf("tolerance must be positive, got %v", c.Tolerance)
	}
	if math.IsNaN(c.RiskFreeRate) || math.IsInf(c.RiskFreeRate, 0) {
		return fmt.Errorf("risk free rate must be finite, got %v", c.RiskFreeRate)
	}
	if c.MinPositionWeight < 0 || c.MinPositionWeight > 1 {
		return fmt.Errorf("min position weight must be in [0, 1], got %v", c.MinPositionWeight)
	}
	if c.MaxPositionWeight <= 0 || c.MaxPositionWeight > 1 {
		return fmt.Errorf("max position weight must be in (0, 1], got %v", c.MaxPositionWeight)
	}
	if c.MinPositionWeight >= c.MaxPositionWeight {
		return fmt.Errorf("min position weight %v must be below max %v", c.MinPositionWeight, c.MaxPositionWeight)
	}
	if c.SharpeImprovementTarget < 0 {
		return fmt.Errorf("sharpe improvement target must be non-negative, got %v", c.SharpeImprovementTarget)
	}
	if c.RiskAversion <= 0 {
		return fmt.Errorf("risk aversion must be positive, got %v", c.RiskAversion)
	}
	return nil
}
