// Package optimization implements the portfolio optimization engine:
// return-series preparation, covariance estimation, expected-return models,
// the constrained weight solver and result post-processing.
package optimization

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoHistory marks a symbol that has no stored price history. Record
// sources wrap it so callers can tell a bad symbol from a storage failure.
var ErrNoHistory = errors.New("no price history")

// Method identifies an optimization objective profile.
type Method string

const (
	MethodMaxSharpe             Method = "max_sharpe"
	MethodMeanVariance          Method = "mean_variance"
	MethodBlackLitterman        Method = "black_litterman"
	MethodRiskParity            Method = "risk_parity"
	MethodEqualRiskContribution Method = "equal_risk_contribution"
	MethodHRP                   Method = "hrp"
)

// Methods returns all supported optimization methods.
func Methods() []Method {
	return []Method{
		MethodMaxSharpe,
		MethodMeanVariance,
		MethodBlackLitterman,
		MethodRiskParity,
		MethodEqualRiskContribution,
		MethodHRP,
	}
}

// ParseMethod validates a method name. The empty string maps to max_sharpe.
func ParseMethod(s string) (Method, error) {
	if s == "" {
		return MethodMaxSharpe, nil
	}
	for _, m := range Methods() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown optimization method %q", s)
}

// RiskLevel classifies portfolio volatility into coarse buckets.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskVeryHigh RiskLevel = "VERY_HIGH"
)

// PriceSample is one observation of an asset's daily close and volume.
// Volume is optional; sources without volume data leave it nil.
type PriceSample struct {
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume,omitempty"`
}

// AssetRecord is the raw per-asset input consumed from the data-ingestion
// side: a symbol, its ordered price/volume samples and optional metadata.
type AssetRecord struct {
	Symbol    string        `json:"symbol"`
	Samples   []PriceSample `json:"samples"`
	Sector    string        `json:"sector,omitempty"`
	MarketCap float64       `json:"market_cap,omitempty"`
	Liquidity *float64      `json:"liquidity,omitempty"`
}

// AssetSeries is a cleaned per-asset series ready for optimization:
// log returns plus the derived volatility and liquidity figures.
type AssetSeries struct {
	Symbol         string
	Sector         string
	Prices         []float64
	Returns        []float64
	Volatility     float64
	LiquidityScore float64
}

// OptimizationResult is the immutable outcome of one optimization call.
type OptimizationResult struct {
	ID                   string        `json:"id"`
	Method               Method        `json:"method"`
	Weights              *WeightVector `json:"weights"`
	ExpectedReturn       float64       `json:"expected_return"`
	Volatility           float64       `json:"volatility"`
	SharpeRatio          float64       `json:"sharpe_ratio"`
	DiversificationScore float64       `json:"diversification_score"`
	RiskLevel            RiskLevel     `json:"risk_level"`
	Confidence           float64       `json:"confidence"`
	Iterations           int           `json:"iterations"`
	Converged            bool          `json:"converged"`
	Warning              string        `json:"warning,omitempty"`
	Timestamp            time.Time     `json:"timestamp"`
}

