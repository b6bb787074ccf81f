package universe

import (
	"github.com/rs/zerolog"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/pkg/formulas"
)

// Criteria configures one screening pass. Zero-value periods fall back to
// the defaults when the screener is built.
type Criteria struct {
	MinObservations int     `json:"min_observations"`
	RSIPeriod       int     `json:"rsi_period"`
	MaxRSI          float64 `json:"max_rsi"`
	FastSMAPeriod   int     `json:"fast_sma_period"`
	SlowSMAPeriod   int     `json:"slow_sma_period"`
	RequireUptrend  bool    `json:"require_uptrend"`
	MinAvgVolume    float64 `json:"min_avg_volume"`
}

/// DefaultCriteria returns the standard screen: enough history for the slow
// moving average, RSI(14) not overbought, and the 25-day average above the
// 75-day average.
func DefaultCriteria() Criteria {
	return Criteria{
		MinObservations: 90,
		RSIPeriod:       14,
		MaxRSI:          70.0,
		FastSMAPeriod:   25,
		SlowSMAPeriod:   75,
		RequireUptrend:  true,
		MinAvgVolume:    0,
	}
}

// ScreenResult is the per-symbol outcome of a screening pass. Indicator
// fields are nil when the history is too short to compute them.
type ScreenResult struct {
	Symbol       string   `json:"symbol"`
	Observations int      `json:"observations"`
	RSI          *float64 `json:"rsi,omitempty"`
	FastSMA      *float64 `json:"fast_sma,omitempty"`
	SlowSMA      *float64 `json:"slow_sma,omitempty"`
	AvgVolume    float64  `json:"avg_volume"`
	Passed       bool     `json:"passed"`
	Reasons      []string `json:"reasons,omitempty"`
}

// Screener applies technical screening criteria to symbols' price history to
// pick optimization candidates.
type Screener struct {
	criteria Criteria
	log      zerolog.Logger
}

// NewScreener creates a screener. Non-positive periods and observation
// minimums in the criteria are replaced with the defaults.
func NewScreener(criteria Criteria, log zerolog.Logger) *Screener {
	defaults := DefaultCriteria()
	if criteria.MinObservations <= 0 {
		criteria.MinObservations = defaults.MinObservations
	}
	if criteria.RSIPeriod <= 0 {
		criteria.RSIPeriod = defaults.RSIPeriod
	}
	if criteria.MaxRSI <= 0 {
		criteria.MaxRSI = defaults.MaxRSI
	}
	if criteria.FastSMAPeriod <= 0 {
		criteria.FastSMAPeriod = defaults.FastSMAPeriod
	}
	if criteria.SlowSMAPeriod <= 0 {
		criteria.SlowSMAPeriod = defaults.SlowSMAPeriod
	}

	return &Screener{
		criteria: criteria,
		log:      log.With().Str("component", "screener").Logger(),
	}
}

// Criteria returns the normalized criteria the screener applies.
func (s *Screener) Criteria() Criteria {
	return s.criteria
}

// Screen evaluates one symbol's bars, oldest first, against the criteria.
// Every failed criterion contributes a reason; the symbol passes when no
// reason accumulates.
func (s *Screener) Screen(symbol string, prices []DailyPrice) ScreenResult {
	result := ScreenResult{
		Symbol:       symbol,
		Observations: len(prices),
	}

	closes := make([]float64, len(prices))
	var volumeSum float64
	var volumeCount int
	for i, p := range prices {
		closes[i] = p.Close
		if p.Volume != nil {
			volumeSum += *p.Volume
			volumeCount++
		}
	}
	if volumeCount > 0 {
		result.AvgVolume = volumeSum / float64(volumeCount)
	}

	if len(prices) < s.criteria.MinObservations {
		result.Reasons = append(result.Reasons, "insufficient_history")
	}

	result.RSI = formulas.CalculateRSI(closes, s.criteria.RSIPeriod)
	if result.RSI != nil && *result.RSI > s.criteria.MaxRSI {
		result.Reasons = append(result.Reasons, "rsi_overbought")
	}

	result.FastSMA = formulas.CalculateSMA(closes, s.criteria.FastSMAPeriod)
	result.SlowSMA = formulas.CalculateSMA(closes, s.criteria.SlowSMAPeriod)
	if s.criteria.RequireUptrend {
		switch {
		case result.FastSMA == nil || result.SlowSMA == nil:
			result.Reasons = append(result.Reasons, "sma_unavailable")
		case *result.FastSMA <= *result.SlowSMA:
			result.Reasons = append(result.Reasons, "downtrend")
		}
	}

	if s.criteria.MinAvgVolume > 0 {
		switch {
		case volumeCount == 0:
			result.Reasons = append(result.Reasons, "volume_unavailable")
		case result.AvgVolume < s.criteria.MinAvgVolume:
			result.Reasons = append(result.Reasons, "volume_below_minimum")
		}
	}

	result.Passed = len(result.Reasons) == 0

	s.log.Debug().
		Str("symbol", symbol).
		Int("observations", result.Observations).
		Bool("passed", result.Passed).
		Strs("reasons", result.Reasons).
		Msg("Screened symbol")

	return result
}
