package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateRSI calculates the Relative Strength Index.
//
// RSI Formula:
//
//	RSI = 100 - (100 / (1 + RS))
//	where RS = Average Gain / Average Loss over N periods
//
// Args:
//
//	closes: Array of closing prices
//	length: RSI period (typically 14)
//
// Returns:
//
//	Current RSI value (0-100) or nil if insufficient data
func CalculateRSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}

	rsi := talib.Rsi(closes, length)
	if len(rsi) == 0 {
		return nil
	}

	last := rsi[len(rsi)-1]
	if isNaN(last) {
		return nil
	}
	return &last
}

// CalculateSMA calculates a simple moving average and returns its most recent
// value, or nil if the series is shorter than the period.
func CalculateSMA(values []float64, period int) *float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	sma := talib.Sma(values, period)
	if len(sma) == 0 {
		return nil
	}

	last := sma[len(sma)-1]
	if isNaN(last) {
		return nil
	}
	return &last
}

func isNaN(f float64) bool {
	return f != f
}
