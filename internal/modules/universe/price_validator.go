package universe

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

const (
	// Validation thresholds
	maxPriceMultiplier    = 10.0   // close > 10x trailing average is abnormal
	minPriceMultiplier    = 0.1    // close < 0.1x trailing average is abnormal
	maxPriceChangePercent = 1000.0 // >1000% day-over-day change is a spike
	minPriceChangePercent = -90.0  // <-90% day-over-day change is a crash
	absolutePriceMax      = 1.0e7  // loose currency-agnostic ceiling
	absolutePriceMin      = 1.0e-4 // loose currency-agnostic floor
	contextWindowDays     = 30     // trailing bars used for the average check
)

// ValidationContextBars is how many stored bars callers should load as
// context when validating a new batch.
const ValidationContextBars = contextWindowDays

// InterpolationLog records when an abnormal bar was repaired.
type InterpolationLog struct {
	Date              string
	OriginalClose     float64
	InterpolatedClose float64
	Method            string // "linear", "forward_fill", "backward_fill"
	Reason            string
}

// PriceValidator validates incoming price bars and repairs abnormal ones by
// interpolating from the surrounding valid bars.
type PriceValidator struct {
	log zerolog.Logger
}

// NewPriceValidator creates a new price validator.
func NewPriceValidator(log zerolog.Logger) *PriceValidator {
	return &PriceValidator{
		log: log.With().Str("component", "price_validator").Logger(),
	}
}

// ValidatePrice checks one bar. Context is previously stored bars, oldest
// first; an empty context falls back to absolute bounds. Returns the reason
// string when the bar is abnormal.
func (v *PriceValidator) ValidatePrice(price DailyPrice, context []DailyPrice) (bool, string) {
	if price.Close <= 0 || price.Open <= 0 || price.High <= 0 || price.Low <= 0 {
		return false, "non_positive_price"
	}

	// OHLC consistency, no context needed
	if price.High < price.Low {
		return false, "high_below_low"
	}
	if price.High < price.Open {
		return false, "high_below_open"
	}
	if price.High < price.Close {
		return false, "high_below_close"
	}
	if price.Low > price.Open {
		return false, "low_above_open"
	}
	if price.Low > price.Close {
		return false, "low_above_close"
	}

	if len(context) == 0 {
		if price.Close > absolutePriceMax {
			return false, "absolute_bound_exceeded"
		}
		if price.Close < absolutePriceMin {
			return false, "absolute_bound_below_minimum"
		}
		return true, ""
	}

	// Day-over-day change against the most recent context bar takes priority
	// over the trailing-average checks.
	prevClose := context[len(context)-1].Close
	if prevClose > 0 {
		changePercent := ((price.Close - prevClose) / prevClose) * 100.0
		if changePercent > maxPriceChangePercent {
			return false, "spike_detected"
		}
		if changePercent < minPriceChangePercent {
			return false, "crash_detected"
		}
	}

	// Trailing average over the last contextWindowDays bars.
	window := context
	if len(window) > contextWindowDays {
		window = window[len(window)-contextWindowDays:]
	}
	var sum float64
	for _, p := range window {
		sum += p.Close
	}
	avgPrice := sum / float64(len(window))
	if avgPrice > 0 {
		if price.Close > avgPrice*maxPriceMultiplier {
			return false, "price_too_high"
		}
		if price.Close < avgPrice*minPriceMultiplier {
			return false, "price_too_low"
		}
	}

	return true, ""
}

// InterpolatePrice repairs an abnormal bar using the nearest valid bars on
// either side. Returns the repaired bar and the method used.
func (v *PriceValidator) InterpolatePrice(price DailyPrice, before, after *DailyPrice) (DailyPrice, string, error) {
	interpolated := price // keeps date and volume

	if before != nil && after != nil {
		priceDate, err := time.Parse("2006-01-02", price.Date)
		if err != nil {
			return interpolated, "", fmt.Errorf("failed to parse price date: %w", err)
		}
		beforeDate, err := time.Parse("2006-01-02", before.Date)
		if err != nil {
			return interpolated, "", fmt.Errorf("failed to parse before date: %w", err)
		}
		afterDate, err := time.Parse("2006-01-02", after.Date)
		if err != nil {
			return interpolated, "", fmt.Errorf("failed to parse after date: %w", err)
		}

		totalDays := afterDate.Sub(beforeDate).Hours() / 24.0
		if totalDays <= 0 {
			return interpolated, "", fmt.Errorf("invalid date range for interpolation")
		}
		fraction := priceDate.Sub(beforeDate).Hours() / 24.0 / totalDays

		interpolated.Close = before.Close + (after.Close-before.Close)*fraction

		// Rebuild open/high/low from the average of the neighbors' ratios to
		// close, so the repaired bar keeps a plausible intraday shape.
		openRatio := (before.Open/before.Close + after.Open/after.Close) / 2.0
		highRatio := (before.High/before.Close + after.High/after.Close) / 2.0
		lowRatio := (before.Low/before.Close + after.Low/after.Close) / 2.0

		interpolated.Open = interpolated.Close * openRatio
		interpolated.High = interpolated.Close * highRatio
		interpolated.Low = interpolated.Close * lowRatio
		ensureOHLCConsistency(&interpolated)

		return interpolated, "linear", nil
	}

	if before != nil {
		interpolated.Open = before.Open
		interpolated.High = before.High
		interpolated.Low = before.Low
		interpolated.Close = before.Close
		return interpolated, "forward_fill", nil
	}

	if after != nil {
		interpolated.Open = after.Open
		interpolated.High = after.High
		interpolated.Low = after.Low
		interpolated.Close = after.Close
		return interpolated, "backward_fill", nil
	}

	ensureOHLCConsistency(&interpolated)
	return interpolated, "no_interpolation", nil
}

// ValidateAndInterpolate validates a batch of bars and repairs the abnormal
// ones. The batch is processed in date order; context is previously stored
// bars, oldest first. Returns the cleaned batch plus one log entry per
// repair.
func (v *PriceValidator) ValidateAndInterpolate(prices []DailyPrice, context []DailyPrice) ([]DailyPrice, []InterpolationLog, error) {
	if len(prices) == 0 {
		return prices, []InterpolationLog{}, nil
	}

	sorted := make([]DailyPrice, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	result := make([]DailyPrice, 0, len(sorted))
	logs := []InterpolationLog{}

	for i, price := range sorted {
		valid, reason := v.ValidatePrice(price, context)
		if valid {
			result = append(result, price)
			continue
		}

		// Nearest valid bar before: the batch bars already accepted, falling
		// back to the last context bar.
		var before *DailyPrice
		if len(result) > 0 {
			before = &result[len(result)-1]
		} else if len(context) > 0 {
			before = &context[len(context)-1]
		}

		// Nearest valid bar after: the next batch bar that passes validation.
		var after *DailyPrice
		for j := i + 1; j < len(sorted); j++ {
			if ok, _ := v.ValidatePrice(sorted[j], context); ok {
				after = &sorted[j]
				break
			}
		}

		interpolated, method, err := v.InterpolatePrice(price, before, after)
		if err != nil {
			v.log.Error().
				Err(err).
				Str("date", price.Date).
				Msg("Failed to interpolate price, keeping original")
			result = append(result, price)
			continue
		}

		logs = append(logs, InterpolationLog{
			Date:              price.Date,
			OriginalClose:     price.Close,
			InterpolatedClose: interpolated.Close,
			Method:            method,
			Reason:            reason,
		})

		v.log.Warn().
			Str("date", price.Date).
			Float64("original_close", price.Close).
			Float64("interpolated_close", interpolated.Close).
			Str("method", method).
			Str("reason", reason).
			Msg("Interpolated abnormal price")

		result = append(result, interpolated)
	}

	return result, logs, nil
}

func ensureOHLCConsistency(price *DailyPrice) {
	price.High = math.Max(price.High, math.Max(price.Open, price.Close))
	price.Low = math.Min(price.Low, math.Min(price.Open, price.Close))
	if price.High < price.Low {
		price.High = price.Low
	}
}
