package optimization

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/pkg/formulas"
)

// SeriesBuilder converts raw asset records into cleaned return series.
// It is a pure transformation: assets that fail the minimum-sample threshold
// are dropped from the output, never reported as errors.
type SeriesBuilder struct {
	log zerolog.Logger
}

// NewSeriesBuilder creates a new series builder.
func NewSeriesBuilder(log zerolog.Logger) *SeriesBuilder {
	return &SeriesBuilder{
		log: log.With().Str("component", "series_builder").Logger(),
	}
}

// Build produces an AssetSeries for every record with at least MinValidPrices
// valid closing prices. Log returns are first differences of the natural log
// of consecutive valid closes; volatility is their sample standard deviation
// annualized by sqrt(252); the liquidity score is the mean of valid volumes
// when at least MinValidPrices of them exist.
func (sb *SeriesBuilder) Build(records []AssetRecord) []AssetSeries {
	series := make([]AssetSeries, 0, len(records))

	for _, record := range records {
		prices := validCloses(record.Samples)
		if len(prices) < MinValidPrices {
			sb.log.Debug().
				Str("symbol", record.Symbol).
				Int("valid_prices", len(prices)).
				Int("required", MinValidPrices).
				Msg("Dropping asset with insufficient price history")
			continue
		}

		returns := formulas.LogReturns(prices)
		if len(returns) == 0 {
			sb.log.Debug().
				Str("symbol", record.Symbol).
				Msg("Dropping asset with no computable returns")
			continue
		}

		series = append(series, AssetSeries{
			Symbol:         record.Symbol,
			Sector:         record.Sector,
			Prices:         prices,
			Returns:        returns,
			Volatility:     formulas.AnnualizedVolatility(returns),
			LiquidityScore: liquidityScore(record),
		})
	}

	sb.log.Debug().
		Int("input_assets", len(records)).
		Int("universe_size", len(series)).
		Msg("Built return series")

	return series
}

// validCloses filters the sample list down to positive, finite closes.
func validCloses(samples []PriceSample) []float64 {
	prices := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Close <= 0 || math.IsNaN(s.Close) || math.IsInf(s.Close, 0) {
			continue
		}
		prices = append(prices, s.Close)
	}
	return prices
}

// liquidityScore prefers precomputed liquidity metadata and otherwise uses
// the mean of the valid volumes. Fewer than MinValidPrices valid volumes
// yield a zero score; the asset itself stays in the universe.
func liquidityScore(record AssetRecord) float64 {
	if record.Liquidity != nil && !math.IsNaN(*record.Liquidity) {
		return *record.Liquidity
	}

	volumes := make([]float64, 0, len(record.Samples))
	for _, s := range record.Samples {
		if s.Volume == nil || *s.Volume < 0 || math.IsNaN(*s.Volume) || math.IsInf(*s.Volume, 0) {
			continue
		}
		volumes = append(volumes, *s.Volume)
	}
	if len(volumes) < MinValidPrices {
		return 0
	}
	return formulas.Mean(volumes)
}
