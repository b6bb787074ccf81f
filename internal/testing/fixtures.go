package testing

import (
	"math"
	"math/rand"
	"time"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/universe"
)

// NewDailyPriceFixtures returns consecutive daily bars following a geometric
// walk seeded from the symbol, so repeated runs see identical data. Bars are
// oldest first and end on the given date.
func NewDailyPriceFixtures(symbol string, days int, end time.Time) []universe.DailyPrice {
	seed := int64(1)
	for _, r := range symbol {
		seed = seed*31 + int64(r)
	}
	rng := rand.New(rand.NewSource(seed))

	prices := make([]universe.DailyPrice, days)
	last := 100.0 + 50.0*rng.Float64()
	start := end.AddDate(0, 0, -(days - 1))

	for i := 0; i < days; i++ {
		open := last
		last = last * math.Exp(0.0003+0.015*rng.NormFloat64())
		high := math.Max(open, last) * (1.0 + 0.002*rng.Float64())
		low := math.Min(open, last) * (1.0 - 0.002*rng.Float64())
		volume := 1.0e6 * (0.5 + rng.Float64())

		prices[i] = universe.DailyPrice{
			Date:   start.AddDate(0, 0, i).Format("2006-01-02"),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  last,
			Volume: &volume,
		}
	}
	return prices
}

// NewTrendingPrices returns bars whose closes oscillate around a linear
// trend. A positive step per day produces a clean uptrend without pinning
// RSI at 100; a negative step produces the matching downtrend.
func NewTrendingPrices(days int, end time.Time, startPrice, dailyStep float64) []universe.DailyPrice {
	prices := make([]universe.DailyPrice, days)
	start := end.AddDate(0, 0, -(days - 1))

	last := startPrice
	for i := 0; i < days; i++ {
		open := last
		last = startPrice + dailyStep*float64(i) + 2.0*math.Sin(float64(i)*0.7)
		high := math.Max(open, last) * 1.002
		low := math.Min(open, last) * 0.998
		volume := 1.2e6

		prices[i] = universe.DailyPrice{
			Date:   start.AddDate(0, 0, i).Format("2006-01-02"),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  last,
			Volume: &volume,
		}
	}
	return prices
}
