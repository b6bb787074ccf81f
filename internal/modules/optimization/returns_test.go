package optimization

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReturnEstimator() *ReturnEstimator {
	return NewReturnEstimator(DefaultConfig(), zerolog.Nop())
}

func seriesWithReturns(symbol string, returns []float64, volatility float64) AssetSeries {
	return AssetSeries{Symbol: symbol, Returns: returns, Volatility: volatility}
}

func TestHistoricalRiskAdjusted_ClipsAtBounds(t *testing.T) {
	est := testReturnEstimator()

	// Constant positive drift with zero volatility blows the ratio up; it
	// must clip at +0.5. The mirrored series clips at -0.5.
	series := []AssetSeries{
		seriesWithReturns("up", []float64{0.001, 0.001, 0.001}, 0),
		seriesWithReturns("down", []float64{-0.001, -0.001, -0.001}, 0),
	}

	mu := est.HistoricalRiskAdjusted(series)
	require.Len(t, mu, 2)
	assert.Equal(t, ExpectedReturnClipMax, mu[0])
	assert.Equal(t, ExpectedReturnClipMin, mu[1])
}

func TestHistoricalRiskAdjusted_RatioOfAnnualizedMeanToVol(t *testing.T) {
	est := testReturnEstimator()

	// Daily mean 0.001 annualizes to 0.252; with annualized vol 0.9 the
	// risk-adjusted figure is 0.28, inside the clip bounds.
	series := []AssetSeries{
		seriesWithReturns("a", []float64{0.002, 0.000, 0.001}, 0.9),
	}

	mu := est.HistoricalRiskAdjusted(series)
	require.Len(t, mu, 1)
	assert.InDelta(t, 0.252/0.9, mu[0], 1e-9)
}

func TestMarketImplied_EqualWeightDotProduct(t *testing.T) {
	est := testReturnEstimator()

	series := []AssetSeries{
		seriesWithReturns("a", []float64{0.001, 0.001}, 0.2),
		seriesWithReturns("b", []float64{0.003, 0.003}, 0.2),
	}

	// Equal-weight dot of annualized mean returns: (0.252 + 0.756) / 2.
	implied := est.MarketImplied(series)
	assert.InDelta(t, (0.001*252+0.003*252)/2, implied, 1e-9)
}

func TestBlackLittermanPosterior_CovarianceTilt(t *testing.T) {
	est := testReturnEstimator()

	cov := [][]float64{
		{0.04, 0.01},
		{0.01, 0.09},
	}
	posterior := est.BlackLittermanPosterior(cov, []float64{0.5, 0.5})
	require.Len(t, posterior, 2)

	// riskAversion * Sigma * w with riskAversion = 3.
	assert.InDelta(t, 3.0*(0.04*0.5+0.01*0.5), posterior[0], 1e-12)
	assert.InDelta(t, 3.0*(0.01*0.5+0.09*0.5), posterior[1], 1e-12)
}

func TestBlackLittermanPosterior_BadMarketWeightsFallBackToEqual(t *testing.T) {
	est := testReturnEstimator()

	cov := [][]float64{
		{0.04, 0.01},
		{0.01, 0.09},
	}
	withMismatch := est.BlackLittermanPosterior(cov, []float64{1.0})
	withEqual := est.BlackLittermanPosterior(cov, []float64{0.5, 0.5})
	assert.Equal(t, withEqual, withMismatch)
}

func TestExpectedReturns_DispatchesByMethod(t *testing.T) {
	est := testReturnEstimator()

	series := []AssetSeries{
		seriesWithReturns("a", []float64{0.002, 0.001, 0.003}, 0.3),
		seriesWithReturns("b", []float64{-0.001, 0.000, 0.001}, 0.2),
	}
	cov := [][]float64{
		{0.09, 0.01},
		{0.01, 0.04},
	}
	market := []float64{0.5, 0.5}

	historical := est.ExpectedReturns(MethodMaxSharpe, series, cov, market)
	assert.Equal(t, est.HistoricalRiskAdjusted(series), historical)

	posterior := est.ExpectedReturns(MethodBlackLitterman, series, cov, market)
	assert.Equal(t, est.BlackLittermanPosterior(cov, market), posterior)
}
