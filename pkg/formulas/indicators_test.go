package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateRSI(t *testing.T) {
	t.Run("insufficient data", func(t *testing.T) {
		closes := []float64{100, 101, 102}
		assert.Nil(t, CalculateRSI(closes, 14))
	})

	t.Run("all gains saturate at 100", func(t *testing.T) {
		closes := make([]float64, 30)
		for i := range closes {
			closes[i] = 100 + float64(i)
		}

		rsi := CalculateRSI(closes, 14)
		require.NotNil(t, rsi)
		assert.GreaterOrEqual(t, *rsi, 99.0)
	})

	t.Run("all losses approach 0", func(t *testing.T) {
		closes := make([]float64, 30)
		for i := range closes {
			closes[i] = 100 - float64(i)
		}

		rsi := CalculateRSI(closes, 14)
		require.NotNil(t, rsi)
		assert.LessOrEqual(t, *rsi, 1.0)
	})
}

func TestCalculateSMA(t *testing.T) {
	t.Run("insufficient data", func(t *testing.T) {
		assert.Nil(t, CalculateSMA([]float64{1, 2, 3}, 5))
		assert.Nil(t, CalculateSMA([]float64{1, 2, 3}, 0))
	})

	t.Run("known value", func(t *testing.T) {
		values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
		sma := CalculateSMA(values, 5)
		require.NotNil(t, sma)
		assert.InDelta(t, 8.0, *sma, 1e-9)
	})
}
