package universe_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/optimization"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/universe"
	enginetest "github.com/appadaycreator/jquants-stock-prediction-sub005/internal/testing"
)

func newTestHistoryDB(t *testing.T) *universe.HistoryDB {
	t.Helper()
	db := enginetest.NewTestDB(t)
	return universe.NewHistoryDB(db.Conn(), zerolog.Nop())
}

func floatPtr(f float64) *float64 {
	return &f
}

func bar(date string, open, high, low, close float64, volume *float64) universe.DailyPrice {
	return universe.DailyPrice{Date: date, Open: open, High: high, Low: low, Close: close, Volume: volume}
}

func TestUpsertAndFetchDailyPrices(t *testing.T) {
	history := newTestHistoryDB(t)

	prices := []universe.DailyPrice{
		bar("2024-01-03", 102, 104, 101, 103, floatPtr(1.5e6)),
		bar("2024-01-01", 100, 101, 99, 100.5, nil),
		bar("2024-01-02", 100.5, 103, 100, 102, floatPtr(1.2e6)),
	}
	require.NoError(t, history.UpsertPrices("7203.T", prices))

	stored, err := history.DailyPrices(context.Background(), "7203.T", 0)
	require.NoError(t, err)
	require.Len(t, stored, 3)

	assert.Equal(t, "2024-01-01", stored[0].Date, "bars come back oldest first")
	assert.Equal(t, "2024-01-02", stored[1].Date)
	assert.Equal(t, "2024-01-03", stored[2].Date)

	assert.Equal(t, 100.5, stored[0].Close)
	assert.Nil(t, stored[0].Volume)
	require.NotNil(t, stored[1].Volume)
	assert.Equal(t, 1.2e6, *stored[1].Volume)
	assert.Equal(t, 104.0, stored[2].High)
	assert.Equal(t, 101.0, stored[2].Low)
}

func TestDailyPrices_LimitKeepsMostRecent(t *testing.T) {
	history := newTestHistoryDB(t)

	var prices []universe.DailyPrice
	for day := 1; day <= 5; day++ {
		date := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		prices = append(prices, bar(date, 100, 101, 99, 100+float64(day), nil))
	}
	require.NoError(t, history.UpsertPrices("6758.T", prices))

	stored, err := history.DailyPrices(context.Background(), "6758.T", 2)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "2024-01-04", stored[0].Date)
	assert.Equal(t, "2024-01-05", stored[1].Date)
}

func TestUpsertPrices_ReplacesSameDay(t *testing.T) {
	history := newTestHistoryDB(t)

	require.NoError(t, history.UpsertPrices("7203.T", []universe.DailyPrice{
		bar("2024-01-01", 100, 101, 99, 100, nil),
	}))
	require.NoError(t, history.UpsertPrices("7203.T", []universe.DailyPrice{
		bar("2024-01-01", 100, 102, 99, 101.5, floatPtr(2e6)),
	}))

	stored, err := history.DailyPrices(context.Background(), "7203.T", 0)
	require.NoError(t, err)
	require.Len(t, stored, 1, "same-day ingest replaces the row")
	assert.Equal(t, 101.5, stored[0].Close)
	require.NotNil(t, stored[0].Volume)
	assert.Equal(t, 2e6, *stored[0].Volume)
}

func TestUpsertPrices_BadDateRollsBackBatch(t *testing.T) {
	history := newTestHistoryDB(t)

	require.NoError(t, history.UpsertPrices("7203.T", []universe.DailyPrice{
		bar("2024-01-01", 100, 101, 99, 100, nil),
	}))

	err := history.UpsertPrices("7203.T", []universe.DailyPrice{
		bar("2024-01-02", 100, 101, 99, 100.5, nil),
		bar("not-a-date", 100, 101, 99, 101, nil),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse date")

	stored, err := history.DailyPrices(context.Background(), "7203.T", 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "the failed batch leaves no partial rows")
}

func TestUpsertPrices_EmptyBatchIsANoOp(t *testing.T) {
	history := newTestHistoryDB(t)
	require.NoError(t, history.UpsertPrices("7203.T", nil))

	assert.Error(t, history.UpsertPrices("", []universe.DailyPrice{
		bar("2024-01-01", 100, 101, 99, 100, nil),
	}))
}

func TestCloses(t *testing.T) {
	history := newTestHistoryDB(t)

	closes := []float64{100, 102, 101, 103, 105, 104, 106}
	var prices []universe.DailyPrice
	for i, c := range closes {
		date := time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		prices = append(prices, bar(date, c, c*1.01, c*0.99, c, nil))
	}
	require.NoError(t, history.UpsertPrices("7203.T", prices))

	got, err := history.Closes(context.Background(), "7203.T", 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{101, 103, 105, 104, 106}, got, "the most recent closes, oldest first")

	all, err := history.Closes(context.Background(), "7203.T", 0)
	require.NoError(t, err)
	assert.Equal(t, closes, all, "non-positive lookback falls back to the default window")

	missing, err := history.Closes(context.Background(), "9999.T", 5)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestRecords(t *testing.T) {
	history := newTestHistoryDB(t)
	end := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

	for _, symbol := range []string{"7203.T", "6758.T"} {
		require.NoError(t, history.UpsertPrices(symbol, enginetest.NewDailyPriceFixtures(symbol, 40, end)))
	}
	require.NoError(t, history.UpsertSymbolMeta(universe.SymbolInfo{
		Symbol:    "7203.T",
		Name:      "Toyota Motor",
		Sector:    "Automotive",
		MarketCap: 35.0e12,
	}))

	records, err := history.Records(context.Background(), []string{"7203.T", "6758.T"}, 30)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "7203.T", records[0].Symbol)
	assert.Len(t, records[0].Samples, 30, "lookback caps the sample count")
	assert.Equal(t, "Automotive", records[0].Sector)
	assert.Equal(t, 35.0e12, records[0].MarketCap)
	require.NotNil(t, records[0].Samples[0].Volume)

	assert.Equal(t, "6758.T", records[1].Symbol)
	assert.Empty(t, records[1].Sector, "symbols without metadata still resolve")
}

func TestRecords_UnknownSymbol(t *testing.T) {
	history := newTestHistoryDB(t)

	_, err := history.Records(context.Background(), []string{"9999.T"}, 30)
	require.Error(t, err)
	assert.ErrorIs(t, err, optimization.ErrNoHistory)
	assert.Contains(t, err.Error(), "9999.T")
}

func TestListSymbols(t *testing.T) {
	history := newTestHistoryDB(t)

	require.NoError(t, history.UpsertPrices("7203.T", []universe.DailyPrice{
		bar("2024-01-01", 100, 101, 99, 100, nil),
		bar("2024-01-02", 100, 102, 99, 101, nil),
		bar("2024-01-03", 101, 103, 100, 102, nil),
	}))
	require.NoError(t, history.UpsertPrices("6758.T", []universe.DailyPrice{
		bar("2024-01-02", 50, 51, 49, 50.5, nil),
	}))
	require.NoError(t, history.UpsertSymbolMeta(universe.SymbolInfo{
		Symbol: "7203.T",
		Name:   "Toyota Motor",
		Sector: "Automotive",
	}))

	infos, err := history.ListSymbols(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "6758.T", infos[0].Symbol, "symbols list alphabetically")
	assert.Empty(t, infos[0].Name)
	assert.Equal(t, 1, infos[0].Observations)
	assert.Equal(t, "2024-01-02", infos[0].FirstDate)
	assert.Equal(t, "2024-01-02", infos[0].LastDate)

	assert.Equal(t, "7203.T", infos[1].Symbol)
	assert.Equal(t, "Toyota Motor", infos[1].Name)
	assert.Equal(t, 3, infos[1].Observations)
	assert.Equal(t, "2024-01-01", infos[1].FirstDate)
	assert.Equal(t, "2024-01-03", infos[1].LastDate)
}

func TestDeleteOlderThan(t *testing.T) {
	history := newTestHistoryDB(t)

	var prices []universe.DailyPrice
	for day := 1; day <= 5; day++ {
		date := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		prices = append(prices, bar(date, 100, 101, 99, 100, nil))
	}
	require.NoError(t, history.UpsertPrices("7203.T", prices))

	cutoff := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	deleted, err := history.DeleteOlderThan(cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	stored, err := history.DailyPrices(context.Background(), "7203.T", 0)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "2024-01-04", stored[0].Date)

	deleted, err = history.DeleteOlderThan(cutoff)
	require.NoError(t, err)
	assert.Zero(t, deleted, "a second pass finds nothing to delete")
}
