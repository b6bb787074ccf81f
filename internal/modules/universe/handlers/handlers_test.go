package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/events"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/universe"
	enginetest "github.com/appadaycreator/jquants-stock-prediction-sub005/internal/testing"
)

var testEnd = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	router  *chi.Mux
	history *universe.HistoryDB
	bus     *events.Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := enginetest.NewTestDB(t)
	history := universe.NewHistoryDB(db.Conn(), zerolog.Nop())
	validator := universe.NewPriceValidator(zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())

	handler := NewHandler(history, validator, bus, zerolog.Nop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	return &testEnv{router: router, history: history, bus: bus}
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var response struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	return response.Data
}

func seriesPayload(symbol string, prices []universe.DailyPrice) map[string]any {
	return map[string]any{"symbol": symbol, "prices": prices}
}

func TestIngestPrices_StoresAndReports(t *testing.T) {
	env := newTestEnv(t)

	var published []*events.Event
	env.bus.Subscribe(events.PricesIngested, func(e *events.Event) {
		published = append(published, e)
	})

	toyota := seriesPayload("7203.T", enginetest.NewDailyPriceFixtures("7203.T", 40, testEnd))
	toyota["name"] = "Toyota Motor"
	toyota["sector"] = "Automotive"
	toyota["market_cap"] = 35.0e12
	sony := seriesPayload("6758.T", enginetest.NewDailyPriceFixtures("6758.T", 35, testEnd))

	rec := postJSON(t, env.router, "/universe/prices", map[string]any{
		"series": []map[string]any{toyota, sony},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	summary := decodeData[ingestSummary](t, rec)
	assert.Equal(t, 2, summary.Symbols)
	assert.Equal(t, 75, summary.Rows)
	assert.Zero(t, summary.Interpolated)

	rec = getPath(t, env.router, "/universe/symbols")
	require.Equal(t, http.StatusOK, rec.Code)
	symbols := decodeData[[]universe.SymbolInfo](t, rec)
	require.Len(t, symbols, 2)
	assert.Equal(t, "6758.T", symbols[0].Symbol)
	assert.Equal(t, 35, symbols[0].Observations)
	assert.Equal(t, "7203.T", symbols[1].Symbol)
	assert.Equal(t, "Toyota Motor", symbols[1].Name)
	assert.Equal(t, 40, symbols[1].Observations)

	require.Len(t, published, 1)
	data, ok := published[0].Data.(*events.PricesIngestedData)
	require.True(t, ok)
	assert.Equal(t, 2, data.Symbols)
	assert.Equal(t, 75, data.Rows)
}

func TestIngestPrices_RepairsAbnormalBars(t *testing.T) {
	env := newTestEnv(t)

	// Seed a month of history so the second batch is validated with context.
	seed := enginetest.NewTrendingPrices(30, testEnd.AddDate(0, 0, -3), 100, 0.1)
	rec := postJSON(t, env.router, "/universe/prices", map[string]any{
		"series": []map[string]any{seriesPayload("7203.T", seed)},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	lastClose := seed[len(seed)-1].Close
	batch := []universe.DailyPrice{
		{Date: "2024-06-26", Open: lastClose, High: lastClose * 1.02, Low: lastClose * 0.99, Close: lastClose * 1.01},
		{Date: "2024-06-27", Open: lastClose, High: lastClose * 51, Low: lastClose * 0.99, Close: lastClose * 50},
		{Date: "2024-06-28", Open: lastClose, High: lastClose * 1.03, Low: lastClose * 0.98, Close: lastClose * 1.02},
	}
	rec = postJSON(t, env.router, "/universe/prices", map[string]any{
		"series": []map[string]any{seriesPayload("7203.T", batch)},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	summary := decodeData[ingestSummary](t, rec)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, 1, summary.Interpolated)

	rec = getPath(t, env.router, "/universe/symbols/7203.T/prices?limit=3")
	require.Equal(t, http.StatusOK, rec.Code)
	prices := decodeData[[]universe.DailyPrice](t, rec)
	require.Len(t, prices, 3)

	expected := (batch[0].Close + batch[2].Close) / 2
	assert.InDelta(t, expected, prices[1].Close, 1e-9, "the spike is replaced by its neighbors' midpoint")
}

func TestIngestPrices_Validation(t *testing.T) {
	env := newTestEnv(t)

	t.Run("empty request", func(t *testing.T) {
		rec := postJSON(t, env.router, "/universe/prices", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing symbol", func(t *testing.T) {
		rec := postJSON(t, env.router, "/universe/prices", map[string]any{
			"series": []map[string]any{seriesPayload("", enginetest.NewDailyPriceFixtures("X", 5, testEnd))},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing prices", func(t *testing.T) {
		rec := postJSON(t, env.router, "/universe/prices", map[string]any{
			"series": []map[string]any{{"symbol": "7203.T"}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/universe/prices", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListSymbols_EmptyUniverse(t *testing.T) {
	env := newTestEnv(t)

	rec := getPath(t, env.router, "/universe/symbols")
	require.Equal(t, http.StatusOK, rec.Code)

	symbols := decodeData[[]universe.SymbolInfo](t, rec)
	assert.Empty(t, symbols)
	assert.Contains(t, rec.Body.String(), `"data":[]`, "an empty universe is a JSON array, not null")
}

func TestGetPrices(t *testing.T) {
	env := newTestEnv(t)

	rec := postJSON(t, env.router, "/universe/prices", map[string]any{
		"series": []map[string]any{seriesPayload("7203.T", enginetest.NewDailyPriceFixtures("7203.T", 10, testEnd))},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("limit caps to most recent", func(t *testing.T) {
		rec := getPath(t, env.router, "/universe/symbols/7203.T/prices?limit=5")
		require.Equal(t, http.StatusOK, rec.Code)

		prices := decodeData[[]universe.DailyPrice](t, rec)
		require.Len(t, prices, 5)
		assert.Equal(t, "2024-06-28", prices[4].Date, "the newest bar comes last")
		assert.Less(t, prices[0].Date, prices[4].Date)
	})

	t.Run("no limit returns everything", func(t *testing.T) {
		rec := getPath(t, env.router, "/universe/symbols/7203.T/prices")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeData[[]universe.DailyPrice](t, rec), 10)
	})

	t.Run("invalid limit", func(t *testing.T) {
		rec := getPath(t, env.router, "/universe/symbols/7203.T/prices?limit=zero")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown symbol", func(t *testing.T) {
		rec := getPath(t, env.router, "/universe/symbols/9999.T/prices")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestScreen_EndToEnd(t *testing.T) {
	env := newTestEnv(t)

	var published []*events.Event
	env.bus.Subscribe(events.UniverseScreened, func(e *events.Event) {
		published = append(published, e)
	})

	rec := postJSON(t, env.router, "/universe/prices", map[string]any{
		"series": []map[string]any{
			seriesPayload("7203.T", enginetest.NewTrendingPrices(120, testEnd, 100, 0.05)),
			seriesPayload("6758.T", enginetest.NewTrendingPrices(120, testEnd, 120, -0.05)),
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, env.router, "/universe/screen", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	summary := decodeData[screenSummary](t, rec)
	assert.Equal(t, 2, summary.Candidates)
	assert.Equal(t, 1, summary.Passed)
	require.Len(t, summary.Results, 2)

	byResult := make(map[string]universe.ScreenResult, len(summary.Results))
	for _, r := range summary.Results {
		byResult[r.Symbol] = r
	}
	assert.True(t, byResult["7203.T"].Passed)
	assert.False(t, byResult["6758.T"].Passed)
	assert.Contains(t, byResult["6758.T"].Reasons, "downtrend")

	require.Len(t, published, 1)
	data, ok := published[0].Data.(*events.UniverseScreenedData)
	require.True(t, ok)
	assert.Equal(t, 2, data.Candidates)
	assert.Equal(t, 1, data.Passed)
}

func TestScreen_SubsetWithOverrides(t *testing.T) {
	env := newTestEnv(t)

	rec := postJSON(t, env.router, "/universe/prices", map[string]any{
		"series": []map[string]any{
			seriesPayload("7203.T", enginetest.NewTrendingPrices(120, testEnd, 100, 0.05)),
			seriesPayload("6758.T", enginetest.NewTrendingPrices(120, testEnd, 120, -0.05)),
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, env.router, "/universe/screen", map[string]any{
		"symbols":         []string{"6758.T"},
		"require_uptrend": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	summary := decodeData[screenSummary](t, rec)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "6758.T", summary.Results[0].Symbol)
	assert.True(t, summary.Results[0].Passed, "with the trend check disabled the downtrend passes: %v", summary.Results[0].Reasons)
	assert.Equal(t, 1, summary.Passed)
}

func TestScreen_MalformedBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/universe/screen", bytes.NewReader([]byte("[")))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestPrices_TooManySeries(t *testing.T) {
	env := newTestEnv(t)

	series := make([]map[string]any, maxSeriesPerRequest+1)
	for i := range series {
		series[i] = seriesPayload(fmt.Sprintf("S%04d.T", i), []universe.DailyPrice{
			{Date: "2024-01-01", Open: 100, High: 101, Low: 99, Close: 100},
		})
	}

	rec := postJSON(t, env.router, "/universe/prices", map[string]any{"series": series})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
