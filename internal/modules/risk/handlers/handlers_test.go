package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/risk"
)

// stubHistory serves canned close series per symbol.
type stubHistory struct {
	closes map[string][]float64
}

func (s *stubHistory) Closes(_ context.Context, symbol string, _ int) ([]float64, error) {
	series, ok := s.closes[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return series, nil
}

func newTestRouter(t *testing.T, history HistorySource) *chi.Mux {
	t.Helper()

	calc := risk.NewCalculator(0.02, zerolog.Nop())
	handler := NewHandler(calc, history, zerolog.Nop())

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router
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

func decodeMetrics(t *testing.T, rec *httptest.ResponseRecorder) risk.Metrics {
	t.Helper()

	var response struct {
		Data risk.Metrics `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	return response.Data
}

func TestHandleComputeMetrics_InlineReturns(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := postJSON(t, router, "/risk/metrics", map[string]any{
		"weights": map[string]float64{"7203": 0.6, "6758": 0.4},
		"returns": map[string][]float64{
			"7203": {0.01, -0.02, 0.015, -0.005, 0.02, -0.01},
			"6758": {0.005, 0.01, -0.01, 0.02, -0.015, 0.005},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	metrics := decodeMetrics(t, rec)
	assert.Equal(t, 6, metrics.SampleCount)
	assert.Greater(t, metrics.Volatility, 0.0)
	assert.LessOrEqual(t, metrics.MaxDrawdown, 0.0)
	assert.LessOrEqual(t, metrics.VaR95, 0.0)
	assert.LessOrEqual(t, metrics.CVaR95, metrics.VaR95)
	assert.InDelta(t, 1.0, metrics.Beta, 1e-12, "no benchmark keeps the neutral beta")
	assert.Zero(t, metrics.InformationRatio)
}

func TestHandleComputeMetrics_ResolvesHistory(t *testing.T) {
	history := &stubHistory{closes: map[string][]float64{
		"7203": {100, 102, 101, 103, 105, 104, 106},
		"6758": {50, 51, 50.5, 52, 51.5, 53, 52.5},
	}}
	router := newTestRouter(t, history)

	rec := postJSON(t, router, "/risk/metrics", map[string]any{
		"weights":       map[string]float64{"7203": 0.5, "6758": 0.5},
		"lookback_days": 30,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	metrics := decodeMetrics(t, rec)
	assert.Equal(t, 6, metrics.SampleCount)
	assert.Greater(t, metrics.Volatility, 0.0)
}

func TestHandleComputeMetrics_Validation(t *testing.T) {
	router := newTestRouter(t, nil)

	t.Run("missing weights", func(t *testing.T) {
		rec := postJSON(t, router, "/risk/metrics", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing return series for a symbol", func(t *testing.T) {
		rec := postJSON(t, router, "/risk/metrics", map[string]any{
			"weights": map[string]float64{"7203": 1.0},
			"returns": map[string][]float64{"6758": {0.01}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "7203")
	})

	t.Run("no history store configured", func(t *testing.T) {
		rec := postJSON(t, router, "/risk/metrics", map[string]any{
			"weights": map[string]float64{"7203": 1.0},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleComputeMetrics_InsufficientHistory(t *testing.T) {
	history := &stubHistory{closes: map[string][]float64{"7203": {100}}}
	router := newTestRouter(t, history)

	rec := postJSON(t, router, "/risk/metrics", map[string]any{
		"weights": map[string]float64{"7203": 1.0},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Insufficient price history")
}

func TestHandleComputeMetrics_WithBenchmark(t *testing.T) {
	router := newTestRouter(t, nil)

	// Portfolio returns exactly track the benchmark, so beta must be 1 and
	// the information ratio 0.
	series := []float64{0.01, -0.02, 0.015, -0.005, 0.02, -0.01}
	rec := postJSON(t, router, "/risk/metrics", map[string]any{
		"weights":   map[string]float64{"7203": 1.0},
		"returns":   map[string][]float64{"7203": series},
		"benchmark": series,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	metrics := decodeMetrics(t, rec)
	assert.InDelta(t, 1.0, metrics.Beta, 1e-9)
	assert.Zero(t, metrics.InformationRatio)
}

func TestHandleMonteCarloCVaR(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := postJSON(t, router, "/risk/cvar/montecarlo", map[string]any{
		"mean":    0.0005,
		"std_dev": 0.01,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Data struct {
			CVaR        float64 `json:"cvar"`
			Simulations int     `json:"simulations"`
			Confidence  float64 `json:"confidence"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Less(t, response.Data.CVaR, 0.0, "the loss tail of a near-zero-mean normal is negative")
	assert.Equal(t, 10000, response.Data.Simulations)
	assert.InDelta(t, 0.95, response.Data.Confidence, 1e-12)
}

func TestHandleMonteCarloCVaR_Validation(t *testing.T) {
	router := newTestRouter(t, nil)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"negative std dev", map[string]any{"mean": 0, "std_dev": -0.1}},
		{"too many simulations", map[string]any{"mean": 0, "std_dev": 0.01, "simulations": 2000000}},
		{"confidence out of range", map[string]any{"mean": 0, "std_dev": 0.01, "confidence": 1.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, router, "/risk/cvar/montecarlo", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleSymbolVolatility(t *testing.T) {
	history := &stubHistory{closes: map[string][]float64{
		"7203": {100, 102, 101, 103, 105},
	}}
	router := newTestRouter(t, history)

	req := httptest.NewRequest(http.MethodGet, "/risk/symbols/7203/volatility", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Data struct {
			Symbol      string  `json:"symbol"`
			Volatility  float64 `json:"annualized_volatility"`
			SampleCount int     `json:"sample_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Equal(t, "7203", response.Data.Symbol)
	assert.Greater(t, response.Data.Volatility, 0.0)
	assert.Equal(t, 4, response.Data.SampleCount)
}

func TestHandleSymbolVolatility_NoHistoryStore(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/risk/symbols/7203/volatility", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
