package handlers

import (
	"bytes"
	"encoding/json"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/events"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/optimization"
)

func newTestRouter(t *testing.T, bus *events.Bus) *chi.Mux {
	t.Helper()

	service := optimization.NewService(optimization.DefaultConfig(), nil, zerolog.Nop())
	handler := NewHandler(service, nil, nil, bus, zerolog.Nop())

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func testAssets(symbols []string, samples int) []optimization.AssetRecord {
	rng := rand.New(rand.NewSource(7))
	records := make([]optimization.AssetRecord, len(symbols))
	for i, symbol := range symbols {
		price := 100.0 + float64(i)*10
		recs := make([]optimization.PriceSample, samples)
		for j := 0; j < samples; j++ {
			price *= math.Exp(0.0002 + 0.01*rng.NormFloat64())
			volume := 1e6 * (1 + rng.Float64())
			recs[j] = optimization.PriceSample{Close: price, Volume: &volume}
		}
		records[i] = optimization.AssetRecord{Symbol: symbol, Samples: recs}
	}
	return records
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

func TestHandleOptimize_InlineAssets(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	var published *events.Event
	bus.Subscribe(events.OptimizationCompleted, func(event *events.Event) {
		published = event
	})

	router := newTestRouter(t, bus)

	rec := postJSON(t, router, "/optimization/optimize", map[string]any{
		"method": "risk_parity",
		"assets": testAssets([]string{"7203", "6758", "9984", "8306"}, 120),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Data optimization.OptimizationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	result := response.Data
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, optimization.MethodRiskParity, result.Method)
	assert.Equal(t, 4, result.Weights.Len())
	assert.InDelta(t, 1.0, result.Weights.Sum(), 1e-3)
	assert.True(t, result.Converged)

	require.NotNil(t, published)
	data, ok := published.Data.(*events.OptimizationCompletedData)
	require.True(t, ok)
	assert.Equal(t, result.ID, data.ResultID)
}

func TestHandleOptimize_DefaultsToMaxSharpe(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := postJSON(t, router, "/optimization/optimize", map[string]any{
		"assets": testAssets([]string{"7203", "6758", "9984"}, 90),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Data optimization.OptimizationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, optimization.MethodMaxSharpe, response.Data.Method)
}

func TestHandleOptimize_NeutralResultOnThinHistory(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := postJSON(t, router, "/optimization/optimize", map[string]any{
		"method": "max_sharpe",
		"assets": testAssets([]string{"7203", "6758"}, 2),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Data optimization.OptimizationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	result := response.Data
	assert.Equal(t, 0, result.Weights.Len())
	assert.False(t, result.Converged)
	assert.NotEmpty(t, result.Warning)
	assert.Equal(t, optimization.RiskLow, result.RiskLevel)
}

func TestHandleOptimize_RejectsUnknownMethod(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := postJSON(t, router, "/optimization/optimize", map[string]any{
		"method": "quantum_annealing",
		"assets": testAssets([]string{"7203", "6758"}, 30),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestHandleOptimize_RejectsAssetsAndSymbolsTogether(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := postJSON(t, router, "/optimization/optimize", map[string]any{
		"method":  "max_sharpe",
		"assets":  testAssets([]string{"7203"}, 30),
		"symbols": []string{"6758"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleOptimize_RejectsSymbolsWithoutRecordSource(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := postJSON(t, router, "/optimization/optimize", map[string]any{
		"method":  "max_sharpe",
		"symbols": []string{"7203", "6758"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListMethods(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/optimization/methods", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Data struct {
			Methods []string `json:"methods"`
			Default string   `json:"default"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Contains(t, response.Data.Methods, "max_sharpe")
	assert.Contains(t, response.Data.Methods, "risk_parity")
	assert.Contains(t, response.Data.Methods, "hrp")
	assert.Equal(t, "max_sharpe", response.Data.Default)
}

func TestHandleResults_NotFoundWithoutRepository(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/optimization/results", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterRoutes_RoutePrefix(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/optimize", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "Route without /optimization prefix should return 404")
}
