// Package handlers provides HTTP handlers for risk metrics operations.
package handlers

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/risk"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/pkg/formulas"
)

// Simulation guardrails for the Monte Carlo endpoint.
const (
	defaultSimulations = 10000
	maxSimulations     = 1000000
	defaultConfidence  = 0.95
)

// HistorySource resolves a symbol to its stored daily closes, oldest first.
// The universe module's history store implements it.
type HistorySource interface {
	Closes(ctx context.Context, symbol string, lookbackDays int) ([]float64, error)
}

// Handler handles risk metrics HTTP requests.
type Handler struct {
	calc    *risk.Calculator
	history HistorySource
	log     zerolog.Logger
}

// NewHandler creates a new risk metrics handler. history may be nil; the
// symbol-resolved request shapes then return an explanatory error.
func NewHandler(calc *risk.Calculator, history HistorySource, log zerolog.Logger) *Handler {
	return &Handler{
		calc:    calc,
		history: history,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

type metricsRequest struct {
	// Weights maps symbol to portfolio weight. The keys define the universe.
	Weights map[string]float64 `json:"weights"`
	// Returns optionally supplies each symbol's periodic return series
	// inline. When absent, closes are resolved from the history store.
	Returns      map[string][]float64 `json:"returns,omitempty"`
	LookbackDays int                  `json:"lookback_days,omitempty"`
	// Benchmark is an optional market return series enabling the
	// benchmark-relative metrics.
	Benchmark []float64 `json:"benchmark,omitempty"`
}

// HandleComputeMetrics handles POST /api/risk/metrics.
func (h *Handler) HandleComputeMetrics(w http.ResponseWriter, r *http.Request) {
	var request metricsRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(request.Weights) == 0 {
		h.writeError(w, http.StatusBadRequest, "Weights are required")
		return
	}

	symbols := make([]string, 0, len(request.Weights))
	for symbol := range request.Weights {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	weights := make([]float64, len(symbols))
	for i, symbol := range symbols {
		weights[i] = request.Weights[symbol]
	}

	matrix, ok := h.resolveReturns(w, r.Context(), symbols, request)
	if !ok {
		return
	}

	start := time.Now()
	metrics, err := h.calc.Calculate(weights, matrix, request.Benchmark)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Risk calculation rejected: "+err.Error())
		return
	}

	h.log.Info().
		Int("assets", len(symbols)).
		Int("samples", metrics.SampleCount).
		Bool("benchmark", len(request.Benchmark) > 0).
		Dur("elapsed", time.Since(start)).
		Msg("Risk metrics computed")

	h.writeJSON(w, http.StatusOK, envelope(metrics))
}

// resolveReturns builds the (asset × time) return matrix for the request,
// writing the HTTP error itself when resolution fails.
func (h *Handler) resolveReturns(w http.ResponseWriter, ctx context.Context, symbols []string, request metricsRequest) ([][]float64, bool) {
	matrix := make([][]float64, len(symbols))

	if len(request.Returns) > 0 {
		for i, symbol := range symbols {
			series, ok := request.Returns[symbol]
			if !ok {
				h.writeError(w, http.StatusBadRequest, "No return series supplied for symbol "+symbol)
				return nil, false
			}
			matrix[i] = series
		}
		return matrix, true
	}

	if h.history == nil {
		h.writeError(w, http.StatusBadRequest, "No returns supplied and no history store configured")
		return nil, false
	}

	lookback := request.LookbackDays
	if lookback <= 0 {
		lookback = formulas.TradingDaysPerYear
	}

	for i, symbol := range symbols {
		closes, err := h.history.Closes(ctx, symbol, lookback)
		if err != nil {
			h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load price history")
			h.writeError(w, http.StatusInternalServerError, "Failed to load price history for "+symbol)
			return nil, false
		}
		returns := formulas.LogReturns(closes)
		if len(returns) == 0 {
			h.writeError(w, http.StatusBadRequest, "Insufficient price history for symbol "+symbol)
			return nil, false
		}
		matrix[i] = returns
	}
	return matrix, true
}

type monteCarloRequest struct {
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"std_dev"`
	Simulations int     `json:"simulations,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// HandleMonteCarloCVaR handles POST /api/risk/cvar/montecarlo: a parametric
// CVaR estimate from simulated normal returns, for when the historical
// window is too short for a stable tail.
func (h *Handler) HandleMonteCarloCVaR(w http.ResponseWriter, r *http.Request) {
	var request monteCarloRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if math.IsNaN(request.Mean) || math.IsInf(request.Mean, 0) || math.IsNaN(request.StdDev) || math.IsInf(request.StdDev, 0) {
		h.writeError(w, http.StatusBadRequest, "Mean and std_dev must be finite")
		return
	}
	if request.StdDev < 0 {
		h.writeError(w, http.StatusBadRequest, "std_dev must be non-negative")
		return
	}

	simulations := request.Simulations
	if simulations == 0 {
		simulations = defaultSimulations
	}
	if simulations < 1 || simulations > maxSimulations {
		h.writeError(w, http.StatusBadRequest, "simulations must be between 1 and 1000000")
		return
	}

	confidence := request.Confidence
	if confidence == 0 {
		confidence = defaultConfidence
	}
	if confidence <= 0 || confidence >= 1 {
		h.writeError(w, http.StatusBadRequest, "confidence must be strictly between 0 and 1")
		return
	}

	start := time.Now()
	cvar := formulas.MonteCarloCVaR(request.Mean, request.StdDev, simulations, confidence)

	h.log.Info().
		Int("simulations", simulations).
		Float64("confidence", confidence).
		Dur("elapsed", time.Since(start)).
		Msg("Monte Carlo CVaR computed")

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"cvar":        cvar,
		"mean":        request.Mean,
		"std_dev":     request.StdDev,
		"simulations": simulations,
		"confidence":  confidence,
		"method":      "monte_carlo_normal",
	}))
}

// HandleSymbolVolatility handles GET /api/risk/symbols/{symbol}/volatility.
func (h *Handler) HandleSymbolVolatility(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	if h.history == nil {
		h.writeError(w, http.StatusNotFound, "History store is not configured")
		return
	}

	closes, err := h.history.Closes(r.Context(), symbol, formulas.TradingDaysPerYear)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load price history")
		h.writeError(w, http.StatusInternalServerError, "Failed to load price history")
		return
	}

	returns := formulas.LogReturns(closes)

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"symbol":                symbol,
		"annualized_volatility": formulas.AnnualizedVolatility(returns),
		"sample_count":          len(returns),
	}))
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
	})
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}
