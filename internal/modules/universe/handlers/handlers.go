// Package handlers provides HTTP handlers for universe management: price
// ingestion, symbol listing and candidate screening.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/events"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/universe"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/pkg/formulas"
)

// maxSeriesPerRequest caps one ingestion request's symbol count.
const maxSeriesPerRequest = 1000

// Handler handles universe HTTP requests.
type Handler struct {
	history   *universe.HistoryDB
	validator *universe.PriceValidator
	bus       *events.Bus
	log       zerolog.Logger
}

// NewHandler creates a new universe handler. bus may be nil; event
// publication is skipped.
func NewHandler(history *universe.HistoryDB, validator *universe.PriceValidator, bus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		history:   history,
		validator: validator,
		bus:       bus,
		log:       log.With().Str("handler", "universe").Logger(),
	}
}

type priceSeries struct {
	Symbol    string                `json:"symbol"`
	Name      string                `json:"name,omitempty"`
	Sector    string                `json:"sector,omitempty"`
	MarketCap float64               `json:"market_cap,omitempty"`
	Prices    []universe.DailyPrice `json:"prices"`
}

type ingestRequest struct {
	Series []priceSeries `json:"series"`
}

type ingestSummary struct {
	Symbols      int `json:"symbols"`
	Rows         int `json:"rows"`
	Interpolated int `json:"interpolated"`
}

// HandleIngestPrices handles POST /api/universe/prices. Each series is
// validated against the symbol's stored history, abnormal bars are repaired,
// and the cleaned bars are upserted. Symbols commit independently.
func (h *Handler) HandleIngestPrices(w http.ResponseWriter, r *http.Request) {
	var request ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(request.Series) == 0 {
		h.writeError(w, http.StatusBadRequest, "No price series supplied")
		return
	}
	if len(request.Series) > maxSeriesPerRequest {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Too many series (max %d)", maxSeriesPerRequest))
		return
	}
	for _, series := range request.Series {
		if series.Symbol == "" {
			h.writeError(w, http.StatusBadRequest, "Every series needs a symbol")
			return
		}
		if len(series.Prices) == 0 {
			h.writeError(w, http.StatusBadRequest, "No prices supplied for symbol "+series.Symbol)
			return
		}
	}

	start := time.Now()
	summary := ingestSummary{}

	for _, series := range request.Series {
		context, err := h.history.DailyPrices(r.Context(), series.Symbol, universe.ValidationContextBars)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "Failed to load stored history for "+series.Symbol+": "+err.Error())
			return
		}

		cleaned, repairs, err := h.validator.ValidateAndInterpolate(series.Prices, context)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Failed to validate prices for "+series.Symbol+": "+err.Error())
			return
		}

		if err := h.history.UpsertPrices(series.Symbol, cleaned); err != nil {
			h.writeError(w, http.StatusInternalServerError, "Failed to store prices for "+series.Symbol+": "+err.Error())
			return
		}

		if series.Name != "" || series.Sector != "" || series.MarketCap > 0 {
			err := h.history.UpsertSymbolMeta(universe.SymbolInfo{
				Symbol:    series.Symbol,
				Name:      series.Name,
				Sector:    series.Sector,
				MarketCap: series.MarketCap,
			})
			if err != nil {
				h.writeError(w, http.StatusInternalServerError, "Failed to store metadata for "+series.Symbol+": "+err.Error())
				return
			}
		}

		summary.Symbols++
		summary.Rows += len(cleaned)
		summary.Interpolated += len(repairs)
	}

	if h.bus != nil {
		h.bus.Publish("universe", &events.PricesIngestedData{
			Symbols: summary.Symbols,
			Rows:    summary.Rows,
		})
	}

	h.log.Info().
		Int("symbols", summary.Symbols).
		Int("rows", summary.Rows).
		Int("interpolated", summary.Interpolated).
		Dur("elapsed", time.Since(start)).
		Msg("Price ingestion completed")

	h.writeJSON(w, http.StatusOK, envelope(summary))
}

// HandleListSymbols handles GET /api/universe/symbols.
func (h *Handler) HandleListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.history.ListSymbols(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list symbols: "+err.Error())
		return
	}
	if symbols == nil {
		symbols = []universe.SymbolInfo{}
	}

	h.writeJSON(w, http.StatusOK, envelope(symbols))
}

// HandleGetPrices handles GET /api/universe/symbols/{symbol}/prices. The
// optional limit query parameter caps how many of the most recent bars are
// returned; bars come back oldest first.
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := parsePositiveInt(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid limit: "+raw)
			return
		}
		limit = parsed
	}

	prices, err := h.history.DailyPrices(r.Context(), symbol, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to load prices: "+err.Error())
		return
	}
	if len(prices) == 0 {
		h.writeError(w, http.StatusNotFound, "No price history for symbol "+symbol)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(prices))
}

type screenRequest struct {
	Symbols         []string `json:"symbols,omitempty"`
	LookbackDays    int      `json:"lookback_days,omitempty"`
	MinObservations *int     `json:"min_observations,omitempty"`
	RSIPeriod       *int     `json:"rsi_period,omitempty"`
	MaxRSI          *float64 `json:"max_rsi,omitempty"`
	FastSMAPeriod   *int     `json:"fast_sma_period,omitempty"`
	SlowSMAPeriod   *int     `json:"slow_sma_period,omitempty"`
	RequireUptrend  *bool    `json:"require_uptrend,omitempty"`
	MinAvgVolume    *float64 `json:"min_avg_volume,omitempty"`
}

type screenSummary struct {
	Results    []universe.ScreenResult `json:"results"`
	Candidates int                     `json:"candidates"`
	Passed     int                     `json:"passed"`
}

// HandleScreen handles POST /api/universe/screen. An empty symbol list
// screens every symbol with stored history.
func (h *Handler) HandleScreen(w http.ResponseWriter, r *http.Request) {
	var request screenRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	criteria := universe.DefaultCriteria()
	if request.MinObservations != nil {
		criteria.MinObservations = *request.MinObservations
	}
	if request.RSIPeriod != nil {
		criteria.RSIPeriod = *request.RSIPeriod
	}
	if request.MaxRSI != nil {
		criteria.MaxRSI = *request.MaxRSI
	}
	if request.FastSMAPeriod != nil {
		criteria.FastSMAPeriod = *request.FastSMAPeriod
	}
	if request.SlowSMAPeriod != nil {
		criteria.SlowSMAPeriod = *request.SlowSMAPeriod
	}
	if request.RequireUptrend != nil {
		criteria.RequireUptrend = *request.RequireUptrend
	}
	if request.MinAvgVolume != nil {
		criteria.MinAvgVolume = *request.MinAvgVolume
	}

	symbols := request.Symbols
	if len(symbols) == 0 {
		infos, err := h.history.ListSymbols(r.Context())
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "Failed to list symbols: "+err.Error())
			return
		}
		for _, info := range infos {
			symbols = append(symbols, info.Symbol)
		}
	}

	lookback := request.LookbackDays
	if lookback <= 0 {
		lookback = formulas.TradingDaysPerYear
	}

	start := time.Now()
	screener := universe.NewScreener(criteria, h.log)
	summary := screenSummary{Results: make([]universe.ScreenResult, 0, len(symbols))}

	for _, symbol := range symbols {
		prices, err := h.history.DailyPrices(r.Context(), symbol, lookback)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "Failed to load prices for "+symbol+": "+err.Error())
			return
		}
		result := screener.Screen(symbol, prices)
		summary.Results = append(summary.Results, result)
		if result.Passed {
			summary.Passed++
		}
	}
	summary.Candidates = len(summary.Results)

	if h.bus != nil {
		h.bus.Publish("universe", &events.UniverseScreenedData{
			Candidates: summary.Candidates,
			Passed:     summary.Passed,
		})
	}

	h.log.Info().
		Int("candidates", summary.Candidates).
		Int("passed", summary.Passed).
		Dur("elapsed", time.Since(start)).
		Msg("Universe screening completed")

	h.writeJSON(w, http.StatusOK, envelope(summary))
}

// Helper methods

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

func parsePositiveInt(raw string) (int, error) {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if value < 1 {
		return 0, fmt.Errorf("value must be positive, got %d", value)
	}
	return value, nil
}
