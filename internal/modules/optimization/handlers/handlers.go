// Package handlers provides HTTP handlers for portfolio optimization.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/events"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/optimization"
)

// maxUniverseSize caps one request's asset count to keep a single call from
// exhausting the process.
const maxUniverseSize = 2000

// RecordSource resolves symbols to asset records with price history
// attached. The universe module's history store implements it.
type RecordSource interface {
	Records(ctx context.Context, symbols []string, lookbackDays int) ([]optimization.AssetRecord, error)
}

// Handler handles optimization HTTP requests.
type Handler struct {
	service *optimization.Service
	repo    *optimization.ResultRepository
	records RecordSource
	bus     *events.Bus
	log     zerolog.Logger
}

// NewHandler creates a new optimization handler. repo, records and bus may
// each be nil; the matching features degrade gracefully.
func NewHandler(service *optimization.Service, repo *optimization.ResultRepository, records RecordSource, bus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		repo:    repo,
		records: records,
		bus:     bus,
		log:     log.With().Str("handler", "optimization").Logger(),
	}
}

type optimizeRequest struct {
	Method       string                     `json:"method"`
	Assets       []optimization.AssetRecord `json:"assets,omitempty"`
	Symbols      []string                   `json:"symbols,omitempty"`
	LookbackDays int                        `json:"lookback_days,omitempty"`
	TargetReturn *float64                   `json:"target_return,omitempty"`
}

// HandleOptimize handles POST /api/optimization/optimize. The universe comes
// either inline (assets) or as a symbol list resolved from the history
// store.
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var request optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(request.Assets) > 0 && len(request.Symbols) > 0 {
		h.writeError(w, http.StatusBadRequest, "Provide either assets or symbols, not both")
		return
	}
	if len(request.Assets) > maxUniverseSize || len(request.Symbols) > maxUniverseSize {
		h.writeError(w, http.StatusBadRequest, "Universe too large (max 2000 assets)")
		return
	}

	assets := request.Assets
	if len(request.Symbols) > 0 {
		if h.records == nil {
			h.writeError(w, http.StatusBadRequest, "Symbol resolution is not available, submit assets inline")
			return
		}
		resolved, err := h.records.Records(r.Context(), request.Symbols, request.LookbackDays)
		if err != nil {
			if errors.Is(err, optimization.ErrNoHistory) {
				h.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			h.writeError(w, http.StatusInternalServerError, "Failed to load price history: "+err.Error())
			return
		}
		assets = resolved
	}

	startTime := time.Now()
	result, err := h.service.Optimize(r.Context(), optimization.Request{
		Method:       optimization.Method(request.Method),
		Assets:       assets,
		TargetReturn: request.TargetReturn,
	})
	elapsed := time.Since(startTime)

	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Optimization rejected: "+err.Error())
		return
	}

	if h.repo != nil {
		if saveErr := h.repo.Save(result); saveErr != nil {
			h.log.Error().Err(saveErr).Str("id", result.ID).Msg("Failed to persist optimization result")
		}
	}
	h.publishResult(result)

	h.log.Info().
		Str("method", string(result.Method)).
		Int("assets", len(assets)).
		Dur("elapsed", elapsed).
		Bool("converged", result.Converged).
		Msg("Optimization request completed")

	h.writeJSON(w, http.StatusOK, envelope(result))
}

// HandleListResults handles GET /api/optimization/results.
func (h *Handler) HandleListResults(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeError(w, http.StatusNotFound, "Result storage is not enabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := parsePositiveInt(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid limit: "+raw)
			return
		}
		limit = parsed
	}

	results, err := h.repo.List(limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list results: "+err.Error())
		return
	}
	if results == nil {
		results = []*optimization.OptimizationResult{}
	}

	h.writeJSON(w, http.StatusOK, envelope(results))
}

// HandleGetResult handles GET /api/optimization/results/{id}.
func (h *Handler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeError(w, http.StatusNotFound, "Result storage is not enabled")
		return
	}

	id := chi.URLParam(r, "id")
	result, err := h.repo.Get(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to load result: "+err.Error())
		return
	}
	if result == nil {
		h.writeError(w, http.StatusNotFound, "No result with id "+id)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(result))
}

// HandleListMethods handles GET /api/optimization/methods.
func (h *Handler) HandleListMethods(w http.ResponseWriter, r *http.Request) {
	methods := optimization.Methods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]any{
		"methods": names,
		"default": string(optimization.MethodMaxSharpe),
	}))
}

func (h *Handler) publishResult(result *optimization.OptimizationResult) {
	if h.bus == nil || result == nil {
		return
	}
	if result.Warning != "" && result.Weights.Len() == 0 {
		h.bus.Publish("optimization", &events.OptimizationDegradedData{
			ResultID: result.ID,
			Method:   string(result.Method),
			Warning:  result.Warning,
		})
		return
	}
	h.bus.Publish("optimization", &events.OptimizationCompletedData{
		ResultID:    result.ID,
		Method:      string(result.Method),
		Universe:    result.Weights.Len(),
		SharpeRatio: result.SharpeRatio,
		Converged:   result.Converged,
	})
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
