// Package handlers provides HTTP handlers for optimization evaluation.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/evaluation"
)

// Handler handles evaluation HTTP requests
type Handler struct {
	evaluator *evaluation.Evaluator
	log       zerolog.Logger
}

// NewHandler creates a new evaluation handler
func NewHandler(evaluator *evaluation.Evaluator, log zerolog.Logger) *Handler {
	return &Handler{
		evaluator: evaluator,
		log:       log.With().Str("handler", "evaluation").Logger(),
	}
}

type sharpeImprovementRequest struct {
	BaselineSharpe  float64 `json:"baseline_sharpe"`
	OptimizedSharpe float64 `json:"optimized_sharpe"`
	// Target optionally overrides the configured improvement target for
	// this one comparison.
	Target *float64 `json:"target,omitempty"`
}

// HandleSharpeImprovement handles POST /api/evaluation/sharpe-improvement.
func (h *Handler) HandleSharpeImprovement(w http.ResponseWriter, r *http.Request) {
	var request sharpeImprovementRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	evaluator := h.evaluator
	if request.Target != nil {
		if *request.Target <= 0 {
			h.writeError(w, http.StatusBadRequest, "target must be positive")
			return
		}
		evaluator = evaluation.NewEvaluator(*request.Target, h.log)
	}

	verdict := evaluator.Evaluate(request.BaselineSharpe, request.OptimizedSharpe)

	h.log.Info().
		Float64("baseline", verdict.BaselineSharpe).
		Float64("optimized", verdict.OptimizedSharpe).
		Bool("achieved", verdict.TargetAchieved).
		Msg("Sharpe improvement evaluated")

	h.writeJSON(w, http.StatusOK, envelope(verdict))
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
