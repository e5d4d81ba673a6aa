// Package handlers provides HTTP handlers for portfolio optimization.
package handlers

import (
	"net/http"
	"time"

	"github.com/aristath/stresslab/internal/apiutil"
	"github.com/aristath/stresslab/internal/modules/engine"
	"github.com/aristath/stresslab/internal/modules/optimization"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OptimizeRequest is the body of POST /api/optimizations
type OptimizeRequest struct {
	Tickers                     []string `json:"tickers" validate:"required,min=2,dive,required"`
	StartDate                   string   `json:"start_date" validate:"required"`
	EndDate                     string   `json:"end_date" validate:"required"`
	RiskFreeRate                float64  `json:"risk_free_rate"`
	FallbackOnOptimizationError bool     `json:"fallback_on_optimization_error"`
	TimeoutSeconds              float64  `json:"timeout_seconds" validate:"gte=0"`
}

// RebalanceRequest is the body of POST /api/rebalance
type RebalanceRequest struct {
	OptimizeRequest
	Objective      string             `json:"objective" validate:"omitempty,oneof=max_sharpe min_volatility"`
	CurrentWeights map[string]float64 `json:"current_weights"`
	PortfolioValue decimal.Decimal    `json:"portfolio_value"`
}

func (r OptimizeRequest) toEngine() (engine.OptimizeRequest, error) {
	start, err := apiutil.ParseDate("start_date", r.StartDate)
	if err != nil {
		return engine.OptimizeRequest{}, err
	}
	end, err := apiutil.ParseDate("end_date", r.EndDate)
	if err != nil {
		return engine.OptimizeRequest{}, err
	}
	return engine.OptimizeRequest{
		Tickers:                     r.Tickers,
		Start:                       start,
		End:                         end,
		RiskFreeRate:                r.RiskFreeRate,
		FallbackOnOptimizationError: r.FallbackOnOptimizationError,
		Timeout:                     time.Duration(r.TimeoutSeconds * float64(time.Second)),
	}, nil
}

// Handler handles optimization HTTP requests
type Handler struct {
	engine    *engine.Engine
	validator *apiutil.Validator
	log       zerolog.Logger
}

// NewHandler creates a new optimization handler
func NewHandler(eng *engine.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine:    eng,
		validator: apiutil.NewValidator(),
		log:       log.With().Str("handler", "optimization").Logger(),
	}
}

// HandleOptimize handles POST /api/optimizations
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var body OptimizeRequest
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}
	if err := h.validator.Struct(body); err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}
	req, err := body.toEngine()
	if err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}

	result, err := h.engine.Optimize(r.Context(), req)
	if err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}

	apiutil.WriteJSON(w, h.log, http.StatusOK, result)
}

// HandleRebalance handles POST /api/rebalance
func (h *Handler) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	var body RebalanceRequest
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}
	if err := h.validator.Struct(body); err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}
	req, err := body.toEngine()
	if err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}

	plan, err := h.engine.Rebalance(r.Context(), engine.RebalanceRequest{
		OptimizeRequest: req,
		Objective:       optimization.Objective(body.Objective),
		Current:         body.CurrentWeights,
		PortfolioValue:  body.PortfolioValue,
	})
	if err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}

	apiutil.WriteJSON(w, h.log, http.StatusOK, plan)
}
