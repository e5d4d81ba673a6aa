// Package handlers provides HTTP handlers for simulation runs.
package handlers

import (
	"net/http"

	"github.com/aristath/stresslab/internal/apiutil"
	"github.com/aristath/stresslab/internal/modules/engine"
	"github.com/rs/zerolog"
)

// Handler handles simulation HTTP requests
type Handler struct {
	engine    *engine.Engine
	validator *apiutil.Validator
	log       zerolog.Logger
}

// NewHandler creates a new simulation handler
func NewHandler(eng *engine.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine:    eng,
		validator: apiutil.NewValidator(),
		log:       log.With().Str("handler", "simulation").Logger(),
	}
}

// HandleRun handles POST /api/simulations
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	req, err := h.decode(r)
	if err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}

	result, err := h.engine.Run(r.Context(), req)
	if err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}

	apiutil.WriteJSON(w, h.log, http.StatusOK, result)
}

// HandleCompare handles POST /api/simulations/compare
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	req, err := h.decode(r)
	if err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}

	cmp, err := h.engine.Compare(r.Context(), req)
	if err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}

	apiutil.WriteJSON(w, h.log, http.StatusOK, cmp)
}

func (h *Handler) decode(r *http.Request) (engine.Request, error) {
	var body SimulationRequest
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		return engine.Request{}, err
	}
	if err := h.validator.Struct(body); err != nil {
		return engine.Request{}, err
	}
	return body.ToEngine()
}
