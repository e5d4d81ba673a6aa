// Package handlers provides HTTP handlers for the scenario catalog.
package handlers

import (
	"net/http"
	"strings"

	"github.com/aristath/stresslab/internal/apiutil"
	"github.com/aristath/stresslab/internal/modules/scenarios"
	"github.com/aristath/stresslab/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler serves the predefined scenarios
type Handler struct {
	log zerolog.Logger
}

// NewHandler creates a new scenario handler
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{log: log.With().Str("handler", "scenarios").Logger()}
}

// HandleList handles GET /api/scenarios/predefined. An optional ?tag= filter
// keeps entries carrying that tag.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	tag := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("tag")))

	entries := scenarios.Catalog()
	if tag != "" {
		filtered := entries[:0]
		for _, e := range entries {
			for _, t := range e.Tags {
				if t == tag {
					filtered = append(filtered, e)
					break
				}
			}
		}
		entries = filtered
	}

	apiutil.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"scenarios": entries,
		"count":     len(entries),
	})
}

// HandleGet handles GET /api/scenarios/predefined/{name}. With ?tickers=
// the entry is narrowed to those assets.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	entry, err := scenarios.Lookup(name)
	if err != nil {
		h.log.Debug().Str("name", name).Msg("Scenario not found")
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	if tickers := utils.ParseTickers(r.URL.Query().Get("tickers")); tickers != nil {
		entry.Parameters = entry.Parameters.Restrict(tickers)
	}

	apiutil.WriteJSON(w, h.log, http.StatusOK, entry)
}
