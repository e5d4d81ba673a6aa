// Package handlers provides HTTP handlers for historical risk profiles.
package handlers

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/stresslab/internal/apiutil"
	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/modules/history"
	"github.com/aristath/stresslab/internal/modules/risk"
	"github.com/aristath/stresslab/pkg/formulas"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Profile describes the realized daily returns of a security or portfolio
type Profile struct {
	Tickers              []string           `json:"tickers"`
	Weights              map[string]float64 `json:"weights,omitempty"`
	Observations         int                `json:"observations"`
	AnnualizedReturn     float64            `json:"annualized_return"`
	AnnualizedVolatility float64            `json:"annualized_volatility"`
	Sharpe               float64            `json:"sharpe"`
	MaxDrawdown          float64            `json:"max_drawdown"`
	Daily                *risk.Report       `json:"daily"`
}

// PortfolioRequest is the body of POST /api/risk/portfolio
type PortfolioRequest struct {
	Weights          map[string]float64 `json:"weights" validate:"required,min=1,dive,keys,required,endkeys,gte=0"`
	StartDate        string             `json:"start_date" validate:"required"`
	EndDate          string             `json:"end_date" validate:"required"`
	ConfidenceLevels []float64          `json:"confidence_levels" validate:"omitempty,dive,gt=0,lt=1"`
	RiskFreeRate     float64            `json:"risk_free_rate"`
}

// Handler computes risk profiles from stored return history
type Handler struct {
	store      history.Store
	calculator *risk.Calculator
	validator  *apiutil.Validator
	log        zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(store history.Store, log zerolog.Logger) *Handler {
	return &Handler{
		store:      store,
		calculator: risk.NewCalculator(log),
		validator:  apiutil.NewValidator(),
		log:        log.With().Str("handler", "risk").Logger(),
	}
}

// HandleGetSecurity handles GET /api/risk/securities/{ticker}
func (h *Handler) HandleGetSecurity(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	q := r.URL.Query()

	start, end, err := parseWindow(q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}
	levels, err := parseLevels(q.Get("confidence"))
	if err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}
	rf, err := parseFloat("risk_free_rate", q.Get("risk_free_rate"))
	if err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}

	profile, err := h.profile(r.Context(), map[string]float64{ticker: 1}, start, end, levels, rf)
	if err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}
	profile.Weights = nil

	apiutil.WriteJSON(w, h.log, http.StatusOK, profile)
}

// HandlePortfolio handles POST /api/risk/portfolio
func (h *Handler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	var body PortfolioRequest
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}
	if err := h.validator.Struct(body); err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}
	start, end, err := parseWindow(body.StartDate, body.EndDate)
	if err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}

	weights := make(map[string]float64, len(body.Weights))
	sum := 0.0
	for t, v := range body.Weights {
		weights[strings.ToUpper(strings.TrimSpace(t))] += v
		sum += v
	}
	if sum <= 0 {
		apiutil.WriteError(w, h.log, domain.Validation("weights must not all be zero"))
		return
	}
	// weights are taken as proportions
	for t := range weights {
		weights[t] /= sum
	}

	profile, err := h.profile(r.Context(), weights, start, end, body.ConfidenceLevels, body.RiskFreeRate)
	if err != nil {
		apiutil.WriteError(w, h.log, err)
		return
	}

	apiutil.WriteJSON(w, h.log, http.StatusOK, profile)
}

// profile aligns the weighted assets and reduces their realized daily
// portfolio returns to a risk report.
func (h *Handler) profile(ctx context.Context, weights map[string]float64, start, end time.Time, levels []float64, rf float64) (*Profile, error) {
	tickers := make([]string, 0, len(weights))
	for t := range weights {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	aligned, err := history.LoadAligned(ctx, h.store, tickers, start, end)
	if err != nil {
		return nil, domain.Staged(err, domain.StageData)
	}
	if aligned.NumObservations() < 2 {
		return nil, domain.InsufficientData(domain.StageData, "need at least 2 aligned observations, got %d", aligned.NumObservations())
	}

	returns := make([]float64, aligned.NumObservations())
	row := make([]float64, len(tickers))
	for d := range returns {
		aligned.Row(d, row)
		for i, t := range tickers {
			returns[d] += weights[t] * row[i]
		}
	}

	path := make([]float64, len(returns)+1)
	path[0] = 1
	for i, ret := range returns {
		path[i+1] = path[i] * (1 + ret)
	}

	report, err := h.calculator.Compute(returns, nil, levels)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		Tickers:              tickers,
		Weights:              weights,
		Observations:         len(returns),
		AnnualizedReturn:     formulas.AnnualizeReturn(report.Mean),
		AnnualizedVolatility: formulas.AnnualizeVolatility(report.StdDev),
		MaxDrawdown:          formulas.MaxDrawdown(path),
		Daily:                report,
	}
	if p.AnnualizedVolatility > 0 {
		p.Sharpe = (p.AnnualizedReturn - rf) / p.AnnualizedVolatility
	}

	h.log.Debug().
		Strs("tickers", tickers).
		Int("observations", p.Observations).
		Float64("max_drawdown", p.MaxDrawdown).
		Msg("Computed risk profile")

	return p, nil
}

func parseWindow(startRaw, endRaw string) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if endRaw != "" {
		var err error
		if end, err = apiutil.ParseDate("end_date", endRaw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	start := end.AddDate(-1, 0, 0)
	if startRaw != "" {
		var err error
		if start, err = apiutil.ParseDate("start_date", startRaw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, domain.Validation("end_date must be after start_date")
	}
	return start, end, nil
}

func parseLevels(raw string) ([]float64, error) {
	if raw == "" {
		return nil, nil
	}
	var levels []float64
	for _, part := range strings.Split(raw, ",") {
		v, err := parseFloat("confidence", part)
		if err != nil {
			return nil, err
		}
		levels = append(levels, v)
	}
	return levels, nil
}

func parseFloat(field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domain.Validation("%s must be a finite number, got %q", field, raw)
	}
	return v, nil
}
