package handlers

import (
	"strings"
	"time"

	"github.com/aristath/stresslab/internal/apiutil"
	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/modules/engine"
	"github.com/aristath/stresslab/internal/modules/scenarios"
)

// AssetShockDTO is one asset's shock on the wire
type AssetShockDTO struct {
	Ticker               string   `json:"ticker" validate:"required"`
	ReturnShock          float64  `json:"return_shock"`
	VolatilityMultiplier *float64 `json:"volatility_multiplier" validate:"omitempty,gt=0"`
}

// ScenarioDTO is either a predefined catalog entry or explicit shocks
type ScenarioDTO struct {
	Predefined            string          `json:"predefined"`
	Name                  string          `json:"name"`
	Assets                []AssetShockDTO `json:"assets" validate:"dive"`
	CorrelationMultiplier *float64        `json:"correlation_multiplier" validate:"omitempty,gte=0"`
}

// SimulationRequest is the body of POST /api/simulations
type SimulationRequest struct {
	Tickers          []string           `json:"tickers" validate:"required,min=1,dive,required"`
	StartDate        string             `json:"start_date" validate:"required"`
	EndDate          string             `json:"end_date" validate:"required"`
	NumSimulations   int                `json:"num_simulations" validate:"gte=1"`
	NumDays          int                `json:"num_days" validate:"gte=1"`
	Method           string             `json:"method" validate:"omitempty,oneof=monte_carlo montecarlo gbm historical bootstrap"`
	Scenario         *ScenarioDTO       `json:"scenario"`
	Weights          map[string]float64 `json:"weights"`
	Seed             *uint64            `json:"seed"`
	ConfidenceLevels []float64          `json:"confidence_levels" validate:"omitempty,dive,gt=0,lt=1"`
	TimeoutSeconds   float64            `json:"timeout_seconds" validate:"gte=0"`
	UseCorrelation   *bool              `json:"use_correlation"`
	BlockLength      int                `json:"block_length" validate:"gte=0"`

	IncludeOptimization         bool    `json:"include_optimization"`
	RiskFreeRate                float64 `json:"risk_free_rate"`
	FallbackOnOptimizationError bool    `json:"fallback_on_optimization_error"`
}

// ToEngine converts the DTO, resolving dates, method and scenario.
func (r SimulationRequest) ToEngine() (engine.Request, error) {
	start, err := apiutil.ParseDate("start_date", r.StartDate)
	if err != nil {
		return engine.Request{}, err
	}
	end, err := apiutil.ParseDate("end_date", r.EndDate)
	if err != nil {
		return engine.Request{}, err
	}
	method, err := domain.ParseMethod(r.Method)
	if err != nil {
		return engine.Request{}, err
	}
	scenario, err := r.Scenario.toParameters(r.Tickers)
	if err != nil {
		return engine.Request{}, err
	}

	return engine.Request{
		Tickers:                     r.Tickers,
		Start:                       start,
		End:                         end,
		NumSimulations:              r.NumSimulations,
		NumDays:                     r.NumDays,
		Method:                      method,
		Scenario:                    scenario,
		Weights:                     r.Weights,
		Seed:                        r.Seed,
		ConfidenceLevels:            r.ConfidenceLevels,
		Timeout:                     time.Duration(r.TimeoutSeconds * float64(time.Second)),
		UseCorrelation:              r.UseCorrelation,
		BlockLength:                 r.BlockLength,
		IncludeOptimization:         r.IncludeOptimization,
		RiskFreeRate:                r.RiskFreeRate,
		FallbackOnOptimizationError: r.FallbackOnOptimizationError,
	}, nil
}

// toParameters builds scenario parameters. A predefined entry is narrowed to
// the requested tickers; it cannot be combined with explicit shocks.
func (s *ScenarioDTO) toParameters(tickers []string) (*scenarios.Parameters, error) {
	if s == nil {
		return nil, nil
	}

	if s.Predefined != "" {
		if len(s.Assets) > 0 || s.CorrelationMultiplier != nil {
			return nil, domain.Validation("scenario.predefined cannot be combined with explicit shocks")
		}
		entry, err := scenarios.Lookup(s.Predefined)
		if err != nil {
			return nil, domain.NewError(domain.ErrValidation, domain.StageValidation, "unknown predefined scenario", err)
		}
		upper := make([]string, len(tickers))
		for i, t := range tickers {
			upper[i] = strings.ToUpper(strings.TrimSpace(t))
		}
		return entry.Parameters.Restrict(upper), nil
	}

	p := &scenarios.Parameters{
		Name:                  s.Name,
		CorrelationMultiplier: 1,
	}
	if p.Name == "" {
		p.Name = "custom"
	}
	if s.CorrelationMultiplier != nil {
		p.CorrelationMultiplier = *s.CorrelationMultiplier
	}
	for _, a := range s.Assets {
		p.Assets = append(p.Assets, scenarios.AssetShock{
			Ticker:               a.Ticker,
			ReturnShock:          a.ReturnShock,
			VolatilityMultiplier: a.VolatilityMultiplier,
		})
	}
	return p, nil
}
