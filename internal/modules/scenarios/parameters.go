// Package scenarios defines stress scenarios and applies them to a baseline.
package scenarios

import (
	"math"
	"sort"

	"github.com/aristath/stresslab/internal/domain"
)

// AssetShock is the per-asset part of a scenario
type AssetShock struct {
	Ticker string `json:"ticker"`
	// ReturnShock is added to the annualized expected return
	ReturnShock float64 `json:"return_shock"`
	// VolatilityMultiplier scales annualized volatility; nil leaves it at 1
	VolatilityMultiplier *float64 `json:"volatility_multiplier,omitempty"`
}

// Multiplier returns a pointer to v for use in AssetShock literals.
func Multiplier(v float64) *float64 {
	return &v
}

// Parameters is a stress scenario. A nil *Parameters is the neutral scenario.
type Parameters struct {
	Name                  string       `json:"name,omitempty"`
	Description           string       `json:"description,omitempty"`
	Category              string       `json:"category,omitempty"`
	Assets                []AssetShock `json:"assets"`
	CorrelationMultiplier float64      `json:"correlation_multiplier"`
}

// Neutral returns a scenario that changes nothing.
func Neutral() *Parameters {
	return &Parameters{Name: "baseline", CorrelationMultiplier: 1}
}

// Resolved is a scenario validated against an ordered ticker list
type Resolved struct {
	Name                  string
	ReturnShocks          []float64
	VolatilityMultipliers []float64
	CorrelationMultiplier float64
}

// IsNeutral reports whether applying r would leave a baseline unchanged.
func (r *Resolved) IsNeutral() bool {
	if r.CorrelationMultiplier != 1 {
		return false
	}
	for i := range r.ReturnShocks {
		if r.ReturnShocks[i] != 0 || r.VolatilityMultipliers[i] != 1 {
			return false
		}
	}
	return true
}

// Resolve validates p against tickers and lays its shocks out in ticker
// order. Unknown or duplicate tickers, non-positive volatility multipliers
// and negative or non-finite correlation multipliers are rejected.
func (p *Parameters) Resolve(tickers []string) (*Resolved, error) {
	n := len(tickers)
	r := &Resolved{
		ReturnShocks:          make([]float64, n),
		VolatilityMultipliers: make([]float64, n),
		CorrelationMultiplier: 1,
	}
	for i := range r.VolatilityMultipliers {
		r.VolatilityMultipliers[i] = 1
	}
	if p == nil {
		r.Name = "baseline"
		return r, nil
	}
	r.Name = p.Name

	if math.IsNaN(p.CorrelationMultiplier) || math.IsInf(p.CorrelationMultiplier, 0) || p.CorrelationMultiplier < 0 {
		return nil, domain.Validation("correlation multiplier must be a finite value >= 0, got %v", p.CorrelationMultiplier)
	}
	r.CorrelationMultiplier = p.CorrelationMultiplier

	index := make(map[string]int, n)
	for i, t := range tickers {
		index[t] = i
	}

	seen := make(map[string]bool, len(p.Assets))
	for _, a := range p.Assets {
		i, ok := index[a.Ticker]
		if !ok {
			return nil, domain.Validation("scenario references unknown ticker %q", a.Ticker)
		}
		if seen[a.Ticker] {
			return nil, domain.Validation("scenario lists ticker %q more than once", a.Ticker)
		}
		seen[a.Ticker] = true

		if math.IsNaN(a.ReturnShock) || math.IsInf(a.ReturnShock, 0) {
			return nil, domain.Validation("return shock for %s must be finite", a.Ticker)
		}
		r.ReturnShocks[i] = a.ReturnShock

		if a.VolatilityMultiplier != nil {
			mult := *a.VolatilityMultiplier
			if math.IsNaN(mult) || math.IsInf(mult, 0) || mult <= 0 {
				return nil, domain.Validation("volatility multiplier for %s must be finite and > 0, got %v", a.Ticker, mult)
			}
			r.VolatilityMultipliers[i] = mult
		}
	}

	return r, nil
}

// Restrict returns a copy of p keeping only shocks for tickers in the list.
// Catalog scenarios cover a wide universe; requests name a subset.
func (p *Parameters) Restrict(tickers []string) *Parameters {
	if p == nil {
		return nil
	}
	keep := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		keep[t] = true
	}
	out := *p
	out.Assets = nil
	for _, a := range p.Assets {
		if keep[a.Ticker] {
			out.Assets = append(out.Assets, a)
		}
	}
	return &out
}

// Tickers returns the tickers the scenario touches, sorted.
func (p *Parameters) Tickers() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.Assets))
	for _, a := range p.Assets {
		out = append(out, a.Ticker)
	}
	sort.Strings(out)
	return out
}
