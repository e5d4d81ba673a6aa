package scenarios

import (
	"fmt"
	"sort"
	"strings"
)

// Entry is a catalog scenario with its descriptive metadata
type Entry struct {
	Slug       string      `json:"slug"`
	Tags       []string    `json:"tags"`
	Parameters *Parameters `json:"parameters"`
}

// catalog holds the historical stress scenarios, keyed by slug
var catalog = map[string]Entry{
	"financial-crisis-2008": {
		Slug: "financial-crisis-2008",
		Tags: []string{"historical", "severe", "equity", "credit"},
		Parameters: &Parameters{
			Name: "2008 Financial Crisis",
			Description: "Severe market crash similar to the 2008 financial crisis. Equity markets decline sharply, " +
				"volatility spikes, correlations increase and investors flee to safe-haven assets.",
			Category: "market_crash",
			Assets: []AssetShock{
				{Ticker: "SPY", ReturnShock: -0.50, VolatilityMultiplier: Multiplier(2.5)},
				{Ticker: "QQQ", ReturnShock: -0.55, VolatilityMultiplier: Multiplier(2.8)},
				{Ticker: "DIA", ReturnShock: -0.45, VolatilityMultiplier: Multiplier(2.3)},
				{Ticker: "IWM", ReturnShock: -0.60, VolatilityMultiplier: Multiplier(3.0)},
				{Ticker: "TLT", ReturnShock: 0.15, VolatilityMultiplier: Multiplier(1.5)},
				{Ticker: "IEF", ReturnShock: 0.08},
				{Ticker: "SHY", ReturnShock: 0.02},
				{Ticker: "LQD", ReturnShock: -0.10},
				{Ticker: "HYG", ReturnShock: -0.30, VolatilityMultiplier: Multiplier(2.5)},
				{Ticker: "GLD", ReturnShock: 0.05},
				{Ticker: "USO", ReturnShock: -0.50, VolatilityMultiplier: Multiplier(3.0)},
			},
			CorrelationMultiplier: 1.5,
		},
	},
	"covid-19-crash": {
		Slug: "covid-19-crash",
		Tags: []string{"historical", "severe", "equity", "oil", "pandemic"},
		Parameters: &Parameters{
			Name: "COVID-19 Market Crash",
			Description: "Rapid market crash similar to March 2020. Swift equity decline, extreme volatility, " +
				"oil price collapse and flight to safety.",
			Category: "market_crash",
			Assets: []AssetShock{
				{Ticker: "SPY", ReturnShock: -0.34, VolatilityMultiplier: Multiplier(3.0)},
				{Ticker: "QQQ", ReturnShock: -0.30, VolatilityMultiplier: Multiplier(2.8)},
				{Ticker: "DIA", ReturnShock: -0.37},
				{Ticker: "IWM", ReturnShock: -0.42, VolatilityMultiplier: Multiplier(3.5)},
				{Ticker: "TLT", ReturnShock: 0.20},
				{Ticker: "IEF", ReturnShock: 0.10},
				{Ticker: "LQD", ReturnShock: -0.08},
				{Ticker: "HYG", ReturnShock: -0.22, VolatilityMultiplier: Multiplier(3.0)},
				{Ticker: "GLD", ReturnShock: 0.03},
				{Ticker: "USO", ReturnShock: -0.65, VolatilityMultiplier: Multiplier(4.0)},
			},
			CorrelationMultiplier: 1.6,
		},
	},
	"rate-shock-200bps": {
		Slug: "rate-shock-200bps",
		Tags: []string{"rates", "bonds", "moderate"},
		Parameters: &Parameters{
			Name: "Interest Rate Shock (+200 bps)",
			Description: "Sudden increase in interest rates by 200 basis points. Bond prices fall, equity " +
				"valuations compress and rate-sensitive sectors underperform.",
			Category: "rate_shock",
			Assets: []AssetShock{
				{Ticker: "SPY", ReturnShock: -0.15, VolatilityMultiplier: Multiplier(1.5)},
				{Ticker: "QQQ", ReturnShock: -0.20, VolatilityMultiplier: Multiplier(1.6)},
				{Ticker: "DIA", ReturnShock: -0.12},
				{Ticker: "IWM", ReturnShock: -0.18},
				{Ticker: "TLT", ReturnShock: -0.25, VolatilityMultiplier: Multiplier(2.0)},
				{Ticker: "IEF", ReturnShock: -0.12, VolatilityMultiplier: Multiplier(1.8)},
				{Ticker: "SHY", ReturnShock: -0.03},
				{Ticker: "LQD", ReturnShock: -0.15, VolatilityMultiplier: Multiplier(1.7)},
				{Ticker: "HYG", ReturnShock: -0.18},
				{Ticker: "GLD", ReturnShock: -0.05},
			},
			CorrelationMultiplier: 1.2,
		},
	},
	"oil-shock": {
		Slug: "oil-shock",
		Tags: []string{"commodity", "oil", "inflation", "moderate"},
		Parameters: &Parameters{
			Name: "Oil Price Shock (+100%)",
			Description: "Sudden doubling of oil prices due to supply disruption. Energy rallies, consumer " +
				"discretionary declines and inflation concerns increase.",
			Category: "commodity_shock",
			Assets: []AssetShock{
				{Ticker: "USO", ReturnShock: 1.00, VolatilityMultiplier: Multiplier(2.5)},
				{Ticker: "SPY", ReturnShock: -0.10, VolatilityMultiplier: Multiplier(1.4)},
				{Ticker: "QQQ", ReturnShock: -0.12, VolatilityMultiplier: Multiplier(1.5)},
				{Ticker: "IWM", ReturnShock: -0.15},
				{Ticker: "TLT", ReturnShock: -0.05},
				{Ticker: "IEF", ReturnShock: -0.03},
				{Ticker: "GLD", ReturnShock: 0.10},
			},
			CorrelationMultiplier: 1.1,
		},
	},
	"volatility-spike": {
		Slug: "volatility-spike",
		Tags: []string{"volatility", "moderate", "uncertainty"},
		Parameters: &Parameters{
			Name: "Volatility Spike",
			Description: "Sudden spike in market volatility without major directional moves. Increased " +
				"uncertainty, wider spreads, risk-off sentiment.",
			Category: "volatility_spike",
			Assets: []AssetShock{
				{Ticker: "SPY", ReturnShock: -0.05, VolatilityMultiplier: Multiplier(2.0)},
				{Ticker: "QQQ", ReturnShock: -0.06, VolatilityMultiplier: Multiplier(2.2)},
				{Ticker: "DIA", VolatilityMultiplier: Multiplier(1.9)},
				{Ticker: "IWM", VolatilityMultiplier: Multiplier(2.5)},
				{Ticker: "HYG", VolatilityMultiplier: Multiplier(2.0)},
				{Ticker: "TLT", ReturnShock: 0.03},
				{Ticker: "GLD", ReturnShock: 0.02},
			},
			CorrelationMultiplier: 1.3,
		},
	},
	"currency-crisis": {
		Slug: "currency-crisis",
		Tags: []string{"currency", "dollar", "moderate"},
		Parameters: &Parameters{
			Name: "Currency Crisis",
			Description: "Major currency devaluation and dollar strength. Emerging markets decline, commodities " +
				"weaken, flight to quality assets.",
			Category: "currency_crisis",
			Assets: []AssetShock{
				{Ticker: "SPY", ReturnShock: -0.08, VolatilityMultiplier: Multiplier(1.5)},
				{Ticker: "IWM", ReturnShock: -0.12},
				{Ticker: "TLT", ReturnShock: 0.05},
				{Ticker: "GLD", ReturnShock: -0.10, VolatilityMultiplier: Multiplier(1.8)},
				{Ticker: "USO", ReturnShock: -0.15},
				{Ticker: "EURUSD=X", ReturnShock: -0.15, VolatilityMultiplier: Multiplier(2.5)},
				{Ticker: "GBPUSD=X", ReturnShock: -0.12, VolatilityMultiplier: Multiplier(2.3)},
			},
			CorrelationMultiplier: 1.2,
		},
	},
}

// Catalog lists the predefined scenarios sorted by slug. Entries are copies.
func Catalog() []Entry {
	out := make([]Entry, 0, len(catalog))
	for _, e := range catalog {
		out = append(out, copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// Lookup finds a predefined scenario by slug or display name (case-insensitive).
func Lookup(name string) (Entry, error) {
	if e, ok := catalog[strings.ToLower(name)]; ok {
		return copyEntry(e), nil
	}
	for _, e := range catalog {
		if strings.EqualFold(e.Parameters.Name, name) {
			return copyEntry(e), nil
		}
	}
	slugs := make([]string, 0, len(catalog))
	for slug := range catalog {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return Entry{}, fmt.Errorf("scenario %q not found, available: %s", name, strings.Join(slugs, ", "))
}

func copyEntry(e Entry) Entry {
	p := *e.Parameters
	p.Assets = append([]AssetShock(nil), e.Parameters.Assets...)
	return Entry{
		Slug:       e.Slug,
		Tags:       append([]string(nil), e.Tags...),
		Parameters: &p,
	}
}
