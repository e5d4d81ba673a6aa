// Package risk reduces simulated return samples to tail-risk metrics.
package risk

import (
	"math"
	"sort"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/modules/simulation"
	"github.com/aristath/stresslab/pkg/formulas"
	"github.com/rs/zerolog"
)

// Level is VaR and CVaR at one confidence level, both expressed as positive
// loss fractions (a VaR of 0.12 means a 12% loss).
type Level struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
}

// Percentiles of the terminal portfolio return distribution
type Percentiles struct {
	P1  float64 `json:"p1"`
	P5  float64 `json:"p5"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// Report summarises one run's portfolio return distribution
type Report struct {
	SampleCount       int         `json:"sample_count"`
	Levels            []Level     `json:"levels"`
	Mean              float64     `json:"mean"`
	Median            float64     `json:"median"`
	StdDev            float64     `json:"std_dev"`
	Min               float64     `json:"min"`
	Max               float64     `json:"max"`
	Percentiles       Percentiles `json:"percentiles"`
	ProbabilityOfLoss float64     `json:"probability_of_loss"`
	Skewness          float64     `json:"skewness"`
	ExcessKurtosis    float64     `json:"excess_kurtosis"`
	MaxDrawdownP95    float64     `json:"max_drawdown_p95"`
}

// Level returns the metrics at confidence, if reported.
func (r *Report) Level(confidence float64) (Level, bool) {
	for _, l := range r.Levels {
		if math.Abs(l.Confidence-confidence) < 1e-12 {
			return l, true
		}
	}
	return Level{}, false
}

// AssetStats are terminal return statistics for a single asset
type AssetStats struct {
	Ticker            string  `json:"ticker"`
	Mean              float64 `json:"mean"`
	Median            float64 `json:"median"`
	StdDev            float64 `json:"std_dev"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	P5                float64 `json:"p5"`
	P95               float64 `json:"p95"`
	ProbabilityOfLoss float64 `json:"probability_of_loss"`
}

// Calculator computes risk reports
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates a new risk calculator
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{
		log: log.With().Str("component", "risk_calculator").Logger(),
	}
}

// ValueAtRisk returns VaR and CVaR at confidence for ascending samples.
//
// VaR is the negated (1-confidence)-quantile, linearly interpolated between
// order statistics. CVaR is the negated mean of all samples at or below that
// quantile; with an empty tail it equals VaR.
func ValueAtRisk(sorted []float64, confidence float64) (valueAtRisk, conditional float64) {
	q := formulas.QuantileSorted(sorted, 1-confidence)
	tail, ok := formulas.TailMean(sorted, q)
	if !ok {
		return -q, -q
	}
	return -q, -tail
}

// Compute builds a report from portfolio returns and, optionally, per-trial
// max drawdowns. Samples are sorted once after all trials are in, so the
// result does not depend on the order they were produced in.
func (c *Calculator) Compute(returns, drawdowns []float64, confidence []float64) (*Report, error) {
	if len(returns) == 0 {
		return nil, domain.InsufficientData(domain.StageRisk, "no simulated returns")
	}
	levels, err := normalizeLevels(confidence)
	if err != nil {
		return nil, err
	}
	for i, r := range returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, domain.Configuration(domain.StageRisk, "simulated return %d is not finite", i)
		}
	}

	sorted := formulas.SortedCopy(returns)
	summary := formulas.Summarize(returns)

	report := &Report{
		SampleCount: len(returns),
		Levels:      make([]Level, 0, len(levels)),
		Mean:        summary.Mean,
		Median:      summary.Median,
		StdDev:      summary.StdDev,
		Min:         summary.Min,
		Max:         summary.Max,
		Percentiles: Percentiles{
			P1:  formulas.QuantileSorted(sorted, 0.01),
			P5:  formulas.QuantileSorted(sorted, 0.05),
			P25: formulas.QuantileSorted(sorted, 0.25),
			P50: formulas.QuantileSorted(sorted, 0.50),
			P75: formulas.QuantileSorted(sorted, 0.75),
			P95: formulas.QuantileSorted(sorted, 0.95),
			P99: formulas.QuantileSorted(sorted, 0.99),
		},
		ProbabilityOfLoss: formulas.ProbabilityBelow(returns, 0),
		Skewness:          summary.Skewness,
		ExcessKurtosis:    summary.Kurtosis,
	}

	for _, alpha := range levels {
		v, cv := ValueAtRisk(sorted, alpha)
		report.Levels = append(report.Levels, Level{Confidence: alpha, VaR: v, CVaR: cv})
	}

	if len(drawdowns) > 0 {
		report.MaxDrawdownP95 = formulas.Quantile(drawdowns, 0.95)
	}

	c.log.Debug().
		Int("samples", report.SampleCount).
		Float64("mean", report.Mean).
		Int("levels", len(report.Levels)).
		Msg("Computed risk report")

	return report, nil
}

// FromEnsemble is Compute over a simulated ensemble's portfolio returns.
func (c *Calculator) FromEnsemble(ens *simulation.PathEnsemble, confidence []float64) (*Report, error) {
	if ens == nil {
		return nil, domain.InsufficientData(domain.StageRisk, "no simulated ensemble")
	}
	return c.Compute(ens.PortfolioReturns, ens.MaxDrawdowns, confidence)
}

// AssetStats summarises each asset's terminal return distribution.
func (c *Calculator) AssetStats(ens *simulation.PathEnsemble) []AssetStats {
	if ens == nil {
		return nil
	}
	stats := make([]AssetStats, len(ens.Tickers))
	for i, ticker := range ens.Tickers {
		returns := ens.AssetTerminalReturns[i]
		if len(returns) == 0 {
			stats[i] = AssetStats{Ticker: ticker}
			continue
		}
		sorted := formulas.SortedCopy(returns)
		s := formulas.Summarize(returns)
		stats[i] = AssetStats{
			Ticker:            ticker,
			Mean:              s.Mean,
			Median:            s.Median,
			StdDev:            s.StdDev,
			Min:               s.Min,
			Max:               s.Max,
			P5:                formulas.QuantileSorted(sorted, 0.05),
			P95:               formulas.QuantileSorted(sorted, 0.95),
			ProbabilityOfLoss: formulas.ProbabilityBelow(returns, 0),
		}
	}
	return stats
}

// normalizeLevels validates confidence levels and returns them ascending
// without duplicates. An empty list selects the defaults.
func normalizeLevels(confidence []float64) ([]float64, error) {
	if len(confidence) == 0 {
		confidence = domain.DefaultConfidenceLevels
	}
	levels := make([]float64, 0, len(confidence))
	for _, c := range confidence {
		if math.IsNaN(c) || c <= 0 || c >= 1 {
			return nil, domain.Validation("confidence level must be in (0, 1), got %v", c)
		}
		levels = append(levels, c)
	}
	sort.Float64s(levels)

	out := levels[:1]
	for _, c := range levels[1:] {
		if c != out[len(out)-1] {
			out = append(out, c)
		}
	}
	return out, nil
}
