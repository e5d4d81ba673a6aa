package scenarios

import (
	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/modules/covariance"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Adjusted is a baseline with a scenario applied. All slices and the
// correlation matrix are fresh copies.
type Adjusted struct {
	Tickers     []string
	Mean        []float64 // annualized, shocked
	Volatility  []float64 // annualized, scaled
	Correlation *mat.SymDense

	Scenario *Resolved

	Repaired     bool
	RepairReport covariance.RepairReport
}

// Covariance returns the annualized stressed covariance.
func (a *Adjusted) Covariance() *mat.SymDense {
	return covariance.CovarianceFrom(a.Volatility, a.Correlation)
}

// Adjuster applies scenarios to baselines
type Adjuster struct {
	repair covariance.RepairOptions
	log    zerolog.Logger
}

// NewAdjuster creates a new scenario adjuster
func NewAdjuster(repair covariance.RepairOptions, log zerolog.Logger) *Adjuster {
	return &Adjuster{
		repair: repair,
		log:    log.With().Str("component", "scenario_adjuster").Logger(),
	}
}

// Apply shocks expected returns, scales volatilities and scales off-diagonal
// correlations (clamped to [-1, 1]), in that order. When the stressed
// correlation matrix is not PSD it is repaired; a repair that does not
// converge fails with ErrConfiguration. The baseline is never modified.
func (a *Adjuster) Apply(b *covariance.Baseline, p *Parameters) (*Adjusted, error) {
	resolved, err := p.Resolve(b.Tickers)
	if err != nil {
		return nil, err
	}
	return a.ApplyResolved(b, resolved)
}

// ApplyResolved is Apply for an already validated scenario.
func (a *Adjuster) ApplyResolved(b *covariance.Baseline, r *Resolved) (*Adjusted, error) {
	n := b.NumAssets()
	if len(r.ReturnShocks) != n || len(r.VolatilityMultipliers) != n {
		return nil, domain.Validation("scenario resolved for %d assets, baseline has %d", len(r.ReturnShocks), n)
	}

	out := &Adjusted{
		Tickers:    append([]string(nil), b.Tickers...),
		Mean:       make([]float64, n),
		Volatility: make([]float64, n),
		Scenario:   r,
	}

	for i := 0; i < n; i++ {
		out.Mean[i] = b.Mean[i] + r.ReturnShocks[i]
		out.Volatility[i] = b.Volatility[i] * r.VolatilityMultipliers[i]
	}

	corr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		corr.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			v := b.Correlation.At(i, j) * r.CorrelationMultiplier
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			corr.SetSym(i, j, v)
		}
	}

	ok, minEig, err := covariance.IsPSD(corr, a.tolerance())
	if err != nil {
		return nil, domain.NewError(domain.ErrConfiguration, domain.StageAdjustment, "stressed correlation eigendecomposition failed", err)
	}
	if !ok {
		repaired, report, err := covariance.RepairCorrelation(corr, a.repair)
		if err != nil {
			a.log.Error().
				Err(err).
				Str("scenario", r.Name).
				Float64("min_eigen", minEig).
				Msg("Stressed correlation matrix could not be repaired")
			return nil, domain.Staged(err, domain.StageAdjustment)
		}
		a.log.Warn().
			Str("scenario", r.Name).
			Float64("correlation_multiplier", r.CorrelationMultiplier).
			Float64("min_eigen_before", minEig).
			Float64("min_eigen_after", report.MinEigenAfter).
			Int("iterations", report.Iterations).
			Msg("Stressed correlation matrix repaired")
		corr = repaired
		out.Repaired = true
		out.RepairReport = report
	}
	out.Correlation = corr

	return out, nil
}

func (a *Adjuster) tolerance() float64 {
	if a.repair.Tolerance > 0 {
		return a.repair.Tolerance
	}
	return covariance.DefaultPSDTolerance
}
