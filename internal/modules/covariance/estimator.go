// Package covariance estimates baseline return statistics and correlation
// structure, and provides the PSD repair and Cholesky factorization the
// simulators depend on.
package covariance

import (
	"math"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/modules/history"
	"github.com/aristath/stresslab/pkg/formulas"
	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// trailingWindow is the window of the trailing volatility diagnostic (one month).
const trailingWindow = 21

// Baseline is the estimated state of the world before any scenario.
// Treat it as read-only; adjusters build new values from it.
type Baseline struct {
	Tickers      []string
	Observations int

	DailyMean []float64
	DailyVol  []float64

	// Annualized: mean × 252, volatility × √252
	Mean       []float64
	Volatility []float64

	// Annualized standard deviation of the last month of returns
	TrailingVolatility []float64

	Correlation *mat.SymDense

	Repaired     bool
	RepairReport RepairReport
}

// NumAssets returns N.
func (b *Baseline) NumAssets() int { return len(b.Tickers) }

// Covariance returns the annualized covariance σ_i·σ_j·ρ_ij.
func (b *Baseline) Covariance() *mat.SymDense {
	return CovarianceFrom(b.Volatility, b.Correlation)
}

// CovarianceFrom builds a covariance matrix from volatilities and correlations.
func CovarianceFrom(vol []float64, corr mat.Symmetric) *mat.SymDense {
	n := len(vol)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, vol[i]*vol[j]*corr.At(i, j))
		}
	}
	return cov
}

// CorrelationSummary describes the off-diagonal correlations
type CorrelationSummary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// SummarizeCorrelation summarizes the strictly upper triangle of corr.
func SummarizeCorrelation(corr mat.Symmetric) CorrelationSummary {
	n := corr.SymmetricDim()
	var values []float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			values = append(values, corr.At(i, j))
		}
	}
	if len(values) == 0 {
		return CorrelationSummary{}
	}
	s := formulas.Summarize(values)
	return CorrelationSummary{Mean: s.Mean, Median: s.Median, StdDev: s.StdDev, Min: s.Min, Max: s.Max}
}

// Estimator computes baselines from aligned returns
type Estimator struct {
	repair RepairOptions
	log    zerolog.Logger
}

// NewEstimator creates a new estimator
func NewEstimator(repair RepairOptions, log zerolog.Logger) *Estimator {
	return &Estimator{
		repair: repair.withDefaults(),
		log:    log.With().Str("component", "estimator").Logger(),
	}
}

// Estimate computes sample means, volatilities and the Pearson correlation
// matrix. It needs at least N+1 joint observations. The result is symmetric
// with a unit diagonal; numerically indefinite results are repaired.
func (e *Estimator) Estimate(aligned *history.Aligned) (*Baseline, error) {
	n := aligned.NumAssets()
	t := aligned.NumObservations()

	if n == 0 {
		return nil, domain.NewError(domain.ErrValidation, domain.StageEstimation, "no assets to estimate", nil)
	}
	if t < n+1 {
		return nil, domain.InsufficientData(domain.StageEstimation,
			"need at least %d joint observations for %d assets, have %d", n+1, n, t)
	}

	for i, row := range aligned.Returns {
		for k, r := range row {
			if math.IsNaN(r) || math.IsInf(r, 0) {
				return nil, domain.InsufficientData(domain.StageEstimation,
					"non-finite return for %s on %s", aligned.Tickers[i], aligned.Dates[k].Format("2006-01-02"))
			}
		}
	}

	b := &Baseline{
		Tickers:            append([]string(nil), aligned.Tickers...),
		Observations:       t,
		DailyMean:          make([]float64, n),
		DailyVol:           make([]float64, n),
		Mean:               make([]float64, n),
		Volatility:         make([]float64, n),
		TrailingVolatility: make([]float64, n),
	}

	for i, row := range aligned.Returns {
		b.DailyMean[i] = stat.Mean(row, nil)
		b.DailyVol[i] = stat.StdDev(row, nil)
		b.Mean[i] = formulas.AnnualizeReturn(b.DailyMean[i])
		b.Volatility[i] = formulas.AnnualizeVolatility(b.DailyVol[i])
		b.TrailingVolatility[i] = trailingVolatility(row)
	}

	corr := PearsonCorrelation(aligned.Returns, b.DailyMean, b.DailyVol)

	ok, minEig, err := IsPSD(corr, e.repair.Tolerance)
	if err != nil {
		return nil, domain.NewError(domain.ErrConfiguration, domain.StageEstimation, "correlation eigendecomposition failed", err)
	}
	if !ok {
		repaired, report, err := RepairCorrelation(corr, e.repair)
		if err != nil {
			return nil, domain.Staged(err, domain.StageEstimation)
		}
		e.log.Warn().
			Float64("min_eigen_before", minEig).
			Float64("min_eigen_after", report.MinEigenAfter).
			Int("iterations", report.Iterations).
			Msg("Sample correlation matrix repaired")
		corr = repaired
		b.Repaired = true
		b.RepairReport = report
	}
	b.Correlation = corr

	e.log.Debug().
		Int("assets", n).
		Int("observations", t).
		Msg("Baseline estimated")

	return b, nil
}

// PearsonCorrelation computes the sample correlation matrix with an explicit
// two-pass formula. Assets without dispersion are uncorrelated with the rest.
func PearsonCorrelation(returns [][]float64, mean, std []float64) *mat.SymDense {
	n := len(returns)
	corr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		corr.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			if std[i] == 0 || std[j] == 0 {
				corr.SetSym(i, j, 0)
				continue
			}
			t := len(returns[i])
			sum := 0.0
			for k := 0; k < t; k++ {
				sum += (returns[i][k] - mean[i]) * (returns[j][k] - mean[j])
			}
			cov := sum / float64(t-1)
			corr.SetSym(i, j, clamp(cov/(std[i]*std[j]), -1, 1))
		}
	}
	return corr
}

// trailingVolatility annualizes the rolling standard deviation of the last
// trailingWindow returns (or all of them when fewer exist).
func trailingVolatility(returns []float64) float64 {
	period := trailingWindow
	if len(returns) < period {
		period = len(returns)
	}
	if period < 2 {
		return 0
	}
	rolling := talib.StdDev(returns, period, 1.0)
	if len(rolling) == 0 {
		return 0
	}
	return formulas.AnnualizeVolatility(rolling[len(rolling)-1])
}
