package simulation

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/modules/history"
	"github.com/aristath/stresslab/internal/modules/scenarios"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// DefaultBlockLength is the bootstrap block length in trading days.
const DefaultBlockLength = 5

// BootstrapInputs describe a historical bootstrap run
type BootstrapInputs struct {
	History     *history.Aligned
	BlockLength int

	// Scenario adjustment, applied to every resampled day. Nil or neutral
	// scenarios replay history unchanged.
	Scenario  *scenarios.Resolved
	DailyMean []float64 // baseline daily means
	DailyVol  []float64 // baseline daily standard deviations
	// Mixing re-correlates standardized residuals (see covariance.MixingMatrix);
	// nil keeps the historical correlation.
	Mixing *mat.Dense
}

// Bootstrap resamples contiguous blocks of joint historical returns
type Bootstrap struct {
	tickers []string
	rows    [][]float64 // rows[t][asset], already scenario-adjusted
	block   int
	log     zerolog.Logger
}

// NewBootstrap creates a bootstrap simulator. The scenario is folded into the
// resampling pool once so every trial sees identical adjusted days.
func NewBootstrap(in BootstrapInputs, log zerolog.Logger) (*Bootstrap, error) {
	h := in.History
	if h == nil || h.NumObservations() == 0 {
		return nil, domain.InsufficientData(domain.StageSimulation, "bootstrap needs at least one joint observation")
	}
	n := h.NumAssets()
	t := h.NumObservations()

	block := in.BlockLength
	if block < 1 {
		block = DefaultBlockLength
	}
	if t < block {
		block = 1
	}

	rows := make([][]float64, t)
	for d := 0; d < t; d++ {
		rows[d] = make([]float64, n)
		h.Row(d, rows[d])
	}

	if in.Scenario != nil && !in.Scenario.IsNeutral() {
		if len(in.DailyMean) != n || len(in.DailyVol) != n || len(in.Scenario.ReturnShocks) != n {
			return nil, domain.Configuration(domain.StageSimulation, "bootstrap scenario inputs do not match %d assets", n)
		}
		if in.Mixing != nil {
			if r, c := in.Mixing.Dims(); r != n || c != n {
				return nil, domain.Configuration(domain.StageSimulation, "mixing matrix is %dx%d for %d assets", r, c, n)
			}
		}
		adjustRows(rows, in)
	}

	return &Bootstrap{
		tickers: append([]string(nil), h.Tickers...),
		rows:    rows,
		block:   block,
		log:     log.With().Str("component", "bootstrap_simulator").Logger(),
	}, nil
}

// adjustRows applies the scenario to each historical day with the same
// meaning the GBM adjuster gives it: the annual return shock becomes a daily
// drift shift, residuals around the mean are scaled by the volatility
// multiplier, and (optionally) re-correlated by the mixing matrix.
func adjustRows(rows [][]float64, in BootstrapInputs) {
	n := len(in.DailyMean)
	s := in.Scenario
	z := make([]float64, n)
	mixed := make([]float64, n)

	for _, row := range rows {
		for k := 0; k < n; k++ {
			if in.DailyVol[k] > 0 {
				z[k] = (row[k] - in.DailyMean[k]) / in.DailyVol[k]
			} else {
				z[k] = 0
			}
		}

		if in.Mixing != nil {
			for i := 0; i < n; i++ {
				sum := 0.0
				for j := 0; j < n; j++ {
					sum += in.Mixing.At(i, j) * z[j]
				}
				mixed[i] = sum
			}
		} else {
			copy(mixed, z)
		}

		for k := 0; k < n; k++ {
			r := in.DailyMean[k] + s.ReturnShocks[k]*DT + in.DailyVol[k]*s.VolatilityMultipliers[k]*mixed[k]
			// A day cannot lose more than everything
			row[k] = math.Max(r, -1)
		}
	}
}

// Method implements Simulator.
func (b *Bootstrap) Method() domain.Method { return domain.MethodHistorical }

// BlockLength returns the effective block length.
func (b *Bootstrap) BlockLength() int { return b.block }

// Generate implements Simulator.
func (b *Bootstrap) Generate(ctx context.Context, p RunParams) (*PathEnsemble, error) {
	return runTrials(ctx, b.log, b.Method(), b.tickers, p, b.newTrial)
}

type bootstrapTrial struct {
	b      *Bootstrap
	rnd    *rand.Rand
	start  int
	offset int
}

func (b *Bootstrap) newTrial(rnd *rand.Rand) dayStepper {
	return &bootstrapTrial{b: b, rnd: rnd}
}

func (t *bootstrapTrial) next(factors []float64) {
	b := t.b
	if t.offset == 0 {
		t.start = t.rnd.IntN(len(b.rows) - b.block + 1)
	}
	row := b.rows[t.start+t.offset]
	for k, r := range row {
		factors[k] = 1 + r
	}
	t.offset = (t.offset + 1) % b.block
}
