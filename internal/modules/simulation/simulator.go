// Package simulation generates forward return paths: correlated geometric
// Brownian motion and a block bootstrap over joint history. Both share one
// trial runner so seeding, batching and reduction behave identically.
package simulation

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DT is one trading day expressed in years.
const DT = 1.0 / 252.0

const (
	defaultBatchSize   = 256
	defaultSamplePaths = 10
)

// Simulator is a path generator
type Simulator interface {
	Method() domain.Method
	Generate(ctx context.Context, p RunParams) (*PathEnsemble, error)
}

// RunParams are the per-run knobs shared by every simulator
type RunParams struct {
	Weights        []float64 // buy-and-hold portfolio weights, aligned with the simulator's tickers
	NumSimulations int
	NumDays        int
	Seed           uint64
	Workers        int
	BatchSize      int // trials per cancellation checkpoint
	SamplePaths    int // portfolio value paths kept for display; negative keeps none
}

// PathEnsemble is the reduced output of a run. Per-trial arrays are indexed
// by trial number, so they do not depend on scheduling.
type PathEnsemble struct {
	Method         domain.Method
	Tickers        []string
	NumSimulations int
	NumDays        int

	// AssetTerminalReturns[asset][trial] is the cumulative simple return over the horizon
	AssetTerminalReturns [][]float64
	// PortfolioReturns[trial] is the buy-and-hold portfolio return over the horizon
	PortfolioReturns []float64
	// MaxDrawdowns[trial] is the worst peak-to-trough decline of the portfolio path
	MaxDrawdowns []float64
	// SamplePaths[k] is the portfolio value path of trial k, starting at 1
	SamplePaths [][]float64

	Duration time.Duration
}

// dayStepper produces one trial's daily gross returns (price ratios).
type dayStepper interface {
	next(factors []float64)
}

// stepperFactory starts a fresh trial from its random stream.
type stepperFactory func(rnd *rand.Rand) dayStepper

func (p RunParams) validate(numAssets int) error {
	if p.NumSimulations < 1 {
		return domain.Validation("num_simulations must be at least 1, got %d", p.NumSimulations)
	}
	if p.NumDays < 1 {
		return domain.Validation("num_days must be at least 1, got %d", p.NumDays)
	}
	if len(p.Weights) != numAssets {
		return domain.Validation("got %d weights for %d assets", len(p.Weights), numAssets)
	}
	for i, w := range p.Weights {
		if math.IsNaN(w) || w < 0 {
			return domain.Validation("weight %d must be non-negative, got %v", i, w)
		}
	}
	return nil
}

func (p RunParams) withDefaults() RunParams {
	if p.Workers < 1 {
		p.Workers = 1
	}
	if p.BatchSize < 1 {
		p.BatchSize = defaultBatchSize
	}
	if p.SamplePaths == 0 {
		p.SamplePaths = defaultSamplePaths
	}
	if p.SamplePaths < 0 {
		p.SamplePaths = 0
	}
	if p.SamplePaths > p.NumSimulations {
		p.SamplePaths = p.NumSimulations
	}
	return p
}

// runTrials drives every trial through factory, fanning batches out over a
// bounded worker pool. Cancellation is honoured between batches.
func runTrials(ctx context.Context, log zerolog.Logger, method domain.Method, tickers []string, p RunParams, factory stepperFactory) (*PathEnsemble, error) {
	n := len(tickers)
	if err := p.validate(n); err != nil {
		return nil, err
	}
	p = p.withDefaults()
	start := time.Now()

	ens := &PathEnsemble{
		Method:               method,
		Tickers:              append([]string(nil), tickers...),
		NumSimulations:       p.NumSimulations,
		NumDays:              p.NumDays,
		AssetTerminalReturns: make([][]float64, n),
		PortfolioReturns:     make([]float64, p.NumSimulations),
		MaxDrawdowns:         make([]float64, p.NumSimulations),
		SamplePaths:          make([][]float64, p.SamplePaths),
	}
	for i := range ens.AssetTerminalReturns {
		ens.AssetTerminalReturns[i] = make([]float64, p.NumSimulations)
	}

	log.Debug().
		Str("method", string(method)).
		Int("assets", n).
		Int("simulations", p.NumSimulations).
		Int("days", p.NumDays).
		Int("workers", p.Workers).
		Uint64("seed", p.Seed).
		Msg("Starting simulation")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)

	for lo := 0; lo < p.NumSimulations; lo += p.BatchSize {
		if gctx.Err() != nil {
			break
		}
		lo := lo
		hi := lo + p.BatchSize
		if hi > p.NumSimulations {
			hi = p.NumSimulations
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			runBatch(ens, p, factory, lo, hi)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ens.Duration = time.Since(start)
	log.Debug().
		Str("method", string(method)).
		Dur("duration", ens.Duration).
		Msg("Simulation finished")

	return ens, nil
}

// runBatch simulates trials [lo, hi) and writes their results in place.
func runBatch(ens *PathEnsemble, p RunParams, factory stepperFactory, lo, hi int) {
	n := len(ens.Tickers)
	factors := make([]float64, n)
	growth := make([]float64, n)

	for trial := lo; trial < hi; trial++ {
		rnd := rand.New(TrialSource(p.Seed, trial))
		stepper := factory(rnd)

		for k := range growth {
			growth[k] = 1
		}

		var path []float64
		if trial < p.SamplePaths {
			path = make([]float64, p.NumDays+1)
			path[0] = 1
		}

		value, peak, worst := 1.0, 1.0, 0.0
		for day := 0; day < p.NumDays; day++ {
			stepper.next(factors)

			value = 0
			for k := 0; k < n; k++ {
				growth[k] *= factors[k]
				value += p.Weights[k] * growth[k]
			}

			if value > peak {
				peak = value
			}
			if peak > 0 {
				if dd := (peak - value) / peak; dd > worst {
					worst = dd
				}
			}
			if path != nil {
				path[day+1] = value
			}
		}

		for k := 0; k < n; k++ {
			ens.AssetTerminalReturns[k][trial] = growth[k] - 1
		}
		ens.PortfolioReturns[trial] = value - 1
		ens.MaxDrawdowns[trial] = worst
		if path != nil {
			ens.SamplePaths[trial] = path
		}
	}
}

// TrialSource derives the random stream of one trial from the run seed.
// Streams depend only on (seed, trial), never on which worker runs them.
func TrialSource(seed uint64, trial int) *rand.PCG {
	s1 := splitmix64(seed ^ splitmix64(uint64(trial)+0x9e3779b97f4a7c15))
	s2 := splitmix64(s1 ^ uint64(trial))
	return rand.NewPCG(s1, s2)
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
