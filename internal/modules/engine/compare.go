package engine

import (
	"context"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/google/uuid"
)

// LevelDifference contrasts one confidence level across the two methods.
// Differences are Monte Carlo minus historical.
type LevelDifference struct {
	Confidence     float64 `json:"confidence"`
	MonteCarloVaR  float64 `json:"monte_carlo_var"`
	HistoricalVaR  float64 `json:"historical_var"`
	VaRDifference  float64 `json:"var_difference"`
	MonteCarloCVaR float64 `json:"monte_carlo_cvar"`
	HistoricalCVaR float64 `json:"historical_cvar"`
	CVaRDifference float64 `json:"cvar_difference"`
}

// Comparison holds a Monte Carlo and a historical run of the same request
type Comparison struct {
	Seed           uint64            `json:"seed"`
	MonteCarlo     *Result           `json:"monte_carlo"`
	Historical     *Result           `json:"historical"`
	Levels         []LevelDifference `json:"levels"`
	MeanDifference float64           `json:"mean_difference"`
}

// Compare runs req once per method with a shared seed. The request's own
// method is ignored. Either run failing fails the comparison. The request
// timeout bounds both runs together.
func (e *Engine) Compare(ctx context.Context, req Request) (*Comparison, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = e.opts.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	seed := SeedFromRunID(uuid.New())
	if req.Seed != nil {
		seed = *req.Seed
	}
	req.Seed = &seed

	mcReq := req
	mcReq.Method = domain.MethodMonteCarlo
	mc, err := e.Run(ctx, mcReq)
	if err != nil {
		return nil, err
	}

	histReq := req
	histReq.Method = domain.MethodHistorical
	hist, err := e.Run(ctx, histReq)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{
		Seed:           seed,
		MonteCarlo:     mc,
		Historical:     hist,
		MeanDifference: mc.Risk.Mean - hist.Risk.Mean,
	}
	for _, l := range mc.Risk.Levels {
		h, ok := hist.Risk.Level(l.Confidence)
		if !ok {
			continue
		}
		cmp.Levels = append(cmp.Levels, LevelDifference{
			Confidence:     l.Confidence,
			MonteCarloVaR:  l.VaR,
			HistoricalVaR:  h.VaR,
			VaRDifference:  l.VaR - h.VaR,
			MonteCarloCVaR: l.CVaR,
			HistoricalCVaR: h.CVaR,
			CVaRDifference: l.CVaR - h.CVaR,
		})
	}

	e.log.Info().
		Uint64("seed", seed).
		Str("monte_carlo_run", mc.RunID).
		Str("historical_run", hist.RunID).
		Msg("Method comparison completed")

	return cmp, nil
}
