package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/stresslab/internal/config"
	"github.com/aristath/stresslab/internal/events"
	"github.com/aristath/stresslab/internal/modules/engine"
	"github.com/aristath/stresslab/internal/modules/scenarios"
	"github.com/rs/zerolog"
)

// SweepOutcome is one scenario's result within a sweep
type SweepOutcome struct {
	Scenario string
	VaR95    float64
	CVaR95   float64
	Err      error
}

// ScenarioSweepJob runs every predefined scenario against the configured
// tickers over a trailing window. Each run emits its own events; the sweep
// emits a summary when done.
type ScenarioSweepJob struct {
	runner  SimulationRunner
	events  EventManagerInterface
	cfg     config.SweepConfig
	seed    uint64 // shared by every scenario so results differ only by the shock
	now     func() time.Time
	log     zerolog.Logger
	mu      sync.Mutex
	outcome []SweepOutcome
}

// NewScenarioSweepJob creates a new ScenarioSweepJob. eventManager may be nil.
func NewScenarioSweepJob(runner SimulationRunner, eventManager EventManagerInterface, cfg config.SweepConfig, log zerolog.Logger) *ScenarioSweepJob {
	return &ScenarioSweepJob{
		runner: runner,
		events: eventManager,
		cfg:    cfg,
		seed:   1,
		now:    time.Now,
		log:    log.With().Str("job", "scenario_sweep").Logger(),
	}
}

// Name returns the job name
func (j *ScenarioSweepJob) Name() string {
	return "scenario_sweep"
}

// Outcomes returns the results of the last sweep
func (j *ScenarioSweepJob) Outcomes() []SweepOutcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]SweepOutcome(nil), j.outcome...)
}

// Run executes the sweep. Individual scenario failures are logged and
// counted; the sweep fails only when every scenario failed.
func (j *ScenarioSweepJob) Run() error {
	if len(j.cfg.Tickers) == 0 {
		return fmt.Errorf("scenario sweep has no tickers configured")
	}

	end := j.now().UTC().Truncate(24 * time.Hour)
	// calendar days covering the trading-day lookback
	start := end.AddDate(0, 0, -j.cfg.LookbackDays*365/252)

	catalog := scenarios.Catalog()
	outcomes := make([]SweepOutcome, 0, len(catalog)+1)
	failed := 0

	runs := append([]scenarios.Entry{{Slug: "baseline", Parameters: scenarios.Neutral()}}, catalog...)
	for _, entry := range runs {
		seed := j.seed
		res, err := j.runner.Run(context.Background(), engine.Request{
			Tickers:        j.cfg.Tickers,
			Start:          start,
			End:            end,
			NumSimulations: j.cfg.Simulations,
			NumDays:        21,
			Scenario:       entry.Parameters.Restrict(j.cfg.Tickers),
			Seed:           &seed,
		})

		outcome := SweepOutcome{Scenario: entry.Slug, Err: err}
		if err != nil {
			failed++
			j.log.Warn().Err(err).Str("scenario", entry.Slug).Msg("Sweep scenario failed")
		} else if l, ok := res.Risk.Level(0.95); ok {
			outcome.VaR95 = l.VaR
			outcome.CVaR95 = l.CVaR
		}
		outcomes = append(outcomes, outcome)
	}
	j.mu.Lock()
	j.outcome = outcomes
	j.mu.Unlock()

	if j.events != nil {
		j.events.EmitTyped("scheduler", &events.SweepCompletedData{
			Scenarios: len(runs),
			Failed:    failed,
			Tickers:   j.cfg.Tickers,
		})
	}

	j.log.Info().
		Int("scenarios", len(runs)).
		Int("failed", failed).
		Strs("tickers", j.cfg.Tickers).
		Msg("Scenario sweep completed")

	if failed == len(runs) {
		return fmt.Errorf("all %d sweep scenarios failed", failed)
	}
	return nil
}
