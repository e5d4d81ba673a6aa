package di

import (
	"fmt"

	"github.com/aristath/stresslab/internal/config"
	"github.com/aristath/stresslab/internal/scheduler"
	"github.com/rs/zerolog"
)

// historyCheckSchedule runs the history integrity check nightly
const historyCheckSchedule = "0 15 3 * * *"

// JobInstances holds the registered background jobs
type JobInstances struct {
	Scheduler    *scheduler.Scheduler
	HistoryCheck *scheduler.CheckHistoryDatabaseJob
	Sweep        *scheduler.ScenarioSweepJob // nil when the sweep is disabled
}

// RegisterJobs creates the jobs and registers them with a new scheduler.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{
		Scheduler: scheduler.New(log),
	}

	jobs.HistoryCheck = scheduler.NewCheckHistoryDatabaseJob(container.HistoryDB)
	jobs.HistoryCheck.SetLogger(log.With().Str("job", "check_history_database").Logger())
	if err := jobs.Scheduler.AddJob(historyCheckSchedule, jobs.HistoryCheck); err != nil {
		return nil, fmt.Errorf("failed to register history check: %w", err)
	}

	if cfg.Sweep.Enabled() {
		jobs.Sweep = scheduler.NewScenarioSweepJob(container.Engine, container.EventManager, cfg.Sweep, log)
		if err := jobs.Scheduler.AddJob(cfg.Sweep.Schedule, jobs.Sweep); err != nil {
			return nil, fmt.Errorf("failed to register scenario sweep %q: %w", cfg.Sweep.Schedule, err)
		}
	} else {
		log.Info().Msg("Scenario sweep disabled")
	}

	return jobs, nil
}
