package engine

import (
	"time"

	"github.com/aristath/stresslab/internal/config"
	"github.com/aristath/stresslab/internal/modules/covariance"
	"github.com/aristath/stresslab/internal/modules/optimization"
	"github.com/aristath/stresslab/internal/modules/simulation"
)

// Options bound and tune the engine
type Options struct {
	MaxConcurrentRuns    int
	Workers              int
	MaxSimulations       int
	MaxDays              int
	MaxAssets            int
	DefaultTimeout       time.Duration
	BootstrapBlockLength int
	Repair               covariance.RepairOptions
	CholeskyMaxRetries   int
	Optimizer            optimization.Settings
}

// DefaultOptions returns the engine defaults for a single worker.
func DefaultOptions() Options {
	return Options{
		MaxConcurrentRuns:    1,
		Workers:              1,
		MaxSimulations:       100000,
		MaxDays:              2520,
		MaxAssets:            100,
		DefaultTimeout:       60 * time.Second,
		BootstrapBlockLength: simulation.DefaultBlockLength,
		Repair:               covariance.DefaultRepairOptions(),
		CholeskyMaxRetries:   12,
		Optimizer: optimization.Settings{
			MaxIterations: optimization.DefaultMaxIterations,
			Tolerance:     optimization.DefaultTolerance,
		},
	}
}

// OptionsFromConfig maps the engine section of the service configuration.
func OptionsFromConfig(cfg config.EngineConfig) Options {
	return Options{
		MaxConcurrentRuns:    cfg.MaxConcurrentRuns,
		Workers:              cfg.Workers,
		MaxSimulations:       cfg.MaxSimulations,
		MaxDays:              cfg.MaxDays,
		MaxAssets:            cfg.MaxAssets,
		DefaultTimeout:       cfg.RunTimeout,
		BootstrapBlockLength: cfg.BootstrapBlockLength,
		Repair: covariance.RepairOptions{
			MaxIterations: cfg.PSDRepairMaxIterations,
			Tolerance:     covariance.DefaultPSDTolerance,
		},
		CholeskyMaxRetries: cfg.CholeskyMaxRetries,
		Optimizer: optimization.Settings{
			MaxIterations: cfg.OptimizerMaxIterations,
			Tolerance:     cfg.OptimizerTolerance,
		},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxConcurrentRuns < 1 {
		o.MaxConcurrentRuns = d.MaxConcurrentRuns
	}
	if o.Workers < 1 {
		o.Workers = d.Workers
	}
	if o.MaxSimulations < 1 {
		o.MaxSimulations = d.MaxSimulations
	}
	if o.MaxDays < 1 {
		o.MaxDays = d.MaxDays
	}
	if o.MaxAssets < 1 {
		o.MaxAssets = d.MaxAssets
	}
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = d.DefaultTimeout
	}
	if o.BootstrapBlockLength < 1 {
		o.BootstrapBlockLength = d.BootstrapBlockLength
	}
	if o.CholeskyMaxRetries < 0 {
		o.CholeskyMaxRetries = d.CholeskyMaxRetries
	}
	return o
}
