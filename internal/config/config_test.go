package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STRESS_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "history.db"), cfg.HistoryDBPath)
	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, 5, cfg.Engine.BootstrapBlockLength)
	assert.Equal(t, 100000, cfg.Engine.MaxSimulations)
	assert.Equal(t, 60*time.Second, cfg.Engine.RunTimeout)
	assert.GreaterOrEqual(t, cfg.Engine.Workers, 1)
	assert.GreaterOrEqual(t, cfg.Engine.MaxConcurrentRuns, 1)
	assert.False(t, cfg.Sweep.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STRESS_DATA_DIR", t.TempDir())
	t.Setenv("STRESS_PORT", "9100")
	t.Setenv("SIMULATION_WORKERS", "3")
	t.Setenv("RUN_TIMEOUT", "5s")
	t.Setenv("OPTIMIZER_TOLERANCE", "1e-8")
	t.Setenv("SWEEP_SCHEDULE", "0 0 6 * * MON-FRI")
	t.Setenv("SWEEP_TICKERS", "spy, tlt,,gld")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 3, cfg.Engine.Workers)
	assert.Equal(t, 5*time.Second, cfg.Engine.RunTimeout)
	assert.Equal(t, 1e-8, cfg.Engine.OptimizerTolerance)
	assert.Equal(t, []string{"SPY", "TLT", "GLD"}, cfg.Sweep.Tickers)
	assert.True(t, cfg.Sweep.Enabled())
}

func TestLoad_InvalidValueFallsBack(t *testing.T) {
	t.Setenv("STRESS_DATA_DIR", t.TempDir())
	t.Setenv("MAX_SIMULATIONS", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100000, cfg.Engine.MaxSimulations)
}

func TestValidate_Rejects(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port: 8090,
			Engine: EngineConfig{
				MaxConcurrentRuns:      1,
				Workers:                1,
				MaxSimulations:         10,
				MaxDays:                10,
				MaxAssets:              10,
				RunTimeout:             time.Second,
				BootstrapBlockLength:   5,
				PSDRepairMaxIterations: 10,
				CholeskyMaxRetries:     5,
				OptimizerMaxIterations: 10,
				OptimizerTolerance:     1e-9,
			},
		}
	}

	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"workers", func(c *Config) { c.Engine.Workers = 0 }},
		{"admission", func(c *Config) { c.Engine.MaxConcurrentRuns = 0 }},
		{"timeout", func(c *Config) { c.Engine.RunTimeout = 0 }},
		{"block length", func(c *Config) { c.Engine.BootstrapBlockLength = 0 }},
		{"tolerance", func(c *Config) { c.Engine.OptimizerTolerance = 0 }},
		{"sweep lookback", func(c *Config) { c.Sweep.Schedule = "@daily"; c.Sweep.LookbackDays = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
