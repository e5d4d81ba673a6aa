package di

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/stresslab/internal/config"
	"github.com/aristath/stresslab/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		DataDir:       dir,
		HistoryDBPath: filepath.Join(dir, "history.db"),
		LogLevel:      "error",
		Port:          0,
		Engine: config.EngineConfig{
			MaxConcurrentRuns: 2,
			Workers:           2,
		},
	}
}

func TestWire_Minimal(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.HistoryDB)
	assert.NotNil(t, container.HistoryStore)
	assert.NotNil(t, container.EventManager)
	assert.NotNil(t, container.Metrics)
	assert.NotNil(t, container.Engine)
	assert.Nil(t, container.EventSink)

	assert.Equal(t, 2, container.Engine.Options().MaxConcurrentRuns)

	require.NotNil(t, jobs)
	assert.NotNil(t, jobs.HistoryCheck)
	assert.Nil(t, jobs.Sweep)
	assert.Equal(t, 1, jobs.Scheduler.Entries())

	// freshly migrated database passes its own integrity check
	assert.NoError(t, jobs.HistoryCheck.Run())
}

func TestWire_SweepAndSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.EventsSinkPath = filepath.Join(cfg.DataDir, "events.msgpack")
	cfg.Sweep = config.SweepConfig{
		Schedule:     "0 0 22 * * 1-5",
		Tickers:      []string{"SPY", "TLT"},
		LookbackDays: 252,
		Simulations:  100,
	}

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)

	require.NotNil(t, jobs.Sweep)
	assert.Equal(t, 2, jobs.Scheduler.Entries())
	require.NotNil(t, container.EventSink)

	container.EventManager.EmitTyped("test", &events.SweepCompletedData{Scenarios: 1, Failed: 0})
	require.NoError(t, container.Close())

	f, err := os.Open(cfg.EventsSinkPath)
	require.NoError(t, err)
	defer f.Close()

	frames, err := events.ReadFrames(f)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, events.SweepCompleted, frames[0].Type)
}

func TestWire_BadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sweep = config.SweepConfig{Schedule: "every now and then", Tickers: []string{"SPY"}}

	_, _, err := Wire(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestWire_UnwritableSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.EventsSinkPath = filepath.Join(cfg.DataDir, "missing", "dir", "events.msgpack")

	_, _, err := Wire(cfg, zerolog.Nop())
	assert.Error(t, err)
}
