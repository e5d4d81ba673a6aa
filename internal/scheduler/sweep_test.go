package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aristath/stresslab/internal/config"
	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/events"
	"github.com/aristath/stresslab/internal/modules/engine"
	"github.com/aristath/stresslab/internal/modules/risk"
	"github.com/aristath/stresslab/internal/modules/scenarios"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu       sync.Mutex
	requests []engine.Request
	fail     map[string]bool
}

func (f *fakeRunner) Run(ctx context.Context, req engine.Request) (*engine.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.fail[req.Scenario.Name] || f.fail["*"] {
		return nil, domain.InsufficientData(domain.StageData, "no history")
	}
	return &engine.Result{
		Risk: &risk.Report{Levels: []risk.Level{{Confidence: 0.95, VaR: 0.1, CVaR: 0.12}}},
	}, nil
}

type recordingEvents struct {
	data []events.EventData
}

func (r *recordingEvents) EmitTyped(module string, data events.EventData) {
	r.data = append(r.data, data)
}

func newSweep(runner SimulationRunner, ev EventManagerInterface) *ScenarioSweepJob {
	job := NewScenarioSweepJob(runner, ev, config.SweepConfig{
		Schedule:     "0 0 23 * * *",
		Tickers:      []string{"SPY", "TLT"},
		LookbackDays: 252,
		Simulations:  1000,
	}, zerolog.Nop())
	job.now = func() time.Time { return time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC) }
	return job
}

func TestScenarioSweepJob_Run(t *testing.T) {
	runner := &fakeRunner{}
	ev := &recordingEvents{}
	job := newSweep(runner, ev)

	require.NoError(t, job.Run())
	assert.Equal(t, "scenario_sweep", job.Name())

	want := len(scenarios.Catalog()) + 1
	require.Len(t, runner.requests, want)

	for _, req := range runner.requests {
		assert.Equal(t, []string{"SPY", "TLT"}, req.Tickers)
		assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), req.End)
		assert.Equal(t, time.Date(2023, 6, 4, 0, 0, 0, 0, time.UTC), req.Start)
		assert.Equal(t, 1000, req.NumSimulations)
		require.NotNil(t, req.Seed)
		assert.Equal(t, uint64(1), *req.Seed)
		for _, a := range req.Scenario.Assets {
			assert.Contains(t, []string{"SPY", "TLT"}, a.Ticker)
		}
	}
	assert.Equal(t, "baseline", runner.requests[0].Scenario.Name)

	outcomes := job.Outcomes()
	require.Len(t, outcomes, want)
	assert.Equal(t, 0.1, outcomes[1].VaR95)

	require.Len(t, ev.data, 1)
	summary := ev.data[0].(*events.SweepCompletedData)
	assert.Equal(t, want, summary.Scenarios)
	assert.Equal(t, 0, summary.Failed)
}

func TestScenarioSweepJob_PartialFailure(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{"2008 Financial Crisis": true}}
	ev := &recordingEvents{}
	job := newSweep(runner, ev)

	require.NoError(t, job.Run())
	assert.Equal(t, 1, ev.data[0].(*events.SweepCompletedData).Failed)

	failed := 0
	for _, o := range job.Outcomes() {
		if o.Err != nil {
			failed++
			assert.Equal(t, "financial-crisis-2008", o.Scenario)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestScenarioSweepJob_AllFail(t *testing.T) {
	job := newSweep(&fakeRunner{fail: map[string]bool{"*": true}}, nil)
	assert.Error(t, job.Run())
}

func TestScenarioSweepJob_NoTickers(t *testing.T) {
	job := NewScenarioSweepJob(&fakeRunner{}, nil, config.SweepConfig{}, zerolog.Nop())
	assert.Error(t, job.Run())
}
