package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/modules/history"
	"github.com/aristath/stresslab/internal/modules/scenarios"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func rampHistory(days int) *history.Aligned {
	a := &history.Aligned{
		Tickers: []string{"SPY"},
		Dates:   make([]time.Time, days),
		Returns: [][]float64{make([]float64, days)},
	}
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for d := 0; d < days; d++ {
		a.Dates[d] = start.AddDate(0, 0, d)
		a.Returns[0][d] = float64(d+1) / 1000
	}
	return a
}

func TestBootstrap_ReplaysContiguousBlocks(t *testing.T) {
	h := rampHistory(20)
	b, err := NewBootstrap(BootstrapInputs{History: h, BlockLength: 5}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 5, b.BlockLength())

	var candidates []float64
	for s := 0; s+5 <= 20; s++ {
		g := 1.0
		for d := s; d < s+5; d++ {
			g *= 1 + h.Returns[0][d]
		}
		candidates = append(candidates, g-1)
	}

	ens, err := b.Generate(context.Background(), RunParams{
		Weights: []float64{1}, NumSimulations: 200, NumDays: 5, Seed: 17,
	})
	require.NoError(t, err)

	for _, r := range ens.PortfolioReturns {
		found := false
		for _, c := range candidates {
			if abs(c-r) < 1e-12 {
				found = true
				break
			}
		}
		assert.True(t, found, "return %v is not a contiguous 5-day block", r)
	}
}

func TestBootstrap_ShortHistoryUsesSingleDays(t *testing.T) {
	b, err := NewBootstrap(BootstrapInputs{History: rampHistory(3), BlockLength: 5}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, b.BlockLength())

	ens, err := b.Generate(context.Background(), RunParams{
		Weights: []float64{1}, NumSimulations: 50, NumDays: 1, Seed: 1,
	})
	require.NoError(t, err)
	for _, r := range ens.PortfolioReturns {
		day := r * 1000
		assert.InDelta(t, day, float64(int(day+0.5)), 1e-9)
		assert.GreaterOrEqual(t, day, 1-1e-9)
		assert.LessOrEqual(t, day, 3+1e-9)
	}
}

func TestBootstrap_ReturnShockShiftsEveryDay(t *testing.T) {
	h := rampHistory(30)
	mean := stat.Mean(h.Returns[0], nil)
	std := stat.StdDev(h.Returns[0], nil)
	params := RunParams{Weights: []float64{1}, NumSimulations: 100, NumDays: 1, Seed: 99}

	neutral, err := NewBootstrap(BootstrapInputs{History: h}, zerolog.Nop())
	require.NoError(t, err)
	shocked, err := NewBootstrap(BootstrapInputs{
		History: h,
		Scenario: &scenarios.Resolved{
			Name:                  "crash",
			ReturnShocks:          []float64{-0.5},
			VolatilityMultipliers: []float64{1},
			CorrelationMultiplier: 1,
		},
		DailyMean: []float64{mean},
		DailyVol:  []float64{std},
	}, zerolog.Nop())
	require.NoError(t, err)

	a, err := neutral.Generate(context.Background(), params)
	require.NoError(t, err)
	b, err := shocked.Generate(context.Background(), params)
	require.NoError(t, err)

	for i := range a.PortfolioReturns {
		assert.InDelta(t, -0.5*DT, b.PortfolioReturns[i]-a.PortfolioReturns[i], 1e-12)
	}
}

func TestBootstrap_VolatilityMultiplierFloorsAtTotalLoss(t *testing.T) {
	h := rampHistory(10)
	h.Returns[0][0] = -0.2
	mean := stat.Mean(h.Returns[0], nil)
	std := stat.StdDev(h.Returns[0], nil)

	b, err := NewBootstrap(BootstrapInputs{
		History: h,
		Scenario: &scenarios.Resolved{
			ReturnShocks:          []float64{0},
			VolatilityMultipliers: []float64{50},
			CorrelationMultiplier: 1,
		},
		DailyMean: []float64{mean},
		DailyVol:  []float64{std},
	}, zerolog.Nop())
	require.NoError(t, err)

	ens, err := b.Generate(context.Background(), RunParams{
		Weights: []float64{1}, NumSimulations: 100, NumDays: 10, Seed: 4,
	})
	require.NoError(t, err)
	for _, r := range ens.PortfolioReturns {
		assert.GreaterOrEqual(t, r, -1.0)
	}
}

func TestNewBootstrap_Errors(t *testing.T) {
	_, err := NewBootstrap(BootstrapInputs{History: &history.Aligned{Tickers: []string{"A"}, Returns: [][]float64{{}}}}, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	_, err = NewBootstrap(BootstrapInputs{
		History: rampHistory(10),
		Scenario: &scenarios.Resolved{
			ReturnShocks:          []float64{-0.1},
			VolatilityMultipliers: []float64{1},
			CorrelationMultiplier: 1,
		},
	}, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
