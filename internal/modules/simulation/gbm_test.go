package simulation

import (
	"context"
	"math"
	"testing"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/modules/covariance"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestGBM_MomentsMatchParameters(t *testing.T) {
	g, err := NewGBM(GBMInputs{
		Tickers:    []string{"SPY"},
		Mean:       []float64{0.10},
		Volatility: []float64{0.20},
		Factor:     covariance.IdentityFactor(1),
	}, zerolog.Nop())
	require.NoError(t, err)

	ens, err := g.Generate(context.Background(), RunParams{
		Weights: []float64{1}, NumSimulations: 20000, NumDays: 252, Seed: 2024, Workers: 4,
	})
	require.NoError(t, err)

	logs := make([]float64, len(ens.PortfolioReturns))
	for i, r := range ens.PortfolioReturns {
		logs[i] = math.Log1p(r)
	}
	// One year of GBM: E[S_T/S_0] = e^μ, sd(log) = σ
	assert.InDelta(t, math.Exp(0.10)-1, stat.Mean(ens.PortfolioReturns, nil), 0.01)
	assert.InDelta(t, 0.20, stat.StdDev(logs, nil), 0.005)
	assert.InDelta(t, 0.10-0.5*0.04, stat.Mean(logs, nil), 0.01)
}

func TestGBM_ZeroVolatilityIsDeterministic(t *testing.T) {
	g, err := NewGBM(GBMInputs{
		Tickers:    []string{"CASH"},
		Mean:       []float64{0.05},
		Volatility: []float64{0},
		Factor:     covariance.IdentityFactor(1),
	}, zerolog.Nop())
	require.NoError(t, err)

	ens, err := g.Generate(context.Background(), RunParams{
		Weights: []float64{1}, NumSimulations: 5, NumDays: 126, Seed: 1,
	})
	require.NoError(t, err)
	want := math.Exp(0.05*126*DT) - 1
	for _, r := range ens.PortfolioReturns {
		assert.InDelta(t, want, r, 1e-12)
	}
	for _, dd := range ens.MaxDrawdowns {
		assert.Equal(t, 0.0, dd)
	}
}

func TestGBM_Correlation(t *testing.T) {
	corr := mat.NewSymDense(2, []float64{1, 0.8, 0.8, 1})
	factor, err := covariance.NewFactorizer(12, zerolog.Nop()).Factorize(corr)
	require.NoError(t, err)

	g, err := NewGBM(GBMInputs{
		Tickers:    []string{"A", "B"},
		Mean:       []float64{0, 0},
		Volatility: []float64{0.2, 0.3},
		Factor:     factor,
	}, zerolog.Nop())
	require.NoError(t, err)

	ens, err := g.Generate(context.Background(), RunParams{
		Weights: []float64{0.5, 0.5}, NumSimulations: 20000, NumDays: 1, Seed: 5, Workers: 2,
	})
	require.NoError(t, err)

	a := make([]float64, ens.NumSimulations)
	b := make([]float64, ens.NumSimulations)
	for i := range a {
		a[i] = math.Log1p(ens.AssetTerminalReturns[0][i])
		b[i] = math.Log1p(ens.AssetTerminalReturns[1][i])
	}
	assert.InDelta(t, 0.8, stat.Correlation(a, b, nil), 0.02)
}

func TestNewGBM_RejectsMismatchedInputs(t *testing.T) {
	_, err := NewGBM(GBMInputs{
		Tickers:    []string{"A", "B"},
		Mean:       []float64{0},
		Volatility: []float64{0.1, 0.1},
		Factor:     covariance.IdentityFactor(2),
	}, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewGBM(GBMInputs{
		Tickers:    []string{"A", "B"},
		Mean:       []float64{0, 0},
		Volatility: []float64{0.1, 0.1},
		Factor:     covariance.IdentityFactor(3),
	}, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewGBM(GBMInputs{
		Tickers:    []string{"A"},
		Mean:       []float64{0},
		Volatility: []float64{-0.1},
		Factor:     covariance.IdentityFactor(1),
	}, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
