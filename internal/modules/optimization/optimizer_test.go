package optimization

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func covFrom(vol []float64, corr [][]float64) *mat.SymDense {
	n := len(vol)
	c := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c.SetSym(i, j, corr[i][j]*vol[i]*vol[j])
		}
	}
	return c
}

func newTestOptimizer() *Optimizer {
	return NewOptimizer(Settings{}, zerolog.Nop())
}

func assertFeasible(t *testing.T, res *Result) {
	t.Helper()
	sum := 0.0
	for ticker, w := range res.Weights {
		assert.GreaterOrEqual(t, w, -1e-9, "weight of %s", ticker)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestProjectSimplex(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"already feasible", []float64{0.25, 0.75}, []float64{0.25, 0.75}},
		{"single large entry", []float64{2, 0}, []float64{1, 0}},
		{"uniform shift", []float64{0.2, 0.2, 0.2}, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}},
		{"negative entry", []float64{-1, 0.5}, []float64{0, 1}},
		{"all negative", []float64{-3, -1}, []float64{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]float64, len(tt.in))
			projectSimplex(got, tt.in)
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestMinVolatility_TwoUncorrelatedAssets(t *testing.T) {
	p := Problem{
		Tickers:    []string{"A", "B"},
		Mean:       []float64{0.05, 0.08},
		Covariance: covFrom([]float64{0.1, 0.2}, [][]float64{{1, 0}, {0, 1}}),
	}
	res, err := newTestOptimizer().MinVolatility(context.Background(), p)
	require.NoError(t, err)

	// w_A = σ_B² / (σ_A² + σ_B²)
	assert.InDelta(t, 0.8, res.Weights["A"], 1e-6)
	assert.InDelta(t, 0.2, res.Weights["B"], 1e-6)
	assert.InDelta(t, math.Sqrt(0.64*0.01+0.04*0.04), res.Volatility, 1e-6)
	assert.Equal(t, ObjectiveMinVolatility, res.Objective)
	assert.False(t, res.Degraded)
	assertFeasible(t, res)
}

func TestMinVolatility_CorrelatedAssets(t *testing.T) {
	s1, s2, rho := 0.18, 0.12, -0.3
	p := Problem{
		Tickers:    []string{"SPY", "TLT"},
		Mean:       []float64{0.08, 0.03},
		Covariance: covFrom([]float64{s1, s2}, [][]float64{{1, rho}, {rho, 1}}),
	}
	res, err := newTestOptimizer().MinVolatility(context.Background(), p)
	require.NoError(t, err)

	want := (s2*s2 - rho*s1*s2) / (s1*s1 + s2*s2 - 2*rho*s1*s2)
	assert.InDelta(t, want, res.Weights["SPY"], 1e-6)
	assertFeasible(t, res)
}

func TestMinVolatility_CornerSolution(t *testing.T) {
	// B is riskier and perfectly correlated with A: hold only A
	p := Problem{
		Tickers:    []string{"A", "B"},
		Mean:       []float64{0.05, 0.05},
		Covariance: covFrom([]float64{0.1, 0.3}, [][]float64{{1, 0.9}, {0.9, 1}}),
	}
	res, err := newTestOptimizer().MinVolatility(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Weights["A"], 1e-6)
	assert.InDelta(t, 0.0, res.Weights["B"], 1e-6)
}

func TestMaxSharpe_MatchesTangencyPortfolio(t *testing.T) {
	p := Problem{
		Tickers:    []string{"A", "B"},
		Mean:       []float64{0.10, 0.05},
		Covariance: covFrom([]float64{0.2, 0.1}, [][]float64{{1, 0}, {0, 1}}),
	}
	res, frontier, err := newTestOptimizer().MaxSharpe(context.Background(), p)
	require.NoError(t, err)

	// Σ⁻¹μ = (2.5, 5) → w = (1/3, 2/3)
	assert.InDelta(t, 1.0/3, res.Weights["A"], 1e-3)
	assert.InDelta(t, 2.0/3, res.Weights["B"], 1e-3)
	assert.InDelta(t, math.Sqrt(0.5), res.Sharpe, 1e-5)
	assertFeasible(t, res)

	require.Len(t, frontier, frontierPoints+1)
	assert.Equal(t, 0.0, frontier[0].Tilt)
	for i := 1; i < len(frontier); i++ {
		assert.GreaterOrEqual(t, frontier[i].Return, frontier[i-1].Return-1e-8)
		assert.LessOrEqual(t, frontier[i].Sharpe, res.Sharpe+1e-9)
	}
}

func TestMaxSharpe_RiskFreeRate(t *testing.T) {
	p := Problem{
		Tickers:      []string{"A", "B"},
		Mean:         []float64{0.10, 0.05},
		Covariance:   covFrom([]float64{0.2, 0.1}, [][]float64{{1, 0}, {0, 1}}),
		RiskFreeRate: 0.02,
	}
	res, _, err := newTestOptimizer().MaxSharpe(context.Background(), p)
	require.NoError(t, err)

	// Σ⁻¹(μ - r_f) = (2, 3) → w = (0.4, 0.6)
	assert.InDelta(t, 0.4, res.Weights["A"], 1e-3)
	assert.InDelta(t, 0.6, res.Weights["B"], 1e-3)
	assert.InDelta(t, (res.ExpectedReturn-0.02)/res.Volatility, res.Sharpe, 1e-12)
}

func TestMaxSharpe_TieBreaksByTicker(t *testing.T) {
	// Two indistinguishable, perfectly correlated assets: every mix ties on
	// Sharpe and volatility, so the lexicographically first ticker wins.
	p := Problem{
		Tickers:    []string{"ZZZ", "AAA"},
		Mean:       []float64{0.1, 0.1},
		Covariance: covFrom([]float64{0.2, 0.2}, [][]float64{{1, 1}, {1, 1}}),
	}
	res, _, err := newTestOptimizer().MaxSharpe(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Weights["AAA"], 1e-12)
	assert.InDelta(t, 0.0, res.Weights["ZZZ"], 1e-12)
}

func TestOptimize_RandomProblemsAreFeasible(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 3))
	opt := newTestOptimizer()

	for trial := 0; trial < 5; trial++ {
		n := 5
		a := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				a.Set(i, j, rng.NormFloat64()*0.1)
			}
		}
		cov := mat.NewSymDense(n, nil)
		cov.SymOuterK(1, a)
		for i := 0; i < n; i++ {
			cov.SetSym(i, i, cov.At(i, i)+0.001)
		}
		mean := make([]float64, n)
		for i := range mean {
			mean[i] = 0.02 + 0.1*rng.Float64()
		}

		sol, err := opt.Optimize(context.Background(), Problem{
			Tickers:    []string{"A", "B", "C", "D", "E"},
			Mean:       mean,
			Covariance: cov,
		})
		require.NoError(t, err)
		assertFeasible(t, sol.MaxSharpe)
		assertFeasible(t, sol.MinVolatility)
		assert.GreaterOrEqual(t, sol.MaxSharpe.Sharpe, sol.MinVolatility.Sharpe-1e-9)
		assert.LessOrEqual(t, sol.MinVolatility.Volatility, sol.MaxSharpe.Volatility+1e-9)
	}
}

func TestOptimize_SingleAsset(t *testing.T) {
	sol, err := newTestOptimizer().Optimize(context.Background(), Problem{
		Tickers:    []string{"SPY"},
		Mean:       []float64{0.07},
		Covariance: mat.NewSymDense(1, []float64{0.04}),
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sol.MaxSharpe.Weights["SPY"], 1e-12)
	assert.InDelta(t, 1.0, sol.MinVolatility.Weights["SPY"], 1e-12)
	assert.InDelta(t, 0.35, sol.MaxSharpe.Sharpe, 1e-12)
}

func TestMinVolatility_NonConvergence(t *testing.T) {
	opt := NewOptimizer(Settings{MaxIterations: 1, Tolerance: 1e-14}, zerolog.Nop())
	_, err := opt.MinVolatility(context.Background(), Problem{
		Tickers:    []string{"A", "B"},
		Mean:       []float64{0.05, 0.08},
		Covariance: covFrom([]float64{0.1, 0.2}, [][]float64{{1, 0}, {0, 1}}),
	})
	assert.ErrorIs(t, err, domain.ErrOptimization)
	assert.Equal(t, domain.StageOptimization, domain.StageOf(err))
}

func TestOptimize_Validation(t *testing.T) {
	opt := newTestOptimizer()
	cov := mat.NewSymDense(2, []float64{0.04, 0, 0, 0.01})

	_, err := opt.MinVolatility(context.Background(), Problem{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = opt.MinVolatility(context.Background(), Problem{Tickers: []string{"A", "B"}, Mean: []float64{0.1}, Covariance: cov})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = opt.MaxSharpe(context.Background(), Problem{Tickers: []string{"A", "B"}, Mean: []float64{0.1, math.NaN()}, Covariance: cov})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = opt.MaxSharpe(context.Background(), Problem{Tickers: []string{"A"}, Mean: []float64{0.1}, Covariance: cov})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEqualWeight_IsFlaggedDegraded(t *testing.T) {
	p := Problem{
		Tickers:    []string{"A", "B", "C", "D"},
		Mean:       []float64{0.04, 0.04, 0.04, 0.04},
		Covariance: covFrom([]float64{0.1, 0.1, 0.1, 0.1}, [][]float64{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}),
	}
	res := EqualWeight(p, ObjectiveMaxSharpe, "solver did not converge")
	assert.True(t, res.Degraded)
	assert.Equal(t, "solver did not converge", res.Reason)
	for _, w := range res.Weights {
		assert.Equal(t, 0.25, w)
	}
	assert.InDelta(t, 0.04, res.ExpectedReturn, 1e-12)
	assert.InDelta(t, 0.05, res.Volatility, 1e-12)
}

func TestExpectedShortfall(t *testing.T) {
	assert.InDelta(t, 2.0627, ExpectedShortfall(0, 1, 0.95), 1e-3)
	assert.InDelta(t, -0.1+0.2*2.0627, ExpectedShortfall(0.1, 0.2, 0.95), 1e-3)
	assert.Equal(t, -0.05, ExpectedShortfall(0.05, 0, 0.95))
}

// nearDuplicates is five ETFs tracking the same index: vols around 20%
// and pairwise correlation rho.
func nearDuplicates(rho float64) Problem {
	vol := []float64{0.20, 0.21, 0.19, 0.22, 0.18}
	corr := make([][]float64, len(vol))
	for i := range corr {
		corr[i] = make([]float64, len(vol))
		for j := range corr[i] {
			corr[i][j] = rho
		}
		corr[i][i] = 1
	}
	return Problem{
		Tickers:    []string{"SPY", "IVV", "VOO", "SPLG", "SPTM"},
		Mean:       []float64{0.080, 0.081, 0.079, 0.082, 0.078},
		Covariance: covFrom(vol, corr),
	}
}

func TestSolve_NearDuplicateInteriorSolution(t *testing.T) {
	p := nearDuplicates(0.999)
	want := []float64{0.3, 0.25, 0.2, 0.15, 0.1}

	// Choose μ so that want is the unconstrained optimum at tilt 1:
	// 2Σw - μ = 0 with 1ᵗw = 1.
	mu := make([]float64, len(want))
	for i := range mu {
		for j := range want {
			mu[i] += 2 * p.Covariance.At(i, j) * want[j]
		}
	}

	q, err := newQuadratic(p.Covariance, mu)
	require.NoError(t, err)

	w, iters, err := q.solve(context.Background(), 1, equalWeights(len(want)), DefaultMaxIterations, DefaultTolerance)
	require.NoError(t, err)
	assert.Less(t, iters, DefaultMaxIterations)
	for i := range want {
		assert.InDelta(t, want[i], w[i], 1e-6)
	}
}

func TestOptimize_NearDuplicateAssets(t *testing.T) {
	for _, rho := range []float64{0.99, 0.999, 0.9999} {
		p := nearDuplicates(rho)
		sol, err := newTestOptimizer().Optimize(context.Background(), p)
		require.NoError(t, err, "rho=%v", rho)
		assertFeasible(t, sol.MinVolatility)
		assertFeasible(t, sol.MaxSharpe)
		assert.False(t, sol.MaxSharpe.Degraded)

		// KKT for min-volatility: equal marginal variance on held assets,
		// no lower marginal variance on the rest
		grad := make([]float64, len(p.Tickers))
		lambda := math.Inf(1)
		for i, ti := range p.Tickers {
			for j, tj := range p.Tickers {
				grad[i] += 2 * p.Covariance.At(i, j) * sol.MinVolatility.Weights[tj]
			}
			if sol.MinVolatility.Weights[ti] > 1e-6 {
				lambda = math.Min(lambda, grad[i])
			}
		}
		for i, ti := range p.Tickers {
			if sol.MinVolatility.Weights[ti] > 1e-6 {
				assert.InDelta(t, lambda, grad[i], 1e-8, "rho=%v %s", rho, ti)
			} else {
				assert.GreaterOrEqual(t, grad[i], lambda-1e-8, "rho=%v %s", rho, ti)
			}
		}

		for i := range p.Tickers {
			vol := math.Sqrt(p.Covariance.At(i, i))
			assert.GreaterOrEqual(t, sol.MaxSharpe.Sharpe, p.Mean[i]/vol-1e-9)
		}
	}
}

func TestOptimize_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestOptimizer().Optimize(ctx, nearDuplicates(0.5))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StageOptimization, domain.StageOf(err))

	_, _, err = newTestOptimizer().MaxSharpe(ctx, nearDuplicates(0.5))
	assert.ErrorIs(t, err, context.Canceled)
}
