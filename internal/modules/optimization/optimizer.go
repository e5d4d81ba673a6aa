// Package optimization computes long-only, fully invested portfolios on the
// baseline (unstressed) market: minimum volatility and maximum Sharpe.
package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Objective names an optimization target
type Objective string

const (
	ObjectiveMaxSharpe     Objective = "max_sharpe"
	ObjectiveMinVolatility Objective = "min_volatility"
)

const (
	// DefaultMaxIterations bounds each projected-gradient solve
	DefaultMaxIterations = 20000
	// DefaultTolerance is the convergence threshold on the step-scaled KKT
	// residual ‖w - P(w - s∇f)‖∞
	DefaultTolerance = 1e-10

	tieTolerance = 1e-12
)

var errEigen = errors.New("eigendecomposition of covariance failed")

// Problem is one optimization input. Mean and Covariance are annualized.
type Problem struct {
	Tickers      []string
	Mean         []float64
	Covariance   mat.Symmetric
	RiskFreeRate float64
}

// Result is an optimized (or fallback) portfolio
type Result struct {
	Objective           Objective          `json:"objective"`
	Weights             map[string]float64 `json:"weights"`
	ExpectedReturn      float64            `json:"expected_return"`
	Volatility          float64            `json:"volatility"`
	Sharpe              float64            `json:"sharpe"`
	ExpectedShortfall95 float64            `json:"expected_shortfall_95"`
	Iterations          int                `json:"iterations"`
	Degraded            bool               `json:"degraded"`
	Reason              string             `json:"reason,omitempty"`
}

// FrontierPoint is one long-only mean-variance efficient portfolio
type FrontierPoint struct {
	Tilt       float64 `json:"tilt"`
	Return     float64 `json:"return"`
	Volatility float64 `json:"volatility"`
	Sharpe     float64 `json:"sharpe"`
}

// Solution bundles both objectives for one problem
type Solution struct {
	MaxSharpe     *Result         `json:"max_sharpe"`
	MinVolatility *Result         `json:"min_volatility"`
	Frontier      []FrontierPoint `json:"frontier"`
}

// Settings bound the iterative solver
type Settings struct {
	MaxIterations int
	Tolerance     float64
}

// Optimizer solves min-volatility and max-Sharpe problems. It holds no
// per-request state and is safe for concurrent use.
type Optimizer struct {
	settings Settings
	log      zerolog.Logger
}

// NewOptimizer creates a new optimizer
func NewOptimizer(settings Settings, log zerolog.Logger) *Optimizer {
	if settings.MaxIterations < 1 {
		settings.MaxIterations = DefaultMaxIterations
	}
	if settings.Tolerance <= 0 {
		settings.Tolerance = DefaultTolerance
	}
	return &Optimizer{
		settings: settings,
		log:      log.With().Str("component", "optimizer").Logger(),
	}
}

// Optimize solves both objectives. The first solver failure is returned.
// Cancellation of ctx is checked between solver iterations.
func (o *Optimizer) Optimize(ctx context.Context, p Problem) (*Solution, error) {
	minVol, err := o.MinVolatility(ctx, p)
	if err != nil {
		return nil, err
	}
	maxSharpe, frontier, err := o.MaxSharpe(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Solution{MaxSharpe: maxSharpe, MinVolatility: minVol, Frontier: frontier}, nil
}

// MinVolatility minimizes wᵗΣw over the simplex, starting from equal weights.
func (o *Optimizer) MinVolatility(ctx context.Context, p Problem) (*Result, error) {
	q, err := o.prepare(p)
	if err != nil {
		return nil, err
	}

	w, iters, err := q.solve(ctx, 0, equalWeights(len(p.Tickers)), o.settings.MaxIterations, o.settings.Tolerance)
	if err != nil {
		return nil, solveError(err, "min-volatility", iters)
	}

	res := buildResult(ObjectiveMinVolatility, p, q, w)
	res.Iterations = iters

	o.log.Debug().
		Int("iterations", iters).
		Float64("volatility", res.Volatility).
		Msg("Min-volatility converged")

	return res, nil
}

// EqualWeight is the degraded fallback used when a solver fails and the
// caller opted in to a substitute. It is always flagged.
func EqualWeight(p Problem, objective Objective, reason string) *Result {
	w := equalWeights(len(p.Tickers))
	q := &quadratic{mu: p.Mean, sigma: denseRows(p.Covariance)}
	res := buildResult(objective, p, q, w)
	res.Degraded = true
	res.Reason = reason
	return res
}

// solveError maps a failed solve onto the error taxonomy.
func solveError(err error, what string, iters int) error {
	if errors.Is(err, errNotConverged) {
		return domain.Optimization("%s did not converge in %d iterations", what, iters)
	}
	return domain.NewError(domain.ErrTimeout, domain.StageOptimization, fmt.Sprintf("%s interrupted after %d iterations", what, iters), err)
}

func (o *Optimizer) prepare(p Problem) (*quadratic, error) {
	n := len(p.Tickers)
	if n == 0 {
		return nil, domain.Validation("optimization needs at least one asset")
	}
	if len(p.Mean) != n {
		return nil, domain.Validation("got %d expected returns for %d assets", len(p.Mean), n)
	}
	if p.Covariance == nil || p.Covariance.SymmetricDim() != n {
		return nil, domain.Validation("covariance does not match %d assets", n)
	}
	for i := 0; i < n; i++ {
		if !finite(p.Mean[i]) {
			return nil, domain.Validation("expected return for %s is not finite", p.Tickers[i])
		}
		for j := 0; j < n; j++ {
			if !finite(p.Covariance.At(i, j)) {
				return nil, domain.Validation("covariance entry (%d,%d) is not finite", i, j)
			}
		}
	}
	if !finite(p.RiskFreeRate) {
		return nil, domain.Validation("risk-free rate is not finite")
	}

	q, err := newQuadratic(p.Covariance, p.Mean)
	if err != nil {
		return nil, domain.NewError(domain.ErrOptimization, domain.StageOptimization, "cannot size gradient step", err)
	}
	return q, nil
}

func buildResult(objective Objective, p Problem, q *quadratic, w []float64) *Result {
	ret := q.expected(w)
	vol := math.Sqrt(q.variance(w))

	weights := make(map[string]float64, len(p.Tickers))
	for i, t := range p.Tickers {
		weights[t] = w[i]
	}

	return &Result{
		Objective:           objective,
		Weights:             weights,
		ExpectedReturn:      ret,
		Volatility:          vol,
		Sharpe:              sharpe(ret, vol, p.RiskFreeRate),
		ExpectedShortfall95: ExpectedShortfall(ret, vol, 0.95),
	}
}

// ExpectedShortfall is the normal expected shortfall at confidence, as a
// positive loss fraction: -μ + σ·φ(z)/(1-α) with z = Φ⁻¹(α).
func ExpectedShortfall(mean, vol, confidence float64) float64 {
	z := distuv.UnitNormal.Quantile(confidence)
	return -mean + vol*distuv.UnitNormal.Prob(z)/(1-confidence)
}

// sharpe is zero for a riskless portfolio.
func sharpe(ret, vol, rf float64) float64 {
	if vol < 1e-12 {
		return 0
	}
	return (ret - rf) / vol
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

func denseRows(s mat.Symmetric) [][]float64 {
	if s == nil {
		return nil
	}
	n := s.SymmetricDim()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			rows[i][j] = s.At(i, j)
		}
	}
	return rows
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// tickerOrder returns asset indices sorted by ticker.
func tickerOrder(tickers []string) []int {
	order := make([]int, len(tickers))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return tickers[order[a]] < tickers[order[b]] })
	return order
}
