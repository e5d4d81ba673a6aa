package optimization

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

const (
	frontierPoints = 60 // log-spaced tilts in [10^-3, 10^3], plus tilt 0
	minLogTilt     = -3.0
	maxLogTilt     = 3.0
	refineMaxEvals = 200
	refinePenalty  = 1e10
)

// candidate is a feasible portfolio considered by the max-Sharpe search
type candidate struct {
	w      []float64
	ret    float64
	vol    float64
	sharpe float64
	iters  int
}

// MaxSharpe maximizes (μᵗw - r_f)/√(wᵗΣw) over the simplex.
//
// The long-only efficient frontier is traced by minimizing wᵗΣw - t·μᵗw for
// a grid of tilts t; single-asset portfolios are added as candidates, and the
// best tilt is refined with Nelder-Mead over log10(t). Ties are broken by
// lower volatility, then by preferring weight on lexicographically earlier
// tickers. Any grid solve that does not converge fails the whole search.
func (o *Optimizer) MaxSharpe(ctx context.Context, p Problem) (*Result, []FrontierPoint, error) {
	q, err := o.prepare(p)
	if err != nil {
		return nil, nil, err
	}
	n := len(p.Tickers)
	order := tickerOrder(p.Tickers)

	tilts := make([]float64, 0, frontierPoints+1)
	tilts = append(tilts, 0)
	for k := 0; k < frontierPoints; k++ {
		exp := minLogTilt + (maxLogTilt-minLogTilt)*float64(k)/float64(frontierPoints-1)
		tilts = append(tilts, math.Pow(10, exp))
	}

	evaluate := func(w []float64, iters int) candidate {
		ret := q.expected(w)
		vol := math.Sqrt(q.variance(w))
		return candidate{w: w, ret: ret, vol: vol, sharpe: sharpe(ret, vol, p.RiskFreeRate), iters: iters}
	}

	frontier := make([]FrontierPoint, 0, len(tilts))
	var best *candidate
	bestTilt := 0.0
	totalIters := 0
	start := equalWeights(n)

	for _, t := range tilts {
		w, iters, err := q.solve(ctx, t, start, o.settings.MaxIterations, o.settings.Tolerance)
		totalIters += iters
		if err != nil {
			return nil, nil, solveError(err, fmt.Sprintf("max-Sharpe frontier solve at tilt %.3g", t), iters)
		}
		c := evaluate(w, iters)
		frontier = append(frontier, FrontierPoint{Tilt: t, Return: c.ret, Volatility: c.vol, Sharpe: c.sharpe})
		if best == nil || better(c, *best, order) {
			cc := c
			best = &cc
			bestTilt = t
		}
		// Warm start the next tilt from this point
		start = w
	}

	for i := 0; i < n; i++ {
		vertex := make([]float64, n)
		vertex[i] = 1
		if c := evaluate(vertex, 0); better(c, *best, order) {
			cc := c
			best = &cc
			bestTilt = math.NaN()
		}
	}

	if bestTilt > 0 {
		refined, evals, err := o.refine(ctx, q, evaluate, bestTilt, best.w)
		totalIters += evals
		if err != nil {
			return nil, nil, solveError(err, "max-Sharpe refinement", totalIters)
		}
		if refined != nil && better(*refined, *best, order) {
			best = refined
		}
	}

	res := buildResult(ObjectiveMaxSharpe, p, q, best.w)
	res.Iterations = totalIters

	o.log.Debug().
		Int("iterations", totalIters).
		Float64("sharpe", res.Sharpe).
		Float64("volatility", res.Volatility).
		Msg("Max-Sharpe search finished")

	return res, frontier, nil
}

// refine searches log10(tilt) around the best grid tilt. Solves that do not
// converge are penalized rather than fatal; the best evaluated point wins.
// Once ctx is done every evaluation is penalized and the context error is
// returned.
func (o *Optimizer) refine(ctx context.Context, q *quadratic, evaluate func([]float64, int) candidate, tilt float64, start []float64) (*candidate, int, error) {
	var best *candidate
	evals := 0

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if ctx.Err() != nil {
				return refinePenalty
			}
			logTilt := math.Max(minLogTilt-1, math.Min(maxLogTilt+1, x[0]))
			w, iters, err := q.solve(ctx, math.Pow(10, logTilt), start, o.settings.MaxIterations, o.settings.Tolerance)
			evals += iters
			if err != nil {
				return refinePenalty
			}
			c := evaluate(w, iters)
			if best == nil || c.sharpe > best.sharpe {
				cc := c
				best = &cc
			}
			return -c.sharpe
		},
	}

	settings := &optimize.Settings{FuncEvaluations: refineMaxEvals}
	if _, err := optimize.Minimize(problem, []float64{math.Log10(tilt)}, settings, &optimize.NelderMead{}); err != nil {
		o.log.Debug().Err(err).Msg("Frontier refinement stopped early")
	}
	if err := ctx.Err(); err != nil {
		return nil, evals, err
	}
	return best, evals, nil
}

// better reports whether a beats b: higher Sharpe, then lower volatility,
// then more weight on the lexicographically first ticker where they differ.
func better(a, b candidate, order []int) bool {
	if d := a.sharpe - b.sharpe; math.Abs(d) > tieTolerance {
		return d > 0
	}
	if d := a.vol - b.vol; math.Abs(d) > tieTolerance {
		return d < 0
	}
	for _, i := range order {
		if d := a.w[i] - b.w[i]; math.Abs(d) > tieTolerance {
			return d > 0
		}
	}
	return false
}
