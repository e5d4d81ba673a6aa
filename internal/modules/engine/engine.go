// Package engine orchestrates a stress-test run: load history, estimate the
// baseline, apply the scenario, factorize, simulate, reduce to risk metrics
// and optionally optimize, under admission control and a per-run deadline.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/events"
	"github.com/aristath/stresslab/internal/metrics"
	"github.com/aristath/stresslab/internal/modules/covariance"
	"github.com/aristath/stresslab/internal/modules/history"
	"github.com/aristath/stresslab/internal/modules/optimization"
	"github.com/aristath/stresslab/internal/modules/risk"
	"github.com/aristath/stresslab/internal/modules/scenarios"
	"github.com/aristath/stresslab/internal/modules/simulation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const moduleName = "engine"

// portfolioOptimizer solves both objectives on a baseline market
type portfolioOptimizer interface {
	Optimize(ctx context.Context, p optimization.Problem) (*optimization.Solution, error)
}

// Engine runs stress tests. All per-run state lives on the stack of Run, so
// one Engine serves concurrent requests.
type Engine struct {
	store      history.Store
	opts       Options
	sem        *semaphore.Weighted
	estimator  *covariance.Estimator
	adjuster   *scenarios.Adjuster
	factorizer *covariance.Factorizer
	calculator *risk.Calculator
	optimizer  portfolioOptimizer
	events     *events.Manager
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// New creates an engine. The event manager and metrics may be nil.
func New(store history.Store, opts Options, eventManager *events.Manager, m *metrics.Metrics, log zerolog.Logger) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		store:      store,
		opts:       opts,
		sem:        semaphore.NewWeighted(int64(opts.MaxConcurrentRuns)),
		estimator:  covariance.NewEstimator(opts.Repair, log),
		adjuster:   scenarios.NewAdjuster(opts.Repair, log),
		factorizer: covariance.NewFactorizer(opts.CholeskyMaxRetries, log),
		calculator: risk.NewCalculator(log),
		optimizer:  optimization.NewOptimizer(opts.Optimizer, log),
		events:     eventManager,
		metrics:    m,
		log:        log.With().Str("component", "engine").Logger(),
	}
}

// Options returns the effective engine options.
func (e *Engine) Options() Options {
	return e.opts
}

// Run executes one request end to end. A run is all-or-nothing: on failure
// the error carries the offending stage and no partial result is returned.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	id := uuid.New()
	r := newRun(id.String(), e.log)
	started := time.Now()
	method, parseErr := domain.ParseMethod(string(req.Method))
	if parseErr != nil {
		method = "unknown"
	}

	res, err := e.execute(ctx, r, id, req)

	if err != nil {
		r.fail()
		e.observe(method, domain.RunFailed, time.Since(started))
		e.emitFailure(r.id, err)
		r.log.Error().
			Err(err).
			Str("stage", string(domain.StageOf(err))).
			Msg("Run failed")
		return nil, err
	}

	if err := r.advance(domain.RunCompleted); err != nil {
		return nil, err
	}
	res.State = r.State()
	res.Transitions = r.transitions()
	res.StartedAt = started
	res.Duration = time.Since(started)

	e.observe(res.Method, domain.RunCompleted, res.Duration)
	e.emitCompletion(res)
	r.log.Info().
		Str("method", string(res.Method)).
		Str("scenario", res.Scenario).
		Int("simulations", res.NumSimulations).
		Dur("duration", res.Duration).
		Msg("Run completed")

	return res, nil
}

func (e *Engine) execute(parent context.Context, r *run, id uuid.UUID, req Request) (*Result, error) {
	if err := r.advance(domain.RunValidating); err != nil {
		return nil, err
	}
	req.Scenario = normalizeScenario(req.Scenario)
	p, err := e.validate(id, req)
	if err != nil {
		return nil, domain.Staged(err, domain.StageValidation)
	}

	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()

	release, err := e.admit(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := r.advance(domain.RunRunning); err != nil {
		return nil, err
	}
	return e.pipeline(ctx, r, p)
}

// admit waits for a concurrency slot or the run deadline.
func (e *Engine) admit(ctx context.Context) (func(), error) {
	waitStart := time.Now()
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, domain.NewError(domain.ErrTimeout, domain.StageAdmission, "no run slot before deadline", err)
	}
	if e.metrics != nil {
		e.metrics.AdmissionWait.Observe(time.Since(waitStart).Seconds())
		e.metrics.InFlight.Inc()
	}
	return func() {
		e.sem.Release(1)
		if e.metrics != nil {
			e.metrics.InFlight.Dec()
		}
	}, nil
}

func (e *Engine) pipeline(ctx context.Context, r *run, p *plan) (*Result, error) {
	var warnings []string

	aligned, err := history.LoadAligned(ctx, e.store, p.tickers, p.start, p.end)
	if err != nil {
		return nil, e.classify(ctx, err, domain.StageData)
	}

	baseline, err := e.estimator.Estimate(aligned)
	if err != nil {
		return nil, e.classify(ctx, err, domain.StageEstimation)
	}
	if baseline.Repaired {
		e.countRepair(domain.StageEstimation)
		warnings = append(warnings, fmt.Sprintf("sample correlation matrix was repaired to PSD in %d iterations", baseline.RepairReport.Iterations))
	}

	adjusted, err := e.adjuster.ApplyResolved(baseline, p.scenario)
	if err != nil {
		return nil, e.classify(ctx, err, domain.StageAdjustment)
	}
	if adjusted.Repaired {
		e.countRepair(domain.StageAdjustment)
		warnings = append(warnings, fmt.Sprintf("stressed correlation matrix was repaired to PSD in %d iterations", adjusted.RepairReport.Iterations))
	}

	sim, jitter, err := e.simulator(p, aligned, baseline, adjusted)
	if err != nil {
		return nil, e.classify(ctx, err, domain.StageFactorization)
	}
	if err := ctx.Err(); err != nil {
		return nil, e.classify(ctx, err, domain.StageFactorization)
	}

	ens, err := sim.Generate(ctx, simulation.RunParams{
		Weights:        p.weights,
		NumSimulations: p.numSimulations,
		NumDays:        p.numDays,
		Seed:           p.seed,
		Workers:        e.opts.Workers,
	})
	if err != nil {
		return nil, e.classify(ctx, err, domain.StageSimulation)
	}

	report, err := e.calculator.FromEnsemble(ens, p.levels)
	if err != nil {
		return nil, e.classify(ctx, err, domain.StageRisk)
	}

	res := &Result{
		RunID:          p.runID,
		Method:         p.method,
		Scenario:       p.scenario.Name,
		Tickers:        p.tickers,
		Seed:           p.seed,
		NumSimulations: p.numSimulations,
		NumDays:        p.numDays,
		Risk:           report,
		AssetStats:     e.calculator.AssetStats(ens),
		SamplePaths:    ens.SamplePaths,
		Market:         summarizeMarket(p, baseline, adjusted, jitter),
	}
	if p.method == domain.MethodHistorical {
		if b, ok := sim.(*simulation.Bootstrap); ok {
			res.BlockLength = b.BlockLength()
		}
	}

	if p.optimize {
		sol, warning, err := e.solve(ctx, baseline, p.riskFreeRate, p.fallback)
		if err != nil {
			return nil, e.classify(ctx, err, domain.StageOptimization)
		}
		if err := ctx.Err(); err != nil {
			return nil, e.classify(ctx, err, domain.StageOptimization)
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
		res.Optimization = sol
		e.emitOptimization(p.runID, sol)
	}

	res.Warnings = warnings
	return res, nil
}

// simulator builds the path generator for the plan. It returns the jitter
// the Cholesky factor needed, if any.
func (e *Engine) simulator(p *plan, aligned *history.Aligned, baseline *covariance.Baseline, adjusted *scenarios.Adjusted) (simulation.Simulator, float64, error) {
	switch p.method {
	case domain.MethodHistorical:
		in := simulation.BootstrapInputs{
			History:     aligned,
			BlockLength: p.blockLength,
			Scenario:    p.scenario,
			DailyMean:   baseline.DailyMean,
			DailyVol:    baseline.DailyVol,
		}
		jitter := 0.0
		if p.scenario.CorrelationMultiplier != 1 {
			from, err := e.factorizer.Factorize(baseline.Correlation)
			if err != nil {
				return nil, 0, err
			}
			to, err := e.factorizer.Factorize(adjusted.Correlation)
			if err != nil {
				return nil, 0, err
			}
			mixing, err := covariance.MixingMatrix(from, to)
			if err != nil {
				return nil, 0, err
			}
			in.Mixing = mixing
			jitter = to.Jitter
		}
		b, err := simulation.NewBootstrap(in, e.log)
		if err != nil {
			return nil, 0, domain.Staged(err, domain.StageSimulation)
		}
		return b, jitter, nil

	default:
		factor := covariance.IdentityFactor(len(p.tickers))
		if p.useCorrelation {
			f, err := e.factorizer.Factorize(adjusted.Correlation)
			if err != nil {
				return nil, 0, err
			}
			factor = f
		}
		g, err := simulation.NewGBM(simulation.GBMInputs{
			Tickers:    adjusted.Tickers,
			Mean:       adjusted.Mean,
			Volatility: adjusted.Volatility,
			Factor:     factor,
		}, e.log)
		if err != nil {
			return nil, 0, domain.Staged(err, domain.StageSimulation)
		}
		return g, factor.Jitter, nil
	}
}

// solve optimizes on the baseline market. With fallback enabled a solver
// failure yields flagged equal-weight results instead of an error.
func (e *Engine) solve(ctx context.Context, baseline *covariance.Baseline, rf float64, fallback bool) (*optimization.Solution, string, error) {
	problem := optimization.Problem{
		Tickers:      baseline.Tickers,
		Mean:         baseline.Mean,
		Covariance:   baseline.Covariance(),
		RiskFreeRate: rf,
	}
	sol, err := e.optimizer.Optimize(ctx, problem)
	if err == nil {
		return sol, "", nil
	}
	if !fallback || !errors.Is(err, domain.ErrOptimization) {
		return nil, "", err
	}

	if e.metrics != nil {
		e.metrics.OptimizerFallbacks.Inc()
	}
	e.log.Warn().Err(err).Msg("Optimizer failed, substituting equal weights")
	reason := err.Error()
	return &optimization.Solution{
		MaxSharpe:     optimization.EqualWeight(problem, optimization.ObjectiveMaxSharpe, reason),
		MinVolatility: optimization.EqualWeight(problem, optimization.ObjectiveMinVolatility, reason),
	}, "optimizer did not converge; equal-weight fallback reported", nil
}

// classify attributes err to stage. Any failure after the deadline passed or
// the caller cancelled becomes a timeout.
func (e *Engine) classify(ctx context.Context, err error, stage domain.Stage) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.NewError(domain.ErrTimeout, stage, "run exceeded its deadline", ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewError(domain.ErrTimeout, stage, "run exceeded its deadline", err)
	}
	if domain.KindOf(err) == nil {
		kind := domain.ErrConfiguration
		if stage == domain.StageData {
			kind = domain.ErrInsufficientData
		}
		return domain.NewError(kind, stage, "stage failed", err)
	}
	return domain.Staged(err, stage)
}

func summarizeMarket(p *plan, baseline *covariance.Baseline, adjusted *scenarios.Adjusted, jitter float64) MarketSummary {
	assets := make([]AssetProfile, len(p.tickers))
	for i, t := range p.tickers {
		assets[i] = AssetProfile{
			Ticker:             t,
			Weight:             p.weights[i],
			BaselineReturn:     baseline.Mean[i],
			BaselineVolatility: baseline.Volatility[i],
			TrailingVolatility: baseline.TrailingVolatility[i],
			StressedReturn:     adjusted.Mean[i],
			StressedVolatility: adjusted.Volatility[i],
		}
	}
	return MarketSummary{
		Observations:          baseline.Observations,
		Assets:                assets,
		BaselineCorrelation:   covariance.SummarizeCorrelation(baseline.Correlation),
		StressedCorrelation:   covariance.SummarizeCorrelation(adjusted.Correlation),
		CorrelationMultiplier: p.scenario.CorrelationMultiplier,
		BaselineRepaired:      baseline.Repaired,
		StressedRepaired:      adjusted.Repaired,
		CholeskyJitter:        jitter,
	}
}

// normalizeScenario upper-cases scenario tickers to match request tickers.
func normalizeScenario(p *scenarios.Parameters) *scenarios.Parameters {
	if p == nil {
		return nil
	}
	out := *p
	out.Assets = make([]scenarios.AssetShock, len(p.Assets))
	for i, a := range p.Assets {
		a.Ticker = strings.ToUpper(strings.TrimSpace(a.Ticker))
		out.Assets[i] = a
	}
	return &out
}

func (e *Engine) countRepair(stage domain.Stage) {
	if e.metrics != nil {
		e.metrics.PSDRepairs.WithLabelValues(string(stage)).Inc()
	}
}

func (e *Engine) observe(method domain.Method, state domain.RunState, d time.Duration) {
	e.metrics.ObserveRun(string(method), string(state), d)
}

func (e *Engine) emitCompletion(res *Result) {
	if e.events == nil {
		return
	}
	data := &events.SimulationCompletedData{
		RunID:       res.RunID,
		Method:      string(res.Method),
		Scenario:    res.Scenario,
		Tickers:     res.Tickers,
		Simulations: res.NumSimulations,
		Days:        res.NumDays,
		Seed:        res.Seed,
		DurationMs:  res.Duration.Milliseconds(),
	}
	if l, ok := res.Risk.Level(0.95); ok {
		data.VaR95 = l.VaR
		data.CVaR95 = l.CVaR
	}
	e.events.EmitTyped(moduleName, data)
}

func (e *Engine) emitFailure(runID string, err error) {
	if e.events == nil {
		return
	}
	kind := ""
	if k := domain.KindOf(err); k != nil {
		kind = k.Error()
	}
	e.events.EmitTyped(moduleName, &events.SimulationFailedData{
		RunID: runID,
		Stage: string(domain.StageOf(err)),
		Kind:  kind,
		Error: err.Error(),
	})
}

func (e *Engine) emitOptimization(runID string, sol *optimization.Solution) {
	if e.events == nil || sol == nil || sol.MaxSharpe == nil {
		return
	}
	e.events.EmitTyped(moduleName, &events.OptimizationCompletedData{
		RunID:     runID,
		Objective: string(sol.MaxSharpe.Objective),
		Weights:   sol.MaxSharpe.Weights,
		Sharpe:    sol.MaxSharpe.Sharpe,
		Degraded:  sol.MaxSharpe.Degraded,
	})
}
