package engine

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/modules/history"
	"github.com/aristath/stresslab/internal/modules/optimization"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OptimizeRequest asks for optimal weights over a history window
type OptimizeRequest struct {
	Tickers                     []string
	Start                       time.Time
	End                         time.Time
	RiskFreeRate                float64
	FallbackOnOptimizationError bool
	Timeout                     time.Duration
}

// OptimizeResult is the outcome of a standalone optimization
type OptimizeResult struct {
	RunID        string                 `json:"run_id"`
	Tickers      []string               `json:"tickers"`
	Observations int                    `json:"observations"`
	Solution     *optimization.Solution `json:"solution"`
	Warnings     []string               `json:"warnings,omitempty"`
	Duration     time.Duration          `json:"duration_ns"`
}

// RebalanceRequest asks for trades moving Current towards an optimized target
type RebalanceRequest struct {
	OptimizeRequest
	Objective      optimization.Objective // empty selects max Sharpe
	Current        map[string]float64     // nil means equal weights
	PortfolioValue decimal.Decimal        // zero uses the default value
}

// RebalancePlan is the target portfolio and the trades that reach it
type RebalancePlan struct {
	RunID          string               `json:"run_id"`
	Target         *optimization.Result `json:"target"`
	PortfolioValue decimal.Decimal      `json:"portfolio_value"`
	Trades         []optimization.Trade `json:"trades"`
	Warnings       []string             `json:"warnings,omitempty"`
}

// Optimize estimates the baseline over the window and solves both
// objectives on it. No scenario or simulation is involved.
func (e *Engine) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResult, error) {
	started := time.Now()
	id := uuid.New().String()

	tickers, err := normalizeTickers(req.Tickers, e.opts.MaxAssets)
	if err != nil {
		return nil, err
	}
	if err := validateWindow(req.Start, req.End); err != nil {
		return nil, err
	}
	if math.IsNaN(req.RiskFreeRate) || math.IsInf(req.RiskFreeRate, 0) {
		return nil, domain.Validation("risk_free_rate must be finite")
	}
	if req.Timeout < 0 {
		return nil, domain.Validation("timeout must not be negative")
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = e.opts.DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	release, err := e.admit(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	aligned, err := history.LoadAligned(ctx, e.store, tickers, req.Start, req.End)
	if err != nil {
		return nil, e.classify(ctx, err, domain.StageData)
	}
	baseline, err := e.estimator.Estimate(aligned)
	if err != nil {
		return nil, e.classify(ctx, err, domain.StageEstimation)
	}

	var warnings []string
	if baseline.Repaired {
		e.countRepair(domain.StageEstimation)
		warnings = append(warnings, "sample correlation matrix was repaired to PSD")
	}

	sol, warning, err := e.solve(ctx, baseline, req.RiskFreeRate, req.FallbackOnOptimizationError)
	if err != nil {
		return nil, e.classify(ctx, err, domain.StageOptimization)
	}
	if err := ctx.Err(); err != nil {
		return nil, e.classify(ctx, err, domain.StageOptimization)
	}
	if warning != "" {
		warnings = append(warnings, warning)
	}
	e.emitOptimization(id, sol)

	e.log.Info().
		Str("run_id", id).
		Int("assets", len(tickers)).
		Float64("sharpe", sol.MaxSharpe.Sharpe).
		Bool("degraded", sol.MaxSharpe.Degraded).
		Msg("Optimization completed")

	return &OptimizeResult{
		RunID:        id,
		Tickers:      tickers,
		Observations: baseline.Observations,
		Solution:     sol,
		Warnings:     warnings,
		Duration:     time.Since(started),
	}, nil
}

// Rebalance optimizes and converts the chosen objective's weights into
// trades from the current allocation.
func (e *Engine) Rebalance(ctx context.Context, req RebalanceRequest) (*RebalancePlan, error) {
	objective := req.Objective
	if objective == "" {
		objective = optimization.ObjectiveMaxSharpe
	}
	if objective != optimization.ObjectiveMaxSharpe && objective != optimization.ObjectiveMinVolatility {
		return nil, domain.Validation("unknown objective %q", objective)
	}
	if req.PortfolioValue.IsNegative() {
		return nil, domain.Validation("portfolio value must be positive, got %s", req.PortfolioValue)
	}

	res, err := e.Optimize(ctx, req.OptimizeRequest)
	if err != nil {
		return nil, err
	}

	target := res.Solution.MaxSharpe
	if objective == optimization.ObjectiveMinVolatility {
		target = res.Solution.MinVolatility
	}

	current := req.Current
	if current != nil {
		current = make(map[string]float64, len(req.Current))
		for t, w := range req.Current {
			current[strings.ToUpper(strings.TrimSpace(t))] += w
		}
	}

	trades, err := optimization.Rebalance(current, target.Weights, req.PortfolioValue)
	if err != nil {
		return nil, err
	}

	value := req.PortfolioValue
	if value.IsZero() {
		value = optimization.DefaultPortfolioValue
	}

	return &RebalancePlan{
		RunID:          res.RunID,
		Target:         target,
		PortfolioValue: value,
		Trades:         trades,
		Warnings:       res.Warnings,
	}, nil
}
