package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/stresslab/internal/apiutil"
	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/modules/engine"
	"github.com/aristath/stresslab/internal/modules/scenarios"
	"github.com/aristath/stresslab/internal/utils"
)

// requestFlags are the simulation inputs shared by run and compare
type requestFlags struct {
	tickers     []string
	start       string
	end         string
	simulations int
	days        int
	scenario    string
	shocks      []string
	corrMult    float64
	weights     map[string]string
	seed        uint64
	confidence  []float64
	blockLength int
	independent bool
	optimize    bool
	riskFree    float64
}

func (f *requestFlags) register(cmd *cobra.Command) {
	end := time.Now().UTC()
	start := end.AddDate(-3, 0, 0)

	fl := cmd.Flags()
	fl.StringSliceVar(&f.tickers, "tickers", nil, "comma separated tickers (required)")
	fl.StringVar(&f.start, "start", start.Format(apiutil.DateLayout), "history window start (YYYY-MM-DD)")
	fl.StringVar(&f.end, "end", end.Format(apiutil.DateLayout), "history window end (YYYY-MM-DD)")
	fl.IntVar(&f.simulations, "simulations", 10000, "number of simulated paths")
	fl.IntVar(&f.days, "days", 21, "trading days per path")
	fl.StringVar(&f.scenario, "scenario", "", "predefined scenario slug or name")
	fl.StringArrayVar(&f.shocks, "shock", nil, "custom shock TICKER=RETURN[:VOLMULT], repeatable")
	fl.Float64Var(&f.corrMult, "corr-mult", 1, "correlation multiplier for custom shocks")
	fl.StringToStringVar(&f.weights, "weights", nil, "portfolio weights TICKER=WEIGHT (default equal)")
	fl.Uint64Var(&f.seed, "seed", 0, "random seed (default derived from the run ID)")
	fl.Float64SliceVar(&f.confidence, "confidence", nil, "confidence levels (default 0.90,0.95,0.99)")
	fl.IntVar(&f.blockLength, "block-length", 0, "bootstrap block length (0 = engine default)")
	fl.BoolVar(&f.independent, "independent", false, "simulate assets without correlation (Monte Carlo)")
	fl.BoolVar(&f.optimize, "optimize", false, "include max-Sharpe and min-variance portfolios")
	fl.Float64Var(&f.riskFree, "risk-free", 0, "annual risk-free rate for the optimizer")

	_ = cmd.MarkFlagRequired("tickers")
}

// toRequest converts flags into an engine request.
func (f *requestFlags) toRequest(cmd *cobra.Command, method domain.Method) (engine.Request, error) {
	start, err := apiutil.ParseDate("start", f.start)
	if err != nil {
		return engine.Request{}, err
	}
	end, err := apiutil.ParseDate("end", f.end)
	if err != nil {
		return engine.Request{}, err
	}

	tickers := utils.NormalizeTickers(f.tickers)

	scenario, err := f.buildScenario(tickers)
	if err != nil {
		return engine.Request{}, err
	}

	weights, err := parseWeights(f.weights)
	if err != nil {
		return engine.Request{}, err
	}

	req := engine.Request{
		Tickers:                     tickers,
		Start:                       start,
		End:                         end,
		NumSimulations:              f.simulations,
		NumDays:                     f.days,
		Method:                      method,
		Scenario:                    scenario,
		Weights:                     weights,
		ConfidenceLevels:            f.confidence,
		BlockLength:                 f.blockLength,
		IncludeOptimization:         f.optimize,
		RiskFreeRate:                f.riskFree,
		FallbackOnOptimizationError: true,
	}
	if cmd.Flags().Changed("seed") {
		seed := f.seed
		req.Seed = &seed
	}
	if f.independent {
		useCorrelation := false
		req.UseCorrelation = &useCorrelation
	}
	return req, nil
}

func (f *requestFlags) buildScenario(tickers []string) (*scenarios.Parameters, error) {
	if f.scenario != "" {
		if len(f.shocks) > 0 {
			return nil, domain.Validation("--scenario cannot be combined with --shock")
		}
		entry, err := scenarios.Lookup(f.scenario)
		if err != nil {
			return nil, domain.NewError(domain.ErrValidation, domain.StageValidation, "unknown predefined scenario", err)
		}
		return entry.Parameters.Restrict(tickers), nil
	}
	if len(f.shocks) == 0 && f.corrMult == 1 {
		return nil, nil
	}

	p := &scenarios.Parameters{Name: "custom", CorrelationMultiplier: f.corrMult}
	for _, raw := range f.shocks {
		shock, err := parseShock(raw)
		if err != nil {
			return nil, err
		}
		p.Assets = append(p.Assets, shock)
	}
	return p, nil
}

// parseShock reads TICKER=RETURN[:VOLMULT]
func parseShock(raw string) (scenarios.AssetShock, error) {
	ticker, spec, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(ticker) == "" {
		return scenarios.AssetShock{}, domain.Validation("shock %q must look like TICKER=RETURN[:VOLMULT]", raw)
	}
	shock := scenarios.AssetShock{Ticker: strings.ToUpper(strings.TrimSpace(ticker))}

	ret, vol, hasVol := strings.Cut(spec, ":")
	r, err := strconv.ParseFloat(strings.TrimSpace(ret), 64)
	if err != nil {
		return scenarios.AssetShock{}, domain.Validation("shock %q: bad return %q", raw, ret)
	}
	shock.ReturnShock = r

	if hasVol {
		v, err := strconv.ParseFloat(strings.TrimSpace(vol), 64)
		if err != nil {
			return scenarios.AssetShock{}, domain.Validation("shock %q: bad volatility multiplier %q", raw, vol)
		}
		shock.VolatilityMultiplier = &v
	}
	return shock, nil
}

func parseWeights(raw map[string]string) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(raw))
	for ticker, value := range raw {
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, domain.Validation("weight for %s: bad number %q", ticker, value)
		}
		out[strings.ToUpper(strings.TrimSpace(ticker))] = w
	}
	return out, nil
}

// writeJSON prints v to the command's stdout
func writeJSON(cmd *cobra.Command, pretty bool, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
