package engine

import (
	"encoding/binary"
	"math"
	"strings"
	"time"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/modules/scenarios"
	"github.com/google/uuid"
)

// weightTolerance is how far explicit weights may sum from 1
const weightTolerance = 1e-6

// Request describes one simulation run
type Request struct {
	Tickers        []string
	Start          time.Time
	End            time.Time
	NumSimulations int
	NumDays        int
	Method         domain.Method // empty selects Monte Carlo

	Scenario *scenarios.Parameters // nil runs the baseline
	Weights  map[string]float64    // nil means equal weights

	Seed             *uint64 // nil derives a seed from the run ID
	ConfidenceLevels []float64
	Timeout          time.Duration // zero uses the engine default

	// UseCorrelation=false simulates the assets independently (Monte Carlo only)
	UseCorrelation *bool
	BlockLength    int // bootstrap block length; zero uses the engine default

	IncludeOptimization         bool
	RiskFreeRate                float64
	FallbackOnOptimizationError bool
}

// plan is a validated request with every default resolved
type plan struct {
	runID          string
	tickers        []string
	start, end     time.Time
	numSimulations int
	numDays        int
	method         domain.Method
	scenario       *scenarios.Resolved
	weights        []float64
	seed           uint64
	levels         []float64
	timeout        time.Duration
	useCorrelation bool
	blockLength    int

	optimize     bool
	riskFreeRate float64
	fallback     bool
}

// SeedFromRunID derives a reproducible seed from a run ID.
func SeedFromRunID(id uuid.UUID) uint64 {
	return binary.BigEndian.Uint64(id[:8]) ^ binary.BigEndian.Uint64(id[8:])
}

// normalizeTickers trims, upper-cases and de-duplicates-checks tickers.
func normalizeTickers(raw []string, maxAssets int) ([]string, error) {
	if len(raw) == 0 {
		return nil, domain.Validation("at least one ticker is required")
	}
	if len(raw) > maxAssets {
		return nil, domain.Validation("at most %d tickers are allowed, got %d", maxAssets, len(raw))
	}
	seen := make(map[string]bool, len(raw))
	tickers := make([]string, len(raw))
	for i, t := range raw {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			return nil, domain.Validation("ticker %d is empty", i)
		}
		if seen[t] {
			return nil, domain.Validation("duplicate ticker %s", t)
		}
		seen[t] = true
		tickers[i] = t
	}
	return tickers, nil
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return domain.Validation("start and end dates are required")
	}
	if !end.After(start) {
		return domain.Validation("end date %s must be after start date %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return nil
}

// resolveWeights lays explicit weights out in ticker order. Weights must be
// non-negative, name only requested tickers and sum to one.
func resolveWeights(tickers []string, weights map[string]float64) ([]float64, error) {
	n := len(tickers)
	out := make([]float64, n)
	if len(weights) == 0 {
		for i := range out {
			out[i] = 1 / float64(n)
		}
		return out, nil
	}

	index := make(map[string]int, n)
	for i, t := range tickers {
		index[t] = i
	}
	sum := 0.0
	for raw, w := range weights {
		t := strings.ToUpper(strings.TrimSpace(raw))
		i, ok := index[t]
		if !ok {
			return nil, domain.Validation("weight given for unknown ticker %s", raw)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, domain.Validation("weight for %s must be non-negative, got %v", t, w)
		}
		out[i] = w
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return nil, domain.Validation("weights must sum to 1, got %.8f", sum)
	}
	return out, nil
}

func (e *Engine) validate(runID uuid.UUID, req Request) (*plan, error) {
	tickers, err := normalizeTickers(req.Tickers, e.opts.MaxAssets)
	if err != nil {
		return nil, err
	}
	if err := validateWindow(req.Start, req.End); err != nil {
		return nil, err
	}
	if req.NumSimulations < 1 || req.NumSimulations > e.opts.MaxSimulations {
		return nil, domain.Validation("num_simulations must be in [1, %d], got %d", e.opts.MaxSimulations, req.NumSimulations)
	}
	if req.NumDays < 1 || req.NumDays > e.opts.MaxDays {
		return nil, domain.Validation("num_days must be in [1, %d], got %d", e.opts.MaxDays, req.NumDays)
	}

	method, err := domain.ParseMethod(string(req.Method))
	if err != nil {
		return nil, err
	}

	weights, err := resolveWeights(tickers, req.Weights)
	if err != nil {
		return nil, err
	}

	scenario := req.Scenario
	if scenario == nil {
		scenario = scenarios.Neutral()
	}
	resolved, err := scenario.Resolve(tickers)
	if err != nil {
		return nil, err
	}

	for _, c := range req.ConfidenceLevels {
		if math.IsNaN(c) || c <= 0 || c >= 1 {
			return nil, domain.Validation("confidence level must be in (0, 1), got %v", c)
		}
	}
	levels := req.ConfidenceLevels
	if len(levels) == 0 {
		levels = domain.DefaultConfidenceLevels
	}

	if req.Timeout < 0 {
		return nil, domain.Validation("timeout must not be negative")
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = e.opts.DefaultTimeout
	}

	if req.BlockLength < 0 {
		return nil, domain.Validation("block_length must not be negative")
	}
	block := req.BlockLength
	if block == 0 {
		block = e.opts.BootstrapBlockLength
	}

	if math.IsNaN(req.RiskFreeRate) || math.IsInf(req.RiskFreeRate, 0) {
		return nil, domain.Validation("risk_free_rate must be finite")
	}

	seed := SeedFromRunID(runID)
	if req.Seed != nil {
		seed = *req.Seed
	}

	useCorrelation := true
	if req.UseCorrelation != nil {
		useCorrelation = *req.UseCorrelation
	}

	return &plan{
		runID:          runID.String(),
		tickers:        tickers,
		start:          req.Start,
		end:            req.End,
		numSimulations: req.NumSimulations,
		numDays:        req.NumDays,
		method:         method,
		scenario:       resolved,
		weights:        weights,
		seed:           seed,
		levels:         append([]float64(nil), levels...),
		timeout:        timeout,
		useCorrelation: useCorrelation,
		blockLength:    block,
		optimize:       req.IncludeOptimization,
		riskFreeRate:   req.RiskFreeRate,
		fallback:       req.FallbackOnOptimizationError,
	}, nil
}
