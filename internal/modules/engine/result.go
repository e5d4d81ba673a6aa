package engine

import (
	"time"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/modules/covariance"
	"github.com/aristath/stresslab/internal/modules/optimization"
	"github.com/aristath/stresslab/internal/modules/risk"
)

// AssetProfile is one asset's baseline and stressed parameters (annualized)
type AssetProfile struct {
	Ticker             string  `json:"ticker"`
	Weight             float64 `json:"weight"`
	BaselineReturn     float64 `json:"baseline_return"`
	BaselineVolatility float64 `json:"baseline_volatility"`
	TrailingVolatility float64 `json:"trailing_volatility"`
	StressedReturn     float64 `json:"stressed_return"`
	StressedVolatility float64 `json:"stressed_volatility"`
}

// MarketSummary describes the estimated and stressed market a run used
type MarketSummary struct {
	Observations          int                           `json:"observations"`
	Assets                []AssetProfile                `json:"assets"`
	BaselineCorrelation   covariance.CorrelationSummary `json:"baseline_correlation"`
	StressedCorrelation   covariance.CorrelationSummary `json:"stressed_correlation"`
	CorrelationMultiplier float64                       `json:"correlation_multiplier"`
	BaselineRepaired      bool                          `json:"baseline_repaired"`
	StressedRepaired      bool                          `json:"stressed_repaired"`
	CholeskyJitter        float64                       `json:"cholesky_jitter"`
}

// Result is the outcome of a completed run. Failed runs return an error and
// no result.
type Result struct {
	RunID          string          `json:"run_id"`
	State          domain.RunState `json:"state"`
	Method         domain.Method   `json:"method"`
	Scenario       string          `json:"scenario"`
	Tickers        []string        `json:"tickers"`
	Seed           uint64          `json:"seed"`
	NumSimulations int             `json:"num_simulations"`
	NumDays        int             `json:"num_days"`
	BlockLength    int             `json:"block_length,omitempty"`

	Risk        *risk.Report      `json:"risk"`
	AssetStats  []risk.AssetStats `json:"asset_stats"`
	SamplePaths [][]float64       `json:"sample_paths"`
	Market      MarketSummary     `json:"market"`

	Optimization *optimization.Solution `json:"optimization,omitempty"`

	Warnings    []string      `json:"warnings,omitempty"`
	Transitions []Transition  `json:"transitions"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
}
