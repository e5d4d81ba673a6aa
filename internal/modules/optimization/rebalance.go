package optimization

import (
	"math"
	"sort"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/shopspring/decimal"
)

// Action is a trade direction
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// MinTradeWeight is the smallest weight change that produces a trade
const MinTradeWeight = 0.001

// DefaultPortfolioValue is assumed when the caller gives no portfolio value.
var DefaultPortfolioValue = decimal.NewFromInt(1_000_000)

// Trade moves one asset from its current to its target weight
type Trade struct {
	Ticker        string          `json:"ticker"`
	Action        Action          `json:"action"`
	CurrentWeight float64         `json:"current_weight"`
	TargetWeight  float64         `json:"target_weight"`
	WeightChange  float64         `json:"weight_change"`
	DollarValue   decimal.Decimal `json:"dollar_value"`
}

// Rebalance lists the trades that take current to target. A nil or empty
// current portfolio is taken as equal weights over the target's assets.
// Changes smaller than MinTradeWeight are skipped. Sells come first, then
// buys, each group ordered by ticker.
func Rebalance(current, target map[string]float64, totalValue decimal.Decimal) ([]Trade, error) {
	if len(target) == 0 {
		return nil, domain.Validation("target portfolio is empty")
	}
	if totalValue.IsZero() {
		totalValue = DefaultPortfolioValue
	}
	if totalValue.IsNegative() {
		return nil, domain.Validation("portfolio value must be positive, got %s", totalValue)
	}
	if err := checkWeights("target", target); err != nil {
		return nil, err
	}

	if len(current) == 0 {
		current = make(map[string]float64, len(target))
		for t := range target {
			current[t] = 1 / float64(len(target))
		}
	} else if err := checkWeights("current", current); err != nil {
		return nil, err
	}

	tickers := make(map[string]struct{}, len(target)+len(current))
	for t := range target {
		tickers[t] = struct{}{}
	}
	for t := range current {
		tickers[t] = struct{}{}
	}

	trades := make([]Trade, 0, len(tickers))
	for t := range tickers {
		delta := target[t] - current[t]
		if math.Abs(delta) < MinTradeWeight {
			continue
		}
		action := ActionBuy
		if delta < 0 {
			action = ActionSell
		}
		trades = append(trades, Trade{
			Ticker:        t,
			Action:        action,
			CurrentWeight: current[t],
			TargetWeight:  target[t],
			WeightChange:  delta,
			DollarValue:   decimal.NewFromFloat(math.Abs(delta)).Mul(totalValue).Round(2),
		})
	}

	sort.Slice(trades, func(i, j int) bool {
		if trades[i].Action != trades[j].Action {
			return trades[i].Action == ActionSell
		}
		return trades[i].Ticker < trades[j].Ticker
	})
	return trades, nil
}

func checkWeights(label string, weights map[string]float64) error {
	for t, w := range weights {
		if !finite(w) || w < 0 {
			return domain.Validation("%s weight for %s must be non-negative, got %v", label, t, w)
		}
	}
	return nil
}
