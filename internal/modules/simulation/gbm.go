package simulation

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/modules/covariance"
	"github.com/rs/zerolog"
)

// GBMInputs are the stressed parameters of a geometric Brownian motion run
type GBMInputs struct {
	Tickers    []string
	Mean       []float64 // annualized drift μ
	Volatility []float64 // annualized σ
	Factor     *covariance.Factor
}

// GBM simulates correlated log-normal price paths:
// log S_{t+1}/S_t = (μ - σ²/2)·dt + σ·√dt·(L·z)
type GBM struct {
	tickers   []string
	drift     []float64
	diffusion []float64
	lower     [][]float64
	log       zerolog.Logger
}

// NewGBM creates a GBM simulator. The factor must match the number of tickers.
func NewGBM(in GBMInputs, log zerolog.Logger) (*GBM, error) {
	n := len(in.Tickers)
	if len(in.Mean) != n || len(in.Volatility) != n {
		return nil, domain.Configuration(domain.StageSimulation, "drift/volatility length mismatch for %d assets", n)
	}
	if in.Factor == nil {
		return nil, domain.Configuration(domain.StageSimulation, "missing Cholesky factor")
	}
	if r, _ := in.Factor.L.Dims(); r != n {
		return nil, domain.Configuration(domain.StageSimulation, "factor is %dx%d for %d assets", r, r, n)
	}

	g := &GBM{
		tickers:   append([]string(nil), in.Tickers...),
		drift:     make([]float64, n),
		diffusion: make([]float64, n),
		lower:     in.Factor.Rows(),
		log:       log.With().Str("component", "gbm_simulator").Logger(),
	}
	sqrtDT := math.Sqrt(DT)
	for i := 0; i < n; i++ {
		sigma := in.Volatility[i]
		if math.IsNaN(sigma) || sigma < 0 || math.IsNaN(in.Mean[i]) {
			return nil, domain.Configuration(domain.StageSimulation, "invalid drift/volatility for %s", in.Tickers[i])
		}
		g.drift[i] = (in.Mean[i] - 0.5*sigma*sigma) * DT
		g.diffusion[i] = sigma * sqrtDT
	}
	return g, nil
}

// Method implements Simulator.
func (g *GBM) Method() domain.Method { return domain.MethodMonteCarlo }

// Generate implements Simulator.
func (g *GBM) Generate(ctx context.Context, p RunParams) (*PathEnsemble, error) {
	return runTrials(ctx, g.log, g.Method(), g.tickers, p, g.newTrial)
}

type gbmTrial struct {
	g   *GBM
	rnd *rand.Rand
	z   []float64
}

func (g *GBM) newTrial(rnd *rand.Rand) dayStepper {
	return &gbmTrial{g: g, rnd: rnd, z: make([]float64, len(g.tickers))}
}

func (t *gbmTrial) next(factors []float64) {
	g := t.g
	for k := range t.z {
		t.z[k] = t.rnd.NormFloat64()
	}
	for i, row := range g.lower {
		eps := 0.0
		for j, l := range row {
			eps += l * t.z[j]
		}
		factors[i] = math.Exp(g.drift[i] + g.diffusion[i]*eps)
	}
}
