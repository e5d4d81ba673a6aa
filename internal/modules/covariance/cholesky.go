package covariance

import (
	"fmt"
	"math"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Factor is a lower-triangular L with L·Lᵗ ≈ C
type Factor struct {
	L       *mat.TriDense
	Jitter  float64 // diagonal jitter that was needed, 0 if none
	Retries int
}

// Rows copies L into row-major lower-triangular slices for tight loops.
func (f *Factor) Rows() [][]float64 {
	n, _ := f.L.Dims()
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]float64, i+1)
		for j := 0; j <= i; j++ {
			rows[i][j] = f.L.At(i, j)
		}
	}
	return rows
}

// Factorizer computes Cholesky factors with a bounded diagonal-jitter retry
type Factorizer struct {
	MaxRetries  int     // jitter attempts after the plain factorization fails
	JitterScale float64 // first jitter is JitterScale·trace/N, doubling per retry
	Tolerance   float64 // max |L·Lᵗ - C| accepted
	log         zerolog.Logger
}

// NewFactorizer creates a factorizer with the engine defaults.
func NewFactorizer(maxRetries int, log zerolog.Logger) *Factorizer {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Factorizer{
		MaxRetries:  maxRetries,
		JitterScale: 1e-10,
		Tolerance:   1e-6,
		log:         log.With().Str("component", "cholesky").Logger(),
	}
}

// Factorize returns the lower Cholesky factor of c. Deterministic for a
// given input. Fails with ErrConfiguration at the factorization stage when
// no attempt succeeds or the reconstruction error exceeds tolerance.
func (f *Factorizer) Factorize(c mat.Symmetric) (*Factor, error) {
	n := c.SymmetricDim()
	if n == 0 {
		return nil, domain.Configuration(domain.StageFactorization, "empty matrix")
	}

	trace := 0.0
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if v := c.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, domain.Configuration(domain.StageFactorization, "non-finite entry at (%d,%d)", i, j)
			}
		}
		trace += c.At(i, i)
	}
	if trace <= 0 {
		return nil, domain.Configuration(domain.StageFactorization, "matrix trace %.3e is not positive", trace)
	}

	base := f.JitterScale * trace / float64(n)
	work := mat.NewSymDense(n, nil)

	for attempt := 0; attempt <= f.MaxRetries; attempt++ {
		jitter := 0.0
		if attempt > 0 {
			jitter = base * math.Pow(2, float64(attempt-1))
		}

		work.CopySym(c)
		for i := 0; i < n; i++ {
			work.SetSym(i, i, work.At(i, i)+jitter)
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(work); !ok {
			f.log.Debug().
				Int("attempt", attempt).
				Float64("jitter", jitter).
				Msg("Cholesky factorization failed, retrying with jitter")
			continue
		}

		l := mat.NewTriDense(n, mat.Lower, nil)
		chol.LTo(l)

		if residual := reconstructionError(l, c); residual >= f.Tolerance {
			return nil, domain.Configuration(domain.StageFactorization,
				"reconstruction error %.3e exceeds %.1e (jitter %.3e)", residual, f.Tolerance, jitter)
		}

		if attempt > 0 {
			f.log.Info().
				Int("retries", attempt).
				Float64("jitter", jitter).
				Msg("Cholesky factorization needed diagonal jitter")
		}

		return &Factor{L: l, Jitter: jitter, Retries: attempt}, nil
	}

	return nil, domain.Configuration(domain.StageFactorization,
		"matrix not positive definite after %d jitter retries", f.MaxRetries)
}

// reconstructionError returns max |(L·Lᵗ)_ij - C_ij|.
func reconstructionError(l *mat.TriDense, c mat.Symmetric) float64 {
	n := c.SymmetricDim()
	var llt mat.Dense
	llt.Mul(l, l.T())

	worst := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if d := math.Abs(llt.At(i, j) - c.At(i, j)); d > worst {
				worst = d
			}
		}
	}
	return worst
}

// Reconstruct returns L·Lᵗ, mainly for diagnostics.
func (f *Factor) Reconstruct() *mat.SymDense {
	n, _ := f.L.Dims()
	var llt mat.Dense
	llt.Mul(f.L, f.L.T())
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, llt.At(i, j))
		}
	}
	return out
}

func (f *Factor) String() string {
	n, _ := f.L.Dims()
	return fmt.Sprintf("cholesky(n=%d, jitter=%.3e)", n, f.Jitter)
}

// IdentityFactor is the factor of an identity correlation (independent assets).
func IdentityFactor(n int) *Factor {
	l := mat.NewTriDense(n, mat.Lower, nil)
	for i := 0; i < n; i++ {
		l.SetTri(i, i, 1)
	}
	return &Factor{L: l}
}

// MixingMatrix returns to·from⁻¹, the linear map taking standardized shocks
// correlated by from's matrix to shocks correlated by to's matrix.
func MixingMatrix(from, to *Factor) (*mat.Dense, error) {
	var inv mat.TriDense
	if err := inv.InverseTri(from.L); err != nil {
		return nil, domain.NewError(domain.ErrConfiguration, domain.StageFactorization, "baseline factor is not invertible", err)
	}
	var m mat.Dense
	m.Mul(to.L, &inv)
	return &m, nil
}
