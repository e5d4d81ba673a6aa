package covariance

import (
	"fmt"
	"math"

	"github.com/aristath/stresslab/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// DefaultPSDTolerance is the smallest eigenvalue still accepted as PSD.
const DefaultPSDTolerance = 1e-8

// RepairOptions bounds the nearest-correlation repair
type RepairOptions struct {
	MaxIterations int     // iterations of clip + rescale before giving up
	Tolerance     float64 // accepted smallest eigenvalue is -Tolerance
	Floor         float64 // eigenvalues below Floor are raised to it (0 = zero out negatives)
}

// DefaultRepairOptions returns the engine defaults.
func DefaultRepairOptions() RepairOptions {
	return RepairOptions{MaxIterations: 100, Tolerance: DefaultPSDTolerance}
}

func (o RepairOptions) withDefaults() RepairOptions {
	d := DefaultRepairOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.Floor < 0 {
		o.Floor = 0
	}
	return o
}

// RepairReport describes what a repair did
type RepairReport struct {
	Iterations     int     `json:"iterations"`
	MinEigenBefore float64 `json:"min_eigen_before"`
	MinEigenAfter  float64 `json:"min_eigen_after"`
}

// MinEigenvalue returns the smallest eigenvalue of a symmetric matrix.
func MinEigenvalue(a mat.Symmetric) (float64, error) {
	var es mat.EigenSym
	if ok := es.Factorize(a, false); !ok {
		return 0, fmt.Errorf("eigendecomposition did not converge")
	}
	values := es.Values(nil)
	return values[0], nil
}

// IsPSD reports whether the smallest eigenvalue of a is at least -tol.
func IsPSD(a mat.Symmetric, tol float64) (bool, float64, error) {
	minEig, err := MinEigenvalue(a)
	if err != nil {
		return false, 0, err
	}
	return minEig >= -tol, minEig, nil
}

// RepairCorrelation projects a symmetric, unit-diagonal matrix back onto the
// PSD cone by clipping eigenvalues and rescaling the diagonal to one, until
// the smallest eigenvalue is within tolerance. The input is not modified.
// Errors are ErrConfiguration without a stage; callers attach theirs.
func RepairCorrelation(c mat.Symmetric, opts RepairOptions) (*mat.SymDense, RepairReport, error) {
	opts = opts.withDefaults()
	n := c.SymmetricDim()

	current := mat.NewSymDense(n, nil)
	current.CopySym(c)

	report := RepairReport{}
	minEig, err := MinEigenvalue(current)
	if err != nil {
		return nil, report, domain.NewError(domain.ErrConfiguration, "", "correlation matrix has no eigendecomposition", err)
	}
	report.MinEigenBefore = minEig
	report.MinEigenAfter = minEig
	if minEig >= -opts.Tolerance {
		return current, report, nil
	}

	for iter := 1; iter <= opts.MaxIterations; iter++ {
		report.Iterations = iter

		clipped, err := clipEigenvalues(current, opts.Floor)
		if err != nil {
			return nil, report, domain.NewError(domain.ErrConfiguration, "", "eigenvalue clipping failed", err)
		}
		if err := rescaleToUnitDiagonal(clipped); err != nil {
			return nil, report, domain.NewError(domain.ErrConfiguration, "", "cannot restore unit diagonal", err)
		}
		current = clipped

		minEig, err = MinEigenvalue(current)
		if err != nil {
			return nil, report, domain.NewError(domain.ErrConfiguration, "", "repaired matrix has no eigendecomposition", err)
		}
		report.MinEigenAfter = minEig
		if minEig >= -opts.Tolerance {
			return current, report, nil
		}
	}

	return nil, report, domain.NewError(domain.ErrConfiguration, "",
		fmt.Sprintf("correlation matrix not PSD after %d repair iterations (min eigenvalue %.3e)",
			opts.MaxIterations, report.MinEigenAfter), nil)
}

// clipEigenvalues rebuilds a from its eigendecomposition with every
// eigenvalue below floor raised to floor.
func clipEigenvalues(a *mat.SymDense, floor float64) (*mat.SymDense, error) {
	n := a.SymmetricDim()

	var es mat.EigenSym
	if ok := es.Factorize(a, true); !ok {
		return nil, fmt.Errorf("eigendecomposition did not converge")
	}
	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)

	for i, v := range values {
		if v < floor {
			values[i] = floor
		}
	}

	// V · diag(λ) · Vᵗ, accumulated directly into the upper triangle
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sum := 0.0
			for k := 0; k < n; k++ {
				sum += vectors.At(i, k) * values[k] * vectors.At(j, k)
			}
			out.SetSym(i, j, sum)
		}
	}
	return out, nil
}

// rescaleToUnitDiagonal applies D^{-1/2}·A·D^{-1/2} in place and pins the
// diagonal to exactly one. Off-diagonals are clamped to [-1, 1].
func rescaleToUnitDiagonal(a *mat.SymDense) error {
	n := a.SymmetricDim()
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		v := a.At(i, i)
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("non-positive diagonal %.3e at %d", v, i)
		}
		d[i] = math.Sqrt(v)
	}

	for i := 0; i < n; i++ {
		a.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			a.SetSym(i, j, clamp(a.At(i, j)/(d[i]*d[j]), -1, 1))
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
