package optimization

import (
	"context"
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// projectSimplex returns the Euclidean projection of v onto
// {w : w_i ≥ 0, Σw = 1}, writing it into dst.
func projectSimplex(dst, v []float64) {
	n := len(v)
	u := make([]float64, n)
	copy(u, v)
	sort.Sort(sort.Reverse(sort.Float64Slice(u)))

	cum := 0.0
	theta := 0.0
	for j := 0; j < n; j++ {
		cum += u[j]
		t := (cum - 1) / float64(j+1)
		if u[j]-t > 0 {
			theta = t
		}
	}
	for i := range v {
		dst[i] = math.Max(v[i]-theta, 0)
	}
}

const (
	// cancellation is polled every ctxCheckInterval iterations
	ctxCheckInterval = 256
	// an exact solve on the current support is tried this often
	polishInterval = 25
)

var errNotConverged = errors.New("projected gradient did not converge")

// quadratic is f(w) = wᵗΣw - tilt·μᵗw over the simplex, solved by
// accelerated projected gradient (FISTA with gradient restart) with step
// 1/(2·λmax(Σ)). Once the support settles an exact solve on it finishes the
// job.
type quadratic struct {
	sigma [][]float64
	mu    []float64
	step  float64
}

func newQuadratic(sigma mat.Symmetric, mu []float64) (*quadratic, error) {
	n := sigma.SymmetricDim()
	q := &quadratic{
		sigma: make([][]float64, n),
		mu:    mu,
	}
	for i := 0; i < n; i++ {
		q.sigma[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			q.sigma[i][j] = sigma.At(i, j)
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sigma, false); !ok {
		return nil, errEigen
	}
	values := eig.Values(nil)
	lmax := values[len(values)-1]
	if lmax > 1e-300 {
		q.step = 1 / (2 * lmax)
	} else {
		// Zero covariance: the objective is linear
		q.step = 1
	}
	return q, nil
}

func (q *quadratic) variance(w []float64) float64 {
	v := 0.0
	for i, row := range q.sigma {
		s := 0.0
		for j, c := range row {
			s += c * w[j]
		}
		v += w[i] * s
	}
	return math.Max(v, 0)
}

func (q *quadratic) expected(w []float64) float64 {
	r := 0.0
	for i, m := range q.mu {
		r += m * w[i]
	}
	return r
}

func (q *quadratic) gradient(dst, w []float64, tilt float64) {
	for i, row := range q.sigma {
		s := 0.0
		for j, c := range row {
			s += c * w[j]
		}
		dst[i] = 2*s - tilt*q.mu[i]
	}
}

// stepFrom writes the projected gradient step from w into dst and returns
// ‖dst - w‖∞, the KKT residual of w scaled by the step.
func (q *quadratic) stepFrom(dst, grad, w []float64, tilt float64) float64 {
	q.gradient(grad, w, tilt)
	for i := range dst {
		dst[i] = w[i] - q.step*grad[i]
	}
	projectSimplex(dst, dst)

	residual := 0.0
	for i := range dst {
		if d := math.Abs(dst[i] - w[i]); d > residual {
			residual = d
		}
	}
	return residual
}

// solve minimizes the tilted objective from start. It stops once the KKT
// residual falls below tol and returns the solution with the number of
// iterations taken. A cancelled ctx or an exhausted budget is an error.
func (q *quadratic) solve(ctx context.Context, tilt float64, start []float64, maxIter int, tol float64) ([]float64, int, error) {
	n := len(q.mu)
	w := make([]float64, n)
	projectSimplex(w, start)
	y := make([]float64, n)
	copy(y, w)
	next := make([]float64, n)
	grad := make([]float64, n)
	scratch := make([]float64, n)

	t := 1.0
	var lastSupport []int
	for iter := 1; iter <= maxIter; iter++ {
		if iter%ctxCheckInterval == 1 {
			if err := ctx.Err(); err != nil {
				return w, iter - 1, err
			}
		}

		residual := q.stepFrom(next, grad, y, tilt)
		if residual < tol {
			return next, iter, nil
		}

		// Gradient restart: drop momentum once it points uphill
		uphill := 0.0
		for i := range next {
			uphill += (y[i] - next[i]) * (next[i] - w[i])
		}
		tNext := (1 + math.Sqrt(1+4*t*t)) / 2
		momentum := (t - 1) / tNext
		t = tNext
		if uphill > 0 {
			t, momentum = 1, 0
		}
		for i := range y {
			y[i] = next[i] + momentum*(next[i]-w[i])
		}
		w, next = next, w

		if iter%polishInterval == 0 {
			support := supportOf(w)
			if !sameSupport(support, lastSupport) {
				if exact, ok := q.polish(tilt, support); ok && q.stepFrom(scratch, grad, exact, tilt) < tol {
					return exact, iter, nil
				}
				lastSupport = support
			}
		}
	}
	return w, maxIter, errNotConverged
}

// polish solves the equality-constrained problem restricted to support:
// 2Σ_SS·w_S - λ1 = tilt·μ_S, 1ᵗw_S = 1. It fails when the system is
// singular or the solution leaves the simplex.
func (q *quadratic) polish(tilt float64, support []int) ([]float64, bool) {
	k := len(support)
	if k == 0 {
		return nil, false
	}
	a := mat.NewDense(k+1, k+1, nil)
	b := mat.NewVecDense(k+1, nil)
	for r, i := range support {
		for c, j := range support {
			a.Set(r, c, 2*q.sigma[i][j])
		}
		a.Set(r, k, -1)
		a.Set(k, r, 1)
		b.SetVec(r, tilt*q.mu[i])
	}
	b.SetVec(k, 1)

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, false
	}
	w := make([]float64, len(q.mu))
	for r, i := range support {
		v := x.AtVec(r)
		if v < 0 || math.IsNaN(v) {
			return nil, false
		}
		w[i] = v
	}
	return w, true
}

func supportOf(w []float64) []int {
	var s []int
	for i, v := range w {
		if v > 0 {
			s = append(s, i)
		}
	}
	return s
}

func sameSupport(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
