package bem

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// fgmres solves A x = b with the flexible restarted GMRES iteration. With
// the "none" preconditioner this reduces to plain GMRES(m); the flexible
// form keeps the door open for per-iteration preconditioning without
// changing the Arnoldi bookkeeping. Returns the solution and the final
// relative residual.
func fgmres(a *mat.Dense, b []float64, tol float64, restart, maxIter int) ([]float64, float64, error) {
	n := len(b)
	if n == 0 {
		return nil, 0, nil
	}
	if restart < 1 {
		restart = 30
	}
	if restart > n {
		restart = n
	}

	x := make([]float64, n)
	bnorm := norm(b)
	if bnorm == 0 {
		return x, 0, nil
	}

	r := make([]float64, n)
	ax := make([]float64, n)

	// Krylov basis and the preconditioned directions
	v := make([][]float64, restart+1)
	z := make([][]float64, restart)
	for i := range v {
		v[i] = make([]float64, n)
	}
	for i := range z {
		z[i] = make([]float64, n)
	}
	h := mat.NewDense(restart+1, restart, nil)
	cs := make([]float64, restart)
	sn := make([]float64, restart)
	g := make([]float64, restart+1)

	resid := math.Inf(1)
	for iter := 0; iter < maxIter; {
		matVec(a, x, ax)
		for i := range r {
			r[i] = b[i] - ax[i]
		}
		beta := norm(r)
		resid = beta / bnorm
		if resid <= tol {
			return x, resid, nil
		}

		for i := range g {
			g[i] = 0
		}
		g[0] = beta
		for i := range r {
			v[0][i] = r[i] / beta
		}

		k := 0
		for ; k < restart && iter < maxIter; k++ {
			iter++

			// identity preconditioner ("none")
			copy(z[k], v[k])

			w := v[k+1]
			matVec(a, z[k], w)

			// modified Gram-Schmidt
			for j := 0; j <= k; j++ {
				hjk := dot(w, v[j])
				h.Set(j, k, hjk)
				for i := range w {
					w[i] -= hjk * v[j][i]
				}
			}
			hk1 := norm(w)
			h.Set(k+1, k, hk1)
			if hk1 > 0 {
				for i := range w {
					w[i] /= hk1
				}
			}

			// apply stored Givens rotations to the new column
			for j := 0; j < k; j++ {
				t := cs[j]*h.At(j, k) + sn[j]*h.At(j+1, k)
				h.Set(j+1, k, -sn[j]*h.At(j, k)+cs[j]*h.At(j+1, k))
				h.Set(j, k, t)
			}
			// new rotation annihilating h[k+1][k]
			denom := math.Hypot(h.At(k, k), h.At(k+1, k))
			if denom == 0 {
				cs[k], sn[k] = 1, 0
			} else {
				cs[k] = h.At(k, k) / denom
				sn[k] = h.At(k+1, k) / denom
			}
			h.Set(k, k, cs[k]*h.At(k, k)+sn[k]*h.At(k+1, k))
			h.Set(k+1, k, 0)
			g[k+1] = -sn[k] * g[k]
			g[k] = cs[k] * g[k]

			resid = math.Abs(g[k+1]) / bnorm
			if resid <= tol {
				k++
				break
			}
		}

		// back-substitute the upper triangular system
		y := make([]float64, k)
		for i := k - 1; i >= 0; i-- {
			sum := g[i]
			for j := i + 1; j < k; j++ {
				sum -= h.At(i, j) * y[j]
			}
			y[i] = sum / h.At(i, i)
		}
		for j := 0; j < k; j++ {
			for i := range x {
				x[i] += y[j] * z[j][i]
			}
		}

		if resid <= tol {
			return x, resid, nil
		}
	}

	return x, resid, &SolverError{Residual: resid, Tol: tol}
}

func matVec(a *mat.Dense, x, out []float64) {
	xv := mat.NewVecDense(len(x), x)
	ov := mat.NewVecDense(len(out), out)
	ov.MulVec(a, xv)
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func norm(a []float64) float64 { return math.Sqrt(dot(a, a)) }
