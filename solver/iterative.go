package solver

import (
	"context"
	"fmt"
	"math/cmplx"
)

// ilu0 is the incomplete LU factorization of A restricted to its own
// sparsity pattern. L has a unit diagonal and shares storage with U.
type ilu0 struct {
	*pattern
	lu []complex128
}

func newILU0(A *csr) (*ilu0, error) {
	f := &ilu0{pattern: A.pattern, lu: append([]complex128(nil), A.val...)}
	for i := 0; i < f.n; i++ {
		if f.diag[i] < 0 {
			return nil, fmt.Errorf("row %d has no diagonal entry", i)
		}
		for kk := f.rowPtr[i]; kk < f.diag[i]; kk++ {
			k := f.col[kk]
			pivot := f.lu[f.diag[k]]
			if pivot == 0 {
				return nil, fmt.Errorf("zero pivot in row %d", k)
			}
			f.lu[kk] /= pivot
			lik := f.lu[kk]
			for jj := kk + 1; jj < f.rowPtr[i+1]; jj++ {
				if pos := f.find(k, f.col[jj]); pos >= 0 {
					f.lu[jj] -= lik * f.lu[pos]
				}
			}
		}
		if f.lu[f.diag[i]] == 0 {
			return nil, fmt.Errorf("zero pivot in row %d", i)
		}
	}
	return f, nil
}

// apply solves LU z = r
func (f *ilu0) apply(z, r []complex128) {
	for i := 0; i < f.n; i++ {
		s := r[i]
		for k := f.rowPtr[i]; k < f.diag[i]; k++ {
			s -= f.lu[k] * z[f.col[k]]
		}
		z[i] = s
	}
	for i := f.n - 1; i >= 0; i-- {
		s := z[i]
		for k := f.diag[i] + 1; k < f.rowPtr[i+1]; k++ {
			s -= f.lu[k] * z[f.col[k]]
		}
		z[i] = s / f.lu[f.diag[i]]
	}
}

// solveIterative runs BiCGSTAB once per right hand side. With a gradient it
// preconditions by ILU(0) plus a correction on the gradient space, otherwise
// by ILU(0) alone.
func solveIterative(ctx context.Context, A *csr, g *gradient, rhs [][]complex128, opts Options) ([][]complex128, error) {
	if A.n == 0 {
		return nil, fmt.Errorf("empty system")
	}
	edge, err := newILU0(A)
	if err != nil {
		return nil, fmt.Errorf("ilu(0): %w", err)
	}
	var M preconditioner = edge
	if g != nil {
		if M, err = newGradientCorrected(A, edge, g); err != nil {
			return nil, fmt.Errorf("gradient space ilu(0): %w", err)
		}
	}
	out := make([][]complex128, len(rhs))
	for j, b := range rhs {
		x, iters, err := bicgstab(ctx, A, M, b, opts.Tolerance, opts.MaxIterations)
		if err != nil {
			return nil, fmt.Errorf("excitation %d after %d iterations: %w", j+1, iters, err)
		}
		out[j] = x
	}
	return out, nil
}

// bicgstab is the right preconditioned stabilized bi-conjugate gradient
// method for complex non-Hermitian systems
func bicgstab(ctx context.Context, A *csr, M preconditioner, b []complex128, tol float64, maxIter int) ([]complex128, int, error) {
	n := A.n
	x := make([]complex128, n)
	bnorm := norm2(b)
	if bnorm == 0 {
		return x, 0, nil
	}
	r := append([]complex128(nil), b...)
	rhat := append([]complex128(nil), b...)
	p := make([]complex128, n)
	v := make([]complex128, n)
	y := make([]complex128, n)
	s := make([]complex128, n)
	z := make([]complex128, n)
	t := make([]complex128, n)

	rho, alpha, omega := complex(1, 0), complex(1, 0), complex(1, 0)
	for it := 1; it <= maxIter; it++ {
		if it%50 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, it, err
			}
		}
		rhoNew := dotc(rhat, r)
		if cmplx.Abs(rhoNew) < 1e-300 {
			return nil, it, fmt.Errorf("breakdown, rho vanished")
		}
		beta := (rhoNew / rho) * (alpha / omega)
		for i := range p {
			p[i] = r[i] + beta*(p[i]-omega*v[i])
		}
		M.apply(y, p)
		A.mulVec(v, y)
		den := dotc(rhat, v)
		if den == 0 {
			return nil, it, fmt.Errorf("breakdown, <r0,v> vanished")
		}
		alpha = rhoNew / den
		for i := range s {
			s[i] = r[i] - alpha*v[i]
		}
		if norm2(s) <= tol*bnorm {
			for i := range x {
				x[i] += alpha * y[i]
			}
			return x, it, nil
		}
		M.apply(z, s)
		A.mulVec(t, z)
		tt := dotc(t, t)
		if tt == 0 {
			return nil, it, fmt.Errorf("breakdown, t vanished")
		}
		omega = dotc(t, s) / tt
		for i := range x {
			x[i] += alpha*y[i] + omega*z[i]
			r[i] = s[i] - omega*t[i]
		}
		if norm2(r) <= tol*bnorm {
			return x, it, nil
		}
		if omega == 0 {
			return nil, it, fmt.Errorf("breakdown, omega vanished")
		}
		rho = rhoNew
	}
	return nil, maxIter, fmt.Errorf("no convergence to %g", tol)
}
