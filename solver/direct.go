package solver

import (
	"fmt"

	"github.com/edp1096/sparse"
)

// solveDirect factors A once with Markowitz pivoting and solves for every
// right hand side
func solveDirect(A *csr, rhs [][]complex128) ([][]complex128, error) {
	n := A.n
	if n == 0 {
		return nil, fmt.Errorf("empty system")
	}
	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 true,
		SeparatedComplexVectors: false,
		Expandable:              true,
		Translate:               false,
		ModifiedNodal:           false,
		TiesMultiplier:          5,
		DefaultPartition:        sparse.DEFAULT_PARTITION,
		PrinterWidth:            140,
		Annotate:                0,
	}
	mat, err := sparse.Create(int64(n), config)
	if err != nil {
		return nil, fmt.Errorf("creating %dx%d matrix: %w", n, n, err)
	}
	defer mat.Destroy()

	// The library is 1-based
	for i := 0; i < n; i++ {
		for k := A.rowPtr[i]; k < A.rowPtr[i+1]; k++ {
			el := mat.GetElement(int64(i+1), int64(A.col[k]+1))
			el.Real += real(A.val[k])
			el.Imag += imag(A.val[k])
		}
	}
	if err = mat.Factor(); err != nil {
		return nil, fmt.Errorf("factorization: %w", err)
	}

	out := make([][]complex128, len(rhs))
	for j, b := range rhs {
		// Interleaved real and imaginary parts, slot 0 unused
		v := make([]float64, 2*(n+1))
		for i, z := range b {
			v[2*(i+1)] = real(z)
			v[2*(i+1)+1] = imag(z)
		}
		x, _, err := mat.SolveComplex(v, nil)
		if err != nil {
			return nil, fmt.Errorf("solve for excitation %d: %w", j+1, err)
		}
		out[j] = make([]complex128, n)
		for i := range out[j] {
			out[j][i] = complex(x[2*(i+1)], x[2*(i+1)+1])
		}
	}
	return out, nil
}
