package solver

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Reciprocity returns max |S_ij - S_ji|
func Reciprocity(S [][]complex128) float64 {
	var worst float64
	for i := range S {
		for j := i + 1; j < len(S); j++ {
			worst = math.Max(worst, cmplx.Abs(S[i][j]-S[j][i]))
		}
	}
	return worst
}

// Passivity returns the largest singular value of S, at most one for a
// passive network. The Hermitian S^H S is diagonalized through its real
// symmetric embedding [[Re, -Im], [Im, Re]], which repeats every eigenvalue
// twice.
func Passivity(S [][]complex128) (float64, error) {
	n := len(S)
	if n == 0 {
		return 0, fmt.Errorf("empty scattering matrix")
	}
	G := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		if len(S[i]) != n {
			return 0, fmt.Errorf("scattering matrix row %d has %d entries, want %d", i, len(S[i]), n)
		}
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var g complex128
			for k := 0; k < n; k++ {
				g += cmplx.Conj(S[k][i]) * S[k][j]
			}
			G.SetSym(i, j, real(g))
			G.SetSym(n+i, n+j, real(g))
			G.SetSym(i, n+j, -imag(g))
			if i != j {
				// Block (0,1) is antisymmetric: (i,n+j) = -Im g_ij, (j,n+i) = +Im g_ij
				G.SetSym(j, n+i, imag(g))
			}
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(G, false); !ok {
		return 0, fmt.Errorf("eigen decomposition of S^H S failed")
	}
	vals := eig.Values(nil)
	return math.Sqrt(math.Max(0, vals[len(vals)-1])), nil
}
