package solver

import (
	"context"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSystem builds a complex, non-Hermitian, diagonally dominant band
// matrix and the right hand side of a known solution
func testSystem(n int) (*csr, []complex128, []complex128) {
	rows := make([]map[int]struct{}, n)
	for i := range rows {
		rows[i] = map[int]struct{}{i: {}}
		for _, j := range []int{i - 3, i - 1, i + 1, i + 3} {
			if j >= 0 && j < n {
				rows[i][j] = struct{}{}
			}
		}
	}
	A := &csr{pattern: newPattern(n, rows)}
	A.val = make([]complex128, A.nnz())
	for i := 0; i < n; i++ {
		for k := A.rowPtr[i]; k < A.rowPtr[i+1]; k++ {
			j := A.col[k]
			switch {
			case i == j:
				A.val[k] = complex(6+0.1*float64(i%5), 1)
			case j > i:
				A.val[k] = complex(-1, 0.3)
			default:
				A.val[k] = complex(-0.5, -0.2)
			}
		}
	}
	want := make([]complex128, n)
	for i := range want {
		want[i] = complex(float64(i%7)-3, float64(i%3))
	}
	b := make([]complex128, n)
	A.mulVec(b, want)
	return A, b, want
}

func assertClose(t *testing.T, want, got []complex128, tol float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.LessOrEqual(t, cmplx.Abs(want[i]-got[i]), tol, "entry %d", i)
	}
}

func TestPattern(t *testing.T) {
	A, _, _ := testSystem(10)
	assert.Equal(t, 10+2*9+2*7, A.nnz())
	for i := 0; i < 10; i++ {
		require.GreaterOrEqual(t, A.diag[i], 0)
		assert.Equal(t, i, A.col[A.diag[i]])
	}
	assert.Equal(t, -1, A.find(0, 2))
	assert.Equal(t, A.rowPtr[0]+1, A.find(0, 1))
}

func TestDirect(t *testing.T) {
	A, b, want := testSystem(40)
	x, err := solveDirect(A, [][]complex128{b, make([]complex128, 40)})
	require.NoError(t, err)
	assertClose(t, want, x[0], 1e-10)
	assertClose(t, make([]complex128, 40), x[1], 1e-14)
}

func TestILU0_ExactOnTridiagonal(t *testing.T) {
	n := 12
	rows := make([]map[int]struct{}, n)
	for i := range rows {
		rows[i] = map[int]struct{}{i: {}}
		if i > 0 {
			rows[i][i-1] = struct{}{}
		}
		if i+1 < n {
			rows[i][i+1] = struct{}{}
		}
	}
	A := &csr{pattern: newPattern(n, rows)}
	A.val = make([]complex128, A.nnz())
	for i := 0; i < n; i++ {
		for k := A.rowPtr[i]; k < A.rowPtr[i+1]; k++ {
			if A.col[k] == i {
				A.val[k] = complex(4, 1)
			} else {
				A.val[k] = complex(-1, 0.5)
			}
		}
	}
	want := make([]complex128, n)
	for i := range want {
		want[i] = complex(float64(i), -1)
	}
	b := make([]complex128, n)
	A.mulVec(b, want)

	// No fill outside a tridiagonal pattern, so ILU(0) is the exact LU
	M, err := newILU0(A)
	require.NoError(t, err)
	x := make([]complex128, n)
	M.apply(x, b)
	assertClose(t, want, x, 1e-12)
}

func TestBiCGSTAB(t *testing.T) {
	A, b, want := testSystem(200)
	x, err := solveIterative(context.Background(), A, nil, [][]complex128{b}, Options{Tolerance: 1e-12, MaxIterations: 500})
	require.NoError(t, err)
	assertClose(t, want, x[0], 1e-8)

	_, err = solveIterative(context.Background(), A, nil, [][]complex128{b}, Options{Tolerance: 1e-14, MaxIterations: 1})
	assert.Error(t, err)

	x, err = solveIterative(context.Background(), A, nil, [][]complex128{make([]complex128, 200)}, Options{Tolerance: 1e-8, MaxIterations: 10})
	require.NoError(t, err)
	assertClose(t, make([]complex128, 200), x[0], 0)
}

func TestILU0_MissingDiagonal(t *testing.T) {
	rows := []map[int]struct{}{{1: {}}, {0: {}, 1: {}}}
	A := &csr{pattern: newPattern(2, rows), val: []complex128{1, 1, 1}}
	_, err := newILU0(A)
	assert.Error(t, err)
}

func TestReciprocityAndPassivity(t *testing.T) {
	through := [][]complex128{
		{0, cmplx.Exp(complex(0, 0.7))},
		{cmplx.Exp(complex(0, 0.7)), 0},
	}
	assert.InDelta(t, 0, Reciprocity(through), 1e-15)
	sigma, err := Passivity(through)
	require.NoError(t, err)
	assert.InDelta(t, 1, sigma, 1e-12)

	lossy := [][]complex128{{0.5, 0}, {0, complex(0, 0.3)}}
	sigma, err = Passivity(lossy)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, sigma, 1e-12)

	// Singular values of [[1, 1j], [0, 0]] are sqrt(2) and 0
	active := [][]complex128{{1, complex(0, 1)}, {0, 0}}
	sigma, err = Passivity(active)
	require.NoError(t, err)
	assert.InDelta(t, 1.4142135623730951, sigma, 1e-12)
	assert.InDelta(t, 1, Reciprocity(active), 1e-15)

	_, err = Passivity(nil)
	assert.Error(t, err)
	_, err = Passivity([][]complex128{{1, 0}, {0}})
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	o, err := Options{}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, Auto, o.Method)
	assert.Equal(t, Direct, o.resolve(DirectLimit))
	assert.Equal(t, Iterative, o.resolve(DirectLimit+1))
	assert.Equal(t, Direct, Options{Method: Direct}.resolve(10*DirectLimit))

	o, err = Options{Method: "ITERATIVE"}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, Iterative, o.Method)
	assert.Equal(t, Iterative, o.resolve(1))
	assert.Equal(t, Absorbing, o.OuterBoundary)
	assert.Equal(t, 1e-8, o.Tolerance)

	for _, bad := range []Options{
		{Method: "cholesky"},
		{OuterBoundary: "pml"},
		{Tolerance: 2},
		{MaxIterations: -1},
	} {
		_, err := bad.withDefaults()
		assert.Error(t, err, "%+v", bad)
	}
}
