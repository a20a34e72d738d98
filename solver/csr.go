package solver

import (
	"math/cmplx"
	"sort"
)

// pattern is the fixed sparsity structure of the system matrix in
// compressed sparse row form with sorted columns
type pattern struct {
	n      int
	rowPtr []int
	col    []int
	diag   []int // Position of the diagonal entry in each row
}

func newPattern(n int, rows []map[int]struct{}) *pattern {
	p := &pattern{n: n, rowPtr: make([]int, n+1), diag: make([]int, n)}
	for i := 0; i < n; i++ {
		p.rowPtr[i+1] = p.rowPtr[i] + len(rows[i])
	}
	p.col = make([]int, 0, p.rowPtr[n])
	for i := 0; i < n; i++ {
		start := len(p.col)
		for j := range rows[i] {
			p.col = append(p.col, j)
		}
		cols := p.col[start:]
		sort.Ints(cols)
		p.diag[i] = -1
		if k := sort.SearchInts(cols, i); k < len(cols) && cols[k] == i {
			p.diag[i] = start + k
		}
	}
	return p
}

func (p *pattern) nnz() int { return len(p.col) }

// find returns the position of (i, j), or -1
func (p *pattern) find(i, j int) int {
	cols := p.col[p.rowPtr[i]:p.rowPtr[i+1]]
	k := sort.SearchInts(cols, j)
	if k < len(cols) && cols[k] == j {
		return p.rowPtr[i] + k
	}
	return -1
}

// csr is a complex matrix on a shared pattern
type csr struct {
	*pattern
	val []complex128
}

func (a *csr) mulVec(dst, x []complex128) {
	for i := 0; i < a.n; i++ {
		var s complex128
		for k := a.rowPtr[i]; k < a.rowPtr[i+1]; k++ {
			s += a.val[k] * x[a.col[k]]
		}
		dst[i] = s
	}
}

func dotc(x, y []complex128) complex128 {
	var s complex128
	for i := range x {
		s += cmplx.Conj(x[i]) * y[i]
	}
	return s
}

func norm2(x []complex128) float64 {
	return cmplx.Abs(cmplx.Sqrt(dotc(x, x)))
}

func finite(x []complex128) bool {
	for _, v := range x {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return false
		}
	}
	return true
}
