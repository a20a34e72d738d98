package solver

// gradient is the discrete gradient G from the vertices whose edges are all
// unknowns into the edge space. Every Whitney edge runs from its lower to its
// higher vertex, so row e of G holds -1 at the lower and +1 at the higher end.
// At low frequency the curl-curl operator vanishes on the range of G and
// Krylov methods stall there; GᵀAG restores that block.
type gradient struct {
	nodes int
	ends  [][2]int // Nodal index of the lower and higher vertex per unknown, -1 outside the space
	pat   *pattern // Pattern of GᵀAG
}

func newGradient(p *Problem) *gradient {
	m := p.Mesh
	free := make([]bool, len(m.Vertices))
	for i := range free {
		free[i] = true
	}
	for i, e := range m.Edges {
		if p.dof[i] < 0 {
			free[e[0]], free[e[1]] = false, false
		}
	}
	index := make([]int, len(m.Vertices))
	g := &gradient{}
	for v := range index {
		index[v] = -1
		if free[v] {
			index[v] = g.nodes
			g.nodes++
		}
	}
	if g.nodes == 0 {
		return nil
	}
	g.ends = make([][2]int, len(p.edgeOf))
	for d, e := range p.edgeOf {
		key := m.Edges[e]
		g.ends[d] = [2]int{index[key[0]], index[key[1]]}
	}

	rows := make([]map[int]struct{}, g.nodes)
	for i := range rows {
		rows[i] = make(map[int]struct{}, 16)
	}
	A := p.pat
	for i := 0; i < A.n; i++ {
		for _, a := range g.ends[i] {
			if a < 0 {
				continue
			}
			for k := A.rowPtr[i]; k < A.rowPtr[i+1]; k++ {
				for _, b := range g.ends[A.col[k]] {
					if b >= 0 {
						rows[a][b] = struct{}{}
					}
				}
			}
		}
	}
	g.pat = newPattern(g.nodes, rows)
	return g
}

var gradientSign = [2]complex128{-1, 1}

// galerkin returns GᵀAG
func (g *gradient) galerkin(A *csr) *csr {
	out := &csr{pattern: g.pat, val: make([]complex128, g.pat.nnz())}
	for i := 0; i < A.n; i++ {
		for sa, a := range g.ends[i] {
			if a < 0 {
				continue
			}
			for k := A.rowPtr[i]; k < A.rowPtr[i+1]; k++ {
				v := gradientSign[sa] * A.val[k]
				for sb, b := range g.ends[A.col[k]] {
					if b >= 0 {
						out.val[g.pat.find(a, b)] += v * gradientSign[sb]
					}
				}
			}
		}
	}
	return out
}

// restrict sets y = Gᵀr
func (g *gradient) restrict(y, r []complex128) {
	for i := range y {
		y[i] = 0
	}
	for i, e := range g.ends {
		for s, a := range e {
			if a >= 0 {
				y[a] += gradientSign[s] * r[i]
			}
		}
	}
}

// prolong adds Gφ to z
func (g *gradient) prolong(z, phi []complex128) {
	for i, e := range g.ends {
		for s, a := range e {
			if a >= 0 {
				z[i] += gradientSign[s] * phi[a]
			}
		}
	}
}

// preconditioner approximates A⁻¹
type preconditioner interface {
	apply(z, r []complex128)
}

// gradientCorrected follows an ILU(0) step on the edge space with a
// correction in the range of G solved by ILU(0) of GᵀAG. Not safe for
// concurrent use.
type gradientCorrected struct {
	A    *csr
	edge *ilu0
	g    *gradient
	node *ilu0
	r    []complex128
	rn   []complex128
	phi  []complex128
}

func newGradientCorrected(A *csr, edge *ilu0, g *gradient) (*gradientCorrected, error) {
	node, err := newILU0(g.galerkin(A))
	if err != nil {
		return nil, err
	}
	return &gradientCorrected{
		A: A, edge: edge, g: g, node: node,
		r:   make([]complex128, A.n),
		rn:  make([]complex128, g.nodes),
		phi: make([]complex128, g.nodes),
	}, nil
}

func (h *gradientCorrected) apply(z, r []complex128) {
	h.edge.apply(z, r)
	h.A.mulVec(h.r, z)
	for i := range h.r {
		h.r[i] = r[i] - h.r[i]
	}
	h.g.restrict(h.rn, h.r)
	h.node.apply(h.phi, h.rn)
	h.g.prolong(z, h.phi)
}
