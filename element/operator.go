package element

import "gonum.org/v1/gonum/spatial/r3"

// Whitney basis for the oriented edge (a,b): N = λa∇λb - λb∇λa, with
// tangential component 1/|edge| along the edge and curl N = 2∇λa×∇λb.

// Curl returns the constant curl of the basis function of edge e
func (g *TetGeometry) Curl(e [2]int) r3.Vec {
	return r3.Scale(2, r3.Cross(g.Grad[e[0]], g.Grad[e[1]]))
}

// Basis evaluates the basis function of edge e at barycentric point l
func (g *TetGeometry) Basis(e [2]int, l [4]float64) r3.Vec {
	return r3.Sub(r3.Scale(l[e[0]], g.Grad[e[1]]), r3.Scale(l[e[1]], g.Grad[e[0]]))
}

// Field evaluates Σ x_i N_i at barycentric point l, for real and imaginary
// parts of the edge coefficients separately
func (g *TetGeometry) Field(edges [6][2]int, x [6]complex128, l [4]float64) (re, im r3.Vec) {
	for i, e := range edges {
		n := g.Basis(e, l)
		re = r3.Add(re, r3.Scale(real(x[i]), n))
		im = r3.Add(im, r3.Scale(imag(x[i]), n))
	}
	return
}

// CurlField returns the constant curl of Σ x_i N_i
func (g *TetGeometry) CurlField(edges [6][2]int, x [6]complex128) (re, im r3.Vec) {
	for i, e := range edges {
		c := g.Curl(e)
		re = r3.Add(re, r3.Scale(real(x[i]), c))
		im = r3.Add(im, r3.Scale(imag(x[i]), c))
	}
	return
}

// CurlCurl returns S_ij = ∫ curl N_i · curl N_j dV
func (g *TetGeometry) CurlCurl(edges [6][2]int) (S [6][6]float64) {
	var curls [6]r3.Vec
	for i, e := range edges {
		curls[i] = g.Curl(e)
	}
	for i := 0; i < 6; i++ {
		for j := i; j < 6; j++ {
			S[i][j] = g.Volume * r3.Dot(curls[i], curls[j])
			S[j][i] = S[i][j]
		}
	}
	return
}

// Mass returns T_ij = ∫ N_i · N_j dV using ∫λiλj dV = V(1+δij)/20
func (g *TetGeometry) Mass(edges [6][2]int) (T [6][6]float64) {
	var gg [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			gg[i][j] = r3.Dot(g.Grad[i], g.Grad[j])
		}
	}
	ll := func(i, j int) float64 {
		if i == j {
			return g.Volume / 10
		}
		return g.Volume / 20
	}
	for i := 0; i < 6; i++ {
		a, b := edges[i][0], edges[i][1]
		for j := i; j < 6; j++ {
			c, d := edges[j][0], edges[j][1]
			T[i][j] = gg[b][d]*ll(a, c) - gg[b][c]*ll(a, d) - gg[a][d]*ll(b, c) + gg[a][c]*ll(b, d)
			T[j][i] = T[i][j]
		}
	}
	return
}

// Basis evaluates the tangential basis function of edge e at barycentric
// point l of the triangle
func (t *TriGeometry) Basis(e [2]int, l [3]float64) r3.Vec {
	return r3.Sub(r3.Scale(l[e[0]], t.Grad[e[1]]), r3.Scale(l[e[1]], t.Grad[e[0]]))
}

// Mass returns B_ij = ∫ N_i · N_j dS of the tangential traces, using
// ∫λiλj dS = A(1+δij)/12
func (t *TriGeometry) Mass(edges [3][2]int) (B [3][3]float64) {
	var gg [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			gg[i][j] = r3.Dot(t.Grad[i], t.Grad[j])
		}
	}
	ll := func(i, j int) float64 {
		if i == j {
			return t.Area / 6
		}
		return t.Area / 12
	}
	for i := 0; i < 3; i++ {
		a, b := edges[i][0], edges[i][1]
		for j := i; j < 3; j++ {
			c, d := edges[j][0], edges[j][1]
			B[i][j] = gg[b][d]*ll(a, c) - gg[b][c]*ll(a, d) - gg[a][d]*ll(b, c) + gg[a][c]*ll(b, d)
			B[j][i] = B[i][j]
		}
	}
	return
}

// Load returns ∫ N_i · e dS for a field e constant over the triangle
func (t *TriGeometry) Load(edges [3][2]int, e r3.Vec) (b [3]float64) {
	for i, ed := range edges {
		b[i] = t.Area / 3 * r3.Dot(e, r3.Sub(t.Grad[ed[1]], t.Grad[ed[0]]))
	}
	return
}
