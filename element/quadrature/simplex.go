package quadrature

// Rule is a quadrature rule on a simplex in barycentric coordinates. Weights
// sum to one, so an integral is Σ w·f(x) times the simplex measure.
type Rule struct {
	Points  [][]float64 // Barycentric coordinates, NVerts per point
	Weights []float64
}

// TetRule returns a conical product rule on the tetrahedron with (n+1)^3
// points, exact for polynomials of degree 2n+1.
func TetRule(n int) (Rule, error) {
	xa, wa, err := JacobiGQ(2, 0, n)
	if err != nil {
		return Rule{}, err
	}
	xb, wb, err := JacobiGQ(1, 0, n)
	if err != nil {
		return Rule{}, err
	}
	xc, wc, err := JacobiGQ(0, 0, n)
	if err != nil {
		return Rule{}, err
	}

	var r Rule
	for i := range xa {
		a := (1 + xa[i]) / 2
		for j := range xb {
			b := (1 + xb[j]) / 2
			for k := range xc {
				c := (1 + xc[k]) / 2
				l1 := a
				l2 := b * (1 - a)
				l3 := c * (1 - a) * (1 - b)
				r.Points = append(r.Points, []float64{1 - l1 - l2 - l3, l1, l2, l3})
				// Jacobian (1-a)²(1-b) is carried by the weights; 6 normalizes the volume
				r.Weights = append(r.Weights, 6*wa[i]/8*wb[j]/4*wc[k]/2)
			}
		}
	}
	return r, nil
}

// TriRule returns a conical product rule on the triangle with (n+1)^2
// points, exact for polynomials of degree 2n+1.
func TriRule(n int) (Rule, error) {
	xa, wa, err := JacobiGQ(1, 0, n)
	if err != nil {
		return Rule{}, err
	}
	xb, wb, err := JacobiGQ(0, 0, n)
	if err != nil {
		return Rule{}, err
	}
	var r Rule
	for i := range xa {
		a := (1 + xa[i]) / 2
		for j := range xb {
			b := (1 + xb[j]) / 2
			l1 := a
			l2 := b * (1 - a)
			r.Points = append(r.Points, []float64{1 - l1 - l2, l1, l2})
			r.Weights = append(r.Weights, 2*wa[i]/4*wb[j]/2)
		}
	}
	return r, nil
}
