package element

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// TetGeometry holds the affine map of one straight sided tetrahedron: the
// signed volume and the gradients of the four barycentric coordinates
type TetGeometry struct {
	Vertices [4]r3.Vec
	Volume   float64
	Grad     [4]r3.Vec
}

// SignedVolume returns the signed volume of the tetrahedron (a,b,c,d),
// positive when (b-a, c-a, d-a) is right handed
func SignedVolume(a, b, c, d r3.Vec) float64 {
	return r3.Dot(r3.Sub(b, a), r3.Cross(r3.Sub(c, a), r3.Sub(d, a))) / 6
}

// NewTetGeometry computes the metric terms of a positively oriented
// tetrahedron. Inverted or flat elements return an error.
func NewTetGeometry(v [4]r3.Vec) (TetGeometry, error) {
	g := TetGeometry{Vertices: v}

	// Columns of the Jacobian: ∂x/∂r, ∂x/∂s, ∂x/∂t with r,s,t = λ1,λ2,λ3
	xr, xs, xt := r3.Sub(v[1], v[0]), r3.Sub(v[2], v[0]), r3.Sub(v[3], v[0])
	J := r3.Dot(xr, r3.Cross(xs, xt))

	h := math.Max(r3.Norm(xr), math.Max(r3.Norm(xs), r3.Norm(xt)))
	if J <= 1e-12*h*h*h {
		return g, fmt.Errorf("negative or vanishing Jacobian %g", J)
	}
	g.Volume = J / 6

	// Rows of the inverse Jacobian are the gradients of r, s and t
	g.Grad[1] = r3.Scale(1/J, r3.Cross(xs, xt))
	g.Grad[2] = r3.Scale(1/J, r3.Cross(xt, xr))
	g.Grad[3] = r3.Scale(1/J, r3.Cross(xr, xs))
	g.Grad[0] = r3.Scale(-1, r3.Add(g.Grad[1], r3.Add(g.Grad[2], g.Grad[3])))
	return g, nil
}

// Centroid returns the mean of the vertices
func (g *TetGeometry) Centroid() r3.Vec {
	c := r3.Add(r3.Add(g.Vertices[0], g.Vertices[1]), r3.Add(g.Vertices[2], g.Vertices[3]))
	return r3.Scale(0.25, c)
}

// Barycentric returns the barycentric coordinates of p
func (g *TetGeometry) Barycentric(p r3.Vec) (l [4]float64) {
	d := r3.Sub(p, g.Vertices[0])
	l[1] = r3.Dot(g.Grad[1], d)
	l[2] = r3.Dot(g.Grad[2], d)
	l[3] = r3.Dot(g.Grad[3], d)
	l[0] = 1 - l[1] - l[2] - l[3]
	return
}

// Point maps barycentric coordinates to physical space
func (g *TetGeometry) Point(l [4]float64) r3.Vec {
	var p r3.Vec
	for i := range l {
		p = r3.Add(p, r3.Scale(l[i], g.Vertices[i]))
	}
	return p
}

// Diameter returns the longest edge length
func (g *TetGeometry) Diameter() float64 {
	var h float64
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			h = math.Max(h, r3.Norm(r3.Sub(g.Vertices[i], g.Vertices[j])))
		}
	}
	return h
}

// FaceNormal returns the unit outward normal of the face opposite vertex
// opp.
func (g *TetGeometry) FaceNormal(opp int) r3.Vec {
	return r3.Scale(-1/r3.Norm(g.Grad[opp]), g.Grad[opp])
}

// FaceArea returns the area of the face opposite vertex opp
func (g *TetGeometry) FaceArea(opp int) float64 {
	return 3 * g.Volume * r3.Norm(g.Grad[opp])
}

// TriGeometry holds a flat triangle in 3-D with the surface gradients of its
// barycentric coordinates
type TriGeometry struct {
	Vertices [3]r3.Vec
	Area     float64
	Normal   r3.Vec // Unit normal, right handed with the vertex order
	Grad     [3]r3.Vec
}

func NewTriGeometry(v [3]r3.Vec) (TriGeometry, error) {
	t := TriGeometry{Vertices: v}
	n := r3.Cross(r3.Sub(v[1], v[0]), r3.Sub(v[2], v[0]))
	twoA := r3.Norm(n)
	h := math.Max(r3.Norm(r3.Sub(v[1], v[0])), r3.Norm(r3.Sub(v[2], v[0])))
	if twoA <= 1e-12*h*h {
		return t, fmt.Errorf("degenerate triangle, area %g", twoA/2)
	}
	t.Area = twoA / 2
	t.Normal = r3.Scale(1/twoA, n)
	for i := 0; i < 3; i++ {
		a, b := v[(i+1)%3], v[(i+2)%3]
		t.Grad[i] = r3.Scale(1/twoA, r3.Cross(t.Normal, r3.Sub(b, a)))
	}
	return t, nil
}

// Centroid returns the mean of the vertices
func (t *TriGeometry) Centroid() r3.Vec {
	return r3.Scale(1.0/3, r3.Add(t.Vertices[0], r3.Add(t.Vertices[1], t.Vertices[2])))
}

// Point maps barycentric coordinates to physical space
func (t *TriGeometry) Point(l [3]float64) r3.Vec {
	return r3.Add(r3.Scale(l[0], t.Vertices[0]), r3.Add(r3.Scale(l[1], t.Vertices[1]), r3.Scale(l[2], t.Vertices[2])))
}
