package element

import (
	"math"
	"testing"

	"github.com/notargets/EMKernel/element/quadrature"
	"github.com/notargets/EMKernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func skewTet() [4]r3.Vec {
	return [4]r3.Vec{
		{X: 0.1, Y: -0.2, Z: 0.05},
		{X: 1.3, Y: 0.1, Z: -0.1},
		{X: 0.2, Y: 0.9, Z: 0.2},
		{X: 0.3, Y: 0.25, Z: 1.1},
	}
}

func TestTetGeometry_Reference(t *testing.T) {
	g, err := NewTetGeometry([4]r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}})
	require.NoError(t, err)
	assert.InDelta(t, 1.0/6, g.Volume, 1e-15)
	assert.Equal(t, r3.Vec{X: -1, Y: -1, Z: -1}, g.Grad[0])
	assert.Equal(t, r3.Vec{X: 1}, g.Grad[1])
	assert.Equal(t, r3.Vec{Y: 1}, g.Grad[2])
	assert.Equal(t, r3.Vec{Z: 1}, g.Grad[3])

	l := g.Barycentric(r3.Vec{X: 0.2, Y: 0.3, Z: 0.1})
	assert.InDeltaSlice(t, []float64{0.4, 0.2, 0.3, 0.1}, l[:], 1e-15)
	assert.InDelta(t, 0.25, g.Centroid().X, 1e-15)
	assert.InDelta(t, 1.4142135623730951, g.Diameter(), 1e-15)

	// Inverted ordering is rejected
	_, err = NewTetGeometry([4]r3.Vec{{}, {Y: 1}, {X: 1}, {Z: 1}})
	assert.Error(t, err)
	_, err = NewTetGeometry([4]r3.Vec{{}, {X: 1}, {Y: 1}, {X: 1, Y: 1}})
	assert.Error(t, err)
	assert.Less(t, SignedVolume(r3.Vec{}, r3.Vec{Y: 1}, r3.Vec{X: 1}, r3.Vec{Z: 1}), 0.0)
}

func TestTetGeometry_FaceNormals(t *testing.T) {
	g, err := NewTetGeometry(skewTet())
	require.NoError(t, err)
	for f, fv := range utils.TetFaces {
		opp := utils.TetFaceOpposite[f]
		tri, err := NewTriGeometry([3]r3.Vec{g.Vertices[fv[0]], g.Vertices[fv[1]], g.Vertices[fv[2]]})
		require.NoError(t, err)
		assert.InDelta(t, tri.Area, g.FaceArea(opp), 1e-12)
		n := g.FaceNormal(opp)
		assert.Less(t, r3.Dot(n, r3.Sub(g.Vertices[opp], tri.Centroid())), 0.0)
		assert.InDelta(t, 1.0, math.Abs(r3.Dot(n, tri.Normal)), 1e-12)
	}
}

// TestWhitney_Tangential tests the defining property of the edge basis: unit
// circulation along its own edge, none along the others
func TestWhitney_Tangential(t *testing.T) {
	g, err := NewTetGeometry(skewTet())
	require.NoError(t, err)
	edges := OrientTet([4]int{7, 3, 9, 1})
	for i, ei := range edges {
		for _, ej := range edges {
			var l [4]float64
			l[ej[0]], l[ej[1]] = 0.5, 0.5
			tangent := r3.Sub(g.Vertices[ej[1]], g.Vertices[ej[0]])
			want := 0.0
			if ei == ej {
				want = 1
			}
			assert.InDeltaf(t, want, r3.Dot(g.Basis(ei, l), tangent), 1e-12, "edge %d on %v", i, ej)
		}
	}
}

// TestWhitney_GradientNullSpace tests that gradients of nodal functions lie
// in the kernel of the curl-curl matrix
func TestWhitney_GradientNullSpace(t *testing.T) {
	g, err := NewTetGeometry(skewTet())
	require.NoError(t, err)
	edges := OrientTet([4]int{4, 2, 8, 6})
	S := g.CurlCurl(edges)
	phi := [4]float64{0.3, -1.2, 2.5, 0.7}
	for i := 0; i < 6; i++ {
		var s float64
		for j, e := range edges {
			s += S[i][j] * (phi[e[1]] - phi[e[0]])
		}
		assert.InDelta(t, 0.0, s, 1e-12)
	}
}

func TestWhitney_MassMatchesQuadrature(t *testing.T) {
	g, err := NewTetGeometry(skewTet())
	require.NoError(t, err)
	edges := OrientTet([4]int{0, 1, 2, 3})
	T := g.Mass(edges)

	rule, err := quadrature.TetRule(2)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			var q float64
			for k, p := range rule.Points {
				l := [4]float64{p[0], p[1], p[2], p[3]}
				q += rule.Weights[k] * g.Volume * r3.Dot(g.Basis(edges[i], l), g.Basis(edges[j], l))
			}
			assert.InDeltaf(t, q, T[i][j], 1e-12, "T[%d][%d]", i, j)
		}
	}

	// Curl of the assembled field equals the field of the curls
	var x [6]complex128
	for i := range x {
		x[i] = complex(float64(i), -float64(i)/2)
	}
	re, im := g.CurlField(edges, x)
	var want r3.Vec
	for i, e := range edges {
		want = r3.Add(want, r3.Scale(float64(i), g.Curl(e)))
	}
	assert.InDelta(t, 0.0, r3.Norm(r3.Sub(re, want)), 1e-12)
	assert.InDelta(t, 0.0, r3.Norm(r3.Add(im, r3.Scale(0.5, want))), 1e-12)
}

// TestWhitney_TriangleTrace tests that the triangle basis is the tangential
// trace of the tetrahedron basis on a face
func TestWhitney_TriangleTrace(t *testing.T) {
	g, err := NewTetGeometry(skewTet())
	require.NoError(t, err)
	global := [4]int{0, 1, 2, 3}
	fv := utils.TetFaces[2] // {1,2,3}
	tri, err := NewTriGeometry([3]r3.Vec{g.Vertices[fv[0]], g.Vertices[fv[1]], g.Vertices[fv[2]]})
	require.NoError(t, err)
	triEdges := OrientTri([3]int{global[fv[0]], global[fv[1]], global[fv[2]]})

	lt := [3]float64{0.2, 0.5, 0.3}
	var l [4]float64
	for i, v := range fv {
		l[v] = lt[i]
	}
	for _, te := range triEdges {
		tetEdge := [2]int{fv[te[0]], fv[te[1]]}
		nt := g.Basis(tetEdge, l)
		tangential := r3.Sub(nt, r3.Scale(r3.Dot(nt, tri.Normal), tri.Normal))
		assert.InDelta(t, 0.0, r3.Norm(r3.Sub(tangential, tri.Basis(te, lt))), 1e-12)
	}

	B := tri.Mass(triEdges)
	rule, err := quadrature.TriRule(1)
	require.NoError(t, err)
	e := r3.Vec{X: 0.3, Y: -1, Z: 2}
	load := tri.Load(triEdges, e)
	for i := 0; i < 3; i++ {
		var qb float64
		for k, p := range rule.Points {
			qb += rule.Weights[k] * tri.Area * r3.Dot(tri.Basis(triEdges[i], [3]float64{p[0], p[1], p[2]}), e)
		}
		assert.InDelta(t, qb, load[i], 1e-12)
		for j := 0; j < 3; j++ {
			var q float64
			for k, p := range rule.Points {
				lp := [3]float64{p[0], p[1], p[2]}
				q += rule.Weights[k] * tri.Area * r3.Dot(tri.Basis(triEdges[i], lp), tri.Basis(triEdges[j], lp))
			}
			assert.InDelta(t, q, B[i][j], 1e-12)
		}
	}
}

func TestOrientTet(t *testing.T) {
	edges := OrientTet([4]int{10, 5, 7, 2})
	for i, e := range edges {
		g := [4]int{10, 5, 7, 2}
		assert.Less(t, g[e[0]], g[e[1]], "edge %d", i)
	}
	assert.Equal(t, 6, WhitneyTet.NDofs)
	assert.Equal(t, utils.Tri, WhitneyTri.Type)
}
