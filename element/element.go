// Package element defines the lowest order Whitney (Nédélec first kind)
// edge elements on tetrahedra and triangles and their closed form local
// matrices.
package element

import (
	"github.com/notargets/EMKernel/utils"
)

// Dimensionality represents the spatial dimension of an element
type Dimensionality uint8

const (
	D0 Dimensionality = iota // 0D elements (points)
	D1                       // 1D elements (lines, edges)
	D2                       // 2D elements (triangles, quadrilaterals)
	D3                       // 3D elements (tetrahedra, hexahedra, etc.)
)

// ElementProperties contains metadata describing an element type
type ElementProperties struct {
	Name       string             // Full descriptive name
	ShortName  string             // Abbreviated name
	Type       utils.GeometryType // Element shape
	Order      int                // Polynomial order of the basis
	NDofs      int                // Degrees of freedom per element (one per edge)
	NVerts     int                // Number of vertices
	NFaces     int                // Number of faces in each element
	NEdges     int                // Number of edges in each element
	Dimensions Dimensionality     // Spatial dimension
}

var (
	WhitneyTet = ElementProperties{
		Name: "Whitney Edge Tetrahedron Order 1", ShortName: "W1Tet", Type: utils.Tet, Order: 1,
		NDofs: 6, NVerts: 4, NFaces: 4, NEdges: 6, Dimensions: D3,
	}
	WhitneyTri = ElementProperties{
		Name: "Whitney Edge Triangle Order 1", ShortName: "W1Tri", Type: utils.Tri, Order: 1,
		NDofs: 3, NVerts: 3, NFaces: 1, NEdges: 3, Dimensions: D2,
	}
)

// TriEdges is the local vertex numbering of the triangle edges
var TriEdges = [3][2]int{{0, 1}, {0, 2}, {1, 2}}

// OrientTet returns the local edges of a tetrahedron ordered from the lower to
// the higher global vertex id, so that neighbors agree on the direction of
// every shared edge.
func OrientTet(global [4]int) (edges [6][2]int) {
	for i, le := range utils.TetEdges {
		a, b := le[0], le[1]
		if global[a] > global[b] {
			a, b = b, a
		}
		edges[i] = [2]int{a, b}
	}
	return
}

// OrientTri is OrientTet for a triangle.
func OrientTri(global [3]int) (edges [3][2]int) {
	for i, le := range TriEdges {
		a, b := le[0], le[1]
		if global[a] > global[b] {
			a, b = b, a
		}
		edges[i] = [2]int{a, b}
	}
	return
}
