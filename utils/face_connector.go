package utils

import (
	"fmt"
	"sort"
)

// Local vertex numbering of the tetrahedron faces, edges, and the vertex
// opposite each face.
var (
	TetFaces = [4][3]int{
		{0, 1, 2}, // Face 0
		{0, 1, 3}, // Face 1
		{1, 2, 3}, // Face 2
		{0, 2, 3}, // Face 3
	}
	TetFaceOpposite = [4]int{3, 2, 0, 1}
	TetEdges        = [6][2]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
)

// FaceKey is the canonical (sorted) vertex triple of a triangular face.
type FaceKey [3]int

func NewFaceKey(a, b, c int) FaceKey {
	v := [3]int{a, b, c}
	if v[0] > v[1] {
		v[0], v[1] = v[1], v[0]
	}
	if v[1] > v[2] {
		v[1], v[2] = v[2], v[1]
	}
	if v[0] > v[1] {
		v[0], v[1] = v[1], v[0]
	}
	return FaceKey(v)
}

// EdgeKey is the canonical (sorted) vertex pair of an edge.
type EdgeKey [2]int

func NewEdgeKey(a, b int) EdgeKey {
	if a > b {
		a, b = b, a
	}
	return EdgeKey{a, b}
}

// FaceConnector holds element to element connectivity for a tetrahedral mesh
type FaceConnector struct {
	K    int      // Total elements
	EToE [][4]int // Element k, face f connects to element EToE[k][f] (k itself on the boundary)
	EToF [][4]int // Element k, face f connects to face EToF[k][f] of the neighbor

	// Unique faces in first-seen order
	Faces     []FaceKey
	FaceIndex map[FaceKey]int
	EToFace   [][4]int // Element k, face f is Faces[EToFace[k][f]]
}

// NewFaceConnector creates a face connector from element to vertex connectivity
func NewFaceConnector(EToV [][4]int) (*FaceConnector, error) {
	K := len(EToV)
	if K == 0 {
		return nil, fmt.Errorf("invalid dimensions: K=%d", K)
	}

	fc := &FaceConnector{
		K:         K,
		EToE:      make([][4]int, K),
		EToF:      make([][4]int, K),
		EToFace:   make([][4]int, K),
		FaceIndex: make(map[FaceKey]int, 2*K+K/2),
	}

	type faceSignature struct {
		elem, face int
		shared     int
	}
	owners := make([]faceSignature, 0, 2*K+K/2)

	for e := 0; e < K; e++ {
		for f := 0; f < 4; f++ {
			// Self-connection by default
			fc.EToE[e][f] = e
			fc.EToF[e][f] = f

			fv := TetFaces[f]
			key := NewFaceKey(EToV[e][fv[0]], EToV[e][fv[1]], EToV[e][fv[2]])
			if key[0] == key[1] || key[1] == key[2] {
				return nil, fmt.Errorf("element %d face %d has repeated vertices %v", e, f, key)
			}

			if idx, found := fc.FaceIndex[key]; found {
				existing := &owners[idx]
				if existing.shared > 0 {
					return nil, fmt.Errorf("face %v is shared by more than two elements", key)
				}
				existing.shared++
				fc.EToE[e][f] = existing.elem
				fc.EToF[e][f] = existing.face
				fc.EToE[existing.elem][existing.face] = e
				fc.EToF[existing.elem][existing.face] = f
				fc.EToFace[e][f] = idx
				continue
			}

			fc.FaceIndex[key] = len(fc.Faces)
			fc.EToFace[e][f] = len(fc.Faces)
			fc.Faces = append(fc.Faces, key)
			owners = append(owners, faceSignature{elem: e, face: f})
		}
	}

	return fc, nil
}

// IsBoundary reports whether face f of element k has no neighbor
func (fc *FaceConnector) IsBoundary(k, f int) bool {
	return fc.EToE[k][f] == k
}

// BoundaryFaces returns the (element, face) pairs on the mesh boundary in
// element order
func (fc *FaceConnector) BoundaryFaces() [][2]int {
	var out [][2]int
	for k := 0; k < fc.K; k++ {
		for f := 0; f < 4; f++ {
			if fc.IsBoundary(k, f) {
				out = append(out, [2]int{k, f})
			}
		}
	}
	return out
}

// Verify checks symmetry of the connectivity arrays
func (fc *FaceConnector) Verify() error {
	for k := 0; k < fc.K; k++ {
		for f := 0; f < 4; f++ {
			nk, nf := fc.EToE[k][f], fc.EToF[k][f]
			if nk < 0 || nk >= fc.K || nf < 0 || nf >= 4 {
				return fmt.Errorf("invalid neighbor (%d,%d) for element %d face %d", nk, nf, k, f)
			}
			if fc.EToE[nk][nf] != k || fc.EToF[nk][nf] != f {
				return fmt.Errorf("asymmetric connection: (%d,%d) -> (%d,%d) -> (%d,%d)",
					k, f, nk, nf, fc.EToE[nk][nf], fc.EToF[nk][nf])
			}
			if fc.EToFace[k][f] != fc.EToFace[nk][nf] {
				return fmt.Errorf("face index mismatch between (%d,%d) and (%d,%d)", k, f, nk, nf)
			}
		}
	}
	return nil
}

// UniqueEdges returns the sorted unique edges of the mesh and, for each
// element, the index of each of its six local edges
func UniqueEdges(EToV [][4]int) (edges []EdgeKey, EToEdge [][6]int) {
	index := make(map[EdgeKey]int, 7*len(EToV)/5+8)
	for _, tet := range EToV {
		for _, le := range TetEdges {
			key := NewEdgeKey(tet[le[0]], tet[le[1]])
			if _, ok := index[key]; !ok {
				index[key] = len(edges)
				edges = append(edges, key)
			}
		}
	}
	// Stable numbering independent of element order
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	for i, e := range edges {
		index[e] = i
	}
	EToEdge = make([][6]int, len(EToV))
	for k, tet := range EToV {
		for i, le := range TetEdges {
			EToEdge[k][i] = index[NewEdgeKey(tet[le[0]], tet[le[1]])]
		}
	}
	return edges, EToEdge
}
