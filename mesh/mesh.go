package mesh

import (
	"math"

	"github.com/notargets/EMKernel/element"
	"github.com/notargets/EMKernel/geometry"
	"github.com/notargets/EMKernel/material"
	"github.com/notargets/EMKernel/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// Outer boundary sides, in the order -x, +x, -y, +y, -z, +z
const (
	SideInterior = -1
	SideVoid     = 6 // Boundary of a region-free pocket, treated as an electric wall
)

// Face is one unique triangular face with its tags
type Face struct {
	Key   utils.FaceKey
	Elem  [2]int // Second element is -1 on the boundary
	Local [2]int // Local face number in each element

	Side      int // SideInterior, an outer side 0..5, or SideVoid
	Conductor int // Index of the conductor region covering the face, -1 for none
	Port      int // 1-based port index, 0 for none
}

func (f *Face) Boundary() bool { return f.Elem[1] < 0 }

// Mesh is an immutable conforming tetrahedral mesh of a solid model
type Mesh struct {
	Model    *geometry.SolidModel
	Vertices []r3.Vec
	EToV     [][4]int
	Region   []int // Dielectric region index per element
	Level    []int // Refinement depth per element

	Conn     *utils.FaceConnector
	Faces    []Face
	Edges    []utils.EdgeKey
	EToEdge  [][6]int
	Geometry []element.TetGeometry

	// Face indices per 1-based port index
	PortFaces map[int][]int

	opts Options
	tol  float64
}

// Generate meshes the solid model with a graded rectilinear grid whose cells
// are split into tetrahedra
func Generate(model *geometry.SolidModel, opts Options) (*Mesh, error) {
	if model == nil {
		return nil, utils.NewMeshError("generate", -1, "nil solid model")
	}
	if err := opts.validate(); err != nil {
		return nil, &utils.MeshError{Op: "generate", Element: -1, Msg: "invalid options", Err: err}
	}
	bounds := model.Bounds()
	tol := 1e-9 * r3.Norm(bounds.Size())
	if !(tol > 0) {
		return nil, utils.NewMeshError("generate", -1, "degenerate model bounds %v", bounds)
	}

	threshold := opts.SheetThreshold
	if threshold == 0 {
		threshold = 0.1 * smallestTarget(model, opts)
	}
	shapes := conductorShapes(model, threshold)

	var g structuredGrid
	for _, a := range []utils.Axis{utils.X, utils.Y, utils.Z} {
		lines := gridLines(model, shapes, a, tol)
		if len(lines) < 2 {
			return nil, utils.NewMeshError("generate", -1, "model is flat along %v", a)
		}
		target := make([]float64, len(lines)-1)
		for i := range target {
			target[i] = intervalSize(model, opts, a, lines[i], lines[i+1], tol)
		}
		g.coords[a] = subdivide(lines, target, opts.Grading)
	}
	nx, ny, nz := g.dims()
	if opts.MaxElements > 0 && 6*nx*ny*nz > opts.MaxElements {
		return nil, utils.NewMeshError("generate", -1, "%dx%dx%d grid exceeds the budget of %d elements",
			nx, ny, nz, opts.MaxElements)
	}

	verts, tets, regions := kuhnSplit(model, shapes, &g)
	if len(tets) == 0 {
		return nil, utils.NewMeshError("generate", -1, "no dielectric cells in the model")
	}
	return assemble(model, opts, tol, verts, tets, regions, make([]int, len(tets)))
}

func smallestTarget(model *geometry.SolidModel, opts Options) float64 {
	h := math.Inf(1)
	if opts.MaxCellSize > 0 {
		h = opts.MaxCellSize
	}
	if opts.Resolution > 0 {
		for i := range model.Regions {
			if d, ok := model.Regions[i].Dielectric(); ok {
				h = math.Min(h, opts.Resolution*wavelength(d, opts.Frequency))
			}
		}
	}
	return h
}

// assemble builds connectivity, geometry and tags for a tetrahedralization
// and validates the result
func assemble(model *geometry.SolidModel, opts Options, tol float64,
	verts []r3.Vec, EToV [][4]int, region, level []int) (*Mesh, error) {
	m := &Mesh{
		Model:    model,
		Vertices: verts,
		EToV:     EToV,
		Region:   region,
		Level:    level,
		opts:     opts,
		tol:      tol,
	}
	var err error
	if m.Conn, err = utils.NewFaceConnector(EToV); err != nil {
		return nil, &utils.MeshError{Op: "connect", Element: -1, Msg: "non-manifold tetrahedralization", Err: err}
	}
	m.Edges, m.EToEdge = utils.UniqueEdges(EToV)
	m.Geometry = make([]element.TetGeometry, len(EToV))
	for k, tet := range EToV {
		v := [4]r3.Vec{verts[tet[0]], verts[tet[1]], verts[tet[2]], verts[tet[3]]}
		if m.Geometry[k], err = element.NewTetGeometry(v); err != nil {
			return nil, &utils.MeshError{Op: "geometry", Element: k, Msg: "inverted or degenerate", Err: err}
		}
	}
	m.buildFaces()
	m.tagFaces()
	if err = m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mesh) buildFaces() {
	c := m.Conn
	m.Faces = make([]Face, len(c.Faces))
	for i, key := range c.Faces {
		m.Faces[i] = Face{Key: key, Elem: [2]int{-1, -1}, Side: SideInterior, Conductor: -1}
	}
	for k := 0; k < c.K; k++ {
		for f := 0; f < 4; f++ {
			fc := &m.Faces[c.EToFace[k][f]]
			if fc.Elem[0] < 0 {
				fc.Elem[0], fc.Local[0] = k, f
			} else {
				fc.Elem[1], fc.Local[1] = k, f
			}
		}
	}
}

func (m *Mesh) tagFaces() {
	bounds := m.Model.Bounds()
	shapes := conductorShapes(m.Model, m.sheetThreshold())
	m.PortFaces = make(map[int][]int)
	for i := range m.Faces {
		f := &m.Faces[i]
		centroid := m.FaceCentroid(i)
		if f.Boundary() {
			f.Side = SideVoid
			for s := 0; s < 6; s++ {
				a := utils.Axis(s / 2)
				plane := utils.Component(bounds.Min, a)
				if s%2 == 1 {
					plane = utils.Component(bounds.Max, a)
				}
				if m.faceInPlane(i, a, plane) {
					f.Side = s
					break
				}
			}
			for _, p := range m.Model.Ports {
				if m.faceInPlane(i, p.Normal, utils.Component(p.Box.Min, p.Normal)) &&
					p.Box.Contains(centroid, m.tol) {
					f.Port = p.Index
					m.PortFaces[p.Index] = append(m.PortFaces[p.Index], i)
					break
				}
			}
		}
		for _, cs := range shapes {
			if m.onConductor(i, cs, centroid) {
				f.Conductor = cs.region
				break
			}
		}
	}
}

func (m *Mesh) sheetThreshold() float64 {
	if m.opts.SheetThreshold != 0 {
		return m.opts.SheetThreshold
	}
	return 0.1 * smallestTarget(m.Model, m.opts)
}

func (m *Mesh) onConductor(face int, cs conductorShape, centroid r3.Vec) bool {
	if cs.sheet {
		return m.faceInPlane(face, cs.axis, utils.Component(cs.box.Min, cs.axis)) &&
			cs.box.Contains(centroid, m.tol)
	}
	f := &m.Faces[face]
	if !f.Boundary() {
		return false
	}
	g := &m.Geometry[f.Elem[0]]
	opp := utils.TetFaceOpposite[f.Local[0]]
	probe := r3.Add(centroid, r3.Scale(1e-3*g.Diameter(), g.FaceNormal(opp)))
	return cs.box.Contains(probe, 0)
}

func (m *Mesh) faceInPlane(face int, a utils.Axis, plane float64) bool {
	for _, v := range m.Faces[face].Key {
		if math.Abs(utils.Component(m.Vertices[v], a)-plane) > m.tol {
			return false
		}
	}
	return true
}

// FaceCentroid returns the centroid of a unique face
func (m *Mesh) FaceCentroid(face int) r3.Vec {
	k := m.Faces[face].Key
	s := r3.Add(r3.Add(m.Vertices[k[0]], m.Vertices[k[1]]), m.Vertices[k[2]])
	return r3.Scale(1./3., s)
}

// FaceTriangle returns the geometry of a unique face with its normal pointing
// out of the first adjacent element
func (m *Mesh) FaceTriangle(face int) (element.TriGeometry, error) {
	f := &m.Faces[face]
	k := f.Key
	t, err := element.NewTriGeometry([3]r3.Vec{m.Vertices[k[0]], m.Vertices[k[1]], m.Vertices[k[2]]})
	if err != nil {
		return t, err
	}
	out := m.Geometry[f.Elem[0]].FaceNormal(utils.TetFaceOpposite[f.Local[0]])
	if r3.Dot(out, t.Normal) < 0 {
		t.Normal = r3.Scale(-1, t.Normal)
	}
	return t, nil
}

func (m *Mesh) NumElements() int { return len(m.EToV) }

// Options returns the options the mesh was generated with
func (m *Mesh) Options() Options { return m.opts }

// Tolerance is the geometric tolerance used for tagging
func (m *Mesh) Tolerance() float64 { return m.tol }

// Material returns the dielectric filling element k
func (m *Mesh) Material(k int) *material.Dielectric {
	d, _ := m.Model.Regions[m.Region[k]].Dielectric()
	return d
}

// Size returns the longest edge of element k
func (m *Mesh) Size(k int) float64 { return m.Geometry[k].Diameter() }

// ElementEdges returns the global edge indices of element k together with
// their local orientation
func (m *Mesh) ElementEdges(k int) (global [6]int, local [6][2]int) {
	return m.EToEdge[k], element.OrientTet(m.EToV[k])
}
