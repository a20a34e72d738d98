// Package solver assembles and solves the edge element Helmholtz system of a
// meshed board and extracts the port scattering matrix.
package solver

import (
	"github.com/notargets/EMKernel/element"
	"github.com/notargets/EMKernel/material"
	"github.com/notargets/EMKernel/mesh"
	"github.com/notargets/EMKernel/utils"
	"go.uber.org/zap"
)

type faceKind uint8

const (
	absorbingFace faceKind = iota
	impedanceFace
	portFace
)

// boundaryTerm is a precomputed surface mass matrix with the data needed to
// scale it at any frequency
type boundaryTerm struct {
	kind      faceKind
	face      int
	elem      int // Element supplying εr and μr
	dofs      [3]int
	B         [3][3]float64
	load      [3]float64 // ∫N·e, port faces only
	conductor *material.Conductor
	sides     float64 // 2 for an impedance sheet inside the mesh
	port      int     // Position in Problem.Ports
}

// Problem holds everything about a mesh that does not depend on frequency.
// It is read only after construction and safe for concurrent solves.
type Problem struct {
	Mesh  *mesh.Mesh
	Ports []Port
	Modes []*PortMode

	opts   Options
	method Method // opts.Method with Auto resolved
	logger *zap.Logger

	dof      []int // Unknown index per mesh edge, -1 on electric walls
	edgeOf   []int // Mesh edge per unknown
	stiff    [][6][6]float64
	mass     [][6][6]float64
	scatter  [][6][6]int // Pattern position per local pair, -1 when eliminated
	terms    []boundaryTerm
	tscatter [][3][3]int
	pat      *pattern
	grad     *gradient // Iterative only
}

// NewProblem numbers the unknowns, precomputes element matrices and solves
// the port modes
func NewProblem(m *mesh.Mesh, ports []Port, opts Options, logger *zap.Logger) (*Problem, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		return nil, utils.NewPortError(0, "no ports bound to the mesh")
	}
	p := &Problem{Mesh: m, Ports: ports, opts: opts, logger: logger}

	edgeIndex := make(map[utils.EdgeKey]int, len(m.Edges))
	for i, e := range m.Edges {
		edgeIndex[e] = i
	}
	portOf := make(map[int]int)
	for i := range ports {
		for _, f := range ports[i].Faces {
			portOf[f] = i
		}
	}

	wall := make([]bool, len(m.Edges))
	for i := range m.Faces {
		f := &m.Faces[i]
		term := boundaryTerm{face: i, elem: f.Elem[0], sides: 1, port: -1}
		switch {
		case f.Conductor >= 0:
			c, _ := m.Model.Regions[f.Conductor].Conductor()
			if c.IsPEC() {
				markWall(wall, edgeIndex, f.Key)
				continue
			}
			term.kind, term.conductor = impedanceFace, c
			if !f.Boundary() {
				term.sides = 2
			}
		case !f.Boundary():
			continue
		case f.Side == mesh.SideVoid:
			markWall(wall, edgeIndex, f.Key)
			continue
		case f.Port > 0:
			term.kind, term.port = portFace, portOf[i]
		case opts.OuterBoundary == ElectricWall:
			markWall(wall, edgeIndex, f.Key)
			continue
		default:
			term.kind = absorbingFace
		}
		p.terms = append(p.terms, term)
	}

	p.dof = make([]int, len(m.Edges))
	for i := range m.Edges {
		p.dof[i] = -1
		if !wall[i] {
			p.dof[i] = len(p.edgeOf)
			p.edgeOf = append(p.edgeOf, i)
		}
	}
	if len(p.edgeOf) == 0 {
		return nil, utils.NewSolveError(0, "every edge lies on an electric wall, no unknowns")
	}

	if err := p.precompute(edgeIndex); err != nil {
		return nil, err
	}
	p.method = opts.resolve(len(p.edgeOf))
	if p.method == Iterative {
		p.grad = newGradient(p)
	}
	p.Modes = make([]*PortMode, len(ports))
	for i := range ports {
		if p.Modes[i], err = solveMode(m, &ports[i]); err != nil {
			return nil, err
		}
	}
	if err := p.portLoads(); err != nil {
		return nil, err
	}
	logger.Debug("problem ready",
		zap.Int("elements", m.NumElements()),
		zap.Int("unknowns", len(p.edgeOf)),
		zap.Int("nonzeros", p.pat.nnz()),
		zap.String("method", string(p.method)),
		zap.Int("boundary_terms", len(p.terms)))
	return p, nil
}

func markWall(wall []bool, edgeIndex map[utils.EdgeKey]int, k utils.FaceKey) {
	wall[edgeIndex[utils.NewEdgeKey(k[0], k[1])]] = true
	wall[edgeIndex[utils.NewEdgeKey(k[0], k[2])]] = true
	wall[edgeIndex[utils.NewEdgeKey(k[1], k[2])]] = true
}

// Unknowns returns the size of the linear system
func (p *Problem) Unknowns() int { return len(p.edgeOf) }

func (p *Problem) Options() Options { return p.opts }

// Method is the linear solver every Solve uses
func (p *Problem) Method() Method { return p.method }

func (p *Problem) precompute(edgeIndex map[utils.EdgeKey]int) error {
	m := p.Mesh
	K := m.NumElements()
	n := len(p.edgeOf)
	rows := make([]map[int]struct{}, n)
	for i := range rows {
		rows[i] = make(map[int]struct{}, 16)
	}
	p.stiff = make([][6][6]float64, K)
	p.mass = make([][6][6]float64, K)
	for k := 0; k < K; k++ {
		global, local := m.ElementEdges(k)
		p.stiff[k] = m.Geometry[k].CurlCurl(local)
		p.mass[k] = m.Geometry[k].Mass(local)
		for i := 0; i < 6; i++ {
			di := p.dof[global[i]]
			if di < 0 {
				continue
			}
			for j := 0; j < 6; j++ {
				if dj := p.dof[global[j]]; dj >= 0 {
					rows[di][dj] = struct{}{}
				}
			}
		}
	}
	p.pat = newPattern(n, rows)

	p.scatter = make([][6][6]int, K)
	for k := 0; k < K; k++ {
		global := m.EToEdge[k]
		for i := 0; i < 6; i++ {
			for j := 0; j < 6; j++ {
				p.scatter[k][i][j] = -1
				di, dj := p.dof[global[i]], p.dof[global[j]]
				if di >= 0 && dj >= 0 {
					p.scatter[k][i][j] = p.pat.find(di, dj)
				}
			}
		}
	}

	p.tscatter = make([][3][3]int, len(p.terms))
	for t := range p.terms {
		term := &p.terms[t]
		tri, err := m.FaceTriangle(term.face)
		if err != nil {
			return &utils.MeshError{Op: "boundary", Element: term.elem, Msg: "degenerate face", Err: err}
		}
		key := m.Faces[term.face].Key
		local := element.OrientTri(key)
		term.B = tri.Mass(local)
		for i, le := range element.TriEdges {
			term.dofs[i] = p.dof[edgeIndex[utils.NewEdgeKey(key[le[0]], key[le[1]])]]
		}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				p.tscatter[t][i][j] = -1
				if term.dofs[i] >= 0 && term.dofs[j] >= 0 {
					p.tscatter[t][i][j] = p.pat.find(term.dofs[i], term.dofs[j])
				}
			}
		}
	}
	return nil
}

// portLoads integrates the Whitney functions against each port mode
func (p *Problem) portLoads() error {
	m := p.Mesh
	for t := range p.terms {
		term := &p.terms[t]
		if term.kind != portFace {
			continue
		}
		port := &p.Ports[term.port]
		pm := p.Modes[term.port]
		tri := -1
		for i, f := range port.Faces {
			if f == term.face {
				tri = i
				break
			}
		}
		if tri < 0 {
			return utils.NewPortError(port.Index, "face %d is not part of the port", term.face)
		}
		geom, err := m.FaceTriangle(term.face)
		if err != nil {
			return &utils.PortError{Port: port.Index, Msg: "degenerate port face", Err: err}
		}
		term.load = geom.Load(element.OrientTri(m.Faces[term.face].Key), pm.Field[tri])
	}
	return nil
}
