package solver

import (
	"math"
	"math/cmplx"

	"github.com/notargets/EMKernel/element"
	"github.com/notargets/EMKernel/material"
	"github.com/notargets/EMKernel/mesh"
	"github.com/notargets/EMKernel/utils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// PortMode is the quasi-TEM field of a port from two electrostatic solves
// on the port cross-section, one with the dielectrics and one in vacuum.
type PortMode struct {
	Port int

	tris   []element.TriGeometry
	eps    []*material.Dielectric // Filling of each port triangle
	energy []float64              // A|∇φ|² per triangle, dielectric solve
	c0     float64                // Σ A|∇φ0|², vacuum solve, per ε0
	Field  []r3.Vec               // Transverse field per triangle, ∫|e|² = 1
}

// ModeInfo is the frequency dependent part of a port mode
type ModeInfo struct {
	Port      int
	EpsEff    complex128
	Beta      complex128 // rad/m, negative imaginary part when lossy
	Impedance complex128 // ohm, from the port triangles of the 3-D mesh
}

// EpsEff returns C(f)/C0, complex for lossy dielectrics
func (pm *PortMode) EpsEff(freq float64) complex128 {
	var c complex128
	for t, a := range pm.energy {
		c += pm.eps[t].Permittivity(freq) * complex(a, 0)
	}
	return c / complex(pm.c0, 0)
}

// Beta returns the propagation constant k0 sqrt(εeff)
func (pm *PortMode) Beta(freq float64) complex128 {
	return complex(material.Wavenumber(freq), 0) * cmplx.Sqrt(pm.EpsEff(freq))
}

// Impedance estimates Z0 = η0 / sqrt(C C0) with capacitances per ε0. The
// capacitances come from linear potentials on the port faces of the volume
// mesh, which overestimate C while the substrate is only a cell or two thick:
// a nominal 50 ohm line reads near 30 ohm on the default coarse mesh and
// rises toward its nominal value as the port faces are refined. S parameters
// do not use it, they are normalized to the mode itself.
func (pm *PortMode) Impedance(freq float64) complex128 {
	return complex(material.Eta0, 0) / cmplx.Sqrt(pm.EpsEff(freq)*complex(pm.c0*pm.c0, 0))
}

func (pm *PortMode) Info(freq float64) ModeInfo {
	return ModeInfo{Port: pm.Port, EpsEff: pm.EpsEff(freq), Beta: pm.Beta(freq), Impedance: pm.Impedance(freq)}
}

// solveMode computes the port field from the potential with φ = 1 on the
// signal conductor and 0 on ground and on the rim
func solveMode(m *mesh.Mesh, p *Port) (*PortMode, error) {
	roles, err := p.classifyVertices(m)
	if err != nil {
		return nil, err
	}
	pm := &PortMode{Port: p.Index}
	nodes := make(map[int]int)
	var free []int
	for _, f := range p.Faces {
		tri, err := m.FaceTriangle(f)
		if err != nil {
			return nil, &utils.PortError{Port: p.Index, Msg: "degenerate port face", Err: err}
		}
		pm.tris = append(pm.tris, tri)
		pm.eps = append(pm.eps, m.Material(m.Faces[f].Elem[0]))
		for _, v := range m.Faces[f].Key {
			if _, ok := nodes[v]; !ok && roles[v] == freeVertex {
				nodes[v] = len(free)
				free = append(free, v)
			}
		}
	}
	if len(free) == 0 {
		return nil, utils.NewPortError(p.Index, "no free potential nodes, the port face is too coarse")
	}

	phi, err := pm.potential(m, p, roles, nodes, len(free), func(t int) float64 { return pm.eps[t].EpsR })
	if err != nil {
		return nil, err
	}
	phi0, err := pm.potential(m, p, roles, nodes, len(free), func(int) float64 { return 1 })
	if err != nil {
		return nil, err
	}

	pm.energy = make([]float64, len(pm.tris))
	pm.Field = make([]r3.Vec, len(pm.tris))
	var norm float64
	for t := range pm.tris {
		g := pm.gradient(m, p, t, phi)
		pm.energy[t] = pm.tris[t].Area * r3.Dot(g, g)
		norm += pm.energy[t]
		pm.Field[t] = r3.Scale(-1, g)
		g0 := pm.gradient(m, p, t, phi0)
		pm.c0 += pm.tris[t].Area * r3.Dot(g0, g0)
	}
	if !(norm > 0) || !(pm.c0 > 0) {
		return nil, utils.NewPortError(p.Index, "vanishing mode energy")
	}
	scale := 1 / math.Sqrt(norm)
	for t := range pm.Field {
		pm.Field[t] = r3.Scale(scale, pm.Field[t])
	}
	return pm, nil
}

// potential solves the P1 Laplace problem ∇·(ε∇φ) = 0 for the free nodes
// and returns φ for every port vertex
func (pm *PortMode) potential(m *mesh.Mesh, p *Port, roles map[int]vertexRole, nodes map[int]int,
	n int, eps func(t int) float64) (map[int]float64, error) {
	value := func(v int) float64 {
		if roles[v] == signalVertex {
			return 1
		}
		return 0
	}
	K := mat.NewSymDense(n, nil)
	b := mat.NewVecDense(n, nil)
	for t, f := range p.Faces {
		tri := &pm.tris[t]
		key := m.Faces[f].Key
		e := eps(t)
		for i := 0; i < 3; i++ {
			ii, fi := nodes[key[i]]
			if !fi {
				continue
			}
			for j := 0; j < 3; j++ {
				kij := e * tri.Area * r3.Dot(tri.Grad[i], tri.Grad[j])
				if jj, fj := nodes[key[j]]; fj {
					if jj >= ii {
						K.SetSym(ii, jj, K.At(ii, jj)+kij)
					}
					continue
				}
				b.SetVec(ii, b.AtVec(ii)-kij*value(key[j]))
			}
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(K); !ok {
		return nil, utils.NewPortError(p.Index, "electrostatic system is not positive definite")
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, b); err != nil {
		return nil, &utils.PortError{Port: p.Index, Msg: "electrostatic solve", Err: err}
	}
	phi := make(map[int]float64, len(roles))
	for v := range roles {
		if i, ok := nodes[v]; ok {
			phi[v] = x.AtVec(i)
		} else {
			phi[v] = value(v)
		}
	}
	return phi, nil
}

func (pm *PortMode) gradient(m *mesh.Mesh, p *Port, t int, phi map[int]float64) r3.Vec {
	key := m.Faces[p.Faces[t]].Key
	var g r3.Vec
	for i := 0; i < 3; i++ {
		g = r3.Add(g, r3.Scale(phi[key[i]], pm.tris[t].Grad[i]))
	}
	return g
}
