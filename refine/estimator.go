package refine

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/notargets/EMKernel/element/quadrature"
	"github.com/notargets/EMKernel/material"
	"github.com/notargets/EMKernel/mesh"
	"github.com/notargets/EMKernel/solver"
	"github.com/notargets/EMKernel/utils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// Estimate holds per element error indicators and the relative global error
type Estimate struct {
	Indicators []float64
	Global     float64
}

// Estimator computes a posteriori error indicators from a solution
type Estimator interface {
	Estimate(m *mesh.Mesh, sol *solver.Solution) (Estimate, error)
}

// ResidualEstimator combines the volume residual h k0² |εr| ‖E‖ with the
// tangential jump of μr⁻¹ curl E and the normal jump of εr E across interior
// faces, summed over all port excitations.
type ResidualEstimator struct{}

// GradientEstimator only measures the tangential jump of μr⁻¹ curl E.
type GradientEstimator struct{}

func (ResidualEstimator) Estimate(m *mesh.Mesh, sol *solver.Solution) (Estimate, error) {
	return estimate(m, sol, true)
}

func (GradientEstimator) Estimate(m *mesh.Mesh, sol *solver.Solution) (Estimate, error) {
	return estimate(m, sol, false)
}

type elementField struct {
	local [6][2]int
	x     [6]complex128
	curl  r3.Vec // Real part
	curlI r3.Vec // Imaginary part
	eps   complex128
	muR   float64
}

func estimate(m *mesh.Mesh, sol *solver.Solution, residual bool) (Estimate, error) {
	K := m.NumElements()
	if sol == nil || len(sol.Fields) == 0 {
		return Estimate{}, fmt.Errorf("no solution fields to estimate from")
	}
	for j, f := range sol.Fields {
		if len(f) != len(m.Edges) {
			return Estimate{}, fmt.Errorf("excitation %d has %d edge values for %d mesh edges", j+1, len(f), len(m.Edges))
		}
	}
	rule, err := quadrature.TriRule(1)
	if err != nil {
		return Estimate{}, err
	}
	k0 := material.Wavenumber(sol.Frequency)
	eta2 := make([]float64, K)
	var energy float64

	fields := make([]elementField, K)
	for _, edgeValues := range sol.Fields {
		for k := 0; k < K; k++ {
			global, local := m.ElementEdges(k)
			ef := &fields[k]
			ef.local = local
			for i, e := range global {
				ef.x[i] = edgeValues[e]
			}
			d := m.Material(k)
			ef.eps, ef.muR = d.Permittivity(sol.Frequency), d.MuR
			g := &m.Geometry[k]
			ef.curl, ef.curlI = g.CurlField(local, ef.x)

			e2 := massNorm(g.Mass(local), ef.x)
			c2 := (r3.Dot(ef.curl, ef.curl) + r3.Dot(ef.curlI, ef.curlI)) * g.Volume
			energy += c2/ef.muR + k0*k0*cmplx.Abs(ef.eps)*e2
			if residual {
				h := g.Diameter()
				a := cmplx.Abs(ef.eps)
				eta2[k] += h * h * k0 * k0 * k0 * k0 * a * a * e2
			}
		}

		for fi := range m.Faces {
			f := &m.Faces[fi]
			if f.Boundary() || f.Conductor >= 0 {
				continue
			}
			a, b := f.Elem[0], f.Elem[1]
			ga := &m.Geometry[a]
			n := ga.FaceNormal(utils.TetFaceOpposite[f.Local[0]])
			area := ga.FaceArea(utils.TetFaceOpposite[f.Local[0]])
			hF := faceDiameter(m, f.Key)

			fa, fb := &fields[a], &fields[b]
			jr := r3.Cross(n, r3.Sub(r3.Scale(1/fa.muR, fa.curl), r3.Scale(1/fb.muR, fb.curl)))
			ji := r3.Cross(n, r3.Sub(r3.Scale(1/fa.muR, fa.curlI), r3.Scale(1/fb.muR, fb.curlI)))
			term := hF * area * (r3.Dot(jr, jr) + r3.Dot(ji, ji))

			if residual {
				var jump float64
				gb := &m.Geometry[b]
				for q, w := range rule.Weights {
					l := rule.Points[q]
					p := r3.Add(r3.Scale(l[0], m.Vertices[f.Key[0]]),
						r3.Add(r3.Scale(l[1], m.Vertices[f.Key[1]]), r3.Scale(l[2], m.Vertices[f.Key[2]])))
					ea, eai := ga.Field(fa.local, fa.x, ga.Barycentric(p))
					eb, ebi := gb.Field(fb.local, fb.x, gb.Barycentric(p))
					da := fa.eps * complex(r3.Dot(n, ea), r3.Dot(n, eai))
					db := fb.eps * complex(r3.Dot(n, eb), r3.Dot(n, ebi))
					d := cmplx.Abs(da - db)
					jump += w * d * d
				}
				term += k0 * k0 * hF * area * jump
			}
			eta2[a] += 0.5 * term
			eta2[b] += 0.5 * term
		}
	}

	est := Estimate{Indicators: make([]float64, K)}
	for k, v := range eta2 {
		est.Indicators[k] = math.Sqrt(v)
	}
	if !(energy > 0) {
		return est, fmt.Errorf("vanishing field energy")
	}
	est.Global = math.Sqrt(floats.Sum(eta2) / energy)
	return est, nil
}

// massNorm returns x^H M x for a real symmetric M
func massNorm(M [6][6]float64, x [6]complex128) float64 {
	var s float64
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			s += M[i][j] * real(cmplx.Conj(x[i])*x[j])
		}
	}
	return s
}

func faceDiameter(m *mesh.Mesh, k utils.FaceKey) float64 {
	a, b, c := m.Vertices[k[0]], m.Vertices[k[1]], m.Vertices[k[2]]
	return math.Max(r3.Norm(r3.Sub(a, b)), math.Max(r3.Norm(r3.Sub(a, c)), r3.Norm(r3.Sub(b, c))))
}
