package solver

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/notargets/EMKernel/geometry"
	"github.com/notargets/EMKernel/material"
	"github.com/notargets/EMKernel/mesh"
	"github.com/notargets/EMKernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mm = 1e-3

func lineMesh(t *testing.T, cell float64, edit func(*geometry.Design)) *mesh.Mesh {
	t.Helper()
	sub, err := material.NewDielectric("fr4", 4.5, 0.02, 10e9)
	require.NoError(t, err)
	cu, err := material.NewConductor("copper", 5.8e7, 0)
	require.NoError(t, err)
	d := geometry.MicrostripLine(geometry.MicrostripParams{
		Length: 10 * mm, Width: 1 * mm,
		SubstrateThickness: 0.5 * mm,
		Substrate:          sub, Trace: cu,
		SideMargin: 2 * mm, AirHeight: 2 * mm,
		PortWidth: 4 * mm, PortHeight: 1.5 * mm,
	})
	if edit != nil {
		edit(&d)
	}
	model, err := geometry.Compile(d)
	require.NoError(t, err)
	m, err := mesh.Generate(model, mesh.Options{MaxCellSize: cell, Grading: 2, MaxElements: 200000})
	require.NoError(t, err)
	return m
}

func TestBindPorts(t *testing.T) {
	m := lineMesh(t, 1*mm, nil)
	ports, err := BindPorts(m)
	require.NoError(t, err)
	require.Len(t, ports, 2)
	assert.Equal(t, 1, ports[0].Index)
	assert.Equal(t, TEM, ports[0].Mode)
	assert.Len(t, ports[1].Faces, 20)
	assert.Equal(t, utils.Y, ports[1].Normal)
}

func TestBindPorts_Errors(t *testing.T) {
	for name, edit := range map[string]func(*geometry.Design){
		"unsupported mode": func(d *geometry.Design) { d.Ports[0].Mode = "TE10" },
		"non sequential":   func(d *geometry.Design) { d.Ports[1].Index = 3 },
	} {
		t.Run(name, func(t *testing.T) {
			m := lineMesh(t, 1*mm, edit)
			_, err := BindPorts(m)
			var pe *utils.PortError
			require.ErrorAs(t, err, &pe)
			assert.True(t, errors.Is(err, utils.ErrPort))
		})
	}

	t.Run("duplicate index", func(t *testing.T) {
		m := lineMesh(t, 1*mm, nil)
		m.Model.Ports[1].Index = 1
		_, err := BindPorts(m)
		assert.True(t, errors.Is(err, utils.ErrPort))
	})

	t.Run("no signal conductor", func(t *testing.T) {
		m := lineMesh(t, 1*mm, nil)
		for _, r := range m.Model.RegionsWith(geometry.RoleTrace) {
			m.Model.Regions[r].Role = geometry.RoleGround
		}
		_, err := BindPorts(m)
		var pe *utils.PortError
		require.ErrorAs(t, err, &pe)
		assert.Contains(t, pe.Msg, "signal")
	})

	t.Run("no ports", func(t *testing.T) {
		m := lineMesh(t, 1*mm, nil)
		m.Model.Ports = nil
		_, err := BindPorts(m)
		assert.True(t, errors.Is(err, utils.ErrPort))
	})
}

func TestPortMode(t *testing.T) {
	m := lineMesh(t, 0.5*mm, nil)
	ports, err := BindPorts(m)
	require.NoError(t, err)
	pm, err := solveMode(m, &ports[0])
	require.NoError(t, err)

	eps := pm.EpsEff(1e9)
	assert.Greater(t, real(eps), 1.0)
	assert.Less(t, real(eps), 4.5)
	assert.Less(t, imag(eps), 0.0, "lossy substrate")

	var norm float64
	for i, e := range pm.Field {
		norm += pm.tris[i].Area * (e.X*e.X + e.Y*e.Y + e.Z*e.Z)
		assert.InDelta(t, 0, e.Y, 1e-9, "field lies in the port plane")
	}
	assert.InDelta(t, 1, norm, 1e-9)

	beta := pm.Beta(1e9)
	assert.InDelta(t, material.Wavenumber(1e9)*cmplx.Abs(cmplx.Sqrt(eps)), cmplx.Abs(beta), 1e-9)
	z := pm.Impedance(1e9)
	assert.Greater(t, real(z), 5.0)
	assert.Less(t, real(z), 200.0)
}

func TestSolve_Errors(t *testing.T) {
	m := lineMesh(t, 1*mm, nil)
	ports, err := BindPorts(m)
	require.NoError(t, err)
	p, err := NewProblem(m, ports, DefaultOptions(), nil)
	require.NoError(t, err)

	for _, f := range []float64{0, -1e9} {
		_, err = p.Solve(context.Background(), f)
		var se *utils.SolveError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, f, se.Frequency)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Solve(ctx, 1e9)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewProblem(m, nil, DefaultOptions(), nil)
	assert.True(t, errors.Is(err, utils.ErrPort))
	_, err = NewProblem(m, ports, Options{Method: "qr"}, nil)
	assert.Error(t, err)
}

func TestNewProblem_ElectricWalls(t *testing.T) {
	m := lineMesh(t, 1*mm, nil)
	ports, err := BindPorts(m)
	require.NoError(t, err)
	abc, err := NewProblem(m, ports, DefaultOptions(), nil)
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.OuterBoundary = ElectricWall
	pec, err := NewProblem(m, ports, opts, nil)
	require.NoError(t, err)
	assert.Less(t, pec.Unknowns(), abc.Unknowns())
	assert.Less(t, abc.Unknowns(), len(m.Edges)+1)
}

// The absorbing condition sits on the outer faces, so its distance from the
// board is the air height of the design
func TestNewProblem_AbsorbingFacesFollowAirHeight(t *testing.T) {
	for _, air := range []float64{2 * mm, 4 * mm} {
		m := lineMesh(t, 1*mm, func(d *geometry.Design) { d.Stackup.AirAbove = air })
		ports, err := BindPorts(m)
		require.NoError(t, err)
		p, err := NewProblem(m, ports, DefaultOptions(), nil)
		require.NoError(t, err)
		top := math.Inf(-1)
		for _, term := range p.terms {
			if term.kind != absorbingFace {
				continue
			}
			tri, err := m.FaceTriangle(term.face)
			require.NoError(t, err)
			top = math.Max(top, tri.Centroid().Z)
		}
		assert.InDelta(t, 0.5*mm+air, top, 1e-9, "air %g", air)
	}
}

func TestSolve_ReciprocalAndPassive(t *testing.T) {
	if testing.Short() {
		t.Skip("full solve")
	}
	m := lineMesh(t, 0.5*mm, nil)
	ports, err := BindPorts(m)
	require.NoError(t, err)
	p, err := NewProblem(m, ports, DefaultOptions(), nil)
	require.NoError(t, err)

	sol, err := p.Solve(context.Background(), 5e9)
	require.NoError(t, err)
	require.Len(t, sol.S, 2)
	require.Len(t, sol.Fields, 2)
	assert.Len(t, sol.Fields[0], len(m.Edges))
	assert.Equal(t, p.Unknowns(), sol.Unknowns)

	scale := cmplx.Abs(sol.S[1][0])
	assert.Greater(t, scale, 0.1, "the line transmits")
	assert.Less(t, Reciprocity(sol.S), 1e-6*scale+1e-12)
	// The line is the same seen from either end
	assert.InDelta(t, cmplx.Abs(sol.S[0][0]), cmplx.Abs(sol.S[1][1]), 0.02)

	sigma, err := Passivity(sol.S)
	require.NoError(t, err)
	assert.Less(t, sigma, 1.05)

	// Same system, same answer
	again, err := p.Solve(context.Background(), 5e9)
	require.NoError(t, err)
	assert.Equal(t, sol.S, again.S)
}

func TestPortMode_ImpedanceRisesWithRefinement(t *testing.T) {
	if testing.Short() {
		t.Skip("fine mesh")
	}
	z := func(cell float64) float64 {
		m := lineMesh(t, cell, nil)
		ports, err := BindPorts(m)
		require.NoError(t, err)
		pm, err := solveMode(m, &ports[0])
		require.NoError(t, err)
		return real(pm.Impedance(1e9))
	}
	coarse, fine := z(1*mm), z(0.25*mm)
	assert.Greater(t, fine, coarse)
}

func TestGradient_Galerkin(t *testing.T) {
	m := lineMesh(t, 1*mm, nil)
	ports, err := BindPorts(m)
	require.NoError(t, err)
	p, err := NewProblem(m, ports, Options{Method: Iterative}, nil)
	require.NoError(t, err)
	assert.Equal(t, Iterative, p.Method())
	g := p.grad
	require.NotNil(t, g)
	assert.Less(t, g.nodes, len(m.Vertices), "vertices on walls are left out")
	for d, e := range g.ends {
		key := m.Edges[p.edgeOf[d]]
		require.Less(t, key[0], key[1])
		assert.Less(t, e[0], g.nodes)
		assert.Less(t, e[1], g.nodes)
	}

	// GᵀAG φ matches Gᵀ(A(Gφ)) built from the pieces
	A, _ := p.assemble(1e8)
	phi := make([]complex128, g.nodes)
	for i := range phi {
		phi[i] = complex(float64(i%5)-2, float64(i%3))
	}
	e := make([]complex128, A.n)
	g.prolong(e, phi)
	Ae := make([]complex128, A.n)
	A.mulVec(Ae, e)
	want := make([]complex128, g.nodes)
	g.restrict(want, Ae)
	got := make([]complex128, g.nodes)
	g.galerkin(A).mulVec(got, phi)
	scale := norm2(want)
	require.Greater(t, scale, 0.0)
	for i := range want {
		assert.LessOrEqual(t, cmplx.Abs(want[i]-got[i]), 1e-9*scale, "node %d", i)
	}

	direct, err := NewProblem(m, ports, Options{Method: Direct}, nil)
	require.NoError(t, err)
	assert.Nil(t, direct.grad)
}

func TestSolve_LowFrequencyIterative(t *testing.T) {
	if testing.Short() {
		t.Skip("full solve")
	}
	m := lineMesh(t, 1*mm, nil)
	ports, err := BindPorts(m)
	require.NoError(t, err)
	direct, err := NewProblem(m, ports, Options{Method: Direct}, nil)
	require.NoError(t, err)
	iterative, err := NewProblem(m, ports, Options{Method: Iterative}, nil)
	require.NoError(t, err)

	for _, f := range []float64{1e8, 3e9} {
		want, err := direct.Solve(context.Background(), f)
		require.NoError(t, err)
		got, err := iterative.Solve(context.Background(), f)
		require.NoError(t, err, "f=%g", f)
		assert.Equal(t, Iterative, got.Method)
		for i := range want.S {
			for j := range want.S[i] {
				assert.Less(t, cmplx.Abs(want.S[i][j]-got.S[i][j]), 1e-4, "f=%g S%d%d", f, i+1, j+1)
			}
		}
	}
}
