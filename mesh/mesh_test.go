package mesh

import (
	"errors"
	"math"
	"testing"

	"github.com/notargets/EMKernel/geometry"
	"github.com/notargets/EMKernel/material"
	"github.com/notargets/EMKernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mm = 1e-3

func smallLine(t *testing.T, traceThickness float64) *geometry.SolidModel {
	sub, err := material.NewDielectric("fr4", 4.5, 0.02, 10e9)
	require.NoError(t, err)
	cu, err := material.NewConductor("copper", 5.8e7, 0)
	require.NoError(t, err)
	model, err := geometry.Compile(geometry.MicrostripLine(geometry.MicrostripParams{
		Length: 10 * mm, Width: 1 * mm,
		SubstrateThickness: 0.5 * mm, TraceThickness: traceThickness,
		Substrate: sub, Trace: cu,
		SideMargin: 2 * mm, AirHeight: 2 * mm,
		PortWidth: 4 * mm, PortHeight: 1.5 * mm,
	}))
	require.NoError(t, err)
	return model
}

func coarseOptions() Options {
	return Options{MaxCellSize: 1 * mm, Grading: 2, MaxElements: 100000}
}

func TestGenerate_SheetTrace(t *testing.T) {
	model := smallLine(t, 0)
	m, err := Generate(model, coarseOptions())
	require.NoError(t, err)

	// 7 x 10 x 3 cells, six tetrahedra each
	assert.Equal(t, 7*10*3*6, m.NumElements())
	assert.InDelta(t, model.Bounds().Volume(), m.Stats().TotalVolume, 1e-15)

	trace := model.RegionsWith(geometry.RoleTrace)[0]
	ground := model.RegionsWith(geometry.RoleGround)[0]
	var traceFaces, groundFaces int
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Boundary() {
			assert.NotEqual(t, SideVoid, f.Side, "face %d", i)
		}
		switch f.Conductor {
		case trace:
			traceFaces++
			assert.False(t, f.Boundary())
		case ground:
			groundFaces++
			assert.Equal(t, 4, f.Side)
		}
	}
	assert.Equal(t, 2*10, traceFaces)
	assert.Equal(t, 2*7*10, groundFaces)

	require.Len(t, m.PortFaces, 2)
	for _, p := range []int{1, 2} {
		assert.Len(t, m.PortFaces[p], 2*5*2, "port %d", p)
		for _, f := range m.PortFaces[p] {
			assert.True(t, m.Faces[f].Boundary())
		}
	}
	assert.Equal(t, 2, m.Faces[m.PortFaces[1][0]].Side)
	assert.Equal(t, 3, m.Faces[m.PortFaces[2][0]].Side)
	assert.Contains(t, m.String(), "port 2: 20 faces")
}

func TestGenerate_ThinTraceBecomesSheet(t *testing.T) {
	model := smallLine(t, 0.01*mm)
	m, err := Generate(model, coarseOptions())
	require.NoError(t, err)
	assert.Equal(t, 7*10*3*6, m.NumElements())

	trace := model.RegionsWith(geometry.RoleTrace)[0]
	var n int
	for i := range m.Faces {
		if m.Faces[i].Conductor == trace {
			n++
		}
	}
	assert.Equal(t, 20, n)
}

func TestGenerate_VolumeTraceIsCarved(t *testing.T) {
	model := smallLine(t, 0.5*mm)
	opts := coarseOptions()
	opts.SheetThreshold = 1e-6
	m, err := Generate(model, opts)
	require.NoError(t, err)

	trace := model.RegionsWith(geometry.RoleTrace)[0]
	for k := range m.EToV {
		c := m.Geometry[k].Centroid()
		assert.False(t, model.Regions[trace].Box.Contains(c, -1e-9), "element %d inside the trace", k)
	}
	var n int
	for i := range m.Faces {
		if m.Faces[i].Conductor == trace {
			n++
			assert.True(t, m.Faces[i].Boundary())
		}
	}
	// Top, bottom and both sides; the ends lie on the port planes
	assert.Equal(t, 2*10*4, n)
	for _, p := range []int{1, 2} {
		assert.NotEmpty(t, m.PortFaces[p])
		assert.Equal(t, 1, m.FacePatches(m.PortFaces[p]))
	}
}

func TestGenerate_Errors(t *testing.T) {
	model := smallLine(t, 0)

	_, err := Generate(model, Options{})
	assert.True(t, errors.Is(err, utils.ErrMesh))

	opts := coarseOptions()
	opts.MaxElements = 100
	_, err = Generate(model, opts)
	var me *utils.MeshError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "generate", me.Op)

	_, err = Generate(nil, coarseOptions())
	assert.True(t, errors.Is(err, utils.ErrMesh))
}

func TestGenerate_WavelengthSizing(t *testing.T) {
	model := smallLine(t, 0)
	opts := Options{Resolution: 0.1, Frequency: 30e9, Grading: 2}
	m, err := Generate(model, opts)
	require.NoError(t, err)

	// Cells are at most a tenth of the wavelength of the densest region they touch
	lambda := material.C0 / 30e9
	s := m.Stats()
	assert.LessOrEqual(t, s.MaxSize, 0.1*lambda*math.Sqrt(3)*(1+1e-9))
}

func TestSubdivide_Grading(t *testing.T) {
	coords := subdivide([]float64{0, 1, 1.01}, []float64{1, 0.01}, 2)
	for i := 1; i+1 < len(coords); i++ {
		a, b := coords[i]-coords[i-1], coords[i+1]-coords[i]
		assert.LessOrEqual(t, a/b, 2*(1+1e-6))
		assert.LessOrEqual(t, b/a, 2*(1+1e-6))
	}
	assert.Equal(t, 0.0, coords[0])
	assert.Equal(t, 1.01, coords[len(coords)-1])
	assert.Contains(t, coords, 1.0)
}

func TestRefine_Conforming(t *testing.T) {
	model := smallLine(t, 0)
	m, err := Generate(model, coarseOptions())
	require.NoError(t, err)
	K, NV := m.NumElements(), len(m.Vertices)

	marked := make([]bool, K)
	marked[0], marked[K/2] = true, true
	r, err := m.Refine(marked, 2)
	require.NoError(t, err)

	// The input mesh is untouched
	assert.Equal(t, K, m.NumElements())
	assert.Len(t, m.Vertices, NV)

	assert.Greater(t, r.NumElements(), K)
	assert.InDelta(t, m.Stats().TotalVolume, r.Stats().TotalVolume, 1e-15)
	assert.Greater(t, r.Stats().MaxLevel, 0)
	assert.LessOrEqual(t, r.Stats().MinSize, 0.5*m.Size(0)*(1+1e-9))

	// A hanging vertex would leave unmatched interior faces on the boundary
	for i := range r.Faces {
		if r.Faces[i].Boundary() {
			assert.NotEqual(t, SideVoid, r.Faces[i].Side, "face %d", i)
		}
	}
	require.NoError(t, r.Validate())
	assert.GreaterOrEqual(t, len(r.PortFaces[1]), len(m.PortFaces[1]))

	trace := model.RegionsWith(geometry.RoleTrace)[0]
	var area, refinedArea float64
	for i := range m.Faces {
		if m.Faces[i].Conductor == trace {
			tri, err := m.FaceTriangle(i)
			require.NoError(t, err)
			area += tri.Area
		}
	}
	for i := range r.Faces {
		if r.Faces[i].Conductor == trace {
			tri, err := r.FaceTriangle(i)
			require.NoError(t, err)
			refinedArea += tri.Area
		}
	}
	assert.InDelta(t, area, refinedArea, 1e-15)
}

func TestRefine_GrowthClosure(t *testing.T) {
	model := smallLine(t, 0)
	m, err := Generate(model, coarseOptions())
	require.NoError(t, err)

	marked := make([]bool, m.NumElements())
	marked[0] = true
	count := func(target []float64) (n int) {
		for _, v := range target {
			if v > 0 {
				n++
			}
		}
		return
	}
	assert.Equal(t, 1, count(m.closure(marked, 1e9)))
	tight := count(m.closure(marked, 1))
	assert.Greater(t, tight, 1)

	_, err = m.Refine(marked[:3], 2)
	assert.True(t, errors.Is(err, utils.ErrMesh))
	_, err = m.Refine(marked, 0.5)
	assert.True(t, errors.Is(err, utils.ErrMesh))
}

func TestRefine_Budget(t *testing.T) {
	model := smallLine(t, 0)
	opts := coarseOptions()
	m, err := Generate(model, opts)
	require.NoError(t, err)
	m.opts.MaxElements = m.NumElements() + 1

	marked := make([]bool, m.NumElements())
	for i := range marked {
		marked[i] = true
	}
	_, err = m.Refine(marked, 2)
	assert.True(t, errors.Is(err, utils.ErrMesh))
}

func TestFaceComponents(t *testing.T) {
	model := smallLine(t, 0)
	m, err := Generate(model, coarseOptions())
	require.NoError(t, err)
	faces := append(append([]int(nil), m.PortFaces[1]...), m.PortFaces[2]...)
	assert.Equal(t, 2, m.FacePatches(faces))
	assert.Equal(t, 1, m.FacePatches(m.PortFaces[1]))
}
