package geometry

import (
	"errors"
	"testing"

	"github.com/notargets/EMKernel/material"
	"github.com/notargets/EMKernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

const mm = 1e-3

func testParams(t *testing.T) MicrostripParams {
	sub, err := material.NewDielectric("pcb", 4.5, 0.02, 10e9)
	require.NoError(t, err)
	cu, err := material.NewConductor("copper", 5.8e7, 0.2e-6)
	require.NoError(t, err)
	return MicrostripParams{
		Length: 100 * mm, Width: 3 * mm,
		SubstrateThickness: 1.55 * mm, TraceThickness: 0.05 * mm,
		Substrate: sub, Trace: cu,
		SideMargin: 75 * mm, AirHeight: 27.9 * mm,
		PortWidth: 30 * mm, PortHeight: 9.3 * mm,
	}
}

func TestCompile_Microstrip(t *testing.T) {
	p := testParams(t)
	m, err := Compile(MicrostripLine(p))
	require.NoError(t, err)

	require.Len(t, m.Segments, 1)
	assert.Len(t, m.RegionsWith(RoleSubstrate), 1)
	assert.Len(t, m.RegionsWith(RoleAir), 1)
	assert.Len(t, m.RegionsWith(RoleTrace), 1)
	assert.Len(t, m.RegionsWith(RoleGround), 1)

	b := m.Bounds()
	assert.InDelta(t, -1.5*mm-75*mm, b.Min.X, 1e-12)
	assert.InDelta(t, 1.5*mm+75*mm, b.Max.X, 1e-12)
	assert.InDelta(t, 0, b.Min.Y, 1e-12)
	assert.InDelta(t, 100*mm, b.Max.Y, 1e-12)
	assert.InDelta(t, 0, b.Min.Z, 1e-12)
	assert.InDelta(t, 1.55*mm+27.9*mm, b.Max.Z, 1e-12)

	// The materials are shared, not copied
	sub, ok := m.Regions[m.RegionsWith(RoleSubstrate)[0]].Dielectric()
	require.True(t, ok)
	assert.Same(t, p.Substrate, sub)

	require.Len(t, m.Ports, 2)
	p1, p2 := m.Ports[0], m.Ports[1]
	assert.Equal(t, utils.Y, p1.Normal)
	assert.Equal(t, -1.0, p1.Outward)
	assert.Equal(t, 1.0, p2.Outward)
	assert.InDelta(t, 30*mm, p1.Box.Extent(utils.X), 1e-12)
	assert.InDelta(t, 9.3*mm, p1.Box.Extent(utils.Z), 1e-12)
	assert.InDelta(t, 0, p1.Box.Extent(utils.Y), 1e-15)
	assert.InDelta(t, 100*mm, p2.Box.Min.Y, 1e-12)
	assert.Contains(t, m.String(), "substrate")
}

// TestCompile_BoundsContainRegions tests that the bounding box holds every
// region and grows monotonically with each margin
func TestCompile_BoundsContainRegions(t *testing.T) {
	p := testParams(t)
	d := MicrostripLine(p)
	base, err := Compile(d)
	require.NoError(t, err)
	for _, r := range base.Regions {
		assert.True(t, base.Bounds().ContainsBox(r.Box, 0), r.Name)
	}
	for _, pf := range base.Ports {
		assert.True(t, base.Bounds().ContainsBox(pf.Box, 0), pf.Name)
	}

	grow := []func(*Margins){
		func(m *Margins) { m.Left += 5 * mm },
		func(m *Margins) { m.Right += 5 * mm },
		func(m *Margins) { m.Top += 5 * mm },
		func(m *Margins) { m.Bottom += 5 * mm },
	}
	prev := base.Bounds()
	for i, g := range grow {
		g(&d.Margins)
		m, err := Compile(d)
		require.NoError(t, err, "step %d", i)
		assert.True(t, m.Bounds().ContainsBox(prev, 0), "step %d", i)
		assert.Greater(t, m.Bounds().Volume(), prev.Volume(), "step %d", i)
		prev = m.Bounds()
	}
}

func TestCompile_Errors(t *testing.T) {
	p := testParams(t)
	tests := []struct {
		name   string
		modify func(d *Design)
	}{
		{"zero length segment", func(d *Design) {
			d.Commands = NewPath().Start(r2.Vec{}, 3*mm, r2.Vec{Y: 1}).Store("p1").Straight(0).Store("p2").Commands()
		}},
		{"zero width", func(d *Design) {
			d.Commands = NewPath().Start(r2.Vec{}, 0, r2.Vec{Y: 1}).Store("p1").Straight(1).Store("p2").Commands()
		}},
		{"diagonal direction", func(d *Design) {
			d.Commands = NewPath().Start(r2.Vec{}, 1, r2.Vec{X: 1, Y: 1}).Straight(1).Commands()
		}},
		{"checkpoint before creation", func(d *Design) {
			d.Commands = append(NewPath().From("later").Straight(1).Commands(), d.Commands...)
		}},
		{"undefined port anchor", func(d *Design) { d.Ports[1].Anchor = "p3" }},
		{"duplicate checkpoint", func(d *Design) {
			d.Commands = NewPath().Start(r2.Vec{}, 1, r2.Vec{Y: 1}).Store("p1").Straight(1).Store("p1").Commands()
		}},
		{"overlapping paths", func(d *Design) {
			d.Commands = append(d.Commands, NewPath().Start(r2.Vec{X: 1 * mm, Y: 10 * mm}, 3*mm, r2.Vec{Y: 1}).Straight(5*mm).Commands()...)
		}},
		{"zero thickness substrate", func(d *Design) { d.Stackup.SubstrateThickness = 0 }},
		{"port taller than model", func(d *Design) { d.Ports[0].Height = 1 }},
		{"plane outside stackup", func(d *Design) { d.Planes[0].Z = -1 }},
		{"degenerate polygon", func(d *Design) {
			d.Polygons = []Polygon{{Name: "pad", Vertices: []r2.Vec{{}, {X: 1}, {X: 1}, {}}}}
		}},
		{"negative margin", func(d *Design) { d.Margins.Left = -1 }},
		{"turn angle", func(d *Design) {
			d.Commands = NewPath().Start(r2.Vec{}, 1, r2.Vec{Y: 1}).Turn(45).Commands()
		}},
		{"straight without start", func(d *Design) { d.Commands = NewPath().Straight(1).Commands() }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := MicrostripLine(p)
			tc.modify(&d)
			_, err := Compile(d)
			require.Error(t, err)
			assert.True(t, errors.Is(err, utils.ErrGeometry), err.Error())
			var ge *utils.GeometryError
			assert.True(t, errors.As(err, &ge))
		})
	}
}

func TestCompile_TurnsAndPolygons(t *testing.T) {
	p := testParams(t)
	d := MicrostripLine(p)
	d.Commands = NewPath().
		Start(r2.Vec{}, 2*mm, r2.Vec{Y: 1}).Store("p1").
		Straight(10 * mm).Turn(-90).Straight(10 * mm).Turn(90).Straight(10 * mm).Store("p2").
		Commands()
	d.Polygons = []Polygon{{Name: "L", Vertices: []r2.Vec{
		{X: -10 * mm, Y: 0}, {X: -6 * mm, Y: 0}, {X: -6 * mm, Y: 2 * mm},
		{X: -8 * mm, Y: 2 * mm}, {X: -8 * mm, Y: 4 * mm}, {X: -10 * mm, Y: 4 * mm},
	}}}
	m, err := Compile(d)
	require.NoError(t, err)
	require.Len(t, m.Segments, 3)

	// The segment after a turn covers the outer corner
	assert.InDelta(t, -1*mm, m.Segments[1].Min.X, 1e-12)
	assert.InDelta(t, 9*mm, m.Segments[1].Min.Y, 1e-12)

	a, err := m.Anchor("p2")
	require.NoError(t, err)
	assert.InDelta(t, 10*mm, a.Point.X, 1e-12)
	assert.InDelta(t, 20*mm, a.Point.Y, 1e-12)
	assert.Equal(t, r2.Vec{Y: 1}, a.Direction)
	assert.Equal(t, []string{"p1", "p2"}, m.AnchorNames())

	// Three segments plus the L polygon split into two slabs
	assert.Len(t, m.RegionsWith(RoleTrace), 5)
	_, err = m.Anchor("nowhere")
	assert.True(t, errors.Is(err, utils.ErrGeometry))
}

func TestDecomposeRectilinear(t *testing.T) {
	rects, err := decomposeRectilinear(Polygon{Vertices: []r2.Vec{
		{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 3}, {X: 0, Y: 3},
	}})
	require.NoError(t, err)
	var area float64
	for _, r := range rects {
		area += (r[1].X - r[0].X) * (r[1].Y - r[0].Y)
	}
	assert.InDelta(t, 5.0, area, 1e-12)

	_, err = decomposeRectilinear(Polygon{Vertices: []r2.Vec{{}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0.5}}})
	assert.Error(t, err)
}
