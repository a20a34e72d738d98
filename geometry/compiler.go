// Package geometry compiles trace path commands, polygons, planes and port
// definitions into a bounded 3-D solid model of a planar board.
package geometry

import (
	"fmt"
	"math"

	"github.com/notargets/EMKernel/material"
	"github.com/notargets/EMKernel/utils"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Tolerance for coordinate comparisons, in meters.
const Tolerance = 1e-12

// Stackup describes the layer structure. The ground plane lies at z = 0,
// the substrate spans [0, SubstrateThickness] and traces sit on top of it.
type Stackup struct {
	SubstrateThickness float64
	Substrate          *material.Dielectric
	TraceThickness     float64
	Trace              *material.Conductor
	Ground             *material.Conductor // Defaults to Trace
	AirAbove           float64
	AirBelow           float64
	Air                *material.Dielectric // Defaults to vacuum
}

// Margins extend the board beyond the trace footprint: Left along -x, Right
// along +x, Bottom along -y and Top along +y.
type Margins struct {
	Left, Right, Bottom, Top float64
}

// Polygon is a rectilinear trace shape on the top layer.
type Polygon struct {
	Name     string
	Vertices []r2.Vec
}

// Plane is a conductor sheet covering the whole board at height Z.
type Plane struct {
	Name      string
	Z         float64
	Conductor *material.Conductor // Defaults to Stackup.Ground
}

// PortSpec attaches a modal port at a stored checkpoint.
type PortSpec struct {
	Index  int
	Anchor string
	Width  float64
	Height float64
	Mode   string
}

// Design is the complete compiler input. All lengths are in meters.
type Design struct {
	Stackup  Stackup
	Commands []Command
	Polygons []Polygon
	Planes   []Plane
	Ports    []PortSpec
	Margins  Margins
}

type pathState struct {
	active    bool
	path, seq int
	pos       r2.Vec
	dir       r2.Vec
	width     float64
	turned    bool
}

// Compile validates the design and produces the solid model. It fails with a
// *utils.GeometryError on degenerate or inconsistent input.
func Compile(d Design) (*SolidModel, error) {
	st, err := d.Stackup.withDefaults()
	if err != nil {
		return nil, err
	}
	if err := d.Margins.validate(); err != nil {
		return nil, err
	}

	m := &SolidModel{Stackup: st, Margins: d.Margins, anchors: make(map[string]Anchor)}
	if err := m.compilePaths(d.Commands); err != nil {
		return nil, err
	}
	if err := checkSegmentOverlap(m.Segments); err != nil {
		return nil, err
	}

	var footprints []utils.Box
	zTop := st.SubstrateThickness + st.TraceThickness
	for _, s := range m.Segments {
		footprints = append(footprints, utils.NewBox(
			r3.Vec{X: s.Min.X, Y: s.Min.Y, Z: st.SubstrateThickness},
			r3.Vec{X: s.Max.X, Y: s.Max.Y, Z: zTop}))
	}
	for _, p := range d.Polygons {
		rects, err := decomposeRectilinear(p)
		if err != nil {
			return nil, err
		}
		for _, r := range rects {
			footprints = append(footprints, utils.NewBox(
				r3.Vec{X: r[0].X, Y: r[0].Y, Z: st.SubstrateThickness},
				r3.Vec{X: r[1].X, Y: r[1].Y, Z: zTop}))
		}
	}
	if len(footprints) == 0 {
		return nil, utils.NewGeometryError("design", "no trace segments or polygons")
	}

	// Margins widen the board only, never the traces
	fp := footprints[0]
	for _, b := range footprints[1:] {
		fp = fp.Union(b)
	}
	m.Board = utils.Box{
		Min: r3.Vec{X: fp.Min.X - d.Margins.Left, Y: fp.Min.Y - d.Margins.Bottom, Z: 0},
		Max: r3.Vec{X: fp.Max.X + d.Margins.Right, Y: fp.Max.Y + d.Margins.Top, Z: st.SubstrateThickness},
	}

	m.addLayers(st)
	for i, b := range footprints {
		shape := Volume
		if st.TraceThickness == 0 {
			shape = Sheet
		}
		m.Regions = append(m.Regions, Region{
			Name: fmt.Sprintf("trace%d", i), Role: RoleTrace, Shape: shape, Box: b,
			Normal: utils.Z, Material: st.Trace,
		})
	}
	if err := m.addPlanes(d.Planes, st); err != nil {
		return nil, err
	}
	if err := m.validateRegions(); err != nil {
		return nil, err
	}

	m.bounds = m.Regions[0].Box
	for _, r := range m.Regions[1:] {
		m.bounds = m.bounds.Union(r.Box)
	}
	if err := m.addPorts(d.Ports); err != nil {
		return nil, err
	}
	for _, p := range m.Ports {
		m.bounds = m.bounds.Union(p.Box)
	}
	return m, nil
}

func (s Stackup) withDefaults() (Stackup, error) {
	switch {
	case !(s.SubstrateThickness > 0):
		return s, utils.NewGeometryError("stackup", "substrate thickness %g must be positive", s.SubstrateThickness)
	case s.TraceThickness < 0 || s.AirAbove < 0 || s.AirBelow < 0:
		return s, utils.NewGeometryError("stackup", "negative layer thickness")
	case s.Substrate == nil:
		return s, utils.NewGeometryError("stackup", "substrate material is not set")
	case s.Trace == nil:
		return s, utils.NewGeometryError("stackup", "trace material is not set")
	}
	if s.Ground == nil {
		s.Ground = s.Trace
	}
	if s.Air == nil {
		s.Air = material.Vacuum
	}
	return s, nil
}

func (mg Margins) validate() error {
	for _, v := range []float64{mg.Left, mg.Right, mg.Bottom, mg.Top} {
		if v < 0 || math.IsNaN(v) {
			return utils.NewGeometryError("margins", "negative margin %g", v)
		}
	}
	return nil
}

func (m *SolidModel) compilePaths(cmds []Command) error {
	var ps pathState
	paths := 0
	for i, c := range cmds {
		op := fmt.Sprintf("%s #%d", c.Kind, i)
		switch c.Kind {
		case CmdStart:
			dir, err := axisDirection(op, c.Direction)
			if err != nil {
				return err
			}
			if !(c.Width > 0) {
				return utils.NewGeometryError(op, "width %g must be positive", c.Width)
			}
			ps = pathState{active: true, path: paths, pos: c.At, dir: dir, width: c.Width}
			paths++

		case CmdFromAnchor:
			a, err := m.Anchor(c.Name)
			if err != nil {
				return utils.NewGeometryError(op, "checkpoint %q referenced before creation", c.Name)
			}
			ps = pathState{active: true, path: paths, pos: a.Point, dir: a.Direction, width: a.Width}
			paths++

		case CmdStraight:
			if !ps.active {
				return utils.NewGeometryError(op, "segment without a start point")
			}
			if !(c.Length > Tolerance) {
				return utils.NewGeometryError(op, "segment length %g is degenerate", c.Length)
			}
			start := ps.pos
			end := r2.Add(ps.pos, r2.Scale(c.Length, ps.dir))
			// After a turn the segment reaches back over the corner square
			from := start
			if ps.turned {
				from = r2.Sub(start, r2.Scale(ps.width/2, ps.dir))
			}
			lo, hi := footprint(from, end, ps.dir, ps.width)
			m.Segments = append(m.Segments, Segment{
				Path: ps.path, Seq: ps.seq, Start: start, End: end, Width: ps.width, Min: lo, Max: hi,
			})
			ps.seq++
			ps.pos = end
			ps.turned = false

		case CmdTurn:
			if !ps.active {
				return utils.NewGeometryError(op, "turn without a start point")
			}
			switch c.Angle {
			case 90:
				ps.dir = r2.Vec{X: -ps.dir.Y, Y: ps.dir.X}
			case -90:
				ps.dir = r2.Vec{X: ps.dir.Y, Y: -ps.dir.X}
			default:
				return utils.NewGeometryError(op, "turn angle %g is not ±90", c.Angle)
			}
			ps.turned = true

		case CmdStore:
			if !ps.active {
				return utils.NewGeometryError(op, "checkpoint %q without a start point", c.Name)
			}
			if c.Name == "" {
				return utils.NewGeometryError(op, "checkpoint without a name")
			}
			if _, dup := m.anchors[c.Name]; dup {
				return utils.NewGeometryError(op, "checkpoint %q stored twice", c.Name)
			}
			m.anchors[c.Name] = Anchor{Name: c.Name, Point: ps.pos, Direction: ps.dir, Width: ps.width}

		default:
			return utils.NewGeometryError(op, "unknown command")
		}
	}
	return nil
}

func axisDirection(op string, d r2.Vec) (r2.Vec, error) {
	n := r2.Norm(d)
	if !(n > 0) {
		return d, utils.NewGeometryError(op, "direction is zero")
	}
	d = r2.Scale(1/n, d)
	if math.Abs(d.X) > 1e-9 && math.Abs(d.Y) > 1e-9 {
		return d, utils.NewGeometryError(op, "direction (%g,%g) is not axis aligned", d.X, d.Y)
	}
	return r2.Vec{X: math.Round(d.X), Y: math.Round(d.Y)}, nil
}

// footprint returns the rectangle swept by a segment of the given width
func footprint(from, to, dir r2.Vec, width float64) (lo, hi r2.Vec) {
	perp := r2.Scale(width/2, r2.Vec{X: -dir.Y, Y: dir.X})
	a, b := r2.Add(from, perp), r2.Sub(to, perp)
	return r2.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)},
		r2.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)}
}

func rectsOverlap(aMin, aMax, bMin, bMax r2.Vec) bool {
	return aMin.X < bMax.X-Tolerance && bMin.X < aMax.X-Tolerance &&
		aMin.Y < bMax.Y-Tolerance && bMin.Y < aMax.Y-Tolerance
}

// checkSegmentOverlap rejects overlapping segments unless they are
// consecutive pieces of the same path
func checkSegmentOverlap(segs []Segment) error {
	for i := range segs {
		for j := i + 1; j < len(segs); j++ {
			a, b := segs[i], segs[j]
			if a.Path == b.Path && b.Seq == a.Seq+1 {
				continue
			}
			if rectsOverlap(a.Min, a.Max, b.Min, b.Max) {
				return utils.NewGeometryError("overlap",
					"segment %d of path %d overlaps segment %d of path %d", a.Seq, a.Path, b.Seq, b.Path)
			}
		}
	}
	return nil
}

func (m *SolidModel) addLayers(st Stackup) {
	b := m.Board
	m.Regions = append(m.Regions, Region{
		Name: "substrate", Role: RoleSubstrate, Shape: Volume, Material: st.Substrate,
		Box: utils.NewBox(r3.Vec{X: b.Min.X, Y: b.Min.Y, Z: 0}, r3.Vec{X: b.Max.X, Y: b.Max.Y, Z: st.SubstrateThickness}),
	})
	if st.AirAbove > 0 {
		m.Regions = append(m.Regions, Region{
			Name: "air", Role: RoleAir, Shape: Volume, Material: st.Air,
			Box: utils.NewBox(r3.Vec{X: b.Min.X, Y: b.Min.Y, Z: st.SubstrateThickness},
				r3.Vec{X: b.Max.X, Y: b.Max.Y, Z: st.SubstrateThickness + st.AirAbove}),
		})
	}
	if st.AirBelow > 0 {
		m.Regions = append(m.Regions, Region{
			Name: "air_below", Role: RoleAir, Shape: Volume, Material: st.Air,
			Box: utils.NewBox(r3.Vec{X: b.Min.X, Y: b.Min.Y, Z: -st.AirBelow}, r3.Vec{X: b.Max.X, Y: b.Max.Y, Z: 0}),
		})
	}
}

func (m *SolidModel) addPlanes(planes []Plane, st Stackup) error {
	zMin, zMax := -st.AirBelow, st.SubstrateThickness+st.AirAbove
	for i, p := range planes {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("plane%d", i)
		}
		if p.Z < zMin-Tolerance || p.Z > zMax+Tolerance {
			return utils.NewGeometryError("plane "+name, "z=%g outside the stackup [%g, %g]", p.Z, zMin, zMax)
		}
		cond := p.Conductor
		if cond == nil {
			cond = st.Ground
		}
		b := m.Board
		m.Regions = append(m.Regions, Region{
			Name: name, Role: RoleGround, Shape: Sheet, Normal: utils.Z, Material: cond,
			Box: utils.NewBox(r3.Vec{X: b.Min.X, Y: b.Min.Y, Z: p.Z}, r3.Vec{X: b.Max.X, Y: b.Max.Y, Z: p.Z}),
		})
	}
	return nil
}

func (m *SolidModel) validateRegions() error {
	for i := range m.Regions {
		r := &m.Regions[i]
		switch r.Shape {
		case Volume:
			if !(r.Box.Extent(utils.X) > Tolerance && r.Box.Extent(utils.Y) > Tolerance &&
				r.Box.Extent(utils.Z) > Tolerance) {
				return utils.NewGeometryError("region "+r.Name, "zero volume box %v", r.Box)
			}
		case Sheet:
			ax, flat := r.Box.FlatAxis(Tolerance)
			if !flat || ax != r.Normal || !(r.Box.Area() > Tolerance*Tolerance) {
				return utils.NewGeometryError("region "+r.Name, "degenerate sheet %v", r.Box)
			}
		}
		if r.Material == nil {
			return utils.NewGeometryError("region "+r.Name, "no material")
		}
	}
	// Dielectric volumes may only touch; conductors are carved out of them
	for i := range m.Regions {
		for j := i + 1; j < len(m.Regions); j++ {
			a, b := &m.Regions[i], &m.Regions[j]
			_, ad := a.Dielectric()
			_, bd := b.Dielectric()
			if ad && bd && a.Box.Overlaps(b.Box, Tolerance) {
				return utils.NewGeometryError("region "+a.Name, "dielectric volume overlaps %s", b.Name)
			}
		}
	}
	return nil
}

func (m *SolidModel) addPorts(specs []PortSpec) error {
	seen := make(map[int]bool)
	for _, ps := range specs {
		op := fmt.Sprintf("port %d", ps.Index)
		a, err := m.Anchor(ps.Anchor)
		if err != nil {
			return utils.NewGeometryError(op, "anchor %q referenced before creation", ps.Anchor)
		}
		if seen[ps.Index] {
			return utils.NewGeometryError(op, "port index defined twice")
		}
		seen[ps.Index] = true
		if !(ps.Width > 0) || !(ps.Height > 0) {
			return utils.NewGeometryError(op, "degenerate port %gx%g", ps.Width, ps.Height)
		}

		normal, across := utils.Y, utils.X
		if a.Direction.Y == 0 {
			normal, across = utils.X, utils.Y
		}
		center := r3.Vec{X: a.Point.X, Y: a.Point.Y, Z: 0}
		zMin := -m.Stackup.AirBelow
		lo := utils.WithComponent(center, across, utils.Component(center, across)-ps.Width/2)
		hi := utils.WithComponent(center, across, utils.Component(center, across)+ps.Width/2)
		lo.Z, hi.Z = zMin, zMin+ps.Height
		box := utils.NewBox(lo, hi)
		if !m.bounds.ContainsBox(box, Tolerance) {
			return utils.NewGeometryError(op, "port face %v exceeds the model %v", box, m.bounds)
		}

		outward := 1.0
		if utils.Component(center, normal) < utils.Component(m.Board.Center(), normal) {
			outward = -1
		}
		mode := ps.Mode
		if mode == "" {
			mode = "TEM"
		}
		m.Ports = append(m.Ports, PortFace{
			Index: ps.Index, Name: ps.Anchor, Anchor: a, Box: box, Normal: normal, Outward: outward,
			Width: ps.Width, Height: ps.Height, Mode: mode,
		})
	}
	return nil
}
