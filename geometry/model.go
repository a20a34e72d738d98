package geometry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notargets/EMKernel/material"
	"github.com/notargets/EMKernel/utils"
	"gonum.org/v1/gonum/spatial/r2"
)

// Role labels what a region represents in the board model
type Role uint8

const (
	RoleSubstrate Role = iota
	RoleAir
	RoleTrace
	RoleGround
)

func (r Role) String() string {
	return [...]string{"substrate", "air", "trace", "ground"}[r]
}

// Shape distinguishes filled volumes from zero thickness sheets
type Shape uint8

const (
	Volume Shape = iota
	Sheet
)

func (s Shape) String() string {
	if s == Sheet {
		return "sheet"
	}
	return "volume"
}

// Region is a labeled box of the solid model. Material is a shared reference
// to either a *material.Dielectric or a *material.Conductor.
type Region struct {
	Name     string
	Role     Role
	Shape    Shape
	Box      utils.Box
	Normal   utils.Axis // Sheet normal, unused for volumes
	Material material.Material
}

// Conductor returns the region material when it is a conductor.
func (r *Region) Conductor() (*material.Conductor, bool) {
	c, ok := r.Material.(*material.Conductor)
	return c, ok
}

// Dielectric returns the region material when it is a dielectric.
func (r *Region) Dielectric() (*material.Dielectric, bool) {
	d, ok := r.Material.(*material.Dielectric)
	return d, ok
}

// Anchor is a named checkpoint of a path.
type Anchor struct {
	Name      string
	Point     r2.Vec
	Direction r2.Vec
	Width     float64
}

// Segment is one straight piece of a compiled path.
type Segment struct {
	Path, Seq  int
	Start, End r2.Vec
	Width      float64
	Min, Max   r2.Vec // Footprint rectangle
}

// PortFace is the rectangle on the model boundary where a modal port is
// attached, perpendicular to the path direction at its anchor.
type PortFace struct {
	Index   int
	Name    string
	Anchor  Anchor
	Box     utils.Box  // Flat along Normal
	Normal  utils.Axis // Axis of the face normal
	Outward float64    // +1 or -1: direction of the outward normal along Normal
	Width   float64
	Height  float64
	Mode    string
}

// SolidModel is the immutable output of Compile.
type SolidModel struct {
	Regions  []Region
	Ports    []PortFace
	Segments []Segment
	Board    utils.Box // Board footprint including margins, spanning the substrate
	Stackup  Stackup
	Margins  Margins

	anchors map[string]Anchor
	bounds  utils.Box
}

// Bounds returns the bounding box of every region and port face.
func (m *SolidModel) Bounds() utils.Box { return m.bounds }

// Anchor resolves a stored checkpoint.
func (m *SolidModel) Anchor(name string) (Anchor, error) {
	a, ok := m.anchors[name]
	if !ok {
		return Anchor{}, utils.NewGeometryError("anchor", "checkpoint %q is not defined", name)
	}
	return a, nil
}

// AnchorNames returns the checkpoint names in sorted order.
func (m *SolidModel) AnchorNames() []string {
	names := make([]string, 0, len(m.anchors))
	for n := range m.anchors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RegionsWith returns the indices of regions having role r.
func (m *SolidModel) RegionsWith(r Role) []int {
	var idx []int
	for i := range m.Regions {
		if m.Regions[i].Role == r {
			idx = append(idx, i)
		}
	}
	return idx
}

func (m *SolidModel) String() string {
	var sb strings.Builder
	sb.WriteString("=== Solid Model ===\n")
	sb.WriteString(fmt.Sprintf("  Bounds: %v\n", m.bounds))
	sb.WriteString(fmt.Sprintf("  Board:  %v\n", m.Board))
	for i, r := range m.Regions {
		sb.WriteString(fmt.Sprintf("  [%d] %-10s %-9s %-6s %v %s\n", i, r.Name, r.Role, r.Shape, r.Box,
			material.Describe(r.Material)))
	}
	for _, p := range m.Ports {
		sb.WriteString(fmt.Sprintf("  port %d (%s) %s normal %s%v: %v\n", p.Index, p.Name, p.Mode,
			signString(p.Outward), p.Normal, p.Box))
	}
	return sb.String()
}

func signString(s float64) string {
	if s < 0 {
		return "-"
	}
	return "+"
}
