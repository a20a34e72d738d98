package solver

import (
	"math"
	"sort"
	"strings"

	"github.com/notargets/EMKernel/geometry"
	"github.com/notargets/EMKernel/mesh"
	"github.com/notargets/EMKernel/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// ModeType is the modal field shape imposed on a port
type ModeType string

const (
	TEM      ModeType = "TEM"
	QuasiTEM ModeType = "quasi-TEM"
)

func parseMode(s string) (ModeType, bool) {
	switch strings.ToLower(strings.ReplaceAll(s, "_", "-")) {
	case "tem":
		return TEM, true
	case "quasi-tem", "qtem":
		return QuasiTEM, true
	}
	return "", false
}

// Port binds a set of boundary mesh faces to a port index and mode
type Port struct {
	Index  int // 1-based
	Name   string
	Mode   ModeType
	Width  float64
	Height float64
	Normal utils.Axis
	Faces  []int // Indices into mesh.Faces

	face *geometry.PortFace
}

// BindPorts attaches every port of the solid model to its mesh faces. Ports
// must be numbered 1..n, lie on the outer boundary and cover one connected
// patch that touches a signal and a ground conductor.
func BindPorts(m *mesh.Mesh) ([]Port, error) {
	model := m.Model
	if len(model.Ports) == 0 {
		return nil, utils.NewPortError(0, "the model defines no ports")
	}
	defs := make([]*geometry.PortFace, len(model.Ports))
	for i := range model.Ports {
		defs[i] = &model.Ports[i]
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Index < defs[j].Index })

	ports := make([]Port, len(defs))
	for i, d := range defs {
		switch {
		case i > 0 && d.Index == defs[i-1].Index:
			return nil, utils.NewPortError(d.Index, "index defined twice")
		case d.Index != i+1:
			return nil, utils.NewPortError(d.Index, "indices must run 1..%d", len(defs))
		}
		mode, ok := parseMode(d.Mode)
		if !ok {
			return nil, utils.NewPortError(d.Index, "unsupported mode %q", d.Mode)
		}
		faces := m.PortFaces[d.Index]
		if len(faces) == 0 {
			return nil, utils.NewPortError(d.Index, "no mesh faces in %v", d.Box)
		}
		for _, f := range faces {
			fc := &m.Faces[f]
			if !fc.Boundary() || fc.Side < 0 || fc.Side > 5 {
				return nil, utils.NewPortError(d.Index, "face %d is not on the outer boundary", f)
			}
		}
		if n := m.FacePatches(faces); n != 1 {
			return nil, utils.NewPortError(d.Index, "faces form %d disconnected patches", n)
		}
		ports[i] = Port{
			Index: d.Index, Name: d.Name, Mode: mode, Width: d.Width, Height: d.Height,
			Normal: d.Normal, Faces: append([]int(nil), faces...), face: d,
		}
		if _, err := ports[i].classifyVertices(m); err != nil {
			return nil, err
		}
	}
	return ports, nil
}

type vertexRole uint8

const (
	freeVertex vertexRole = iota
	signalVertex
	groundVertex
)

// classifyVertices assigns every port vertex a potential role: on the
// signal trace, on a ground conductor or on the port rim (both ground), or
// free
func (p *Port) classifyVertices(m *mesh.Mesh) (map[int]vertexRole, error) {
	model := m.Model
	tol := m.Tolerance()
	roles := make(map[int]vertexRole)
	var nSignal, nGround int
	for _, f := range p.Faces {
		for _, v := range m.Faces[f].Key {
			if _, seen := roles[v]; seen {
				continue
			}
			x := m.Vertices[v]
			role := freeVertex
			for _, r := range model.RegionsWith(geometry.RoleTrace) {
				if model.Regions[r].Box.Contains(x, tol) {
					role = signalVertex
				}
			}
			onRim := p.onRim(x, tol)
			if role == signalVertex && onRim {
				return nil, utils.NewPortError(p.Index, "signal conductor touches the port rim at %v", x)
			}
			if role == freeVertex {
				for _, r := range model.RegionsWith(geometry.RoleGround) {
					if model.Regions[r].Box.Contains(x, tol) {
						role = groundVertex
						nGround++
					}
				}
				if role == freeVertex && onRim {
					role = groundVertex
				}
			}
			if role == signalVertex {
				nSignal++
			}
			roles[v] = role
		}
	}
	switch {
	case nSignal == 0:
		return nil, utils.NewPortError(p.Index, "no signal conductor crosses the port face")
	case nGround == 0:
		return nil, utils.NewPortError(p.Index, "no ground conductor on the port face")
	}
	return roles, nil
}

func (p *Port) onRim(x r3.Vec, tol float64) bool {
	b := p.face.Box
	for _, a := range []utils.Axis{utils.X, utils.Y, utils.Z} {
		if a == p.Normal {
			continue
		}
		c := utils.Component(x, a)
		if math.Abs(c-utils.Component(b.Min, a)) <= tol || math.Abs(c-utils.Component(b.Max, a)) <= tol {
			return true
		}
	}
	return false
}
