package mesh

import (
	"github.com/notargets/EMKernel/utils"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Validate checks the invariants every mesh handed to the solver satisfies
func (m *Mesh) Validate() error {
	if m.opts.MaxElements > 0 && len(m.EToV) > m.opts.MaxElements {
		return utils.NewMeshError("validate", -1, "%d elements exceed the budget of %d",
			len(m.EToV), m.opts.MaxElements)
	}
	if err := m.Conn.Verify(); err != nil {
		return &utils.MeshError{Op: "validate", Element: -1, Msg: "connectivity", Err: err}
	}
	for k := range m.EToV {
		g := &m.Geometry[k]
		if !(g.Volume > 0) {
			return utils.NewMeshError("validate", k, "non-positive volume %g", g.Volume)
		}
		r := m.Region[k]
		if r < 0 || r >= len(m.Model.Regions) {
			return utils.NewMeshError("validate", k, "invalid region %d", r)
		}
		if _, ok := m.Model.Regions[r].Dielectric(); !ok {
			return utils.NewMeshError("validate", k, "region %q is not a dielectric", m.Model.Regions[r].Name)
		}
		box := m.Model.Regions[r].Box
		for _, v := range m.EToV[k] {
			if !box.Contains(m.Vertices[v], m.tol) {
				return utils.NewMeshError("validate", k, "straddles the boundary of region %q",
					m.Model.Regions[r].Name)
			}
		}
	}
	for _, p := range m.Model.Ports {
		faces := m.PortFaces[p.Index]
		if len(faces) == 0 {
			return utils.NewMeshError("validate", -1, "port %d has no mesh faces", p.Index)
		}
		if n := m.FacePatches(faces); n != 1 {
			return utils.NewMeshError("validate", -1, "port %d faces form %d disconnected patches", p.Index, n)
		}
	}
	return nil
}

// FacePatches counts the edge connected patches of a face set
func (m *Mesh) FacePatches(faces []int) int {
	g := simple.NewUndirectedGraph()
	for _, f := range faces {
		g.AddNode(simple.Node(f))
	}
	byEdge := make(map[utils.EdgeKey]int)
	for _, f := range faces {
		k := m.Faces[f].Key
		for _, e := range [3]utils.EdgeKey{
			utils.NewEdgeKey(k[0], k[1]), utils.NewEdgeKey(k[0], k[2]), utils.NewEdgeKey(k[1], k[2]),
		} {
			if other, ok := byEdge[e]; ok {
				g.SetEdge(g.NewEdge(simple.Node(other), simple.Node(f)))
				continue
			}
			byEdge[e] = f
		}
	}
	return len(topo.ConnectedComponents(g))
}
