package mesh

import (
	"math"

	"github.com/notargets/EMKernel/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// Refine returns a new mesh in which every marked element, and every face
// neighbour that would otherwise grow faster than growthRate, has been
// bisected until its longest edge is at most half its original length.
// Every tetrahedron sharing a bisected edge is split with it, so the result
// stays conforming. The receiver is not modified.
func (m *Mesh) Refine(marked []bool, growthRate float64) (*Mesh, error) {
	K := len(m.EToV)
	if len(marked) != K {
		return nil, utils.NewMeshError("refine", -1, "%d marks for %d elements", len(marked), K)
	}
	if !(growthRate >= 1) {
		return nil, utils.NewMeshError("refine", -1, "growth rate %g must be at least 1", growthRate)
	}
	target := m.closure(marked, growthRate)

	b := newBisector(m, target)
	if err := b.run(m.opts.MaxElements); err != nil {
		return nil, err
	}
	verts, EToV, region, level := b.result()
	return assemble(m.Model, m.opts, m.tol, verts, EToV, region, level)
}

// closure returns the target size per element, zero when the element is not
// refined. Unmarked neighbours larger than growthRate times the target of a
// refined element are refined as well, until no such neighbour remains.
func (m *Mesh) closure(marked []bool, growthRate float64) []float64 {
	K := len(m.EToV)
	target := make([]float64, K)
	queue := make([]int, 0, K)
	for k, mk := range marked {
		if mk {
			target[k] = 0.5 * m.Size(k)
			queue = append(queue, k)
		}
	}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		for f := 0; f < 4; f++ {
			n := m.Conn.EToE[k][f]
			if n == k || target[n] > 0 {
				continue
			}
			if m.Size(n) > growthRate*target[k] {
				target[n] = 0.5 * m.Size(n)
				queue = append(queue, n)
			}
		}
	}
	return target
}

type bisectTet struct {
	v      [4]int
	region int
	level  int
	target float64
	active bool
}

type bisector struct {
	verts    []r3.Vec
	tets     []bisectTet
	edgeTets map[utils.EdgeKey][]int
	midpoint map[utils.EdgeKey]int
	active   int
}

func newBisector(m *Mesh, target []float64) *bisector {
	b := &bisector{
		verts:    append([]r3.Vec(nil), m.Vertices...),
		tets:     make([]bisectTet, 0, 2*len(m.EToV)),
		edgeTets: make(map[utils.EdgeKey][]int, len(m.Edges)),
		midpoint: make(map[utils.EdgeKey]int),
	}
	for k, tet := range m.EToV {
		b.add(bisectTet{v: tet, region: m.Region[k], level: m.Level[k], target: target[k]})
	}
	return b
}

func (b *bisector) add(t bisectTet) int {
	id := len(b.tets)
	t.active = true
	b.tets = append(b.tets, t)
	for _, le := range utils.TetEdges {
		e := utils.NewEdgeKey(t.v[le[0]], t.v[le[1]])
		b.edgeTets[e] = append(b.edgeTets[e], id)
	}
	b.active++
	return id
}

func (b *bisector) remove(id int) {
	t := &b.tets[id]
	t.active = false
	for _, le := range utils.TetEdges {
		e := utils.NewEdgeKey(t.v[le[0]], t.v[le[1]])
		list := b.edgeTets[e]
		for i, o := range list {
			if o == id {
				list[i] = list[len(list)-1]
				list = list[:len(list)-1]
				break
			}
		}
		if len(list) == 0 {
			delete(b.edgeTets, e)
		} else {
			b.edgeTets[e] = list
		}
	}
	b.active--
}

// longestEdge breaks ties towards the smallest edge key so that neighbours
// sharing a face agree on the split
func (b *bisector) longestEdge(id int) (utils.EdgeKey, float64) {
	t := &b.tets[id]
	var best utils.EdgeKey
	bestLen := -1.0
	for _, le := range utils.TetEdges {
		e := utils.NewEdgeKey(t.v[le[0]], t.v[le[1]])
		l := r3.Norm(r3.Sub(b.verts[e[0]], b.verts[e[1]]))
		switch {
		case l > bestLen*(1+1e-12):
		case l >= bestLen*(1-1e-12) && lessEdge(e, best):
		default:
			continue
		}
		best, bestLen = e, math.Max(l, bestLen)
	}
	return best, bestLen
}

func lessEdge(a, b utils.EdgeKey) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	return a[1] < b[1]
}

func (b *bisector) run(maxElements int) error {
	queue := make([]int, 0, len(b.tets))
	for id := range b.tets {
		if b.tets[id].target > 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		t := b.tets[id]
		if !t.active {
			continue
		}
		e, l := b.longestEdge(id)
		if l <= t.target*(1+1e-9) {
			continue
		}
		for _, child := range b.split(e) {
			if b.tets[child].target > 0 {
				queue = append(queue, child)
			}
		}
		if maxElements > 0 && b.active > maxElements {
			return utils.NewMeshError("refine", -1, "refinement exceeds the budget of %d elements", maxElements)
		}
	}
	return nil
}

// split bisects edge e in every tetrahedron that contains it
func (b *bisector) split(e utils.EdgeKey) (children []int) {
	mid, ok := b.midpoint[e]
	if !ok {
		mid = len(b.verts)
		b.verts = append(b.verts, r3.Scale(0.5, r3.Add(b.verts[e[0]], b.verts[e[1]])))
		b.midpoint[e] = mid
	}
	owners := append([]int(nil), b.edgeTets[e]...)
	for _, id := range owners {
		t := b.tets[id]
		b.remove(id)
		ia, ib := -1, -1
		for i, v := range t.v {
			switch v {
			case e[0]:
				ia = i
			case e[1]:
				ib = i
			}
		}
		// Replacing one end of the edge by its midpoint keeps the orientation
		c1, c2 := t, t
		c1.v[ib] = mid
		c2.v[ia] = mid
		c1.level, c2.level = t.level+1, t.level+1
		children = append(children, b.add(c1), b.add(c2))
	}
	return children
}

func (b *bisector) result() (verts []r3.Vec, EToV [][4]int, region, level []int) {
	EToV = make([][4]int, 0, b.active)
	region = make([]int, 0, b.active)
	level = make([]int, 0, b.active)
	for _, t := range b.tets {
		if !t.active {
			continue
		}
		EToV = append(EToV, t.v)
		region = append(region, t.region)
		level = append(level, t.level)
	}
	return b.verts, EToV, region, level
}
