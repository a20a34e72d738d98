package mesh

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/notargets/EMKernel/element"
	"github.com/notargets/EMKernel/geometry"
	"github.com/notargets/EMKernel/material"
	"github.com/notargets/EMKernel/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// conductorShape is a conductor region as the mesher sees it: a sheet at a
// plane, or a volume carved out of the mesh
type conductorShape struct {
	region int
	sheet  bool
	axis   utils.Axis
	box    utils.Box
}

// conductorShapes flattens thin conductors into sheets
func conductorShapes(model *geometry.SolidModel, threshold float64) []conductorShape {
	var out []conductorShape
	for i := range model.Regions {
		r := &model.Regions[i]
		if _, ok := r.Conductor(); !ok {
			continue
		}
		cs := conductorShape{region: i, box: r.Box, axis: r.Normal}
		if r.Shape == geometry.Sheet {
			cs.sheet = true
		} else if r.Box.Extent(utils.Z) < threshold {
			cs.sheet = true
			cs.axis = utils.Z
			cs.box.Max.Z = cs.box.Min.Z
		}
		out = append(out, cs)
	}
	return out
}

// gridLines returns the sorted coordinates along one axis at which the model
// changes: region faces, sheet planes and port rectangles
func gridLines(model *geometry.SolidModel, shapes []conductorShape, a utils.Axis, tol float64) []float64 {
	b := model.Bounds()
	xs := []float64{utils.Component(b.Min, a), utils.Component(b.Max, a)}
	for i := range model.Regions {
		r := &model.Regions[i]
		if _, ok := r.Conductor(); ok {
			continue
		}
		xs = append(xs, utils.Component(r.Box.Min, a), utils.Component(r.Box.Max, a))
	}
	for _, cs := range shapes {
		xs = append(xs, utils.Component(cs.box.Min, a), utils.Component(cs.box.Max, a))
	}
	for _, p := range model.Ports {
		xs = append(xs, utils.Component(p.Box.Min, a), utils.Component(p.Box.Max, a))
	}
	sort.Float64s(xs)
	out := xs[:0]
	for _, x := range xs {
		if len(out) == 0 || x-out[len(out)-1] > tol {
			out = append(out, x)
		}
	}
	return out
}

// intervalSize returns the target cell size for the slab [lo,hi] along a
func intervalSize(model *geometry.SolidModel, opts Options, a utils.Axis, lo, hi, tol float64) float64 {
	h := math.Inf(1)
	if opts.MaxCellSize > 0 {
		h = opts.MaxCellSize
	}
	if !(opts.Resolution > 0) {
		return h
	}
	for i := range model.Regions {
		r := &model.Regions[i]
		d, ok := r.Dielectric()
		if !ok || r.Shape != geometry.Volume {
			continue
		}
		if utils.Component(r.Box.Max, a) <= lo+tol || utils.Component(r.Box.Min, a) >= hi-tol {
			continue
		}
		h = math.Min(h, opts.Resolution*wavelength(d, opts.Frequency))
	}
	if math.IsInf(h, 1) {
		h = opts.Resolution * material.C0 / opts.Frequency
	}
	return h
}

func wavelength(d *material.Dielectric, freq float64) float64 {
	n := math.Sqrt(cmplx.Abs(d.Permittivity(freq)) * d.MuR)
	return material.C0 / (freq * n)
}

// subdivide splits every interval between grid lines so that no cell exceeds
// its target size, then grades neighbouring interval sizes
func subdivide(lines []float64, target []float64, grading float64) []float64 {
	n := len(lines) - 1
	counts := make([]int, n)
	size := func(i int) float64 { return (lines[i+1] - lines[i]) / float64(counts[i]) }
	for i := 0; i < n; i++ {
		counts[i] = int(math.Max(1, math.Ceil((lines[i+1]-lines[i])/target[i]-1e-9)))
	}
	if grading >= 1 {
		for changed, pass := true, 0; changed && pass < 4*n+4; pass++ {
			changed = false
			for i := 0; i+1 < n; i++ {
				if size(i) > grading*size(i+1)*(1+1e-9) {
					counts[i] = int(math.Ceil((lines[i+1] - lines[i]) / (grading * size(i+1))))
					changed = true
				}
				if size(i+1) > grading*size(i)*(1+1e-9) {
					counts[i+1] = int(math.Ceil((lines[i+2] - lines[i+1]) / (grading * size(i))))
					changed = true
				}
			}
		}
	}
	coords := []float64{lines[0]}
	for i := 0; i < n; i++ {
		for k := 1; k <= counts[i]; k++ {
			if k == counts[i] {
				coords = append(coords, lines[i+1])
			} else {
				coords = append(coords, lines[i]+float64(k)*size(i))
			}
		}
	}
	return coords
}

// kuhnPermutations lists the axis orderings of the six tetrahedra around
// the main diagonal of a cell
var kuhnPermutations = [6][3]int{
	{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
}

type structuredGrid struct {
	coords [3][]float64
}

func (g *structuredGrid) dims() (nx, ny, nz int) {
	return len(g.coords[0]) - 1, len(g.coords[1]) - 1, len(g.coords[2]) - 1
}

func (g *structuredGrid) point(i, j, k int) r3.Vec {
	return r3.Vec{X: g.coords[0][i], Y: g.coords[1][j], Z: g.coords[2][k]}
}

// cellRegion classifies the cell containing center: a dielectric region
// index, -2 inside a carved conductor, -1 outside every region
func cellRegion(model *geometry.SolidModel, shapes []conductorShape, center r3.Vec) int {
	for _, cs := range shapes {
		if !cs.sheet && cs.box.Contains(center, 0) {
			return -2
		}
	}
	for i := range model.Regions {
		r := &model.Regions[i]
		if _, ok := r.Dielectric(); ok && r.Shape == geometry.Volume && r.Box.Contains(center, 0) {
			return i
		}
	}
	return -1
}

// kuhnSplit tetrahedralizes every filled cell of the grid
func kuhnSplit(model *geometry.SolidModel, shapes []conductorShape, g *structuredGrid) (verts []r3.Vec, tets [][4]int, regions []int) {
	nx, ny, nz := g.dims()
	vid := make(map[[3]int]int)
	vertex := func(ijk [3]int) int {
		if id, ok := vid[ijk]; ok {
			return id
		}
		id := len(verts)
		vid[ijk] = id
		verts = append(verts, g.point(ijk[0], ijk[1], ijk[2]))
		return id
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				center := r3.Scale(0.5, r3.Add(g.point(i, j, k), g.point(i+1, j+1, k+1)))
				reg := cellRegion(model, shapes, center)
				if reg < 0 {
					continue
				}
				for _, perm := range kuhnPermutations {
					c := [3]int{i, j, k}
					var tet [4]int
					tet[0] = vertex(c)
					for s := 0; s < 3; s++ {
						c[perm[s]]++
						tet[s+1] = vertex(c)
					}
					if element.SignedVolume(verts[tet[0]], verts[tet[1]], verts[tet[2]], verts[tet[3]]) < 0 {
						tet[2], tet[3] = tet[3], tet[2]
					}
					tets = append(tets, tet)
					regions = append(regions, reg)
				}
			}
		}
	}
	return
}
