package geometry

import (
	"math"
	"sort"

	"github.com/notargets/EMKernel/utils"
	"gonum.org/v1/gonum/spatial/r2"
)

// decomposeRectilinear splits a rectilinear polygon into rectangles, one per
// vertical slab between consecutive vertex x coordinates. Rectangles are
// returned as [min, max] corner pairs.
func decomposeRectilinear(p Polygon) ([][2]r2.Vec, error) {
	op := "polygon " + p.Name
	n := len(p.Vertices)
	if n < 4 {
		return nil, utils.NewGeometryError(op, "%d vertices, need at least 4", n)
	}

	type hedge struct{ y, x0, x1 float64 }
	var horizontal []hedge
	var xs []float64
	var area float64
	for i := 0; i < n; i++ {
		a, b := p.Vertices[i], p.Vertices[(i+1)%n]
		dx, dy := b.X-a.X, b.Y-a.Y
		switch {
		case math.Abs(dx) <= Tolerance && math.Abs(dy) <= Tolerance:
			return nil, utils.NewGeometryError(op, "zero length edge at vertex %d", i)
		case math.Abs(dx) > Tolerance && math.Abs(dy) > Tolerance:
			return nil, utils.NewGeometryError(op, "edge %d is not axis aligned", i)
		case math.Abs(dy) <= Tolerance:
			horizontal = append(horizontal, hedge{y: a.Y, x0: math.Min(a.X, b.X), x1: math.Max(a.X, b.X)})
		}
		xs = append(xs, a.X)
		area += a.X*b.Y - b.X*a.Y
	}
	if math.Abs(area)/2 <= Tolerance*Tolerance {
		return nil, utils.NewGeometryError(op, "zero area")
	}

	sort.Float64s(xs)
	xs = uniqueSorted(xs)

	var rects [][2]r2.Vec
	for i := 0; i+1 < len(xs); i++ {
		xm := 0.5 * (xs[i] + xs[i+1])
		var ys []float64
		for _, h := range horizontal {
			if h.x0 < xm && xm < h.x1 {
				ys = append(ys, h.y)
			}
		}
		if len(ys)%2 != 0 {
			return nil, utils.NewGeometryError(op, "self intersecting outline")
		}
		sort.Float64s(ys)
		for k := 0; k+1 < len(ys); k += 2 {
			rects = append(rects, [2]r2.Vec{{X: xs[i], Y: ys[k]}, {X: xs[i+1], Y: ys[k+1]}})
		}
	}
	return rects, nil
}

func uniqueSorted(v []float64) []float64 {
	out := v[:0]
	for i, x := range v {
		if i == 0 || x-out[len(out)-1] > Tolerance {
			out = append(out, x)
		}
	}
	return out
}
