package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Box is an axis aligned box. A box with one zero extent describes a
// rectangular sheet.
type Box struct {
	Min, Max r3.Vec
}

// NewBox returns the box spanned by the two corners in any order.
func NewBox(a, b r3.Vec) Box {
	return Box{
		Min: r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)},
		Max: r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)},
	}
}

func (b Box) Size() r3.Vec   { return r3.Sub(b.Max, b.Min) }
func (b Box) Center() r3.Vec { return r3.Scale(0.5, r3.Add(b.Min, b.Max)) }

func (b Box) Volume() float64 {
	s := b.Size()
	return s.X * s.Y * s.Z
}

// Extent returns the length of the box along a.
func (b Box) Extent(a Axis) float64 {
	return Component(b.Max, a) - Component(b.Min, a)
}

// FlatAxis returns the axis along which the box has zero extent, if any.
func (b Box) FlatAxis(tol float64) (Axis, bool) {
	for _, a := range []Axis{X, Y, Z} {
		if b.Extent(a) <= tol {
			return a, true
		}
	}
	return 0, false
}

// Area returns the area of a flat box, the largest face area otherwise.
func (b Box) Area() float64 {
	s := b.Size()
	return math.Max(s.X*s.Y, math.Max(s.Y*s.Z, s.X*s.Z))
}

// Contains reports whether p lies in the closed box grown by tol.
func (b Box) Contains(p r3.Vec, tol float64) bool {
	return p.X >= b.Min.X-tol && p.X <= b.Max.X+tol &&
		p.Y >= b.Min.Y-tol && p.Y <= b.Max.Y+tol &&
		p.Z >= b.Min.Z-tol && p.Z <= b.Max.Z+tol
}

func (b Box) ContainsBox(o Box, tol float64) bool {
	return b.Contains(o.Min, tol) && b.Contains(o.Max, tol)
}

// Overlaps reports whether the interiors of two boxes intersect with a
// positive volume.
func (b Box) Overlaps(o Box, tol float64) bool {
	return b.Min.X < o.Max.X-tol && o.Min.X < b.Max.X-tol &&
		b.Min.Y < o.Max.Y-tol && o.Min.Y < b.Max.Y-tol &&
		b.Min.Z < o.Max.Z-tol && o.Min.Z < b.Max.Z-tol
}

func (b Box) Union(o Box) Box {
	return Box{
		Min: r3.Vec{X: math.Min(b.Min.X, o.Min.X), Y: math.Min(b.Min.Y, o.Min.Y), Z: math.Min(b.Min.Z, o.Min.Z)},
		Max: r3.Vec{X: math.Max(b.Max.X, o.Max.X), Y: math.Max(b.Max.Y, o.Max.Y), Z: math.Max(b.Max.Z, o.Max.Z)},
	}
}

func (b Box) String() string {
	return fmt.Sprintf("[%.4g,%.4g]x[%.4g,%.4g]x[%.4g,%.4g]",
		b.Min.X, b.Max.X, b.Min.Y, b.Max.Y, b.Min.Z, b.Max.Z)
}
