package utils

import "gonum.org/v1/gonum/spatial/r3"

// GeometryType identifies the shape of an element
type GeometryType uint8

const (
	// 3D element types
	Tet GeometryType = iota // Tetrahedron
	Hex                     // Hexahedron

	// 2D element types
	Tri       // Triangle
	Rectangle // Rectangle/Quadrilateral

	// 1D element type
	Line // Line segment
)

func (g GeometryType) String() string {
	switch g {
	case Tet:
		return "Tet"
	case Hex:
		return "Hex"
	case Tri:
		return "Tri"
	case Rectangle:
		return "Rectangle"
	case Line:
		return "Line"
	}
	return "Unknown"
}

// Axis names a Cartesian coordinate direction.
type Axis uint8

const (
	X Axis = iota
	Y
	Z
)

func (a Axis) String() string {
	return [...]string{"x", "y", "z"}[a]
}

// Component returns the coordinate of v along axis a.
func Component(v r3.Vec, a Axis) float64 {
	switch a {
	case X:
		return v.X
	case Y:
		return v.Y
	}
	return v.Z
}

// WithComponent returns v with its coordinate along a replaced by value.
func WithComponent(v r3.Vec, a Axis, value float64) r3.Vec {
	switch a {
	case X:
		v.X = value
	case Y:
		v.Y = value
	default:
		v.Z = value
	}
	return v
}

// Unit returns the unit vector along a.
func Unit(a Axis) r3.Vec {
	return WithComponent(r3.Vec{}, a, 1)
}
