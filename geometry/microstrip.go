package geometry

import (
	"github.com/notargets/EMKernel/material"
	"gonum.org/v1/gonum/spatial/r2"
)

// MicrostripParams describes a straight microstrip line along +y with a
// modal port at each end. Lengths are in meters.
type MicrostripParams struct {
	Length, Width      float64
	SubstrateThickness float64
	TraceThickness     float64
	Substrate          *material.Dielectric
	Trace              *material.Conductor
	SideMargin         float64 // Board extent beyond each trace edge along x
	AirHeight          float64
	PortWidth          float64
	PortHeight         float64
}

// MicrostripLine builds the design of a straight two port microstrip line
// starting at the origin. Checkpoints "p1" and "p2" mark the line ends.
func MicrostripLine(p MicrostripParams) Design {
	path := NewPath().
		Start(r2.Vec{}, p.Width, r2.Vec{Y: 1}).
		Store("p1").
		Straight(p.Length).
		Store("p2")
	return Design{
		Stackup: Stackup{
			SubstrateThickness: p.SubstrateThickness,
			Substrate:          p.Substrate,
			TraceThickness:     p.TraceThickness,
			Trace:              p.Trace,
			AirAbove:           p.AirHeight,
		},
		Commands: path.Commands(),
		Planes:   []Plane{{Name: "ground", Z: 0}},
		Ports: []PortSpec{
			{Index: 1, Anchor: "p1", Width: p.PortWidth, Height: p.PortHeight, Mode: "TEM"},
			{Index: 2, Anchor: "p2", Width: p.PortWidth, Height: p.PortHeight, Mode: "TEM"},
		},
		Margins: Margins{Left: p.SideMargin, Right: p.SideMargin},
	}
}
