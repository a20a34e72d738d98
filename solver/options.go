package solver

import (
	"fmt"
	"strings"
)

// Method selects the linear solver
type Method string

const (
	Auto      Method = "auto"
	Direct    Method = "direct"
	Iterative Method = "iterative"
)

// DirectLimit is the largest system Auto hands to the direct solver. The
// Markowitz LU fills in too much on larger three dimensional meshes.
const DirectLimit = 3000

// OuterBoundary selects the condition on outer faces that are neither ports
// nor conductors
type OuterBoundary string

const (
	Absorbing    OuterBoundary = "abc"
	ElectricWall OuterBoundary = "pec"
)

type Options struct {
	Method        Method
	OuterBoundary OuterBoundary
	Tolerance     float64 // Relative residual for the iterative solver
	MaxIterations int
}

func DefaultOptions() Options {
	return Options{
		Method:        Auto,
		OuterBoundary: Absorbing,
		Tolerance:     1e-8,
		MaxIterations: 5000,
	}
}

func (o Options) withDefaults() (Options, error) {
	d := DefaultOptions()
	o.Method = Method(strings.ToLower(string(o.Method)))
	o.OuterBoundary = OuterBoundary(strings.ToLower(string(o.OuterBoundary)))
	if o.Method == "" {
		o.Method = d.Method
	}
	if o.OuterBoundary == "" {
		o.OuterBoundary = d.OuterBoundary
	}
	if o.Tolerance == 0 {
		o.Tolerance = d.Tolerance
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = d.MaxIterations
	}
	switch {
	case o.Method != Auto && o.Method != Direct && o.Method != Iterative:
		return o, fmt.Errorf("unknown solver method %q", o.Method)
	case o.OuterBoundary != Absorbing && o.OuterBoundary != ElectricWall:
		return o, fmt.Errorf("unknown outer boundary %q", o.OuterBoundary)
	case !(o.Tolerance > 0) || o.Tolerance >= 1:
		return o, fmt.Errorf("tolerance %g must be in (0, 1)", o.Tolerance)
	case o.MaxIterations < 0:
		return o, fmt.Errorf("negative iteration limit %d", o.MaxIterations)
	}
	return o, nil
}

// Validate reports whether the options, with defaults filled in, are usable
func (o Options) Validate() error {
	_, err := o.withDefaults()
	return err
}

// resolve picks the concrete method for a system of n unknowns
func (o Options) resolve(n int) Method {
	if o.Method != Auto {
		return o.Method
	}
	if n <= DirectLimit {
		return Direct
	}
	return Iterative
}
