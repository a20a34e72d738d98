// Package sweep solves a converged problem over a list of frequencies in
// parallel and collects the scattering parameters in frequency order.
package sweep

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// Spec defines the sweep frequencies, in Hz. Explicit takes precedence;
// otherwise Start..Stop is split into Points points or walked by Step.
type Spec struct {
	Start    float64
	Stop     float64
	Step     float64
	Points   int
	Explicit []float64
}

// relative tolerance under which two frequencies are the same point
const sameFrequency = 1e-12

// Frequencies returns the ascending, de-duplicated frequency list
func (s Spec) Frequencies() ([]float64, error) {
	var f []float64
	switch {
	case len(s.Explicit) > 0:
		f = append([]float64(nil), s.Explicit...)
	case s.Points > 0 && s.Step > 0:
		return nil, fmt.Errorf("sweep: give either a step or a point count, not both")
	case !(s.Start > 0) || math.IsInf(s.Stop, 0) || s.Stop < s.Start:
		return nil, fmt.Errorf("sweep: invalid range [%g, %g]", s.Start, s.Stop)
	case s.Points == 1:
		f = []float64{s.Start}
	case s.Points > 1:
		f = floats.Span(make([]float64, s.Points), s.Start, s.Stop)
	case s.Step > 0:
		n := int(math.Floor((s.Stop-s.Start)/s.Step+1e-9)) + 1
		f = make([]float64, n)
		for i := range f {
			f[i] = s.Start + float64(i)*s.Step
		}
	default:
		return nil, fmt.Errorf("sweep: a step, a point count or an explicit list is required")
	}

	for _, v := range f {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("sweep: frequency %g must be positive and finite", v)
		}
	}
	sort.Float64s(f)
	out := f[:1]
	for _, v := range f[1:] {
		if !scalar.EqualWithinRel(v, out[len(out)-1], sameFrequency) {
			out = append(out, v)
		}
	}
	return out, nil
}
