package sweep

import (
	"fmt"
	"math"
	"math/cmplx"
	"time"
)

// Status of one sweep point
type Status uint8

const (
	Pending Status = iota
	Solved
	Failed  // The solve returned an error, the matrix is invalid
	Skipped // Never solved because the sweep was cancelled
)

func (s Status) String() string {
	return [...]string{"pending", "solved", "failed", "skipped"}[s]
}

// Point is the result at one frequency
type Point struct {
	Index     int
	Frequency float64
	Status    Status
	S         [][]complex128 // nil unless Solved
	Err       error
	Duration  time.Duration
}

// Grid holds the sweep in ascending frequency order
type Grid struct {
	Frequencies []float64
	Ports       int
	Points      []Point
	Interrupted bool
}

func newGrid(freqs []float64, ports int) *Grid {
	g := &Grid{Frequencies: freqs, Ports: ports, Points: make([]Point, len(freqs))}
	for k, f := range freqs {
		g.Points[k] = Point{Index: k, Frequency: f}
	}
	return g
}

func (g *Grid) check(i, j int) {
	if i < 1 || i > g.Ports || j < 1 || j > g.Ports {
		panic(fmt.Sprintf("sweep: S(%d, %d) out of range for %d ports", i, j, g.Ports))
	}
}

// S returns S(i, j) over the sweep, ports counted from 1. Invalid points
// are NaN.
func (g *Grid) S(i, j int) []complex128 {
	g.check(i, j)
	out := make([]complex128, len(g.Points))
	for k, p := range g.Points {
		if p.Status != Solved {
			out[k] = cmplx.NaN()
			continue
		}
		out[k] = p.S[i-1][j-1]
	}
	return out
}

// DB returns 20 log10 |S(i, j)|
func (g *Grid) DB(i, j int) []float64 {
	s := g.S(i, j)
	out := make([]float64, len(s))
	for k, v := range s {
		out[k] = 20 * math.Log10(cmplx.Abs(v))
	}
	return out
}

func (g *Grid) with(st Status) []float64 {
	var f []float64
	for _, p := range g.Points {
		if p.Status == st {
			f = append(f, p.Frequency)
		}
	}
	return f
}

// Failed lists the frequencies whose solve failed
func (g *Grid) Failed() []float64 { return g.with(Failed) }

// Skipped lists the frequencies left unsolved by a cancellation
func (g *Grid) Skipped() []float64 { return g.with(Skipped) }

// Valid reports whether every point was solved
func (g *Grid) Valid() bool {
	for _, p := range g.Points {
		if p.Status != Solved {
			return false
		}
	}
	return true
}
