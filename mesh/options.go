package mesh

import (
	"fmt"
	"math"
)

// Options control the initial discretization.
type Options struct {
	// Resolution is the largest cell edge as a fraction of the shortest
	// wavelength in the dielectrics touching the cell, at Frequency.
	Resolution float64
	Frequency  float64 // Hz

	MaxCellSize float64 // Absolute cap on a cell edge in meters, 0 for none
	Grading     float64 // Largest size ratio between adjacent grid intervals

	// Conductors thinner than SheetThreshold are meshed as zero thickness
	// sheets at their lower face. Zero selects a tenth of the smallest
	// target cell size.
	SheetThreshold float64

	MaxElements int
}

// DefaultOptions mirrors the defaults of the command line.
func DefaultOptions() Options {
	return Options{
		Resolution:  0.25,
		Grading:     2,
		MaxElements: 2_000_000,
	}
}

func (o Options) validate() error {
	switch {
	case !(o.Resolution > 0) && !(o.MaxCellSize > 0):
		return fmt.Errorf("either resolution or max cell size must be positive")
	case o.Resolution > 0 && !(o.Frequency > 0):
		return fmt.Errorf("resolution %g needs a positive mesh frequency", o.Resolution)
	case o.MaxCellSize < 0 || math.IsNaN(o.MaxCellSize):
		return fmt.Errorf("negative max cell size %g", o.MaxCellSize)
	case o.Grading != 0 && o.Grading < 1:
		return fmt.Errorf("grading %g must be at least 1", o.Grading)
	case o.MaxElements < 0:
		return fmt.Errorf("negative element budget %d", o.MaxElements)
	}
	return nil
}
