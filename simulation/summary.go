package simulation

import (
	"fmt"
	"strings"
	"time"

	"github.com/notargets/EMKernel/refine"
)

// Summary condenses a Result for reporting
type Summary struct {
	RunID       string
	Elements    int
	Edges       int
	Ports       int
	Refined     bool
	Outcome     refine.Outcome
	Warning     string
	Passes      int
	GlobalError float64
	Points      int
	Failed      []float64
	Skipped     []float64
	Interrupted bool
	Duration    time.Duration
}

func (r *Result) Summary() Summary {
	s := Summary{
		RunID:    r.RunID.String(),
		Elements: r.Mesh.NumElements(),
		Edges:    len(r.Mesh.Edges),
		Ports:    len(r.Ports),
		Duration: r.Finished.Sub(r.Started),
	}
	if ref := r.Refinement; ref != nil {
		s.Refined = true
		s.Outcome = ref.Outcome
		s.Passes = len(ref.History)
		s.GlobalError = ref.Estimate.Global
		if ref.Warning != nil {
			s.Warning = ref.Warning.Error()
		}
	}
	if g := r.Grid; g != nil {
		s.Points = len(g.Points)
		s.Failed = g.Failed()
		s.Skipped = g.Skipped()
		s.Interrupted = g.Interrupted
	}
	return s
}

func (s Summary) String() string {
	var sb strings.Builder
	sb.WriteString("=== Run Summary ===\n")
	sb.WriteString(fmt.Sprintf("Run: %s\n", s.RunID))
	sb.WriteString(fmt.Sprintf("Mesh: %d elements, %d edges, %d ports\n", s.Elements, s.Edges, s.Ports))
	switch {
	case !s.Refined:
		sb.WriteString("Refinement: disabled, coarse mesh used\n")
	case s.Outcome == refine.Converged:
		sb.WriteString(fmt.Sprintf("Refinement: converged mesh used after %d passes, error %.3g\n", s.Passes, s.GlobalError))
	default:
		sb.WriteString(fmt.Sprintf("Refinement: %s after %d passes, error %.3g\n", s.Outcome, s.Passes, s.GlobalError))
		if s.Warning != "" {
			sb.WriteString(fmt.Sprintf("  warning: %s\n", s.Warning))
		}
	}
	sb.WriteString(fmt.Sprintf("Sweep: %d points, %d failed", s.Points, len(s.Failed)))
	if s.Interrupted {
		sb.WriteString(fmt.Sprintf(", interrupted with %d skipped", len(s.Skipped)))
	}
	sb.WriteString("\n")
	for _, f := range s.Failed {
		sb.WriteString(fmt.Sprintf("  invalid: %.6g Hz\n", f))
	}
	sb.WriteString(fmt.Sprintf("Elapsed: %s\n", s.Duration.Round(time.Millisecond)))
	return sb.String()
}
